package profile

import (
	"errors"
	"fmt"
)

// MaxNameLen bounds profile names.
const MaxNameLen = 64

// maxSocketPath is the sun_path size on macOS, the smallest of the
// platforms koichatd runs on. It includes the trailing NUL.
const maxSocketPath = 104

// ErrInvalidName is wrapped by every ValidateName failure.
var ErrInvalidName = errors.New("invalid profile name")

// ValidateName checks that name can be used as a profile directory: 1 to
// MaxNameLen characters from a-z, 0-9, '_' and '-', not starting with '-'
// so it is never read as a flag.
func ValidateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: name is empty", ErrInvalidName)
	case len(name) > MaxNameLen:
		return fmt.Errorf("%w %q: longer than %d characters", ErrInvalidName, name, MaxNameLen)
	case name[0] == '-':
		return fmt.Errorf("%w %q: must not start with '-'", ErrInvalidName, name)
	}
	for _, r := range name {
		if !validNameRune(r) {
			return fmt.Errorf("%w %q: unexpected %q, use a-z, 0-9, '_' or '-'", ErrInvalidName, name, r)
		}
	}
	return nil
}

func validNameRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-'
}

// CheckSocketPath reports an error when path does not fit in a Unix
// socket address. Long KOICHAT_HOME values combined with long profile
// names hit this before net.Listen does.
func CheckSocketPath(path string) error {
	if len(path) >= maxSocketPath {
		return fmt.Errorf("socket path %s is %d bytes, limit is %d; use a shorter %s or profile name",
			path, len(path), maxSocketPath-1, EnvHome)
	}
	return nil
}
