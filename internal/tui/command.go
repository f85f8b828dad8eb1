package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/matheus3301/koichat/internal/chat"
)

// Command represents a parsed command.
type Command struct {
	Name string
	Args string
}

var commandAliases = map[string]string{
	"h": "help",
	"q": "quit",
	"o": "open",
}

// ParseCommand parses a command string (without the leading ':'). Aliases
// are expanded to their full name.
func ParseCommand(input string) Command {
	input = strings.TrimSpace(input)
	parts := strings.SplitN(input, " ", 2)
	cmd := Command{Name: strings.ToLower(parts[0])}
	if full, ok := commandAliases[cmd.Name]; ok {
		cmd.Name = full
	}
	if len(parts) > 1 {
		cmd.Args = strings.TrimSpace(parts[1])
	}
	return cmd
}

// ResolveContact finds the contact an :open argument names. A numeric
// argument is a user id and need not be listed; otherwise an exact name
// wins over a single partial match.
func ResolveContact(arg string, contacts []chat.Contact) (chat.Contact, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return chat.Contact{}, fmt.Errorf("usage: open <name|id>")
	}
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil && id > 0 {
		for _, c := range contacts {
			if c.ID == id {
				return c, nil
			}
		}
		return chat.Contact{ID: id}, nil
	}

	needle := strings.ToLower(arg)
	var partial []chat.Contact
	for _, c := range contacts {
		name := strings.ToLower(c.DisplayName())
		if name == needle {
			return c, nil
		}
		if strings.Contains(name, needle) {
			partial = append(partial, c)
		}
	}
	switch len(partial) {
	case 0:
		return chat.Contact{}, fmt.Errorf("no contact matches %q", arg)
	case 1:
		return partial[0], nil
	default:
		return chat.Contact{}, fmt.Errorf("%d contacts match %q", len(partial), arg)
	}
}

// Commands lists the ':' commands in the order they are suggested.
var Commands = []string{"open", "close", "older", "reload", "logout", "help", "quit"}

// maxCompletions caps the contact names offered for :open.
const maxCompletions = 8

// CompleteCommand suggests full command lines for input. A bare word
// completes to command names; the argument of open completes to listed
// contact names.
func CompleteCommand(input string, contacts []chat.Contact) []string {
	word, arg, hasArg := strings.Cut(input, " ")
	word = strings.ToLower(word)
	if !hasArg {
		var out []string
		for _, name := range Commands {
			if strings.HasPrefix(name, word) && name != word {
				out = append(out, name)
			}
		}
		return out
	}
	if full, ok := commandAliases[word]; ok {
		word = full
	}
	if word != "open" {
		return nil
	}
	needle := strings.ToLower(strings.TrimLeft(arg, " "))
	var out []string
	for _, c := range contacts {
		name := c.DisplayName()
		if needle != "" && strings.EqualFold(name, needle) {
			continue
		}
		if strings.Contains(strings.ToLower(name), needle) {
			out = append(out, "open "+name)
			if len(out) == maxCompletions {
				break
			}
		}
	}
	return out
}
