package rpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/matheus3301/koichat/internal/backend"
	"github.com/matheus3301/koichat/internal/conversation"
)

// ErrNotLoggedIn is returned by calls that need a signed-in profile.
var ErrNotLoggedIn = errors.New("not logged in")

// toStatus maps domain errors to gRPC status errors.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := grpcstatus.FromError(err); ok {
		return err
	}
	code := codes.Internal
	switch {
	case errors.Is(err, ErrNotLoggedIn), errors.Is(err, backend.ErrUnauthenticated):
		code = codes.Unauthenticated
	case errors.Is(err, backend.ErrAccessDenied):
		code = codes.PermissionDenied
	case errors.Is(err, conversation.ErrNoConversation):
		code = codes.FailedPrecondition
	case errors.Is(err, conversation.ErrConversationChanged):
		code = codes.Aborted
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case backend.IsNetwork(err):
		code = codes.Unavailable
	}
	return grpcstatus.Error(code, err.Error())
}

// Code returns the gRPC code carried by err.
func Code(err error) codes.Code {
	return grpcstatus.Code(err)
}
