package rpc

import (
	stderrors "errors"
	"fmt"

	"connectrpc.com/connect"
	"github.com/jmgilman/go/errors"

	"github.com/tailored-agentic-units/blobstore/auth"
	"github.com/tailored-agentic-units/blobstore/engine"
)

// connectError maps an engine or auth failure onto a Connect code. Only the
// top-level message crosses the wire; wrapped causes stay server side.
func connectError(err error) *connect.Error {
	code := connect.CodeInternal
	switch {
	case errors.Is(err, engine.ErrNotFound):
		code = connect.CodeNotFound
	case errors.Is(err, engine.ErrConflict):
		code = connect.CodeAlreadyExists
	case errors.Is(err, engine.ErrTooLarge):
		code = connect.CodeResourceExhausted
	case errors.Is(err, auth.ErrUnauthorized):
		code = connect.CodeUnauthenticated
	case errors.Is(err, auth.ErrForbidden):
		code = connect.CodePermissionDenied
	}

	return connect.NewError(code, stderrors.New(errors.ToJSON(err).Message))
}

func invalidKey(key string) *connect.Error {
	return connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("invalid record hash '%s'", key))
}
