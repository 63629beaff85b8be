package rpc

import (
	"context"

	"connectrpc.com/connect"

	"github.com/tailored-agentic-units/blobstore/auth"
)

// NewAuthInterceptor rejects handler calls whose bearer token does not grant
// the procedure's scope. PutRecord needs write; everything else needs read.
func NewAuthInterceptor(a *auth.Authorizer) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if req.Spec().IsClient {
				return next(ctx, req)
			}

			scope := auth.ScopeRead
			if req.Spec().Procedure == PutRecordProcedure {
				scope = auth.ScopeWrite
			}

			if err := a.Authorize(req.Header().Get("Authorization"), scope); err != nil {
				return nil, connectError(err)
			}
			return next(ctx, req)
		}
	}
}

// NewTokenInterceptor attaches a bearer token to outgoing client calls.
func NewTokenInterceptor(token string) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if req.Spec().IsClient {
				req.Header().Set("Authorization", "Bearer "+token)
			}
			return next(ctx, req)
		}
	}
}
