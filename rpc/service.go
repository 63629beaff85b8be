// Package rpc exposes the blob store engine as a Connect service. Messages
// are protobuf well-known wrapper types, so the service needs no generated
// code and speaks the Connect, gRPC, and gRPC-Web protocols.
//
//	path, handler := rpc.NewHandler(eng, connect.WithInterceptors(rpc.NewAuthInterceptor(authz)))
//	mux.Handle(path, handler)
package rpc

import (
	"context"
	"fmt"
	"net/http"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/tailored-agentic-units/blobstore/engine"
	"github.com/tailored-agentic-units/blobstore/store"
)

const (
	ServiceName = "blobstore.v1.BlobService"

	GetRecordProcedure = "/" + ServiceName + "/GetRecord"
	PutRecordProcedure = "/" + ServiceName + "/PutRecord"

	// HashHeader carries the record key on PutRecord requests.
	HashHeader = "Record-Hash"
	// SourceHeader reports which tier served a GetRecord response.
	SourceHeader = "Cache-Source"
)

// Engine is the storage the service delegates to.
type Engine interface {
	Get(ctx context.Context, key string) (*engine.Result, error)
	Put(ctx context.Context, key string, payload []byte) error
}

type service struct {
	engine Engine
}

// NewHandler builds the service handler and returns the path prefix to mount
// it under.
func NewHandler(e Engine, opts ...connect.HandlerOption) (string, http.Handler) {
	svc := &service{engine: e}

	mux := http.NewServeMux()
	mux.Handle(GetRecordProcedure, connect.NewUnaryHandler(GetRecordProcedure, svc.GetRecord, opts...))
	mux.Handle(PutRecordProcedure, connect.NewUnaryHandler(PutRecordProcedure, svc.PutRecord, opts...))

	return "/" + ServiceName + "/", mux
}

func (s *service) GetRecord(ctx context.Context, req *connect.Request[wrapperspb.StringValue]) (*connect.Response[wrapperspb.BytesValue], error) {
	key := req.Msg.GetValue()
	if !store.ValidKey(key) {
		return nil, invalidKey(key)
	}

	res, err := s.engine.Get(ctx, key)
	if err != nil {
		return nil, connectError(err)
	}

	resp := connect.NewResponse(wrapperspb.Bytes(res.Payload))
	resp.Header().Set(SourceHeader, string(res.Source))
	return resp, nil
}

func (s *service) PutRecord(ctx context.Context, req *connect.Request[wrapperspb.BytesValue]) (*connect.Response[wrapperspb.StringValue], error) {
	key := req.Header().Get(HashHeader)
	if !store.ValidKey(key) {
		return nil, invalidKey(key)
	}

	if err := s.engine.Put(ctx, key, req.Msg.GetValue()); err != nil {
		return nil, connectError(err)
	}

	return connect.NewResponse(wrapperspb.String(fmt.Sprintf("Record with hash '%s' saved", key))), nil
}
