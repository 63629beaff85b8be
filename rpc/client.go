package rpc

import (
	"context"
	"strings"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Record is a payload returned by Client.Get.
type Record struct {
	Payload []byte
	Source  string // "memory" or "disk"
}

// Client calls a remote BlobService.
type Client struct {
	get *connect.Client[wrapperspb.StringValue, wrapperspb.BytesValue]
	put *connect.Client[wrapperspb.BytesValue, wrapperspb.StringValue]
}

// NewClient creates a Client for the service at baseURL. A non-empty token is
// sent as a bearer token on every call.
func NewClient(httpClient connect.HTTPClient, baseURL, token string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	if token != "" {
		opts = append(opts, connect.WithInterceptors(NewTokenInterceptor(token)))
	}

	return &Client{
		get: connect.NewClient[wrapperspb.StringValue, wrapperspb.BytesValue](httpClient, baseURL+GetRecordProcedure, opts...),
		put: connect.NewClient[wrapperspb.BytesValue, wrapperspb.StringValue](httpClient, baseURL+PutRecordProcedure, opts...),
	}
}

// Get fetches the record stored under key. Failures are *connect.Error
// values; use connect.CodeOf to tell them apart.
func (c *Client) Get(ctx context.Context, key string) (*Record, error) {
	resp, err := c.get.CallUnary(ctx, connect.NewRequest(wrapperspb.String(key)))
	if err != nil {
		return nil, err
	}
	return &Record{
		Payload: resp.Msg.GetValue(),
		Source:  resp.Header().Get(SourceHeader),
	}, nil
}

// Put stores payload under key and returns the server's confirmation.
func (c *Client) Put(ctx context.Context, key string, payload []byte) (string, error) {
	req := connect.NewRequest(wrapperspb.Bytes(payload))
	req.Header().Set(HashHeader, key)

	resp, err := c.put.CallUnary(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.Msg.GetValue(), nil
}
