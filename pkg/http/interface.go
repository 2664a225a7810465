package http

import (
	"context"
	"net/url"
)

// JSONGetter is what lookup clients depend on, so tests can swap the transport
type JSONGetter interface {
	GetJSON(ctx context.Context, endpoint string, query url.Values, out interface{}) error
	Close()
}

var _ JSONGetter = (*Client)(nil)
