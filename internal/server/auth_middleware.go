package server

import (
	"context"
	"crypto/subtle"
)

// ClientInfo describes a debug client at connection time.
type ClientInfo struct {
	ID            string
	RemoteAddress string
	Metadata      map[string]any
}

// Authenticator decides whether a client may attach to the debugger.
type Authenticator interface {
	OnConnect(ctx context.Context, client ClientInfo) error
}

// TokenAuth admits clients presenting the shared token in the "token" query
// parameter. An empty token admits everybody.
type TokenAuth struct {
	Token string
}

func (a TokenAuth) OnConnect(_ context.Context, client ClientInfo) error {
	if a.Token == "" {
		return nil
	}
	token, _ := client.Metadata["token"].(string)
	if subtle.ConstantTimeCompare([]byte(token), []byte(a.Token)) != 1 {
		return ErrUnauthorized
	}
	return nil
}
