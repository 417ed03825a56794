// Package executor defines the provider adapter contract every upstream
// (DeepSeek, Grok, and the reserved Claude/Kimi slots) implements, plus the
// typed status errors the ingress handlers map onto HTTP responses.
package executor

import (
	"context"

	"github.com/jellyfish-p/web-proxy-api/internal/middle"
)

// State carries whatever an adapter's Handle call needs Release to clean up
// (most commonly: which credential ID was leased).
type State struct {
	CredentialID string
	ModelID      string
}

// StreamChunk is one event off an adapter's response stream, already
// expressed in the normalized middle.Chunk shape.
type StreamChunk struct {
	Chunk middle.Chunk
	Err   error
}

// Result is what Handle returns: a channel of normalized chunks and the
// State Release needs.
type Result struct {
	Chunks  <-chan StreamChunk
	State   State
	Model   string
}

// Adapter is the contract every provider implementation satisfies.
type Adapter struct {
	// Models lists the model IDs this adapter serves.
	Models func() []string

	// Handle dispatches req to the upstream and returns a normalized stream.
	// callerAuth is the caller's bearer token as presented on ingress (used
	// by DeepSeek to decide between "use directly as upstream token" and
	// "lease from the pool").
	Handle func(ctx context.Context, callerAuth string, req middle.Content) (*Result, error)

	// Release returns pooled resources associated with state. Optional.
	Release func(state State)
}

// Error is a typed status error adapters return; the ingress handlers
// (internal/api) map it directly onto the corresponding HTTP status code.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string { return e.Message }

// Constructors for the taxonomy in the orchestration engine's error design.
func ErrNoAccount(status int, msg string) error    { return &Error{Status: status, Message: msg} }
func ErrUnauthorized(msg string) error              { return &Error{Status: 401, Message: msg} }
func ErrBadRequest(msg string) error                { return &Error{Status: 400, Message: msg} }
func ErrUpstream(status int, msg string) error      { return &Error{Status: status, Message: msg} }
func ErrInternal(msg string) error                  { return &Error{Status: 500, Message: msg} }
