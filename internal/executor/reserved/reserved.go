// Package reserved provides placeholder adapters for providers the catalog
// advertises but that have no working credential source yet. They keep the
// model IDs visible in GET /v1/models and fail clearly, instead of a 404,
// if a caller actually dispatches to one.
package reserved

import (
	"context"
	"net/http"

	"github.com/jellyfish-p/web-proxy-api/internal/executor"
	"github.com/jellyfish-p/web-proxy-api/internal/middle"
)

// Adapter implements executor's contract for a provider with no functioning
// credential pool. Handle always fails with ErrNoAccount; Release is a no-op.
type Adapter struct {
	models []string
}

// New builds a reserved Adapter advertising modelIDs.
func New(modelIDs []string) *Adapter {
	return &Adapter{models: modelIDs}
}

// AsExecutor adapts the reserved Adapter to the executor.Adapter contract.
func (a *Adapter) AsExecutor() *executor.Adapter {
	return &executor.Adapter{
		Models: func() []string { return a.models },
		Handle: a.Handle,
		Release: func(executor.State) {},
	}
}

// Handle always reports that no usable account is configured for this
// provider.
func (a *Adapter) Handle(_ context.Context, _ string, _ middle.Content) (*executor.Result, error) {
	return nil, executor.ErrNoAccount(http.StatusServiceUnavailable, "no account available for this provider")
}

// Claude returns the reserved Claude adapter.
func Claude() *Adapter {
	return New([]string{"claude-3-5-sonnet", "claude-3-opus"})
}

// Kimi returns the reserved Kimi adapter.
func Kimi() *Adapter {
	return New([]string{"kimi-k2"})
}
