// Package dispatcher looks up the provider adapter for a request's model,
// drives its normalized stream, and aggregates it into a non-streaming
// completion when the caller did not request SSE, per §4.8.
package dispatcher

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jellyfish-p/web-proxy-api/internal/executor"
	"github.com/jellyfish-p/web-proxy-api/internal/middle"
	"github.com/jellyfish-p/web-proxy-api/internal/registry"
)

// Dispatcher maps model IDs to adapters via the registry and executes
// requests against them.
type Dispatcher struct {
	reg *registry.Registry
}

// New constructs a Dispatcher backed by reg.
func New(reg *registry.Registry) *Dispatcher {
	return &Dispatcher{reg: reg}
}

// Dispatch looks up req.Model's adapter and opens its normalized stream. It
// is the caller's responsibility to drain the returned channel and invoke
// Release (if non-nil) exactly once.
func (d *Dispatcher) Dispatch(ctx context.Context, callerAuth string, req middle.Content) (*executor.Result, *executor.Adapter, error) {
	if req.Model == "" {
		return nil, nil, executor.ErrBadRequest("model is required")
	}
	if len(req.Messages) == 0 {
		return nil, nil, executor.ErrBadRequest("messages is required")
	}

	adapter := d.reg.Lookup(req.Model)
	if adapter == nil {
		return nil, nil, executor.ErrBadRequest(fmt.Sprintf("unknown model %q", req.Model))
	}

	result, err := adapter.Handle(ctx, callerAuth, req)
	if err != nil {
		return nil, adapter, err
	}
	return result, adapter, nil
}

// Aggregate drains result.Chunks into a single non-streaming
// middle.Completion, per testable property 7: the concatenation of
// delta.Content values and, separately, delta.ReasoningContent values, with
// the final finish_reason/usage/id/model observed on the stream.
func Aggregate(result *executor.Result) (middle.Completion, error) {
	var content middle.Completion
	content.ID = "chatcmpl-" + uuid.New().String()
	content.Model = result.Model

	for sc := range result.Chunks {
		if sc.Err != nil {
			return middle.Completion{}, sc.Err
		}
		c := sc.Chunk
		if c.ID != "" {
			content.ID = c.ID
		}
		if c.Model != "" {
			content.Model = c.Model
		}
		content.Content += c.Delta.Content
		content.ReasoningContent += c.Delta.ReasoningContent
		if c.FinishReason != "" {
			content.FinishReason = c.FinishReason
		}
		if c.Usage != nil {
			content.Usage = *c.Usage
		}
	}
	return content, nil
}
