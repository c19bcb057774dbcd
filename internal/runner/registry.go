package runner

import (
	"context"
	"errors"
	"fmt"

	"freshmart/internal/domain"
)

// ErrUnknownTaskType is returned when a task's type has no registered
// handler.
var ErrUnknownTaskType = errors.New("no handler registered for task type")

// Handler is the type-specific logic a task dispatches to. New job types
// are added by registering another implementation; the runner itself
// never branches on task type.
type Handler interface {
	Type() domain.TaskType
	// ValidateParams rejects malformed configuration before dispatch.
	ValidateParams(params domain.Params) error
	// Run executes the job and returns a JSON-serializable result.
	Run(ctx context.Context, params domain.Params) (any, error)
}

// Registry maps task types to handlers.
type Registry struct {
	handlers map[domain.TaskType]Handler
}

func NewRegistry(handlers ...Handler) *Registry {
	r := &Registry{handlers: make(map[domain.TaskType]Handler, len(handlers))}
	for _, h := range handlers {
		r.Register(h)
	}
	return r
}

func (r *Registry) Register(h Handler) {
	r.handlers[h.Type()] = h
}

func (r *Registry) Resolve(t domain.TaskType) (Handler, error) {
	h, ok := r.handlers[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTaskType, t)
	}
	return h, nil
}
