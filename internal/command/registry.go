package command

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/your-org/facecommand/internal/models"
)

// Options is what a handler receives for one execution.
type Options struct {
	Command models.Command
	// Status is the transition that triggered the command, nil for manual runs
	// without any status yet.
	Status *models.Status
	Data   json.RawMessage
}

// Handler executes one command type.
type Handler interface {
	Run(ctx context.Context, opts Options) (any, error)
}

type HandlerFunc func(ctx context.Context, opts Options) (any, error)

func (f HandlerFunc) Run(ctx context.Context, opts Options) (any, error) {
	return f(ctx, opts)
}

// Registry maps command type names to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

func (r *Registry) Register(name string, h Handler) error {
	if name == "" || h == nil {
		return fmt.Errorf("register command type: name and handler are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handlers[name]; ok {
		return fmt.Errorf("register command type %q: already registered", name)
	}
	r.handlers[name] = h
	return nil
}

func (r *Registry) Resolve(name string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrCommandTypeNotFound, name)
	}
	return h, nil
}

// Names returns the registered type names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
