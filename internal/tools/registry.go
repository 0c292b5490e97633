package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/mentor-matcher/internal/apperr"
	"github.com/spigell/mentor-matcher/internal/logger"
	"github.com/spigell/mentor-matcher/internal/utils"
)

// DefaultMaxAttempts is how many times a read is tried before a transient
// failure becomes a failure envelope.
const DefaultMaxAttempts = 2

var retryDelay = 150 * time.Millisecond

// Registry holds the available tools. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool

	maxAttempts int
	logger      *zap.Logger
}

type Option func(*Registry)

// WithMaxAttempts sets how many times a transient failure is tried. Values below 1 mean 1.
func WithMaxAttempts(n int) Option {
	return func(r *Registry) {
		if n < 1 {
			n = 1
		}
		r.maxAttempts = n
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		tools:       make(map[string]*Tool),
		maxAttempts: DefaultMaxAttempts,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a tool. Names must be unique.
func (r *Registry) Register(tool *Tool) error {
	if tool.Name == "" {
		return ErrToolNameEmpty
	}
	if tool.Execute == nil {
		return fmt.Errorf("%w: %s", ErrToolExecuteNil, tool.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("%w: %s", ErrToolAlreadyRegistered, tool.Name)
	}
	r.tools[tool.Name] = tool
	return nil
}

// MustRegister registers a tool and panics on error.
func (r *Registry) MustRegister(tool *Tool) {
	if err := r.Register(tool); err != nil {
		panic(fmt.Sprintf("failed to register tool %s: %v", tool.Name, err))
	}
}

// Get returns a tool by name, or nil if not found.
func (r *Registry) Get(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Definitions lists every registered tool sorted by name.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(r.tools))
	for _, tool := range r.tools {
		defs = append(defs, Definition{Name: tool.Name, Description: tool.Description, Schema: tool.Schema})
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Execute runs the named tool. It never fails with a Go error: unknown tools,
// schema violations and read failures all come back as failure envelopes.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) *Envelope {
	log := r.logger.With(zap.String(logger.FieldTool, name))

	tool := r.Get(name)
	if tool == nil {
		log.Warn("unknown tool requested")
		return Failure(apperr.New(apperr.InvalidArgument, "%v: %s", ErrToolNotFound, name))
	}

	validated, err := validateArgs(tool.Schema, args)
	if err != nil {
		log.Debug("tool arguments rejected", zap.Error(err))
		return Failure(apperr.New(apperr.InvalidArgument, "invalid arguments for %s: %v", name, err))
	}

	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		env, err := tool.Execute(ctx, validated)
		if err == nil {
			log.Debug("tool executed", zap.Int("attempt", attempt), zap.Duration("took", time.Since(start)))
			return env
		}
		lastErr = err

		// Coded errors describe the request, not the transport; repeating them changes nothing.
		if apperr.Classified(err) || attempt == r.maxAttempts {
			break
		}

		log.Warn("tool read failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
		if waitErr := utils.WaitFor(ctx, retryDelay*time.Duration(attempt)); waitErr != nil {
			lastErr = errors.Join(err, waitErr)
			break
		}
	}

	log.Warn("tool failed", zap.Error(lastErr), zap.Duration("took", time.Since(start)))
	return Failure(lastErr)
}

// Failure turns err into a failure envelope carrying its apperr code.
func Failure(err error) *Envelope {
	return &Envelope{
		Success: false,
		Error:   string(apperr.CodeOf(err)),
		Message: apperr.MessageOf(err),
	}
}

// Err returns the failure of env as a coded error, or nil for a success.
func (e *Envelope) Err() error {
	if e == nil {
		return apperr.New(apperr.Internal, "empty tool envelope")
	}
	if e.Success {
		return nil
	}
	code := apperr.Code(e.Error)
	if code == "" {
		code = apperr.Internal
	}
	return apperr.New(code, "%s", e.Message)
}
