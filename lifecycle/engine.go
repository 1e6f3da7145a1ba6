// Package lifecycle implements the provenance state machine: annotate,
// certify, finalize and reconcile transitions composed from the scanner,
// codec, digest engine and text mutator.
package lifecycle

import (
	"context"
	"time"

	"github.com/provara/provara/audit"
	"github.com/provara/provara/blame"
	"github.com/provara/provara/mutate"
	"github.com/provara/provara/policy"
	"github.com/provara/provara/scanner"
)

// timeLayout is the timestamp format embedded in metadata and history.
const timeLayout = time.RFC3339Nano

// Engine wires the collaborators used by every lifecycle transition. Files
// are processed strictly sequentially; callers must serialize concurrent
// invocations against the same tree or registry.
type Engine struct {
	scanner *scanner.Scanner
	mutator *mutate.Mutator
	blame   blame.Describer
	audit   *audit.Log
	policy  *policy.Config
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithBlame sets the blame collaborator used to decorate history entries.
func WithBlame(describer blame.Describer) Option {
	return func(e *Engine) { e.blame = describer }
}

// WithAudit sets the audit log receiving certify, finalize and reopen
// records.
func WithAudit(log *audit.Log) Option {
	return func(e *Engine) { e.audit = log }
}

// WithPolicy sets the policy the engine compares against.
func WithPolicy(config *policy.Config) Option {
	return func(e *Engine) { e.policy = config }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine with a null blame describer, no audit log and the
// default policy.
func New(options ...Option) *Engine {
	engine := &Engine{
		scanner: scanner.New(),
		mutator: mutate.New(),
		blame:   blame.Null{},
		policy:  policy.Default(),
		now:     time.Now,
	}
	for _, option := range options {
		option(engine)
	}
	return engine
}

func (e *Engine) record(ctx context.Context, action string, data map[string]any) {
	if e.audit == nil {
		return
	}
	// Audit failures never abort a lifecycle transition.
	_ = e.audit.Record(ctx, action, data)
}
