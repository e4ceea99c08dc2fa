package questgraph

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/loam"
	"github.com/aretw0/questgraph/internal/compiler"
	"github.com/aretw0/questgraph/internal/logging"
	"github.com/aretw0/questgraph/internal/runtime"
	"github.com/aretw0/questgraph/internal/validator"
	loamAdapter "github.com/aretw0/questgraph/pkg/adapters/loam"
	"github.com/aretw0/questgraph/pkg/adapters/memory"
	"github.com/aretw0/questgraph/pkg/codec"
	"github.com/aretw0/questgraph/pkg/document"
	"github.com/aretw0/questgraph/pkg/domain"
	"github.com/aretw0/questgraph/pkg/ports"
	"github.com/aretw0/questgraph/pkg/session"
)

// Report is the result of validating a quest document.
type Report = validator.Report

// Diagnostic is one validation finding.
type Diagnostic = validator.Diagnostic

// Instance is a restored, read-only view of a live quest.
type Instance = runtime.Instance

// CyclePolicy decides which control cycles a document may contain.
type CyclePolicy = validator.CyclePolicy

const (
	CycleRepeatable = validator.CycleRepeatable
	CycleForbid     = validator.CycleForbid
	CycleAllow      = validator.CycleAllow
)

// Engine is the high-level entry point for the library. It owns the
// load, validate, compile and register pipeline for one quest document
// and drives instances of every registered definition.
type Engine struct {
	Name string

	loader   ports.DocumentLoader
	registry ports.DefinitionRegistry
	store    ports.InstanceStore
	locker   ports.DistributedLocker
	lockTTL  time.Duration
	resolver ports.SymbolResolver
	cycles   CyclePolicy
	format   codec.Format
	hooks    domain.LifecycleHooks
	logger   *slog.Logger

	runtimeOpts []runtime.Option
	executor    *runtime.Executor

	mu      sync.RWMutex
	machine *domain.Machine
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLoader injects a custom DocumentLoader, bypassing path detection.
func WithLoader(l ports.DocumentLoader) Option {
	return func(e *Engine) {
		e.loader = l
	}
}

// WithRegistry sets where compiled definitions are kept. Defaults to memory.
func WithRegistry(r ports.DefinitionRegistry) Option {
	return func(e *Engine) {
		e.registry = r
	}
}

// WithStore sets where instances are persisted. Defaults to memory.
func WithStore(s ports.InstanceStore) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithLocker adds a distributed lock around every instance update.
func WithLocker(l ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = l
	}
}

// WithLockTTL sets how long a distributed instance lock is held at most.
func WithLockTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		e.lockTTL = ttl
	}
}

// WithResolver resolves symbol fields during validation.
func WithResolver(r ports.SymbolResolver) Option {
	return func(e *Engine) {
		e.resolver = r
	}
}

// WithCyclePolicy overrides CycleRepeatable.
func WithCyclePolicy(p CyclePolicy) Option {
	return func(e *Engine) {
		e.cycles = p
	}
}

// WithFormat sets the encoding used for stored instances.
func WithFormat(f codec.Format) Option {
	return func(e *Engine) {
		e.format = f
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMaxCascade bounds the number of state exits one call may cause.
func WithMaxCascade(n int) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithMaxCascade(n))
	}
}

// WithIDGenerator replaces the UUID generator used for new instance ids.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithIDGenerator(fn))
	}
}

// New initializes an Engine for the document at path.
// A path ending in .yaml or .yml is read as a single document file; any
// other path is opened as a Loam directory with one file per node.
// If WithLoader is provided, path is only used as the quest name and may be empty.
func New(path string, opts ...Option) (*Engine, error) {
	eng := &Engine{format: codec.FormatBinary}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.loader == nil {
		if path == "" {
			return nil, fmt.Errorf("path is required when no custom loader is provided")
		}
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("invalid path: %w", err)
		}
		eng.Name = questName(absPath)
		if eng.loader, err = openLoader(absPath, eng.Name); err != nil {
			return nil, err
		}
	} else if path != "" {
		eng.Name = questName(path)
	}

	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.Name != "" {
		eng.logger = eng.logger.With("quest", eng.Name)
	}
	if eng.registry == nil {
		eng.registry = memory.NewRegistry()
	}
	if eng.store == nil {
		eng.store = memory.NewStore()
	}

	sessionOpts := []session.Option{
		session.WithFormat(eng.format),
		session.WithLogger(eng.logger),
	}
	if eng.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(eng.locker))
	}
	if eng.lockTTL > 0 {
		sessionOpts = append(sessionOpts, session.WithLockTTL(eng.lockTTL))
	}
	runtimeOpts := append([]runtime.Option{
		runtime.WithLifecycleHooks(eng.hooks),
		runtime.WithLogger(eng.logger),
	}, eng.runtimeOpts...)

	eng.executor = runtime.NewExecutor(eng.registry, session.NewManager(eng.store, sessionOpts...), runtimeOpts...)
	return eng, nil
}

func openLoader(absPath, name string) (ports.DocumentLoader, error) {
	switch strings.ToLower(filepath.Ext(absPath)) {
	case ".yaml", ".yml":
		if _, err := os.Stat(absPath); err != nil {
			return nil, fmt.Errorf("open quest document: %w", err)
		}
		return document.FileLoader{Path: absPath}, nil
	}

	// Strict mode keeps numbers as json.Number across adapters. The engine
	// never writes the graph, so the repository is opened read-only.
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return loamAdapter.New(loam.NewTypedRepository[loamAdapter.NodeMetadata](repo), name), nil
}

func questName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Validate loads the document and validates it without compiling.
// The returned error covers loading only; findings live in the report.
func (e *Engine) Validate(ctx context.Context) (*Report, error) {
	snap, err := e.loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load quest document: %w", err)
	}
	return e.validate(snap), nil
}

func (e *Engine) validate(snap ports.GraphSnapshot) *Report {
	opts := []validator.Option{
		validator.WithCyclePolicy(e.cycles),
		validator.WithLogger(e.logger),
	}
	if e.resolver != nil {
		opts = append(opts, validator.WithResolver(e.resolver))
	}
	return validator.Validate(snap, opts...)
}

// Compile loads, validates and compiles the document, then registers the
// machine so instances can be created from it. A document with errors
// yields a *domain.CompileError listing every problem.
func (e *Engine) Compile(ctx context.Context) (*domain.Machine, error) {
	report, err := e.Validate(ctx)
	if err != nil {
		return nil, err
	}
	m, err := compiler.Compile(report, compiler.WithLogger(e.logger))
	if err != nil {
		return nil, err
	}
	if err := e.registry.Register(ctx, m); err != nil {
		return nil, fmt.Errorf("register %s: %w", m.ID, err)
	}

	e.mu.Lock()
	e.machine = m
	e.mu.Unlock()
	e.logger.Info("quest compiled", "definition", m.ID, "states", len(m.States))
	return m, nil
}

// Machine returns the most recently compiled machine, or nil.
func (e *Engine) Machine() *domain.Machine {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.machine
}

// Create persists a new pending instance. An empty definitionID selects
// the current machine, compiling the document first if needed.
func (e *Engine) Create(ctx context.Context, definitionID string) (string, error) {
	if definitionID == "" {
		m := e.Machine()
		if m == nil {
			var err error
			if m, err = e.Compile(ctx); err != nil {
				return "", err
			}
		}
		definitionID = m.ID
	}
	return e.executor.Create(ctx, definitionID)
}

// Start activates the entry state of a pending instance.
func (e *Engine) Start(ctx context.Context, id string) (domain.Outcome, error) {
	return e.executor.Start(ctx, id)
}

// Observe feeds one predicate value to an instance.
func (e *Engine) Observe(ctx context.Context, id, predicate string, v domain.Value) (domain.Outcome, error) {
	return e.executor.Observe(ctx, id, predicate, v)
}

// ObserveAll feeds one predicate value to every stored instance that is not
// final. Failures are joined and do not stop the broadcast.
func (e *Engine) ObserveAll(ctx context.Context, predicate string, v domain.Value) ([]domain.Outcome, error) {
	return e.executor.ObserveAll(ctx, predicate, v)
}

// Abandon ends an instance that is not final yet.
func (e *Engine) Abandon(ctx context.Context, id string) (domain.Outcome, error) {
	return e.executor.Abandon(ctx, id)
}

// Interrupt drops one active state of an instance.
func (e *Engine) Interrupt(ctx context.Context, id, nodeID string) (domain.Outcome, error) {
	return e.executor.Interrupt(ctx, id, nodeID)
}

// ForceEnter activates a state directly. Meant for debugging and tests.
func (e *Engine) ForceEnter(ctx context.Context, id, nodeID string) (domain.Outcome, error) {
	return e.executor.ForceEnter(ctx, id, nodeID)
}

// Instance returns a restored view of a stored instance.
func (e *Engine) Instance(ctx context.Context, id string) (*Instance, error) {
	return e.executor.Instance(ctx, id)
}

// State returns the stored state of an instance.
func (e *Engine) State(ctx context.Context, id string) (*domain.InstanceState, error) {
	return e.executor.State(ctx, id)
}

// Delete removes an instance.
func (e *Engine) Delete(ctx context.Context, id string) error {
	return e.executor.Delete(ctx, id)
}

// List returns the ids of all stored instances.
func (e *Engine) List(ctx context.Context) ([]string, error) {
	return e.executor.List(ctx)
}

// Watch returns a channel that signals when the underlying document changes.
// Returns error if the loader does not support watching.
func (e *Engine) Watch(ctx context.Context) (<-chan string, error) {
	if w, ok := e.loader.(ports.Watchable); ok {
		return w.Watch(ctx)
	}
	return nil, fmt.Errorf("current loader does not support watching")
}

// Loader returns the underlying DocumentLoader used by the engine.
func (e *Engine) Loader() ports.DocumentLoader {
	return e.loader
}

// Registry returns the definition registry.
func (e *Engine) Registry() ports.DefinitionRegistry {
	return e.registry
}
