// Package registry maps featurizer names to factories.  Featurizers are
// registered explicitly; nothing is discovered at import time.
package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/turtacn/padel-featurizer/internal/domain/molecule"
	"github.com/turtacn/padel-featurizer/internal/featurizer/cached"
	"github.com/turtacn/padel-featurizer/internal/featurizer/calc"
	"github.com/turtacn/padel-featurizer/internal/featurizer/trans"
	"github.com/turtacn/padel-featurizer/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/padel-featurizer/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/padel-featurizer/internal/infrastructure/store"
	"github.com/turtacn/padel-featurizer/internal/padel"
	"github.com/turtacn/padel-featurizer/pkg/errors"
)

// Featurizer is what a factory builds.
type Featurizer interface {
	Name() string
	Columns() []string
	Call(ctx context.Context, inputs molecule.Inputs, opts trans.CallOptions) (*trans.Output, error)
}

// Deps are the collaborators handed to every factory.
type Deps struct {
	Client  padel.Client
	Toolkit molecule.Toolkit
	Logger  logging.Logger
	Metrics *prometheus.FeaturizerMetrics
	// Transformer carries n_jobs, dtype and parallel kwargs.  Params are
	// taken from the raw arguments instead.
	Transformer trans.TransformerConfig
	// Store, when set, caches rows by calculator fingerprint and SMILES.
	Store     store.FeatureStore
	StoreName string
}

// Factory builds a featurizer from raw constructor arguments.
type Factory func(ctx context.Context, deps Deps, raw map[string]any) (Featurizer, error)

// Registry is a concurrency-safe name → factory map.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory.  Names are unique.
func (r *Registry) Register(name string, f Factory) error {
	if name == "" || f == nil {
		return errors.New(errors.ErrCodeValidation, "featurizer name and factory are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[name]; ok {
		return errors.Newf(errors.ErrCodeConflict, "featurizer %q already registered", name)
	}
	r.factories[name] = f
	return nil
}

// New builds the named featurizer.
func (r *Registry) New(ctx context.Context, name string, deps Deps, raw map[string]any) (Featurizer, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.Newf(errors.ErrCodeFeaturizerNotFound, "unknown featurizer %q", name)
	}
	return f(ctx, deps, raw)
}

// Names lists registered featurizers in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewPadel is the factory for the PaDEL transformer.
func NewPadel(ctx context.Context, deps Deps, raw map[string]any) (Featurizer, error) {
	params, err := calc.ParamsFromMap(raw)
	if err != nil {
		return nil, err
	}
	cfg := deps.Transformer
	cfg.Params = params
	if cfg.Logger == nil {
		cfg.Logger = deps.Logger
	}
	if cfg.Metrics == nil {
		cfg.Metrics = deps.Metrics
	}
	c, err := calc.New(ctx, deps.Client, deps.Toolkit, params,
		calc.WithLogger(cfg.Logger), calc.WithMetrics(cfg.Metrics))
	if err != nil {
		return nil, err
	}
	var src trans.Calculator = c
	if deps.Store != nil {
		src = cached.New(c, deps.Store,
			cached.WithLogger(cfg.Logger), cached.WithMetrics(cfg.Metrics, deps.StoreName))
	}
	t, err := trans.Wrap(src, cfg)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// RegisterBuiltins registers the featurizers shipped with this module.
func RegisterBuiltins(r *Registry) error {
	return r.Register(calc.Name, NewPadel)
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the process registry with the builtins registered.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultReg = New()
		if err := RegisterBuiltins(defaultReg); err != nil {
			panic(err)
		}
	})
	return defaultReg
}
