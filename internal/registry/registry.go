// Package registry resolves symbolic handler names to constructed business
// actions.
//
// Handlers are declared in a YAML document mapping each name to a constructor
// and its declared service dependencies. Services live in a ServiceRegistry
// that lazily instantiates and caches singletons. The whole registry is built
// eagerly at startup so misconfiguration fails before serving traffic.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// Handler is a business action invoked from an action step. Params carry
// template-substituted values from the conversation; the result map is merged
// back into the conversation data under a reserved key prefix.
type Handler interface {
	Invoke(ctx context.Context, params map[string]string) (map[string]string, error)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, params map[string]string) (map[string]string, error)

// Invoke implements Handler.
func (f HandlerFunc) Invoke(ctx context.Context, params map[string]string) (map[string]string, error) {
	return f(ctx, params)
}

// Constructor builds a handler from its resolved dependencies, keyed by
// dependency name.
type Constructor func(deps map[string]any) (Handler, error)

// Error variables for registry failures.
var (
	ErrHandlerNotFound     = errors.New("handler not registered")
	ErrConstructorNotFound = errors.New("handler constructor not registered")
	ErrServiceNotFound     = errors.New("service not registered")
	ErrDependencyCycle     = errors.New("service dependency cycle detected")
)

// serviceFactory describes a lazily constructed singleton service.
type serviceFactory struct {
	deps  []string
	build func(deps map[string]any) (any, error)
}

// ServiceRegistry holds shared service instances used for handler dependency
// injection.
type ServiceRegistry struct {
	mu        sync.Mutex
	instances map[string]any
	factories map[string]serviceFactory
}

// NewServiceRegistry creates an empty service registry.
func NewServiceRegistry() *ServiceRegistry {
	return &ServiceRegistry{
		instances: make(map[string]any),
		factories: make(map[string]serviceFactory),
	}
}

// Register registers an already constructed service instance.
func (r *ServiceRegistry) Register(name string, service any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances[name] = service
	slog.Debug("ServiceRegistry registered service", "name", name)
}

// RegisterSingleton registers a service that is constructed once on first
// resolution. The declared dependency graph must stay acyclic; the check runs
// at registration time so a bad wiring order fails immediately.
func (r *ServiceRegistry) RegisterSingleton(name string, deps []string, build func(deps map[string]any) (any, error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = serviceFactory{deps: deps, build: build}
	if err := r.checkCycleLocked(name, map[string]bool{}); err != nil {
		delete(r.factories, name)
		slog.Error("ServiceRegistry rejected singleton registration", "error", err, "name", name)
		return err
	}
	slog.Debug("ServiceRegistry registered singleton", "name", name, "deps", deps)
	return nil
}

// checkCycleLocked walks declared factory dependencies looking for cycles.
func (r *ServiceRegistry) checkCycleLocked(name string, onPath map[string]bool) error {
	if onPath[name] {
		return fmt.Errorf("%w: through %q", ErrDependencyCycle, name)
	}
	factory, ok := r.factories[name]
	if !ok {
		return nil // instance or not yet registered; resolution will report it
	}
	onPath[name] = true
	defer delete(onPath, name)
	for _, dep := range factory.deps {
		if err := r.checkCycleLocked(dep, onPath); err != nil {
			return err
		}
	}
	return nil
}

// Get resolves a service by name, constructing and caching singletons as
// needed.
func (r *ServiceRegistry) Get(name string) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getLocked(name)
}

func (r *ServiceRegistry) getLocked(name string) (any, error) {
	if instance, ok := r.instances[name]; ok {
		return instance, nil
	}
	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrServiceNotFound, name)
	}

	resolved := make(map[string]any, len(factory.deps))
	for _, dep := range factory.deps {
		instance, err := r.getLocked(dep)
		if err != nil {
			return nil, fmt.Errorf("resolving dependency %q of service %q: %w", dep, name, err)
		}
		resolved[dep] = instance
	}

	instance, err := factory.build(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to construct service %q: %w", name, err)
	}
	r.instances[name] = instance
	delete(r.factories, name)
	slog.Debug("ServiceRegistry constructed singleton", "name", name)
	return instance, nil
}

// Has reports whether a service name is known, constructed or not.
func (r *ServiceRegistry) Has(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.instances[name]; ok {
		return true
	}
	_, ok := r.factories[name]
	return ok
}

// HandlerDescriptor maps a symbolic handler name to its constructor and
// declared dependencies.
type HandlerDescriptor struct {
	Constructor  string   `yaml:"constructor"`
	Dependencies []string `yaml:"dependencies"`
	Singleton    bool     `yaml:"singleton"`
}

// handlersDocument mirrors the top-level handlers YAML layout.
type handlersDocument struct {
	Handlers map[string]HandlerDescriptor `yaml:"handlers"`
}

// Registry resolves handler names to constructed Handler instances.
type Registry struct {
	mu           sync.Mutex
	services     *ServiceRegistry
	constructors map[string]Constructor
	descriptors  map[string]HandlerDescriptor
	cache        map[string]Handler
}

// New creates a handler registry backed by the given service registry.
func New(services *ServiceRegistry) *Registry {
	if services == nil {
		services = NewServiceRegistry()
	}
	return &Registry{
		services:     services,
		constructors: make(map[string]Constructor),
		descriptors:  make(map[string]HandlerDescriptor),
		cache:        make(map[string]Handler),
	}
}

// Services returns the underlying service registry.
func (r *Registry) Services() *ServiceRegistry {
	return r.services
}

// RegisterConstructor associates a symbolic constructor name with a Go
// constructor function. Configuration documents refer to constructors by
// these names.
func (r *Registry) RegisterConstructor(name string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[name] = ctor
	slog.Debug("Registry registered constructor", "name", name)
}

// LoadConfig reads a handlers document from the given path and validates it
// against the registered constructors and services.
func (r *Registry) LoadConfig(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Error("Registry failed to read handlers config", "error", err, "path", path)
		return fmt.Errorf("failed to read handlers config %s: %w", path, err)
	}
	if err := r.ParseConfig(data); err != nil {
		return err
	}
	slog.Info("Registry loaded handlers config", "path", path, "handlers", len(r.descriptors))
	return nil
}

// ParseConfig parses a handlers document from raw YAML bytes. Every declared
// constructor and dependency must already be registered; a descriptive error
// names each missing piece so startup fails before traffic is served.
func (r *Registry) ParseConfig(data []byte) error {
	var doc handlersDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		slog.Error("Registry failed to parse handlers config", "error", err)
		return fmt.Errorf("failed to parse handlers config: %w", err)
	}
	if len(doc.Handlers) == 0 {
		return errors.New("handlers config defines no handlers")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(doc.Handlers))
	for name := range doc.Handlers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		desc := doc.Handlers[name]
		if desc.Constructor == "" {
			desc.Constructor = name
		}
		if _, ok := r.constructors[desc.Constructor]; !ok {
			return fmt.Errorf("handler %q: %w: %q", name, ErrConstructorNotFound, desc.Constructor)
		}
		for _, dep := range desc.Dependencies {
			if !r.services.Has(dep) {
				return fmt.Errorf("handler %q: %w: %q", name, ErrServiceNotFound, dep)
			}
		}
		r.descriptors[name] = desc
	}
	return nil
}

// Resolve returns the handler registered under name, constructing it (and its
// declared dependencies) on first use. Handlers marked singleton are cached.
func (r *Registry) Resolve(name string) (Handler, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if handler, ok := r.cache[name]; ok {
		return handler, nil
	}

	desc, ok := r.descriptors[name]
	if !ok {
		slog.Error("Registry resolve failed", "handler", name)
		return nil, fmt.Errorf("%w: %q", ErrHandlerNotFound, name)
	}
	ctor, ok := r.constructors[desc.Constructor]
	if !ok {
		return nil, fmt.Errorf("handler %q: %w: %q", name, ErrConstructorNotFound, desc.Constructor)
	}

	deps := make(map[string]any, len(desc.Dependencies))
	for _, depName := range desc.Dependencies {
		instance, err := r.services.Get(depName)
		if err != nil {
			slog.Error("Registry dependency resolution failed", "handler", name, "dependency", depName, "error", err)
			return nil, fmt.Errorf("handler %q: %w", name, err)
		}
		deps[depName] = instance
	}

	handler, err := ctor(deps)
	if err != nil {
		slog.Error("Registry handler construction failed", "handler", name, "error", err)
		return nil, fmt.Errorf("failed to construct handler %q: %w", name, err)
	}
	if desc.Singleton {
		r.cache[name] = handler
	}
	slog.Debug("Registry resolved handler", "handler", name, "singleton", desc.Singleton)
	return handler, nil
}

// Has reports whether a handler name is declared.
func (r *Registry) Has(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.descriptors[name]
	return ok
}
