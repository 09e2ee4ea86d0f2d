// Package container holds the application's singleton beans.
//
// Beans are registered once at startup and looked up by name on every
// request. Names default to the bean's Go type without the pointer, for
// example "customer.Controller", which is also the name the annotation
// scanner derives for a controller type.
package container

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// LookupError is returned when no bean is registered under Name
type LookupError struct {
	Name string
}

// Error implements the error interface
func (e *LookupError) Error() string {
	return fmt.Sprintf("no bean registered for %s", e.Name)
}

// Container maps bean names to singleton instances
type Container struct {
	mu     sync.RWMutex
	beans  map[string]any
	order  []string
	logger *zap.Logger
}

// New creates an empty container
func New(logger *zap.Logger) *Container {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Container{
		beans:  make(map[string]any),
		logger: logger,
	}
}

// NameOf returns the default bean name for bean
func NameOf(bean any) string {
	t := reflect.TypeOf(bean)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return ""
	}
	return t.String()
}

// Provide registers bean under NameOf(bean)
func (c *Container) Provide(bean any) error {
	return c.ProvideNamed(NameOf(bean), bean)
}

// ProvideNamed registers bean under name. Names are unique.
func (c *Container) ProvideNamed(name string, bean any) error {
	if name == "" {
		return fmt.Errorf("bean name cannot be empty")
	}
	if bean == nil {
		return fmt.Errorf("bean %s is nil", name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.beans[name]; exists {
		return fmt.Errorf("bean %s already registered", name)
	}
	c.beans[name] = bean
	c.order = append(c.order, name)

	c.logger.Debug("Bean registered", zap.String("bean", name))
	return nil
}

// Get returns the bean registered under name
func (c *Container) Get(name string) (any, error) {
	c.mu.RLock()
	bean, ok := c.beans[name]
	c.mu.RUnlock()

	if !ok {
		return nil, &LookupError{Name: name}
	}
	return bean, nil
}

// MustGet is Get for startup code where a missing bean is a bug
func (c *Container) MustGet(name string) any {
	bean, err := c.Get(name)
	if err != nil {
		panic(err)
	}
	return bean
}

// Names returns all bean names, sorted
func (c *Container) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.beans))
	for name := range c.beans {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close closes every io.Closer bean in reverse registration order and
// empties the container.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for i := len(c.order) - 1; i >= 0; i-- {
		name := c.order[i]
		closer, ok := c.beans[name].(io.Closer)
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil {
			c.logger.Error("Failed to close bean", zap.String("bean", name), zap.Error(err))
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}

	c.beans = make(map[string]any)
	c.order = nil
	return errors.Join(errs...)
}
