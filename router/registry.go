package router

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gravelight-studio/summer/annotations"
	"github.com/gravelight-studio/summer/mvc"
)

// Descriptor identifies one routable endpoint
type Descriptor struct {
	Method     string     // lowercased HTTP method, e.g. "get"
	Path       string     // exact request path below the context path
	Controller string     // container bean name, e.g. "customer.Controller"
	Action     string     // method name, e.g. "List"
	Invoke     mvc.Action // called with the controller bean

	// Optional per-route policy, usually taken from annotations
	Auth      annotations.AuthType
	RateLimit *annotations.RateLimitConfig
	CORS      *annotations.CORSConfig
	Timeout   time.Duration
}

// Name returns "controller.action"
func (d *Descriptor) Name() string {
	return d.Controller + "." + d.Action
}

type routeKey struct {
	method string
	path   string
}

// Registry maps (method, path) pairs to descriptors. It is filled at
// startup and only read afterwards, so lookups take no locks.
type Registry struct {
	routes map[routeKey]*Descriptor
	logger *zap.Logger
}

// NewRegistry creates an empty route registry
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		routes: make(map[routeKey]*Descriptor),
		logger: logger,
	}
}

// Register adds a descriptor. Registering an existing (method, path)
// pair returns a *mvc.DuplicateRouteError.
func (r *Registry) Register(d Descriptor) error {
	d.Method = strings.ToLower(strings.TrimSpace(d.Method))
	if d.Method == "" || d.Path == "" {
		return fmt.Errorf("route %s needs a method and a path", d.Name())
	}
	if d.Invoke == nil {
		return fmt.Errorf("route %s %s has no action", d.Method, d.Path)
	}

	key := routeKey{method: d.Method, path: d.Path}
	if existing, exists := r.routes[key]; exists {
		return &mvc.DuplicateRouteError{Method: d.Method, Path: d.Path, Existing: existing.Name()}
	}

	r.routes[key] = &d
	r.logger.Debug("Route registered",
		zap.String("method", d.Method),
		zap.String("path", d.Path),
		zap.String("action", d.Name()))

	return nil
}

// Resolve returns the descriptor for method and path. The method is
// matched case-insensitively, the path exactly.
func (r *Registry) Resolve(method, path string) (*Descriptor, bool) {
	d, ok := r.routes[routeKey{method: strings.ToLower(method), path: path}]
	return d, ok
}

// Descriptors returns all descriptors ordered by path, then method
func (r *Registry) Descriptors() []*Descriptor {
	out := make([]*Descriptor, 0, len(r.routes))
	for _, d := range r.routes {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Method < out[j].Method
	})
	return out
}

// Len returns the number of registered routes
func (r *Registry) Len() int {
	return len(r.routes)
}
