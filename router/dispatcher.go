package router

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/gravelight-studio/summer/mvc"
)

// DefaultMaxBodyBytes bounds request bodies when no limit is configured
const DefaultMaxBodyBytes int64 = 1 << 20

// Beans supplies controller instances by name
type Beans interface {
	Get(name string) (any, error)
}

// DispatcherConfig holds dispatcher configuration
type DispatcherConfig struct {
	Registry     *Registry
	Beans        Beans
	Renderer     *Renderer
	ContextPath  string // stripped from request paths before lookup
	MaxBodyBytes int64  // 0 means DefaultMaxBodyBytes
	Limiter      Limiter
	Logger       *zap.Logger
}

// Dispatcher is the front controller: every request below the context
// path goes through ServeHTTP, which resolves, binds, invokes and renders.
type Dispatcher struct {
	registry     *Registry
	beans        Beans
	renderer     *Renderer
	contextPath  string
	maxBodyBytes int64
	chains       map[*Descriptor]http.Handler
	preflights   map[*Descriptor]http.Handler
	logger       *zap.Logger
}

type dispatchKey struct{}

// NewDispatcher builds a dispatcher. Every descriptor's controller must
// already be in beans; a missing one fails here rather than per request.
func NewDispatcher(config DispatcherConfig) (*Dispatcher, error) {
	if config.Registry == nil {
		return nil, errors.New("dispatcher needs a route registry")
	}
	if config.Beans == nil {
		return nil, errors.New("dispatcher needs a bean container")
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.Renderer == nil {
		config.Renderer = NewRenderer(RendererConfig{ContextPath: config.ContextPath, Logger: config.Logger})
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultMaxBodyBytes
	}

	d := &Dispatcher{
		registry:     config.Registry,
		beans:        config.Beans,
		renderer:     config.Renderer,
		contextPath:  strings.TrimSuffix(config.ContextPath, "/"),
		maxBodyBytes: config.MaxBodyBytes,
		chains:       make(map[*Descriptor]http.Handler),
		preflights:   make(map[*Descriptor]http.Handler),
		logger:       config.Logger,
	}

	for _, desc := range config.Registry.Descriptors() {
		if desc.Controller != "" {
			if _, err := config.Beans.Get(desc.Controller); err != nil {
				return nil, fmt.Errorf("route %s %s: %w", strings.ToUpper(desc.Method), desc.Path, err)
			}
		}
		middlewares := buildMiddlewareChain(desc, config.Limiter, config.Logger)
		d.chains[desc] = applyMiddleware(http.HandlerFunc(d.invoke), middlewares)
		if desc.CORS != nil {
			d.preflights[desc] = CORSMiddleware(desc.CORS.AllowedOrigins)(http.HandlerFunc(notFound))
		}
	}

	return d, nil
}

// ServeHTTP implements http.Handler
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := d.routePath(r.URL.Path)

	desc, ok := d.registry.Resolve(r.Method, path)
	if !ok {
		if preflight, found := d.preflight(r, path); found {
			preflight.ServeHTTP(w, r)
			return
		}
		d.logger.Debug("No route",
			zap.String("method", r.Method),
			zap.String("path", path),
			zap.String("request_id", GetRequestID(r.Context())))
		notFound(w, r)
		return
	}

	chain, ok := d.chains[desc]
	if !ok {
		// registered after the dispatcher was built
		chain = http.HandlerFunc(d.invoke)
	}

	ctx := context.WithValue(r.Context(), dispatchKey{}, desc)
	chain.ServeHTTP(w, r.WithContext(ctx))
}

// preflight finds the CORS handler answering an OPTIONS preflight. The
// route named by Access-Control-Request-Method wins over other routes on
// the same path.
func (d *Dispatcher) preflight(r *http.Request, path string) (http.Handler, bool) {
	requested := r.Header.Get("Access-Control-Request-Method")
	if r.Method != http.MethodOptions || requested == "" {
		return nil, false
	}

	if desc, ok := d.registry.Resolve(requested, path); ok && desc.CORS != nil {
		h, found := d.preflights[desc]
		return h, found
	}
	for _, desc := range d.registry.Descriptors() {
		if desc.Path != path || desc.CORS == nil {
			continue
		}
		if h, found := d.preflights[desc]; found {
			return h, true
		}
	}
	return nil, false
}

// routePath strips the context path at a segment boundary and guarantees
// a leading "/"
func (d *Dispatcher) routePath(p string) string {
	if d.contextPath != "" {
		if rest, ok := strings.CutPrefix(p, d.contextPath); ok && (rest == "" || rest[0] == '/') {
			p = rest
		}
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

// invoke runs at the end of the route's middleware chain
func (d *Dispatcher) invoke(w http.ResponseWriter, r *http.Request) {
	desc := r.Context().Value(dispatchKey{}).(*Descriptor)
	requestID := GetRequestID(r.Context())

	var bean any
	if desc.Controller != "" {
		var err error
		bean, err = d.beans.Get(desc.Controller)
		if err != nil {
			d.logger.Error("Controller lookup failed",
				zap.String("controller", desc.Controller),
				zap.String("request_id", requestID),
				zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, d.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Unreadable request body")
		return
	}

	params, skipped := mvc.Bind(r.Context(), r.URL.Query(), body)
	for _, fragment := range skipped {
		d.logger.Debug("Skipped body fragment",
			zap.String("action", desc.Name()),
			zap.String("fragment", fragment.Fragment))
	}

	result, err := d.call(desc, bean, params)
	if err != nil {
		d.logger.Error("Action failed",
			zap.String("action", desc.Name()),
			zap.String("request_id", requestID),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if err := d.renderer.Render(w, r, result); err != nil {
		d.logger.Error("Render failed",
			zap.String("action", desc.Name()),
			zap.String("request_id", requestID),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// call invokes the action, converting both returned errors and panics
// into *mvc.InvocationError
func (d *Dispatcher) call(desc *Descriptor, bean any, params *mvc.Params) (result mvc.Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			err = &mvc.InvocationError{Controller: desc.Controller, Action: desc.Action, Panic: rec}
		}
	}()

	result, err = desc.Invoke(bean, params)
	if err != nil {
		return nil, &mvc.InvocationError{Controller: desc.Controller, Action: desc.Action, Err: err}
	}
	return result, nil
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, mvc.ErrRouteNotFound.Error())
}

// writeError writes {"error": message} with the given status
func writeError(w http.ResponseWriter, status int, message string) {
	payload, err := json.ConfigCompatibleWithStandardLibrary.Marshal(map[string]string{"error": message})
	if err != nil {
		http.Error(w, message, status)
		return
	}
	w.Header().Set("Content-Type", ContentTypeJSON)
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}
