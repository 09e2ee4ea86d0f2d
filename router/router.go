package router

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzhttp"
	"go.uber.org/zap"

	"github.com/gravelight-studio/summer/annotations"
)

// Router wraps a chi router around the dispatcher. Routes come from
// @summer annotations in ControllersDir plus anything passed to Register.
type Router struct {
	chi.Router
	config     Config
	actions    []annotations.Action
	registry   *Registry
	dispatcher *Dispatcher
	logger     *zap.Logger
}

// Config holds router configuration
type Config struct {
	ControllersDir string    // Directory to scan for controllers; empty skips the scan
	Beans          Beans     // Controller instances
	Forwarder      Forwarder // Template engine for View results
	ContextPath    string    // e.g. "/app"; empty serves from the root
	TemplatePath   string    // e.g. "/WEB-INF/view/"
	AssetPath      string    // e.g. "/asset/"; empty disables static files
	WebRoot        string    // Directory holding the asset and template trees
	AllowedOrigins []string  // Global CORS origins; empty disables CORS
	MaxBodyBytes   int64
	Compress       bool    // gzip responses
	Limiter        Limiter // Backs @summer:ratelimit; nil disables rate limiting
	Logger         *zap.Logger
}

// New scans and validates controller annotations. Validation errors are
// fatal; nothing is routed until RegisterActions.
func New(config Config) (*Router, error) {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	config.ContextPath = strings.TrimSuffix(config.ContextPath, "/")

	r := &Router{
		Router:   chi.NewRouter(),
		config:   config,
		registry: NewRegistry(config.Logger),
		logger:   config.Logger,
	}

	if config.ControllersDir == "" {
		return r, nil
	}

	actions, err := ScanControllers(config.ControllersDir, config.Logger)
	if err != nil {
		return nil, err
	}
	r.actions = actions

	return r, nil
}

// ScanControllers parses and validates every annotated controller below dir
func ScanControllers(dir string, logger *zap.Logger) ([]annotations.Action, error) {
	parser := annotations.NewParser()
	result, err := parser.ParseDirectory(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to parse controllers: %w", err)
	}

	if len(result.Errors) > 0 {
		for _, parseErr := range result.Errors {
			logger.Error("Parse error",
				zap.String("file", parseErr.FilePath),
				zap.Int("line", parseErr.LineNumber),
				zap.String("annotation", parseErr.Annotation),
				zap.String("message", parseErr.Message))
		}
		return nil, fmt.Errorf("annotation parsing failed with %d errors", len(result.Errors))
	}

	validator := annotations.NewValidator()
	validationErrors := validator.Validate(result.Actions)
	validationErrors = append(validationErrors, validator.ValidateUniquePaths(result.Actions)...)
	validationErrors = append(validationErrors, validator.ValidateControllers(result.Controllers, result.Actions)...)

	if len(validationErrors) > 0 {
		for _, err := range validationErrors {
			logger.Error("Validation error",
				zap.String("action", err.Handler),
				zap.String("annotation", err.Annotation),
				zap.String("reason", err.Reason))
		}
		return nil, fmt.Errorf("controller validation failed with %d errors", len(validationErrors))
	}

	logger.Info("Controllers parsed and validated",
		zap.Int("controllers", len(result.Controllers)),
		zap.Int("actions", len(result.Actions)))

	return result.Actions, nil
}

// Register adds a route that has no annotation. It must be called before
// RegisterActions.
func (r *Router) Register(d Descriptor) error {
	if r.dispatcher != nil {
		return fmt.Errorf("route %s registered after the dispatcher was built", d.Name())
	}
	return r.registry.Register(d)
}

// RegisterActions binds every scanned action to its code, builds the
// dispatcher and mounts it below the context path.
func (r *Router) RegisterActions(actions *ActionRegistry) error {
	for _, action := range r.actions {
		invoke, err := actions.GetAction(action.Controller(), action.MethodName)
		if err != nil {
			r.logger.Error("Action not found in registry",
				zap.String("controller", action.Controller()),
				zap.String("method", action.MethodName),
				zap.Error(err))
			return fmt.Errorf("action %s not found: %w", action.Key(), err)
		}

		err = r.registry.Register(Descriptor{
			Method:     action.Route.Method,
			Path:       action.Route.Path,
			Controller: action.Controller(),
			Action:     action.MethodName,
			Invoke:     invoke,
			Auth:       action.Auth.Type,
			RateLimit:  action.RateLimit,
			CORS:       action.CORS,
			Timeout:    action.Timeout,
		})
		if err != nil {
			return err
		}
	}

	renderer := NewRenderer(RendererConfig{
		ContextPath:  r.config.ContextPath,
		TemplatePath: r.config.TemplatePath,
		Forwarder:    r.config.Forwarder,
		Logger:       r.logger,
	})

	dispatcher, err := NewDispatcher(DispatcherConfig{
		Registry:     r.registry,
		Beans:        r.config.Beans,
		Renderer:     renderer,
		ContextPath:  r.config.ContextPath,
		MaxBodyBytes: r.config.MaxBodyBytes,
		Limiter:      r.config.Limiter,
		Logger:       r.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to build dispatcher: %w", err)
	}
	r.dispatcher = dispatcher

	r.Use(RequestIDMiddleware)
	r.Use(middleware.RealIP)
	r.Use(AccessLogMiddleware(r.logger))
	r.Use(middleware.Recoverer)
	if len(r.config.AllowedOrigins) > 0 {
		r.Use(CORSMiddleware(r.config.AllowedOrigins))
	}
	if r.config.Compress {
		r.Use(func(next http.Handler) http.Handler {
			return gzhttp.GzipHandler(next)
		})
	}

	if r.config.AssetPath != "" && r.config.WebRoot != "" {
		assetDir := strings.Trim(r.config.AssetPath, "/")
		assets := r.config.ContextPath + "/" + assetDir
		// Rooted at the asset directory so ".." never reaches templates
		root := filepath.Join(r.config.WebRoot, filepath.FromSlash(assetDir))
		files := http.StripPrefix(assets, http.FileServer(http.Dir(root)))
		r.Handle(assets+"/*", files)
		r.logger.Info("Serving static files",
			zap.String("path", assets),
			zap.String("root", root))
	}

	r.Handle(r.config.ContextPath+"/*", dispatcher)
	if r.config.ContextPath != "" {
		r.Handle(r.config.ContextPath, dispatcher)
	}

	for _, d := range r.registry.Descriptors() {
		r.logger.Info("Route mapped",
			zap.String("method", strings.ToUpper(d.Method)),
			zap.String("path", r.config.ContextPath+d.Path),
			zap.String("action", d.Name()))
	}
	r.logger.Info("All actions registered successfully",
		zap.Int("count", r.registry.Len()))

	return nil
}

// Actions returns the list of scanned actions
func (r *Router) Actions() []annotations.Action {
	return r.actions
}

// Registry returns the route registry
func (r *Router) Registry() *Registry {
	return r.registry
}
