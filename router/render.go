package router

import (
	"fmt"
	"net/http"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/gravelight-studio/summer/mvc"
)

// ContentTypeJSON is written with every Data result
const ContentTypeJSON = "application/json; charset=utf-8"

// Forwarder renders a template for the current request. Request-scoped
// attributes are available through mvc.Attributes(r.Context()).
type Forwarder interface {
	Forward(w http.ResponseWriter, r *http.Request, name string) error
}

// RendererConfig holds renderer configuration
type RendererConfig struct {
	ContextPath  string    // prefix for redirects, e.g. "/app"
	TemplatePath string    // prefix joined to relative view paths, e.g. "/WEB-INF/view/"
	Forwarder    Forwarder // nil disables views
	Logger       *zap.Logger
}

// Renderer turns an action's Result into an HTTP response
type Renderer struct {
	contextPath  string
	templatePath string
	forwarder    Forwarder
	logger       *zap.Logger
}

// NewRenderer creates a new renderer
func NewRenderer(config RendererConfig) *Renderer {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return &Renderer{
		contextPath:  strings.TrimSuffix(config.ContextPath, "/"),
		templatePath: config.TemplatePath,
		forwarder:    config.Forwarder,
		logger:       config.Logger,
	}
}

// Render writes result to w. On error nothing has been written, so the
// caller can still send an error status.
func (rn *Renderer) Render(w http.ResponseWriter, r *http.Request, result mvc.Result) error {
	switch res := result.(type) {
	case nil:
		return nil
	case mvc.Redirect:
		return rn.redirect(w, r, res.Path)
	case *mvc.Redirect:
		if res == nil {
			return nil
		}
		return rn.redirect(w, r, res.Path)
	case mvc.View:
		return rn.view(w, r, res)
	case *mvc.View:
		if res == nil {
			return nil
		}
		return rn.view(w, r, *res)
	case mvc.Data:
		return rn.data(w, res.Model)
	case *mvc.Data:
		if res == nil {
			return nil
		}
		return rn.data(w, res.Model)
	default:
		return fmt.Errorf("unsupported result type %T", result)
	}
}

// redirectTarget decides whether a view path sends the client elsewhere.
// A view path starting with "/" is a redirect, exactly like mvc.Redirect;
// this is the only place that rule lives.
func redirectTarget(viewPath string) (string, bool) {
	if strings.HasPrefix(viewPath, "/") {
		return viewPath, true
	}
	return "", false
}

func (rn *Renderer) redirect(w http.ResponseWriter, r *http.Request, target string) error {
	if !strings.HasPrefix(target, "/") {
		target = "/" + target
	}
	http.Redirect(w, r, rn.contextPath+target, http.StatusFound)
	return nil
}

func (rn *Renderer) view(w http.ResponseWriter, r *http.Request, v mvc.View) error {
	// An empty path means the action already wrote the response
	if strings.TrimSpace(v.Path) == "" {
		return nil
	}

	if target, ok := redirectTarget(v.Path); ok {
		return rn.redirect(w, r, target)
	}

	if rn.forwarder == nil {
		return fmt.Errorf("view %s: no template engine configured", v.Path)
	}

	name := path.Join(rn.templatePath, v.Path)
	req := r.WithContext(mvc.WithAttributes(r.Context(), v.Model))

	if err := rn.forwarder.Forward(w, req, name); err != nil {
		return fmt.Errorf("forward to %s: %w", name, err)
	}
	return nil
}

func (rn *Renderer) data(w http.ResponseWriter, model any) error {
	if isNilModel(model) {
		return nil
	}

	payload, err := encodeJSON(model)
	if err != nil {
		return &mvc.SerializationError{Err: err}
	}

	w.Header().Set("Content-Type", ContentTypeJSON)
	if _, err := w.Write(payload); err != nil {
		// Headers are gone; all that is left is to record it
		rn.logger.Warn("Failed to write response body", zap.Error(err))
	}
	return nil
}
