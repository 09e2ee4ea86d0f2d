// Package view renders HTML templates for View results. Templates live in
// a file tree such as the webroot; names are slash paths inside it, e.g.
// "/WEB-INF/view/customer.html".
package view

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/gravelight-studio/summer/mvc"
)

// ContentTypeHTML is written with every rendered template
const ContentTypeHTML = "text/html; charset=utf-8"

// Config holds engine configuration
type Config struct {
	Root   fs.FS            // usually os.DirFS(webroot)
	Funcs  template.FuncMap // extra template functions
	Reload bool             // parse on every request instead of caching
	Logger *zap.Logger
}

// Engine parses templates lazily and caches them by name
type Engine struct {
	root   fs.FS
	funcs  template.FuncMap
	reload bool
	cache  sync.Map // name -> *template.Template
	logger *zap.Logger
}

// New creates a template engine
func New(config Config) *Engine {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	funcs := template.FuncMap{"attr": attr}
	for name, fn := range config.Funcs {
		funcs[name] = fn
	}
	return &Engine{
		root:   config.Root,
		funcs:  funcs,
		reload: config.Reload,
		logger: config.Logger,
	}
}

// Forward executes the named template with the request attributes as its
// data. Output is buffered so a failing template writes nothing.
func (e *Engine) Forward(w http.ResponseWriter, r *http.Request, name string) error {
	tmpl, err := e.lookup(name)
	if err != nil {
		return err
	}

	attrs := mvc.Attributes(r.Context())
	if attrs == nil {
		attrs = map[string]any{}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, attrs); err != nil {
		return fmt.Errorf("execute template %s: %w", name, err)
	}

	w.Header().Set("Content-Type", ContentTypeHTML)
	if _, err := buf.WriteTo(w); err != nil {
		e.logger.Warn("Failed to write view", zap.String("template", name), zap.Error(err))
	}
	return nil
}

func (e *Engine) lookup(name string) (*template.Template, error) {
	key := strings.TrimPrefix(name, "/")

	if !e.reload {
		if cached, ok := e.cache.Load(key); ok {
			return cached.(*template.Template), nil
		}
	}

	if e.root == nil {
		return nil, fmt.Errorf("template %s: no template root configured", name)
	}

	src, err := fs.ReadFile(e.root, key)
	if err != nil {
		return nil, fmt.Errorf("read template %s: %w", name, err)
	}

	tmpl, err := template.New(key).Funcs(e.funcs).Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}

	if !e.reload {
		actual, _ := e.cache.LoadOrStore(key, tmpl)
		tmpl = actual.(*template.Template)
	}
	e.logger.Debug("Template loaded", zap.String("template", key))

	return tmpl, nil
}

// attr looks key up in any string-keyed map, yielding nil for a nil map or
// a missing key where the built-in index would fail
func attr(m any, key string) any {
	v := reflect.ValueOf(m)
	if v.Kind() != reflect.Map || v.IsNil() || v.Type().Key().Kind() != reflect.String {
		return nil
	}
	found := v.MapIndex(reflect.ValueOf(key).Convert(v.Type().Key()))
	if !found.IsValid() {
		return nil
	}
	return found.Interface()
}
