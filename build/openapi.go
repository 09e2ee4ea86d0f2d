// Package build derives artifacts from the scanned route table. Currently
// that is an OpenAPI 3.0 document describing every mapped action.
package build

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/gravelight-studio/summer/annotations"
)

// Config holds generator configuration
type Config struct {
	Actions     []annotations.Action
	Title       string // defaults to "Summer API"
	Version     string // defaults to "1.0.0"
	ContextPath string // becomes the server url
	Logger      *zap.Logger
}

// OpenAPIGenerator renders the route table as an OpenAPI document
type OpenAPIGenerator struct {
	actions     []annotations.Action
	title       string
	version     string
	contextPath string
	logger      *zap.Logger
}

// Document is the subset of OpenAPI 3.0 the generator emits
type Document struct {
	OpenAPI    string                           `yaml:"openapi"`
	Info       Info                             `yaml:"info"`
	Servers    []Server                         `yaml:"servers,omitempty"`
	Tags       []Tag                            `yaml:"tags,omitempty"`
	Paths      map[string]map[string]*Operation `yaml:"paths"`
	Components *Components                      `yaml:"components,omitempty"`
}

// Info names and versions the API
type Info struct {
	Title   string `yaml:"title"`
	Version string `yaml:"version"`
}

// Server is a base URL; the context path when one is configured
type Server struct {
	URL string `yaml:"url"`
}

// Tag groups operations by controller package
type Tag struct {
	Name string `yaml:"name"`
}

// Operation is one method on a path. The x-summer-* extensions carry the
// middleware annotations.
type Operation struct {
	OperationID string                `yaml:"operationId"`
	Summary     string                `yaml:"summary"`
	Tags        []string              `yaml:"tags,omitempty"`
	Security    []map[string][]string `yaml:"security,omitempty"`
	Responses   map[string]Response   `yaml:"responses"`
	RateLimit   string                `yaml:"x-summer-ratelimit,omitempty"`
	CORS        []string              `yaml:"x-summer-cors,omitempty"`
	Timeout     string                `yaml:"x-summer-timeout,omitempty"`
}

// Response describes one status code of an operation
type Response struct {
	Description string `yaml:"description"`
}

// Components holds the shared security schemes
type Components struct {
	SecuritySchemes map[string]SecurityScheme `yaml:"securitySchemes"`
}

// SecurityScheme describes how a bearer token is sent
type SecurityScheme struct {
	Type   string `yaml:"type"`
	Scheme string `yaml:"scheme"`
}

// NewOpenAPIGenerator creates a generator for the given actions
func NewOpenAPIGenerator(config Config) *OpenAPIGenerator {
	if config.Title == "" {
		config.Title = "Summer API"
	}
	if config.Version == "" {
		config.Version = "1.0.0"
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return &OpenAPIGenerator{
		actions:     config.Actions,
		title:       config.Title,
		version:     config.Version,
		contextPath: strings.TrimSuffix(config.ContextPath, "/"),
		logger:      config.Logger,
	}
}

// Document builds the OpenAPI document
func (g *OpenAPIGenerator) Document() Document {
	doc := Document{
		OpenAPI: "3.0.3",
		Info:    Info{Title: g.title, Version: g.version},
		Paths:   make(map[string]map[string]*Operation),
	}
	if g.contextPath != "" {
		doc.Servers = []Server{{URL: g.contextPath}}
	}

	tags := make(map[string]struct{})
	needsAuth := false

	for _, action := range g.actions {
		path := action.Route.Path
		if doc.Paths[path] == nil {
			doc.Paths[path] = make(map[string]*Operation)
		}

		op := &Operation{
			OperationID: action.Key(),
			Summary:     fmt.Sprintf("%s %s", action.Route.Method, action.Route.Path),
			Tags:        []string{action.PackageName},
			Responses:   buildResponses(action),
		}
		if requiresAuth(action) {
			op.Security = []map[string][]string{{"bearerAuth": {}}}
			needsAuth = true
		}
		if action.RateLimit != nil {
			op.RateLimit = action.RateLimit.Raw
		}
		if action.CORS != nil {
			op.CORS = action.CORS.AllowedOrigins
		}
		if action.Timeout > 0 {
			op.Timeout = action.Timeout.String()
		}

		doc.Paths[path][strings.ToLower(action.Route.Method)] = op
		tags[action.PackageName] = struct{}{}
	}

	for name := range tags {
		doc.Tags = append(doc.Tags, Tag{Name: name})
	}
	sort.Slice(doc.Tags, func(i, j int) bool {
		return doc.Tags[i].Name < doc.Tags[j].Name
	})

	if needsAuth {
		doc.Components = &Components{
			SecuritySchemes: map[string]SecurityScheme{
				"bearerAuth": {Type: "http", Scheme: "bearer"},
			},
		}
	}

	return doc
}

// Write encodes the document as YAML
func (g *OpenAPIGenerator) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(g.Document()); err != nil {
		return fmt.Errorf("failed to encode OpenAPI document: %w", err)
	}
	return enc.Close()
}

// WriteFile writes the document to path, creating parent directories
func (g *OpenAPIGenerator) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := g.Write(file); err != nil {
		return err
	}

	g.logger.Info("Generated OpenAPI document",
		zap.String("file", path),
		zap.Int("actions", len(g.actions)))
	return nil
}

// requiresAuth reports whether the action carries a bearer token check.
// Optional auth is documented too; the middleware decides what to do
// without a token.
func requiresAuth(action annotations.Action) bool {
	return action.Auth.Type != "" && action.Auth.Type != annotations.AuthNone
}

func buildResponses(action annotations.Action) map[string]Response {
	responses := map[string]Response{
		"200": {Description: "Rendered view or JSON data"},
		"302": {Description: "Redirect"},
		"500": {Description: "Internal server error"},
	}

	if action.Route.Method != "GET" && action.Route.Method != "HEAD" {
		responses["400"] = Response{Description: "Unreadable request body"}
		responses["413"] = Response{Description: "Request body too large"}
	}
	if action.Auth.Type == annotations.AuthRequired {
		responses["401"] = Response{Description: "Missing or invalid bearer token"}
	}
	if action.RateLimit != nil {
		responses["429"] = Response{Description: "Too many requests"}
	}

	return responses
}
