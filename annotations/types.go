package annotations

import (
	"time"
)

// Prefix starts every annotation line in a doc comment
const Prefix = "@summer:"

// AuthType indicates the authentication requirement for an action
type AuthType string

const (
	AuthRequired AuthType = "required" // Bearer token required
	AuthOptional AuthType = "optional" // Bearer token optional (check if present)
	AuthNone     AuthType = "none"     // No authentication
)

// Controller represents a type marked with @summer:controller
type Controller struct {
	TypeName    string // Go type name (e.g., "Controller")
	PackageName string // Package name (e.g., "customer")
	FilePath    string // Absolute file path
	LineNumber  int    // Line number of the type declaration
}

// Name returns the bean name the container uses for this controller
func (c Controller) Name() string {
	return c.PackageName + "." + c.TypeName
}

// Action represents a parsed controller method with its annotations
type Action struct {
	// Source code metadata
	MethodName  string // Go method name (e.g., "List")
	TypeName    string // Receiver type name (e.g., "Controller")
	PackageName string // Package name (e.g., "customer")
	FilePath    string // Absolute file path
	LineNumber  int    // Line number of method declaration

	// HTTP routing
	Route Route

	// Middleware configuration
	Auth      AuthConfig
	RateLimit *RateLimitConfig // nil if not specified
	CORS      *CORSConfig      // nil if not specified
	Timeout   time.Duration    // 0 if not specified
}

// Controller returns the bean name of the receiver type
func (a Action) Controller() string {
	return a.PackageName + "." + a.TypeName
}

// Key returns the "pkg.Type.Method" name used to find the action's code
func (a Action) Key() string {
	return a.Controller() + "." + a.MethodName
}

// Route represents an HTTP route
type Route struct {
	Method string // GET, POST, PUT, DELETE, PATCH, OPTIONS, HEAD
	Path   string // exact path, e.g. "/customer_edit"
}

// AuthConfig represents authentication configuration
type AuthConfig struct {
	Type AuthType
}

// RateLimitConfig represents rate limiting configuration
type RateLimitConfig struct {
	Count  int           // Number of requests
	Period time.Duration // Time period (e.g., 1 hour, 1 minute)
	Raw    string        // Original string (e.g., "100/hour")
}

// CORSConfig represents CORS configuration
type CORSConfig struct {
	AllowedOrigins []string // e.g., ["*"], ["https://example.com"]
	Raw            string   // Original string (e.g., "origins=*")
}

// ParsedAnnotations represents all annotations found in a directory/file
type ParsedAnnotations struct {
	Controllers []Controller
	Actions     []Action
	Errors      []ParseError
}

// ParseError represents an error encountered during parsing
type ParseError struct {
	FilePath   string
	LineNumber int
	Message    string
	Annotation string // The problematic annotation line
}

// Error implements the error interface
func (e ParseError) Error() string {
	return e.Message
}

// AnnotationError represents validation errors for annotations
type AnnotationError struct {
	Handler    string
	Annotation string
	Reason     string
}

// Error implements the error interface
func (e AnnotationError) Error() string {
	return e.Reason
}
