package annotations

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseAnnotations(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		expected *Action
		wantErr  bool
	}{
		{
			name: "action with all annotations",
			source: `package customer

// @summer:controller
type Controller struct{}

// Create saves a new customer
// @summer:path POST /customer_create
// @summer:auth required
// @summer:ratelimit 100/hour
// @summer:timeout 30s
func (c *Controller) Create(p *mvc.Params) (mvc.Result, error) {
	return nil, nil
}
`,
			expected: &Action{
				MethodName:  "Create",
				TypeName:    "Controller",
				PackageName: "customer",
				Route: Route{
					Method: "POST",
					Path:   "/customer_create",
				},
				Auth: AuthConfig{
					Type: AuthRequired,
				},
				RateLimit: &RateLimitConfig{
					Count:  100,
					Period: time.Hour,
					Raw:    "100/hour",
				},
				Timeout: 30 * time.Second,
			},
		},
		{
			name: "value receiver",
			source: `package customer

// @summer:controller
type Controller struct{}

// @summer:path get /customer
func (c Controller) List(p *mvc.Params) (mvc.Result, error) {
	return nil, nil
}
`,
			expected: &Action{
				MethodName:  "List",
				TypeName:    "Controller",
				PackageName: "customer",
				Route: Route{
					Method: "GET",
					Path:   "/customer",
				},
				Auth: AuthConfig{
					Type: AuthNone,
				},
			},
		},
		{
			name: "optional auth",
			source: `package profile

// @summer:controller
type Controller struct{}

// Show gets user profile
// @summer:path GET /profile
// @summer:auth optional
func (c *Controller) Show(p *mvc.Params) (mvc.Result, error) {
	return nil, nil
}
`,
			expected: &Action{
				MethodName:  "Show",
				TypeName:    "Controller",
				PackageName: "profile",
				Route: Route{
					Method: "GET",
					Path:   "/profile",
				},
				Auth: AuthConfig{
					Type: AuthOptional,
				},
			},
		},
		{
			name: "cors configuration",
			source: `package public

// @summer:controller
type Controller struct{}

// @summer:path GET /public
// @summer:cors origins=*
func (c *Controller) Data(p *mvc.Params) (mvc.Result, error) {
	return nil, nil
}
`,
			expected: &Action{
				MethodName:  "Data",
				TypeName:    "Controller",
				PackageName: "public",
				Route: Route{
					Method: "GET",
					Path:   "/public",
				},
				Auth: AuthConfig{
					Type: AuthNone,
				},
				CORS: &CORSConfig{
					AllowedOrigins: []string{"*"},
					Raw:            "origins=*",
				},
			},
		},
		{
			name: "sub-second timeout",
			source: `package fast

// @summer:controller
type Controller struct{}

// @summer:path GET /ping
// @summer:timeout 250ms
func (c *Controller) Ping(p *mvc.Params) (mvc.Result, error) {
	return nil, nil
}
`,
			expected: &Action{
				MethodName:  "Ping",
				TypeName:    "Controller",
				PackageName: "fast",
				Route: Route{
					Method: "GET",
					Path:   "/ping",
				},
				Auth: AuthConfig{
					Type: AuthNone,
				},
				Timeout: 250 * time.Millisecond,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpFile := writeSource(t, tt.source)

			parser := NewParser()
			result, err := parser.ParseFile(tmpFile)

			if (err != nil) != tt.wantErr {
				t.Errorf("ParseFile() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if tt.expected == nil {
				return
			}

			if len(result.Errors) != 0 {
				t.Fatalf("Unexpected parse errors: %v", result.Errors)
			}

			if len(result.Controllers) != 1 {
				t.Fatalf("Expected 1 controller, got %d", len(result.Controllers))
			}

			if len(result.Actions) != 1 {
				t.Fatalf("Expected 1 action, got %d", len(result.Actions))
			}

			action := result.Actions[0]

			if action.MethodName != tt.expected.MethodName {
				t.Errorf("MethodName = %v, want %v", action.MethodName, tt.expected.MethodName)
			}

			if action.TypeName != tt.expected.TypeName {
				t.Errorf("TypeName = %v, want %v", action.TypeName, tt.expected.TypeName)
			}

			if action.PackageName != tt.expected.PackageName {
				t.Errorf("PackageName = %v, want %v", action.PackageName, tt.expected.PackageName)
			}

			if action.Route != tt.expected.Route {
				t.Errorf("Route = %v, want %v", action.Route, tt.expected.Route)
			}

			if action.Auth.Type != tt.expected.Auth.Type {
				t.Errorf("Auth.Type = %v, want %v", action.Auth.Type, tt.expected.Auth.Type)
			}

			if tt.expected.RateLimit != nil {
				if action.RateLimit == nil {
					t.Error("Expected RateLimit to be set")
				} else {
					if action.RateLimit.Count != tt.expected.RateLimit.Count {
						t.Errorf("RateLimit.Count = %v, want %v", action.RateLimit.Count, tt.expected.RateLimit.Count)
					}
					if action.RateLimit.Period != tt.expected.RateLimit.Period {
						t.Errorf("RateLimit.Period = %v, want %v", action.RateLimit.Period, tt.expected.RateLimit.Period)
					}
				}
			}

			if tt.expected.CORS != nil {
				if action.CORS == nil {
					t.Error("Expected CORS to be set")
				} else if len(action.CORS.AllowedOrigins) != len(tt.expected.CORS.AllowedOrigins) {
					t.Errorf("CORS origins count = %v, want %v", len(action.CORS.AllowedOrigins), len(tt.expected.CORS.AllowedOrigins))
				}
			}

			if action.Timeout != tt.expected.Timeout {
				t.Errorf("Timeout = %v, want %v", action.Timeout, tt.expected.Timeout)
			}

			controller := result.Controllers[0]
			if controller.Name() != action.Controller() {
				t.Errorf("Controller name = %v, want %v", controller.Name(), action.Controller())
			}
		})
	}
}

func TestParseFile_Errors(t *testing.T) {
	tests := []struct {
		name         string
		source       string
		wantContains string
	}{
		{
			name: "annotated plain function",
			source: `package x

// @summer:path GET /x
func Handler() {}
`,
			wantContains: "not a method",
		},
		{
			name: "unknown annotation",
			source: `package x

// @summer:controller
type C struct{}

// @summer:path GET /x
// @summer:memory 256MB
func (c *C) X() {}
`,
			wantContains: "unknown annotation type: memory",
		},
		{
			name: "controller annotation on method",
			source: `package x

type C struct{}

// @summer:controller
func (c *C) X() {}
`,
			wantContains: "belongs on a type",
		},
		{
			name: "bad timeout",
			source: `package x

// @summer:controller
type C struct{}

// @summer:path GET /x
// @summer:timeout soon
func (c *C) X() {}
`,
			wantContains: "invalid timeout format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := NewParser().ParseFile(writeSource(t, tt.source))
			if err != nil {
				t.Fatalf("ParseFile() error = %v", err)
			}

			if len(result.Errors) == 0 {
				t.Fatalf("Expected parse errors, got none")
			}

			found := false
			for _, parseErr := range result.Errors {
				if strings.Contains(parseErr.Message, tt.wantContains) {
					found = true
				}
			}
			if !found {
				t.Errorf("Expected error containing %q, got %v", tt.wantContains, result.Errors)
			}
		})
	}
}

func TestParseFile_GroupedTypeDeclaration(t *testing.T) {
	source := `package x

type (
	// @summer:controller
	Orders struct{}

	helper struct{}
)
`
	result, err := NewParser().ParseFile(writeSource(t, source))
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}

	if len(result.Controllers) != 1 || result.Controllers[0].Name() != "x.Orders" {
		t.Errorf("Controllers = %v, want [x.Orders]", result.Controllers)
	}
}

func TestParseDirectory(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"controller.go": `package shop

// @summer:controller
type Controller struct{}
`,
		"actions.go": `package shop

// @summer:path GET /orders
func (c *Controller) Orders() {}
`,
		"actions_test.go": `package shop

// @summer:path GET /ignored
func (c *Controller) Ignored() {}
`,
		"README.md": "@summer:path GET /nope",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}

	result, err := NewParser().ParseDirectory(dir)
	if err != nil {
		t.Fatalf("ParseDirectory() error = %v", err)
	}

	if len(result.Controllers) != 1 {
		t.Errorf("Expected 1 controller, got %d", len(result.Controllers))
	}
	if len(result.Actions) != 1 || result.Actions[0].Key() != "shop.Controller.Orders" {
		t.Errorf("Actions = %v, want [shop.Controller.Orders]", result.Actions)
	}

	errs := NewValidator().ValidateControllers(result.Controllers, result.Actions)
	if len(errs) != 0 {
		t.Errorf("ValidateControllers() = %v, want none", errs)
	}
}

func TestParsePathVariations(t *testing.T) {
	tests := []struct {
		name     string
		pathLine string
		expected Route
		wantErr  bool
	}{
		{
			name:     "simple path",
			pathLine: "GET /customer",
			expected: Route{Method: "GET", Path: "/customer"},
		},
		{
			name:     "lowercase method",
			pathLine: "post /customer_create",
			expected: Route{Method: "POST", Path: "/customer_create"},
		},
		{
			name:     "DELETE method",
			pathLine: "DELETE /customer_delete",
			expected: Route{Method: "DELETE", Path: "/customer_delete"},
		},
		{
			name:     "missing path",
			pathLine: "GET",
			wantErr:  true,
		},
		{
			name:     "invalid method",
			pathLine: "FETCH /customer",
			wantErr:  true,
		},
		{
			name:     "relative path",
			pathLine: "GET customer",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action := &Action{}
			parser := NewParser()

			err := parser.parsePath(action, tt.pathLine)

			if (err != nil) != tt.wantErr {
				t.Errorf("parsePath() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr && action.Route != tt.expected {
				t.Errorf("Route = %v, want %v", action.Route, tt.expected)
			}
		})
	}
}

func TestParseRateLimit(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected *RateLimitConfig
		wantErr  bool
	}{
		{
			name:     "per hour",
			value:    "100/hour",
			expected: &RateLimitConfig{Count: 100, Period: time.Hour, Raw: "100/hour"},
		},
		{
			name:     "per minute",
			value:    "60/minute",
			expected: &RateLimitConfig{Count: 60, Period: time.Minute, Raw: "60/minute"},
		},
		{
			name:     "per day",
			value:    "5/d",
			expected: &RateLimitConfig{Count: 5, Period: 24 * time.Hour, Raw: "5/d"},
		},
		{
			name:    "invalid format",
			value:   "100",
			wantErr: true,
		},
		{
			name:    "invalid count",
			value:   "abc/hour",
			wantErr: true,
		},
		{
			name:    "invalid period",
			value:   "10/fortnight",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action := &Action{}
			parser := NewParser()

			err := parser.parseRateLimit(action, tt.value)

			if (err != nil) != tt.wantErr {
				t.Errorf("parseRateLimit() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr && tt.expected != nil {
				if *action.RateLimit != *tt.expected {
					t.Errorf("RateLimit = %+v, want %+v", *action.RateLimit, *tt.expected)
				}
			}
		})
	}
}

func TestValidator(t *testing.T) {
	validator := NewValidator()

	tests := []struct {
		name          string
		action        Action
		wantErrors    int
		errorContains string
	}{
		{
			name: "valid action",
			action: Action{
				MethodName: "Test",
				Route:      Route{Method: "GET", Path: "/test"},
				Auth:       AuthConfig{Type: AuthRequired},
			},
			wantErrors: 0,
		},
		{
			name: "missing route",
			action: Action{
				MethodName: "Test",
			},
			wantErrors:    1,
			errorContains: "Missing path",
		},
		{
			name: "path parameter",
			action: Action{
				MethodName: "Test",
				Route:      Route{Method: "GET", Path: "/customer/{id}"},
			},
			wantErrors:    1,
			errorContains: "match exactly",
		},
		{
			name: "trailing slash",
			action: Action{
				MethodName: "Test",
				Route:      Route{Method: "GET", Path: "/customer/"},
			},
			wantErrors:    1,
			errorContains: "should not end",
		},
		{
			name: "zero rate limit",
			action: Action{
				MethodName: "Test",
				Route:      Route{Method: "GET", Path: "/test"},
				RateLimit:  &RateLimitConfig{Count: 0, Period: time.Minute, Raw: "0/minute"},
			},
			wantErrors:    1,
			errorContains: "must be positive",
		},
		{
			name: "bad cors origin",
			action: Action{
				MethodName: "Test",
				Route:      Route{Method: "GET", Path: "/test"},
				CORS:       &CORSConfig{AllowedOrigins: []string{"example.com"}},
			},
			wantErrors:    1,
			errorContains: "http://",
		},
		{
			name: "timeout too long",
			action: Action{
				MethodName: "Test",
				Route:      Route{Method: "GET", Path: "/test"},
				Timeout:    2 * time.Hour,
			},
			wantErrors:    1,
			errorContains: "Timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errors := validator.validateAction(tt.action)

			if len(errors) != tt.wantErrors {
				t.Errorf("validateAction() got %d errors, want %d", len(errors), tt.wantErrors)
				for _, err := range errors {
					t.Logf("  Error: %s", err.Reason)
				}
			}

			if tt.errorContains != "" && len(errors) > 0 {
				found := false
				for _, err := range errors {
					if strings.Contains(err.Reason, tt.errorContains) {
						found = true
						break
					}
				}
				if !found {
					t.Errorf("Expected error containing %q, but not found in: %v", tt.errorContains, errors)
				}
			}
		})
	}
}

func TestValidateUniquePaths(t *testing.T) {
	actions := []Action{
		{MethodName: "List", TypeName: "C", PackageName: "a", Route: Route{Method: "GET", Path: "/x"}},
		{MethodName: "Save", TypeName: "C", PackageName: "a", Route: Route{Method: "POST", Path: "/x"}},
		{MethodName: "Other", TypeName: "D", PackageName: "b", Route: Route{Method: "GET", Path: "/x"}},
	}

	errors := NewValidator().ValidateUniquePaths(actions)

	if len(errors) != 1 {
		t.Fatalf("ValidateUniquePaths() got %d errors, want 1", len(errors))
	}
	if !strings.Contains(errors[0].Reason, "a.C.List") {
		t.Errorf("Reason = %q, want mention of a.C.List", errors[0].Reason)
	}
}

func TestValidateControllers(t *testing.T) {
	controllers := []Controller{{TypeName: "C", PackageName: "a"}}
	actions := []Action{
		{MethodName: "List", TypeName: "C", PackageName: "a"},
		{MethodName: "Stray", TypeName: "Helper", PackageName: "a"},
	}

	errors := NewValidator().ValidateControllers(controllers, actions)

	if len(errors) != 1 || errors[0].Handler != "a.Helper.Stray" {
		t.Errorf("ValidateControllers() = %v, want one error for a.Helper.Stray", errors)
	}
}

func writeSource(t *testing.T, source string) string {
	t.Helper()

	tmpFile := filepath.Join(t.TempDir(), "source.go")
	if err := os.WriteFile(tmpFile, []byte(source), 0644); err != nil {
		t.Fatalf("Failed to write temp file: %v", err)
	}
	return tmpFile
}
