package annotations

import (
	"fmt"
	"strings"
	"time"
)

// maxTimeout caps @summer:timeout; longer requests belong in a job queue
const maxTimeout = time.Hour

// Validator validates parsed annotations for correctness and completeness
type Validator struct{}

// NewValidator creates a new annotation validator
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks if all actions have valid and complete annotations
func (v *Validator) Validate(actions []Action) []AnnotationError {
	var errors []AnnotationError

	for _, action := range actions {
		errors = append(errors, v.validateAction(action)...)
	}

	return errors
}

// validateAction validates a single action
func (v *Validator) validateAction(action Action) []AnnotationError {
	var errors []AnnotationError

	// Check route is set
	if action.Route.Method == "" || action.Route.Path == "" {
		errors = append(errors, AnnotationError{
			Handler:    action.Key(),
			Annotation: "@summer:path",
			Reason:     "Missing path annotation. Add @summer:path METHOD /path",
		})
	}

	if action.Route.Path != "" {
		errors = append(errors, v.validatePath(action)...)
	}

	if action.RateLimit != nil {
		errors = append(errors, v.validateRateLimit(action)...)
	}

	if action.CORS != nil {
		errors = append(errors, v.validateCORS(action)...)
	}

	if action.Timeout != 0 {
		errors = append(errors, v.validateTimeout(action)...)
	}

	return errors
}

// validatePath validates the route path format
func (v *Validator) validatePath(action Action) []AnnotationError {
	var errors []AnnotationError

	path := action.Route.Path

	if !strings.HasPrefix(path, "/") {
		errors = append(errors, AnnotationError{
			Handler:    action.Key(),
			Annotation: "@summer:path",
			Reason:     fmt.Sprintf("Path must start with '/': %s", path),
		})
	}

	if len(path) > 1 && strings.HasSuffix(path, "/") {
		errors = append(errors, AnnotationError{
			Handler:    action.Key(),
			Annotation: "@summer:path",
			Reason:     fmt.Sprintf("Path should not end with '/': %s", path),
		})
	}

	// Routes match exactly; a parameter segment would never match
	if strings.ContainsAny(path, "{}*?") {
		errors = append(errors, AnnotationError{
			Handler:    action.Key(),
			Annotation: "@summer:path",
			Reason:     fmt.Sprintf("Path parameters and wildcards are not supported, routes match exactly: %s", path),
		})
	}

	return errors
}

// validateRateLimit validates rate limiting configuration
func (v *Validator) validateRateLimit(action Action) []AnnotationError {
	var errors []AnnotationError

	if action.RateLimit.Count <= 0 {
		errors = append(errors, AnnotationError{
			Handler:    action.Key(),
			Annotation: "@summer:ratelimit",
			Reason:     fmt.Sprintf("Rate limit count must be positive, got: %d", action.RateLimit.Count),
		})
	}

	return errors
}

// validateCORS validates CORS configuration
func (v *Validator) validateCORS(action Action) []AnnotationError {
	var errors []AnnotationError

	if len(action.CORS.AllowedOrigins) == 0 {
		errors = append(errors, AnnotationError{
			Handler:    action.Key(),
			Annotation: "@summer:cors",
			Reason:     "CORS must specify at least one origin",
		})
		return errors
	}

	for _, origin := range action.CORS.AllowedOrigins {
		if origin == "*" {
			continue
		}

		if !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			errors = append(errors, AnnotationError{
				Handler:    action.Key(),
				Annotation: "@summer:cors",
				Reason:     fmt.Sprintf("CORS origin must start with http:// or https://, got: %s", origin),
			})
		}
	}

	return errors
}

// validateTimeout validates timeout configuration
func (v *Validator) validateTimeout(action Action) []AnnotationError {
	var errors []AnnotationError

	if action.Timeout < 0 || action.Timeout > maxTimeout {
		errors = append(errors, AnnotationError{
			Handler:    action.Key(),
			Annotation: "@summer:timeout",
			Reason:     fmt.Sprintf("Timeout must be between 0 and %v, got: %v", maxTimeout, action.Timeout),
		})
	}

	return errors
}

// ValidateControllers checks that every action's receiver is marked as a controller
func (v *Validator) ValidateControllers(controllers []Controller, actions []Action) []AnnotationError {
	var errors []AnnotationError

	marked := make(map[string]bool, len(controllers))
	for _, c := range controllers {
		marked[c.Name()] = true
	}

	for _, action := range actions {
		if !marked[action.Controller()] {
			errors = append(errors, AnnotationError{
				Handler:    action.Key(),
				Annotation: "@summer:controller",
				Reason:     fmt.Sprintf("Receiver type %s is not marked with @summer:controller", action.Controller()),
			})
		}
	}

	return errors
}

// ValidateUniquePaths checks if there are duplicate routes across actions
func (v *Validator) ValidateUniquePaths(actions []Action) []AnnotationError {
	var errors []AnnotationError
	seen := make(map[string]string) // method+path -> action key

	for _, action := range actions {
		key := fmt.Sprintf("%s %s", action.Route.Method, action.Route.Path)

		if existing, exists := seen[key]; exists {
			errors = append(errors, AnnotationError{
				Handler:    action.Key(),
				Annotation: "@summer:path",
				Reason:     fmt.Sprintf("Duplicate route: %s already defined in action %s", key, existing),
			})
		} else {
			seen[key] = action.Key()
		}
	}

	return errors
}
