package annotations

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Parser handles parsing of Go source files for annotations
type Parser struct {
	fset *token.FileSet
}

// NewParser creates a new annotation parser
func NewParser() *Parser {
	return &Parser{
		fset: token.NewFileSet(),
	}
}

// ParseDirectory parses all Go files in a directory recursively
func (p *Parser) ParseDirectory(dir string) (*ParsedAnnotations, error) {
	result := &ParsedAnnotations{
		Controllers: make([]Controller, 0),
		Actions:     make([]Action, 0),
		Errors:      make([]ParseError, 0),
	}

	// Walk the directory tree
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		// Skip directories and non-Go files
		if info.IsDir() || !strings.HasSuffix(path, ".go") {
			return nil
		}

		// Skip test files
		if strings.HasSuffix(path, "_test.go") {
			return nil
		}

		fileResult, err := p.ParseFile(path)
		if err != nil {
			result.Errors = append(result.Errors, ParseError{
				FilePath: path,
				Message:  fmt.Sprintf("Failed to parse file: %v", err),
			})
			return nil // Continue parsing other files
		}

		result.Controllers = append(result.Controllers, fileResult.Controllers...)
		result.Actions = append(result.Actions, fileResult.Actions...)
		result.Errors = append(result.Errors, fileResult.Errors...)

		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	return result, nil
}

// ParseFile parses a single Go file for annotations
func (p *Parser) ParseFile(filePath string) (*ParsedAnnotations, error) {
	result := &ParsedAnnotations{
		Controllers: make([]Controller, 0),
		Actions:     make([]Action, 0),
		Errors:      make([]ParseError, 0),
	}

	file, err := parser.ParseFile(p.fset, filePath, nil, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("failed to parse file: %w", err)
	}

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		absPath = filePath
	}

	packageName := file.Name.Name

	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.GenDecl:
			if d.Tok != token.TYPE {
				continue
			}
			for _, spec := range d.Specs {
				typeSpec := spec.(*ast.TypeSpec)

				// A lone type declaration carries its comment on the GenDecl
				doc := typeSpec.Doc
				if doc == nil && len(d.Specs) == 1 {
					doc = d.Doc
				}
				if !hasControllerAnnotation(doc) {
					continue
				}

				result.Controllers = append(result.Controllers, Controller{
					TypeName:    typeSpec.Name.Name,
					PackageName: packageName,
					FilePath:    absPath,
					LineNumber:  p.fset.Position(typeSpec.Pos()).Line,
				})
			}

		case *ast.FuncDecl:
			if d.Doc == nil {
				continue
			}

			line := p.fset.Position(d.Pos()).Line

			// Actions are methods; plain functions cannot be looked up in the container
			if d.Recv == nil || len(d.Recv.List) == 0 {
				if hasAnnotation(d.Doc) {
					result.Errors = append(result.Errors, ParseError{
						FilePath:   absPath,
						LineNumber: line,
						Message:    fmt.Sprintf("Annotated function %s is not a method of a controller type", d.Name.Name),
					})
				}
				continue
			}

			action, parseErrs := p.parseAnnotations(d.Doc, d.Name.Name, receiverTypeName(d.Recv.List[0].Type), packageName, absPath, line)
			if action != nil {
				result.Actions = append(result.Actions, *action)
			}
			result.Errors = append(result.Errors, parseErrs...)
		}
	}

	return result, nil
}

// parseAnnotations extracts @summer:* annotations from a method's comment group
func (p *Parser) parseAnnotations(doc *ast.CommentGroup, methodName, typeName, packageName, filePath string, lineNumber int) (*Action, []ParseError) {
	action := &Action{
		MethodName:  methodName,
		TypeName:    typeName,
		PackageName: packageName,
		FilePath:    filePath,
		LineNumber:  lineNumber,
		Auth: AuthConfig{
			Type: AuthNone, // Default to no auth
		},
	}

	var errors []ParseError
	hasAnnotation := false

	for _, text := range annotationLines(doc) {
		hasAnnotation = true

		annotationType := strings.TrimPrefix(text, Prefix)
		var annotationValue string

		// Split annotation type and value
		if spaceIdx := strings.Index(annotationType, " "); spaceIdx > 0 {
			annotationValue = strings.TrimSpace(annotationType[spaceIdx+1:])
			annotationType = annotationType[:spaceIdx]
		}

		var err error
		switch annotationType {
		case "path":
			err = p.parsePath(action, annotationValue)
		case "auth":
			err = p.parseAuth(action, annotationValue)
		case "ratelimit":
			err = p.parseRateLimit(action, annotationValue)
		case "cors":
			err = p.parseCORS(action, annotationValue)
		case "timeout":
			err = p.parseTimeout(action, annotationValue)
		case "controller":
			err = fmt.Errorf("@summer:controller belongs on a type, not on method %s", methodName)
		default:
			err = fmt.Errorf("unknown annotation type: %s", annotationType)
		}

		if err != nil {
			errors = append(errors, ParseError{
				FilePath:   filePath,
				LineNumber: lineNumber,
				Message:    fmt.Sprintf("Invalid %s annotation: %v", annotationType, err),
				Annotation: text,
			})
		}
	}

	// If no annotations found, this is a plain method
	if !hasAnnotation {
		return nil, errors
	}

	return action, errors
}

// parsePath parses @summer:path METHOD /path/to/resource
func (p *Parser) parsePath(action *Action, value string) error {
	parts := strings.SplitN(value, " ", 2)
	if len(parts) != 2 {
		return fmt.Errorf("path must be in format 'METHOD /path', got: %s", value)
	}

	method := strings.ToUpper(strings.TrimSpace(parts[0]))
	path := strings.TrimSpace(parts[1])

	validMethods := map[string]bool{
		"GET": true, "POST": true, "PUT": true, "DELETE": true,
		"PATCH": true, "OPTIONS": true, "HEAD": true,
	}
	if !validMethods[method] {
		return fmt.Errorf("invalid HTTP method: %s", method)
	}

	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("path must start with /, got: %s", path)
	}

	action.Route = Route{
		Method: method,
		Path:   path,
	}

	return nil
}

// parseAuth parses @summer:auth required|optional|none
func (p *Parser) parseAuth(action *Action, value string) error {
	value = strings.ToLower(strings.TrimSpace(value))

	switch value {
	case "required":
		action.Auth.Type = AuthRequired
	case "optional":
		action.Auth.Type = AuthOptional
	case "none":
		action.Auth.Type = AuthNone
	default:
		return fmt.Errorf("auth must be 'required', 'optional', or 'none', got: %s", value)
	}

	return nil
}

// parseRateLimit parses @summer:ratelimit 100/hour
func (p *Parser) parseRateLimit(action *Action, value string) error {
	parts := strings.Split(value, "/")
	if len(parts) != 2 {
		return fmt.Errorf("ratelimit must be in format 'count/period', got: %s", value)
	}

	var count int
	if _, err := fmt.Sscanf(parts[0], "%d", &count); err != nil {
		return fmt.Errorf("invalid count in ratelimit: %s", parts[0])
	}

	var period time.Duration
	switch strings.ToLower(strings.TrimSpace(parts[1])) {
	case "second", "sec", "s":
		period = time.Second
	case "minute", "min", "m":
		period = time.Minute
	case "hour", "hr", "h":
		period = time.Hour
	case "day", "d":
		period = 24 * time.Hour
	default:
		return fmt.Errorf("invalid period in ratelimit: %s (use second/minute/hour/day)", parts[1])
	}

	action.RateLimit = &RateLimitConfig{
		Count:  count,
		Period: period,
		Raw:    value,
	}

	return nil
}

// parseCORS parses @summer:cors origins=*
func (p *Parser) parseCORS(action *Action, value string) error {
	if !strings.HasPrefix(value, "origins=") {
		return fmt.Errorf("cors must be in format 'origins=*' or 'origins=url1,url2', got: %s", value)
	}

	originsStr := strings.TrimPrefix(value, "origins=")
	var origins []string

	if originsStr == "*" {
		origins = []string{"*"}
	} else {
		origins = strings.Split(originsStr, ",")
		for i, origin := range origins {
			origins[i] = strings.TrimSpace(origin)
		}
	}

	action.CORS = &CORSConfig{
		AllowedOrigins: origins,
		Raw:            value,
	}

	return nil
}

// parseTimeout parses @summer:timeout 30s
func (p *Parser) parseTimeout(action *Action, value string) error {
	timeout, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("invalid timeout format: %s (use format like '500ms', '30s', '5m')", value)
	}

	action.Timeout = timeout
	return nil
}

// annotationLines returns the @summer: lines of a comment group with the
// comment markers removed
func annotationLines(doc *ast.CommentGroup) []string {
	if doc == nil {
		return nil
	}

	var lines []string
	for _, comment := range doc.List {
		text := strings.TrimSpace(comment.Text)

		// Remove comment markers
		text = strings.TrimPrefix(text, "//")
		text = strings.TrimPrefix(text, "/*")
		text = strings.TrimSuffix(text, "*/")
		text = strings.TrimSpace(text)

		if strings.HasPrefix(text, Prefix) {
			lines = append(lines, text)
		}
	}
	return lines
}

func hasAnnotation(doc *ast.CommentGroup) bool {
	return len(annotationLines(doc)) > 0
}

func hasControllerAnnotation(doc *ast.CommentGroup) bool {
	for _, line := range annotationLines(doc) {
		if strings.TrimSpace(strings.TrimPrefix(line, Prefix)) == "controller" {
			return true
		}
	}
	return false
}

// receiverTypeName returns "T" for receivers of type T or *T
func receiverTypeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return receiverTypeName(t.X)
	case *ast.Ident:
		return t.Name
	case *ast.IndexExpr:
		return receiverTypeName(t.X)
	case *ast.IndexListExpr:
		return receiverTypeName(t.X)
	}
	return ""
}
