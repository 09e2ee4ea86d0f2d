package mvc

// Result is what an action returns. It is implemented only by Redirect,
// View and Data; a nil Result means the action wrote the response itself.
type Result interface {
	result()
}

// Redirect sends the client to Path, an absolute path inside the application.
// The router prefixes it with the configured context path.
type Redirect struct {
	Path string
}

// View forwards to a template. Path is relative to the template root.
// A Path starting with "/" is rendered exactly like a Redirect and an
// empty Path renders nothing.
type View struct {
	Path  string
	Model map[string]any
}

// Data is serialized to JSON as the response body. A nil Model writes no body.
type Data struct {
	Model any
}

func (Redirect) result() {}
func (View) result()     {}
func (Data) result()     {}

// NewView returns a View with an empty, writable model
func NewView(path string) *View {
	return &View{Path: path, Model: make(map[string]any)}
}

// With adds a model entry and returns the view for chaining
func (v *View) With(key string, value any) *View {
	if v.Model == nil {
		v.Model = make(map[string]any)
	}
	v.Model[key] = value
	return v
}
