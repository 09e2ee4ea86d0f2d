package mvc

import (
	"context"
	"sort"
	"strconv"
)

// Params is the read-only parameter accessor handed to an action.
// One Params exists per request and is discarded when the request ends.
type Params struct {
	ctx    context.Context
	values map[string]string
}

// NewParams wraps values without copying them. Callers must not mutate
// values afterwards.
func NewParams(ctx context.Context, values map[string]string) *Params {
	if ctx == nil {
		ctx = context.Background()
	}
	if values == nil {
		values = make(map[string]string)
	}
	return &Params{ctx: ctx, values: values}
}

// Context returns the request context, including any deadline set by
// the route's timeout annotation.
func (p *Params) Context() context.Context {
	return p.ctx
}

// Get returns the raw value for key, or "" when absent
func (p *Params) Get(key string) string {
	return p.values[key]
}

// Lookup returns the raw value for key and whether it was present
func (p *Params) Lookup(key string) (string, bool) {
	v, ok := p.values[key]
	return v, ok
}

// Has reports whether key was bound
func (p *Params) Has(key string) bool {
	_, ok := p.values[key]
	return ok
}

// Int parses the value for key as a base-10 int
func (p *Params) Int(key string) (int, error) {
	raw := p.values[key]
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &CoercionError{Key: key, Value: raw, Type: "int", Err: numError(err)}
	}
	return n, nil
}

// IntDefault is Int with a fallback for absent keys. A present but
// malformed value is still an error.
func (p *Params) IntDefault(key string, def int) (int, error) {
	if !p.Has(key) {
		return def, nil
	}
	return p.Int(key)
}

// Int64 parses the value for key as a base-10 int64
func (p *Params) Int64(key string) (int64, error) {
	raw := p.values[key]
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, &CoercionError{Key: key, Value: raw, Type: "int64", Err: numError(err)}
	}
	return n, nil
}

// Float64 parses the value for key as a float64
func (p *Params) Float64(key string) (float64, error) {
	raw := p.values[key]
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &CoercionError{Key: key, Value: raw, Type: "float64", Err: numError(err)}
	}
	return f, nil
}

// Bool parses the value for key with strconv.ParseBool rules
func (p *Params) Bool(key string) (bool, error) {
	raw := p.values[key]
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, &CoercionError{Key: key, Value: raw, Type: "bool", Err: numError(err)}
	}
	return b, nil
}

// Map returns a copy of all bound parameters
func (p *Params) Map() map[string]string {
	out := make(map[string]string, len(p.values))
	for k, v := range p.values {
		out[k] = v
	}
	return out
}

// Keys returns the bound keys in sorted order
func (p *Params) Keys() []string {
	keys := make([]string, 0, len(p.values))
	for k := range p.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of bound parameters
func (p *Params) Len() int {
	return len(p.values)
}

// numError strips strconv's own wrapping so messages do not repeat the input
func numError(err error) error {
	if ne, ok := err.(*strconv.NumError); ok {
		return ne.Err
	}
	return err
}
