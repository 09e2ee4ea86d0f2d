package mvc

import "fmt"

// Action is a controller method bound to its receiver at dispatch time.
// bean is the controller instance supplied by the container.
type Action func(bean any, p *Params) (Result, error)

// Method adapts a method expression such as (*Controller).List into an
// Action. The bean is asserted to T on every call.
func Method[T any](fn func(T, *Params) (Result, error)) Action {
	return func(bean any, p *Params) (Result, error) {
		target, ok := bean.(T)
		if !ok {
			var zero T
			return nil, fmt.Errorf("bean %T is not a %T", bean, zero)
		}
		return fn(target, p)
	}
}

// Func adapts a plain function that needs no controller instance
func Func(fn func(*Params) (Result, error)) Action {
	return func(_ any, p *Params) (Result, error) {
		return fn(p)
	}
}
