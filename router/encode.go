package router

import (
	"errors"
	"reflect"

	json "github.com/json-iterator/go"
)

var errCycle = errors.New("model contains a reference cycle")

// encodeJSON serializes model with the standard library's conventions
// (sorted map keys, HTML escaping). Reference cycles are rejected up front
// because the encoder would recurse until the stack overflows.
func encodeJSON(model any) ([]byte, error) {
	if err := checkAcyclic(reflect.ValueOf(model), make(map[visit]bool)); err != nil {
		return nil, err
	}
	return json.ConfigCompatibleWithStandardLibrary.Marshal(model)
}

// visit identifies a reference. A slice and its first element, or a struct
// and its first field, share an address, so the type and length are part
// of the key.
type visit struct {
	ptr uintptr
	typ reflect.Type
	len int
}

// checkAcyclic walks the exported value graph; visiting holds the
// references on the current path only.
func checkAcyclic(v reflect.Value, visiting map[visit]bool) error {
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice:
		if v.IsNil() || (v.Kind() == reflect.Slice && v.Len() == 0) {
			return nil
		}
		ref := visit{ptr: v.Pointer(), typ: v.Type()}
		if v.Kind() == reflect.Slice {
			ref.len = v.Len()
		}
		if visiting[ref] {
			return errCycle
		}
		visiting[ref] = true
		defer delete(visiting, ref)

		switch v.Kind() {
		case reflect.Pointer:
			return checkAcyclic(v.Elem(), visiting)
		case reflect.Map:
			iter := v.MapRange()
			for iter.Next() {
				if err := checkAcyclic(iter.Value(), visiting); err != nil {
					return err
				}
			}
		default:
			for i := 0; i < v.Len(); i++ {
				if err := checkAcyclic(v.Index(i), visiting); err != nil {
					return err
				}
			}
		}

	case reflect.Interface:
		if !v.IsNil() {
			return checkAcyclic(v.Elem(), visiting)
		}

	case reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if err := checkAcyclic(v.Index(i), visiting); err != nil {
				return err
			}
		}

	case reflect.Struct:
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			if !t.Field(i).IsExported() {
				continue
			}
			if err := checkAcyclic(v.Field(i), visiting); err != nil {
				return err
			}
		}
	}

	return nil
}

// isNilModel treats typed nil pointers, maps, slices and interfaces as "no model"
func isNilModel(model any) bool {
	if model == nil {
		return true
	}
	v := reflect.ValueOf(model)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return v.IsNil()
	}
	return false
}
