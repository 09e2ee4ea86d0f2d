package database

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// Tabler lets an entity choose its table name
type Tabler interface {
	TableName() string
}

// TableName returns the table for entity type T: its TableName method if
// it has one, otherwise the bare type name ("Customer").
func TableName[T any]() string {
	var zero T
	if t, ok := any(zero).(Tabler); ok {
		return t.TableName()
	}
	if t, ok := any(&zero).(Tabler); ok {
		return t.TableName()
	}
	return reflect.TypeOf((*T)(nil)).Elem().Name()
}

// QueryEntities runs query and maps every row onto a T. Columns match
// fields by `db` tag or case-insensitive field name; unmatched columns are
// ignored.
func QueryEntities[T any](ctx context.Context, s *Session, query string, args ...any) ([]T, error) {
	m, err := mapperFor(reflect.TypeOf((*T)(nil)).Elem())
	if err != nil {
		return nil, err
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entity list: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	entities := []T{}
	for rows.Next() {
		var entity T
		if err := rows.Scan(m.targets(reflect.ValueOf(&entity).Elem(), columns)...); err != nil {
			return nil, fmt.Errorf("scan %T: %w", entity, err)
		}
		entities = append(entities, entity)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return entities, nil
}

// QueryEntity returns the first row mapped onto a T, or nil when the query
// matches nothing
func QueryEntity[T any](ctx context.Context, s *Session, query string, args ...any) (*T, error) {
	entities, err := QueryEntities[T](ctx, s, query, args...)
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, nil
	}
	return &entities[0], nil
}

// InsertEntity inserts fields into T's table
func InsertEntity[T any](ctx context.Context, s *Session, fields map[string]any) (bool, error) {
	return s.Insert(ctx, TableName[T](), fields)
}

// UpdateEntity updates the T row with the given id
func UpdateEntity[T any](ctx context.Context, s *Session, id int64, fields map[string]any) (bool, error) {
	return s.Update(ctx, TableName[T](), id, fields)
}

// DeleteEntity deletes the T row with the given id
func DeleteEntity[T any](ctx context.Context, s *Session, id int64) (bool, error) {
	return s.Delete(ctx, TableName[T](), id)
}

// Fields returns entity's mapped fields as a column -> value map, leaving
// out the listed columns (typically "id")
func Fields(entity any, omit ...string) (map[string]any, error) {
	v := reflect.ValueOf(entity)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, fmt.Errorf("fields of nil %T", entity)
		}
		v = v.Elem()
	}

	m, err := mapperFor(v.Type())
	if err != nil {
		return nil, err
	}

	skip := make(map[string]bool, len(omit))
	for _, column := range omit {
		skip[strings.ToLower(column)] = true
	}

	fields := make(map[string]any, len(m.columns))
	for _, c := range m.columns {
		if skip[c.key] {
			continue
		}
		fields[c.name] = v.FieldByIndex(c.index).Interface()
	}
	return fields, nil
}

type column struct {
	name  string // as written in the tag or field name
	key   string // lowercased for matching
	index []int
}

// mapper caches how a struct type's fields map to columns
type mapper struct {
	columns []column
	byKey   map[string]column
}

var mappers sync.Map // reflect.Type -> *mapper

func mapperFor(t reflect.Type) (*mapper, error) {
	if cached, ok := mappers.Load(t); ok {
		return cached.(*mapper), nil
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("entity type %s is not a struct", t)
	}

	m := &mapper{byKey: make(map[string]column)}
	for _, f := range reflect.VisibleFields(t) {
		if !f.IsExported() || f.Anonymous {
			continue
		}

		name := f.Name
		if tag, ok := f.Tag.Lookup("db"); ok {
			tag = strings.Split(tag, ",")[0]
			if tag == "-" {
				continue
			}
			if tag != "" {
				name = tag
			}
		}

		c := column{name: name, key: strings.ToLower(name), index: f.Index}
		if _, dup := m.byKey[c.key]; dup {
			continue
		}
		m.columns = append(m.columns, c)
		m.byKey[c.key] = c
	}

	actual, _ := mappers.LoadOrStore(t, m)
	return actual.(*mapper), nil
}

// targets returns scan destinations for columns inside the struct v
func (m *mapper) targets(v reflect.Value, columns []string) []any {
	targets := make([]any, len(columns))
	for i, name := range columns {
		if c, ok := m.byKey[strings.ToLower(name)]; ok {
			targets[i] = v.FieldByIndex(c.index).Addr().Interface()
		} else {
			targets[i] = new(any)
		}
	}
	return targets
}
