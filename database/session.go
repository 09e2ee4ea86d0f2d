package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
)

var (
	// ErrNoFields is returned by Insert and Update for an empty field map
	ErrNoFields = errors.New("no fields to write")

	// ErrInvalidIdentifier is returned for table or column names that would
	// need quoting
	ErrInvalidIdentifier = errors.New("invalid sql identifier")
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Session runs statements on the pool, one connection, or one transaction
// depending on where it came from. It is not safe for concurrent use when
// it wraps a connection or transaction.
type Session struct {
	q       querier
	dialect dialect
	logger  *zap.Logger
}

// Exec runs an INSERT, UPDATE, DELETE or DDL statement and returns the
// number of rows affected
func (s *Session) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		s.logger.Error("Execute update failed", zap.String("sql", query), zap.Error(err))
		return 0, fmt.Errorf("execute update: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		// Some drivers cannot report it for DDL
		return 0, nil
	}
	return rows, nil
}

// QueryMaps runs a query and returns each row as a column -> value map.
// Text and blob columns come back as strings.
func (s *Session) QueryMaps(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.Error("Execute query failed", zap.String("sql", query), zap.Error(err))
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	result := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(columns))
		targets := make([]any, len(columns))
		for i := range values {
			targets[i] = &values[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		row := make(map[string]any, len(columns))
		for i, column := range columns {
			if b, ok := values[i].([]byte); ok {
				row[column] = string(b)
			} else {
				row[column] = values[i]
			}
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return result, nil
}

// Insert writes one row. It reports whether exactly one row was inserted.
func (s *Session) Insert(ctx context.Context, table string, fields map[string]any) (bool, error) {
	columns, args, err := sortedFields(table, fields)
	if err != nil {
		return false, err
	}

	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = s.dialect(i + 1)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), strings.Join(placeholders, ", "))

	rows, err := s.Exec(ctx, query, args...)
	return rows == 1, err
}

// Update sets fields on the row whose id column equals id. It reports
// whether exactly one row was updated.
func (s *Session) Update(ctx context.Context, table string, id any, fields map[string]any) (bool, error) {
	columns, args, err := sortedFields(table, fields)
	if err != nil {
		return false, err
	}

	assignments := make([]string, len(columns))
	for i, column := range columns {
		assignments[i] = column + "=" + s.dialect(i+1)
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id=%s",
		table, strings.Join(assignments, ", "), s.dialect(len(args)))

	rows, err := s.Exec(ctx, query, args...)
	return rows == 1, err
}

// Delete removes the row whose id column equals id. It reports whether
// exactly one row was deleted.
func (s *Session) Delete(ctx context.Context, table string, id any) (bool, error) {
	if !identifierPattern.MatchString(table) {
		return false, fmt.Errorf("table %q: %w", table, ErrInvalidIdentifier)
	}

	rows, err := s.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id=%s", table, s.dialect(1)), id)
	return rows == 1, err
}

// sortedFields validates names and returns columns in sorted order with
// their values
func sortedFields(table string, fields map[string]any) ([]string, []any, error) {
	if !identifierPattern.MatchString(table) {
		return nil, nil, fmt.Errorf("table %q: %w", table, ErrInvalidIdentifier)
	}
	if len(fields) == 0 {
		return nil, nil, fmt.Errorf("table %s: %w", table, ErrNoFields)
	}

	columns := make([]string, 0, len(fields))
	for column := range fields {
		if !identifierPattern.MatchString(column) {
			return nil, nil, fmt.Errorf("column %q: %w", column, ErrInvalidIdentifier)
		}
		columns = append(columns, column)
	}
	sort.Strings(columns)

	args := make([]any, len(columns))
	for i, column := range columns {
		args[i] = fields[column]
	}
	return columns, args, nil
}
