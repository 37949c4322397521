package datarecording

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// QueryParams selects and orders the rows returned by a query.
type QueryParams struct {
	// Where is a filter without the WHERE keyword, e.g. "RunID = ?".
	Where string
	Args  []any

	// OrderBy is a sort order without the ORDER BY keywords, e.g. "Tick ASC".
	OrderBy string

	// Limit caps the number of rows; zero returns all of them. Offset is
	// only applied together with a limit.
	Limit  int
	Offset int
}

func (p QueryParams) selectStatement(table string) string {
	var b strings.Builder

	b.WriteString("SELECT * FROM " + table)

	if p.Where != "" {
		b.WriteString(" WHERE " + p.Where)
	}

	if p.OrderBy != "" {
		b.WriteString(" ORDER BY " + p.OrderBy)
	}

	if p.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", p.Limit)

		if p.Offset > 0 {
			fmt.Fprintf(&b, " OFFSET %d", p.Offset)
		}
	}

	return b.String()
}

func (p QueryParams) countStatement(table string) string {
	query := "SELECT COUNT(*) FROM " + table
	if p.Where != "" {
		query += " WHERE " + p.Where
	}

	return query
}

// DataReader reads back the tables written by a DataRecorder.
type DataReader interface {
	// MapTable associates a table with the struct type that its rows are
	// decoded into. A table must be mapped before it is queried.
	MapTable(tableName string, sampleEntry any)

	// ListTables returns the names of the mapped tables, sorted.
	ListTables() []string

	// HasTable tells whether the database contains the table.
	HasTable(ctx context.Context, tableName string) (bool, error)

	// Query returns the selected rows of a table, each decoded into the
	// mapped struct, together with the number of rows that match the filter
	// regardless of the limit.
	Query(ctx context.Context, tableName string, params QueryParams) (
		results []any,
		totalCount int,
		err error,
	)

	Close() error
}

type sqliteReader struct {
	db      *sql.DB
	typeMap map[string]reflect.Type
}

// NewReader opens a database file for reading.
func NewReader(dbFilename string) (DataReader, error) {
	db, err := sql.Open("sqlite3", "file:"+dbFilename+"?mode=ro")
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "cannot open %s", dbFilename)
	}

	return NewReaderWithDB(db), nil
}

// NewReaderWithDB creates a new DataReader with a given database
func NewReaderWithDB(db *sql.DB) DataReader {
	return &sqliteReader{
		db:      db,
		typeMap: make(map[string]reflect.Type),
	}
}

func (r *sqliteReader) MapTable(tableName string, sampleEntry any) {
	r.typeMap[tableName] = reflect.TypeOf(sampleEntry)
}

func (r *sqliteReader) ListTables() []string {
	names := make([]string, 0, len(r.typeMap))
	for name := range r.typeMap {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func (r *sqliteReader) HasTable(
	ctx context.Context,
	tableName string,
) (bool, error) {
	var count int

	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?",
		tableName).Scan(&count)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

func (r *sqliteReader) Query(
	ctx context.Context,
	tableName string,
	params QueryParams,
) ([]any, int, error) {
	structType, ok := r.typeMap[tableName]
	if !ok {
		return nil, 0, errors.Errorf("no mapping found for table: %s", tableName)
	}

	var totalCount int

	err := r.db.QueryRowContext(ctx, params.countStatement(tableName),
		params.Args...).Scan(&totalCount)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx, params.selectStatement(tableName),
		params.Args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	results, err := decodeRows(rows, structType)
	if err != nil {
		return nil, 0, err
	}

	return results, totalCount, nil
}

func (r *sqliteReader) Close() error {
	return r.db.Close()
}

// decodeRows decodes every row into a new value of the struct type.
// Columns without a matching field are skipped.
func decodeRows(rows *sql.Rows, structType reflect.Type) ([]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []any

	for rows.Next() {
		row := reflect.New(structType).Elem()
		targets := make([]any, len(columns))

		for i, name := range columns {
			field := row.FieldByName(name)
			if !field.IsValid() {
				targets[i] = new(any)
				continue
			}

			targets[i] = field.Addr().Interface()
		}

		if err := rows.Scan(targets...); err != nil {
			return nil, err
		}

		results = append(results, row.Interface())
	}

	return results, rows.Err()
}
