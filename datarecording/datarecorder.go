// Package datarecording stores simulation results in SQLite databases.
package datarecording

import (
	"database/sql"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/memsim/sim"
)

// DataRecorder is a backend that can record and store data
type DataRecorder interface {
	// CreateTable creates a table whose columns are the fields of the sample
	// entry.
	CreateTable(tableName string, sampleEntry any)

	// CreateIndex creates an index over the columns of a table.
	CreateIndex(tableName string, columns ...string)

	// InsertData buffers an entry for a table that already exists.
	InsertData(tableName string, entry any)

	// ListTables returns the names of all the tables, sorted.
	ListTables() []string

	// Flush writes all the buffered entries into the database.
	Flush()

	// Path returns the file that backs the recorder, or an empty string if
	// the database was provided by the caller.
	Path() string

	// Close flushes the buffered entries and closes the database.
	Close() error
}

const defaultBatchSize = 100000

// New creates a new DataRecorder that writes to path.sqlite3. An empty path
// picks a unique name. It panics if the file already exists.
func New(path string) DataRecorder {
	if path == "" {
		path = "memsim_" + sim.NewUniqueIDGenerator().Generate()
	}

	filename := strings.TrimSuffix(path, ".sqlite3") + ".sqlite3"
	if _, err := os.Stat(filename); err == nil {
		panic(fmt.Errorf("file %s already exists", filename))
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		panic(err)
	}

	fmt.Fprintf(os.Stderr, "Database created for recording: %s\n", filename)

	r := newRecorder(db)
	r.filename = filename

	return r
}

// NewWithDB creates a new DataRecorder with a given database.
func NewWithDB(db *sql.DB) DataRecorder {
	return newRecorder(db)
}

func newRecorder(db *sql.DB) *sqliteRecorder {
	r := &sqliteRecorder{
		db:        db,
		batchSize: defaultBatchSize,
		tables:    make(map[string]*table),
	}

	atexit.Register(r.Flush)

	return r
}

type table struct {
	schema  *schema
	pending []any
}

// sqliteRecorder buffers entries in memory and writes them into a SQLite
// database in batches, one transaction per flush.
type sqliteRecorder struct {
	db       *sql.DB
	filename string

	tables     map[string]*table
	batchSize  int
	numPending int
	closed     bool
}

func (r *sqliteRecorder) Path() string {
	return r.filename
}

func (r *sqliteRecorder) CreateTable(tableName string, sampleEntry any) {
	if _, exists := r.tables[tableName]; exists {
		panic(fmt.Sprintf("table %s already exists", tableName))
	}

	s, err := newSchema(sampleEntry)
	if err != nil {
		panic(err)
	}

	r.mustExecute(s.createStatement(tableName))
	r.tables[tableName] = &table{schema: s}
}

func (r *sqliteRecorder) CreateIndex(tableName string, columns ...string) {
	if _, exists := r.tables[tableName]; !exists {
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	name := tableName + "_" + strings.Join(columns, "_")
	r.mustExecute(fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s);",
		name, tableName, strings.Join(columns, ", ")))
}

func (r *sqliteRecorder) InsertData(tableName string, entry any) {
	t, exists := r.tables[tableName]
	if !exists {
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	if reflect.TypeOf(entry) != t.schema.structType {
		panic(fmt.Sprintf("entry of type %T does not match table %s",
			entry, tableName))
	}

	t.pending = append(t.pending, entry)

	r.numPending++
	if r.numPending >= r.batchSize {
		r.Flush()
	}
}

func (r *sqliteRecorder) ListTables() []string {
	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func (r *sqliteRecorder) Flush() {
	if r.numPending == 0 || r.closed {
		return
	}

	tx, err := r.db.Begin()
	if err != nil {
		panic(err)
	}

	for _, name := range r.ListTables() {
		if err := r.flushTable(tx, name, r.tables[name]); err != nil {
			_ = tx.Rollback()
			panic(err)
		}
	}

	if err := tx.Commit(); err != nil {
		panic(err)
	}

	r.numPending = 0
}

func (r *sqliteRecorder) flushTable(tx *sql.Tx, name string, t *table) error {
	if len(t.pending) == 0 {
		return nil
	}

	stmt, err := tx.Prepare(t.schema.insertStatement(name))
	if err != nil {
		return errors.Wrapf(err, "cannot prepare insert into %s", name)
	}
	defer stmt.Close()

	for _, entry := range t.pending {
		if _, err := stmt.Exec(t.schema.values(entry)...); err != nil {
			return errors.Wrapf(err, "cannot insert into %s", name)
		}
	}

	t.pending = nil

	return nil
}

func (r *sqliteRecorder) Close() error {
	if r.closed {
		return nil
	}

	r.Flush()
	r.closed = true

	return r.db.Close()
}

func (r *sqliteRecorder) mustExecute(query string) {
	if _, err := r.db.Exec(query); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to execute: %s\n", query)
		panic(err)
	}
}
