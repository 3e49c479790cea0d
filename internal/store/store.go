package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/imgaoyue/squealy/internal/engine"
	"github.com/imgaoyue/squealy/internal/ir"
	"github.com/imgaoyue/squealy/internal/queryir"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// driverInfo describes the bind styles a driver understands.
type driverInfo struct {
	defaultStyle queryir.BindStyle
	styles       []queryir.BindStyle
}

var drivers = map[string]driverInfo{
	DriverSQLite: {
		defaultStyle: queryir.StyleQmark,
		styles:       []queryir.BindStyle{queryir.StyleQmark, queryir.StyleNumeric, queryir.StyleNamed, queryir.StyleDollar},
	},
	DriverPostgres: {
		defaultStyle: queryir.StyleDollar,
		styles:       []queryir.BindStyle{queryir.StyleDollar},
	},
	DriverMySQL: {
		defaultStyle: queryir.StyleQmark,
		styles:       []queryir.BindStyle{queryir.StyleQmark},
	},
}

// NormalizeDriver maps driver aliases to a supported driver name.
func NormalizeDriver(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sqlite", "sqlite3":
		return DriverSQLite, nil
	case "postgres", "postgresql", "pgx":
		return DriverPostgres, nil
	case "mysql":
		return DriverMySQL, nil
	default:
		return "", fmt.Errorf("unknown driver %q (want sqlite, postgres or mysql)", name)
	}
}

// ResolveBindStyle returns the bind style for driver, honoring an explicit
// override when the driver understands it.
func ResolveBindStyle(driver, override string) (queryir.BindStyle, error) {
	d, err := NormalizeDriver(driver)
	if err != nil {
		return "", err
	}
	info := drivers[d]
	if strings.TrimSpace(override) == "" {
		return info.defaultStyle, nil
	}
	style, err := queryir.ParseBindStyle(override)
	if err != nil {
		return "", err
	}
	if !slices.Contains(info.styles, style) {
		return "", fmt.Errorf("bind style %s is not supported by driver %s", style, d)
	}
	return style, nil
}

// Store is a query engine over one database.
type Store struct {
	name        string
	db          *sql.DB
	style       queryir.BindStyle
	numericText bool
}

var (
	_ engine.Engine = (*Store)(nil)
	_ engine.Pinger = (*Store)(nil)
	_ engine.Closer = (*Store)(nil)
)

// New wraps an open database. Used directly with sqlmock in tests.
func New(name string, db *sql.DB, style queryir.BindStyle) *Store {
	return &Store{name: name, db: db, style: style}
}

// Open connects to the datasource described by spec and runs its init
// statements.
func Open(ctx context.Context, spec ir.DatasourceSpec) (*Store, error) {
	driver, err := NormalizeDriver(spec.Driver)
	if err != nil {
		return nil, fmt.Errorf("datasource %q: %w", spec.ID, err)
	}
	style, err := ResolveBindStyle(driver, spec.BindStyle)
	if err != nil {
		return nil, fmt.Errorf("datasource %q: %w", spec.ID, err)
	}

	var db *sql.DB
	switch driver {
	case DriverSQLite:
		db, err = openSQLite(ctx, spec.URL)
	case DriverPostgres:
		db, err = openPostgres(ctx, spec.URL)
	case DriverMySQL:
		db, err = openMySQL(spec.URL)
	}
	if err != nil {
		return nil, fmt.Errorf("datasource %q: %w", spec.ID, err)
	}

	s := New(spec.ID, db, style)
	s.numericText = driver != DriverSQLite
	for i, stmt := range spec.Init {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("datasource %q: init[%d]: %w", spec.ID, i, err)
		}
	}
	return s, nil
}

// sqliteDSN strips URL scheme prefixes. An empty URL is an in-memory database.
func sqliteDSN(url string) string {
	dsn := strings.TrimSpace(url)
	for _, prefix := range []string{"sqlite3://", "sqlite://"} {
		dsn = strings.TrimPrefix(dsn, prefix)
	}
	if dsn == "" {
		return ":memory:"
	}
	return dsn
}

func isMemory(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
}

func openSQLite(ctx context.Context, url string) (*sql.DB, error) {
	dsn := sqliteDSN(url)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer, and every in-memory connection is
	// its own database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	if !isMemory(dsn) {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL", "PRAGMA synchronous = NORMAL")
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return db, nil
}

func openPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func openMySQL(dsn string) (*sql.DB, error) {
	gdb, err := gorm.Open(mysql.Open(strings.TrimPrefix(dsn, "mysql://")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	db.SetConnMaxLifetime(15 * time.Minute)
	return db, nil
}

// Name returns the datasource id.
func (s *Store) Name() string { return s.name }

// BindStyle returns the placeholder convention of this store.
func (s *Store) BindStyle() queryir.BindStyle { return s.style }

// DB returns the underlying sql.DB for direct queries.
func (s *Store) DB() *sql.DB { return s.db }

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Execute runs query with args and scans every row into a Table.
func (s *Store) Execute(ctx context.Context, query string, args queryir.Bindings) (*ir.Table, error) {
	if err := queryir.CheckShape(s.style, args); err != nil {
		return nil, s.fail(query, err)
	}
	rows, err := s.db.QueryContext(ctx, query, driverArgs(args)...)
	if err != nil {
		return nil, s.fail(query, err)
	}
	defer rows.Close()

	tbl, err := scanTable(rows, s.numericText)
	if err != nil {
		return nil, s.fail(query, err)
	}
	return tbl, nil
}

func (s *Store) fail(query string, err error) error {
	return &engine.ExecutionError{Engine: s.name, SQL: query, Err: err}
}

// driverArgs flattens bindings for database/sql. Named values become
// sql.NamedArg in sorted name order.
func driverArgs(args queryir.Bindings) []any {
	switch b := args.(type) {
	case queryir.Positional:
		return []any(b)
	case queryir.Named:
		out := make([]any, 0, len(b))
		for _, name := range b.Names() {
			out = append(out, sql.Named(name, b[name]))
		}
		return out
	default:
		return nil
	}
}
