// Package store provides database/sql backed query engines.
//
// A Store implements engine.Engine over a *sql.DB for one datasource:
//   - sqlite (mattn/go-sqlite3): default bind style qmark
//   - postgres (jackc/pgx/v5 stdlib): default bind style dollar
//   - mysql (gorm.io/gorm with gorm.io/driver/mysql): default bind style qmark
//
// # Database Configuration (SQLite)
//
//   - WAL mode and synchronous=NORMAL for file databases
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//   - a single connection, so ":memory:" databases survive between queries
//
// Result rows are normalized into ir.Table cells: []byte becomes string,
// integer kinds become int64, float kinds become float64, time.Time is kept
// and NULL becomes nil. Numeric columns that a driver returns as text (MySQL
// DECIMAL, SUM results) are parsed back into numbers.
//
// Every driver failure is returned as *engine.ExecutionError.
package store
