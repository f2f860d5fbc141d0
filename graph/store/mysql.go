package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

var mysqlDialect = dialect{
	name: "mysql",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS tripgraph_sessions (
			id VARCHAR(255) NOT NULL PRIMARY KEY,
			checkpoint LONGBLOB NOT NULL,
			position VARCHAR(255) NOT NULL,
			version BIGINT NOT NULL,
			updated_at BIGINT NOT NULL,
			INDEX idx_updated_at (updated_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	},
	selectForUpdate: `SELECT version FROM tripgraph_sessions WHERE id = ? FOR UPDATE`,
	insertIfAbsent: `INSERT IGNORE INTO tripgraph_sessions (id, checkpoint, position, version, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
}

// MySQLRegistry stores sessions in MySQL or MariaDB, for deployments where
// several service instances share sessions.
//
// The DSN format is:
//
//	[username[:password]@][protocol[(address)]]/dbname[?param=value]
//
// Never hardcode credentials; the CLI reads the DSN from TRIPGRAPH_MYSQL_DSN.
type MySQLRegistry struct {
	*sqlRegistry
}

// NewMySQLRegistry connects, verifies the connection and creates the schema.
func NewMySQLRegistry(ctx context.Context, dsn string, opts ...Option) (*MySQLRegistry, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	reg, err := newSQLRegistry(ctx, db, mysqlDialect, newConfig(opts))
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &MySQLRegistry{sqlRegistry: reg}, nil
}
