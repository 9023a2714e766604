package storage

import (
	"database/sql"
	"fmt"
	"strings"

	"chatmemo/internal/config"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Open connects to the database described by cfg.Databases[dbType].
func Open(dbType string, cfg *config.Config) (*sql.DB, error) {
	dbCfg, ok := cfg.Databases[dbType]
	if !ok {
		return nil, fmt.Errorf("database config for %s not found", dbType)
	}

	var (
		db  *sql.DB
		err error
	)

	switch strings.ToLower(dbType) {
	case "sqlite", "sqlite3":
		if dbCfg.DSN == "" {
			return nil, fmt.Errorf("sqlite dsn must be provided")
		}
		db, err = sql.Open("sqlite3", dbCfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite database: %w", err)
		}
		if dbCfg.DSN == ":memory:" {
			// every pooled connection would otherwise see its own empty database
			db.SetMaxOpenConns(1)
		}
	case "mysql":
		dsn := dbCfg.DSN
		if dsn == "" {
			dsn = fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
				dbCfg.Username,
				dbCfg.Password,
				dbCfg.Host,
				dbCfg.Port,
				dbCfg.DBName,
				dbCfg.Params,
			)
		}
		db, err = sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("open mysql database: %w", err)
		}
	case "postgres", "postgresql":
		dsn := dbCfg.DSN
		if dsn == "" {
			dsn = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s %s",
				dbCfg.Host,
				dbCfg.Port,
				dbCfg.Username,
				dbCfg.Password,
				dbCfg.DBName,
				dbCfg.Params,
			)
		}
		db, err = sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres database: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", dbType)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Migrate ensures the analytics tables are present.
func Migrate(db *sql.DB, driver string) error {
	var stmts []string
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS analytics_events (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				type TEXT NOT NULL,
				session_id TEXT,
				user_id TEXT,
				data TEXT NOT NULL,
				ts DATETIME NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_analytics_events_session ON analytics_events(session_id)`,
			`CREATE INDEX IF NOT EXISTS idx_analytics_events_ts ON analytics_events(ts)`,
		}
	case "mysql":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS analytics_events (
				id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
				type VARCHAR(100) NOT NULL,
				session_id VARCHAR(64),
				user_id VARCHAR(64),
				data MEDIUMTEXT NOT NULL,
				ts DATETIME(6) NOT NULL,
				PRIMARY KEY (id),
				INDEX idx_analytics_events_session (session_id),
				INDEX idx_analytics_events_ts (ts)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		}
	case "postgres", "postgresql":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS analytics_events (
				id BIGSERIAL PRIMARY KEY,
				type VARCHAR(100) NOT NULL,
				session_id VARCHAR(64),
				user_id VARCHAR(64),
				data TEXT NOT NULL,
				ts TIMESTAMPTZ NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_analytics_events_session ON analytics_events(session_id)`,
			`CREATE INDEX IF NOT EXISTS idx_analytics_events_ts ON analytics_events(ts)`,
		}
	default:
		return fmt.Errorf("unsupported driver for migration: %s", driver)
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate (%s): %w", driver, err)
		}
	}
	return nil
}
