package database

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered, append-only schema history. New schema changes
// get a new version; applied versions are never edited.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_approval_rules",
		SQL: `
			CREATE TABLE IF NOT EXISTS approval_rules (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				priority INTEGER NOT NULL,
				active INTEGER NOT NULL DEFAULT 1,
				definition TEXT NOT NULL,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_rules_active ON approval_rules(active, priority);
		`,
	},
	{
		Version: 2,
		Name:    "create_approval_states",
		SQL: `
			CREATE TABLE IF NOT EXISTS approval_states (
				expense_id TEXT PRIMARY KEY,
				rule_id TEXT NOT NULL,
				status TEXT NOT NULL,
				snapshot TEXT NOT NULL,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_states_status ON approval_states(status);
		`,
	},
	{
		Version: 3,
		Name:    "create_audit_log",
		SQL: `
			CREATE TABLE IF NOT EXISTS audit_log (
				id TEXT PRIMARY KEY,
				event_type TEXT NOT NULL,
				expense_id TEXT NOT NULL,
				rule_id TEXT,
				level INTEGER NOT NULL DEFAULT 0,
				payload TEXT,
				timestamp DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_audit_expense ON audit_log(expense_id, timestamp);
		`,
	},
	{
		Version: 4,
		Name:    "create_employees",
		SQL: `
			CREATE TABLE IF NOT EXISTS employees (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				email TEXT,
				lark_open_id TEXT,
				role TEXT NOT NULL,
				department TEXT NOT NULL,
				manager_id TEXT,
				active INTEGER NOT NULL DEFAULT 1,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_employees_role ON employees(role, active);
			CREATE INDEX IF NOT EXISTS idx_employees_department ON employees(department, role);
		`,
	},
}

// Migrator handles database migrations
type Migrator struct {
	db     *DB
	logger *zap.Logger
}

// NewMigrator creates a new migrator
func NewMigrator(db *DB, logger *zap.Logger) *Migrator {
	return &Migrator{
		db:     db,
		logger: logger,
	}
}

// RunMigrations applies all pending schema migrations in version order
func (m *Migrator) RunMigrations() error {
	if err := m.createMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := m.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for _, migration := range migrations {
		if applied[migration.Version] {
			continue
		}

		m.logger.Info("Applying migration",
			zap.Int("version", migration.Version),
			zap.String("name", migration.Name))

		err := m.db.WithTransaction(func(tx *sql.Tx) error {
			if _, err := tx.Exec(migration.SQL); err != nil {
				return fmt.Errorf("migration %d (%s): %w", migration.Version, migration.Name, err)
			}
			_, err := tx.Exec(
				"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
				migration.Version, migration.Name,
			)
			return err
		})
		if err != nil {
			return err
		}
	}

	m.logger.Info("Database migrations complete", zap.Int("total", len(migrations)))
	return nil
}

func (m *Migrator) createMigrationsTable() error {
	_, err := m.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`)
	return err
}

func (m *Migrator) getAppliedMigrations() (map[int]bool, error) {
	rows, err := m.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}
