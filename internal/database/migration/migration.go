package migration

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

type migrationStep struct {
	Name string
	SQL  string
}

var steps = []migrationStep{
	{
		Name: "create_table_import_transactions",
		SQL: `CREATE TABLE IF NOT EXISTS import_transactions (
  id                TEXT        PRIMARY KEY,
  status            TEXT        NOT NULL,
  created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
  expires_at        TIMESTAMPTZ NOT NULL,
  connection_id     TEXT        NOT NULL,
  request_id        TEXT        NOT NULL,
  endpoint          TEXT        NOT NULL,
  upload_expires_in INTEGER     NOT NULL CHECK (upload_expires_in > 0)
);`,
	},
	{
		Name: "create_index_import_transactions_expires_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_import_transactions_expires_at ON import_transactions (expires_at);`,
	},
	{
		Name: "create_table_invoices",
		SQL: `CREATE TABLE IF NOT EXISTS invoices (
  transaction_id TEXT             PRIMARY KEY,
  customer_name  TEXT             NOT NULL,
  invoice_number TEXT             NOT NULL,
  total_value    DOUBLE PRECISION NOT NULL,
  product_id     TEXT             NOT NULL,
  quantity       INTEGER          NOT NULL,
  created_at     TIMESTAMPTZ      NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_invoices_customer_number",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_invoices_customer_number ON invoices (customer_name, invoice_number);`,
	},
	{
		Name: "create_table_invoice_events",
		SQL: `CREATE TABLE IF NOT EXISTS invoice_events (
  pk            TEXT        NOT NULL,
  sk            TEXT        NOT NULL,
  event_type    TEXT        NOT NULL,
  customer_name TEXT        NOT NULL,
  created_at    TIMESTAMPTZ NOT NULL,
  expires_at    TIMESTAMPTZ NOT NULL,
  info          JSONB       NOT NULL,
  PRIMARY KEY (pk, sk)
);`,
	},
	{
		Name: "create_index_invoice_events_expires_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_invoice_events_expires_at ON invoice_events (expires_at);`,
	},
}

// EnsureMigrated checks if the 'import_transactions' table exists and runs migrations if it doesn't.
// Every step is idempotent, so a partially applied schema is completed on the next start.
func EnsureMigrated(ctx context.Context, db *sql.DB, logger *slog.Logger, dbHost string) error {
	start := time.Now()
	log := logger.With("component", "database", "db_host", dbHost)

	log.Info("db_migration_check", "status", "starting")

	var exists bool
	query := "SELECT to_regclass('public.invoice_events') IS NOT NULL"
	if err := db.QueryRowContext(ctx, query).Scan(&exists); err != nil {
		log.Error("db_migration_failed",
			"status", "error",
			"error_message", fmt.Sprintf("failed to check sentinel table: %v", err),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		log.Info("db_migration_skip",
			"status", "success",
			"detail", "schema already exists, skipping migration",
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil
	}

	log.Info("db_migration_start", "status", "in_progress")

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			log.Error("db_migration_failed",
				"status", "error",
				"migration_step", step.Name,
				"error_message", err.Error(),
				"duration_ms", time.Since(start).Milliseconds(),
				"step_duration_ms", time.Since(stepStart).Milliseconds(),
			)
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		log.Info("db_migration_step",
			"status", "success",
			"migration_step", step.Name,
			"step_duration_ms", time.Since(stepStart).Milliseconds(),
		)
	}

	log.Info("db_migration_success",
		"status", "success",
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
