package outbox

import (
	"context"
	"database/sql"
	"fmt"

	"sensorica-ingest/internal/models"

	"github.com/lib/pq"
)

// PostgresLog appends to a mqtt_send_server style table (topic, json_message)
type PostgresLog struct {
	db    *sql.DB
	table string
	query string
}

// NewPostgresLog creates a table-backed delivery log
func NewPostgresLog(db *sql.DB, table string) *PostgresLog {
	return &PostgresLog{
		db:    db,
		table: table,
		query: fmt.Sprintf(
			`INSERT INTO %s (topic, json_message, created_at, updated_at) VALUES ($1, $2, $3, $3)`,
			pq.QuoteIdentifier(table),
		),
	}
}

func (l *PostgresLog) Name() string { return "postgres:" + l.table }

func (l *PostgresLog) Append(ctx context.Context, msg *models.OutboundMessage) error {
	if _, err := l.db.ExecContext(ctx, l.query, msg.Topic, string(msg.Payload), msg.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert into %s: %w", l.table, err)
	}
	return nil
}
