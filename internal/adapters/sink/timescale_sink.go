package sink

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/ghalamif/SafeDetector/internal/domain"
	"github.com/ghalamif/SafeDetector/internal/ports"
)

// TimescaleSink stores statuses in a hypertable keyed by (instance_id, ts_us).
type TimescaleSink struct {
	db         *sql.DB
	tableName  string
	instanceID string
}

func NewTimescaleSink(db *sql.DB, table, instanceID string) *TimescaleSink {
	return &TimescaleSink{db: db, tableName: table, instanceID: instanceID}
}

func (t *TimescaleSink) Name() string { return "timescaledb" }

func (t *TimescaleSink) WriteBatch(statuses []domain.SafetyStatus) error {
	if len(statuses) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(t.tableName)
	b.WriteString(" (instance_id, ts_us, flag) VALUES ")

	args := make([]any, 0, len(statuses)*3)
	for i, s := range statuses {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(fmt.Sprintf("($%d,$%d,$%d)", len(args)+1, len(args)+2, len(args)+3))
		// ts_us is BIGINT; the monotonic clock stays far below 2^63.
		args = append(args, t.instanceID, int64(s.Timestamp), s.Flag)
	}

	b.WriteString(" ON CONFLICT (instance_id, ts_us) DO NOTHING")

	if _, err := t.db.Exec(b.String(), args...); err != nil {
		return fmt.Errorf("insert safety status: %w", err)
	}
	return nil
}

var _ ports.Sink = (*TimescaleSink)(nil)
