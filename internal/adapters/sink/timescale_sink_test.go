package sink

import (
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/ghalamif/SafeDetector/internal/domain"
)

func TestTimescaleSinkWriteBatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	sink := NewTimescaleSink(db, "safety_status", "instance-1")

	statuses := []domain.SafetyStatus{
		{Timestamp: 1000, Flag: true},
		{Timestamp: 6000, Flag: false},
	}

	expectedQuery := regexp.QuoteMeta("INSERT INTO safety_status (instance_id, ts_us, flag) VALUES ($1,$2,$3),($4,$5,$6) ON CONFLICT (instance_id, ts_us) DO NOTHING")
	mock.ExpectExec(expectedQuery).
		WithArgs("instance-1", int64(1000), true, "instance-1", int64(6000), false).
		WillReturnResult(sqlmock.NewResult(2, 2))

	if err := sink.WriteBatch(statuses); err != nil {
		t.Fatalf("write batch: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTimescaleSinkWriteBatchNoStatuses(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	sink := NewTimescaleSink(db, "safety_status", "instance-1")
	if err := sink.WriteBatch(nil); err != nil {
		t.Fatalf("expected nil error for empty batch, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTimescaleSinkWriteBatchError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	dbErr := errors.New("connection reset")
	mock.ExpectExec("INSERT INTO safety_status").WillReturnError(dbErr)

	sink := NewTimescaleSink(db, "safety_status", "instance-1")
	err = sink.WriteBatch([]domain.SafetyStatus{{Timestamp: 1, Flag: true}})
	if !errors.Is(err, dbErr) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestTimescaleSinkName(t *testing.T) {
	db, _, _ := sqlmock.New()
	defer db.Close()

	sink := NewTimescaleSink(db, "safety_status", "")
	if sink.Name() != "timescaledb" {
		t.Fatalf("expected sink name timescaledb, got %s", sink.Name())
	}
}
