package journal

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/ghalamif/SafeDetector/internal/domain"
)

func TestFileJournalAppendIterateAndReopen(t *testing.T) {
	dir := t.TempDir()

	j, err := Open(dir, "run-1")
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}

	if err := j.WriteBatch([]domain.SafetyStatus{
		{Timestamp: 5000, Flag: true},
		{Timestamp: 10000, Flag: false},
	}); err != nil {
		t.Fatalf("write batch: %v", err)
	}
	seq, err := j.Append(domain.SafetyStatus{Timestamp: 15000, Flag: true})
	if err != nil || seq != 3 {
		t.Fatalf("append: %v seq=%d", err, seq)
	}

	var got []Record
	if err := j.Iterate(2, func(_ uint64, r Record) error {
		got = append(got, r)
		return nil
	}); err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if len(got) != 2 || got[0].Timestamp != 10000 || got[0].Flag || got[1].Instance != "run-1" {
		t.Fatalf("unexpected records %+v", got)
	}

	if err := j.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	j2, err := Open(dir, "run-2")
	if err != nil {
		t.Fatalf("reopen journal: %v", err)
	}
	defer j2.Close()

	if stats := j2.Stats(); stats.LastSeq != 3 {
		t.Fatalf("expected sequence to resume after 3, got %d", stats.LastSeq)
	}
	seq, err = j2.Append(domain.SafetyStatus{Timestamp: 1})
	if err != nil || seq != 4 {
		t.Fatalf("append after reopen: %v seq=%d", err, seq)
	}
}

func TestFileJournalTruncatesTornRecord(t *testing.T) {
	dir := t.TempDir()

	j, err := Open(dir, "run")
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	if err := j.WriteBatch([]domain.SafetyStatus{{Timestamp: 1, Flag: true}}); err != nil {
		t.Fatalf("write batch: %v", err)
	}
	size := j.Stats().SizeBytes
	if err := j.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	path := filepath.Join(dir, FileName)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open for append: %v", err)
	}
	if _, err := f.Write([]byte{0, 0, 0, 0, 0, 0, 0, 2, 0, 0, 0, 40, '{'}); err != nil {
		t.Fatalf("write torn record: %v", err)
	}
	f.Close()

	j2, err := Open(dir, "run")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer j2.Close()
	if stats := j2.Stats(); stats.SizeBytes != size || stats.LastSeq != 1 {
		t.Fatalf("expected torn record to be dropped, got %+v", stats)
	}

	count := 0
	if err := ReadFile(path, 0, func(uint64, Record) error {
		count++
		return nil
	}); err != nil {
		t.Fatalf("read file: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record, got %d", count)
	}
}

// failingWriter passes the first n bytes through, then fails exactly once.
type failingWriter struct {
	w      io.Writer
	n      int
	failed bool
}

func (f *failingWriter) Write(p []byte) (int, error) {
	if f.failed {
		return f.w.Write(p)
	}
	f.failed = true
	written, _ := f.w.Write(p[:min(f.n, len(p))])
	return written, errors.New("disk full")
}

func TestFileJournalRecoversFromFailedWrite(t *testing.T) {
	dir := t.TempDir()
	j, err := Open(dir, "run")
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	defer j.Close()

	if err := j.WriteBatch([]domain.SafetyStatus{{Timestamp: 1, Flag: true}}); err != nil {
		t.Fatalf("write batch: %v", err)
	}
	good := j.Stats()

	j.out = &failingWriter{w: j.file, n: 5}
	j.writer.Reset(j.out)
	if err := j.WriteBatch([]domain.SafetyStatus{{Timestamp: 2}, {Timestamp: 3}}); err == nil {
		t.Fatalf("expected failed write to be reported")
	}
	if stats := j.Stats(); stats != good {
		t.Fatalf("expected stats to roll back to %+v, got %+v", good, stats)
	}
	info, err := os.Stat(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() != good.SizeBytes {
		t.Fatalf("expected partial record to be truncated, size %d want %d", info.Size(), good.SizeBytes)
	}

	if err := j.WriteBatch([]domain.SafetyStatus{{Timestamp: 4, Flag: true}}); err != nil {
		t.Fatalf("write after failure: %v", err)
	}

	var seqs []uint64
	var stamps []uint64
	if err := j.Iterate(0, func(seq uint64, r Record) error {
		seqs = append(seqs, seq)
		stamps = append(stamps, r.Timestamp)
		return nil
	}); err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if len(seqs) != 2 || seqs[0] != 1 || seqs[1] != 2 || stamps[0] != 1 || stamps[1] != 4 {
		t.Fatalf("unexpected journal contents seqs=%v timestamps=%v", seqs, stamps)
	}
}
