package journal

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/ghalamif/SafeDetector/internal/domain"
)

// FileName is the journal file created inside the configured directory.
const FileName = "safety.journal"

const recordHeaderLen = 12

// Record is one journaled status. Instance tells apart runs whose monotonic
// timestamps restart from zero.
type Record struct {
	Instance  string `json:"instance"`
	Timestamp uint64 `json:"timestamp"`
	Flag      bool   `json:"flag"`
}

type Stats struct {
	LastSeq   uint64
	SizeBytes int64
}

// FileJournal is an append-only flight log of published statuses. It is a
// sink: records are written by the egress pipeline, never read back into the
// detector.
type FileJournal struct {
	mu        sync.Mutex
	path      string
	instance  string
	file      *os.File
	out       io.Writer
	writer    *bufio.Writer
	lastSeq   uint64
	sizeBytes int64

	// Position of the last successful flush; a failed write rolls back here.
	flushedSeq  uint64
	flushedSize int64
}

// Open opens or creates the journal in dir. A torn record left by a crash is
// truncated away and sequence numbers continue after the last complete one.
func Open(dir, instance string) (*FileJournal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, FileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	j := &FileJournal{
		path:     path,
		instance: instance,
		file:     f,
		out:      f,
		writer:   bufio.NewWriterSize(f, 64<<10),
	}
	if err := j.recover(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return j, nil
}

func (j *FileJournal) recover() error {
	rf, err := os.Open(j.path)
	if err != nil {
		return err
	}
	defer rf.Close()

	reader := bufio.NewReader(rf)
	var offset int64
	for {
		var hdr [recordHeaderLen]byte
		if _, err := io.ReadFull(reader, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return fmt.Errorf("journal scan header: %w", err)
		}
		seq := binary.BigEndian.Uint64(hdr[0:8])
		length := binary.BigEndian.Uint32(hdr[8:12])
		if _, err := io.CopyN(io.Discard, reader, int64(length)); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return fmt.Errorf("journal scan body: %w", err)
		}
		offset += recordHeaderLen + int64(length)
		j.lastSeq = seq
	}

	if err := j.file.Truncate(offset); err != nil {
		return err
	}
	j.sizeBytes = offset
	j.flushedSeq, j.flushedSize = j.lastSeq, offset
	return nil
}

func (j *FileJournal) Name() string { return "journal" }

// WriteBatch appends the batch and flushes it to the OS. A failed write
// leaves the file as it was before the batch.
func (j *FileJournal) WriteBatch(statuses []domain.SafetyStatus) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.commitLocked(statuses)
}

// Append writes a single status and returns its sequence number.
func (j *FileJournal) Append(s domain.SafetyStatus) (uint64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.commitLocked([]domain.SafetyStatus{s}); err != nil {
		return 0, err
	}
	return j.lastSeq, nil
}

func (j *FileJournal) commitLocked(statuses []domain.SafetyStatus) error {
	if j.file == nil {
		return os.ErrClosed
	}
	for _, s := range statuses {
		if err := j.appendLocked(s); err != nil {
			return j.rollbackLocked(err)
		}
	}
	if err := j.writer.Flush(); err != nil {
		return j.rollbackLocked(err)
	}
	j.flushedSeq, j.flushedSize = j.lastSeq, j.sizeBytes
	return nil
}

// rollbackLocked drops buffered bytes and truncates anything the writer
// pushed to disk since the last successful flush.
func (j *FileJournal) rollbackLocked(cause error) error {
	j.writer.Reset(j.out)
	j.lastSeq, j.sizeBytes = j.flushedSeq, j.flushedSize
	if err := j.file.Truncate(j.flushedSize); err != nil {
		return errors.Join(cause, fmt.Errorf("journal rollback: %w", err))
	}
	return cause
}

func (j *FileJournal) appendLocked(s domain.SafetyStatus) error {
	b, err := json.Marshal(Record{Instance: j.instance, Timestamp: s.Timestamp, Flag: s.Flag})
	if err != nil {
		return err
	}
	seq := j.lastSeq + 1

	// [8 bytes seq][4 bytes len][len bytes json]
	var hdr [recordHeaderLen]byte
	binary.BigEndian.PutUint64(hdr[0:8], seq)
	binary.BigEndian.PutUint32(hdr[8:12], uint32(len(b)))

	if _, err := j.writer.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := j.writer.Write(b); err != nil {
		return err
	}
	j.lastSeq = seq
	j.sizeBytes += int64(len(b) + len(hdr))
	return nil
}

// Iterate calls fn for every record with seq >= from, oldest first.
func (j *FileJournal) Iterate(from uint64, fn func(seq uint64, r Record) error) error {
	j.mu.Lock()
	if j.file != nil {
		if err := j.writer.Flush(); err != nil {
			j.mu.Unlock()
			return err
		}
	}
	j.mu.Unlock()
	return ReadFile(j.path, from, fn)
}

// ReadFile iterates a journal file without opening it for writing.
func ReadFile(path string, from uint64, fn func(seq uint64, r Record) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for {
		var hdr [recordHeaderLen]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("journal truncated header: %w", err)
		}
		seq := binary.BigEndian.Uint64(hdr[0:8])
		l := binary.BigEndian.Uint32(hdr[8:12])

		b := make([]byte, l)
		if _, err := io.ReadFull(r, b); err != nil {
			return fmt.Errorf("corrupt journal: %w", err)
		}
		if seq < from {
			continue
		}

		var rec Record
		if err := json.Unmarshal(b, &rec); err != nil {
			return fmt.Errorf("corrupt journal entry %d: %w", seq, err)
		}
		if err := fn(seq, rec); err != nil {
			return err
		}
	}
}

func (j *FileJournal) Stats() Stats {
	j.mu.Lock()
	defer j.mu.Unlock()
	return Stats{LastSeq: j.lastSeq, SizeBytes: j.sizeBytes}
}

// Close flushes, syncs and closes the file.
func (j *FileJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return nil
	}
	err := errors.Join(j.writer.Flush(), j.file.Sync(), j.file.Close())
	j.file = nil
	return err
}
