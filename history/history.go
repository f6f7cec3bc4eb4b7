// Package history keeps a durable record of action invocations and incident
// acknowledgments so operators can review what ran, for which CVE, and how
// it ended. The status tokens only hold the latest state; this is the
// long-term trail.
package history

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

// Bucket names in bbolt.
var (
	bucketInvocations = []byte("invocations")
	bucketAcks        = []byte("acknowledgments")
)

// InvocationRecord is one completed (or fatally ended) action run.
type InvocationRecord struct {
	RunID      string        `json:"run_id"`
	Kind       string        `json:"kind"`
	CVE        string        `json:"cve,omitempty"`
	Status     string        `json:"status"`
	StartTime  time.Time     `json:"start_time"`
	Duration   time.Duration `json:"duration"`
	ReportPath string        `json:"report_path,omitempty"`
}

// Acknowledgment records a human acknowledging an incident.
type Acknowledgment struct {
	Timestamp time.Time `json:"timestamp"`
	CVE       string    `json:"cve,omitempty"`
	Note      string    `json:"note,omitempty"`
}

// Store is the bbolt-backed history database.
type Store struct {
	db *bbolt.DB
}

// Open creates or opens the history database under dir.
func Open(dir string) (*Store, error) {
	dbPath := filepath.Join(dir, "quell-history.db")

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{bucketInvocations, bucketAcks} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize history buckets: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// timeKey builds a lexically sortable key so cursor order is time order.
func timeKey(t time.Time, suffix string) []byte {
	return []byte(t.UTC().Format(time.RFC3339Nano) + "/" + suffix)
}

// RecordInvocation appends one invocation record.
func (s *Store) RecordInvocation(rec InvocationRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal invocation: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketInvocations).Put(timeKey(rec.StartTime, rec.RunID), data)
	})
}

// ListInvocations returns up to limit records, newest first.
func (s *Store) ListInvocations(limit int) ([]InvocationRecord, error) {
	var records []InvocationRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketInvocations).Cursor()
		for k, v := c.Last(); k != nil && len(records) < limit; k, v = c.Prev() {
			var rec InvocationRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("corrupt invocation record %q: %w", k, err)
			}
			records = append(records, rec)
		}
		return nil
	})
	return records, err
}

// RecordAck appends an acknowledgment.
func (s *Store) RecordAck(ack Acknowledgment) error {
	data, err := json.Marshal(ack)
	if err != nil {
		return fmt.Errorf("failed to marshal acknowledgment: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketAcks).Put(timeKey(ack.Timestamp, ack.CVE), data)
	})
}

// ListAcks returns up to limit acknowledgments, newest first.
func (s *Store) ListAcks(limit int) ([]Acknowledgment, error) {
	var acks []Acknowledgment
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketAcks).Cursor()
		for k, v := c.Last(); k != nil && len(acks) < limit; k, v = c.Prev() {
			var ack Acknowledgment
			if err := json.Unmarshal(v, &ack); err != nil {
				return fmt.Errorf("corrupt acknowledgment %q: %w", k, err)
			}
			acks = append(acks, ack)
		}
		return nil
	})
	return acks, err
}
