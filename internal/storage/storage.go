// Package storage keeps a persistent history of predictions in BoltDB.
//
// Records are keyed by zero-padded nanosecond timestamp followed by the record
// ID, so a bucket cursor walks them in chronological order and time-range
// queries are a single Seek.
package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"migraine-sense/internal/common"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

const (
	predictionsBucket = "predictions"  // Bucket name for prediction records
	labelsBucket      = "label_counts" // Bucket name for per-label tallies
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store is closed")

// PredictionRecord is one stored prediction.
type PredictionRecord struct {
	ID          string    `json:"id" yaml:"id"`
	Timestamp   time.Time `json:"timestamp" yaml:"timestamp"`
	Source      string    `json:"source" yaml:"source"`
	ProfileName string    `json:"profile_name" yaml:"profile_name"`
	Features    []float64 `json:"features" yaml:"features"`
	Label       string    `json:"label" yaml:"label"`
	Encoded     int       `json:"encoded" yaml:"encoded"`
	InfoFound   bool      `json:"info_found" yaml:"info_found"`
}

// Store provides persistent storage for prediction history using BoltDB.
type Store struct {
	mu sync.RWMutex
	db *bbolt.DB
}

// New opens (or creates) the history database in dataPath.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, common.DefaultDBFileName)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(predictionsBucket)); err != nil {
			return fmt.Errorf("create predictions bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(labelsBucket)); err != nil {
			return fmt.Errorf("create label counts bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database. Closing twice is a no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// StorePrediction writes rec and bumps its label tally in one transaction.
// A missing ID or timestamp is filled in; the stored record is returned.
func (s *Store) StorePrediction(rec PredictionRecord) (PredictionRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return PredictionRecord{}, ErrClosed
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal prediction: %w", err)
		}
		if err := tx.Bucket([]byte(predictionsBucket)).Put(recordKey(rec.Timestamp, rec.ID), data); err != nil {
			return fmt.Errorf("put prediction: %w", err)
		}

		if rec.Label == "" {
			return nil
		}
		counts := tx.Bucket([]byte(labelsBucket))
		var n uint64
		if v := counts.Get([]byte(rec.Label)); len(v) == 8 {
			n = binary.BigEndian.Uint64(v)
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, n+1)
		return counts.Put([]byte(rec.Label), buf)
	})
	if err != nil {
		return PredictionRecord{}, err
	}
	return rec, nil
}

// GetPredictionsInRange returns records with start <= timestamp <= end,
// oldest first.
func (s *Store) GetPredictionsInRange(start, end time.Time) ([]PredictionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrClosed
	}

	var records []PredictionRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(predictionsBucket)).Cursor()

		startKey := timePrefix(start)
		// Every key at end sorts before end+1ns.
		endKey := timePrefix(end.Add(time.Nanosecond))

		for k, v := c.Seek(startKey); k != nil && bytes.Compare(k, endKey) < 0; k, v = c.Next() {
			var rec PredictionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				continue // Skip malformed records
			}
			records = append(records, rec)
		}
		return nil
	})
	return records, err
}

// Recent returns up to n records, newest first.
func (s *Store) Recent(n int) ([]PredictionRecord, error) {
	if n <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrClosed
	}

	records := make([]PredictionRecord, 0, n)
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(predictionsBucket)).Cursor()
		for k, v := c.Last(); k != nil && len(records) < n; k, v = c.Prev() {
			var rec PredictionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				continue
			}
			records = append(records, rec)
		}
		return nil
	})
	return records, err
}

// LabelCounts returns how often each label has been predicted.
func (s *Store) LabelCounts() (map[string]uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrClosed
	}

	counts := make(map[string]uint64)
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(labelsBucket)).ForEach(func(k, v []byte) error {
			if len(v) == 8 {
				counts[string(k)] = binary.BigEndian.Uint64(v)
			}
			return nil
		})
	})
	return counts, err
}

// Count returns the number of stored predictions.
func (s *Store) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return 0, ErrClosed
	}

	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket([]byte(predictionsBucket)).Stats().KeyN
		return nil
	})
	return n, err
}

// timePrefix clamps times before the epoch, which keys cannot represent.
func timePrefix(t time.Time) []byte {
	if t.Before(time.Unix(0, 0)) {
		t = time.Unix(0, 0)
	}
	return []byte(fmt.Sprintf("%020d", t.UnixNano()))
}

func recordKey(t time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%020d_%s", t.UnixNano(), id))
}
