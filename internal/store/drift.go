// Package store persists synchronization drift samples so drift trends can
// be inspected after the fact (the drivetrain is known to creep apart under
// load).
package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"DriveBridge/internal/model"
)

var bucketDrift = []byte("drift_samples")

// DriftLog is a bbolt-backed append-only log of drift measurements keyed by
// sample time.
type DriftLog struct {
	db *bbolt.DB
}

// OpenDriftLog opens (or creates) the drift database at path.
func OpenDriftLog(path string) (*DriftLog, error) {
	db, err := bbolt.Open(path, 0o666, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open drift store: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketDrift)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create drift bucket: %w", err)
	}
	return &DriftLog{db: db}, nil
}

// Append records one drift sample.
func (d *DriftLog) Append(sample model.DriftSample) error {
	value, err := json.Marshal(sample)
	if err != nil {
		return err
	}
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(sample.Timestamp.UnixNano()))
	return d.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDrift).Put(key, value)
	})
}

// Recent returns up to n most recent samples in chronological order.
func (d *DriftLog) Recent(n int) ([]model.DriftSample, error) {
	var samples []model.DriftSample
	err := d.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketDrift).Cursor()
		for k, v := c.Last(); k != nil && len(samples) < n; k, v = c.Prev() {
			var s model.DriftSample
			if err := json.Unmarshal(v, &s); err != nil {
				return err
			}
			samples = append(samples, s)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	// reverse from newest-first to chronological
	for i, j := 0, len(samples)-1; i < j; i, j = i+1, j-1 {
		samples[i], samples[j] = samples[j], samples[i]
	}
	return samples, nil
}

// Close closes the underlying database.
func (d *DriftLog) Close() error {
	return d.db.Close()
}
