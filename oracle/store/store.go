// Package store persists the processing state of withdrawals by nonce key
// so a restarted oracle does not broadcast the same withdrawal twice.
package store

import (
	"encoding/binary"
	"fmt"
	"time"

	dbm "github.com/tendermint/tm-db"
)

// Status is the processing state recorded for a nonce key
type Status byte

const (
	StatusUnknown Status = iota
	StatusProcessing
	StatusBroadcasted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusProcessing:
		return "processing"
	case StatusBroadcasted:
		return "broadcasted"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Done reports whether no further work is needed for the key
func (s Status) Done() bool {
	return s == StatusBroadcasted
}

const dbName = "nonce"

// NonceStore maps nonce keys to their status. Values are one status byte
// followed by the big-endian unix second of the last update.
type NonceStore struct {
	db dbm.DB
}

// Open opens the on-disk store under dir using the given backend
// ("goleveldb" or "memdb").
func Open(backend, dir string) (*NonceStore, error) {
	db, err := dbm.NewDB(dbName, dbm.BackendType(backend), dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open nonce store: %w", err)
	}

	return New(db), nil
}

func New(db dbm.DB) *NonceStore {
	return &NonceStore{db: db}
}

// NewMemStore returns a store backed by an in-memory database
func NewMemStore() *NonceStore {
	return New(dbm.NewMemDB())
}

func (s *NonceStore) Status(key []byte) (Status, error) {
	status, _, err := s.Get(key)
	return status, err
}

// Get returns the status and the time it was recorded
func (s *NonceStore) Get(key []byte) (Status, time.Time, error) {
	bz, err := s.db.Get(key)
	if err != nil {
		return StatusUnknown, time.Time{}, fmt.Errorf("failed to read %s: %w", key, err)
	}

	if len(bz) == 0 {
		return StatusUnknown, time.Time{}, nil
	}

	var updated time.Time
	if len(bz) == 9 {
		updated = time.Unix(int64(binary.BigEndian.Uint64(bz[1:])), 0)
	}

	return Status(bz[0]), updated, nil
}

func (s *NonceStore) SetStatus(key []byte, status Status) error {
	bz := make([]byte, 9)
	bz[0] = byte(status)
	binary.BigEndian.PutUint64(bz[1:], uint64(time.Now().Unix()))

	if err := s.db.SetSync(key, bz); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}

	return nil
}

func (s *NonceStore) Delete(key []byte) error {
	return s.db.DeleteSync(key)
}

// Pending returns the keys still marked as processing, e.g. after a crash
func (s *NonceStore) Pending() ([][]byte, error) {
	it, err := s.db.Iterator(nil, nil)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var keys [][]byte
	for ; it.Valid(); it.Next() {
		v := it.Value()
		if len(v) > 0 && Status(v[0]) == StatusProcessing {
			keys = append(keys, append([]byte(nil), it.Key()...))
		}
	}

	return keys, it.Error()
}

// Ping checks the database is readable
func (s *NonceStore) Ping() error {
	_, err := s.db.Has([]byte(dbName))
	return err
}

func (s *NonceStore) Close() error {
	return s.db.Close()
}
