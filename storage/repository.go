package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tolelom/qorachain/core"
)

type writeSnapshot struct {
	dirty   map[string][]byte
	deleted map[string]bool
}

// Store hands out one exclusive Repository at a time over a DB. It is the
// transaction boundary shared by the forger, the synchronizer and tools.
type Store struct {
	db   DB
	lock chan struct{}
}

// NewStore wraps db.
func NewStore(db DB) *Store {
	return &Store{db: db, lock: make(chan struct{}, 1)}
}

// Begin waits for exclusive access and returns a fresh repository handle.
// The caller must Close it.
func (s *Store) Begin(ctx context.Context) (core.Repository, error) {
	select {
	case s.lock <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return newRepository(s.db, func() { <-s.lock }), nil
}

// Repository implements core.Repository on top of a DB with an in-memory write
// buffer, savepoints and batch commit.
type Repository struct {
	db        DB
	dirty     map[string][]byte
	deleted   map[string]bool
	snapshots []writeSnapshot

	closeOnce sync.Once
	release   func()
	closed    bool
}

func newRepository(db DB, release func()) *Repository {
	return &Repository{
		db:      db,
		dirty:   make(map[string][]byte),
		deleted: make(map[string]bool),
		release: release,
	}
}

func (r *Repository) AccountRepository() core.AccountRepository         { return accounts{r} }
func (r *Repository) AssetRepository() core.AssetRepository             { return assets{r} }
func (r *Repository) BlockRepository() core.BlockRepository             { return blocks{r} }
func (r *Repository) TransactionRepository() core.TransactionRepository { return transactions{r} }
func (r *Repository) ATRepository() core.ATRepository                   { return ats{r} }

// ---- internal helpers ----

func (r *Repository) get(key string) ([]byte, error) {
	if r.deleted[key] {
		return nil, core.ErrNotFound
	}
	if v, ok := r.dirty[key]; ok {
		return v, nil
	}
	v, err := r.db.Get([]byte(key))
	return v, core.WrapData("get "+key, err)
}

func (r *Repository) set(key string, val []byte) {
	delete(r.deleted, key)
	r.dirty[key] = val
}

func (r *Repository) del(key string) {
	delete(r.dirty, key)
	r.deleted[key] = true
}

func (r *Repository) getJSON(key string, v any) error {
	data, err := r.get(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return core.WrapData("decode "+key, err)
	}
	return nil
}

func (r *Repository) putJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return core.WrapData("encode "+key, err)
	}
	r.set(key, data)
	return nil
}

func (r *Repository) exists(key string) (bool, error) {
	_, err := r.get(key)
	if errors.Is(err, core.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// scan returns the merged view of persisted and buffered entries under prefix,
// keys sorted ascending.
func (r *Repository) scan(prefix string) ([]string, map[string][]byte, error) {
	merged := make(map[string][]byte)
	it := r.db.NewIterator([]byte(prefix))
	for it.Next() {
		v := make([]byte, len(it.Value()))
		copy(v, it.Value())
		merged[string(it.Key())] = v
	}
	err := it.Error()
	it.Release()
	if err != nil {
		return nil, nil, core.WrapData("scan "+prefix, err)
	}
	for k, v := range r.dirty {
		if strings.HasPrefix(k, prefix) {
			merged[k] = v
		}
	}
	for k := range r.deleted {
		delete(merged, k)
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, merged, nil
}

// ---- Savepoint / Rollback / Commit ----

// Savepoint saves the current write buffer and returns its id.
func (r *Repository) Savepoint() int {
	snap := writeSnapshot{
		dirty:   make(map[string][]byte, len(r.dirty)),
		deleted: make(map[string]bool, len(r.deleted)),
	}
	for k, v := range r.dirty {
		cp := make([]byte, len(v))
		copy(cp, v)
		snap.dirty[k] = cp
	}
	for k, v := range r.deleted {
		snap.deleted[k] = v
	}
	r.snapshots = append(r.snapshots, snap)
	return len(r.snapshots) - 1
}

// RollbackTo restores the write buffer to a savepoint, dropping it and every
// later savepoint.
func (r *Repository) RollbackTo(id int) error {
	if id < 0 || id >= len(r.snapshots) {
		return fmt.Errorf("invalid savepoint %d", id)
	}
	snap := r.snapshots[id]
	r.dirty = snap.dirty
	r.deleted = snap.deleted
	r.snapshots = r.snapshots[:id]
	return nil
}

// SaveChanges atomically flushes the write buffer to the DB.
func (r *Repository) SaveChanges() error {
	if r.closed {
		return core.ErrReadOnly
	}
	batch := r.db.NewBatch()
	for k, v := range r.dirty {
		batch.Set([]byte(k), v)
	}
	for k := range r.deleted {
		batch.Delete([]byte(k))
	}
	if err := batch.Write(); err != nil {
		return core.WrapData("save changes", err)
	}
	r.reset()
	return nil
}

// DiscardChanges drops everything written since the last save.
func (r *Repository) DiscardChanges() error {
	r.reset()
	return nil
}

func (r *Repository) reset() {
	r.dirty = make(map[string][]byte)
	r.deleted = make(map[string]bool)
	r.snapshots = nil
}

// Rebuild erases the whole ledger, committed rows included.
func (r *Repository) Rebuild() error {
	r.reset()
	it := r.db.NewIterator(nil)
	batch := r.db.NewBatch()
	for it.Next() {
		k := make([]byte, len(it.Key()))
		copy(k, it.Key())
		batch.Delete(k)
	}
	err := it.Error()
	it.Release()
	if err != nil {
		return core.WrapData("rebuild scan", err)
	}
	return core.WrapData("rebuild", batch.Write())
}

// Close discards uncommitted changes and releases the store lock.
func (r *Repository) Close() error {
	r.closeOnce.Do(func() {
		r.reset()
		r.closed = true
		if r.release != nil {
			r.release()
		}
	})
	return nil
}

// Dump returns the merged view of every key, committed and buffered. It backs
// state-equality checks in tests and offline inspection tools.
func (r *Repository) Dump() (map[string][]byte, error) {
	_, vals, err := r.scan("")
	return vals, err
}
