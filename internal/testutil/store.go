package testutil

import (
	"context"
	"sync"

	"github.com/roach88/objgraph/internal/ir"
	"github.com/roach88/objgraph/internal/queryir"
)

// Store is the backing store contract the fault injector wraps.
type Store interface {
	Fetch(ctx context.Context, req queryir.FetchRequest) ([]ir.Row, error)
	Get(ctx context.Context, id ir.ObjectID) (ir.Row, error)
	Persist(ctx context.Context, cs ir.ChangeSet) error
	Close() error
}

// FaultyStore wraps a store, records every persisted change set and fails
// calls on demand.
type FaultyStore struct {
	inner Store

	mu         sync.Mutex
	persistErr error
	fetchErr   error
	persisted  []ir.ChangeSet
}

// NewFaultyStore wraps inner.
func NewFaultyStore(inner Store) *FaultyStore {
	return &FaultyStore{inner: inner}
}

// FailPersist makes every later Persist return err. Nil heals the store.
func (s *FaultyStore) FailPersist(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persistErr = err
}

// FailFetch makes every later Fetch and Get return err.
func (s *FaultyStore) FailFetch(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchErr = err
}

// Persisted returns the change sets that reached the inner store.
func (s *FaultyStore) Persisted() []ir.ChangeSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ir.ChangeSet(nil), s.persisted...)
}

func (s *FaultyStore) Fetch(ctx context.Context, req queryir.FetchRequest) ([]ir.Row, error) {
	s.mu.Lock()
	err := s.fetchErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.inner.Fetch(ctx, req)
}

func (s *FaultyStore) Get(ctx context.Context, id ir.ObjectID) (ir.Row, error) {
	s.mu.Lock()
	err := s.fetchErr
	s.mu.Unlock()
	if err != nil {
		return ir.Row{}, err
	}
	return s.inner.Get(ctx, id)
}

func (s *FaultyStore) Persist(ctx context.Context, cs ir.ChangeSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.persistErr != nil {
		return s.persistErr
	}
	if err := s.inner.Persist(ctx, cs); err != nil {
		return err
	}
	s.persisted = append(s.persisted, cs)
	return nil
}

func (s *FaultyStore) Close() error { return s.inner.Close() }
