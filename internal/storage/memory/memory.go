// Package memory is the no-database target and preference store, for local
// development and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"pocketsight/internal/core"
	"pocketsight/internal/ports"
)

type Store struct {
	mu      sync.Mutex
	targets map[targetKey]core.BudgetTarget
	prefs   map[string]string
}

type targetKey struct {
	monthKey   string
	categoryID int64
}

var (
	_ ports.TargetStore     = (*Store)(nil)
	_ ports.PreferenceStore = (*Store)(nil)
)

func New() *Store {
	return &Store{
		targets: map[targetKey]core.BudgetTarget{},
		prefs:   map[string]string{},
	}
}

// ListTargets returns targets for the month sorted by category id.
func (s *Store) ListTargets(_ context.Context, monthKey string) ([]core.BudgetTarget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.BudgetTarget
	for k, t := range s.targets {
		if k.monthKey == monthKey {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CategoryID < out[j].CategoryID })
	return out, nil
}

func (s *Store) PutTarget(_ context.Context, target core.BudgetTarget) error {
	if err := target.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targets[targetKey{target.MonthKey, target.CategoryID}] = target
	return nil
}

func (s *Store) DeleteTarget(_ context.Context, monthKey string, categoryID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.targets, targetKey{monthKey, categoryID})
	return nil
}

func (s *Store) GetPreference(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.prefs[key]
	return value, ok, nil
}

func (s *Store) SetPreference(_ context.Context, key, value string) error {
	if key == "" {
		return core.ErrEmptyPreferenceKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[key] = value
	return nil
}

func (s *Store) DeletePreference(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.prefs, key)
	return nil
}
