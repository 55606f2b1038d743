// Package app glues the progression core to the document store. It
// owns the session pattern: load the account document, rebuild the
// in-memory aggregate, run one operation, forward the emitted
// change-set to the store.
package app

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/IntricEight/MentalHealthDungeon/internal/catalog"
	"github.com/IntricEight/MentalHealthDungeon/internal/domain"
	"github.com/IntricEight/MentalHealthDungeon/internal/progression"
	"github.com/IntricEight/MentalHealthDungeon/internal/store"
)

type Service struct {
	Store   store.Store
	Catalog *catalog.Catalog
	Now     func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(st store.Store, cat *catalog.Catalog) *Service {
	return &Service{Store: st, Catalog: cat, Now: time.Now}
}

// lock serializes mutations per account. Each mutating operation
// holds its account's mutex across the whole load, mutate, apply
// sequence; without that, two interleaved operations would both load
// the same document and the later apply would overwrite the earlier
// one's fields.
func (s *Service) lock(accountID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locks == nil {
		s.locks = make(map[string]*sync.Mutex)
	}
	mu, ok := s.locks[accountID]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[accountID] = mu
	}
	return mu
}

// CreateAccount inserts a fresh document with the default capacity.
func (s *Service) CreateAccount(ctx context.Context, accountID string) (domain.AccountDocument, error) {
	acct := progression.New(s.Catalog)
	doc := acct.Snapshot()
	if err := s.Store.Create(ctx, accountID, doc); err != nil {
		return domain.AccountDocument{}, err
	}
	return doc, nil
}

func (s *Service) Account(ctx context.Context, accountID string) (domain.AccountDocument, error) {
	return s.Store.Load(ctx, accountID)
}

func (s *Service) ListAccounts(ctx context.Context) ([]string, error) {
	return s.Store.ListAccounts(ctx)
}

// session rebuilds the aggregate from its stored document.
func (s *Service) session(ctx context.Context, accountID string) (*progression.Account, error) {
	doc, err := s.Store.Load(ctx, accountID)
	if err != nil {
		return nil, err
	}
	acct := progression.FromDocument(s.Catalog, doc)
	if s.Now != nil {
		acct.Now = s.Now
	}
	return acct, nil
}

// apply forwards a change-set to the store. Persistence is
// fire-and-forget from the aggregate's point of view: the in-memory
// state has already advanced, so a write failure is logged rather
// than unwound.
func (s *Service) apply(ctx context.Context, accountID string, cs progression.ChangeSet) {
	if len(cs) == 0 {
		return
	}
	if err := s.Store.Apply(ctx, accountID, cs); err != nil {
		log.Printf("apply change-set for %s: %v", accountID, err)
	}
}

func (s *Service) AddTask(ctx context.Context, accountID, name, details string, points int, hours float64) (domain.Task, error) {
	mu := s.lock(accountID)
	mu.Lock()
	defer mu.Unlock()
	acct, err := s.session(ctx, accountID)
	if err != nil {
		return domain.Task{}, err
	}
	task, cs, err := acct.CreateTask(name, details, points, hours)
	if err != nil {
		return domain.Task{}, err
	}
	s.apply(ctx, accountID, cs)
	return task, nil
}

func (s *Service) AddPresetTask(ctx context.Context, accountID, presetName string) (domain.Task, error) {
	mu := s.lock(accountID)
	mu.Lock()
	defer mu.Unlock()
	acct, err := s.session(ctx, accountID)
	if err != nil {
		return domain.Task{}, err
	}
	task, cs, err := acct.CreatePresetTask(presetName)
	if err != nil {
		return domain.Task{}, err
	}
	s.apply(ctx, accountID, cs)
	return task, nil
}

func (s *Service) ListTasks(ctx context.Context, accountID string) ([]domain.Task, error) {
	acct, err := s.session(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return acct.ListTasks(), nil
}

// RemoveTask drops a task, crediting its points when the caller marks
// it completed.
func (s *Service) RemoveTask(ctx context.Context, accountID, taskID string, completed bool) error {
	mu := s.lock(accountID)
	mu.Lock()
	defer mu.Unlock()
	acct, err := s.session(ctx, accountID)
	if err != nil {
		return err
	}
	cs, err := acct.RemoveTask(taskID, completed)
	if err != nil {
		return err
	}
	s.apply(ctx, accountID, cs)
	return nil
}

// CompleteTask is the user-facing completion path: points are credited
// only when the deadline has not passed.
func (s *Service) CompleteTask(ctx context.Context, accountID, taskID string) (bool, error) {
	mu := s.lock(accountID)
	mu.Lock()
	defer mu.Unlock()
	acct, err := s.session(ctx, accountID)
	if err != nil {
		return false, err
	}
	credited, cs, err := acct.CompleteTask(taskID)
	if err != nil {
		return false, err
	}
	s.apply(ctx, accountID, cs)
	return credited, nil
}

func (s *Service) BeginAdventure(ctx context.Context, accountID, dungeonName string) (domain.Adventure, error) {
	mu := s.lock(accountID)
	mu.Lock()
	defer mu.Unlock()
	acct, err := s.session(ctx, accountID)
	if err != nil {
		return domain.Adventure{}, err
	}
	adv, cs, err := acct.BeginAdventure(dungeonName)
	if err != nil {
		return domain.Adventure{}, err
	}
	s.apply(ctx, accountID, cs)
	return adv, nil
}

// CompleteAdventure resolves a finished adventure and returns the
// refreshed document so callers can show the new capacity.
func (s *Service) CompleteAdventure(ctx context.Context, accountID string) (domain.AccountDocument, error) {
	mu := s.lock(accountID)
	mu.Lock()
	defer mu.Unlock()
	acct, err := s.session(ctx, accountID)
	if err != nil {
		return domain.AccountDocument{}, err
	}
	cs, err := acct.CompleteAdventure()
	if err != nil {
		return domain.AccountDocument{}, err
	}
	s.apply(ctx, accountID, cs)
	return acct.Snapshot(), nil
}

func (s *Service) AdventureStatus(ctx context.Context, accountID string) (progression.AdventureStatus, error) {
	acct, err := s.session(ctx, accountID)
	if err != nil {
		return progression.AdventureStatus{}, err
	}
	return acct.AdventureStatus(), nil
}
