package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/IntricEight/MentalHealthDungeon/internal/app"
	"github.com/IntricEight/MentalHealthDungeon/internal/catalog"
	"github.com/IntricEight/MentalHealthDungeon/internal/db"
	"github.com/IntricEight/MentalHealthDungeon/internal/domain"
	"github.com/IntricEight/MentalHealthDungeon/internal/migrate"
	"github.com/IntricEight/MentalHealthDungeon/internal/progression"
	"github.com/IntricEight/MentalHealthDungeon/internal/store"
)

type testEnv struct {
	Service *app.Service
	Ctx     context.Context
	now     time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	env := &testEnv{Ctx: context.Background(), now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	st := store.NewSQLite(conn)
	st.Now = func() time.Time { return env.now }
	env.Service = app.New(st, cat)
	env.Service.Now = func() time.Time { return env.now }
	return env
}

func (env *testEnv) advance(d time.Duration) { env.now = env.now.Add(d) }

func TestSessionStatePersistsAcrossLoads(t *testing.T) {
	env := newTestEnv(t)
	svc := env.Service

	if _, err := svc.CreateAccount(env.Ctx, "hiker"); err != nil {
		t.Fatalf("create account: %v", err)
	}
	task, err := svc.AddTask(env.Ctx, "hiker", "Stretch", "", 5, 2)
	if err != nil {
		t.Fatalf("add task: %v", err)
	}
	credited, err := svc.CompleteTask(env.Ctx, "hiker", task.ID)
	if err != nil || !credited {
		t.Fatalf("complete task: credited=%v err=%v", credited, err)
	}

	// every operation rebuilds the aggregate from the store, so the
	// credit must have been written through
	doc, err := svc.Account(env.Ctx, "hiker")
	if err != nil {
		t.Fatalf("load account: %v", err)
	}
	if doc.InspirationPoints != 5 || doc.TasksCompleted != 1 || len(doc.TaskList) != 0 {
		t.Fatalf("persisted state: %+v", doc)
	}
}

func TestAdventureLifecycleThroughService(t *testing.T) {
	env := newTestEnv(t)
	svc := env.Service

	if _, err := svc.CreateAccount(env.Ctx, "hiker"); err != nil {
		t.Fatalf("create account: %v", err)
	}
	for i := 0; i < 2; i++ {
		task, err := svc.AddTask(env.Ctx, "hiker", "Chore", "", 10, 1)
		if err != nil {
			t.Fatalf("add task: %v", err)
		}
		if _, err := svc.CompleteTask(env.Ctx, "hiker", task.ID); err != nil {
			t.Fatalf("complete task: %v", err)
		}
	}

	adv, err := svc.BeginAdventure(env.Ctx, "hiker", "Dark Cave")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if adv.DungeonName != "Dark Cave" || !adv.EndsAt.Equal(env.now.Add(time.Hour)) {
		t.Fatalf("adventure: %+v", adv)
	}

	if _, err := svc.CompleteAdventure(env.Ctx, "hiker"); !errors.Is(err, progression.ErrNotResolvable) {
		t.Fatalf("early complete: %v", err)
	}

	status, err := svc.AdventureStatus(env.Ctx, "hiker")
	if err != nil || status.State != progression.StateActive {
		t.Fatalf("status: %+v err=%v", status, err)
	}

	env.advance(time.Hour)

	doc, err := svc.CompleteAdventure(env.Ctx, "hiker")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if doc.Capacity != 105 || doc.ActiveDungeonName != "" || doc.DungeonsCompleted != 1 {
		t.Fatalf("after complete: %+v", doc)
	}

	// the resolution must survive a fresh load too
	reloaded, err := svc.Account(env.Ctx, "hiker")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Capacity != 105 || reloaded.ActiveDungeonName != "" {
		t.Fatalf("reloaded state: %+v", reloaded)
	}
}

// slowStore widens the window between loading a document and writing
// the change-set back, and counts how many operations are inside that
// window at once.
type slowStore struct {
	store.Store
	delay   time.Duration
	mu      sync.Mutex
	open    int
	maxOpen int
}

func (s *slowStore) Load(ctx context.Context, accountID string) (domain.AccountDocument, error) {
	s.mu.Lock()
	s.open++
	if s.open > s.maxOpen {
		s.maxOpen = s.open
	}
	s.mu.Unlock()
	doc, err := s.Store.Load(ctx, accountID)
	time.Sleep(s.delay)
	return doc, err
}

func (s *slowStore) Apply(ctx context.Context, accountID string, cs progression.ChangeSet) error {
	err := s.Store.Apply(ctx, accountID, cs)
	s.mu.Lock()
	s.open--
	s.mu.Unlock()
	return err
}

func TestConcurrentMutationsSerialize(t *testing.T) {
	env := newTestEnv(t)
	svc := env.Service

	if _, err := svc.CreateAccount(env.Ctx, "hiker"); err != nil {
		t.Fatalf("create account: %v", err)
	}
	for i := 0; i < 2; i++ {
		task, err := svc.AddTask(env.Ctx, "hiker", "Chore", "", 10, 1)
		if err != nil {
			t.Fatalf("add task: %v", err)
		}
		if _, err := svc.CompleteTask(env.Ctx, "hiker", task.ID); err != nil {
			t.Fatalf("complete task: %v", err)
		}
	}
	open, err := svc.AddTask(env.Ctx, "hiker", "Stretch", "", 10, 1)
	if err != nil {
		t.Fatalf("add task: %v", err)
	}

	slow := &slowStore{Store: svc.Store, delay: 20 * time.Millisecond}
	svc.Store = slow

	// balance is 20: complete the open task (+10) while entering the
	// Dark Cave (-15) from another goroutine
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if _, err := svc.CompleteTask(env.Ctx, "hiker", open.ID); err != nil {
			t.Errorf("complete task: %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		if _, err := svc.BeginAdventure(env.Ctx, "hiker", "Dark Cave"); err != nil {
			t.Errorf("begin adventure: %v", err)
		}
	}()
	wg.Wait()

	if slow.maxOpen > 1 {
		t.Fatalf("operations interleaved: %d concurrent load/apply windows", slow.maxOpen)
	}

	doc, err := svc.Account(env.Ctx, "hiker")
	if err != nil {
		t.Fatalf("load account: %v", err)
	}
	if doc.InspirationPoints != 15 {
		t.Fatalf("credit lost to interleaving: balance=%d want 15", doc.InspirationPoints)
	}
	if doc.ActiveDungeonName != "Dark Cave" || doc.TasksCompleted != 3 {
		t.Fatalf("final state: %+v", doc)
	}
}

func TestMissingAccountSurfacesNotFound(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Service.ListTasks(env.Ctx, "ghost"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}
