package store_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/IntricEight/MentalHealthDungeon/internal/db"
	"github.com/IntricEight/MentalHealthDungeon/internal/domain"
	"github.com/IntricEight/MentalHealthDungeon/internal/events"
	"github.com/IntricEight/MentalHealthDungeon/internal/migrate"
	"github.com/IntricEight/MentalHealthDungeon/internal/progression"
	"github.com/IntricEight/MentalHealthDungeon/internal/store"
)

func newTestStore(t *testing.T) (*store.SQLite, *sql.DB) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	s := store.NewSQLite(conn)
	s.Now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return s, conn
}

func TestCreateAndLoadRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	end := time.Date(2025, 6, 2, 9, 30, 0, 500_000_000, time.UTC)
	doc := domain.AccountDocument{
		TaskList: []domain.TaskRecord{
			{ID: "t-1", Name: "Morning walk", Details: "Around the block", Points: 3,
				CreationTime:   time.Date(2025, 6, 1, 8, 0, 0, 123_000_000, time.UTC),
				ExpirationTime: time.Date(2025, 6, 2, 8, 0, 0, 123_000_000, time.UTC)},
			{ID: "t-2", Name: "Journal entry", Points: 2,
				CreationTime:   time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
				ExpirationTime: time.Date(2025, 6, 1, 21, 0, 0, 0, time.UTC)},
		},
		InspirationPoints: 12,
		Capacity:          100,
		ActiveDungeonName: "Dark Cave",
		DungeonEndTime:    &end,
		TasksCompleted:    4,
		DungeonsCompleted: 1,
	}
	if err := s.Create(ctx, "acct-1", doc); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.Load(ctx, "acct-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.InspirationPoints != 12 || got.Capacity != 100 {
		t.Fatalf("balance fields: %+v", got)
	}
	if got.ActiveDungeonName != "Dark Cave" || got.DungeonEndTime == nil || !got.DungeonEndTime.Equal(end) {
		t.Fatalf("adventure fields: %+v", got)
	}
	if got.TasksCompleted != 4 || got.DungeonsCompleted != 1 {
		t.Fatalf("counters: %+v", got)
	}
	if len(got.TaskList) != 2 || got.TaskList[0].ID != "t-1" || got.TaskList[1].ID != "t-2" {
		t.Fatalf("task order: %+v", got.TaskList)
	}
	if !got.TaskList[0].CreationTime.Equal(doc.TaskList[0].CreationTime) {
		t.Fatalf("sub-second precision lost: %v", got.TaskList[0].CreationTime)
	}
}

func TestCreateDuplicate(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	if err := s.Create(ctx, "acct-1", domain.AccountDocument{Capacity: 100}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Create(ctx, "acct-1", domain.AccountDocument{Capacity: 100}); !errors.Is(err, store.ErrExists) {
		t.Fatalf("want ErrExists, got %v", err)
	}
}

func TestLoadMissing(t *testing.T) {
	s, _ := newTestStore(t)
	if _, err := s.Load(context.Background(), "ghost"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestApplyPartialUpdate(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	if err := s.Create(ctx, "acct-1", domain.AccountDocument{InspirationPoints: 5, Capacity: 100}); err != nil {
		t.Fatalf("create: %v", err)
	}

	end := time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC)
	cs := progression.ChangeSet{
		progression.FieldInspirationPoints: 0,
		progression.FieldActiveDungeonName: "Dark Cave",
		progression.FieldDungeonEndTime:    &end,
	}
	if err := s.Apply(ctx, "acct-1", cs); err != nil {
		t.Fatalf("apply: %v", err)
	}

	got, err := s.Load(ctx, "acct-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.InspirationPoints != 0 || got.ActiveDungeonName != "Dark Cave" {
		t.Fatalf("after apply: %+v", got)
	}
	if got.DungeonEndTime == nil || !got.DungeonEndTime.Equal(end) {
		t.Fatalf("end time: %v", got.DungeonEndTime)
	}
	// untouched fields keep their values
	if got.Capacity != 100 {
		t.Fatalf("capacity clobbered: %d", got.Capacity)
	}

	// clearing the adventure writes NULLs back
	if err := s.Apply(ctx, "acct-1", progression.ChangeSet{
		progression.FieldActiveDungeonName: "",
		progression.FieldDungeonEndTime:    (*time.Time)(nil),
	}); err != nil {
		t.Fatalf("apply clear: %v", err)
	}
	got, err = s.Load(ctx, "acct-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.ActiveDungeonName != "" || got.DungeonEndTime != nil {
		t.Fatalf("adventure not cleared: %+v", got)
	}
}

func TestApplyReplacesTaskList(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	if err := s.Create(ctx, "acct-1", domain.AccountDocument{
		Capacity: 100,
		TaskList: []domain.TaskRecord{{ID: "old", Name: "Old", Points: 1,
			CreationTime:   time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC),
			ExpirationTime: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}},
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	replacement := []domain.TaskRecord{
		{ID: "a", Name: "First", Points: 1,
			CreationTime:   time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
			ExpirationTime: time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC)},
		{ID: "b", Name: "Second", Points: 2,
			CreationTime:   time.Date(2025, 6, 1, 10, 5, 0, 0, time.UTC),
			ExpirationTime: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
	}
	if err := s.Apply(ctx, "acct-1", progression.ChangeSet{progression.FieldTaskList: replacement}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	got, err := s.Load(ctx, "acct-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.TaskList) != 2 || got.TaskList[0].ID != "a" || got.TaskList[1].ID != "b" {
		t.Fatalf("task list: %+v", got.TaskList)
	}
}

func TestApplyMissingAccount(t *testing.T) {
	s, _ := newTestStore(t)
	err := s.Apply(context.Background(), "ghost", progression.ChangeSet{progression.FieldInspirationPoints: 1})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}

	// a task-list-only change-set reports the same, not a constraint error
	err = s.Apply(context.Background(), "ghost", progression.ChangeSet{
		progression.FieldTaskList: []domain.TaskRecord{{ID: "t-1", Name: "Orphan", Points: 1,
			CreationTime:   time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC),
			ExpirationTime: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}},
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("task list apply: want ErrNotFound, got %v", err)
	}
}

func TestApplyJournalsEvent(t *testing.T) {
	s, conn := newTestStore(t)
	ctx := context.Background()
	if err := s.Create(ctx, "acct-1", domain.AccountDocument{Capacity: 100}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Apply(ctx, "acct-1", progression.ChangeSet{progression.FieldInspirationPoints: 7}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	tail, err := events.Tail(ctx, conn, "acct-1", 10)
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(tail) != 2 {
		t.Fatalf("want 2 events, got %d", len(tail))
	}
	// newest first
	if tail[0].Type != "account.updated" || tail[1].Type != "account.created" {
		t.Fatalf("event order: %s, %s", tail[0].Type, tail[1].Type)
	}
	// journal timestamps follow the store's clock
	for _, e := range tail {
		if e.TS != "2025-06-01T12:00:00Z" {
			t.Fatalf("event ts ignores injected clock: %s", e.TS)
		}
	}
}

func TestListAccounts(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	ids, err := s.ListAccounts(ctx)
	if err != nil || len(ids) != 0 {
		t.Fatalf("empty list: %v %v", ids, err)
	}
	for _, id := range []string{"acct-1", "acct-2"} {
		if err := s.Create(ctx, id, domain.AccountDocument{Capacity: 100}); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	ids, err = s.ListAccounts(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("want 2 accounts, got %v", ids)
	}
}
