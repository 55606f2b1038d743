package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/IntricEight/MentalHealthDungeon/internal/domain"
	"github.com/IntricEight/MentalHealthDungeon/internal/events"
	"github.com/IntricEight/MentalHealthDungeon/internal/progression"
)

// SQLite keeps each account as a row in accounts plus child rows in
// account_tasks. Apply translates a change-set into one transaction
// and journals it to the events table.
type SQLite struct {
	DB     *sql.DB
	Events events.Writer
	Now    func() time.Time
}

func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{DB: db, Events: events.Writer{DB: db}, Now: time.Now}
}

func (s *SQLite) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// events returns the journal writer with the store's clock, so event
// timestamps agree with updated_at under an injected Now.
func (s *SQLite) events() events.Writer {
	w := s.Events
	if w.Now == nil {
		w.Now = s.Now
	}
	return w
}

func (s *SQLite) Create(ctx context.Context, accountID string, doc domain.AccountDocument) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := s.now().UTC().Format(time.RFC3339Nano)
	_, err = tx.ExecContext(ctx, `INSERT INTO accounts(id,inspiration_points,capacity,active_dungeon_name,dungeon_end_time,tasks_completed,dungeons_completed,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		accountID, doc.InspirationPoints, doc.Capacity, nullable(doc.ActiveDungeonName), nullableTime(doc.DungeonEndTime), doc.TasksCompleted, doc.DungeonsCompleted, now, now)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return ErrExists
		}
		return err
	}
	if err := insertTasks(ctx, tx, accountID, doc.TaskList); err != nil {
		return err
	}
	if err := s.events().Append(ctx, tx, "account.created", accountID, events.Payload{"capacity": doc.Capacity}); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLite) Load(ctx context.Context, accountID string) (domain.AccountDocument, error) {
	var (
		doc     domain.AccountDocument
		dungeon sql.NullString
		endTime sql.NullString
	)
	row := s.DB.QueryRowContext(ctx, `SELECT inspiration_points,capacity,active_dungeon_name,dungeon_end_time,tasks_completed,dungeons_completed FROM accounts WHERE id=?`, accountID)
	err := row.Scan(&doc.InspirationPoints, &doc.Capacity, &dungeon, &endTime, &doc.TasksCompleted, &doc.DungeonsCompleted)
	if err == sql.ErrNoRows {
		return doc, ErrNotFound
	}
	if err != nil {
		return doc, err
	}
	if dungeon.Valid {
		doc.ActiveDungeonName = dungeon.String
	}
	if endTime.Valid {
		t, err := time.Parse(time.RFC3339Nano, endTime.String)
		if err != nil {
			return doc, fmt.Errorf("parse dungeon_end_time: %w", err)
		}
		doc.DungeonEndTime = &t
	}
	doc.TaskList, err = s.loadTasks(ctx, accountID)
	return doc, err
}

func (s *SQLite) loadTasks(ctx context.Context, accountID string) ([]domain.TaskRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id,name,details,points,creation_time,expiration_time FROM account_tasks WHERE account_id=? ORDER BY rowid`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.TaskRecord
	for rows.Next() {
		var (
			rec              domain.TaskRecord
			created, expires string
		)
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Details, &rec.Points, &created, &expires); err != nil {
			return nil, err
		}
		if rec.CreationTime, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("parse creation_time: %w", err)
		}
		if rec.ExpirationTime, err = time.Parse(time.RFC3339Nano, expires); err != nil {
			return nil, fmt.Errorf("parse expiration_time: %w", err)
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// Apply writes exactly the fields named by the change-set. Scalar
// fields become one UPDATE; a task list change replaces the account's
// child rows wholesale, which keeps insertion order via rowid.
func (s *SQLite) Apply(ctx context.Context, accountID string, cs progression.ChangeSet) error {
	if len(cs) == 0 {
		return nil
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var (
		fields   []string
		args     []any
		tasks    []domain.TaskRecord
		hasTasks bool
	)
	for key, value := range cs {
		switch key {
		case progression.FieldTaskList:
			records, ok := value.([]domain.TaskRecord)
			if !ok {
				return fmt.Errorf("field %s: unexpected type %T", key, value)
			}
			tasks, hasTasks = records, true
		case progression.FieldInspirationPoints:
			fields = append(fields, "inspiration_points=?")
			args = append(args, value)
		case progression.FieldCapacity:
			fields = append(fields, "capacity=?")
			args = append(args, value)
		case progression.FieldActiveDungeonName:
			name, ok := value.(string)
			if !ok {
				return fmt.Errorf("field %s: unexpected type %T", key, value)
			}
			fields = append(fields, "active_dungeon_name=?")
			args = append(args, nullable(name))
		case progression.FieldDungeonEndTime:
			end, ok := value.(*time.Time)
			if !ok {
				return fmt.Errorf("field %s: unexpected type %T", key, value)
			}
			fields = append(fields, "dungeon_end_time=?")
			args = append(args, nullableTime(end))
		case progression.FieldTasksCompleted:
			fields = append(fields, "tasks_completed=?")
			args = append(args, value)
		case progression.FieldDungeonsCompleted:
			fields = append(fields, "dungeons_completed=?")
			args = append(args, value)
		default:
			return fmt.Errorf("unknown field %q", key)
		}
	}

	// the accounts UPDATE doubles as the existence check, so it runs
	// before any child-row work
	fields = append(fields, "updated_at=?")
	args = append(args, s.now().UTC().Format(time.RFC3339Nano), accountID)
	res, err := tx.ExecContext(ctx, fmt.Sprintf(`UPDATE accounts SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}

	if hasTasks {
		if _, err := tx.ExecContext(ctx, `DELETE FROM account_tasks WHERE account_id=?`, accountID); err != nil {
			return err
		}
		if err := insertTasks(ctx, tx, accountID, tasks); err != nil {
			return err
		}
	}

	if err := s.events().Append(ctx, tx, "account.updated", accountID, eventPayload(cs)); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLite) ListAccounts(ctx context.Context) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id FROM accounts ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		res = append(res, id)
	}
	return res, rows.Err()
}

func insertTasks(ctx context.Context, tx *sql.Tx, accountID string, tasks []domain.TaskRecord) error {
	for _, rec := range tasks {
		_, err := tx.ExecContext(ctx, `INSERT INTO account_tasks(id,account_id,name,details,points,creation_time,expiration_time) VALUES (?,?,?,?,?,?,?)`,
			rec.ID, accountID, rec.Name, rec.Details, rec.Points,
			rec.CreationTime.UTC().Format(time.RFC3339Nano),
			rec.ExpirationTime.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return err
		}
	}
	return nil
}

// eventPayload flattens the change-set into a journal payload. Task
// lists are recorded as a count to keep the journal compact.
func eventPayload(cs progression.ChangeSet) events.Payload {
	payload := events.Payload{}
	for key, value := range cs {
		switch v := value.(type) {
		case []domain.TaskRecord:
			payload["taskCount"] = len(v)
		case *time.Time:
			if v == nil {
				payload[key] = nil
			} else {
				payload[key] = v.UTC().Format(time.RFC3339Nano)
			}
		default:
			payload[key] = value
		}
	}
	return payload
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

var _ Store = (*SQLite)(nil)
