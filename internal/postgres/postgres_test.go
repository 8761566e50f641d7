package postgres

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/spigell/joblens/internal/preferences"
	"github.com/spigell/joblens/internal/session"
)

// fakeDB keeps rows in memory and understands the statements the backend issues.
type fakeDB struct {
	mu    sync.Mutex
	rows  map[string][]any
	execs []string
	err   error
}

func newFakeDB() *fakeDB {
	return &fakeDB{rows: map[string][]any{}}
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.execs = append(f.execs, sql)
	if f.err != nil {
		return pgconn.CommandTag{}, f.err
	}

	switch {
	case strings.HasPrefix(sql, "CREATE TABLE"):
		return pgconn.NewCommandTag("CREATE TABLE"), nil
	case strings.Contains(sql, "ON CONFLICT"):
		f.rows[args[0].(string)] = args
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	case strings.HasPrefix(sql, "INSERT"):
		if _, ok := f.rows[args[0].(string)]; ok {
			return pgconn.CommandTag{}, &pgconn.PgError{Code: "23505", Message: "duplicate key value"}
		}
		f.rows[args[0].(string)] = args
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	case strings.HasPrefix(sql, "UPDATE"):
		if _, ok := f.rows[args[0].(string)]; !ok {
			return pgconn.NewCommandTag("UPDATE 0"), nil
		}
		f.rows[args[0].(string)] = args
		return pgconn.NewCommandTag("UPDATE 1"), nil
	}
	return pgconn.CommandTag{}, errors.New("unexpected statement")
}

func (f *fakeDB) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return fakeRow{err: f.err}
	}
	row, ok := f.rows[args[0].(string)]
	if !ok {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{values: row}
}

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*string) = r.values[0].(string)
	*dest[1].(*string) = r.values[1].(string)
	*dest[2].(*string) = r.values[2].(string)
	*dest[3].(*[]string) = r.values[3].([]string)
	*dest[4].(*int) = r.values[4].(int)
	*dest[5].(*[]string) = r.values[5].([]string)
	*dest[6].(*string) = r.values[6].(string)
	return nil
}

func testSession() *session.Session {
	return &session.Session{UserID: "user-1", AccessToken: "tok", ExpiresAt: time.Now().Add(time.Hour)}
}

func TestNewSanitizesTable(t *testing.T) {
	b := New(newFakeDB(), "")
	if b.table != `"user_preferences"` {
		t.Fatalf("table = %s", b.table)
	}
	if got := New(newFakeDB(), `prefs"; drop`).table; got != `"prefs""; drop"` {
		t.Fatalf("table = %s", got)
	}
}

func TestEnsureSchemaDeclaresUniqueUser(t *testing.T) {
	db := newFakeDB()
	if err := New(db, "").EnsureSchema(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(db.execs[0], "user_id             TEXT NOT NULL UNIQUE") {
		t.Fatalf("schema must make user_id unique:\n%s", db.execs[0])
	}
}

func TestFetchMissingRow(t *testing.T) {
	_, err := New(newFakeDB(), "").Fetch(context.Background(), testSession())
	if !errors.Is(err, preferences.ErrNoRecord) {
		t.Fatalf("expected ErrNoRecord, got %v", err)
	}
}

func TestUpsertThenFetch(t *testing.T) {
	db := newFakeDB()
	b := New(db, "")

	rec := &preferences.Record{
		LocationPreference: "Berlin",
		RemotePreference:   preferences.WorkRemote,
		MinSalary:          70000,
		ExperienceLevel:    preferences.ExperienceSenior,
	}
	for range 2 {
		if err := b.Upsert(context.Background(), testSession(), rec); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	if len(db.rows) != 1 {
		t.Fatalf("expected one row, got %d", len(db.rows))
	}

	got, err := b.Fetch(context.Background(), testSession())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got.UserID != "user-1" || got.LocationPreference != "Berlin" || got.MinSalary != 70000 {
		t.Fatalf("unexpected record %+v", got)
	}
	if got.JobTypes == nil || len(got.JobTypes) != 0 {
		t.Fatalf("nil sets must be stored as empty arrays, got %#v", got.JobTypes)
	}
	if got.RemotePreference != preferences.WorkRemote || got.ExperienceLevel != preferences.ExperienceSenior {
		t.Fatalf("unexpected enums %+v", got)
	}
}

func TestUpdateWithoutRow(t *testing.T) {
	err := New(newFakeDB(), "").Update(context.Background(), testSession(), &preferences.Record{})
	if !errors.Is(err, preferences.ErrNoRecord) {
		t.Fatalf("expected ErrNoRecord, got %v", err)
	}
}

func TestRequiresSession(t *testing.T) {
	db := newFakeDB()
	b := New(db, "")

	if err := b.Upsert(context.Background(), nil, &preferences.Record{}); !errors.Is(err, session.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	if len(db.execs) != 0 {
		t.Fatal("no statement may run without a session")
	}
}

func TestStoreUsesAtomicUpsert(t *testing.T) {
	db := newFakeDB()
	store := preferences.NewStore(New(db, ""), nil, zap.NewNop())

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := preferences.ToStore(preferences.Defaults())
			if err := store.Upsert(context.Background(), testSession(), &rec); err != nil {
				t.Errorf("upsert: %v", err)
			}
		}()
	}
	wg.Wait()

	if len(db.rows) != 1 {
		t.Fatalf("expected one row, got %d", len(db.rows))
	}
	for _, sql := range db.execs {
		if !strings.Contains(sql, "ON CONFLICT") {
			t.Fatalf("expected only atomic upserts, got %q", sql)
		}
	}
}

func TestBackendErrorsBecomeUnavailable(t *testing.T) {
	db := newFakeDB()
	db.err = errors.New("connection reset")
	store := preferences.NewStore(New(db, ""), nil, zap.NewNop())

	_, _, err := store.Get(context.Background(), testSession())
	if !errors.Is(err, preferences.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}
