package reindex

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/ehr/searchindex/internal/platform/fhirpath"
	"github.com/ehr/searchindex/internal/platform/searchparam"
	"github.com/ehr/searchindex/internal/platform/tokenindex"
)

type statement struct {
	sql  string
	args []any
}

// fakeDB serves resource tables from memory and records every statement.
type fakeDB struct {
	mu        sync.Mutex
	tables    map[string][]storedResource
	failTable string
	execErr   error
	execs     []statement
	commits   int
}

func newFakeDB(tables map[string][]storedResource) *fakeDB {
	for _, rows := range tables {
		sort.Slice(rows, func(i, j int) bool { return bytes.Compare(rows[i].id[:], rows[j].id[:]) < 0 })
	}
	return &fakeDB{tables: tables}
}

func (f *fakeDB) Begin(context.Context) (pgx.Tx, error) {
	return &fakeTx{db: f}, nil
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.execErr != nil {
		return pgconn.CommandTag{}, f.execErr
	}
	f.execs = append(f.execs, statement{sql, args})
	return pgconn.NewCommandTag("OK"), nil
}

func (f *fakeDB) tokenStatements(table string) []statement {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []statement
	for _, s := range f.execs {
		if strings.Contains(s.sql, `"`+table+`_token"`) {
			out = append(out, s)
		}
	}
	return out
}

func (f *fakeDB) lastJobUpdate() statement {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.execs) - 1; i >= 0; i-- {
		if strings.HasPrefix(f.execs[i].sql, "UPDATE reindex_job") {
			return f.execs[i]
		}
	}
	return statement{}
}

type fakeTx struct {
	pgx.Tx
	db *fakeDB
}

func (t *fakeTx) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	for table, rows := range t.db.tables {
		if !strings.Contains(sql, `FROM "`+table+`" `) {
			continue
		}
		if table == t.db.failTable {
			return nil, errors.New("relation does not exist")
		}
		after := args[0].(uuid.UUID)
		limit := args[1].(int)
		var out []storedResource
		for _, r := range rows {
			if bytes.Compare(r.id[:], after[:]) > 0 && len(out) < limit {
				out = append(out, r)
			}
		}
		return &fakeRows{rows: out, pos: -1}, nil
	}
	return nil, fmt.Errorf("unexpected query %s", sql)
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.db.Exec(ctx, sql, args...)
}

func (t *fakeTx) Commit(context.Context) error {
	t.db.mu.Lock()
	t.db.commits++
	t.db.mu.Unlock()
	return nil
}

func (t *fakeTx) Rollback(context.Context) error { return nil }

type fakeRows struct {
	pgx.Rows
	rows []storedResource
	pos  int
}

func (r *fakeRows) Next() bool {
	r.pos++
	return r.pos < len(r.rows)
}

func (r *fakeRows) Scan(dest ...any) error {
	*(dest[0].(*uuid.UUID)) = r.rows[r.pos].id
	*(dest[1].(*map[string]any)) = r.rows[r.pos].content
	return nil
}

func (r *fakeRows) Err() error { return nil }
func (r *fakeRows) Close()     {}

func newTestStore(t *testing.T) *tokenindex.Store {
	t.Helper()
	registry, err := searchparam.NewRegistry(searchparam.Defaults(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	extractor := tokenindex.NewExtractor(registry, fhirpath.NewEngine(), zerolog.Nop())
	return tokenindex.NewStore(registry, extractor, zerolog.Nop())
}

func patient(value string) storedResource {
	return storedResource{
		id: uuid.New(),
		content: map[string]any{
			"resourceType": "Patient",
			"identifier":   []any{map[string]any{"system": "http://example.org", "value": value}},
		},
	}
}

func observation(code string) storedResource {
	return storedResource{
		id: uuid.New(),
		content: map[string]any{
			"resourceType": "Observation",
			"code":         map[string]any{"coding": []any{map[string]any{"system": "http://loinc.org", "code": code}}},
		},
	}
}

func TestRunner_Run(t *testing.T) {
	fdb := newFakeDB(map[string][]storedResource{
		"patient":     {patient("1"), patient("2"), patient("3")},
		"observation": {observation("a"), observation("b")},
	})
	r := NewRunner(fdb, newTestStore(t), Options{BatchSize: 2, Workers: 2}, zerolog.Nop())

	report, err := r.Run(context.Background(), []string{"Patient", "Observation"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := map[string]TypeStats{
		"Patient":     {ResourceType: "Patient", Indexed: 3, Batches: 2},
		"Observation": {ResourceType: "Observation", Indexed: 2, Batches: 1},
	}
	for _, got := range report.Types {
		w := want[got.ResourceType]
		if got.Indexed != w.Indexed || got.Batches != w.Batches || got.Failed {
			t.Errorf("%s: got %+v, want %+v", got.ResourceType, got, w)
		}
	}
	if report.Indexed() != 5 {
		t.Errorf("expected 5 resources indexed, got %d", report.Indexed())
	}

	var deletes, inserts int
	for _, s := range fdb.tokenStatements("patient") {
		switch {
		case strings.HasPrefix(s.sql, "DELETE"):
			deletes++
		case strings.HasPrefix(s.sql, "INSERT"):
			inserts++
		}
	}
	if deletes != 3 || inserts != 3 {
		t.Errorf("expected each patient's rows replaced, got %d deletes and %d inserts", deletes, inserts)
	}

	update := fdb.lastJobUpdate()
	if update.sql == "" {
		t.Fatal("expected the job to be finished")
	}
	if update.args[0] != report.JobID || update.args[1] != StatusCompleted || update.args[2] != int64(5) {
		t.Errorf("unexpected job update args %v", update.args)
	}
}

func TestRunner_RunIsRepeatable(t *testing.T) {
	fdb := newFakeDB(map[string][]storedResource{"patient": {patient("1"), patient("2")}})
	r := NewRunner(fdb, newTestStore(t), Options{BatchSize: 10, Workers: 1}, zerolog.Nop())

	if _, err := r.Run(context.Background(), []string{"Patient"}); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first := fdb.tokenStatements("patient")

	fdb.execs = nil
	if _, err := r.Run(context.Background(), []string{"Patient"}); err != nil {
		t.Fatalf("second run: %v", err)
	}
	second := fdb.tokenStatements("patient")

	if !reflect.DeepEqual(first, second) {
		t.Errorf("reindex is not repeatable:\nfirst  %v\nsecond %v", first, second)
	}
}

func TestRunner_RunFailure(t *testing.T) {
	fdb := newFakeDB(map[string][]storedResource{
		"patient":     {patient("1")},
		"observation": {observation("a")},
	})
	fdb.failTable = "observation"
	r := NewRunner(fdb, newTestStore(t), Options{BatchSize: 10, Workers: 1}, zerolog.Nop())

	report, err := r.Run(context.Background(), []string{"Patient", "Observation"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "Observation") {
		t.Errorf("error should name the resource type: %v", err)
	}
	if !report.Types[1].Failed {
		t.Errorf("expected Observation to be marked failed: %+v", report.Types[1])
	}

	update := fdb.lastJobUpdate()
	if update.args[1] != StatusFailed || update.args[3] != 1 {
		t.Errorf("unexpected job update args %v", update.args)
	}
	if msg, ok := update.args[4].(*string); !ok || msg == nil {
		t.Errorf("expected the error message to be recorded, got %v", update.args[4])
	}
}

func TestRunner_RunJobNotRecorded(t *testing.T) {
	fdb := newFakeDB(nil)
	fdb.execErr = errors.New("relation \"reindex_job\" does not exist")
	r := NewRunner(fdb, newTestStore(t), Options{}, zerolog.Nop())

	report, err := r.Run(context.Background(), []string{"Patient"})
	if err == nil || report != nil {
		t.Fatalf("expected failure before any work, got %v, %v", report, err)
	}
}

func TestNewRunner_Defaults(t *testing.T) {
	r := NewRunner(newFakeDB(nil), nil, Options{}, zerolog.Nop())
	if r.opts.BatchSize != 500 || r.opts.Workers != 1 {
		t.Errorf("unexpected defaults %+v", r.opts)
	}
}
