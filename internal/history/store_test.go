package history

import (
	"context"
	"errors"
	"flag"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/models"
	"github.com/redis/go-redis/v9"
)

var integration = flag.Bool("integration", false, "run store tests against local Redis and Postgres")

func newRecord(promptHash string, mode models.Mode, status models.RunStatus) *models.RunRecord {
	return &models.RunRecord{
		RunID:      uuid.NewString(),
		Mode:       mode,
		ModelID:    "model-a",
		PromptHash: promptHash,
		Status:     status,
		StartedAt:  time.Now().UTC().Truncate(time.Millisecond),
		Attempts:   []models.Attempt{{Index: 0, Kind: models.AttemptInitial, Errors: []string{}}},
	}
}

// exerciseStore runs the behaviour every Store must share.
func exerciseStore(t *testing.T, store Store) {
	ctx := context.Background()
	hash := "hash-" + uuid.NewString()

	first := newRecord(hash, models.ModeGoverned, models.RunCompleted)
	second := newRecord(hash, models.ModeBaseline, models.RunCompleted)
	other := newRecord("other-"+uuid.NewString(), models.ModeGoverned, models.RunCompleted)

	for _, r := range []*models.RunRecord{first, second, other} {
		if err := store.Append(ctx, r); err != nil {
			t.Fatalf("Append() failed: %v", err)
		}
	}

	if err := store.Append(ctx, first); !errors.Is(err, ErrDuplicateRun) {
		t.Errorf("expected ErrDuplicateRun, got %v", err)
	}

	got, err := store.Get(ctx, first.RunID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.RunID != first.RunID || got.Mode != models.ModeGoverned || got.Telemetry != nil {
		t.Errorf("unexpected record: %+v", got)
	}

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	score := 0.5
	telemetry := models.Telemetry{Drift: models.DriftReport{Stability: &score, StructureScore: 90}}
	if err := store.Annotate(ctx, first.RunID, telemetry); err != nil {
		t.Fatalf("Annotate() failed: %v", err)
	}
	if err := store.Annotate(ctx, "missing", telemetry); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for annotate, got %v", err)
	}

	list, err := store.ListByPrompt(ctx, hash)
	if err != nil {
		t.Fatalf("ListByPrompt() failed: %v", err)
	}
	if len(list) != 2 || list[0].RunID != first.RunID || list[1].RunID != second.RunID {
		t.Fatalf("expected both runs oldest first, got %d", len(list))
	}
	if list[0].Telemetry == nil || list[0].Telemetry.Drift.StructureScore != 90 {
		t.Errorf("expected telemetry on listed run, got %+v", list[0].Telemetry)
	}

	empty, err := store.ListByPrompt(ctx, "nothing-"+uuid.NewString())
	if err != nil || len(empty) != 0 {
		t.Errorf("expected empty list, got %v, %v", empty, err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	r := newRecord("h", models.ModeGoverned, models.RunCompleted)
	if err := store.Append(ctx, r); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}

	r.Attempts[0].Kind = models.AttemptRepair
	got, _ := store.Get(ctx, r.RunID)
	if got.Attempts[0].Kind != models.AttemptInitial {
		t.Error("stored record must not alias the caller's record")
	}

	got.Attempts[0].Kind = models.AttemptRepair
	again, _ := store.Get(ctx, r.RunID)
	if again.Attempts[0].Kind != models.AttemptInitial {
		t.Error("returned record must not alias the stored record")
	}
}

func TestLatestPrior(t *testing.T) {
	a := newRecord("h", models.ModeGoverned, models.RunCompleted)
	b := newRecord("h", models.ModeGoverned, models.RunFailed)
	c := newRecord("h", models.ModeBaseline, models.RunCompleted)
	d := newRecord("h", models.ModeGoverned, models.RunSafeMode)
	current := newRecord("h", models.ModeGoverned, models.RunCompleted)
	grounded := newRecord("h", models.ModeGoverned, models.RunCompleted)
	grounded.Grounded = true

	records := []*models.RunRecord{a, b, c, d, grounded, current}

	prior := LatestPrior(records, KeyOf(current), current.RunID)
	if prior == nil || prior.RunID != d.RunID {
		t.Errorf("expected safe-mode run d as latest prior, got %+v", prior)
	}

	if p := LatestPrior([]*models.RunRecord{current}, KeyOf(current), current.RunID); p != nil {
		t.Errorf("expected no prior, got %s", p.RunID)
	}
}

func TestLatestByMode(t *testing.T) {
	a := newRecord("h", models.ModeGoverned, models.RunCompleted)
	b := newRecord("h", models.ModeBaseline, models.RunCompleted)
	c := newRecord("h", models.ModeGoverned, models.RunCompleted)
	d := newRecord("h", models.ModeHybrid, models.RunFailed)

	latest := LatestByMode([]*models.RunRecord{a, b, c, d})
	if len(latest) != 2 || latest[models.ModeGoverned].RunID != c.RunID || latest[models.ModeBaseline].RunID != b.RunID {
		t.Errorf("unexpected latest-by-mode: %+v", latest)
	}
}

func TestRedisStore_Integration(t *testing.T) {
	if !*integration {
		t.Skip("use -integration to run against Redis on localhost:6379")
	}
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	exerciseStore(t, NewRedisStore(client, "governed-test"))
}

func TestPostgresStore_Integration(t *testing.T) {
	if !*integration {
		t.Skip("use -integration to run against Postgres")
	}
	ctx := context.Background()

	store, err := NewPostgresStore(ctx, Config{
		Host:     getenv("PG_HOST", "localhost"),
		Port:     getenv("PG_PORT", "5432"),
		User:     getenv("PG_USER", "postgres"),
		Password: getenv("PG_PASSWORD", "postgres"),
		Database: getenv("PG_DATABASE", "governed"),
		SSLMode:  "disable",
	})
	if err != nil {
		t.Fatalf("NewPostgresStore() failed: %v", err)
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}
	exerciseStore(t, store)
}

func TestConfig_ConnectionString(t *testing.T) {
	c := Config{Host: "db", Port: "5432", User: "u", Password: "p", Database: "runs", SSLMode: "disable"}
	if got := c.ConnectionString(); got != "postgresql://u:p@db:5432/runs?sslmode=disable" {
		t.Errorf("unexpected connection string: %s", got)
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// scriptRecorder answers EVALSHA for the append script and fails the test
// on any standalone write.
type scriptRecorder struct {
	redis.Cmdable
	t      *testing.T
	keys   [][]string
	args   [][]any
	result int64
	err    error
}

func (s *scriptRecorder) EvalSha(ctx context.Context, sha string, keys []string, args ...any) *redis.Cmd {
	s.keys = append(s.keys, keys)
	s.args = append(s.args, args)
	cmd := redis.NewCmd(ctx)
	if s.err != nil {
		cmd.SetErr(s.err)
		return cmd
	}
	cmd.SetVal(s.result)
	return cmd
}

func (s *scriptRecorder) SetNX(context.Context, string, any, time.Duration) *redis.BoolCmd {
	s.t.Fatal("Append must not write the run outside the script")
	return nil
}

func (s *scriptRecorder) RPush(context.Context, string, ...any) *redis.IntCmd {
	s.t.Fatal("Append must not index the run outside the script")
	return nil
}

var errReadOnly = errors.New("READONLY You can't write against a read only replica")

func TestRedisStore_AppendIsSingleScript(t *testing.T) {
	tests := []struct {
		name    string
		result  int64
		err     error
		wantErr error
	}{
		{name: "stored", result: 1},
		{name: "duplicate", result: 0, wantErr: ErrDuplicateRun},
		{name: "script error", err: errReadOnly, wantErr: errReadOnly},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &scriptRecorder{t: t, result: tt.result, err: tt.err}
			store := NewRedisStore(rec, "gr")
			run := newRecord("h1", models.ModeGoverned, models.RunCompleted)

			err := store.Append(context.Background(), run)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("Append() failed: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}

			if len(rec.keys) != 1 {
				t.Fatalf("expected one script call, got %d", len(rec.keys))
			}
			wantKeys := []string{"gr:run:" + run.RunID, "gr:prompt:h1"}
			if rec.keys[0][0] != wantKeys[0] || rec.keys[0][1] != wantKeys[1] {
				t.Errorf("unexpected keys %v, want %v", rec.keys[0], wantKeys)
			}
			if len(rec.args[0]) != 2 || rec.args[0][1] != run.RunID {
				t.Errorf("unexpected args %v", rec.args[0])
			}
		})
	}
}
