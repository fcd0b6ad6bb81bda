package monitor

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ski-run-open-bot/internal/logx"
	"ski-run-open-bot/internal/model"
	"ski-run-open-bot/internal/notify"
	"ski-run-open-bot/internal/store"
	"ski-run-open-bot/internal/trails"
)

// recorder 记录每次通知的雪道集合。
type recorder struct {
	calls []map[string]model.RunRecord
	err   error
}

func (r *recorder) Notify(_ context.Context, _ string, opened map[string]model.RunRecord) error {
	r.calls = append(r.calls, opened)
	return r.err
}

// sequence 依次返回预置的快照/错误。
type sequence struct {
	snaps []model.Snapshot
	errs  []error
	n     int
}

func (s *sequence) Scrape(context.Context) (model.Snapshot, error) {
	i := s.n
	s.n++
	if i < len(s.errs) && s.errs[i] != nil {
		return model.Snapshot{}, s.errs[i]
	}
	if i < len(s.snaps) {
		return s.snaps[i], nil
	}
	return s.snaps[len(s.snaps)-1], nil
}

// failingStore 的 Save 总是失败。
type failingStore struct{ store.Store }

func (failingStore) Save(context.Context, model.Snapshot) error { return errors.New("disk full") }

func baselineSnapshot() model.Snapshot {
	return model.Snapshot{Timestamp: 100, Resort: "solitude", Runs: map[string]model.RunRecord{
		"Dean's Dash": {Difficulty: model.Green, Status: model.StatusClosed},
		"Dummy Run":   {Difficulty: model.Black, Status: model.StatusClosed},
		"Easy Street": {Difficulty: model.Black, Status: model.StatusOpen},
	}}
}

func newSnapshot() model.Snapshot {
	return model.Snapshot{Timestamp: 200, Resort: "solitude", Runs: map[string]model.RunRecord{
		"Dean's Dash": {Difficulty: model.Green, Status: model.StatusOpen},
		"Dummy Run":   {Difficulty: model.Black, Status: model.StatusOpen},
		"Easy Street": {Difficulty: model.Black, Status: model.StatusOpen},
		"Brand New":   {Difficulty: model.TripleBlack, Status: model.StatusOpen},
	}}
}

func opts() Options {
	return Options{Resort: "solitude", Interval: time.Minute, MinDifficulty: model.Black}
}

func TestMonitor_EndToEndDetectsDummyRun(t *testing.T) {
	fs := store.NewFile(t.TempDir(), "")
	ctx := context.Background()
	if err := fs.Save(ctx, baselineSnapshot()); err != nil {
		t.Fatalf("seed baseline: %v", err)
	}
	rec := &recorder{}
	m, err := New(opts(), fs, &sequence{snaps: []model.Snapshot{newSnapshot()}}, rec)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	m.Bootstrap(ctx)
	if m.Baseline() == nil {
		t.Fatal("baseline should be loaded")
	}
	opened, err := m.RunOnce(ctx)
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(opened) != 1 {
		t.Fatalf("opened = %v, want only Dummy Run", opened)
	}
	if _, ok := opened["Dummy Run"]; !ok {
		t.Fatalf("Dummy Run missing from %v", opened)
	}
	if len(rec.calls) != 1 || len(rec.calls[0]) != 1 {
		t.Fatalf("action calls = %v", rec.calls)
	}
	got, err := fs.Load(ctx, "solitude")
	if err != nil || got.Timestamp != 200 || len(got.Runs) != 4 {
		t.Fatalf("new snapshot not persisted: %+v err=%v", got, err)
	}
}

func TestMonitor_FirstRunPersistsWithoutDetection(t *testing.T) {
	fs := store.NewFile(t.TempDir(), "")
	ctx := context.Background()
	rec := &recorder{}
	m, _ := New(opts(), fs, &sequence{snaps: []model.Snapshot{baselineSnapshot(), newSnapshot()}}, rec)
	m.Bootstrap(ctx)
	if m.Baseline() != nil {
		t.Fatal("no baseline expected on first run")
	}
	if _, err := m.RunOnce(ctx); err != nil {
		t.Fatalf("first cycle: %v", err)
	}
	if len(rec.calls) != 0 {
		t.Fatalf("no action expected on first cycle, got %v", rec.calls)
	}
	if _, err := fs.Load(ctx, "solitude"); err != nil {
		t.Fatalf("first cycle must persist: %v", err)
	}
	opened, err := m.RunOnce(ctx)
	if err != nil || len(opened) != 1 {
		t.Fatalf("second cycle opened=%v err=%v", opened, err)
	}
}

func TestMonitor_NoActionWhenNothingOpened(t *testing.T) {
	fs := store.NewFile(t.TempDir(), "")
	ctx := context.Background()
	rec := &recorder{}
	m, _ := New(opts(), fs, &sequence{snaps: []model.Snapshot{baselineSnapshot()}}, rec)
	_, _ = m.RunOnce(ctx)
	_, _ = m.RunOnce(ctx)
	if len(rec.calls) != 0 {
		t.Fatalf("action must not run for empty result, got %v", rec.calls)
	}
}

func TestMonitor_ScrapeFailureKeepsBaseline(t *testing.T) {
	dir := t.TempDir()
	fs := store.NewFile(dir, "")
	ctx := context.Background()
	if err := fs.Save(ctx, baselineSnapshot()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	before, _ := os.ReadFile(filepath.Join(dir, "solitude_run_status.json"))

	seq := &sequence{
		snaps: []model.Snapshot{{}, {Resort: "solitude", Timestamp: 1}, newSnapshot()},
		errs:  []error{errors.New("site down")},
	}
	rec := &recorder{}
	m, _ := New(opts(), fs, seq, rec)
	m.Bootstrap(ctx)

	if _, err := m.RunOnce(ctx); err == nil {
		t.Fatal("expected scrape error")
	}
	if _, err := m.RunOnce(ctx); !errors.Is(err, ErrEmptySnapshot) {
		t.Fatalf("empty snapshot err = %v", err)
	}
	after, _ := os.ReadFile(filepath.Join(dir, "solitude_run_status.json"))
	if string(before) != string(after) {
		t.Fatal("persisted baseline must not change after failed scrapes")
	}
	if m.Baseline().Timestamp != 100 {
		t.Fatalf("in-memory baseline changed: %v", m.Baseline().Timestamp)
	}
	opened, err := m.RunOnce(ctx)
	if err != nil || len(opened) != 1 {
		t.Fatalf("recovery cycle opened=%v err=%v", opened, err)
	}
}

func TestMonitor_ActionFailureStillPersists(t *testing.T) {
	fs := store.NewFile(t.TempDir(), "")
	ctx := context.Background()
	_ = fs.Save(ctx, baselineSnapshot())
	rec := &recorder{err: errors.New("rate limited")}
	m, _ := New(opts(), fs, &sequence{snaps: []model.Snapshot{newSnapshot()}}, rec)
	m.Bootstrap(ctx)
	if _, err := m.RunOnce(ctx); err != nil {
		t.Fatalf("action failure must not fail the cycle: %v", err)
	}
	got, err := fs.Load(ctx, "solitude")
	if err != nil || got.Timestamp != 200 {
		t.Fatalf("snapshot not persisted after action failure: %+v err=%v", got, err)
	}
}

func TestMonitor_PersistenceFailureAdvancesBaseline(t *testing.T) {
	ctx := context.Background()
	fs := store.NewFile(t.TempDir(), "")
	m, _ := New(opts(), failingStore{fs}, &sequence{snaps: []model.Snapshot{newSnapshot()}}, &recorder{})
	if _, err := m.RunOnce(ctx); err != nil {
		t.Fatalf("persistence failure must not fail the cycle: %v", err)
	}
	if m.Baseline() == nil || m.Baseline().Timestamp != 200 {
		t.Fatalf("baseline should advance, got %+v", m.Baseline())
	}
}

func TestMonitor_CorruptBaselineStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "solitude_run_status.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	m, _ := New(opts(), store.NewFile(dir, ""), &sequence{snaps: []model.Snapshot{newSnapshot()}}, &recorder{})
	m.Bootstrap(context.Background())
	if m.Baseline() != nil {
		t.Fatal("corrupt document should yield empty baseline")
	}
	if _, err := m.RunOnce(context.Background()); err != nil {
		t.Fatalf("cycle after corrupt baseline: %v", err)
	}
	if _, err := store.LoadFile(filepath.Join(dir, "solitude_run_status.json"), "solitude"); err != nil {
		t.Fatalf("corrupt document should be rebuilt: %v", err)
	}
}

func TestMonitor_ExportWritten(t *testing.T) {
	dir := t.TempDir()
	o := opts()
	o.Export = filepath.Join(dir, "status.json")
	m, _ := New(o, store.NewFile(dir, ""), &sequence{snaps: []model.Snapshot{newSnapshot()}}, nil)
	if _, err := m.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if _, err := os.Stat(o.Export); err != nil {
		t.Fatalf("export not written: %v", err)
	}
}

func TestMonitor_NewValidatesOptions(t *testing.T) {
	fs := store.NewFile(t.TempDir(), "")
	if _, err := New(Options{Interval: time.Minute}, fs, &sequence{}, nil); err == nil {
		t.Fatal("expected error for empty resort")
	}
	if _, err := New(Options{Resort: "solitude"}, fs, &sequence{}, nil); err == nil {
		t.Fatal("expected error for zero interval")
	}
	m, err := New(Options{Resort: "solitude", Interval: time.Minute}, fs, &sequence{}, nil)
	if err != nil || m.opts.MinDifficulty != model.Black {
		t.Fatalf("default threshold not applied: %+v err=%v", m, err)
	}
}

func TestMonitor_RunLoopsUntilCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	seq := &sequence{
		snaps: []model.Snapshot{{}, baselineSnapshot(), newSnapshot()},
		errs:  []error{errors.New("transient")},
	}
	rec := &recorder{}
	m, _ := New(opts(), store.NewFile(t.TempDir(), ""), seq, rec)
	sleeps := 0
	m.sleep = func(ctx context.Context, d time.Duration) error {
		if d != time.Minute {
			t.Errorf("sleep %v, want 1m", d)
		}
		sleeps++
		if sleeps == 3 {
			cancel()
			return ctx.Err()
		}
		return nil
	}
	if err := m.Run(ctx); err != nil {
		t.Fatalf("run returned %v, want nil on cancel", err)
	}
	if seq.n != 3 {
		t.Fatalf("scrapes = %d, want 3", seq.n)
	}
	if len(rec.calls) != 1 {
		t.Fatalf("action calls = %d, want 1", len(rec.calls))
	}
}

func TestMonitor_RunStopsOnUnrecoverable(t *testing.T) {
	boom := errors.New("preset missing")
	seq := &sequence{snaps: []model.Snapshot{{}}, errs: []error{Unrecoverable(boom)}}
	m, _ := New(opts(), store.NewFile(t.TempDir(), ""), seq, nil)
	m.sleep = func(context.Context, time.Duration) error {
		t.Fatal("should not sleep after unrecoverable error")
		return nil
	}
	err := m.Run(context.Background())
	if !errors.Is(err, ErrUnrecoverable) || !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestMonitor_RunStopsWhenPresetMissing(t *testing.T) {
	sc := &trails.PageScraper{Resort: "solitude"}
	m, _ := New(opts(), store.NewFile(t.TempDir(), ""), sc, nil)
	m.sleep = func(context.Context, time.Duration) error {
		t.Fatal("config fault must not be retried")
		return nil
	}
	if err := m.Run(context.Background()); !errors.Is(err, ErrUnrecoverable) {
		t.Fatalf("err = %v, want ErrUnrecoverable", err)
	}
}

func TestMonitor_LogActionReportsEachRunOnce(t *testing.T) {
	var buf bytes.Buffer
	logx.InitWriter(&buf, "info", "pretty", "en", "never")
	t.Cleanup(func() { logx.Init("info", "pretty", "", "never") })

	fs := store.NewFile(t.TempDir(), "")
	if err := fs.Save(context.Background(), baselineSnapshot()); err != nil {
		t.Fatalf("seed baseline: %v", err)
	}
	m, _ := New(opts(), fs, &sequence{snaps: []model.Snapshot{newSnapshot()}}, notify.Log{})
	m.Bootstrap(context.Background())
	if _, err := m.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if n := strings.Count(buf.String(), "Dummy Run"); n != 1 {
		t.Fatalf("Dummy Run logged %d times at info, want 1:\n%s", n, buf.String())
	}
}

func TestSleepCtx(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepCtx(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if err := sleepCtx(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("err = %v", err)
	}
}
