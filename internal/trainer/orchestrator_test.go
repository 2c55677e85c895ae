package trainer

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	apperrors "github.com/FocuswithJustin/JuniperAlign/core/errors"
	"github.com/FocuswithJustin/JuniperAlign/core/model"
	"github.com/FocuswithJustin/JuniperAlign/core/text"
	"github.com/FocuswithJustin/JuniperAlign/core/tree"
	"github.com/FocuswithJustin/JuniperAlign/internal/config"
	"github.com/FocuswithJustin/JuniperAlign/internal/logging"
	"github.com/FocuswithJustin/JuniperAlign/internal/modelcache"
	"github.com/FocuswithJustin/JuniperAlign/internal/state"
	"github.com/FocuswithJustin/JuniperAlign/internal/store"
)

type fakeTask struct {
	out        chan Message
	once       sync.Once
	mu         sync.Mutex
	terminated bool
}

func (t *fakeTask) Messages() <-chan Message { return t.out }

func (t *fakeTask) Terminate() {
	t.mu.Lock()
	t.terminated = true
	t.mu.Unlock()
	t.once.Do(func() { close(t.out) })
}

func (t *fakeTask) isTerminated() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.terminated
}

type fakeRunner struct {
	mu     sync.Mutex
	starts []Message
	tasks  []*fakeTask
}

func (r *fakeRunner) Start(msg Message) (Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := &fakeTask{out: make(chan Message, 64)}
	r.starts = append(r.starts, msg)
	r.tasks = append(r.tasks, t)
	return t, nil
}

func (r *fakeRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.starts)
}

func (r *fakeRunner) get(i int) (Message, *fakeTask) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.starts[i], r.tasks[i]
}

func testConfig() config.TrainingConfig {
	return config.TrainingConfig{
		InitialMaxComplexity:  400000,
		MinComplexity:         20000,
		MaxComplexity:         2000000,
		Deadline:              18 * time.Minute,
		HighThreshold:         15 * time.Minute,
		LowThreshold:          5 * time.Minute,
		TimeoutReduction:      0.75,
		MinTrainingExamples:   5,
		MinTrainingVerseRatio: 1,
		KeepAlignmentMemory:   true,
		IncludeCorpus:         true,
		ProgressThrottlePct:   1,
	}
}

// alignedTree builds a one-chapter book with n fully aligned verses.
func alignedTree(t *testing.T, n int) *tree.Collection {
	t.Helper()
	target, source := tree.VerseMap{}, tree.VerseMap{}
	for i := 1; i <= n; i++ {
		key := strconv.Itoa(i)
		target[key] = text.FromPlain("grace and peace")
		source[key] = text.FromPlain("χάρις καὶ εἰρήνη")
	}
	c := tree.NewCollection().AddTargetText("ult", "tit", "Titus",
		tree.BookText{Chapters: map[string]tree.VerseMap{"1": target}})
	c, _ = c.AddSourceText("tit", tree.BookText{Chapters: map[string]tree.VerseMap{"1": source}})

	for i := 1; i <= n; i++ {
		sel := tree.Selector{Group: "ult", Book: "tit", Chapter: "1", Verse: strconv.Itoa(i)}
		v, err := c.SelectedVerse(sel)
		if err != nil {
			t.Fatalf("SelectedVerse failed: %v", err)
		}
		src, tgt := v.SourceTokens(), v.TargetTokens()
		pairs := make([]text.Alignment, len(src))
		for j := range src {
			pairs[j] = text.Alignment{Source: text.Ngram{src[j]}, Target: text.Ngram{tgt[j]}}
		}
		if c, err = c.UpdateAlignment(sel, nil, pairs); err != nil {
			t.Fatalf("UpdateAlignment failed: %v", err)
		}
	}
	return c
}

type harness struct {
	o       *Orchestrator
	tree    *state.Store[*tree.Collection]
	runner  *fakeRunner
	clock   *clockwork.FakeClock
	changes chan StateChange
}

func newHarness(t *testing.T, cfg config.TrainingConfig, c *tree.Collection, cache *modelcache.Cache) *harness {
	t.Helper()
	h := &harness{
		tree:    state.New(c),
		runner:  &fakeRunner{},
		clock:   clockwork.NewFakeClock(),
		changes: make(chan StateChange, 256),
	}
	h.o = New(Options{
		Config: cfg,
		Tree:   h.tree,
		Runner: h.runner,
		Cache:  cache,
		Clock:  h.clock,
		Host: func(sc StateChange) {
			select {
			case h.changes <- sc:
			default:
			}
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = h.o.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// waitChange returns the first state change matching match.
func (h *harness) waitChange(t *testing.T, match func(StateChange) bool) StateChange {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case sc := <-h.changes:
			if match(sc) {
				return sc
			}
		case <-timeout:
			t.Fatal("timed out waiting for state change")
		}
	}
}

func (h *harness) start(t *testing.T) (Message, *fakeTask) {
	t.Helper()
	if err := h.o.StartTraining(context.Background(), false); err != nil {
		t.Fatalf("StartTraining failed: %v", err)
	}
	return h.runner.get(h.runner.count() - 1)
}

func modelBlob(t *testing.T) []byte {
	t.Helper()
	m := model.NewCooccur()
	src, tgt := text.ToWords(text.FromPlain("χάρις")), text.ToWords(text.FromPlain("grace"))
	m.AddAlignments(src, tgt, []text.Alignment{{Source: text.Ngram{src[0]}, Target: text.Ngram{tgt[0]}}})
	if err := m.Train(context.Background(), nil, nil, nil); err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	blob, err := m.Save()
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	return blob
}

func succeed(t *testing.T, task *fakeTask) {
	t.Helper()
	task.out <- Message{Type: MsgResult, Result: &Result{Model: modelBlob(t)}}
}

func TestStartTrainingGuardWhileRunning(t *testing.T) {
	h := newHarness(t, testConfig(), alignedTree(t, 6), nil)

	msg, _ := h.start(t)
	if msg.Type != MsgStartTraining || len(msg.Start.Alignments) != 6 {
		t.Errorf("unexpected start message %+v", msg)
	}
	if err := h.o.StartTraining(context.Background(), false); !errors.Is(err, ErrRunning) {
		t.Errorf("expected ErrRunning, got %v", err)
	}
	if err := h.o.StartTraining(context.Background(), true); !errors.Is(err, ErrRunning) {
		t.Errorf("force must not start a second run, got %v", err)
	}
	if h.runner.count() != 1 {
		t.Errorf("expected one launch, got %d", h.runner.count())
	}
}

func TestInsufficientData(t *testing.T) {
	h := newHarness(t, testConfig(), alignedTree(t, 3), nil)

	err := h.o.StartTraining(context.Background(), false)
	var insufficient *apperrors.InsufficientDataError
	if !errors.As(err, &insufficient) || insufficient.Have != 3 || insufficient.Need != 5 {
		t.Fatalf("expected insufficient data error, got %v", err)
	}
	sc := h.waitChange(t, func(StateChange) bool { return true })
	if sc.Training {
		t.Error("expected training=false")
	}
	if h.runner.count() != 0 {
		t.Error("no task should be launched")
	}
}

func TestCompletionInstallsModel(t *testing.T) {
	c := alignedTree(t, 6)
	h := newHarness(t, testConfig(), c, nil)

	_, task := h.start(t)
	h.clock.Advance(7 * time.Minute)
	succeed(t, task)

	sc := h.waitChange(t, func(sc StateChange) bool { return sc.TrainingComplete && !sc.Training })
	if sc.PercentComplete != 100 {
		t.Errorf("expected 100%%, got %d", sc.PercentComplete)
	}
	waitFor(t, "status update", func() bool { return h.o.Status().Trained })

	st := h.o.Status()
	if st.LastTrained != c.InstanceCount() {
		t.Errorf("expected last trained %d, got %d", c.InstanceCount(), st.LastTrained)
	}
	if st.LastOutcome != PhaseCompleted || st.Phase != PhaseIdle {
		t.Errorf("unexpected phases %s/%s", st.Phase, st.LastOutcome)
	}
	if st.MaxComplexity != 400000 {
		t.Errorf("untrimmed run within thresholds must keep budget, got %d", st.MaxComplexity)
	}

	if err := h.o.StartTraining(context.Background(), false); !errors.Is(err, ErrUpToDate) {
		t.Errorf("expected ErrUpToDate, got %v", err)
	}
	if err := h.o.StartTraining(context.Background(), true); err != nil {
		t.Errorf("forced start failed: %v", err)
	}

	preds, err := h.o.Predict(context.Background(),
		text.ToWords(text.FromPlain("χάρις")), text.ToWords(text.FromPlain("grace")))
	if err != nil || len(preds) != 1 {
		t.Errorf("expected one prediction, got %v (%v)", preds, err)
	}
}

func TestPredictWithoutModel(t *testing.T) {
	h := newHarness(t, testConfig(), alignedTree(t, 1), nil)
	if _, err := h.o.Predict(context.Background(), nil, nil); !errors.Is(err, ErrNoModel) {
		t.Errorf("expected ErrNoModel, got %v", err)
	}
}

func TestTimeoutReducesBudgetAndRelaunches(t *testing.T) {
	c := alignedTree(t, 6)
	h := newHarness(t, testConfig(), c, nil)

	h.start(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("deadline timer not armed: %v", err)
	}
	h.clock.Advance(18 * time.Minute)

	waitFor(t, "relaunch", func() bool { return h.runner.count() == 2 })
	_, first := h.runner.get(0)
	if !first.isTerminated() {
		t.Error("timed out task must be terminated")
	}
	second, _ := h.runner.get(1)
	if second.Start.MaxComplexity != 300000 {
		t.Errorf("expected relaunch with 300000, got %d", second.Start.MaxComplexity)
	}

	st := h.o.Status()
	if st.MaxComplexity != 300000 {
		t.Errorf("expected budget 300000, got %d", st.MaxComplexity)
	}
	if st.LastTrained != c.InstanceCount() {
		t.Errorf("expected attempted count %d, got %d", c.InstanceCount(), st.LastTrained)
	}
}

func TestTimeoutRetryPersistsModelAndSettings(t *testing.T) {
	cache := newModelCache(t)
	h := newHarness(t, testConfig(), alignedTree(t, 6), cache)
	ctx := context.Background()
	if err := h.o.SetContext(ctx, titus); err != nil {
		t.Fatalf("SetContext failed: %v", err)
	}
	h.waitChange(t, func(sc StateChange) bool { return sc.FailedToLoadCache })

	h.start(t)
	tctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := h.clock.BlockUntilContext(tctx, 1); err != nil {
		t.Fatalf("deadline timer not armed: %v", err)
	}
	h.clock.Advance(18 * time.Minute)

	waitFor(t, "relaunch", func() bool { return h.runner.count() == 2 })
	_, retry := h.runner.get(1)
	succeed(t, retry)

	waitFor(t, "persisted model", func() bool {
		_, err := cache.LoadModel(ctx, "ult_nt_tit")
		return err == nil
	})
	waitFor(t, "persisted reduced budget", func() bool {
		s, err := cache.LoadSettings(ctx, "settings_en_el-x-koine")
		return err == nil && s.MaxComplexity == h.o.Status().MaxComplexity && s.MaxComplexity < 400000
	})
}

func TestTimeoutAtFloorDoesNotLoop(t *testing.T) {
	cfg := testConfig()
	cfg.InitialMaxComplexity = cfg.MinComplexity
	h := newHarness(t, cfg, alignedTree(t, 6), nil)

	h.start(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("deadline timer not armed: %v", err)
	}
	h.clock.Advance(18 * time.Minute)

	waitFor(t, "timeout", func() bool { return h.o.Status().LastOutcome == PhaseTimedOut })
	if h.runner.count() != 1 {
		t.Errorf("expected no relaunch at the budget floor, got %d launches", h.runner.count())
	}
	h.waitChange(t, func(sc StateChange) bool { return !sc.Training && !sc.TrainingFailed })
}

func TestProgressThrottling(t *testing.T) {
	h := newHarness(t, testConfig(), alignedTree(t, 6), nil)
	_, task := h.start(t)

	for _, step := range []int{1, 2, 3, 4, 10, 12, 20} {
		task.out <- Message{Type: MsgStatus, Status: &Progress{Step: step, TotalSteps: 1000}}
	}

	var got []int
	h.waitChange(t, func(sc StateChange) bool {
		got = append(got, sc.PercentComplete)
		return sc.PercentComplete == 2
	})
	want := []int{0, 1, 2}
	if len(got) != len(want) {
		t.Fatalf("expected percentages %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("expected percentages %v, got %v", want, got)
		}
	}
}

func TestTaskFailureReturnsToIdle(t *testing.T) {
	h := newHarness(t, testConfig(), alignedTree(t, 6), nil)
	_, task := h.start(t)

	task.out <- Message{Type: MsgResult, Result: &Result{Error: "out of memory"}}

	sc := h.waitChange(t, func(sc StateChange) bool { return sc.TrainingFailed })
	if sc.Training || !strings.Contains(sc.Error, "out of memory") {
		t.Errorf("unexpected failure report %+v", sc)
	}
	waitFor(t, "idle", func() bool { return h.o.Status().LastOutcome == PhaseFailed })
	if st := h.o.Status(); st.Phase != PhaseIdle || st.Trained {
		t.Errorf("unexpected status %+v", st)
	}
	if h.runner.count() != 1 {
		t.Error("failure must not retry")
	}
}

func TestStop(t *testing.T) {
	h := newHarness(t, testConfig(), alignedTree(t, 6), nil)
	_, task := h.start(t)

	if err := h.o.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if !task.isTerminated() {
		t.Error("task must be terminated")
	}
	h.waitChange(t, func(sc StateChange) bool { return !sc.Training })
	waitFor(t, "idle", func() bool { return h.o.Status().Phase == PhaseIdle })
}

func TestNextBudget(t *testing.T) {
	cfg := testConfig()
	tests := []struct {
		name    string
		current int
		elapsed time.Duration
		trimmed bool
		want    int
	}{
		{"slow run shrinks", 400000, 20 * time.Minute, false, 300000},
		{"fast trimmed run grows", 100000, 2 * time.Minute, true, 500000},
		{"fast untrimmed run unchanged", 100000, 2 * time.Minute, false, 100000},
		{"mid run unchanged", 100000, 10 * time.Minute, true, 100000},
		{"growth clamped", 100000, 0, true, 2000000},
		{"shrink clamped", 30000, time.Hour, false, 20000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextBudget(cfg, tt.current, tt.elapsed, tt.trimmed); got != tt.want {
				t.Errorf("NextBudget() = %d, want %d", got, tt.want)
			}
		})
	}
}

func newModelCache(t *testing.T) *modelcache.Cache {
	t.Helper()
	s := store.NewMemory()
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	return modelcache.New(s, model.Load)
}

var titus = Context{BibleID: "ult", BookID: "tit", Chapter: "1", TargetLanguage: "en", SourceLanguage: "el-x-koine"}

func TestContextLoadsCachedModel(t *testing.T) {
	cache := newModelCache(t)
	ctx := context.Background()
	m, err := model.Load(modelBlob(t))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := cache.SaveModel(ctx, titus.keys().Model(), m); err != nil {
		t.Fatalf("SaveModel failed: %v", err)
	}
	if err := cache.SaveSettings(ctx, titus.keys().Settings(), modelcache.Settings{MaxComplexity: 123456}); err != nil {
		t.Fatalf("SaveSettings failed: %v", err)
	}

	h := newHarness(t, testConfig(), alignedTree(t, 6), cache)
	if err := h.o.SetContext(ctx, titus); err != nil {
		t.Fatalf("SetContext failed: %v", err)
	}

	h.waitChange(t, func(sc StateChange) bool { return sc.TrainingComplete })
	waitFor(t, "cached model", func() bool { return h.o.Status().Trained })
	st := h.o.Status()
	if st.MaxComplexity != 123456 {
		t.Errorf("expected cached budget 123456, got %d", st.MaxComplexity)
	}
	if st.FailedToLoadCache || st.LastTrained != -1 {
		t.Errorf("unexpected status %+v", st)
	}
}

func TestContextCacheMissFlagged(t *testing.T) {
	h := newHarness(t, testConfig(), alignedTree(t, 6), newModelCache(t))
	if err := h.o.SetContext(context.Background(), titus); err != nil {
		t.Fatalf("SetContext failed: %v", err)
	}
	sc := h.waitChange(t, func(sc StateChange) bool { return sc.FailedToLoadCache })
	if sc.TrainingComplete {
		t.Error("cache miss must report trained=false")
	}
	waitFor(t, "flag", func() bool { return h.o.Status().FailedToLoadCache })
}

func TestCompletionPersistsModelAndSettings(t *testing.T) {
	cache := newModelCache(t)
	h := newHarness(t, testConfig(), alignedTree(t, 6), cache)
	ctx := context.Background()
	if err := h.o.SetContext(ctx, titus); err != nil {
		t.Fatalf("SetContext failed: %v", err)
	}
	h.waitChange(t, func(sc StateChange) bool { return sc.FailedToLoadCache })

	_, task := h.start(t)
	succeed(t, task)

	waitFor(t, "persisted model", func() bool {
		_, err := cache.LoadModel(ctx, "ult_nt_tit")
		return err == nil
	})
	waitFor(t, "persisted settings", func() bool {
		s, err := cache.LoadSettings(ctx, "settings_en_el-x-koine")
		return err == nil && s.MaxComplexity == h.o.Status().MaxComplexity
	})
}

// readOnlyStore rejects writes.
type readOnlyStore struct{ store.Store }

func (readOnlyStore) SetItem(context.Context, string, []byte) error {
	return errors.New("read-only")
}

// syncBuffer is a log sink safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestPersistFailureLogsRunID(t *testing.T) {
	var logs syncBuffer
	logging.SetOutput(&logs)
	logging.InitLogger(logging.LevelWarn, logging.FormatJSON)
	t.Cleanup(func() {
		logging.SetOutput(nil)
		logging.InitLogger(logging.LevelInfo, logging.FormatJSON)
	})

	s := store.NewMemory()
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	cache := modelcache.New(readOnlyStore{s}, model.Load)
	h := newHarness(t, testConfig(), alignedTree(t, 6), cache)
	if err := h.o.SetContext(context.Background(), titus); err != nil {
		t.Fatalf("SetContext failed: %v", err)
	}
	h.waitChange(t, func(sc StateChange) bool { return sc.FailedToLoadCache })

	msg, task := h.start(t)
	succeed(t, task)

	waitFor(t, "persist failure log", func() bool {
		return strings.Contains(logs.String(), "failed to persist model")
	})
	if want := `"run_id":"` + msg.RunID + `"`; !strings.Contains(logs.String(), want) {
		t.Errorf("expected %s in persist failure log, got %s", want, logs.String())
	}
}

func TestContextChangeDiscardsStaleRun(t *testing.T) {
	h := newHarness(t, testConfig(), alignedTree(t, 6), nil)
	ctx := context.Background()
	if err := h.o.SetContext(ctx, titus); err != nil {
		t.Fatalf("SetContext failed: %v", err)
	}
	msg, task := h.start(t)
	if msg.Start.ContextID != "ult_nt_tit" {
		t.Errorf("expected context id ult_nt_tit, got %q", msg.Start.ContextID)
	}

	philemon := titus
	philemon.BookID = "phm"
	if err := h.o.SetContext(ctx, philemon); err != nil {
		t.Fatalf("SetContext failed: %v", err)
	}
	succeed(t, task)

	waitFor(t, "relaunch", func() bool { return h.runner.count() == 2 })
	if h.o.Status().Trained {
		t.Error("a model trained for another book must not be installed")
	}
}

func TestAutoTrainOnTreeChange(t *testing.T) {
	cfg := testConfig()
	cfg.AutoTrain = true
	h := newHarness(t, cfg, alignedTree(t, 7), nil)

	// the subscription is registered by Run
	waitFor(t, "subscription", func() bool {
		h.tree.Update(func(c *tree.Collection) *tree.Collection {
			nc, err := c.SetTestReservation(tree.Selector{Group: "ult", Book: "tit", Chapter: "1", Verse: "7"}, h.runner.count()%2 == 0)
			if err != nil {
				t.Errorf("SetTestReservation failed: %v", err)
			}
			return nc
		})
		return h.runner.count() == 1
	})
}

func TestEvaluateTestVerses(t *testing.T) {
	cfg := testConfig()
	cfg.EvaluateTestVerses = true
	c := alignedTree(t, 6)
	sel := tree.Selector{Group: "ult", Book: "tit", Chapter: "1", Verse: "6"}
	c, err := c.SetTestReservation(sel, true)
	if err != nil {
		t.Fatalf("SetTestReservation failed: %v", err)
	}
	h := newHarness(t, cfg, c, nil)

	msg, task := h.start(t)
	if _, ok := msg.Start.Alignments["ult/tit/1:6"]; ok {
		t.Error("held-out verse must not be trained on")
	}
	succeed(t, task)

	waitFor(t, "test score", func() bool {
		v, err := h.tree.Get().SelectedVerse(sel)
		if err != nil {
			return false
		}
		_, ok := v.TestScore()
		return ok
	})
	if got := h.tree.Get().InstanceCount(); got != c.InstanceCount() {
		t.Errorf("scores must not change the instance count: %d != %d", got, c.InstanceCount())
	}
}

func TestScoreAlignments(t *testing.T) {
	src := text.ToWords(text.FromPlain("χάρις εἰρήνη"))
	tgt := text.ToWords(text.FromPlain("grace peace"))
	gold := []text.Alignment{
		{Source: text.Ngram{src[0]}, Target: text.Ngram{tgt[0]}},
		{Source: text.Ngram{src[1]}, Target: text.Ngram{tgt[1]}},
	}
	predicted := []model.Prediction{
		{Source: text.Ngram{src[0]}, Target: text.Ngram{tgt[0]}},
		{Source: text.Ngram{src[1]}, Target: text.Ngram{tgt[0]}},
		{Source: text.Ngram{src[1]}, Target: text.Ngram{tgt[1]}},
		{Source: text.Ngram{src[0]}, Target: text.Ngram{tgt[1]}},
	}
	s := ScoreAlignments(predicted, gold)
	if s.Precision != 0.5 || s.Recall != 1 {
		t.Errorf("expected precision 0.5 recall 1, got %+v", s)
	}
	if s.F1 < 0.66 || s.F1 > 0.67 {
		t.Errorf("expected F1 2/3, got %v", s.F1)
	}
	if z := ScoreAlignments(nil, nil); z.F1 != 0 {
		t.Errorf("empty inputs must score zero, got %+v", z)
	}
}
