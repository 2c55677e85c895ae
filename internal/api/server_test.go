package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/FocuswithJustin/JuniperAlign/core/model"
	"github.com/FocuswithJustin/JuniperAlign/core/tree"
	"github.com/FocuswithJustin/JuniperAlign/internal/config"
	"github.com/FocuswithJustin/JuniperAlign/internal/project"
	"github.com/FocuswithJustin/JuniperAlign/internal/state"
	"github.com/FocuswithJustin/JuniperAlign/internal/trainer"
)

const titus = `{
  "groups": [{"name": "ult", "books": [{"id": "tit", "name": "Titus", "plain": {"1": {
    "1": "Paul a servant",
    "2": "in hope"
  }}}]}],
  "sources": [{"bookId": "tit", "plain": {"1": {
    "1": "Παῦλος δοῦλος",
    "2": "ἐπὶ ἐλπίδι"
  }}}],
  "alignments": {"ult/tit/1:1": [
    {"source": ["Παῦλος"], "target": ["Paul"]},
    {"source": ["δοῦλος"], "target": ["a", "servant"]}
  ]}
}`

// idleTask never reports; it only stops.
type idleTask struct {
	out  chan trainer.Message
	once sync.Once
}

func (t *idleTask) Messages() <-chan trainer.Message { return t.out }
func (t *idleTask) Terminate()                       { t.once.Do(func() { close(t.out) }) }

type idleRunner struct{}

func (idleRunner) Start(trainer.Message) (trainer.Task, error) {
	return &idleTask{out: make(chan trainer.Message)}, nil
}

func trainingConfig() config.TrainingConfig {
	return config.TrainingConfig{
		InitialMaxComplexity:  400000,
		MinComplexity:         20000,
		MaxComplexity:         2000000,
		Deadline:              18 * time.Minute,
		HighThreshold:         15 * time.Minute,
		LowThreshold:          5 * time.Minute,
		TimeoutReduction:      0.75,
		MinTrainingExamples:   1,
		MinTrainingVerseRatio: 1,
		ProgressThrottlePct:   1,
	}
}

type fixture struct {
	srv  *Server
	tree *state.Store[*tree.Collection]
	orch *trainer.Orchestrator
	hub  *Hub
	http *httptest.Server
}

func newFixture(t *testing.T, runner trainer.Runner, projectJSON string, cfg Config) *fixture {
	t.Helper()
	c := tree.NewCollection()
	if projectJSON != "" {
		p, err := project.Parse([]byte(projectJSON))
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		if c, _, err = p.Build(); err != nil {
			t.Fatalf("Build failed: %v", err)
		}
	}

	f := &fixture{tree: state.New(c), hub: NewHub()}
	f.orch = trainer.New(trainer.Options{
		Config: trainingConfig(),
		Tree:   f.tree,
		Runner: runner,
		Clock:  clockwork.NewFakeClock(),
		Host:   f.hub.HostCallback(),
	})
	srv, err := New(cfg, f.orch, f.tree, f.hub, "test")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	f.srv = srv

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{}, 2)
	go func() { _ = f.orch.Run(ctx); done <- struct{}{} }()
	go func() { f.hub.Run(ctx); done <- struct{}{} }()
	f.http = httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		f.http.Close()
		cancel()
		<-done
		<-done
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, APIResponse) {
	t.Helper()
	req, err := http.NewRequest(method, f.http.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	var out APIResponse
	if !strings.HasPrefix(path, "/metrics") {
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode, out
}

// data re-decodes the response payload into v.
func data(t *testing.T, resp APIResponse, v any) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
}

func TestRootAndHealth(t *testing.T) {
	f := newFixture(t, idleRunner{}, "", Config{})

	code, resp := f.do(t, http.MethodGet, "/", "")
	if code != http.StatusOK || !resp.Success {
		t.Errorf("expected 200 success, got %d %+v", code, resp)
	}
	code, resp = f.do(t, http.MethodGet, "/health", "")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	var health map[string]any
	data(t, resp, &health)
	if health["status"] != "ok" || health["phase"] != string(trainer.PhaseIdle) {
		t.Errorf("unexpected health %v", health)
	}

	code, resp = f.do(t, http.MethodGet, "/nope", "")
	if code != http.StatusNotFound || resp.Success || resp.Error == nil || resp.Error.Code != "NOT_FOUND" {
		t.Errorf("expected 404 NOT_FOUND envelope for unknown path, got %d %+v", code, resp.Error)
	}
}

func TestTrainingLifecycle(t *testing.T) {
	f := newFixture(t, idleRunner{}, titus, Config{})

	code, resp := f.do(t, http.MethodPost, "/training", "")
	if code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d %+v", code, resp.Error)
	}
	var started StartResult
	data(t, resp, &started)
	if !started.Launched || started.Status.RunID == "" {
		t.Errorf("expected a launched run, got %+v", started)
	}

	code, resp = f.do(t, http.MethodPost, "/training?force=true", "")
	if code != http.StatusConflict || resp.Error == nil || resp.Error.Code != "TRAINING_RUNNING" {
		t.Errorf("expected 409 TRAINING_RUNNING, got %d %+v", code, resp.Error)
	}

	code, resp = f.do(t, http.MethodDelete, "/training", "")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	var status trainer.Status
	data(t, resp, &status)
	if status.Phase != trainer.PhaseIdle {
		t.Errorf("expected idle after stop, got %s", status.Phase)
	}
}

func TestStartTrainingSkipped(t *testing.T) {
	f := newFixture(t, idleRunner{}, "", Config{})

	code, resp := f.do(t, http.MethodPost, "/training", "")
	if code != http.StatusOK {
		t.Fatalf("expected 200 for a skipped run, got %d", code)
	}
	var result StartResult
	data(t, resp, &result)
	if result.Launched || !strings.Contains(result.Reason, "insufficient") {
		t.Errorf("expected insufficient data, got %+v", result)
	}
}

func TestSetContext(t *testing.T) {
	f := newFixture(t, idleRunner{}, "", Config{})

	tests := []struct {
		name string
		body string
		want int
	}{
		{"bad json", `{`, http.StatusBadRequest},
		{"unknown field", `{"bible": "ult"}`, http.StatusBadRequest},
		{"missing language", `{"bibleId": "ult", "bookId": "tit", "targetLanguage": "en"}`, http.StatusBadRequest},
		{"ok", `{"bibleId": "ult", "bookId": "tit", "targetLanguage": "en", "sourceLanguage": "el-x-koine"}`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, resp := f.do(t, http.MethodPut, "/context", tt.body); code != tt.want {
				t.Errorf("expected %d, got %d %+v", tt.want, code, resp.Error)
			}
		})
	}

	_, resp := f.do(t, http.MethodGet, "/context", "")
	var c trainer.Context
	data(t, resp, &c)
	if c.BookID != "tit" || c.SourceLanguage != "el-x-koine" {
		t.Errorf("unexpected context %+v", c)
	}
}

func TestRequiresJSONContentType(t *testing.T) {
	f := newFixture(t, idleRunner{}, "", Config{})
	resp, err := http.Post(f.http.URL+"/predict", "text/plain", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Errorf("expected 415, got %d", resp.StatusCode)
	}
}

func TestPredict(t *testing.T) {
	f := newFixture(t, trainer.NewGoroutineRunner(model.NewTrainable), titus, Config{})

	body := `{"source": "Παῦλος δοῦλος", "target": "Paul a servant"}`
	if code, resp := f.do(t, http.MethodPost, "/predict", body); code != http.StatusNotFound || resp.Error.Code != "NO_MODEL" {
		t.Errorf("expected 404 NO_MODEL before training, got %d %+v", code, resp.Error)
	}
	if code, _ := f.do(t, http.MethodPost, "/predict", `{"source": "", "target": "x"}`); code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty source, got %d", code)
	}

	if code, _ := f.do(t, http.MethodPost, "/training", ""); code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", code)
	}
	deadline := time.Now().Add(5 * time.Second)
	for !f.orch.Status().Trained {
		if time.Now().After(deadline) {
			t.Fatal("training did not complete")
		}
		time.Sleep(5 * time.Millisecond)
	}

	code, resp := f.do(t, http.MethodPost, "/predict", body)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d %+v", code, resp.Error)
	}
	var preds []model.Prediction
	data(t, resp, &preds)
	if len(preds) == 0 {
		t.Error("expected predictions from the trained model")
	}
}

func TestTreeEndpoints(t *testing.T) {
	f := newFixture(t, idleRunner{}, titus, Config{})

	_, resp := f.do(t, http.MethodGet, "/tree", "")
	var info TreeInfo
	data(t, resp, &info)
	if info.States["aligned-train"] != 1 || info.States["unaligned"] != 1 || info.Fingerprint == "" {
		t.Errorf("unexpected tree info %+v", info)
	}
	before := info.InstanceCount

	code, resp := f.do(t, http.MethodPut, "/tree/alignments",
		`{"ref": "ult/tit/1:2", "alignments": [{"source": ["ἐπὶ"], "target": ["in"]}]}`)
	if code != http.StatusOK {
		t.Fatalf("expected partial alignment to save, got %d %+v", code, resp.Error)
	}
	if got := f.tree.Get().StateCounts()[tree.Unaligned]; got != 1 {
		t.Errorf("expected the partially aligned verse to stay unaligned, got %d", got)
	}

	code, resp = f.do(t, http.MethodPut, "/tree/alignments",
		`{"ref": "ult/tit/1:2", "alignments": [{"source": ["ἐπὶ"], "target": ["in"]}, {"source": ["ἐλπίδι"], "target": ["in"]}]}`)
	if code != http.StatusUnprocessableEntity || resp.Error == nil || resp.Error.Code != "ALIGNMENT_MERGE" {
		t.Errorf("expected 422 ALIGNMENT_MERGE for a reused target word, got %d %+v", code, resp.Error)
	}

	code, resp = f.do(t, http.MethodPut, "/tree/alignments",
		`{"ref": "ult/tit/1:2", "alignments": [{"source": ["ἐπὶ"], "target": ["in"]}, {"source": ["ἐλπίδι"], "target": ["hope"]}]}`)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d %+v", code, resp.Error)
	}
	if got := f.tree.Get().StateCounts()[tree.AlignedTrain]; got != 2 {
		t.Errorf("expected 2 aligned verses, got %d", got)
	}
	if f.tree.Get().InstanceCount() <= before {
		t.Error("expected the alignment to bump the instance count")
	}

	code, _ = f.do(t, http.MethodPut, "/tree/alignments", `{"ref": "ult/tit/1:9", "alignments": []}`)
	if code != http.StatusNotFound {
		t.Errorf("expected 404 for a missing verse, got %d", code)
	}
	code, _ = f.do(t, http.MethodPut, "/tree/alignments", `{"ref": "not a ref", "alignments": []}`)
	if code != http.StatusBadRequest {
		t.Errorf("expected 400 for a bad reference, got %d", code)
	}

	code, _ = f.do(t, http.MethodPost, "/tree/reservations", `{"ref": "ult/tit/1", "reserved": true}`)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if got := f.tree.Get().StateCounts()[tree.AlignedTest]; got != 2 {
		t.Errorf("expected chapter reservation to move 2 verses to test, got %d", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, idleRunner{}, "", Config{Auth: AuthConfig{Enabled: true, APIKey: "0123456789abcdef"}})
	f.do(t, http.MethodGet, "/health", "")

	resp, err := http.Get(f.http.URL + "/metrics")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected public /metrics, got %d", resp.StatusCode)
	}
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	for _, want := range []string{"aligner_http_requests_total", "aligner_training_max_complexity"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("expected %s in metrics output", want)
		}
	}
}

func TestNewRejectsWeakAPIKey(t *testing.T) {
	_, err := New(Config{Auth: AuthConfig{Enabled: true, APIKey: "short"}}, nil, nil, nil, "test")
	if err == nil {
		t.Error("expected error for short API key")
	}
}

func TestFromServerConfig(t *testing.T) {
	cfg := FromServerConfig(config.ServerConfig{
		Port:           9000,
		APIKey:         "0123456789abcdef",
		RateLimit:      2,
		RateLimitBurst: 4,
		AllowedOrigins: []string{"http://localhost:3000"},
	})
	if !cfg.Auth.Enabled || cfg.RateLimit.Burst != 4 || cfg.Port != 9000 || len(cfg.AllowedOrigins) != 1 {
		t.Errorf("unexpected config %+v", cfg)
	}
	if FromServerConfig(config.ServerConfig{}).Auth.Enabled {
		t.Error("expected auth disabled without a key")
	}
}
