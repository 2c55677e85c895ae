// Package trainer supervises background training of the alignment model:
// it decides when a run is needed, trims the dataset to the complexity
// budget, enforces the deadline and adapts the budget to observed run
// times.
package trainer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	apperrors "github.com/FocuswithJustin/JuniperAlign/core/errors"
	"github.com/FocuswithJustin/JuniperAlign/core/model"
	"github.com/FocuswithJustin/JuniperAlign/core/reduce"
	"github.com/FocuswithJustin/JuniperAlign/core/text"
	"github.com/FocuswithJustin/JuniperAlign/core/tree"
	"github.com/FocuswithJustin/JuniperAlign/internal/config"
	"github.com/FocuswithJustin/JuniperAlign/internal/logging"
	"github.com/FocuswithJustin/JuniperAlign/internal/modelcache"
	"github.com/FocuswithJustin/JuniperAlign/internal/state"
)

// Reasons StartTraining declines to launch.
var (
	ErrRunning  = errors.New("training already running")
	ErrUpToDate = errors.New("model is up to date")
	ErrNoModel  = errors.New("no trained model")
	ErrStopped  = errors.New("orchestrator stopped")
)

// Phase is the orchestrator's run state.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseLaunching Phase = "launching"
	PhaseRunning   Phase = "running"
	PhaseCompleted Phase = "completed"
	PhaseFailed    Phase = "failed"
	PhaseTimedOut  Phase = "timed_out"
)

// StateChange is reported to the host whenever training starts, makes
// progress or ends.
type StateChange struct {
	Training          bool   `json:"training"`
	TrainingComplete  bool   `json:"trainingComplete"`
	TrainingFailed    bool   `json:"trainingFailed,omitempty"`
	PercentComplete   int    `json:"percentComplete"`
	FailedToLoadCache bool   `json:"failedToLoadCache,omitempty"`
	Error             string `json:"error,omitempty"`
}

// HostCallback receives state changes on the orchestrator goroutine. It
// must not block.
type HostCallback func(StateChange)

// Context identifies what is being aligned.
type Context struct {
	BibleID        string `json:"bibleId"`
	BookID         string `json:"bookId"`
	Chapter        string `json:"chapter,omitempty"`
	TargetLanguage string `json:"targetLanguage"`
	SourceLanguage string `json:"sourceLanguage"`
}

func (c Context) keys() modelcache.Keys {
	return modelcache.Keys{
		BibleID:        c.BibleID,
		BookID:         c.BookID,
		TargetLanguage: c.TargetLanguage,
		SourceLanguage: c.SourceLanguage,
	}
}

// Status is a snapshot of the orchestrator for display.
type Status struct {
	Phase             Phase         `json:"phase"`
	LastOutcome       Phase         `json:"lastOutcome,omitempty"`
	RunID             string        `json:"runId,omitempty"`
	Context           Context       `json:"context"`
	MaxComplexity     int           `json:"maxComplexity"`
	LastTrained       int           `json:"lastTrainedInstanceCount"`
	Trained           bool          `json:"trained"`
	PercentComplete   int           `json:"percentComplete"`
	Examples          int           `json:"examples"`
	Trimmed           int           `json:"trimmed"`
	StartedAt         time.Time     `json:"startedAt,omitzero"`
	LastDuration      time.Duration `json:"lastDuration,omitempty"`
	LastError         string        `json:"lastError,omitempty"`
	FailedToLoadCache bool          `json:"failedToLoadCache,omitempty"`
}

// Options wires an Orchestrator.
type Options struct {
	Config config.TrainingConfig
	// Tree is the authoritative document tree. The orchestrator reads the
	// latest value at every decision and writes test scores back to it.
	Tree   *state.Store[*tree.Collection]
	Runner Runner
	// Loader restores models produced by Runner.
	Loader model.Loader
	// Cache persists trained models; nil disables persistence.
	Cache *modelcache.Cache
	Clock clockwork.Clock
	Host  HostCallback
	// Rand drives the random reduction tier; nil uses math/rand/v2.
	Rand reduce.Intner
}

// Orchestrator owns the training run state. All state changes happen on
// the goroutine running Run; the exported methods post events to it.
type Orchestrator struct {
	cfg    config.TrainingConfig
	tree   *state.Store[*tree.Collection]
	runner Runner
	loader model.Loader
	cache  *modelcache.Cache
	clock  clockwork.Clock
	host   HostCallback
	rand   reduce.Intner
	status *state.Store[Status]

	events   chan any
	kick     chan struct{}
	stopped  chan struct{}
	persists sync.WaitGroup

	// owned by the Run goroutine
	phase         Phase
	lastOutcome   Phase
	context       Context
	maxComplexity int
	lastTrained   int
	lastPersisted int
	model         model.Trainable
	run           *run
	lastDuration  time.Duration
	lastError     string
	cacheFailed   bool
	examples      int
	trimmed       int
}

// run is the bookkeeping of the in-flight task.
type run struct {
	id        string
	contextID string
	task      Task
	timer     clockwork.Timer
	attempted int
	trimmed   bool
	startedAt time.Time
	percent   int
}

type (
	startEvent struct {
		force bool
		reply chan error
	}
	stopEvent    struct{ reply chan struct{} }
	contextEvent struct {
		ctx   Context
		reply chan struct{}
	}
	taskEvent    struct{ msg Message }
	closedEvent  struct{ runID string }
	timeoutEvent struct{ runID string }
	cacheEvent   struct {
		key         string
		model       model.Trainable
		modelErr    error
		settings    modelcache.Settings
		settingsErr error
	}
	predictEvent struct {
		source, target []text.Token
		reply          chan predictReply
	}
	predictReply struct {
		predictions []model.Prediction
		err         error
	}
)

// New returns an orchestrator. Call Run to start it.
func New(opts Options) *Orchestrator {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Host == nil {
		opts.Host = func(StateChange) {}
	}
	if opts.Loader == nil {
		opts.Loader = model.Load
	}
	o := &Orchestrator{
		cfg:           opts.Config,
		tree:          opts.Tree,
		runner:        opts.Runner,
		loader:        opts.Loader,
		cache:         opts.Cache,
		clock:         opts.Clock,
		host:          opts.Host,
		rand:          opts.Rand,
		events:        make(chan any, 16),
		kick:          make(chan struct{}, 1),
		stopped:       make(chan struct{}),
		phase:         PhaseIdle,
		maxComplexity: opts.Config.Clamp(opts.Config.InitialMaxComplexity),
		lastTrained:   -1,
		lastPersisted: -1,
	}
	o.status = state.New(o.snapshot())
	maxComplexityGauge.Set(float64(o.maxComplexity))
	return o
}

// Run processes events until ctx is done. Any running task is terminated
// and pending cache writes are flushed before it returns.
func (o *Orchestrator) Run(ctx context.Context) error {
	unsubscribe := o.tree.Subscribe(func(*tree.Collection) {
		if o.cfg.AutoTrain {
			o.Kick()
		}
	})
	defer unsubscribe()
	defer close(o.stopped)
	defer o.persists.Wait()
	defer o.terminate()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-o.kick:
			if err := o.startTraining(false); err != nil {
				logging.Debug("auto training skipped", "reason", err)
			}
		case ev := <-o.events:
			o.handle(ev)
		}
		o.publish()
	}
}

// Kick requests a non-forced training attempt. It never blocks; kicks
// arriving while one is pending are coalesced.
func (o *Orchestrator) Kick() {
	select {
	case o.kick <- struct{}{}:
	default:
	}
}

// StartTraining attempts to launch a run. Unless force is set, nothing is
// launched when the tree has not changed since the last run. It returns
// ErrRunning, ErrUpToDate or an InsufficientDataError when no run was
// launched.
func (o *Orchestrator) StartTraining(ctx context.Context, force bool) error {
	reply := make(chan error, 1)
	if err := o.post(ctx, startEvent{force: force, reply: reply}); err != nil {
		return err
	}
	return await(ctx, o.stopped, reply)
}

// Stop terminates any running task.
func (o *Orchestrator) Stop(ctx context.Context) error {
	reply := make(chan struct{}, 1)
	if err := o.post(ctx, stopEvent{reply: reply}); err != nil {
		return err
	}
	_, err := awaitValue(ctx, o.stopped, reply)
	return err
}

// SetContext switches the book or language pair being aligned. A change of
// model key loads the cached model for the new key in the background.
func (o *Orchestrator) SetContext(ctx context.Context, c Context) error {
	reply := make(chan struct{}, 1)
	if err := o.post(ctx, contextEvent{ctx: c, reply: reply}); err != nil {
		return err
	}
	_, err := awaitValue(ctx, o.stopped, reply)
	return err
}

// Predict returns alignment suggestions from the active model.
func (o *Orchestrator) Predict(ctx context.Context, source, target []text.Token) ([]model.Prediction, error) {
	reply := make(chan predictReply, 1)
	if err := o.post(ctx, predictEvent{source: source, target: target, reply: reply}); err != nil {
		return nil, err
	}
	r, err := awaitValue(ctx, o.stopped, reply)
	if err != nil {
		return nil, err
	}
	return r.predictions, r.err
}

// Status returns the latest snapshot.
func (o *Orchestrator) Status() Status {
	return o.status.Get()
}

// SubscribeStatus registers fn for every new snapshot.
func (o *Orchestrator) SubscribeStatus(fn func(Status)) (unsubscribe func()) {
	return o.status.Subscribe(fn)
}

func (o *Orchestrator) post(ctx context.Context, ev any) error {
	select {
	case o.events <- ev:
		return nil
	case <-o.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// postAsync is used by timers and forwarders, which have no caller context.
func (o *Orchestrator) postAsync(ev any) bool {
	select {
	case o.events <- ev:
		return true
	case <-o.stopped:
		return false
	}
}

func await(ctx context.Context, stopped <-chan struct{}, reply <-chan error) error {
	err, werr := awaitValue(ctx, stopped, reply)
	if werr != nil {
		return werr
	}
	return err
}

func awaitValue[T any](ctx context.Context, stopped <-chan struct{}, reply <-chan T) (T, error) {
	var zero T
	select {
	case v := <-reply:
		return v, nil
	case <-stopped:
		return zero, ErrStopped
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (o *Orchestrator) handle(ev any) {
	switch ev := ev.(type) {
	// Callers read Status right after the reply, so publish first.
	case startEvent:
		err := o.startTraining(ev.force)
		o.publish()
		ev.reply <- err
	case stopEvent:
		o.stop()
		o.publish()
		ev.reply <- struct{}{}
	case contextEvent:
		o.setContext(ev.ctx)
		o.publish()
		ev.reply <- struct{}{}
	case taskEvent:
		o.handleMessage(ev.msg)
	case closedEvent:
		if o.run != nil && o.run.id == ev.runID {
			o.fail(&apperrors.TrainingTaskError{RunID: ev.runID, Message: "task exited without a result"})
		}
	case timeoutEvent:
		o.timeout(ev.runID)
	case cacheEvent:
		o.cacheLoaded(ev)
	case predictEvent:
		if o.model == nil {
			ev.reply <- predictReply{err: ErrNoModel}
			return
		}
		ev.reply <- predictReply{predictions: o.model.Predict(ev.source, ev.target)}
	}
}

func (o *Orchestrator) startTraining(force bool) error {
	if o.run != nil {
		return ErrRunning
	}
	snapshot := o.tree.Get()
	count := snapshot.InstanceCount()
	if !force && count == o.lastTrained {
		return ErrUpToDate
	}

	ds := snapshot.ExtractDataset(false, o.cfg.IncludeCorpus)
	if have := ds.AlignmentCount(); have < o.cfg.MinTrainingExamples {
		err := &apperrors.InsufficientDataError{Have: have, Need: o.cfg.MinTrainingExamples}
		logging.TrainingEvent("skipped", "", "reason", err.Error(), "instance_count", count)
		runsTotal.WithLabelValues(outcomeInsufficient).Inc()
		o.host(StateChange{Training: false, TrainingComplete: o.model != nil})
		return err
	}

	o.phase = PhaseLaunching
	reduced := reduce.Reduce(ds.Alignments, reduce.Options{
		MaxComplexity:         o.maxComplexity,
		CurrentBook:           o.context.BookID,
		CurrentChapter:        o.context.Chapter,
		DropAllOtherBooks:     o.cfg.TrainOnlyOnCurrentBook,
		MinTrainingVerseRatio: o.cfg.MinTrainingVerseRatio,
		Rand:                  o.rand,
	})

	var memory []text.Alignment
	if o.cfg.KeepAlignmentMemory {
		for _, key := range reduced.RemovedOrder {
			memory = append(memory, reduced.Removed[key].Alignments...)
		}
	}

	r := &run{
		id:        uuid.NewString(),
		contextID: o.context.keys().Model(),
		attempted: count,
		trimmed:   reduced.Trimmed,
		startedAt: o.clock.Now(),
	}
	task, err := o.runner.Start(Message{
		Type:  MsgStartTraining,
		RunID: r.id,
		Start: &StartRequest{
			ContextID:     r.contextID,
			MaxComplexity: o.maxComplexity,
			Alignments:    reduced.Alignments,
			Corpus:        ds.Corpus,
			Memory:        memory,
		},
	})
	if err != nil {
		o.phase = PhaseIdle
		o.fail(&apperrors.TrainingTaskError{RunID: r.id, Message: err.Error()})
		return err
	}
	r.task = task
	r.timer = o.clock.AfterFunc(o.cfg.Deadline, func() {
		o.postAsync(timeoutEvent{runID: r.id})
	})
	o.run = r
	o.phase = PhaseRunning
	o.examples = reduced.KeyCount
	o.trimmed = len(reduced.RemovedOrder)
	go o.forward(r.id, task)

	examplesGauge.Set(float64(o.examples))
	trimmedGauge.Set(float64(o.trimmed))
	logging.TrainingEvent("launched", r.id,
		"instance_count", count,
		"examples", reduced.KeyCount,
		"trimmed", len(reduced.RemovedOrder),
		"complexity", reduced.AlignedComplexityCount,
		"max_complexity", o.maxComplexity,
		"corpus", len(ds.Corpus),
		"forced", force,
	)
	o.host(StateChange{Training: true, TrainingComplete: o.model != nil, PercentComplete: 0})
	return nil
}

// forward relays task messages to the event loop, tagged with the run they
// belong to.
func (o *Orchestrator) forward(runID string, task Task) {
	for msg := range task.Messages() {
		msg.RunID = runID
		if !o.postAsync(taskEvent{msg: msg}) {
			return
		}
	}
	o.postAsync(closedEvent{runID: runID})
}

func (o *Orchestrator) handleMessage(msg Message) {
	if o.run == nil || msg.RunID != o.run.id {
		return
	}
	switch msg.Type {
	case MsgStatus:
		if msg.Status == nil {
			return
		}
		pct := msg.Status.Percent()
		if pct == o.run.percent || (pct < 100 && pct-o.run.percent < o.cfg.ProgressThrottlePct) {
			return
		}
		o.run.percent = pct
		o.host(StateChange{Training: true, TrainingComplete: o.model != nil, PercentComplete: pct})
	case MsgResult:
		switch {
		case msg.Result == nil:
			o.fail(&apperrors.TrainingTaskError{RunID: msg.RunID, Message: "empty result"})
		case msg.Result.Error != "":
			o.fail(&apperrors.TrainingTaskError{RunID: msg.RunID, Message: msg.Result.Error})
		default:
			o.complete(msg.Result.Model)
		}
	}
}

// finish clears the in-flight run and returns it.
func (o *Orchestrator) finish() *run {
	r := o.run
	o.run = nil
	if r != nil && r.timer != nil {
		r.timer.Stop()
	}
	return r
}

func (o *Orchestrator) complete(blob []byte) {
	r := o.finish()
	elapsed := o.clock.Since(r.startedAt)
	o.lastDuration = elapsed

	m, err := o.loader(blob)
	if err != nil {
		o.failRun(r, &apperrors.TrainingTaskError{RunID: r.id, Message: err.Error()})
		return
	}

	o.maxComplexity = NextBudget(o.cfg, o.maxComplexity, elapsed, r.trimmed)
	o.lastOutcome = PhaseCompleted
	o.phase = PhaseIdle
	o.lastError = ""
	runsTotal.WithLabelValues(outcomeCompleted).Inc()
	runDuration.Observe(elapsed.Seconds())
	maxComplexityGauge.Set(float64(o.maxComplexity))

	if r.contextID != o.context.keys().Model() {
		logging.TrainingEvent("discarded", r.id, "reason", "context changed", "context", r.contextID)
		o.relaunch(false)
		return
	}

	o.model = m
	o.lastTrained = r.attempted
	logging.TrainingEvent("completed", r.id,
		"elapsed", elapsed,
		"instance_count", r.attempted,
		"max_complexity", o.maxComplexity,
	)
	o.host(StateChange{Training: false, TrainingComplete: true, PercentComplete: 100})

	// A timeout already advanced lastTrained to this count, so the retry
	// that finally trains is compared against what was last persisted.
	if o.cache != nil && r.attempted > 0 && r.attempted != o.lastPersisted {
		o.lastPersisted = r.attempted
		keys, settings := o.context.keys(), modelcache.Settings{MaxComplexity: o.maxComplexity}
		runID := r.id
		o.persists.Go(func() { o.persist(runID, keys, blob, settings) })
	}
	if o.cfg.EvaluateTestVerses {
		o.evaluate(m)
	}
	o.relaunch(false)
}

// NextBudget adapts the complexity budget to the duration of a successful
// run: runs slower than the high threshold shrink it proportionally, and
// trimmed runs faster than the low threshold grow it toward the midpoint.
// The result is always clamped.
func NextBudget(cfg config.TrainingConfig, current int, elapsed time.Duration, trimmed bool) int {
	// sub-second runs count as one second
	if elapsed < time.Second {
		elapsed = time.Second
	}
	budget := float64(current)
	switch {
	case elapsed > cfg.HighThreshold:
		budget *= float64(cfg.HighThreshold) / float64(elapsed)
	case trimmed && elapsed < cfg.LowThreshold:
		budget *= float64(cfg.MidThreshold()) / float64(elapsed)
	}
	budget = min(budget, float64(cfg.MaxComplexity))
	return cfg.Clamp(int(budget))
}

func (o *Orchestrator) persist(runID string, keys modelcache.Keys, blob []byte, settings modelcache.Settings) {
	ctx := logging.WithRunID(context.Background(), runID)
	log := logging.LoggerFromContext(ctx)
	if err := o.cache.SavePayload(ctx, keys.Model(), blob); err != nil {
		log.Warn("failed to persist model", "key", keys.Model(), "error", err)
	}
	if err := o.cache.SaveSettings(ctx, keys.Settings(), settings); err != nil {
		log.Warn("failed to persist settings", "key", keys.Settings(), "error", err)
	}
}

func (o *Orchestrator) timeout(runID string) {
	if o.run == nil || o.run.id != runID {
		return
	}
	r := o.finish()
	r.task.Terminate()

	previous := o.maxComplexity
	o.maxComplexity = o.cfg.Clamp(int(float64(previous) * o.cfg.TimeoutReduction))
	o.lastTrained = r.attempted
	o.lastOutcome = PhaseTimedOut
	o.phase = PhaseIdle
	o.lastDuration = o.clock.Since(r.startedAt)
	runsTotal.WithLabelValues(outcomeTimedOut).Inc()
	maxComplexityGauge.Set(float64(o.maxComplexity))
	logging.TrainingError(r.id, "deadline",
		&apperrors.TrainingTimeoutError{RunID: r.id, Deadline: o.cfg.Deadline},
		"previous_max_complexity", previous,
		"max_complexity", o.maxComplexity,
	)

	// At the budget floor the attempted-count guard ends the retry loop.
	o.relaunch(o.maxComplexity < previous)
	if o.run == nil {
		o.host(StateChange{Training: false, TrainingComplete: o.model != nil})
	}
}

func (o *Orchestrator) relaunch(force bool) {
	err := o.startTraining(force)
	if err != nil && !errors.Is(err, ErrUpToDate) {
		logging.Debug("relaunch skipped", "reason", err)
	}
}

func (o *Orchestrator) fail(err error) {
	o.failRun(o.finish(), err)
}

func (o *Orchestrator) failRun(r *run, err error) {
	runID := ""
	if r != nil {
		runID = r.id
		r.task.Terminate()
	}
	o.lastOutcome = PhaseFailed
	o.phase = PhaseIdle
	o.lastError = err.Error()
	runsTotal.WithLabelValues(outcomeFailed).Inc()
	logging.TrainingError(runID, "train", err)
	o.host(StateChange{
		Training:         false,
		TrainingComplete: o.model != nil,
		TrainingFailed:   true,
		Error:            err.Error(),
	})
}

func (o *Orchestrator) stop() {
	if r := o.finish(); r != nil {
		r.task.Terminate()
		runsTotal.WithLabelValues(outcomeStopped).Inc()
		logging.TrainingEvent("stopped", r.id)
	}
	o.phase = PhaseIdle
	o.host(StateChange{Training: false, TrainingComplete: o.model != nil})
}

// terminate is the shutdown path of Run.
func (o *Orchestrator) terminate() {
	if r := o.finish(); r != nil {
		r.task.Terminate()
	}
	o.phase = PhaseIdle
	o.publish()
}

func (o *Orchestrator) setContext(c Context) {
	oldKey := o.context.keys().Model()
	o.context = c
	newKey := c.keys().Model()
	if newKey == oldKey {
		return
	}

	o.lastTrained = -1
	o.lastPersisted = -1
	o.model = nil
	o.cacheFailed = false
	logging.TrainingEvent("context_changed", "", "model_key", newKey)

	if o.cache == nil {
		if o.cfg.AutoTrain {
			o.Kick()
		}
		return
	}
	keys := c.keys()
	go func() {
		ctx := context.Background()
		ev := cacheEvent{key: keys.Model()}
		ev.model, ev.modelErr = o.cache.LoadModel(ctx, keys.Model())
		ev.settings, ev.settingsErr = o.cache.LoadSettings(ctx, keys.Settings())
		o.postAsync(ev)
	}()
}

func (o *Orchestrator) cacheLoaded(ev cacheEvent) {
	if ev.key != o.context.keys().Model() {
		return
	}
	if ev.settingsErr == nil && ev.settings.MaxComplexity > 0 {
		o.maxComplexity = o.cfg.Clamp(ev.settings.MaxComplexity)
		maxComplexityGauge.Set(float64(o.maxComplexity))
	}
	if ev.modelErr != nil {
		o.cacheFailed = true
		o.host(StateChange{Training: o.run != nil, TrainingComplete: false, FailedToLoadCache: true})
	} else if o.model == nil {
		o.model = ev.model
		o.host(StateChange{Training: o.run != nil, TrainingComplete: true})
	}
	if o.cfg.AutoTrain {
		o.Kick()
	}
}

func (o *Orchestrator) publish() {
	o.status.Set(o.snapshot())
}

func (o *Orchestrator) snapshot() Status {
	s := Status{
		Phase:             o.phase,
		LastOutcome:       o.lastOutcome,
		Context:           o.context,
		MaxComplexity:     o.maxComplexity,
		LastTrained:       o.lastTrained,
		Trained:           o.model != nil,
		Examples:          o.examples,
		Trimmed:           o.trimmed,
		LastDuration:      o.lastDuration,
		LastError:         o.lastError,
		FailedToLoadCache: o.cacheFailed,
	}
	if o.run != nil {
		s.RunID = o.run.id
		s.PercentComplete = o.run.percent
		s.StartedAt = o.run.startedAt
	}
	return s
}
