package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	apperrors "github.com/FocuswithJustin/JuniperAlign/core/errors"
	"github.com/FocuswithJustin/JuniperAlign/internal/state"
	"github.com/FocuswithJustin/JuniperAlign/internal/trainer"
)

// TrainCmd trains once on a project and stores the model.
type TrainCmd struct {
	Project string        `arg:"" help:"Project file" type:"existingfile"`
	Force   bool          `help:"Retrain even when a cached model exists"`
	Wait    time.Duration `help:"Give up after this long" default:"1h"`
}

func (c *TrainCmd) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, c.Wait)
	defer cancel()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	a.cfg.Training.AutoTrain = false

	p, collection, _, err := buildProject(c.Project)
	if err != nil {
		return err
	}
	tc := resolveContext(p.Context, a.cfg.Context)
	if tc.BibleID == "" || tc.BookID == "" {
		return apperrors.NewValidation("context", "project or config must name bibleId and bookId")
	}

	changes := make(chan trainer.StateChange, 64)
	orch := a.orchestrator(state.New(collection), func(sc trainer.StateChange) {
		select {
		case changes <- sc:
		default:
		}
	})

	runCtx, stopOrch := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = orch.Run(runCtx)
		close(done)
	}()
	defer func() {
		stopOrch()
		<-done // flushes the cache write
	}()

	if err := orch.SetContext(ctx, tc); err != nil {
		return err
	}
	// the cache answers with either a model or a miss
	cached, err := waitChange(ctx, changes, func(sc trainer.StateChange) bool {
		return sc.FailedToLoadCache || sc.TrainingComplete
	})
	if err != nil {
		return err
	}
	if cached.TrainingComplete && !c.Force {
		fmt.Println("cached model found (use --force to retrain)")
		return nil
	}

	if err := orch.StartTraining(ctx, true); err != nil {
		return err
	}
	fmt.Printf("training %s (run %s)\n", orch.Status().Context.BookID, orch.Status().RunID)

	last := -1
	sc, err := waitChange(ctx, changes, func(sc trainer.StateChange) bool {
		if sc.Training && sc.PercentComplete != last {
			last = sc.PercentComplete
			fmt.Printf("\r%3d%%", last)
		}
		return !sc.Training
	})
	fmt.Println()
	if err != nil {
		return err
	}
	s := orch.Status()
	switch {
	case sc.TrainingFailed:
		return fmt.Errorf("training failed: %s", sc.Error)
	case s.LastOutcome == trainer.PhaseTimedOut:
		return &apperrors.TrainingTimeoutError{RunID: s.RunID, Deadline: a.cfg.Training.Deadline}
	}

	fmt.Printf("trained on %d examples (%d trimmed) in %s; next budget %d\n",
		s.Examples, s.Trimmed, s.LastDuration.Round(time.Millisecond), s.MaxComplexity)
	return nil
}

func waitChange(ctx context.Context, changes <-chan trainer.StateChange, match func(trainer.StateChange) bool) (trainer.StateChange, error) {
	for {
		select {
		case sc := <-changes:
			if match(sc) {
				return sc, nil
			}
		case <-ctx.Done():
			return trainer.StateChange{}, ctx.Err()
		}
	}
}
