package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/FocuswithJustin/JuniperAlign/core/tree"
	"github.com/FocuswithJustin/JuniperAlign/internal/api"
	"github.com/FocuswithJustin/JuniperAlign/internal/logging"
	"github.com/FocuswithJustin/JuniperAlign/internal/state"
	"github.com/FocuswithJustin/JuniperAlign/internal/trainer"
)

// ServeCmd runs the control API over a project.
type ServeCmd struct {
	Project string `arg:"" optional:"" help:"Project file to load" type:"existingfile"`
	Host    string `help:"Override server.host"`
	Port    int    `help:"Override server.port"`
}

func (c *ServeCmd) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	if c.Host != "" {
		a.cfg.Server.Host = c.Host
	}
	if c.Port != 0 {
		a.cfg.Server.Port = c.Port
	}

	collection := tree.NewCollection()
	tc := resolveContext(trainer.Context{}, a.cfg.Context)
	if c.Project != "" {
		p, built, report, err := buildProject(c.Project)
		if err != nil {
			return err
		}
		collection = built
		tc = resolveContext(p.Context, a.cfg.Context)
		logging.Info("project loaded",
			"path", c.Project,
			"target_verses", report.TargetVerses,
			"aligned", report.Aligned,
			"reserved", report.Reserved)
	}
	treeStore := state.New(collection)

	hub := api.NewHub()
	orch := a.orchestrator(treeStore, hub.HostCallback())
	srv, err := api.New(api.FromServerConfig(a.cfg.Server), orch, treeStore, hub, version)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := orch.Run(gctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if tc.BibleID == "" || tc.BookID == "" {
			logging.Warn("no alignment context configured; cached models will not load")
			return nil
		}
		return orch.SetContext(gctx, tc)
	})
	g.Go(func() error {
		return srv.Run(gctx)
	})
	return g.Wait()
}
