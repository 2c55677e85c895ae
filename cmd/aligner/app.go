package main

import (
	"context"
	"fmt"

	"github.com/FocuswithJustin/JuniperAlign/core/cache"
	"github.com/FocuswithJustin/JuniperAlign/core/model"
	"github.com/FocuswithJustin/JuniperAlign/core/tree"
	"github.com/FocuswithJustin/JuniperAlign/internal/config"
	"github.com/FocuswithJustin/JuniperAlign/internal/logging"
	"github.com/FocuswithJustin/JuniperAlign/internal/modelcache"
	"github.com/FocuswithJustin/JuniperAlign/internal/project"
	"github.com/FocuswithJustin/JuniperAlign/internal/state"
	"github.com/FocuswithJustin/JuniperAlign/internal/store"
	"github.com/FocuswithJustin/JuniperAlign/internal/trainer"
)

// app holds the services shared by the commands.
type app struct {
	cfg   *config.Config
	store store.Store
	cache *modelcache.Cache
}

// loadConfig reads configuration and initializes logging.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return nil, err
	}
	if CLI.LogLevel != "" {
		cfg.Log.Level = CLI.LogLevel
	}
	logging.InitLogger(logging.ParseLevel(cfg.Log.Level), logging.ParseFormat(cfg.Log.Format))
	return cfg, nil
}

// openApp loads configuration and opens the model cache.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	s, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}
	hot := cache.NewBlobCache(cache.Config{MaxSize: cfg.Cache.MaxEntries}, cfg.Cache.MaxBytes)
	return &app{
		cfg:   cfg,
		store: s,
		cache: modelcache.New(s, model.Load, modelcache.WithHotTier(hot)),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		logging.Warn("failed to close store", "error", err)
	}
}

// orchestrator builds an orchestrator that trains in-process.
func (a *app) orchestrator(treeStore *state.Store[*tree.Collection], host trainer.HostCallback) *trainer.Orchestrator {
	return trainer.New(trainer.Options{
		Config: a.cfg.Training,
		Tree:   treeStore,
		Runner: trainer.NewGoroutineRunner(model.NewTrainable),
		Cache:  a.cache,
		Host:   host,
	})
}

// buildProject loads and builds a project file.
func buildProject(path string) (*project.Project, *tree.Collection, project.Report, error) {
	p, err := project.Load(path)
	if err != nil {
		return nil, nil, project.Report{}, err
	}
	c, report, err := p.Build()
	if err != nil {
		return nil, nil, report, err
	}
	return p, c, report, nil
}

// resolveContext fills fields the project leaves empty from configuration.
func resolveContext(p trainer.Context, cc config.ContextConfig) trainer.Context {
	pick := func(a, b string) string {
		if a != "" {
			return a
		}
		return b
	}
	return trainer.Context{
		BibleID:        pick(p.BibleID, cc.BibleID),
		BookID:         pick(p.BookID, cc.BookID),
		Chapter:        pick(p.Chapter, cc.Chapter),
		TargetLanguage: pick(p.TargetLanguage, cc.TargetLanguage),
		SourceLanguage: pick(p.SourceLanguage, cc.SourceLanguage),
	}
}
