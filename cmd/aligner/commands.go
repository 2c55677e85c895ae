package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	apperrors "github.com/FocuswithJustin/JuniperAlign/core/errors"
	"github.com/FocuswithJustin/JuniperAlign/core/sqlite"
	"github.com/FocuswithJustin/JuniperAlign/core/tree"
	"github.com/FocuswithJustin/JuniperAlign/internal/modelcache"
	"github.com/FocuswithJustin/JuniperAlign/internal/project"
)

// StatsCmd prints alignment progress for a project.
type StatsCmd struct {
	Project string `arg:"" help:"Project file" type:"existingfile"`
	JSON    bool   `help:"Output as JSON"`
}

// ProjectStats is the stats command's JSON output.
type ProjectStats struct {
	Report        project.Report `json:"report"`
	States        map[string]int `json:"states"`
	InstanceCount int            `json:"instanceCount"`
	Fingerprint   string         `json:"fingerprint"`
}

func (c *StatsCmd) Run() error {
	if _, err := loadConfig(); err != nil {
		return err
	}
	_, collection, report, err := buildProject(c.Project)
	if err != nil {
		return err
	}
	stats := collectStats(collection, report)
	if c.JSON {
		return writeJSON(os.Stdout, stats)
	}
	printStats(os.Stdout, stats)
	return nil
}

func collectStats(c *tree.Collection, report project.Report) ProjectStats {
	states := make(map[string]int)
	for st, n := range c.StateCounts() {
		states[st.String()] = n
	}
	return ProjectStats{
		Report:        report,
		States:        states,
		InstanceCount: c.InstanceCount(),
		Fingerprint:   c.Fingerprint(),
	}
}

func printStats(w io.Writer, s ProjectStats) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "target verses\t%d\n", s.Report.TargetVerses)
	for _, src := range s.Report.Sources {
		fmt.Fprintf(tw, "source %s\t%d added, %d dropped\n", src.BookID, src.Added, src.Dropped)
	}
	for _, st := range []tree.State{tree.NoSource, tree.NoTarget, tree.Unaligned, tree.AlignedTrain, tree.AlignedTest} {
		fmt.Fprintf(tw, "%s\t%d\n", st, s.States[st.String()])
	}
	fmt.Fprintf(tw, "fingerprint\t%s\n", s.Fingerprint)
	tw.Flush()
}

// ExportCmd writes target books with alignments merged in.
type ExportCmd struct {
	Project string `arg:"" help:"Project file" type:"existingfile"`
	Output  string `short:"o" help:"Output file (default: stdout)" type:"path"`
}

func (c *ExportCmd) Run() error {
	if _, err := loadConfig(); err != nil {
		return err
	}
	_, collection, _, err := buildProject(c.Project)
	if err != nil {
		return err
	}
	books := project.Export(collection)
	if c.Output == "" {
		return writeJSON(os.Stdout, books)
	}
	f, err := os.Create(c.Output)
	if err != nil {
		return apperrors.NewIO("create", c.Output, err)
	}
	defer f.Close()
	return writeJSON(f, books)
}

// CacheInspectCmd reports what the cache holds for a context.
type CacheInspectCmd struct {
	BibleID        string `arg:"" help:"Bible id (e.g. ult)"`
	BookID         string `arg:"" help:"Book id (e.g. tit)"`
	TargetLanguage string `arg:"" help:"Target language code"`
	SourceLanguage string `arg:"" help:"Source language code"`
}

// CacheReport is the cache inspect output.
type CacheReport struct {
	ModelKey      string `json:"modelKey"`
	ModelCached   bool   `json:"modelCached"`
	ModelError    string `json:"modelError,omitempty"`
	SettingsKey   string `json:"settingsKey"`
	MaxComplexity int    `json:"maxComplexity,omitempty"`
}

func (c *CacheInspectCmd) Run() error {
	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	keys := modelcache.Keys{
		BibleID:        c.BibleID,
		BookID:         c.BookID,
		TargetLanguage: c.TargetLanguage,
		SourceLanguage: c.SourceLanguage,
	}
	report := CacheReport{ModelKey: keys.Model(), SettingsKey: keys.Settings()}

	if _, err := a.cache.LoadModel(ctx, keys.Model()); err == nil {
		report.ModelCached = true
	} else if !errors.Is(err, apperrors.ErrCacheMiss) {
		report.ModelError = err.Error()
	}
	if s, err := a.cache.LoadSettings(ctx, keys.Settings()); err == nil {
		report.MaxComplexity = s.MaxComplexity
	} else if !errors.Is(err, apperrors.ErrCacheMiss) {
		return err
	}
	return writeJSON(os.Stdout, report)
}

// VersionCmd prints the version.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	info := sqlite.GetInfo()
	fmt.Printf("aligner version %s\n", version)
	fmt.Printf("sqlite driver: %s (%s, %s)\n", info.DriverName, info.DriverType, info.Package)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
