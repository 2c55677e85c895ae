// Command aligner trains and serves word-alignment suggestion models for
// Bible translation projects.
package main

import (
	"github.com/alecthomas/kong"
)

const version = "0.1.0"

// CLI defines the command-line interface for aligner.
var CLI struct {
	Config   string `name:"config" short:"c" help:"Configuration file (default: $CONFIG_PATH or ./aligner.yaml)" type:"path"`
	LogLevel string `name:"log-level" help:"Override log.level (debug, info, warn, error)"`

	Serve   ServeCmd   `cmd:"" help:"Start the training control API"`
	Train   TrainCmd   `cmd:"" help:"Train a model for a project and store it in the cache"`
	Stats   StatsCmd   `cmd:"" help:"Print alignment progress for a project"`
	Export  ExportCmd  `cmd:"" help:"Write target books with alignments merged in"`
	Cache   CacheGroup `cmd:"" help:"Model cache operations"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

// CacheGroup contains model cache operations.
type CacheGroup struct {
	Inspect CacheInspectCmd `cmd:"" help:"Show what is cached for a context"`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("aligner"),
		kong.Description("Juniper Align - alignment model training and suggestions"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	err := ctx.Run(ctx)
	ctx.FatalIfErrorf(err)
}
