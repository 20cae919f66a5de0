package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"

	"github.com/goliatone/go-sheetboard/pkg/config"
)

type cli struct {
	Config  string `type:"path" default:"sheetboard.yaml" help:"YAML configuration file (skipped when missing)."`
	EnvFile string `type:"path" default:".env" name:"env-file" help:"Dotenv file with SHEETBOARD_* overrides (skipped when missing)."`

	ServeStore  serveStoreCmd  `cmd:"" name:"serve-store" help:"Run the dashboard store REST server."`
	ServeEditor serveEditorCmd `cmd:"" name:"serve-editor" help:"Run the editor API bound to a workbook."`
	List        listCmd        `cmd:"" help:"List stored dashboards."`
	Export      exportCmd      `cmd:"" help:"Export a dashboard's widgets as JSON."`
	Import      importCmd      `cmd:"" help:"Replace a dashboard's widgets from a JSON export."`
	Refresh     refreshCmd     `cmd:"" help:"Refresh charts and metrics from the workbook and save."`
	Migrate     migrateCmd     `cmd:"" help:"Rewrite legacy chartIndex widgets to explicit ranges."`
	Version     versionCmd     `cmd:"" help:"Save, list or restore dashboard versions."`
	WriteMetric writeMetricCmd `cmd:"" name:"write-metric" help:"Write a metric value back to its workbook cell."`
	Seed        seedCmd        `cmd:"" help:"Import template files from a directory."`
}

// app carries what every subcommand needs.
type app struct {
	ctx    context.Context
	cfg    config.Config
	logger *zap.Logger
}

func main() {
	var c cli
	kctx := kong.Parse(&c,
		kong.Name("sheetboard"),
		kong.Description("Spreadsheet dashboard store, editor and maintenance tool."),
		kong.UsageOnError(),
	)
	cfg, err := config.Load(c.Config, c.EnvFile)
	kctx.FatalIfErrorf(err)
	logger, err := newLogger(cfg)
	kctx.FatalIfErrorf(err)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := kctx.Run(&app{ctx: ctx, cfg: cfg, logger: logger}); err != nil {
		fmt.Fprintln(os.Stderr, "sheetboard:", err)
		os.Exit(1)
	}
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var zapConfig zap.Config
	if cfg.IsProduction() {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.EncoderConfig.FunctionKey = "func"
	return zapConfig.Build()
}
