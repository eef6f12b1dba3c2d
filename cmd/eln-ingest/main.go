// Command eln-ingest loads a directory of raw lab files into an upload and
// processes it, printing the upload report as JSON.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"

	"elncore/internal/blob"
	"elncore/internal/config"
	"elncore/internal/core"
	"elncore/internal/infra/graph/neo4j"
	"elncore/internal/logging"
	"elncore/internal/normalize"
	"elncore/internal/upload"
	"elncore/pkg/pluginapi"
	"elncore/plugins/cpfs"
	"elncore/plugins/hzb"
	"elncore/plugins/ikz"
	"elncore/plugins/imem"
	"elncore/plugins/pdi"
)

var (
	exitFunc = os.Exit
	getenv   = os.Getenv
)

type options struct {
	uploadID  string
	dir       string
	config    string
	overwrite bool
	trace     string
	stats     bool
}

func main() {
	code := cli(os.Args[1:], os.Stdout, os.Stderr)
	exitFunc(code)
}

func cli(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("eln-ingest", flag.ContinueOnError)
	flags.SetOutput(stderr)
	var opts options
	flags.StringVar(&opts.uploadID, "upload", "", "upload id (generated when empty)")
	flags.StringVar(&opts.dir, "dir", "", "directory of raw files to ingest")
	flags.StringVar(&opts.config, "config", "", "path to config yaml")
	flags.BoolVar(&opts.overwrite, "overwrite", false, "replace raw files already in the upload")
	flags.StringVar(&opts.trace, "trace", "", "write service spans as JSON lines to this file")
	flags.BoolVar(&opts.stats, "stats", false, "print operation and archive counters to stderr")
	if err := flags.Parse(args); err != nil {
		return 2
	}
	if opts.dir == "" {
		_, _ = fmt.Fprintln(stderr, "eln-ingest: -dir is required")
		return 2
	}
	if opts.uploadID == "" {
		opts.uploadID = uuid.NewString()
	}
	stats := core.NewRunStats("")
	rep, err := run(context.Background(), opts, stats)
	if opts.stats {
		_ = json.NewEncoder(stderr).Encode(stats.Summary())
	}
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "eln-ingest: %v\n", err)
		return 1
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return 1
	}
	if rep.Failed > 0 {
		return 3
	}
	return 0
}

func plugins(cfg config.Config) ([]pluginapi.Plugin, error) {
	ps := []pluginapi.Plugin{ikz.New(), cpfs.New(), hzb.New(), imem.New(), pdi.New()}
	if cfg.SubstanceTable != "" {
		table, err := normalize.LoadSubstances(cfg.SubstanceTable)
		if err != nil {
			return nil, err
		}
		ps = append(ps, normalize.SubstancePlugin{Table: table})
	}
	return ps, nil
}

func run(ctx context.Context, opts options, stats *core.RunStats) (rep core.UploadReport, err error) {
	cfg, err := config.Load(opts.config, getenv)
	if err != nil {
		return rep, err
	}
	logger, err := logging.New(cfg.LogMode)
	if err != nil {
		return rep, err
	}
	defer logger.Sync()

	store, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		return rep, fmt.Errorf("open blob store: %w", err)
	}
	index, err := core.OpenIndex(ctx, cfg.Index)
	if err != nil {
		return rep, fmt.Errorf("open index: %w", err)
	}
	defer func() {
		if cerr := index.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close index: %w", cerr)
		}
	}()
	prom, err := core.NewPrometheusRecorder(prometheus.NewRegistry())
	if err != nil {
		return rep, err
	}
	var tracer core.Tracer = core.NewOTelTracer(otel.Tracer("elncore"))
	if opts.trace != "" {
		f, ferr := os.Create(opts.trace)
		if ferr != nil {
			return rep, fmt.Errorf("open trace file: %w", ferr)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("close trace file: %w", cerr)
			}
		}()
		tracer = core.NewSpanLog(f)
	}
	svcOpts := []core.Option{
		core.WithLogger(logger),
		core.WithMetrics(core.MultiMetrics(prom, stats)),
		core.WithTracer(tracer),
		core.WithOverwrite(cfg.OverwriteArchives),
		core.WithWorkers(cfg.Workers),
	}
	if cfg.Neo4j.Enabled() {
		mirror, err := neo4j.Open(ctx, cfg.Neo4j.URI, cfg.Neo4j.User, cfg.Neo4j.Password, cfg.Neo4j.Database)
		if err != nil {
			return rep, fmt.Errorf("open neo4j: %w", err)
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if cerr := mirror.Close(closeCtx); cerr != nil {
				logger.Warn("neo4j close failed", "error", cerr)
			}
		}()
		svcOpts = append(svcOpts, core.WithGraphSink(mirror))
	}

	files := upload.New(store)
	svc := core.NewService(files, index, svcOpts...)
	ps, err := plugins(cfg)
	if err != nil {
		return rep, err
	}
	for _, p := range ps {
		if _, err := svc.InstallPlugin(p); err != nil {
			return rep, err
		}
	}
	n, err := copyDir(ctx, files, opts)
	if err != nil {
		return rep, err
	}
	logger.Info("raw files staged", "upload_id", opts.uploadID, "files", n)
	return svc.ProcessUpload(ctx, opts.uploadID)
}

// copyDir writes every regular file below opts.dir into the upload under its
// slash-separated relative path.
func copyDir(ctx context.Context, files *upload.Files, opts options) (int, error) {
	n := 0
	err := filepath.WalkDir(opts.dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(opts.dir, p)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p) // #nosec G304: walked from the ingest directory
		if err != nil {
			return err
		}
		if err := files.WriteRaw(ctx, opts.uploadID, filepath.ToSlash(rel), data, opts.overwrite); err != nil {
			return fmt.Errorf("stage %s: %w", rel, err)
		}
		n++
		return nil
	})
	if err != nil {
		return n, err
	}
	if n == 0 {
		return 0, errors.New("no files to ingest in " + opts.dir)
	}
	return n, nil
}
