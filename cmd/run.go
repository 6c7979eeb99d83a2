package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	rpmextract "github.com/hashicorp/go-rpmextract"
)

// CLI are the cli parameters for the rpmextract binary
type CLI struct {
	Source                     string           `arg:"" name:"source" help:"Path to the rpm package." type:"existingfile"`
	Dest                       string           `arg:"" name:"dest" optional:"" help:"Destination directory. Defaults to the package file name without its .rpm suffix."`
	Chdir                      string           `type:"existingdir" help:"Working directory to resolve relative paths against. The process working directory stays unchanged."`
	Check                      bool             `short:"n" help:"Report what would change without touching the filesystem."`
	ContinueOnUnsupportedFiles bool             `short:"C" help:"Skip payload entries that cannot be recreated, such as device nodes."`
	Force                      bool             `short:"f" help:"Discard a present destination and extract again."`
	Group                      string           `short:"g" help:"Group name the extracted tree is handed to."`
	InsecureTraverseSymlinks   bool             `help:"[Dangerous!] Follow symlinks in entry paths during extraction."`
	MaxExtractionSize          int64            `optional:"" default:"-1" help:"Maximum extraction size in bytes. (disable check: -1)"`
	MaxFiles                   int64            `optional:"" default:"-1" help:"Maximum payload entries before stop. (disable check: -1)"`
	MaxInputSize               int64            `optional:"" default:"-1" help:"Maximum package size in bytes. (disable check: -1)"`
	Owner                      string           `short:"o" help:"User name the extracted tree is handed to."`
	Pipeline                   bool             `help:"Extract with the rpm2cpio and cpio helper programs instead of the built-in parser."`
	Telemetry                  bool             `short:"T" optional:"" default:"false" help:"Print telemetry to log after extraction."`
	Verbose                    bool             `short:"v" optional:"" help:"Verbose logging."`
	Version                    kong.VersionFlag `short:"V" optional:"" help:"Print release version information."`
}

// failureRecord is the result record written on a failed run, the request
// echoes plus the error message.
type failureRecord struct {
	Msg     string `json:"msg"`
	Changed bool   `json:"changed"`
	Source  string `json:"src,omitempty"`
	Dest    string `json:"dest,omitempty"`
	Chdir   string `json:"chdir,omitempty"`
	Owner   string `json:"owner,omitempty"`
	Group   string `json:"group,omitempty"`
	Force   bool   `json:"force"`
}

// Run is the entrypoint into rpmextract as a cli tool
func Run(version, commit, date string) {
	ctx := context.Background()
	var cli CLI
	kong.Parse(&cli,
		kong.Description("Idempotent extraction of rpm packages into directories"),
		kong.UsageOnError(),
		kong.Vars{
			"version": fmt.Sprintf("%s (%s), commit %s, built at %s", filepath.Base(os.Args[0]), version, commit, date),
		},
	)

	// Check for verbose output
	logLevel := slog.LevelError
	if cli.Verbose {
		logLevel = slog.LevelDebug
	}

	// setup logger
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	// setup telemetry hook
	telemetryToLog := func(ctx context.Context, td *rpmextract.TelemetryData) {
		if cli.Telemetry {
			logger.Info("extraction finished", "telemetry", td)
		}
	}

	// pick the extraction backend
	var unpacker rpmextract.Unpacker = rpmextract.NewNativeUnpacker()
	if cli.Pipeline {
		unpacker = rpmextract.NewPipelineUnpacker()
	}

	// process cli params
	cfg := rpmextract.NewConfig(
		rpmextract.WithContinueOnUnsupportedFiles(cli.ContinueOnUnsupportedFiles),
		rpmextract.WithInsecureTraverseSymlinks(cli.InsecureTraverseSymlinks),
		rpmextract.WithLogger(logger),
		rpmextract.WithMaxExtractionSize(cli.MaxExtractionSize),
		rpmextract.WithMaxFiles(cli.MaxFiles),
		rpmextract.WithMaxInputSize(cli.MaxInputSize),
		rpmextract.WithTelemetryHook(telemetryToLog),
		rpmextract.WithUnpacker(unpacker),
	)

	req := &rpmextract.Request{
		Source: cli.Source,
		Dest:   cli.Dest,
		Chdir:  cli.Chdir,
		Owner:  cli.Owner,
		Group:  cli.Group,
		Force:  cli.Force,
		Check:  cli.Check,
	}

	// converge and report the outcome as a json record on stdout
	res, err := rpmextract.Reconcile(ctx, req, cfg)
	if err != nil {
		record := failureRecord{
			Msg:    err.Error(),
			Source: res.Source,
			Dest:   res.Dest,
			Chdir:  res.Chdir,
			Owner:  res.Owner,
			Group:  res.Group,
			Force:  res.Force,
		}
		if encErr := json.NewEncoder(os.Stdout).Encode(record); encErr != nil {
			logger.Error("cannot write failure record", "error", encErr)
		}
		os.Exit(1)
	}

	if err := json.NewEncoder(os.Stdout).Encode(res); err != nil {
		logger.Error("cannot write result", "error", err)
		os.Exit(1)
	}
}
