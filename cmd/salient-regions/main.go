package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"

	"github.com/ironsheep/salient-regions/internal/config"
	"github.com/ironsheep/salient-regions/internal/pipeline"
	"github.com/ironsheep/salient-regions/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Handle --version and -v flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("salient-regions %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			printHelp()
			return
		}
	}

	// Configure logging to stderr (stdout is for MCP protocol)
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	logger := newLogger(os.Getenv(config.EnvLogLevel))

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := pipeline.New(cfg, nil, logger)

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--print-config":
			if err := printConfig(os.Stdout, cfg); err != nil {
				log.Fatalf("Configuration error: %v", err)
			}
			return
		case "--propose":
			if len(os.Args) < 3 {
				log.Fatal("--propose needs an image path")
			}
			if err := propose(ctx, p, os.Args[2]); err != nil {
				log.Fatalf("Proposal error: %v", err)
			}
			return
		default:
			log.Fatalf("Unknown option %q, see --help", os.Args[1])
		}
	}

	server.Version = Version
	logger.Debug("starting server", "version", Version, "built", BuildTime, "commit", GitCommit)

	srv := server.New(p)
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("Server error: %v", err)
	}
}

func printHelp() {
	fmt.Println("salient-regions - MCP server that finds salient regions in images")
	fmt.Println()
	fmt.Println("Usage: salient-regions [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version, -v        Print version information")
	fmt.Println("  --help, -h           Print this help message")
	fmt.Println("  --propose <image>    Print the salient regions of an image as JSON and exit")
	fmt.Println("  --print-config       Print the effective configuration as YAML and exit")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Printf("  %s=<file.yaml>   Load configuration from a YAML file\n", config.EnvConfig)
	fmt.Printf("  %s=debug      Log level: debug, info, warn or error\n", config.EnvLogLevel)
	fmt.Printf("  %s=<n>             Maximum number of regions to keep\n", config.EnvKeep)
	fmt.Println()
	fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
	fmt.Println("Configure it in your MCP client (e.g., Claude Desktop).")
}

// newLogger returns a text logger on stderr. Unknown levels log warnings
// and above.
func newLogger(level string) *slog.Logger {
	lvl := slog.LevelWarn
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "error":
		lvl = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

type proposeOutput struct {
	Path      string   `json:"path"`
	Width     int      `json:"width"`
	Height    int      `json:"height"`
	Proposals int      `json:"proposals"`
	Regions   [][4]int `json:"regions"`
	ElapsedMs int64    `json:"elapsed_ms"`
}

// printConfig writes cfg to w as YAML.
func printConfig(w io.Writer, cfg *config.Config) error {
	data, err := cfg.Marshal()
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return errors.Wrap(err, "failed to write configuration")
	}
	return nil
}

func propose(ctx context.Context, p *pipeline.Pipeline, path string) error {
	res, err := p.RunFile(ctx, path)
	if err != nil {
		return err
	}
	out := proposeOutput{
		Path:      path,
		Width:     res.Size.X,
		Height:    res.Size.Y,
		Proposals: len(res.Proposals),
		Regions:   make([][4]int, len(res.Regions)),
		ElapsedMs: res.Elapsed.Milliseconds(),
	}
	for i, r := range res.Regions {
		out.Regions[i] = [4]int{r.Min.X, r.Min.Y, r.Max.X, r.Max.Y}
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
