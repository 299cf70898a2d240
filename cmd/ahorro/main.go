package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand()
	if err := root.ParseAndRun(ctx, os.Args[1:], ff.WithEnvVarPrefix("AHORRO")); err != nil {
		if errors.Is(err, ff.ErrHelp) || errors.Is(err, ff.ErrNoExec) {
			selected := root.GetSelected()
			if selected == nil {
				selected = root
			}
			fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Command(selected))
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *ff.Command {
	cfg := &config{}
	fs := ff.NewFlagSet("ahorro")
	cfg.register(fs)

	root := &ff.Command{
		Name:      "ahorro",
		Usage:     "ahorro <subcommand> [flags]",
		ShortHelp: "capture receipts, ask about spending, and summarize the month",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			if *cfg.showVersion {
				fmt.Println(version)
				return nil
			}
			return ff.ErrNoExec
		},
	}
	root.Subcommands = []*ff.Command{
		newServeCommand(cfg, fs),
		newIngestCommand(cfg, fs),
		newAskCommand(cfg, fs),
		newSummaryCommand(cfg, fs),
	}
	return root
}

func newServeCommand(cfg *config, parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("serve").SetParent(parent)
	port := fs.IntLong("port", 8080, "HTTP server port")
	authUser := fs.StringLong("auth-user", "", "Basic auth username (optional)")
	authPass := fs.StringLong("auth-pass", "", "Basic auth password (optional)")

	return &ff.Command{
		Name:      "serve",
		Usage:     "ahorro serve [flags]",
		ShortHelp: "run the HTTP API",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			cfg.setupLogging()
			return runServe(ctx, cfg, fmt.Sprintf(":%d", *port), *authUser, *authPass)
		},
	}
}

func newIngestCommand(cfg *config, parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("ingest").SetParent(parent)
	description := fs.StringLong("description", "", "Description overriding the extracted summary")
	location := fs.StringLong("location", "", "Where the purchase happened")

	return &ff.Command{
		Name:      "ingest",
		Usage:     "ahorro ingest [flags] <file>...",
		ShortHelp: "store and extract one or more documents",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			if len(args) == 0 {
				return errors.New("ingest requires at least one file")
			}
			cfg.setupLogging()
			return runIngest(ctx, cfg, args, *description, *location)
		},
	}
}

func newAskCommand(cfg *config, parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("ask").SetParent(parent)

	return &ff.Command{
		Name:      "ask",
		Usage:     "ahorro ask <prompt...>",
		ShortHelp: "ask a question about recorded spending",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			prompt := strings.TrimSpace(strings.Join(args, " "))
			if prompt == "" {
				return errors.New("ask requires a prompt")
			}
			cfg.setupLogging()
			return runAsk(cfg, prompt)
		},
	}
}

func newSummaryCommand(cfg *config, parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("summary").SetParent(parent)

	return &ff.Command{
		Name:      "summary",
		Usage:     "ahorro summary",
		ShortHelp: "print this month's spending summary",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			cfg.setupLogging()
			return runSummary(cfg)
		},
	}
}

// logLevel parses --log-level, defaulting to info
func logLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
