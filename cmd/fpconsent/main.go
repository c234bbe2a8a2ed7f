package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/config"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/db"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/logger"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/mcp"
	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/ops"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"save": true, "prime": true, "effective": true, "services": true,
	"audit": true, "alert": true, "history": true, "presets": true,
	"languages": true, "categories": true, "notify": true,
	"export": true, "import": true, "serve": true, "daemon": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode(args []string) bool {
	if len(args) < 2 {
		return false
	}
	arg := args[1]
	if cliCommands[arg] {
		return true
	}
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v"
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion(args []string) bool {
	if len(args) < 2 {
		return false
	}
	arg := args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}

func printBanner() {
	fmt.Println(`
  fpconsent - integration detection and consent rule reconciliation

  Usage: fpconsent <command> [options]
         fpconsent --help

  MCP server mode requires piped input.`)
}

func main() {
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Help and version need no database.
	if isHelpOrVersion(os.Args) {
		if err := newCLIApp(nil).Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("could not determine home directory: %w", err)
	}
	baseDir := filepath.Join(homeDir, config.DirName)

	cwd, err := os.Getwd()
	if err != nil {
		cwd = baseDir
	}
	cfg, err := config.LoadWithRepo(baseDir, cwd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, closeLog, err := logger.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to open log output: %w", err)
	}
	defer closeLog()

	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		log.Warn("unknown tools in disabled_tools", "tools", strings.Join(unknown, ", "))
	}

	database, err := db.Init(baseDir)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()
	db.ConfigurePool(database, cfg)

	env, err := ops.NewEnv(database, cfg, log)
	if err != nil {
		return err
	}

	if isCLIMode(os.Args) {
		return newCLIApp(env).Run(os.Args)
	}

	// An unknown argument on a terminal is a typo, not an MCP client.
	if len(os.Args) >= 2 && isTerminal() {
		return fmt.Errorf("unknown command %q\nRun 'fpconsent --help' for usage", os.Args[1])
	}

	return mcp.Run(env, Version)
}
