package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/stefanzvkvc/chord"
	"github.com/stefanzvkvc/chord/internal/mcp"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"set": true, "get": true, "update": true, "delete": true,
	"sync": true, "export": true, "cleanup": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	// Known subcommand → CLI
	if cliCommands[arg] {
		return true
	}
	// --help or --version → CLI
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false // Default → MCP server
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
        _                   _
    ___| |__   ___  _ __ __| |
   / __| '_ \ / _ \| '__/ _' |
  | (__| | | | (_) | | | (_| |
   \___|_| |_|\___/|_|  \__,_|

  Versioned context store with delta sync

  Usage: chord <command> [options]
         chord --help

  MCP server mode requires piped input.`)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before opening a backend (none needed)
	if isHelpOrVersion() {
		app := newCLIApp(nil)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		os.Exit(1)
	}

	baseDir := filepath.Join(homeDir, ".chord")

	cfg, err := chord.LoadConfig(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Path == "" {
		cfg.Path = baseDir
	}

	engine, err := chord.New(chord.Options{Config: cfg})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to open backend: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	// CLI mode: known subcommand
	if isCLIMode() {
		app := newCLIApp(engine)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'chord --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default)
	engine.StartScheduler(0, chord.CleanupInput{})
	if err := mcp.Run(engine, cfg.DisabledTools, Version, nil); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
