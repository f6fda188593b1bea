package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/urfave/cli/v2"

	"github.com/stefanzvkvc/chord"
	"github.com/stefanzvkvc/chord/internal/errors"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(engine *chord.Chord) *cli.App {
	app := &cli.App{
		Name:    "chord",
		Usage:   "Versioned context store with delta sync",
		Version: Version,
		Commands: []*cli.Command{
			setCmd(engine),
			getCmd(engine),
			updateCmd(engine),
			deleteCmd(engine),
			syncCmd(engine),
			exportCmd(engine),
			cleanupCmd(engine),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// setCmd creates the set command.
func setCmd(engine *chord.Chord) *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "Replace the full state of a context (reads state JSON from stdin)",
		ArgsUsage: "[context-id]",
		Action: func(c *cli.Context) error {
			state, err := readStateStdin()
			if err != nil {
				return outputError(err)
			}

			// A generated id lets scripts create contexts without
			// choosing names.
			contextID := c.Args().First()
			if contextID == "" {
				contextID = ulid.Make().String()
			}

			output, err := engine.Set(c.Context, contextID, state)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// getCmd creates the get command.
func getCmd(engine *chord.Chord) *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Fetch the current snapshot of a context",
		ArgsUsage: "<context-id>",
		Action: func(c *cli.Context) error {
			output, err := engine.Get(c.Context, c.Args().First())
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// updateCmd creates the update command.
func updateCmd(engine *chord.Chord) *cli.Command {
	return &cli.Command{
		Name:      "update",
		Usage:     "Deep-merge a partial state into a context (reads JSON from stdin)",
		ArgsUsage: "<context-id>",
		Action: func(c *cli.Context) error {
			partial, err := readStateStdin()
			if err != nil {
				return outputError(err)
			}

			output, err := engine.Update(c.Context, c.Args().First(), partial)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(engine *chord.Chord) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a context's snapshot and delta history",
		ArgsUsage: "<context-id>",
		Action: func(c *cli.Context) error {
			contextID := c.Args().First()
			if err := engine.Delete(c.Context, contextID); err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"context_id": contextID, "deleted": true})
		},
	}
}

// syncCmd creates the sync command.
func syncCmd(engine *chord.Chord) *cli.Command {
	return &cli.Command{
		Name:      "sync",
		Usage:     "Catch up from a client version: full state, delta, or no change",
		ArgsUsage: "<context-id>",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "client-version", Aliases: []string{"c"}, Value: -1, Usage: "Version the client last saw (omit for full state)"},
		},
		Action: func(c *cli.Context) error {
			var clientVersion *int64
			if c.IsSet("client-version") {
				v := c.Int64("client-version")
				clientVersion = &v
			}

			output, err := engine.Sync(c.Context, c.Args().First(), clientVersion)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// exportCmd creates the export command.
func exportCmd(engine *chord.Chord) *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Hand the current snapshot to the configured export callback",
		ArgsUsage: "<context-id>",
		Action: func(c *cli.Context) error {
			output, err := engine.Export(c.Context, c.Args().First())
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// cleanupCmd creates the cleanup command.
func cleanupCmd(engine *chord.Chord) *cli.Command {
	return &cli.Command{
		Name:  "cleanup",
		Usage: "Run one eviction sweep",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "context", Usage: "Restrict the sweep to one context"},
			&cli.IntFlag{Name: "batch-size", Usage: "Page size for the context-expiry pass"},
		},
		Action: func(c *cli.Context) error {
			output, err := engine.Cleanup(c.Context, chord.CleanupInput{
				ContextID: c.String("context"),
				BatchSize: c.Int("batch-size"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if chordErr, ok := err.(*errors.ChordError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", chordErr.Code, chordErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStateStdin reads a JSON object from piped stdin.
func readStateStdin() (map[string]any, error) {
	if !stdinHasData() {
		return nil, errors.NewInvalidRequest("state must be piped via stdin as a JSON object")
	}

	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, errors.NewInvalidRequest("state is required")
	}

	var state map[string]any
	if err := json.Unmarshal([]byte(trimmed), &state); err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("state is not a JSON object: %v", err))
	}
	return state, nil
}
