// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/parley-ops/parley/cmd/parley/cli"
	"github.com/parley-ops/parley/lib/envelope"
	"github.com/parley-ops/parley/lib/ledger"
)

// captureParams holds the parameters for the capture record operation.
type captureParams struct {
	RunID       string   `flag:"run"         desc:"run to capture"`
	Output      string   `flag:"output,o"    desc:"capture file path (default <capture dir>/<run-id>.plycap)"`
	Compression string   `flag:"compression" desc:"block compression: none, lz4, or zstd (default from config)"`
	BlockSize   int      `flag:"block-size"  desc:"envelopes per block (default from config)"`
	SealTo      []string `flag:"seal-to"     desc:"age recipient keys; seal the capture for sharing"`
	Force       bool     `flag:"force"       desc:"overwrite an existing file"`
}

// CaptureCommand returns the "capture" command: save a run's events to
// a capture file, plus subcommands for sealing, inspecting, and key
// management.
func CaptureCommand() *cli.Command {
	var params captureParams

	return &cli.Command{
		Name:    "capture",
		Summary: "Save a run's events to a capture file",
		Description: `Fetch a run's events from the ledger and write them to a capture
file: a self-contained, integrity-checked event log that replays with
zero network ("parley replay --file", "parley console --file").

With --seal-to (or capture.recipients in the config) the capture is
encrypted to the given age public keys and only the matching identity
files can open it. Sealed captures get an .age suffix.`,
		Usage: "parley capture [flags] | parley capture <command>",
		Examples: []cli.Example{
			{
				Description: "Capture a run to the configured capture directory",
				Command:     "parley capture --run run-42",
			},
			{
				Description: "Capture to an explicit path with lz4 blocks",
				Command:     "parley capture --run run-42 --output /tmp/run-42.plycap --compression lz4",
			},
			{
				Description: "Capture sealed for a teammate",
				Command:     "parley capture --run run-42 --seal-to age1qxy...",
			},
		},
		Params: func() any { return &params },
		Subcommands: []*cli.Command{
			captureSealCommand(),
			captureUnsealCommand(),
			captureInfoCommand(),
			captureKeygenCommand(),
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			if params.RunID == "" {
				return cli.Validation("--run is required")
			}
			return runCapture(ctx, params, logger)
		},
	}
}

// runCapture fetches the run's events and writes the capture file,
// sealing it when recipients are configured.
func runCapture(ctx context.Context, params captureParams, logger *slog.Logger) error {
	cfg, err := cli.LoadConfigOrDefault()
	if err != nil {
		return err
	}

	compressionName := params.Compression
	if compressionName == "" {
		compressionName = cfg.Capture.Compression
	}
	compression, err := ledger.ParseCompressionTag(compressionName)
	if err != nil {
		return cli.Validation("%v", err)
	}

	blockSize := params.BlockSize
	if blockSize == 0 {
		blockSize = cfg.Capture.BlockSize
	}

	recipients := params.SealTo
	if len(recipients) == 0 {
		recipients = cfg.Capture.Recipients
	}
	if err := checkRecipients(recipients); err != nil {
		return err
	}

	output := params.Output
	if output == "" {
		if err := cfg.EnsurePaths(); err != nil {
			return cli.Internal("%w", err)
		}
		name := params.RunID + ".plycap"
		if len(recipients) > 0 {
			name += ".age"
		}
		output = filepath.Join(cfg.Capture.Directory, name)
	}
	if err := refuseOverwrite(output, params.Force); err != nil {
		return err
	}

	clients, err := cli.Connect()
	if err != nil {
		return err
	}
	events, err := clients.Ledger.RunEvents(ctx, params.RunID)
	if err != nil {
		return ledgerFetchError(err)
	}
	if len(events) == 0 {
		return cli.NotFound("run %s has no events", params.RunID)
	}

	header := captureHeader(params.RunID, events)
	options := ledger.WriterOptions{Compression: compression, BlockSize: blockSize}

	if len(recipients) > 0 {
		if err := writeSealedCapture(output, header, events, options, recipients); err != nil {
			return err
		}
		logger.Info("sealed capture written", "path", output, "events", len(events), "recipients", len(recipients))
	} else {
		if err := ledger.WriteCaptureFile(output, header, events, options); err != nil {
			return cli.Internal("write capture: %w", err)
		}
		logger.Info("capture written", "path", output, "events", len(events))
	}

	fmt.Printf("captured %d events to %s\n", len(events), output)
	return nil
}

// captureHeader derives the file header from the events themselves, so
// the capture stays self-describing even when the run index is
// unavailable.
func captureHeader(runID string, events []*envelope.Envelope) ledger.Header {
	header := ledger.Header{
		SchemaVersion: envelope.SchemaVersion,
		RunID:         runID,
		CapturedAt:    time.Now().UTC().Format(time.RFC3339Nano),
	}
	for _, event := range events {
		if header.ConversationID == "" && event.ConversationID != "" {
			header.ConversationID = event.ConversationID
		}
		if header.WorkflowKey == "" && event.Workflow != nil && event.Workflow.WorkflowKey != "" {
			header.WorkflowKey = event.Workflow.WorkflowKey
		}
		if header.ConversationID != "" && header.WorkflowKey != "" {
			break
		}
	}
	return header
}

// writeSealedCapture writes the capture to a scratch directory and
// seals it into place, so no plaintext copy lands next to the output.
func writeSealedCapture(output string, header ledger.Header, events []*envelope.Envelope, options ledger.WriterOptions, recipients []string) error {
	scratchDir, err := os.MkdirTemp("", "parley-seal-*")
	if err != nil {
		return cli.Internal("creating seal scratch dir: %w", err)
	}
	defer os.RemoveAll(scratchDir)

	plain := filepath.Join(scratchDir, "capture.plycap")
	if err := ledger.WriteCaptureFile(plain, header, events, options); err != nil {
		return cli.Internal("write capture: %w", err)
	}
	if err := ledger.SealFile(plain, output, recipients); err != nil {
		return cli.Internal("seal capture: %w", err)
	}
	return nil
}

// checkRecipients rejects values that cannot be age public keys before
// any events are fetched. The classic mistake is pasting the
// AGE-SECRET-KEY-1 private half.
func checkRecipients(recipients []string) error {
	for _, recipient := range recipients {
		if !strings.HasPrefix(recipient, "age1") {
			return cli.Validation("recipient %q is not an age public key", recipient).
				WithHint("Recipients are age1... public keys; create a keypair with 'parley capture keygen'.")
		}
	}
	return nil
}

// refuseOverwrite guards an output path unless --force was given.
func refuseOverwrite(path string, force bool) error {
	if force {
		return nil
	}
	if _, err := os.Stat(path); err == nil {
		return cli.Conflict("%s already exists", path).WithHint("Pass --force to overwrite it.")
	}
	return nil
}

// captureSealParams holds the parameters for capture seal.
type captureSealParams struct {
	Output string   `flag:"output,o" desc:"sealed file path (default <file>.age)"`
	SealTo []string `flag:"seal-to"  desc:"age recipient keys (default from config)"`
	Force  bool     `flag:"force"    desc:"overwrite an existing file"`
}

func captureSealCommand() *cli.Command {
	var params captureSealParams

	return &cli.Command{
		Name:    "seal",
		Summary: "Encrypt an existing capture to age recipients",
		Usage:   "parley capture seal <file> [flags]",
		Examples: []cli.Example{
			{
				Description: "Seal a capture for two recipients",
				Command:     "parley capture seal run-42.plycap --seal-to age1qxy... --seal-to age1abc...",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return cli.Validation("expected exactly one capture file argument")
			}
			source := args[0]

			recipients := params.SealTo
			if len(recipients) == 0 {
				cfg, err := cli.LoadConfigOrDefault()
				if err != nil {
					return err
				}
				recipients = cfg.Capture.Recipients
			}
			if len(recipients) == 0 {
				return cli.Validation("no recipients").
					WithHint("Pass --seal-to <age public key> or set capture.recipients in the config.")
			}
			if err := checkRecipients(recipients); err != nil {
				return err
			}

			output := params.Output
			if output == "" {
				output = source + ".age"
			}
			if err := refuseOverwrite(output, params.Force); err != nil {
				return err
			}

			if err := ledger.SealFile(source, output, recipients); err != nil {
				return cli.Internal("seal capture: %w", err)
			}
			fmt.Printf("sealed to %s\n", output)
			return nil
		},
	}
}

// captureUnsealParams holds the parameters for capture unseal.
type captureUnsealParams struct {
	Output   string `flag:"output,o" desc:"plaintext file path (default strips the .age suffix)"`
	Identity string `flag:"identity" desc:"age identity file"`
	Force    bool   `flag:"force"    desc:"overwrite an existing file"`
}

func captureUnsealCommand() *cli.Command {
	var params captureUnsealParams

	return &cli.Command{
		Name:    "unseal",
		Summary: "Decrypt a sealed capture with an identity file",
		Usage:   "parley capture unseal <file> --identity <key file> [flags]",
		Examples: []cli.Example{
			{
				Description: "Unseal a shared capture",
				Command:     "parley capture unseal incident.plycap.age --identity ~/.config/parley/identity.txt",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return cli.Validation("expected exactly one sealed capture argument")
			}
			source := args[0]
			if params.Identity == "" {
				return cli.Validation("--identity is required")
			}

			output := params.Output
			if output == "" {
				output = strings.TrimSuffix(source, ".age")
				if output == source {
					return cli.Validation("cannot derive an output name from %s", source).
						WithHint("Pass --output <path> for files without an .age suffix.")
				}
			}
			if err := refuseOverwrite(output, params.Force); err != nil {
				return err
			}

			if err := ledger.UnsealFile(source, output, params.Identity); err != nil {
				return cli.Internal("unseal capture: %w", err)
			}
			fmt.Printf("unsealed to %s\n", output)
			return nil
		},
	}
}

// captureInfoParams holds the parameters for capture info.
type captureInfoParams struct {
	cli.JSONOutput
	Identity string `flag:"identity" desc:"age identity file for sealed captures"`
}

// captureInfo is the JSON shape of a capture file summary.
type captureInfo struct {
	SchemaVersion  string `json:"schema_version"`
	RunID          string `json:"run_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	WorkflowKey    string `json:"workflow_key,omitempty"`
	CapturedAt     string `json:"captured_at,omitempty"`
	EventCount     int    `json:"event_count"`
}

func captureInfoCommand() *cli.Command {
	var params captureInfoParams

	return &cli.Command{
		Name:    "info",
		Summary: "Show a capture file's header and event count",
		Usage:   "parley capture info <file> [flags]",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return cli.Validation("expected exactly one capture file argument")
			}

			header, events, err := readCapture(args[0], params.Identity)
			if err != nil {
				return err
			}

			if done, err := params.EmitJSON(captureInfo{
				SchemaVersion:  header.SchemaVersion,
				RunID:          header.RunID,
				ConversationID: header.ConversationID,
				WorkflowKey:    header.WorkflowKey,
				CapturedAt:     header.CapturedAt,
				EventCount:     len(events),
			}); done {
				return err
			}

			writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintf(writer, "schema:\t%s\n", header.SchemaVersion)
			if header.RunID != "" {
				fmt.Fprintf(writer, "run:\t%s\n", header.RunID)
			}
			if header.ConversationID != "" {
				fmt.Fprintf(writer, "conversation:\t%s\n", header.ConversationID)
			}
			if header.WorkflowKey != "" {
				fmt.Fprintf(writer, "workflow:\t%s\n", header.WorkflowKey)
			}
			if header.CapturedAt != "" {
				fmt.Fprintf(writer, "captured at:\t%s\n", header.CapturedAt)
			}
			fmt.Fprintf(writer, "events:\t%d\n", len(events))
			return writer.Flush()
		},
	}
}

// captureKeygenParams holds the parameters for capture keygen.
type captureKeygenParams struct {
	Output string `flag:"output,o" desc:"identity file path (default ~/.config/parley/identity.txt)"`
	Force  bool   `flag:"force"    desc:"overwrite an existing identity file"`
}

func captureKeygenCommand() *cli.Command {
	var params captureKeygenParams

	return &cli.Command{
		Name:    "keygen",
		Summary: "Create an age identity for sealed captures",
		Description: `Create an age x25519 keypair. The identity file holds the private
key and must stay private; the public key is printed to stdout and is
what teammates pass to --seal-to (or put in capture.recipients).`,
		Usage:  "parley capture keygen [flags]",
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}

			output := params.Output
			if output == "" {
				output = defaultIdentityPath()
			}
			// Overwriting an identity orphans every capture sealed to
			// it, so --force is required even more than usual here.
			if err := refuseOverwrite(output, params.Force); err != nil {
				return err
			}

			privateKey, publicKey, err := ledger.GenerateIdentity()
			if err != nil {
				return cli.Internal("%w", err)
			}

			if err := writeIdentityFile(output, privateKey, publicKey); err != nil {
				return cli.Internal("write identity file: %w", err)
			}

			fmt.Fprintf(os.Stderr, "Identity written to %s\n", output)
			fmt.Println(publicKey)
			return nil
		},
	}
}

// defaultIdentityPath mirrors the session file location rules.
func defaultIdentityPath() string {
	if configDir := os.Getenv("XDG_CONFIG_HOME"); configDir != "" {
		return filepath.Join(configDir, "parley", "identity.txt")
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "parley-identity.txt")
	}
	return filepath.Join(homeDir, ".config", "parley", "identity.txt")
}

// writeIdentityFile writes the keypair in age-keygen format, private
// key readable only by the owner.
func writeIdentityFile(path, privateKey, publicKey string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	content := fmt.Sprintf("# created: %s\n# public key: %s\n%s\n",
		time.Now().UTC().Format(time.RFC3339), publicKey, privateKey)
	return os.WriteFile(path, []byte(content), 0600)
}
