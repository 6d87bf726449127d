// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/parley-ops/parley/cmd/parley/cli"
	"github.com/parley-ops/parley/lib/config"
)

// ConfigCommand returns the "config" command group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:    "config",
		Summary: "Inspect and manage the Parley configuration",
		Description: `Configuration loads from the file named by PARLEY_CONFIG. Without
it, built-in defaults apply. The file is the single source of truth;
environment variables never override individual values.`,
		Subcommands: []*cli.Command{
			configShowCommand(),
			configPathCommand(),
			configInitCommand(),
			configValidateCommand(),
		},
	}
}

func configShowCommand() *cli.Command {
	return &cli.Command{
		Name:    "show",
		Summary: "Print the effective configuration as YAML",
		Usage:   "parley config show",
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			cfg, err := cli.LoadConfigOrDefault()
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return cli.Internal("marshaling config: %w", err)
			}
			_, err = os.Stdout.Write(data)
			return err
		},
	}
}

func configPathCommand() *cli.Command {
	return &cli.Command{
		Name:    "path",
		Summary: "Print the config file path from PARLEY_CONFIG",
		Usage:   "parley config path",
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			path := os.Getenv("PARLEY_CONFIG")
			if path == "" {
				return cli.NotFound("PARLEY_CONFIG is not set; built-in defaults apply").
					WithHint("Create a config with 'parley config init' and export PARLEY_CONFIG=<path>.")
			}
			fmt.Println(path)
			return nil
		},
	}
}

// configInitParams holds the parameters for config init.
type configInitParams struct {
	Force bool `flag:"force" desc:"overwrite an existing file"`
}

// starterConfig is the annotated template written by config init. It
// mirrors the built-in defaults so the file is a no-op until edited.
const starterConfig = `# Parley configuration. Point PARLEY_CONFIG at this file.
environment: development

api:
  base_url: http://localhost:8787
  timeout: 30s
  # session_file: ${HOME}/.config/parley/session.json

console:
  theme: parley-dark
  syntax_theme: monokai
  alt_screen: true

capture:
  directory: ${HOME}/.local/share/parley/captures
  compression: zstd
  block_size: 256
  # Sealed capture exports are encrypted to these age public keys.
  # recipients:
  #   - age1...

workflows:
  # Local .jsonc workflow descriptors here are preferred over the API
  # copies, which supports editing a workflow before publishing it.
  # directory: ${HOME}/.config/parley/workflows

# Per-environment overrides, applied when environment matches.
# production:
#   api:
#     base_url: https://parley.example.com
#     insecure_http: false
`

func configInitCommand() *cli.Command {
	var params configInitParams

	return &cli.Command{
		Name:    "init",
		Summary: "Write a starter configuration file",
		Usage:   "parley config init [path]",
		Examples: []cli.Example{
			{
				Description: "Create parley.yaml in the current directory",
				Command:     "parley config init",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 1 {
				return cli.Validation("unexpected argument: %s", args[1])
			}
			path := "parley.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if err := refuseOverwrite(path, params.Force); err != nil {
				return err
			}
			if err := os.WriteFile(path, []byte(starterConfig), 0644); err != nil {
				return cli.Internal("writing %s: %w", path, err)
			}
			fmt.Fprintf(os.Stderr, "Wrote %s\n", path)
			fmt.Fprintf(os.Stderr, "Export PARLEY_CONFIG=%s to use it.\n", path)
			return nil
		},
	}
}

func configValidateCommand() *cli.Command {
	return &cli.Command{
		Name:    "validate",
		Summary: "Check a configuration file for errors",
		Usage:   "parley config validate [path]",
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 1 {
				return cli.Validation("unexpected argument: %s", args[1])
			}
			path := os.Getenv("PARLEY_CONFIG")
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return cli.Validation("no config file to validate").
					WithHint("Pass a path or set PARLEY_CONFIG.")
			}

			cfg, err := config.LoadFile(path)
			if err != nil {
				if os.IsNotExist(err) {
					return cli.NotFound("%s does not exist", path)
				}
				return cli.Validation("loading %s: %w", path, err)
			}
			if err := cfg.Validate(); err != nil {
				return cli.Validation("%s is invalid:\n%v", path, err)
			}

			fmt.Printf("%s is valid (environment: %s)\n", path, cfg.Environment)
			return nil
		},
	}
}
