package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/0xmhha/usage-report/pkg/config"
)

func newConfigCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Args:  cobra.NoArgs,
	}

	cmd.AddCommand(
		newConfigShowCmd(g),
		newConfigPathCmd(g),
		newConfigInitCmd(),
	)
	return cmd
}

// newConfigShowCmd displays the effective configuration.
func newConfigShowCmd(g *globalOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch format {
			case "json":
				return showJSON(out, cfg)
			case "yaml", "":
				return showYAML(out, cfg, g.configSource())
			default:
				return fmt.Errorf("unknown format %q (want yaml or json)", format)
			}
		},
	}

	cmd.Flags().StringVar(&format, "format", "yaml", "output format (yaml, json)")
	return cmd
}

// showYAML writes cfg as YAML. The service key is never printed.
func showYAML(w io.Writer, cfg *config.Config, source string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	fmt.Fprintln(w, "# Current Configuration")
	fmt.Fprintln(w, "# Source:", source)
	fmt.Fprintln(w, "# Service key:", keyStatus(cfg))
	fmt.Fprintln(w)
	_, err = w.Write(data)
	return err
}

// showJSON writes cfg as JSON with the same keys as the YAML file.
func showJSON(w io.Writer, cfg *config.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func keyStatus(cfg *config.Config) string {
	if cfg.Service.ServiceKey == "" {
		return "not set"
	}
	return "set"
}

// configSource names the config file in effect.
func (o *globalOptions) configSource() string {
	if o.configPath != "" {
		return o.configPath
	}
	if p := os.Getenv(config.EnvConfig); p != "" {
		return p
	}
	for _, p := range configSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return "defaults"
}

func configSearchPaths() []string {
	return []string{"./config.yaml", config.DefaultConfigPath()}
}

// newConfigPathCmd lists the config file search paths.
func newConfigPathCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file search paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, "Configuration file search paths (in order of precedence):")
			fmt.Fprintln(out)
			for i, p := range configSearchPaths() {
				exists := "not found"
				if _, err := os.Stat(p); err == nil {
					exists = "found"
				}
				fmt.Fprintf(out, "  %d. %s [%s]\n", i+1, p, exists)
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, "Active configuration:", g.configSource())
			return nil
		},
	}
}

// newConfigInitCmd writes a default config file.
func newConfigInitCmd() *cobra.Command {
	var (
		output string
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := output
			if path == "" {
				path = config.DefaultConfigPath()
			}

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
			}

			if err := config.Save(config.Default(), path); err != nil {
				return err
			}

			abs, err := filepath.Abs(path)
			if err != nil {
				abs = path
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", abs)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (default: ~/.config/usage-report/config.yaml)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return cmd
}
