package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const defaultServerURL = "http://localhost:8080"

// CLIConfig holds CLI configuration persisted to disk.
type CLIConfig struct {
	ServerURL string `yaml:"server_url,omitempty"`
}

// configPath returns the path to the CLI config file.
func configPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, ".config", "knock", "config.yaml"), nil
}

// loadConfig reads the CLI config from disk.
// Returns a zero-value config if the file doesn't exist.
func loadConfig() (CLIConfig, error) {
	path, err := configPath()
	if err != nil {
		return CLIConfig{}, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return CLIConfig{}, nil
	}
	if err != nil {
		return CLIConfig{}, fmt.Errorf("reading config: %w", err)
	}

	var cfg CLIConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return CLIConfig{}, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// saveConfig writes the CLI config to disk.
func saveConfig(cfg CLIConfig) error {
	path, err := configPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// getServerURL returns the server URL from env var, config, or default.
func getServerURL() string {
	url, _ := resolveServerURL()
	return url
}

// resolveServerURL returns the server URL and where it came from.
func resolveServerURL() (url, source string) {
	if v := os.Getenv("KNOCK_SERVER_URL"); v != "" {
		return v, "env KNOCK_SERVER_URL"
	}
	cfg, err := loadConfig()
	if err == nil && cfg.ServerURL != "" {
		return cfg.ServerURL, "config file"
	}
	return defaultServerURL, "default"
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change CLI settings",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show the server the CLI talks to",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runConfigShow(cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "set-server <url>",
			Short: "Save the server URL",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runConfigSetServer(cmd.OutOrStdout(), args[0])
			},
		},
	)

	return cmd
}

func runConfigShow(out io.Writer) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	url, source := resolveServerURL()

	if isJSON() {
		return printJSON(out, map[string]string{
			"server_url": url,
			"source":     source,
			"path":       path,
		})
	}

	fmt.Fprintf(out, "Server: %s (%s)\n", url, source)
	fmt.Fprintf(out, "File:   %s\n", path)
	return nil
}

func runConfigSetServer(out io.Writer, url string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.ServerURL = url
	if err := saveConfig(cfg); err != nil {
		return err
	}

	if isJSON() {
		return printJSON(out, map[string]string{"server_url": url})
	}
	fmt.Fprintf(out, "Server set to %s\n", url)
	return nil
}
