package main

import (
	"fmt"
	"os"
	"strings"

	"cmsdl/pkg/config"
	"cmsdl/pkg/ui"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage cmsdl configuration.

Configuration is resolved from, highest priority first:
  - Command line flags
  - Environment variables (CMSDL_*)
  - .env files
  - Configuration file
  - Default values`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with every option set to its default",
	Long: `Write the default configuration as YAML. The file is created as
config.yml unless a different path is given with --config.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = "config.yml"
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}

	ui.PrintSuccess("Configuration file created: " + path)
	fmt.Fprintln(ui.Stdout, "\nNext steps:")
	fmt.Fprintln(ui.Stdout, "1. Edit downloads_dir and allowed_extensions to taste")
	fmt.Fprintln(ui.Stdout, "2. Run 'cmsdl auth login' to store your GUC credentials")
	fmt.Fprintln(ui.Stdout, "3. Run 'cmsdl' to start syncing")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Fprintln(ui.Stdout)
	fmt.Fprint(ui.Stdout, string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	var warnings []string
	if cfg.Portal.InsecureSkipVerify {
		warnings = append(warnings, "TLS certificate verification is disabled")
	}
	if cfg.RateLimit.RequestsPerMinute == 0 {
		warnings = append(warnings, "download rate limiting is disabled")
	}
	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings", strings.Join(warnings, "; "))
	}

	ui.PrintSuccess("Configuration is valid")
	fmt.Fprintf(ui.Stdout, "\n  Portal: %s\n", cfg.Portal.Host)
	fmt.Fprintf(ui.Stdout, "  Downloads directory: %s\n", cfg.Output.DownloadsDir)
	if len(cfg.Output.AllowedExtensions) > 0 {
		fmt.Fprintf(ui.Stdout, "  Allowed extensions: %s\n", strings.Join(cfg.Output.AllowedExtensions, ", "))
	}
	fmt.Fprintf(ui.Stdout, "  Concurrent downloads: %d\n", cfg.Download.ConcurrentDownloads)
	fmt.Fprintf(ui.Stdout, "  Credentials backend: %s\n", cfg.Credentials.Backend)
	fmt.Fprintf(ui.Stdout, "  Log level: %s\n", cfg.Logging.Level)
	return nil
}
