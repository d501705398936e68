package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/meigma/nastydata/cmd/nasty-data/cli/config"
)

const redacted = "<redacted>"

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage nasty-data configuration",
	Long: `View and modify nasty-data configuration.

Without arguments, displays the current effective configuration with the
Elasticsearch password redacted. Use subcommands to view the config path,
initialize a config file, or set configuration values.`,
	RunE: runConfigShow,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	Long: `Show the configuration file in use, or the default path if no file
was found.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, err := configFilePath()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create default configuration file",
	Long: `Create a default configuration file at the XDG config path.

The file will be created at ~/.config/nasty-data/nasty.toml (or
$XDG_CONFIG_HOME/nasty-data/nasty.toml if set).`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	configPath, err := config.File()
	if err != nil {
		return err
	}

	// Check if already exists
	if _, statErr := os.Stat(configPath); statErr == nil {
		return fmt.Errorf("config file already exists: %s", configPath)
	}

	if mkdirErr := os.MkdirAll(filepath.Dir(configPath), 0o750); mkdirErr != nil {
		return mkdirErr
	}

	// A fresh viper holds only defaults, not values from env or flags.
	defaults := viper.New()
	if err := config.SetDefaults(defaults); err != nil {
		return err
	}
	if err := defaults.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created config file: %s\n", configPath)
	return nil
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the config file.

Examples:
  nasty-data config set elasticsearch.ca_crt_path /etc/elasticsearch/certs/http_ca.crt
  nasty-data config set index.num_workers 8
  nasty-data config set progress plain`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		parsedValue := parseConfigValue(value)

		// Validate the result before writing it
		viper.Set(key, parsedValue)
		var check config.Config
		if err := viper.Unmarshal(&check); err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
		if err := check.Validate(); err != nil {
			return err
		}

		configPath, err := configFilePath()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(configPath), 0o750); err != nil {
			return err
		}
		if err := viper.WriteConfigAs(configPath); err != nil {
			return fmt.Errorf("write config: %w", err)
		}

		shown := parsedValue
		if key == "elasticsearch.password" {
			shown = redacted
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated %s = %v\n", key, shown)
		return nil
	},
}

// parseConfigValue converts booleans and integers; everything else stays a string.
func parseConfigValue(value string) any {
	switch value {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.Atoi(value); err == nil {
		return n
	}
	return value
}

// configFilePath returns the file viper read, or the default path.
func configFilePath() (string, error) {
	if used := viper.ConfigFileUsed(); used != "" {
		return used, nil
	}
	return config.File()
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	// Show all settings with their effective values
	settings := viper.AllSettings()
	if es, ok := settings["elasticsearch"].(map[string]any); ok {
		if pw, _ := es["password"].(string); pw != "" {
			es["password"] = redacted
		}
	}
	data, err := yaml.Marshal(settings)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}
