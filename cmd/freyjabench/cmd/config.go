package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ssargent/freyjabench/pkg/config"
)

// configCmd groups configuration helpers
var configCmd = &cobra.Command{
	Use:         "config",
	Short:       "Manage the freyjabench configuration file",
	Annotations: map[string]string{skipStoreAnnotation: "true"},
}

// configInitCmd represents the config init command
var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a configuration file with default values",
	Long: `Write the default configuration to path, or to the default location
when no path is given.

Example:
  freyjabench config init ./freyjabench.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.GetDefaultConfigPath()
		if len(args) == 1 {
			path = args[0]
		}

		force, _ := cmd.Flags().GetBool("force")
		if config.ConfigExists(path) && !force {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", path)
		}

		if err := config.SaveConfig(config.DefaultConfig(), path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", path)
		return nil
	},
}

// configShowCmd represents the config show command
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		warnings, err := cfg.Validate()
		if err != nil {
			return err
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), string(data))
		for _, w := range warnings {
			fmt.Fprintf(cmd.OutOrStdout(), "# warning: %s\n", w)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)

	configInitCmd.Flags().Bool("force", false, "Overwrite an existing file")
}
