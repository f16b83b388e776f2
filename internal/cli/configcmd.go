package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fileferry/fileferry/internal/config"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage fileferry configuration",
		Long: `Configuration management commands for fileferry.

Commands:
  init  - Write a configuration file with default values
  show  - Display current configuration
  path  - Show configuration file path`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

// configPath returns the effective config file path, honoring --config.
func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	return config.DefaultConfigPath()
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with default values",
		Long: `Write a configuration file populated with the default settings.

The file is saved to ~/.config/fileferry/fileferry.conf unless --config
points elsewhere. Edit it afterwards to change buffer sizes, rate
estimation, or notification behavior.

Use --force to overwrite existing configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := GetLogger()

			path, err := configPath()
			if err != nil {
				return err
			}

			if !force {
				if _, err := os.Stat(path); err == nil {
					fmt.Printf("Configuration already exists at: %s\n", path)
					fmt.Println("Use --force to overwrite or run 'config show' to view current config.")
					return nil
				}
			}

			if err := config.Save(config.New(), path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			logger.Info().Str("path", path).Msg("Configuration saved")
			fmt.Printf("✓ Configuration saved to: %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration")

	return cmd
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the current configuration settings.

Values come from the configuration file where it exists and from the
built-in defaults where it does not. Command-line flags on copy, move
and plan override individual values per invocation.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}

			cfg, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			fmt.Println("Current Configuration")
			fmt.Println("=====================")
			fmt.Println()

			fmt.Println("Transfer Settings:")
			fmt.Printf("  Buffer Size:        %d KiB\n", cfg.Transfer.BufferSizeKB)
			fmt.Printf("  Sample Interval:    %d ms\n", cfg.Transfer.SampleIntervalMs)
			fmt.Printf("  Concurrent Jobs:    %d\n", cfg.Transfer.MaxConcurrentJobs)
			fmt.Printf("  Space Margin:       %g%%\n", cfg.Transfer.SpaceMarginPercent)
			fmt.Printf("  Preserve Mod Time:  %t\n", cfg.Transfer.PreserveModTime)
			fmt.Printf("  Fsync:              %t\n", cfg.Transfer.Fsync)
			fmt.Printf("  Verify:             %t\n", cfg.Transfer.Verify)
			fmt.Println()

			fmt.Println("Enumeration Settings:")
			fmt.Printf("  Follow Symlinks: %t\n", cfg.Enumeration.FollowSymlinks)
			fmt.Printf("  Exclude Hidden:  %t\n", cfg.Enumeration.ExcludeHidden)
			fmt.Println()

			fmt.Println("Rate Estimation:")
			fmt.Printf("  Window:          %d s\n", cfg.Rate.WindowSeconds)
			fmt.Printf("  Smoothing Alpha: %g\n", cfg.Rate.SmoothingAlpha)
			fmt.Printf("  Idle Timeout:    %d s\n", cfg.Rate.IdleTimeoutSeconds)
			fmt.Println()

			fmt.Println("Notifications:")
			fmt.Printf("  Enabled:          %t\n", cfg.Notifications.Enabled)
			fmt.Printf("  Max Visible:      %d\n", cfg.Notifications.MaxVisible)
			fmt.Printf("  Show Completion:  %t\n", cfg.Notifications.ShowCompletion)
			fmt.Printf("  Show Failure:     %t\n", cfg.Notifications.ShowFailure)
			fmt.Printf("  Show File Errors: %t\n", cfg.Notifications.ShowFileErrors)
			fmt.Println()

			fmt.Printf("Configuration file: %s\n", path)
			if _, err := os.Stat(path); os.IsNotExist(err) {
				fmt.Println("  (file does not exist - using defaults)")
			}

			return nil
		},
	}

	return cmd
}

// newConfigPathCmd creates the 'config path' command.
// v1.2.0: New subcommand - prints the resolved configuration path.
func newConfigPathCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Long:  `Display the path to the configuration file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			if cfgFile != "" {
				fmt.Println("Configuration path (from --config flag):")
			} else {
				fmt.Println("Default configuration path:")
			}

			fmt.Printf("  %s\n", path)
			fmt.Println()

			if fileInfo, err := os.Stat(path); err == nil {
				fmt.Println("Status: ✓ File exists")
				fmt.Printf("Size:   %d bytes\n", fileInfo.Size())
				fmt.Printf("Modified: %s\n", fileInfo.ModTime().Format("2006-01-02 15:04:05"))
			} else {
				fmt.Println("Status: File does not exist")
				fmt.Println()
				fmt.Println("Create a configuration file with: fileferry config init")
			}

			return nil
		},
	}

	return cmd
}
