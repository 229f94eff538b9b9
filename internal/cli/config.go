package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"heic_converter/internal/config"
)

var forceInit bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, err := resolveConfigPath()
		if err != nil {
			return err
		}
		cmd.Println(path)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the default settings",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, err := resolveConfigPath()
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); err == nil && !forceInit {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		if err := config.Default().Save(path); err != nil {
			return err
		}
		cmd.Printf("Wrote default configuration to %s\n", path)
		return nil
	},
}

func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.DefaultPath()
}

func init() {
	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing file")
	configCmd.AddCommand(configPathCmd, configInitCmd)
	rootCmd.AddCommand(configCmd)
}
