package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/labelsplit/internal/config"
	"github.com/jackzampolin/labelsplit/internal/home"
	"github.com/jackzampolin/labelsplit/internal/output"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the labelsplit config file",
	Long: `Manage the labelsplit config file.

Values are resolved in this order: LABELSPLIT_* environment variables
(LABELSPLIT_OCR_DPI for ocr.dpi), the config file, built-in defaults.

Examples:
  labelsplit config init
  labelsplit config show -o table
  labelsplit config set ocr.dpi 400
  labelsplit config reset ocr.dpi`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with every default",
	Long: `Write a config file with every default value.

An existing file is kept; missing keys are added to it. Use --force to
replace it with a fresh default file.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := getHome()
		if err != nil {
			return err
		}
		path := editablePath(h)

		if _, err := os.Stat(path); err == nil && !configForce {
			store, err := config.NewStore(path)
			if err != nil {
				return err
			}
			if err := config.SeedDefaults(cmd.Context(), store, slog.Default()); err != nil {
				return err
			}
			fmt.Printf("Updated %s\n", path)
			return nil
		}

		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

type entryList []config.Entry

func (l entryList) Header() []string { return []string{"key", "value", "description"} }

func (l entryList) Rows() [][]string {
	rows := make([][]string, len(l))
	for i, e := range l {
		rows[i] = []string{e.Key, fmt.Sprint(e.Value), e.Description}
	}
	return rows
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective value of every setting",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := getHome()
		if err != nil {
			return err
		}
		if _, err := loadConfig(h); err != nil {
			return err
		}
		return output.Print(entryList(config.Effective()))
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Show the value stored in the config file for a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		entry, err := store.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if entry == nil {
			entry = config.GetDefault(args[0])
		}
		if entry == nil {
			return fmt.Errorf("key %q is not set and has no default", args[0])
		}
		return output.Print(entry)
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a key in the config file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		if config.GetDefault(args[0]) == nil {
			slog.Warn("key has no default and may be ignored", "key", args[0])
		}
		return store.Set(cmd.Context(), args[0], config.ParseValue(args[1]), "")
	},
}

var configResetCmd = &cobra.Command{
	Use:   "reset <key>",
	Short: "Reset a key in the config file to its default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		return config.ResetToDefault(cmd.Context(), store, args[0])
	},
}

// editablePath is the file config commands write: --config, else the home
// config file.
func editablePath(h *home.Dir) string {
	if cfgFile != "" {
		return cfgFile
	}
	return h.ConfigPath()
}

func openStore() (*config.FileStore, error) {
	h, err := getHome()
	if err != nil {
		return nil, err
	}
	return config.NewStore(editablePath(h))
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing config file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configResetCmd)
	rootCmd.AddCommand(configCmd)
}
