package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage fixalign configuration",
		Long:  "Show, get, or set configuration values. Config is stored in ~/.fixalign.yaml.",
		Example: `  fixalign config                          # show all config
  fixalign config set delta_ratio_thd 0.3  # realign fewer regions
  fixalign config get workers              # get a value`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd.OutOrStdout())
		},
	}

	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigGetCmd())

	return cmd
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(cmd.OutOrStdout(), args[0], args[1])
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(cmd.OutOrStdout(), args[0])
		},
	}
}

// storedSettings returns the values that were set explicitly, leaving out
// the defaults of bound flags.
func storedSettings() map[string]any {
	settings := make(map[string]any)
	for _, key := range viper.AllKeys() {
		if viper.IsSet(key) {
			settings[key] = viper.Get(key)
		}
	}
	return settings
}

func runConfigShow(w io.Writer) error {
	settings := storedSettings()
	if len(settings) == 0 {
		fmt.Fprintln(w, "# No configuration set. Config file: ~/.fixalign.yaml")
		return nil
	}

	out, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	fmt.Fprint(w, string(out))
	return nil
}

func runConfigSet(w io.Writer, key, value string) error {
	if _, ok := optionKeys[key]; !ok {
		return usageError(fmt.Errorf("unknown configuration key %q", key))
	}

	// Parse boolean-like and numeric values
	switch value {
	case "true", "yes", "on":
		viper.Set(key, true)
	case "false", "no", "off":
		viper.Set(key, false)
	default:
		if n, err := strconv.Atoi(value); err == nil {
			viper.Set(key, n)
		} else if f, err := strconv.ParseFloat(value, 64); err == nil {
			viper.Set(key, f)
		} else {
			viper.Set(key, value)
		}
	}

	// Ensure config file exists
	cfgFile := viper.ConfigFileUsed()
	if cfgFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("cannot determine home directory: %w", err)
		}
		cfgFile = filepath.Join(home, ".fixalign.yaml")
	}

	// Only persist stored values; flag defaults stay out of the file.
	persist := viper.New()
	for k, v := range storedSettings() {
		persist.Set(k, v)
	}
	persist.Set(key, viper.Get(key))
	if err := persist.WriteConfigAs(cfgFile); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Fprintf(w, "Set %s = %s in %s\n", key, value, cfgFile)
	return nil
}

func runConfigGet(w io.Writer, key string) error {
	val := viper.Get(key)
	if val == nil {
		return fmt.Errorf("key %q is not set", key)
	}
	fmt.Fprintln(w, val)
	return nil
}
