package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/amoylab/oscbridge/internal/common/cnst"
	"github.com/amoylab/oscbridge/internal/common/config"
	"github.com/amoylab/oscbridge/internal/notifier"
	"github.com/amoylab/oscbridge/pkg/helper"
	"github.com/amoylab/oscbridge/pkg/version"
)

var (
	configPath  string
	pidFile     string
	forceStdout bool
	notifyAfter bool

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of " + cnst.AppName,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", cnst.AppName, version.Get())
		},
	}

	testCmd = &cobra.Command{
		Use:   "test",
		Short: "Test the configuration file",
		Long:  "Load and validate the configuration file without starting the bridge",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cfgPath, err := config.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration %s: %w", cfgPath, err)
			}
			if err := config.ValidateBridgeConfig(cfg); err != nil {
				return fmt.Errorf("configuration file %s test failed: %w", cfgPath, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration file %s test is successful\n", cfgPath)
			return nil
		},
	}

	reloadCmd = &cobra.Command{
		Use:   "reload",
		Short: "Ask the running bridge to reload its configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendReload(cmd.Context())
		},
	}

	mappingCmd = &cobra.Command{
		Use:   "mapping",
		Short: "Manage the address to command mapping",
	}

	mappingImportCmd = &cobra.Command{
		Use:   "import <file>",
		Short: "Import a TOML [mapping] file into the configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := config.NewStore(helper.GetCfgPath(configPath))
			if err != nil {
				return err
			}
			n, err := config.ImportMapping(store, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d mappings into %s\n", n, store.Path())
			if notifyAfter {
				return sendReload(cmd.Context())
			}
			return nil
		},
	}

	rootCmd = &cobra.Command{
		Use:           cnst.CommandName,
		Short:         "OSC to mailbox command bridge",
		Long:          "Forwards boolean OSC parameter triggers to the VR runtime's web console mailboxes",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "conf", "c", cnst.BridgeYaml, "path to configuration file, like /etc/oscbridge/oscbridge.yaml")
	rootCmd.PersistentFlags().StringVar(&pidFile, "pid", "", "path to PID file")
	rootCmd.PersistentFlags().BoolVar(&forceStdout, "stdout", false, "log to stdout instead of the configured output")
	mappingImportCmd.Flags().BoolVar(&notifyAfter, "reload", false, "ask the running bridge to reload after importing")

	mappingCmd.AddCommand(mappingImportCmd)
	rootCmd.AddCommand(versionCmd, testCmd, reloadCmd, mappingCmd)
}

// sendReload delivers a reload request through the configured notifier
func sendReload(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, _, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if pidFile != "" {
		cfg.Notifier.Signal.PID = pidFile
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	n, err := notifier.NewNotifier(ctx, zap.NewNop(), &cfg.Notifier, config.RoleSender)
	if err != nil {
		return fmt.Errorf("failed to create notifier: %w", err)
	}
	if err := n.NotifyReload(ctx); err != nil {
		return fmt.Errorf("failed to send reload request: %w", err)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
