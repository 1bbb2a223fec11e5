package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/PabloReinhardt/usb-luks-encryption-manager/internal/catalog"
	"github.com/PabloReinhardt/usb-luks-encryption-manager/internal/cmdrunner"
	"github.com/PabloReinhardt/usb-luks-encryption-manager/internal/config"
	"github.com/PabloReinhardt/usb-luks-encryption-manager/internal/flow"
	"github.com/PabloReinhardt/usb-luks-encryption-manager/internal/luks"
	"github.com/PabloReinhardt/usb-luks-encryption-manager/internal/preflight"
	"github.com/PabloReinhardt/usb-luks-encryption-manager/internal/spinner"
	"github.com/PabloReinhardt/usb-luks-encryption-manager/internal/terminal"
)

var version = "0.1.0"

var cfgFile string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "usbluks",
		Short: "Encrypt and open removable USB devices with LUKS2",
		Long: `usbluks discovers removable USB block devices and walks you through
encrypting one with cryptsetup (LUKS2) or opening an already encrypted one.

Run it with no arguments for the interactive session. Requires root.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runInteractive,
	}

	cobra.OnInitialize(func() {
		if err := config.Init(cfgFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	})

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/usbluks/config.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "log every tool invocation")
	rootCmd.PersistentFlags().String("backup-dir", "", "directory for LUKS header backups (default is $HOME/luks_backups)")

	viper.BindPFlag(config.KeyDebug, rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag(config.KeyBackupDir, rootCmd.PersistentFlags().Lookup("backup-dir"))

	rootCmd.AddCommand(
		newListCmd(),
		newCloseCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

func newLogger(cfg config.Config) zerolog.Logger {
	level := zerolog.InfoLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func runInteractive(cmd *cobra.Command, args []string) error {
	if err := preflight.RequireLinux(); err != nil {
		return err
	}
	if err := preflight.RequireRoot(); err != nil {
		return err
	}
	if err := preflight.RequireTools("lsblk", "parted", "cryptsetup"); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	run := cmdrunner.New(log)

	f := flow.New(flow.Deps{
		Catalog:   catalog.New(run, log),
		LUKS:      luks.NewManager(run, log),
		Prompter:  terminal.NewConsole(),
		Progress:  spinner.New(os.Stdout),
		Out:       os.Stdout,
		BackupDir: cfg.BackupDir,
	})
	return f.Run(cmd.Context())
}

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List removable USB devices eligible for encryption",
		Long:  "Lists removable, non-NVMe disks as reported by lsblk. Does not require root.",
		RunE:  runList,
	}

	cmd.Flags().Bool("json", false, "output in JSON format")

	return cmd
}

func runList(cmd *cobra.Command, args []string) error {
	if err := preflight.RequireLinux(); err != nil {
		return err
	}
	if err := preflight.RequireTools("lsblk"); err != nil {
		return err
	}

	jsonOut, err := cmd.Flags().GetBool("json")
	if err != nil {
		return fmt.Errorf("invalid json flag: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	run := cmdrunner.New(log)

	devices, err := catalog.New(run, log).ListCandidates(cmd.Context())
	if err != nil {
		return err
	}

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(devices)
	}

	if len(devices) == 0 {
		fmt.Println("No suitable USB devices found.")
		return nil
	}
	for _, d := range devices {
		line := fmt.Sprintf("%s  %s", d.Path, d.Label())
		if d.Mounted {
			line += "  (mounted)"
		}
		fmt.Println(line)
	}
	return nil
}

func newCloseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "close <mapper-name>",
		Short: "Close an open LUKS mapping",
		Args:  cobra.ExactArgs(1),
		RunE:  runClose,
	}
}

func runClose(cmd *cobra.Command, args []string) error {
	if err := preflight.RequireLinux(); err != nil {
		return err
	}
	if err := preflight.RequireRoot(); err != nil {
		return err
	}
	if err := preflight.RequireTools("cryptsetup"); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	manager := luks.NewManager(cmdrunner.New(log), log)

	name := args[0]
	if err := manager.Close(cmd.Context(), name); err != nil {
		return err
	}
	fmt.Printf("Closed %s\n", manager.MapperPath(name))
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("usbluks version %s\n", version)
			fmt.Printf("Platform: %s\n", preflight.Detect())
		},
	}
}
