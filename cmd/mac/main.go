// Command mac runs the Layer-2 MAC controller described in SPEC_FULL §6.5:
// a cobra-based CLI whose run, stop and reconfigure subcommands drive the
// Start/Stop/ConfigRequest signals, plus the role/config-path/numerology/
// MTU/pidfile flags the controller needs to come up.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/rangecore/mac5g/internal/clog"
	"github.com/rangecore/mac5g/internal/config"
	"github.com/rangecore/mac5g/internal/mac"
	"github.com/rangecore/mac5g/internal/tun"
	"github.com/spf13/cobra"
)

var (
	flagRole       string
	flagConfigPath string
	flagNumerology uint8
	flagMTU        int
	flagPidfile    string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mac",
		Short: "Run the 5G-Range-style Layer-2 MAC controller",
	}
	root.PersistentFlags().StringVar(&flagRole, "role", "bs", "controller role: bs or ue")
	root.PersistentFlags().StringVar(&flagConfigPath, "config", "mac.db", "persisted configuration store path")
	root.PersistentFlags().Uint8Var(&flagNumerology, "numerology", 0, "numerology id [0-5]")
	root.PersistentFlags().IntVar(&flagMTU, "mtu", 1500, "tun device MTU")
	root.PersistentFlags().StringVar(&flagPidfile, "pidfile", "mac.pid", "path the running controller's pid is written to, for stop/reconfigure to find")

	root.AddCommand(newRunCmd())
	root.AddCommand(newConfigRequestCmd())
	root.AddCommand(newStopCmd())
	return root
}

// writePidfile records the running process's pid so a separate invocation of
// this binary (stop/reconfigure) can find it and signal it.
func writePidfile(path string) (cleanup func(), err error) {
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return nil, fmt.Errorf("writing pidfile: %w", err)
	}
	return func() { os.Remove(path) }, nil
}

// readPidfile resolves a running controller's pid from path.
func readPidfile(path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading pidfile %s: %w", path, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, fmt.Errorf("pidfile %s contents: %w", path, err)
	}
	return pid, nil
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the MAC controller and run until stopped",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if flagRole == "ue" {
				cfg.Role = config.RoleUE
			}
			cfg.Numerology = flagNumerology
			cfg.MTU = flagMTU
			if err := cfg.Valid(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			store, err := config.Open(flagConfigPath)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.SaveDefault(cfg); err != nil {
				return err
			}

			cleanup, err := writePidfile(flagPidfile)
			if err != nil {
				return err
			}
			defer cleanup()

			log := clog.NewLogger(fmt.Sprintf("[mac:%s] ", cfg.Role))
			controller := mac.New(cfg, store, log)
			controller.SetTunDevice(tun.NewPipe())
			controller.RequestStart()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			watchSignals(ctx, cancel, controller, log)

			return controller.Run(ctx)
		},
	}
}

// watchSignals starts the goroutine that turns POSIX signals into Controller
// requests: SIGHUP requests a Reconfig pass, and a first SIGINT/
// SIGTERM asks the state machine to drain through Stop gracefully -- a
// second one force-cancels ctx so a wedged drain can't hang the process.
func watchSignals(ctx context.Context, cancel context.CancelFunc, controller *mac.Controller, log clog.Clog) {
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		stopRequested := false
		for {
			select {
			case <-ctx.Done():
				signal.Stop(sigc)
				return
			case sig := <-sigc:
				switch sig {
				case syscall.SIGHUP:
					log.Debug("mac: SIGHUP received, requesting reconfiguration")
					controller.RequestConfigChange()
				default:
					if stopRequested {
						log.Warn("mac: second shutdown signal received, forcing exit")
						cancel()
						continue
					}
					stopRequested = true
					log.Debug("mac: shutdown signal received, draining")
					controller.RequestStop()
				}
			}
		}
	}()
}

func newConfigRequestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconfigure",
		Short: "Signal a running controller to run a Reconfig pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := readPidfile(flagPidfile)
			if err != nil {
				return err
			}
			proc, err := os.FindProcess(pid)
			if err != nil {
				return fmt.Errorf("reconfigure: %w", err)
			}
			if err := proc.Signal(syscall.SIGHUP); err != nil {
				return fmt.Errorf("reconfigure: signaling pid %d: %w", pid, err)
			}
			return nil
		},
	}
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Signal a running controller to drain and shut down",
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := readPidfile(flagPidfile)
			if err != nil {
				return err
			}
			proc, err := os.FindProcess(pid)
			if err != nil {
				return fmt.Errorf("stop: %w", err)
			}
			if err := proc.Signal(syscall.SIGTERM); err != nil {
				return fmt.Errorf("stop: signaling pid %d: %w", pid, err)
			}
			return nil
		},
	}
}
