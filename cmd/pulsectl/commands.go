package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/localpulse/pulsectl"
)

// GlobalFlags holds persistent flags shared by all commands.
type GlobalFlags struct {
	ConfigPath string
}

// StatusFlags holds flags for the status command.
type StatusFlags struct {
	JSON bool
}

func buildRoot() *cobra.Command {
	flags := &GlobalFlags{}
	statusFlags := &StatusFlags{}

	root := &cobra.Command{
		Use:   "pulsectl",
		Short: "Single-instance supervisor for the LocalPulse service",
		Long: "pulsectl manages the lifecycle of the LocalPulse analytics service:\n" +
			"it guarantees at most one instance is bound to the service port,\n" +
			"recovers from crashes and stale state, and exposes log inspection.",
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return errors.New("a command is required: start|stop|restart|status|logs")
		},
	}
	root.PersistentFlags().StringVarP(&flags.ConfigPath, "config", "c", "",
		"path to TOML config file (built-in LocalPulse defaults when omitted)")

	root.AddCommand(
		createStartCommand(flags),
		createStopCommand(flags),
		createRestartCommand(flags),
		createStatusCommand(flags, statusFlags),
		createLogsCommand(flags),
	)
	return root
}

func newSupervisor(flags *GlobalFlags) (*pulsectl.Supervisor, error) {
	cfg, err := pulsectl.LoadConfig(flags.ConfigPath)
	if err != nil {
		return nil, err
	}
	return pulsectl.New(cfg)
}

// signalContext is cancelled on SIGINT/SIGTERM so an operator interrupt
// unwinds cleanly.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func createStartCommand(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:          "start",
		Short:        "Start the service, stopping any prior instance first",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			sup, err := newSupervisor(flags)
			if err != nil {
				return err
			}
			defer func() { _ = sup.Close() }()
			ctx, cancel := signalContext()
			defer cancel()
			return sup.Start(ctx)
		},
	}
}

func createStopCommand(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:          "stop",
		Short:        "Stop the service (success even when already stopped)",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			sup, err := newSupervisor(flags)
			if err != nil {
				return err
			}
			defer func() { _ = sup.Close() }()
			ctx, cancel := signalContext()
			defer cancel()
			return sup.Stop(ctx)
		},
	}
}

func createRestartCommand(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:          "restart",
		Short:        "Stop then start the service",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			sup, err := newSupervisor(flags)
			if err != nil {
				return err
			}
			defer func() { _ = sup.Close() }()
			ctx, cancel := signalContext()
			defer cancel()
			return sup.Restart(ctx)
		},
	}
}

func createStatusCommand(flags *GlobalFlags, statusFlags *StatusFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "status",
		Short:        "Report the current run state (read-only)",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			sup, err := newSupervisor(flags)
			if err != nil {
				return err
			}
			defer func() { _ = sup.Close() }()
			ctx, cancel := signalContext()
			defer cancel()
			st, err := sup.Status(ctx)
			if err != nil {
				return err
			}
			if statusFlags.JSON {
				printJSON(st)
				return nil
			}
			printStatus(st)
			return nil
		},
	}
	cmd.Flags().BoolVar(&statusFlags.JSON, "json", false, "print status as JSON")
	return cmd
}

func createLogsCommand(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:          "logs",
		Short:        "Follow the service log until interrupted",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			sup, err := newSupervisor(flags)
			if err != nil {
				return err
			}
			defer func() { _ = sup.Close() }()
			ctx, cancel := signalContext()
			defer cancel()
			if err := sup.Logs(ctx, os.Stdout); err != nil {
				if errors.Is(err, pulsectl.ErrLogFileAbsent) {
					// user-visible but not fatal: the service simply has not logged yet
					_, _ = fmt.Fprintln(os.Stderr, err.Error(), "- start the service first")
					return nil
				}
				return err
			}
			return nil
		},
	}
}

func printStatus(st pulsectl.Status) {
	switch st.State {
	case pulsectl.StateRunning:
		fmt.Printf("running (pid %d)\n", st.PID)
		fmt.Printf("  endpoint: %s\n", st.Endpoint)
	default:
		fmt.Println("stopped")
	}
	fmt.Printf("  log: %s\n", st.LogPath)
	if st.LastEvent != "" {
		fmt.Printf("  last transition: %s at %s\n", st.LastEvent, st.LastEventAt.Format("2006-01-02 15:04:05"))
	}
}

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("error formatting output: %v\n", err)
		return
	}
	fmt.Println(string(b))
}
