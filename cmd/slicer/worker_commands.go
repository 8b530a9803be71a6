package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"slicer/internal/prefs"
	"slicer/internal/worker"
)

func newWorkerCommand(ctx *commandContext) *cobra.Command {
	workerCmd := &cobra.Command{
		Use:   "worker",
		Short: "Rendering worker connection utilities",
	}

	workerCmd.AddCommand(newWorkerStatusCommand(ctx))
	workerCmd.AddCommand(newWorkerForgetCommand(ctx))

	return workerCmd
}

func newWorkerStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Probe the rendering worker handshake",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(func(s *services) error {
				handshakeErr := s.conn.Connect(cmd.Context())

				port := ""
				if raw, err := s.prefs.GetString(prefs.KeyWorkerLastPort); err == nil {
					port = raw
				}
				settingsPort := 0
				if settings, err := worker.ReadSettings(s.prefs); err == nil {
					settingsPort = settings.WebsocketServerPort
				}

				if jsonFlag {
					payload := map[string]any{
						"ready":         s.conn.IsReady(),
						"busy":          s.conn.Busy(),
						"last_port":     port,
						"settings_port": settingsPort,
						"last_folder":   s.conn.LastFolder(),
					}
					if handshakeErr != nil {
						payload["error"] = handshakeErr.Error()
					}
					return writeJSON(cmd.OutOrStdout(), payload)
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				if s.conn.IsReady() {
					fmt.Fprintln(out, renderStatusLine("Worker", statusOK, "connected", colorize))
				} else {
					message := "unavailable"
					if handshakeErr != nil {
						message = handshakeErr.Error()
					}
					fmt.Fprintln(out, renderStatusLine("Worker", statusError, message, colorize))
				}
				fmt.Fprintln(out, renderStatusLine("Busy", statusInfo, yesNo(s.conn.Busy()), colorize))
				if port != "" {
					fmt.Fprintln(out, renderStatusLine("Remembered port", statusInfo, port, colorize))
				}
				if settingsPort > 0 {
					fmt.Fprintln(out, renderStatusLine("Settings port", statusInfo, fmt.Sprintf("%d", settingsPort), colorize))
				}
				if folder := s.conn.LastFolder(); folder != "" {
					fmt.Fprintln(out, renderStatusLine("Last folder", statusInfo, folder, colorize))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit JSON output")
	return cmd
}

func newWorkerForgetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "forget",
		Short: "Drop the remembered worker port and enable flag",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(func(s *services) error {
				for _, key := range []string{prefs.KeyWorkerLastPort, prefs.KeyWorkerEnabled} {
					if err := s.prefs.Delete(key); err != nil {
						return err
					}
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Worker connection state cleared")
				return nil
			})
		},
	}
}
