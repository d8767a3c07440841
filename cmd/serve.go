package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/huddlehq/huddle/internal/config"
	"github.com/huddlehq/huddle/internal/server"
	"github.com/huddlehq/huddle/internal/session"
	"github.com/huddlehq/huddle/internal/signaling"
)

var flagListenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay server",
	Long: `Run the relay: the websocket endpoint carrying room membership,
chat, drawing, and WebRTC signaling, plus the /health occupancy probe.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(config.Options{ListenAddr: flagListenAddr})
		if err != nil {
			return err
		}

		hub := signaling.NewHub(session.Log{Logger: slog.Default()})
		go hub.Run()
		defer hub.Close()

		srv := server.New(cfg.ListenAddr, hub)
		slog.Info("relay listening", "addr", cfg.ListenAddr)
		return srv.ListenAndServe()
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagListenAddr, "addr", "", "listen address (default :8080)")
	rootCmd.AddCommand(serveCmd)
}
