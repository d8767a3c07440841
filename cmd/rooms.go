package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/huddlehq/huddle/internal/config"
	"github.com/huddlehq/huddle/internal/protocol"
	"github.com/huddlehq/huddle/internal/ui"
)

var flagRoomsServer string

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "Show current room occupancy",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(config.Options{ServerURL: flagRoomsServer})
		if err != nil {
			return err
		}
		return showRooms(cfg)
	},
}

func init() {
	roomsCmd.Flags().StringVar(&flagRoomsServer, "server", "", "relay websocket URL")
	rootCmd.AddCommand(roomsCmd)
}

func showRooms(cfg *config.Config) error {
	httpClient := &http.Client{Timeout: 5 * time.Second}
	resp, err := httpClient.Get(cfg.HealthURL())
	if err != nil {
		return fmt.Errorf("relay unreachable: %w", err)
	}
	defer resp.Body.Close()

	var health struct {
		Status string      `json:"status"`
		Rooms  map[int]int `json:"rooms"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("bad health response: %w", err)
	}

	rows := make([]ui.RoomRow, 0, len(protocol.Rooms))
	for _, info := range protocol.Rooms {
		rows = append(rows, ui.RoomRow{
			ID:        info.ID,
			Name:      info.Name,
			Media:     string(info.Media),
			Occupants: health.Rooms[info.ID],
		})
	}
	ui.RenderRoomTable(rows)
	return nil
}
