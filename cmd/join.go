package cmd

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/huddlehq/huddle/internal/client"
	"github.com/huddlehq/huddle/internal/config"
	"github.com/huddlehq/huddle/internal/peer"
	"github.com/huddlehq/huddle/internal/protocol"
	"github.com/huddlehq/huddle/internal/session"
	"github.com/huddlehq/huddle/internal/ui"
)

var (
	flagServer   string
	flagID       string
	flagSTUN     string
	flagTURN     string
	flagTURNUser string
	flagTURNPass string
)

var joinCmd = &cobra.Command{
	Use:   "join <room-id>",
	Short: "Join a room as a participant",
	Long: `Join a room: connect to the relay, handshake with every other member
over WebRTC, and print room events. In the Talk room, lines read from
stdin are sent as chat messages.

Examples:
  huddle join 3
  huddle join 4 --server ws://relay.example.com/ws`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roomID, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("room must be a number: %q", args[0])
		}
		return joinRoom(roomID)
	},
}

func init() {
	joinCmd.Flags().StringVar(&flagServer, "server", "", "relay websocket URL")
	joinCmd.Flags().StringVar(&flagID, "id", "", "participant ID (generated if empty)")
	joinCmd.Flags().StringVar(&flagSTUN, "stun", "", "STUN server URL")
	joinCmd.Flags().StringVar(&flagTURN, "turn", "", "TURN server")
	joinCmd.Flags().StringVar(&flagTURNUser, "turn-user", "", "TURN username")
	joinCmd.Flags().StringVar(&flagTURNPass, "turn-pass", "", "TURN password")
	rootCmd.AddCommand(joinCmd)
}

func joinRoom(roomID int) error {
	room, ok := protocol.RoomByID(roomID)
	if !ok {
		return fmt.Errorf("unknown room %d", roomID)
	}

	cfg, err := config.Load(config.Options{
		ServerURL:  flagServer,
		STUNServer: flagSTUN,
		TURNServer: flagTURN,
		TURNUser:   flagTURNUser,
		TURNPass:   flagTURNPass,
	})
	if err != nil {
		return err
	}

	self := flagID
	if self == "" {
		self = ulid.Make().String()
	}

	cl := client.New(cfg.ServerURL)
	if err := cl.Connect(); err != nil {
		return err
	}
	defer cl.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	orch := peer.New(peer.Options{
		Self:    self,
		Send:    cl.Send,
		Factory: peer.NewPionFactory(cfg, self),
		// Device capture is provided by embedders; the CLI publishes no
		// tracks and links carry only the control channel.
		Media:    peer.NullSource{},
		Recorder: session.Log{Logger: slog.Default()},
		OnMediaError: func(err error) {
			ui.PrintErrorf("media unavailable: %v (press enter to retry)", err)
		},
	})
	go orch.Run()
	defer orch.Close()
	orch.Start(ctx)

	cl.Send(&protocol.Message{
		Type:          protocol.TypeJoin,
		ParticipantID: self,
		RoomID:        roomID,
	})
	ui.PrintSuccessf("joined %s as %s", room.Name, self)

	go readChat(cl, room, self, func() { orch.Retry(ctx) })

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)

	for {
		select {
		case msg, ok := <-cl.Incoming():
			if !ok {
				return fmt.Errorf("disconnected from relay")
			}
			orch.Dispatch(msg)
			printEvent(msg)

		case <-sig:
			cl.Send(&protocol.Message{Type: protocol.TypeLeave})
			ui.PrintInfo("left the room")
			return nil
		}
	}
}

// readChat forwards stdin lines as chat messages while in the Talk room.
// An empty line retries media acquisition, matching the hint printed when
// it fails; with media already ready the retry is a no-op.
func readChat(cl *client.Client, room protocol.RoomInfo, self string, retry func()) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		text := scanner.Text()
		if text == "" {
			retry()
			continue
		}
		if room.ID != protocol.TalkRoomID {
			ui.PrintInfo("chat is only available in the Talk room")
			continue
		}
		cl.Send(&protocol.Message{
			Type:      protocol.TypeChat,
			MessageID: ulid.Make().String(),
			Text:      text,
		})
		// The relay excludes the sender from the broadcast; echo locally.
		ui.PrintEvent(self, text)
	}
}

// printEvent renders room activity. Signaling messages are already
// consumed by the orchestrator and stay silent here.
func printEvent(msg *protocol.Message) {
	switch msg.Type {
	case protocol.TypeRoomUsers:
		ui.PrintInfof("%d other member(s) in the room", len(msg.Users))
	case protocol.TypeUserJoined:
		ui.PrintEvent(msg.ParticipantID, "joined")
	case protocol.TypeUserLeft:
		ui.PrintEvent(msg.ParticipantID, "left")
	case protocol.TypeChat:
		ui.PrintEvent(msg.ParticipantID, msg.Text)
	case protocol.TypeDrawStroke:
		ui.PrintEvent(msg.ParticipantID, fmt.Sprintf("drew a stroke (%d points)", len(msg.Points)))
	case protocol.TypeClearDrawing:
		ui.PrintEvent(msg.ParticipantID, "cleared the board")
	case protocol.TypeDrawingHistory:
		ui.PrintInfof("replayed %d stroke(s)", len(msg.Strokes))
	}
}
