package ui

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// RoomRow is one row of the occupancy table.
type RoomRow struct {
	ID        int
	Name      string
	Media     string
	Occupants int
}

// RenderRoomTable prints the room occupancy table.
func RenderRoomTable(rows []RoomRow) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"#", "Room", "Media", "Occupants"})
	for _, r := range rows {
		t.AppendRow(table.Row{r.ID, r.Name, r.Media, r.Occupants})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
	})
	t.Render()
}
