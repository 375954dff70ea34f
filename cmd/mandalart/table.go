package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/pbaille/mandalart/internal/domain"
	"github.com/pbaille/mandalart/internal/mandalart"
)

var (
	rootCellStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("232")).
			Background(lipgloss.Color("221")).
			Bold(true).
			Align(lipgloss.Center)

	centerCellStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)

	mirrorCellStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("111")).
			Align(lipgloss.Center)

	cellStyle = lipgloss.NewStyle().
			Width(12).
			Align(lipgloss.Center)

	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

func tableCmd() *cobra.Command {
	var rootID int64

	cmd := &cobra.Command{
		Use:   "table",
		Short: "Render the mandalart chart in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			epics, err := getClient().Epics.List(cmd.Context())
			if err != nil {
				return err
			}

			roots := mandalart.Roots(epics)
			if len(roots) == 0 {
				fmt.Println("No epics yet. Use 'mandalart epic add' to create one.")
				return nil
			}
			root := &roots[0]
			if cmd.Flags().Changed("root") {
				found, ok := mandalart.Find(epics, rootID)
				if !ok {
					return fmt.Errorf("epic %d not found", rootID)
				}
				root = found
			}

			grid := mandalart.Build(*root)
			titles := gridTitles(grid)
			return render(titles, func(w io.Writer) {
				renderGrid(w, grid, titles)
			})
		},
	}

	cmd.Flags().Int64VarP(&rootID, "root", "r", 0, "epic to put at the center")
	return cmd
}

// gridTitles is the chart as rows of epic titles, empty where nothing is placed
func gridTitles(grid *mandalart.Grid) [][]string {
	rows := make([][]string, domain.GridSize)
	for r := range rows {
		rows[r] = make([]string, domain.GridSize)
		for c := range rows[r] {
			if cell := grid.At(r, c); !cell.Empty() {
				rows[r][c] = cell.Epic.Title
			}
		}
	}
	return rows
}

func renderGrid(w io.Writer, grid *mandalart.Grid, titles [][]string) {
	rows := make([][]string, len(titles))
	for r := range titles {
		rows[r] = make([]string, len(titles[r]))
		for c, title := range titles[r] {
			rows[r][c] = truncate(title, 12)
		}
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		BorderRow(true).
		StyleFunc(func(row, col int) lipgloss.Style {
			cell := grid.At(row, col)
			style := cellStyle
			switch {
			case row == 4 && col == 4:
				style = style.Inherit(rootCellStyle)
			case cell.Mirror:
				style = style.Inherit(mirrorCellStyle)
			case row%3 == 1 && col%3 == 1:
				style = style.Inherit(centerCellStyle)
			}
			return style
		}).
		Rows(rows...)

	fmt.Fprintln(w, t.String())

	if len(grid.Overflow) > 0 {
		fmt.Fprintln(w, "\nNot on the chart:")
		for _, e := range grid.Overflow {
			fmt.Fprintf(w, "  %d  %s\n", e.ID, truncate(e.Title, 60))
		}
	}
}
