package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/prowessninja/smsctl/internal/constants"
	"github.com/prowessninja/smsctl/internal/models"
)

// RenderTable writes users as a plain two-column grid for non-interactive
// output. Each cell is one user card.
func RenderTable(w io.Writer, users []models.User, loading bool) {
	if len(users) == 0 {
		if loading {
			fmt.Fprintln(w, LoadingMessage)
		} else {
			fmt.Fprintln(w, EmptyMessage)
		}
		return
	}

	tw := tablewriter.NewWriter(w)
	tw.SetAutoWrapText(false)
	tw.SetRowLine(true)
	tw.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT})

	for start := 0; start < len(users); start += constants.GridColumns {
		row := make([]string, constants.GridColumns)
		for col := 0; col < constants.GridColumns && start+col < len(users); col++ {
			row[col] = plainCard(users[start+col])
		}
		tw.Append(row)
	}
	tw.Render()
}

func plainCard(u models.User) string {
	lines := []string{fmt.Sprintf("%s  (#%s)", u.DisplayName(), u.ID)}
	var meta []string
	if u.Group != "" {
		meta = append(meta, u.Group)
	}
	if u.Status != "" {
		meta = append(meta, u.Status)
	}
	if len(meta) > 0 {
		lines = append(lines, strings.Join(meta, " / "))
	}
	if c := u.Contact(); c != "" {
		lines = append(lines, c)
	}
	return strings.Join(lines, "\n")
}
