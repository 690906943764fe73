package cli

import (
	"fmt"
	"strings"

	"github.com/snore/snore-cli/internal/models"
)

// pulseScale is the pulse that fills the whole bar
const pulseScale = 150.0

func renderBar(score float64, width int) string {
	filled := int(score * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// formatRow renders a stored row as its CSV line followed by a pulse bar
func formatRow(row models.StoredRow) string {
	line := row.Row.CSVLine()
	if !row.Row.Pulse.Set || row.Row.Pulse.Value < 0 {
		return fmt.Sprintf("%-24s %s", line, renderBar(0, 20))
	}
	return fmt.Sprintf("%-24s %s", line, renderBar(row.Row.Pulse.Value/pulseScale, 20))
}
