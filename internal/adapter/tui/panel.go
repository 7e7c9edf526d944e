package tui

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"

	"github.com/park285/cheese-solo-chess/internal/archive"
	"github.com/park285/cheese-solo-chess/internal/msgcat"
	"github.com/park285/cheese-solo-chess/internal/session"
)

// PanelLines builds the status panel text for snap. notice is a one-off
// message from the last UI command and may be empty.
func PanelLines(cat *msgcat.Catalog, snap session.Snapshot, opponent, notice string) []string {
	who := map[string]any{"Opponent": opponent}
	lines := []string{cat.Text("panel.title", who), ""}

	switch {
	case snap.Terminal():
		lines = append(lines, cat.Text(snap.Result.Key(), who))
	case snap.EngineErr != nil:
		lines = append(lines, cat.Text("status.engine_error", map[string]any{
			"Opponent": opponent,
			"Err":      snap.EngineErr.Error(),
		}))
	case snap.Phase == session.OpponentThinking:
		lines = append(lines, cat.Text("status.thinking", who))
	default:
		lines = append(lines, cat.Text("status.your_move", map[string]any{"Color": colorLabel(snap.Settings.HumanColor)}))
	}
	if !snap.Terminal() && snap.LastTag == session.TagCheck {
		lines = append(lines, cat.Text("status.check", nil))
	}
	if snap.Holding {
		lines = append(lines, cat.Text("status.selected", map[string]any{"Square": snap.Selected.String()}))
	}
	if notice != "" {
		lines = append(lines, notice)
	}

	st := snap.Settings
	lines = append(lines, "",
		cat.Text("panel.strength", map[string]any{"Strength": st.Strength}),
		cat.Text("panel.think_time", map[string]any{"ThinkTime": st.ThinkTime.String()}),
		cat.Text("panel.color", map[string]any{"Color": colorLabel(st.HumanColor)}),
		cat.Text("panel.pieces", map[string]any{"PieceSet": st.PieceSet}),
	)
	if snap.Opening.Code != "" {
		lines = append(lines, cat.Text("panel.opening", map[string]any{
			"Code":  snap.Opening.Code,
			"Title": snap.Opening.Title,
		}))
	}
	lines = append(lines, cat.Text("panel.material", map[string]any{
		"White": snap.Material.White,
		"Black": snap.Material.Black,
	}))
	if !snap.Captured.Empty() {
		lines = append(lines,
			"  "+capturedGlyphs(snap.Captured.By(nchess.White), nchess.Black),
			"  "+capturedGlyphs(snap.Captured.By(nchess.Black), nchess.White),
		)
	}

	if moves := historyLines(snap.History); len(moves) > 0 {
		lines = append(lines, "", cat.Text("panel.history", nil))
		lines = append(lines, moves...)
	}

	lines = append(lines, "")
	lines = append(lines, strings.Split(strings.TrimRight(cat.Text("help", nil), "\n"), "\n")...)
	return lines
}

// RecentText lists archived games for the recent-games dialog.
func RecentText(cat *msgcat.Catalog, records []archive.Record) string {
	if len(records) == 0 {
		return cat.Text("status.archive_empty", nil)
	}
	var b strings.Builder
	b.WriteString(cat.Text("panel.recent", nil))
	b.WriteString("\n\n")
	for _, rec := range records {
		fmt.Fprintf(&b, "%s  %s  %d  %s (%d moves)\n",
			rec.EndedAt.Local().Format("2006-01-02 15:04"),
			rec.HumanColor,
			rec.Strength,
			rec.Text,
			len(rec.MovesUCI),
		)
	}
	return strings.TrimRight(b.String(), "\n")
}

func historyLines(entries []session.HistoryEntry) []string {
	var lines []string
	for _, e := range entries {
		if e.Color == nchess.White {
			lines = append(lines, fmt.Sprintf("%d. %s", e.Number, e.SAN))
			continue
		}
		prefix := fmt.Sprintf("%d. ", e.Number)
		if n := len(lines); n > 0 && strings.HasPrefix(lines[n-1], prefix) && !strings.Contains(lines[n-1], "...") {
			lines[n-1] += " " + e.SAN
			continue
		}
		lines = append(lines, fmt.Sprintf("%d... %s", e.Number, e.SAN))
	}
	return lines
}

func capturedGlyphs(counts map[nchess.PieceType]int, owner nchess.Color) string {
	var b strings.Builder
	for _, pt := range session.CountedPieces {
		for i := 0; i < counts[pt]; i++ {
			b.WriteRune(pieceGlyph(nchess.NewPiece(pt, owner), false))
		}
	}
	return b.String()
}

func colorLabel(c nchess.Color) string {
	if c == nchess.Black {
		return "Black"
	}
	return "White"
}
