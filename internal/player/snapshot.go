package player

import (
	"strconv"
	"strings"

	"github.com/fhs/gompd/v2/mpd"
)

// TrackSnapshot is an immutable view of the current track. The watcher swaps
// the whole value under its data lock; readers never see a partial update.
type TrackSnapshot struct {
	TrackNumber   string
	Title         string
	Artist        string
	Year          string
	FormattedText string
}

const (
	noSongText  = "No song playing"
	waitingText = "Waiting for MPD..."
)

// waitingSnapshot is the value exposed before the first successful fetch.
func waitingSnapshot() TrackSnapshot {
	return TrackSnapshot{Title: waitingText, FormattedText: waitingText}
}

// snapshotFromAttrs builds a snapshot from an MPD currentsong response. An
// empty response means nothing is playing.
func snapshotFromAttrs(attrs mpd.Attrs) TrackSnapshot {
	if len(attrs) == 0 {
		return TrackSnapshot{Title: noSongText, FormattedText: noSongText}
	}

	s := TrackSnapshot{
		Title:  attrs["Title"],
		Artist: attrs["Artist"],
	}

	// queue position, 1-based, like the track readout on a CD player
	if pos, err := strconv.Atoi(attrs["Pos"]); err == nil {
		s.TrackNumber = strconv.Itoa(pos + 1)
	}

	if date := attrs["Date"]; len(date) >= 4 {
		s.Year = date[:4]
	}

	s.FormattedText = formatTrackText(s.TrackNumber, s.Title, s.Artist, s.Year)
	return s
}

// formatTrackText renders the display line: "NN. Title - Artist (YYYY)" with
// every segment optional except the title, which falls back to a placeholder.
func formatTrackText(trackNumber, title, artist, year string) string {
	var b strings.Builder

	if trackNumber != "" {
		if len(trackNumber) < 2 {
			b.WriteString("0")
		}
		b.WriteString(trackNumber)
		b.WriteString(". ")
	}

	if title != "" {
		b.WriteString(title)
	} else {
		b.WriteString("Unknown Title")
	}

	if artist != "" {
		b.WriteString(" - ")
		b.WriteString(artist)
	}

	if year != "" {
		b.WriteString(" (")
		b.WriteString(year)
		b.WriteString(")")
	}

	return b.String()
}
