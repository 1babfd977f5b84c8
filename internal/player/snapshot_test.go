package player

import (
	"testing"

	"github.com/fhs/gompd/v2/mpd"
)

func TestFormatTrackText(t *testing.T) {
	cases := []struct {
		name                       string
		track, title, artist, year string
		want                       string
	}{
		{"full", "3", "Song", "Artist", "1999", "03. Song - Artist (1999)"},
		{"title only", "", "X", "", "", "X"},
		{"no title", "", "", "", "", "Unknown Title"},
		{"no artist", "12", "Song", "", "2004", "12. Song (2004)"},
		{"no year", "1", "Song", "Artist", "", "01. Song - Artist"},
		{"three digit track stays", "101", "Song", "", "", "101. Song"},
	}
	for _, tc := range cases {
		if got := formatTrackText(tc.track, tc.title, tc.artist, tc.year); got != tc.want {
			t.Fatalf("%s: got %q want %q", tc.name, got, tc.want)
		}
	}
}

func TestSnapshotFromAttrs(t *testing.T) {
	snap := snapshotFromAttrs(mpd.Attrs{
		"Pos":    "2",
		"Title":  "Song",
		"Artist": "Artist",
		"Date":   "1999-05-21",
	})
	if snap.FormattedText != "03. Song - Artist (1999)" {
		t.Fatalf("formatted=%q", snap.FormattedText)
	}
	if snap.TrackNumber != "3" || snap.Year != "1999" {
		t.Fatalf("track=%q year=%q", snap.TrackNumber, snap.Year)
	}
}

func TestSnapshotFromAttrsShortDateDropped(t *testing.T) {
	snap := snapshotFromAttrs(mpd.Attrs{"Title": "Song", "Date": "99"})
	if snap.Year != "" {
		t.Fatalf("short date should yield empty year, got %q", snap.Year)
	}
	if snap.FormattedText != "Song" {
		t.Fatalf("formatted=%q want=Song", snap.FormattedText)
	}
}

func TestSnapshotNoSongSentinel(t *testing.T) {
	snap := snapshotFromAttrs(mpd.Attrs{})
	if snap.FormattedText != "No song playing" || snap.Title != "No song playing" {
		t.Fatalf("sentinel snapshot=%+v", snap)
	}
	if snap.Artist != "" || snap.Year != "" || snap.TrackNumber != "" {
		t.Fatalf("sentinel fields should be empty: %+v", snap)
	}
}

func TestWaitingSnapshotBeforeFirstFetch(t *testing.T) {
	w := New(Config{}, nil)
	if got := w.FormattedText(); got != "Waiting for MPD..." {
		t.Fatalf("initial text=%q", got)
	}
}
