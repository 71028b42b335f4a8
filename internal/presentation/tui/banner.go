package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct{ text, color string }{
	{"                _               ", "#34d399"},
	{"   __ _ _ __ __| |__   ___  _ __ ", "#10b981"},
	{"  / _` | '__/ _` '_ \\ / _ \\| '__|", "#059669"},
	{" | (_| | | | (_| |_) | (_) | |   ", "#047857"},
	{"  \\__,_|_|  \\__,_.__/ \\___/|_|   ", "#065f46"},
}

// PrintBanner writes the arbor banner to w using the terminal's color profile.
func PrintBanner(w io.Writer) {
	out := termenv.NewOutput(w)
	fmt.Fprintln(w)
	for _, l := range bannerLines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w)
}
