package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text, color string
}{
	{"   __               _", "#818cf8"},
	{"  / _|___ _ __  ___(_)_ __ ___", "#a78bfa"},
	{" | |_/ __| '_ \\/ __| | '_ ` _ \\", "#c084fc"},
	{" |  _\\__ \\ | | \\__ \\ | | | | | |", "#e879f9"},
	{" |_| |___/_| |_|___/_|_| |_| |_|", "#f472b6"},
}

// PrintBanner writes the fsmsim ASCII banner, coloured when the profile allows it.
func PrintBanner(w io.Writer, p termenv.Profile) {
	fmt.Fprintln(w)
	for _, l := range bannerLines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
