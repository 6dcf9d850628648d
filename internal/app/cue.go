package app

import (
	"fmt"
	"os"

	"github.com/dnguyen/buswatch/internal/notify"
)

// TerminalBell returns a notification cue that rings the terminal bell:
// once for a normal notification, twice for an urgent one. A muted
// configuration yields a no-op cue.
func TerminalBell(mute bool) notify.Cue {
	if mute {
		return func(bool) {}
	}
	return func(urgent bool) {
		fmt.Fprint(os.Stderr, "\a")
		if urgent {
			fmt.Fprint(os.Stderr, "\a")
		}
	}
}
