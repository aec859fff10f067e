// Package timefmt renders history timestamps for display.
package timefmt

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Mode selects how an epoch value is rendered.
type Mode string

const (
	Compact  Mode = "compact"
	Full     Mode = "full"
	Epoch    Mode = "epoch"
	Relative Mode = "relative"
)

// Unknown is returned for any timestamp that cannot be rendered.
const Unknown = "unknown"

const (
	compactLayout = "01-02 15:04"
	fullLayout    = "2006-01-02 15:04:05"
)

// now is swapped in tests so relative output is deterministic.
var now = time.Now

// ParseMode maps a user supplied name to a Mode. An empty name means Compact.
func ParseMode(name string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(name))) {
	case "", Compact:
		return Compact, nil
	case Full:
		return Full, nil
	case Epoch:
		return Epoch, nil
	case Relative:
		return Relative, nil
	default:
		return "", fmt.Errorf("unknown time format %q (want compact, full, epoch or relative)", name)
	}
}

// Format renders raw epoch seconds in the given mode. It never fails: input
// that is not an unsigned integer, or that overflows, yields Unknown.
func Format(epoch string, mode Mode) string {
	secs, err := strconv.ParseUint(strings.TrimSpace(epoch), 10, 63)
	if err != nil {
		return Unknown
	}
	if mode == Epoch {
		return strconv.FormatUint(secs, 10)
	}
	return FormatTime(time.Unix(int64(secs), 0), mode)
}

// FormatTime renders a time value in the given mode.
func FormatTime(t time.Time, mode Mode) string {
	if t.IsZero() {
		return Unknown
	}
	switch mode {
	case Full:
		return t.Local().Format(fullLayout)
	case Epoch:
		return strconv.FormatInt(t.Unix(), 10)
	case Relative:
		return humanize.RelTime(t, now(), "ago", "from now")
	default:
		return t.Local().Format(compactLayout)
	}
}
