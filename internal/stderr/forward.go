// Package stderr captures output that C audio libraries (ALSA, PulseAudio)
// write directly to file descriptor 2, bypassing Go's os.Stderr, so it
// cannot corrupt the TUI. Captured lines are forwarded to the log.
package stderr

import (
	"bufio"
	"io"
	"strings"

	zlog "github.com/rs/zerolog/log"
)

// forward reads r line by line and passes each non-blank line to emit.
// It returns when r is exhausted or fails.
func forward(r io.Reader, emit func(string)) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			emit(line)
		}
	}
}

func logLine(line string) {
	zlog.Warn().Str("source", "stderr").Msg(line)
}
