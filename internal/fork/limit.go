package fork

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

// limitWriter keeps up to limit bytes and silently discards the rest.
type limitWriter struct {
	buf   bytes.Buffer
	limit int
}

func (w *limitWriter) Write(p []byte) (int, error) {
	remaining := w.limit - w.buf.Len()
	if remaining <= 0 {
		return len(p), nil
	}
	if len(p) > remaining {
		w.buf.Write(p[:remaining])
		return len(p), nil
	}
	return w.buf.Write(p)
}

func (w *limitWriter) String() string {
	return w.buf.String()
}

// tailToRect keeps the last maxHeight lines of s, each cut to at most
// maxWidth bytes on a rune boundary.
func tailToRect(s string, maxHeight int, maxWidth int) string {
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	cut := len(lines) > maxHeight
	if cut {
		lines = lines[len(lines)-maxHeight:]
	}
	var b strings.Builder
	if cut {
		b.WriteString("[...]\n")
	}
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		if len(line) > maxWidth {
			b.WriteString(cutRunes(line, maxWidth))
			b.WriteString("[...]")
		} else {
			b.WriteString(line)
		}
	}
	return b.String()
}

// cutRunes returns the longest prefix of s that fits in n bytes without
// splitting a UTF-8 sequence.
func cutRunes(s string, n int) string {
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
