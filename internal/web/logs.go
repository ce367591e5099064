package web

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// LogBuffer keeps the most recent log lines in memory so they can be read
// back over HTTP. It is an io.Writer meant to sit behind log.SetOutput.
type LogBuffer struct {
	mu      sync.Mutex
	max     int
	lines   []string
	partial strings.Builder
	dropped uint64
}

func NewLogBuffer(maxLines int) *LogBuffer {
	if maxLines <= 0 {
		maxLines = 1000
	}
	return &LogBuffer{max: maxLines}
}

// Write splits p into lines; a trailing fragment is held until its newline
// arrives.
func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rest := string(p)
	for {
		line, tail, found := strings.Cut(rest, "\n")
		if !found {
			b.partial.WriteString(line)
			break
		}
		b.partial.WriteString(line)
		b.appendLocked(b.partial.String())
		b.partial.Reset()
		rest = tail
	}
	return len(p), nil
}

func (b *LogBuffer) appendLocked(line string) {
	line = strings.TrimRight(line, "\r")
	if line == "" {
		return
	}
	b.lines = append(b.lines, line)
	if over := len(b.lines) - b.max; over > 0 {
		b.lines = b.lines[over:]
		b.dropped += uint64(over)
	}
}

// Tail returns up to n of the newest lines and the number of lines evicted so
// far.
func (b *LogBuffer) Tail(n int) ([]string, uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n <= 0 || n > len(b.lines) {
		n = len(b.lines)
	}
	return append([]string(nil), b.lines[len(b.lines)-n:]...), b.dropped
}

type LogsResponse struct {
	NowUTC  string   `json:"now_utc"`
	Dropped uint64   `json:"dropped"`
	Lines   []string `json:"lines"`
}

// Handler serves GET /api/logs?tail=N[&format=text].
func (b *LogBuffer) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !allow(w, r, http.MethodGet) {
			return
		}
		tail := 200
		if s := strings.TrimSpace(r.URL.Query().Get("tail")); s != "" {
			v, err := strconv.Atoi(s)
			if err != nil || v < 1 || v > 5000 {
				http.Error(w, "tail must be an integer in [1,5000]", http.StatusBadRequest)
				return
			}
			tail = v
		}
		lines, dropped := b.Tail(tail)

		if strings.EqualFold(r.URL.Query().Get("format"), "text") {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Header().Set("Cache-Control", "no-store")
			if dropped > 0 {
				_, _ = fmt.Fprintf(w, "[dropped=%d]\n", dropped)
			}
			_, _ = fmt.Fprint(w, strings.Join(lines, "\n"))
			if len(lines) > 0 {
				_, _ = fmt.Fprint(w, "\n")
			}
			return
		}
		if lines == nil {
			lines = []string{}
		}
		writeJSON(w, LogsResponse{
			NowUTC:  time.Now().UTC().Format(time.RFC3339Nano),
			Dropped: dropped,
			Lines:   lines,
		})
	})
}
