package util

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"
)

// ──────────────────────────────────────────────────────────────────────────────
// Global stats singleton
// ──────────────────────────────────────────────────────────────────────────────

// Stats is the process-wide link traffic counter.
var Stats = &stats{}

type stats struct {
	Sessions    atomic.Int64 // cumulative editor sessions since process start
	MessagesIn  atomic.Int64 // protocol messages received from the editor
	MessagesOut atomic.Int64 // protocol messages sent to the editor
	Errors      atomic.Int64 // messages that failed to decode or execute
	BytesSent   atomic.Int64 // cumulative bytes written to the websocket
	BytesRecv   atomic.Int64 // cumulative bytes read from the websocket
}

func (s *stats) AddSession()   { s.Sessions.Add(1) }
func (s *stats) AddError()     { s.Errors.Add(1) }
func (s *stats) AddSent(n int) { s.MessagesOut.Add(1); s.BytesSent.Add(int64(n)) }
func (s *stats) AddRecv(n int) { s.MessagesIn.Add(1); s.BytesRecv.Add(int64(n)) }

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Sessions, MessagesIn, MessagesOut, Errors, BytesSent, BytesRecv int64
}

func (s *stats) Snapshot() Snapshot {
	return Snapshot{
		Sessions:    s.Sessions.Load(),
		MessagesIn:  s.MessagesIn.Load(),
		MessagesOut: s.MessagesOut.Load(),
		Errors:      s.Errors.Load(),
		BytesSent:   s.BytesSent.Load(),
		BytesRecv:   s.BytesRecv.Load(),
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

// StartStatsReporter launches a goroutine that logs link statistics every
// interval while there is traffic. It stops when ctx is cancelled.
func StartStatsReporter(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		prev := Stats.Snapshot()
		for {
			select {
			case <-ticker.C:
				cur := Stats.Snapshot()
				secs := interval.Seconds()

				inS := float64(cur.BytesRecv-prev.BytesRecv) / secs
				outS := float64(cur.BytesSent-prev.BytesSent) / secs
				inM := cur.MessagesIn - prev.MessagesIn
				outM := cur.MessagesOut - prev.MessagesOut
				errs := cur.Errors - prev.Errors

				if inM > 0 || outM > 0 || errs > 0 {
					pterm.DefaultLogger.Info(formatStats(inS, outS, inM, outM, errs))
				}
				prev = cur

			case <-ctx.Done():
				return
			}
		}
	}()
}

// byteUnits defines the units for formatting byte counts in a human-readable way.
var byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

// formatBytes formats a byte count into a human-readable string with fixed width (exactly 8 chars)
// for example: "99.0   B", " 1.5 KiB", " 0.1 MiB", "98.9 GiB", etc.
func formatBytes(b float64) string {
	unitIdx := 0

	// to prevent "100.0 KiB", which is 9 chars
	for b > 99 && unitIdx < 5 {
		b /= 1024
		unitIdx++
	}

	return fmt.Sprintf("%4.1f %3s", b, byteUnits[unitIdx])
}

// FormatBytes is formatBytes without the fixed width.
func FormatBytes(n int) string {
	s := formatBytes(float64(n))
	for len(s) > 0 && s[0] == ' ' {
		s = s[1:]
	}
	return s
}

// formatStats returns a formatted string of the current stats for display in the logger.
func formatStats(inS, outS float64, inM, outM, errs int64) string {
	return fmt.Sprintf("In: %s/s | Out: %s/s | Msg: %3d↓ %3d↑ | Err: %d",
		formatBytes(inS),
		formatBytes(outS),
		inM,
		outM,
		errs,
	)
}
