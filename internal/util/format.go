package util

import (
	"fmt"
	"math"
	"time"
)

// Statify turns a byte count in progress against a total, plus the moment
// the transfer started, into the three values the progress reporter
// renders: a 0.0-1.0 fraction, a speed in MiB/s, and an "HH:MM:SS" ETA.
func Statify(done int64, total int64, start time.Time) (float32, float64, string) {
	if total <= 0 {
		return 0, 0, "00:00:00"
	}

	progress := float32(done) / float32(total)

	elapsed := time.Since(start).Seconds()
	if elapsed <= 0 {
		// No time has passed yet; speed and ETA are meaningless.
		return float32(math.Min(float64(progress), 1)), 0, "00:00:00"
	}

	speed := float64(done) / elapsed / float64(MiB)

	var eta int
	if speed > 0 {
		eta = int(math.Floor(float64(total-done) / (speed * float64(MiB))))
	}

	return float32(math.Min(float64(progress), 1)), speed, Timeify(eta)
}

// Timeify renders a second count as "HH:MM:SS". Negative input clamps to
// zero rather than producing a nonsense ETA when a transfer briefly
// overshoots its estimated total.
func Timeify(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	seconds %= 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}

// Sizeify renders a byte count with the largest binary unit that keeps the
// value at or above 1, down to KiB.
func Sizeify(size int64) string {
	switch {
	case size >= int64(TiB):
		return fmt.Sprintf("%.2f TiB", float64(size)/float64(TiB))
	case size >= int64(GiB):
		return fmt.Sprintf("%.2f GiB", float64(size)/float64(GiB))
	case size >= int64(MiB):
		return fmt.Sprintf("%.2f MiB", float64(size)/float64(MiB))
	default:
		return fmt.Sprintf("%.2f KiB", float64(size)/float64(KiB))
	}
}
