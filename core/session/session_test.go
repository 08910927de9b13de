package session

import (
	"testing"
	"time"

	"github.com/trezcool/darasa/core/lesson"
)

func TestComputePercent(t *testing.T) {
	assumed := 10 * time.Minute

	tests := []struct {
		name      string
		accumSecs float64
		assumed   time.Duration
		want      int
	}{
		{name: "zero", assumed: assumed, want: 0},
		{name: "half a minute", accumSecs: 30, assumed: assumed, want: 5},
		{name: "rounds up", accumSecs: 33, assumed: assumed, want: 6}, // 5.5%
		{name: "rounds down", accumSecs: 32, assumed: assumed, want: 5},
		{name: "full duration", accumSecs: 600, assumed: assumed, want: 100},
		{name: "capped at 100", accumSecs: 6000, assumed: assumed, want: 100},
		{name: "unset duration", accumSecs: 600, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := computePercent(tt.accumSecs, tt.assumed); got != tt.want {
				t.Errorf("computePercent() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSession_tick(t *testing.T) {
	now := time.Now()

	les := lesson.Lesson{ID: "les1", VideoRef: "dQw4w9WgXcQ"}
	s := newSession(func() time.Time { return now }, "std1", les, 4, 40)
	defer s.stop()

	// seeded from the saved record
	if minutes, percent := s.snapshot(); minutes != 4 || percent != 40 {
		t.Errorf("snapshot() = (%d, %d), want (4, 40)", minutes, percent)
	}
	// the player seeks to the saved offset
	if want := "https://www.youtube.com/embed/dQw4w9WgXcQ?start=240"; s.embed.EmbedURL != want {
		t.Errorf("EmbedURL = %v, want %v", s.embed.EmbedURL, want)
	}

	// a minute of wall-clock time becomes a minute of watch time
	now = now.Add(time.Minute)
	s.tick(10 * time.Minute)
	if minutes, percent := s.snapshot(); minutes != 5 || percent != 50 {
		t.Errorf("snapshot() = (%d, %d), want (5, 50)", minutes, percent)
	}

	// percent caps at 100 no matter how long the panel stays open
	now = now.Add(time.Hour)
	s.tick(10 * time.Minute)
	if minutes, percent := s.snapshot(); minutes != 65 || percent != 100 {
		t.Errorf("snapshot() = (%d, %d), want (65, 100)", minutes, percent)
	}
}

func TestSession_saveGuard(t *testing.T) {
	s := newSession(time.Now, "std1", lesson.Lesson{ID: "les1"}, 0, 0)
	defer s.stop()

	if !s.beginSave() {
		t.Fatal("beginSave() = false on idle session")
	}
	if s.beginSave() {
		t.Error("beginSave() = true while saving")
	}
	s.endSave()
	if !s.beginSave() {
		t.Error("beginSave() = false after endSave()")
	}
	s.endSave()
}

func TestSession_stopIdempotent(t *testing.T) {
	s := newSession(time.Now, "std1", lesson.Lesson{ID: "les1"}, 0, 0)
	s.stop()
	s.stop() // must not panic

	select {
	case <-s.done:
	default:
		t.Error("done channel not closed")
	}
}
