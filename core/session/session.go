// Package session owns the single active lesson session per student: the
// watch-time tracker that converts open-panel time into a progress
// percentage, and the controller driving open/save/advance/close.
//
// Known gap, kept on purpose: saves triggered by distinct events for the same
// session are serialized by a busy flag, but nothing protects against a slow
// early save landing after a fast later one on the store side. Confirm with
// stakeholders before adding a monotonicity check.
package session

import (
	"math"
	"sync"
	"time"

	"github.com/trezcool/darasa/core/lesson"
	"github.com/trezcool/darasa/core/video"
)

// tickInterval is the watch-time accumulation cadence. Time the lesson panel
// is open counts as watch time; there is no pause detection.
const tickInterval = time.Second

type session struct {
	mu sync.Mutex

	now func() time.Time // set once at creation, mockable for tests

	studentID string
	lesson    lesson.Lesson
	embed     video.Embed

	accumSecs float64
	percent   int

	saving       bool
	lastTick     time.Time
	lastActivity time.Time

	done     chan struct{}
	stopOnce sync.Once
}

func newSession(nowFn func() time.Time, studentID string, les lesson.Lesson, savedMinutes, savedPercent int) *session {
	now := nowFn()
	return &session{
		now:          nowFn,
		studentID:    studentID,
		lesson:       les,
		embed:        video.Resolve(les.VideoRef, time.Duration(savedMinutes)*time.Minute),
		accumSecs:    float64(savedMinutes) * 60,
		percent:      savedPercent,
		lastTick:     now,
		lastActivity: now,
		done:         make(chan struct{}),
	}
}

// stop cancels the tick goroutine. It must be called on every close path;
// a leaked ticker keeps accumulating phantom watch time.
func (s *session) stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

// tick adds the elapsed wall-clock time since the last tick and recomputes
// the displayed percentage. Ticking continues while a save is in flight.
func (s *session) tick(assumedDuration time.Duration) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accumSecs += now.Sub(s.lastTick).Seconds()
	s.lastTick = now
	s.percent = computePercent(s.accumSecs, assumedDuration)
}

// snapshot returns the save payload: accumulated seconds as whole (rounded)
// minutes plus the current percentage.
func (s *session) snapshot() (watchTimeMinutes, percent int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int(math.Round(s.accumSecs / 60)), s.percent
}

func (s *session) touch() {
	s.mu.Lock()
	s.lastActivity = s.now()
	s.mu.Unlock()
}

func (s *session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// beginSave flips the busy flag; it reports false while another save is in
// flight so concurrent triggers become no-ops.
func (s *session) beginSave() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saving {
		return false
	}
	s.saving = true
	return true
}

func (s *session) endSave() {
	s.mu.Lock()
	s.saving = false
	s.mu.Unlock()
}

func computePercent(accumSecs float64, assumedDuration time.Duration) int {
	assumed := assumedDuration.Seconds()
	if assumed <= 0 {
		return 0
	}
	pct := int(math.Round(accumSecs / assumed * 100))
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}
	return pct
}
