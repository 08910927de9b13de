package progress

import (
	"github.com/volatiletech/null/v8"
)

// Status of a lesson for a given student. It is always derivable from the
// progress percentage; the stored column is a cache that is recomputed on
// every write and never accepted from input.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// StatusFromPercent derives the Status for a percentage in [0, 100].
func StatusFromPercent(percent int) Status {
	switch {
	case percent <= 0:
		return StatusNotStarted
	case percent >= 100:
		return StatusCompleted
	default:
		return StatusInProgress
	}
}

// Progress is a student's watch record for one lesson. A lesson with no
// record is equivalent to the Default record: zero watch time, zero percent,
// never watched.
type Progress struct {
	LessonID         string    `json:"lesson_id"`
	WatchTimeMinutes int       `json:"watch_time_minutes"`
	Percent          int       `json:"progress_percent"`
	Status           Status    `json:"status"`
	LastWatchedAt    null.Time `json:"last_watched_at"`
}

// Default returns the synthetic record used wherever a lesson has no stored
// progress, so that "no record" and "explicit zero record" are
// indistinguishable to callers.
func Default(lessonID string) Progress {
	return Progress{
		LessonID: lessonID,
		Status:   StatusNotStarted,
	}
}

// normalize recomputes the derived Status cache from Percent.
func (p Progress) normalize() Progress {
	p.Status = StatusFromPercent(p.Percent)
	return p
}
