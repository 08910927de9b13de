package progress

import (
	"sort"

	"github.com/trezcool/darasa/core/lesson"
)

// Views are the categorized lesson lists backing the student learning panel.
// Every lesson in All appears in exactly one of NotStarted, InProgress or
// Completed; Complementary overlaps with the status-based three.
type Views struct {
	All           []lesson.Lesson `json:"all"`
	NotStarted    []lesson.Lesson `json:"not_started"`
	InProgress    []lesson.Lesson `json:"in_progress"`
	Completed     []lesson.Lesson `json:"completed"`
	Complementary []lesson.Lesson `json:"complementary"`
}

// Categorize derives the panel views from the student's visible lesson list
// and their progress records. It is a pure function: inputs are never
// mutated and identical inputs always yield identical outputs.
//
// NotStarted is sorted by ascending scheduled date, InProgress by most
// recently watched first; Completed keeps the input order.
func Categorize(lessons []lesson.Lesson, records []Progress) Views {
	recsByLesson := make(map[string]Progress, len(records))
	for _, rec := range records {
		recsByLesson[rec.LessonID] = rec
	}

	views := Views{
		All:           make([]lesson.Lesson, 0, len(lessons)),
		NotStarted:    []lesson.Lesson{},
		InProgress:    []lesson.Lesson{},
		Completed:     []lesson.Lesson{},
		Complementary: []lesson.Lesson{},
	}
	lastWatched := make(map[string]Progress, len(records))

	for _, les := range lessons {
		views.All = append(views.All, les)

		if les.Visibility == lesson.VisibilityComplementary {
			views.Complementary = append(views.Complementary, les)
		}

		rec, ok := recsByLesson[les.ID]
		if !ok {
			rec = Default(les.ID)
		}
		switch StatusFromPercent(rec.Percent) {
		case StatusNotStarted:
			views.NotStarted = append(views.NotStarted, les)
		case StatusInProgress:
			views.InProgress = append(views.InProgress, les)
			lastWatched[les.ID] = rec
		case StatusCompleted:
			views.Completed = append(views.Completed, les)
		}
	}

	sort.SliceStable(views.NotStarted, func(i, j int) bool {
		return views.NotStarted[i].ScheduledDate.Before(views.NotStarted[j].ScheduledDate)
	})
	sort.SliceStable(views.InProgress, func(i, j int) bool {
		ri, rj := lastWatched[views.InProgress[i].ID], lastWatched[views.InProgress[j].ID]
		// records without a watch timestamp sort last
		if !rj.LastWatchedAt.Valid {
			return ri.LastWatchedAt.Valid
		}
		if !ri.LastWatchedAt.Valid {
			return false
		}
		return ri.LastWatchedAt.Time.After(rj.LastWatchedAt.Time)
	})

	return views
}

// For returns the record matching lessonID, or the synthetic Default record
// when none exists.
func For(records []Progress, lessonID string) Progress {
	for _, rec := range records {
		if rec.LessonID == lessonID {
			return rec.normalize()
		}
	}
	return Default(lessonID)
}

// Next returns the lesson following lessonID in the supplied list's own
// order, or false at the end of the list (or when lessonID is unknown).
func Next(lessons []lesson.Lesson, lessonID string) (lesson.Lesson, bool) {
	for i, les := range lessons {
		if les.ID == lessonID {
			if i+1 < len(lessons) {
				return lessons[i+1], true
			}
			break
		}
	}
	return lesson.Lesson{}, false
}

// Previous returns the lesson preceding lessonID, or false at the start of
// the list (or when lessonID is unknown).
func Previous(lessons []lesson.Lesson, lessonID string) (lesson.Lesson, bool) {
	for i, les := range lessons {
		if les.ID == lessonID {
			if i > 0 {
				return lessons[i-1], true
			}
			break
		}
	}
	return lesson.Lesson{}, false
}
