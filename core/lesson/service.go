package lesson

import (
	"context"
	"errors"
	"time"

	"github.com/volatiletech/null/v8"
)

var (
	// errors
	ErrNotFound = errors.New("lesson not found")
)

type (
	Repository interface {
		CreateLesson(ctx context.Context, les Lesson) (Lesson, error)
		GetLessonByID(ctx context.Context, id string) (Lesson, error)
		// QueryVisibleLessons returns the lessons a student may see, in
		// catalog (insertion) order: lessons with "all" or "complementary"
		// visibility plus "class_only" lessons of classes the student is
		// enrolled in.
		QueryVisibleLessons(ctx context.Context, studentID string) ([]Lesson, error)
		EnrollStudent(ctx context.Context, studentID, classID string) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(ctx context.Context, nl NewLesson) (Lesson, error) {
	now := time.Now().UTC()
	les := Lesson{
		Title:         nl.Title,
		Description:   nl.Description,
		VideoRef:      nl.VideoRef,
		ScheduledDate: nl.ScheduledDate,
		ClassID:       null.NewString(nl.ClassID, nl.ClassID != ""),
		Visibility:    nl.Visibility,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return svc.repo.CreateLesson(ctx, les)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Lesson, error) {
	return svc.repo.GetLessonByID(ctx, id)
}

// VisibleTo returns the student's visible lesson list. Enrollment and
// visibility are resolved by the repository; callers never re-filter.
func (svc *Service) VisibleTo(ctx context.Context, studentID string) ([]Lesson, error) {
	return svc.repo.QueryVisibleLessons(ctx, studentID)
}

func (svc *Service) Enroll(ctx context.Context, studentID, classID string) error {
	return svc.repo.EnrollStudent(ctx, studentID, classID)
}
