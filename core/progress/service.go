package progress

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

var (
	// errors
	ErrNotFound          = errors.New("progress record not found")
	errPercentOutOfRange = errors.New("progress percent must be between 0 and 100")
	errNegativeWatchTime = errors.New("watch time cannot be negative")
)

type (
	Repository interface {
		QueryStudentProgress(ctx context.Context, studentID string) ([]Progress, error)
		GetStudentLessonProgress(ctx context.Context, studentID, lessonID string) (Progress, error)
		// UpsertProgress overwrites the (student, lesson) record, creating it
		// on first save. Repeated calls with identical values leave the
		// stored record unchanged.
		UpsertProgress(ctx context.Context, studentID string, rec Progress) (Progress, error)
	}

	Service struct {
		repo    Repository
		usrSvc  *user.Service
		mailSvc core.EmailService
		logger  core.Logger
	}
)

func NewService(repo Repository, usrSvc *user.Service, mailSvc core.EmailService, logger core.Logger) *Service {
	return &Service{
		repo:    repo,
		usrSvc:  usrSvc,
		mailSvc: mailSvc,
		logger:  logger,
	}
}

// QueryByStudent returns every record the student has ever touched.
func (svc *Service) QueryByStudent(ctx context.Context, studentID string) ([]Progress, error) {
	recs, err := svc.repo.QueryStudentProgress(ctx, studentID)
	if err != nil {
		return nil, err
	}
	for i, rec := range recs {
		recs[i] = rec.normalize()
	}
	return recs, nil
}

// GetForLesson applies the default-construction rule: a missing record comes
// back as the zero record rather than an error.
func (svc *Service) GetForLesson(ctx context.Context, studentID, lessonID string) (Progress, error) {
	rec, err := svc.repo.GetStudentLessonProgress(ctx, studentID, lessonID)
	if err != nil {
		if err == ErrNotFound {
			return Default(lessonID), nil
		}
		return Progress{}, err
	}
	return rec.normalize(), nil
}

// Upsert is the single mutation entry point for progress. Inputs are
// validated before any I/O. The returned completed flag is true only when
// this save crossed the record to 100 from a previous percent below 100,
// so callers can surface the "lesson completed" notice exactly once.
func (svc *Service) Upsert(ctx context.Context, studentID, lessonID string, watchTimeMinutes, percent int) (Progress, bool, error) {
	if percent < 0 || percent > 100 {
		return Progress{}, false, core.NewValidationError(errPercentOutOfRange,
			core.FieldError{Field: "progress_percent", Error: errPercentOutOfRange.Error()})
	}
	if watchTimeMinutes < 0 {
		return Progress{}, false, core.NewValidationError(errNegativeWatchTime,
			core.FieldError{Field: "watch_time_minutes", Error: errNegativeWatchTime.Error()})
	}

	prev, err := svc.GetForLesson(ctx, studentID, lessonID)
	if err != nil {
		return Progress{}, false, err
	}

	rec := Progress{
		LessonID:         lessonID,
		WatchTimeMinutes: watchTimeMinutes,
		Percent:          percent,
		LastWatchedAt:    null.TimeFrom(time.Now().UTC()),
	}.normalize()

	rec, err = svc.repo.UpsertProgress(ctx, studentID, rec)
	if err != nil {
		return Progress{}, false, err
	}

	completed := percent >= 100 && prev.Percent < 100
	if completed {
		svc.sendCompletionMail(ctx, studentID)
	}
	return rec, completed, nil
}

func (svc *Service) sendCompletionMail(ctx context.Context, studentID string) {
	if svc.usrSvc == nil || svc.mailSvc == nil {
		return
	}
	usr, err := svc.usrSvc.GetByID(ctx, studentID)
	if err != nil {
		if svc.logger != nil {
			svc.logger.Warn(fmt.Sprintf("looking up student for completion mail: %v", err), err)
		}
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject: "Lesson completed",
		BodyStr: "Congratulations! You have completed another lesson. Keep it up!",
	})
}
