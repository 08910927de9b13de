package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core/progress"
)

type progressRow struct {
	StudentID        string    `db:"student_id"`
	LessonID         string    `db:"lesson_id"`
	WatchTimeMinutes int       `db:"watch_time_minutes"`
	Percent          int       `db:"progress_percent"`
	Status           string    `db:"status"`
	LastWatchedAt    null.Time `db:"last_watched_at"`
}

func (r progressRow) unpack() progress.Progress {
	return progress.Progress{
		LessonID:         r.LessonID,
		WatchTimeMinutes: r.WatchTimeMinutes,
		Percent:          r.Percent,
		Status:           progress.StatusFromPercent(r.Percent),
		LastWatchedAt:    r.LastWatchedAt,
	}
}

type progressRepository struct {
	db *sqlx.DB
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db *sqlx.DB) *progressRepository {
	return &progressRepository{db: db}
}

func (repo progressRepository) QueryStudentProgress(ctx context.Context, studentID string) ([]progress.Progress, error) {
	var rows []progressRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM lesson_progress WHERE student_id = $1`, studentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying student progress")
	}

	recs := make([]progress.Progress, 0, len(rows))
	for _, row := range rows {
		recs = append(recs, row.unpack())
	}
	return recs, nil
}

func (repo progressRepository) GetStudentLessonProgress(ctx context.Context, studentID, lessonID string) (progress.Progress, error) {
	var row progressRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT * FROM lesson_progress WHERE student_id = $1 AND lesson_id = $2`, studentID, lessonID)
	if err != nil {
		return progress.Progress{}, trapNoRowsErr(err, progress.ErrNotFound, "getting lesson progress")
	}
	return row.unpack(), nil
}

func (repo progressRepository) UpsertProgress(ctx context.Context, studentID string, rec progress.Progress) (progress.Progress, error) {
	row := progressRow{
		StudentID:        studentID,
		LessonID:         rec.LessonID,
		WatchTimeMinutes: rec.WatchTimeMinutes,
		Percent:          rec.Percent,
		Status:           string(progress.StatusFromPercent(rec.Percent)),
		LastWatchedAt:    rec.LastWatchedAt,
	}
	_, err := repo.db.NamedExecContext(ctx,
		`INSERT INTO lesson_progress (student_id, lesson_id, watch_time_minutes, progress_percent, status, last_watched_at)
		 VALUES (:student_id, :lesson_id, :watch_time_minutes, :progress_percent, :status, :last_watched_at)
		 ON CONFLICT (student_id, lesson_id) DO UPDATE
		 SET watch_time_minutes = EXCLUDED.watch_time_minutes,
		     progress_percent   = EXCLUDED.progress_percent,
		     status             = EXCLUDED.status,
		     last_watched_at    = EXCLUDED.last_watched_at`, row)
	if err != nil {
		return progress.Progress{}, errors.Wrap(err, "upserting lesson progress")
	}
	return row.unpack(), nil
}
