package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core/lesson"
)

type lessonRow struct {
	ID            string      `db:"id"`
	Title         string      `db:"title"`
	Description   null.String `db:"description"`
	VideoRef      string      `db:"video_ref"`
	ScheduledDate time.Time   `db:"scheduled_date"`
	ClassID       null.String `db:"class_id"`
	Visibility    string      `db:"visibility"`
	CreatedAt     null.Time   `db:"created_at"`
	UpdatedAt     null.Time   `db:"updated_at"`
}

func (r lessonRow) unpack() lesson.Lesson {
	return lesson.Lesson{
		ID:            r.ID,
		Title:         r.Title,
		Description:   r.Description.String,
		VideoRef:      r.VideoRef,
		ScheduledDate: r.ScheduledDate,
		ClassID:       r.ClassID,
		Visibility:    lesson.Visibility(r.Visibility),
		CreatedAt:     r.CreatedAt.Time,
		UpdatedAt:     r.UpdatedAt.Time,
	}
}

func packLesson(les lesson.Lesson) lessonRow {
	return lessonRow{
		ID:            les.ID,
		Title:         les.Title,
		Description:   null.NewString(les.Description, les.Description != ""),
		VideoRef:      les.VideoRef,
		ScheduledDate: les.ScheduledDate,
		ClassID:       les.ClassID,
		Visibility:    string(les.Visibility),
		CreatedAt:     nullUTC(les.CreatedAt),
		UpdatedAt:     nullUTC(les.UpdatedAt),
	}
}

type lessonRepository struct {
	db *sqlx.DB
}

var _ lesson.Repository = (*lessonRepository)(nil) // interface compliance check

func NewLessonRepository(db *sqlx.DB) *lessonRepository {
	return &lessonRepository{db: db}
}

func (repo lessonRepository) CreateLesson(ctx context.Context, les lesson.Lesson) (lesson.Lesson, error) {
	les.ID = uuid.New().String()
	row := packLesson(les)
	_, err := repo.db.NamedExecContext(ctx,
		`INSERT INTO lesson (id, title, description, video_ref, scheduled_date, class_id, visibility, created_at, updated_at)
		 VALUES (:id, :title, :description, :video_ref, :scheduled_date, :class_id, :visibility, :created_at, :updated_at)`, row)
	if err != nil {
		return lesson.Lesson{}, errors.Wrap(err, "inserting lesson")
	}
	return row.unpack(), nil
}

func (repo lessonRepository) GetLessonByID(ctx context.Context, id string) (lesson.Lesson, error) {
	var row lessonRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM lesson WHERE id = $1`, id)
	if err != nil {
		return lesson.Lesson{}, trapNoRowsErr(err, lesson.ErrNotFound, "getting lesson by id")
	}
	return row.unpack(), nil
}

func (repo lessonRepository) QueryVisibleLessons(ctx context.Context, studentID string) ([]lesson.Lesson, error) {
	var rows []lessonRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM lesson
		 WHERE visibility IN ('all', 'complementary')
		    OR (visibility = 'class_only' AND class_id IN (SELECT class_id FROM enrollment WHERE student_id = $1))
		 ORDER BY created_at, id`, studentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying visible lessons")
	}

	lessons := make([]lesson.Lesson, 0, len(rows))
	for _, row := range rows {
		lessons = append(lessons, row.unpack())
	}
	return lessons, nil
}

func (repo lessonRepository) EnrollStudent(ctx context.Context, studentID, classID string) error {
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO enrollment (student_id, class_id, created_at) VALUES ($1, $2, $3)
		 ON CONFLICT (student_id, class_id) DO NOTHING`, studentID, classID, time.Now().UTC())
	return errors.Wrap(err, "enrolling student")
}
