package dummydb

import (
	"context"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core/lesson"
)

type lessonRepository struct {
	db *lessonTable
}

var _ lesson.Repository = (*lessonRepository)(nil) // interface compliance check

func NewLessonRepository(db *DB) lesson.Repository {
	return &lessonRepository{db: db.lesson}
}

func (repo *lessonRepository) CreateLesson(ctx context.Context, les lesson.Lesson) (lesson.Lesson, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	les.ID = uuid.New().String()
	repo.db.table[les.ID] = &les
	repo.db.order = append(repo.db.order, les.ID)
	return les, nil
}

func (repo *lessonRepository) GetLessonByID(ctx context.Context, id string) (lesson.Lesson, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if les, ok := repo.db.table[id]; ok {
		return *les, nil
	}
	return lesson.Lesson{}, lesson.ErrNotFound
}

func (repo *lessonRepository) QueryVisibleLessons(ctx context.Context, studentID string) ([]lesson.Lesson, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	classes := make(map[string]bool)
	for _, classID := range repo.db.enrollments[studentID] {
		classes[classID] = true
	}

	lessons := make([]lesson.Lesson, 0, len(repo.db.order))
	for _, id := range repo.db.order {
		les := repo.db.table[id]
		switch les.Visibility {
		case lesson.VisibilityAll, lesson.VisibilityComplementary:
			lessons = append(lessons, *les)
		case lesson.VisibilityClassOnly:
			if les.ClassID.Valid && classes[les.ClassID.String] {
				lessons = append(lessons, *les)
			}
		}
	}
	return lessons, nil
}

func (repo *lessonRepository) EnrollStudent(ctx context.Context, studentID, classID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, id := range repo.db.enrollments[studentID] {
		if id == classID {
			return nil
		}
	}
	repo.db.enrollments[studentID] = append(repo.db.enrollments[studentID], classID)
	return nil
}
