package dummydb

import (
	"context"

	"github.com/trezcool/darasa/core/progress"
)

type progressRepository struct {
	db *progressTable
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db *DB) progress.Repository {
	return &progressRepository{db: db.progress}
}

func (repo *progressRepository) QueryStudentProgress(ctx context.Context, studentID string) ([]progress.Progress, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	recs := make([]progress.Progress, 0, len(repo.db.order[studentID]))
	for _, lessonID := range repo.db.order[studentID] {
		recs = append(recs, *repo.db.table[studentID][lessonID])
	}
	return recs, nil
}

func (repo *progressRepository) GetStudentLessonProgress(ctx context.Context, studentID, lessonID string) (progress.Progress, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if rec, ok := repo.db.table[studentID][lessonID]; ok {
		return *rec, nil
	}
	return progress.Progress{}, progress.ErrNotFound
}

func (repo *progressRepository) UpsertProgress(ctx context.Context, studentID string, rec progress.Progress) (progress.Progress, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if repo.db.table[studentID] == nil {
		repo.db.table[studentID] = make(map[string]*progress.Progress)
	}
	if _, ok := repo.db.table[studentID][rec.LessonID]; !ok {
		repo.db.order[studentID] = append(repo.db.order[studentID], rec.LessonID)
	}
	repo.db.table[studentID][rec.LessonID] = &rec
	return rec, nil
}
