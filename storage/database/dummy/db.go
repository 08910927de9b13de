// Package dummydb is an in-memory database backend used by tests and local
// development.
package dummydb

import (
	"sync"

	"github.com/trezcool/darasa/core/lesson"
	"github.com/trezcool/darasa/core/progress"
	"github.com/trezcool/darasa/core/user"
)

type (
	DB struct {
		user     *userTable
		lesson   *lessonTable
		progress *progressTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	lessonTable struct {
		sync.RWMutex
		table map[string]*lesson.Lesson
		order []string
		// enrollments maps studentID -> classIDs
		enrollments map[string][]string
	}

	progressTable struct {
		sync.RWMutex
		// table maps studentID -> lessonID -> record
		table map[string]map[string]*progress.Progress
		order map[string][]string
	}
)

func Open() (*DB, error) {
	db := &DB{
		user: &userTable{table: make(map[string]*user.User)},
		lesson: &lessonTable{
			table:       make(map[string]*lesson.Lesson),
			enrollments: make(map[string][]string),
		},
		progress: &progressTable{
			table: make(map[string]map[string]*progress.Progress),
			order: make(map[string][]string),
		},
	}
	return db, nil
}
