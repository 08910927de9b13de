package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/lesson"
	"github.com/trezcool/darasa/core/progress"
	dummydb "github.com/trezcool/darasa/storage/database/dummy"
)

type nopLogger struct{}

var _ core.Logger = (*nopLogger)(nil)

func (nopLogger) Enable(bool)                  {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

// failingProgressRepo wraps a progress.Repository and fails every upsert.
type failingProgressRepo struct {
	progress.Repository
}

func (failingProgressRepo) UpsertProgress(context.Context, string, progress.Progress) (progress.Progress, error) {
	return progress.Progress{}, errors.New("connection reset")
}

func testConfig() *core.Config {
	return &core.Config{
		TestMode: true,
		Lesson: core.LessonConfig{
			AssumedDuration:    10 * time.Minute,
			SessionIdleTimeout: 30 * time.Minute,
			// autosave disabled: tests drive every flush themselves
		},
	}
}

func setup(t *testing.T) (*Manager, *lesson.Service, *progress.Service) {
	t.Helper()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	lessonSvc := lesson.NewService(dummydb.NewLessonRepository(db))
	progSvc := progress.NewService(dummydb.NewProgressRepository(db), nil, nil, nopLogger{})
	return NewManager(lessonSvc, progSvc, testConfig(), nopLogger{}), lessonSvc, progSvc
}

func addLesson(t *testing.T, svc *lesson.Service, title string) lesson.Lesson {
	t.Helper()

	les, err := svc.Create(context.Background(), lesson.NewLesson{
		Title:         title,
		VideoRef:      "dQw4w9WgXcQ",
		ScheduledDate: time.Now(),
		Visibility:    lesson.VisibilityAll,
	})
	if err != nil {
		t.Fatalf("creating lesson failed: %v", err)
	}
	return les
}

func TestManager_Open(t *testing.T) {
	m, lessonSvc, progSvc := setup(t)
	ctx := context.Background()

	les1 := addLesson(t, lessonSvc, "Intro")
	les2 := addLesson(t, lessonSvc, "Basics")

	// seeded from saved progress
	if _, _, err := progSvc.Upsert(ctx, "std1", les2.ID, 4, 40); err != nil {
		t.Fatalf("seeding progress failed: %v", err)
	}

	state, notices, err := m.Open(ctx, "std1", les2.ID)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if !state.Open || state.Lesson.ID != les2.ID {
		t.Errorf("state = %+v", state)
	}
	if state.WatchTimeMinutes != 4 || state.Percent != 40 {
		t.Errorf("state not seeded from saved progress: %+v", state)
	}
	if !state.HasPrevious || state.HasNext {
		t.Errorf("neighbors = (prev %v, next %v), want (true, false)", state.HasPrevious, state.HasNext)
	}
	if !state.Video.Available {
		t.Error("video not resolved")
	}
	if len(notices) != 0 {
		t.Errorf("notices = %v, want none", notices)
	}
	defer func() { _, _ = m.Close(ctx, "std1") }()

	// a fresh lesson starts from zero
	state2, _, err := m.Open(ctx, "std2", les1.ID)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if state2.WatchTimeMinutes != 0 || state2.Percent != 0 {
		t.Errorf("fresh session not zeroed: %+v", state2)
	}
	_, _ = m.Close(ctx, "std2")
}

func TestManager_Open_invisibleLesson(t *testing.T) {
	m, lessonSvc, _ := setup(t)
	ctx := context.Background()

	les, err := lessonSvc.Create(ctx, lesson.NewLesson{
		Title:         "Secret",
		VideoRef:      "dQw4w9WgXcQ",
		ScheduledDate: time.Now(),
		ClassID:       "cls1",
		Visibility:    lesson.VisibilityClassOnly,
	})
	if err != nil {
		t.Fatalf("creating lesson failed: %v", err)
	}

	// not enrolled: the lesson does not exist as far as the student knows
	if _, _, err = m.Open(ctx, "std1", les.ID); err != lesson.ErrNotFound {
		t.Errorf("Open() error = %v, want %v", err, lesson.ErrNotFound)
	}

	if err = lessonSvc.Enroll(ctx, "std1", "cls1"); err != nil {
		t.Fatalf("enrolling failed: %v", err)
	}
	if _, _, err = m.Open(ctx, "std1", les.ID); err != nil {
		t.Errorf("Open() after enrollment failed: %v", err)
	}
	_, _ = m.Close(ctx, "std1")
}

func TestManager_Open_unavailableVideo(t *testing.T) {
	m, lessonSvc, _ := setup(t)
	ctx := context.Background()

	les, err := lessonSvc.Create(ctx, lesson.NewLesson{
		Title:         "Broken",
		VideoRef:      "not a video",
		ScheduledDate: time.Now(),
		Visibility:    lesson.VisibilityAll,
	})
	if err != nil {
		t.Fatalf("creating lesson failed: %v", err)
	}

	state, notices, err := m.Open(ctx, "std1", les.ID)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if state.Video.Available {
		t.Errorf("video = %+v, want unavailable", state.Video)
	}
	if len(notices) != 1 || notices[0].Level != NoticeWarning {
		t.Errorf("notices = %v, want one warning", notices)
	}
	_, _ = m.Close(ctx, "std1")
}

func TestManager_Save(t *testing.T) {
	m, lessonSvc, progSvc := setup(t)
	ctx := context.Background()

	les := addLesson(t, lessonSvc, "Intro")
	if _, _, err := m.Open(ctx, "std1", les.ID); err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer func() { _, _ = m.Close(ctx, "std1") }()

	// simulate accumulated watch time
	s := m.get("std1")
	s.mu.Lock()
	s.accumSecs = 3 * 60
	s.percent = 30
	s.mu.Unlock()

	state, notices, err := m.Save(ctx, "std1")
	if err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if len(notices) != 0 {
		t.Errorf("notices = %v, want none", notices)
	}
	if state.WatchTimeMinutes != 3 || state.Percent != 30 {
		t.Errorf("state = %+v", state)
	}

	rec, err := progSvc.GetForLesson(ctx, "std1", les.ID)
	if err != nil {
		t.Fatalf("GetForLesson() failed: %v", err)
	}
	if rec.WatchTimeMinutes != 3 || rec.Percent != 30 {
		t.Errorf("saved record = %+v", rec)
	}
	if rec.Status != progress.StatusInProgress {
		t.Errorf("Status = %v, want %v", rec.Status, progress.StatusInProgress)
	}
}

func TestManager_Save_alreadySaving(t *testing.T) {
	m, lessonSvc, progSvc := setup(t)
	ctx := context.Background()

	les := addLesson(t, lessonSvc, "Intro")
	if _, _, err := m.Open(ctx, "std1", les.ID); err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer func() { _, _ = m.Close(ctx, "std1") }()

	// a save is in flight: the second trigger is a notice, not a write
	s := m.get("std1")
	if !s.beginSave() {
		t.Fatal("beginSave() failed")
	}
	_, notices, err := m.Save(ctx, "std1")
	if err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if len(notices) != 1 || notices[0] != noticeAlreadySaving {
		t.Errorf("notices = %v, want %v", notices, noticeAlreadySaving)
	}
	if rec, _ := progSvc.GetForLesson(ctx, "std1", les.ID); rec.LastWatchedAt.Valid {
		t.Errorf("record written during in-flight save: %+v", rec)
	}
	s.endSave()
}

func TestManager_Save_completionNotice(t *testing.T) {
	m, lessonSvc, _ := setup(t)
	ctx := context.Background()

	les := addLesson(t, lessonSvc, "Intro")
	if _, _, err := m.Open(ctx, "std1", les.ID); err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer func() { _, _ = m.Close(ctx, "std1") }()

	s := m.get("std1")
	s.mu.Lock()
	s.accumSecs = 10 * 60
	s.percent = 100
	s.mu.Unlock()

	_, notices, err := m.Save(ctx, "std1")
	if err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if len(notices) != 1 || notices[0] != noticeCompleted {
		t.Errorf("notices = %v, want %v", notices, noticeCompleted)
	}

	// saving again at 100 must not re-announce completion
	if _, notices, _ = m.Save(ctx, "std1"); len(notices) != 0 {
		t.Errorf("notices = %v, want none", notices)
	}
}

func TestManager_Close(t *testing.T) {
	m, lessonSvc, progSvc := setup(t)
	ctx := context.Background()

	les := addLesson(t, lessonSvc, "Intro")
	if _, _, err := m.Open(ctx, "std1", les.ID); err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	s := m.get("std1")
	s.mu.Lock()
	s.accumSecs = 2 * 60
	s.percent = 20
	s.mu.Unlock()

	if _, err := m.Close(ctx, "std1"); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	// final flush persisted
	rec, err := progSvc.GetForLesson(ctx, "std1", les.ID)
	if err != nil {
		t.Fatalf("GetForLesson() failed: %v", err)
	}
	if rec.WatchTimeMinutes != 2 || rec.Percent != 20 {
		t.Errorf("record = %+v", rec)
	}

	// tracker stopped
	select {
	case <-s.done:
	default:
		t.Error("tracker still running after Close()")
	}

	// session gone
	if _, err = m.Get(ctx, "std1"); err != ErrNoSession {
		t.Errorf("Get() error = %v, want %v", err, ErrNoSession)
	}
	if _, err = m.Close(ctx, "std1"); err != ErrNoSession {
		t.Errorf("Close() error = %v, want %v", err, ErrNoSession)
	}
}

func TestManager_Close_saveFailure(t *testing.T) {
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	lessonSvc := lesson.NewService(dummydb.NewLessonRepository(db))
	progSvc := progress.NewService(
		failingProgressRepo{dummydb.NewProgressRepository(db)}, nil, nil, nopLogger{})
	m := NewManager(lessonSvc, progSvc, testConfig(), nopLogger{})
	ctx := context.Background()

	les := addLesson(t, lessonSvc, "Intro")
	if _, _, err = m.Open(ctx, "std1", les.ID); err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	// a failed flush never blocks the close
	notices, err := m.Close(ctx, "std1")
	if err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if len(notices) != 1 || notices[0] != noticeSaveFailed {
		t.Errorf("notices = %v, want %v", notices, noticeSaveFailed)
	}
	if _, err = m.Get(ctx, "std1"); err != ErrNoSession {
		t.Errorf("Get() error = %v, want %v", err, ErrNoSession)
	}
}

func TestManager_Next(t *testing.T) {
	m, lessonSvc, progSvc := setup(t)
	ctx := context.Background()

	les1 := addLesson(t, lessonSvc, "Intro")
	les2 := addLesson(t, lessonSvc, "Basics")

	if _, _, err := m.Open(ctx, "std1", les1.ID); err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer func() { _, _ = m.Close(ctx, "std1") }()

	state, notices, err := m.Next(ctx, "std1")
	if err != nil {
		t.Fatalf("Next() failed: %v", err)
	}
	if state.Lesson.ID != les2.ID {
		t.Errorf("Lesson.ID = %v, want %v", state.Lesson.ID, les2.ID)
	}
	// the new session is seeded from the neighbor's own record
	if state.WatchTimeMinutes != 0 || state.Percent != 0 {
		t.Errorf("state = %+v, want fresh", state)
	}

	// leaving forward marks the lesson completed
	rec, err := progSvc.GetForLesson(ctx, "std1", les1.ID)
	if err != nil {
		t.Fatalf("GetForLesson() failed: %v", err)
	}
	if rec.Percent != 100 || rec.Status != progress.StatusCompleted {
		t.Errorf("record = %+v, want completed", rec)
	}
	found := false
	for _, n := range notices {
		if n == noticeCompleted {
			found = true
		}
	}
	if !found {
		t.Errorf("notices = %v, want %v", notices, noticeCompleted)
	}

	// end of the list: session stays open on the current lesson
	state, notices, err = m.Next(ctx, "std1")
	if err != nil {
		t.Fatalf("Next() failed: %v", err)
	}
	if state.Lesson.ID != les2.ID || !state.Open {
		t.Errorf("state = %+v", state)
	}
	if len(notices) != 1 || notices[0] != noticeEndOfList {
		t.Errorf("notices = %v, want %v", notices, noticeEndOfList)
	}
}

func TestManager_Previous(t *testing.T) {
	m, lessonSvc, progSvc := setup(t)
	ctx := context.Background()

	les1 := addLesson(t, lessonSvc, "Intro")
	les2 := addLesson(t, lessonSvc, "Basics")

	if _, _, err := m.Open(ctx, "std1", les2.ID); err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer func() { _, _ = m.Close(ctx, "std1") }()

	s := m.get("std1")
	s.mu.Lock()
	s.accumSecs = 3 * 60
	s.percent = 30
	s.mu.Unlock()

	state, _, err := m.Previous(ctx, "std1")
	if err != nil {
		t.Fatalf("Previous() failed: %v", err)
	}
	if state.Lesson.ID != les1.ID {
		t.Errorf("Lesson.ID = %v, want %v", state.Lesson.ID, les1.ID)
	}

	// no forced completion going back
	rec, err := progSvc.GetForLesson(ctx, "std1", les2.ID)
	if err != nil {
		t.Fatalf("GetForLesson() failed: %v", err)
	}
	if rec.Percent != 30 || rec.Status != progress.StatusInProgress {
		t.Errorf("record = %+v, want in progress at 30%%", rec)
	}

	// start of the list
	state, notices, err := m.Previous(ctx, "std1")
	if err != nil {
		t.Fatalf("Previous() failed: %v", err)
	}
	if state.Lesson.ID != les1.ID || !state.Open {
		t.Errorf("state = %+v", state)
	}
	if len(notices) != 1 || notices[0] != noticeStartOfList {
		t.Errorf("notices = %v, want %v", notices, noticeStartOfList)
	}
}

func TestManager_Open_replacesExisting(t *testing.T) {
	m, lessonSvc, progSvc := setup(t)
	ctx := context.Background()

	les1 := addLesson(t, lessonSvc, "Intro")
	les2 := addLesson(t, lessonSvc, "Basics")

	if _, _, err := m.Open(ctx, "std1", les1.ID); err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	first := m.get("std1")
	first.mu.Lock()
	first.accumSecs = 2 * 60
	first.percent = 20
	first.mu.Unlock()

	state, _, err := m.Open(ctx, "std1", les2.ID)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer func() { _, _ = m.Close(ctx, "std1") }()

	if state.Lesson.ID != les2.ID {
		t.Errorf("Lesson.ID = %v, want %v", state.Lesson.ID, les2.ID)
	}
	// the replaced session was flushed and stopped
	rec, err := progSvc.GetForLesson(ctx, "std1", les1.ID)
	if err != nil {
		t.Fatalf("GetForLesson() failed: %v", err)
	}
	if rec.Percent != 20 {
		t.Errorf("record = %+v", rec)
	}
	select {
	case <-first.done:
	default:
		t.Error("replaced session still running")
	}
}

func TestManager_Open_concurrentSameStudent(t *testing.T) {
	m, lessonSvc, _ := setup(t)
	ctx := context.Background()

	les := addLesson(t, lessonSvc, "Intro")

	// two racing opens (a double-click) can both find no session to take
	// before either stores its own; the displaced session must still be
	// stopped, or its ticker keeps accumulating phantom watch time
	first, _, err := m.openSession(ctx, "std1", les)
	if err != nil {
		t.Fatalf("openSession() failed: %v", err)
	}
	second, _, err := m.openSession(ctx, "std1", les)
	if err != nil {
		t.Fatalf("openSession() failed: %v", err)
	}
	defer func() { _, _ = m.Close(ctx, "std1") }()

	select {
	case <-first.done:
	default:
		t.Error("displaced session still running")
	}
	select {
	case <-second.done:
		t.Error("winning session stopped")
	default:
	}
	if got := m.get("std1"); got != second {
		t.Error("stored session is not the winning one")
	}
}

func TestManager_ReapIdle(t *testing.T) {
	m, lessonSvc, _ := setup(t)
	ctx := context.Background()

	les := addLesson(t, lessonSvc, "Intro")
	if _, _, err := m.Open(ctx, "std1", les.ID); err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	if n := m.ReapIdle(ctx); n != 0 {
		t.Errorf("ReapIdle() = %d, want 0", n)
	}

	// jump past the idle timeout
	m.now = func() time.Time { return time.Now().Add(time.Hour) }

	if n := m.ReapIdle(ctx); n != 1 {
		t.Errorf("ReapIdle() = %d, want 1", n)
	}
	if _, err := m.Get(ctx, "std1"); err != ErrNoSession {
		t.Errorf("Get() error = %v, want %v", err, ErrNoSession)
	}
}
