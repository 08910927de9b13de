package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/lesson"
	"github.com/trezcool/darasa/core/progress"
	"github.com/trezcool/darasa/core/video"
)

var (
	// errors
	ErrNoSession = errors.New("no open lesson session")
)

// Notice levels
const (
	NoticeInfo    = "info"
	NoticeSuccess = "success"
	NoticeWarning = "warning"
)

// Notice is a transient, non-fatal message surfaced to the student
// (toast-equivalent in the UI).
type Notice struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

var (
	noticeAlreadySaving = Notice{NoticeInfo, "a save is already in progress"}
	noticeEndOfList     = Notice{NoticeInfo, "you have reached the last lesson"}
	noticeStartOfList   = Notice{NoticeInfo, "you are at the first lesson"}
	noticeCompleted     = Notice{NoticeSuccess, "lesson completed"}
	noticeSaveFailed    = Notice{NoticeWarning, "your progress could not be saved; it will be kept for the next save"}
)

// State is the session view exposed to the dashboard UI.
type State struct {
	Open             bool          `json:"open"`
	Lesson           lesson.Lesson `json:"lesson"`
	WatchTimeMinutes int           `json:"watch_time_minutes"`
	Percent          int           `json:"progress_percent"`
	Video            video.Embed   `json:"video"`
	HasNext          bool          `json:"has_next"`
	HasPrevious      bool          `json:"has_previous"`
}

// Manager owns every open lesson session, at most one per student. All
// session mutation flows through its operations.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*session

	lessonSvc *lesson.Service
	progSvc   *progress.Service
	conf      *core.Config
	logger    core.Logger
	now       func() time.Time // mockable for tests
}

func NewManager(lessonSvc *lesson.Service, progSvc *progress.Service, conf *core.Config, logger core.Logger) *Manager {
	return &Manager{
		sessions:  make(map[string]*session),
		lessonSvc: lessonSvc,
		progSvc:   progSvc,
		conf:      conf,
		logger:    logger,
		now:       time.Now,
	}
}

// Open starts a session on the given lesson, seeded from the student's saved
// progress. An already-open session on another lesson is flushed and
// replaced.
func (m *Manager) Open(ctx context.Context, studentID, lessonID string) (State, []Notice, error) {
	lessons, err := m.lessonSvc.VisibleTo(ctx, studentID)
	if err != nil {
		return State{}, nil, err
	}
	var les lesson.Lesson
	var found bool
	for _, l := range lessons {
		if l.ID == lessonID {
			les, found = l, true
			break
		}
	}
	if !found {
		return State{}, nil, lesson.ErrNotFound
	}

	var notices []Notice
	if prev := m.take(studentID); prev != nil {
		notices = append(notices, m.closeSession(ctx, prev, false)...)
	}

	s, moreNotices, err := m.openSession(ctx, studentID, les)
	if err != nil {
		return State{}, nil, err
	}
	notices = append(notices, moreNotices...)
	return m.state(s, lessons), notices, nil
}

// Get returns the current session state.
func (m *Manager) Get(ctx context.Context, studentID string) (State, error) {
	s := m.get(studentID)
	if s == nil {
		return State{}, ErrNoSession
	}
	s.touch()
	lessons, err := m.lessonSvc.VisibleTo(ctx, studentID)
	if err != nil {
		return State{}, err
	}
	return m.state(s, lessons), nil
}

// Save is the manual save point. A save already in flight makes this a
// no-op, reported as a notice rather than an error.
func (m *Manager) Save(ctx context.Context, studentID string) (State, []Notice, error) {
	s := m.get(studentID)
	if s == nil {
		return State{}, nil, ErrNoSession
	}
	s.touch()
	notices := m.flush(ctx, s, false)
	lessons, err := m.lessonSvc.VisibleTo(ctx, studentID)
	if err != nil {
		return State{}, nil, err
	}
	return m.state(s, lessons), notices, nil
}

// Close flushes and ends the session. A failed flush never blocks the close:
// it is logged, surfaced as a notice, and the session closes anyway.
func (m *Manager) Close(ctx context.Context, studentID string) ([]Notice, error) {
	s := m.take(studentID)
	if s == nil {
		return nil, ErrNoSession
	}
	return m.closeSession(ctx, s, false), nil
}

// Next advances to the following lesson. Leaving a lesson forward counts it
// as completed: the flush forces the saved percent to 100. At the end of the
// list the session stays open on the current lesson.
func (m *Manager) Next(ctx context.Context, studentID string) (State, []Notice, error) {
	return m.advance(ctx, studentID, true)
}

// Previous moves back to the preceding lesson, without the forced-completion
// rule.
func (m *Manager) Previous(ctx context.Context, studentID string) (State, []Notice, error) {
	return m.advance(ctx, studentID, false)
}

func (m *Manager) advance(ctx context.Context, studentID string, forward bool) (State, []Notice, error) {
	s := m.get(studentID)
	if s == nil {
		return State{}, nil, ErrNoSession
	}
	s.touch()

	lessons, err := m.lessonSvc.VisibleTo(ctx, studentID)
	if err != nil {
		return State{}, nil, err
	}

	var neighbor lesson.Lesson
	var ok bool
	if forward {
		neighbor, ok = progress.Next(lessons, s.lesson.ID)
	} else {
		neighbor, ok = progress.Previous(lessons, s.lesson.ID)
	}
	if !ok {
		boundary := noticeStartOfList
		if forward {
			boundary = noticeEndOfList
		}
		return m.state(s, lessons), []Notice{boundary}, nil
	}

	m.take(studentID)
	notices := m.closeSession(ctx, s, forward)

	next, moreNotices, err := m.openSession(ctx, studentID, neighbor)
	if err != nil {
		return State{}, notices, err
	}
	notices = append(notices, moreNotices...)
	return m.state(next, lessons), notices, nil
}

// ReapIdle closes sessions whose last activity is older than the configured
// idle timeout and reports how many were closed. It backs the janitor cron.
func (m *Manager) ReapIdle(ctx context.Context) int {
	timeout := m.conf.Lesson.SessionIdleTimeout
	if timeout <= 0 {
		return 0
	}
	cutoff := m.now().Add(-timeout)

	m.mu.Lock()
	var stale []*session
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		m.closeSession(ctx, s, false)
	}
	return len(stale)
}

// openSession loads saved progress, builds the tracker and starts the tick.
func (m *Manager) openSession(ctx context.Context, studentID string, les lesson.Lesson) (*session, []Notice, error) {
	saved, err := m.progSvc.GetForLesson(ctx, studentID, les.ID)
	if err != nil {
		return nil, nil, err
	}

	s := newSession(m.now, studentID, les, saved.WatchTimeMinutes, saved.Percent)
	m.mu.Lock()
	// a concurrent open for the same student may have stored a session
	// during the progress read above; its ticker must not outlive it
	if prev := m.sessions[studentID]; prev != nil {
		prev.stop()
	}
	m.sessions[studentID] = s
	m.mu.Unlock()

	go m.track(s)

	var notices []Notice
	if !s.embed.Available {
		notices = append(notices, Notice{NoticeWarning, "could not load video"})
	}
	return s, notices, nil
}

// closeSession flushes (unless a save is already pending) and stops the tick.
func (m *Manager) closeSession(ctx context.Context, s *session, forceComplete bool) []Notice {
	notices := m.flush(ctx, s, forceComplete)
	s.stop()
	return notices
}

// flush converts the tracker state into one upsert, guarded by the busy
// flag. Store failures are non-fatal: logged and surfaced as a notice, with
// the in-memory tracker state preserved for an implicit retry on the next
// save.
func (m *Manager) flush(ctx context.Context, s *session, forceComplete bool) []Notice {
	if !s.beginSave() {
		return []Notice{noticeAlreadySaving}
	}
	defer s.endSave()

	minutes, percent := s.snapshot()
	if forceComplete {
		percent = 100
	}

	_, completed, err := m.progSvc.Upsert(ctx, s.studentID, s.lesson.ID, minutes, percent)
	if err != nil {
		m.logger.Warn(fmt.Sprintf("saving lesson progress: %v", err), err)
		return []Notice{noticeSaveFailed}
	}
	if completed {
		return []Notice{noticeCompleted}
	}
	return nil
}

// track is the per-session 1-second tick loop; it also fires the periodic
// autosave. It exits when the session is stopped.
func (m *Manager) track(s *session) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	var sinceSave time.Duration
	autosaveEvery := m.conf.Lesson.AutosaveInterval

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.tick(m.conf.Lesson.AssumedDuration)
			sinceSave += tickInterval
			if autosaveEvery > 0 && sinceSave >= autosaveEvery {
				sinceSave = 0
				// the tick must keep firing while the save is in flight
				go func() {
					ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
					defer cancel()
					m.flush(ctx, s, false)
				}()
			}
		}
	}
}

func (m *Manager) get(studentID string) *session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[studentID]
}

// take removes and returns the student's session, if any.
func (m *Manager) take(studentID string) *session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sessions[studentID]
	delete(m.sessions, studentID)
	return s
}

func (m *Manager) state(s *session, lessons []lesson.Lesson) State {
	minutes, percent := s.snapshot()
	_, hasNext := progress.Next(lessons, s.lesson.ID)
	_, hasPrev := progress.Previous(lessons, s.lesson.ID)
	return State{
		Open:             true,
		Lesson:           s.lesson,
		WatchTimeMinutes: minutes,
		Percent:          percent,
		Video:            s.embed,
		HasNext:          hasNext,
		HasPrevious:      hasPrev,
	}
}
