// Package analysis runs identification tasks and exposes their state to
// viewers as loading, error or populated.
package analysis

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"objectscanner/internal/apperror"
	"objectscanner/internal/dto"
	"objectscanner/internal/logger"
	"objectscanner/internal/repository"
	"objectscanner/internal/service/ai"

	"github.com/google/uuid"
)

// ErrTaskNotFound is returned for unknown or abandoned task IDs.
var ErrTaskNotFound = errors.New("analysis not found")

// DefaultMaxTasks bounds how many tasks a manager tracks before the oldest
// settled ones are forgotten.
const DefaultMaxTasks = 64

// Publisher receives every state transition. Publish must not block.
type Publisher interface {
	Publish(state dto.AnalysisState)
}

type task struct {
	state  dto.AnalysisState
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager owns the identification tasks. Each task runs on its own
// goroutine with a context that Abandon and Stop cancel.
type Manager struct {
	identifier    ai.Identifier
	detectionRepo repository.DetectionRepository
	publisher     Publisher
	logger        *logger.Logger
	now           func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.RWMutex
	tasks    map[string]*task
	maxTasks int
}

// NewManager creates a manager. detectionRepo and publisher may be nil.
func NewManager(identifier ai.Identifier, detectionRepo repository.DetectionRepository, publisher Publisher, logger *logger.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		identifier:    identifier,
		detectionRepo: detectionRepo,
		publisher:     publisher,
		logger:        logger,
		now:           time.Now,
		ctx:           ctx,
		cancel:        cancel,
		tasks:         make(map[string]*task),
		maxTasks:      DefaultMaxTasks,
	}
}

// Start begins identifying imageURI and returns the task in loading state.
// captureID links the results to a stored capture; 0 means none. Starting a
// capture-backed task forgets the settled capture-backed tasks before it,
// whose results are already stored with their captures.
func (m *Manager) Start(imageURI string, captureID int64) dto.AnalysisState {
	t := &task{
		state: dto.AnalysisState{
			ID:        uuid.NewString(),
			ImageURI:  imageURI,
			CaptureID: captureID,
		},
	}

	m.mu.Lock()
	evicted := m.evictLocked(captureID > 0)
	m.tasks[t.state.ID] = t
	snapshot := m.launchLocked(t)
	m.mu.Unlock()

	if evicted > 0 {
		m.logger.Info("Forgot %d settled analyses", evicted)
	}
	m.logger.Info("Analysis %s started for %s", snapshot.ID, imageURI)
	return snapshot
}

// evictLocked drops settled tasks so the map stays bounded and reports how
// many were dropped. Loading tasks are never dropped. m.mu must be held.
func (m *Manager) evictLocked(captureBacked bool) int {
	evicted := 0
	if captureBacked {
		for id, t := range m.tasks {
			if t.state.CaptureID > 0 && t.state.Status != dto.StatusLoading {
				delete(m.tasks, id)
				evicted++
			}
		}
	}

	for len(m.tasks) >= m.maxTasks {
		var oldest *task
		for _, t := range m.tasks {
			if t.state.Status == dto.StatusLoading {
				continue
			}
			if oldest == nil || t.state.StartedAt.Before(oldest.state.StartedAt) {
				oldest = t
			}
		}
		if oldest == nil {
			break
		}
		delete(m.tasks, oldest.state.ID)
		evicted++
	}
	return evicted
}

// Get returns the current state of a task.
func (m *Manager) Get(id string) (dto.AnalysisState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tasks[id]
	if !ok {
		return dto.AnalysisState{}, false
	}
	return t.state, true
}

// List returns every known task, oldest first.
func (m *Manager) List() []dto.AnalysisState {
	m.mu.RLock()
	states := make([]dto.AnalysisState, 0, len(m.tasks))
	for _, t := range m.tasks {
		states = append(states, t.state)
	}
	m.mu.RUnlock()

	sort.Slice(states, func(i, j int) bool { return states[i].StartedAt.Before(states[j].StartedAt) })
	return states
}

// Retry runs identification again from scratch. Retrying a task that is
// still loading returns its current state and starts nothing.
func (m *Manager) Retry(id string) (dto.AnalysisState, error) {
	m.mu.Lock()
	t, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return dto.AnalysisState{}, ErrTaskNotFound
	}
	if t.state.Status == dto.StatusLoading {
		snapshot := t.state
		m.mu.Unlock()
		return snapshot, nil
	}
	snapshot := m.launchLocked(t)
	m.mu.Unlock()

	m.logger.Info("Analysis %s retried (attempt %d)", id, snapshot.Attempt)
	return snapshot, nil
}

// Abandon stops observing a task and cancels its identification call.
func (m *Manager) Abandon(id string) error {
	m.mu.Lock()
	t, ok := m.tasks[id]
	if ok {
		delete(m.tasks, id)
	}
	m.mu.Unlock()

	if !ok {
		return ErrTaskNotFound
	}
	t.cancel()
	m.logger.Info("Analysis %s abandoned", id)
	return nil
}

// Wait blocks until the current attempt of a task settles and returns its state.
func (m *Manager) Wait(ctx context.Context, id string) (dto.AnalysisState, error) {
	m.mu.RLock()
	t, ok := m.tasks[id]
	var done chan struct{}
	if ok {
		done = t.done
	}
	m.mu.RUnlock()

	if !ok {
		return dto.AnalysisState{}, ErrTaskNotFound
	}

	select {
	case <-done:
	case <-ctx.Done():
		return dto.AnalysisState{}, ctx.Err()
	}

	state, ok := m.Get(id)
	if !ok {
		return dto.AnalysisState{}, ErrTaskNotFound
	}
	return state, nil
}

// Stop cancels every running task and waits for them to return.
func (m *Manager) Stop() {
	m.cancel()
	m.wg.Wait()
	m.logger.Info("All analyses stopped")
}

// launchLocked resets t to loading, publishes it and starts a new attempt.
// m.mu must be held; publishing under it keeps transitions in order.
func (m *Manager) launchLocked(t *task) dto.AnalysisState {
	ctx, cancel := context.WithCancel(m.ctx)
	done := make(chan struct{})

	t.cancel = cancel
	t.done = done
	t.state.Attempt++
	t.state.Status = dto.StatusLoading
	t.state.Error = ""
	t.state.Detections = []dto.DetectionView{}
	t.state.StartedAt = m.now()
	t.state.FinishedAt = nil
	m.publish(t.state)

	m.wg.Add(1)
	go m.run(ctx, cancel, t.state, done)

	return t.state
}

func (m *Manager) run(ctx context.Context, cancel context.CancelFunc, started dto.AnalysisState, done chan struct{}) {
	defer m.wg.Done()
	defer close(done)
	defer cancel()

	detections, err := m.identifier.Identify(ctx, started.ImageURI)

	m.mu.Lock()
	t, ok := m.tasks[started.ID]
	if !ok || t.state.Attempt != started.Attempt {
		m.mu.Unlock()
		return
	}

	// Results are stored before viewers see them, and only by the
	// current attempt.
	var saveErr error
	if err == nil && m.detectionRepo != nil && started.CaptureID > 0 {
		saveErr = m.detectionRepo.InsertBatch(started.CaptureID, detections)
	}

	finished := m.now()
	t.state.FinishedAt = &finished
	if err != nil {
		t.state.Status = dto.StatusError
		t.state.Error = apperror.UserMessage(err)
	} else {
		t.state.Status = dto.StatusPopulated
		t.state.Detections = dto.NewDetectionViews(detections)
	}
	m.publish(t.state)
	m.mu.Unlock()

	if err != nil {
		m.logger.Error("Analysis %s failed [%s]: %v", started.ID, apperror.Kind(err), err)
		return
	}
	m.logger.Info("Analysis %s found %d item(s)", started.ID, len(detections))
	if saveErr != nil {
		m.logger.Error("Error saving results for capture %d: %v", started.CaptureID, saveErr)
	}
}

func (m *Manager) publish(state dto.AnalysisState) {
	if m.publisher != nil {
		m.publisher.Publish(state)
	}
}
