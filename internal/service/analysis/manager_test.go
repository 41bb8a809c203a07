package analysis

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"objectscanner/internal/apperror"
	"objectscanner/internal/config"
	"objectscanner/internal/dto"
	"objectscanner/internal/logger"
	"objectscanner/internal/model"
)

// ========================================
// Test Helpers
// ========================================

type fakeIdentifier struct {
	mu         sync.Mutex
	detections []model.Detection
	err        error
	block      chan struct{}
	calls      atomic.Int32
	cancelled  atomic.Int32
}

func (f *fakeIdentifier) Identify(ctx context.Context, imageURI string) ([]model.Detection, error) {
	f.calls.Add(1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			f.cancelled.Add(1)
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.detections, nil
}

func (f *fakeIdentifier) set(detections []model.Detection, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detections = detections
	f.err = err
}

type recordingPublisher struct {
	mu     sync.Mutex
	states []dto.AnalysisState
}

func (p *recordingPublisher) Publish(state dto.AnalysisState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states = append(p.states, state)
}

func (p *recordingPublisher) statuses() []dto.AnalysisStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]dto.AnalysisStatus, len(p.states))
	for i, s := range p.states {
		out[i] = s.Status
	}
	return out
}

type memoryDetectionRepo struct {
	mu    sync.Mutex
	saved map[int64][]model.Detection
}

func (r *memoryDetectionRepo) InsertBatch(captureID int64, detections []model.Detection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saved == nil {
		r.saved = make(map[int64][]model.Detection)
	}
	r.saved[captureID] = detections
	return nil
}

func (r *memoryDetectionRepo) GetByCaptureID(captureID int64) ([]model.Detection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saved[captureID], nil
}

func (r *memoryDetectionRepo) DeleteByCaptureID(captureID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.saved, captureID)
	return nil
}

func setupManager(t *testing.T, identifier *fakeIdentifier) (*Manager, *recordingPublisher, *memoryDetectionRepo) {
	t.Helper()

	cfg := &config.Config{LogDirectory: filepath.Join(t.TempDir(), "logs")}
	log := logger.NewLogger(cfg)
	t.Cleanup(func() { log.Close() })

	publisher := &recordingPublisher{}
	repo := &memoryDetectionRepo{}
	m := NewManager(identifier, repo, publisher, log)
	t.Cleanup(m.Stop)
	return m, publisher, repo
}

func waitSettled(t *testing.T, m *Manager, id string) dto.AnalysisState {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	state, err := m.Wait(ctx, id)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	return state
}

const testURI = "file:///tmp/object_detection_1750000000000.jpg"

// ========================================
// Manager Tests
// ========================================

func TestManager_Start_PopulatesInOrder(t *testing.T) {
	identifier := &fakeIdentifier{detections: []model.Detection{
		model.BoxDetection{BBox: [4]float64{1, 2, 3, 4}, Class: "person", Score: 0.9},
		model.ItemDetection{ItemName: "Mug", Description: "Ceramic"},
		model.BoxDetection{BBox: [4]float64{5, 6, 7, 8}, Class: "cup", Score: 0.65},
	}}
	m, publisher, repo := setupManager(t, identifier)

	started := m.Start(testURI, 7)
	if started.Status != dto.StatusLoading {
		t.Fatalf("Expected loading, got %s", started.Status)
	}
	if started.ID == "" || started.Attempt != 1 {
		t.Errorf("Unexpected initial state: %+v", started)
	}

	state := waitSettled(t, m, started.ID)
	if state.Status != dto.StatusPopulated {
		t.Fatalf("Expected populated, got %s (%s)", state.Status, state.Error)
	}
	if len(state.Detections) != 3 {
		t.Fatalf("Expected 3 detections, got %d", len(state.Detections))
	}
	if state.Detections[0].Class != "person" || state.Detections[1].ItemName != "Mug" || state.Detections[2].Class != "cup" {
		t.Errorf("Detections out of order: %+v", state.Detections)
	}
	if state.Detections[0].Confidence != dto.ConfidenceHigh || state.Detections[2].Confidence != dto.ConfidenceMedium {
		t.Errorf("Unexpected confidence buckets: %+v", state.Detections)
	}
	if state.FinishedAt == nil {
		t.Error("Expected FinishedAt to be set")
	}

	saved, _ := repo.GetByCaptureID(7)
	if len(saved) != 3 {
		t.Errorf("Expected results saved for capture, got %d", len(saved))
	}

	got := publisher.statuses()
	if len(got) != 2 || got[0] != dto.StatusLoading || got[1] != dto.StatusPopulated {
		t.Errorf("Unexpected published transitions: %v", got)
	}
}

func TestManager_Start_EmptyResultIsPopulated(t *testing.T) {
	m, _, repo := setupManager(t, &fakeIdentifier{})

	state := waitSettled(t, m, m.Start(testURI, 0).ID)
	if state.Status != dto.StatusPopulated {
		t.Fatalf("Expected populated, got %s", state.Status)
	}
	if len(state.Detections) != 0 {
		t.Errorf("Expected no detections, got %d", len(state.Detections))
	}
	if len(repo.saved) != 0 {
		t.Error("Expected nothing saved without a capture ID")
	}
}

func TestManager_Start_ErrorUsesGenericMessage(t *testing.T) {
	identifier := &fakeIdentifier{err: &apperror.StatusError{StatusCode: 500, Status: "Internal Server Error"}}
	m, publisher, _ := setupManager(t, identifier)

	state := waitSettled(t, m, m.Start(testURI, 3).ID)
	if state.Status != dto.StatusError {
		t.Fatalf("Expected error, got %s", state.Status)
	}
	if state.Error != apperror.AnalysisFailedMessage {
		t.Errorf("Expected generic message, got %q", state.Error)
	}
	if len(state.Detections) != 0 {
		t.Errorf("Expected no detections on error, got %d", len(state.Detections))
	}

	got := publisher.statuses()
	if got[len(got)-1] != dto.StatusError {
		t.Errorf("Expected last published status to be error, got %v", got)
	}
}

func TestManager_Retry_StartsFromScratch(t *testing.T) {
	identifier := &fakeIdentifier{err: apperror.ErrDecodeFailed}
	m, _, _ := setupManager(t, identifier)

	first := waitSettled(t, m, m.Start(testURI, 0).ID)
	if first.Status != dto.StatusError {
		t.Fatalf("Expected error, got %s", first.Status)
	}

	identifier.set([]model.Detection{model.ItemDetection{ItemName: "Lamp"}}, nil)

	retried, err := m.Retry(first.ID)
	if err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if retried.Status != dto.StatusLoading || retried.Attempt != 2 || retried.Error != "" {
		t.Errorf("Unexpected retried state: %+v", retried)
	}

	second := waitSettled(t, m, first.ID)
	if second.Status != dto.StatusPopulated || len(second.Detections) != 1 {
		t.Fatalf("Expected populated retry, got %+v", second)
	}
	if identifier.calls.Load() != 2 {
		t.Errorf("Expected 2 identify calls, got %d", identifier.calls.Load())
	}
}

func TestManager_Retry_WhileLoadingIsNoop(t *testing.T) {
	identifier := &fakeIdentifier{block: make(chan struct{})}
	m, _, _ := setupManager(t, identifier)

	started := m.Start(testURI, 0)
	state, err := m.Retry(started.ID)
	if err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if state.Attempt != 1 || state.Status != dto.StatusLoading {
		t.Errorf("Expected unchanged loading state, got %+v", state)
	}

	close(identifier.block)
	waitSettled(t, m, started.ID)

	if identifier.calls.Load() != 1 {
		t.Errorf("Expected a single identify call, got %d", identifier.calls.Load())
	}
}

func TestManager_Abandon_CancelsAndForgets(t *testing.T) {
	identifier := &fakeIdentifier{block: make(chan struct{})}
	m, publisher, _ := setupManager(t, identifier)

	started := m.Start(testURI, 0)
	if err := m.Abandon(started.ID); err != nil {
		t.Fatalf("Abandon failed: %v", err)
	}

	if _, ok := m.Get(started.ID); ok {
		t.Error("Expected abandoned task to be forgotten")
	}
	if err := m.Abandon(started.ID); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("Expected ErrTaskNotFound, got %v", err)
	}
	if _, err := m.Retry(started.ID); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("Expected ErrTaskNotFound on retry, got %v", err)
	}

	m.Stop()
	if identifier.cancelled.Load() != 1 {
		t.Errorf("Expected identify call to observe cancellation")
	}
	if got := publisher.statuses(); len(got) != 1 {
		t.Errorf("Expected no result to be published after abandon, got %v", got)
	}
}

func TestManager_List_OldestFirst(t *testing.T) {
	m, _, _ := setupManager(t, &fakeIdentifier{})

	base := time.Now()
	tick := 0
	m.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	a := m.Start("file:///a.jpg", 0)
	b := m.Start("file:///b.jpg", 0)
	waitSettled(t, m, a.ID)
	waitSettled(t, m, b.ID)

	states := m.List()
	if len(states) != 2 {
		t.Fatalf("Expected 2 tasks, got %d", len(states))
	}
	if states[0].ID != a.ID || states[1].ID != b.ID {
		t.Errorf("Expected tasks ordered by start time")
	}
}

func TestManager_Wait_UnknownTask(t *testing.T) {
	m, _, _ := setupManager(t, &fakeIdentifier{})

	if _, err := m.Wait(context.Background(), "missing"); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("Expected ErrTaskNotFound, got %v", err)
	}
}

func TestManager_Start_ForgetsSettledCaptureTasks(t *testing.T) {
	m, _, repo := setupManager(t, &fakeIdentifier{detections: []model.Detection{
		model.ItemDetection{ItemName: "Lamp"},
	}})

	first := waitSettled(t, m, m.Start(testURI, 1).ID)
	adhoc := waitSettled(t, m, m.Start(testURI, 0).ID)
	second := m.Start(testURI, 2)

	if _, ok := m.Get(first.ID); ok {
		t.Error("Expected settled capture task to be forgotten")
	}
	if _, ok := m.Get(adhoc.ID); !ok {
		t.Error("Expected task without a capture to be kept")
	}
	if _, ok := m.Get(second.ID); !ok {
		t.Error("Expected new task to be tracked")
	}
	if saved, _ := repo.GetByCaptureID(1); len(saved) != 1 {
		t.Errorf("Expected forgotten task's results to stay stored, got %d", len(saved))
	}
	waitSettled(t, m, second.ID)
}

func TestManager_Start_KeepsTaskCountBounded(t *testing.T) {
	identifier := &fakeIdentifier{}
	m, _, _ := setupManager(t, identifier)
	m.maxTasks = 3

	base := time.Now()
	tick := 0
	m.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, waitSettled(t, m, m.Start(testURI, 0).ID).ID)
	}

	states := m.List()
	if len(states) != 3 {
		t.Fatalf("Expected 3 tracked tasks, got %d", len(states))
	}
	for i, id := range ids[2:] {
		if states[i].ID != id {
			t.Errorf("Expected newest tasks to survive, got %s at %d", states[i].ID, i)
		}
	}
}

func TestManager_Start_NeverForgetsLoadingTasks(t *testing.T) {
	identifier := &fakeIdentifier{block: make(chan struct{})}
	m, _, _ := setupManager(t, identifier)
	m.maxTasks = 2

	a := m.Start(testURI, 1)
	b := m.Start(testURI, 2)
	c := m.Start(testURI, 3)

	for _, id := range []string{a.ID, b.ID, c.ID} {
		if _, ok := m.Get(id); !ok {
			t.Errorf("Expected loading task %s to be kept", id)
		}
	}
	close(identifier.block)
	waitSettled(t, m, c.ID)
}

type savedOnPublish struct {
	repo  *memoryDetectionRepo
	mu    sync.Mutex
	found []int
}

func (p *savedOnPublish) Publish(state dto.AnalysisState) {
	if state.Status != dto.StatusPopulated {
		return
	}
	saved, _ := p.repo.GetByCaptureID(state.CaptureID)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.found = append(p.found, len(saved))
}

func TestManager_Start_SavesBeforePublishing(t *testing.T) {
	identifier := &fakeIdentifier{detections: []model.Detection{
		model.BoxDetection{BBox: [4]float64{1, 2, 3, 4}, Class: "cup", Score: 0.8},
		model.ItemDetection{ItemName: "Mug"},
	}}
	m, _, repo := setupManager(t, identifier)
	publisher := &savedOnPublish{repo: repo}
	m.publisher = publisher

	waitSettled(t, m, m.Start(testURI, 9).ID)

	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	if len(publisher.found) != 1 || publisher.found[0] != 2 {
		t.Errorf("Expected results stored when populated was published, got %v", publisher.found)
	}
}

func TestManager_Abandon_DoesNotSaveLateResults(t *testing.T) {
	identifier := &fakeIdentifier{block: make(chan struct{}), detections: []model.Detection{
		model.ItemDetection{ItemName: "Mug"},
	}}
	m, _, repo := setupManager(t, identifier)

	started := m.Start(testURI, 4)
	if err := m.Abandon(started.ID); err != nil {
		t.Fatalf("Abandon failed: %v", err)
	}
	close(identifier.block)
	m.Stop()

	if saved, _ := repo.GetByCaptureID(4); len(saved) != 0 {
		t.Errorf("Expected abandoned attempt not to save, got %d", len(saved))
	}
}
