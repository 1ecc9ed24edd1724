package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ManuGH/posereview/internal/apperr"
	"github.com/ManuGH/posereview/internal/history"
	xglog "github.com/ManuGH/posereview/internal/log"
	"github.com/ManuGH/posereview/internal/model"
	"github.com/ManuGH/posereview/internal/processing"
	"github.com/ManuGH/posereview/internal/videofile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockUploader struct {
	mock.Mock
	progress []int
}

func (m *mockUploader) Upload(ctx context.Context, file videofile.File, onProgress func(int)) (model.ProcessResult, error) {
	args := m.Called(ctx, file)
	for _, p := range m.progress {
		onProgress(p)
	}
	return args.Get(0).(model.ProcessResult), args.Error(1)
}

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) Record(ctx context.Context, sess history.Session) error {
	return m.Called(ctx, sess).Error(0)
}

var okResult = model.ProcessResult{
	SignedURL:         "https://storage.example.com/o.mp4",
	VideoMeta:         model.VideoMeta{Width: 1280, Height: 720, FPS: 30, DurationSec: 3},
	TotalPoses:        90,
	ProcessingTimeSec: 2,
}

func validFile() videofile.File {
	return videofile.FromBytes("squat.mp4", "video/mp4", []byte("frames"))
}

func newOrchestrator(t *testing.T, up Uploader, rec Recorder) *Orchestrator {
	t.Helper()
	o, err := New(Options{Uploader: up, Recorder: rec, NewID: func() string { return "req-1" }})
	require.NoError(t, err)
	return o
}

func recordStates(m *processing.Machine) func() []processing.State {
	var (
		mu     sync.Mutex
		states []processing.State
	)
	m.Subscribe(func(s processing.State) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})
	return func() []processing.State {
		mu.Lock()
		defer mu.Unlock()
		return append([]processing.State(nil), states...)
	}
}

func TestNew_RequiresUploader(t *testing.T) {
	_, err := New(Options{})
	assert.ErrorIs(t, err, ErrNoUploader)
}

func TestProcess_Success(t *testing.T) {
	up := &mockUploader{progress: []int{10, 55, 100}}
	up.On("Upload", mock.Anything, mock.Anything).Return(okResult, nil).Once()
	rec := &mockRecorder{}
	rec.On("Record", mock.Anything, mock.MatchedBy(func(s history.Session) bool {
		return s.ID == "req-1" && s.Status == "COMPLETED" && s.TotalPoses == 90
	})).Return(nil).Once()

	o := newOrchestrator(t, up, rec)
	states := recordStates(o.Machine())

	res, err := o.Process(context.Background(), validFile())
	require.NoError(t, err)
	assert.Equal(t, okResult, res)

	var progress []int
	var statuses []processing.Status
	for _, s := range states() {
		progress = append(progress, s.Progress)
		statuses = append(statuses, s.Status)
	}
	assert.Equal(t, []int{0, 10, 55, 100, 100}, progress)
	assert.Equal(t, processing.StatusCompleted, statuses[len(statuses)-1])

	final := o.Machine().Snapshot()
	require.NotNil(t, final.Result)
	assert.Nil(t, final.Error)

	up.AssertExpectations(t)
	rec.AssertExpectations(t)
}

func TestProcess_RequestIDInContext(t *testing.T) {
	up := &mockUploader{}
	up.On("Upload", mock.MatchedBy(func(ctx context.Context) bool {
		return xglog.RequestIDFromContext(ctx) == "req-1"
	}), mock.Anything).Return(okResult, nil).Once()

	o := newOrchestrator(t, up, nil)
	_, err := o.Process(context.Background(), validFile())
	require.NoError(t, err)
	up.AssertExpectations(t)
}

func TestProcess_ValidationFailureSkipsUpload(t *testing.T) {
	up := &mockUploader{}
	o := newOrchestrator(t, up, nil)
	states := recordStates(o.Machine())

	_, err := o.Process(context.Background(), videofile.FromBytes("empty.mp4", "video/mp4", nil))
	require.Error(t, err)

	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeValidationError, appErr.Code)
	assert.Equal(t, apperr.KindValidation, appErr.Kind)
	assert.Equal(t, 400, appErr.Status)
	assert.Equal(t, map[string]any{"rule": "empty"}, appErr.Details)

	s := o.Machine().Snapshot()
	assert.Equal(t, processing.StatusError, s.Status)
	assert.Equal(t, apperr.CodeValidationError, s.Error.Code)

	got := states()
	require.Len(t, got, 2)
	assert.Equal(t, processing.StatusUploading, got[0].Status)
	assert.Equal(t, processing.StatusError, got[1].Status)

	up.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
}

func TestProcess_UploadFailureIsClassified(t *testing.T) {
	failure := &apperr.TransportFailure{Operation: "upload", Sent: true, Response: &apperr.Response{
		Status: 400,
		Body:   []byte(`{"error":{"code":"VIDEO_TOO_SHORT","message":"Video must be at least 1 second"}}`),
	}}
	up := &mockUploader{progress: []int{100}}
	up.On("Upload", mock.Anything, mock.Anything).Return(model.ProcessResult{}, failure)

	rec := &mockRecorder{}
	rec.On("Record", mock.Anything, mock.MatchedBy(func(s history.Session) bool {
		return s.Status == "ERROR" && s.ErrorCode == "VIDEO_TOO_SHORT"
	})).Return(nil).Once()

	o := newOrchestrator(t, up, rec)
	_, err := o.Process(context.Background(), validFile())

	var appErr *apperr.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.CodeVideoTooShort, appErr.Code)
	assert.Equal(t, 400, appErr.Status)
	assert.Contains(t, appErr.UserMessage(), "短すぎます")

	s := o.Machine().Snapshot()
	assert.Equal(t, processing.StatusError, s.Status)
	assert.Equal(t, apperr.CodeVideoTooShort, s.Error.Code)
	assert.Nil(t, s.Result)
	rec.AssertExpectations(t)
}

func TestProcess_RejectedWhenBusy(t *testing.T) {
	up := &mockUploader{}
	o := newOrchestrator(t, up, nil)
	require.True(t, o.Machine().SetUploading(40).Applied)

	_, err := o.Process(context.Background(), validFile())
	assert.True(t, apperr.IsCode(err, apperr.CodeClientError))
	assert.Equal(t, 40, o.Machine().Snapshot().Progress, "state untouched")
	up.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
}

func TestProcess_RejectedAfterTerminalUntilReset(t *testing.T) {
	up := &mockUploader{}
	up.On("Upload", mock.Anything, mock.Anything).Return(okResult, nil)
	o := newOrchestrator(t, up, nil)

	_, err := o.Process(context.Background(), validFile())
	require.NoError(t, err)

	_, err = o.Process(context.Background(), validFile())
	assert.True(t, apperr.IsCode(err, apperr.CodeClientError))

	o.Reset()
	_, err = o.Process(context.Background(), validFile())
	require.NoError(t, err)
	up.AssertNumberOfCalls(t, "Upload", 2)
}

func TestProcess_RecorderFailureDoesNotChangeOutcome(t *testing.T) {
	up := &mockUploader{}
	up.On("Upload", mock.Anything, mock.Anything).Return(okResult, nil)
	rec := &mockRecorder{}
	rec.On("Record", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	o := newOrchestrator(t, up, rec)
	res, err := o.Process(context.Background(), validFile())
	require.NoError(t, err)
	assert.Equal(t, okResult, res)
	assert.Equal(t, processing.StatusCompleted, o.Machine().Snapshot().Status)
}

func TestProcess_ResetDuringUploadDiscardsResult(t *testing.T) {
	var o *Orchestrator
	o = newOrchestrator(t, uploaderFunc(func(ctx context.Context, f videofile.File, p func(int)) (model.ProcessResult, error) {
		p(50)
		o.Reset()
		return okResult, nil
	}), nil)

	res, err := o.Process(context.Background(), validFile())
	require.NoError(t, err)
	assert.Equal(t, okResult, res)
	assert.Equal(t, processing.State{Status: processing.StatusIdle}, o.Machine().Snapshot())
}

// Reset does not cancel the upload: a progress callback after the reset
// re-enters UPLOADING, and the late result then completes the machine.
func TestProcess_ProgressAfterResetReentersUploading(t *testing.T) {
	var o *Orchestrator
	o = newOrchestrator(t, uploaderFunc(func(ctx context.Context, f videofile.File, p func(int)) (model.ProcessResult, error) {
		p(50)
		o.Reset()
		p(80)
		return okResult, nil
	}), nil)
	states := recordStates(o.Machine())

	res, err := o.Process(context.Background(), validFile())
	require.NoError(t, err)
	assert.Equal(t, okResult, res)

	snap := o.Machine().Snapshot()
	assert.Equal(t, processing.StatusCompleted, snap.Status)
	assert.Equal(t, 100, snap.Progress)
	require.NotNil(t, snap.Result)

	var statuses []processing.Status
	for _, st := range states() {
		if n := len(statuses); n == 0 || statuses[n-1] != st.Status {
			statuses = append(statuses, st.Status)
		}
	}
	assert.Equal(t, []processing.Status{
		processing.StatusUploading, processing.StatusIdle, processing.StatusUploading, processing.StatusCompleted,
	}, statuses)
}

type uploaderFunc func(ctx context.Context, f videofile.File, p func(int)) (model.ProcessResult, error)

func (fn uploaderFunc) Upload(ctx context.Context, f videofile.File, p func(int)) (model.ProcessResult, error) {
	return fn(ctx, f, p)
}
