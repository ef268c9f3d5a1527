package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"contentaugment/internal/domain/entity"
	"contentaugment/internal/domain/errors/domain"
	"contentaugment/internal/domain/valueobject"
	"contentaugment/internal/port/outbound"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Run(ctx context.Context, plan Plan, sink ProgressSink) error {
	args := m.Called(ctx, plan, sink)
	return args.Error(0)
}

func processingJob(opType string, ids []string, processed, requeues int) *entity.AugmentationJob {
	token := uuid.New()
	now := time.Now()
	results := make([]entity.ItemOutcome, 0, processed)
	for _, id := range ids[:processed] {
		results = append(results, entity.UpdatedOutcome(id))
	}
	return entity.RestoreAugmentationJob(entity.AugmentationJobState{
		ID:              uuid.New(),
		OperationType:   opType,
		ItemIDs:         ids,
		Status:          valueobject.JobStatusProcessing,
		TotalItems:      len(ids),
		ProcessedItems:  processed,
		SuccessfulItems: processed,
		Results:         results,
		ClaimToken:      &token,
		RequeueCount:    requeues,
		AvailableAt:     now,
		CreatedAt:       now,
		StartedAt:       &now,
		UpdatedAt:       now,
	})
}

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestDispatcher(repo *mockJobRepository, runner Runner) *Dispatcher {
	return NewDispatcher(
		repo,
		staticCatalog{"add_faq": faqOperation()},
		runner,
		DispatcherConfig{ThrottleCooldown: time.Minute, MaxRequeues: 3},
		WithClock(func() time.Time { return fixedNow }),
	)
}

func TestDispatcher_EmptyQueue(t *testing.T) {
	repo := &mockJobRepository{}
	repo.On("ClaimNextQueued", mock.Anything, mock.Anything).Return(nil, nil)
	runner := &mockRunner{}

	result, err := newTestDispatcher(repo, runner).Dispatch(context.Background())

	require.NoError(t, err)
	assert.False(t, result.Claimed)
	runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatcher_ClaimError(t *testing.T) {
	repo := &mockJobRepository{}
	repo.On("ClaimNextQueued", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

	_, err := newTestDispatcher(repo, &mockRunner{}).Dispatch(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "claim augmentation job")
}

func TestDispatcher_CompletesJob(t *testing.T) {
	job := processingJob("add_faq", []string{"A", "B", "C"}, 1, 0)
	repo := &mockJobRepository{}
	var claimToken uuid.UUID
	repo.On("ClaimNextQueued", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { claimToken = args.Get(1).(uuid.UUID) }).
		Return(job, nil)
	repo.On("MarkCompleted", mock.Anything, job.ID(), mock.MatchedBy(func(tok uuid.UUID) bool { return tok == claimToken })).
		Return(nil)

	runner := &mockRunner{}
	runner.On("Run", mock.Anything, mock.MatchedBy(func(p Plan) bool {
		return p.JobID == job.ID() && p.StartIndex == 1 && p.Operation.Name == "add_faq" && len(p.ItemIDs) == 3
	}), mock.AnythingOfType("*worker.JobProgressSink")).Return(nil)

	result, err := newTestDispatcher(repo, runner).Dispatch(context.Background())

	require.NoError(t, err)
	assert.True(t, result.Claimed)
	assert.Equal(t, valueobject.JobStatusCompleted, result.Status)
	repo.AssertExpectations(t)
	runner.AssertExpectations(t)
}

func TestDispatcher_UnknownOperationFails(t *testing.T) {
	job := processingJob("translate_to_klingon", []string{"A"}, 0, 0)
	repo := &mockJobRepository{}
	repo.On("ClaimNextQueued", mock.Anything, mock.Anything).Return(job, nil)
	repo.On("MarkFailed", mock.Anything, job.ID(), mock.Anything, "unknown operation type: translate_to_klingon").
		Return(nil)
	runner := &mockRunner{}

	result, err := newTestDispatcher(repo, runner).Dispatch(context.Background())

	require.NoError(t, err)
	assert.Equal(t, valueobject.JobStatusFailed, result.Status)
	runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
}

func TestDispatcher_FatalErrorFailsJob(t *testing.T) {
	job := processingJob("add_faq", []string{"A", "B", "C", "D"}, 0, 0)
	repo := &mockJobRepository{}
	repo.On("ClaimNextQueued", mock.Anything, mock.Anything).Return(job, nil)
	fatal := &FatalJobError{ItemID: "C", Operation: "update content item", Cause: errors.New("disk full")}
	repo.On("MarkFailed", mock.Anything, job.ID(), mock.Anything, fatal.Error()).Return(nil)

	runner := &mockRunner{}
	runner.On("Run", mock.Anything, mock.Anything, mock.Anything).Return(fatal)

	result, err := newTestDispatcher(repo, runner).Dispatch(context.Background())

	require.NoError(t, err)
	assert.Equal(t, valueobject.JobStatusFailed, result.Status)
	repo.AssertExpectations(t)
}

func TestDispatcher_ThrottleRequeuesWithCooldown(t *testing.T) {
	tests := []struct {
		name       string
		retryAfter time.Duration
		wantDelay  time.Duration
	}{
		{name: "cooldown wins", retryAfter: 10 * time.Second, wantDelay: time.Minute},
		{name: "retry-after wins", retryAfter: 5 * time.Minute, wantDelay: 5 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := processingJob("add_faq", []string{"A", "B"}, 1, 0)
			repo := &mockJobRepository{}
			repo.On("ClaimNextQueued", mock.Anything, mock.Anything).Return(job, nil)
			repo.On("Requeue", mock.Anything, job.ID(), mock.Anything, fixedNow.Add(tt.wantDelay), "provider throttled: requeued").
				Return(nil)

			runner := &mockRunner{}
			runner.On("Run", mock.Anything, mock.Anything, mock.Anything).
				Return(&ThrottledError{ItemID: "B", RetryAfter: tt.retryAfter, Cause: errors.New("429")})

			result, err := newTestDispatcher(repo, runner).Dispatch(context.Background())

			require.NoError(t, err)
			assert.True(t, result.Requeued)
			assert.Equal(t, valueobject.JobStatusQueued, result.Status)
			repo.AssertExpectations(t)
		})
	}
}

func TestDispatcher_ThrottleAfterMaxRequeuesFails(t *testing.T) {
	job := processingJob("add_faq", []string{"A", "B"}, 1, 3)
	repo := &mockJobRepository{}
	repo.On("ClaimNextQueued", mock.Anything, mock.Anything).Return(job, nil)
	repo.On("MarkFailed", mock.Anything, job.ID(), mock.Anything, "provider throttled after 3 requeues: quota").
		Return(nil)

	runner := &mockRunner{}
	runner.On("Run", mock.Anything, mock.Anything, mock.Anything).
		Return(&ThrottledError{ItemID: "B", Cause: errors.New("quota")})

	result, err := newTestDispatcher(repo, runner).Dispatch(context.Background())

	require.NoError(t, err)
	assert.Equal(t, valueobject.JobStatusFailed, result.Status)
	repo.AssertNotCalled(t, "Requeue", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatcher_CancellationReleasesImmediately(t *testing.T) {
	job := processingJob("add_faq", []string{"A", "B"}, 1, 0)
	ctx, cancel := context.WithCancel(context.Background())

	repo := &mockJobRepository{}
	repo.On("ClaimNextQueued", mock.Anything, mock.Anything).Return(job, nil)
	repo.On("Release", mock.MatchedBy(func(c context.Context) bool { return c.Err() == nil }), job.ID(), mock.Anything).
		Return(nil)

	runner := &mockRunner{}
	runner.On("Run", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(context.Canceled)

	result, err := newTestDispatcher(repo, runner).Dispatch(ctx)

	require.NoError(t, err)
	assert.True(t, result.Requeued)
	repo.AssertExpectations(t)
	repo.AssertNotCalled(t, "Requeue", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// A job interrupted by shutdown more often than MaxRequeues still gets its
// throttle requeues afterwards.
func TestDispatcher_ShutdownReleasesDoNotExhaustThrottleRequeues(t *testing.T) {
	job := processingJob("add_faq", []string{"A", "B"}, 1, 0)
	repo := &mockJobRepository{}
	repo.On("ClaimNextQueued", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			if job.Status() == valueobject.JobStatusQueued {
				require.NoError(t, job.Start(args.Get(1).(uuid.UUID)))
			}
		}).
		Return(job, nil)
	repo.On("Release", mock.Anything, job.ID(), mock.Anything).
		Run(func(mock.Arguments) { require.NoError(t, job.Release()) }).
		Return(nil)
	repo.On("Requeue", mock.Anything, job.ID(), mock.Anything, fixedNow.Add(time.Minute), "provider throttled: requeued").
		Run(func(mock.Arguments) { require.NoError(t, job.Requeue(fixedNow.Add(time.Minute), "provider throttled: requeued")) }).
		Return(nil).Once()

	runner := &mockRunner{}
	dispatcher := newTestDispatcher(repo, runner)
	shutdowns := dispatcher.config.MaxRequeues + 2

	for i := 0; i < shutdowns; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		runner.On("Run", mock.Anything, mock.Anything, mock.Anything).
			Run(func(mock.Arguments) { cancel() }).
			Return(context.Canceled).Once()

		result, err := dispatcher.Dispatch(ctx)
		require.NoError(t, err)
		assert.True(t, result.Requeued)
	}
	assert.Equal(t, 0, job.RequeueCount())

	runner.On("Run", mock.Anything, mock.Anything, mock.Anything).
		Return(&ThrottledError{ItemID: "B", Cause: errors.New("quota")}).Once()

	result, err := dispatcher.Dispatch(context.Background())

	require.NoError(t, err)
	assert.Equal(t, valueobject.JobStatusQueued, result.Status)
	assert.Equal(t, 1, job.RequeueCount())
	repo.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNumberOfCalls(t, "Release", shutdowns)
	repo.AssertExpectations(t)
}

func TestDispatcher_ClaimLostAbandons(t *testing.T) {
	job := processingJob("add_faq", []string{"A", "B"}, 0, 0)
	repo := &mockJobRepository{}
	repo.On("ClaimNextQueued", mock.Anything, mock.Anything).Return(job, nil)

	runner := &mockRunner{}
	runner.On("Run", mock.Anything, mock.Anything, mock.Anything).
		Return(&FatalJobError{ItemID: "A", Operation: "record item outcome", Cause: fmt.Errorf("append: %w", domain.ErrJobClaimLost)})

	result, err := newTestDispatcher(repo, runner).Dispatch(context.Background())

	require.NoError(t, err)
	assert.True(t, result.Abandoned)
	repo.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "MarkCompleted", mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatcher_FinalWriteClaimLostAbandons(t *testing.T) {
	job := processingJob("add_faq", []string{"A"}, 0, 0)
	repo := &mockJobRepository{}
	repo.On("ClaimNextQueued", mock.Anything, mock.Anything).Return(job, nil)
	repo.On("MarkCompleted", mock.Anything, job.ID(), mock.Anything).Return(domain.ErrJobClaimLost)

	runner := &mockRunner{}
	runner.On("Run", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	result, err := newTestDispatcher(repo, runner).Dispatch(context.Background())

	require.NoError(t, err)
	assert.True(t, result.Abandoned)
}

func TestDispatcher_ExecutesWithRealExecutor(t *testing.T) {
	ids := []string{"A", "B", "C"}
	job := processingJob("add_faq", ids, 0, 0)
	repo := &mockJobRepository{}
	repo.On("ClaimNextQueued", mock.Anything, mock.Anything).Return(job, nil)
	var appended []entity.ItemOutcome
	repo.On("AppendOutcome", mock.Anything, job.ID(), mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { appended = append(appended, args.Get(3).(entity.ItemOutcome)) }).
		Return(nil)
	repo.On("MarkCompleted", mock.Anything, job.ID(), mock.Anything).Return(nil)

	guard := &fakeGuard{items: map[string]string{"A": "## FAQ\nQ", "B": "Body B", "C": "Body C"}}
	transformer := &fakeTransformer{results: map[string]error{"B": NewItemError("B", "no content generated", nil)}}
	items := &mockItemRepository{}
	items.On("UpdateContent", mock.Anything, mock.Anything).Return(nil)
	executor := newTestExecutor(guard, transformer, items, &countingSleeper{})

	result, err := newTestDispatcher(repo, executor).Dispatch(context.Background())

	require.NoError(t, err)
	assert.Equal(t, valueobject.JobStatusCompleted, result.Status)
	require.Len(t, appended, 3)
	assert.Equal(t, valueobject.OutcomeSkipped, appended[0].Status)
	assert.Equal(t, valueobject.OutcomeFailed, appended[1].Status)
	assert.Equal(t, valueobject.OutcomeUpdated, appended[2].Status)
}

func TestNewDispatcher_Defaults(t *testing.T) {
	d := NewDispatcher(&mockJobRepository{}, staticCatalog{}, &mockRunner{}, DispatcherConfig{})

	assert.Equal(t, DefaultThrottleCooldown, d.config.ThrottleCooldown)
	assert.Equal(t, DefaultMaxRequeues, d.config.MaxRequeues)
}

var _ outbound.AugmentationJobRepository = (*mockJobRepository)(nil)
