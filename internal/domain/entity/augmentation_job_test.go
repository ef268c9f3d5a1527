package entity

import (
	"fmt"
	"testing"
	"time"

	"contentaugment/internal/domain/valueobject"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStartedJob(t *testing.T, ids ...string) *AugmentationJob {
	t.Helper()
	job, err := NewAugmentationJob("add_links", ids, JobOptions{})
	require.NoError(t, err)
	require.NoError(t, job.Start(uuid.New()))
	return job
}

func TestNewAugmentationJob(t *testing.T) {
	ids := []string{"a", "b", "c"}
	job, err := NewAugmentationJob("add_links", ids, JobOptions{DryRun: true})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, job.ID())
	assert.Equal(t, valueobject.JobStatusQueued, job.Status())
	assert.Equal(t, 3, job.TotalItems())
	assert.Equal(t, 0, job.ProcessedItems())
	assert.True(t, job.DryRun())
	assert.Empty(t, job.Results())
	assert.Nil(t, job.StartedAt())
	assert.Nil(t, job.ClaimToken())

	ids[0] = "mutated"
	assert.Equal(t, "a", job.ItemIDs()[0])
}

func TestNewAugmentationJob_Validation(t *testing.T) {
	testCases := []struct {
		name    string
		op      string
		ids     []string
		wantErr error
	}{
		{"empty operation", "", []string{"a"}, ErrEmptyOperationType},
		{"whitespace operation", "   ", []string{"a"}, ErrEmptyOperationType},
		{"nil ids", "add_links", nil, ErrEmptyItemIDs},
		{"empty ids", "add_links", []string{}, ErrEmptyItemIDs},
		{"blank id", "add_links", []string{"a", " "}, ErrBlankItemID},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewAugmentationJob(tc.op, tc.ids, JobOptions{})
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestAugmentationJob_Lifecycle(t *testing.T) {
	job := newStartedJob(t, "a", "b")
	firstStart := *job.StartedAt()
	assert.Equal(t, valueobject.JobStatusProcessing, job.Status())
	assert.NotNil(t, job.ClaimToken())

	require.NoError(t, job.RecordOutcome(UpdatedOutcome("a")))
	require.NoError(t, job.RecordOutcome(FailedOutcome("b", "boom")))
	require.NoError(t, job.Complete())

	assert.Equal(t, valueobject.JobStatusCompleted, job.Status())
	assert.NotNil(t, job.CompletedAt())
	assert.Nil(t, job.ClaimToken())
	assert.Equal(t, firstStart, *job.StartedAt())
	assert.True(t, job.IsTerminal())

	err := job.Fail("late")
	require.Error(t, err)
	var domainErr *DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "INVALID_STATUS_TRANSITION", domainErr.Code())
}

func TestAugmentationJob_StartRequiresQueued(t *testing.T) {
	job := newStartedJob(t, "a")
	assert.Error(t, job.Start(uuid.New()))

	require.NoError(t, job.Fail("boom"))
	assert.Error(t, job.Start(uuid.New()))
	assert.Error(t, job.Requeue(time.Now(), ""))
	assert.Error(t, job.Release())
}

func TestAugmentationJob_ReleaseKeepsRequeueCount(t *testing.T) {
	job := newStartedJob(t, "a", "b")
	require.NoError(t, job.Requeue(time.Now(), "provider throttled"))
	require.NoError(t, job.Start(uuid.New()))
	require.NoError(t, job.RecordOutcome(UpdatedOutcome("a")))

	require.NoError(t, job.Release())

	assert.Equal(t, valueobject.JobStatusQueued, job.Status())
	assert.Nil(t, job.ClaimToken())
	assert.Equal(t, 1, job.RequeueCount())
	assert.Equal(t, 1, job.NextItemIndex())
	assert.False(t, job.AvailableAt().After(time.Now()))
}

func TestAugmentationJob_RecordOutcome_Counters(t *testing.T) {
	job := newStartedJob(t, "A", "B", "C", "D")

	require.NoError(t, job.RecordOutcome(SkippedOutcome("A", "already linked")))
	require.NoError(t, job.RecordOutcome(FailedOutcome("B", "HTTP 500")))
	require.NoError(t, job.RecordOutcome(UpdatedOutcome("C")))
	require.NoError(t, job.RecordOutcome(PreviewOutcome("D", "preview")))

	assert.Equal(t, 4, job.ProcessedItems())
	assert.Equal(t, 2, job.SuccessfulItems())
	assert.Equal(t, 1, job.FailedItems())
	assert.Equal(t, 1, job.SkippedItems())
	require.NoError(t, job.CheckInvariants())

	summary := job.Summary()
	assert.Equal(t, JobSummary{
		Total: 4, Processed: 4, Successful: 2, Updated: 1, Previewed: 1, Failed: 1, Skipped: 1,
	}, summary)
}

func TestAugmentationJob_RecordOutcome_Rejections(t *testing.T) {
	t.Run("out of order", func(t *testing.T) {
		job := newStartedJob(t, "a", "b")
		err := job.RecordOutcome(UpdatedOutcome("b"))
		require.Error(t, err)
		assert.Equal(t, 0, job.ProcessedItems())
		assert.Empty(t, job.Results())
	})

	t.Run("overflow", func(t *testing.T) {
		job := newStartedJob(t, "a")
		require.NoError(t, job.RecordOutcome(UpdatedOutcome("a")))
		assert.Error(t, job.RecordOutcome(UpdatedOutcome("a")))
		assert.Equal(t, 1, job.ProcessedItems())
	})

	t.Run("not processing", func(t *testing.T) {
		job, err := NewAugmentationJob("add_links", []string{"a"}, JobOptions{})
		require.NoError(t, err)
		assert.Error(t, job.RecordOutcome(UpdatedOutcome("a")))
	})

	t.Run("invalid status", func(t *testing.T) {
		job := newStartedJob(t, "a")
		err := job.RecordOutcome(ItemOutcome{ItemID: "a", Status: "bogus"})
		assert.Error(t, err)
		assert.Equal(t, 0, job.ProcessedItems())
	})
}

func TestAugmentationJob_InvariantsHoldAfterEveryOutcome(t *testing.T) {
	ids := make([]string, 30)
	for i := range ids {
		ids[i] = fmt.Sprintf("item-%02d", i)
	}
	job := newStartedJob(t, ids...)

	for i, id := range ids {
		var outcome ItemOutcome
		switch i % 4 {
		case 0:
			outcome = SkippedOutcome(id, "done")
		case 1:
			outcome = FailedOutcome(id, "bad")
		case 2:
			outcome = UpdatedOutcome(id)
		default:
			outcome = PreviewOutcome(id, "p")
		}
		require.NoError(t, job.RecordOutcome(outcome))
		require.NoError(t, job.CheckInvariants())
		assert.LessOrEqual(t, job.ProcessedItems(), job.TotalItems())
	}
}

func TestAugmentationJob_Requeue(t *testing.T) {
	job := newStartedJob(t, "a", "b", "c")
	firstStart := *job.StartedAt()
	require.NoError(t, job.RecordOutcome(UpdatedOutcome("a")))

	notBefore := time.Now().Add(time.Minute)
	require.NoError(t, job.Requeue(notBefore, "provider throttled"))

	assert.Equal(t, valueobject.JobStatusQueued, job.Status())
	assert.Nil(t, job.ClaimToken())
	assert.Equal(t, 1, job.RequeueCount())
	assert.Equal(t, notBefore, job.AvailableAt())
	assert.Equal(t, 1, job.NextItemIndex())

	require.NoError(t, job.Start(uuid.New()))
	assert.Equal(t, firstStart, *job.StartedAt())
	require.NoError(t, job.RecordOutcome(UpdatedOutcome("b")))
	require.NoError(t, job.CheckInvariants())
}

func TestAugmentationJob_CheckInvariants_DetectsCorruption(t *testing.T) {
	job := RestoreAugmentationJob(AugmentationJobState{
		ID:             uuid.New(),
		OperationType:  "add_links",
		ItemIDs:        []string{"a", "b"},
		Status:         valueobject.JobStatusProcessing,
		TotalItems:     2,
		ProcessedItems: 2,
		FailedItems:    1,
		Results:        []ItemOutcome{FailedOutcome("a", "x")},
	})
	assert.Error(t, job.CheckInvariants())
}

func TestRestoreAugmentationJob_NilResults(t *testing.T) {
	job := RestoreAugmentationJob(AugmentationJobState{ID: uuid.New(), Status: valueobject.JobStatusQueued})
	assert.NotNil(t, job.Results())
	assert.Empty(t, job.Results())
}
