package service

import (
	"context"
	"time"

	"contentaugment/internal/application/worker"
	"contentaugment/internal/domain/entity"
	"contentaugment/internal/domain/operation"
	"contentaugment/internal/port/outbound"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type mockJobRepository struct {
	mock.Mock
}

func (m *mockJobRepository) Save(ctx context.Context, job *entity.AugmentationJob) error {
	return m.Called(ctx, job).Error(0)
}

func (m *mockJobRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.AugmentationJob, error) {
	args := m.Called(ctx, id)
	job, _ := args.Get(0).(*entity.AugmentationJob)
	return job, args.Error(1)
}

func (m *mockJobRepository) FindAll(
	ctx context.Context,
	filters outbound.AugmentationJobFilters,
) ([]*entity.AugmentationJob, int, error) {
	args := m.Called(ctx, filters)
	jobs, _ := args.Get(0).([]*entity.AugmentationJob)
	return jobs, args.Int(1), args.Error(2)
}

func (m *mockJobRepository) ClaimNextQueued(ctx context.Context, token uuid.UUID) (*entity.AugmentationJob, error) {
	args := m.Called(ctx, token)
	job, _ := args.Get(0).(*entity.AugmentationJob)
	return job, args.Error(1)
}

func (m *mockJobRepository) AppendOutcome(ctx context.Context, jobID, token uuid.UUID, outcome entity.ItemOutcome) error {
	return m.Called(ctx, jobID, token, outcome).Error(0)
}

func (m *mockJobRepository) MarkCompleted(ctx context.Context, jobID, token uuid.UUID) error {
	return m.Called(ctx, jobID, token).Error(0)
}

func (m *mockJobRepository) MarkFailed(ctx context.Context, jobID, token uuid.UUID, message string) error {
	return m.Called(ctx, jobID, token, message).Error(0)
}

func (m *mockJobRepository) Requeue(ctx context.Context, jobID, token uuid.UUID, notBefore time.Time, reason string) error {
	return m.Called(ctx, jobID, token, notBefore, reason).Error(0)
}

func (m *mockJobRepository) Release(ctx context.Context, jobID, token uuid.UUID) error {
	return m.Called(ctx, jobID, token).Error(0)
}

func (m *mockJobRepository) FindStale(ctx context.Context, staleBefore time.Time, limit int) ([]*entity.AugmentationJob, error) {
	args := m.Called(ctx, staleBefore, limit)
	jobs, _ := args.Get(0).([]*entity.AugmentationJob)
	return jobs, args.Error(1)
}

func (m *mockJobRepository) ReclaimStale(ctx context.Context, req outbound.ReclaimRequest) (bool, error) {
	args := m.Called(ctx, req)
	return args.Bool(0), args.Error(1)
}

type mockItemRepository struct {
	mock.Mock
}

func (m *mockItemRepository) FindByID(ctx context.Context, id string) (*entity.ContentItem, error) {
	args := m.Called(ctx, id)
	item, _ := args.Get(0).(*entity.ContentItem)
	return item, args.Error(1)
}

func (m *mockItemRepository) UpdateContent(ctx context.Context, item *entity.ContentItem) error {
	return m.Called(ctx, item).Error(0)
}

func (m *mockItemRepository) Save(ctx context.Context, item *entity.ContentItem) error {
	return m.Called(ctx, item).Error(0)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) NotifyJobQueued(ctx context.Context, jobID uuid.UUID) error {
	return m.Called(ctx, jobID).Error(0)
}

func (m *mockNotifier) Close() error {
	return m.Called().Error(0)
}

type mockAugmenter struct {
	mock.Mock
}

func (m *mockAugmenter) Transform(ctx context.Context, req outbound.TransformRequest) (*outbound.TransformResult, error) {
	args := m.Called(ctx, req)
	result, _ := args.Get(0).(*outbound.TransformResult)
	return result, args.Error(1)
}

func (m *mockAugmenter) Provider() string {
	return "mock"
}

type fixedCounter int

func (c fixedCounter) CountTokens(string) int {
	return int(c)
}

type mockBatchRunner struct {
	mock.Mock
	size int
}

func (m *mockBatchRunner) Run(ctx context.Context, plan worker.Plan, sink worker.ProgressSink) error {
	return m.Called(ctx, plan, sink).Error(0)
}

func (m *mockBatchRunner) BatchSize() int {
	return m.size
}

func faqOperation() *operation.Operation {
	marker, err := operation.NewMarker("faq", `(?m)^## FAQ`)
	if err != nil {
		panic(err)
	}
	return &operation.Operation{
		Name:            "add_faq",
		Instruction:     "Append a FAQ section.",
		RequiredMarkers: []operation.Marker{marker},
		MinLengthRatio:  0.9,
	}
}

type staticCatalog map[string]*operation.Operation

func (c staticCatalog) Lookup(opType string) (*operation.Operation, bool) {
	op, ok := c[opType]
	return op, ok
}
