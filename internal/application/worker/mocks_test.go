package worker

import (
	"context"
	"sync"
	"time"

	"contentaugment/internal/domain/entity"
	"contentaugment/internal/domain/errors/domain"
	"contentaugment/internal/domain/operation"
	"contentaugment/internal/port/outbound"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type mockJobRepository struct {
	mock.Mock
}

func (m *mockJobRepository) Save(ctx context.Context, job *entity.AugmentationJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
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
	args := m.Called(ctx, jobID, token, outcome)
	return args.Error(0)
}

func (m *mockJobRepository) MarkCompleted(ctx context.Context, jobID, token uuid.UUID) error {
	args := m.Called(ctx, jobID, token)
	return args.Error(0)
}

func (m *mockJobRepository) MarkFailed(ctx context.Context, jobID, token uuid.UUID, message string) error {
	args := m.Called(ctx, jobID, token, message)
	return args.Error(0)
}

func (m *mockJobRepository) Requeue(
	ctx context.Context,
	jobID, token uuid.UUID,
	notBefore time.Time,
	reason string,
) error {
	args := m.Called(ctx, jobID, token, notBefore, reason)
	return args.Error(0)
}

func (m *mockJobRepository) Release(ctx context.Context, jobID, token uuid.UUID) error {
	args := m.Called(ctx, jobID, token)
	return args.Error(0)
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
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *mockItemRepository) Save(ctx context.Context, item *entity.ContentItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

// fakeGuard evaluates the operation against an in-memory item store.
type fakeGuard struct {
	items map[string]string
	err   error
}

func (g *fakeGuard) AlreadySatisfied(_ context.Context, itemID string, op *operation.Operation) (GuardVerdict, error) {
	if g.err != nil {
		return GuardVerdict{}, g.err
	}
	content, ok := g.items[itemID]
	if !ok {
		return GuardVerdict{}, domain.ErrItemNotFound
	}
	satisfied, reason := op.Satisfied(content)
	return GuardVerdict{Satisfied: satisfied, Reason: reason, Item: entity.NewContentItem(itemID, content)}, nil
}

// fakeTransformer returns a scripted result per item and records call order.
type fakeTransformer struct {
	mu      sync.Mutex
	results map[string]error
	calls   []string
	output  func(item *entity.ContentItem) string
	hook    func(itemID string)
}

func (f *fakeTransformer) Augment(_ context.Context, item *entity.ContentItem, _ *operation.Operation) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, item.ID())
	hook := f.hook
	f.mu.Unlock()

	if hook != nil {
		hook(item.ID())
	}
	if err := f.results[item.ID()]; err != nil {
		return "", err
	}
	if f.output != nil {
		return f.output(item), nil
	}
	return item.Content() + "\n\n## FAQ\nQ: ?\nA: !", nil
}

func (f *fakeTransformer) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// countingSleeper records requested delays without sleeping.
type countingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *countingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *countingSleeper) Count(d time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, got := range s.delays {
		if got == d {
			n++
		}
	}
	return n
}

// faqOperation is satisfied once content has a FAQ heading.
func faqOperation() *operation.Operation {
	marker, err := operation.NewMarker("faq", `(?m)^## FAQ`)
	if err != nil {
		panic(err)
	}
	return &operation.Operation{
		Name:            "add_faq",
		Instruction:     "Append a FAQ section.",
		RequiredMarkers: []operation.Marker{marker},
	}
}

type staticCatalog map[string]*operation.Operation

func (c staticCatalog) Lookup(opType string) (*operation.Operation, bool) {
	op, ok := c[opType]
	return op, ok
}
