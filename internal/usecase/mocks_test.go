package usecase

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/CeeFeS/TinyPlanvas/internal/domain/model"
	domainRepo "github.com/CeeFeS/TinyPlanvas/internal/domain/repository"
)

type mockProjectRepo struct{ mock.Mock }

func (m *mockProjectRepo) ListOwn(ctx context.Context) ([]model.Project, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Project), args.Error(1)
}

func (m *mockProjectRepo) Get(ctx context.Context, id string) (*model.Project, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Project), args.Error(1)
}

func (m *mockProjectRepo) Create(ctx context.Context, project model.Project) (*model.Project, error) {
	args := m.Called(ctx, project)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Project), args.Error(1)
}

func (m *mockProjectRepo) Update(ctx context.Context, id string, update model.ProjectUpdate) (*model.Project, error) {
	args := m.Called(ctx, id, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Project), args.Error(1)
}

func (m *mockProjectRepo) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockTaskRepo struct{ mock.Mock }

func (m *mockTaskRepo) ListByProject(ctx context.Context, projectID string) ([]model.Task, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Task), args.Error(1)
}

func (m *mockTaskRepo) Create(ctx context.Context, task model.Task) (*model.Task, error) {
	args := m.Called(ctx, task)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Task), args.Error(1)
}

func (m *mockTaskRepo) Update(ctx context.Context, id string, update model.TaskUpdate) (*model.Task, error) {
	args := m.Called(ctx, id, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Task), args.Error(1)
}

func (m *mockTaskRepo) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockResourceRepo struct{ mock.Mock }

func (m *mockResourceRepo) ListByTasks(ctx context.Context, taskIDs []string) ([]model.Resource, error) {
	args := m.Called(ctx, taskIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Resource), args.Error(1)
}

func (m *mockResourceRepo) Create(ctx context.Context, resource model.Resource) (*model.Resource, error) {
	args := m.Called(ctx, resource)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Resource), args.Error(1)
}

func (m *mockResourceRepo) Update(ctx context.Context, id string, update model.ResourceUpdate) (*model.Resource, error) {
	args := m.Called(ctx, id, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Resource), args.Error(1)
}

func (m *mockResourceRepo) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockAllocationRepo struct{ mock.Mock }

func (m *mockAllocationRepo) ListByResources(ctx context.Context, resourceIDs []string) ([]model.Allocation, error) {
	args := m.Called(ctx, resourceIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Allocation), args.Error(1)
}

func (m *mockAllocationRepo) Upsert(ctx context.Context, allocation model.Allocation) (*model.Allocation, error) {
	args := m.Called(ctx, allocation)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Allocation), args.Error(1)
}

func (m *mockAllocationRepo) DeleteByKey(ctx context.Context, resourceID, date string) error {
	return m.Called(ctx, resourceID, date).Error(0)
}

type mockPresenceRepo struct{ mock.Mock }

func (m *mockPresenceRepo) ListByProject(ctx context.Context, projectID string) ([]model.Presence, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Presence), args.Error(1)
}

func (m *mockPresenceRepo) Upsert(ctx context.Context, presence model.Presence) (*model.Presence, error) {
	args := m.Called(ctx, presence)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Presence), args.Error(1)
}

func (m *mockPresenceRepo) DeleteBySession(ctx context.Context, sessionID string) error {
	return m.Called(ctx, sessionID).Error(0)
}

type mockPermissionRepo struct{ mock.Mock }

func (m *mockPermissionRepo) Get(ctx context.Context, userID, projectID string) (*model.Permission, error) {
	args := m.Called(ctx, userID, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Permission), args.Error(1)
}

// fakeEventSource hands tests a channel per collection to push events into.
type fakeEventSource struct {
	mu       sync.Mutex
	channels map[model.Collection]chan domainRepo.Event
	err      error
}

func newFakeEventSource() *fakeEventSource {
	return &fakeEventSource{channels: make(map[model.Collection]chan domainRepo.Event)}
}

func (f *fakeEventSource) Subscribe(ctx context.Context, collection model.Collection) (<-chan domainRepo.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan domainRepo.Event, 16)
	f.channels[collection] = ch
	go func() {
		<-ctx.Done()
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.channels[collection] == ch {
			delete(f.channels, collection)
			close(ch)
		}
	}()
	return ch, nil
}

func (f *fakeEventSource) emit(ev domainRepo.Event) {
	f.mu.Lock()
	ch := f.channels[ev.Collection]
	f.mu.Unlock()
	if ch != nil {
		ch <- ev
	}
}

// inlineDispatch makes the remote half of a mutation run synchronously.
func inlineDispatch(s *MutationService) {
	s.dispatch = func(fn func()) { fn() }
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}
