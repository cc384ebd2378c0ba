package usecase

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CeeFeS/TinyPlanvas/internal/domain/model"
	domainRepo "github.com/CeeFeS/TinyPlanvas/internal/domain/repository"
)

func mustEvent(t *testing.T, collection model.Collection, action domainRepo.Action, record any) domainRepo.Event {
	t.Helper()
	payload, err := json.Marshal(record)
	require.NoError(t, err)
	return domainRepo.Event{Collection: collection, Action: action, Record: payload}
}

// manualSchedule collects deferred retries so tests drive them explicitly.
type manualSchedule struct {
	queued []func()
}

func (m *manualSchedule) schedule(_ time.Duration, fn func()) {
	m.queued = append(m.queued, fn)
}

func (m *manualSchedule) drain() int {
	ran := 0
	for len(m.queued) > 0 {
		next := m.queued[0]
		m.queued = m.queued[1:]
		next()
		ran++
	}
	return ran
}

func reconcilerFixture() (*Reconciler, *PlanStore, *manualSchedule) {
	store := storeFixture()
	r := NewReconciler(store, newFakeEventSource(), testLogger())
	sched := &manualSchedule{}
	r.schedule = sched.schedule
	return r, store, sched
}

func TestHandleTaskEventsForOtherProjectsAreIgnored(t *testing.T) {
	r, store, _ := reconcilerFixture()

	r.Handle(mustEvent(t, model.CollectionTasks, domainRepo.ActionCreate,
		model.Task{ID: model.ConfirmedID("x1"), ProjectID: "other", Name: "Foreign"}))

	assert.Len(t, store.Tasks(), 2)
}

func TestHandleTaskCreateDeduplicatesAgainstPendingRecord(t *testing.T) {
	r, store, _ := reconcilerFixture()
	pending := model.NewPendingID()
	store.UpsertTask(model.Task{ID: pending, ProjectID: "p1", DisplayID: "3", Name: "Ship", SortOrder: 3})

	r.Handle(mustEvent(t, model.CollectionTasks, domainRepo.ActionCreate,
		model.Task{ID: model.ConfirmedID("t9"), ProjectID: "p1", DisplayID: "3", Name: "Ship", SortOrder: 3}))

	tasks := store.Tasks()
	require.Len(t, tasks, 3)
	assert.Equal(t, "t9", tasks[2].ID.String())
	for _, task := range tasks {
		assert.False(t, task.ID.IsPending())
	}
}

func TestHandleTaskCreateIsIdempotent(t *testing.T) {
	r, store, _ := reconcilerFixture()
	ev := mustEvent(t, model.CollectionTasks, domainRepo.ActionCreate,
		model.Task{ID: model.ConfirmedID("t9"), ProjectID: "p1", Name: "Ship", SortOrder: 3})

	r.Handle(ev)
	r.Handle(ev)

	assert.Len(t, store.Tasks(), 3)
}

func TestHandleTaskDeleteCascades(t *testing.T) {
	r, store, _ := reconcilerFixture()

	r.Handle(mustEvent(t, model.CollectionTasks, domainRepo.ActionDelete,
		model.Task{ID: model.ConfirmedID("t1"), ProjectID: "p1"}))

	assert.Len(t, store.Tasks(), 1)
	assert.Len(t, store.Resources(), 1)
	assert.Empty(t, store.Allocations())
}

func TestHandleResourceBeforeParentTaskRetries(t *testing.T) {
	r, store, sched := reconcilerFixture()

	// The resource event arrives before its parent task exists.
	r.Handle(mustEvent(t, model.CollectionResources, domainRepo.ActionCreate,
		model.Resource{ID: model.ConfirmedID("r9"), TaskID: "t9", Name: "Carol"}))
	assert.Len(t, store.Resources(), 2)
	require.Len(t, sched.queued, 1)

	// The parent lands; the retried event now applies.
	r.Handle(mustEvent(t, model.CollectionTasks, domainRepo.ActionCreate,
		model.Task{ID: model.ConfirmedID("t9"), ProjectID: "p1", Name: "Ship", SortOrder: 3}))
	sched.drain()

	assert.True(t, store.HasResource("r9"))
}

func TestHandleResourceRetryGivesUpAfterMaxAttempts(t *testing.T) {
	r, store, sched := reconcilerFixture()

	r.Handle(mustEvent(t, model.CollectionResources, domainRepo.ActionCreate,
		model.Resource{ID: model.ConfirmedID("r9"), TaskID: "never", Name: "Carol"}))
	ran := sched.drain()

	assert.Equal(t, r.maxAttempts-1, ran)
	assert.False(t, store.HasResource("r9"))
}

func TestHandleResourceCreateDeduplicatesAgainstPendingRecord(t *testing.T) {
	r, store, _ := reconcilerFixture()
	pending := model.NewPendingID()
	store.UpsertResource(model.Resource{ID: pending, TaskID: "t1", Name: "Carol", SortOrder: 2})

	r.Handle(mustEvent(t, model.CollectionResources, domainRepo.ActionCreate,
		model.Resource{ID: model.ConfirmedID("r9"), TaskID: "t1", Name: "Carol", SortOrder: 2}))

	resources := store.Resources()
	require.Len(t, resources, 3)
	for _, resource := range resources {
		assert.False(t, resource.ID.IsPending())
	}
}

func TestHandleAllocationMergesByNaturalKey(t *testing.T) {
	r, store, _ := reconcilerFixture()

	// An update for an existing cell replaces its values.
	r.Handle(mustEvent(t, model.CollectionAllocations, domainRepo.ActionUpdate,
		model.Allocation{ID: model.ConfirmedID("a1"), ResourceID: "r1", Date: "2024-01-01", Percentage: 90, Color: "#E4573D"}))

	assert.Len(t, store.Allocations(), 2)
	assert.InDelta(t, 140, store.TasksWithAggregation()[0].TotalEffort, 1e-9)
}

func TestHandleAllocationForUnknownResourceRetries(t *testing.T) {
	r, store, sched := reconcilerFixture()

	r.Handle(mustEvent(t, model.CollectionAllocations, domainRepo.ActionCreate,
		model.Allocation{ID: model.ConfirmedID("a9"), ResourceID: "r9", Date: "2024-05-01", Percentage: 50, Color: "#30A14E"}))
	assert.Len(t, store.Allocations(), 2)

	r.Handle(mustEvent(t, model.CollectionResources, domainRepo.ActionCreate,
		model.Resource{ID: model.ConfirmedID("r9"), TaskID: "t1", Name: "Carol"}))
	sched.drain()

	assert.True(t, store.HasAllocation("a9"))
}

func TestHandleAllocationDeleteFallsBackToKey(t *testing.T) {
	r, store, _ := reconcilerFixture()

	// Delete by an id the store never saw, but with a known key.
	r.Handle(mustEvent(t, model.CollectionAllocations, domainRepo.ActionDelete,
		model.Allocation{ID: model.ConfirmedID("unknown"), ResourceID: "r1", Date: "2024-01-01"}))

	assert.Len(t, store.Allocations(), 1)
}

func TestStartFailsWhenSubscriptionFails(t *testing.T) {
	store := storeFixture()
	source := newFakeEventSource()
	source.err = assert.AnError
	r := NewReconciler(store, source, testLogger())

	err := r.Start(context.Background())
	assert.Error(t, err)
}

func TestStartConsumesEventsUntilStop(t *testing.T) {
	store := storeFixture()
	source := newFakeEventSource()
	r := NewReconciler(store, source, testLogger())

	require.NoError(t, r.Start(context.Background()))
	source.emit(mustEvent(t, model.CollectionTasks, domainRepo.ActionCreate,
		model.Task{ID: model.ConfirmedID("t9"), ProjectID: "p1", Name: "Ship", SortOrder: 3}))

	require.Eventually(t, func() bool {
		return store.HasTask("t9")
	}, time.Second, 5*time.Millisecond)

	r.Stop()
	assert.Len(t, store.Tasks(), 3)
}
