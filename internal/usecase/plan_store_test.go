package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CeeFeS/TinyPlanvas/internal/domain/model"
)

func storeFixture() *PlanStore {
	store := NewPlanStore()
	store.ReplaceAll(
		model.Project{
			ID:         model.ConfirmedID("p1"),
			OwnerID:    "u1",
			Name:       "Roadmap",
			Resolution: model.ResolutionDay,
			StartDate:  "2024-01-01",
			EndDate:    "2024-12-31",
		},
		[]model.Task{
			{ID: model.ConfirmedID("t1"), ProjectID: "p1", DisplayID: "1", Name: "Design", SortOrder: 1},
			{ID: model.ConfirmedID("t2"), ProjectID: "p1", DisplayID: "2", Name: "Build", SortOrder: 2},
		},
		[]model.Resource{
			{ID: model.ConfirmedID("r1"), TaskID: "t1", Name: "Alice", SortOrder: 1},
			{ID: model.ConfirmedID("r2"), TaskID: "t2", Name: "Bob", SortOrder: 1},
		},
		[]model.Allocation{
			{ID: model.ConfirmedID("a1"), ResourceID: "r1", Date: "2024-01-01", Percentage: 30, Color: "#30A14E"},
			{ID: model.ConfirmedID("a2"), ResourceID: "r1", Date: "2024-01-03", Percentage: 50, Color: "#30A14E"},
		},
		model.PermissionOwner,
	)
	return store
}

func TestUpsertTaskIsIdempotent(t *testing.T) {
	store := storeFixture()
	task := model.Task{ID: model.ConfirmedID("t1"), ProjectID: "p1", DisplayID: "1", Name: "Design v2", SortOrder: 1}

	store.UpsertTask(task)
	once := store.Snapshot()
	store.UpsertTask(task)
	twice := store.Snapshot()

	assert.Equal(t, once, twice)
	assert.Len(t, store.Tasks(), 2)
	assert.Equal(t, "Design v2", store.Tasks()[0].Name)
}

func TestUpsertTaskReplacesInPlace(t *testing.T) {
	store := storeFixture()
	store.UpsertTask(model.Task{ID: model.ConfirmedID("t1"), ProjectID: "p1", Name: "Renamed", SortOrder: 1})

	tasks := store.Tasks()
	require.Len(t, tasks, 2)
	assert.Equal(t, "t1", tasks[0].ID.String())
	assert.Equal(t, "Renamed", tasks[0].Name)
}

func TestAggregationFoldsDateRangeAndEffort(t *testing.T) {
	store := storeFixture()

	aggregates := store.TasksWithAggregation()
	require.Len(t, aggregates, 2)

	design := aggregates[0]
	assert.Equal(t, "t1", design.Task.ID.String())
	assert.Equal(t, "2024-01-01", design.StartDate)
	assert.Equal(t, "2024-01-03", design.EndDate)
	assert.InDelta(t, 80, design.TotalEffort, 1e-9)

	build := aggregates[1]
	assert.Empty(t, build.StartDate)
	assert.Empty(t, build.EndDate)
	assert.Zero(t, build.TotalEffort)
}

func TestAggregationOrderedBySortOrder(t *testing.T) {
	store := storeFixture()
	store.UpsertTask(model.Task{ID: model.ConfirmedID("t0"), ProjectID: "p1", Name: "Plan", SortOrder: 0})

	aggregates := store.TasksWithAggregation()
	require.Len(t, aggregates, 3)
	assert.Equal(t, "t0", aggregates[0].Task.ID.String())
	assert.Equal(t, "t1", aggregates[1].Task.ID.String())
	assert.Equal(t, "t2", aggregates[2].Task.ID.String())
}

func TestUpsertAllocationByKeyKeepsOneRecordPerCell(t *testing.T) {
	store := storeFixture()

	stored := store.UpsertAllocationByKey(model.Allocation{
		ID: model.NewPendingID(), ResourceID: "r1", Date: "2024-01-01", Percentage: 70, Color: "#F2A33C",
	})

	// The existing record's id is kept; only the painted values change.
	assert.Equal(t, "a1", stored.ID.String())
	assert.Len(t, store.Allocations(), 2)
	assert.InDelta(t, 120, store.TasksWithAggregation()[0].TotalEffort, 1e-9)
}

func TestUpsertAllocationByKeyAdoptsConfirmedID(t *testing.T) {
	store := NewPlanStore()
	store.ReplaceAll(
		model.Project{ID: model.ConfirmedID("p1"), Resolution: model.ResolutionDay},
		[]model.Task{{ID: model.ConfirmedID("t1"), ProjectID: "p1", SortOrder: 1}},
		[]model.Resource{{ID: model.ConfirmedID("r1"), TaskID: "t1"}},
		nil, model.PermissionOwner,
	)

	pending := store.UpsertAllocationByKey(model.Allocation{
		ID: model.NewPendingID(), ResourceID: "r1", Date: "2024-02-01", Percentage: 40, Color: "#30A14E",
	})
	assert.True(t, pending.ID.IsPending())

	confirmed := store.UpsertAllocationByKey(model.Allocation{
		ID: model.ConfirmedID("a9"), ResourceID: "r1", Date: "2024-02-01", Percentage: 40, Color: "#30A14E",
	})
	assert.Equal(t, "a9", confirmed.ID.String())
	assert.False(t, confirmed.ID.IsPending())
	assert.Len(t, store.Allocations(), 1)
}

func TestRemoveTaskCascades(t *testing.T) {
	store := storeFixture()

	removed := store.RemoveTask(model.ConfirmedID("t1"))
	require.NotNil(t, removed)
	assert.Equal(t, "t1", removed.Task.ID.String())
	assert.Len(t, removed.Resources, 1)
	assert.Len(t, removed.Allocations, 2)

	assert.Len(t, store.Tasks(), 1)
	assert.Len(t, store.Resources(), 1)
	assert.Empty(t, store.Allocations())
}

func TestRestoreTaskReinsertsTheWholeSet(t *testing.T) {
	store := storeFixture()
	before := len(store.Allocations())

	removed := store.RemoveTask(model.ConfirmedID("t1"))
	store.RestoreTask(removed)

	assert.Len(t, store.Tasks(), 2)
	assert.Len(t, store.Resources(), 2)
	assert.Len(t, store.Allocations(), before)
	assert.InDelta(t, 80, store.TasksWithAggregation()[0].TotalEffort, 1e-9)
}

func TestRemoveResourceCascadesToAllocations(t *testing.T) {
	store := storeFixture()

	removed := store.RemoveResource(model.ConfirmedID("r1"))
	require.NotNil(t, removed)
	assert.Len(t, removed.Allocations, 2)
	assert.Empty(t, store.Allocations())

	store.RestoreResource(removed)
	assert.Len(t, store.Allocations(), 2)
}

func TestConfirmPendingTask(t *testing.T) {
	confirmed := model.Task{ID: model.ConfirmedID("t9"), ProjectID: "p1", Name: "New", SortOrder: 3}

	t.Run("pending only is replaced in place", func(t *testing.T) {
		store := storeFixture()
		pending := model.NewPendingID()
		store.UpsertTask(model.Task{ID: pending, ProjectID: "p1", Name: "New", SortOrder: 3})

		store.ConfirmPendingTask(pending, confirmed)

		tasks := store.Tasks()
		require.Len(t, tasks, 3)
		assert.Equal(t, "t9", tasks[2].ID.String())
	})

	t.Run("both present drops the pending copy", func(t *testing.T) {
		store := storeFixture()
		pending := model.NewPendingID()
		store.UpsertTask(model.Task{ID: pending, ProjectID: "p1", Name: "New", SortOrder: 3})
		store.UpsertTask(confirmed)

		store.ConfirmPendingTask(pending, confirmed)

		tasks := store.Tasks()
		require.Len(t, tasks, 3)
		for _, task := range tasks {
			assert.False(t, task.ID.IsPending())
		}
	})

	t.Run("neither present does not resurrect", func(t *testing.T) {
		store := storeFixture()
		store.ConfirmPendingTask(model.NewPendingID(), confirmed)
		assert.Len(t, store.Tasks(), 2)
	})
}

func TestHasTaskIgnoresPendingRecords(t *testing.T) {
	store := storeFixture()
	pending := model.NewPendingID()
	store.UpsertTask(model.Task{ID: pending, ProjectID: "p1", Name: "Draft"})

	assert.True(t, store.HasTask("t1"))
	assert.False(t, store.HasTask(pending.String()))
}

func TestFindPendingResourceMatchesParentAndName(t *testing.T) {
	store := storeFixture()
	pending := model.NewPendingID()
	store.UpsertResource(model.Resource{ID: pending, TaskID: "t1", Name: "Carol"})

	found, ok := store.FindPendingResource("t1", "Carol")
	require.True(t, ok)
	assert.True(t, found.Equal(pending))

	_, ok = store.FindPendingResource("t2", "Carol")
	assert.False(t, ok)
	_, ok = store.FindPendingResource("t1", "Alice")
	assert.False(t, ok)
}

func TestNextSortOrders(t *testing.T) {
	store := storeFixture()
	assert.Equal(t, 3, store.NextTaskSortOrder())
	assert.Equal(t, 2, store.NextResourceSortOrder("t1"))
	assert.Equal(t, 1, store.NextResourceSortOrder("missing"))
}

func TestClearDropsEverything(t *testing.T) {
	store := storeFixture()
	store.SetLastError(assert.AnError)
	store.SetLiveSyncDown(true)

	store.Clear()

	snap := store.Snapshot()
	assert.Nil(t, snap.Project)
	assert.Empty(t, snap.Tasks)
	assert.NoError(t, snap.LastError)
	assert.False(t, snap.LiveSyncDown)
}
