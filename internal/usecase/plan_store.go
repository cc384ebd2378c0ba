package usecase

import (
	"sort"
	"sync"

	"github.com/CeeFeS/TinyPlanvas/internal/domain/model"
)

// TaskAggregate is the derived per-task summary: the date range covered by
// the allocations of its resources and the sum of their percentages.
// StartDate and EndDate are bucket keys; empty when nothing is allocated.
type TaskAggregate struct {
	Task        model.Task
	StartDate   string
	EndDate     string
	TotalEffort float64
}

// Snapshot is an immutable view of the store for the UI layer.
type Snapshot struct {
	Project      *model.Project
	Tasks        []TaskAggregate
	Permission   model.PermissionLevel
	Loading      bool
	LastError    error
	LiveSyncDown bool
	AccessDenied bool
}

// RemovedTaskSet retains everything a cascading task removal took out, so a
// failed remote delete can restore it.
type RemovedTaskSet struct {
	Task        *model.Task
	Resources   []model.Resource
	Allocations []model.Allocation
}

// RemovedResourceSet retains everything a cascading resource removal took out.
type RemovedResourceSet struct {
	Resource    *model.Resource
	Allocations []model.Allocation
}

// PlanStore holds the current best-known state of the open project. It is
// the single shared mutable resource: the mutation engine, the realtime
// reconciler and the presence tracker all funnel through its primitives.
// Every method leaves the store fully consistent before releasing the lock,
// and the derived aggregation is recomputed after every change rather than
// patched incrementally.
type PlanStore struct {
	mu sync.Mutex

	project     *model.Project
	tasks       []model.Task
	resources   []model.Resource
	allocations []model.Allocation
	permission  model.PermissionLevel
	aggregates  []TaskAggregate

	loading      bool
	lastErr      error
	liveSyncDown bool
	accessDenied bool
}

// NewPlanStore creates an empty store.
func NewPlanStore() *PlanStore {
	return &PlanStore{}
}

// ReplaceAll loads a full snapshot, used once per project open.
func (s *PlanStore) ReplaceAll(project model.Project, tasks []model.Task, resources []model.Resource, allocations []model.Allocation, permission model.PermissionLevel) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := project
	s.project = &p
	s.tasks = append([]model.Task(nil), tasks...)
	s.resources = append([]model.Resource(nil), resources...)
	s.allocations = append([]model.Allocation(nil), allocations...)
	s.permission = permission
	s.recompute()
}

// Clear drops all state, used when the project is closed.
func (s *PlanStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.project = nil
	s.tasks = nil
	s.resources = nil
	s.allocations = nil
	s.permission = ""
	s.aggregates = nil
	s.lastErr = nil
	s.liveSyncDown = false
	s.accessDenied = false
}

// SetProject overwrites the project record.
func (s *PlanStore) SetProject(project model.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := project
	s.project = &p
	s.recompute()
}

// UpsertTask inserts the task if absent, matched by identifier, otherwise
// overwrites all fields in place. Applying the same record twice yields
// identical state.
func (s *PlanStore) UpsertTask(task model.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.tasks {
		if s.tasks[i].ID.Equal(task.ID) {
			s.tasks[i] = task
			s.recompute()
			return
		}
	}
	s.tasks = append(s.tasks, task)
	s.recompute()
}

// UpsertResource inserts or overwrites a resource, matched by identifier.
func (s *PlanStore) UpsertResource(resource model.Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.resources {
		if s.resources[i].ID.Equal(resource.ID) {
			s.resources[i] = resource
			s.recompute()
			return
		}
	}
	s.resources = append(s.resources, resource)
	s.recompute()
}

// UpsertAllocationByKey merges an allocation by its (resource_id, date) key.
// When a record already exists for the key its identifier is kept, unless
// the incoming record carries a confirmed identifier and the stored one is
// still pending, in which case the confirmed identifier is adopted. The
// stored record is returned.
func (s *PlanStore) UpsertAllocationByKey(allocation model.Allocation) model.Allocation {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.allocations {
		if s.allocations[i].ResourceID == allocation.ResourceID && s.allocations[i].Date == allocation.Date {
			id := s.allocations[i].ID
			if id.IsPending() && !allocation.ID.IsPending() && !allocation.ID.IsZero() {
				id = allocation.ID
			}
			allocation.ID = id
			s.allocations[i] = allocation
			s.recompute()
			return allocation
		}
	}
	s.allocations = append(s.allocations, allocation)
	s.recompute()
	return allocation
}

// ConfirmAllocationKey stores the confirmed identifier on the allocation
// currently held for the key, if any.
func (s *PlanStore) ConfirmAllocationKey(resourceID, date string, id model.RecordID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.allocations {
		if s.allocations[i].ResourceID == resourceID && s.allocations[i].Date == date {
			s.allocations[i].ID = id
			return
		}
	}
}

// ConfirmPendingTask resolves the create race for a task in one atomic step:
// when the confirmed identifier is already present (a realtime event won the
// race) the pending record is discarded; when the pending record is still
// present it is replaced in place, keeping its slice position; when neither
// is present the record was removed meanwhile and nothing happens. Exactly
// one copy survives, never zero by resurrection, never two.
func (s *PlanStore) ConfirmPendingTask(pending model.RecordID, confirmed model.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	confirmedAt := -1
	pendingAt := -1
	for i := range s.tasks {
		if s.tasks[i].ID.Equal(confirmed.ID) {
			confirmedAt = i
		}
		if s.tasks[i].ID.Equal(pending) {
			pendingAt = i
		}
	}

	switch {
	case confirmedAt >= 0 && pendingAt >= 0:
		s.tasks = append(s.tasks[:pendingAt], s.tasks[pendingAt+1:]...)
	case pendingAt >= 0:
		s.tasks[pendingAt] = confirmed
	}
	s.recompute()
}

// ConfirmPendingResource is ConfirmPendingTask for resources.
func (s *PlanStore) ConfirmPendingResource(pending model.RecordID, confirmed model.Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()

	confirmedAt := -1
	pendingAt := -1
	for i := range s.resources {
		if s.resources[i].ID.Equal(confirmed.ID) {
			confirmedAt = i
		}
		if s.resources[i].ID.Equal(pending) {
			pendingAt = i
		}
	}

	switch {
	case confirmedAt >= 0 && pendingAt >= 0:
		s.resources = append(s.resources[:pendingAt], s.resources[pendingAt+1:]...)
	case pendingAt >= 0:
		s.resources[pendingAt] = confirmed
	}
	s.recompute()
}

// RemoveTask removes the task and cascades to its resources and their
// allocations in the same step; no orphaned children remain, even
// transiently. The removed records are returned for rollback. Returns nil
// when the task is not present.
func (s *PlanStore) RemoveTask(id model.RecordID) *RemovedTaskSet {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.tasks {
		if s.tasks[i].ID.Equal(id) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}

	task := s.tasks[idx]
	s.tasks = append(s.tasks[:idx], s.tasks[idx+1:]...)
	removed := &RemovedTaskSet{Task: &task}

	kept := s.resources[:0]
	resourceIDs := make(map[string]struct{})
	for _, res := range s.resources {
		if res.TaskID == task.ID.String() {
			removed.Resources = append(removed.Resources, res)
			resourceIDs[res.ID.String()] = struct{}{}
			continue
		}
		kept = append(kept, res)
	}
	s.resources = kept

	keptAllocs := s.allocations[:0]
	for _, alloc := range s.allocations {
		if _, gone := resourceIDs[alloc.ResourceID]; gone {
			removed.Allocations = append(removed.Allocations, alloc)
			continue
		}
		keptAllocs = append(keptAllocs, alloc)
	}
	s.allocations = keptAllocs

	s.recompute()
	return removed
}

// RestoreTask reinserts everything a failed remote delete removed.
func (s *PlanStore) RestoreTask(set *RemovedTaskSet) {
	if set == nil || set.Task == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = append(s.tasks, *set.Task)
	s.resources = append(s.resources, set.Resources...)
	s.allocations = append(s.allocations, set.Allocations...)
	s.recompute()
}

// RemoveResource removes the resource and cascades to its allocations.
// Returns nil when the resource is not present.
func (s *PlanStore) RemoveResource(id model.RecordID) *RemovedResourceSet {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.resources {
		if s.resources[i].ID.Equal(id) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}

	resource := s.resources[idx]
	s.resources = append(s.resources[:idx], s.resources[idx+1:]...)
	removed := &RemovedResourceSet{Resource: &resource}

	kept := s.allocations[:0]
	for _, alloc := range s.allocations {
		if alloc.ResourceID == resource.ID.String() {
			removed.Allocations = append(removed.Allocations, alloc)
			continue
		}
		kept = append(kept, alloc)
	}
	s.allocations = kept

	s.recompute()
	return removed
}

// RestoreResource reinserts everything a failed remote delete removed.
func (s *PlanStore) RestoreResource(set *RemovedResourceSet) {
	if set == nil || set.Resource == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resources = append(s.resources, *set.Resource)
	s.allocations = append(s.allocations, set.Allocations...)
	s.recompute()
}

// RemoveAllocation removes an allocation by identifier.
func (s *PlanStore) RemoveAllocation(id model.RecordID) *model.Allocation {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.allocations {
		if s.allocations[i].ID.Equal(id) {
			removed := s.allocations[i]
			s.allocations = append(s.allocations[:i], s.allocations[i+1:]...)
			s.recompute()
			return &removed
		}
	}
	return nil
}

// RemoveAllocationByKey removes the allocation for a (resource, date) key.
func (s *PlanStore) RemoveAllocationByKey(resourceID, date string) *model.Allocation {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.allocations {
		if s.allocations[i].ResourceID == resourceID && s.allocations[i].Date == date {
			removed := s.allocations[i]
			s.allocations = append(s.allocations[:i], s.allocations[i+1:]...)
			s.recompute()
			return &removed
		}
	}
	return nil
}

// Project returns a copy of the open project, or nil.
func (s *PlanStore) Project() *model.Project {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.project == nil {
		return nil
	}
	p := *s.project
	return &p
}

// Permission returns the viewer's permission level on the open project.
func (s *PlanStore) Permission() model.PermissionLevel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.permission
}

// Tasks returns a copy of the task list in insertion order.
func (s *PlanStore) Tasks() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Task(nil), s.tasks...)
}

// Resources returns a copy of the resource list in insertion order.
func (s *PlanStore) Resources() []model.Resource {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Resource(nil), s.resources...)
}

// Allocations returns a copy of the allocation list.
func (s *PlanStore) Allocations() []model.Allocation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Allocation(nil), s.allocations...)
}

// TasksWithAggregation returns the derived per-task aggregation, sorted by
// sort order with insertion order as the tie break.
func (s *PlanStore) TasksWithAggregation() []TaskAggregate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TaskAggregate(nil), s.aggregates...)
}

// TaskByID looks a task up by raw identifier value, pending or confirmed.
func (s *PlanStore) TaskByID(id string) (model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.tasks {
		if t.ID.String() == id {
			return t, true
		}
	}
	return model.Task{}, false
}

// ResourceByID looks a resource up by raw identifier value.
func (s *PlanStore) ResourceByID(id string) (model.Resource, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.resources {
		if r.ID.String() == id {
			return r, true
		}
	}
	return model.Resource{}, false
}

// HasTask reports whether a confirmed task with the identifier is present.
func (s *PlanStore) HasTask(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.tasks {
		if !t.ID.IsPending() && t.ID.String() == id {
			return true
		}
	}
	return false
}

// HasResource reports whether a confirmed resource with the identifier is
// present.
func (s *PlanStore) HasResource(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.resources {
		if !r.ID.IsPending() && r.ID.String() == id {
			return true
		}
	}
	return false
}

// HasAllocation reports whether a confirmed allocation with the identifier
// is present.
func (s *PlanStore) HasAllocation(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.allocations {
		if !a.ID.IsPending() && a.ID.String() == id {
			return true
		}
	}
	return false
}

// FindPendingTask finds a not-yet-confirmed task that appears to represent
// the same logical entity as a remotely created one. With no shared key
// before confirmation this is a name match; see the reconciler for the
// documented limits of the heuristic.
func (s *PlanStore) FindPendingTask(name string) (model.RecordID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.tasks {
		if t.ID.IsPending() && t.Name == name {
			return t.ID, true
		}
	}
	return model.RecordID{}, false
}

// FindPendingResource finds a not-yet-confirmed resource under the same
// parent task with the same name.
func (s *PlanStore) FindPendingResource(taskID, name string) (model.RecordID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.resources {
		if r.ID.IsPending() && r.TaskID == taskID && r.Name == name {
			return r.ID, true
		}
	}
	return model.RecordID{}, false
}

// NextTaskSortOrder returns a sort order placing a new task after all
// existing ones.
func (s *PlanStore) NextTaskSortOrder() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	max := 0
	for _, t := range s.tasks {
		if t.SortOrder > max {
			max = t.SortOrder
		}
	}
	return max + 1
}

// NextResourceSortOrder returns a sort order placing a new resource after
// all existing ones of the task.
func (s *PlanStore) NextResourceSortOrder(taskID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	max := 0
	for _, r := range s.resources {
		if r.TaskID == taskID && r.SortOrder > max {
			max = r.SortOrder
		}
	}
	return max + 1
}

// SetLoading flags the initial snapshot load.
func (s *PlanStore) SetLoading(loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = loading
}

// SetLastError records the error shown to the user. Errors replace each
// other; they are not queued.
func (s *PlanStore) SetLastError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
}

// LastError returns the most recent user-visible error.
func (s *PlanStore) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// SetLiveSyncDown flags the persistent "live sync unavailable" state.
func (s *PlanStore) SetLiveSyncDown(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.liveSyncDown = down
}

// SetAccessDenied flags a project the viewer may not open.
func (s *PlanStore) SetAccessDenied(denied bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessDenied = denied
}

// Snapshot returns an immutable view of the store.
func (s *PlanStore) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Tasks:        append([]TaskAggregate(nil), s.aggregates...),
		Permission:   s.permission,
		Loading:      s.loading,
		LastError:    s.lastErr,
		LiveSyncDown: s.liveSyncDown,
		AccessDenied: s.accessDenied,
	}
	if s.project != nil {
		p := *s.project
		snap.Project = &p
	}
	return snap
}

// recompute rebuilds the per-task aggregation from scratch. It is a pure
// function of (tasks, resources, allocations); callers hold the lock.
func (s *PlanStore) recompute() {
	taskOfResource := make(map[string]string, len(s.resources))
	for _, r := range s.resources {
		taskOfResource[r.ID.String()] = r.TaskID
	}

	type fold struct {
		start string
		end   string
		total float64
	}
	folds := make(map[string]*fold, len(s.tasks))
	for _, t := range s.tasks {
		folds[t.ID.String()] = &fold{}
	}

	for _, a := range s.allocations {
		taskID, ok := taskOfResource[a.ResourceID]
		if !ok {
			continue
		}
		f, ok := folds[taskID]
		if !ok {
			continue
		}
		// Bucket keys of one resolution order chronologically as strings.
		if f.start == "" || a.Date < f.start {
			f.start = a.Date
		}
		if f.end == "" || a.Date > f.end {
			f.end = a.Date
		}
		f.total += a.Percentage
	}

	aggregates := make([]TaskAggregate, 0, len(s.tasks))
	for _, t := range s.tasks {
		f := folds[t.ID.String()]
		aggregates = append(aggregates, TaskAggregate{
			Task:        t,
			StartDate:   f.start,
			EndDate:     f.end,
			TotalEffort: f.total,
		})
	}
	sort.SliceStable(aggregates, func(i, j int) bool {
		return aggregates[i].Task.SortOrder < aggregates[j].Task.SortOrder
	})
	s.aggregates = aggregates
}
