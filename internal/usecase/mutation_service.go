package usecase

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	domainErrors "github.com/CeeFeS/TinyPlanvas/internal/domain/errors"
	"github.com/CeeFeS/TinyPlanvas/internal/domain/model"
	domainRepo "github.com/CeeFeS/TinyPlanvas/internal/domain/repository"
)

// Colors accepted for painted cells: #RGB up to #RRGGBBAA.
var colorHexPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{3,8}$`)

// newValidator builds the input validator shared by the engine.
func newValidator() *validator.Validate {
	v := validator.New()
	// Registration only fails for an empty tag name.
	_ = v.RegisterValidation("colorhex", func(fl validator.FieldLevel) bool {
		return colorHexPattern.MatchString(fl.Field().String())
	})
	return v
}

// CreateTaskInput is the validated input for a new task.
type CreateTaskInput struct {
	DisplayID string `validate:"required"`
	Name      string `validate:"required"`
}

// CreateResourceInput is the validated input for a new resource.
type CreateResourceInput struct {
	TaskID string `validate:"required"`
	Name   string `validate:"required"`
}

// PaintInput is the validated input for painting one cell.
type PaintInput struct {
	ResourceID string  `validate:"required"`
	Percentage float64 `validate:"gte=0,lte=100"`
	Color      string  `validate:"required,colorhex"`
}

// MutationService is the optimistic mutation engine: every edit is applied
// to the PlanStore immediately and reconciled or rolled back when the
// asynchronous remote call completes. Handlers assume arbitrary interleaving
// between issuance and resolution; merges are keyed on identifiers, never on
// call order.
type MutationService struct {
	store       *PlanStore
	projects    domainRepo.ProjectRepository
	tasks       domainRepo.TaskRepository
	resources   domainRepo.ResourceRepository
	allocations domainRepo.AllocationRepository
	validate    *validator.Validate
	logger      *zap.Logger

	// dispatch runs the remote half of a mutation. Tests replace it with an
	// inline runner for deterministic ordering.
	dispatch func(fn func())
}

// NewMutationService creates a new mutation engine.
func NewMutationService(
	store *PlanStore,
	projects domainRepo.ProjectRepository,
	tasks domainRepo.TaskRepository,
	resources domainRepo.ResourceRepository,
	allocations domainRepo.AllocationRepository,
	logger *zap.Logger,
) *MutationService {
	return &MutationService{
		store:       store,
		projects:    projects,
		tasks:       tasks,
		resources:   resources,
		allocations: allocations,
		validate:    newValidator(),
		logger:      logger,
		dispatch:    func(fn func()) { go fn() },
	}
}

// CreateTask inserts a provisional task immediately and confirms it against
// the record store in the background. The returned record carries a pending
// identifier until confirmation.
func (s *MutationService) CreateTask(ctx context.Context, input CreateTaskInput) (*model.Task, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, domainErrors.NewValidationError(string(model.CollectionTasks), err)
	}
	project := s.store.Project()
	if project == nil {
		return nil, domainErrors.NewValidationError(string(model.CollectionTasks), domainErrors.ErrRecordNotFound)
	}

	task := model.Task{
		ID:        model.NewPendingID(),
		ProjectID: project.ID.String(),
		DisplayID: input.DisplayID,
		Name:      input.Name,
		SortOrder: s.store.NextTaskSortOrder(),
	}
	s.store.UpsertTask(task)

	s.dispatch(func() {
		confirmed, err := s.tasks.Create(ctx, task)
		if err != nil {
			s.store.RemoveTask(task.ID)
			s.fail(model.CollectionTasks, task.ID.String(), err)
			return
		}
		s.store.ConfirmPendingTask(task.ID, *confirmed)
		s.logger.Debug("task confirmed",
			zap.String("pending_id", task.ID.String()),
			zap.String("record_id", confirmed.ID.String()))
	})
	return &task, nil
}

// UpdateTask applies the field delta locally and reverts to the prior values
// if the remote update fails. Updates targeting a record that has not been
// confirmed yet are silently dropped: the store has no matching row.
func (s *MutationService) UpdateTask(ctx context.Context, id model.RecordID, update model.TaskUpdate) error {
	if id.IsPending() {
		s.logger.Debug("dropping update of unconfirmed task", zap.String("pending_id", id.String()))
		return nil
	}
	prior, ok := s.store.TaskByID(id.String())
	if !ok {
		return domainErrors.NewValidationError(string(model.CollectionTasks), domainErrors.ErrRecordNotFound)
	}

	applied := prior
	if update.DisplayID != nil {
		applied.DisplayID = *update.DisplayID
	}
	if update.Name != nil {
		applied.Name = *update.Name
	}
	if update.SortOrder != nil {
		applied.SortOrder = *update.SortOrder
	}
	s.store.UpsertTask(applied)

	s.dispatch(func() {
		confirmed, err := s.tasks.Update(ctx, id.String(), update)
		if err != nil {
			s.store.UpsertTask(prior)
			s.fail(model.CollectionTasks, id.String(), err)
			return
		}
		s.store.UpsertTask(*confirmed)
	})
	return nil
}

// DeleteTask removes the task with its cascade locally and reinserts the
// whole set if the remote delete fails.
func (s *MutationService) DeleteTask(ctx context.Context, id model.RecordID) error {
	if id.IsPending() {
		s.logger.Debug("dropping delete of unconfirmed task", zap.String("pending_id", id.String()))
		return nil
	}
	removed := s.store.RemoveTask(id)
	if removed == nil {
		return nil
	}

	s.dispatch(func() {
		if err := s.tasks.Delete(ctx, id.String()); err != nil {
			s.store.RestoreTask(removed)
			s.fail(model.CollectionTasks, id.String(), err)
		}
	})
	return nil
}

// CreateResource inserts a provisional resource under a confirmed task.
// Creating under a task that is itself unconfirmed is silently dropped,
// since the remote call would reference an identifier the record store has
// never seen.
func (s *MutationService) CreateResource(ctx context.Context, input CreateResourceInput) (*model.Resource, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, domainErrors.NewValidationError(string(model.CollectionResources), err)
	}
	parent, ok := s.store.TaskByID(input.TaskID)
	if !ok {
		return nil, domainErrors.NewValidationError(string(model.CollectionResources), domainErrors.ErrRecordNotFound)
	}
	if parent.ID.IsPending() {
		s.logger.Debug("dropping resource create under unconfirmed task", zap.String("task_id", input.TaskID))
		return nil, nil
	}

	resource := model.Resource{
		ID:        model.NewPendingID(),
		TaskID:    parent.ID.String(),
		Name:      input.Name,
		SortOrder: s.store.NextResourceSortOrder(parent.ID.String()),
	}
	s.store.UpsertResource(resource)

	s.dispatch(func() {
		confirmed, err := s.resources.Create(ctx, resource)
		if err != nil {
			s.store.RemoveResource(resource.ID)
			s.fail(model.CollectionResources, resource.ID.String(), err)
			return
		}
		s.store.ConfirmPendingResource(resource.ID, *confirmed)
	})
	return &resource, nil
}

// UpdateResource applies the field delta locally, reverting on remote failure.
func (s *MutationService) UpdateResource(ctx context.Context, id model.RecordID, update model.ResourceUpdate) error {
	if id.IsPending() {
		s.logger.Debug("dropping update of unconfirmed resource", zap.String("pending_id", id.String()))
		return nil
	}
	prior, ok := s.store.ResourceByID(id.String())
	if !ok {
		return domainErrors.NewValidationError(string(model.CollectionResources), domainErrors.ErrRecordNotFound)
	}

	applied := prior
	if update.Name != nil {
		applied.Name = *update.Name
	}
	if update.SortOrder != nil {
		applied.SortOrder = *update.SortOrder
	}
	s.store.UpsertResource(applied)

	s.dispatch(func() {
		confirmed, err := s.resources.Update(ctx, id.String(), update)
		if err != nil {
			s.store.UpsertResource(prior)
			s.fail(model.CollectionResources, id.String(), err)
			return
		}
		s.store.UpsertResource(*confirmed)
	})
	return nil
}

// DeleteResource removes the resource with its allocations locally and
// reinserts them if the remote delete fails.
func (s *MutationService) DeleteResource(ctx context.Context, id model.RecordID) error {
	if id.IsPending() {
		s.logger.Debug("dropping delete of unconfirmed resource", zap.String("pending_id", id.String()))
		return nil
	}
	removed := s.store.RemoveResource(id)
	if removed == nil {
		return nil
	}

	s.dispatch(func() {
		if err := s.resources.Delete(ctx, id.String()); err != nil {
			s.store.RestoreResource(removed)
			s.fail(model.CollectionResources, id.String(), err)
		}
	})
	return nil
}

// Paint upserts the allocation for the bucket containing at, keyed by
// (resource, bucket). A failed remote write surfaces an error but the local
// paint deliberately stays: the user is likely mid-stroke across many cells,
// and a realtime refresh corrects the rare dangling cell later.
func (s *MutationService) Paint(ctx context.Context, input PaintInput, at time.Time) (*model.Allocation, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, domainErrors.NewValidationError(string(model.CollectionAllocations), err)
	}
	project := s.store.Project()
	if project == nil {
		return nil, domainErrors.NewValidationError(string(model.CollectionAllocations), domainErrors.ErrRecordNotFound)
	}
	resource, ok := s.store.ResourceByID(input.ResourceID)
	if !ok {
		return nil, domainErrors.NewValidationError(string(model.CollectionAllocations), domainErrors.ErrRecordNotFound)
	}
	if resource.ID.IsPending() {
		s.logger.Debug("dropping paint on unconfirmed resource", zap.String("resource_id", input.ResourceID))
		return nil, nil
	}

	bucket := model.BucketKey(at, project.Resolution)
	stored := s.store.UpsertAllocationByKey(model.Allocation{
		ID:         model.NewPendingID(),
		ResourceID: resource.ID.String(),
		Date:       bucket,
		Percentage: input.Percentage,
		Color:      input.Color,
	})

	s.dispatch(func() {
		confirmed, err := s.allocations.Upsert(ctx, model.Allocation{
			ResourceID: stored.ResourceID,
			Date:       stored.Date,
			Percentage: stored.Percentage,
			Color:      stored.Color,
		})
		if err != nil {
			// No rollback: see above.
			s.fail(model.CollectionAllocations, stored.ResourceID+"/"+stored.Date, err)
			return
		}
		s.store.ConfirmAllocationKey(stored.ResourceID, stored.Date, confirmed.ID)
	})
	return &stored, nil
}

// Erase removes the allocation for the bucket containing at. Like Paint it
// does not restore the cell when the remote delete fails.
func (s *MutationService) Erase(ctx context.Context, resourceID string, at time.Time) error {
	project := s.store.Project()
	if project == nil {
		return domainErrors.NewValidationError(string(model.CollectionAllocations), domainErrors.ErrRecordNotFound)
	}
	resource, ok := s.store.ResourceByID(resourceID)
	if !ok || resource.ID.IsPending() {
		return nil
	}

	bucket := model.BucketKey(at, project.Resolution)
	removed := s.store.RemoveAllocationByKey(resource.ID.String(), bucket)
	if removed == nil {
		return nil
	}

	s.dispatch(func() {
		if err := s.allocations.DeleteByKey(ctx, resource.ID.String(), bucket); err != nil {
			s.fail(model.CollectionAllocations, resource.ID.String()+"/"+bucket, err)
		}
	})
	return nil
}

// UpdateProject applies project field changes locally, reverting on remote
// failure.
func (s *MutationService) UpdateProject(ctx context.Context, update model.ProjectUpdate) error {
	prior := s.store.Project()
	if prior == nil {
		return domainErrors.NewValidationError(string(model.CollectionProjects), domainErrors.ErrRecordNotFound)
	}
	if update.Resolution != nil && !update.Resolution.Valid() {
		return domainErrors.NewValidationError(string(model.CollectionProjects),
			fmt.Errorf("invalid resolution %q", *update.Resolution))
	}

	applied := *prior
	if update.Name != nil {
		applied.Name = *update.Name
	}
	if update.Resolution != nil {
		applied.Resolution = *update.Resolution
	}
	if update.StartDate != nil {
		applied.StartDate = *update.StartDate
	}
	if update.EndDate != nil {
		applied.EndDate = *update.EndDate
	}
	s.store.SetProject(applied)

	s.dispatch(func() {
		confirmed, err := s.projects.Update(ctx, prior.ID.String(), update)
		if err != nil {
			s.store.SetProject(*prior)
			s.fail(model.CollectionProjects, prior.ID.String(), err)
			return
		}
		s.store.SetProject(*confirmed)
	})
	return nil
}

// fail records a remote failure as the user-visible error.
func (s *MutationService) fail(collection model.Collection, recordID string, err error) {
	syncErr := domainErrors.NewRemoteWriteError(string(collection), recordID, err)
	s.store.SetLastError(syncErr)
	s.logger.Warn("remote write failed",
		zap.String("collection", string(collection)),
		zap.String("record_id", recordID),
		zap.Error(err))
}
