package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	domainErrors "github.com/CeeFeS/TinyPlanvas/internal/domain/errors"
	"github.com/CeeFeS/TinyPlanvas/internal/domain/model"
	domainRepo "github.com/CeeFeS/TinyPlanvas/internal/domain/repository"
)

// Brush is the currently selected paint configuration. Painting with the
// brush stamps its percentage and color onto every cell touched.
type Brush struct {
	Percentage float64
	Color      string
}

// DefaultBrush is the brush selected when a session opens.
var DefaultBrush = Brush{Percentage: 100, Color: "#30A14E"}

// SessionSnapshot is the full view a renderer needs for one frame: the plan
// state plus the live collaborator list and the selected brush.
type SessionSnapshot struct {
	Snapshot
	Collaborators []model.Presence
	Brush         Brush
}

// PlanSession ties the store, the mutation engine, the reconciler and the
// presence tracker together for one open project. Mutations are gated on the
// viewer's permission level; viewers with read-only access get their edits
// rejected locally before any store change happens.
type PlanSession struct {
	store       *PlanStore
	mutations   *MutationService
	reconciler  *Reconciler
	presence    *PresenceService
	projects    domainRepo.ProjectRepository
	tasks       domainRepo.TaskRepository
	resources   domainRepo.ResourceRepository
	allocations domainRepo.AllocationRepository
	permissions domainRepo.PermissionRepository
	logger      *zap.Logger

	userID   string
	userName string

	mu    sync.Mutex
	brush Brush
}

// NewPlanSession wires a session for the given viewer.
func NewPlanSession(
	store *PlanStore,
	mutations *MutationService,
	reconciler *Reconciler,
	presence *PresenceService,
	projects domainRepo.ProjectRepository,
	tasks domainRepo.TaskRepository,
	resources domainRepo.ResourceRepository,
	allocations domainRepo.AllocationRepository,
	permissions domainRepo.PermissionRepository,
	logger *zap.Logger,
	userID, userName string,
) *PlanSession {
	return &PlanSession{
		store:       store,
		mutations:   mutations,
		reconciler:  reconciler,
		presence:    presence,
		projects:    projects,
		tasks:       tasks,
		resources:   resources,
		allocations: allocations,
		permissions: permissions,
		logger:      logger,
		userID:      userID,
		userName:    userName,
		brush:       DefaultBrush,
	}
}

// Open loads the project snapshot, resolves the viewer's permission and
// starts live sync. A denied permission aborts the open; a failed realtime
// subscription does not — the session degrades to the "live sync
// unavailable" state and keeps working on local reads and remote writes.
func (s *PlanSession) Open(ctx context.Context, projectID string) error {
	s.store.SetLoading(true)
	defer s.store.SetLoading(false)

	project, err := s.projects.Get(ctx, projectID)
	if err != nil {
		loadErr := domainErrors.NewLoadError(string(model.CollectionProjects), err)
		s.store.SetLastError(loadErr)
		return loadErr
	}

	permission, err := s.resolvePermission(ctx, project)
	if err != nil {
		return err
	}

	tasks, err := s.tasks.ListByProject(ctx, projectID)
	if err != nil {
		loadErr := domainErrors.NewLoadError(string(model.CollectionTasks), err)
		s.store.SetLastError(loadErr)
		return loadErr
	}
	taskIDs := make([]string, 0, len(tasks))
	for _, t := range tasks {
		taskIDs = append(taskIDs, t.ID.String())
	}

	var resources []model.Resource
	if len(taskIDs) > 0 {
		resources, err = s.resources.ListByTasks(ctx, taskIDs)
		if err != nil {
			loadErr := domainErrors.NewLoadError(string(model.CollectionResources), err)
			s.store.SetLastError(loadErr)
			return loadErr
		}
	}
	resourceIDs := make([]string, 0, len(resources))
	for _, r := range resources {
		resourceIDs = append(resourceIDs, r.ID.String())
	}

	var allocations []model.Allocation
	if len(resourceIDs) > 0 {
		allocations, err = s.allocations.ListByResources(ctx, resourceIDs)
		if err != nil {
			loadErr := domainErrors.NewLoadError(string(model.CollectionAllocations), err)
			s.store.SetLastError(loadErr)
			return loadErr
		}
	}

	s.store.ReplaceAll(*project, tasks, resources, allocations, permission)

	if err := s.reconciler.Start(ctx); err != nil {
		s.store.SetLiveSyncDown(true)
		s.store.SetLastError(domainErrors.NewLiveSyncUnavailableError(err))
		s.logger.Warn("live sync unavailable, continuing without realtime updates",
			zap.String("project_id", projectID), zap.Error(err))
	}
	return nil
}

// resolvePermission determines the viewer's level: the owner is implicit,
// everyone else needs a permission row. No row means the project must not be
// shown at all.
func (s *PlanSession) resolvePermission(ctx context.Context, project *model.Project) (model.PermissionLevel, error) {
	if project.OwnerID == s.userID {
		return model.PermissionOwner, nil
	}

	permission, err := s.permissions.Get(ctx, s.userID, project.ID.String())
	if err != nil {
		if errors.Is(err, domainErrors.ErrRecordNotFound) {
			s.store.SetAccessDenied(true)
			denied := domainErrors.NewAccessDeniedError(project.ID.String(), err)
			s.store.SetLastError(denied)
			return "", denied
		}
		loadErr := domainErrors.NewLoadError(string(model.CollectionPermissions), err)
		s.store.SetLastError(loadErr)
		return "", loadErr
	}
	return permission.Level, nil
}

// StartPresence joins the collaborator roster. Separate from Open so a
// caller can load a plan without announcing itself.
func (s *PlanSession) StartPresence(ctx context.Context, projectID string) {
	s.presence.Start(ctx, projectID, s.userName)
}

// Close tears the session down: live sync stops, the presence record is
// withdrawn and the store is cleared.
func (s *PlanSession) Close(ctx context.Context) {
	s.reconciler.Stop()
	s.presence.Stop(ctx)
	s.store.Clear()
}

// SetBrush selects the paint configuration for subsequent strokes.
func (s *PlanSession) SetBrush(brush Brush) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.brush = brush
}

// Brush returns the currently selected brush.
func (s *PlanSession) Brush() Brush {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.brush
}

// Snapshot returns everything a renderer needs for one frame.
func (s *PlanSession) Snapshot() SessionSnapshot {
	return SessionSnapshot{
		Snapshot:      s.store.Snapshot(),
		Collaborators: s.presence.Others(),
		Brush:         s.Brush(),
	}
}

// CreateTask creates a task; requires edit permission.
func (s *PlanSession) CreateTask(ctx context.Context, input CreateTaskInput) (*model.Task, error) {
	if err := s.requireEdit(); err != nil {
		return nil, err
	}
	return s.mutations.CreateTask(ctx, input)
}

// UpdateTask updates a task; requires edit permission.
func (s *PlanSession) UpdateTask(ctx context.Context, id model.RecordID, update model.TaskUpdate) error {
	if err := s.requireEdit(); err != nil {
		return err
	}
	return s.mutations.UpdateTask(ctx, id, update)
}

// DeleteTask deletes a task with its cascade; requires edit permission.
func (s *PlanSession) DeleteTask(ctx context.Context, id model.RecordID) error {
	if err := s.requireEdit(); err != nil {
		return err
	}
	return s.mutations.DeleteTask(ctx, id)
}

// CreateResource creates a resource row; requires edit permission.
func (s *PlanSession) CreateResource(ctx context.Context, input CreateResourceInput) (*model.Resource, error) {
	if err := s.requireEdit(); err != nil {
		return nil, err
	}
	return s.mutations.CreateResource(ctx, input)
}

// UpdateResource updates a resource; requires edit permission.
func (s *PlanSession) UpdateResource(ctx context.Context, id model.RecordID, update model.ResourceUpdate) error {
	if err := s.requireEdit(); err != nil {
		return err
	}
	return s.mutations.UpdateResource(ctx, id, update)
}

// DeleteResource deletes a resource with its allocations; requires edit
// permission.
func (s *PlanSession) DeleteResource(ctx context.Context, id model.RecordID) error {
	if err := s.requireEdit(); err != nil {
		return err
	}
	return s.mutations.DeleteResource(ctx, id)
}

// Paint stamps the given input onto the cell containing at.
func (s *PlanSession) Paint(ctx context.Context, input PaintInput, at time.Time) (*model.Allocation, error) {
	if err := s.requireEdit(); err != nil {
		return nil, err
	}
	return s.mutations.Paint(ctx, input, at)
}

// PaintWithBrush stamps the selected brush onto the cell containing at.
func (s *PlanSession) PaintWithBrush(ctx context.Context, resourceID string, at time.Time) (*model.Allocation, error) {
	brush := s.Brush()
	return s.Paint(ctx, PaintInput{
		ResourceID: resourceID,
		Percentage: brush.Percentage,
		Color:      brush.Color,
	}, at)
}

// Erase clears the cell containing at; requires edit permission.
func (s *PlanSession) Erase(ctx context.Context, resourceID string, at time.Time) error {
	if err := s.requireEdit(); err != nil {
		return err
	}
	return s.mutations.Erase(ctx, resourceID, at)
}

// UpdateProject changes project fields; requires edit permission.
func (s *PlanSession) UpdateProject(ctx context.Context, update model.ProjectUpdate) error {
	if err := s.requireEdit(); err != nil {
		return err
	}
	return s.mutations.UpdateProject(ctx, update)
}

func (s *PlanSession) requireEdit() error {
	if s.store.Permission().CanEdit() {
		return nil
	}
	return domainErrors.NewValidationError(string(model.CollectionPermissions),
		fmt.Errorf("viewer permission does not allow edits"))
}
