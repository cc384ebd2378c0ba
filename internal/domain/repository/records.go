package repository

import (
	"context"

	"github.com/CeeFeS/TinyPlanvas/internal/domain/model"
)

// ProjectRepository accesses the projects collection.
type ProjectRepository interface {
	ListOwn(ctx context.Context) ([]model.Project, error)
	Get(ctx context.Context, id string) (*model.Project, error)
	Create(ctx context.Context, project model.Project) (*model.Project, error)
	Update(ctx context.Context, id string, update model.ProjectUpdate) (*model.Project, error)
	Delete(ctx context.Context, id string) error
}

// TaskRepository accesses the tasks collection.
type TaskRepository interface {
	ListByProject(ctx context.Context, projectID string) ([]model.Task, error)
	Create(ctx context.Context, task model.Task) (*model.Task, error)
	Update(ctx context.Context, id string, update model.TaskUpdate) (*model.Task, error)
	Delete(ctx context.Context, id string) error
}

// ResourceRepository accesses the resources collection.
type ResourceRepository interface {
	ListByTasks(ctx context.Context, taskIDs []string) ([]model.Resource, error)
	Create(ctx context.Context, resource model.Resource) (*model.Resource, error)
	Update(ctx context.Context, id string, update model.ResourceUpdate) (*model.Resource, error)
	Delete(ctx context.Context, id string) error
}

// AllocationRepository accesses the allocations collection. Writes are keyed
// by (resource_id, date); Upsert either updates the existing record for the
// key or creates one.
type AllocationRepository interface {
	ListByResources(ctx context.Context, resourceIDs []string) ([]model.Allocation, error)
	Upsert(ctx context.Context, allocation model.Allocation) (*model.Allocation, error)
	DeleteByKey(ctx context.Context, resourceID, date string) error
}

// PresenceRepository accesses the presence collection, keyed by session id.
type PresenceRepository interface {
	ListByProject(ctx context.Context, projectID string) ([]model.Presence, error)
	Upsert(ctx context.Context, presence model.Presence) (*model.Presence, error)
	DeleteBySession(ctx context.Context, sessionID string) error
}

// PermissionRepository accesses the permissions collection. Get returns
// domain/errors.ErrRecordNotFound when the user has no permission row.
type PermissionRepository interface {
	Get(ctx context.Context, userID, projectID string) (*model.Permission, error)
}
