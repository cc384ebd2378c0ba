package repository

import (
	"context"
	"net/http"

	"github.com/CeeFeS/TinyPlanvas/internal/domain/model"
	domainRepo "github.com/CeeFeS/TinyPlanvas/internal/domain/repository"
)

type resourceRepository struct {
	client *Client
}

// NewResourceRepository creates a resource repository.
func NewResourceRepository(client *Client) domainRepo.ResourceRepository {
	return &resourceRepository{client: client}
}

func (r *resourceRepository) ListByTasks(ctx context.Context, taskIDs []string) ([]model.Resource, error) {
	if len(taskIDs) == 0 {
		return nil, nil
	}
	return listAll[model.Resource](ctx, r.client, model.CollectionResources, orEq("task_id", taskIDs))
}

func (r *resourceRepository) Create(ctx context.Context, resource model.Resource) (*model.Resource, error) {
	resource.ID = model.RecordID{}
	var created model.Resource
	if err := r.client.do(ctx, http.MethodPost, recordsPath(model.CollectionResources), nil, resource, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *resourceRepository) Update(ctx context.Context, id string, update model.ResourceUpdate) (*model.Resource, error) {
	var updated model.Resource
	if err := r.client.do(ctx, http.MethodPatch, recordPath(model.CollectionResources, id), nil, update, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *resourceRepository) Delete(ctx context.Context, id string) error {
	return r.client.do(ctx, http.MethodDelete, recordPath(model.CollectionResources, id), nil, nil, nil)
}
