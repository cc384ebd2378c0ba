package repository

import (
	"context"
	"net/http"

	"github.com/CeeFeS/TinyPlanvas/internal/domain/model"
	domainRepo "github.com/CeeFeS/TinyPlanvas/internal/domain/repository"
)

// projectRepository implements repository.ProjectRepository over the record
// store's HTTP API.
type projectRepository struct {
	client *Client
}

// NewProjectRepository creates a project repository.
func NewProjectRepository(client *Client) domainRepo.ProjectRepository {
	return &projectRepository{client: client}
}

// ListOwn lists the projects visible to the authenticated user. The store's
// access rules scope the result; no client-side filter is needed.
func (r *projectRepository) ListOwn(ctx context.Context) ([]model.Project, error) {
	return listAll[model.Project](ctx, r.client, model.CollectionProjects, "")
}

func (r *projectRepository) Get(ctx context.Context, id string) (*model.Project, error) {
	var project model.Project
	if err := r.client.do(ctx, http.MethodGet, recordPath(model.CollectionProjects, id), nil, nil, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *projectRepository) Create(ctx context.Context, project model.Project) (*model.Project, error) {
	var created model.Project
	if err := r.client.do(ctx, http.MethodPost, recordsPath(model.CollectionProjects), nil, project, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *projectRepository) Update(ctx context.Context, id string, update model.ProjectUpdate) (*model.Project, error) {
	var updated model.Project
	if err := r.client.do(ctx, http.MethodPatch, recordPath(model.CollectionProjects, id), nil, update, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *projectRepository) Delete(ctx context.Context, id string) error {
	return r.client.do(ctx, http.MethodDelete, recordPath(model.CollectionProjects, id), nil, nil, nil)
}
