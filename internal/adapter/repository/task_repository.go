package repository

import (
	"context"
	"net/http"

	"github.com/CeeFeS/TinyPlanvas/internal/domain/model"
	domainRepo "github.com/CeeFeS/TinyPlanvas/internal/domain/repository"
)

type taskRepository struct {
	client *Client
}

// NewTaskRepository creates a task repository.
func NewTaskRepository(client *Client) domainRepo.TaskRepository {
	return &taskRepository{client: client}
}

func (r *taskRepository) ListByProject(ctx context.Context, projectID string) ([]model.Task, error) {
	return listAll[model.Task](ctx, r.client, model.CollectionTasks, eq("project_id", projectID))
}

func (r *taskRepository) Create(ctx context.Context, task model.Task) (*model.Task, error) {
	// The pending identifier is local only; the store assigns the real one.
	task.ID = model.RecordID{}
	var created model.Task
	if err := r.client.do(ctx, http.MethodPost, recordsPath(model.CollectionTasks), nil, task, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *taskRepository) Update(ctx context.Context, id string, update model.TaskUpdate) (*model.Task, error) {
	var updated model.Task
	if err := r.client.do(ctx, http.MethodPatch, recordPath(model.CollectionTasks, id), nil, update, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *taskRepository) Delete(ctx context.Context, id string) error {
	return r.client.do(ctx, http.MethodDelete, recordPath(model.CollectionTasks, id), nil, nil, nil)
}
