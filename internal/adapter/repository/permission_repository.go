package repository

import (
	"context"

	domainErrors "github.com/CeeFeS/TinyPlanvas/internal/domain/errors"
	"github.com/CeeFeS/TinyPlanvas/internal/domain/model"
	domainRepo "github.com/CeeFeS/TinyPlanvas/internal/domain/repository"
	pkgErrors "github.com/CeeFeS/TinyPlanvas/pkg/errors"
)

type permissionRepository struct {
	client *Client
}

// NewPermissionRepository creates a permission repository.
func NewPermissionRepository(client *Client) domainRepo.PermissionRepository {
	return &permissionRepository{client: client}
}

// Get returns the permission row for (user, project), or ErrRecordNotFound
// when none exists.
func (r *permissionRepository) Get(ctx context.Context, userID, projectID string) (*model.Permission, error) {
	matches, err := listAll[model.Permission](ctx, r.client, model.CollectionPermissions,
		and(eq("user_id", userID), eq("project_id", projectID)))
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, pkgErrors.NewAppError(pkgErrors.ErrNotFound, "no permission for project",
			domainErrors.ErrRecordNotFound)
	}
	return &matches[0], nil
}
