package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	domainErrors "github.com/CeeFeS/TinyPlanvas/internal/domain/errors"
	"github.com/CeeFeS/TinyPlanvas/internal/domain/model"
	domainRepo "github.com/CeeFeS/TinyPlanvas/internal/domain/repository"
)

// ProjectDirectory lists and manages the viewer's own projects, outside of
// any open plan session. Unlike the in-session mutations these calls are
// plain request/response; there is nothing to apply optimistically.
type ProjectDirectory struct {
	projects domainRepo.ProjectRepository
	logger   *zap.Logger
	now      func() time.Time
}

// NewProjectDirectory creates a project directory.
func NewProjectDirectory(projects domainRepo.ProjectRepository, logger *zap.Logger) *ProjectDirectory {
	return &ProjectDirectory{
		projects: projects,
		logger:   logger,
		now:      time.Now,
	}
}

// List returns the projects owned by or shared with the viewer.
func (d *ProjectDirectory) List(ctx context.Context) ([]model.Project, error) {
	projects, err := d.projects.ListOwn(ctx)
	if err != nil {
		return nil, domainErrors.NewLoadError(string(model.CollectionProjects), err)
	}
	return projects, nil
}

// Create creates a new project. An empty resolution defaults to month and
// an empty date range defaults to the current calendar year.
func (d *ProjectDirectory) Create(ctx context.Context, name string, resolution model.Resolution) (*model.Project, error) {
	if resolution == "" {
		resolution = model.ResolutionMonth
	}
	if !resolution.Valid() {
		return nil, domainErrors.NewValidationError(string(model.CollectionProjects),
			fmt.Errorf("invalid resolution %q", resolution))
	}

	year := d.now().Year()
	project := model.Project{
		Name:       name,
		Resolution: resolution,
		StartDate:  time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC).Format(model.DateLayout),
		EndDate:    time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC).Format(model.DateLayout),
	}

	created, err := d.projects.Create(ctx, project)
	if err != nil {
		return nil, domainErrors.NewRemoteWriteError(string(model.CollectionProjects), "", err)
	}
	d.logger.Info("project created",
		zap.String("project_id", created.ID.String()),
		zap.String("resolution", string(created.Resolution)))
	return created, nil
}

// Delete removes a project the viewer owns.
func (d *ProjectDirectory) Delete(ctx context.Context, id string) error {
	if err := d.projects.Delete(ctx, id); err != nil {
		return domainErrors.NewRemoteWriteError(string(model.CollectionProjects), id, err)
	}
	return nil
}
