package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	domainErrors "github.com/CeeFeS/TinyPlanvas/internal/domain/errors"
	"github.com/CeeFeS/TinyPlanvas/internal/domain/model"
)

func TestDirectoryCreateDefaultsToMonthAndCurrentYear(t *testing.T) {
	projects := &mockProjectRepo{}
	directory := NewProjectDirectory(projects, testLogger())
	directory.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }

	projects.On("Create", mock.Anything, mock.MatchedBy(func(p model.Project) bool {
		return p.Resolution == model.ResolutionMonth &&
			p.StartDate == "2024-01-01" && p.EndDate == "2024-12-31"
	})).Return(&model.Project{ID: model.ConfirmedID("p1"), Name: "Roadmap", Resolution: model.ResolutionMonth}, nil)

	created, err := directory.Create(context.Background(), "Roadmap", "")
	require.NoError(t, err)
	assert.Equal(t, "p1", created.ID.String())
	projects.AssertExpectations(t)
}

func TestDirectoryCreateRejectsUnknownResolution(t *testing.T) {
	projects := &mockProjectRepo{}
	directory := NewProjectDirectory(projects, testLogger())

	_, err := directory.Create(context.Background(), "Roadmap", model.Resolution("quarter"))
	var syncErr *domainErrors.SyncError
	require.ErrorAs(t, err, &syncErr)
	assert.Equal(t, domainErrors.ErrTypeValidationFailed, syncErr.Type)
	projects.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestDirectoryListWrapsLoadFailure(t *testing.T) {
	projects := &mockProjectRepo{}
	directory := NewProjectDirectory(projects, testLogger())
	projects.On("ListOwn", mock.Anything).Return(nil, assert.AnError)

	_, err := directory.List(context.Background())
	var syncErr *domainErrors.SyncError
	require.ErrorAs(t, err, &syncErr)
	assert.Equal(t, domainErrors.ErrTypeLoadFailed, syncErr.Type)
}

func TestDirectoryDeleteWrapsWriteFailure(t *testing.T) {
	projects := &mockProjectRepo{}
	directory := NewProjectDirectory(projects, testLogger())
	projects.On("Delete", mock.Anything, "p1").Return(assert.AnError)

	err := directory.Delete(context.Background(), "p1")
	var syncErr *domainErrors.SyncError
	require.ErrorAs(t, err, &syncErr)
	assert.Equal(t, domainErrors.ErrTypeRemoteWriteFailed, syncErr.Type)
}
