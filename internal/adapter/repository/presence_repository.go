package repository

import (
	"context"
	"net/http"

	"github.com/CeeFeS/TinyPlanvas/internal/domain/model"
	domainRepo "github.com/CeeFeS/TinyPlanvas/internal/domain/repository"
)

type presenceRepository struct {
	client *Client
}

// NewPresenceRepository creates a presence repository.
func NewPresenceRepository(client *Client) domainRepo.PresenceRepository {
	return &presenceRepository{client: client}
}

func (r *presenceRepository) ListByProject(ctx context.Context, projectID string) ([]model.Presence, error) {
	return listAll[model.Presence](ctx, r.client, model.CollectionPresence, eq("project_id", projectID))
}

// Upsert writes the presence record for its session id, patching the
// existing row when the session already announced itself.
func (r *presenceRepository) Upsert(ctx context.Context, presence model.Presence) (*model.Presence, error) {
	matches, err := listAll[model.Presence](ctx, r.client, model.CollectionPresence,
		eq("session_id", presence.SessionID))
	if err != nil {
		return nil, err
	}

	presence.ID = model.RecordID{}
	var written model.Presence
	if len(matches) > 0 {
		err = r.client.do(ctx, http.MethodPatch,
			recordPath(model.CollectionPresence, matches[0].ID.String()), nil, presence, &written)
	} else {
		err = r.client.do(ctx, http.MethodPost,
			recordsPath(model.CollectionPresence), nil, presence, &written)
	}
	if err != nil {
		return nil, err
	}
	return &written, nil
}

func (r *presenceRepository) DeleteBySession(ctx context.Context, sessionID string) error {
	matches, err := listAll[model.Presence](ctx, r.client, model.CollectionPresence,
		eq("session_id", sessionID))
	if err != nil {
		return err
	}
	for _, match := range matches {
		if err := r.client.do(ctx, http.MethodDelete,
			recordPath(model.CollectionPresence, match.ID.String()), nil, nil, nil); err != nil {
			return err
		}
	}
	return nil
}
