package repository

import (
	"context"
	"net/http"

	"github.com/CeeFeS/TinyPlanvas/internal/domain/model"
	domainRepo "github.com/CeeFeS/TinyPlanvas/internal/domain/repository"
)

type allocationRepository struct {
	client *Client
}

// NewAllocationRepository creates an allocation repository.
func NewAllocationRepository(client *Client) domainRepo.AllocationRepository {
	return &allocationRepository{client: client}
}

func (r *allocationRepository) ListByResources(ctx context.Context, resourceIDs []string) ([]model.Allocation, error) {
	if len(resourceIDs) == 0 {
		return nil, nil
	}
	return listAll[model.Allocation](ctx, r.client, model.CollectionAllocations, orEq("resource_id", resourceIDs))
}

// Upsert writes the allocation for its (resource_id, date) key: the existing
// record for the key is patched, otherwise a new one is created. The store
// enforces the key's uniqueness, so a concurrent create surfaces as a
// conflict rather than a duplicate.
func (r *allocationRepository) Upsert(ctx context.Context, allocation model.Allocation) (*model.Allocation, error) {
	existing, err := r.findByKey(ctx, allocation.ResourceID, allocation.Date)
	if err != nil {
		return nil, err
	}

	allocation.ID = model.RecordID{}
	var written model.Allocation
	if existing != nil {
		err = r.client.do(ctx, http.MethodPatch,
			recordPath(model.CollectionAllocations, existing.ID.String()), nil, allocation, &written)
	} else {
		err = r.client.do(ctx, http.MethodPost,
			recordsPath(model.CollectionAllocations), nil, allocation, &written)
	}
	if err != nil {
		return nil, err
	}
	return &written, nil
}

func (r *allocationRepository) DeleteByKey(ctx context.Context, resourceID, date string) error {
	existing, err := r.findByKey(ctx, resourceID, date)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}
	return r.client.do(ctx, http.MethodDelete,
		recordPath(model.CollectionAllocations, existing.ID.String()), nil, nil, nil)
}

func (r *allocationRepository) findByKey(ctx context.Context, resourceID, date string) (*model.Allocation, error) {
	matches, err := listAll[model.Allocation](ctx, r.client, model.CollectionAllocations,
		and(eq("resource_id", resourceID), eq("date", date)))
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}
	return &matches[0], nil
}
