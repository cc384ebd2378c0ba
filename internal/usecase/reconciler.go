package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/CeeFeS/TinyPlanvas/internal/domain/model"
	domainRepo "github.com/CeeFeS/TinyPlanvas/internal/domain/repository"
)

// Collections the reconciler consumes. Presence has its own subscriber in
// the PresenceService.
var reconciledCollections = []model.Collection{
	model.CollectionTasks,
	model.CollectionResources,
	model.CollectionAllocations,
}

const (
	// A resource or allocation event can arrive before its parent's create
	// event is processed; such events are retried a bounded number of times
	// instead of being dropped.
	defaultRetryDelay  = 250 * time.Millisecond
	defaultMaxAttempts = 8
)

// Reconciler merges realtime change events from other collaborators into
// the PlanStore without conflicting with in-flight optimistic mutations.
// Membership is checked against the store at processing time, so the
// parent-id sets are always as fresh as the store's task and resource lists.
type Reconciler struct {
	store  *PlanStore
	source domainRepo.EventSource
	logger *zap.Logger

	retryDelay  time.Duration
	maxAttempts int
	// schedule defers a retry; tests replace it to drive retries manually.
	schedule func(d time.Duration, fn func())

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewReconciler creates a reconciler over the given event source.
func NewReconciler(store *PlanStore, source domainRepo.EventSource, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		store:       store,
		source:      source,
		logger:      logger,
		retryDelay:  defaultRetryDelay,
		maxAttempts: defaultMaxAttempts,
		schedule: func(d time.Duration, fn func()) {
			time.AfterFunc(d, fn)
		},
	}
}

// Start subscribes to all reconciled collections and consumes their events
// until Stop or context cancellation. A failed subscription aborts the
// start; the caller surfaces it as the "live sync unavailable" state.
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	for _, collection := range reconciledCollections {
		ch, err := r.source.Subscribe(ctx, collection)
		if err != nil {
			cancel()
			return fmt.Errorf("failed to subscribe to %s: %w", collection, err)
		}
		r.wg.Add(1)
		go r.consume(ch)
	}
	r.cancel = cancel
	return nil
}

// Stop unsubscribes and waits for the consumers to drain.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
}

func (r *Reconciler) consume(ch <-chan domainRepo.Event) {
	defer r.wg.Done()
	for ev := range ch {
		r.Handle(ev)
	}
}

// Handle merges one change event into the store.
func (r *Reconciler) Handle(ev domainRepo.Event) {
	r.handle(ev, 1)
}

func (r *Reconciler) handle(ev domainRepo.Event, attempt int) {
	switch ev.Collection {
	case model.CollectionTasks:
		var task model.Task
		if err := json.Unmarshal(ev.Record, &task); err != nil {
			r.logger.Warn("failed to decode task event", zap.Error(err))
			return
		}
		r.applyTask(ev.Action, task)
	case model.CollectionResources:
		var resource model.Resource
		if err := json.Unmarshal(ev.Record, &resource); err != nil {
			r.logger.Warn("failed to decode resource event", zap.Error(err))
			return
		}
		r.applyResource(ev, resource, attempt)
	case model.CollectionAllocations:
		var allocation model.Allocation
		if err := json.Unmarshal(ev.Record, &allocation); err != nil {
			r.logger.Warn("failed to decode allocation event", zap.Error(err))
			return
		}
		r.applyAllocation(ev, allocation, attempt)
	default:
		r.logger.Debug("ignoring event for unhandled collection",
			zap.String("collection", string(ev.Collection)))
	}
}

func (r *Reconciler) applyTask(action domainRepo.Action, task model.Task) {
	project := r.store.Project()
	if project == nil || task.ProjectID != project.ID.String() {
		return
	}

	switch action {
	case domainRepo.ActionCreate:
		if r.store.HasTask(task.ID.String()) {
			// Already reconciled, e.g. by the optimistic confirm.
			return
		}
		if pending, ok := r.store.FindPendingTask(task.Name); ok {
			// A locally created task appears to be the same logical entity;
			// replace it in place instead of appending a second copy.
			r.store.ConfirmPendingTask(pending, task)
			return
		}
		r.store.UpsertTask(task)
	case domainRepo.ActionUpdate:
		r.store.UpsertTask(task)
	case domainRepo.ActionDelete:
		r.store.RemoveTask(task.ID)
	}
}

func (r *Reconciler) applyResource(ev domainRepo.Event, resource model.Resource, attempt int) {
	if ev.Action == domainRepo.ActionDelete {
		r.store.RemoveResource(resource.ID)
		return
	}

	// Out-of-order delivery: the owning task's create event may not have
	// been processed yet.
	if !r.store.HasTask(resource.TaskID) {
		r.requeue(ev, attempt)
		return
	}

	switch ev.Action {
	case domainRepo.ActionCreate:
		if r.store.HasResource(resource.ID.String()) {
			return
		}
		if pending, ok := r.store.FindPendingResource(resource.TaskID, resource.Name); ok {
			r.store.ConfirmPendingResource(pending, resource)
			return
		}
		r.store.UpsertResource(resource)
	case domainRepo.ActionUpdate:
		r.store.UpsertResource(resource)
	}
}

func (r *Reconciler) applyAllocation(ev domainRepo.Event, allocation model.Allocation, attempt int) {
	if ev.Action == domainRepo.ActionDelete {
		if removed := r.store.RemoveAllocation(allocation.ID); removed == nil {
			r.store.RemoveAllocationByKey(allocation.ResourceID, allocation.Date)
		}
		return
	}

	if !r.store.HasResource(allocation.ResourceID) {
		r.requeue(ev, attempt)
		return
	}

	// Allocations carry a natural key, so creates and updates both merge
	// through it; a pending locally painted cell adopts the confirmed id.
	r.store.UpsertAllocationByKey(allocation)
}

func (r *Reconciler) requeue(ev domainRepo.Event, attempt int) {
	if attempt >= r.maxAttempts {
		r.logger.Warn("dropping event after retries, parent still unknown",
			zap.String("collection", string(ev.Collection)),
			zap.String("action", string(ev.Action)),
			zap.Int("attempts", attempt))
		return
	}
	r.logger.Debug("parent not known yet, retrying event",
		zap.String("collection", string(ev.Collection)),
		zap.Int("attempt", attempt))
	r.schedule(r.retryDelay, func() {
		r.handle(ev, attempt+1)
	})
}
