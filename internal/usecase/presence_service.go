package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/CeeFeS/TinyPlanvas/internal/domain/model"
	domainRepo "github.com/CeeFeS/TinyPlanvas/internal/domain/repository"
)

const (
	defaultHeartbeatInterval = 10 * time.Second
	defaultStalenessWindow   = 30 * time.Second
)

// Palette for deriving a stable display color from a session identifier.
var presencePalette = []string{
	"#E4573D", "#F2A33C", "#E8C547", "#30A14E",
	"#2EA3A6", "#3D7DD8", "#7B5CD6", "#D064B8",
}

var (
	presenceAdjectives = []string{
		"Brave", "Calm", "Curious", "Dapper", "Eager",
		"Gentle", "Jolly", "Keen", "Nimble", "Witty",
	}
	presenceAnimals = []string{
		"Otter", "Heron", "Badger", "Lynx", "Magpie",
		"Marmot", "Newt", "Puffin", "Stoat", "Wren",
	}
)

// PresenceService is the best-effort "who is viewing this project" tracker.
// It upserts an own presence record on a fixed heartbeat and keeps a local,
// staleness-filtered view of the other sessions. All of its failures are
// swallowed; presence is never user-visible as an error.
type PresenceService struct {
	repo   domainRepo.PresenceRepository
	source domainRepo.EventSource
	logger *zap.Logger

	heartbeatInterval time.Duration
	stalenessWindow   time.Duration
	now               func() time.Time

	mu        sync.Mutex
	sessionID string
	projectID string
	self      model.Presence
	others    map[string]model.Presence
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewPresenceService creates a presence tracker.
func NewPresenceService(repo domainRepo.PresenceRepository, source domainRepo.EventSource, logger *zap.Logger) *PresenceService {
	return &PresenceService{
		repo:              repo,
		source:            source,
		logger:            logger,
		heartbeatInterval: defaultHeartbeatInterval,
		stalenessWindow:   defaultStalenessWindow,
		now:               time.Now,
		others:            make(map[string]model.Presence),
	}
}

// SetIntervals overrides the heartbeat interval and staleness window. Only
// effective before Start.
func (p *PresenceService) SetIntervals(heartbeat, staleness time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if heartbeat > 0 {
		p.heartbeatInterval = heartbeat
	}
	if staleness > 0 {
		p.stalenessWindow = staleness
	}
}

// Start joins the project: a fresh session identifier is generated, the own
// presence record is upserted immediately, the presence stream is consumed
// and the heartbeat begins. The display color is derived deterministically
// from the session identifier; an empty user name gets a placeholder.
func (p *PresenceService) Start(ctx context.Context, projectID, userName string) {
	p.mu.Lock()
	if p.cancel != nil {
		p.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.sessionID = uuid.NewString()
	p.projectID = projectID
	if userName == "" {
		userName = PlaceholderName(p.sessionID)
	}
	p.self = model.Presence{
		ProjectID: projectID,
		SessionID: p.sessionID,
		UserName:  userName,
		UserColor: PaletteColor(p.sessionID),
		LastSeen:  p.now(),
	}
	self := p.self
	p.mu.Unlock()

	p.beat(ctx, self)
	p.seed(ctx, projectID)

	ch, err := p.source.Subscribe(ctx, model.CollectionPresence)
	if err != nil {
		p.logger.Warn("presence stream unavailable", zap.Error(err))
	} else {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for ev := range ch {
				p.ApplyEvent(ev)
			}
		}()
	}

	p.wg.Add(1)
	go p.heartbeat(ctx)
}

// Stop leaves the project: the heartbeat stops, the subscription ends and
// the own record is deleted best effort.
func (p *PresenceService) Stop(ctx context.Context) {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	sessionID := p.sessionID
	p.others = make(map[string]model.Presence)
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	p.wg.Wait()

	if err := p.repo.DeleteBySession(ctx, sessionID); err != nil {
		p.logger.Debug("failed to delete own presence record", zap.Error(err))
	}
}

// SessionID returns the identifier of the own session; stable for the
// lifetime of the tracker between Start and Stop.
func (p *PresenceService) SessionID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessionID
}

// Others returns the live sessions other than the own one, with records
// beyond the staleness window dropped even when no new event arrived.
func (p *PresenceService) Others() []model.Presence {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pruneLocked()
	others := make([]model.Presence, 0, len(p.others))
	for _, record := range p.others {
		others = append(others, record)
	}
	sort.Slice(others, func(i, j int) bool {
		return others[i].SessionID < others[j].SessionID
	})
	return others
}

// ApplyEvent merges one presence change event into the local view.
func (p *PresenceService) ApplyEvent(ev domainRepo.Event) {
	var record model.Presence
	if err := json.Unmarshal(ev.Record, &record); err != nil {
		p.logger.Debug("failed to decode presence event", zap.Error(err))
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if record.ProjectID != p.projectID || record.SessionID == p.sessionID {
		return
	}
	if ev.Action == domainRepo.ActionDelete {
		delete(p.others, record.SessionID)
		return
	}
	if p.now().Sub(record.LastSeen) > p.stalenessWindow {
		delete(p.others, record.SessionID)
		return
	}
	p.others[record.SessionID] = record
}

// heartbeat re-upserts the own record on a fixed interval. A heartbeat is a
// liveness refresh, not a state change.
func (p *PresenceService) heartbeat(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.mu.Lock()
			p.self.LastSeen = p.now()
			self := p.self
			p.pruneLocked()
			p.mu.Unlock()
			p.beat(ctx, self)
		}
	}
}

func (p *PresenceService) beat(ctx context.Context, self model.Presence) {
	if _, err := p.repo.Upsert(ctx, self); err != nil {
		p.logger.Debug("presence heartbeat failed", zap.Error(err))
	}
}

// seed loads the sessions already present when joining.
func (p *PresenceService) seed(ctx context.Context, projectID string) {
	records, err := p.repo.ListByProject(ctx, projectID)
	if err != nil {
		p.logger.Debug("failed to list presence records", zap.Error(err))
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, record := range records {
		if record.SessionID == p.sessionID {
			continue
		}
		if p.now().Sub(record.LastSeen) > p.stalenessWindow {
			continue
		}
		p.others[record.SessionID] = record
	}
}

func (p *PresenceService) pruneLocked() {
	cutoff := p.now().Add(-p.stalenessWindow)
	for sessionID, record := range p.others {
		if record.LastSeen.Before(cutoff) {
			delete(p.others, sessionID)
		}
	}
}

// PaletteColor derives a stable display color from a session identifier, so
// the same session always renders the same color everywhere.
func PaletteColor(sessionID string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	return presencePalette[h.Sum32()%uint32(len(presencePalette))]
}

// PlaceholderName synthesizes a whimsical display name for anonymous
// sessions, stable per session identifier.
func PlaceholderName(sessionID string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	sum := h.Sum32()
	adjective := presenceAdjectives[sum%uint32(len(presenceAdjectives))]
	animal := presenceAnimals[(sum/16)%uint32(len(presenceAnimals))]
	return fmt.Sprintf("%s %s", adjective, animal)
}
