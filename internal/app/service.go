package app

import (
	"context"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/califnena/planning-form-sub003/internal/archive"
	"github.com/califnena/planning-form-sub003/internal/assembly"
	"github.com/califnena/planning-form-sub003/internal/cache"
	"github.com/califnena/planning-form-sub003/internal/config"
	"github.com/califnena/planning-form-sub003/internal/history"
	"github.com/califnena/planning-form-sub003/internal/identity"
	"github.com/califnena/planning-form-sub003/internal/payload"
	"github.com/califnena/planning-form-sub003/internal/render"
	"github.com/califnena/planning-form-sub003/internal/search"
	"github.com/califnena/planning-form-sub003/internal/store"
	"github.com/califnena/planning-form-sub003/internal/syncengine"
)

// dataStore is everything the service layer needs from Postgres.
type dataStore interface {
	GetPlan(ctx context.Context, planID string) (store.Plan, error)
	FindPlanByOwner(ctx context.Context, ownerID string) (store.Plan, error)
	GetPreferredPlanID(ctx context.Context, userID string) (string, error)
	SetPreferredPlan(ctx context.Context, userID, planID string) error
	InsertPlan(ctx context.Context, item store.Plan) (bool, error)
	UpdatePlan(ctx context.Context, planID string, cols store.PlanColumns, sections map[string]any) (time.Time, error)
	ListContactsByPlan(ctx context.Context, planID string) ([]store.Contact, error)
	ListPetsByPlan(ctx context.Context, planID string) ([]store.Pet, error)
	ListPoliciesByPlan(ctx context.Context, planID string) ([]store.Policy, error)
	ListPropertiesByPlan(ctx context.Context, planID string) ([]store.Property, error)
	ListMessagesByPlan(ctx context.Context, planID string) ([]store.Message, error)
	ListInvestmentsByPlan(ctx context.Context, planID string) ([]store.Investment, error)
	ListDebtsByPlan(ctx context.Context, planID string) ([]store.Debt, error)
	ListAccountsByPlan(ctx context.Context, planID string) ([]store.Account, error)
	ListBusinessesByPlan(ctx context.Context, planID string) ([]store.Business, error)
	SearchSections(ctx context.Context, ownerID, query string) ([]store.SectionHit, error)
	Ping(ctx context.Context) error
}

// Service owns the per-user sync sessions and the read services.
type Service struct {
	cfg       config.Config
	store     dataStore
	cache     *cache.RedisStore
	resolver  *identity.Resolver
	assembler *assembly.Service
	renderer  *render.Service
	search    *search.Service
	archive   *archive.Store
	history   *history.Service

	mu       sync.Mutex
	sessions map[string]*syncengine.Session
}

// New wires the service. search, archiveStore, and historySvc may be
// nil when the corresponding backend is not configured.
func New(cfg config.Config, s dataStore, cacheStore *cache.RedisStore, searchSvc *search.Service, archiveStore *archive.Store, historySvc *history.Service) *Service {
	resolver := identity.New(s, cacheStore)
	return &Service{
		cfg:       cfg,
		store:     s,
		cache:     cacheStore,
		resolver:  resolver,
		assembler: assembly.NewService(resolver, s),
		renderer:  render.NewService(),
		search:    searchSvc,
		archive:   archiveStore,
		history:   historySvc,
		sessions:  make(map[string]*syncengine.Session),
	}
}

// session returns the sync session for a user, creating it on first use.
func (s *Service) session(userID string) *syncengine.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[userID]; ok {
		return existing
	}
	session := syncengine.New(userID, s.resolver, s.store, s.cache, s.cfg.SaveDebounce)
	session.AfterSave = func(doc syncengine.Document) {
		s.afterSave(userID, doc)
	}
	s.sessions[userID] = session
	return session
}

func (s *Service) afterSave(userID string, doc syncengine.Document) {
	if s.history != nil {
		if err := s.history.RecordSnapshot(doc.PlanID, doc.Payload); err != nil {
			log.Printf("app: record history for plan %s: %v", doc.PlanID, err)
		}
	}
	if s.search != nil {
		s.search.IndexPlanSections(userID, doc.PlanID, payload.Normalize(doc.Payload))
	}
}

// LoadPlan loads (or returns) the user's active plan document.
func (s *Service) LoadPlan(ctx context.Context, userID string) (syncengine.Document, error) {
	session := s.session(userID)
	if doc, ok := session.Document(); ok {
		return doc, nil
	}
	doc, err := session.Load(ctx)
	if err != nil {
		return syncengine.Document{}, domainError(http.StatusServiceUnavailable, "PLAN_UNAVAILABLE", "Plan could not be loaded", nil)
	}
	return doc, nil
}

// UpdatePlan merges a partial document into the user's session.
func (s *Service) UpdatePlan(ctx context.Context, userID string, input syncengine.UpdateInput) (syncengine.Document, error) {
	session := s.session(userID)
	if _, ok := session.Document(); !ok {
		if _, err := session.Load(ctx); err != nil {
			return syncengine.Document{}, domainError(http.StatusServiceUnavailable, "PLAN_UNAVAILABLE", "Plan could not be loaded", nil)
		}
	}
	doc, err := session.Update(ctx, input)
	if err != nil {
		return syncengine.Document{}, domainError(http.StatusConflict, "UPDATE_FAILED", "Plan update failed", err.Error())
	}
	return doc, nil
}

// SaveState reports the persistence status editors surface to the user.
func (s *Service) SaveState(userID string) syncengine.SaveState {
	return s.session(userID).SaveState()
}

// Assemble builds the flattened, renderer-ready document.
func (s *Service) Assemble(ctx context.Context, userID string) (assembly.Flattened, error) {
	doc, err := s.assembler.Assemble(ctx, userID)
	if err != nil {
		return nil, domainError(http.StatusBadGateway, "ASSEMBLY_FAILED", "Plan could not be assembled", err.Error())
	}
	return doc, nil
}

// ExportPDF assembles and renders the plan, archiving the result when
// an archive backend is configured.
func (s *Service) ExportPDF(ctx context.Context, userID string) (*render.Result, error) {
	doc, err := s.Assemble(ctx, userID)
	if err != nil {
		return nil, err
	}
	result, err := s.renderer.RenderPDF(doc)
	if err != nil {
		return nil, domainError(http.StatusBadGateway, "EXPORT_FAILED", "PDF generation failed", err.Error())
	}
	if s.archive != nil {
		planID, _ := doc["plan_id"].(string)
		if object, archiveErr := s.archive.SavePDF(ctx, userID, planID, result.Data); archiveErr != nil {
			log.Printf("app: archive export for %s: %v", userID, archiveErr)
		} else {
			log.Printf("app: archived export %s", object)
		}
	}
	return result, nil
}

// SearchSections searches the user's plan content.
func (s *Service) SearchSections(ctx context.Context, userID, query string) []store.SectionHit {
	if s.search == nil {
		hits, err := s.store.SearchSections(ctx, userID, query)
		if err != nil || hits == nil {
			return []store.SectionHit{}
		}
		return hits
	}
	return s.search.Search(ctx, userID, query)
}

// Ping checks the remote store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// PingCache checks the snapshot cache.
func (s *Service) PingCache(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Ping(ctx)
}

// Close flushes and discards every open session.
func (s *Service) Close(ctx context.Context) {
	s.mu.Lock()
	sessions := make([]*syncengine.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	s.sessions = make(map[string]*syncengine.Session)
	s.mu.Unlock()

	for _, session := range sessions {
		session.Close(ctx)
	}
}

func normalizeUserID(raw string) string {
	return strings.TrimSpace(raw)
}
