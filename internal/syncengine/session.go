// Package syncengine reconciles the in-memory plan document against the
// local snapshot cache and the remote store for one user session.
package syncengine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/califnena/planning-form-sub003/internal/cache"
	"github.com/califnena/planning-form-sub003/internal/identity"
	"github.com/califnena/planning-form-sub003/internal/payload"
	"github.com/califnena/planning-form-sub003/internal/store"
)

// ErrNotLoaded is returned when Update is called before Load.
var ErrNotLoaded = errors.New("session not loaded")

// Document is the in-memory plan document a session edits.
type Document struct {
	PlanID         string
	Title          string
	FuneralNotes   string
	FinancialNotes string
	PersonalNotes  string
	Payload        map[string]any
	UpdatedAt      time.Time
}

func (d Document) clone() Document {
	out := d
	out.Payload = make(map[string]any, len(d.Payload))
	for k, v := range d.Payload {
		out.Payload[k] = v
	}
	return out
}

// UpdateInput is a partial document: nil column pointers are ignored,
// sections replace the stored section whole. Section keys may be
// canonical or legacy; legacy keys are mapped before merging.
type UpdateInput struct {
	Title          *string
	FuneralNotes   *string
	FinancialNotes *string
	PersonalNotes  *string
	Sections       map[string]any
}

// SaveState mirrors the persistence status editors surface to the user.
type SaveState struct {
	InFlight    bool
	Dirty       bool
	Offline     bool
	LastSavedAt time.Time
	LastError   string
}

type remoteStore interface {
	UpdatePlan(ctx context.Context, planID string, cols store.PlanColumns, sections map[string]any) (time.Time, error)
}

type snapshotStore interface {
	SaveSnapshot(ctx context.Context, snap cache.Snapshot) error
	GetSnapshot(ctx context.Context, userID, planID string) (cache.Snapshot, error)
	GetActivePlan(ctx context.Context, userID string) (string, error)
	DeleteSnapshot(ctx context.Context, userID, planID string) error
}

type planResolver interface {
	ResolveActivePlan(ctx context.Context, userID string, createIfMissing bool) (identity.Resolution, error)
}

// Session is the per-user synchronization context. It is the sole
// writer to its plan within the session; conflicts across devices are
// resolved by last-writer-wins on the modification timestamp.
type Session struct {
	userID   string
	resolver planResolver
	remote   remoteStore
	cache    snapshotStore
	debounce time.Duration

	// AfterSave runs after each successful remote write, outside the
	// session lock. Set before Load.
	AfterSave func(Document)

	mu         sync.Mutex
	doc        Document
	loaded     bool
	offline    bool
	dirty      bool
	inFlight   bool
	seq        uint64
	lastSaved  time.Time
	lastErr    error
	timer      *time.Timer
	timerArmed bool
}

func New(userID string, resolver planResolver, remote remoteStore, snapshots snapshotStore, debounce time.Duration) *Session {
	return &Session{
		userID:   userID,
		resolver: resolver,
		remote:   remote,
		cache:    snapshots,
		debounce: debounce,
	}
}

// Load resolves the active plan and reconciles the remote copy against
// the local snapshot by recency. A resolution failure degrades the
// session to offline mode over the cached snapshot; write-back stays
// disabled until a fresh session loads successfully.
func (s *Session) Load(ctx context.Context) (Document, error) {
	res, err := s.resolver.ResolveActivePlan(ctx, s.userID, true)
	if err != nil {
		return s.loadOffline(ctx, err)
	}

	doc := fromPlan(res.Plan)
	snap, cacheErr := s.cache.GetSnapshot(ctx, s.userID, res.PlanID)
	queueRepair := false
	switch {
	case cacheErr != nil && !errors.Is(cacheErr, cache.ErrCacheMiss):
		log.Printf("syncengine: read snapshot for %s: %v", s.userID, cacheErr)
	case cacheErr == nil && snap.PlanID != res.PlanID:
		// A snapshot for a different plan is never merged.
		log.Printf("syncengine: discarding stale snapshot %s (active plan %s)", snap.PlanID, res.PlanID)
		_ = s.cache.DeleteSnapshot(ctx, s.userID, snap.PlanID)
	case cacheErr == nil && snap.UpdatedAt.After(doc.UpdatedAt):
		// The cache outran the remote copy: an earlier save was
		// interrupted. The snapshot wins and is queued for write-back.
		doc = fromSnapshot(snap)
		queueRepair = true
	}

	if !queueRepair {
		if err := s.cache.SaveSnapshot(ctx, toSnapshot(s.userID, doc)); err != nil {
			log.Printf("syncengine: mirror snapshot for %s: %v", s.userID, err)
		}
	}

	s.mu.Lock()
	s.doc = doc
	s.loaded = true
	s.offline = false
	s.dirty = queueRepair
	out := s.doc.clone()
	s.mu.Unlock()

	if queueRepair {
		s.scheduleFlush()
	}
	return out, nil
}

func (s *Session) loadOffline(ctx context.Context, cause error) (Document, error) {
	planID, err := s.cache.GetActivePlan(ctx, s.userID)
	if err != nil {
		return Document{}, fmt.Errorf("load plan: %w", cause)
	}
	snap, err := s.cache.GetSnapshot(ctx, s.userID, planID)
	if err != nil {
		return Document{}, fmt.Errorf("load plan: %w", cause)
	}
	log.Printf("syncengine: resolver unavailable for %s, operating offline from snapshot: %v", s.userID, cause)

	s.mu.Lock()
	s.doc = fromSnapshot(snap)
	s.loaded = true
	s.offline = true
	out := s.doc.clone()
	s.mu.Unlock()
	return out, nil
}

// Update merges a partial document into memory, mirrors the full state
// to the snapshot cache synchronously, and schedules a debounced
// remote write-back. Sections are replaced whole, never deep-merged.
func (s *Session) Update(ctx context.Context, input UpdateInput) (Document, error) {
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return Document{}, ErrNotLoaded
	}
	if input.Title != nil {
		s.doc.Title = *input.Title
	}
	if input.FuneralNotes != nil {
		s.doc.FuneralNotes = *input.FuneralNotes
	}
	if input.FinancialNotes != nil {
		s.doc.FinancialNotes = *input.FinancialNotes
	}
	if input.PersonalNotes != nil {
		s.doc.PersonalNotes = *input.PersonalNotes
	}
	for key, value := range input.Sections {
		canonical, known := payload.CanonicalFor(key)
		if !known {
			canonical = key
		}
		s.doc.Payload[canonical] = value
	}
	s.doc.UpdatedAt = time.Now().UTC()
	s.seq++
	s.dirty = true
	snap := toSnapshot(s.userID, s.doc.clone())
	out := s.doc.clone()
	offline := s.offline
	s.mu.Unlock()

	// Synchronous mirror so an abrupt session end loses nothing that
	// was already in memory. A cache failure is a state flag, not an
	// editing failure.
	if err := s.cache.SaveSnapshot(ctx, snap); err != nil {
		log.Printf("syncengine: mirror snapshot for %s: %v", s.userID, err)
	}

	if !offline {
		s.scheduleFlush()
	}
	return out, nil
}

// scheduleFlush arms the single pending-flush slot. Edits landing while
// the timer is armed ride along in the same write.
func (s *Session) scheduleFlush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timerArmed {
		return
	}
	s.timerArmed = true
	s.timer = time.AfterFunc(s.debounce, func() {
		s.Flush(context.Background())
	})
}

// Flush performs the remote write-back immediately. Safe to call
// concurrently with the timer; the dirty flag makes extra calls no-ops.
func (s *Session) Flush(ctx context.Context) {
	s.mu.Lock()
	s.timerArmed = false
	if s.offline || !s.dirty || s.inFlight {
		s.mu.Unlock()
		return
	}
	s.inFlight = true
	seq := s.seq
	doc := s.doc.clone()
	s.mu.Unlock()

	err := s.writeBack(ctx, doc)

	s.mu.Lock()
	s.inFlight = false
	if err != nil {
		s.lastErr = err
		log.Printf("syncengine: write-back for %s: %v", s.userID, err)
	} else {
		s.lastErr = nil
		s.lastSaved = time.Now().UTC()
		if s.seq == seq {
			s.dirty = false
		}
	}
	redo := s.dirty && err == nil
	s.mu.Unlock()

	if err == nil && s.AfterSave != nil {
		s.AfterSave(doc)
	}
	if redo {
		// Edits arrived during the write; they flush on the next cycle.
		s.scheduleFlush()
	}
}

var errPlanChanged = errors.New("active plan changed since load")

func (s *Session) writeBack(ctx context.Context, doc Document) error {
	// Guard against a stale session writing to a plan the user has
	// since moved away from.
	res, err := s.resolver.ResolveActivePlan(ctx, s.userID, false)
	if err != nil {
		return fmt.Errorf("verify active plan: %w", err)
	}
	if res.PlanID != doc.PlanID {
		return errPlanChanged
	}

	cols := store.PlanColumns{
		Title:          &doc.Title,
		FuneralNotes:   &doc.FuneralNotes,
		FinancialNotes: &doc.FinancialNotes,
		PersonalNotes:  &doc.PersonalNotes,
	}
	updatedAt, err := s.remote.UpdatePlan(ctx, doc.PlanID, cols, doc.Payload)
	if err != nil {
		return fmt.Errorf("write plan: %w", err)
	}

	s.mu.Lock()
	if s.doc.PlanID == doc.PlanID && updatedAt.After(s.doc.UpdatedAt) {
		s.doc.UpdatedAt = updatedAt
	}
	s.mu.Unlock()
	return nil
}

// SaveState returns a snapshot of the persistence status.
func (s *Session) SaveState() SaveState {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := SaveState{
		InFlight:    s.inFlight,
		Dirty:       s.dirty,
		Offline:     s.offline,
		LastSavedAt: s.lastSaved,
	}
	if s.lastErr != nil {
		state.LastError = s.lastErr.Error()
	}
	return state
}

// Document returns a copy of the in-memory document.
func (s *Session) Document() (Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return Document{}, false
	}
	return s.doc.clone(), true
}

// Close cancels the pending flush timer and writes out any dirty state.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timerArmed = false
	s.mu.Unlock()
	s.Flush(ctx)
}

func fromPlan(p store.Plan) Document {
	pl := p.Payload
	if pl == nil {
		pl = map[string]any{}
	}
	return Document{
		PlanID:         p.ID,
		Title:          p.Title,
		FuneralNotes:   p.FuneralNotes,
		FinancialNotes: p.FinancialNotes,
		PersonalNotes:  p.PersonalNotes,
		Payload:        pl,
		UpdatedAt:      p.UpdatedAt,
	}
}

func fromSnapshot(snap cache.Snapshot) Document {
	pl := snap.Payload
	if pl == nil {
		pl = map[string]any{}
	}
	return Document{
		PlanID:         snap.PlanID,
		Title:          snap.Title,
		FuneralNotes:   snap.FuneralNotes,
		FinancialNotes: snap.FinancialNotes,
		PersonalNotes:  snap.PersonalNotes,
		Payload:        pl,
		UpdatedAt:      snap.UpdatedAt,
	}
}

func toSnapshot(userID string, doc Document) cache.Snapshot {
	return cache.Snapshot{
		PlanID:         doc.PlanID,
		UserID:         userID,
		Title:          doc.Title,
		FuneralNotes:   doc.FuneralNotes,
		FinancialNotes: doc.FinancialNotes,
		PersonalNotes:  doc.PersonalNotes,
		Payload:        doc.Payload,
		UpdatedAt:      doc.UpdatedAt,
	}
}
