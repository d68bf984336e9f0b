package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/logger"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"santa/internal/matcher"
	"santa/internal/models"
)

var (
	ErrNotEnoughParticipants = errors.New("at least two participants are required for a draw")
	ErrDuplicateParticipant  = errors.New("participant already registered")
	ErrParticipantNotFound   = errors.New("participant not found")
	ErrNoDraw                = errors.New("no draw has been made yet")
	ErrNoNotifier            = errors.New("no notifier configured")
	ErrDrawConflict          = errors.New("participants changed during the draw")
)

// ResultSink persists a completed draw.
type ResultSink interface {
	Save(ctx context.Context, tenantID string, result *models.DrawResult) error
}

// Notifier tells every giver who they drew.
type Notifier interface {
	Notify(ctx context.Context, assignment models.Assignment) error
}

// DrawSession holds the data for a single user/tenant.
type DrawSession struct {
	Participants []models.Participant
	Result       *models.DrawResult
	LastActivity time.Time
	// Generation is bumped on every participant change; a draw is only
	// stored if the generation it started from is still current.
	Generation uint64
}

// changed discards the stored draw after a participant change.
func (d *DrawSession) changed() {
	d.Generation++
	d.Result = nil
}

// Options configures a SantaService.
type Options struct {
	// Attempts is the number of greedy draws tried before giving up.
	Attempts int
	// Rand is the shuffle source; it is only used under the service lock.
	Rand     matcher.Shuffler
	Sinks    []ResultSink
	Notifier Notifier
}

// SantaService manages draw sessions for multiple tenants.
type SantaService struct {
	mu       sync.Mutex
	sessions map[string]*DrawSession // Key: tenantID

	randMu   sync.Mutex
	rand     matcher.Shuffler
	attempts int
	sinks    []ResultSink
	notifier Notifier
	now      func() time.Time
}

// NewSantaService creates and initializes a new SantaService.
func NewSantaService(opts Options) *SantaService {
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &SantaService{
		sessions: make(map[string]*DrawSession),
		rand:     opts.Rand,
		attempts: opts.Attempts,
		sinks:    opts.Sinks,
		notifier: opts.Notifier,
		now:      time.Now,
	}
}

// session returns the session for a tenant, creating one if it doesn't
// exist. Callers must hold s.mu.
func (s *SantaService) session(tenantID string) *DrawSession {
	session, exists := s.sessions[tenantID]
	if !exists {
		session = &DrawSession{Participants: make([]models.Participant, 0)}
		s.sessions[tenantID] = session
	}
	session.LastActivity = s.now()
	return session
}

// GetParticipants returns a copy of the participants of a tenant.
func (s *SantaService) GetParticipants(tenantID string) []models.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()

	participants := s.session(tenantID).Participants
	out := make([]models.Participant, len(participants))
	copy(out, participants)
	return out
}

// AddParticipant registers a participant. Any previous draw is discarded.
func (s *SantaService) AddParticipant(tenantID string, p models.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := s.session(tenantID)
	if lo.ContainsBy(session.Participants, func(existing models.Participant) bool {
		return existing.Identity() == p.Identity()
	}) {
		return fmt.Errorf("%w: %s", ErrDuplicateParticipant, p.Identity())
	}
	session.Participants = append(session.Participants, p)
	session.changed()
	return nil
}

// SetParticipants replaces the participant list of a tenant.
func (s *SantaService) SetParticipants(tenantID string, participants []models.Participant) error {
	dups := lo.FindDuplicatesBy(participants, func(p models.Participant) models.Identity { return p.Identity() })
	if len(dups) > 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateParticipant, dups[0].Identity())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	session := s.session(tenantID)
	session.Participants = append([]models.Participant(nil), participants...)
	session.changed()
	return nil
}

// RemoveParticipant removes a participant by identity.
func (s *SantaService) RemoveParticipant(tenantID string, id models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := s.session(tenantID)
	_, idx, ok := lo.FindIndexOf(session.Participants, func(p models.Participant) bool { return p.Identity() == id })
	if !ok {
		return fmt.Errorf("%w: %s", ErrParticipantNotFound, id)
	}
	session.Participants = append(session.Participants[:idx], session.Participants[idx+1:]...)
	session.changed()
	return nil
}

// Draw performs the draw for a tenant, retrying the greedy matcher with a
// fresh shuffle up to the configured number of attempts.
//
// Sinks run in the order given, before the draw is stored in the session.
// They are not transactional across each other: when a later sink fails, the
// earlier ones keep their copy while the session stores nothing. If the
// participants change while the draw runs, ErrDrawConflict is returned and
// nothing is stored.
func (s *SantaService) Draw(ctx context.Context, tenantID string) (*models.DrawResult, error) {
	s.mu.Lock()
	session := s.session(tenantID)
	participants := append([]models.Participant(nil), session.Participants...)
	generation := session.Generation
	s.mu.Unlock()

	if len(participants) < 2 {
		return nil, ErrNotEnoughParticipants
	}

	var assignment models.Assignment
	attempt := 0
	for assignment == nil && attempt < s.attempts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		attempt++

		var err error
		s.randMu.Lock()
		assignment, err = matcher.Draw(participants, s.rand)
		s.randMu.Unlock()
		if err != nil && !errors.Is(err, matcher.ErrDrawInfeasible) {
			return nil, err
		}
	}
	if assignment == nil {
		logger.Warningf("Draw for tenant %s failed after %d attempts", tenantID, attempt)
		return nil, fmt.Errorf("%w (after %d attempts)", matcher.ErrDrawInfeasible, attempt)
	}

	if !s.isCurrent(tenantID, session, generation) {
		return nil, ErrDrawConflict
	}

	result := &models.DrawResult{
		ID:         uuid.NewString(),
		Attempts:   attempt,
		Assignment: assignment,
	}
	for i, sink := range s.sinks {
		if err := sink.Save(ctx, tenantID, result); err != nil {
			if i > 0 {
				logger.Warningf("Draw %s was saved by %d sink(s) before sink %d failed", result.ID, i, i+1)
			}
			return nil, fmt.Errorf("save draw: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions[tenantID] != session || session.Generation != generation {
		logger.Warningf("Discarding draw %s for tenant %s: participants changed", result.ID, tenantID)
		return nil, ErrDrawConflict
	}
	session.Result = result
	session.LastActivity = s.now()

	logger.Infof("Draw %s for tenant %s matched %d participants in %d attempt(s)", result.ID, tenantID, len(assignment), attempt)
	return result, nil
}

// isCurrent reports whether session is still the tenant's session at generation.
func (s *SantaService) isCurrent(tenantID string, session *DrawSession, generation uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[tenantID] == session && session.Generation == generation
}

// GetResult returns the latest draw of a tenant.
func (s *SantaService) GetResult(tenantID string) (*models.DrawResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := s.session(tenantID).Result
	if result == nil {
		return nil, ErrNoDraw
	}
	return result, nil
}

// Notify sends every giver of the latest draw their receiver.
func (s *SantaService) Notify(ctx context.Context, tenantID string) error {
	if s.notifier == nil {
		return ErrNoNotifier
	}
	result, err := s.GetResult(tenantID)
	if err != nil {
		return err
	}
	return s.notifier.Notify(ctx, result.Assignment)
}

// CleanUpInactiveSessions removes sessions that have been inactive for longer than ttl.
func (s *SantaService) CleanUpInactiveSessions(ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for tenantID, session := range s.sessions {
		if s.now().Sub(session.LastActivity) > ttl {
			delete(s.sessions, tenantID)
			logger.Infof("Removed inactive session for tenant: %s", tenantID)
		}
	}
}

// ClearSession removes all data associated with a specific tenant.
func (s *SantaService) ClearSession(tenantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, tenantID)
	logger.Infof("Cleared session for tenant: %s", tenantID)
}
