package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/engagehub/engagement-core/internal/domain/minigame"
	"github.com/engagehub/engagement-core/internal/domain/points"
	"github.com/engagehub/engagement-core/internal/domain/profile"
	"github.com/engagehub/engagement-core/internal/domain/shared"
)

// completedSessionRetention keeps resolved sessions readable for a while so
// result screens can re-fetch them; the cleanup job reaps the rest.
const completedSessionRetention = 10 * time.Minute

// casAttempts bounds optimistic state-transition retries.
const casAttempts = 5

// ══════════════════════════════════════════════════════════════════════════════
// MINI-GAME SESSION MANAGER
// ══════════════════════════════════════════════════════════════════════════════

// MiniGameSessionManager drives the per-session state machines. Session state
// transitions are linearizable: the whole session document swaps via
// compare-and-swap, so no two concurrent callers can both win a Completed
// transition.
type MiniGameSessionManager struct {
	store    shared.KeyValueStore
	profiles *Profiles
	ledger   *PointsLedger
	bus      shared.EventPublisher
	logger   *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewMiniGameSessionManager creates the session manager.
func NewMiniGameSessionManager(
	store shared.KeyValueStore,
	profiles *Profiles,
	ledger *PointsLedger,
	bus shared.EventPublisher,
	logger *slog.Logger,
) *MiniGameSessionManager {
	return &MiniGameSessionManager{
		store:    store,
		profiles: profiles,
		ledger:   ledger,
		bus:      bus,
		logger:   logger,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateSession starts a new session of the given game type for the user.
func (s *MiniGameSessionManager) CreateSession(ctx context.Context, userID string, gameType minigame.GameType) (*minigame.Session, error) {
	if err := s.profiles.Ensure(ctx, userID); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	var sess *minigame.Session
	s.mu.Lock()
	switch gameType {
	case minigame.TargetPractice:
		sess = minigame.NewTargetPractice(id, userID, s.rng)
	case minigame.EmojiHunt:
		sess = minigame.NewEmojiHunt(id, userID, s.rng)
	default:
		s.mu.Unlock()
		return nil, shared.NewDomainError("minigame", "CreateSession", shared.ErrInvalidInput, "unknown game type")
	}
	s.mu.Unlock()

	if err := s.put(ctx, sess, sess.TTL+completedSessionRetention); err != nil {
		return nil, err
	}
	if _, err := s.profiles.IncrementCounter(ctx, userID, profile.FieldGamesPlayed, 1); err != nil {
		s.logger.Warn("games played counter failed", "user_id", userID, "error", err)
	}

	s.logger.Debug("session created", "session_id", id, "user_id", userID, "game", gameType)
	return sess, nil
}

// GetSession loads a session with lazy expiry: a session past its TTL reads
// as expired even before the cleanup job reaps it.
func (s *MiniGameSessionManager) GetSession(ctx context.Context, sessionID string) (*minigame.Session, error) {
	sess, _, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.State.Terminal() && sess.ExpiredAt(s.now()) {
		return nil, shared.ErrSessionExpired
	}
	return sess, nil
}

// ResolveGuess settles a target-practice session with the user's one guess.
// A correct guess scores max(10, 50 minus a point per elapsed second); a
// wrong guess completes the session with score zero. Either way the session
// is spent.
func (s *MiniGameSessionManager) ResolveGuess(ctx context.Context, sessionID, guess string) (*minigame.Session, error) {
	for attempt := 0; attempt < casAttempts; attempt++ {
		sess, raw, err := s.load(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if sess.GameType != minigame.TargetPractice {
			return nil, shared.NewDomainError("minigame", "Resolve", shared.ErrInvalidInput, "not a target practice session")
		}
		if sess.State.Terminal() {
			return nil, shared.ErrAlreadyCompleted
		}
		now := s.now()
		if sess.ExpiredAt(now) {
			return nil, shared.ErrSessionExpired
		}
		if !sess.ValidOption(guess) {
			return nil, shared.ErrInvalidGuess
		}

		var score int64
		if guess == sess.Target {
			score = minigame.TargetPracticeScore(sess.Elapsed(now))
		}
		sess.Complete(score, now)

		swapped, err := s.swap(ctx, sess, raw, completedSessionRetention)
		if err != nil {
			return nil, err
		}
		if !swapped {
			continue
		}

		s.settle(ctx, sess, score)
		return sess, nil
	}
	return nil, shared.NewDomainError("minigame", "Resolve", shared.ErrConcurrentModification, "session transition contention")
}

// ClickCell marks one emoji-hunt grid cell as inspected. Clicking a decoy or
// an already-found cell is a no-op. The per-cell found marker is a set-add,
// so exactly one of any number of concurrent clicks on the same cell marks
// it; the click that brings the found counter to the target count completes
// the session and scores max(20, 100 minus half a point per elapsed second).
func (s *MiniGameSessionManager) ClickCell(ctx context.Context, sessionID string, cell int) (*minigame.Session, error) {
	sess, raw, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.GameType != minigame.EmojiHunt {
		return nil, shared.NewDomainError("minigame", "ClickCell", shared.ErrInvalidInput, "not an emoji hunt session")
	}
	if cell < 0 || cell >= len(sess.Grid) {
		return nil, shared.ErrInvalidCell
	}
	if sess.State.Terminal() {
		return nil, shared.ErrAlreadyCompleted
	}
	now := s.now()
	if sess.ExpiredAt(now) {
		return nil, shared.ErrSessionExpired
	}
	if !sess.IsTargetCell(cell) {
		return sess, nil
	}

	window := sess.TTL + completedSessionRetention
	marked, err := s.store.SAdd(ctx, keySessionFound(sessionID), strconv.Itoa(cell), window)
	if err != nil {
		return nil, shared.WrapError("minigame", "ClickCell", shared.ErrStoreUnavailable, "mark cell", err)
	}
	if !marked {
		return sess, nil
	}

	found, err := s.store.IncrBy(ctx, keySessionFoundN(sessionID), 1)
	if err != nil {
		return nil, shared.WrapError("minigame", "ClickCell", shared.ErrStoreUnavailable, "count found", err)
	}
	if found == 1 {
		// The first increment created the counter; bound its lifetime to the
		// same window as the found set so neither outlives the session.
		if err := s.store.Expire(ctx, keySessionFoundN(sessionID), window); err != nil {
			s.logger.Warn("found counter expire failed", "session_id", sessionID, "error", err)
		}
	}

	if found < int64(sess.TargetCount) {
		// Best-effort progress write; the counter key is authoritative and a
		// lost swap only stales the displayed count.
		sess.FoundCount = int(found)
		if _, err := s.swap(ctx, sess, raw, window); err != nil {
			return nil, err
		}
		return sess, nil
	}

	// This caller incremented the counter to the target count; the counter is
	// monotonic so exactly one click per session gets here.
	score := minigame.EmojiHuntScore(sess.Elapsed(now))
	for attempt := 0; attempt < casAttempts; attempt++ {
		sess.FoundCount = sess.TargetCount
		if !sess.Complete(score, now) {
			return nil, shared.ErrAlreadyCompleted
		}
		swapped, err := s.swap(ctx, sess, raw, completedSessionRetention)
		if err != nil {
			return nil, err
		}
		if swapped {
			if err := s.store.Delete(ctx, keySessionFound(sessionID), keySessionFoundN(sessionID)); err != nil {
				s.logger.Warn("delete derived keys failed", "session_id", sessionID, "error", err)
			}
			s.settle(ctx, sess, score)
			return sess, nil
		}
		sess, raw, err = s.load(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if sess.State.Terminal() {
			return sess, nil
		}
	}
	return nil, shared.NewDomainError("minigame", "ClickCell", shared.ErrConcurrentModification, "session transition contention")
}

// ReapExpired walks session keys and finalizes sessions whose TTL elapsed
// without resolution. Returns how many sessions it expired. Per-session
// failures are logged and skipped.
func (s *MiniGameSessionManager) ReapExpired(ctx context.Context) (int, error) {
	now := s.now()
	reaped := 0

	err := s.store.Scan(ctx, "game:session:*", func(key string) error {
		// Derived keys for found-cell tracking share the prefix; only the
		// bare session document is a candidate.
		id := key[len("game:session:"):]
		if id == "" || strings.Contains(id, ":") {
			return nil
		}

		sess, raw, err := s.load(ctx, id)
		if err != nil {
			if shared.IsNotFound(err) {
				return nil
			}
			s.logger.Warn("reap: load failed", "session_id", id, "error", err)
			return nil
		}
		if sess.State.Terminal() || !sess.ExpiredAt(now) {
			return nil
		}

		sess.Expire(now)
		swapped, err := s.swap(ctx, sess, raw, completedSessionRetention)
		if err != nil || !swapped {
			return nil
		}
		if err := s.store.Delete(ctx, keySessionFound(id), keySessionFoundN(id)); err != nil {
			s.logger.Warn("reap: delete derived keys failed", "session_id", id, "error", err)
		}
		reaped++
		return nil
	})
	if err != nil {
		return reaped, shared.WrapError("minigame", "ReapExpired", shared.ErrStoreUnavailable, "scan sessions", err)
	}
	return reaped, nil
}

// settle pays out a completed session and emits the completion event.
func (s *MiniGameSessionManager) settle(ctx context.Context, sess *minigame.Session, score int64) {
	if score > 0 {
		// Counter first so the award's achievement pass sees the win.
		if _, err := s.profiles.IncrementCounter(ctx, sess.UserID, profile.FieldGamesWon, 1); err != nil {
			s.logger.Warn("games won counter failed", "user_id", sess.UserID, "error", err)
		}
		if _, err := s.ledger.Award(ctx, sess.UserID, score, points.ReasonGameScore); err != nil {
			s.logger.Error("game score award failed",
				"session_id", sess.ID, "user_id", sess.UserID, "error", err)
		}
	}
	won := score > 0
	if err := s.bus.Publish(shared.NewGameCompletedEvent(sess.UserID, sess.ID, string(sess.GameType), score, won)); err != nil {
		s.logger.Warn("publish game completed failed", "session_id", sess.ID, "error", err)
	}
}

func (s *MiniGameSessionManager) load(ctx context.Context, sessionID string) (*minigame.Session, []byte, error) {
	raw, err := s.store.Get(ctx, keySession(sessionID))
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, nil, shared.ErrSessionNotFound
		}
		return nil, nil, shared.WrapError("minigame", "load", shared.ErrStoreUnavailable, "load session", err)
	}
	var sess minigame.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, nil, shared.WrapError("minigame", "load", shared.ErrInvalidState, "decode session", err)
	}
	return &sess, raw, nil
}

func (s *MiniGameSessionManager) put(ctx context.Context, sess *minigame.Session, ttl time.Duration) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return shared.WrapError("minigame", "put", shared.ErrInvalidInput, "encode session", err)
	}
	if err := s.store.Set(ctx, keySession(sess.ID), data, ttl); err != nil {
		return shared.WrapError("minigame", "put", shared.ErrStoreUnavailable, "store session", err)
	}
	return nil
}

func (s *MiniGameSessionManager) swap(ctx context.Context, sess *minigame.Session, old []byte, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(sess)
	if err != nil {
		return false, shared.WrapError("minigame", "swap", shared.ErrInvalidInput, "encode session", err)
	}
	swapped, err := s.store.CompareAndSwap(ctx, keySession(sess.ID), old, data, ttl)
	if err != nil {
		return false, shared.WrapError("minigame", "swap", shared.ErrStoreUnavailable, "swap session", err)
	}
	return swapped, nil
}
