package service

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/engagehub/engagement-core/internal/domain/profile"
	"github.com/engagehub/engagement-core/internal/domain/shared"
	"github.com/engagehub/engagement-core/pkg/timeutil"
)

// activeSetTTL keeps per-day activity sets around long enough for the streak
// check (yesterday) and the 24h-active batch jobs.
const activeSetTTL = 48 * time.Hour

// Profiles manages per-user aggregate engagement state. Counters are mutated
// only via atomic hash increments; no read-modify-write from workers.
type Profiles struct {
	store  shared.KeyValueStore
	logger *slog.Logger
}

// NewProfiles creates the profile service.
func NewProfiles(store shared.KeyValueStore, logger *slog.Logger) *Profiles {
	return &Profiles{store: store, logger: logger}
}

// Get loads a user's profile. A user with no stored state gets a zero-valued
// level-1 profile rather than an error; profiles materialize on first write.
func (s *Profiles) Get(ctx context.Context, userID string) (*profile.UserProfile, error) {
	fields, err := s.store.HGetAll(ctx, keyProfile(userID))
	if err != nil {
		return nil, shared.WrapError("profile", "Get", shared.ErrStoreUnavailable, "load profile", err)
	}
	return profile.FromFields(userID, fields), nil
}

// Ensure registers the user and writes initial profile fields exactly once.
// Registration rides on the set-add: only the call that first adds the user
// to the registry writes the creation fields.
func (s *Profiles) Ensure(ctx context.Context, userID string) error {
	added, err := s.store.SAdd(ctx, keyUsersAll, userID, 0)
	if err != nil {
		return shared.WrapError("profile", "Ensure", shared.ErrStoreUnavailable, "register user", err)
	}
	if !added {
		return nil
	}

	p := profile.NewUserProfile(userID)
	if err := s.store.HSet(ctx, keyProfile(userID), p.InitialFields()); err != nil {
		return shared.WrapError("profile", "Ensure", shared.ErrStoreUnavailable, "write initial fields", err)
	}

	s.logger.Info("profile created", "user_id", userID)
	return nil
}

// MarkActive records user activity at now: updates the last-active timestamp,
// adds the user to today's activity set, and advances the daily streak.
//
// The streak advances at most once per UTC day, on the first activity of the
// day: continuing from yesterday increments it, anything else resets it to 1.
func (s *Profiles) MarkActive(ctx context.Context, userID string, now time.Time) error {
	if err := s.Ensure(ctx, userID); err != nil {
		return err
	}

	now = now.UTC()
	err := s.store.HSet(ctx, keyProfile(userID), map[string]string{
		profile.FieldLastActiveAt: now.Format(time.RFC3339),
	})
	if err != nil {
		return shared.WrapError("profile", "MarkActive", shared.ErrStoreUnavailable, "update last active", err)
	}

	today := timeutil.DayKey(now)
	first, err := s.store.SAdd(ctx, keyUsersActive(today), userID, activeSetTTL)
	if err != nil {
		return shared.WrapError("profile", "MarkActive", shared.ErrStoreUnavailable, "record activity", err)
	}
	if !first {
		return nil
	}

	// First activity of the day settles the streak. Concurrent callers race
	// on the set-add above, so exactly one of them reaches this point.
	yesterday := timeutil.DayKey(now.AddDate(0, 0, -1))
	continued, err := s.store.SIsMember(ctx, keyUsersActive(yesterday), userID)
	if err != nil {
		return shared.WrapError("profile", "MarkActive", shared.ErrStoreUnavailable, "check streak", err)
	}

	if continued {
		if _, err := s.store.HIncrBy(ctx, keyProfile(userID), profile.FieldStreakDays, 1); err != nil {
			return shared.WrapError("profile", "MarkActive", shared.ErrStoreUnavailable, "advance streak", err)
		}
		return nil
	}

	err = s.store.HSet(ctx, keyProfile(userID), map[string]string{profile.FieldStreakDays: "1"})
	if err != nil {
		return shared.WrapError("profile", "MarkActive", shared.ErrStoreUnavailable, "reset streak", err)
	}
	return nil
}

// IncrementCounter atomically adds delta to a profile counter field and
// returns the new value.
func (s *Profiles) IncrementCounter(ctx context.Context, userID, field string, delta int64) (int64, error) {
	n, err := s.store.HIncrBy(ctx, keyProfile(userID), field, delta)
	if err != nil {
		return 0, shared.WrapError("profile", "IncrementCounter", shared.ErrStoreUnavailable, "increment "+field, err)
	}
	return n, nil
}

// AllUserIDs returns every registered user.
func (s *Profiles) AllUserIDs(ctx context.Context) ([]string, error) {
	ids, err := s.store.SMembers(ctx, keyUsersAll)
	if err != nil {
		return nil, shared.WrapError("profile", "AllUserIDs", shared.ErrStoreUnavailable, "list users", err)
	}
	return ids, nil
}

// ActiveUserIDs returns users active within the last 24 hours. The per-day
// activity sets for the two calendar days that window can span bound the
// candidates; each candidate's last-active timestamp decides, so a user
// whose only activity was early yesterday does not slip in. Candidates
// whose profile cannot be read are logged and skipped.
func (s *Profiles) ActiveUserIDs(ctx context.Context, now time.Time) ([]string, error) {
	now = now.UTC()
	cutoff := now.Add(-24 * time.Hour)
	seen := make(map[string]struct{})
	var out []string

	for _, day := range []string{timeutil.DayKey(now), timeutil.DayKey(now.AddDate(0, 0, -1))} {
		members, err := s.store.SMembers(ctx, keyUsersActive(day))
		if err != nil {
			return nil, shared.WrapError("profile", "ActiveUserIDs", shared.ErrStoreUnavailable, "list active users", err)
		}
		for _, id := range members {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}

			p, err := s.Get(ctx, id)
			if err != nil {
				s.logger.Warn("active check skipped user", "user_id", id, "error", err)
				continue
			}
			if p.LastActiveAt.Before(cutoff) {
				continue
			}
			out = append(out, id)
		}
	}
	return out, nil
}

// SetLevel records the derived level on the profile. Levels only move up, so
// a plain write after winning the level-up grant is safe.
func (s *Profiles) SetLevel(ctx context.Context, userID string, level int) error {
	err := s.store.HSet(ctx, keyProfile(userID), map[string]string{
		profile.FieldLevel: strconv.Itoa(level),
	})
	if err != nil {
		return shared.WrapError("profile", "SetLevel", shared.ErrStoreUnavailable, "write level", err)
	}
	return nil
}
