package profile

// Tier describes one row of the static level table.
type Tier struct {
	// Level is the 1-based level number.
	Level int

	// Name is the tier's display name.
	Name string

	// MinPoints is the minimum total points required for this tier.
	MinPoints int64

	// Perks are the named perks unlocked at this tier.
	Perks []string
}

// tiers is the single source of truth for level thresholds.
// Ordered ascending by MinPoints; Level(points) relies on that ordering.
var tiers = []Tier{
	{Level: 1, Name: "Newcomer", MinPoints: 0, Perks: []string{"daily_challenges"}},
	{Level: 2, Name: "Regular", MinPoints: 100, Perks: []string{"daily_challenges", "custom_reactions"}},
	{Level: 3, Name: "Enthusiast", MinPoints: 300, Perks: []string{"daily_challenges", "custom_reactions", "profile_badge"}},
	{Level: 4, Name: "Expert", MinPoints: 600, Perks: []string{"daily_challenges", "custom_reactions", "profile_badge", "poll_suggestions"}},
	{Level: 5, Name: "Master", MinPoints: 1000, Perks: []string{"daily_challenges", "custom_reactions", "profile_badge", "poll_suggestions", "priority_support"}},
	{Level: 6, Name: "Legend", MinPoints: 1500, Perks: []string{"daily_challenges", "custom_reactions", "profile_badge", "poll_suggestions", "priority_support", "legend_flair"}},
}

// Tiers returns a copy of the level table.
func Tiers() []Tier {
	out := make([]Tier, len(tiers))
	copy(out, tiers)
	return out
}

// Level maps a total-points value to its level number: the highest tier whose
// threshold does not exceed points. Pure and monotonic nondecreasing.
func Level(points int64) int {
	return TierFor(points).Level
}

// TierFor returns the full tier for a total-points value.
func TierFor(points int64) Tier {
	current := tiers[0]
	for _, t := range tiers[1:] {
		if points < t.MinPoints {
			break
		}
		current = t
	}
	return current
}

// TierByLevel returns the tier for a level number, or the first tier if the
// level is out of range.
func TierByLevel(level int) Tier {
	for _, t := range tiers {
		if t.Level == level {
			return t
		}
	}
	return tiers[0]
}

// NextTier returns the tier after the one holding points, and false if the
// user is already at the top tier.
func NextTier(points int64) (Tier, bool) {
	current := TierFor(points)
	for _, t := range tiers {
		if t.Level == current.Level+1 {
			return t, true
		}
	}
	return Tier{}, false
}

// PointsToNext returns how many points are missing until the next tier,
// and zero if the user is at the top tier.
func PointsToNext(points int64) int64 {
	next, ok := NextTier(points)
	if !ok {
		return 0
	}
	return next.MinPoints - points
}
