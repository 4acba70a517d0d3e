package shared

// ═══════════════════════════════════════════════════════════════════════════
// Points Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Points is a non-negative point total.
type Points int

// PointsPerLevel is the number of points between user levels.
const PointsPerLevel = 100

// Int returns the underlying int value.
func (p Points) Int() int {
	return int(p)
}

// Add adds amount and returns the result, floored at zero.
func (p Points) Add(amount int) Points {
	result := Points(int(p) + amount)
	if result < 0 {
		return 0
	}
	return result
}

// Level derives the user level: floor(points/100), never below 1.
func (p Points) Level() Level {
	level := Level(int(p) / PointsPerLevel)
	if level < MinLevel {
		return MinLevel
	}
	return level
}

// ToNextLevel returns how many points are missing to reach the next level.
func (p Points) ToNextLevel() int {
	next := (int(p.Level()) + 1) * PointsPerLevel
	return next - int(p)
}

// ═══════════════════════════════════════════════════════════════════════════
// Level Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Level represents the user's level.
type Level int

// MinLevel is the floor of every derived level.
const MinLevel Level = 1

// Int returns the underlying int value.
func (l Level) Int() int {
	return int(l)
}

// Title returns a human-readable title for the level.
func (l Level) Title() string {
	switch {
	case l <= 5:
		return "Chill Beginner"
	case l <= 15:
		return "Social Explorer"
	case l <= 30:
		return "Friendship Master"
	case l <= 50:
		return "Bond Legend"
	default:
		return "Chill God"
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Bond Level Value Object
// ═══════════════════════════════════════════════════════════════════════════

// MinutesPerBondLevel is the number of shared chill minutes per bond level.
const MinutesPerBondLevel = 30

// BondLevel is the tier of a friendship derived from shared minutes.
type BondLevel int

// Int returns the underlying int value.
func (b BondLevel) Int() int {
	return int(b)
}

// Title returns the bond title for the level.
func (b BondLevel) Title() string {
	switch {
	case b <= 1:
		return "Acquaintance"
	case b <= 5:
		return "Friends"
	case b <= 10:
		return "Good Friends"
	case b <= 20:
		return "Best Friends"
	case b <= 50:
		return "Confidants"
	default:
		return "Soulmates"
	}
}
