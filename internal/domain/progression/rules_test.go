package progression

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelForPoints(t *testing.T) {
	assert.Equal(t, 1, LevelForPoints(0).Int())
	assert.Equal(t, 1, LevelForPoints(199).Int())
	assert.Equal(t, 2, LevelForPoints(250).Int())
	assert.Equal(t, 10, LevelForPoints(1000).Int())
	assert.Equal(t, 1, LevelForPoints(-50).Int())
}

func TestLevelForPoints_Monotonic(t *testing.T) {
	prev := LevelForPoints(0)
	for p := 1; p <= 5000; p++ {
		cur := LevelForPoints(p)
		assert.GreaterOrEqual(t, cur.Int(), prev.Int(), "points=%d", p)
		assert.GreaterOrEqual(t, cur.Int(), 1)
		prev = cur
	}
}

func TestBondLevelForMinutes(t *testing.T) {
	tests := []struct {
		minutes int
		want    int
		title   string
	}{
		{0, 1, "Acquaintance"},
		{29, 1, "Acquaintance"},
		{30, 1, "Acquaintance"},
		{60, 2, "Friends"},
		{150, 5, "Friends"},
		{180, 6, "Good Friends"},
		{330, 11, "Best Friends"},
		{630, 21, "Confidants"},
		{1530, 51, "Soulmates"},
	}

	for _, tt := range tests {
		level := BondLevelForMinutes(tt.minutes)
		assert.Equal(t, tt.want, level.Int(), "minutes=%d", tt.minutes)
		assert.Equal(t, tt.title, level.Title(), "minutes=%d", tt.minutes)
	}
}

func TestMilestonesCrossed(t *testing.T) {
	tests := []struct {
		name     string
		old, new int
		want     []string
	}{
		{"nothing", 0, 99, nil},
		{"exact threshold", 99, 100, []string{"points_100"}},
		{"starting on threshold does not repeat", 100, 150, nil},
		{"level five", 450, 500, []string{"points_500", "level_5"}},
		{"big jump", 0, 1000, []string{"points_100", "points_500", "points_1000", "level_5", "level_10"}},
		{"past everything", 1000, 5000, nil},
		{"no change", 300, 300, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, tag := range MilestonesCrossed(tt.old, tt.new) {
				got = append(got, tag.String())
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAchievementFor(t *testing.T) {
	a := AchievementFor(MilestoneTag{Kind: KindPoints, Threshold: 1000})
	assert.Equal(t, "Legend!", a.Title)
	assert.Equal(t, "points_1000", a.Tag.String())

	unknown := AchievementFor(MilestoneTag{Kind: KindPoints, Threshold: 42})
	assert.NotEmpty(t, unknown.Title)
	assert.NotEmpty(t, unknown.Message)
}

func TestLevelTitle(t *testing.T) {
	assert.Equal(t, "Chill Beginner", LevelForPoints(500).Title())
	assert.Equal(t, "Social Explorer", LevelForPoints(600).Title())
	assert.Equal(t, "Friendship Master", LevelForPoints(3000).Title())
	assert.Equal(t, "Bond Legend", LevelForPoints(5000).Title())
	assert.Equal(t, "Chill God", LevelForPoints(5100).Title())
}
