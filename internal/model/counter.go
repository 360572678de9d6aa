package model

// MalaSize is the number of chants in one mala, the traditional cycle of
// mantra repetition.
const MalaSize = 108

// Counter is a named counting target. Count, Malas and Chants are carried
// only for export-format compatibility; lifetime totals are derived by
// aggregating sessions, never stored on the counter row.
type Counter struct {
	ID            string `json:"id"`
	UserID        string `json:"-"`
	Name          string `json:"name"`
	Count         int    `json:"count"`
	Malas         int    `json:"malas"`
	Chants        int    `json:"chants"`
	InitialCount  int    `json:"initialCount"`
	IncrementStep int    `json:"incrementStep"`
	Goal          int    `json:"goal"`
	DailyGoal     int    `json:"dailyGoal"`
	CreatedAt     int64  `json:"createdAt"`
}

func (c Counter) HasLifetimeGoal() bool {
	return c.Goal > 0
}

func (c Counter) HasDailyGoal() bool {
	return c.DailyGoal > 0
}

// LifetimeProgress reports progress toward the lifetime goal in [0, 1].
// A counter without a goal always reports 0.
func (c Counter) LifetimeProgress(totalCount int) float64 {
	if !c.HasLifetimeGoal() {
		return 0
	}
	progress := float64(totalCount) / float64(c.Goal)
	if progress > 1 {
		return 1
	}
	return progress
}

func (c Counter) DailyProgress(todayCount int) float64 {
	if !c.HasDailyGoal() {
		return 0
	}
	progress := float64(todayCount) / float64(c.DailyGoal)
	if progress > 1 {
		return 1
	}
	return progress
}

func (c Counter) IsLifetimeGoalAchieved(totalCount int) bool {
	return c.HasLifetimeGoal() && totalCount >= c.Goal
}

func (c Counter) IsDailyGoalAchieved(todayCount int) bool {
	return c.HasDailyGoal() && todayCount >= c.DailyGoal
}

// CountMalas converts a chant count to completed malas.
func CountMalas(count int) int {
	return count / MalaSize
}

// ClampStep enforces the minimum increment step of 1.
func ClampStep(step int) int {
	if step < 1 {
		return 1
	}
	return step
}

// ClampGoal treats negative goals as unset.
func ClampGoal(goal int) int {
	if goal < 0 {
		return 0
	}
	return goal
}
