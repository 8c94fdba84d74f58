package skill

import (
	"time"

	"github.com/udisondev/idlemine/internal/data"
	"github.com/udisondev/idlemine/internal/model"
)

// ActionResult is the snapshot returned by Start and Stop.
type ActionResult struct {
	ActionID        string
	ActionName      string
	CurrentAction   string
	ActionStartedAt *time.Time
	TotalXP         int64
	Level           int
	XPInLevel       int64
	XPNeeded        int64
	Message         string
}

func newActionResult(sk *model.SkillState) ActionResult {
	xpIn, xpNeeded := data.XPProgressInLevel(sk.XP, sk.Level)
	res := ActionResult{
		CurrentAction: sk.CurrentAction,
		TotalXP:       sk.XP,
		Level:         sk.Level,
		XPInLevel:     xpIn,
		XPNeeded:      xpNeeded,
	}
	if sk.ActionStartedAt != nil {
		t := *sk.ActionStartedAt
		res.ActionStartedAt = &t
	}
	return res
}

// TickResult is the outcome of one Advance call.
type TickResult struct {
	// Acting is false when the skill is idle: the scheduler must stop.
	Acting bool
	// Completed is true when this call resolved one completion.
	Completed bool

	ActionID   string
	ActionName string
	Progress   float64 // 0..1, 0 right after a completion

	XPGained  int64
	TotalXP   int64
	Level     int
	LeveledUp bool
	NewLevel  int
	Quantity  int64 // owned count of the output item after completion

	XPInLevel int64
	XPNeeded  int64
	Message   string
}

// ActionStatus is one catalog entry as seen by a particular user.
type ActionStatus struct {
	data.Ore
	Quantity int64
	Unlocked bool
}

// Status is a read-only projection of one user's skill.
type Status struct {
	SkillType       string
	Level           int
	XP              int64
	XPInLevel       int64
	XPNeeded        int64
	CurrentAction   string
	ActionStartedAt *time.Time
	Progress        float64
	Actions         []ActionStatus
	Inventory       map[string]int64 // ore id → owned quantity
}

// Acting reports whether an action was in progress at snapshot time.
func (s Status) Acting() bool {
	return s.CurrentAction != ""
}
