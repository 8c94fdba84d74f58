package model

import "time"

// SkillMining is the only skill type with actions today.
const SkillMining = "mining"

// SkillState is the persisted progression of one user in one skill.
//
// CurrentAction and ActionStartedAt are set together or not at all.
// Level is always derived from XP by the caller, never advanced on its own.
type SkillState struct {
	UserID          int64
	SkillType       string
	XP              int64
	Level           int
	CurrentAction   string     // "" = idle
	ActionStartedAt *time.Time // nil = idle
}

// NewSkillState returns a fresh idle skill at level 1.
func NewSkillState(userID int64, skillType string) *SkillState {
	return &SkillState{
		UserID:    userID,
		SkillType: skillType,
		Level:     1,
	}
}

// IsActing reports whether an action is in progress.
func (s *SkillState) IsActing() bool {
	return s.CurrentAction != "" && s.ActionStartedAt != nil
}

// StartAction sets the current action and its start time.
func (s *SkillState) StartAction(actionID string, now time.Time) {
	started := now
	s.CurrentAction = actionID
	s.ActionStartedAt = &started
}

// ClearAction returns the skill to idle.
func (s *SkillState) ClearAction() {
	s.CurrentAction = ""
	s.ActionStartedAt = nil
}

// Clone returns a deep copy.
func (s *SkillState) Clone() *SkillState {
	c := *s
	if s.ActionStartedAt != nil {
		t := *s.ActionStartedAt
		c.ActionStartedAt = &t
	}
	return &c
}
