// Package protocol defines the JSON messages exchanged over the game websocket.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/udisondev/idlemine/internal/data"
	"github.com/udisondev/idlemine/internal/game/skill"
)

// Inbound actions.
const (
	ActionStartMining = "start_mining"
	ActionStopMining  = "stop_mining"
	ActionGetStatus   = "get_status"
)

// Outbound event types.
const (
	TypeStatus        = "status"
	TypeMiningStarted = "mining_started"
	TypeMiningTick    = "mining_tick"
	TypeOreMined      = "ore_mined"
	TypeLevelUp       = "level_up"
	TypeMiningStopped = "mining_stopped"
	TypeError         = "error"
)

// ClientMessage is a request sent by the browser.
type ClientMessage struct {
	Action string `json:"action"`
	Ore    string `json:"ore,omitempty"`
}

// DecodeClientMessage parses one inbound frame.
func DecodeClientMessage(raw []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return ClientMessage{}, fmt.Errorf("decoding client message: %w", err)
	}
	if msg.Action == "" {
		return ClientMessage{}, fmt.Errorf("decoding client message: missing action")
	}
	return msg, nil
}

// Event is any outbound message. EventType is written into the "type" field.
type Event interface {
	EventType() string
}

// Encode serialises ev with its "type" discriminator.
func Encode(ev Event) ([]byte, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encoding %s event: %w", ev.EventType(), err)
	}

	// Splice the type field in front of the event body: {"type":"x", ...body}.
	typ, err := json.Marshal(ev.EventType())
	if err != nil {
		return nil, fmt.Errorf("encoding %s event type: %w", ev.EventType(), err)
	}
	out := make([]byte, 0, len(body)+len(typ)+10)
	out = append(out, `{"type":`...)
	out = append(out, typ...)
	if len(body) > 2 {
		out = append(out, ',')
		out = append(out, body[1:]...)
	} else {
		out = append(out, '}')
	}
	return out, nil
}

// OreInfo is the static description of one ore.
type OreInfo struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	LevelRequired int     `json:"level_required"`
	XP            int64   `json:"xp"`
	MiningTime    float64 `json:"mining_time"` // seconds
	ASCII         string  `json:"ascii"`
	Color         string  `json:"color"`
	Description   string  `json:"description"`
}

// NewOreInfo converts a catalog entry.
func NewOreInfo(o data.Ore) OreInfo {
	return OreInfo{
		ID:            o.ID,
		Name:          o.Name,
		LevelRequired: o.LevelRequired,
		XP:            o.XP,
		MiningTime:    o.Duration.Seconds(),
		ASCII:         o.ASCII,
		Color:         o.Color,
		Description:   o.Description,
	}
}

// NewOreList converts the whole catalog, keeping its order.
func NewOreList(ores []data.Ore) []OreInfo {
	out := make([]OreInfo, 0, len(ores))
	for _, o := range ores {
		out = append(out, NewOreInfo(o))
	}
	return out
}

// OreView is one catalog entry in a status snapshot, with the user's progress.
type OreView struct {
	OreInfo
	Quantity int64 `json:"quantity"`
	Unlocked bool  `json:"unlocked"`
}

// StatusData is the full status snapshot.
type StatusData struct {
	SkillType     string           `json:"skill_type"`
	Level         int              `json:"level"`
	XP            int64            `json:"xp"`
	XPInLevel     int64            `json:"xp_in_level"`
	XPNeeded      int64            `json:"xp_needed"`
	CurrentAction *string          `json:"current_action"`
	ActionStarted *string          `json:"action_started"`
	Progress      float64          `json:"progress"`
	AvailableOres []OreView        `json:"available_ores"`
	Inventory     map[string]int64 `json:"inventory"`
}

// NewStatusData converts a processor snapshot to its wire form.
func NewStatusData(st skill.Status) StatusData {
	d := StatusData{
		SkillType:     st.SkillType,
		Level:         st.Level,
		XP:            st.XP,
		XPInLevel:     st.XPInLevel,
		XPNeeded:      st.XPNeeded,
		Progress:      st.Progress,
		AvailableOres: make([]OreView, 0, len(st.Actions)),
		Inventory:     st.Inventory,
	}
	if d.Inventory == nil {
		d.Inventory = map[string]int64{}
	}
	if st.Acting() {
		action := st.CurrentAction
		d.CurrentAction = &action
		if st.ActionStartedAt != nil {
			started := st.ActionStartedAt.UTC().Format(time.RFC3339Nano)
			d.ActionStarted = &started
		}
	}
	for _, a := range st.Actions {
		d.AvailableOres = append(d.AvailableOres, OreView{
			OreInfo:  NewOreInfo(a.Ore),
			Quantity: a.Quantity,
			Unlocked: a.Unlocked,
		})
	}
	return d
}

// StatusEvent is sent on connect and on get_status.
type StatusEvent struct {
	Data StatusData `json:"data"`
}

func (StatusEvent) EventType() string { return TypeStatus }

// NewStatusEvent wraps a processor snapshot.
func NewStatusEvent(st skill.Status) StatusEvent {
	return StatusEvent{Data: NewStatusData(st)}
}

// MiningStartedEvent confirms a successful start.
type MiningStartedEvent struct {
	OreID   string `json:"ore_id"`
	OreName string `json:"ore_name"`
	Message string `json:"message"`
}

func (MiningStartedEvent) EventType() string { return TypeMiningStarted }

// NewMiningStarted builds the start confirmation.
func NewMiningStarted(res skill.ActionResult) MiningStartedEvent {
	return MiningStartedEvent{
		OreID:   res.ActionID,
		OreName: res.ActionName,
		Message: res.Message,
	}
}

// MiningTickEvent reports in-progress advancement.
type MiningTickEvent struct {
	Progress float64 `json:"progress"`
	OreID    string  `json:"ore_id"`
	OreName  string  `json:"ore_name"`
}

func (MiningTickEvent) EventType() string { return TypeMiningTick }

// OreMinedEvent reports one completion.
type OreMinedEvent struct {
	OreID       string `json:"ore_id"`
	OreName     string `json:"ore_name"`
	XPGained    int64  `json:"xp_gained"`
	TotalXP     int64  `json:"total_xp"`
	Level       int    `json:"level"`
	OreQuantity int64  `json:"ore_quantity"`
	XPInLevel   int64  `json:"xp_in_level"`
	XPNeeded    int64  `json:"xp_needed"`
	Message     string `json:"message"`
}

func (OreMinedEvent) EventType() string { return TypeOreMined }

// LevelUpEvent follows an ore_mined event that raised the level.
type LevelUpEvent struct {
	Skill    string `json:"skill"`
	NewLevel int    `json:"new_level"`
}

func (LevelUpEvent) EventType() string { return TypeLevelUp }

// TickEvents converts one Advance result into the events to push, in order.
// Returns nil when the skill is idle.
func TickEvents(skillType string, res skill.TickResult) []Event {
	if !res.Acting {
		return nil
	}
	if !res.Completed {
		return []Event{MiningTickEvent{
			Progress: res.Progress,
			OreID:    res.ActionID,
			OreName:  res.ActionName,
		}}
	}

	events := []Event{OreMinedEvent{
		OreID:       res.ActionID,
		OreName:     res.ActionName,
		XPGained:    res.XPGained,
		TotalXP:     res.TotalXP,
		Level:       res.Level,
		OreQuantity: res.Quantity,
		XPInLevel:   res.XPInLevel,
		XPNeeded:    res.XPNeeded,
		Message:     res.Message,
	}}
	if res.LeveledUp {
		events = append(events, LevelUpEvent{Skill: skillType, NewLevel: res.NewLevel})
	}
	return events
}

// MiningStoppedEvent confirms a stop.
type MiningStoppedEvent struct {
	Message string `json:"message"`
	Level   int    `json:"level"`
	XP      int64  `json:"xp"`
}

func (MiningStoppedEvent) EventType() string { return TypeMiningStopped }

// NewMiningStopped builds the stop confirmation.
func NewMiningStopped(res skill.ActionResult) MiningStoppedEvent {
	return MiningStoppedEvent{
		Message: res.Message,
		Level:   res.Level,
		XP:      res.TotalXP,
	}
}

// ErrorEvent carries a user-facing failure message.
type ErrorEvent struct {
	Message string `json:"message"`
}

func (ErrorEvent) EventType() string { return TypeError }

// NewError builds an error event.
func NewError(msg string) ErrorEvent {
	return ErrorEvent{Message: msg}
}
