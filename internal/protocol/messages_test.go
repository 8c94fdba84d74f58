package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/idlemine/internal/data"
	"github.com/udisondev/idlemine/internal/game/skill"
)

func decodeMap(t *testing.T, raw []byte) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	return m
}

func TestDecodeClientMessage(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    ClientMessage
		wantErr bool
	}{
		{"start", `{"action":"start_mining","ore":"copper"}`, ClientMessage{Action: ActionStartMining, Ore: "copper"}, false},
		{"stop", `{"action":"stop_mining"}`, ClientMessage{Action: ActionStopMining}, false},
		{"status", `{"action":"get_status"}`, ClientMessage{Action: ActionGetStatus}, false},
		{"malformed", `{"action":`, ClientMessage{}, true},
		{"no action", `{"ore":"copper"}`, ClientMessage{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeClientMessage([]byte(tt.raw))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncode_AddsType(t *testing.T) {
	raw, err := Encode(MiningTickEvent{Progress: 0.25, OreID: "iron", OreName: "Iron Ore"})
	require.NoError(t, err)

	m := decodeMap(t, raw)
	assert.Equal(t, TypeMiningTick, m["type"])
	assert.Equal(t, 0.25, m["progress"])
	assert.Equal(t, "iron", m["ore_id"])
	assert.Equal(t, "Iron Ore", m["ore_name"])
}

type emptyEvent struct{}

func (emptyEvent) EventType() string { return "ping" }

func TestEncode_EmptyBody(t *testing.T) {
	raw, err := Encode(emptyEvent{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"ping"}`, string(raw))
}

func TestTickEvents(t *testing.T) {
	t.Run("idle", func(t *testing.T) {
		assert.Nil(t, TickEvents("mining", skill.TickResult{}))
	})

	t.Run("in progress", func(t *testing.T) {
		evs := TickEvents("mining", skill.TickResult{Acting: true, Progress: 0.5, ActionID: "copper", ActionName: "Copper Ore"})
		require.Len(t, evs, 1)
		assert.Equal(t, MiningTickEvent{Progress: 0.5, OreID: "copper", OreName: "Copper Ore"}, evs[0])
	})

	t.Run("completion with level up", func(t *testing.T) {
		evs := TickEvents("mining", skill.TickResult{
			Acting: true, Completed: true,
			ActionID: "copper", ActionName: "Copper Ore",
			XPGained: 10, TotalXP: 90, Level: 2, Quantity: 9,
			LeveledUp: true, NewLevel: 2,
			XPInLevel: 7, XPNeeded: 91,
			Message: "+1 Copper Ore! +10 XP",
		})
		require.Len(t, evs, 2)
		mined, ok := evs[0].(OreMinedEvent)
		require.True(t, ok)
		assert.Equal(t, int64(9), mined.OreQuantity)
		assert.Equal(t, LevelUpEvent{Skill: "mining", NewLevel: 2}, evs[1])

		raw, err := Encode(evs[0])
		require.NoError(t, err)
		m := decodeMap(t, raw)
		assert.Equal(t, TypeOreMined, m["type"])
		assert.EqualValues(t, 10, m["xp_gained"])
		assert.EqualValues(t, 90, m["total_xp"])
		assert.EqualValues(t, 9, m["ore_quantity"])
	})
}

func TestNewStatusEvent(t *testing.T) {
	started := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	copper, _ := data.DefaultCatalog().Lookup("copper")
	st := skill.Status{
		SkillType:       "mining",
		Level:           3,
		XP:              200,
		CurrentAction:   "copper",
		ActionStartedAt: &started,
		Actions:         []skill.ActionStatus{{Ore: copper, Quantity: 4, Unlocked: true}},
		Inventory:       map[string]int64{"copper": 4},
	}

	raw, err := Encode(NewStatusEvent(st))
	require.NoError(t, err)

	m := decodeMap(t, raw)
	assert.Equal(t, TypeStatus, m["type"])
	body := m["data"].(map[string]any)
	assert.Equal(t, "copper", body["current_action"])
	assert.Equal(t, "2025-03-01T10:00:00Z", body["action_started"])
	ores := body["available_ores"].([]any)
	require.Len(t, ores, 1)
	ore := ores[0].(map[string]any)
	assert.Equal(t, 2.0, ore["mining_time"])
	assert.Equal(t, true, ore["unlocked"])
	assert.EqualValues(t, 4, ore["quantity"])
}

func TestNewStatusEvent_IdleHasNullAction(t *testing.T) {
	raw, err := Encode(NewStatusEvent(skill.Status{SkillType: "mining", Level: 1}))
	require.NoError(t, err)

	body := decodeMap(t, raw)["data"].(map[string]any)
	assert.Nil(t, body["current_action"])
	assert.Nil(t, body["action_started"])
	assert.Equal(t, map[string]any{}, body["inventory"])
}

func TestNewOreList(t *testing.T) {
	list := NewOreList(data.DefaultCatalog().List())
	require.Len(t, list, 5)
	assert.Equal(t, "copper", list[0].ID)
	assert.Equal(t, 3.5, list[1].MiningTime)
	assert.Equal(t, 70, list[4].LevelRequired)
}
