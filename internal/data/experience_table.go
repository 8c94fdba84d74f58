package data

import (
	"math"
	"sort"
)

// MaxLevel is the highest reachable skill level.
const MaxLevel = 100

// ExperienceTable holds cumulative XP required to reach each level.
// Index = level (0-100). Level 0 is unused, level 1 requires 0 XP.
// Built once at init, never modified afterwards.
var ExperienceTable = buildExperienceTable()

// buildExperienceTable generates the OSRS-style curve:
// for i in 1..99: total += floor(i + 300*2^(i/7)); table[i+1] = floor(total/4).
func buildExperienceTable() [MaxLevel + 1]int64 {
	var table [MaxLevel + 1]int64
	var total int64
	for i := 1; i < MaxLevel; i++ {
		total += int64(math.Floor(float64(i) + 300*math.Pow(2, float64(i)/7)))
		table[i+1] = total / 4
	}
	return table
}

// RequiredXP returns cumulative XP required to reach the given level.
// Returns 0 for level <= 1. Levels above MaxLevel are treated as MaxLevel.
func RequiredXP(level int) int64 {
	if level <= 1 {
		return 0
	}
	if level > MaxLevel {
		level = MaxLevel
	}
	return ExperienceTable[level]
}

// LevelForXP returns the highest level whose threshold is <= xp.
// Negative xp maps to level 1.
func LevelForXP(xp int64) int {
	// First level in 2..MaxLevel whose threshold exceeds xp; the answer is the one before it.
	i := sort.Search(MaxLevel-1, func(i int) bool {
		return ExperienceTable[i+2] > xp
	})
	return i + 1
}

// XPProgressInLevel returns (xp gained inside current level, xp span of current level).
// At MaxLevel (or above) there is nothing left to progress: returns (0, 0).
func XPProgressInLevel(xp int64, level int) (int64, int64) {
	if level >= MaxLevel {
		return 0, 0
	}
	if level < 1 {
		level = 1
	}
	current := RequiredXP(level)
	next := RequiredXP(level + 1)
	return xp - current, next - current
}
