package model

import (
	"math"
	"strconv"
	"strings"
)

const keyUnit = "min"

// ResolveKey derives the registry key for a game context:
// "{game_mode}_{difficulty}_{duration}min".
func ResolveKey(gameMode string, difficulty int, durationMinutes float64) string {
	return gameMode + "_" + strconv.Itoa(difficulty) + "_" + FormatDuration(durationMinutes) + keyUnit
}

// FormatDuration renders a duration the way exported artifact names do.
// Whole numbers drop the fractional part (10.0 -> "10"); other values use the
// shortest decimal that round-trips (7.5 -> "7.5").
func FormatDuration(minutes float64) string {
	if minutes == 0 {
		return "0"
	}
	if minutes == math.Trunc(minutes) && math.Abs(minutes) < 1e15 {
		return strconv.FormatFloat(minutes, 'f', 0, 64)
	}
	return strconv.FormatFloat(minutes, 'f', -1, 64)
}

// KeyParts is a key split back into its context fields.
type KeyParts struct {
	GameMode        string  `json:"game_mode"`
	Difficulty      int     `json:"difficulty"`
	DurationMinutes float64 `json:"duration_minutes"`
}

// ParseKey splits a key produced by ResolveKey. Game modes may contain
// underscores; difficulty and duration are taken from the right.
func ParseKey(key string) (KeyParts, bool) {
	rest, ok := strings.CutSuffix(key, keyUnit)
	if !ok {
		return KeyParts{}, false
	}
	i := strings.LastIndexByte(rest, '_')
	if i < 0 {
		return KeyParts{}, false
	}
	dur, err := strconv.ParseFloat(rest[i+1:], 64)
	if err != nil {
		return KeyParts{}, false
	}
	rest = rest[:i]
	j := strings.LastIndexByte(rest, '_')
	if j <= 0 {
		return KeyParts{}, false
	}
	diff, err := strconv.Atoi(rest[j+1:])
	if err != nil {
		return KeyParts{}, false
	}
	return KeyParts{GameMode: rest[:j], Difficulty: diff, DurationMinutes: dur}, true
}

// Key renders p with ResolveKey.
func (p KeyParts) Key() string {
	return ResolveKey(p.GameMode, p.Difficulty, p.DurationMinutes)
}
