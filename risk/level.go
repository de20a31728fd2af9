package risk

import (
	"fmt"
	"strconv"
	"strings"
)

// Level is an ordered risk classification.
type Level int

const (
	// None is only meaningful as a threshold: nothing auto-approves.
	None Level = iota
	Low
	Medium
	High
	Critical
)

var levelNames = map[Level]string{
	None:     "none",
	Low:      "low",
	Medium:   "medium",
	High:     "high",
	Critical: "critical",
}

// String returns the lowercase level name.
func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "level(" + strconv.Itoa(int(l)) + ")"
}

// Valid reports whether l can classify an action (None cannot).
func (l Level) Valid() bool {
	return l >= Low && l <= Critical
}

// ParseLevel parses a level name (case-insensitive) or its numeric form.
func ParseLevel(text string) (Level, error) {
	normalized := strings.ToLower(strings.TrimSpace(text))
	for level, name := range levelNames {
		if name == normalized {
			return level, nil
		}
	}
	if n, err := strconv.Atoi(normalized); err == nil {
		if level := Level(n); level >= None && level <= Critical {
			return level, nil
		}
	}
	return None, fmt.Errorf("unknown risk level %q", text)
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	if _, ok := levelNames[l]; !ok {
		return nil, fmt.Errorf("unknown risk level %d", int(l))
	}
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(text []byte) error {
	level, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = level
	return nil
}
