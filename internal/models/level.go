package models

import "fmt"

// Level is ordered: OK < WARN < ALERT.
type Level int

const (
	LevelOK Level = iota
	LevelWarn
	LevelAlert
)

var Levels = []Level{LevelOK, LevelWarn, LevelAlert}

func (l Level) String() string {
	switch l {
	case LevelOK:
		return "OK"
	case LevelWarn:
		return "WARN"
	case LevelAlert:
		return "ALERT"
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// Offending reports whether the level puts an instance in a report.
func (l Level) Offending() bool {
	return l >= LevelWarn
}
