package tactics

import "fmt"

// Tag is a tactical classification for a single move.
type Tag uint8

const (
	TagNone Tag = iota
	TagMate
	TagCheck
	TagFork
	TagPin
	TagDiscoveredAttack
	TagBlunder
	TagOpportunity
)

var tagNames = map[Tag]string{
	TagNone:             "none",
	TagMate:             "mate",
	TagCheck:            "check",
	TagFork:             "fork",
	TagPin:              "pin",
	TagDiscoveredAttack: "discovered_attack",
	TagBlunder:          "blunder",
	TagOpportunity:      "tactical_opportunity",
}

func (t Tag) String() string {
	if s, ok := tagNames[t]; ok {
		return s
	}
	return "none"
}

// MarshalText implements encoding.TextMarshaler so tags serialize as their
// names in JSON records and CSV exports.
func (t Tag) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Tag) UnmarshalText(b []byte) error {
	s := string(b)
	for tag, name := range tagNames {
		if name == s {
			*t = tag
			return nil
		}
	}
	return fmt.Errorf("unknown tag %q", s)
}

// Label is a severity classification derived from the centipawn loss of a move.
type Label uint8

const (
	LabelAcceptable Label = iota
	LabelExcellent
	LabelGood
	LabelInaccuracy
	LabelMistake
	LabelBlunder
)

var labelNames = map[Label]string{
	LabelAcceptable: "acceptable",
	LabelExcellent:  "excellent",
	LabelGood:       "good",
	LabelInaccuracy: "inaccuracy",
	LabelMistake:    "mistake",
	LabelBlunder:    "blunder",
}

func (l Label) String() string {
	if s, ok := labelNames[l]; ok {
		return s
	}
	return "acceptable"
}

func (l Label) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Label) UnmarshalText(b []byte) error {
	s := string(b)
	for label, name := range labelNames {
		if name == s {
			*l = label
			return nil
		}
	}
	return fmt.Errorf("unknown label %q", s)
}

// Preset selects one of the two severity threshold schemes. A run picks one
// preset and applies it uniformly.
type Preset uint8

const (
	// PresetCoarse is the default scheme: <=-200 blunder, <=-80 mistake,
	// <=-20 inaccuracy, >=+20 excellent, else acceptable.
	PresetCoarse Preset = iota
	// PresetFine uses tighter loss buckets: <=-200 blunder, <=-100 mistake,
	// <=-50 inaccuracy, else good.
	PresetFine
)

// ParsePreset maps a CLI name to a preset.
func ParsePreset(s string) (Preset, error) {
	switch s {
	case "", "coarse":
		return PresetCoarse, nil
	case "fine":
		return PresetFine, nil
	}
	return PresetCoarse, fmt.Errorf("unknown severity preset %q", s)
}

func (p Preset) String() string {
	if p == PresetFine {
		return "fine"
	}
	return "coarse"
}

// ClassifySeverity buckets a centipawn delta (mover's perspective, negative =
// the mover lost ground) into a severity label under this preset.
func (p Preset) ClassifySeverity(scoreDiff int) Label {
	if p == PresetFine {
		switch {
		case scoreDiff <= -200:
			return LabelBlunder
		case scoreDiff <= -100:
			return LabelMistake
		case scoreDiff <= -50:
			return LabelInaccuracy
		}
		return LabelGood
	}
	switch {
	case scoreDiff <= -200:
		return LabelBlunder
	case scoreDiff <= -80:
		return LabelMistake
	case scoreDiff <= -20:
		return LabelInaccuracy
	case scoreDiff >= 20:
		return LabelExcellent
	}
	return LabelAcceptable
}
