package models

import (
	"fmt"
	"strings"
	"time"
)

type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// Provenance records where and how a signal was extracted.
type Provenance struct {
	Platform  Platform `json:"platform"`
	Channel   string   `json:"channel"`
	MessageID string   `json:"message_id"`
	Strategy  string   `json:"strategy"`
}

// Signal is a structured trading recommendation extracted from free text.
// Immutable once built by the extractor.
type Signal struct {
	Symbol      string     `json:"symbol"` // normalized BASE/QUOTE
	Direction   Direction  `json:"direction"`
	Entry       float64    `json:"entry"`
	Targets     []float64  `json:"targets"` // 1..3, in message order
	StopLoss    float64    `json:"stop_loss"`
	Leverage    int        `json:"leverage,omitempty"`
	Confidence  int        `json:"confidence"` // 0..100 completeness score, not a probability
	Warnings    []string   `json:"warnings,omitempty"`
	Source      Provenance `json:"source"`
	ExtractedAt time.Time  `json:"extracted_at"`
}

// Target returns the first target price, or 0 when none was extracted.
func (s *Signal) Target() float64 {
	if len(s.Targets) == 0 {
		return 0
	}
	return s.Targets[0]
}

// DedupKey identifies structurally identical signals: same pair and direction
// with entry/target/stop equal after rounding to 4 decimals.
func (s *Signal) DedupKey() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%s|%.4f|%.4f", s.Symbol, s.Direction, s.Entry, s.StopLoss)
	for _, t := range s.Targets {
		fmt.Fprintf(&b, "|%.4f", t)
	}
	return b.String()
}

// Consistent reports whether price ordering matches the direction:
// LONG expects target > entry > stop, SHORT the inverse. Fields that were
// not extracted (zero) are not checked.
func (s *Signal) Consistent() bool {
	tgt := s.Target()
	switch s.Direction {
	case DirectionLong:
		if s.Entry > 0 && tgt > 0 && tgt <= s.Entry {
			return false
		}
		if s.Entry > 0 && s.StopLoss > 0 && s.StopLoss >= s.Entry {
			return false
		}
	case DirectionShort:
		if s.Entry > 0 && tgt > 0 && tgt >= s.Entry {
			return false
		}
		if s.Entry > 0 && s.StopLoss > 0 && s.StopLoss <= s.Entry {
			return false
		}
	}
	return true
}
