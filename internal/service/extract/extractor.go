package extract

import (
	"fmt"
	"regexp"
	"time"

	"SigPull/internal/domain/models"
	applogger "SigPull/pkg/logger"
)

// Config holds explicit extractor configuration.
type Config struct {
	MinConfidence      int    // signals scoring below this are dropped
	RejectInconsistent bool   // reject instead of flag on bad price ordering
	QuoteAsset         string // default quote for alias-only mentions
}

// Extractor turns raw scraped messages into structured signals by applying
// asset/direction detection and an ordered list of price strategies.
type Extractor struct {
	cfg        Config
	strategies []Strategy
	log        *applogger.Logger
}

var horizonRe = regexp.MustCompile(`(?i)\b(?:intraday|swing|scalp|[0-9]+\s*(?:h|hr|hour|d|day|w|week)s?)\b`)

func New(cfg Config, log *applogger.Logger) *Extractor {
	if cfg.QuoteAsset == "" {
		cfg.QuoteAsset = "USDT"
	}
	return &Extractor{
		cfg: cfg,
		strategies: []Strategy{
			newLabeledStrategy(),
			newStepStrategy(),
		},
		log: log,
	}
}

// Extract parses one message into at most one signal. It never returns an
// error: unparseable input yields a nil result.
func (e *Extractor) Extract(msg *models.RawMessage) *models.Signal {
	if msg == nil || msg.Text == "" {
		return nil
	}

	symbol, ok := DetectAsset(msg.Text, e.cfg.QuoteAsset)
	if !ok {
		return nil
	}
	dir, ok := DetectDirection(msg.Text)
	if !ok {
		return nil
	}

	var prices Prices
	strategy := "none"
	for _, s := range e.strategies {
		if p, ok := s.Extract(msg.Text, dir); ok {
			prices = p
			strategy = s.Name()
			break
		}
	}

	sig := &models.Signal{
		Symbol:    symbol,
		Direction: dir,
		Entry:     prices.Entry,
		Targets:   prices.Targets,
		StopLoss:  prices.StopLoss,
		Leverage:  prices.Leverage,
		Source: models.Provenance{
			Platform:  msg.Platform,
			Channel:   msg.Channel,
			MessageID: msg.MessageID,
			Strategy:  strategy,
		},
		ExtractedAt: time.Now().UTC(),
	}
	sig.Confidence = scoreConfidence(sig, horizonRe.MatchString(msg.Text))

	if !sig.Consistent() {
		if e.cfg.RejectInconsistent {
			if e.log != nil {
				e.log.Warn("rejected inconsistent signal",
					applogger.String("symbol", sig.Symbol),
					applogger.String("direction", string(sig.Direction)))
			}
			return nil
		}
		sig.Warnings = append(sig.Warnings,
			fmt.Sprintf("price ordering inconsistent for %s direction", sig.Direction))
		if e.log != nil {
			e.log.Warn("inconsistent signal flagged",
				applogger.String("symbol", sig.Symbol),
				applogger.String("direction", string(sig.Direction)))
		}
	}

	if sig.Confidence < e.cfg.MinConfidence {
		return nil
	}
	return sig
}

// ExtractBatch extracts from a slice of messages and drops duplicates,
// keeping the earliest occurrence.
func (e *Extractor) ExtractBatch(msgs []*models.RawMessage) []*models.Signal {
	out := make([]*models.Signal, 0, len(msgs))
	for _, m := range msgs {
		if s := e.Extract(m); s != nil {
			out = append(out, s)
		}
	}
	return Dedup(out)
}

// Dedup retains the first of structurally identical signals (same pair,
// direction, and rounded prices).
func Dedup(signals []*models.Signal) []*models.Signal {
	seen := make(map[string]bool, len(signals))
	out := signals[:0]
	for _, s := range signals {
		k := s.DedupKey()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
	}
	return out
}

// Additive completeness points per recognized field, capped at 100.
const (
	ptsAsset     = 20
	ptsDirection = 20
	ptsEntry     = 20
	ptsTarget    = 15
	ptsStop      = 15
	ptsLeverage  = 5
	ptsHorizon   = 5
)

func scoreConfidence(s *models.Signal, hasHorizon bool) int {
	score := ptsAsset + ptsDirection // both are preconditions for a signal
	if s.Entry > 0 {
		score += ptsEntry
	}
	if len(s.Targets) > 0 {
		score += ptsTarget
	}
	if s.StopLoss > 0 {
		score += ptsStop
	}
	if s.Leverage > 0 {
		score += ptsLeverage
	}
	if hasHorizon {
		score += ptsHorizon
	}
	if score > 100 {
		score = 100
	}
	return score
}
