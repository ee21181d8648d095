package extract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"SigPull/internal/domain/models"
)

// Prices holds the numeric fields a strategy recovered from a message.
type Prices struct {
	Entry    float64
	Targets  []float64
	StopLoss float64
	Leverage int
}

// Strategy is one price-extraction heuristic. Strategies are applied in
// order; the first one to produce at least an entry price wins, which makes
// precedence explicit and testable per strategy.
type Strategy interface {
	Name() string
	Extract(text string, dir models.Direction) (Prices, bool)
}

const maxTargets = 3

// number matches a price token with optional thousands separators.
const number = `\$?\s*([0-9][0-9,]*(?:\.[0-9]+)?)`

// labeledStrategy extracts prices from explicitly labeled fields. Per field,
// regexes are tried in priority order and the first match determines the value.
type labeledStrategy struct {
	entry    []*regexp.Regexp
	targets  []*regexp.Regexp
	stop     []*regexp.Regexp
	leverage []*regexp.Regexp
}

func newLabeledStrategy() *labeledStrategy {
	return &labeledStrategy{
		entry: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(?:entry|enter|open|buy[ -]?in)(?:\s*(?:price|zone|point))?\s*[:=@]?\s*` + number),
			regexp.MustCompile(`(?i)(?:@|\bat)\s*` + number),
		},
		targets: []*regexp.Regexp{
			// optional target index, but then an explicit separator is required
			// so the index digit cannot be confused with the price itself
			regexp.MustCompile(`(?i)\b(?:target|tp|take[ -]?profit)\s*[1-9]?\s*[:=@]\s*` + number),
			regexp.MustCompile(`(?i)\b(?:target|tp|take[ -]?profit)\s+` + number),
			regexp.MustCompile(`(?i)\bsell\s+at\s*[:=]?\s*` + number),
		},
		stop: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(?:stop[ -]?loss|sl|stoploss)\s*[:=@]?\s*` + number),
			regexp.MustCompile(`(?i)\b(?:stop)\s*[:=@]\s*` + number),
		},
		leverage: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(?:leverage|lev)\s*[:=]?\s*x?\s*([0-9]{1,3})\b`),
			regexp.MustCompile(`(?i)\b([0-9]{1,3})\s*x\s*(?:leverage|lev)?\b`),
		},
	}
}

func (s *labeledStrategy) Name() string { return "labeled" }

func (s *labeledStrategy) Extract(text string, _ models.Direction) (Prices, bool) {
	var p Prices
	p.Entry = firstPrice(s.entry, text)

	for _, re := range s.targets {
		ms := re.FindAllStringSubmatch(text, maxTargets)
		if len(ms) == 0 {
			continue
		}
		for _, m := range ms {
			if v, ok := parsePrice(m[1]); ok {
				p.Targets = append(p.Targets, v)
			}
		}
		break
	}
	p.StopLoss = firstPrice(s.stop, text)

	for _, re := range s.leverage {
		if m := re.FindStringSubmatch(text); m != nil {
			if v, err := strconv.Atoi(m[1]); err == nil && v > 1 && v <= 125 {
				p.Leverage = v
			}
			break
		}
	}

	// Labeled extraction succeeds when at least one price field was found.
	ok := p.Entry != 0 || len(p.Targets) > 0 || p.StopLoss != 0
	if !ok {
		return Prices{}, false
	}
	return p, true
}

func firstPrice(res []*regexp.Regexp, text string) float64 {
	for _, re := range res {
		if m := re.FindStringSubmatch(text); m != nil {
			if v, ok := parsePrice(m[1]); ok {
				return v
			}
		}
	}
	return 0
}

// parsePrice strips thousands separators and parses the token. Malformed
// tokens are skipped silently per the extraction failure policy.
func parsePrice(tok string) (float64, bool) {
	tok = strings.ReplaceAll(tok, ",", "")
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// stepStrategy is the positional fallback: collect all plausible numeric
// tokens, sort them, and assign entry/target/stop by direction. Raises recall
// at the cost of precision; it carries no correctness guarantee.
type stepStrategy struct {
	token *regexp.Regexp
}

func newStepStrategy() *stepStrategy {
	return &stepStrategy{token: regexp.MustCompile(number)}
}

func (s *stepStrategy) Name() string { return "step" }

func (s *stepStrategy) Extract(text string, dir models.Direction) (Prices, bool) {
	ms := s.token.FindAllStringSubmatch(text, -1)
	nums := make([]float64, 0, len(ms))
	for _, m := range ms {
		if v, ok := parsePrice(m[1]); ok {
			nums = append(nums, v)
		}
	}
	if len(nums) < 3 {
		return Prices{}, false
	}
	sort.Float64s(nums)

	p := Prices{Entry: nums[len(nums)/2]}
	if dir == models.DirectionShort {
		p.Targets = []float64{nums[0]}
		p.StopLoss = nums[len(nums)-1]
	} else {
		p.Targets = []float64{nums[len(nums)-1]}
		p.StopLoss = nums[0]
	}
	return p, true
}
