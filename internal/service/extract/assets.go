package extract

import (
	"regexp"
	"strings"
)

// assetPattern maps one alias regex to a canonical base asset. Patterns are
// tried in order; the first match wins.
type assetPattern struct {
	base string
	re   *regexp.Regexp
}

// Curated allow-list. Longer/unambiguous aliases come first so that e.g.
// "bitcoin cash" is not claimed by the plain "bitcoin" pattern.
var assetPatterns = []assetPattern{
	{"BCH", regexp.MustCompile(`(?i)\b(?:bitcoin[ -]?cash|bch)\b`)},
	{"ETC", regexp.MustCompile(`(?i)\b(?:ethereum[ -]?classic|etc)\b`)},
	{"BTC", regexp.MustCompile(`(?i)\b(?:bitcoin|xbt|btc)\b`)},
	{"ETH", regexp.MustCompile(`(?i)\b(?:ethereum|ether|eth)\b`)},
	{"SOL", regexp.MustCompile(`(?i)\b(?:solana|sol)\b`)},
	{"BNB", regexp.MustCompile(`(?i)\b(?:binance[ -]?coin|bnb)\b`)},
	{"XRP", regexp.MustCompile(`(?i)\b(?:ripple|xrp)\b`)},
	{"ADA", regexp.MustCompile(`(?i)\b(?:cardano|ada)\b`)},
	{"DOGE", regexp.MustCompile(`(?i)\b(?:dogecoin|doge)\b`)},
	{"DOT", regexp.MustCompile(`(?i)\b(?:polkadot|dot)\b`)},
	{"AVAX", regexp.MustCompile(`(?i)\b(?:avalanche|avax)\b`)},
	{"LINK", regexp.MustCompile(`(?i)\b(?:chainlink|link)\b`)},
	{"MATIC", regexp.MustCompile(`(?i)\b(?:polygon|matic)\b`)},
	{"LTC", regexp.MustCompile(`(?i)\b(?:litecoin|ltc)\b`)},
	{"ATOM", regexp.MustCompile(`(?i)\b(?:cosmos|atom)\b`)},
	{"NEAR", regexp.MustCompile(`(?i)\bnear\b`)},
	{"APT", regexp.MustCompile(`(?i)\b(?:aptos|apt)\b`)},
	{"ARB", regexp.MustCompile(`(?i)\b(?:arbitrum|arb)\b`)},
	{"OP", regexp.MustCompile(`(?i)\b(?:optimism|op)\b`)},
	{"TON", regexp.MustCompile(`(?i)\b(?:toncoin|ton)\b`)},
	{"SUI", regexp.MustCompile(`(?i)\bsui\b`)},
	{"PEPE", regexp.MustCompile(`(?i)\bpepe\b`)},
	{"SHIB", regexp.MustCompile(`(?i)\b(?:shiba[ -]?inu|shib)\b`)},
}

// pairRe matches an explicit BASE/QUOTE or BASEQUOTE spelling like
// "BTC/USDT", "eth-usd" or "SOLUSDT".
var pairRe = regexp.MustCompile(`(?i)\b([a-z0-9]{2,6})[/\-_]?(usdt|usdc|busd|usd|btc|eth)\b`)

var knownBases = func() map[string]bool {
	m := make(map[string]bool, len(assetPatterns))
	for _, p := range assetPatterns {
		m[p.base] = true
	}
	return m
}()

// DetectAsset finds the first recognized asset mention in text and returns
// the normalized BASE/QUOTE pair. An explicit pair spelling wins over plain
// alias mentions; the quote defaults to defQuote.
func DetectAsset(text, defQuote string) (string, bool) {
	if defQuote == "" {
		defQuote = "USDT"
	}

	if m := pairRe.FindStringSubmatch(text); m != nil {
		base := strings.ToUpper(m[1])
		if knownBases[base] {
			return base + "/" + strings.ToUpper(m[2]), true
		}
	}

	for _, p := range assetPatterns {
		if p.re.MatchString(text) {
			return p.base + "/" + defQuote, true
		}
	}
	return "", false
}
