// Package classify assigns a market type, niche and bet structure to markets,
// and a price bracket to entry prices. The labels key the trader profile stats.
package classify

import (
	"regexp"
	"strings"
)

const (
	NicheOther        = "OTHER"
	StructureStandard = "STANDARD"

	BracketLow  = "LOW"
	BracketMid  = "MID"
	BracketHigh = "HIGH"
)

// Result is the classification of one market.
type Result struct {
	MarketType string
	Niche      string
	Structure  string
}

type typeRule struct {
	name     string
	keywords []string
	titles   []string
}

// Order matters: esports before sports, sports before everything else.
var typeRules = []typeRule{
	{name: "ESPORTS",
		keywords: []string{"esports", "counter-strike", "cs2", "dota", "league of legends", "valorant", "honor of kings"},
		titles:   []string{"cs:", "bo3", "bo5", "lol:"}},
	{name: "SPORTS",
		keywords: []string{"sports", "nba", "nfl", "nhl", "mlb", "soccer", "football", "basketball", "tennis", "golf", "baseball", "hockey"},
		titles:   []string{" vs ", " vs. ", "o/u", "over/under", "both teams to score", "premier league", "serie a", "bundesliga", "la liga", "ligue 1"}},
	{name: "CRYPTO",
		keywords: []string{"crypto", "bitcoin", "ethereum", "btc", "eth", "solana", "xrp", "dogecoin"}},
	{name: "POLITICS",
		keywords: []string{"politics", "election", "president", "congress", "senate", "governor"}},
	{name: "FINANCE",
		keywords: []string{"finance", "stock", "nasdaq", "s&p", "earnings", "gdp", "fed", "interest rate", "inflation", "big tech"}},
	{name: "ENTERTAINMENT",
		keywords: []string{"entertainment", "movie", "box office", "music", "celebrity", "oscars", "grammy", "culture"}},
	{name: "WEATHER",
		keywords: []string{"weather", "temperature", "climate", "hurricane"}},
}

type nicheRule struct {
	niche    string
	keywords []string
}

var nicheRules = map[string][]nicheRule{
	"SPORTS": {
		{"NBA", []string{"nba", "basketball"}},
		{"NFL", []string{"nfl", "super bowl"}},
		{"NHL", []string{"nhl", "hockey"}},
		{"MLB", []string{"mlb", "baseball"}},
		{"SOCCER", []string{"soccer", "premier league", "la liga", "serie a", "bundesliga", "champions league", "fc"}},
		{"TENNIS", []string{"tennis", "atp", "wta"}},
	},
	"CRYPTO": {
		{"BITCOIN", []string{"bitcoin", "btc"}},
		{"ETHEREUM", []string{"ethereum", "eth"}},
	},
	"POLITICS": {
		{"ELECTION", []string{"election", "president", "primary"}},
	},
	"FINANCE": {
		{"TECH", []string{"big tech", "tech", "nvidia", "apple", "openai"}},
	},
}

var (
	overUnderRe = regexp.MustCompile(`\b(over|under)\b|o/u`)
	spreadRe    = regexp.MustCompile(`\b(spread|handicap)\b`)
	propRe      = regexp.MustCompile(`\bprop\b`)
	wordCache   = map[string]*regexp.Regexp{}
)

func init() {
	for _, r := range typeRules {
		for _, k := range r.keywords {
			wordCache[k] = wordRegexp(k)
		}
	}
	for _, rules := range nicheRules {
		for _, r := range rules {
			for _, k := range r.keywords {
				wordCache[k] = wordRegexp(k)
			}
		}
	}
}

func wordRegexp(k string) *regexp.Regexp {
	return regexp.MustCompile(`(^|[^a-z0-9])` + regexp.QuoteMeta(k) + `($|[^a-z0-9])`)
}

func containsWord(text, keyword string) bool {
	re, ok := wordCache[keyword]
	if !ok {
		return strings.Contains(text, keyword)
	}
	return re.MatchString(text)
}

// Market classifies a market from its title and tags.
func Market(title string, tags []string) Result {
	lowerTitle := strings.ToLower(title)
	lowerTags := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" && t != "null" && t != "none" {
			lowerTags = append(lowerTags, t)
		}
	}
	text := strings.Join(append([]string{lowerTitle}, lowerTags...), " ")

	res := Result{Niche: NicheOther, Structure: Structure(title)}
	for _, rule := range typeRules {
		if matchesAny(text, rule.keywords) || containsAny(lowerTitle, rule.titles) {
			res.MarketType = rule.name
			break
		}
	}
	if res.MarketType == "" {
		return res
	}

	res.Niche = res.MarketType
	for _, rule := range nicheRules[res.MarketType] {
		if matchesAny(text, rule.keywords) {
			res.Niche = rule.niche
			break
		}
	}
	return res
}

// Structure derives the bet structure from a market title.
func Structure(title string) string {
	t := strings.ToLower(strings.TrimSpace(title))
	switch {
	case overUnderRe.MatchString(t):
		return "OVER_UNDER"
	case spreadRe.MatchString(t):
		return "SPREAD"
	case strings.HasPrefix(t, "will ") || strings.Contains(t, "winner"):
		return "YES_NO"
	case propRe.MatchString(t):
		return "PROP"
	case strings.Contains(t, "head to head") || strings.Contains(t, "head-to-head") || strings.Contains(t, " vs"):
		return "HEAD_TO_HEAD"
	default:
		return StructureStandard
	}
}

// PriceBracket buckets an entry price: LOW below 0.35, HIGH above 0.65.
func PriceBracket(price float64) string {
	switch {
	case price < 0.35:
		return BracketLow
	case price > 0.65:
		return BracketHigh
	default:
		return BracketMid
	}
}

func matchesAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if containsWord(text, k) {
			return true
		}
	}
	return false
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}
