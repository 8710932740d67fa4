package scoring

import "strings"

// Curated domain lexicons for the deterministic heuristics. Each lexicon
// names a domain, the industry aliases that claim it as "own territory", and
// the vocabulary that signals work belongs to it. An item using vocabulary
// from a domain the project's industry does not claim is a domain mismatch.
type domainLexicon struct {
	name    string
	aliases []string
	terms   []string
}

var domainLexicons = []domainLexicon{
	{
		name:    "gambling",
		aliases: []string{"gambling", "casino", "betting", "bookmaker", "lottery"},
		terms:   []string{"casino", "odds", "betting", "bets", "wager", "jackpot", "poker", "slots", "roulette", "bookmaker", "payout", "gamble"},
	},
	{
		name:    "finance",
		aliases: []string{"finance", "bookkeeping", "accounting", "banking", "payroll", "fintech"},
		terms:   []string{"ledger", "invoice", "reconciliation", "payroll", "bookkeeping", "accounting", "expense", "audit", "balance", "tax", "receipt"},
	},
	{
		name:    "crypto",
		aliases: []string{"crypto", "cryptocurrency", "blockchain", "web3", "defi"},
		terms:   []string{"blockchain", "wallet", "token", "nft", "mining", "staking", "defi", "altcoin", "exchange"},
	},
	{
		name:    "healthcare",
		aliases: []string{"healthcare", "health", "medical", "clinical", "pharma"},
		terms:   []string{"patient", "diagnosis", "clinical", "prescription", "therapy", "symptom", "treatment", "dosage"},
	},
	{
		name:    "gaming",
		aliases: []string{"gaming", "games", "videogame", "esports"},
		terms:   []string{"leaderboard", "multiplayer", "quest", "loot", "achievement", "gamer", "esports", "matchmaking"},
	},
	{
		name:    "ecommerce",
		aliases: []string{"ecommerce", "retail", "commerce", "marketplace", "shopping"},
		terms:   []string{"cart", "checkout", "storefront", "catalog", "shipping", "wishlist", "merchandising"},
	},
	{
		name:    "social",
		aliases: []string{"social", "community", "networking"},
		terms:   []string{"followers", "feed", "likes", "influencer", "hashtag", "viral", "engagement"},
	},
	{
		name:    "education",
		aliases: []string{"education", "learning", "edtech", "training"},
		terms:   []string{"curriculum", "lesson", "quiz", "student", "enrollment", "grading", "coursework"},
	},
	{
		name:    "logistics",
		aliases: []string{"logistics", "shipping", "transport", "freight", "delivery"},
		terms:   []string{"freight", "warehouse", "routing", "fleet", "dispatch", "manifest", "tracking"},
	},
	{
		name:    "realestate",
		aliases: []string{"realestate", "property", "housing", "rental"},
		terms:   []string{"listing", "tenant", "lease", "mortgage", "landlord", "valuation", "escrow"},
	},
}

// userTypeTerms is the vocabulary of recognisable user-type mentions. An item
// that names a user type outside the truth's target users is misaligned.
var userTypeTerms = []string{
	"accountants", "bookkeepers", "gamblers", "teenagers", "children", "students",
	"teachers", "doctors", "nurses", "patients", "developers", "designers",
	"enterprises", "startups", "freelancers", "retailers", "investors", "traders",
	"influencers", "streamers", "gamers", "landlords", "tenants", "drivers",
	"managers", "executives", "contractors", "consultants", "owners", "admins",
}

// creepPhrases mark scope-expanding language. Combined with an elevated
// confidence they indicate feature creep.
var creepPhrases = []string{
	"while we're at it",
	"also add",
	"additionally",
	"nice to have",
	"bonus feature",
	"might as well",
	"and also",
	"on top of that",
	"as a stretch",
	"extra feature",
}

// stopwords excluded from all token comparisons.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "in": true, "is": true,
	"it": true, "of": true, "on": true, "or": true, "so": true, "that": true,
	"the": true, "to": true, "we": true, "with": true, "will": true, "this": true,
}

// tokenize lowercases text and splits it into stopword-free word tokens.
func tokenize(text string) []string {
	lower := strings.ToLower(text)
	fields := strings.FieldsFunc(lower, func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 || stopwords[f] {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// tokenSet builds a membership set from text.
func tokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range tokenize(text) {
		set[tok] = true
	}
	return set
}

// singular strips a trailing "s" so "gamblers" matches "gambler". Crude but
// deterministic, which matters more here than linguistic accuracy.
func singular(word string) string {
	if len(word) > 3 && strings.HasSuffix(word, "s") {
		return word[:len(word)-1]
	}
	return word
}
