package scoring

import (
	"strings"

	"github.com/dyluth/keel/pkg/ledger"
)

// ForeignTerm is a domain-specific word found in item text that belongs to an
// industry the truth does not claim.
type ForeignTerm struct {
	Term   string
	Domain string
}

// ForeignDomainTerms returns every known domain term in the text whose
// lexicon is neither claimed by the truth's industry nor part of the truth's
// own vocabulary. Order is deterministic: lexicon order, then term order.
func ForeignDomainTerms(text string, truth *ledger.ProjectTruth) []ForeignTerm {
	itemTokens := tokenSet(text)
	vocab := truthVocabulary(truth)
	industryTokens := tokenSet(truth.Industry)

	var found []ForeignTerm
	for _, lex := range domainLexicons {
		if claimedBy(lex, industryTokens) {
			continue
		}
		for _, term := range lex.terms {
			if itemTokens[term] && !vocab[term] {
				found = append(found, ForeignTerm{Term: term, Domain: lex.name})
			}
		}
	}
	return found
}

// ForeignUserTypes returns every recognised user-type mention in the text
// that is not among the truth's target users.
func ForeignUserTypes(text string, truth *ledger.ProjectTruth) []string {
	itemTokens := make(map[string]bool)
	for tok := range tokenSet(text) {
		itemTokens[singular(tok)] = true
	}

	targetTokens := make(map[string]bool)
	targetText := truth.TargetUsers.Primary + " " + strings.Join(truth.TargetUsers.Secondary, " ")
	for tok := range tokenSet(targetText) {
		targetTokens[singular(tok)] = true
	}

	var found []string
	for _, userType := range userTypeTerms {
		s := singular(userType)
		if itemTokens[s] && !targetTokens[s] {
			found = append(found, userType)
		}
	}
	return found
}

// MatchCreepPhrase reports the first scope-expanding phrase found in the
// text, if any.
func MatchCreepPhrase(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, phrase := range creepPhrases {
		if strings.Contains(lower, phrase) {
			return phrase, true
		}
	}
	return "", false
}
