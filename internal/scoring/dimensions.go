package scoring

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dyluth/keel/pkg/ledger"
)

// domainScorer detects vocabulary from domains the project's industry does
// not claim. Two or more foreign-domain terms is a hard signal: the item is
// plainly written for another industry.
type domainScorer struct{}

func (domainScorer) Name() string { return "domain" }

func (domainScorer) Score(text string, truth *ledger.ProjectTruth, _ []*ledger.ViolationPattern) Dimension {
	foreign := ForeignDomainTerms(text, truth)

	hits := len(foreign)
	evidence := ""
	if hits > 0 {
		evidence = fmt.Sprintf("%q (%s)", foreign[0].Term, foreign[0].Domain)
	}

	score := hits * 40
	if score > 100 {
		score = 100
	}

	return Dimension{
		Score:    score,
		Hard:     hits >= 2,
		Evidence: evidence,
	}
}

// claimedBy reports whether the truth's industry claims a lexicon as its own
// territory via the lexicon's alias list.
func claimedBy(lex domainLexicon, industryTokens map[string]bool) bool {
	for _, alias := range lex.aliases {
		if industryTokens[alias] || industryTokens[singular(alias)] {
			return true
		}
	}
	return false
}

// userScorer detects mentions of user types outside the truth's target users.
type userScorer struct{}

func (userScorer) Name() string { return "user" }

func (userScorer) Score(text string, truth *ledger.ProjectTruth, _ []*ledger.ViolationPattern) Dimension {
	mentions := ForeignUserTypes(text, truth)

	evidence := ""
	if len(mentions) > 0 {
		evidence = fmt.Sprintf("%q not a target user", mentions[0])
	}

	score := len(mentions) * 50
	if score > 100 {
		score = 100
	}

	return Dimension{Score: score, Evidence: evidence}
}

// competitorScorer detects overlap with competitor-exclusive concepts:
// vocabulary a competitor's description uses that the truth itself does not.
type competitorScorer struct{}

func (competitorScorer) Name() string { return "competitor" }

func (competitorScorer) Score(text string, truth *ledger.ProjectTruth, _ []*ledger.ViolationPattern) Dimension {
	itemTokens := tokenSet(text)
	vocab := truthVocabulary(truth)

	overlap := 0
	evidence := ""
	for _, competitor := range truth.Competitors {
		for _, term := range tokenize(competitor.Description) {
			if vocab[term] {
				continue
			}
			if itemTokens[term] {
				overlap++
				if evidence == "" {
					evidence = fmt.Sprintf("%q (%s territory)", term, competitor.Name)
				}
			}
		}
	}

	score := overlap * 34
	if score > 100 {
		score = 100
	}

	return Dimension{Score: score, Evidence: evidence}
}

// historyScorer boosts confidence when the item matches a previously learned
// violation pattern. The boost grows with the pattern's occurrence count.
type historyScorer struct{}

func (historyScorer) Name() string { return "historical" }

func (historyScorer) Score(text string, _ *ledger.ProjectTruth, patterns []*ledger.ViolationPattern) Dimension {
	lower := strings.ToLower(text)
	itemTokens := tokenSet(text)

	// Patterns come from an unordered set; sort so tie-breaking on equal
	// boosts is stable across runs.
	sorted := make([]*ledger.ViolationPattern, len(patterns))
	copy(sorted, patterns)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key() < sorted[j].Key() })

	best := 0
	evidence := ""
	for _, p := range sorted {
		if !patternMatches(p, lower, itemTokens) {
			continue
		}

		score := p.Occurrences * 20
		if score > 100 {
			score = 100
		}
		if score > best {
			best = score
			evidence = fmt.Sprintf("seen %d times as %s", p.Occurrences, p.Key())
		}
	}

	return Dimension{Score: best, Evidence: evidence}
}

// patternMatches reports whether the item text matches a pattern's signature,
// either as a substring or by containing all of its tokens.
func patternMatches(p *ledger.ViolationPattern, lowerText string, itemTokens map[string]bool) bool {
	sig := strings.ToLower(p.Signature)
	if sig == "" {
		return false
	}
	if strings.Contains(lowerText, sig) {
		return true
	}

	sigTokens := tokenize(sig)
	if len(sigTokens) == 0 {
		return false
	}
	for _, tok := range sigTokens {
		if !itemTokens[tok] {
			return false
		}
	}
	return true
}
