package extractor

import (
	"context"
	"strings"
	"unicode"

	"github.com/synapse-hq/synapse/internal/domain"
)

// RuleExtractor is a gazetteer- and pattern-based entity extractor. It has no
// external dependencies and is fully deterministic, which makes it the
// default backend for ingestion pipelines that cannot ship a statistical
// model. Recall is bounded by its gazetteers; precision is kept high by only
// emitting spans it can classify.
type RuleExtractor struct{}

func NewRuleExtractor() *RuleExtractor {
	return &RuleExtractor{}
}

var _ Extractor = (*RuleExtractor)(nil)

// leading tokens that start sentences but never start a name
var leadingStopwords = map[string]bool{
	"the": true, "a": true, "an": true, "in": true, "on": true, "at": true,
	"by": true, "from": true, "to": true, "and": true, "or": true,
	"but": true, "if": true, "when": true, "while": true, "as": true,
	"it": true, "he": true, "she": true, "they": true, "we": true,
	"this": true, "that": true, "these": true, "those": true, "is": true,
	"are": true, "was": true, "were": true, "after": true, "before": true,
	"with": true, "for": true, "its": true, "his": true, "her": true,
	"their": true, "our": true, "there": true, "here": true, "then": true,
	"however": true, "also": true, "some": true, "many": true, "most": true,
}

type token struct {
	text  string
	start int // rune offset
	end   int
}

func (e *RuleExtractor) Extract(ctx context.Context, text string) ([]domain.Mention, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	runes := []rune(text)
	if len(runes) == 0 {
		return nil, nil
	}

	tokens := tokenize(runes)
	var mentions []domain.Mention

	i := 0
	for i < len(tokens) {
		tok := tokens[i]

		if m, ok := moneyMention(runes, tok); ok {
			mentions = append(mentions, m)
			i++
			continue
		}
		if m, consumed, ok := dateMention(runes, tokens, i); ok {
			mentions = append(mentions, m)
			i += consumed
			continue
		}
		if isCapitalized(tok.text) && !isNumeric(tok.text) {
			seq := capitalizedRun(runes, tokens, i)
			if m, ok := classifyRun(runes, tokens[i:i+seq]); ok {
				mentions = append(mentions, m)
			}
			i += seq
			continue
		}
		i++
	}

	return mentions, nil
}

// tokenize splits runes into word tokens (letters, digits, apostrophes),
// recording rune offsets. Punctuation is not part of any token.
func tokenize(runes []rune) []token {
	var tokens []token
	i := 0
	for i < len(runes) {
		r := runes[i]
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			start := i
			for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '\'') {
				i++
			}
			tokens = append(tokens, token{text: string(runes[start:i]), start: start, end: i})
			continue
		}
		i++
	}
	return tokens
}

// capitalizedRun returns how many tokens starting at index i form one
// capitalized phrase. Tokens join only across a single space; any punctuation
// or wider gap ends the run, so "Cupertino, California" stays two phrases.
func capitalizedRun(runes []rune, tokens []token, i int) int {
	n := 1
	for i+n < len(tokens) {
		prev, next := tokens[i+n-1], tokens[i+n]
		if !isCapitalized(next.text) || isNumeric(next.text) {
			break
		}
		if next.start-prev.end != 1 || runes[prev.end] != ' ' {
			break
		}
		n++
	}
	return n
}

func classifyRun(runes []rune, run []token) (domain.Mention, bool) {
	// sentence-leading stopwords are capitalization noise, not name parts
	for len(run) > 0 && leadingStopwords[strings.ToLower(run[0].text)] {
		run = run[1:]
	}
	if len(run) == 0 {
		return domain.Mention{}, false
	}

	span := func(last token, typ domain.EntityType) domain.Mention {
		start, end := run[0].start, last.end
		// an org suffix keeps its abbreviation period ("Apple Inc.")
		if typ == domain.EntityTypeOrg && end < len(runes) && runes[end] == '.' {
			end++
		}
		return domain.Mention{
			Surface: string(runes[start:end]),
			Type:    typ,
			Start:   start,
			End:     end,
		}
	}

	last := run[len(run)-1]
	if len(run) >= 2 && orgSuffixes[strings.ToLower(last.text)] {
		return span(last, domain.EntityTypeOrg), true
	}

	words := make([]string, len(run))
	for i, t := range run {
		words[i] = strings.ToLower(t.text)
	}
	phrase := strings.Join(words, " ")

	switch {
	case knownPlaces[phrase]:
		return span(last, domain.EntityTypeGPE), true
	case firstNames[words[0]] && len(run) >= 2:
		return span(last, domain.EntityTypePerson), true
	case knownOrgs[phrase]:
		return span(last, domain.EntityTypeOrg), true
	case knownProducts[phrase]:
		return span(last, domain.EntityTypeProduct), true
	case len(run) >= 2 && len(run) <= 4 && !sentenceInitial(runes, run[0]):
		return span(last, domain.EntityTypeOther), true
	}
	return domain.Mention{}, false
}

// sentenceInitial reports whether a token sits at the start of the text or
// right after sentence-ending punctuation.
func sentenceInitial(runes []rune, t token) bool {
	for i := t.start - 1; i >= 0; i-- {
		r := runes[i]
		if unicode.IsSpace(r) {
			continue
		}
		return strings.ContainsRune(".!?\n", r)
	}
	return true
}

func moneyMention(runes []rune, tok token) (domain.Mention, bool) {
	if !isNumeric(tok.text) || tok.start == 0 || runes[tok.start-1] != '$' {
		return domain.Mention{}, false
	}
	end := tok.end
	// extend over thousands separators and a decimal part: $1,234.56
	for end+1 < len(runes) && (runes[end] == ',' || runes[end] == '.') && unicode.IsDigit(runes[end+1]) {
		end++
		for end < len(runes) && unicode.IsDigit(runes[end]) {
			end++
		}
	}
	start := tok.start - 1
	return domain.Mention{
		Surface: string(runes[start:end]),
		Type:    domain.EntityTypeMoney,
		Start:   start,
		End:     end,
	}, true
}

// dateMention matches bare years (1000-2099) and "Month YYYY" / "Month D"
// forms. Returns the number of tokens consumed.
func dateMention(runes []rune, tokens []token, i int) (domain.Mention, int, bool) {
	tok := tokens[i]

	if monthNames[strings.ToLower(tok.text)] && isCapitalized(tok.text) && i+1 < len(tokens) {
		next := tokens[i+1]
		if isNumeric(next.text) && len(next.text) <= 4 && next.start-tok.end == 1 && runes[tok.end] == ' ' {
			return domain.Mention{
				Surface: string(runes[tok.start:next.end]),
				Type:    domain.EntityTypeDate,
				Start:   tok.start,
				End:     next.end,
			}, 2, true
		}
	}

	if isYear(tok.text) {
		return domain.Mention{
			Surface: tok.text,
			Type:    domain.EntityTypeDate,
			Start:   tok.start,
			End:     tok.end,
		}, 1, true
	}
	return domain.Mention{}, 0, false
}

func isCapitalized(s string) bool {
	r := []rune(s)
	return len(r) > 0 && unicode.IsUpper(r[0])
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func isYear(s string) bool {
	if len(s) != 4 || !isNumeric(s) {
		return false
	}
	return s[0] == '1' || (s[0] == '2' && s[1] == '0')
}
