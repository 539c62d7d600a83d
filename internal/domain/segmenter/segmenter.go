// Package segmenter splits the plain text of a contract into clauses.
//
// Segmentation is a two-tier heuristic. When the text carries numbered
// section headers ("1. ", "12.\t") at the start of a line, every header
// starts a new clause and the lines under it fold into that clause. When no
// such header exists anywhere in the text, the text is split into
// paragraphs on blank lines instead. The choice is made once per document.
//
// All functions are pure and safe for concurrent use.
package segmenter

import (
	"regexp"
	"strings"
	"unicode"
)

// Clause is one segmented unit of contract text. Text is never empty and
// carries no leading or trailing whitespace; inner line breaks are kept.
type Clause struct {
	Text string `json:"text" yaml:"text"`
}

// Tier identifies the splitting strategy applied to a document.
type Tier int

const (
	// TierNumbered splits before every line-anchored section number.
	TierNumbered Tier = iota + 1
	// TierParagraph splits on runs of blank lines.
	TierParagraph
)

func (t Tier) String() string {
	switch t {
	case TierNumbered:
		return "numbered"
	case TierParagraph:
		return "paragraph"
	default:
		return "unknown"
	}
}

var (
	// One or two digits and a period, followed by a space or tab, at the
	// start of the text or of a line. "112. " and "see clause 1. above" do
	// not qualify.
	sectionMarker = regexp.MustCompile(`(?m)^\d{1,2}\.[ \t]+`)

	paragraphBreak = regexp.MustCompile(`\n{2,}`)
)

// Detect reports the tier Segment would use for raw.
func Detect(raw string) Tier {
	if sectionMarker.MatchString(raw) {
		return TierNumbered
	}
	return TierParagraph
}

// Segment splits raw into clauses in reading order.
//
// The empty string is rejected with an *InvalidInputError. Text made only of
// whitespace is accepted and yields no clauses.
func Segment(raw string) ([]Clause, error) {
	clauses, _, err := SegmentWithTier(raw)
	return clauses, err
}

// SegmentWithTier is Segment that also reports the tier that was applied.
func SegmentWithTier(raw string) ([]Clause, Tier, error) {
	if raw == "" {
		return nil, 0, newInvalidInput()
	}

	tier := Detect(raw)
	var parts []string
	if tier == TierNumbered {
		parts = splitBeforeMarkers(raw)
	} else {
		parts = paragraphBreak.Split(raw, -1)
	}
	return collect(parts), tier, nil
}

// SegmentValue segments loosely typed input such as a decoded JSON field or
// a nullable database column. Only a string or a non-nil *string is
// accepted; nil, numbers and every other type yield an *InvalidInputError.
func SegmentValue(v any) ([]Clause, Tier, error) {
	switch s := v.(type) {
	case string:
		return SegmentWithTier(s)
	case *string:
		if s == nil {
			return nil, 0, newInvalidInput()
		}
		return SegmentWithTier(*s)
	default:
		return nil, 0, newInvalidInput()
	}
}

// splitBeforeMarkers cuts raw immediately before each section marker. The
// text ahead of the first marker, if any, becomes its own part.
func splitBeforeMarkers(raw string) []string {
	locs := sectionMarker.FindAllStringIndex(raw, -1)
	parts := make([]string, 0, len(locs)+1)
	start := 0
	for _, loc := range locs {
		if loc[0] > start {
			parts = append(parts, raw[start:loc[0]])
		}
		start = loc[0]
	}
	return append(parts, raw[start:])
}

func collect(parts []string) []Clause {
	clauses := make([]Clause, 0, len(parts))
	for _, p := range parts {
		text := strings.TrimFunc(p, isTrimmable)
		if text == "" {
			continue
		}
		clauses = append(clauses, Clause{Text: text})
	}
	return clauses
}

// isTrimmable matches Unicode white space and the byte order mark, which
// extractors sometimes leave at the start of a document.
func isTrimmable(r rune) bool {
	return unicode.IsSpace(r) || r == '\uFEFF'
}
