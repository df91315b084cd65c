package safety

import "strings"

// span is a half-open token range [start, end) of one term occurrence.
type span struct {
	start int
	end   int
}

func (s span) within(other span) bool {
	return s.start >= other.start && s.end <= other.end
}

// document is tokenized input text with the vegan-equivalent and decorative
// spans precomputed, so every term set is matched against one view.
type document struct {
	tokens     []string
	veganSpans []span
	decoSpans  []span
}

func newDocument(text string) *document {
	d := &document{tokens: tokenize(Normalize(text))}
	for _, phrase := range veganEquivalentPhrases {
		d.veganSpans = append(d.veganSpans, d.findAll(phrase)...)
	}
	for _, marker := range decorativeMarkers {
		d.decoSpans = append(d.decoSpans, d.findAll(marker)...)
	}
	return d
}

// findAll returns every occurrence of term (a word or a multi-word phrase) as
// a token span. Matching whole tokens gives word-boundary semantics: "ration"
// never matches inside "decoration".
func (d *document) findAll(term string) []span {
	want := tokenize(Normalize(term))
	if len(want) == 0 || len(want) > len(d.tokens) {
		return nil
	}
	var out []span
	for i := 0; i+len(want) <= len(d.tokens); i++ {
		match := true
		for j, w := range want {
			if d.tokens[i+j] != w {
				match = false
				break
			}
		}
		if match {
			out = append(out, span{start: i, end: i + len(want)})
		}
	}
	return out
}

// Connector tokens that tie a decorative marker to the ingredient it
// modifies. forwardConnectors follow the marker ("garnish of shrimp",
// "garnished with parsley"); backwardConnectors precede it ("cilantro for
// decoration", "coentro para decorar").
var (
	forwardConnectors  = map[string]bool{"of": true, "with": true, "de": true, "com": true}
	backwardConnectors = map[string]bool{"for": true, "para": true}
)

// isDecorative reports whether occ names an ingredient that is only plated,
// not eaten. Suppression is directional and requires a connector: the term
// must follow "marker of/with", or precede "for marker", at most one token
// away. A term merely adjacent to a marker is never suppressed, so the beef
// in "grilled beef, garnished with parsley" stays detected.
func (d *document) isDecorative(occ span) bool {
	for _, deco := range d.decoSpans {
		// "garnish of X", "garnished with fresh X"
		if occ.start > deco.end && occ.start-deco.end <= 2 && forwardConnectors[d.tokens[deco.end]] {
			return true
		}
		// "X for decoration", "X seeds for decoration"
		if deco.start > occ.end && deco.start-occ.end <= 2 && backwardConnectors[d.tokens[deco.start-1]] {
			return true
		}
	}
	return false
}

func (d *document) insideVeganPhrase(occ span) bool {
	for _, v := range d.veganSpans {
		if occ.within(v) {
			return true
		}
	}
	return false
}

// matchOptions control which exclusion rules apply to a term set.
type matchOptions struct {
	// veganOverride drops occurrences that sit inside a vegan-equivalent
	// phrase ("milk" inside "coconut milk").
	veganOverride bool

	// contextSuppression drops terms whose every occurrence is decorative.
	contextSuppression bool
}

// detect returns the terms from the set that occur in the document, in the
// set's order, after applying the requested exclusion rules. A term survives
// if at least one of its occurrences survives.
func (d *document) detect(terms []string, opts matchOptions) []string {
	var out []string
	for _, term := range terms {
		occs := d.findAll(term)
		if len(occs) == 0 {
			continue
		}
		kept := false
		for _, occ := range occs {
			if opts.veganOverride && d.insideVeganPhrase(occ) {
				continue
			}
			if opts.contextSuppression && d.isDecorative(occ) {
				continue
			}
			kept = true
			break
		}
		if kept {
			out = append(out, term)
		}
	}
	return out
}

// dedupeSubsumed removes single-word terms already covered by a detected
// multi-word term ("beef" when "ground beef" matched), keeping reports short.
func dedupeSubsumed(terms []string) []string {
	var out []string
	for _, t := range terms {
		sub := false
		for _, other := range terms {
			if other != t && strings.Contains(" "+other+" ", " "+t+" ") {
				sub = true
				break
			}
		}
		if !sub {
			out = append(out, t)
		}
	}
	return out
}
