package safety

import (
	"sort"
	"strings"

	"github.com/soulnutri/dishscan/internal/logging"
	"github.com/soulnutri/dishscan/internal/metrics"
)

// Alert is a human-readable safety finding.
type Alert struct {
	Kind     string   `json:"kind"`     // "category_correction" or "allergen"
	Severity string   `json:"severity"` // "high", "medium", "info"
	Message  string   `json:"message"`
	Terms    []string `json:"terms,omitempty"`
}

// Report is the full safety assessment of one candidate result. It is
// transient, computed per request, and always JSON-serializable with no
// absent fields.
type Report struct {
	OriginalCategory       string              `json:"original_category"`
	CorrectedCategory      string              `json:"corrected_category"`
	CategoryChanged        bool                `json:"category_changed"`
	DetectedAnimalProteins []string            `json:"detected_animal_proteins"`
	DetectedDerivatives    []string            `json:"detected_derivatives"`
	Allergens              map[string][]string `json:"allergens"`
	Alerts                 []Alert             `json:"alerts"`
	SafeForVegans          bool                `json:"safe_for_vegans"`
	SafeForVegetarians     bool                `json:"safe_for_vegetarians"`
}

// criticalAllergens get "high" severity alerts.
var criticalAllergens = map[string]bool{
	"peanut":    true,
	"shellfish": true,
	"fish":      true,
}

func joinInputs(name string, ingredients []string, description string) string {
	parts := make([]string, 0, len(ingredients)+2)
	parts = append(parts, name)
	parts = append(parts, ingredients...)
	parts = append(parts, description)
	return strings.Join(parts, " ")
}

// ValidateCategory corrects the declared diet category from the dish's name,
// ingredient list, and description. Decision order is strict priority: any
// detected animal protein forces "animal protein"; otherwise any detected
// derivative forces "vegetarian"; otherwise a declared vegan/vegetarian
// category is kept and anything else defaults to "vegan". With no usable text
// at all the category is "unknown", never "vegan".
func ValidateCategory(declared, name string, ingredients []string, description string) (corrected string, proteins, derivatives []string) {
	doc := newDocument(joinInputs(name, ingredients, description))

	proteins = dedupeSubsumed(doc.detect(animalProteinTerms, matchOptions{contextSuppression: true}))
	derivatives = dedupeSubsumed(doc.detect(animalDerivativeTerms, matchOptions{
		veganOverride:      true,
		contextSuppression: true,
	}))

	declaredNorm := Normalize(declared)

	switch {
	case len(proteins) > 0:
		corrected = CategoryAnimalProtein
	case len(derivatives) > 0:
		corrected = CategoryVegetarian
	case len(doc.tokens) == 0:
		// Nothing to validate against. Fail open to "unknown" rather than
		// asserting a safe classification on no data.
		corrected = CategoryUnknown
	case declaredNorm == CategoryVegan || declaredNorm == CategoryVegetarian:
		corrected = declaredNorm
	default:
		corrected = CategoryVegan
	}
	return corrected, proteins, derivatives
}

// DetectAllergens matches the text against the allergen-group trigger tables.
// Vegan-equivalent phrases suppress overlapping dairy/egg triggers ("coconut
// milk" raises no dairy flag) and decorative mentions are ignored.
func DetectAllergens(name string, ingredients []string, description string) map[string][]string {
	doc := newDocument(joinInputs(name, ingredients, description))

	out := map[string][]string{}
	for group, triggers := range allergenGroups {
		found := dedupeSubsumed(doc.detect(triggers, matchOptions{
			veganOverride:      allergenVeganOverride(triggers),
			contextSuppression: true,
		}))
		if len(found) > 0 {
			out[group] = found
		}
	}
	return out
}

// allergenVeganOverride reports whether a trigger set overlaps the animal
// derivative terms, in which case the vegan-phrase override applies. Plant
// triggers ("peanut" in "peanut butter", "almond" in "almond milk") must keep
// flagging even inside a vegan phrase.
func allergenVeganOverride(triggers []string) bool {
	for _, t := range triggers {
		for _, d := range animalDerivativeTerms {
			if t == d {
				return true
			}
		}
	}
	return false
}

// BuildReport composes category validation and allergen detection into one
// report. It never fails; malformed or empty input yields a report asserting
// no detections. Corrections are logged as warnings, never dropped silently.
func BuildReport(declared, name string, ingredients []string, description string) Report {
	corrected, proteins, derivatives := ValidateCategory(declared, name, ingredients, description)
	allergens := DetectAllergens(name, ingredients, description)

	r := Report{
		OriginalCategory:       declared,
		CorrectedCategory:      corrected,
		CategoryChanged:        Normalize(declared) != corrected,
		DetectedAnimalProteins: ensureSlice(proteins),
		DetectedDerivatives:    ensureSlice(derivatives),
		Allergens:              allergens,
		Alerts:                 []Alert{},
		SafeForVegans:          corrected == CategoryVegan,
		SafeForVegetarians:     corrected == CategoryVegan || corrected == CategoryVegetarian,
	}

	if r.CategoryChanged && (len(proteins) > 0 || len(derivatives) > 0) {
		reason := proteins
		if len(reason) == 0 {
			reason = derivatives
		}
		r.Alerts = append(r.Alerts, Alert{
			Kind:     "category_correction",
			Severity: "high",
			Message:  "category corrected from " + strings.TrimSpace(declared) + " to " + corrected,
			Terms:    ensureSlice(reason),
		})
		logging.Warn().
			Str("dish", name).
			Str("declared", declared).
			Str("corrected", corrected).
			Strs("proteins", proteins).
			Strs("derivatives", derivatives).
			Msg("unsafe category corrected")
		metrics.SafetyCorrections.WithLabelValues(corrected).Inc()
	}

	groups := make([]string, 0, len(allergens))
	for group := range allergens {
		groups = append(groups, group)
	}
	sort.Strings(groups)
	for _, group := range groups {
		severity := "medium"
		if criticalAllergens[group] {
			severity = "high"
		}
		r.Alerts = append(r.Alerts, Alert{
			Kind:     "allergen",
			Severity: severity,
			Message:  "contains " + group,
			Terms:    allergens[group],
		})
	}

	return r
}

func ensureSlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
