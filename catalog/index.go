package catalog

import "sort"

// DefaultMatchThreshold is the minimum template-name overlap for two
// categories to be considered the same.
const DefaultMatchThreshold = 0.5

// Location points at a template inside a catalog.
type Location struct {
	CategoryIndex int
	TemplateIndex int
	Template      *Template
}

// BuildIndex maps every named template to its location. When a name is
// duplicated the last occurrence wins; use DuplicateNames to detect that.
func BuildIndex(c Catalog) map[string]Location {
	index := make(map[string]Location, c.TemplateCount())
	for ci, cat := range c {
		for ti, t := range cat.Templates {
			name := t.Name()
			if name == "" {
				continue
			}
			index[name] = Location{CategoryIndex: ci, TemplateIndex: ti, Template: t}
		}
	}
	return index
}

// MatchScore returns |a ∩ b| / max(|a|, |b|).
func MatchScore(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	shared := 0
	for name := range small {
		if _, ok := large[name]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(large))
}

// MatchCategory finds the target category that best corresponds to master,
// judged by template-name overlap. Categories are identified by membership,
// not by title, because locale files may rename or reorder them. The first
// category with the highest score wins; the match is rejected when that
// score is below threshold.
func MatchCategory(master *Category, target Catalog, threshold float64) (int, bool) {
	masterNames := master.TemplateNames()
	if len(masterNames) == 0 {
		return -1, false
	}

	best, bestScore := -1, 0.0
	for i, cat := range target {
		score := MatchScore(masterNames, cat.TemplateNames())
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 || bestScore < threshold {
		return -1, false
	}
	return best, true
}

// DuplicateNames returns template names that occur more than once, sorted.
func DuplicateNames(c Catalog) []string {
	seen := make(map[string]int)
	for _, cat := range c {
		for _, t := range cat.Templates {
			if name := t.Name(); name != "" {
				seen[name]++
			}
		}
	}
	var dups []string
	for name, n := range seen {
		if n > 1 {
			dups = append(dups, name)
		}
	}
	sort.Strings(dups)
	return dups
}
