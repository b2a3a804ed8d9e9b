package classify

import (
	"sort"
	"strings"
)

// stopwords excluded from keyword scoring.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "for": true, "in": true,
	"of": true, "on": true, "or": true, "the": true, "to": true, "with": true,
}

func keywords(text string) []string {
	var words []string
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,;:()[]\"'")
		if len(w) < 3 || stopwords[w] {
			continue
		}
		words = append(words, w)
	}
	return words
}

// fallbackScore rates how well an item description fits a category by
// keyword overlap with the category's name and user-authored description.
// Scores are fractions of the description's keywords found, so they stay in
// [0, 1] before the cap.
func fallbackScore(description, categoryName, categoryDescription string) float64 {
	descWords := keywords(description)
	if len(descWords) == 0 {
		return 0
	}
	catWords := make(map[string]bool)
	for _, w := range keywords(categoryName + " " + categoryDescription) {
		catWords[w] = true
	}
	if len(catWords) == 0 {
		return 0
	}

	hits := 0
	for _, w := range descWords {
		if catWords[w] {
			hits++
			continue
		}
		// singular/plural leniency
		if strings.HasSuffix(w, "s") && catWords[w[:len(w)-1]] {
			hits++
		}
	}
	return float64(hits) / float64(len(descWords))
}

// fallbackDecision is the deterministic classification used when the
// service is unavailable or its response was rejected. The best-scoring
// category wins, with confidence capped so fallback results never pass the
// auto threshold. A zero score yields no category at all.
func (c *Classifier) fallbackDecision(key, description string) Decision {
	type scored struct {
		name  string
		id    string
		score float64
	}
	var ranked []scored
	for _, cat := range c.categories {
		if !cat.IsActive {
			continue
		}
		if s := fallbackScore(description, cat.Name, cat.Description); s > 0 {
			ranked = append(ranked, scored{name: cat.Name, id: cat.ID, score: s})
		}
	}
	if len(ranked) == 0 {
		return Decision{
			Key:          key,
			CategoryName: c.uncategorizedName(),
			CategoryID:   c.uncategorizedID(),
			Reasoning:    "no keyword overlap with any category",
			NeedsReview:  true,
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].name < ranked[j].name
	})

	conf := ranked[0].score
	if conf > c.policy.FallbackCap {
		conf = c.policy.FallbackCap
	}
	d := Decision{
		Key:          key,
		CategoryName: ranked[0].name,
		CategoryID:   ranked[0].id,
		Confidence:   conf,
		Reasoning:    "keyword fallback",
	}
	c.applyPolicy(&d)
	return d
}
