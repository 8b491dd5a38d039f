package auth

import (
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Detect ranks the registry's profiles against the login page source and
// returns them in descending confidence order. Profiles with no marker hits
// are dropped; when nothing is recognized, only the catch-all generic profile
// comes back. The generic profile is always appended last so an exhausted
// provider chain still gets one structure-only attempt.
func Detect(pageSource string, registry *Registry) []Profile {
	lowered := strings.ToLower(pageSource)
	title := pageTitle(pageSource)

	type scored struct {
		profile Profile
		score   int
	}

	var (
		ranked  []scored
		generic *Profile
	)
	for _, p := range registry.Profiles() {
		if len(p.Markers) == 0 {
			p := p
			generic = &p
			continue
		}
		score := 0
		for _, marker := range p.Markers {
			m := strings.ToLower(marker)
			score += strings.Count(lowered, m)
			// A marker in the document title is the strongest signal a page
			// gives away for free.
			if strings.Contains(title, m) {
				score += 10
			}
		}
		if score > 0 {
			ranked = append(ranked, scored{profile: p, score: score})
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	out := make([]Profile, 0, len(ranked)+1)
	for _, s := range ranked {
		out = append(out, s.profile)
	}
	if generic != nil {
		out = append(out, *generic)
	}
	return out
}

// pageTitle extracts the lowercased document title, empty when the source is
// not parseable as HTML.
func pageTitle(pageSource string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageSource))
	if err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(doc.Find("title").First().Text()))
}
