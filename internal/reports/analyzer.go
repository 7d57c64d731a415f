package reports

import (
	"fmt"
	"strings"
)

// threatKeywords are scanned in severity order; the first level with a
// match sets the threat level.
var threatKeywords = []struct {
	level string
	words []string
}{
	{"critical", []string{"explosion", "attack", "sabotage", "infiltration", "bombing"}},
	{"high", []string{"movement", "troops", "suspect", "surveillance", "intrusion"}},
	{"medium", []string{"activity", "unusual", "relocation", "communication", "encrypted"}},
	{"low", []string{"observation", "patrol", "routine", "reconnaissance"}},
}

var keywordTags = []struct {
	keyword string
	tag     string
}{
	{"communication", "communications"},
	{"cyber", "cyber"},
	{"network", "network"},
	{"border", "ground"},
	{"vehicle", "ground"},
	{"weapon", "strategic"},
	{"maritime", "maritime"},
	{"aerial", "aerial"},
	{"terrorism", "terrorism"},
	{"civilian", "social"},
	{"economy", "economic"},
}

// Analyze produces a heuristic assessment of a report. It serves as the
// fallback when the AI service is unreachable or not configured.
func Analyze(report Report) Analysis {
	content := strings.ToLower(report.Content)

	threatLevel := "negligible"
	for _, group := range threatKeywords {
		for _, word := range group.words {
			if strings.Contains(content, word) {
				threatLevel = group.level
				break
			}
		}
		if threatLevel != "negligible" {
			break
		}
	}

	// Longer reports read as more substantiated, capped at 100.
	credibility := len(strings.Fields(content)) / 5
	if credibility > 100 {
		credibility = 100
	}

	var suggested []string
	seen := make(map[string]bool)
	for _, kt := range keywordTags {
		if strings.Contains(content, kt.keyword) && !seen[kt.tag] {
			seen[kt.tag] = true
			suggested = append(suggested, kt.tag)
		}
	}

	entities := map[string][]string{
		"locations":     {},
		"persons":       {},
		"organizations": {},
		"dates":         {},
	}
	if report.Location != "" {
		entities["locations"] = []string{report.Location}
	}

	return Analysis{
		Summary:          fmt.Sprintf("Automated analysis of report %q.", report.Title),
		ThreatLevel:      threatLevel,
		CredibilityScore: credibility,
		SuggestedTags:    suggested,
		Entities:         entities,
		RelatedReports:   []string{},
	}
}
