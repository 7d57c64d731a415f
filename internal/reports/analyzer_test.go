package reports

import (
	"strings"
	"testing"
)

func TestAnalyzeThreatLevels(t *testing.T) {
	cases := []struct {
		content string
		want    string
	}{
		{"An explosion was reported at the depot.", "critical"},
		{"Troops spotted moving at night. Troop movement confirmed.", "high"},
		{"Encrypted communication intercepted.", "medium"},
		{"Routine patrol, nothing to report.", "low"},
		{"Weather was calm.", "negligible"},
	}
	for _, tc := range cases {
		report := Report{Title: "t", Content: tc.content}
		if got := Analyze(report).ThreatLevel; got != tc.want {
			t.Errorf("Analyze(%q).ThreatLevel = %q, want %q", tc.content, got, tc.want)
		}
	}
}

func TestAnalyzeCredibilityCapped(t *testing.T) {
	short := Analyze(Report{Content: "five words of short text"})
	if short.CredibilityScore != 1 {
		t.Errorf("short credibility = %d, want 1", short.CredibilityScore)
	}

	long := Analyze(Report{Content: strings.Repeat("word ", 1000)})
	if long.CredibilityScore != 100 {
		t.Errorf("long credibility = %d, want 100", long.CredibilityScore)
	}
}

func TestAnalyzeSuggestsTags(t *testing.T) {
	analysis := Analyze(Report{Content: "Cyber intrusion on the maritime communication network."})

	want := map[string]bool{"cyber": true, "maritime": true, "communications": true, "network": true}
	if len(analysis.SuggestedTags) != len(want) {
		t.Fatalf("tags = %v", analysis.SuggestedTags)
	}
	for _, tag := range analysis.SuggestedTags {
		if !want[tag] {
			t.Errorf("unexpected tag %q", tag)
		}
	}
}

func TestAnalyzeEntitiesIncludeLocation(t *testing.T) {
	analysis := Analyze(Report{Content: "quiet", Location: "Sector 7"})
	if len(analysis.Entities["locations"]) != 1 || analysis.Entities["locations"][0] != "Sector 7" {
		t.Errorf("locations = %v", analysis.Entities["locations"])
	}

	empty := Analyze(Report{Content: "quiet"})
	if len(empty.Entities["locations"]) != 0 {
		t.Errorf("locations = %v, want empty", empty.Entities["locations"])
	}
}
