package reports

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/intelligence-service/platform/internal/httputil"
	"github.com/intelligence-service/platform/internal/logging"
)

func TestAIClientParsesServiceResponse(t *testing.T) {
	var gotPayload map[string]interface{}
	var gotSecret string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSecret = r.Header.Get(httputil.GatewaySecretHeader)
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"summary": "Hostile activity likely.",
			"threat_level": "high",
			"credibility_score": 72,
			"suggested_tags": ["ground", "strategic"],
			"entities": {"locations": ["Sector 7"], "persons": []},
			"related_reports": ["r-1"]
		}`))
	}))
	defer server.Close()

	client := NewAIClient(server.URL, "gw-secret", logging.NewNop())
	analysis := client.Analyze(context.Background(), Report{
		ID:      "r-42",
		Title:   "Test",
		Content: "content",
	})

	if analysis.Summary != "Hostile activity likely." {
		t.Errorf("summary = %q", analysis.Summary)
	}
	if analysis.ThreatLevel != "high" || analysis.CredibilityScore != 72 {
		t.Errorf("threat = %q, credibility = %d", analysis.ThreatLevel, analysis.CredibilityScore)
	}
	if len(analysis.SuggestedTags) != 2 || analysis.SuggestedTags[0] != "ground" {
		t.Errorf("tags = %v", analysis.SuggestedTags)
	}
	if len(analysis.Entities["locations"]) != 1 {
		t.Errorf("entities = %v", analysis.Entities)
	}
	if gotPayload["report_id"] != "r-42" {
		t.Errorf("payload report_id = %v", gotPayload["report_id"])
	}
	if gotSecret != "gw-secret" {
		t.Errorf("gateway secret header = %q", gotSecret)
	}
}

func TestAIClientFallsBackOnServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewAIClient(server.URL, "gw-secret", logging.NewNop())
	analysis := client.Analyze(context.Background(), Report{
		Title:   "Fallback",
		Content: "Explosion reported near the depot.",
	})

	// Heuristic analyzer takes over.
	if analysis.ThreatLevel != "critical" {
		t.Errorf("threat = %q, want critical from fallback", analysis.ThreatLevel)
	}
}

func TestAIClientFallsBackWhenUnconfigured(t *testing.T) {
	client := NewAIClient("", "", logging.NewNop())
	analysis := client.Analyze(context.Background(), Report{Title: "t", Content: "Routine patrol."})
	if analysis.ThreatLevel != "low" {
		t.Errorf("threat = %q, want low", analysis.ThreatLevel)
	}
}

func TestAIClientFallsBackOnInvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := NewAIClient(server.URL, "gw-secret", logging.NewNop())
	analysis := client.Analyze(context.Background(), Report{Title: "t", Content: "Routine patrol."})
	if analysis.ThreatLevel != "low" {
		t.Errorf("threat = %q, want low", analysis.ThreatLevel)
	}
}
