package reports

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/intelligence-service/platform/internal/httputil"
	"github.com/intelligence-service/platform/internal/logging"
)

// aiTimeout allows for slow model inference.
const aiTimeout = 30 * time.Second

// AIClient requests report analysis from the AI service, falling back
// to the local heuristic analyzer when the service is not configured or
// fails.
type AIClient struct {
	endpoint      string
	gatewaySecret string
	httpClient    *http.Client
	logger        *logging.Logger
}

func NewAIClient(endpoint, gatewaySecret string, logger *logging.Logger) *AIClient {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &AIClient{
		endpoint:      endpoint,
		gatewaySecret: gatewaySecret,
		httpClient:    &http.Client{Timeout: aiTimeout},
		logger:        logger,
	}
}

// Analyze returns the AI assessment of the report. Errors never escape:
// any failure degrades to the heuristic analyzer.
func (c *AIClient) Analyze(ctx context.Context, report Report) Analysis {
	if c.endpoint == "" {
		return Analyze(report)
	}
	analysis, err := c.request(ctx, report)
	if err != nil {
		c.logger.WithContext(ctx).WithError(err).WithField("report_id", report.ID).
			Warn("AI analysis failed, using heuristic analyzer")
		return Analyze(report)
	}
	return analysis
}

func (c *AIClient) request(ctx context.Context, report Report) (Analysis, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"report_id":      report.ID,
		"title":          report.Title,
		"content":        report.Content,
		"source":         report.Source,
		"classification": report.Classification,
		"location":       report.Location,
		"coordinates":    report.Coordinates,
	})
	if err != nil {
		return Analysis{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return Analysis{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.gatewaySecret != "" {
		req.Header.Set(httputil.GatewaySecretHeader, c.gatewaySecret)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Analysis{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Analysis{}, fmt.Errorf("ai service returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Analysis{}, err
	}
	return parseAnalysis(body)
}

// parseAnalysis tolerates partial or loosely-typed responses from the
// AI service; missing fields fall back to zero values.
func parseAnalysis(body []byte) (Analysis, error) {
	if !gjson.ValidBytes(body) {
		return Analysis{}, fmt.Errorf("ai service returned invalid JSON")
	}
	root := gjson.ParseBytes(body)

	analysis := Analysis{
		Summary:          root.Get("summary").String(),
		ThreatLevel:      root.Get("threat_level").String(),
		CredibilityScore: int(root.Get("credibility_score").Int()),
		SuggestedTags:    []string{},
		Entities:         map[string][]string{},
		RelatedReports:   []string{},
	}
	for _, tag := range root.Get("suggested_tags").Array() {
		analysis.SuggestedTags = append(analysis.SuggestedTags, tag.String())
	}
	root.Get("entities").ForEach(func(key, value gjson.Result) bool {
		var items []string
		for _, item := range value.Array() {
			items = append(items, item.String())
		}
		analysis.Entities[key.String()] = items
		return true
	})
	for _, related := range root.Get("related_reports").Array() {
		analysis.RelatedReports = append(analysis.RelatedReports, related.String())
	}
	return analysis, nil
}
