package classify

import (
	"context"
	"log/slog"

	"github.com/Bhargavprasad-data/Jalrakshak-water-guarden-sub000/internal/model"
)

// Analyzer is the external AI anomaly scoring service, consumed as a
// black-box classifier.
type Analyzer interface {
	Analyze(ctx context.Context, r *model.TelemetryReading) (*Analysis, error)
}

// Classifier classifies readings with the rule table and defers
// non-matching readings to an optional AI analyzer. Safe for
// concurrent use.
type Classifier struct {
	rules Ruleset
	ai    Analyzer
}

// NewClassifier creates a classifier with the given ruleset. The
// analyzer may be nil, in which case unmatched readings yield no
// anomaly.
func NewClassifier(rules Ruleset, ai Analyzer) *Classifier {
	return &Classifier{rules: rules, ai: ai}
}

// Ruleset returns the ruleset this classifier evaluates.
func (c *Classifier) Ruleset() Ruleset {
	return c.rules
}

// Classify returns a finding for the reading, or nil when neither the
// rule table nor the analyzer detects an anomaly. Analyzer failures
// degrade to "no anomaly" and never propagate.
func (c *Classifier) Classify(ctx context.Context, r *model.TelemetryReading) *Finding {
	if f := Evaluate(r, c.rules); f != nil {
		return f
	}
	if c.ai == nil {
		return nil
	}

	analysis, err := c.ai.Analyze(ctx, r)
	if err != nil {
		slog.Debug("AI analysis unavailable, treating reading as normal",
			"device_id", r.DeviceID,
			"error", err,
		)
		return nil
	}
	if !analysis.AnomalyDetected {
		return nil
	}

	issue, ok := mapAnalyzerIssue(analysis.AnomalyType)
	if !ok {
		slog.Debug("AI analysis returned unknown anomaly type, skipping",
			"device_id", r.DeviceID,
			"anomaly_type", analysis.AnomalyType,
		)
		return nil
	}

	confidence := analysis.Confidence
	if confidence > 100 {
		confidence = 100
	}
	if confidence < 0 {
		confidence = 0
	}

	desc := analysis.Description
	if desc == "" {
		desc = "Anomaly detected in sensor readings"
	}
	if analysis.WaterQuality != nil && analysis.WaterQuality.Message != "" {
		desc += " | Water quality: " + analysis.WaterQuality.Message
	}

	f := &Finding{
		Issue:       issue,
		Severity:    model.ParseSeverity(analysis.Severity),
		Confidence:  confidence,
		Description: desc,
	}
	if est := analysis.GPSEstimate; est != nil {
		lat, lon := est.Lat, est.Lon
		f.GPSLat = &lat
		f.GPSLon = &lon
	}
	return f
}

// mapAnalyzerIssue maps analyzer anomaly type strings onto the engine's
// issue taxonomy. The analyzer predates the taxonomy and uses a few
// legacy names.
func mapAnalyzerIssue(s string) (model.IssueType, bool) {
	switch s {
	case "turbidity_anomaly":
		return model.IssueHighTurbidity, true
	case "general_anomaly":
		return model.IssuePressureAnomaly, true
	}
	issue := model.IssueType(s)
	if issue.IsValid() {
		return issue, true
	}
	return "", false
}
