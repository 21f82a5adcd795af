// Package classify turns raw telemetry readings into anomaly findings.
// An ordered rule table handles dataset-asserted flags and threshold
// violations; readings that match no rule may be deferred to the
// external AI analyzer.
package classify

import (
	"github.com/Bhargavprasad-data/Jalrakshak-water-guarden-sub000/internal/model"
)

// Sensor thresholds for the derived rules.
const (
	pressureHighLimit = 800
	pressureLowLimit  = 200
	flowRateLowLimit  = 5
	turbidityLimit    = 10
	phLowLimit        = 6.5
	phHighLimit       = 8.5
)

// Rule confidences on the 0-100 scale. Flag-derived rules carry the
// dataset's own assertion and score higher than threshold heuristics.
const (
	ConfidenceLeakFlag          = 95
	ConfidenceContaminationFlag = 90
	ConfidenceAnomalyFlag       = 90
	ConfidenceHighPressure      = 90
	ConfidenceLowPressure       = 88
	ConfidenceHighTurbidity     = 88
	ConfidenceLowFlow           = 85
	ConfidenceLowPH             = 85
	ConfidenceHighPH            = 85
)

// Finding is the result of classifying a single reading.
type Finding struct {
	Issue       model.IssueType
	Severity    model.Severity
	Confidence  float64 // 0-100
	Description string

	// Analyzer-estimated location, set only for AI findings. Used as
	// a fallback when the reading carries no GPS fix of its own.
	GPSLat *float64
	GPSLon *float64
}

// Ruleset selects which derived rules a call site evaluates. The
// low-pressure rule is optional because not every consumer of the rule
// table wants readings flagged for supply dips.
type Ruleset struct {
	LowPressure bool
}

// DefaultRuleset evaluates the complete rule table.
func DefaultRuleset() Ruleset {
	return Ruleset{LowPressure: true}
}

// Evaluate runs the ordered rule table against a reading. The first
// matching rule wins; flag rules are checked before thresholds. Returns
// nil when no rule matches.
func Evaluate(r *model.TelemetryReading, rs Ruleset) *Finding {
	if flagSet(r.Metadata, "leak_flag") {
		return &Finding{
			Issue:       model.IssueLeak,
			Severity:    model.SeverityCritical,
			Confidence:  ConfidenceLeakFlag,
			Description: "Critical: Water leak detected - immediate action required",
		}
	}
	if flagSet(r.Metadata, "contamination_flag") {
		return &Finding{
			Issue:       model.IssueContamination,
			Severity:    model.SeverityHigh,
			Confidence:  ConfidenceContaminationFlag,
			Description: "High: Water contamination detected - test water quality immediately",
		}
	}
	if flagSet(r.Metadata, "anomaly_flag") {
		return &Finding{
			Issue:       model.IssuePressureAnomaly,
			Severity:    model.SeverityHigh,
			Confidence:  ConfidenceAnomalyFlag,
			Description: "High: Pressure anomaly detected - inspect pipeline segment",
		}
	}
	if r.Pressure != nil && *r.Pressure > pressureHighLimit {
		return &Finding{
			Issue:       model.IssueHighPressure,
			Severity:    model.SeverityCritical,
			Confidence:  ConfidenceHighPressure,
			Description: "Critical: Pressure dangerously high - risk of pipe burst",
		}
	}
	if rs.LowPressure && r.Pressure != nil && *r.Pressure < pressureLowLimit {
		return &Finding{
			Issue:       model.IssueLowPressure,
			Severity:    model.SeverityHigh,
			Confidence:  ConfidenceLowPressure,
			Description: "High: Pressure too low - possible leak or supply failure",
		}
	}
	if r.FlowRate != nil && *r.FlowRate < flowRateLowLimit {
		return &Finding{
			Issue:       model.IssueLowFlow,
			Severity:    model.SeverityHigh,
			Confidence:  ConfidenceLowFlow,
			Description: "High: Flow rate critically low - possible blockage",
		}
	}
	if r.Turbidity != nil && *r.Turbidity > turbidityLimit {
		return &Finding{
			Issue:       model.IssueHighTurbidity,
			Severity:    model.SeverityHigh,
			Confidence:  ConfidenceHighTurbidity,
			Description: "High: Turbidity above safe limit - possible contamination",
		}
	}
	if r.PH != nil && *r.PH < phLowLimit {
		return &Finding{
			Issue:       model.IssueLowPH,
			Severity:    model.SeverityMedium,
			Confidence:  ConfidenceLowPH,
			Description: "Medium: Water pH too low - acidic water detected",
		}
	}
	if r.PH != nil && *r.PH > phHighLimit {
		return &Finding{
			Issue:       model.IssueHighPH,
			Severity:    model.SeverityMedium,
			Confidence:  ConfidenceHighPH,
			Description: "Medium: Water pH too high - alkaline water detected",
		}
	}
	return nil
}
