// Package change classifies before/after index pairs into significance
// decisions and human-readable interpretations.
package change

import (
	"math"

	"github.com/geopulselabs/geopulse/internal/config"
	"github.com/geopulselabs/geopulse/internal/imagery/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Guards the percentage-change denominator when the before value is
// exactly zero, so a zero-to-nonzero transition classifies as maximally
// significant instead of dividing by zero.
const epsilon = 1e-6

const (
	StatusSuccess  = "SUCCESS"
	StatusExcluded = "EXCLUDED"
)

// IndexChange is the classification of one index for one property.
type IndexChange struct {
	Before         float64
	After          float64
	Difference     float64
	PercentChange  float64
	Significant    string
	Interpretation string
}

// ChangeRecord aggregates the classification of all three indices for
// one property. EXCLUDED records carry the exclusion reason and no index
// arithmetic.
type ChangeRecord struct {
	PropertyID string
	Position   int
	Status     string
	Reason     string
	Vegetation IndexChange
	BuiltUp    IndexChange
	Water      IndexChange
}

type Params struct {
	fx.In

	Log *zap.Logger
	Cfg config.Config
}

// Classifier is pure and deterministic: the same before/after pair
// always yields an identical record.
type Classifier struct {
	log        *zap.Logger
	thresholds config.ThresholdConfig
}

func NewClassifier(p Params) *Classifier {
	return &Classifier{
		log:        p.Log.Named("change.classifier"),
		thresholds: p.Cfg.Thresholds,
	}
}

var Module = fx.Module("change",
	fx.Provide(NewClassifier),
)

// Classify pairs the two fetch results for one property. If either
// period failed, the record is EXCLUDED with that period's reason and no
// arithmetic is performed.
func (c *Classifier) Classify(propertyID string, position int, before, after domain.IndexResult) ChangeRecord {
	record := ChangeRecord{
		PropertyID: propertyID,
		Position:   position,
	}

	if !before.Succeeded() {
		record.Status = StatusExcluded
		record.Reason = "fetch before: " + before.Err
		return record
	}
	if !after.Succeeded() {
		record.Status = StatusExcluded
		record.Reason = "fetch after: " + after.Err
		return record
	}

	record.Status = StatusSuccess
	record.Vegetation = classifyIndex(before.Values.Vegetation, after.Values.Vegetation,
		c.threshold(c.thresholds.Vegetation), vegetationInterpretation)
	record.BuiltUp = classifyIndex(before.Values.BuiltUp, after.Values.BuiltUp,
		c.threshold(c.thresholds.BuiltUp), builtUpInterpretation)
	record.Water = classifyIndex(before.Values.Water, after.Values.Water,
		c.threshold(c.thresholds.Water), waterInterpretation)

	c.log.Debug("property classified",
		zap.String("property_id", propertyID),
		zap.String("vegetation", record.Vegetation.Significant),
		zap.String("built_up", record.BuiltUp.Significant),
		zap.String("water", record.Water.Significant),
	)
	return record
}

func (c *Classifier) threshold(perIndex float64) float64 {
	if perIndex > 0 {
		return perIndex
	}
	return c.thresholds.PercentCutoff
}

func classifyIndex(before, after, threshold float64, interpret func(diff float64) string) IndexChange {
	diff := after - before
	pct := diff / math.Max(math.Abs(before), epsilon) * 100

	significant := "No"
	if (pct > 0 && pct >= threshold) || (pct < 0 && pct <= -threshold) {
		significant = "Yes"
	}

	return IndexChange{
		Before:         before,
		After:          after,
		Difference:     round4(diff),
		PercentChange:  pct,
		Significant:    significant,
		Interpretation: interpret(diff),
	}
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// Interpretations read the raw difference and are independent of the
// significance decision: a sub-threshold gain still reads as growth.
func vegetationInterpretation(diff float64) string {
	switch {
	case diff > 0:
		return "Vegetation growth or improvement"
	case diff < 0:
		return "Vegetation loss or degradation"
	default:
		return "No vegetation change"
	}
}

func builtUpInterpretation(diff float64) string {
	switch {
	case diff > 0:
		return "Construction or development increase"
	case diff < 0:
		return "Construction or development decrease"
	default:
		return "No built-up area change"
	}
}

// Water interpretation keeps its own index-scale cutoff; small NDWI
// wobble around zero is noise, not flooding.
const waterInterpretCutoff = 0.05

func waterInterpretation(diff float64) string {
	switch {
	case diff > waterInterpretCutoff:
		return "Water increase or flooding"
	case diff < -waterInterpretCutoff:
		return "Water decrease or drought"
	default:
		return "No significant water change"
	}
}
