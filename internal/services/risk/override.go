package risk

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/bobmcallan/novus/internal/common"
	"github.com/bobmcallan/novus/internal/models"
)

// ErrInvalidOverride is returned when model output holds no JSON object.
var ErrInvalidOverride = errors.New("invalid risk override")

const maxFactors = 6

var allowedLabels = map[string]bool{
	models.RiskLow:          true,
	models.RiskModerateLow:  true,
	models.RiskModerate:     true,
	models.RiskModerateHigh: true,
	models.RiskHigh:         true,
	models.RiskNoData:       true,
}

// flexNumber accepts a JSON number or a numeric string.
type flexNumber struct {
	value float64
	ok    bool
}

func (f *flexNumber) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	f.value, f.ok = v, true
	return nil
}

// OverrideCategory is one category of a model-supplied profile.
type OverrideCategory struct {
	Type  string     `json:"type"`
	Label string     `json:"label"`
	Value flexNumber `json:"value"`
	Share flexNumber `json:"share"`
	Score flexNumber `json:"score"`
	Level string     `json:"level"`
}

// Override is a model-supplied risk profile. Every field is optional.
type Override struct {
	Score             flexNumber         `json:"score"`
	Label             string             `json:"label"`
	Note              string             `json:"note"`
	CategoryBreakdown []OverrideCategory `json:"categoryBreakdown"`
	Factors           []any              `json:"factors"`
}

// ParseOverride decodes the first {...} span of model output.
func ParseOverride(text string) (*Override, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, ErrInvalidOverride
	}
	var o Override
	if err := json.Unmarshal([]byte(text[start:end+1]), &o); err != nil {
		return nil, errors.Join(ErrInvalidOverride, err)
	}
	return &o, nil
}

// MergeOverride overlays o on base field by field. A field replaces the
// heuristic value only when present and valid; the result is marked as
// model-sourced when anything was taken from o.
func MergeOverride(base models.RiskProfile, o *Override) models.RiskProfile {
	if o == nil {
		return base
	}
	out := base
	used := false

	if o.Score.ok && !math.IsNaN(o.Score.value) && !math.IsInf(o.Score.value, 0) {
		out.Score = common.Round2(common.Clamp(o.Score.value, 0, 100))
		used = true
	}
	if label := strings.TrimSpace(o.Label); allowedLabels[label] {
		out.Label = label
		used = true
	}
	if note := strings.TrimSpace(o.Note); note != "" {
		out.Note = note
		used = true
	}
	if cats := sanitizeCategories(o.CategoryBreakdown); len(cats) > 0 {
		out.CategoryBreakdown = cats
		used = true
	}
	if factors := sanitizeFactors(o.Factors); len(factors) > 0 {
		out.Factors = factors
		used = true
	}

	if used {
		out.Source = SourceAI
	}
	return out
}

func sanitizeCategories(in []OverrideCategory) []models.CategoryRisk {
	var out []models.CategoryRisk
	for _, c := range in {
		class := models.AssetClass(strings.ToUpper(strings.TrimSpace(c.Type)))
		if _, known := baseRisk[class]; !known {
			continue
		}
		label := strings.TrimSpace(c.Label)
		if label == "" {
			label = class.Label()
		}
		level := c.Level
		if level == "" {
			level = models.RiskModerate
		}
		out = append(out, models.CategoryRisk{
			Type:  class,
			Label: label,
			Value: c.Value.value,
			Share: c.Share.value,
			Score: common.Clamp(c.Score.value, 0, 100),
			Level: SanitizeLevel(level),
		})
	}
	return out
}

func sanitizeFactors(in []any) []string {
	var out []string
	for _, f := range in {
		var s string
		switch v := f.(type) {
		case string:
			s = v
		case float64:
			s = strconv.FormatFloat(v, 'f', -1, 64)
		default:
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
		if len(out) == maxFactors {
			break
		}
	}
	return out
}

// SanitizeLevel coerces free text into a category level.
func SanitizeLevel(level string) string {
	v := strings.ToLower(level)
	switch {
	case strings.Contains(v, "high") && strings.Contains(v, "moderate"):
		return models.RiskModerateHigh
	case strings.Contains(v, "high"):
		return models.RiskHigh
	case strings.Contains(v, "moderate"):
		return models.RiskModerate
	}
	return models.RiskLow
}
