package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"prism/internal/domain"
)

const (
	defaultConfidence       = 0.8
	defaultRecognitionReply = "Recognition complete, see the nutrition analysis below."
)

var errNoJSON = errors.New("no JSON object in model reply")

type recognitionPayload struct {
	Foods      []domain.FoodRecognition `json:"foods"`
	AIResponse string                   `json:"ai_response"`
}

// ParseRecognition decodes a vision model reply. The JSON document is
// located tolerantly (a ```json fence, any ``` fence, or the outermost
// braces) and then decoded strictly into typed values. Any failure yields
// an unparsed result that keeps the raw text and the reason.
func ParseRecognition(raw string) domain.RecognitionResult {
	candidate, err := extractJSON(raw)
	if err != nil {
		return unparsed(raw, err)
	}

	var payload recognitionPayload
	if err := json.Unmarshal([]byte(candidate), &payload); err != nil {
		return unparsed(raw, err)
	}

	foods := make([]domain.FoodRecognition, 0, len(payload.Foods))
	for i, f := range payload.Foods {
		if err := checkFood(f); err != nil {
			return unparsed(raw, fmt.Errorf("foods[%d]: %w", i, err))
		}
		if f.Confidence == nil {
			c := defaultConfidence
			f.Confidence = &c
		}
		if f.Warnings == nil {
			f.Warnings = []string{}
		}
		foods = append(foods, f)
	}

	reply := strings.TrimSpace(payload.AIResponse)
	if reply == "" {
		reply = defaultRecognitionReply
	}
	return domain.RecognitionResult{
		Kind:    domain.RecognitionParsed,
		Success: len(foods) > 0,
		Foods:   foods,
		Reply:   reply,
	}
}

func unparsed(raw string, reason error) domain.RecognitionResult {
	return domain.RecognitionResult{
		Kind:    domain.RecognitionUnparsed,
		Foods:   []domain.FoodRecognition{},
		Reply:   raw,
		RawText: raw,
		Reason:  reason.Error(),
	}
}

func extractJSON(raw string) (string, error) {
	for _, fence := range []string{"```json", "```"} {
		i := strings.Index(raw, fence)
		if i < 0 {
			continue
		}
		rest := raw[i+len(fence):]
		if j := strings.Index(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		return strings.TrimSpace(rest), nil
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return "", errNoJSON
	}
	return raw[start : end+1], nil
}

func checkFood(f domain.FoodRecognition) error {
	if strings.TrimSpace(f.FoodName) == "" {
		return &domain.ValidationError{Field: "food_name", Reason: "is required"}
	}
	if strings.TrimSpace(f.EstimatedPortion) == "" {
		return &domain.ValidationError{Field: "estimated_portion", Reason: "is required"}
	}
	required := []struct {
		field string
		v     *float64
	}{
		{"nutrition.calories", f.Nutrition.Calories},
		{"nutrition.sodium", f.Nutrition.Sodium},
		{"nutrition.purine", f.Nutrition.Purine},
	}
	for _, r := range required {
		if r.v == nil {
			return &domain.ValidationError{Field: r.field, Reason: "is required"}
		}
		if *r.v < 0 {
			return &domain.ValidationError{Field: r.field, Reason: "must be >= 0"}
		}
	}
	if !f.Category.Valid() {
		return &domain.ValidationError{Field: "category", Reason: fmt.Sprintf("unknown category %q", f.Category)}
	}
	if f.Confidence != nil && (*f.Confidence < 0 || *f.Confidence > 1) {
		return &domain.ValidationError{Field: "confidence", Reason: "must be within [0, 1]"}
	}
	return nil
}
