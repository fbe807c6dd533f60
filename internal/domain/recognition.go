package domain

// NutritionInfo is the per-food nutrition estimate returned by the model.
// The three required values are pointers so a missing key can be detected.
type NutritionInfo struct {
	Calories *float64 `json:"calories"`
	Sodium   *float64 `json:"sodium"`
	Purine   *float64 `json:"purine"`
	Protein  *float64 `json:"protein,omitempty"`
	Carbs    *float64 `json:"carbs,omitempty"`
	Fat      *float64 `json:"fat,omitempty"`
	Fiber    *float64 `json:"fiber,omitempty"`
}

// FoodRecognition is one food identified in an image.
type FoodRecognition struct {
	FoodName         string        `json:"food_name"`
	Confidence       *float64      `json:"confidence"`
	EstimatedPortion string        `json:"estimated_portion"`
	Nutrition        NutritionInfo `json:"nutrition"`
	Category         FoodCategory  `json:"category"`
	HealthTips       string        `json:"health_tips,omitempty"`
	Warnings         []string      `json:"warnings"`
}

// RecognitionKind tags which variant a RecognitionResult holds.
type RecognitionKind string

const (
	RecognitionParsed   RecognitionKind = "parsed"
	RecognitionUnparsed RecognitionKind = "unparsed"
)

// RecognitionResult is the outcome of a food recognition call. Parsed
// results carry Foods and Reply; unparsed results carry the raw model
// text and the reason decoding failed.
type RecognitionResult struct {
	Kind     RecognitionKind   `json:"kind"`
	Success  bool              `json:"success"`
	Foods    []FoodRecognition `json:"foods"`
	Reply    string            `json:"ai_response"`
	RawText  string            `json:"raw_text,omitempty"`
	Reason   string            `json:"reason,omitempty"`
	ImageURL string            `json:"image_url,omitempty"`
}

// Parsed reports whether the model reply decoded cleanly.
func (r RecognitionResult) Parsed() bool {
	return r.Kind == RecognitionParsed
}
