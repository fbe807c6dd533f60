package app

import (
	"fmt"
	"strings"

	"prism/internal/domain"
)

const systemPromptTemplate = `You are Prism, a careful and reliable dietary health advisor combining modern nutrition science with data analysis.

## Responsibilities
1. Give personalised diet advice based on the user's health profile (chronic conditions, allergies, body data).
2. Review the user's meal records and suggest improvements.
3. Answer questions about healthy eating.
4. Identify food in photos and analyse its nutrition.

## Style
- Refined but plain language.
- Occasionally quote classic wellness sayings.
- Advice must be concrete and actionable.
- Warn clearly about dangerous food combinations.

## Limits
- You are not a doctor and must not diagnose or prescribe.
- For serious health problems, recommend seeing a professional.
- All advice is for reference only.

## User health profile
%s
`

const recognitionPromptTemplate = `Analyse this food photo carefully, identify every food in it and give a detailed nutrition analysis.

%s

Return the result as JSON in exactly this shape:
{
    "foods": [
        {
            "food_name": "name of the food",
            "confidence": 0.95,
            "estimated_portion": "estimated portion, e.g. about 150g",
            "nutrition": {
                "calories": kcal,
                "sodium": mg,
                "purine": mg,
                "protein": g,
                "carbs": g,
                "fat": g,
                "fiber": g
            },
            "category": "STAPLE/MEAT/VEG/DRINK/SNACK",
            "health_tips": "advice for this user's health conditions",
            "warnings": ["warnings such as allergy alerts"]
        }
    ],
    "ai_response": "a conversational reply as Prism with an overall assessment of the meal"
}

User health profile:
%s
`

// buildUserContext renders the health profile shared by every prompt.
func buildUserContext(u *domain.User, conditions []domain.HealthCondition) string {
	var parts []string
	if u != nil && u.HasBodyMetrics() {
		gender := "male"
		if u.Gender == domain.GenderFemale {
			gender = "female"
		}
		parts = append(parts, fmt.Sprintf("- Basics: %s, %d years, height %gcm, weight %gkg",
			gender, *u.Age, *u.Height, *u.Weight))
	}

	chronic, allergies := splitConditions(conditions)
	if len(chronic) > 0 {
		parts = append(parts, "- Chronic conditions: "+strings.Join(chronic, ", "))
	}
	if len(allergies) > 0 {
		parts = append(parts, "- Allergies: "+strings.Join(allergies, ", ")+" (strictly forbidden!)")
	}
	if len(parts) == 0 {
		return "The user has not completed a health profile yet."
	}
	return strings.Join(parts, "\n")
}

func systemPrompt(u *domain.User, conditions []domain.HealthCondition) string {
	return fmt.Sprintf(systemPromptTemplate, buildUserContext(u, conditions))
}

func recognitionPrompt(u *domain.User, conditions []domain.HealthCondition) string {
	var warning string
	if _, allergies := splitConditions(conditions); len(allergies) > 0 {
		warning = "The user is allergic to: " + strings.Join(allergies, ", ")
	}
	return fmt.Sprintf(recognitionPromptTemplate, warning, buildUserContext(u, conditions))
}

func splitConditions(conditions []domain.HealthCondition) (chronic, allergies []string) {
	for _, c := range conditions {
		switch c.Type {
		case domain.ConditionChronic:
			chronic = append(chronic, c.Title)
		case domain.ConditionAllergy:
			allergies = append(allergies, c.Title)
		}
	}
	return chronic, allergies
}
