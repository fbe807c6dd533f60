package domain

import "math"

// Default daily limits used when body metrics are incomplete.
const (
	DefaultCalorieTarget = 2000
	DefaultSodiumTarget  = 2300
	DefaultPurineTarget  = 600

	HypertensionSodiumTarget = 1500
	GoutPurineTarget         = 300

	lightActivityFactor = 1.375
)

// DailyTargets are the recommended daily upper bounds for a user.
type DailyTargets struct {
	Calories int `json:"calories"`
	Sodium   int `json:"sodium"`
	Purine   int `json:"purine"`
}

// ComputeDailyTargets derives daily limits from body metrics (Mifflin-St
// Jeor BMR with a light-activity factor) and the conditions that are
// currently active or monitored.
func ComputeDailyTargets(u *User, conditions []HealthCondition) DailyTargets {
	t := DailyTargets{
		Calories: DefaultCalorieTarget,
		Sodium:   DefaultSodiumTarget,
		Purine:   DefaultPurineTarget,
	}
	if u == nil || !u.HasBodyMetrics() {
		return t
	}

	s := 5.0
	if u.Gender == GenderFemale {
		s = -161
	}
	bmr := 10*(*u.Weight) + 6.25*(*u.Height) - 5*float64(*u.Age) + s
	t.Calories = int(math.Trunc(bmr * lightActivityFactor))

	for _, c := range conditions {
		if !c.Affects() {
			continue
		}
		switch c.ConditionCode {
		case CodeHypertension:
			t.Sodium = HypertensionSodiumTarget
		case CodeGout:
			t.Purine = GoutPurineTarget
		}
	}
	return t
}
