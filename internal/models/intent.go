package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownIntent is returned by ParseIntent for unrecognized names
var ErrUnknownIntent = errors.New("unknown intent")

// Intent is the user-selected dietary goal that steers the analysis prompt
type Intent string

const (
	IntentGeneral    Intent = "General Health"
	IntentVegan      Intent = "Vegan"
	IntentKeto       Intent = "Keto"
	IntentLowSugar   Intent = "Low Sugar"
	IntentBudget     Intent = "Budget"
	IntentNutAllergy Intent = "Nut Allergy"
)

var intentAliases = map[string]Intent{
	"general":        IntentGeneral,
	"general health": IntentGeneral,
	"vegan":          IntentVegan,
	"keto":           IntentKeto,
	"low sugar":      IntentLowSugar,
	"low-sugar":      IntentLowSugar,
	"budget":         IntentBudget,
	"nut allergy":    IntentNutAllergy,
	"no nuts":        IntentNutAllergy,
}

// KnownIntents returns the selectable intents in display order
func KnownIntents() []Intent {
	return []Intent{IntentGeneral, IntentLowSugar, IntentVegan, IntentNutAllergy, IntentBudget, IntentKeto}
}

// ParseIntent accepts intent names and their short labels
func ParseIntent(s string) (Intent, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "" {
		return IntentGeneral, nil
	}
	if intent, ok := intentAliases[key]; ok {
		return intent, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownIntent, s)
}

// Label is the short chip label for an intent
func (i Intent) Label() string {
	switch i {
	case IntentGeneral:
		return "General"
	case IntentNutAllergy:
		return "No Nuts"
	default:
		return string(i)
	}
}
