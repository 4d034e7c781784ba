package scan

import (
	"errors"
	"fmt"

	"github.com/lehigh-university-libraries/shelfsense/internal/camera"
)

// State is a step of the scan flow
type State string

const (
	StateIdle            State = "IDLE"
	StateScanBarcode     State = "SCAN_BARCODE"
	StateLookup          State = "LOOKUP"
	StateScanFront       State = "SCAN_FRONT"
	StateScanIngredients State = "SCAN_INGREDIENTS"
	StateScanCrop        State = "SCAN_CROP"
	StateTransition      State = "TRANSITION"
	StateAnalyzing       State = "ANALYZING"
	StateResult          State = "RESULT"
	StateError           State = "ERROR"
)

// CropTarget says which capture the crop screen belongs to
type CropTarget string

const (
	CropFront       CropTarget = "FRONT"
	CropIngredients CropTarget = "INGREDIENTS"
)

// TopicStateChanged is the EventBus topic every transition is published on
const TopicStateChanged = "scan:state"

var (
	// ErrInvalidTransition is returned when an event is not allowed in the current state
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrBusy is returned while lookup, identification or analysis is running
	ErrBusy = errors.New("an analysis is already in progress")
)

func invalid(op string, from State) error {
	return fmt.Errorf("%w: cannot %s from %s", ErrInvalidTransition, op, from)
}

// Transition is published on TopicStateChanged
type Transition struct {
	SessionID string `json:"session_id"`
	From      State  `json:"from"`
	To        State  `json:"to"`
	Status    string `json:"status"`
}

// cameraMode is the stream each state needs
func cameraMode(s State) camera.Mode {
	switch s {
	case StateScanBarcode:
		return camera.ModeBarcode
	case StateScanFront, StateScanIngredients, StateScanCrop:
		return camera.ModePhoto
	default:
		return camera.ModeNone
	}
}

func defaultStatus(s State) string {
	switch s {
	case StateIdle:
		return "Ready"
	case StateScanBarcode:
		return "Point the camera at a barcode"
	case StateLookup:
		return "Checking Database..."
	case StateScanFront:
		return "Snap Front Package"
	case StateScanIngredients:
		return "Snap Ingredients (Recommended) or Nutrition"
	case StateScanCrop:
		return "Adjust the crop and confirm"
	case StateTransition:
		return "Switching camera..."
	case StateAnalyzing:
		return "Analyzing..."
	case StateResult:
		return "Analysis complete"
	case StateError:
		return "Could not analyze. Try again."
	}
	return ""
}
