package camera

import "fmt"

// HardwareError is a camera failure reported by the client, carrying the
// message shown to the user
type HardwareError struct {
	Name    string
	Message string
}

func (e *HardwareError) Error() string {
	return e.UserMessage()
}

// UserMessage maps the browser error name to user-facing text
func (e *HardwareError) UserMessage() string {
	switch e.Name {
	case "NotAllowedError":
		return "🚫 Camera Permission Denied. Please reset permissions in browser settings."
	case "NotFoundError", "DevicesNotFoundError":
		return "📷 No Camera Found on this device."
	case "NotReadableError":
		return "⚠️ Camera is in use by another app."
	case "OverconstrainedError":
		return "⚠️ Camera constraints not supported."
	case "InsecureContext":
		return "⚠️ Camera requires HTTPS. Mobile browsers block it on HTTP."
	}
	msg := e.Message
	if msg == "" {
		msg = "Unknown error"
	}
	return fmt.Sprintf("Camera Error: %s", msg)
}
