package barcode

import "sync"

// DefaultThreshold is the number of consecutive identical decodes required
const DefaultThreshold = 5

// Scan status strings shown to the user
const (
	StatusDetecting = "Detecting Barcode..."
	StatusScanning  = "Scanning..."
	StatusVerified  = "Verified!"
)

// Stabilizer confirms a decoded barcode once it has been read in enough
// consecutive frames. A different value restarts the count at 1.
type Stabilizer struct {
	threshold int

	mu        sync.Mutex
	last      string
	count     int
	confirmed bool
}

// NewStabilizer returns a stabilizer; threshold <= 0 uses DefaultThreshold
func NewStabilizer(threshold int) *Stabilizer {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Stabilizer{threshold: threshold}
}

// Observation is the result of one decoded frame
type Observation struct {
	Code      string `json:"code"`
	Status    string `json:"status"`
	Progress  int    `json:"progress"`
	Threshold int    `json:"threshold"`
	// Confirmed is true only for the frame that reached the threshold
	Confirmed bool `json:"confirmed"`
}

// Observe records one decoded frame. Frames after confirmation are ignored
// until Reset.
func (s *Stabilizer) Observe(code string) Observation {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.confirmed {
		return Observation{Code: s.last, Status: StatusVerified, Progress: s.threshold, Threshold: s.threshold}
	}

	status := StatusScanning
	if code != s.last {
		s.last = code
		s.count = 1
		status = StatusDetecting
	} else {
		s.count++
	}

	obs := Observation{
		Code:      code,
		Status:    status,
		Progress:  min(s.count, s.threshold),
		Threshold: s.threshold,
	}
	if s.count >= s.threshold {
		s.confirmed = true
		obs.Status = StatusVerified
		obs.Confirmed = true
	}
	return obs
}

// Reset clears the count so a new barcode can be confirmed
func (s *Stabilizer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = ""
	s.count = 0
	s.confirmed = false
}

// Threshold returns the configured frame count
func (s *Stabilizer) Threshold() int {
	return s.threshold
}
