package barcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStabilizerConfirmsAfterThreshold(t *testing.T) {
	s := NewStabilizer(5)

	wantStatus := []string{StatusDetecting, StatusScanning, StatusScanning, StatusScanning, StatusVerified}
	for i, want := range wantStatus {
		obs := s.Observe("123456789012")
		assert.Equal(t, want, obs.Status, "frame %d", i+1)
		assert.Equal(t, i+1, obs.Progress)
		assert.Equal(t, i == 4, obs.Confirmed, "frame %d", i+1)
	}

	// emitted once only
	obs := s.Observe("123456789012")
	assert.False(t, obs.Confirmed)
	assert.Equal(t, StatusVerified, obs.Status)
}

func TestStabilizerChangedValueResets(t *testing.T) {
	s := NewStabilizer(3)

	s.Observe("111111")
	s.Observe("111111")
	obs := s.Observe("222222")
	assert.Equal(t, StatusDetecting, obs.Status)
	assert.Equal(t, 1, obs.Progress)
	assert.False(t, obs.Confirmed)

	s.Observe("222222")
	obs = s.Observe("222222")
	assert.True(t, obs.Confirmed)
	assert.Equal(t, "222222", obs.Code)
}

func TestStabilizerReset(t *testing.T) {
	s := NewStabilizer(1)
	assert.True(t, s.Observe("999999").Confirmed)
	assert.False(t, s.Observe("888888").Confirmed)

	s.Reset()
	obs := s.Observe("888888")
	assert.True(t, obs.Confirmed)
	assert.Equal(t, "888888", obs.Code)
}

func TestDefaultThreshold(t *testing.T) {
	assert.Equal(t, DefaultThreshold, NewStabilizer(0).Threshold())
}
