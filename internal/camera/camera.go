package camera

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Mode is what the camera is currently streaming for
type Mode string

const (
	ModeNone    Mode = "none"
	ModeBarcode Mode = "barcode"
	ModePhoto   Mode = "photo"
)

// Device opens and closes the physical camera stream
type Device interface {
	Open(ctx context.Context, mode Mode) error
	Close(ctx context.Context) error
}

// Resource is the exclusive camera. Acquire always waits for the current
// stream to be released before the next one is opened.
type Resource struct {
	device Device
	settle time.Duration

	mu   sync.Mutex
	mode Mode
}

// NewResource wraps a device. settle is an optional pause between release and
// the next open.
func NewResource(device Device, settle time.Duration) *Resource {
	return &Resource{device: device, settle: settle, mode: ModeNone}
}

// Mode returns the current mode
func (r *Resource) Mode() Mode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode
}

// Acquire switches the camera to mode. Acquiring the current mode is a no-op.
func (r *Resource) Acquire(ctx context.Context, mode Mode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if mode == ModeNone {
		return r.release(ctx)
	}
	if r.mode == mode {
		return nil
	}
	if err := r.release(ctx); err != nil {
		return err
	}

	if r.settle > 0 {
		t := time.NewTimer(r.settle)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}

	if err := r.device.Open(ctx, mode); err != nil {
		return fmt.Errorf("failed to open camera for %s: %w", mode, err)
	}
	r.mode = mode
	slog.Debug("Camera acquired", "mode", mode)
	return nil
}

// Release stops the current stream
func (r *Resource) Release(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.release(ctx)
}

func (r *Resource) release(ctx context.Context) error {
	if r.mode == ModeNone {
		return nil
	}
	if err := r.device.Close(ctx); err != nil {
		return fmt.Errorf("failed to release camera: %w", err)
	}
	slog.Debug("Camera released", "mode", r.mode)
	r.mode = ModeNone
	return nil
}

// Tracker is a Device that only records the mode. The server uses it because
// the real camera lives in the client, which reports hardware errors back.
type Tracker struct {
	mu     sync.Mutex
	open   bool
	mode   Mode
	events []string
}

func (t *Tracker) Open(_ context.Context, mode Mode) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.open {
		return ErrBusy
	}
	t.open = true
	t.mode = mode
	t.events = append(t.events, "open:"+string(mode))
	return nil
}

func (t *Tracker) Close(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, "close:"+string(t.mode))
	t.open = false
	t.mode = ModeNone
	return nil
}

// Events returns the open/close history
func (t *Tracker) Events() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.events...)
}

// ErrBusy is returned when a stream is opened while another one is live
var ErrBusy = errors.New("camera is in use")
