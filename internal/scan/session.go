package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	evbus "github.com/asaskevich/EventBus"
	"github.com/lehigh-university-libraries/shelfsense/internal/analysis"
	"github.com/lehigh-university-libraries/shelfsense/internal/barcode"
	"github.com/lehigh-university-libraries/shelfsense/internal/camera"
	"github.com/lehigh-university-libraries/shelfsense/internal/imaging"
	"github.com/lehigh-university-libraries/shelfsense/internal/lookup"
	"github.com/lehigh-university-libraries/shelfsense/internal/models"
	"github.com/lehigh-university-libraries/shelfsense/internal/orchestrator"
)

// ProductLookup finds a product by barcode; nil, nil means not found
type ProductLookup interface {
	Lookup(ctx context.Context, barcode string) (*models.ProductResult, error)
}

// Analyzer produces verdicts and identifies products from photos
type Analyzer interface {
	AnalyzeImage(ctx context.Context, in analysis.AnalyzeInput) (*models.AnalysisResult, error)
	IdentifyProduct(ctx context.Context, image []byte) (analysis.Identification, error)
}

// Deps are the collaborators of a session
type Deps struct {
	Lookup   ProductLookup
	Analyzer Analyzer
	Camera   *camera.Resource
	Bus      evbus.Bus
	// ConfirmFrames is the barcode stability threshold
	ConfirmFrames int
	Intent        models.Intent
}

// Session is one user's scan flow. Lookup, identification and analysis run
// in the background; Wait blocks until they settle.
type Session struct {
	id         string
	deps       Deps
	stabilizer *barcode.Stabilizer
	created    time.Time

	mu         sync.Mutex
	state      State
	status     string
	errMsg     string
	gen        uint64
	data       models.ScanData
	intent     models.Intent
	history    models.SessionContext
	cropTarget CropTarget
	pending    []byte
	inflight   bool
	cancel     context.CancelFunc
	updated    time.Time
	events     []Transition

	wg sync.WaitGroup
}

// NewSession returns an IDLE session; call Start to open the barcode scanner
func NewSession(id string, deps Deps) *Session {
	if deps.Camera == nil {
		deps.Camera = camera.NewResource(&camera.Tracker{}, 0)
	}
	if deps.Bus == nil {
		deps.Bus = evbus.New()
	}
	intent := deps.Intent
	if intent == "" {
		intent = models.IntentGeneral
	}
	now := time.Now()
	return &Session{
		id:         id,
		deps:       deps,
		stabilizer: barcode.NewStabilizer(deps.ConfirmFrames),
		created:    now,
		updated:    now,
		state:      StateIdle,
		intent:     intent,
	}
}

// ID returns the session id
func (s *Session) ID() string { return s.id }

// Snapshot is a read-only view of a session
type Snapshot struct {
	ID         string          `json:"id"`
	State      State           `json:"state"`
	Status     string          `json:"status"`
	Error      string          `json:"error,omitempty"`
	Intent     models.Intent   `json:"intent"`
	CropTarget CropTarget      `json:"crop_target,omitempty"`
	Busy       bool            `json:"busy"`
	Data       models.ScanData `json:"data"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Snapshot returns the current state of the session
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:        s.id,
		State:     s.state,
		Status:    s.statusLocked(),
		Error:     s.errMsg,
		Intent:    s.intent,
		Busy:      s.inflight,
		Data:      s.data,
		CreatedAt: s.created,
		UpdatedAt: s.updated,
	}
	if s.state == StateScanCrop {
		snap.CropTarget = s.cropTarget
	}
	return snap
}

// State returns the current state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status is the guide text shown for the current state
func (s *Session) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

func (s *Session) statusLocked() string {
	if s.state == StateError && s.errMsg != "" {
		return s.errMsg
	}
	if s.status != "" {
		return s.status
	}
	return defaultStatus(s.state)
}

// Context returns the comparison context built from completed analyses
func (s *Session) Context() models.SessionContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history
}

// Wait blocks until background work has finished or ctx is done
func (s *Session) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) transitionLocked(to State, status string) {
	from := s.state
	s.state = to
	s.status = status
	s.updated = time.Now()
	s.events = append(s.events, Transition{SessionID: s.id, From: from, To: to, Status: s.statusLocked()})
	slog.Debug("Scan transition", "session", s.id, "from", from, "to", to)
}

// unlockAndPublish releases the lock before notifying subscribers so they
// may read the session
func (s *Session) unlockAndPublish() {
	events := s.events
	s.events = nil
	s.mu.Unlock()
	for _, e := range events {
		s.deps.Bus.Publish(TopicStateChanged, e)
	}
}

// beginLocked marks background work as running and returns its context
func (s *Session) beginLocked() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	s.inflight = true
	s.cancel = cancel
	s.wg.Add(1)
	return ctx
}

func (s *Session) stopWorkLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.inflight = false
}

func (s *Session) finish(gen uint64) {
	s.mu.Lock()
	if gen == s.gen {
		s.stopWorkLocked()
	}
	s.mu.Unlock()
}

// settle switches the camera for target and then enters it. Release of the
// previous stream is awaited before the next one is opened.
func (s *Session) settle(ctx context.Context, gen uint64, target State, status string) {
	err := s.deps.Camera.Acquire(ctx, cameraMode(target))

	s.mu.Lock()
	if gen != s.gen {
		// superseded while the camera was switching; match the current state
		mode := cameraMode(s.state)
		s.mu.Unlock()
		if err := s.deps.Camera.Acquire(context.Background(), mode); err != nil {
			slog.Warn("Failed to restore camera", "session", s.id, "error", err)
		}
		return
	}
	if err != nil {
		slog.Error("Camera switch failed", "session", s.id, "target", target, "error", err)
		s.errMsg = cameraMessage(err)
		s.gen++
		s.stopWorkLocked()
		s.transitionLocked(StateError, "")
	} else {
		s.transitionLocked(target, status)
	}
	s.unlockAndPublish()
}

func cameraMessage(err error) string {
	var hw *camera.HardwareError
	if errors.As(err, &hw) {
		return hw.UserMessage()
	}
	return "Camera busy. Please reset."
}

// userMessage is the error text shown on the ERROR screen
func userMessage(err error) string {
	switch {
	case errors.Is(err, orchestrator.ErrExhausted):
		return orchestrator.ErrExhausted.Error()
	case errors.Is(err, analysis.ErrParse):
		return "Failed to parse Analysis JSON."
	case err == nil:
		return ""
	}
	return err.Error()
}

// Start opens the barcode scanner
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		defer s.mu.Unlock()
		return invalid("start", s.state)
	}
	gen := s.gen
	s.mu.Unlock()

	s.settle(ctx, gen, StateScanBarcode, "")
	return nil
}

// Stop releases the camera and abandons any background work
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.gen++
	s.stopWorkLocked()
	s.transitionLocked(StateIdle, "")
	s.unlockAndPublish()
	return s.deps.Camera.Release(ctx)
}

// Frame feeds one decoded barcode frame. The barcode is looked up once it
// has been read in enough consecutive frames.
func (s *Session) Frame(ctx context.Context, code string) (barcode.Observation, error) {
	s.mu.Lock()
	if s.state != StateScanBarcode {
		defer s.mu.Unlock()
		return barcode.Observation{}, invalid("read a barcode frame", s.state)
	}
	obs := s.stabilizer.Observe(code)
	s.status = obs.Status
	s.updated = time.Now()
	s.mu.Unlock()

	if obs.Confirmed {
		if err := s.BarcodeDetected(ctx, obs.Code); err != nil {
			return obs, err
		}
	}
	return obs, nil
}

// BarcodeDetected starts a product lookup for a confirmed barcode
func (s *Session) BarcodeDetected(_ context.Context, code string) error {
	s.mu.Lock()
	if s.inflight {
		s.mu.Unlock()
		return ErrBusy
	}
	if s.state != StateScanBarcode {
		defer s.mu.Unlock()
		return invalid("look up a barcode", s.state)
	}
	s.data.Barcode = code
	s.transitionLocked(StateLookup, "Checking Database...")
	gen := s.gen
	work := s.beginLocked()
	s.unlockAndPublish()

	go s.lookupFlow(work, gen, code)
	return nil
}

func (s *Session) lookupFlow(ctx context.Context, gen uint64, code string) {
	defer s.wg.Done()

	if err := s.deps.Camera.Release(ctx); err != nil {
		slog.Warn("Failed to release camera", "session", s.id, "error", err)
	}

	product, err := s.deps.Lookup.Lookup(ctx, code)

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}

	var target State
	var status string
	switch {
	case errors.Is(err, lookup.ErrInvalidBarcode):
		slog.Info("Not a product barcode", "session", s.id, "barcode", code)
		target, status = StateScanFront, "No details found. Switching to visual scan..."
	case err != nil:
		slog.Warn("Lookup failed", "session", s.id, "barcode", code, "error", err)
		target, status = StateScanFront, "Network error. Switching to manual..."
	case product == nil:
		target, status = StateScanFront, "No details found. Switching to visual scan..."
	default:
		s.data.Brand = product.Brand
		s.data.ProductName = product.ProductName
		s.data.IngredientsText = product.IngredientsText
		if product.IngredientsText != "" && !s.data.ForceFullScan {
			in := s.analyzeInputLocked(nil)
			s.transitionLocked(StateAnalyzing, "Analyzing for "+string(s.intent)+"...")
			s.unlockAndPublish()
			s.analyze(ctx, gen, in)
			return
		}
		target, status = StateScanIngredients, "Ingredients missing. Switch to manual."
	}

	s.transitionLocked(StateTransition, status)
	s.unlockAndPublish()

	s.settle(ctx, gen, target, "")
	s.finish(gen)
}

func (s *Session) analyzeInputLocked(image []byte) analysis.AnalyzeInput {
	history := s.history
	return analysis.AnalyzeInput{
		Image:       image,
		ProductName: s.data.ContextName(),
		Ingredients: s.data.IngredientsText,
		Intent:      s.intent,
		Session:     &history,
	}
}

func (s *Session) analyze(ctx context.Context, gen uint64, in analysis.AnalyzeInput) {
	if err := s.deps.Camera.Release(ctx); err != nil {
		slog.Warn("Failed to release camera", "session", s.id, "error", err)
	}

	var result *models.AnalysisResult
	var err error
	if imaging.IsBlank(in.Image) && in.Ingredients == "" {
		err = fmt.Errorf("no ingredients or label photo to analyze")
	} else {
		result, err = s.deps.Analyzer.AnalyzeImage(ctx, in)
	}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.stopWorkLocked()
	if err != nil {
		slog.Error("Analysis failed", "session", s.id, "error", err)
		s.errMsg = userMessage(err)
		s.transitionLocked(StateError, "")
	} else {
		s.data.Analysis = result
		s.history.Remember(in.ProductName, result)
		s.transitionLocked(StateResult, "")
	}
	s.unlockAndPublish()
}

// ManualCapture leaves the barcode scanner for a photo of the package
func (s *Session) ManualCapture(ctx context.Context) error {
	s.mu.Lock()
	if s.inflight {
		s.mu.Unlock()
		return ErrBusy
	}
	if s.state != StateScanBarcode {
		defer s.mu.Unlock()
		return invalid("switch to visual scan", s.state)
	}
	s.transitionLocked(StateTransition, "Switching to visual scan...")
	gen := s.gen
	s.unlockAndPublish()

	s.settle(ctx, gen, StateScanFront, "")
	return nil
}

// SwitchToBarcode returns from a photo capture to the barcode scanner
func (s *Session) SwitchToBarcode(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateScanFront && s.state != StateScanIngredients {
		defer s.mu.Unlock()
		return invalid("switch to barcode", s.state)
	}
	s.stabilizer.Reset()
	s.transitionLocked(StateTransition, "Switching to barcode...")
	gen := s.gen
	s.unlockAndPublish()

	s.settle(ctx, gen, StateScanBarcode, "")
	return nil
}

// Capture takes a photo of the front or the ingredients and opens the crop screen
func (s *Session) Capture(_ context.Context, image []byte) error {
	if imaging.IsBlank(image) {
		return fmt.Errorf("empty capture")
	}

	s.mu.Lock()
	switch s.state {
	case StateScanFront:
		s.cropTarget = CropFront
	case StateScanIngredients:
		s.cropTarget = CropIngredients
	default:
		defer s.mu.Unlock()
		return invalid("capture", s.state)
	}
	s.pending = image
	s.transitionLocked(StateScanCrop, "")
	s.unlockAndPublish()
	return nil
}

// CropConfirm crops the pending photo. A front photo is identified, an
// ingredients photo is analyzed.
func (s *Session) CropConfirm(_ context.Context, rect imaging.Rect) error {
	s.mu.Lock()
	if s.inflight {
		s.mu.Unlock()
		return ErrBusy
	}
	if s.state != StateScanCrop {
		defer s.mu.Unlock()
		return invalid("confirm crop", s.state)
	}
	cropped, err := imaging.Crop(s.pending, rect)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to crop image: %w", err)
	}
	s.pending = nil
	gen := s.gen

	if s.cropTarget == CropFront {
		s.data.FrontImage = cropped
		s.transitionLocked(StateLookup, "Identifying Product...")
		work := s.beginLocked()
		s.unlockAndPublish()
		go s.identifyFlow(work, gen, cropped)
		return nil
	}

	s.data.IngredientsImage = cropped
	in := s.analyzeInputLocked(cropped)
	s.transitionLocked(StateAnalyzing, "Analyzing for "+string(s.intent)+"...")
	work := s.beginLocked()
	s.unlockAndPublish()
	go func() {
		defer s.wg.Done()
		s.analyze(work, gen, in)
	}()
	return nil
}

func (s *Session) identifyFlow(ctx context.Context, gen uint64, image []byte) {
	defer s.wg.Done()

	if err := s.deps.Camera.Release(ctx); err != nil {
		slog.Warn("Failed to release camera", "session", s.id, "error", err)
	}

	id, err := s.deps.Analyzer.IdentifyProduct(ctx, image)

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	if err != nil {
		slog.Warn("Identification failed", "session", s.id, "error", err)
	} else if id.Known() {
		s.data.Brand = id.Brand
		s.data.ProductName = id.Product
		s.data.Link = id.Link
	}
	s.mu.Unlock()

	s.settle(ctx, gen, StateScanIngredients, "")
	s.finish(gen)
}

// CropCancel discards the pending photo and returns to its capture screen
func (s *Session) CropCancel(_ context.Context) error {
	s.mu.Lock()
	if s.state != StateScanCrop {
		defer s.mu.Unlock()
		return invalid("cancel crop", s.state)
	}
	s.pending = nil
	target := StateScanIngredients
	if s.cropTarget == CropFront {
		target = StateScanFront
	}
	s.transitionLocked(target, "")
	s.unlockAndPublish()
	return nil
}

// Reanalyze runs the analysis again, typically after the intent changed
func (s *Session) Reanalyze(_ context.Context) error {
	s.mu.Lock()
	if s.inflight {
		s.mu.Unlock()
		return ErrBusy
	}
	if s.state != StateResult {
		defer s.mu.Unlock()
		return invalid("reanalyze", s.state)
	}
	in := s.analyzeInputLocked(s.data.IngredientsImage)
	gen := s.gen
	s.transitionLocked(StateAnalyzing, "Analyzing for "+string(s.intent)+"...")
	work := s.beginLocked()
	s.unlockAndPublish()
	go func() {
		defer s.wg.Done()
		s.analyze(work, gen, in)
	}()
	return nil
}

// CameraError records a hardware failure reported by the client
func (s *Session) CameraError(ctx context.Context, herr *camera.HardwareError) error {
	s.mu.Lock()
	if s.state == StateError {
		s.mu.Unlock()
		return nil
	}
	s.gen++
	s.stopWorkLocked()
	s.errMsg = herr.UserMessage()
	s.transitionLocked(StateError, "")
	s.unlockAndPublish()

	return s.deps.Camera.Release(ctx)
}

// SetIntent changes the dietary goal used by later analyses
func (s *Session) SetIntent(intent models.Intent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intent = intent
}

// SetForceFullScan makes barcode hits go through the ingredients photo even
// when the database has ingredients
func (s *Session) SetForceFullScan(force bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.ForceFullScan = force
}

// Reset discards the scan data and any result still being computed and
// returns to the barcode scanner. This is the only way out of ERROR.
func (s *Session) Reset(ctx context.Context) error {
	s.mu.Lock()
	s.gen++
	s.stopWorkLocked()
	force := s.data.ForceFullScan
	s.data = models.ScanData{ForceFullScan: force}
	s.pending = nil
	s.errMsg = ""
	s.stabilizer.Reset()
	s.transitionLocked(StateScanBarcode, "")
	gen := s.gen
	s.unlockAndPublish()

	if err := s.deps.Camera.Acquire(ctx, camera.ModeBarcode); err != nil {
		s.mu.Lock()
		if gen == s.gen {
			s.gen++
			s.errMsg = cameraMessage(err)
			s.transitionLocked(StateError, "")
		}
		s.unlockAndPublish()
		return fmt.Errorf("failed to reopen barcode scanner: %w", err)
	}
	return nil
}
