// Package setup implements the account pairing flow and the options flow
// that edits the frames of an existing entry.
package setup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/koios/skylight-calendar/internal/skylight"
	"github.com/koios/skylight-calendar/pkg/models"
	"go.uber.org/zap"
)

//go:generate mockgen -destination=mocks/setup_mock.go -package=mocks github.com/koios/skylight-calendar/internal/setup API,EntrySink

// Error keys reported under Result.Errors["base"]
const (
	ErrorAuthenticationFailed = "authentication_failed"
	ErrorFrameNotFound        = "frame_not_found"
	ErrorConnection           = "connection_error"
	ErrorNoFrames             = "no_frames"
)

// Step names a flow state
type Step string

const (
	StepUser         Step = "user"
	StepSelectFrames Step = "select_frames"
	StepCreateEntry  Step = "create_entry"

	// stepBusy marks a flow whose submission is being processed
	stepBusy Step = "busy"
)

const (
	multiFrameTitle = "Skylight Frames"
	baseErrorKey    = "base"
)

var (
	// ErrFlowNotFound is returned for an unknown or finished flow
	ErrFlowNotFound = errors.New("flow not found")
	// ErrInvalidStep is returned when a submission does not match the flow step
	ErrInvalidStep = errors.New("submission does not match flow step")
	// ErrEntryNotLoaded is returned by the options flow for an unknown entry
	ErrEntryNotLoaded = errors.New("config entry not loaded")
)

// API is the part of the Skylight client the flows depend on
type API interface {
	Login(ctx context.Context, email, password string) skylight.SessionResult
	CheckAuth(ctx context.Context, credential, frameID string) int
	CheckAccount(ctx context.Context, credential string) int
	ListFrames(ctx context.Context, credential string) ([]models.Frame, error)
}

// EntrySink stores finished entries and sets them up
type EntrySink interface {
	Persist(ctx context.Context, entry *models.ConfigEntry) error
	Entry(entryID string) (*models.ConfigEntry, bool)
}

// Result is what a flow step returns to the caller
type Result struct {
	FlowID           string              `json:"flow_id,omitempty"`
	Step             Step                `json:"step"`
	Errors           map[string]string   `json:"errors,omitempty"`
	ValidationErrors []ValidationError   `json:"validation_errors,omitempty"`
	Frames           []models.Frame      `json:"frames,omitempty"`
	Entry            *models.ConfigEntry `json:"entry,omitempty"`
}

// Failed reports whether the step produced any error
func (r Result) Failed() bool {
	return len(r.Errors) > 0 || len(r.ValidationErrors) > 0
}

type flow struct {
	id         string
	step       Step
	credential string
	frames     []models.Frame
	started    time.Time
}

// FlowManager keeps in-progress flows for one process
type FlowManager struct {
	api    API
	sink   EntrySink
	logger *zap.Logger
	now    func() time.Time

	mu    sync.Mutex
	flows map[string]*flow
}

// NewFlowManager creates a flow manager
func NewFlowManager(api API, sink EntrySink, logger *zap.Logger) *FlowManager {
	return &FlowManager{
		api:    api,
		sink:   sink,
		logger: logger,
		now:    time.Now,
		flows:  make(map[string]*flow),
	}
}

// Start opens a new flow at the credentials step
func (m *FlowManager) Start() Result {
	f := &flow{id: uuid.NewString(), step: StepUser, started: m.now()}

	m.mu.Lock()
	m.flows[f.id] = f
	m.mu.Unlock()

	m.logger.Debug("Setup flow started", zap.String("flow_id", f.id))
	return Result{FlowID: f.id, Step: StepUser}
}

// Abort discards a flow
func (m *FlowManager) Abort(flowID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.flows[flowID]
	delete(m.flows, flowID)
	return ok
}

// Prune drops flows started before cutoff and returns how many were removed
func (m *FlowManager) Prune(cutoff time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, f := range m.flows {
		if f.started.Before(cutoff) {
			delete(m.flows, id)
			removed++
		}
	}
	return removed
}

// claim checks that the flow is at step and marks it busy until the
// submission calls release or advance. A second submission made in the
// meantime gets ErrInvalidStep.
func (m *FlowManager) claim(flowID string, step Step) (*flow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.flows[flowID]
	if !ok {
		return nil, ErrFlowNotFound
	}
	if f.step != step {
		return nil, fmt.Errorf("%w: flow is at %s", ErrInvalidStep, f.step)
	}
	f.step = stepBusy
	return f, nil
}

// release hands a claimed flow back at step so it can be resubmitted
func (m *FlowManager) release(f *flow, step Step) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if f.step == stepBusy {
		f.step = step
	}
}

// SubmitCredentials logs in, verifies the account and lists its frames
func (m *FlowManager) SubmitCredentials(ctx context.Context, flowID, email, password string) (Result, error) {
	f, err := m.claim(flowID, StepUser)
	if err != nil {
		return Result{}, err
	}
	advanced := false
	defer func() {
		if !advanced {
			m.release(f, StepUser)
		}
	}()

	result := Result{FlowID: flowID, Step: StepUser}
	if errs := validateCredentials(email, password); len(errs) > 0 {
		result.ValidationErrors = errs
		return result, nil
	}

	credential, key := m.authenticate(ctx, email, password)
	if key != "" {
		return withError(result, key), nil
	}

	if key := accountError(m.api.CheckAccount(ctx, credential)); key != "" {
		m.logger.Warn("Skylight account check failed", zap.String("flow_id", flowID), zap.String("error", key))
		return withError(result, key), nil
	}

	frames, err := m.api.ListFrames(ctx, credential)
	if err != nil || len(frames) == 0 {
		m.logger.Warn("No frames found on Skylight account", zap.String("flow_id", flowID), zap.Error(err))
		return withError(result, ErrorNoFrames), nil
	}

	m.mu.Lock()
	f.credential = credential
	f.frames = frames
	f.step = StepSelectFrames
	m.mu.Unlock()
	advanced = true

	result.Step = StepSelectFrames
	result.Frames = frames
	return result, nil
}

// SubmitFrameSelection creates the entry for the chosen frames
func (m *FlowManager) SubmitFrameSelection(ctx context.Context, flowID string, frameIDs []string) (Result, error) {
	f, err := m.claim(flowID, StepSelectFrames)
	if err != nil {
		return Result{}, err
	}
	created := false
	defer func() {
		if !created {
			m.release(f, StepSelectFrames)
		}
	}()

	result := Result{FlowID: flowID, Step: StepSelectFrames, Frames: f.frames}
	if errs := validateSelection(frameIDs, f.frames); len(errs) > 0 {
		result.ValidationErrors = errs
		return result, nil
	}

	entry := &models.ConfigEntry{
		EntryID: uuid.NewString(),
		Title:   multiFrameTitle,
		Data: models.EntryData{
			AuthCode:  f.credential,
			FrameData: models.SelectFrames(f.frames, frameIDs),
		},
		CreatedAt: m.now().UTC(),
	}
	if err := m.sink.Persist(ctx, entry); err != nil {
		return Result{}, fmt.Errorf("failed to create config entry: %w", err)
	}

	created = true
	m.Abort(flowID)
	m.logger.Info("Config entry created",
		zap.String("entry_id", entry.EntryID),
		zap.Int("frames", len(entry.Data.FrameData)))

	return Result{FlowID: flowID, Step: StepCreateEntry, Entry: entry}, nil
}

// SubmitFrameID creates an entry for a single frame entered by id
func (m *FlowManager) SubmitFrameID(ctx context.Context, flowID, email, password, frameID string) (Result, error) {
	f, err := m.claim(flowID, StepUser)
	if err != nil {
		return Result{}, err
	}
	created := false
	defer func() {
		if !created {
			m.release(f, StepUser)
		}
	}()

	result := Result{FlowID: flowID, Step: StepUser}
	errs := validateCredentials(email, password)
	errs = append(errs, validateFrameID(frameID)...)
	if len(errs) > 0 {
		result.ValidationErrors = errs
		return result, nil
	}

	credential, key := m.authenticate(ctx, email, password)
	if key != "" {
		return withError(result, key), nil
	}

	frame, key := m.verifyFrame(ctx, credential, frameID)
	if key != "" {
		return withError(result, key), nil
	}

	entry := &models.ConfigEntry{
		EntryID: uuid.NewString(),
		Title:   fmt.Sprintf("Skylight Frame %s", frameID),
		Data: models.EntryData{
			AuthCode:  credential,
			FrameData: []models.Frame{frame},
		},
		CreatedAt: m.now().UTC(),
	}
	if err := m.sink.Persist(ctx, entry); err != nil {
		return Result{}, fmt.Errorf("failed to create config entry: %w", err)
	}

	created = true
	m.Abort(flowID)
	m.logger.Info("Config entry created", zap.String("entry_id", entry.EntryID), zap.String("frame_id", frameID))
	return Result{FlowID: flowID, Step: StepCreateEntry, Entry: entry}, nil
}

// Reselect replaces the frames of an entry with a selection among the
// frames currently on the account
func (m *FlowManager) Reselect(ctx context.Context, entryID string, frameIDs []string) (Result, error) {
	entry, ok := m.sink.Entry(entryID)
	if !ok {
		return Result{}, ErrEntryNotLoaded
	}

	result := Result{Step: StepSelectFrames}
	frames, err := m.api.ListFrames(ctx, entry.Data.AuthCode)
	if err != nil {
		m.logger.Warn("Failed to list frames for options flow", zap.String("entry_id", entryID), zap.Error(err))
		return withError(result, ErrorConnection), nil
	}
	if len(frames) == 0 {
		return withError(result, ErrorNoFrames), nil
	}

	result.Frames = frames
	if errs := validateSelection(frameIDs, frames); len(errs) > 0 {
		result.ValidationErrors = errs
		return result, nil
	}

	updated := *entry
	updated.Data.FrameData = models.SelectFrames(frames, frameIDs)
	if err := m.sink.Persist(ctx, &updated); err != nil {
		return Result{}, fmt.Errorf("failed to update config entry: %w", err)
	}

	m.logger.Info("Config entry frames replaced",
		zap.String("entry_id", entryID),
		zap.Int("frames", len(updated.Data.FrameData)))
	return Result{Step: StepCreateEntry, Entry: &updated}, nil
}

// AddFrame verifies one more frame and merges it into the entry
func (m *FlowManager) AddFrame(ctx context.Context, entryID, frameID string) (Result, error) {
	entry, ok := m.sink.Entry(entryID)
	if !ok {
		return Result{}, ErrEntryNotLoaded
	}

	result := Result{Step: StepUser}
	if errs := validateFrameID(frameID); len(errs) > 0 {
		result.ValidationErrors = errs
		return result, nil
	}

	frame, key := m.verifyFrame(ctx, entry.Data.AuthCode, frameID)
	if key != "" {
		return withError(result, key), nil
	}

	updated := *entry
	updated.Data.FrameData = models.MergeFrames(entry.Data.FrameData, []models.Frame{frame})
	if err := m.sink.Persist(ctx, &updated); err != nil {
		return Result{}, fmt.Errorf("failed to update config entry: %w", err)
	}

	m.logger.Info("Frame added to config entry", zap.String("entry_id", entryID), zap.String("frame_id", frameID))
	return Result{Step: StepCreateEntry, Entry: &updated}, nil
}

func (m *FlowManager) authenticate(ctx context.Context, email, password string) (string, string) {
	session := m.api.Login(ctx, email, password)
	credential, ok := session.Credential()
	if !ok {
		m.logger.Warn("Skylight login returned no session token")
		return "", ErrorAuthenticationFailed
	}
	return credential, ""
}

// verifyFrame checks access to frameID and resolves its name from the
// account's frame list
func (m *FlowManager) verifyFrame(ctx context.Context, credential, frameID string) (models.Frame, string) {
	if key := accountError(m.api.CheckAuth(ctx, credential, frameID)); key != "" {
		m.logger.Warn("Skylight frame check failed", zap.String("frame_id", frameID), zap.String("error", key))
		return models.Frame{}, key
	}

	frame := models.Frame{ID: frameID}
	frames, err := m.api.ListFrames(ctx, credential)
	if err != nil {
		m.logger.Debug("Frame name lookup failed", zap.String("frame_id", frameID), zap.Error(err))
	}
	for _, candidate := range frames {
		if candidate.ID == frameID {
			frame.Name = candidate.Name
			break
		}
	}
	frame.Name = frame.DisplayName()
	return frame, ""
}

func accountError(status int) string {
	err := skylight.StatusError(status)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, skylight.ErrUnauthorized):
		return ErrorAuthenticationFailed
	case errors.Is(err, skylight.ErrNotFound):
		return ErrorFrameNotFound
	default:
		return ErrorConnection
	}
}

func withError(result Result, key string) Result {
	result.Errors = map[string]string{baseErrorKey: key}
	return result
}
