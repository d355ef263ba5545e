package planclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/finsight/planservice/internal/plan"
)

// SaveInput is a full replacement of the mutable plan fields, matching the
// PATCH body of the plan context endpoint.
type SaveInput struct {
	PlanTier        string             `json:"planTier"`
	ExpiresAt       *time.Time         `json:"expiresAt"`
	Entitlements    []string           `json:"entitlements"`
	MemoryFlags     map[string]bool    `json:"memoryFlags,omitempty"`
	Quota           *plan.QuotaPayload `json:"quota,omitempty"`
	UpdatedBy       string             `json:"updatedBy,omitempty"`
	ChangeNote      string             `json:"changeNote,omitempty"`
	TriggerCheckout bool               `json:"triggerCheckout,omitempty"`
}

// TrialInput optionally customizes a trial activation request.
type TrialInput struct {
	Actor        string `json:"actor,omitempty"`
	DurationDays int    `json:"durationDays,omitempty"`
	Tier         string `json:"tier,omitempty"`
}

// Fetch loads the remote plan context. A call while another fetch is in
// flight is a no-op. HTTP failures are degraded, not fatal: the state falls
// back to the default free plan with the error recorded, and gated features
// render as locked. Caller cancellation leaves prior state untouched.
func (s *Store) Fetch(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("planclient: nil store")
	}
	s.mu.Lock()
	if s.fetching {
		s.mu.Unlock()
		return nil
	}
	s.fetching = true
	s.nextSeq++
	seq := s.nextSeq
	s.snap.Loading = true
	s.notifyLocked()
	s.mu.Unlock()

	body, errDo := s.do(ctx, http.MethodGet, "/api/v1/plan/context", nil)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetching = false
	s.snap.Loading = false

	if errDo != nil {
		if ctx.Err() != nil {
			s.notifyLocked()
			return ctx.Err()
		}
		if seq > s.lastApplied {
			s.lastApplied = seq
			s.lastServer = plan.Default()
			s.snap.Plan = s.effectiveLocked()
			s.snap.Initialized = true
			s.snap.FetchError = errDo.Error()
		}
		s.notifyLocked()
		return nil
	}

	if seq > s.lastApplied {
		s.lastApplied = seq
		s.lastServer = plan.Normalize(plan.ParsePayload(body))
		s.snap.Plan = s.effectiveLocked()
		s.snap.Initialized = true
		s.snap.FetchError = ""
	}
	s.notifyLocked()
	return nil
}

// Save replaces the remote plan context. While a save is in flight, a second
// call returns the current snapshot immediately without issuing a duplicate
// request. On failure the error is both returned and recorded; state is left
// unchanged since no optimistic update occurred.
func (s *Store) Save(ctx context.Context, input SaveInput) (Snapshot, error) {
	if s == nil {
		return Snapshot{}, fmt.Errorf("planclient: nil store")
	}
	s.mu.Lock()
	if s.saving {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, nil
	}
	s.saving = true
	s.nextSeq++
	seq := s.nextSeq
	s.snap.Saving = true
	s.notifyLocked()
	s.mu.Unlock()

	payload, errMarshal := json.Marshal(input)
	if errMarshal != nil {
		errWrapped := fmt.Errorf("planclient: marshal save input: %w", errMarshal)
		s.finishSave(errWrapped.Error(), nil, 0)
		return Snapshot{}, errWrapped
	}
	body, errDo := s.do(ctx, http.MethodPatch, "/api/v1/plan/context", bytes.NewReader(payload))
	if errDo != nil {
		s.finishSave(errDo.Error(), nil, 0)
		return Snapshot{}, fmt.Errorf("planclient: save plan: %w", errDo)
	}
	return s.finishSave("", body, seq), nil
}

// finishSave clears the in-flight flag and applies a successful response
// through the shared normalize pipeline.
func (s *Store) finishSave(saveErr string, body []byte, seq uint64) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saving = false
	s.snap.Saving = false
	if saveErr != "" {
		s.snap.SaveError = saveErr
	} else if body != nil && seq > s.lastApplied {
		s.lastApplied = seq
		s.lastServer = plan.Normalize(plan.ParsePayload(body))
		s.snap.Plan = s.effectiveLocked()
		s.snap.Initialized = true
		s.snap.SaveError = ""
	}
	snap := s.snapshotLocked()
	s.notifyLocked()
	return snap
}

// StartTrial activates the account's one-time trial. A second call while one
// is pending fails fast with ErrTrialInFlight before any network request is
// dispatched. On failure state is untouched and the error recorded.
func (s *Store) StartTrial(ctx context.Context, input *TrialInput) (Snapshot, error) {
	if s == nil {
		return Snapshot{}, fmt.Errorf("planclient: nil store")
	}
	s.mu.Lock()
	if s.trialing {
		s.mu.Unlock()
		return Snapshot{}, ErrTrialInFlight
	}
	s.trialing = true
	s.nextSeq++
	seq := s.nextSeq
	s.snap.TrialStarting = true
	s.notifyLocked()
	s.mu.Unlock()

	var reqBody *bytes.Reader
	if input != nil {
		payload, errMarshal := json.Marshal(input)
		if errMarshal != nil {
			errWrapped := fmt.Errorf("planclient: marshal trial input: %w", errMarshal)
			s.finishTrial(errWrapped.Error(), nil, 0)
			return Snapshot{}, errWrapped
		}
		reqBody = bytes.NewReader(payload)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	body, errDo := s.do(ctx, http.MethodPost, "/api/v1/plan/trial", reqBody)
	if errDo != nil {
		s.finishTrial(errDo.Error(), nil, 0)
		return Snapshot{}, fmt.Errorf("planclient: start trial: %w", errDo)
	}
	return s.finishTrial("", body, seq), nil
}

func (s *Store) finishTrial(trialErr string, body []byte, seq uint64) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trialing = false
	s.snap.TrialStarting = false
	if trialErr != "" {
		s.snap.TrialError = trialErr
	} else if body != nil && seq > s.lastApplied {
		s.lastApplied = seq
		s.lastServer = plan.Normalize(plan.ParsePayload(body))
		s.snap.Plan = s.effectiveLocked()
		s.snap.Initialized = true
		s.snap.TrialError = ""
	}
	snap := s.snapshotLocked()
	s.notifyLocked()
	return snap
}

// FetchPresets loads the tier preset table used for local upgrade previews.
// Independent of the main plan fetch; intended to be triggered lazily after
// the first successful plan load.
func (s *Store) FetchPresets(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("planclient: nil store")
	}
	body, errDo := s.do(ctx, http.MethodGet, "/api/v1/plan/presets", nil)
	if errDo != nil {
		return fmt.Errorf("planclient: fetch presets: %w", errDo)
	}

	var decoded struct {
		Presets []plan.TierPreset `json:"presets"`
	}
	if errUnmarshal := json.Unmarshal(body, &decoded); errUnmarshal != nil {
		return fmt.Errorf("planclient: decode presets: %w", errUnmarshal)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Presets = decoded.Presets
	s.snap.PresetsLoaded = true
	s.notifyLocked()
	return nil
}
