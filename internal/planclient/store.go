// Package planclient holds the client-side plan synchronization store. It
// mediates between the remote plan API and every dashboard surface that
// gates functionality by subscription tier.
package planclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/finsight/planservice/internal/plan"

	log "github.com/sirupsen/logrus"
)

// ErrTrialInFlight is returned when a trial activation is requested while a
// previous one has not resolved yet.
var ErrTrialInFlight = errors.New("planclient: trial request already in flight")

const defaultRequestTimeout = 15 * time.Second

// Options configures a Store. The debug-tools capability is an explicit
// constructor input, not an ambient environment check; with it disabled the
// override layer is inert.
type Options struct {
	BaseURL           string
	AccountToken      string
	HTTPClient        *http.Client
	DebugToolsEnabled bool
	OverridePath      string
}

// Snapshot is the read view handed to consumers. Save and trial activity are
// orthogonal to readiness: a snapshot stays readable while either is in
// flight.
type Snapshot struct {
	Plan          plan.Context
	Initialized   bool
	Loading       bool
	Saving        bool
	TrialStarting bool
	FetchError    string
	SaveError     string
	TrialError    string
	Presets       []plan.TierPreset
	PresetsLoaded bool
}

// Gate derives a tri-state decision for an entitlement key, treating an
// uninitialized store as unknown rather than denied.
func (s Snapshot) Gate(key string) plan.Decision {
	return plan.Gate(s.Plan, s.Initialized, key)
}

// Store owns all plan state for one account session. All mutation goes
// through its methods; consumers read snapshots and subscribe for changes.
type Store struct {
	baseURL      string
	token        string
	client       *http.Client
	debugTools   bool
	overridePath string

	mu         sync.Mutex
	snap       Snapshot
	lastServer plan.Context
	override   *plan.Payload

	fetching bool
	saving   bool
	trialing bool

	// Monotonic issuance sequence; responses whose sequence is below the
	// last applied one are discarded so the last-issued request wins even
	// when responses resolve out of order.
	nextSeq     uint64
	lastApplied uint64

	subs    map[uint64]chan Snapshot
	nextSub uint64
}

// New constructs a Store. A persisted debug override is loaded immediately
// when debug tools are enabled.
func New(opts Options) *Store {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultRequestTimeout}
	}
	s := &Store{
		baseURL:      strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		token:        strings.TrimSpace(opts.AccountToken),
		client:       client,
		debugTools:   opts.DebugToolsEnabled,
		overridePath: strings.TrimSpace(opts.OverridePath),
		lastServer:   plan.Default(),
		subs:         make(map[uint64]chan Snapshot),
	}
	s.snap.Plan = plan.Default()
	if s.debugTools {
		if override, ok := s.loadPersistedOverride(); ok {
			s.override = &override
			s.snap.Plan = s.effectiveLocked()
		}
	}
	return s
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers a listener notified on every state replacement. The
// returned func removes the listener. Slow listeners miss intermediate
// snapshots rather than blocking the store.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan Snapshot, 16)
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}
}

func (s *Store) snapshotLocked() Snapshot {
	out := s.snap
	out.Plan = s.snap.Plan.Clone()
	out.Presets = append([]plan.TierPreset{}, s.snap.Presets...)
	return out
}

func (s *Store) notifyLocked() {
	snap := s.snapshotLocked()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

// effectiveLocked recomputes the effective plan from the retained server
// snapshot plus the debug override, when one is active.
func (s *Store) effectiveLocked() plan.Context {
	if s.debugTools && s.override != nil {
		return plan.ApplyOverride(s.lastServer, *s.override)
	}
	return s.lastServer.Clone()
}

// do issues a request and returns the response body for 2xx statuses.
func (s *Store) do(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	req, errBuild := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if errBuild != nil {
		return nil, fmt.Errorf("planclient: build request: %w", errBuild)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, errDo := s.client.Do(req)
	if errDo != nil {
		return nil, fmt.Errorf("planclient: request failed: %w", errDo)
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.WithError(errClose).Warn("planclient: close response body failed")
		}
	}()

	data, errRead := io.ReadAll(resp.Body)
	if errRead != nil {
		return nil, fmt.Errorf("planclient: read response: %w", errRead)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("planclient: unexpected status %d", resp.StatusCode)
	}
	return data, nil
}
