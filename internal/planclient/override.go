package planclient

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/finsight/planservice/internal/plan"

	log "github.com/sirupsen/logrus"
)

// persistedOverride is the on-disk form of a debug override. It never
// reaches the server.
type persistedOverride struct {
	Enabled  bool         `json:"enabled"`
	Override plan.Payload `json:"override"`
}

// ApplyDebugOverride persists the override and recomputes the effective plan
// as merge(lastServerPlan, override). A no-op when debug tools are disabled,
// so production behavior cannot change.
func (s *Store) ApplyDebugOverride(override plan.Payload) error {
	if s == nil {
		return fmt.Errorf("planclient: nil store")
	}
	if !s.debugTools {
		return nil
	}

	if s.overridePath != "" {
		payload, errMarshal := json.Marshal(persistedOverride{Enabled: true, Override: override})
		if errMarshal != nil {
			return fmt.Errorf("planclient: marshal override: %w", errMarshal)
		}
		if dir := filepath.Dir(s.overridePath); dir != "" && dir != "." {
			if errMkdir := os.MkdirAll(dir, 0o755); errMkdir != nil {
				return fmt.Errorf("planclient: create override dir: %w", errMkdir)
			}
		}
		if errWrite := os.WriteFile(s.overridePath, payload, 0o644); errWrite != nil {
			return fmt.Errorf("planclient: persist override: %w", errWrite)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.override = &override
	s.snap.Plan = s.effectiveLocked()
	s.notifyLocked()
	return nil
}

// ClearDebugOverride removes the persisted override and recomputes the
// effective plan from the retained server snapshot alone, without a refetch.
func (s *Store) ClearDebugOverride() error {
	if s == nil {
		return fmt.Errorf("planclient: nil store")
	}
	if !s.debugTools {
		return nil
	}

	if s.overridePath != "" {
		if errRemove := os.Remove(s.overridePath); errRemove != nil && !os.IsNotExist(errRemove) {
			return fmt.Errorf("planclient: remove override: %w", errRemove)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.override = nil
	s.snap.Plan = s.effectiveLocked()
	s.notifyLocked()
	return nil
}

// loadPersistedOverride reads a previously persisted override. Unreadable or
// disabled files are ignored.
func (s *Store) loadPersistedOverride() (plan.Payload, bool) {
	if s.overridePath == "" {
		return plan.Payload{}, false
	}
	data, errRead := os.ReadFile(s.overridePath)
	if errRead != nil {
		if !os.IsNotExist(errRead) {
			log.WithError(errRead).Warn("planclient: read persisted override failed")
		}
		return plan.Payload{}, false
	}
	var stored persistedOverride
	if errUnmarshal := json.Unmarshal(data, &stored); errUnmarshal != nil {
		log.WithError(errUnmarshal).Warn("planclient: decode persisted override failed")
		return plan.Payload{}, false
	}
	if !stored.Enabled {
		return plan.Payload{}, false
	}
	return stored.Override, true
}
