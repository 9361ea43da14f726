package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/greenwave-data/junction.control/internal/history"
	"github.com/greenwave-data/junction.control/internal/httputil"
	"github.com/greenwave-data/junction.control/internal/monitoring"
	"github.com/greenwave-data/junction.control/internal/timing"
)

// maxTimingBody bounds the accepted config payload, mirroring the file
// loader's cap.
const maxTimingBody = 1 << 20

// handleTiming reads or replaces the runtime timing configuration. A PUT
// validates the whole document before anything is applied, swaps it into
// the controller, and persists it to history so it survives restarts.
func (s *Server) handleTiming(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		httputil.WriteJSONOK(w, s.ctrl.Config())

	case http.MethodPut:
		body, err := io.ReadAll(io.LimitReader(r.Body, maxTimingBody+1))
		if err != nil {
			httputil.BadRequest(w, "failed to read body")
			return
		}
		if len(body) > maxTimingBody {
			httputil.BadRequest(w, "timing config too large")
			return
		}

		cfg := timing.EmptyConfig()
		if err := json.Unmarshal(body, cfg); err != nil {
			httputil.BadRequest(w, fmt.Sprintf("invalid timing config JSON: %v", err))
			return
		}
		if err := cfg.Validate(); err != nil {
			httputil.BadRequest(w, fmt.Sprintf("invalid timing configuration: %v", err))
			return
		}

		s.ctrl.UpdateConfig(cfg)

		if s.db != nil {
			if err := s.db.SaveTimingConfig(time.Now(), string(body)); err != nil {
				// The config is live; persistence failure only affects the
				// next restart.
				monitoring.Logf("api: failed to persist timing config: %v", err)
			}
		}
		httputil.WriteJSONOK(w, cfg)

	default:
		httputil.MethodNotAllowed(w)
	}
}

// LoadPersistedTimingConfig restores the active timing configuration from
// the history store, falling back to nil when none was ever saved or the
// saved one no longer validates.
func LoadPersistedTimingConfig(db *history.DB) *timing.Config {
	body, err := db.ActiveTimingConfig()
	if err != nil {
		monitoring.Logf("api: failed to load persisted timing config: %v", err)
		return nil
	}
	if body == "" {
		return nil
	}
	cfg := timing.EmptyConfig()
	if err := json.Unmarshal([]byte(body), cfg); err != nil {
		monitoring.Logf("api: persisted timing config is malformed, ignoring: %v", err)
		return nil
	}
	if err := cfg.Validate(); err != nil {
		monitoring.Logf("api: persisted timing config no longer validates, ignoring: %v", err)
		return nil
	}
	return cfg
}
