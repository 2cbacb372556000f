package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/harwood-dev/deskgate/internal/panel/domain"
	"github.com/harwood-dev/deskgate/internal/panel/service"
	"github.com/harwood-dev/deskgate/pkg/httpx"
	"github.com/harwood-dev/deskgate/pkg/slogx"
)

type DashboardHandler struct {
	MonitorService *service.MonitorService
}

// HandleStats returns the aggregated stats for the panel landing page.
func (h *DashboardHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	stats, err := h.MonitorService.DashboardStats(ctx)
	if err != nil {
		log.Error("failed to build dashboard stats", "err", err)
		ErrServerError.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, stats)
}

// historyMaxHours caps how far back one request can reach.
const historyMaxHours = 24 * 7

// HandleHistory returns stored metric snapshots for the dashboard charts.
// ?hours controls the window, default 24.
func (h *DashboardHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	hours := 24
	if raw := r.URL.Query().Get("hours"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > historyMaxHours {
			ErrBadRequest.WriteError(w)
			return
		}
		hours = n
	}

	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	snapshots, err := h.MonitorService.History(ctx, since)
	if err != nil {
		log.Error("failed to load metric history", "err", err)
		ErrServerError.WriteError(w)
		return
	}
	if snapshots == nil {
		snapshots = []domain.MetricSnapshot{}
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{"metrics": snapshots})
}
