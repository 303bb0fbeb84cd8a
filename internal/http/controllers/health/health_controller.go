// Package health expone liveness y readiness.
package health

import (
	"context"
	"net/http"
	"time"

	httperrors "github.com/dropDatabas3/caishen/internal/http/errors"
	"github.com/dropDatabas3/caishen/internal/observability/logger"
)

// Pinger es cualquier dependencia que se pueda chequear (DB, cache).
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthController struct {
	version string
	checks  map[string]Pinger
}

func NewHealthController(version string, checks map[string]Pinger) *HealthController {
	return &HealthController{version: version, checks: checks}
}

// Healthz maneja GET /healthz: el proceso está vivo.
func (c *HealthController) Healthz(w http.ResponseWriter, r *http.Request) {
	httperrors.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": c.version})
}

// Readyz maneja GET /readyz: hace ping a cada dependencia con timeout corto.
func (c *HealthController) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	out := map[string]string{}
	for name, p := range c.checks {
		if err := p.Ping(ctx); err != nil {
			logger.From(ctx).Warn("readiness check failed", logger.Component(name), logger.Err(err))
			out[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		out[name] = "ok"
	}
	httperrors.WriteJSON(w, status, map[string]any{"status": http.StatusText(status), "checks": out})
}
