// Package reporthttp exposes the ledger reports over HTTP.
package reporthttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/odyssey-erp/ledgerline/internal/platform/httpx"
)

// MountRoutes registers report endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(10, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests), "export limit reached")
		}),
	)

	r.Route("/reports", func(rr chi.Router) {
		rr.Get("/pnl", h.handlePL)
		rr.Get("/salaries", h.handleSalaries)
		rr.Get("/debts", h.handleDebts)
		rr.Get("/dashboard", h.handleDashboard)
		rr.Group(func(gr chi.Router) {
			gr.Use(limiter)
			gr.Get("/pnl/export.csv", h.handlePLCSV)
			gr.Get("/salaries/export.csv", h.handleSalariesCSV)
			gr.Get("/debts/export.csv", h.handleDebtsCSV)
		})
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
