// Package httpapi wires the HTTP surface of the fee ledger service.
// It keeps handlers thin, delegating business rules to the service layer.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tinoosan/feeledger/internal/service/chart"
	"github.com/tinoosan/feeledger/internal/service/fee"
	"github.com/tinoosan/feeledger/internal/service/report"
	"github.com/tinoosan/feeledger/internal/service/voucher"
)

// ReadyChecker is pinged by /readyz.
type ReadyChecker interface {
	Ping(ctx context.Context) error
}

// Deps are the services the API fronts. Currency is the book currency used to
// parse and format decimal amounts.
type Deps struct {
	Chart    chart.Service
	Vouchers voucher.Service
	Fees     fee.Service
	Reports  report.Service
	Ready    []ReadyChecker
	Currency string
	Logger   *slog.Logger
}

// Server wires handlers and middleware using Chi.
type Server struct {
	chart    chart.Service
	vouchers voucher.Service
	fees     fee.Service
	reports  report.Service
	ready    []ReadyChecker
	currency string
	log      *slog.Logger
	rt       *chi.Mux
}

// New constructs the HTTP server with routes and middleware.
func New(d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	currency := d.Currency
	if currency == "" {
		currency = "USD"
	}
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(requestLogger(logger))
	r.Use(recoverer(logger))
	r.Use(metricsMiddleware)

	s := &Server{
		chart:    d.Chart,
		vouchers: d.Vouchers,
		fees:     d.Fees,
		reports:  d.Reports,
		ready:    d.Ready,
		currency: currency,
		log:      logger,
		rt:       r,
	}
	s.routes()
	return s
}

// Handler exposes the configured http.Handler.
func (s *Server) Handler() http.Handler { return s.rt }

func (s *Server) routes() {
	s.rt.Route("/v1", func(r chi.Router) {
		r.Post("/ledger-groups", s.postGroup)
		r.Get("/ledger-groups", s.listGroups)
		r.Post("/ledgers", s.postLedger)
		r.Get("/ledgers", s.listLedgers)
		r.Get("/ledgers/{id}", s.getLedger)

		r.Post("/vouchers", s.postVoucher)
		r.Get("/vouchers", s.listVouchers)
		r.Get("/vouchers/{id}", s.getVoucher)
		r.Post("/vouchers/{id}/reverse", s.reverseVoucher)

		r.Post("/fees", s.postFee)
		r.Post("/fees/bulk", s.postFeesBulk)
		r.Get("/fees/{id}", s.getFee)
		r.Delete("/fees/{id}", s.deleteFee)
		r.Post("/fees/{id}/payments", s.postPayment)
		r.Post("/fees/{id}/reconcile", s.reconcileFee)
		r.Get("/students/{id}/fees", s.listStudentFees)
		r.Get("/classes/{id}/fee-summary", s.classFeeSummary)

		r.Get("/reports/trial-balance", s.trialBalance)
		r.Get("/reports/profit-and-loss", s.profitAndLoss)
		r.Get("/reports/balance-sheet", s.balanceSheet)
	})
	s.rt.Get("/healthz", s.healthz)
	s.rt.Get("/readyz", s.readyz)
	s.rt.Handle("/metrics", promhttp.Handler())
}
