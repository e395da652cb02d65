// Package server exposes the ledger and payout workflow over HTTP. User
// routes serve the platform frontend; admin routes are HMAC-authenticated
// operator tooling.
package server

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/krismatthes/drawdash-sub002/internal/ledger"
	"github.com/krismatthes/drawdash-sub002/internal/observability"
	"github.com/krismatthes/drawdash-sub002/internal/payout"
	"github.com/krismatthes/drawdash-sub002/internal/query"
	"github.com/krismatthes/drawdash-sub002/internal/reconcile"
)

// Server wires the HTTP handlers to the core.
type Server struct {
	store      *ledger.Store
	engine     *payout.Engine
	queries    *query.Service
	reconciler *reconcile.Reconciler

	adminKey    string
	adminSecret string

	log     zerolog.Logger
	metrics *observability.Metrics
}

// Config wires the server's collaborators.
type Config struct {
	Store       *ledger.Store
	Engine      *payout.Engine
	Queries     *query.Service
	Reconciler  *reconcile.Reconciler
	AdminKey    string
	AdminSecret string
	Logger      zerolog.Logger
	Metrics     *observability.Metrics
}

func New(cfg Config) *Server {
	return &Server{
		store:       cfg.Store,
		engine:      cfg.Engine,
		queries:     cfg.Queries,
		reconciler:  cfg.Reconciler,
		adminKey:    cfg.AdminKey,
		adminSecret: cfg.AdminSecret,
		log:         cfg.Logger,
		metrics:     cfg.Metrics,
	}
}

// App builds the Fiber application with all routes registered.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "drawdash-wallet",
		DisableStartupMessage: true,
	})
	app.Use(s.observe)

	v1 := app.Group("/api/v1")

	users := v1.Group("/users/:userID")
	users.Get("/balance", s.getBalance)
	users.Get("/available", s.getAvailable)
	users.Get("/transactions", s.getTransactions)
	users.Get("/limits", s.getLimits)
	users.Get("/flags", s.getFlags)
	users.Get("/methods", s.listMethods)
	users.Post("/methods", s.addMethod)
	users.Post("/withdrawals", s.submitWithdrawal)
	users.Get("/withdrawals", s.listWithdrawals)
	users.Delete("/withdrawals/:requestID", s.cancelWithdrawal)

	admin := v1.Group("/admin", s.adminAuth)
	admin.Post("/credits", s.adminCredit)
	admin.Post("/debits", s.adminDebit)
	admin.Post("/methods/:methodID/verify", s.verifyMethod)
	admin.Get("/payouts/pending", s.pendingPayouts)
	admin.Post("/payouts/:requestID/process", s.processPayout)
	admin.Post("/flags/:flagID/resolve", s.resolveFlag)
	admin.Get("/export", s.exportTransactions)
	admin.Post("/settlements", s.recordSettlement)
	admin.Post("/reconcile", s.runReconciliation)
	admin.Get("/reconciliations", s.listReconciliations)
	admin.Post("/reconciliations/:recordID/review", s.reviewReconciliation)
	admin.Post("/reconciliations/:recordID/resolve", s.resolveReconciliation)

	return app
}

// observe records per-route request metrics.
func (s *Server) observe(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	if s.metrics != nil {
		route := c.Route().Path
		s.metrics.HTTPRequests.WithLabelValues(route, statusLabel(c.Response().StatusCode())).Inc()
		s.metrics.HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
	return err
}

func statusLabel(code int) string {
	switch {
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
