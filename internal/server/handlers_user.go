package server

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/krismatthes/drawdash-sub002/internal/ledger"
	"github.com/krismatthes/drawdash-sub002/internal/money"
	"github.com/krismatthes/drawdash-sub002/internal/payout"
	"github.com/krismatthes/drawdash-sub002/internal/risk"
)

func userID(c *fiber.Ctx) (uuid.UUID, error) {
	return uuid.Parse(c.Params("userID"))
}

func balanceView(b ledger.Balance) fiber.Map {
	return fiber.Map{
		"user_id":      b.UserID,
		"cash":         b.Cash.String(),
		"bonus":        b.Bonus.String(),
		"locked":       b.Locked.String(),
		"available":    b.Available().String(),
		"free_tickets": b.FreeTickets,
		"currency":     "DKK",
		"updated_at":   b.UpdatedAt,
	}
}

func (s *Server) getBalance(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "INVALID_USER_ID", err.Error())
	}
	return jsonSuccess(c, balanceView(s.store.GetBalance(uid)))
}

func (s *Server) getAvailable(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "INVALID_USER_ID", err.Error())
	}
	a := s.store.AvailableFunds(uid)
	return jsonSuccess(c, fiber.Map{
		"cash":         a.Cash.String(),
		"bonus":        a.Bonus.String(),
		"free_tickets": a.FreeTickets,
		"ticket_value": a.TicketValue.String(),
		"total":        a.Total.String(),
		"currency":     "DKK",
	})
}

func (s *Server) getTransactions(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "INVALID_USER_ID", err.Error())
	}
	limit := c.QueryInt("limit", 50)
	offset := c.QueryInt("offset", 0)

	// source=db reads the durable log; the default serves the in-memory
	// state, which includes transactions not yet flushed.
	if c.Query("source") == "db" {
		txs, err := s.queries.History(c.Context(), uid, limit, offset)
		if err != nil {
			return jsonDomainError(c, err)
		}
		return jsonSuccess(c, txs)
	}

	var filter ledger.Filter
	if raw := c.Query("type"); raw != "" {
		txType := ledger.TxType(raw)
		filter.Type = &txType
	}
	if raw := c.Query("balance_type"); raw != "" {
		bt := ledger.BalanceType(raw)
		filter.BalanceType = &bt
	}
	if raw := c.Query("status"); raw != "" {
		status := ledger.TxStatus(raw)
		filter.Status = &status
	}
	return jsonSuccess(c, s.store.History(uid, filter, limit, offset))
}

func (s *Server) getLimits(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "INVALID_USER_ID", err.Error())
	}
	limits, err := s.engine.GetLimits(c.Context(), uid)
	if err != nil {
		return jsonDomainError(c, err)
	}
	return jsonSuccess(c, limits)
}

func (s *Server) getFlags(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "INVALID_USER_ID", err.Error())
	}
	return jsonSuccess(c, s.engine.Flags(uid, c.QueryBool("include_resolved", false)))
}

type addMethodRequest struct {
	Type      string            `json:"type"`
	Name      string            `json:"name"`
	Details   map[string]string `json:"details"`
	IsDefault bool              `json:"is_default"`
}

func (s *Server) addMethod(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "INVALID_USER_ID", err.Error())
	}
	var req addMethodRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "INVALID_JSON", err.Error())
	}
	m, err := s.engine.AddMethod(payout.Method{
		UserID:    uid,
		Type:      payout.MethodType(req.Type),
		Name:      req.Name,
		Details:   req.Details,
		IsDefault: req.IsDefault,
	})
	if err != nil {
		return jsonDomainError(c, err)
	}
	return jsonSuccess(c, m)
}

func (s *Server) listMethods(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "INVALID_USER_ID", err.Error())
	}
	return jsonSuccess(c, s.engine.Methods(uid))
}

type withdrawalRequest struct {
	Amount         string            `json:"amount"` // DKK decimal string
	MethodID       uuid.UUID         `json:"method_id"`
	IdempotencyKey string            `json:"idempotency_key"`
	Context        map[string]string `json:"context"`
}

func (s *Server) submitWithdrawal(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "INVALID_USER_ID", err.Error())
	}
	var req withdrawalRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "INVALID_JSON", err.Error())
	}
	amount, err := money.ParseDKK(req.Amount)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "INVALID_AMOUNT", err.Error())
	}

	request, err := s.engine.SubmitWithdrawal(c.Context(), payout.SubmitParams{
		UserID:         uid,
		Amount:         amount,
		MethodID:       req.MethodID,
		IdempotencyKey: req.IdempotencyKey,
		Context:        risk.CallContext(req.Context),
	})
	if err != nil {
		return jsonDomainError(c, err)
	}
	return jsonSuccess(c, request)
}

func (s *Server) listWithdrawals(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "INVALID_USER_ID", err.Error())
	}
	return jsonSuccess(c, s.engine.ListByUser(uid))
}

func (s *Server) cancelWithdrawal(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "INVALID_USER_ID", err.Error())
	}
	reqID, err := uuid.Parse(c.Params("requestID"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "INVALID_REQUEST_ID", err.Error())
	}
	request, err := s.engine.Cancel(uid, reqID)
	if err != nil {
		return jsonDomainError(c, err)
	}
	return jsonSuccess(c, request)
}
