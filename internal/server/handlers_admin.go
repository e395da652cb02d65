package server

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/krismatthes/drawdash-sub002/internal/ledger"
	"github.com/krismatthes/drawdash-sub002/internal/money"
	"github.com/krismatthes/drawdash-sub002/internal/query"
)

type adjustmentRequest struct {
	UserID      uuid.UUID  `json:"user_id"`
	BalanceType string     `json:"balance_type"`
	Type        string     `json:"type"`
	Amount      string     `json:"amount"` // DKK decimal string
	Count       int64      `json:"count"`  // free ticket adjustments
	Description string     `json:"description"`
	AdminID     string     `json:"admin_id"`
	RaffleID    *uuid.UUID `json:"raffle_id,omitempty"`
	Reference   string     `json:"reference,omitempty"`
}

func (r adjustmentRequest) amount() (money.Amount, error) {
	if ledger.BalanceType(r.BalanceType) == ledger.BalanceFreeTickets {
		return money.Amount(r.Count), nil
	}
	return money.ParseDKK(r.Amount)
}

func (r adjustmentRequest) metadata() ledger.Metadata {
	return ledger.Metadata{
		RaffleID:  r.RaffleID,
		AdminID:   r.AdminID,
		Reference: r.Reference,
	}
}

func (s *Server) adminCredit(c *fiber.Ctx) error {
	var req adjustmentRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "INVALID_JSON", err.Error())
	}
	amount, err := req.amount()
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "INVALID_AMOUNT", err.Error())
	}
	tx, err := s.store.Credit(req.UserID, ledger.BalanceType(req.BalanceType), amount,
		ledger.TxType(req.Type), req.Description, req.metadata())
	if err != nil {
		return jsonDomainError(c, err)
	}
	return jsonSuccess(c, tx)
}

func (s *Server) adminDebit(c *fiber.Ctx) error {
	var req adjustmentRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "INVALID_JSON", err.Error())
	}
	amount, err := req.amount()
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "INVALID_AMOUNT", err.Error())
	}
	tx, err := s.store.Debit(req.UserID, ledger.BalanceType(req.BalanceType), amount,
		ledger.TxType(req.Type), req.Description, req.metadata())
	if err != nil {
		return jsonDomainError(c, err)
	}
	return jsonSuccess(c, tx)
}

func (s *Server) verifyMethod(c *fiber.Ctx) error {
	methodID, err := uuid.Parse(c.Params("methodID"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "INVALID_METHOD_ID", err.Error())
	}
	m, err := s.engine.VerifyMethod(methodID)
	if err != nil {
		return jsonDomainError(c, err)
	}
	return jsonSuccess(c, m)
}

func (s *Server) pendingPayouts(c *fiber.Ctx) error {
	var filter *uuid.UUID
	if raw := c.Query("user_id"); raw != "" {
		uid, err := uuid.Parse(raw)
		if err != nil {
			return jsonError(c, fiber.StatusBadRequest, "INVALID_USER_ID", err.Error())
		}
		filter = &uid
	}
	return jsonSuccess(c, s.engine.GetPending(filter))
}

type processRequest struct {
	Action  string `json:"action"` // approve | reject
	AdminID string `json:"admin_id"`
	Notes   string `json:"notes"`
}

func (s *Server) processPayout(c *fiber.Ctx) error {
	reqID, err := uuid.Parse(c.Params("requestID"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "INVALID_REQUEST_ID", err.Error())
	}
	var req processRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "INVALID_JSON", err.Error())
	}
	request, err := s.engine.ProcessRequest(c.Context(), reqID, req.Action, req.AdminID, req.Notes)
	if err != nil {
		if request != nil {
			// Settlement failure: the request is held in processing.
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"success": false,
				"data":    request,
				"error": fiber.Map{
					"code":    "SETTLEMENT_FAILED",
					"message": err.Error(),
				},
			})
		}
		return jsonDomainError(c, err)
	}
	return jsonSuccess(c, request)
}

func (s *Server) resolveFlag(c *fiber.Ctx) error {
	flagID, err := uuid.Parse(c.Params("flagID"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "INVALID_FLAG_ID", err.Error())
	}
	var req struct {
		AdminID string `json:"admin_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "INVALID_JSON", err.Error())
	}
	flag, err := s.engine.ResolveFlag(flagID, req.AdminID)
	if err != nil {
		return jsonDomainError(c, err)
	}
	return jsonSuccess(c, flag)
}

func (s *Server) exportTransactions(c *fiber.Ctx) error {
	from, err := time.Parse("2006-01-02", c.Query("from"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "INVALID_RANGE", "from must be YYYY-MM-DD")
	}
	to, err := time.Parse("2006-01-02", c.Query("to"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "INVALID_RANGE", "to must be YYYY-MM-DD")
	}
	rows, err := s.queries.Export(c.Context(), from, to.AddDate(0, 0, 1))
	if err != nil {
		return jsonDomainError(c, err)
	}
	return jsonSuccess(c, rows)
}

type settlementRequest struct {
	SettledOn string `json:"settled_on"` // YYYY-MM-DD
	Amount    string `json:"amount"`     // DKK decimal string
	Provider  string `json:"provider"`
	Reference string `json:"reference"`
}

func (s *Server) recordSettlement(c *fiber.Ctx) error {
	var req settlementRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "INVALID_JSON", err.Error())
	}
	settledOn, err := time.Parse("2006-01-02", req.SettledOn)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "INVALID_DATE", "settled_on must be YYYY-MM-DD")
	}
	amount, err := money.ParseDKK(req.Amount)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "INVALID_AMOUNT", err.Error())
	}
	st := query.Settlement{
		ID:        uuid.New(),
		SettledOn: settledOn,
		Amount:    amount,
		Provider:  req.Provider,
		Reference: req.Reference,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.queries.RecordSettlement(c.Context(), st); err != nil {
		return jsonDomainError(c, err)
	}
	return jsonSuccess(c, st)
}

func (s *Server) runReconciliation(c *fiber.Ctx) error {
	var req struct {
		Date string `json:"date"` // YYYY-MM-DD
	}
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "INVALID_JSON", err.Error())
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "INVALID_DATE", "date must be YYYY-MM-DD")
	}
	rec, err := s.reconciler.Run(c.Context(), date)
	if err != nil {
		return jsonDomainError(c, err)
	}
	return jsonSuccess(c, rec)
}

func (s *Server) listReconciliations(c *fiber.Ctx) error {
	recs, err := s.queries.ListReconciliations(c.Context(), c.QueryInt("limit", 30))
	if err != nil {
		return jsonDomainError(c, err)
	}
	return jsonSuccess(c, recs)
}

func (s *Server) reviewReconciliation(c *fiber.Ctx) error {
	return s.advanceReconciliation(c, "review")
}

func (s *Server) resolveReconciliation(c *fiber.Ctx) error {
	return s.advanceReconciliation(c, "resolve")
}

func (s *Server) advanceReconciliation(c *fiber.Ctx, step string) error {
	recordID, err := uuid.Parse(c.Params("recordID"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "INVALID_RECORD_ID", err.Error())
	}
	var req struct {
		AdminID string `json:"admin_id"`
		Notes   string `json:"notes"`
	}
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "INVALID_JSON", err.Error())
	}

	var rec any
	if step == "review" {
		rec, err = s.reconciler.Review(c.Context(), recordID, req.AdminID)
	} else {
		rec, err = s.reconciler.Resolve(c.Context(), recordID, req.AdminID, req.Notes)
	}
	if err != nil {
		return jsonDomainError(c, err)
	}
	return jsonSuccess(c, rec)
}
