package httpapi

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"scalpExecutor/internal/domain"
	"scalpExecutor/internal/ports"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100

	// Largest holding duration that still fits in a time.Duration.
	maxHoldingDurationMs = math.MaxInt64 / int64(time.Millisecond)
)

type executeStrategyRequest struct {
	StrategyID        string `json:"strategyId"`
	HoldingDurationMs int64  `json:"holdingDurationMs"`
}

type createStrategyRequest struct {
	ID         string                    `json:"id"`
	Symbol     string                    `json:"symbol"`
	Timeframe  string                    `json:"timeframe"`
	Confidence float64                   `json:"confidence"`
	Parameters domain.StrategyParameters `json:"parameters"`
}

type tradeResponse struct {
	ID                string               `json:"id"`
	StrategyID        string               `json:"strategyId"`
	Symbol            string               `json:"symbol"`
	Side              domain.OrderSide     `json:"side"`
	Status            domain.TradeStatus   `json:"status"`
	RequestedPrice    float64              `json:"requestedPrice"`
	RequestedQuantity float64              `json:"requestedQuantity"`
	StopLoss          *float64             `json:"stopLoss,omitempty"`
	TakeProfit        *float64             `json:"takeProfit,omitempty"`
	HoldingDurationMs int64                `json:"holdingDurationMs"`
	EntryPrice        float64              `json:"entryPrice,omitempty"`
	EntryQuantity     float64              `json:"entryQuantity,omitempty"`
	EntryTime         *time.Time           `json:"entryTime,omitempty"`
	ExitPrice         float64              `json:"exitPrice,omitempty"`
	ExitTime          *time.Time           `json:"exitTime,omitempty"`
	ExitReason        domain.ExitReason    `json:"exitReason,omitempty"`
	Profit            *float64             `json:"profit,omitempty"`
	Metadata          domain.TradeMetadata `json:"metadata"`
	CreatedAt         time.Time            `json:"createdAt"`
	UpdatedAt         time.Time            `json:"updatedAt"`
}

func toTradeResponse(t *domain.Trade) tradeResponse {
	resp := tradeResponse{
		ID:                t.ID,
		StrategyID:        t.StrategyID,
		Symbol:            t.Symbol,
		Side:              t.Side,
		Status:            t.Status,
		RequestedPrice:    t.RequestedPrice,
		RequestedQuantity: t.RequestedQuantity,
		StopLoss:          t.StopLoss,
		TakeProfit:        t.TakeProfit,
		HoldingDurationMs: t.HoldingDuration.Milliseconds(),
		EntryPrice:        t.EntryPrice,
		EntryQuantity:     t.EntryQuantity,
		ExitPrice:         t.ExitPrice,
		ExitReason:        t.ExitReason,
		Metadata:          t.Metadata,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
	}
	if !t.EntryTime.IsZero() {
		entry := t.EntryTime
		resp.EntryTime = &entry
	}
	if !t.ExitTime.IsZero() {
		exit := t.ExitTime
		resp.ExitTime = &exit
	}
	if t.Status == domain.StatusSold || t.Status == domain.StatusSellFailed {
		profit := t.Profit
		resp.Profit = &profit
	}
	return resp
}

func respondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, gin.H{
		"code":  code,
		"error": msg,
	})
}

// respondServiceError maps application errors onto HTTP statuses.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ports.ErrValidation):
		respondError(c, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
	case errors.Is(err, ports.ErrNotFound):
		respondError(c, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, ports.ErrAdmissionRejected):
		respondError(c, http.StatusConflict, "ADMISSION_REJECTED", err.Error())
	case errors.Is(err, ports.ErrDuplicateEntry):
		respondError(c, http.StatusConflict, "DUPLICATE", err.Error())
	case errors.Is(err, ports.ErrOrderPlacementFailed):
		respondError(c, http.StatusBadGateway, "ORDER_FAILED", err.Error())
	case errors.Is(err, ports.ErrServiceStopped):
		respondError(c, http.StatusServiceUnavailable, "SERVICE_STOPPED", err.Error())
	default:
		respondError(c, http.StatusInternalServerError, "INTERNAL", err.Error())
	}
}

func (s *Server) health(c *gin.Context) {
	if err := s.svc.CheckHealth(c.Request.Context()); err != nil {
		s.logger.Error(c.Request.Context(), err, "Health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) connectivity(c *gin.Context) {
	if err := s.svc.CheckConnectivity(c.Request.Context()); err != nil {
		s.logger.Error(c.Request.Context(), err, "Connectivity check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "database": "connected", "exchange": "reachable"})
}

func (s *Server) executeStrategy(c *gin.Context) {
	var req executeStrategyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request payload")
		return
	}

	if req.HoldingDurationMs < 0 || req.HoldingDurationMs > maxHoldingDurationMs {
		respondError(c, http.StatusBadRequest, "VALIDATION_FAILED", "holdingDurationMs out of range")
		return
	}

	holding := time.Duration(req.HoldingDurationMs) * time.Millisecond
	res, err := s.svc.ExecuteStrategy(c.Request.Context(), req.StrategyID, holding)
	if err != nil {
		s.logger.Error(c.Request.Context(), err, "Strategy execution failed", map[string]interface{}{"strategyID": req.StrategyID})
		respondServiceError(c, err)
		return
	}
	if res.Ignored {
		c.JSON(http.StatusOK, gin.H{"ignored": true, "message": res.Message})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "trade executed", "trade": toTradeResponse(res.Trade)})
}

func (s *Server) createStrategy(c *gin.Context) {
	var req createStrategyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request payload")
		return
	}

	strat, err := s.svc.CreateStrategy(c.Request.Context(), &domain.Strategy{
		ID:         strings.TrimSpace(req.ID),
		Symbol:     req.Symbol,
		Timeframe:  req.Timeframe,
		Confidence: req.Confidence,
		Parameters: req.Parameters,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":         strat.ID,
		"symbol":     strat.Symbol,
		"timeframe":  strat.Timeframe,
		"confidence": strat.Confidence,
		"parameters": strat.Parameters,
		"createdAt":  strat.CreatedAt,
	})
}

// listTrades serves one page of trades. Without a status filter, trades that
// never held or could not close a position are left out.
func (s *Server) listTrades(c *gin.Context) {
	page, err := positiveQueryInt(c, "page", 1)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_PAGE", err.Error())
		return
	}
	limit, err := positiveQueryInt(c, "limit", defaultPageSize)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_LIMIT", err.Error())
		return
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	filter := ports.TradeFilter{
		Symbol:     strings.ToUpper(strings.TrimSpace(c.Query("symbol"))),
		StrategyID: strings.TrimSpace(c.Query("strategyId")),
		Limit:      limit,
		Offset:     (page - 1) * limit,
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			filter.Statuses = append(filter.Statuses, domain.TradeStatus(strings.ToUpper(strings.TrimSpace(part))))
		}
	} else {
		filter.ExcludeStatuses = []domain.TradeStatus{domain.StatusFailed, domain.StatusSellFailed}
	}

	trades, total, err := s.svc.ListTrades(c.Request.Context(), filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	items := make([]tradeResponse, 0, len(trades))
	for _, t := range trades {
		items = append(items, toTradeResponse(t))
	}
	totalPages := (total + limit - 1) / limit
	c.JSON(http.StatusOK, gin.H{
		"trades": items,
		"pagination": gin.H{
			"page":       page,
			"limit":      limit,
			"total":      total,
			"totalPages": totalPages,
		},
	})
}

func (s *Server) getTrade(c *gin.Context) {
	trade, err := s.svc.GetTrade(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTradeResponse(trade))
}

func (s *Server) overview(c *gin.Context) {
	ov, err := s.svc.Overview(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ov)
}

func (s *Server) monitors(c *gin.Context) {
	active := s.svc.ActiveMonitors()
	c.JSON(http.StatusOK, gin.H{"count": len(active), "monitors": active})
}

func positiveQueryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, errors.New(key + " must be a positive integer")
	}
	return v, nil
}
