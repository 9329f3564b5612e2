package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"scalpExecutor/internal/domain"
	"scalpExecutor/internal/ports"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"golang.org/x/time/rate"
)

const (
	// Base URLs
	baseURLProduction = "https://api.binance.com"
	baseURLTestnet    = "https://testnet.binance.vision"
)

// Client implements the ports.ExchangeClient interface against the Binance spot API.
type Client struct {
	spotClient *binance.Client
	logger     ports.Logger
	limiter    *rate.Limiter
}

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey            string
	SecretKey         string
	UseTestnet        bool
	Logger            ports.Logger
	RequestsPerSecond float64 // Client-side throttle (e.g., 10)
	Burst             int
}

// New creates a new Binance client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		cfg.Logger.Warn(context.Background(), "APIKey or SecretKey is empty. Client will only work for public endpoints.")
	}

	client := binance.NewClient(cfg.APIKey, cfg.SecretKey)

	// Set BaseURL directly instead of using global binance.UseTestnet
	if cfg.UseTestnet {
		client.BaseURL = baseURLTestnet
		cfg.Logger.Info(context.Background(), "Binance client configured for Testnet", map[string]interface{}{"baseURL": client.BaseURL})
	} else {
		client.BaseURL = baseURLProduction
		cfg.Logger.Info(context.Background(), "Binance client configured for Production", map[string]interface{}{"baseURL": client.BaseURL})
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 20
	}

	return &Client{
		spotClient: client,
		logger:     cfg.Logger,
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
	}, nil
}

// wait blocks until the client-side rate limiter admits another request.
func (c *Client) wait(ctx context.Context, operation string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return c.handleError(ctx, err, operation+" throttle")
	}
	return nil
}

// handleError translates common Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		mappedErr := mapAPIError(apiErr)
		finalErr := fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
		if errors.Is(mappedErr, ports.ErrOrderNotFound) {
			// Callers reconcile this case themselves.
			c.logger.Warn(ctx, fmt.Sprintf("%s: order not found on exchange", operation), fields)
		} else {
			c.logger.Error(ctx, err, fmt.Sprintf("%s failed with API error", operation), fields)
		}
		return finalErr
	}

	// Handle non-API errors (network, context cancellation, etc.)
	var finalErr error
	if errors.Is(err, context.DeadlineExceeded) {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	} else if errors.Is(err, context.Canceled) {
		finalErr = fmt.Errorf("%s operation canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	} else if strings.Contains(err.Error(), "use of closed network connection") ||
		strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "connection reset by peer") ||
		strings.Contains(err.Error(), "no such host") {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrConnectionFailed, err)
	} else {
		// Default for other errors (e.g., parsing errors within the adapter)
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrUnknown, err)
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return finalErr
}

// mapAPIError maps Binance spot error codes to ports errors.
func mapAPIError(apiErr *common.APIError) error {
	switch apiErr.Code {
	case -1003: // Too many requests
		return ports.ErrRateLimited
	case -1021: // Timestamp for this request is outside of the recvWindow
		return ports.ErrTimeout
	case -1022: // Signature for this request is not valid
		return ports.ErrAuthenticationFailed
	case -1013: // Filter failure (LOT_SIZE, PRICE_FILTER, MIN_NOTIONAL)
		return ports.ErrInvalidRequest
	case -1100, -1101, -1102, -1103, -1104, -1105, -1106, -1111, -1115, -1116, -1117, -1120, -1121, -1125, -1127, -1128, -1130: // Parameter/Request format errors
		if apiErr.Code == -1121 { // Invalid symbol
			return ports.ErrSymbolNotFound
		}
		return ports.ErrInvalidRequest
	case -2010: // New order rejected
		if strings.Contains(strings.ToLower(apiErr.Message), "insufficient balance") {
			return ports.ErrInsufficientFunds
		}
		return ports.ErrOrderPlacementFailed
	case -2011: // Cancel rejected
		if strings.Contains(apiErr.Message, "Unknown order") {
			return ports.ErrOrderNotFound
		}
		return ports.ErrOrderCancelFailed
	case -2013: // Order does not exist
		return ports.ErrOrderNotFound
	case -2014: // API-key format invalid
		return ports.ErrInvalidAPIKeys
	case -2015: // Invalid API-key, IP, or permissions for action
		return ports.ErrPermissionDenied
	default:
		if apiErr.Code <= -1000 && apiErr.Code > -1100 {
			return ports.ErrExchangeUnavailable // General server or network issues
		}
		return ports.ErrUnknown
	}
}

// SetServerTime synchronizes the client's time with the server's time.
func (c *Client) SetServerTime(ctx context.Context) error {
	op := "SetServerTime"
	if err := c.wait(ctx, op); err != nil {
		return err
	}
	offset, err := c.spotClient.NewSetServerTimeService().Do(ctx)
	if err != nil {
		return c.handleError(ctx, err, op)
	}
	c.logger.Debug(ctx, op+" successful", map[string]interface{}{"offsetMs": offset})
	return nil
}

// Ping checks the connectivity to the exchange API.
func (c *Client) Ping(ctx context.Context) error {
	op := "Ping"
	if err := c.wait(ctx, op); err != nil {
		return err
	}
	if err := c.spotClient.NewPingService().Do(ctx); err != nil {
		return c.handleError(ctx, fmt.Errorf("ping failed: %w", err), op)
	}
	c.logger.Debug(ctx, op+" successful")
	return nil
}

// GetTickerPrice retrieves the last traded price for a given symbol.
func (c *Client) GetTickerPrice(ctx context.Context, symbol string) (float64, error) {
	op := "GetTickerPrice"
	if err := c.wait(ctx, op); err != nil {
		return 0, err
	}
	prices, err := c.spotClient.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, c.handleError(ctx, err, op)
	}
	for _, p := range prices {
		if p.Symbol != symbol {
			continue
		}
		price, err := strconv.ParseFloat(p.Price, 64)
		if err != nil {
			parseErr := fmt.Errorf("could not parse price '%s': %w", p.Price, err)
			return 0, c.handleError(ctx, parseErr, op)
		}
		return price, nil
	}
	return 0, c.handleError(ctx, fmt.Errorf("no ticker data returned for symbol %s", symbol), op)
}

// GetInstrumentFilters retrieves the lot size and price filters for a symbol.
func (c *Client) GetInstrumentFilters(ctx context.Context, symbol string) (*ports.InstrumentFilters, error) {
	op := "GetInstrumentFilters"
	if err := c.wait(ctx, op); err != nil {
		return nil, err
	}
	info, err := c.spotClient.NewExchangeInfoService().Symbol(symbol).Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	for i := range info.Symbols {
		s := &info.Symbols[i]
		if s.Symbol != symbol {
			continue
		}
		filters, err := translateFilters(s)
		if err != nil {
			return nil, c.handleError(ctx, err, op)
		}
		c.logger.Debug(ctx, op+" successful", map[string]interface{}{
			"symbol": symbol, "stepSize": filters.StepSize, "minQty": filters.MinQty, "tickSize": filters.TickSize,
		})
		return filters, nil
	}
	return nil, fmt.Errorf("%s failed for %s: %w", op, symbol, ports.ErrSymbolNotFound)
}

// PlaceMarketOrder places a market order.
func (c *Client) PlaceMarketOrder(ctx context.Context, symbol string, side domain.OrderSide, quantity string) (*ports.OrderResponse, error) {
	op := "PlaceMarketOrder"
	if err := c.wait(ctx, op); err != nil {
		return nil, err
	}

	order, err := c.spotClient.NewCreateOrderService().
		Symbol(symbol).
		Side(binance.SideType(side)). // Direct conversion assuming values match
		Type(binance.OrderTypeMarket).
		Quantity(quantity).
		Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	resp := translateOrderResponse(order)
	c.logger.Info(ctx, op+" successful", map[string]interface{}{
		"symbol": symbol, "side": side, "quantity": quantity,
		"orderID": resp.OrderID, "avgPrice": resp.AvgPrice, "executedQty": resp.ExecutedQty,
	})
	return resp, nil
}

// CreateBracketOrder places an OCO sell with a take-profit and a stop-loss leg.
func (c *Client) CreateBracketOrder(ctx context.Context, req ports.BracketOrderRequest) (*domain.BracketOrder, error) {
	op := "CreateBracketOrder"
	if err := c.wait(ctx, op); err != nil {
		return nil, err
	}

	c.logger.Info(ctx, op+": Attempting to place OCO order", map[string]interface{}{
		"symbol":         req.Symbol,
		"quantity":       req.Quantity,
		"takeProfit":     req.TakeProfitPrice,
		"stopPrice":      req.StopPrice,
		"stopLimitPrice": req.StopLimitPrice,
	})

	res, err := c.spotClient.NewCreateOCOService().
		Symbol(req.Symbol).
		Side(binance.SideTypeSell).
		Quantity(req.Quantity).
		Price(req.TakeProfitPrice).
		StopPrice(req.StopPrice).
		StopLimitPrice(req.StopLimitPrice).
		StopLimitTimeInForce(binance.TimeInForceTypeGTC).
		Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	bracket := &domain.BracketOrder{OrderListID: res.OrderListID}
	for _, r := range res.OrderReports {
		switch r.Type {
		case binance.OrderTypeLimitMaker:
			bracket.TakeProfitOrderID = r.OrderID
		case binance.OrderTypeStopLossLimit, binance.OrderTypeStopLoss:
			bracket.StopLossOrderID = r.OrderID
		}
	}
	if bracket.TakeProfitOrderID == 0 || bracket.StopLossOrderID == 0 {
		// Binance lists the stop leg first for a sell OCO.
		if len(res.Orders) == 2 {
			bracket.StopLossOrderID = res.Orders[0].OrderID
			bracket.TakeProfitOrderID = res.Orders[1].OrderID
		}
	}

	c.logger.Info(ctx, op+" successful", map[string]interface{}{
		"symbol":            req.Symbol,
		"orderListID":       bracket.OrderListID,
		"takeProfitOrderID": bracket.TakeProfitOrderID,
		"stopLossOrderID":   bracket.StopLossOrderID,
	})
	return bracket, nil
}

// GetBracketOrderStatus queries both child orders of a bracket.
func (c *Client) GetBracketOrderStatus(ctx context.Context, symbol string, bracket domain.BracketOrder) (*ports.BracketStatus, error) {
	op := "GetBracketOrderStatus"

	tp, err := c.getOrder(ctx, op, symbol, bracket.TakeProfitOrderID)
	if err != nil {
		return nil, err
	}
	sl, err := c.getOrder(ctx, op, symbol, bracket.StopLossOrderID)
	if err != nil {
		return nil, err
	}

	status := bracketStatus(
		orderSnapshotFrom(tp, ports.LegTakeProfit),
		orderSnapshotFrom(sl, ports.LegStopLoss),
	)
	c.logger.Debug(ctx, op+" successful", map[string]interface{}{
		"symbol": symbol, "orderListID": bracket.OrderListID,
		"takeProfitStatus": tp.Status, "stopLossStatus": sl.Status, "completed": status.Completed,
	})
	return status, nil
}

func (c *Client) getOrder(ctx context.Context, op, symbol string, orderID int64) (*binance.Order, error) {
	if err := c.wait(ctx, op); err != nil {
		return nil, err
	}
	order, err := c.spotClient.NewGetOrderService().Symbol(symbol).OrderID(orderID).Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	return order, nil
}

// CancelBracketOrder cancels both legs of a bracket.
func (c *Client) CancelBracketOrder(ctx context.Context, symbol string, bracket domain.BracketOrder) error {
	op := "CancelBracketOrder"
	if err := c.wait(ctx, op); err != nil {
		return err
	}
	c.logger.Debug(ctx, "Attempting to cancel OCO order", map[string]interface{}{"symbol": symbol, "orderListID": bracket.OrderListID})

	_, err := c.spotClient.NewCancelOCOService().
		Symbol(symbol).
		OrderListID(bracket.OrderListID).
		Do(ctx)
	if err != nil {
		return c.handleError(ctx, err, op)
	}
	c.logger.Info(ctx, op+" successful", map[string]interface{}{"symbol": symbol, "orderListID": bracket.OrderListID})
	return nil
}

// --- Translation Helpers ---

func translateOrderResponse(order *binance.CreateOrderResponse) *ports.OrderResponse {
	if order == nil {
		return nil
	}
	origQty, _ := strconv.ParseFloat(order.OrigQuantity, 64)
	execQty, _ := strconv.ParseFloat(order.ExecutedQuantity, 64)
	cumQuote, _ := strconv.ParseFloat(order.CummulativeQuoteQuantity, 64)

	avgPrice := averageFillPrice(order.Fills)
	if avgPrice == 0 && execQty > 0 {
		avgPrice = cumQuote / execQty
	}

	return &ports.OrderResponse{
		OrderID:         order.OrderID,
		Symbol:          order.Symbol,
		ClientOrderID:   order.ClientOrderID,
		AvgPrice:        avgPrice,
		OrigQuantity:    origQty,
		ExecutedQty:     execQty,
		CumulativeQuote: cumQuote,
		Status:          string(order.Status),
		Type:            string(order.Type),
		Side:            string(order.Side),
		Timestamp:       time.UnixMilli(order.TransactTime),
	}
}

// averageFillPrice is the quantity-weighted price across fills; 0 when there are none.
func averageFillPrice(fills []*binance.Fill) float64 {
	var notional, qty float64
	for _, f := range fills {
		if f == nil {
			continue
		}
		p, errP := strconv.ParseFloat(f.Price, 64)
		q, errQ := strconv.ParseFloat(f.Quantity, 64)
		if errP != nil || errQ != nil {
			continue
		}
		notional += p * q
		qty += q
	}
	if qty == 0 {
		return 0
	}
	return notional / qty
}

func translateFilters(s *binance.Symbol) (*ports.InstrumentFilters, error) {
	filters := &ports.InstrumentFilters{Symbol: s.Symbol}
	if lot := s.LotSizeFilter(); lot != nil {
		var err error
		if filters.StepSize, err = parseOptional(lot.StepSize); err != nil {
			return nil, fmt.Errorf("parsing stepSize '%s': %w", lot.StepSize, err)
		}
		if filters.MinQty, err = parseOptional(lot.MinQuantity); err != nil {
			return nil, fmt.Errorf("parsing minQty '%s': %w", lot.MinQuantity, err)
		}
		if filters.MaxQty, err = parseOptional(lot.MaxQuantity); err != nil {
			return nil, fmt.Errorf("parsing maxQty '%s': %w", lot.MaxQuantity, err)
		}
	}
	if pf := s.PriceFilter(); pf != nil {
		tick, err := parseOptional(pf.TickSize)
		if err != nil {
			return nil, fmt.Errorf("parsing tickSize '%s': %w", pf.TickSize, err)
		}
		filters.TickSize = tick
	}
	return filters, nil
}

func parseOptional(v string) (float64, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.ParseFloat(v, 64)
}

// orderSnapshot is the subset of a child order the bracket status needs.
type orderSnapshot struct {
	leg      ports.BracketLeg
	orderID  int64
	status   binance.OrderStatusType
	price    string
	execQty  string
	cumQuote string
}

func orderSnapshotFrom(o *binance.Order, leg ports.BracketLeg) orderSnapshot {
	return orderSnapshot{
		leg:      leg,
		orderID:  o.OrderID,
		status:   o.Status,
		price:    o.Price,
		execQty:  o.ExecutedQuantity,
		cumQuote: o.CummulativeQuoteQuantity,
	}
}

func isWorking(s binance.OrderStatusType) bool {
	return s == binance.OrderStatusTypeNew || s == binance.OrderStatusTypePartiallyFilled
}

// bracketStatus derives completion, the filled leg and any partial
// execution from both child orders.
func bracketStatus(legs ...orderSnapshot) *ports.BracketStatus {
	status := &ports.BracketStatus{Completed: true}
	for _, leg := range legs {
		if leg.status == binance.OrderStatusTypeFilled {
			status.Fill = fillFromSnapshot(leg)
			continue
		}
		if isWorking(leg.status) {
			status.Completed = false
		}
		if partial := fillFromSnapshot(leg); partial.Quantity > 0 {
			status.Partial = partial
		}
	}
	// Once one leg fills the exchange expires the other; treat the bracket as done.
	if status.Fill != nil {
		status.Completed = true
	}
	return status
}

func fillFromSnapshot(s orderSnapshot) *ports.BracketFill {
	execQty, _ := strconv.ParseFloat(s.execQty, 64)
	cumQuote, _ := strconv.ParseFloat(s.cumQuote, 64)
	price, _ := strconv.ParseFloat(s.price, 64)
	if execQty > 0 && cumQuote > 0 {
		price = cumQuote / execQty
	}
	return &ports.BracketFill{Leg: s.leg, OrderID: s.orderID, Price: price, Quantity: execQty}
}
