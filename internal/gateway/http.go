// Package gateway is the HTTP/WS ingress in front of the matching
// engine's router: it owns no matching state, only request parsing,
// validation, per-client rate limiting, and translating internal errors
// into the apierr wire shape. Grounded on the teacher's gin +
// gin-contrib/cors + go-playground/validator HTTP stack, with
// ulule/limiter standing in for the teacher's per-tenant HTTP throttle
// (keyed by client IP here) and gorilla/websocket for the trade feed.
package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	gocache "github.com/patrickmn/go-cache"
	limiter "github.com/ulule/limiter/v3"
	ginlimiter "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/obmatch/matchcore/internal/apierr"
	"github.com/obmatch/matchcore/internal/config"
	"github.com/obmatch/matchcore/internal/decimal"
	"github.com/obmatch/matchcore/internal/domain"
	"github.com/obmatch/matchcore/internal/eventbus"
	"github.com/obmatch/matchcore/internal/matcher"
	"github.com/obmatch/matchcore/internal/router"
)

// Module wires the HTTP server as an fx lifecycle hook alongside the
// matching engine's other components.
var Module = fx.Options(
	fx.Invoke(registerHTTPServer),
)

// placeRequest is the wire shape clients submit; validator tags enforce
// the shape the router would otherwise reject one field at a time.
type placeRequest struct {
	Pair          string     `json:"pair" binding:"required"`
	ClientOrderID string     `json:"client_order_id" binding:"required"`
	Side          string     `json:"side" binding:"required,oneof=BUY SELL"`
	Kind          string     `json:"kind" binding:"required,oneof=MARKET LIMIT STOP STOP_LIMIT"`
	TimeInForce   string     `json:"time_in_force" binding:"required,oneof=GTC IOC FOK GTD"`
	LimitPrice    string     `json:"limit_price" binding:"required_if=Kind LIMIT,required_if=Kind STOP_LIMIT"`
	StopPrice     string     `json:"stop_price" binding:"required_if=Kind STOP,required_if=Kind STOP_LIMIT"`
	Qty           string     `json:"qty" binding:"required"`
	ExpiresAt     *time.Time `json:"expires_at" validate:"required_if=TimeInForce GTD"`
}

type scalePair struct {
	priceScale int32
	qtyScale   int32
}

type server struct {
	r         *router.Router
	bus       *eventbus.Bus
	logger    *zap.Logger
	upgrader  websocket.Upgrader
	pairScale map[string]scalePair
	validate  *validator.Validate
	idemCache *gocache.Cache
}

// idempotentResult is cached per ClientOrderID for a short window so a
// client retrying a POST /orders after a timed-out response gets back the
// original outcome instead of risking a second submission racing the
// matcher's own duplicate-ClientOrderID check.
type idempotentResult struct {
	status int
	body   gin.H
}

func registerHTTPServer(lc fx.Lifecycle, r *router.Router, bus *eventbus.Bus, cfg config.Config, logger *zap.Logger) error {
	scales := make(map[string]scalePair, len(cfg.Pairs))
	for _, p := range cfg.Pairs {
		scales[p.Pair] = scalePair{priceScale: p.PriceScale, qtyScale: p.QtyScale}
	}

	srv := &server{
		r:         r,
		bus:       bus,
		logger:    logger,
		upgrader:  websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
		pairScale: scales,
		validate:  validator.New(),
		idemCache: gocache.New(2*time.Minute, 5*time.Minute),
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.Default())
	engine.Use(requestIDMiddleware)

	rate, err := limiter.NewRateFromFormatted("200-S")
	if err != nil {
		return err
	}
	engine.Use(ginlimiter.NewMiddleware(limiter.New(memory.NewStore(), rate)))

	engine.POST("/orders", srv.handlePlace)
	engine.PATCH("/orders/:pair/:orderID", srv.handleModify)
	engine.DELETE("/orders/:pair/:orderID", srv.handleCancel)
	engine.GET("/ws/trades", srv.handleTradeFeed)

	httpServer := &http.Server{Addr: ":8080", Handler: engine}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			logger.Info("starting gateway http server", zap.String("addr", httpServer.Addr))
			go func() {
				if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("gateway server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return httpServer.Shutdown(ctx)
		},
	})
	return nil
}

// requestIDMiddleware stamps every request with a stable correlation id,
// reusing one supplied by an upstream proxy instead of minting a new one,
// so a single order placement can be traced across the gateway, router,
// and matcher logs.
func requestIDMiddleware(c *gin.Context) {
	id := c.GetHeader("X-Request-ID")
	if id == "" {
		id = uuid.NewString()
	}
	c.Set("request_id", id)
	c.Writer.Header().Set("X-Request-ID", id)
	c.Next()
}

func (s *server) handlePlace(c *gin.Context) {
	var req placeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, apierr.FromReject(domain.ReasonValidation, err.Error()))
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		respondErr(c, apierr.FromReject(domain.ReasonValidation, err.Error()))
		return
	}
	if cached, ok := s.idemCache.Get(req.ClientOrderID); ok {
		result := cached.(idempotentResult)
		c.JSON(result.status, result.body)
		return
	}

	scale, ok := s.pairScale[req.Pair]
	if !ok {
		respondErr(c, apierr.FromReject(domain.ReasonUnknownPair, "unknown pair"))
		return
	}

	cmd := matcher.PlaceOrderCommand{
		Pair:          req.Pair,
		UserID:        c.GetHeader("X-User-ID"),
		ClientOrderID: req.ClientOrderID,
		Side:          domain.Side(req.Side),
		Kind:          domain.Kind(req.Kind),
		TimeInForce:   domain.TimeInForce(req.TimeInForce),
	}

	qty, err := decimal.NewFromString(req.Qty, scale.qtyScale)
	if err != nil {
		respondErr(c, apierr.FromReject(domain.ReasonValidation, "invalid qty"))
		return
	}
	cmd.Qty = qty

	if req.LimitPrice != "" {
		price, err := decimal.NewFromString(req.LimitPrice, scale.priceScale)
		if err != nil {
			respondErr(c, apierr.FromReject(domain.ReasonValidation, "invalid limit_price"))
			return
		}
		cmd.LimitPrice, cmd.HasLimitPrice = price, true
	}
	if req.StopPrice != "" {
		stop, err := decimal.NewFromString(req.StopPrice, scale.priceScale)
		if err != nil {
			respondErr(c, apierr.FromReject(domain.ReasonValidation, "invalid stop_price"))
			return
		}
		cmd.StopPrice, cmd.HasStopPrice = stop, true
	}
	if req.ExpiresAt != nil {
		cmd.ExpiresAt, cmd.HasExpiresAt = *req.ExpiresAt, true
	}

	if err := s.r.Place(c.Request.Context(), cmd); err != nil {
		apiErr := apierr.FromRouterErr(err)
		if !apierr.IsRetryable(apiErr) {
			s.cacheResult(req.ClientOrderID, apiErr.HTTPStatus(), gin.H{
				"code": apiErr.Code, "message": apiErr.Message, "severity": apiErr.Severity, "retryable": false,
			})
		}
		respondErr(c, apiErr)
		return
	}
	body := gin.H{"client_order_id": req.ClientOrderID}
	s.cacheResult(req.ClientOrderID, http.StatusAccepted, body)
	c.JSON(http.StatusAccepted, body)
}

func (s *server) cacheResult(clientOrderID string, status int, body gin.H) {
	s.idemCache.Set(clientOrderID, idempotentResult{status: status, body: body}, gocache.DefaultExpiration)
}

// modifyRequest is the wire shape for PATCH /orders/:pair/:orderID; each
// field is applied only when present, everything else carries over from
// the existing order (spec §4.F Modify).
type modifyRequest struct {
	NewPrice     string     `json:"new_price"`
	NewQty       string     `json:"new_qty"`
	NewExpiresAt *time.Time `json:"new_expires_at"`
}

func (s *server) handleModify(c *gin.Context) {
	pair := c.Param("pair")
	var req modifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, apierr.FromReject(domain.ReasonValidation, err.Error()))
		return
	}
	scale, ok := s.pairScale[pair]
	if !ok {
		respondErr(c, apierr.FromReject(domain.ReasonUnknownPair, "unknown pair"))
		return
	}

	cmd := matcher.ModifyOrderCommand{
		Pair:    pair,
		OrderID: c.Param("orderID"),
		UserID:  c.GetHeader("X-User-ID"),
	}
	if req.NewPrice != "" {
		price, err := decimal.NewFromString(req.NewPrice, scale.priceScale)
		if err != nil {
			respondErr(c, apierr.FromReject(domain.ReasonValidation, "invalid new_price"))
			return
		}
		cmd.NewPrice, cmd.HasNewPrice = price, true
	}
	if req.NewQty != "" {
		qty, err := decimal.NewFromString(req.NewQty, scale.qtyScale)
		if err != nil {
			respondErr(c, apierr.FromReject(domain.ReasonValidation, "invalid new_qty"))
			return
		}
		cmd.NewQty, cmd.HasNewQty = qty, true
	}
	if req.NewExpiresAt != nil {
		cmd.NewExpiresAt, cmd.HasNewExpiresAt = *req.NewExpiresAt, true
	}

	if err := s.r.Modify(c.Request.Context(), cmd); err != nil {
		respondErr(c, apierr.FromRouterErr(err))
		return
	}
	c.Status(http.StatusAccepted)
}

func (s *server) handleCancel(c *gin.Context) {
	cmd := matcher.CancelOrderCommand{
		Pair:    c.Param("pair"),
		OrderID: c.Param("orderID"),
		UserID:  c.GetHeader("X-User-ID"),
	}
	if err := s.r.Cancel(c.Request.Context(), cmd); err != nil {
		respondErr(c, apierr.FromRouterErr(err))
		return
	}
	c.Status(http.StatusNoContent)
}

// handleTradeFeed upgrades to a websocket and streams every event off the
// bus verbatim; it is a fan-out read path only, never a write path back
// into the matcher.
func (s *server) handleTradeFeed(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := s.bus.Subscribe(ctx, func(ev domain.Event) error {
		return conn.WriteJSON(ev)
	}); err != nil {
		s.logger.Warn("trade feed subscribe failed", zap.Error(err))
	}
	<-done
}

func respondErr(c *gin.Context, e *apierr.Error) {
	c.JSON(e.HTTPStatus(), gin.H{
		"code":      e.Code,
		"message":   e.Message,
		"severity":  e.Severity,
		"retryable": apierr.IsRetryable(e),
	})
}
