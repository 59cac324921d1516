package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/rolfenpp/ChronoBit-API/internal/domain"
	"github.com/rolfenpp/ChronoBit-API/internal/present/rest/middleware"
	"github.com/rolfenpp/ChronoBit-API/internal/present/rest/presenter"
	"github.com/rolfenpp/ChronoBit-API/internal/service"
	"github.com/rolfenpp/ChronoBit-API/internal/usecase"
)

type Handler struct {
	claim  *usecase.ClaimUsecase
	signal *service.SignalService
	auth   *middleware.AuthMiddleware
	limit  echo.MiddlewareFunc
}

// NewHandler wires the routes. signal and limit may be nil.
func NewHandler(
	claim *usecase.ClaimUsecase,
	signal *service.SignalService,
	auth *middleware.AuthMiddleware,
	limit echo.MiddlewareFunc,
) *Handler {
	return &Handler{
		claim:  claim,
		signal: signal,
		auth:   auth,
		limit:  limit,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.handleHealth)

	g := e.Group("/claims", h.auth.IdentifyIdentity)
	g.GET("", h.handleClaims)
	g.GET("/all", h.handleAllClaims)
	g.GET("/available", h.handleAvailable)
	g.GET("/realtime", h.handleRealtime)
	g.GET("/mine", h.handleUserClaims, middleware.RequireIdentity)
	g.GET("/summary", h.handleSummary, middleware.RequireIdentity)

	writes := []echo.MiddlewareFunc{middleware.RequireIdentity}
	if h.limit != nil {
		writes = append(writes, h.limit)
	}
	g.POST("/claim", h.handleClaim, writes...)
	g.POST("/transfer/:id", h.handleTransfer, writes...)
}

func (h *Handler) handleHealth(c echo.Context) error {
	return presenter.OK(c, echo.Map{"status": "ok"})
}

// handleClaims serves the owner's claims to authenticated callers and the
// redacted public listing to everyone else.
func (h *Handler) handleClaims(c echo.Context) error {
	if _, ok := middleware.RequesterID(c.Request().Context()); ok {
		return h.handleUserClaims(c)
	}
	return h.handleAllClaims(c)
}

func (h *Handler) handleAllClaims(c echo.Context) error {
	ctx := c.Request().Context()

	claims, err := h.claim.ListAllClaims(ctx)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, claims)
}

func (h *Handler) handleUserClaims(c echo.Context) error {
	ctx := c.Request().Context()
	requester, _ := middleware.RequesterID(ctx)

	claims, err := h.claim.ListClaimsForUser(ctx, requester)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, claims)
}

func (h *Handler) handleAvailable(c echo.Context) error {
	ctx := c.Request().Context()

	from, err := time.Parse(time.RFC3339, c.QueryParam("from"))
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid from parameter")
	}
	to, err := time.Parse(time.RFC3339, c.QueryParam("to"))
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid to parameter")
	}

	availability, err := h.claim.ListAvailability(ctx, from, to)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, availability)
}

type claimRequest struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Message  *string   `json:"message,omitempty"`
	ImageURL *string   `json:"imageUrl,omitempty"`
}

func (h *Handler) handleClaim(c echo.Context) error {
	ctx := c.Request().Context()
	requester, _ := middleware.RequesterID(ctx)

	var req claimRequest
	err := c.Bind(&req)
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid request body")
	}

	created, err := h.claim.CreateClaim(ctx, usecase.CreateClaimInput{
		OwnerID:  requester,
		Start:    req.Start,
		End:      req.End,
		Message:  req.Message,
		ImageURL: req.ImageURL,
	})
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, created)
}

func (h *Handler) handleTransfer(c echo.Context) error {
	ctx := c.Request().Context()
	requester, _ := middleware.RequesterID(ctx)

	claimID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid claim id")
	}

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, 4096))
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid request body")
	}
	target, err := parseTransferTarget(body)
	if err != nil {
		return presenter.BadRequestMessage(c, err.Error())
	}

	updated, err := h.claim.TransferClaim(ctx, claimID, requester, target)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, echo.Map{
		"status": "Ownership transferred.",
		"claim":  updated.Summary(),
	})
}

type transferRequest struct {
	Email string `json:"email"`
}

// parseTransferTarget accepts a bare JSON string or an object with an email field.
func parseTransferTarget(body []byte) (string, error) {
	var target string
	if err := json.Unmarshal(body, &target); err != nil {
		var req transferRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return "", errInvalidTarget
		}
		target = req.Email
	}
	target = strings.TrimSpace(target)
	if target == "" {
		return "", errInvalidTarget
	}
	return target, nil
}

var errInvalidTarget = errors.New("target email is required")

func (h *Handler) handleSummary(c echo.Context) error {
	ctx := c.Request().Context()
	requester, _ := middleware.RequesterID(ctx)

	stats, err := h.claim.SummarizeClaims(ctx, requester)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, stats)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleRealtime streams committed claim events. Clients only need to keep the socket open.
func (h *Handler) handleRealtime(c echo.Context) error {
	if h.signal == nil {
		return presenter.ServiceUnavailable(c, "realtime feed is not configured")
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"Failed to upgrade WebSocket",
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
		return err
	}
	defer func() {
		ws.Close()
	}()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	output := make(chan domain.ClaimEvent)
	go h.signal.Realtime(ctx, output)

	go func() {
		defer cancel()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				wsErr, ok := err.(*websocket.CloseError)
				if !ok || !(wsErr.Code == websocket.CloseNormalClosure || wsErr.Code == websocket.CloseGoingAway) {
					slog.DebugContext(
						ctx, "WebSocket closed",
						slog.String("error", err.Error()),
						slog.String("module", "socket"),
					)
				}
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-output:
			if !ok {
				ws.WriteControl(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "feed closed"),
					time.Now().Add(time.Second),
				)
				return nil
			}
			err := ws.WriteJSON(event)
			if err != nil {
				slog.ErrorContext(
					ctx, "Error writing message",
					slog.String("error", err.Error()),
					slog.String("module", "socket"),
				)
				return nil
			}
		}
	}
}

// RateLimiter limits write requests per requester, falling back to the client IP.
func RateLimiter(rps float64, burst int) echo.MiddlewareFunc {
	store := echomiddleware.NewRateLimiterMemoryStoreWithConfig(echomiddleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(rps),
		Burst:     burst,
		ExpiresIn: 3 * time.Minute,
	})
	return echomiddleware.RateLimiterWithConfig(echomiddleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			if id, ok := middleware.RequesterID(c.Request().Context()); ok {
				return "user:" + id, nil
			}
			return "ip:" + c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "rate limit exceeded"})
		},
	})
}
