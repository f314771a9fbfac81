package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/jurubahasa/domain/langcode"
	"github.com/satriahrh/jurubahasa/domain/repositories"
	"github.com/satriahrh/jurubahasa/internal/auth"
	"github.com/satriahrh/jurubahasa/internal/websocket"
	"github.com/satriahrh/jurubahasa/usecase"
)

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, hub *websocket.Hub, service *usecase.InterpreterService, issuer *auth.TokenIssuer, logger *zap.Logger) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":          "ok",
			"service":         "jurubahasa",
			"active_sessions": hub.ActiveSessions(),
		})
	})

	// API v1 routes
	v1 := e.Group("/api/v1")

	v1.GET("/languages", func(c echo.Context) error {
		return c.JSON(http.StatusOK, LanguagesResponse{Languages: langcode.Known()})
	})

	// Interpreter session APIs
	v1.POST("/interpreter/sessions", func(c echo.Context) error {
		return createSession(c, service, issuer, logger)
	})

	sessions := v1.Group("/interpreter/sessions/:id", requireSessionToken(issuer, logger))
	sessions.GET("", func(c echo.Context) error {
		return getSession(c, hub, service)
	})
	sessions.DELETE("", func(c echo.Context) error {
		return endSession(c, hub, service, logger)
	})

	// WebSocket endpoint with JWT validation
	e.GET("/ws", func(c echo.Context) error {
		return websocketWithAuth(hub, issuer, c, logger)
	})
}

func createSession(c echo.Context, service *usecase.InterpreterService, issuer *auth.TokenIssuer, logger *zap.Logger) error {
	var req CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		logger.Error("Failed to bind create session request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	lang1, lang2 := req.Lang1, req.Lang2
	if strings.TrimSpace(lang1) == "" && strings.TrimSpace(lang2) == "" && req.Languages != "" {
		pair, err := langcode.ParsePair(req.Languages)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_languages",
				Message: err.Error(),
			})
		}
		lang1, lang2 = pair.A, pair.B
	}

	if strings.TrimSpace(req.RoomName) == "" || strings.TrimSpace(lang1) == "" || strings.TrimSpace(lang2) == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "room_name, lang1 and lang2 are required",
		})
	}

	if pair, err := langcode.NewPair(lang1, lang2); err != nil || !pair.Supported() {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "unsupported_language",
			Message: "Both languages must be supported translation targets, see /api/v1/languages",
		})
	}

	session, err := service.StartSession(c.Request().Context(), req.RoomName, lang1, lang2)
	switch {
	case errors.Is(err, usecase.ErrMissingFields):
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: err.Error(),
		})
	case errors.Is(err, langcode.ErrUnsupportedLanguageMapping):
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "unsupported_language",
			Message: err.Error(),
		})
	case err != nil:
		logger.Error("Failed to start session", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to start session",
		})
	}

	token, expiresAt, err := issuer.GenerateSessionToken(session)
	if err != nil {
		logger.Error("Failed to generate session token",
			zap.String("sessionID", session.ID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate session token",
		})
	}

	return c.JSON(http.StatusCreated, CreateSessionResponse{
		SessionID:    session.ID,
		RoomName:     session.Room,
		Languages:    session.Languages,
		Token:        token,
		ExpiresAt:    expiresAt,
		WebSocketURL: "/ws",
	})
}

func getSession(c echo.Context, hub *websocket.Hub, service *usecase.InterpreterService) error {
	id := c.Param("id")
	session, err := service.GetSession(c.Request().Context(), id)
	if err != nil {
		return sessionError(c, err)
	}
	return c.JSON(http.StatusOK, SessionResponse{
		InterpreterSession: session,
		Connected:          hub.Connected(id),
	})
}

func endSession(c echo.Context, hub *websocket.Hub, service *usecase.InterpreterService, logger *zap.Logger) error {
	id := c.Param("id")
	session, err := service.EndSession(c.Request().Context(), id, nil)
	if err != nil {
		return sessionError(c, err)
	}

	// The connection stores its final counters as it goes down.
	disconnected := hub.Disconnect(id)
	logger.Info("Session ended by request",
		zap.String("sessionID", id),
		zap.Bool("disconnected", disconnected))

	return c.JSON(http.StatusOK, SessionResponse{InterpreterSession: session})
}

func sessionError(c echo.Context, err error) error {
	if errors.Is(err, repositories.ErrSessionNotFound) {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "session_not_found",
			Message: "Session not found",
		})
	}
	return c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: err.Error(),
	})
}

// bearerToken extracts the JWT from the Authorization header, falling back to
// the token query parameter for browser clients that cannot set headers on a
// WebSocket handshake.
func bearerToken(c echo.Context) string {
	authHeader := c.Request().Header.Get("Authorization")
	if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		return authHeader[7:]
	}
	return c.QueryParam("token")
}

// authenticate validates the request's token and its role.
func authenticate(c echo.Context, issuer *auth.TokenIssuer, logger *zap.Logger) (*auth.JWTClaims, error) {
	token := bearerToken(c)
	if token == "" {
		logger.Warn("Request rejected: missing token", zap.String("path", c.Path()))
		return nil, c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "missing_token",
			Message: "JWT token is required as a Bearer token or token query parameter",
		})
	}

	claims, err := issuer.ValidateToken(token)
	if err != nil {
		logger.Warn("Request rejected: invalid token", zap.Error(err))
		return nil, c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired JWT token",
		})
	}

	if claims.Role != auth.RoleInterpreter {
		logger.Warn("Request rejected: invalid role", zap.String("role", claims.Role))
		return nil, c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "invalid_role",
			Message: "Only interpreter session tokens are accepted",
		})
	}

	if claims.SessionID == "" {
		logger.Error("Request rejected: missing session ID in token")
		return nil, c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_token_claims",
			Message: "Session ID not found in token",
		})
	}

	return claims, nil
}

// requireSessionToken only lets through tokens issued for the :id session.
func requireSessionToken(issuer *auth.TokenIssuer, logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, err := authenticate(c, issuer, logger)
			if claims == nil {
				return err
			}
			if claims.SessionID != c.Param("id") {
				return c.JSON(http.StatusForbidden, ErrorResponse{
					Error:   "session_mismatch",
					Message: "Token was issued for another session",
				})
			}
			return next(c)
		}
	}
}

// websocketWithAuth handles WebSocket connections with JWT authentication
func websocketWithAuth(hub *websocket.Hub, issuer *auth.TokenIssuer, c echo.Context, logger *zap.Logger) error {
	claims, err := authenticate(c, issuer, logger)
	if claims == nil {
		return err
	}

	logger.Info("WebSocket connection authenticated",
		zap.String("sessionID", claims.SessionID),
		zap.String("room", claims.Room))

	err = websocket.HandleWebSocketWithAuth(hub, c, claims.SessionID, logger)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrSessionNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "session_not_found",
			Message: "Session not found",
		})
	case errors.Is(err, usecase.ErrSessionInactive):
		return c.JSON(http.StatusGone, ErrorResponse{
			Error:   "session_inactive",
			Message: "Session has ended or expired",
		})
	case errors.Is(err, websocket.ErrSessionInUse):
		return c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "session_in_use",
			Message: "Session already has a live connection",
		})
	default:
		return err
	}
}
