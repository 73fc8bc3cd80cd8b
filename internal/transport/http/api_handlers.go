package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/mdelcroix/courier/internal/auth"
	"github.com/mdelcroix/courier/internal/store"
)

// maxAvatarBytes bounds uploaded avatar pictures.
const maxAvatarBytes = 1 << 20

// APIHandlers provides HTTP handlers for REST API endpoints.
type APIHandlers struct {
	authService *auth.Service
	store       store.Store
	log         *zerolog.Logger
	limiter     *rateLimiter
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(authService *auth.Service, st store.Store, logger *zerolog.Logger, authRateLimit int) *APIHandlers {
	return &APIHandlers{
		authService: authService,
		store:       st,
		log:         logger,
		limiter:     newRateLimiter(authRateLimit),
	}
}

// startLimiter ties the limiter's reset ticker to the server's lifetime.
func (h *APIHandlers) startLimiter(srv interface{ RegisterOnShutdown(func()) }) {
	stop := make(chan struct{})
	srv.RegisterOnShutdown(func() { close(stop) })
	h.limiter.startReset(stop)
}

// RegisterRequest represents the registration request body.
type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginRequest represents the login request body.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse represents the authentication response body.
type AuthResponse struct {
	Token string `json:"token"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse represents a stored message.
type MessageResponse struct {
	ID        int64  `json:"id"`
	Sender    string `json:"sender"`
	Receiver  string `json:"receiver"`
	Body      string `json:"body"`
	ReplyTo   *int64 `json:"reply_to,omitempty"`
	Reactions int    `json:"reactions"`
	IsRead    bool   `json:"is_read"`
	CreatedAt int64  `json:"created_at"`
}

// Health reports liveness.
// GET /health
func (h *APIHandlers) Health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// Register handles user registration.
// POST /register
func (h *APIHandlers) Register(c *gin.Context) {
	if !h.limiter.allow() {
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "too many attempts"})
		return
	}

	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid register request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	token, err := h.authService.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserExists):
			c.JSON(http.StatusConflict, ErrorResponse{Error: "user already exists"})
		case errors.Is(err, auth.ErrInvalidUsername), errors.Is(err, auth.ErrInvalidPassword):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		default:
			h.log.Error().Err(err).Str("username", req.Username).Msg("failed to register user")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	h.log.Info().Str("username", req.Username).Msg("user registered")
	c.JSON(http.StatusCreated, AuthResponse{Token: token})
}

// Login handles user login.
// POST /login
func (h *APIHandlers) Login(c *gin.Context) {
	if !h.limiter.allow() {
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "too many attempts"})
		return
	}

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid login request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	token, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
			return
		}
		h.log.Error().Err(err).Str("username", req.Username).Msg("failed to login user")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("username", req.Username).Msg("user logged in")
	c.JSON(http.StatusOK, AuthResponse{Token: token})
}

// Logout clears the caller's connected flag.
// POST /logout
func (h *APIHandlers) Logout(c *gin.Context) {
	username := c.GetString(ContextKeyUsername)
	if err := h.authService.Logout(c.Request.Context(), username); err != nil {
		h.log.Error().Err(err).Str("username", username).Msg("failed to logout user")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.Status(http.StatusNoContent)
}

// SetStatus flips a user's connected flag.
// PATCH /user/:username/status?connected=true
func (h *APIHandlers) SetStatus(c *gin.Context) {
	username := c.Param("username")
	if username != c.GetString(ContextKeyUsername) {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "cannot change another user's status"})
		return
	}

	connected, err := strconv.ParseBool(c.Query("connected"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "connected must be true or false"})
		return
	}

	if err := h.store.SetConnected(c.Request.Context(), username, connected); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
			return
		}
		h.log.Error().Err(err).Str("username", username).Msg("failed to set status")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.Status(http.StatusNoContent)
}

// ListUsernames returns every registered username.
// GET /users/username
func (h *APIHandlers) ListUsernames(c *gin.Context) {
	names, err := h.store.ListUsernames(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list usernames")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"usernames": names})
}

// UploadAvatar stores a user's picture from a multipart "file" field.
// PUT /user/:username/picture
func (h *APIHandlers) UploadAvatar(c *gin.Context) {
	username := c.Param("username")
	if username != c.GetString(ContextKeyUsername) {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "cannot change another user's picture"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing file"})
		return
	}
	if fileHeader.Size > maxAvatarBytes {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "picture too large"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unreadable file"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxAvatarBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unreadable file"})
		return
	}

	if err := h.store.UpdateAvatar(c.Request.Context(), username, data); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
			return
		}
		h.log.Error().Err(err).Str("username", username).Msg("failed to store avatar")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.Status(http.StatusNoContent)
}

// GetAvatar returns a user's picture.
// GET /user/:username/picture
func (h *APIHandlers) GetAvatar(c *gin.Context) {
	username := c.Param("username")

	avatar, err := h.store.GetAvatar(c.Request.Context(), username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
			return
		}
		h.log.Error().Err(err).Str("username", username).Msg("failed to load avatar")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	if len(avatar) == 0 {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no picture"})
		return
	}

	c.Data(http.StatusOK, http.DetectContentType(avatar), avatar)
}

// ListMessages returns stored messages, oldest first.
// GET /messages?limit=50&before_id=120
func (h *APIHandlers) ListMessages(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = n
	}

	var beforeID *int64
	if raw := c.Query("before_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid before_id"})
			return
		}
		beforeID = &id
	}

	msgs, err := h.store.ListMessages(c.Request.Context(), limit, beforeID)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	resp := make([]MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		resp = append(resp, MessageResponse{
			ID:        m.ID,
			Sender:    m.Sender,
			Receiver:  m.Receiver,
			Body:      m.Body,
			ReplyTo:   m.ReplyTo,
			Reactions: m.Reactions,
			IsRead:    m.IsRead,
			CreatedAt: m.CreatedAt.Unix(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"messages": resp})
}

// ReactionRequest sets the reaction count of a message.
type ReactionRequest struct {
	Count *int `json:"count" binding:"required"`
}

// UpdateReaction sets the reaction count on a message.
// PATCH /messages/:id/reaction
func (h *APIHandlers) UpdateReaction(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid message id"})
		return
	}

	var req ReactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if err := h.store.UpdateReaction(c.Request.Context(), id, *req.Count); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "message not found"})
			return
		}
		h.log.Error().Err(err).Int64("message_id", id).Msg("failed to update reaction")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.Status(http.StatusNoContent)
}

// MarkReadRequest marks a conversation as read.
type MarkReadRequest struct {
	Sender   string `json:"sender" binding:"required"`
	Receiver string `json:"receiver" binding:"required"`
}

// MarkRead marks every message between sender and receiver as read.
// POST /messages/read
func (h *APIHandlers) MarkRead(c *gin.Context) {
	var req MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if err := h.store.MarkRead(c.Request.Context(), req.Sender, req.Receiver); err != nil {
		h.log.Error().Err(err).Msg("failed to mark messages read")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.Status(http.StatusNoContent)
}
