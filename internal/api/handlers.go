package api

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chatmemo/internal/export"
	"chatmemo/internal/models"
	"chatmemo/internal/service/ai"
	"chatmemo/internal/service/chat"
)

const (
	msgSessionNotFound   = "Sesión no encontrada"
	msgUnsupportedFormat = "Formato no soportado"
	msgInvalidBody       = "invalid request body"
)

// Handler wires HTTP routes to the chat service.
type Handler struct {
	chat           *chat.Service
	allowedOrigins []string
	metrics        bool
}

// NewHandler constructs a Handler instance.
func NewHandler(service *chat.Service, allowedOrigins []string, metricsEnabled bool) *Handler {
	return &Handler{
		chat:           service,
		allowedOrigins: allowedOrigins,
		metrics:        metricsEnabled,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware(h.allowedOrigins))
	if h.metrics {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	api := router.Group("/api")
	api.GET("/health", h.health)
	api.GET("/chats", h.listChats)
	api.POST("/chats", h.createChat)
	api.GET("/chats/:sid", h.getChat)
	api.DELETE("/chats/:sid", h.deleteChat)
	api.GET("/chats/:sid/export", h.exportChat)
	api.GET("/memory/:sid", h.getSessionMemory)
	api.GET("/users/:uid/memory", h.getUserMemory)
	api.POST("/chat/:sid", h.chatTurn)
	api.POST("/analytics/event", h.recordEvent)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "mode": h.chat.Mode()})
}

func (h *Handler) listChats(c *gin.Context) {
	items, err := h.chat.ListSessions(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if items == nil {
		items = make([]models.SessionMeta, 0)
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) createChat(c *gin.Context) {
	var req struct {
		Title string `json:"title"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidBody})
		return
	}
	session, err := h.chat.CreateSession(c.Request.Context(), req.Title)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": session.ID, "title": session.Title})
}

func (h *Handler) getChat(c *gin.Context) {
	session, err := h.chat.GetSession(c.Request.Context(), c.Param("sid"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *Handler) deleteChat(c *gin.Context) {
	if err := h.chat.DeleteSession(c.Request.Context(), c.Param("sid")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) getSessionMemory(c *gin.Context) {
	mem, err := h.chat.SessionMemory(c.Request.Context(), c.Param("sid"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, mem)
}

func (h *Handler) getUserMemory(c *gin.Context) {
	mem, err := h.chat.UserMemory(c.Request.Context(), c.Param("uid"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, mem)
}

func (h *Handler) chatTurn(c *gin.Context) {
	var req struct {
		Message *string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Message == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidBody})
		return
	}
	res, err := h.chat.HandleTurn(c.Request.Context(), c.Param("sid"), *req.Message)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) exportChat(c *gin.Context) {
	file, err := h.chat.Export(c.Request.Context(), c.Param("sid"), c.Query("fmt"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Type", file.ContentType)
	c.FileAttachment(file.Path, file.Name)
}

func (h *Handler) recordEvent(c *gin.Context) {
	var ev models.Event
	if err := c.ShouldBindJSON(&ev); err != nil || strings.TrimSpace(ev.Type) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidBody})
		return
	}
	h.chat.RecordEvent(c.Request.Context(), ev)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// writeError maps service errors to HTTP statuses.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, chat.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": msgSessionNotFound})
	case errors.Is(err, export.ErrUnsupportedFormat):
		c.JSON(http.StatusBadRequest, gin.H{"error": msgUnsupportedFormat})
	case errors.Is(err, ai.ErrCompletionTimeout):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "completion timed out"})
	case errors.Is(err, ai.ErrCompletion):
		log.Printf("completion failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "completion failed"})
	default:
		log.Printf("request %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
