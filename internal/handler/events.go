package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/whisprlabs/whisprgate/internal/middleware"
	"github.com/whisprlabs/whisprgate/internal/model"
	"github.com/whisprlabs/whisprgate/internal/pkg/apperrors"
	"github.com/whisprlabs/whisprgate/internal/pkg/logger"
	"github.com/whisprlabs/whisprgate/internal/service"
)

type EventHandler struct {
	journal *service.EventJournal
}

func NewEventHandler(journal *service.EventJournal) *EventHandler {
	return &EventHandler{journal: journal}
}

func (h *EventHandler) List(c *gin.Context) {
	user := c.MustGet(middleware.ContextUserKey).(*model.User)

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.Error(apperrors.NewInvalidRequest("limit must be a positive integer"))
			return
		}
		limit = n
	}

	records, err := h.journal.List(c.Request.Context(), user.Address, limit)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": records})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Auth happens via the gateway key header, not Origin
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Stream pushes the caller's events over a websocket as they are emitted.
func (h *EventHandler) Stream(c *gin.Context) {
	user := c.MustGet(middleware.ContextUserKey).(*model.User)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ch, cancel := h.journal.Subscribe()
	defer cancel()

	// Drain client frames so pings and close get processed
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case rec, ok := <-ch:
			if !ok {
				return
			}
			if rec.User != user.Address {
				continue
			}
			if err := conn.WriteJSON(rec); err != nil {
				logger.Warn("event stream write failed", "error", err, "user", user.ID)
				return
			}
		case <-done:
			return
		}
	}
}
