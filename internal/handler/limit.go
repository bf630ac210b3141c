package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/whisprlabs/whisprgate/internal/middleware"
	"github.com/whisprlabs/whisprgate/internal/model"
	"github.com/whisprlabs/whisprgate/internal/pkg/apperrors"
	"github.com/whisprlabs/whisprgate/internal/service"
)

type LimitHandler struct {
	orch *service.Orchestrator
}

func NewLimitHandler(orch *service.Orchestrator) *LimitHandler {
	return &LimitHandler{orch: orch}
}

// Store writes (or overwrites) the caller's encrypted limit. The ciphertext
// is opaque to the gateway; only the MPC cluster can read it.
func (h *LimitHandler) Store(c *gin.Context) {
	user := c.MustGet(middleware.ContextUserKey).(*model.User)

	var req model.StoreLimitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}

	limit, err := model.CiphertextFromHex(req.Limit)
	if err != nil {
		c.Error(apperrors.NewInvalidRequest("limit: " + err.Error()))
		return
	}

	cfg, err := h.orch.StoreLimit(c.Request.Context(), user.Address, limit)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, cfg)
}

func (h *LimitHandler) Get(c *gin.Context) {
	user := c.MustGet(middleware.ContextUserKey).(*model.User)

	cfg, err := h.orch.GetLimit(c.Request.Context(), user.Address)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, cfg)
}
