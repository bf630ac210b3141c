package handler

import (
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
	"github.com/whisprlabs/whisprgate/internal/crypto"
	"github.com/whisprlabs/whisprgate/internal/middleware"
	"github.com/whisprlabs/whisprgate/internal/model"
	"github.com/whisprlabs/whisprgate/internal/pkg/apperrors"
	"github.com/whisprlabs/whisprgate/internal/service"
)

type SwapHandler struct {
	orch *service.Orchestrator
}

func NewSwapHandler(orch *service.Orchestrator) *SwapHandler {
	return &SwapHandler{orch: orch}
}

// Compute dispatches one confidential swap computation to the cluster.
// Responds 202 with the dispatch-half state; settlement lands via callback.
func (h *SwapHandler) Compute(c *gin.Context) {
	user := c.MustGet(middleware.ContextUserKey).(*model.User)

	var req model.ComputeSwapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}

	in, err := parseComputeSwap(req)
	if err != nil {
		c.Error(err)
		return
	}

	state, err := h.orch.ComputeSwap(c.Request.Context(), user.Address, in)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusAccepted, model.ComputeSwapResponse{
		ComputationOffset: state.ComputationOffset,
		Status:            state.Status,
		Address:           state.Address,
	})
}

func (h *SwapHandler) Get(c *gin.Context) {
	user := c.MustGet(middleware.ContextUserKey).(*model.User)

	offset, err := strconv.ParseUint(c.Param("offset"), 10, 64)
	if err != nil {
		c.Error(apperrors.NewInvalidRequest("offset must be an unsigned integer"))
		return
	}

	state, err := h.orch.GetSwap(c.Request.Context(), user.Address, offset)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, state)
}

func (h *SwapHandler) List(c *gin.Context) {
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

	states, err := h.orch.ListSwaps(c.Request.Context(), user.Address, limit)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"swaps": states})
}

func parseComputeSwap(req model.ComputeSwapRequest) (service.ComputeSwapInput, error) {
	var in service.ComputeSwapInput
	in.ComputationOffset = req.ComputationOffset

	pubBytes, err := hexutil.Decode(req.PubKey)
	if err != nil {
		return in, apperrors.NewInvalidRequest("pub_key: " + err.Error())
	}
	pk, err := crypto.PublicKeyFromBytes(pubBytes)
	if err != nil {
		return in, apperrors.NewInvalidRequest("pub_key: " + err.Error())
	}
	in.PubKey = pk

	nonce, err := model.NonceFromHex(req.Nonce)
	if err != nil {
		return in, apperrors.NewInvalidRequest("nonce: " + err.Error())
	}
	in.Nonce = nonce

	amount, err := model.CiphertextFromHex(req.EncryptedAmount)
	if err != nil {
		return in, apperrors.NewInvalidRequest("encrypted_amount: " + err.Error())
	}
	in.EncryptedAmount = amount

	return in, nil
}
