package handler

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
	"github.com/whisprlabs/whisprgate/internal/cluster"
	"github.com/whisprlabs/whisprgate/internal/service"
)

type ClusterHandler struct {
	exec *cluster.Executor
	orch *service.Orchestrator
}

func NewClusterHandler(exec *cluster.Executor, orch *service.Orchestrator) *ClusterHandler {
	return &ClusterHandler{exec: exec, orch: orch}
}

// PublicKey exposes the cluster x25519 key clients encrypt against.
func (h *ClusterHandler) PublicKey(c *gin.Context) {
	pk := h.exec.ClusterPublicKey()
	c.JSON(http.StatusOK, gin.H{
		"cluster_pub_key": hexutil.Encode(pk.Bytes()),
	})
}

// InitCompDef registers the swap circuit with the cluster. Registration is
// idempotent; re-running it after the first call is a no-op.
func (h *ClusterHandler) InitCompDef(c *gin.Context) {
	if err := h.orch.Register(h.exec); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"comp_def":        service.CompDefComputeSwap,
		"comp_def_offset": cluster.CompDefOffset(service.CompDefComputeSwap),
	})
}
