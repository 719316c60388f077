package api

import (
	"net/http"

	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/adapter"
	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/model"
	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// PlatformHandler 已注册平台的能力与相关性排序
type PlatformHandler struct {
	registry     *adapter.PlatformRegistry
	orchestrator *service.SyncOrchestrator
	logger       *logrus.Logger
}

func NewPlatformHandler(registry *adapter.PlatformRegistry, orchestrator *service.SyncOrchestrator, logger *logrus.Logger) *PlatformHandler {
	return &PlatformHandler{registry: registry, orchestrator: orchestrator, logger: logger}
}

type platformView struct {
	model.PlatformCapabilities
	WriteCapable bool                  `json:"write_capable"`
	Profile      model.PlatformProfile `json:"profile"`
}

// ListPlatforms GET /api/platforms
func (h *PlatformHandler) ListPlatforms(c *gin.Context) {
	names := h.registry.ListRegisteredPlatforms()
	out := make([]platformView, 0, len(names))
	for _, name := range names {
		caps, err := h.registry.Capabilities().Lookup(name)
		if err != nil {
			respondError(c, h.logger, "ListPlatforms", err)
			return
		}
		caps.Operations = model.SortedOperations(caps.Operations)
		profile, _ := h.registry.Profile(name)
		out = append(out, platformView{
			PlatformCapabilities: caps,
			WriteCapable:         h.registry.Capabilities().IsWriteCapable(name),
			Profile:              profile,
		})
	}
	c.JSON(http.StatusOK, gin.H{"total": len(out), "platforms": out})
}

type rankBody struct {
	BusinessID string  `json:"business_id" binding:"required"`
	MinScore   float64 `json:"min_score" binding:"gte=0,lte=1"`
}

// RankPlatforms POST /api/platforms/rank
func (h *PlatformHandler) RankPlatforms(c *gin.Context) {
	var body rankBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ranked, err := h.orchestrator.RankPlatforms(c.Request.Context(), body.BusinessID)
	if err != nil {
		respondError(c, h.logger, "RankPlatforms", err)
		return
	}
	if body.MinScore > 0 {
		ranked = service.Filter(ranked, body.MinScore)
	}
	c.JSON(http.StatusOK, gin.H{"business_id": body.BusinessID, "platforms": ranked})
}
