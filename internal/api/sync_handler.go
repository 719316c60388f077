package api

import (
	"net/http"

	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/model"
	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type SyncHandler struct {
	orchestrator *service.SyncOrchestrator
	logger       *logrus.Logger
}

func NewSyncHandler(orchestrator *service.SyncOrchestrator, logger *logrus.Logger) *SyncHandler {
	return &SyncHandler{orchestrator: orchestrator, logger: logger}
}

type submitBody struct {
	BusinessID string         `json:"business_id" binding:"required"`
	Platforms  []string       `json:"platforms"`
	Mode       model.SyncMode `json:"mode"`
	Rank       bool           `json:"rank"`
	MinScore   float64        `json:"min_score" binding:"gte=0,lte=1"`
}

// Submit 提交同步批次，立即返回 batch_id，后台执行
// POST /api/sync/submit
func (h *SyncHandler) Submit(c *gin.Context) {
	var body submitBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	batchID, err := h.orchestrator.Start(c.Request.Context(), service.SubmitRequest{
		BusinessID: body.BusinessID,
		Platforms:  body.Platforms,
		Mode:       body.Mode,
		Rank:       body.Rank,
		MinScore:   body.MinScore,
	})
	if err != nil {
		respondError(c, h.logger, "Submit", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"batch_id": batchID})
}

// BatchStatus 批次内每个平台的当前状态
// GET /api/sync/batches/:batch_id
func (h *SyncHandler) BatchStatus(c *gin.Context) {
	batchID := c.Param("batch_id")
	statuses, err := h.orchestrator.Status(c.Request.Context(), batchID)
	if err != nil {
		respondError(c, h.logger, "BatchStatus", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"batch_id": batchID, "platforms": statuses})
}

// BatchReport 等待批次结束后返回汇总（请求取消则提前返回）
// GET /api/sync/batches/:batch_id/report
func (h *SyncHandler) BatchReport(c *gin.Context) {
	report, err := h.orchestrator.Wait(c.Request.Context(), c.Param("batch_id"))
	if err != nil {
		respondError(c, h.logger, "BatchReport", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// CancelBatch POST /api/sync/batches/:batch_id/cancel
func (h *SyncHandler) CancelBatch(c *gin.Context) {
	batchID := c.Param("batch_id")
	if err := h.orchestrator.Cancel(c.Request.Context(), batchID); err != nil {
		respondError(c, h.logger, "CancelBatch", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"batch_id": batchID, "message": "批次已取消"})
}

// GetMapping GET /api/sync/mappings/:business_id/:platform
func (h *SyncHandler) GetMapping(c *gin.Context) {
	m, err := h.orchestrator.GetMapping(c.Request.Context(), c.Param("business_id"), c.Param("platform"))
	if err != nil {
		respondError(c, h.logger, "GetMapping", err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// Transitions 状态迁移审计日志
// GET /api/sync/mappings/:business_id/:platform/transitions
func (h *SyncHandler) Transitions(c *gin.Context) {
	log, err := h.orchestrator.Transitions(c.Request.Context(), c.Param("business_id"), c.Param("platform"))
	if err != nil {
		respondError(c, h.logger, "Transitions", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transitions": log})
}

// DeleteListing 删除远端商户页并把映射重置为 unsynced
// DELETE /api/sync/mappings/:business_id/:platform
func (h *SyncHandler) DeleteListing(c *gin.Context) {
	m, err := h.orchestrator.Delete(c.Request.Context(), c.Param("business_id"), c.Param("platform"))
	if err != nil {
		respondError(c, h.logger, "DeleteListing", err)
		return
	}
	c.JSON(http.StatusOK, m)
}

type verifyBody struct {
	BusinessID string `json:"business_id" binding:"required"`
	Platform   string `json:"platform" binding:"required"`
	Code       string `json:"code" binding:"required"`
}

// Verify 提交平台下发的验证码
// POST /api/sync/verify
func (h *SyncHandler) Verify(c *gin.Context) {
	var body verifyBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	m, err := h.orchestrator.Verify(c.Request.Context(), body.BusinessID, body.Platform, body.Code)
	if err != nil {
		respondError(c, h.logger, "Verify", err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// Invoke 只读操作：get / search / reviews / analytics
// GET /api/sync/listings/:business_id/:platform/:operation
func (h *SyncHandler) Invoke(c *gin.Context) {
	op := model.Operation(c.Param("operation"))
	resp, err := h.orchestrator.Invoke(c.Request.Context(), c.Param("business_id"), c.Param("platform"), op)
	if err != nil {
		respondError(c, h.logger, "Invoke", err)
		return
	}
	status := http.StatusOK
	if !resp.Success {
		status = statusFor(model.ReasonError(resp.Error))
	}
	c.JSON(status, resp)
}
