package api

import (
	"net/http"

	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/interfaces"
	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// BusinessHandler 规范档案的录入与查询
type BusinessHandler struct {
	businesses interfaces.BusinessRepository
	mappings   interfaces.MappingRepository
	logger     *logrus.Logger
}

func NewBusinessHandler(businesses interfaces.BusinessRepository, mappings interfaces.MappingRepository, logger *logrus.Logger) *BusinessHandler {
	return &BusinessHandler{businesses: businesses, mappings: mappings, logger: logger}
}

// SaveBusiness 新建或整体替换档案（body 带 id 时替换）
// POST /api/businesses
func (h *BusinessHandler) SaveBusiness(c *gin.Context) {
	var in model.BusinessRecord
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	record, err := model.NewBusinessRecord(in)
	if err != nil {
		respondError(c, h.logger, "SaveBusiness", err)
		return
	}
	if err := h.businesses.Save(c.Request.Context(), record); err != nil {
		respondError(c, h.logger, "SaveBusiness", err)
		return
	}
	h.logger.WithFields(logrus.Fields{
		"business_id": record.ID,
		"tenant":      record.TenantID,
	}).Info("商户档案已保存")
	c.JSON(http.StatusOK, gin.H{"business_id": record.ID})
}

// GetBusiness 档案及其在各平台的同步状态
// GET /api/businesses/:business_id
func (h *BusinessHandler) GetBusiness(c *gin.Context) {
	businessID := c.Param("business_id")
	record, err := h.businesses.Get(c.Request.Context(), businessID)
	if err != nil {
		respondError(c, h.logger, "GetBusiness", err)
		return
	}
	mappings, err := h.mappings.ListByBusiness(c.Request.Context(), businessID)
	if err != nil {
		respondError(c, h.logger, "GetBusiness", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"business": record,
		"mappings": mappings,
	})
}
