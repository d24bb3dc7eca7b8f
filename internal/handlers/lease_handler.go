package handlers

import (
	"strconv"

	"leasehub/internal/models"
	"leasehub/internal/services"
	"leasehub/pkg/jwt"
	"leasehub/pkg/pagination"
	"leasehub/pkg/response"

	"github.com/gin-gonic/gin"
)

// LeaseHandler 租约预览、生成与签署处理器
type LeaseHandler struct {
	generation *services.LeaseGenerationService
	lifecycle  *services.LeaseLifecycleService
}

// NewLeaseHandler 创建租约处理器
func NewLeaseHandler(generation *services.LeaseGenerationService, lifecycle *services.LeaseLifecycleService) *LeaseHandler {
	return &LeaseHandler{
		generation: generation,
		lifecycle:  lifecycle,
	}
}

// RecordSignatureRequest 记录签署结果
type RecordSignatureRequest struct {
	Role    models.SignerRole      `json:"role" binding:"required"`
	Outcome models.SignatureStatus `json:"outcome" binding:"required"`
}

// TerminateRequest 终止租约
type TerminateRequest struct {
	Reason string `json:"reason" binding:"required,max=200"`
}

// Preview 预览租约，默认直接返回 HTML，format=json 时返回解析模型
func (h *LeaseHandler) Preview(c *gin.Context) {
	var req services.LeaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	claims := c.MustGet("claims").(*jwt.JWTClaims)

	result, err := h.generation.Preview(c.Request.Context(), claims.OrgID, req)
	if err != nil {
		response.FromError(c, err, "租约预览失败")
		return
	}

	if c.Query("format") == "json" {
		response.Success(c, gin.H{
			"model":    result.Model,
			"artifact": result.Artifact,
			"html":     string(result.Artifact.Body),
		})
		return
	}
	response.HTML(c, result.Artifact.Body)
}

// Generate 生成并提交租约文档
func (h *LeaseHandler) Generate(c *gin.Context) {
	var req services.GenerateLeaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	claims := c.MustGet("claims").(*jwt.JWTClaims)

	result, err := h.generation.Generate(c.Request.Context(), claims.OrgID, claims.UserID, req)
	if err != nil {
		response.FromError(c, err, "生成租约失败")
		return
	}

	response.SuccessWithMessage(c, "租约已生成", result)
}

// GetByID 获取租约文档详情
func (h *LeaseHandler) GetByID(c *gin.Context) {
	documentID, ok := parseID(c, "id", "无效的租约ID")
	if !ok {
		return
	}

	claims := c.MustGet("claims").(*jwt.JWTClaims)

	doc, err := h.lifecycle.Get(c.Request.Context(), claims.OrgID, documentID)
	if err != nil {
		response.FromError(c, err, "获取租约失败")
		return
	}

	response.Success(c, doc)
}

// GetByReference 按文档引用获取租约
func (h *LeaseHandler) GetByReference(c *gin.Context) {
	claims := c.MustGet("claims").(*jwt.JWTClaims)

	doc, err := h.lifecycle.GetByReference(c.Request.Context(), claims.OrgID, c.Param("reference"))
	if err != nil {
		response.FromError(c, err, "获取租约失败")
		return
	}

	response.Success(c, doc)
}

// List 获取租约列表，支持 property_id、tenant_id、status 过滤
func (h *LeaseHandler) List(c *gin.Context) {
	claims := c.MustGet("claims").(*jwt.JWTClaims)
	params := pagination.ParsePageParams(c)

	var filter services.LeaseListFilter
	if v := c.Query("property_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			response.BadRequest(c, "无效的物业ID")
			return
		}
		filter.PropertyID = uint(id)
	}
	if v := c.Query("tenant_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			response.BadRequest(c, "无效的租客ID")
			return
		}
		filter.TenantID = uint(id)
	}
	filter.Status = models.LeaseStatus(c.Query("status"))

	docs, total, err := h.lifecycle.List(c.Request.Context(), claims.OrgID, filter, params)
	if err != nil {
		response.FromError(c, err, "获取租约列表失败")
		return
	}

	response.SuccessWithPage(c, docs, pagination.NewPageInfo(params.Page, params.PageSize, total))
}

// RecordSignature 记录签署结果
func (h *LeaseHandler) RecordSignature(c *gin.Context) {
	documentID, ok := parseID(c, "id", "无效的租约ID")
	if !ok {
		return
	}

	var req RecordSignatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	claims := c.MustGet("claims").(*jwt.JWTClaims)

	doc, err := h.lifecycle.RecordSignature(c.Request.Context(), claims.OrgID, documentID, req.Role, req.Outcome)
	if err != nil {
		response.FromError(c, err, "记录签署结果失败")
		return
	}

	response.Success(c, doc)
}

// Terminate 终止租约
func (h *LeaseHandler) Terminate(c *gin.Context) {
	documentID, ok := parseID(c, "id", "无效的租约ID")
	if !ok {
		return
	}

	var req TerminateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	claims := c.MustGet("claims").(*jwt.JWTClaims)

	doc, err := h.lifecycle.Terminate(c.Request.Context(), claims.OrgID, documentID, req.Reason)
	if err != nil {
		response.FromError(c, err, "终止租约失败")
		return
	}

	response.SuccessWithMessage(c, "租约已终止", doc)
}

// Regenerate 重新生成被拒签的租约（管理员）
func (h *LeaseHandler) Regenerate(c *gin.Context) {
	documentID, ok := parseID(c, "id", "无效的租约ID")
	if !ok {
		return
	}

	claims := c.MustGet("claims").(*jwt.JWTClaims)

	result, err := h.generation.Regenerate(c.Request.Context(), claims.OrgID, claims.UserID, documentID)
	if err != nil {
		response.FromError(c, err, "重新生成租约失败")
		return
	}

	response.SuccessWithMessage(c, "租约已重新生成", result)
}

// parseID 解析路径中的ID，失败时已写入响应
func parseID(c *gin.Context, name, message string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		response.BadRequest(c, message)
		return 0, false
	}
	return uint(id), true
}
