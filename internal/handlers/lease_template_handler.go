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

// LeaseTemplateHandler 租约模板处理器
type LeaseTemplateHandler struct {
	templateService *services.LeaseTemplateService
}

// NewLeaseTemplateHandler 创建租约模板处理器
func NewLeaseTemplateHandler(templateService *services.LeaseTemplateService) *LeaseTemplateHandler {
	return &LeaseTemplateHandler{
		templateService: templateService,
	}
}

// Create 创建租约模板
func (h *LeaseTemplateHandler) Create(c *gin.Context) {
	var req services.CreateLeaseTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	claims := c.MustGet("claims").(*jwt.JWTClaims)

	template, err := h.templateService.Create(c.Request.Context(), claims.OrgID, req, claims.UserID)
	if err != nil {
		response.FromError(c, err, "创建租约模板失败")
		return
	}

	response.Success(c, template)
}

// GetByID 获取模板详情
func (h *LeaseTemplateHandler) GetByID(c *gin.Context) {
	templateID, ok := parseID(c, "id", "无效的模板ID")
	if !ok {
		return
	}

	claims := c.MustGet("claims").(*jwt.JWTClaims)

	template, err := h.templateService.Get(c.Request.Context(), claims.OrgID, templateID)
	if err != nil {
		response.FromError(c, err, "获取租约模板失败")
		return
	}

	response.Success(c, template)
}

// List 获取模板列表
func (h *LeaseTemplateHandler) List(c *gin.Context) {
	claims := c.MustGet("claims").(*jwt.JWTClaims)
	params := pagination.ParsePageParams(c)

	filter := services.TemplateListFilter{Kind: models.TemplateKind(c.Query("kind"))}
	if v := c.Query("property_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			response.BadRequest(c, "无效的物业ID")
			return
		}
		filter.PropertyID = uint(id)
	}

	templates, total, err := h.templateService.List(c.Request.Context(), claims.OrgID, filter, params)
	if err != nil {
		response.FromError(c, err, "获取租约模板列表失败")
		return
	}

	response.SuccessWithPage(c, templates, pagination.NewPageInfo(params.Page, params.PageSize, total))
}

// Delete 删除模板（管理员），不会自动提升其他模板为默认
func (h *LeaseTemplateHandler) Delete(c *gin.Context) {
	templateID, ok := parseID(c, "id", "无效的模板ID")
	if !ok {
		return
	}

	claims := c.MustGet("claims").(*jwt.JWTClaims)

	if err := h.templateService.Delete(c.Request.Context(), claims.OrgID, templateID); err != nil {
		response.FromError(c, err, "删除租约模板失败")
		return
	}

	response.Success(c, nil)
}

// Associate 关联模板到物业
func (h *LeaseTemplateHandler) Associate(c *gin.Context) {
	templateID, propertyID, ok := templatePropertyIDs(c)
	if !ok {
		return
	}

	claims := c.MustGet("claims").(*jwt.JWTClaims)

	template, err := h.templateService.Associate(c.Request.Context(), claims.OrgID, templateID, propertyID)
	if err != nil {
		response.FromError(c, err, "关联模板失败")
		return
	}

	response.Success(c, template)
}

// Dissociate 取消模板与物业的关联
func (h *LeaseTemplateHandler) Dissociate(c *gin.Context) {
	templateID, propertyID, ok := templatePropertyIDs(c)
	if !ok {
		return
	}

	claims := c.MustGet("claims").(*jwt.JWTClaims)

	template, err := h.templateService.Dissociate(c.Request.Context(), claims.OrgID, templateID, propertyID)
	if err != nil {
		response.FromError(c, err, "取消关联失败")
		return
	}

	response.Success(c, template)
}

// SetDefault 设为物业默认模板
func (h *LeaseTemplateHandler) SetDefault(c *gin.Context) {
	templateID, propertyID, ok := templatePropertyIDs(c)
	if !ok {
		return
	}

	claims := c.MustGet("claims").(*jwt.JWTClaims)

	template, err := h.templateService.SetDefault(c.Request.Context(), claims.OrgID, templateID, propertyID)
	if err != nil {
		response.FromError(c, err, "设置默认模板失败")
		return
	}

	response.SuccessWithMessage(c, "默认模板已更新", template)
}

// PropertyTemplates 物业已关联的模板
func (h *LeaseTemplateHandler) PropertyTemplates(c *gin.Context) {
	propertyID, ok := parseID(c, "id", "无效的物业ID")
	if !ok {
		return
	}

	claims := c.MustGet("claims").(*jwt.JWTClaims)

	templates, err := h.templateService.PropertyTemplates(c.Request.Context(), claims.OrgID, propertyID)
	if err != nil {
		response.FromError(c, err, "获取物业模板失败")
		return
	}

	response.Success(c, templates)
}

// DefaultTemplate 物业当前默认模板，没有时 data 为空
func (h *LeaseTemplateHandler) DefaultTemplate(c *gin.Context) {
	propertyID, ok := parseID(c, "id", "无效的物业ID")
	if !ok {
		return
	}

	claims := c.MustGet("claims").(*jwt.JWTClaims)

	template, err := h.templateService.DefaultFor(c.Request.Context(), claims.OrgID, propertyID)
	if err != nil {
		response.FromError(c, err, "获取默认模板失败")
		return
	}

	response.Success(c, template)
}

func templatePropertyIDs(c *gin.Context) (uint, uint, bool) {
	templateID, ok := parseID(c, "id", "无效的模板ID")
	if !ok {
		return 0, 0, false
	}
	propertyID, ok := parseID(c, "property_id", "无效的物业ID")
	if !ok {
		return 0, 0, false
	}
	return templateID, propertyID, true
}
