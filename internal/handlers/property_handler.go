package handlers

import (
	"leasehub/internal/services"
	"leasehub/pkg/jwt"
	"leasehub/pkg/pagination"
	"leasehub/pkg/response"

	"github.com/gin-gonic/gin"
)

// PropertyHandler 物业处理器
type PropertyHandler struct {
	propertyService *services.PropertyService
}

// NewPropertyHandler 创建物业处理器
func NewPropertyHandler(propertyService *services.PropertyService) *PropertyHandler {
	return &PropertyHandler{propertyService: propertyService}
}

// Create 创建物业
func (h *PropertyHandler) Create(c *gin.Context) {
	var req services.CreatePropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	claims := c.MustGet("claims").(*jwt.JWTClaims)

	property, err := h.propertyService.Create(c.Request.Context(), claims.OrgID, req)
	if err != nil {
		response.FromError(c, err, "创建物业失败")
		return
	}

	response.Success(c, property)
}

// GetByID 获取物业详情（含单元）
func (h *PropertyHandler) GetByID(c *gin.Context) {
	propertyID, ok := parseID(c, "id", "无效的物业ID")
	if !ok {
		return
	}

	claims := c.MustGet("claims").(*jwt.JWTClaims)

	property, err := h.propertyService.Get(c.Request.Context(), claims.OrgID, propertyID)
	if err != nil {
		response.FromError(c, err, "获取物业失败")
		return
	}

	response.Success(c, property)
}

// List 获取物业列表
func (h *PropertyHandler) List(c *gin.Context) {
	claims := c.MustGet("claims").(*jwt.JWTClaims)
	params := pagination.ParsePageParams(c)

	properties, total, err := h.propertyService.List(c.Request.Context(), claims.OrgID, params)
	if err != nil {
		response.FromError(c, err, "获取物业列表失败")
		return
	}

	response.SuccessWithPage(c, properties, pagination.NewPageInfo(params.Page, params.PageSize, total))
}

// AddUnit 添加单元
func (h *PropertyHandler) AddUnit(c *gin.Context) {
	propertyID, ok := parseID(c, "id", "无效的物业ID")
	if !ok {
		return
	}

	var req services.CreateUnitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	claims := c.MustGet("claims").(*jwt.JWTClaims)

	unit, err := h.propertyService.AddUnit(c.Request.Context(), claims.OrgID, propertyID, req)
	if err != nil {
		response.FromError(c, err, "添加单元失败")
		return
	}

	response.Success(c, unit)
}
