package services

import (
	"context"
	"strings"

	"leasehub/internal/models"
	"leasehub/pkg/errors"
	"leasehub/pkg/logger"
	"leasehub/pkg/pagination"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PropertyService 物业与单元的最小事实维护
type PropertyService struct {
	db         *gorm.DB
	derivation *DerivationEngine
}

// NewPropertyService 创建物业服务
func NewPropertyService(db *gorm.DB, derivation *DerivationEngine) *PropertyService {
	return &PropertyService{db: db, derivation: derivation}
}

// CreatePropertyRequest 创建物业请求
type CreatePropertyRequest struct {
	ExternalID   string `json:"external_id" binding:"max=100"`
	Name         string `json:"name" binding:"required,max=200"`
	Address      string `json:"address" binding:"max=500"`
	Jurisdiction string `json:"jurisdiction" binding:"required,max=20"`
	YearBuilt    int    `json:"year_built" binding:"gte=0,lte=2100"`
}

// CreateUnitRequest 创建单元请求
type CreateUnitRequest struct {
	Name string          `json:"name" binding:"required,max=100"`
	Rent decimal.Decimal `json:"rent"`
}

// Create 创建物业
func (s *PropertyService) Create(ctx context.Context, orgID uint, req CreatePropertyRequest) (*models.Property, error) {
	verr := errors.NewValidation()
	if strings.TrimSpace(req.Name) == "" {
		verr.Add("name", "物业名称不能为空")
	}
	if strings.TrimSpace(req.Jurisdiction) == "" {
		verr.Add("jurisdiction", "法域不能为空")
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	property := &models.Property{
		OrgID:        orgID,
		ExternalID:   strings.TrimSpace(req.ExternalID),
		Name:         strings.TrimSpace(req.Name),
		Address:      strings.TrimSpace(req.Address),
		Jurisdiction: NormalizeJurisdiction(req.Jurisdiction),
		YearBuilt:    req.YearBuilt,
	}
	if err := s.db.WithContext(ctx).Create(property).Error; err != nil {
		return nil, err
	}
	logger.GetLogger().Infof("物业 %s (ID: %d) 创建成功", property.Name, property.ID)
	return property, nil
}

// Get 获取物业及其单元
func (s *PropertyService) Get(ctx context.Context, orgID, propertyID uint) (*models.Property, error) {
	var property models.Property
	err := s.db.WithContext(ctx).Where("id = ? AND org_id = ?", propertyID, orgID).
		Preload("Units", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&property).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NotFound("物业")
		}
		return nil, err
	}
	return &property, nil
}

// List 分页查询物业
func (s *PropertyService) List(ctx context.Context, orgID uint, page *pagination.PageParams) ([]models.Property, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Property{}).Where("org_id = ?", orgID)
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var properties []models.Property
	if err := query.Scopes(page.Scope()).Order("id ASC").Find(&properties).Error; err != nil {
		return nil, 0, err
	}
	return properties, total, nil
}

// AddUnit 为物业添加单元
func (s *PropertyService) AddUnit(ctx context.Context, orgID, propertyID uint, req CreateUnitRequest) (*models.Unit, error) {
	if _, err := s.Get(ctx, orgID, propertyID); err != nil {
		return nil, err
	}
	verr := errors.NewValidation()
	if strings.TrimSpace(req.Name) == "" {
		verr.Add("name", "单元名称不能为空")
	}
	if req.Rent.IsNegative() {
		verr.Add("rent", "租金不能为负数")
	}
	s.derivation.CheckAmount("rent", req.Rent, verr)
	if err := verr.Err(); err != nil {
		return nil, err
	}

	unit := &models.Unit{
		OrgID:      orgID,
		PropertyID: propertyID,
		Name:       strings.TrimSpace(req.Name),
		RentMinor:  s.derivation.ToMinor(req.Rent),
	}
	if err := s.db.WithContext(ctx).Create(unit).Error; err != nil {
		return nil, err
	}
	return unit, nil
}
