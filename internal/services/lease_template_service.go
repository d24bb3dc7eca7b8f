package services

import (
	"context"
	"encoding/json"
	"strings"

	"leasehub/internal/models"
	"leasehub/pkg/errors"
	"leasehub/pkg/events"
	"leasehub/pkg/logger"
	"leasehub/pkg/pagination"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LeaseTemplateService 租约模板与物业默认模板
type LeaseTemplateService struct {
	db        *gorm.DB
	lifecycle *LeaseLifecycleService
}

// NewLeaseTemplateService 创建模板服务
func NewLeaseTemplateService(db *gorm.DB, lifecycle *LeaseLifecycleService) *LeaseTemplateService {
	return &LeaseTemplateService{db: db, lifecycle: lifecycle}
}

// BuilderParameters builder 模板保存的参数集
type BuilderParameters struct {
	LeaseTerms     *LeaseTermInput `json:"lease_terms,omitempty"`
	Customizations Customizations  `json:"customizations"`
}

// CreateLeaseTemplateRequest 创建模板请求
type CreateLeaseTemplateRequest struct {
	Name         string              `json:"name" binding:"required,max=200"`
	Kind         models.TemplateKind `json:"kind" binding:"required"`
	Parameters   *BuilderParameters  `json:"parameters"`
	PDFReference string              `json:"pdf_reference" binding:"max=500"`
	PropertyIDs  []uint              `json:"property_ids"`
}

// TemplateListFilter 模板列表过滤
type TemplateListFilter struct {
	PropertyID uint
	Kind       models.TemplateKind
}

// Create 创建模板并关联物业
func (s *LeaseTemplateService) Create(ctx context.Context, orgID uint, req CreateLeaseTemplateRequest, operatorID uint) (*models.LeaseTemplate, error) {
	var template *models.LeaseTemplate
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, err := s.createTx(tx, orgID, req, operatorID)
		template = created
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.GetLogger().WithFields(logrus.Fields{
		"org_id":      orgID,
		"template_id": template.ID,
		"kind":        template.Kind,
	}).Infof("租约模板 %s 创建成功", template.Name)
	return template, nil
}

func (s *LeaseTemplateService) createTx(tx *gorm.DB, orgID uint, req CreateLeaseTemplateRequest, operatorID uint) (*models.LeaseTemplate, error) {
	verr := errors.NewValidation()
	name := strings.TrimSpace(req.Name)
	if name == "" {
		verr.Add("name", "模板名称不能为空")
	}
	if !req.Kind.Valid() {
		verr.Add("kind", "模板类型只能是 builder 或 uploaded_pdf")
	}

	var params datatypes.JSON
	switch req.Kind {
	case models.TemplateKindBuilder:
		if req.Parameters == nil {
			verr.Add("parameters", "builder 模板必须包含条款参数")
			break
		}
		validateCustomizations(req.Parameters.Customizations, verr)
		data, err := json.Marshal(req.Parameters)
		if err != nil {
			return nil, errors.Wrap(errors.CodeInternal, "序列化模板参数失败", err)
		}
		params = datatypes.JSON(data)
	case models.TemplateKindUploadedPDF:
		if strings.TrimSpace(req.PDFReference) == "" {
			verr.Add("pdf_reference", "uploaded_pdf 模板必须包含文件引用")
		}
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	propertyIDs := uniqueIDs(req.PropertyIDs)
	if err := s.checkProperties(tx, orgID, propertyIDs); err != nil {
		return nil, err
	}

	template := &models.LeaseTemplate{
		OrgID:        orgID,
		Name:         name,
		Kind:         req.Kind,
		Parameters:   params,
		PDFReference: strings.TrimSpace(req.PDFReference),
		CreatedBy:    operatorID,
	}
	if err := tx.Create(template).Error; err != nil {
		return nil, err
	}
	for _, propertyID := range propertyIDs {
		link := models.LeaseTemplateProperty{TemplateID: template.ID, PropertyID: propertyID}
		if err := tx.Create(&link).Error; err != nil {
			return nil, err
		}
		template.Properties = append(template.Properties, link)
	}
	return template, nil
}

// Get 获取模板及其物业关联
func (s *LeaseTemplateService) Get(ctx context.Context, orgID, templateID uint) (*models.LeaseTemplate, error) {
	return s.get(s.db.WithContext(ctx), orgID, templateID)
}

func (s *LeaseTemplateService) get(db *gorm.DB, orgID, templateID uint) (*models.LeaseTemplate, error) {
	var template models.LeaseTemplate
	err := db.Where("id = ? AND org_id = ?", templateID, orgID).
		Preload("Properties", func(db *gorm.DB) *gorm.DB { return db.Order("property_id ASC") }).
		First(&template).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NotFound("租约模板")
		}
		return nil, err
	}
	return &template, nil
}

// List 分页查询模板
func (s *LeaseTemplateService) List(ctx context.Context, orgID uint, filter TemplateListFilter, page *pagination.PageParams) ([]models.LeaseTemplate, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.LeaseTemplate{}).Where("lease_templates.org_id = ?", orgID)
	if filter.PropertyID > 0 {
		query = query.Where("EXISTS (SELECT 1 FROM lease_template_properties ltp WHERE ltp.template_id = lease_templates.id AND ltp.property_id = ?)", filter.PropertyID)
	}
	if filter.Kind != "" {
		query = query.Where("lease_templates.kind = ?", filter.Kind)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var templates []models.LeaseTemplate
	err := query.Scopes(page.Scope()).
		Preload("Properties", func(db *gorm.DB) *gorm.DB { return db.Order("property_id ASC") }).
		Order("lease_templates.id DESC").
		Find(&templates).Error
	if err != nil {
		return nil, 0, err
	}
	return templates, total, nil
}

// PropertyTemplates 物业关联的全部模板
func (s *LeaseTemplateService) PropertyTemplates(ctx context.Context, orgID, propertyID uint) ([]models.LeaseTemplate, error) {
	var templates []models.LeaseTemplate
	err := s.db.WithContext(ctx).
		Joins("JOIN lease_template_properties ltp ON ltp.template_id = lease_templates.id").
		Where("lease_templates.org_id = ? AND ltp.property_id = ?", orgID, propertyID).
		Preload("Properties", func(db *gorm.DB) *gorm.DB { return db.Order("property_id ASC") }).
		Order("lease_templates.id ASC").
		Find(&templates).Error
	return templates, err
}

// Associate 关联模板到物业，已关联时为空操作
func (s *LeaseTemplateService) Associate(ctx context.Context, orgID, templateID, propertyID uint) (*models.LeaseTemplate, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.get(tx, orgID, templateID); err != nil {
			return err
		}
		if err := s.checkProperties(tx, orgID, []uint{propertyID}); err != nil {
			return err
		}
		link := models.LeaseTemplateProperty{TemplateID: templateID, PropertyID: propertyID}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, orgID, templateID)
}

// Dissociate 解除关联；若为该物业默认模板，物业将没有默认模板
func (s *LeaseTemplateService) Dissociate(ctx context.Context, orgID, templateID, propertyID uint) (*models.LeaseTemplate, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.get(tx, orgID, templateID); err != nil {
			return err
		}
		result := tx.Where("template_id = ? AND property_id = ?", templateID, propertyID).
			Delete(&models.LeaseTemplateProperty{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errors.New(errors.CodeTemplateNotAssociated, "模板未关联到该物业")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, orgID, templateID)
}

// SetDefault 设置物业默认模板：校验关联、清除旧默认、设置新默认在同一事务内完成
func (s *LeaseTemplateService) SetDefault(ctx context.Context, orgID, templateID, propertyID uint) (*models.LeaseTemplate, error) {
	var previous uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 锁定物业行，串行化同一物业的默认模板变更
		var property models.Property
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND org_id = ?", propertyID, orgID).
			First(&property).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return errors.NotFound("物业")
			}
			return err
		}
		if _, err := s.get(tx, orgID, templateID); err != nil {
			return err
		}

		var link models.LeaseTemplateProperty
		err = tx.Where("template_id = ? AND property_id = ?", templateID, propertyID).First(&link).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return errors.New(errors.CodeTemplateNotAssociated, "模板未关联到该物业，请先关联")
			}
			return err
		}
		if link.IsDefault {
			return nil
		}

		var current models.LeaseTemplateProperty
		err = tx.Where("property_id = ? AND is_default = ?", propertyID, true).First(&current).Error
		if err == nil {
			previous = current.TemplateID
		} else if err != gorm.ErrRecordNotFound {
			return err
		}

		if err := tx.Model(&models.LeaseTemplateProperty{}).
			Where("property_id = ? AND template_id <> ? AND is_default = ?", propertyID, templateID, true).
			Update("is_default", false).Error; err != nil {
			return err
		}
		return tx.Model(&models.LeaseTemplateProperty{}).
			Where("template_id = ? AND property_id = ?", templateID, propertyID).
			Update("is_default", true).Error
	})
	if err != nil {
		return nil, err
	}

	logger.GetLogger().WithFields(logrus.Fields{
		"org_id":           orgID,
		"property_id":      propertyID,
		"template_id":      templateID,
		"previous_default": previous,
	}).Info("物业默认模板已更新")
	if s.lifecycle != nil {
		s.lifecycle.publishEvent(ctx, events.LeaseEvent{
			Type:       events.EventDefaultTemplateSet,
			OrgID:      orgID,
			PropertyID: propertyID,
			TemplateID: templateID,
		})
	}
	return s.Get(ctx, orgID, templateID)
}

// DefaultFor 物业当前默认模板，没有时返回 nil
func (s *LeaseTemplateService) DefaultFor(ctx context.Context, orgID, propertyID uint) (*models.LeaseTemplate, error) {
	return s.defaultFor(s.db.WithContext(ctx), orgID, propertyID)
}

func (s *LeaseTemplateService) defaultFor(db *gorm.DB, orgID, propertyID uint) (*models.LeaseTemplate, error) {
	var link models.LeaseTemplateProperty
	err := db.Where("property_id = ? AND is_default = ?", propertyID, true).First(&link).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	template, err := s.get(db, orgID, link.TemplateID)
	if errors.Is(err, errors.CodeNotFound) {
		return nil, nil
	}
	return template, err
}

// Delete 删除模板及其全部关联，不会为物业自动提升新的默认模板
func (s *LeaseTemplateService) Delete(ctx context.Context, orgID, templateID uint) error {
	var defaults []uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		template, err := s.get(tx, orgID, templateID)
		if err != nil {
			return err
		}
		for _, link := range template.Properties {
			if link.IsDefault {
				defaults = append(defaults, link.PropertyID)
			}
		}
		if err := tx.Where("template_id = ?", templateID).Delete(&models.LeaseTemplateProperty{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.LeaseTemplate{}, templateID).Error
	})
	if err != nil {
		return err
	}
	logger.GetLogger().WithFields(logrus.Fields{
		"org_id":              orgID,
		"template_id":         templateID,
		"cleared_default_for": defaults,
	}).Info("租约模板已删除")
	return nil
}

// checkProperties 校验物业属于当前组织
func (s *LeaseTemplateService) checkProperties(tx *gorm.DB, orgID uint, propertyIDs []uint) error {
	if len(propertyIDs) == 0 {
		return nil
	}
	var count int64
	if err := tx.Model(&models.Property{}).Where("org_id = ? AND id IN ?", orgID, propertyIDs).Count(&count).Error; err != nil {
		return err
	}
	if int(count) != len(propertyIDs) {
		return errors.NotFound("物业")
	}
	return nil
}

// decodeBuilderParameters 解析 builder 模板参数
func decodeBuilderParameters(template *models.LeaseTemplate) (*BuilderParameters, error) {
	if template.Kind != models.TemplateKindBuilder || len(template.Parameters) == 0 {
		return nil, nil
	}
	var params BuilderParameters
	if err := json.Unmarshal(template.Parameters, &params); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, "解析模板参数失败", err)
	}
	return &params, nil
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
