package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"leasehub/internal/models"
	"leasehub/pkg/errors"
	"leasehub/pkg/events"
	"leasehub/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ApplicationRef 触发生成的租房申请
type ApplicationRef struct {
	ID     uint                     `json:"id"`
	Status models.ApplicationStatus `json:"status"`
}

// LeaseRequest 预览与生成共用的请求体
type LeaseRequest struct {
	PropertyID     uint             `json:"property_id"`
	UnitID         *uint            `json:"unit_id,omitempty"`
	TenantID       *uint            `json:"tenant_id,omitempty"`
	TemplateID     *uint            `json:"template_id,omitempty"`
	LeaseTerms     LeaseTermInput   `json:"lease_terms"`
	Customizations *Customizations  `json:"customizations,omitempty"`
	RentAmount     *decimal.Decimal `json:"rent_amount,omitempty"`
	UnitName       string           `json:"unit_name,omitempty"`
	Application    *ApplicationRef  `json:"application,omitempty"`
}

// GenerateLeaseRequest 生成请求
type GenerateLeaseRequest struct {
	LeaseRequest
	SaveAsTemplate bool   `json:"save_as_template"`
	TemplateName   string `json:"template_name,omitempty"`
}

// PreviewResult 预览结果
type PreviewResult struct {
	Model    *ResolvedLeaseModel `json:"model"`
	Artifact *RenderedArtifact   `json:"artifact"`
}

// GenerateResult 生成结果
type GenerateResult struct {
	Document      *models.LeaseDocument `json:"document"`
	Model         *ResolvedLeaseModel   `json:"model"`
	SavedTemplate *models.LeaseTemplate `json:"saved_template,omitempty"`
}

// LeaseGenerationService 预览与生成编排
type LeaseGenerationService struct {
	db        *gorm.DB
	engine    *LeaseEngine
	renderer  *DocumentRenderer
	templates *LeaseTemplateService
	lifecycle *LeaseLifecycleService
}

// NewLeaseGenerationService 创建生成服务
func NewLeaseGenerationService(db *gorm.DB, engine *LeaseEngine, renderer *DocumentRenderer, templates *LeaseTemplateService, lifecycle *LeaseLifecycleService) *LeaseGenerationService {
	return &LeaseGenerationService{
		db:        db,
		engine:    engine,
		renderer:  renderer,
		templates: templates,
		lifecycle: lifecycle,
	}
}

// Preview 解析并渲染预览，无任何持久化，可重复调用
func (s *LeaseGenerationService) Preview(ctx context.Context, orgID uint, req LeaseRequest) (*PreviewResult, error) {
	model, err := s.resolveModel(ctx, orgID, req)
	if err != nil {
		return nil, err
	}
	artifact, err := s.renderer.Preview(ctx, model)
	if err != nil {
		return nil, err
	}
	return &PreviewResult{Model: model, Artifact: artifact}, nil
}

// Generate 与预览相同的解析流程，提交文档并初始化签署流程；每次调用都会创建新文档
func (s *LeaseGenerationService) Generate(ctx context.Context, orgID, operatorID uint, req GenerateLeaseRequest) (*GenerateResult, error) {
	model, err := s.resolveModel(ctx, orgID, req.LeaseRequest)
	if err != nil {
		return nil, err
	}
	input, err := json.Marshal(req.LeaseRequest)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, "序列化生成请求失败", err)
	}

	result := &GenerateResult{Model: model}
	meta := CommitMeta{
		OrgID:     orgID,
		CreatedBy: operatorID,
		Input:     datatypes.JSON(input),
	}
	if req.Application != nil {
		applicationID := req.Application.ID
		meta.ApplicationID = &applicationID
	}
	if req.SaveAsTemplate {
		name := strings.TrimSpace(req.TemplateName)
		if name == "" {
			name = model.Property.Name + " lease template"
		}
		terms := model.Terms
		meta.AfterCreate = func(tx *gorm.DB, doc *models.LeaseDocument) error {
			template, err := s.templates.createTx(tx, orgID, CreateLeaseTemplateRequest{
				Name: name,
				Kind: models.TemplateKindBuilder,
				Parameters: &BuilderParameters{
					LeaseTerms:     &terms,
					Customizations: model.Customizations,
				},
				PropertyIDs: []uint{model.Property.ID},
			}, operatorID)
			result.SavedTemplate = template
			return err
		}
	}

	doc, err := s.renderer.Commit(ctx, model, meta)
	if err != nil {
		return nil, err
	}
	result.Document = doc
	return result, nil
}

// Regenerate 管理员按原请求重新推导并生成新文档，旧文档标记为被取代；仅适用于拒签或待签署的文档
func (s *LeaseGenerationService) Regenerate(ctx context.Context, orgID, operatorID, documentID uint) (*GenerateResult, error) {
	old, err := s.lifecycle.Get(ctx, orgID, documentID)
	if err != nil {
		return nil, err
	}
	if err := checkRegenerable(old); err != nil {
		return nil, err
	}
	if len(old.InputSnapshot) == 0 {
		return nil, errors.New(errors.CodeLeaseStateConflict, "租约文档缺少生成请求快照，无法重新生成")
	}
	var req LeaseRequest
	if err := json.Unmarshal(old.InputSnapshot, &req); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, "解析生成请求快照失败", err)
	}

	model, err := s.resolveModel(ctx, orgID, req)
	if err != nil {
		return nil, err
	}
	// superseded 为事务内锁定并更新后的旧文档，事件按它的最终状态发布
	var superseded *models.LeaseDocument
	meta := CommitMeta{
		OrgID:         orgID,
		CreatedBy:     operatorID,
		ApplicationID: old.ApplicationID,
		Input:         old.InputSnapshot,
		AfterCreate: func(tx *gorm.DB, doc *models.LeaseDocument) error {
			locked, err := s.lifecycle.lock(tx, orgID, old.ID)
			if err != nil {
				return err
			}
			if err := checkRegenerable(locked); err != nil {
				return err
			}
			if err := s.lifecycle.supersede(tx, locked, doc.ID); err != nil {
				return err
			}
			superseded = locked
			return nil
		},
	}
	doc, err := s.renderer.Commit(ctx, model, meta)
	if err != nil {
		return nil, err
	}

	logger.GetLogger().WithFields(logrus.Fields{
		"org_id":          orgID,
		"old_document_id": old.ID,
		"new_document_id": doc.ID,
	}).Info("租约已重新生成")
	s.lifecycle.publish(ctx, superseded, events.EventLeaseRegenerated, func(e *events.LeaseEvent) {
		e.Reason = fmt.Sprintf("superseded_by:%s", doc.Reference)
	})
	return &GenerateResult{Document: doc, Model: model}, nil
}

func checkRegenerable(doc *models.LeaseDocument) error {
	if doc.SupersededByID != nil {
		return errors.New(errors.CodeLeaseStateConflict, "租约文档已被重新生成")
	}
	status := DeriveStatus(doc)
	if status != models.LeaseStatusDeclined && status != models.LeaseStatusPendingSignature {
		return errors.New(errors.CodeLeaseStateConflict, "当前状态 "+status.String()+" 不允许重新生成")
	}
	return nil
}

// resolveModel 加载物业、单元、模板后交给引擎解析；预览和生成走同一路径
func (s *LeaseGenerationService) resolveModel(ctx context.Context, orgID uint, req LeaseRequest) (*ResolvedLeaseModel, error) {
	params, err := s.resolveParams(s.db.WithContext(ctx), orgID, req)
	if err != nil {
		return nil, err
	}
	return s.engine.Resolve(params)
}

func (s *LeaseGenerationService) resolveParams(db *gorm.DB, orgID uint, req LeaseRequest) (ResolveParams, error) {
	var params ResolveParams
	if req.PropertyID == 0 {
		verr := errors.NewValidation()
		verr.Add("property_id", "物业不能为空")
		return params, verr.Err()
	}

	var property models.Property
	if err := db.Where("id = ? AND org_id = ?", req.PropertyID, orgID).First(&property).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return params, errors.NotFound("物业")
		}
		return params, err
	}
	params.Property = PropertyFacts{
		ID:           property.ID,
		Name:         property.Name,
		Address:      property.Address,
		Jurisdiction: property.Jurisdiction,
		YearBuilt:    property.YearBuilt,
	}
	// tenant_id 为 0 视同未绑定租客
	if req.TenantID != nil && *req.TenantID > 0 {
		tenantID := *req.TenantID
		params.TenantID = &tenantID
	}
	params.Terms = req.LeaseTerms

	verr := errors.NewValidation()
	if req.UnitID != nil {
		var unit models.Unit
		err := db.Where("id = ? AND org_id = ? AND property_id = ?", *req.UnitID, orgID, property.ID).First(&unit).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return params, errors.NotFound("房屋单元")
			}
			return params, err
		}
		unitID := unit.ID
		params.Unit = UnitFacts{ID: &unitID, Name: unit.Name}
		params.BaseRent = s.engine.Derivation().FromMinor(unit.RentMinor)
		if req.RentAmount == nil && unit.RentMinor <= 0 {
			verr.Add("rent_amount", "单元未设置租金，必须提供月租金")
		}
	} else {
		name := strings.TrimSpace(req.UnitName)
		if name == "" {
			verr.Add("unit_name", "未绑定单元时必须提供单元名称")
		}
		if req.RentAmount == nil {
			verr.Add("rent_amount", "未绑定单元时必须提供月租金")
		}
		params.Unit = UnitFacts{Name: name}
	}
	// 显式租金优先于单元挂牌租金
	if req.RentAmount != nil {
		params.BaseRent = *req.RentAmount
	}

	if req.Application != nil {
		if !req.Application.Status.Valid() {
			verr.Add("application.status", "未知的申请状态")
		} else if !req.Application.Status.AllowsLeaseCreation() {
			verr.Add("application.status", "申请资料尚未提交，不能生成租约")
		}
	}

	template, fromDefault, err := s.pickTemplate(db, orgID, property.ID, req.TemplateID)
	if err != nil {
		return params, err
	}
	if template != nil {
		params.Template = &TemplateRef{
			ID:           template.ID,
			Name:         template.Name,
			Kind:         template.Kind,
			PDFReference: template.PDFReference,
			FromDefault:  fromDefault,
		}
	}

	switch {
	case req.Customizations != nil:
		params.Customizations = *req.Customizations
	case template != nil:
		builder, err := decodeBuilderParameters(template)
		if err != nil {
			return params, err
		}
		if builder == nil {
			verr.Add("customizations", "模板不含条款参数，必须提供 customizations")
		} else {
			params.Customizations = builder.Customizations
		}
	default:
		verr.Add("customizations", "未提供 customizations 且物业没有默认模板")
	}

	if err := verr.Err(); err != nil {
		return params, err
	}
	return params, nil
}

// pickTemplate 显式指定的模板优先（必须已关联），否则使用物业默认模板
func (s *LeaseGenerationService) pickTemplate(db *gorm.DB, orgID, propertyID uint, templateID *uint) (*models.LeaseTemplate, bool, error) {
	if templateID != nil {
		template, err := s.templates.get(db, orgID, *templateID)
		if err != nil {
			return nil, false, err
		}
		if !template.IsAssociatedWith(propertyID) {
			return nil, false, errors.New(errors.CodeTemplateNotAssociated, "模板未关联到该物业")
		}
		return template, false, nil
	}
	template, err := s.templates.defaultFor(db, orgID, propertyID)
	if err != nil {
		return nil, false, err
	}
	return template, template != nil, nil
}
