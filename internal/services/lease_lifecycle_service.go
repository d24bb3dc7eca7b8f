package services

import (
	"context"
	"strings"
	"time"

	"leasehub/internal/models"
	"leasehub/pkg/errors"
	"leasehub/pkg/events"
	"leasehub/pkg/logger"
	"leasehub/pkg/pagination"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TerminationReasonNonRenewal 到期不续约
const TerminationReasonNonRenewal = "non_renewal"

// TerminationReasonSuperseded 被重新生成的文档取代
const TerminationReasonSuperseded = "superseded"

// LeaseLifecycleService 租约生命周期状态机，签署请求是唯一的状态来源
type LeaseLifecycleService struct {
	db        *gorm.DB
	publisher events.Publisher
	now       func() time.Time
}

// NewLeaseLifecycleService 创建生命周期服务
func NewLeaseLifecycleService(db *gorm.DB, publisher events.Publisher) *LeaseLifecycleService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &LeaseLifecycleService{
		db:        db,
		publisher: publisher,
		now:       time.Now,
	}
}

// DeriveStatus 由签署请求推导整体状态：终止 > 拒签 > 全部签署 > 待签署；无签署请求为仅模板
func DeriveStatus(doc *models.LeaseDocument) models.LeaseStatus {
	if doc.TerminatedAt != nil {
		return models.LeaseStatusTerminated
	}
	if len(doc.SignatureRequests) == 0 {
		return models.LeaseStatusTemplate
	}
	allSigned := true
	for _, req := range doc.SignatureRequests {
		if req.Status == models.SignatureStatusDeclined {
			return models.LeaseStatusDeclined
		}
		if req.Status != models.SignatureStatusSigned {
			allSigned = false
		}
	}
	if allSigned {
		return models.LeaseStatusActive
	}
	return models.LeaseStatusPendingSignature
}

// initialize 绑定租客时为每个必需角色创建待签署请求，否则保持仅模板状态
func (s *LeaseLifecycleService) initialize(tx *gorm.DB, doc *models.LeaseDocument) error {
	if doc.TenantID == nil || *doc.TenantID == 0 {
		doc.SignatureRequests = nil
		return nil
	}
	requests := make([]models.SignatureRequest, 0, len(models.RequiredSignerRoles))
	for _, role := range models.RequiredSignerRoles {
		requests = append(requests, models.SignatureRequest{
			DocumentID: doc.ID,
			Role:       role,
			Status:     models.SignatureStatusPending,
		})
	}
	if err := tx.Create(&requests).Error; err != nil {
		return err
	}
	doc.SignatureRequests = requests
	return nil
}

// Get 按ID获取租约文档，状态按最新签署记录推导
func (s *LeaseLifecycleService) Get(ctx context.Context, orgID, documentID uint) (*models.LeaseDocument, error) {
	return s.load(s.db.WithContext(ctx), orgID, "id = ?", documentID)
}

// GetByReference 按公开引用获取租约文档
func (s *LeaseLifecycleService) GetByReference(ctx context.Context, orgID uint, reference string) (*models.LeaseDocument, error) {
	return s.load(s.db.WithContext(ctx), orgID, "reference = ?", reference)
}

func (s *LeaseLifecycleService) load(db *gorm.DB, orgID uint, query string, arg interface{}) (*models.LeaseDocument, error) {
	var doc models.LeaseDocument
	err := db.Where("org_id = ?", orgID).Where(query, arg).
		Preload("SignatureRequests", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&doc).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NotFound("租约文档")
		}
		return nil, err
	}
	doc.Status = DeriveStatus(&doc)
	return &doc, nil
}

// LeaseListFilter 租约列表过滤条件
type LeaseListFilter struct {
	PropertyID uint
	TenantID   uint
	Status     models.LeaseStatus
}

// List 分页查询租约文档，状态过滤按签署请求在数据库中推导
func (s *LeaseLifecycleService) List(ctx context.Context, orgID uint, filter LeaseListFilter, page *pagination.PageParams) ([]models.LeaseDocument, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.LeaseDocument{}).Where("org_id = ?", orgID)
	if filter.PropertyID > 0 {
		query = query.Where("property_id = ?", filter.PropertyID)
	}
	if filter.TenantID > 0 {
		query = query.Where("tenant_id = ?", filter.TenantID)
	}
	if filter.Status != "" {
		scoped, err := statusScope(query, filter.Status)
		if err != nil {
			return nil, 0, err
		}
		query = scoped
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var docs []models.LeaseDocument
	err := query.Scopes(page.Scope()).
		Preload("SignatureRequests", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Order("id DESC").
		Find(&docs).Error
	if err != nil {
		return nil, 0, err
	}
	for i := range docs {
		docs[i].Status = DeriveStatus(&docs[i])
	}
	return docs, total, nil
}

const (
	hasRequests   = "EXISTS (SELECT 1 FROM signature_requests sr WHERE sr.document_id = lease_documents.id)"
	hasDeclined   = "EXISTS (SELECT 1 FROM signature_requests sr WHERE sr.document_id = lease_documents.id AND sr.status = 'declined')"
	hasUnsigned   = "EXISTS (SELECT 1 FROM signature_requests sr WHERE sr.document_id = lease_documents.id AND sr.status <> 'signed')"
	notTerminated = "lease_documents.terminated_at IS NULL"
)

func statusScope(query *gorm.DB, status models.LeaseStatus) (*gorm.DB, error) {
	switch status {
	case models.LeaseStatusTerminated:
		return query.Where("lease_documents.terminated_at IS NOT NULL"), nil
	case models.LeaseStatusDeclined:
		return query.Where(notTerminated).Where(hasDeclined), nil
	case models.LeaseStatusActive:
		return query.Where(notTerminated).Where(hasRequests).Where("NOT " + hasUnsigned), nil
	case models.LeaseStatusPendingSignature:
		return query.Where(notTerminated).Where(hasUnsigned).Where("NOT " + hasDeclined), nil
	case models.LeaseStatusTemplate:
		return query.Where(notTerminated).Where("NOT " + hasRequests), nil
	}
	verr := errors.NewValidation()
	verr.Add("status", "不支持的状态: "+string(status))
	return nil, verr.Err()
}

// RecordSignature 记录某个角色的签署结果；相同结果重复提交为空操作，只能前进不能回退
func (s *LeaseLifecycleService) RecordSignature(ctx context.Context, orgID, documentID uint, role models.SignerRole, outcome models.SignatureStatus) (*models.LeaseDocument, error) {
	verr := errors.NewValidation()
	if !role.Valid() {
		verr.Add("role", "签署角色只能是 tenant 或 landlord")
	}
	if !outcome.Valid() {
		verr.Add("outcome", "签署结果只能是 pending、signed 或 declined")
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	var (
		doc     *models.LeaseDocument
		before  models.LeaseStatus
		changed bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.lock(tx, orgID, documentID)
		if err != nil {
			return err
		}
		doc = locked
		before = DeriveStatus(doc)

		if before == models.LeaseStatusTerminated {
			return errors.New(errors.CodeSignatureStateConflict, "租约已终止，不能再签署")
		}
		if before == models.LeaseStatusTemplate {
			return errors.New(errors.CodeSignatureStateConflict, "仅模板文档不进入签署流程")
		}

		idx := -1
		for i := range doc.SignatureRequests {
			if doc.SignatureRequests[i].Role == role {
				idx = i
				break
			}
		}
		if idx < 0 {
			return errors.New(errors.CodeSignatureStateConflict, "该文档没有 "+string(role)+" 角色的签署请求")
		}
		req := &doc.SignatureRequests[idx]

		if req.Status == outcome {
			return nil
		}
		if before == models.LeaseStatusDeclined {
			return errors.New(errors.CodeSignatureStateConflict, "租约已被拒签，需要管理员重新生成")
		}
		if req.Status != models.SignatureStatusPending {
			return errors.New(errors.CodeSignatureStateConflict,
				"签署状态不能从 "+string(req.Status)+" 变更为 "+string(outcome))
		}

		now := s.now()
		updates := map[string]interface{}{"status": outcome}
		switch outcome {
		case models.SignatureStatusSigned:
			updates["signed_at"] = now
			req.SignedAt = &now
		case models.SignatureStatusDeclined:
			updates["declined_at"] = now
			req.DeclinedAt = &now
		}
		if err := tx.Model(&models.SignatureRequest{}).Where("id = ?", req.ID).Updates(updates).Error; err != nil {
			return err
		}
		req.Status = outcome
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	doc.Status = DeriveStatus(doc)
	if !changed {
		return doc, nil
	}

	logger.GetLogger().WithFields(logrus.Fields{
		"document_id": doc.ID,
		"role":        role,
		"outcome":     outcome,
		"status":      doc.Status,
	}).Info("签署结果已记录")

	s.publish(ctx, doc, events.EventSignatureRecorded, func(e *events.LeaseEvent) {
		e.Role = string(role)
	})
	if doc.Status != before {
		switch doc.Status {
		case models.LeaseStatusActive:
			s.publish(ctx, doc, events.EventLeaseActivated, nil)
		case models.LeaseStatusDeclined:
			s.publish(ctx, doc, events.EventLeaseDeclined, nil)
		}
	}
	return doc, nil
}

// Terminate 终止租约，仅允许从生效或待签署状态进入，终止后不可恢复
func (s *LeaseLifecycleService) Terminate(ctx context.Context, orgID, documentID uint, reason string) (*models.LeaseDocument, error) {
	reason = strings.TrimSpace(reason)
	verr := errors.NewValidation()
	if reason == "" {
		verr.Add("reason", "终止原因不能为空")
	} else if len(reason) > 200 {
		verr.Add("reason", "终止原因不能超过200个字符")
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	var doc *models.LeaseDocument
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.lock(tx, orgID, documentID)
		if err != nil {
			return err
		}
		doc = locked
		return s.terminate(tx, doc, reason)
	})
	if err != nil {
		return nil, err
	}

	logger.GetLogger().WithFields(logrus.Fields{
		"document_id": doc.ID,
		"reason":      reason,
	}).Info("租约已终止")
	s.publish(ctx, doc, events.EventLeaseTerminated, func(e *events.LeaseEvent) {
		e.Reason = reason
	})
	return doc, nil
}

func (s *LeaseLifecycleService) terminate(tx *gorm.DB, doc *models.LeaseDocument, reason string) error {
	status := DeriveStatus(doc)
	if status != models.LeaseStatusActive && status != models.LeaseStatusPendingSignature {
		return errors.New(errors.CodeLeaseStateConflict, "当前状态 "+status.String()+" 不允许终止")
	}
	now := s.now()
	err := tx.Model(&models.LeaseDocument{}).Where("id = ?", doc.ID).Updates(map[string]interface{}{
		"terminated_at":      now,
		"termination_reason": reason,
	}).Error
	if err != nil {
		return err
	}
	doc.TerminatedAt = &now
	doc.TerminationReason = reason
	doc.Status = DeriveStatus(doc)
	return nil
}

// supersede 标记旧文档被新文档取代，待签署的旧文档同时终止
func (s *LeaseLifecycleService) supersede(tx *gorm.DB, old *models.LeaseDocument, replacementID uint) error {
	if err := tx.Model(&models.LeaseDocument{}).Where("id = ?", old.ID).Update("superseded_by_id", replacementID).Error; err != nil {
		return err
	}
	old.SupersededByID = &replacementID
	if DeriveStatus(old) == models.LeaseStatusPendingSignature {
		return s.terminate(tx, old, TerminationReasonSuperseded)
	}
	return nil
}

// lock 锁定文档行并读取最新签署请求
func (s *LeaseLifecycleService) lock(tx *gorm.DB, orgID, documentID uint) (*models.LeaseDocument, error) {
	var doc models.LeaseDocument
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND org_id = ?", documentID, orgID).
		First(&doc).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NotFound("租约文档")
		}
		return nil, err
	}
	if err := tx.Where("document_id = ?", doc.ID).Order("id ASC").Find(&doc.SignatureRequests).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

// publish 事务提交后发布事件，失败只记录日志
func (s *LeaseLifecycleService) publish(ctx context.Context, doc *models.LeaseDocument, eventType events.EventType, decorate func(*events.LeaseEvent)) {
	event := events.LeaseEvent{
		Type:       eventType,
		OrgID:      doc.OrgID,
		PropertyID: doc.PropertyID,
		DocumentID: doc.ID,
		Reference:  doc.Reference,
		Status:     DeriveStatus(doc).String(),
		OccurredAt: s.now(),
	}
	if doc.SourceTemplateID != nil {
		event.TemplateID = *doc.SourceTemplateID
	}
	if decorate != nil {
		decorate(&event)
	}
	if err := s.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		logger.GetLogger().WithError(err).WithFields(logrus.Fields{
			"event":       eventType,
			"document_id": doc.ID,
		}).Warn("发布租约事件失败")
	}
}

// publishEvent 发布与单个文档无关的事件
func (s *LeaseLifecycleService) publishEvent(ctx context.Context, event events.LeaseEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}
	if err := s.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		logger.GetLogger().WithError(err).WithField("event", event.Type).Warn("发布租约事件失败")
	}
}
