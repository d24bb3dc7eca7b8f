package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"html/template"
	"strings"

	"leasehub/internal/models"
	"leasehub/pkg/errors"
	"leasehub/pkg/events"
	"leasehub/pkg/logger"
	"leasehub/pkg/storage"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

//go:embed templates/lease.html.tmpl
var leaseTemplateFS embed.FS

const htmlContentType = "text/html; charset=utf-8"

// RenderedArtifact 渲染产物，预览时不持久化
type RenderedArtifact struct {
	ContentType string `json:"content_type"`
	Body        []byte `json:"-"`
	Digest      string `json:"digest"`
}

// LeaseRenderer 文档渲染器，只接受解析后的模型
type LeaseRenderer interface {
	Render(ctx context.Context, model *ResolvedLeaseModel) (*RenderedArtifact, error)
}

// HTMLLeaseRenderer 基于 html/template 的默认渲染器
type HTMLLeaseRenderer struct {
	tmpl *template.Template
}

// NewHTMLLeaseRenderer 加载内置模板
func NewHTMLLeaseRenderer() (*HTMLLeaseRenderer, error) {
	tmpl, err := template.ParseFS(leaseTemplateFS, "templates/lease.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("加载租约模板失败: %w", err)
	}
	return &HTMLLeaseRenderer{tmpl: tmpl}, nil
}

// MustHTMLLeaseRenderer 模板内置，加载失败属于编译期问题
func MustHTMLLeaseRenderer() *HTMLLeaseRenderer {
	r, err := NewHTMLLeaseRenderer()
	if err != nil {
		panic(err)
	}
	return r
}

type leaseView struct {
	Title               string
	Model               *ResolvedLeaseModel
	StartDate           string
	EndDate             string
	DueDay              string
	LateFeeDay          string
	Rent                string
	TotalMonthly        string
	Deposit             string
	PetDeposit          string
	PetRent             string
	MoveInTotal         string
	LateFee             string
	BouncedCheckFee     string
	EarlyTerminationFee string
	InsuranceCoverage   string
}

func newLeaseView(model *ResolvedLeaseModel) leaseView {
	f := model.Figures
	money := func(minor int64) string {
		return FormatMoney(minor, f.MinorUnitDigits, f.Currency)
	}
	view := leaseView{
		Title:               "Residential Lease Agreement",
		Model:               model,
		StartDate:           model.Terms.StartDate.Format("January 2, 2006"),
		DueDay:              dayOfMonthSuffix(f.RentDueDay),
		LateFeeDay:          dayOfMonthSuffix(f.LateFee.FirstApplicableDay),
		Rent:                money(f.MonthlyRentMinor),
		TotalMonthly:        money(f.TotalMonthlyMinor),
		Deposit:             money(f.SecurityDepositMinor),
		PetDeposit:          money(f.PetDepositMinor),
		PetRent:             money(f.PetRentMinor),
		MoveInTotal:         money(f.MoveInTotalMinor),
		LateFee:             money(f.LateFee.AmountMinor),
		BouncedCheckFee:     money(f.LateFee.BouncedCheckFeeMinor),
		EarlyTerminationFee: money(f.EarlyTerminationFeeMinor),
		InsuranceCoverage:   money(f.InsuranceMinimumCoverageMinor),
	}
	if model.Terms.EndDate != nil {
		view.EndDate = model.Terms.EndDate.Format("January 2, 2006")
	}
	if model.Template != nil && strings.TrimSpace(model.Template.Name) != "" {
		view.Title = model.Template.Name
	}
	return view
}

// Render 渲染为 HTML 并计算摘要
func (r *HTMLLeaseRenderer) Render(ctx context.Context, model *ResolvedLeaseModel) (*RenderedArtifact, error) {
	if model == nil {
		return nil, fmt.Errorf("解析模型为空")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, newLeaseView(model)); err != nil {
		return nil, err
	}
	body := buf.Bytes()
	return &RenderedArtifact{
		ContentType: htmlContentType,
		Body:        body,
		Digest:      digest(body),
	}, nil
}

func digest(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// CommitMeta 提交时的附加信息
type CommitMeta struct {
	OrgID         uint
	CreatedBy     uint
	ApplicationID *uint
	// Input 生成请求快照
	Input datatypes.JSON
	// AfterCreate 与文档写入同一事务执行，如另存为模板
	AfterCreate func(tx *gorm.DB, doc *models.LeaseDocument) error
}

// DocumentRenderer 渲染适配层：预览无副作用，提交是创建租约文档的唯一入口
type DocumentRenderer struct {
	db        *gorm.DB
	renderer  LeaseRenderer
	store     storage.ArtifactStore
	lifecycle *LeaseLifecycleService
}

// NewDocumentRenderer 创建渲染适配层
func NewDocumentRenderer(db *gorm.DB, renderer LeaseRenderer, store storage.ArtifactStore, lifecycle *LeaseLifecycleService) *DocumentRenderer {
	return &DocumentRenderer{
		db:        db,
		renderer:  renderer,
		store:     store,
		lifecycle: lifecycle,
	}
}

// Preview 渲染预览，不落库不存储
func (r *DocumentRenderer) Preview(ctx context.Context, model *ResolvedLeaseModel) (*RenderedArtifact, error) {
	artifact, err := r.renderer.Render(ctx, model)
	if err != nil {
		return nil, errors.Wrap(errors.CodeRenderFailure, "租约渲染失败", err)
	}
	return artifact, nil
}

// Commit 渲染、存储产物并在一个事务内写入文档和签署请求；任一步失败不留下文档
func (r *DocumentRenderer) Commit(ctx context.Context, model *ResolvedLeaseModel, meta CommitMeta) (*models.LeaseDocument, error) {
	log := logger.GetLogger().WithFields(logrus.Fields{
		"org_id":      meta.OrgID,
		"property_id": model.Property.ID,
	})

	artifact, err := r.renderer.Render(ctx, model)
	if err != nil {
		return nil, errors.Wrap(errors.CodeRenderFailure, "租约渲染失败", err)
	}

	reference := uuid.NewString()
	key := fmt.Sprintf("leases/%d/%d/%s.html", meta.OrgID, model.Property.ID, reference)
	artifactRef, err := r.store.Put(ctx, key, artifact.ContentType, artifact.Body)
	if err != nil {
		return nil, errors.Wrap(errors.CodeRenderFailure, "租约文档存储失败", err)
	}

	resolved, err := json.Marshal(model)
	if err != nil {
		r.discard(ctx, artifactRef, log)
		return nil, errors.Wrap(errors.CodeInternal, "序列化解析模型失败", err)
	}

	doc := &models.LeaseDocument{
		Reference:      reference,
		OrgID:          meta.OrgID,
		PropertyID:     model.Property.ID,
		UnitID:         model.Unit.ID,
		TenantID:       model.TenantID,
		ApplicationID:  meta.ApplicationID,
		ArtifactRef:    artifactRef,
		ArtifactDigest: artifact.Digest,
		StartDate:      model.Terms.StartDate.Time,
		MonthToMonth:   model.Terms.MonthToMonth,
		InputSnapshot:  meta.Input,
		ResolvedModel:  datatypes.JSON(resolved),
		CreatedBy:      meta.CreatedBy,
	}
	if model.Template != nil {
		templateID := model.Template.ID
		doc.SourceTemplateID = &templateID
	}
	if !model.Terms.MonthToMonth && model.Terms.EndDate != nil {
		end := model.Terms.EndDate.Time
		doc.EndDate = &end
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(doc).Error; err != nil {
			return err
		}
		if err := r.lifecycle.initialize(tx, doc); err != nil {
			return err
		}
		if meta.AfterCreate != nil {
			return meta.AfterCreate(tx, doc)
		}
		return nil
	})
	if err != nil {
		r.discard(ctx, artifactRef, log)
		var appErr *errors.AppError
		if stderrors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, errors.Wrap(errors.CodeInternal, "保存租约文档失败", err)
	}

	doc.Status = DeriveStatus(doc)
	log.WithFields(logrus.Fields{
		"document_id": doc.ID,
		"reference":   doc.Reference,
		"status":      doc.Status,
	}).Info("租约文档已生成")

	r.lifecycle.publish(ctx, doc, events.EventLeaseGenerated, nil)
	return doc, nil
}

// discard 事务失败后删除已存储的产物
func (r *DocumentRenderer) discard(ctx context.Context, ref string, log *logrus.Entry) {
	if err := r.store.Delete(context.WithoutCancel(ctx), ref); err != nil {
		log.WithError(err).WithField("artifact_ref", ref).Warn("清理租约产物失败")
	}
}
