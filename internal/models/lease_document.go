package models

import (
	"time"

	"gorm.io/datatypes"
)

// LeaseDocument 已提交的租约文档
type LeaseDocument struct {
	BaseModel
	Reference  string `gorm:"size:36;not null;uniqueIndex" json:"reference"`
	OrgID      uint   `gorm:"not null;index" json:"org_id"`
	PropertyID uint   `gorm:"not null;index" json:"property_id"`
	UnitID     *uint  `json:"unit_id,omitempty"`
	// TenantID 租客，为空表示仅模板，不进入签署流程
	TenantID         *uint `gorm:"index" json:"tenant_id,omitempty"`
	SourceTemplateID *uint `gorm:"index" json:"source_template_id,omitempty"`
	ApplicationID    *uint `json:"application_id,omitempty"`

	ArtifactRef    string `gorm:"size:500;not null" json:"artifact_ref"`
	ArtifactDigest string `gorm:"size:64;not null" json:"artifact_digest"`

	StartDate    time.Time  `gorm:"not null" json:"start_date"`
	EndDate      *time.Time `gorm:"index" json:"end_date,omitempty"`
	MonthToMonth bool       `gorm:"not null;default:false" json:"month_to_month"`

	// InputSnapshot 生成请求快照，重新生成时据此重新推导
	InputSnapshot datatypes.JSON `json:"-"`
	// ResolvedModel 生成时的解析结果快照
	ResolvedModel datatypes.JSON `json:"resolved_model,omitempty"`

	TerminatedAt      *time.Time `json:"terminated_at,omitempty"`
	TerminationReason string     `gorm:"size:200" json:"termination_reason,omitempty"`
	SupersededByID    *uint      `json:"superseded_by_id,omitempty"`
	CreatedBy         uint       `json:"created_by"`

	SignatureRequests []SignatureRequest `gorm:"foreignKey:DocumentID" json:"signature_requests"`

	// Status 每次读取时由签署请求推导
	Status LeaseStatus `gorm:"-" json:"status"`
}

// TableName 指定表名
func (LeaseDocument) TableName() string {
	return "lease_documents"
}

// SignatureRequest 单个签署角色的签署请求
type SignatureRequest struct {
	BaseModel
	DocumentID uint            `gorm:"not null;uniqueIndex:idx_signature_document_role" json:"document_id"`
	Role       SignerRole      `gorm:"size:20;not null;uniqueIndex:idx_signature_document_role" json:"role"`
	Status     SignatureStatus `gorm:"size:20;not null;default:'pending'" json:"status"`
	SignedAt   *time.Time      `json:"signed_at,omitempty"`
	DeclinedAt *time.Time      `json:"declined_at,omitempty"`
}

// TableName 指定表名
func (SignatureRequest) TableName() string {
	return "signature_requests"
}
