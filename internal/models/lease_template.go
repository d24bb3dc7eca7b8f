package models

import (
	"time"

	"gorm.io/datatypes"
)

// LeaseTemplate 可复用的租约模板
type LeaseTemplate struct {
	BaseModel
	OrgID uint         `gorm:"not null;index" json:"org_id"`
	Name  string       `gorm:"size:200;not null" json:"name"`
	Kind  TemplateKind `gorm:"size:20;not null" json:"kind"`
	// Parameters builder 模板保存的条款参数（JSON）
	Parameters datatypes.JSON `json:"parameters,omitempty"`
	// PDFReference uploaded_pdf 模板的文件引用
	PDFReference string `gorm:"size:500" json:"pdf_reference,omitempty"`
	CreatedBy    uint   `json:"created_by"`

	Properties []LeaseTemplateProperty `gorm:"foreignKey:TemplateID" json:"properties,omitempty"`
}

// TableName 指定表名
func (LeaseTemplate) TableName() string {
	return "lease_templates"
}

// LeaseTemplateProperty 模板与物业的关联，默认标记按物业区分
type LeaseTemplateProperty struct {
	TemplateID uint      `gorm:"primaryKey" json:"template_id"`
	PropertyID uint      `gorm:"primaryKey;index" json:"property_id"`
	IsDefault  bool      `gorm:"not null;default:false" json:"is_default"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName 指定表名
func (LeaseTemplateProperty) TableName() string {
	return "lease_template_properties"
}

// IsDefaultFor 模板是否为指定物业的默认模板
func (t *LeaseTemplate) IsDefaultFor(propertyID uint) bool {
	for _, p := range t.Properties {
		if p.PropertyID == propertyID {
			return p.IsDefault
		}
	}
	return false
}

// IsAssociatedWith 模板是否关联到指定物业
func (t *LeaseTemplate) IsAssociatedWith(propertyID uint) bool {
	for _, p := range t.Properties {
		if p.PropertyID == propertyID {
			return true
		}
	}
	return false
}
