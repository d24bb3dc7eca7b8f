package models

import (
	"time"
)

// BaseModel 基础模型
type BaseModel struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AllModels 需要迁移的模型，顺序即建表顺序
func AllModels() []interface{} {
	return []interface{}{
		&Property{},
		&Unit{},
		&LeaseTemplate{},
		&LeaseTemplateProperty{},
		&LeaseDocument{},
		&SignatureRequest{},
	}
}
