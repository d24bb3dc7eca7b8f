package models

// Property 物业，由外部物业服务同步，只保留生成租约所需的事实
type Property struct {
	BaseModel
	OrgID        uint   `gorm:"not null;index" json:"org_id"`
	ExternalID   string `gorm:"size:100;index" json:"external_id,omitempty"`
	Name         string `gorm:"size:200;not null" json:"name"`
	Address      string `gorm:"size:500" json:"address"`
	Jurisdiction string `gorm:"size:20;not null" json:"jurisdiction"` // 如 US-CA
	YearBuilt    int    `json:"year_built"`

	Units []Unit `gorm:"foreignKey:PropertyID" json:"units,omitempty"`
}

// TableName 指定表名
func (Property) TableName() string {
	return "properties"
}

// BuiltBefore1978 年份未知时按未知处理，不强制含铅涂料披露
func (p *Property) BuiltBefore1978() bool {
	return p.YearBuilt > 0 && p.YearBuilt < 1978
}

// Unit 房屋单元
type Unit struct {
	BaseModel
	OrgID      uint   `gorm:"not null;index" json:"org_id"`
	PropertyID uint   `gorm:"not null;index" json:"property_id"`
	Name       string `gorm:"size:100;not null" json:"name"`
	// RentMinor 挂牌月租，货币最小单位
	RentMinor int64 `gorm:"not null;default:0" json:"rent_minor"`
}

// TableName 指定表名
func (Unit) TableName() string {
	return "units"
}
