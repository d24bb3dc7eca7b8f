package services

import (
	"leasehub/internal/models"
	"leasehub/pkg/config"
	"leasehub/pkg/errors"

	"github.com/shopspring/decimal"
)

// PropertyFacts 生成租约需要的物业事实
type PropertyFacts struct {
	ID           uint   `json:"id"`
	Name         string `json:"name"`
	Address      string `json:"address"`
	Jurisdiction string `json:"jurisdiction"`
	YearBuilt    int    `json:"year_built,omitempty"`
}

// UnitFacts 房屋单元，未绑定单元时只有名称
type UnitFacts struct {
	ID   *uint  `json:"id,omitempty"`
	Name string `json:"name"`
}

// TemplateRef 生成所用的模板
type TemplateRef struct {
	ID           uint                `json:"id"`
	Name         string              `json:"name"`
	Kind         models.TemplateKind `json:"kind"`
	PDFReference string              `json:"pdf_reference,omitempty"`
	// FromDefault 由物业默认模板选中
	FromDefault bool `json:"from_default"`
}

// ResolveParams 解析输入，已完成物业、单元、模板的加载
type ResolveParams struct {
	Property       PropertyFacts
	Unit           UnitFacts
	TenantID       *uint
	Terms          LeaseTermInput
	Customizations Customizations
	BaseRent       decimal.Decimal
	Template       *TemplateRef
}

// ResolvedLeaseModel 渲染器的唯一输入，生成后不再修改
type ResolvedLeaseModel struct {
	Property        PropertyFacts  `json:"property"`
	Unit            UnitFacts      `json:"unit"`
	TenantID        *uint          `json:"tenant_id,omitempty"`
	Template        *TemplateRef   `json:"template,omitempty"`
	Terms           LeaseTermInput `json:"lease_terms"`
	Customizations  Customizations `json:"customizations"`
	BuiltBefore1978 bool           `json:"built_before_1978"`
	Figures         DerivedFigures `json:"figures"`
	Disclosures     DisclosureSet  `json:"disclosures"`
	Warnings        []Warning      `json:"warnings"`
}

// LeaseEngine 校验 → 披露解析 → 数值推导，预览、生成和命令行共用
type LeaseEngine struct {
	resolver   *DisclosureResolver
	derivation *DerivationEngine
}

// NewLeaseEngine 创建租约引擎
func NewLeaseEngine(cfg config.LeaseConfig) *LeaseEngine {
	return &LeaseEngine{
		resolver:   NewDisclosureResolver(),
		derivation: NewDerivationEngine(cfg),
	}
}

// Derivation 数值推导引擎
func (e *LeaseEngine) Derivation() *DerivationEngine {
	return e.derivation
}

// Validate 校验租期、条款和租金
func (e *LeaseEngine) Validate(p ResolveParams) error {
	verr := errors.NewValidation()
	validateTerms(p.Terms, verr)
	validateCustomizations(p.Customizations, verr)

	if !p.BaseRent.IsPositive() {
		verr.Add("rent_amount", "月租金必须大于0")
	}
	e.derivation.CheckAmount("rent_amount", p.BaseRent, verr)
	c := p.Customizations
	e.derivation.CheckAmount("customizations.bounced_check_fee", c.BouncedCheckFee, verr)
	e.derivation.CheckAmount("customizations.early_termination_fee", c.EarlyTerminationFee, verr)
	e.derivation.CheckAmount("customizations.pets.deposit", c.Pets.Deposit, verr)
	e.derivation.CheckAmount("customizations.pets.monthly_rent", c.Pets.MonthlyRent, verr)
	e.derivation.CheckAmount("customizations.insurance.minimum_coverage", c.Insurance.MinimumCoverage, verr)
	return verr.Err()
}

// Resolve 生成不可变的解析模型；相同输入得到相同结果
func (e *LeaseEngine) Resolve(p ResolveParams) (*ResolvedLeaseModel, error) {
	if err := e.Validate(p); err != nil {
		return nil, err
	}

	builtBefore1978 := p.Customizations.PropertyBuiltBefore1978 ||
		(p.Property.YearBuilt > 0 && p.Property.YearBuilt < 1978)

	// 来源标注使用调用方原始勾选，规范化后的条款会强制勾选含铅涂料
	disclosures := e.resolver.Resolve(p.Property.Jurisdiction, p.Customizations, builtBefore1978)
	customizations := normalizeCustomizations(p.Customizations, builtBefore1978)
	figures, figureWarnings := e.derivation.Derive(p.Terms, customizations, p.BaseRent)

	warnings := make([]Warning, 0, len(disclosures.Warnings)+len(figureWarnings))
	warnings = append(warnings, disclosures.Warnings...)
	warnings = append(warnings, figureWarnings...)

	return &ResolvedLeaseModel{
		Property:        p.Property,
		Unit:            p.Unit,
		TenantID:        p.TenantID,
		Template:        p.Template,
		Terms:           p.Terms,
		Customizations:  customizations,
		BuiltBefore1978: builtBefore1978,
		Figures:         figures,
		Disclosures:     disclosures,
		Warnings:        warnings,
	}, nil
}
