package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"leasehub/pkg/errors"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// Date 日历日期，JSON 格式为 2006-01-02，统一为 UTC 零点
type Date struct {
	time.Time
}

// NewDate 创建日期
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate 解析日期，兼容 RFC3339
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return Date{t}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("日期格式错误: %s", s)
	}
	return NewDate(t.Year(), t.Month(), t.Day()), nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// LeaseTermInput 租期参数
type LeaseTermInput struct {
	StartDate    Date  `json:"start_date"`
	EndDate      *Date `json:"end_date,omitempty"`
	MonthToMonth bool  `json:"month_to_month"`
	// BillingDay 每月交租日，0 表示取起租日
	BillingDay int `json:"billing_day" validate:"gte=0,lte=31"`
}

// PetPolicy 宠物条款
type PetPolicy struct {
	Allowed      bool            `json:"allowed"`
	Restrictions string          `json:"restrictions,omitempty" validate:"max=2000"`
	Deposit      decimal.Decimal `json:"deposit"`
	MonthlyRent  decimal.Decimal `json:"monthly_rent"`
}

// ConductRules 行为规范
type ConductRules struct {
	SmokingAllowed    bool   `json:"smoking_allowed"`
	QuietHours        string `json:"quiet_hours,omitempty" validate:"max=100"`
	EntryNoticeHours  int    `json:"entry_notice_hours" validate:"gte=0,lte=720"`
	MoveOutNoticeDays int    `json:"move_out_notice_days" validate:"gte=0,lte=365"`
}

// InsuranceRequirement 租客保险要求
type InsuranceRequirement struct {
	Required        bool            `json:"required"`
	MinimumCoverage decimal.Decimal `json:"minimum_coverage"`
}

// DisclosureToggles 调用方勾选的披露项
type DisclosureToggles struct {
	LeadPaint bool `json:"lead_paint"`
	Mold      bool `json:"mold"`
	BedBugs   bool `json:"bed_bugs"`
	Radon     bool `json:"radon"`
	FloodZone bool `json:"flood_zone"`
}

// IDs 已勾选的披露标识
func (t DisclosureToggles) IDs() []string {
	ids := make([]string, 0, 5)
	if t.BedBugs {
		ids = append(ids, DisclosureBedBugs)
	}
	if t.FloodZone {
		ids = append(ids, DisclosureFloodZone)
	}
	if t.LeadPaint {
		ids = append(ids, DisclosureLeadPaint)
	}
	if t.Mold {
		ids = append(ids, DisclosureMold)
	}
	if t.Radon {
		ids = append(ids, DisclosureRadon)
	}
	return ids
}

// Customizations 调用方选择的条款政策
type Customizations struct {
	GracePeriodDays      int             `json:"grace_period_days" validate:"gte=0,lte=31"`
	LateFeePercent       decimal.Decimal `json:"late_fee_percent"`
	LateFeeStartDay      int             `json:"late_fee_start_day" validate:"gte=0,lte=31"`
	BouncedCheckFee      decimal.Decimal `json:"bounced_check_fee"`
	AllowPartialPayments bool            `json:"allow_partial_payments"`

	DepositMonths     decimal.Decimal `json:"deposit_months"`
	DepositReturnDays int             `json:"deposit_return_days" validate:"gte=0,lte=365"`

	RenewalNoticeDays     int             `json:"renewal_notice_days" validate:"gte=0,lte=365"`
	TerminationNoticeDays int             `json:"termination_notice_days" validate:"gte=0,lte=365"`
	EarlyTerminationFee   decimal.Decimal `json:"early_termination_fee"`

	TenantUtilities   []string `json:"tenant_utilities"`
	LandlordUtilities []string `json:"landlord_utilities"`

	Pets      PetPolicy            `json:"pets"`
	Conduct   ConductRules         `json:"conduct"`
	Insurance InsuranceRequirement `json:"insurance"`

	AdditionalTerms string `json:"additional_terms,omitempty" validate:"max=20000"`

	Disclosures             DisclosureToggles `json:"disclosures"`
	PropertyBuiltBefore1978 bool              `json:"property_built_before_1978"`
}

// maxDepositMonths 押金月数上限
var maxDepositMonths = decimal.NewFromInt(12)

var hundred = decimal.NewFromInt(100)

// leaseValidator 只做字段范围校验，跨字段规则见 validateTerms / validateCustomizations
var leaseValidator = validator.New()

// validateTerms 校验租期
func validateTerms(term LeaseTermInput, verr *errors.ValidationError) {
	if err := leaseValidator.Struct(term); err != nil {
		addFieldErrors("lease_terms", err, verr)
	}
	if term.StartDate.IsZero() {
		verr.Add("lease_terms.start_date", "起租日期不能为空")
		return
	}
	if term.MonthToMonth {
		return
	}
	if term.EndDate == nil || term.EndDate.IsZero() {
		verr.Add("lease_terms.end_date", "非按月租约必须填写结束日期")
		return
	}
	if !term.EndDate.After(term.StartDate.Time) {
		verr.Add("lease_terms.end_date", "结束日期必须晚于开始日期")
	}
}

// validateCustomizations 校验条款政策
func validateCustomizations(c Customizations, verr *errors.ValidationError) {
	if err := leaseValidator.Struct(c); err != nil {
		addFieldErrors("customizations", err, verr)
	}

	nonNegative := map[string]decimal.Decimal{
		"customizations.late_fee_percent":           c.LateFeePercent,
		"customizations.bounced_check_fee":          c.BouncedCheckFee,
		"customizations.deposit_months":             c.DepositMonths,
		"customizations.early_termination_fee":      c.EarlyTerminationFee,
		"customizations.pets.deposit":               c.Pets.Deposit,
		"customizations.pets.monthly_rent":          c.Pets.MonthlyRent,
		"customizations.insurance.minimum_coverage": c.Insurance.MinimumCoverage,
	}
	for field, value := range nonNegative {
		if value.IsNegative() {
			verr.Add(field, "不能为负数")
		}
	}
	if c.LateFeePercent.GreaterThan(hundred) {
		verr.Add("customizations.late_fee_percent", "滞纳金比例不能超过100%")
	}
	if c.DepositMonths.GreaterThan(maxDepositMonths) {
		verr.Add("customizations.deposit_months", "押金月数不能超过12")
	}
	if !c.Pets.Allowed && (c.Pets.Deposit.IsPositive() || c.Pets.MonthlyRent.IsPositive()) {
		verr.Add("customizations.pets", "不允许宠物时不能收取宠物押金或宠物租金")
	}

	tenantSet := normalizeUtilities(c.TenantUtilities)
	landlordSet := normalizeUtilities(c.LandlordUtilities)
	var both []string
	for _, u := range tenantSet {
		for _, l := range landlordSet {
			if u == l {
				both = append(both, u)
			}
		}
	}
	if len(both) > 0 {
		verr.Add("customizations.utilities", "公用事业不能同时由租客和房东承担: "+strings.Join(both, ", "))
	}
}

// normalizeCustomizations 返回规范化副本：公用事业去重排序，1978 年前建成强制含铅涂料披露
func normalizeCustomizations(c Customizations, builtBefore1978 bool) Customizations {
	out := c
	out.TenantUtilities = normalizeUtilities(c.TenantUtilities)
	out.LandlordUtilities = normalizeUtilities(c.LandlordUtilities)
	out.AdditionalTerms = strings.TrimSpace(c.AdditionalTerms)
	if builtBefore1978 {
		out.PropertyBuiltBefore1978 = true
	}
	if out.PropertyBuiltBefore1978 {
		out.Disclosures.LeadPaint = true
	}
	return out
}

func normalizeUtilities(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, u := range in {
		key := strings.ToLower(strings.TrimSpace(u))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

func addFieldErrors(prefix string, err error, verr *errors.ValidationError) {
	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		verr.Add(prefix, err.Error())
		return
	}
	for _, fieldErr := range validationErrs {
		field := prefix + "." + fieldErr.Field()
		switch fieldErr.Tag() {
		case "gte", "lte":
			verr.Add(field, fmt.Sprintf("取值超出范围 (%s %s)", fieldErr.Tag(), fieldErr.Param()))
		case "max":
			verr.Add(field, fmt.Sprintf("长度不能超过 %s", fieldErr.Param()))
		default:
			verr.Add(field, fmt.Sprintf("字段 %s 验证失败", fieldErr.Field()))
		}
	}
}
