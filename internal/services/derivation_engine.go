package services

import (
	"fmt"
	"sort"
	"strings"

	"leasehub/pkg/config"
	"leasehub/pkg/errors"

	"github.com/shopspring/decimal"
)

// UtilityPayer 公用事业付费方
type UtilityPayer string

const (
	UtilityPayerTenant     UtilityPayer = "tenant"
	UtilityPayerLandlord   UtilityPayer = "landlord"
	UtilityPayerUnassigned UtilityPayer = "unassigned"
)

// UtilityAllocation 单项公用事业分配
type UtilityAllocation struct {
	Utility string       `json:"utility"`
	Payer   UtilityPayer `json:"payer"`
}

// LateFeeSchedule 滞纳金安排
type LateFeeSchedule struct {
	Percent              string `json:"percent"`
	AmountMinor          int64  `json:"amount_minor"`
	GracePeriodDays      int    `json:"grace_period_days"`
	FirstApplicableDay   int    `json:"first_applicable_day"`
	BouncedCheckFeeMinor int64  `json:"bounced_check_fee_minor"`
}

// DerivedFigures 推导出的合同数值，金额均为货币最小单位
type DerivedFigures struct {
	Currency        string `json:"currency"`
	MinorUnitDigits int32  `json:"minor_unit_digits"`

	MonthlyRentMinor     int64  `json:"monthly_rent_minor"`
	DepositMonths        string `json:"deposit_months"`
	SecurityDepositMinor int64  `json:"security_deposit_minor"`
	PetDepositMinor      int64  `json:"pet_deposit_minor"`
	PetRentMinor         int64  `json:"pet_rent_minor"`
	TotalMonthlyMinor    int64  `json:"total_monthly_minor"`
	MoveInTotalMinor     int64  `json:"move_in_total_minor"`

	EarlyTerminationFeeMinor      int64 `json:"early_termination_fee_minor"`
	InsuranceMinimumCoverageMinor int64 `json:"insurance_minimum_coverage_minor"`

	RentDueDay int `json:"rent_due_day"`
	// RentDueDayClamped 交租日大于 28，短月份取当月最后一天
	RentDueDayClamped bool `json:"rent_due_day_clamped"`

	LateFee   LateFeeSchedule     `json:"late_fee"`
	Utilities []UtilityAllocation `json:"utilities"`

	// TermMonths 固定租期的整月数，按月租约为 0
	TermMonths int `json:"term_months"`
}

// DerivationEngine 由基础输入计算合同数值，纯函数
type DerivationEngine struct {
	currency string
	digits   int32
	catalog  []string
}

// NewDerivationEngine 创建推导引擎
func NewDerivationEngine(cfg config.LeaseConfig) *DerivationEngine {
	catalog := cfg.UtilityCatalog
	if len(catalog) == 0 {
		catalog = config.DefaultUtilityCatalog
	}
	currency := strings.ToUpper(strings.TrimSpace(cfg.CurrencyCode))
	if currency == "" {
		currency = "USD"
	}
	return &DerivationEngine{
		currency: currency,
		digits:   cfg.MinorUnitDigits,
		catalog:  normalizeCatalog(catalog),
	}
}

// Digits 货币最小单位位数
func (e *DerivationEngine) Digits() int32 {
	return e.digits
}

// Currency 货币代码
func (e *DerivationEngine) Currency() string {
	return e.currency
}

// ToMinor 金额转最小单位，四舍五入（远离零）
func (e *DerivationEngine) ToMinor(amount decimal.Decimal) int64 {
	return amount.Shift(e.digits).Round(0).IntPart()
}

// FromMinor 最小单位转金额
func (e *DerivationEngine) FromMinor(minor int64) decimal.Decimal {
	return decimal.New(minor, -e.digits)
}

// FormatMoney 格式化金额
func (e *DerivationEngine) FormatMoney(minor int64) string {
	return FormatMoney(minor, e.digits, e.currency)
}

// maxAmountMinor 单项金额上限（最小单位），押金和总额相乘后仍在 int64 范围内
const maxAmountMinor int64 = 1_000_000_000_000

// CheckAmount 金额精度不能超过货币最小单位，且不能超过单项上限
func (e *DerivationEngine) CheckAmount(field string, amount decimal.Decimal, verr *errors.ValidationError) {
	if !amount.Equal(amount.Truncate(e.digits)) {
		verr.Add(field, fmt.Sprintf("金额精度不能超过 %d 位小数", e.digits))
	}
	if amount.Shift(e.digits).GreaterThan(decimal.NewFromInt(maxAmountMinor)) {
		verr.Add(field, "金额不能超过 "+e.FormatMoney(maxAmountMinor))
	}
}

// Derive 计算押金、滞纳金、交租日与公用事业分配
func (e *DerivationEngine) Derive(term LeaseTermInput, c Customizations, baseRent decimal.Decimal) (DerivedFigures, []Warning) {
	var warnings []Warning
	rentMinor := e.ToMinor(baseRent)

	figures := DerivedFigures{
		Currency:         e.currency,
		MinorUnitDigits:  e.digits,
		MonthlyRentMinor: rentMinor,
		DepositMonths:    c.DepositMonths.String(),
	}

	// 先乘后舍入，只舍入一次
	figures.SecurityDepositMinor = decimal.NewFromInt(rentMinor).Mul(c.DepositMonths).Round(0).IntPart()

	if c.Pets.Allowed {
		figures.PetDepositMinor = e.ToMinor(c.Pets.Deposit)
		figures.PetRentMinor = e.ToMinor(c.Pets.MonthlyRent)
	}
	figures.TotalMonthlyMinor = rentMinor + figures.PetRentMinor
	figures.MoveInTotalMinor = figures.TotalMonthlyMinor + figures.SecurityDepositMinor + figures.PetDepositMinor
	figures.EarlyTerminationFeeMinor = e.ToMinor(c.EarlyTerminationFee)
	if c.Insurance.Required {
		figures.InsuranceMinimumCoverageMinor = e.ToMinor(c.Insurance.MinimumCoverage)
	}

	figures.RentDueDay = term.BillingDay
	if figures.RentDueDay == 0 {
		figures.RentDueDay = term.StartDate.Day()
	}
	if figures.RentDueDay > 28 {
		figures.RentDueDayClamped = true
		warnings = append(warnings, Warning{
			Code:    WarningRentDueDayClamped,
			Field:   "lease_terms.billing_day",
			Message: fmt.Sprintf("交租日为 %d 日，短月份按当月最后一天计", figures.RentDueDay),
		})
	}

	figures.LateFee = LateFeeSchedule{
		Percent:              c.LateFeePercent.String(),
		AmountMinor:          decimal.NewFromInt(rentMinor).Mul(c.LateFeePercent).Div(hundred).Round(0).IntPart(),
		GracePeriodDays:      c.GracePeriodDays,
		FirstApplicableDay:   c.LateFeeStartDay,
		BouncedCheckFeeMinor: e.ToMinor(c.BouncedCheckFee),
	}
	if figures.LateFee.FirstApplicableDay == 0 {
		// 宽限期结束后的第一天
		day := figures.RentDueDay + c.GracePeriodDays + 1
		if day > 31 {
			day = 31
		}
		figures.LateFee.FirstApplicableDay = day
	}

	figures.Utilities, warnings = e.allocateUtilities(c, warnings)
	figures.TermMonths = termMonths(term)
	return figures, warnings
}

func (e *DerivationEngine) allocateUtilities(c Customizations, warnings []Warning) ([]UtilityAllocation, []Warning) {
	payers := make(map[string]UtilityPayer)
	for _, u := range normalizeUtilities(c.TenantUtilities) {
		payers[u] = UtilityPayerTenant
	}
	for _, u := range normalizeUtilities(c.LandlordUtilities) {
		payers[u] = UtilityPayerLandlord
	}

	allocations := make([]UtilityAllocation, 0, len(e.catalog)+len(payers))
	inCatalog := make(map[string]bool, len(e.catalog))
	for _, utility := range e.catalog {
		inCatalog[utility] = true
		payer, ok := payers[utility]
		if !ok {
			payer = UtilityPayerUnassigned
			warnings = append(warnings, Warning{
				Code:    WarningUtilityUnassigned,
				Field:   "customizations.utilities",
				Message: "公用事业 " + utility + " 未指定付费方",
			})
		}
		allocations = append(allocations, UtilityAllocation{Utility: utility, Payer: payer})
	}

	// 目录外的公用事业排在目录项之后
	extras := make([]string, 0)
	for utility := range payers {
		if !inCatalog[utility] {
			extras = append(extras, utility)
		}
	}
	sort.Strings(extras)
	for _, utility := range extras {
		allocations = append(allocations, UtilityAllocation{Utility: utility, Payer: payers[utility]})
	}
	return allocations, warnings
}

func termMonths(term LeaseTermInput) int {
	if term.MonthToMonth || term.EndDate == nil || term.EndDate.IsZero() {
		return 0
	}
	start := term.StartDate.Time
	endExclusive := term.EndDate.AddDate(0, 0, 1)
	months := (endExclusive.Year()-start.Year())*12 + int(endExclusive.Month()-start.Month())
	if endExclusive.Day() < start.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

func normalizeCatalog(catalog []string) []string {
	seen := make(map[string]bool, len(catalog))
	out := make([]string, 0, len(catalog))
	for _, u := range catalog {
		key := strings.ToLower(strings.TrimSpace(u))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, key)
	}
	return out
}

var currencySymbols = map[string]string{
	"USD": "$",
	"CAD": "CA$",
	"EUR": "€",
	"GBP": "£",
}

// FormatMoney 按货币格式化最小单位金额，千分位逗号分隔
func FormatMoney(minor int64, digits int32, currency string) string {
	amount := decimal.New(minor, -digits).StringFixed(digits)
	negative := strings.HasPrefix(amount, "-")
	amount = strings.TrimPrefix(amount, "-")

	whole, frac := amount, ""
	if idx := strings.IndexByte(amount, '.'); idx >= 0 {
		whole, frac = amount[:idx], amount[idx:]
	}
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	symbol, ok := currencySymbols[currency]
	if !ok {
		symbol = currency + " "
	}
	sign := ""
	if negative {
		sign = "-"
	}
	return sign + symbol + b.String() + frac
}

// dayOfMonthSuffix 1st / 2nd / 3rd / 4th
func dayOfMonthSuffix(day int) string {
	if day >= 11 && day <= 13 {
		return fmt.Sprintf("%dth", day)
	}
	switch day % 10 {
	case 1:
		return fmt.Sprintf("%dst", day)
	case 2:
		return fmt.Sprintf("%dnd", day)
	case 3:
		return fmt.Sprintf("%drd", day)
	}
	return fmt.Sprintf("%dth", day)
}

