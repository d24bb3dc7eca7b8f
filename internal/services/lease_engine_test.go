package services

import (
	"testing"
	"time"

	"leasehub/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeJurisdiction(t *testing.T) {
	tests := map[string]string{
		"ca":     "US-CA",
		" us_ny": "US-NY",
		"US":     "US",
		"us-tx":  "US-TX",
		"DE-BY":  "DE-BY",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeJurisdiction(in), in)
	}
}

func TestDisclosureResolver_LeadPaintForcedRegardlessOfToggle(t *testing.T) {
	resolver := NewDisclosureResolver()
	c := baseCustomizations()
	c.Disclosures.LeadPaint = false

	set := resolver.Resolve("US-NY", c, true)

	assert.True(t, set.Resolved)
	assert.Equal(t, []string{DisclosureBedBugs, DisclosureLeadPaint}, set.IDs())
	for _, item := range set.Items {
		assert.Equal(t, DisclosureSourceJurisdiction, item.Source)
		assert.NotEmpty(t, item.Title)
	}
}

func TestDisclosureResolver_UnionWithCallerChoices(t *testing.T) {
	resolver := NewDisclosureResolver()
	c := baseCustomizations()
	c.Disclosures.Mold = true
	c.Disclosures.Radon = true

	set := resolver.Resolve("ca", c, false)

	assert.Equal(t, "US-CA", set.Jurisdiction)
	assert.Equal(t, []string{DisclosureBedBugs, DisclosureFloodZone, DisclosureMold, DisclosureRadon}, set.IDs())
	sources := map[string]DisclosureSource{}
	for _, item := range set.Items {
		sources[item.ID] = item.Source
	}
	assert.Equal(t, DisclosureSourceCaller, sources[DisclosureMold])
	assert.Equal(t, DisclosureSourceCaller, sources[DisclosureRadon])
	assert.Equal(t, DisclosureSourceJurisdiction, sources[DisclosureBedBugs])
	assert.Empty(t, set.Warnings)
}

func TestDisclosureResolver_UnknownJurisdictionFallsBackToToggles(t *testing.T) {
	resolver := NewDisclosureResolver()
	c := baseCustomizations()
	c.Disclosures.Mold = true

	set := resolver.Resolve("Atlantis", c, false)
	assert.False(t, set.Resolved)
	assert.Equal(t, []string{DisclosureMold}, set.IDs())
	require.Len(t, set.Warnings, 1)
	assert.Equal(t, WarningJurisdictionUnresolved, set.Warnings[0].Code)

	// 联邦含铅涂料规则不依赖法域
	set = resolver.Resolve("Atlantis", c, true)
	assert.Equal(t, []string{DisclosureLeadPaint, DisclosureMold}, set.IDs())
}

func TestDerivation_SecurityDeposit(t *testing.T) {
	engine := NewDerivationEngine(testLeaseConfig())
	c := baseCustomizations()

	c.DepositMonths = dec("1.5")
	figures, _ := engine.Derive(baseTerms(), c, dec("1500"))
	assert.Equal(t, int64(225000), figures.SecurityDepositMinor)

	c.DepositMonths = dec("0.5")
	for i := 0; i < 50; i++ {
		figures, _ = engine.Derive(baseTerms(), c, dec("1500"))
		assert.Equal(t, int64(75000), figures.SecurityDepositMinor)
	}
	assert.Equal(t, "$750.00", engine.FormatMoney(figures.SecurityDepositMinor))
}

func TestDerivation_RoundsOnceHalfUp(t *testing.T) {
	engine := NewDerivationEngine(testLeaseConfig())
	c := baseCustomizations()
	c.DepositMonths = dec("0.333")
	c.LateFeePercent = dec("2.5")

	figures, _ := engine.Derive(baseTerms(), c, dec("1234.57"))
	// 123457 * 0.333 = 41111.181
	assert.Equal(t, int64(41111), figures.SecurityDepositMinor)
	// 123457 * 2.5 / 100 = 3086.425
	assert.Equal(t, int64(3086), figures.LateFee.AmountMinor)
}

func TestDerivation_LateFeeAndDueDay(t *testing.T) {
	engine := NewDerivationEngine(testLeaseConfig())
	c := baseCustomizations()

	figures, warnings := engine.Derive(baseTerms(), c, dec("1500"))
	assert.Equal(t, 1, figures.RentDueDay)
	assert.Equal(t, int64(7500), figures.LateFee.AmountMinor)
	assert.Equal(t, 7, figures.LateFee.FirstApplicableDay)
	assert.Equal(t, int64(3500), figures.LateFee.BouncedCheckFeeMinor)
	assert.Equal(t, "5", figures.LateFee.Percent)
	assert.Empty(t, warnings)

	c.LateFeeStartDay = 10
	terms := baseTerms()
	terms.BillingDay = 31
	figures, warnings = engine.Derive(terms, c, dec("1500"))
	assert.Equal(t, 31, figures.RentDueDay)
	assert.True(t, figures.RentDueDayClamped)
	assert.Equal(t, 10, figures.LateFee.FirstApplicableDay)
	require.Len(t, warnings, 1)
	assert.Equal(t, WarningRentDueDayClamped, warnings[0].Code)
}

func TestDerivation_UtilityAllocation(t *testing.T) {
	engine := NewDerivationEngine(testLeaseConfig())
	c := baseCustomizations()
	c.TenantUtilities = []string{"electricity", "internet"}
	c.LandlordUtilities = []string{"Water"}

	figures, warnings := engine.Derive(baseTerms(), c, dec("1500"))
	assert.Equal(t, []UtilityAllocation{
		{Utility: "electricity", Payer: UtilityPayerTenant},
		{Utility: "gas", Payer: UtilityPayerUnassigned},
		{Utility: "water", Payer: UtilityPayerLandlord},
		{Utility: "trash", Payer: UtilityPayerUnassigned},
		{Utility: "internet", Payer: UtilityPayerTenant},
	}, figures.Utilities)
	require.Len(t, warnings, 2)
	for _, w := range warnings {
		assert.Equal(t, WarningUtilityUnassigned, w.Code)
	}
}

func TestDerivation_PetsAndTotals(t *testing.T) {
	engine := NewDerivationEngine(testLeaseConfig())
	c := baseCustomizations()
	c.DepositMonths = dec("1")
	c.Pets = PetPolicy{Allowed: true, Deposit: dec("300"), MonthlyRent: dec("25.50")}

	figures, _ := engine.Derive(baseTerms(), c, dec("1500"))
	assert.Equal(t, int64(2550), figures.PetRentMinor)
	assert.Equal(t, int64(152550), figures.TotalMonthlyMinor)
	assert.Equal(t, int64(152550+150000+30000), figures.MoveInTotalMinor)
	assert.Equal(t, 12, figures.TermMonths)
}

func TestTermMonths(t *testing.T) {
	assert.Equal(t, 12, termMonths(LeaseTermInput{
		StartDate: NewDate(2025, time.January, 1),
		EndDate:   datePtr(NewDate(2025, time.December, 31)),
	}))
	assert.Equal(t, 6, termMonths(LeaseTermInput{
		StartDate: NewDate(2025, time.January, 15),
		EndDate:   datePtr(NewDate(2025, time.July, 14)),
	}))
	assert.Equal(t, 0, termMonths(LeaseTermInput{StartDate: NewDate(2025, time.January, 15), MonthToMonth: true}))
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "$2,250.00", FormatMoney(225000, 2, "USD"))
	assert.Equal(t, "$0.05", FormatMoney(5, 2, "USD"))
	assert.Equal(t, "-€1,234,567.89", FormatMoney(-123456789, 2, "EUR"))
	assert.Equal(t, "JPY 15,000", FormatMoney(15000, 0, "JPY"))
}

func TestLeaseEngine_Validation(t *testing.T) {
	engine := NewLeaseEngine(testLeaseConfig())

	params := ResolveParams{
		Property:       PropertyFacts{ID: 1, Name: "Maple", Jurisdiction: "US-CA"},
		Unit:           UnitFacts{Name: "1A"},
		Terms:          LeaseTermInput{StartDate: NewDate(2025, time.March, 1), EndDate: datePtr(NewDate(2025, time.February, 1))},
		Customizations: baseCustomizations(),
		BaseRent:       dec("1500.005"),
	}
	params.Customizations.TenantUtilities = []string{"water"}
	params.Customizations.LandlordUtilities = []string{"WATER"}
	params.Customizations.DepositMonths = dec("-1")

	_, err := engine.Resolve(params)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeValidation))

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Details, "lease_terms.end_date")
	assert.Contains(t, appErr.Details, "customizations.utilities")
	assert.Contains(t, appErr.Details, "customizations.deposit_months")
	assert.Contains(t, appErr.Details, "rent_amount")
}

func TestLeaseEngine_Validation_AmountUpperBound(t *testing.T) {
	engine := NewLeaseEngine(testLeaseConfig())
	params := ResolveParams{
		Property:       PropertyFacts{ID: 1, Name: "Maple", Jurisdiction: "US-CA"},
		Unit:           UnitFacts{Name: "1A"},
		Terms:          LeaseTermInput{StartDate: NewDate(2025, time.March, 1), MonthToMonth: true},
		Customizations: baseCustomizations(),
		BaseRent:       dec("100000000000000000"),
	}
	params.Customizations.DepositMonths = dec("12")
	params.Customizations.BouncedCheckFee = dec("10000000001")

	_, err := engine.Resolve(params)
	require.Error(t, err)
	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errors.CodeValidation, appErr.Code)
	assert.Contains(t, appErr.Details, "rent_amount")
	assert.Contains(t, appErr.Details, "customizations.bounced_check_fee")

	// 上限本身可以通过，且推导结果不溢出
	params.BaseRent = dec("10000000000")
	params.Customizations.BouncedCheckFee = dec("35")
	model, err := engine.Resolve(params)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000_000_000), model.Figures.MonthlyRentMinor)
	assert.Equal(t, int64(12_000_000_000_000), model.Figures.SecurityDepositMinor)
	assert.Positive(t, model.Figures.MoveInTotalMinor)
}

func TestLeaseEngine_FixedTermRequiresEndDate(t *testing.T) {
	engine := NewLeaseEngine(testLeaseConfig())
	params := ResolveParams{
		Property:       PropertyFacts{ID: 1, Jurisdiction: "US"},
		Terms:          LeaseTermInput{StartDate: NewDate(2025, time.March, 1)},
		Customizations: baseCustomizations(),
		BaseRent:       dec("1000"),
	}
	_, err := engine.Resolve(params)
	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Details, "lease_terms.end_date")

	params.Terms.MonthToMonth = true
	model, err := engine.Resolve(params)
	require.NoError(t, err)
	assert.Equal(t, 0, model.Figures.TermMonths)
}

func TestLeaseEngine_DeterministicAndLeadPaintNormalized(t *testing.T) {
	engine := NewLeaseEngine(testLeaseConfig())
	params := ResolveParams{
		Property:       PropertyFacts{ID: 1, Name: "Old Mill", Jurisdiction: "US-ME", YearBuilt: 1952},
		Unit:           UnitFacts{Name: "3"},
		Terms:          baseTerms(),
		Customizations: baseCustomizations(),
		BaseRent:       dec("1500"),
	}

	first, err := engine.Resolve(params)
	require.NoError(t, err)
	second, err := engine.Resolve(params)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.True(t, first.BuiltBefore1978)
	assert.True(t, first.Customizations.Disclosures.LeadPaint)
	assert.True(t, first.Customizations.PropertyBuiltBefore1978)
	assert.Equal(t, []string{DisclosureBedBugs, DisclosureLeadPaint, DisclosureRadon}, first.Disclosures.IDs())
	assert.Equal(t, []string{"electricity", "gas"}, first.Customizations.TenantUtilities)
	// 调用方输入不被修改
	assert.False(t, params.Customizations.Disclosures.LeadPaint)
}

func TestDate_JSON(t *testing.T) {
	var d Date
	require.NoError(t, d.UnmarshalJSON([]byte(`"2025-02-01"`)))
	assert.Equal(t, NewDate(2025, time.February, 1), d)

	require.NoError(t, d.UnmarshalJSON([]byte(`"2025-02-01T15:04:05-08:00"`)))
	assert.Equal(t, NewDate(2025, time.February, 1), d)

	data, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"2025-02-01"`, string(data))

	assert.Error(t, d.UnmarshalJSON([]byte(`"02/01/2025"`)))
}
