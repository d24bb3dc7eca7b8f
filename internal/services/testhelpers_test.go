package services

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"leasehub/internal/database"
	"leasehub/internal/models"
	"leasehub/pkg/config"
	"leasehub/pkg/events"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testOrgID uint = 1

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{
		Driver: database.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "leasehub_test.db"),
	}, "release")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func testLeaseConfig() config.LeaseConfig {
	return config.LeaseConfig{
		CurrencyCode:    "USD",
		MinorUnitDigits: 2,
		UtilityCatalog:  []string{"electricity", "gas", "water", "trash"},
		ExpiryCronSpec:  "15 2 * * *",
	}
}

// memoryStore 内存产物存储
type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	putErr  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: make(map[string][]byte)}
}

func (s *memoryStore) Put(_ context.Context, key, _ string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return "", s.putErr
	}
	ref := "mem://" + key
	s.objects[ref] = append([]byte(nil), data...)
	return ref, nil
}

func (s *memoryStore) Delete(_ context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, ref)
	s.deleted = append(s.deleted, ref)
	return nil
}

func (s *memoryStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// recordingPublisher 记录发布的事件
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.LeaseEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event events.LeaseEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) ofType(eventType events.EventType) []events.LeaseEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.LeaseEvent
	for _, e := range p.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// failingRenderer 模拟外部渲染器故障
type failingRenderer struct{}

func (failingRenderer) Render(context.Context, *ResolvedLeaseModel) (*RenderedArtifact, error) {
	return nil, fmt.Errorf("renderer unavailable")
}

type fixture struct {
	db        *gorm.DB
	reg       *Registry
	store     *memoryStore
	publisher *recordingPublisher
	property  models.Property
	unit      models.Unit
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	f := &fixture{
		db:        db,
		store:     newMemoryStore(),
		publisher: &recordingPublisher{},
	}
	f.reg = NewRegistry(Options{
		DB:        db,
		Lease:     testLeaseConfig(),
		Store:     f.store,
		Publisher: f.publisher,
	})

	// 测试时钟，每次调用前进一秒
	var mu sync.Mutex
	clock := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	f.reg.Lifecycle.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}

	f.property = models.Property{
		OrgID:        testOrgID,
		Name:         "Maple Court",
		Address:      "12 Maple Ct, Oakland, CA",
		Jurisdiction: "US-CA",
		YearBuilt:    1990,
	}
	require.NoError(t, db.Create(&f.property).Error)
	f.unit = models.Unit{
		OrgID:      testOrgID,
		PropertyID: f.property.ID,
		Name:       "2B",
		RentMinor:  150000,
	}
	require.NoError(t, db.Create(&f.unit).Error)
	return f
}

func (f *fixture) addProperty(t *testing.T, name, jurisdiction string, yearBuilt int) models.Property {
	t.Helper()
	property := models.Property{
		OrgID:        testOrgID,
		Name:         name,
		Jurisdiction: jurisdiction,
		YearBuilt:    yearBuilt,
	}
	require.NoError(t, f.db.Create(&property).Error)
	return property
}

func (f *fixture) builderTemplate(t *testing.T, name string, c Customizations, propertyIDs ...uint) *models.LeaseTemplate {
	t.Helper()
	template, err := f.reg.Templates.Create(context.Background(), testOrgID, CreateLeaseTemplateRequest{
		Name:        name,
		Kind:        models.TemplateKindBuilder,
		Parameters:  &BuilderParameters{Customizations: c},
		PropertyIDs: propertyIDs,
	}, 7)
	require.NoError(t, err)
	return template
}

func (f *fixture) leaseRequest(tenantID *uint) LeaseRequest {
	unitID := f.unit.ID
	c := baseCustomizations()
	return LeaseRequest{
		PropertyID:     f.property.ID,
		UnitID:         &unitID,
		TenantID:       tenantID,
		LeaseTerms:     baseTerms(),
		Customizations: &c,
	}
}

func (f *fixture) generate(t *testing.T, tenantID *uint) *models.LeaseDocument {
	t.Helper()
	result, err := f.reg.Generation.Generate(context.Background(), testOrgID, 7, GenerateLeaseRequest{
		LeaseRequest: f.leaseRequest(tenantID),
	})
	require.NoError(t, err)
	return result.Document
}

func (f *fixture) countDocuments(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&models.LeaseDocument{}).Count(&count).Error)
	return count
}

func uintPtr(v uint) *uint {
	return &v
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func datePtr(d Date) *Date {
	return &d
}

func baseTerms() LeaseTermInput {
	return LeaseTermInput{
		StartDate: NewDate(2025, time.February, 1),
		EndDate:   datePtr(NewDate(2026, time.January, 31)),
	}
}

func baseCustomizations() Customizations {
	return Customizations{
		GracePeriodDays:       5,
		LateFeePercent:        dec("5"),
		BouncedCheckFee:       dec("35"),
		DepositMonths:         dec("1.5"),
		DepositReturnDays:     21,
		RenewalNoticeDays:     60,
		TerminationNoticeDays: 30,
		EarlyTerminationFee:   dec("1500"),
		TenantUtilities:       []string{"Electricity", "gas"},
		LandlordUtilities:     []string{"water", "trash"},
		Conduct: ConductRules{
			QuietHours:        "22:00-07:00",
			EntryNoticeHours:  24,
			MoveOutNoticeDays: 30,
		},
	}
}
