package services

import (
	"leasehub/pkg/config"
	"leasehub/pkg/events"
	"leasehub/pkg/storage"

	"gorm.io/gorm"
)

// Options 服务装配参数
type Options struct {
	DB        *gorm.DB
	Lease     config.LeaseConfig
	Store     storage.ArtifactStore
	Publisher events.Publisher
	// Renderer 为空时使用内置 HTML 渲染器
	Renderer LeaseRenderer
}

// Registry 已装配的服务集合
type Registry struct {
	Engine     *LeaseEngine
	Lifecycle  *LeaseLifecycleService
	Templates  *LeaseTemplateService
	Renderer   *DocumentRenderer
	Generation *LeaseGenerationService
	Properties *PropertyService
	Expiry     *LeaseExpiryScheduler
}

// NewRegistry 按依赖顺序装配服务
func NewRegistry(opts Options) *Registry {
	renderer := opts.Renderer
	if renderer == nil {
		renderer = MustHTMLLeaseRenderer()
	}
	engine := NewLeaseEngine(opts.Lease)
	lifecycle := NewLeaseLifecycleService(opts.DB, opts.Publisher)
	templates := NewLeaseTemplateService(opts.DB, lifecycle)
	documents := NewDocumentRenderer(opts.DB, renderer, opts.Store, lifecycle)

	spec := opts.Lease.ExpiryCronSpec
	if spec == "" {
		spec = "15 2 * * *"
	}
	return &Registry{
		Engine:     engine,
		Lifecycle:  lifecycle,
		Templates:  templates,
		Renderer:   documents,
		Generation: NewLeaseGenerationService(opts.DB, engine, documents, templates, lifecycle),
		Properties: NewPropertyService(opts.DB, engine.Derivation()),
		Expiry:     NewLeaseExpiryScheduler(opts.DB, lifecycle, spec),
	}
}
