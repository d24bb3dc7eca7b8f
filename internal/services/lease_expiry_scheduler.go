package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"leasehub/internal/models"
	"leasehub/pkg/logger"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// LeaseExpiryScheduler 到期不续约调度器：终止已过结束日期的生效固定期租约
type LeaseExpiryScheduler struct {
	db        *gorm.DB
	lifecycle *LeaseLifecycleService
	spec      string
	cron      *cron.Cron
	mu        sync.Mutex
	running   bool
}

// NewLeaseExpiryScheduler 创建到期调度器
func NewLeaseExpiryScheduler(db *gorm.DB, lifecycle *LeaseLifecycleService, spec string) *LeaseExpiryScheduler {
	return &LeaseExpiryScheduler{
		db:        db,
		lifecycle: lifecycle,
		spec:      spec,
	}
}

// Start 启动调度器
func (s *LeaseExpiryScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("调度器已经在运行")
	}

	// 每次启动使用新的 cron 实例，重复启停不会叠加任务
	c := cron.New()
	_, err := c.AddFunc(s.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if _, err := s.RunOnce(ctx, time.Now()); err != nil {
			logger.GetLogger().Errorf("租约到期任务执行失败: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("无效的cron表达式 %s: %v", s.spec, err)
	}

	s.cron = c
	s.cron.Start()
	s.running = true
	logger.GetLogger().Infof("租约到期调度器启动成功，cron: %s", s.spec)
	return nil
}

// Stop 停止调度器，等待正在执行的任务结束
func (s *LeaseExpiryScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	logger.GetLogger().Info("租约到期调度器已停止")
}

// RunOnce 终止结束日期早于 now 所在日的生效租约，返回终止数量
func (s *LeaseExpiryScheduler) RunOnce(ctx context.Context, now time.Time) (int, error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var candidates []models.LeaseDocument
	query := s.db.WithContext(ctx).Model(&models.LeaseDocument{}).
		Where("month_to_month = ? AND end_date IS NOT NULL AND end_date < ?", false, today)
	query, err := statusScope(query, models.LeaseStatusActive)
	if err != nil {
		return 0, err
	}
	if err := query.Select("id", "org_id").Order("id ASC").Find(&candidates).Error; err != nil {
		return 0, fmt.Errorf("查询到期租约失败: %v", err)
	}

	terminated := 0
	for _, doc := range candidates {
		if ctx.Err() != nil {
			return terminated, ctx.Err()
		}
		if _, err := s.lifecycle.Terminate(ctx, doc.OrgID, doc.ID, TerminationReasonNonRenewal); err != nil {
			logger.GetLogger().Warnf("终止到期租约 %d 失败: %v", doc.ID, err)
			continue
		}
		terminated++
	}
	if terminated > 0 {
		logger.GetLogger().Infof("租约到期任务完成，终止 %d 份租约", terminated)
	}
	return terminated, nil
}
