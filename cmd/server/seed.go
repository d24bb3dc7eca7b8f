package main

import (
	"context"
	"fmt"

	"leasehub/internal/database"
	"leasehub/internal/models"
	"leasehub/internal/services"
	"leasehub/pkg/jwt"
	"leasehub/pkg/logger"

	"github.com/shopspring/decimal"
)

const (
	demoOrgID      uint = 1
	demoExternalID      = "demo-maple-court"
)

// seedData 开发环境示例数据：一个物业、一个单元和默认 builder 模板
func seedData(ctx context.Context, registry *services.Registry) error {
	appLogger := logger.GetLogger()
	appLogger.Info("Starting seed data initialization...")

	var count int64
	database.GetDB().Model(&models.Property{}).
		Where("org_id = ? AND external_id = ?", demoOrgID, demoExternalID).
		Count(&count)
	if count > 0 {
		appLogger.Info("示例物业已存在，跳过创建")
		return printDemoToken()
	}

	property, err := registry.Properties.Create(ctx, demoOrgID, services.CreatePropertyRequest{
		ExternalID:   demoExternalID,
		Name:         "Maple Court",
		Address:      "12 Maple Ct, Oakland, CA 94607",
		Jurisdiction: "US-CA",
		YearBuilt:    1962,
	})
	if err != nil {
		return fmt.Errorf("创建示例物业失败: %v", err)
	}

	if _, err := registry.Properties.AddUnit(ctx, demoOrgID, property.ID, services.CreateUnitRequest{
		Name: "2B",
		Rent: decimal.NewFromInt(2400),
	}); err != nil {
		return fmt.Errorf("创建示例单元失败: %v", err)
	}

	template, err := registry.Templates.Create(ctx, demoOrgID, services.CreateLeaseTemplateRequest{
		Name: "Maple Court Standard Lease",
		Kind: models.TemplateKindBuilder,
		Parameters: &services.BuilderParameters{
			Customizations: services.Customizations{
				GracePeriodDays:       5,
				LateFeePercent:        decimal.NewFromInt(5),
				BouncedCheckFee:       decimal.NewFromInt(35),
				DepositMonths:         decimal.NewFromInt(1),
				DepositReturnDays:     21,
				RenewalNoticeDays:     60,
				TerminationNoticeDays: 30,
				TenantUtilities:       []string{"electricity", "gas", "internet"},
				LandlordUtilities:     []string{"water", "sewer", "trash"},
				Conduct: services.ConductRules{
					QuietHours:        "22:00-07:00",
					EntryNoticeHours:  24,
					MoveOutNoticeDays: 30,
				},
			},
		},
		PropertyIDs: []uint{property.ID},
	}, 0)
	if err != nil {
		return fmt.Errorf("创建示例模板失败: %v", err)
	}
	if _, err := registry.Templates.SetDefault(ctx, demoOrgID, template.ID, property.ID); err != nil {
		return fmt.Errorf("设置默认模板失败: %v", err)
	}

	appLogger.Infof("示例物业 %s (ID: %d) 已创建，默认模板 ID: %d", property.Name, property.ID, template.ID)
	return printDemoToken()
}

// printDemoToken 输出示例组织管理员令牌，便于本地调试
func printDemoToken() error {
	token, err := jwt.GetJWTManager().GenerateToken(1, demoOrgID, "demo-admin", true)
	if err != nil {
		return err
	}
	logger.GetLogger().Infof("示例管理员令牌: %s", token)
	return nil
}
