package app

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fundscore/internal/alerting"
	"fundscore/internal/domain"
)

// NotifyTest 发送一条模拟的评分完成通知，用于验证告警通道配置。
func (a *App) NotifyTest(ctx context.Context, category string) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting 未启用")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("未配置任何告警通道")
	}

	if category == "" {
		category = "Large Cap"
	}
	now := time.Now().In(a.Config.Location())
	note := alerting.Notification{
		Status: alerting.StatusCompleted,
		Summary: domain.RunSummary{
			RunID:         uuid.NewString(),
			Category:      category,
			AsOf:          time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
			UniverseSize:  3,
			EligibleCount: 3,
			RankedCount:   3,
			DryRun:        true,
		},
		Leaders: []alerting.Leader{
			{Rank: 1, Name: "Simulated Fund A", Score: decimal.RequireFromString("78.40")},
			{Rank: 2, Name: "Simulated Fund B", Score: decimal.RequireFromString("64.15")},
			{Rank: 3, Name: "Simulated Fund C", Score: decimal.RequireFromString("51.90")},
		},
	}

	if err := notifier.Notify(ctx, note); err != nil {
		return err
	}
	a.Logger.Info().Str("category", category).Msg("测试通知已发送")
	return nil
}
