package worker

import (
	"context"
	"errors"
	"time"

	"github.com/licensegate/internal/config"
	"github.com/licensegate/internal/constants"
	"github.com/licensegate/internal/logger"
	"github.com/licensegate/internal/queue"

	"github.com/hibiken/asynq"
)

// Service 异步队列服务
type Service struct {
	name           string
	server         *asynq.Server
	mux            *asynq.ServeMux
	consumer       *Consumer
	sweeper        config.SweeperConfig
	lastReminderAt time.Time
}

// NewService 创建异步队列服务
func NewService(cfg *config.QueueConfig, sweeper config.SweeperConfig, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(cfg)
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)
	return &Service{
		name:     "worker",
		server:   server,
		mux:      mux,
		consumer: consumer,
		sweeper:  sweeper,
	}, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	if s.sweeper.Enabled && s.consumer != nil && s.consumer.LifecycleService != nil {
		go s.runExpirySweepLoop(ctx)
	}
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	_ = ctx
	s.server.Shutdown()
	return nil
}

// runExpirySweepLoop 周期执行到期巡检与到期提醒
func (s *Service) runExpirySweepLoop(ctx context.Context) {
	if s == nil || s.consumer == nil || s.consumer.LifecycleService == nil {
		return
	}

	interval := time.Duration(s.sweeper.IntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = time.Duration(constants.SweepIntervalMinutesDefault) * time.Minute
	}

	s.sweepOnce(time.Now())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(time.Now())
		}
	}
}

// sweepOnce 执行一轮到期巡检
// 到期标记每轮都跑（幂等），到期提醒按提醒间隔节流，避免同一批用户每轮重复收信。
func (s *Service) sweepOnce(now time.Time) {
	if s == nil || s.consumer == nil || s.consumer.LifecycleService == nil {
		return
	}

	if _, err := s.consumer.LifecycleService.MarkExpiredBatch(); err != nil {
		logger.Warnw("worker_expiry_sweep_failed", "error", err)
	}

	reminderInterval := time.Duration(s.sweeper.ReminderIntervalHours) * time.Hour
	if reminderInterval <= 0 {
		reminderInterval = time.Duration(constants.ReminderIntervalHoursDefault) * time.Hour
	}
	if !s.lastReminderAt.IsZero() && now.Sub(s.lastReminderAt) < reminderInterval {
		return
	}

	daysAhead := s.sweeper.ReminderDaysAhead
	if daysAhead <= 0 {
		daysAhead = constants.ReminderDaysAheadDefault
	}
	summary, err := s.consumer.LifecycleService.SendExpirationReminders(daysAhead)
	if err != nil {
		// 发送失败不推进水位，下一轮重试
		logger.Warnw("worker_expiration_reminders_failed", "error", err)
		return
	}
	s.lastReminderAt = now
	if summary != nil && summary.Failed > 0 {
		logger.Warnw("worker_expiration_reminders_partial",
			"total", summary.Total,
			"sent", summary.Sent,
			"failed", summary.Failed,
		)
	}
}
