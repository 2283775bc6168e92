package services

import (
	"time"

	"recycly-backend/models"
	"recycly-backend/utils"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

// Scheduler owns the periodic maintenance jobs.
type Scheduler struct {
	DB    *gorm.DB
	sched gocron.Scheduler
}

func NewScheduler(db *gorm.DB) *Scheduler {
	return &Scheduler{DB: db}
}

// Start registers and launches the background jobs.
func (s *Scheduler) Start() error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	s.sched = sched

	// Every 10 minutes: archive published rewards past their expiry date.
	_, _ = sched.NewJob(
		gocron.DurationJob(10*time.Minute),
		gocron.NewTask(s.archiveExpiredRewards),
	)

	// Every hour: auto-reject disposals stuck in PENDING for too long.
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Hour),
		gocron.NewTask(s.rejectStaleDisposals),
	)

	// Daily: compare point counters against the ledger and log drift.
	_, _ = sched.NewJob(
		gocron.DurationJob(24*time.Hour),
		gocron.NewTask(func() {
			drifted, err := NewPointsService(s.DB).AuditLedgerDrift()
			if err != nil {
				utils.Sugar.Errorw("ledger audit failed", "err", err)
				return
			}
			utils.Sugar.Infow("ledger audit finished", "drifted_users", drifted)
		}),
	)

	sched.Start()
	return nil
}

// Stop shuts the scheduler down, waiting for running jobs.
func (s *Scheduler) Stop() {
	if s.sched != nil {
		_ = s.sched.Shutdown()
	}
}

func (s *Scheduler) archiveExpiredRewards() {
	res := s.DB.Model(&models.Reward{}).
		Where("status = ? AND expiry_date IS NOT NULL AND expiry_date < ?",
			models.RewardStatusPublished, time.Now()).
		Update("status", models.RewardStatusArchived)
	if res.Error != nil {
		utils.Sugar.Errorw("failed to archive expired rewards", "err", res.Error)
		return
	}
	if res.RowsAffected > 0 {
		utils.Sugar.Infow("archived expired rewards", "count", res.RowsAffected)
	}
}

func (s *Scheduler) rejectStaleDisposals() {
	cutoff := time.Now().Add(-14 * 24 * time.Hour)

	var stale []models.WasteDisposal
	err := s.DB.Where("status = ? AND created_at < ?", models.DisposalStatusPending, cutoff).
		Find(&stale).Error
	if err != nil {
		utils.Sugar.Errorw("stale disposal scan failed", "err", err)
		return
	}

	notifications := NewNotificationService(s.DB)
	for _, d := range stale {
		updates := map[string]interface{}{
			"status":           models.DisposalStatusRejected,
			"rejection_reason": "Automatically rejected: no manager review within 14 days",
		}
		if err := s.DB.Model(&models.WasteDisposal{}).
			Where("id = ? AND status = ?", d.ID, models.DisposalStatusPending).
			Updates(updates).Error; err != nil {
			utils.Sugar.Errorw("failed to auto-reject disposal", "disposal_id", d.ID, "err", err)
			continue
		}
		if err := notifications.Create(d.UserID, models.NotificationDisposal,
			"Disposal expired",
			"Your disposal request was automatically rejected because it was not reviewed in time. Feel free to submit it again."); err != nil {
			utils.Sugar.Errorw("failed to notify auto-rejection", "disposal_id", d.ID, "err", err)
		}
	}
	if len(stale) > 0 {
		utils.Sugar.Infow("auto-rejected stale disposals", "count", len(stale))
	}
}
