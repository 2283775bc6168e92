package workers

import (
	"context"
	"time"

	"recycly-backend/models"
	"recycly-backend/utils"

	"gorm.io/gorm"
)

// NotificationWorker polls undelivered notification rows and fans them out to
// email and push. Delivery is best-effort: a failed channel is logged and the
// row is still marked delivered so the queue cannot wedge on one bad address.
type NotificationWorker struct {
	db       *gorm.DB
	interval time.Duration
	batch    int
}

func NewNotificationWorker(db *gorm.DB) *NotificationWorker {
	return &NotificationWorker{
		db:       db,
		interval: 15 * time.Second,
		batch:    50,
	}
}

func (w *NotificationWorker) Start(ctx context.Context) {
	utils.Sugar.Info("starting notification delivery worker")
	go w.run(ctx)
}

func (w *NotificationWorker) run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			utils.Sugar.Info("notification worker stopped")
			return
		case <-ticker.C:
			if err := w.deliverBatch(ctx); err != nil {
				utils.Sugar.Errorw("notification delivery batch failed", "err", err)
			}
		}
	}
}

func (w *NotificationWorker) deliverBatch(ctx context.Context) error {
	var pending []models.Notification
	err := w.db.Where("delivered = ?", false).
		Order("created_at ASC").
		Limit(w.batch).
		Find(&pending).Error
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	for _, n := range pending {
		var user models.User
		if err := w.db.First(&user, "id = ?", n.UserID).Error; err != nil {
			utils.Sugar.Warnw("notification for unknown user", "notification_id", n.ID, "user_id", n.UserID)
			w.markDelivered(n.ID)
			continue
		}

		if user.Email != "" {
			if err := utils.SendMail(user.Email, n.Title, n.Message); err != nil {
				utils.Sugar.Warnw("email delivery failed",
					"notification_id", n.ID, "user_id", user.ID, "err", err)
			}
		}

		if user.DeviceToken != "" {
			pushCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			if err := utils.SendPush(pushCtx, user.DeviceToken, n.Title, n.Message); err != nil {
				utils.Sugar.Warnw("push delivery failed",
					"notification_id", n.ID, "user_id", user.ID, "err", err)
			}
			cancel()
		}

		w.markDelivered(n.ID)
	}

	utils.Sugar.Infow("notification batch delivered", "count", len(pending))
	return nil
}

func (w *NotificationWorker) markDelivered(id string) {
	if err := w.db.Model(&models.Notification{}).
		Where("id = ?", id).
		Update("delivered", true).Error; err != nil {
		utils.Sugar.Errorw("failed to mark notification delivered", "notification_id", id, "err", err)
	}
}
