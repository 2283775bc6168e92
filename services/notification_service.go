package services

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"recycly-backend/models"
	"recycly-backend/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type NotificationService struct {
	DB *gorm.DB
}

func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{DB: db}
}

// Create stores an in-app notification row. The background worker picks it up
// for email/push delivery.
func (s *NotificationService) Create(userID string, typ models.NotificationType, title, message string) error {
	notif := models.Notification{
		UserID:  userID,
		Type:    typ,
		Title:   title,
		Message: message,
	}
	return s.DB.Create(&notif).Error
}

// ListForUser returns notifications, newest first.
func (s *NotificationService) ListForUser(userID string, unreadOnly bool, page, size int) ([]models.Notification, int64, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}

	query := s.DB.Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("read = ?", false)
	}

	var total int64
	if err := query.Model(&models.Notification{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var notifs []models.Notification
	err := query.Order("created_at DESC").
		Limit(size).Offset((page - 1) * size).
		Find(&notifs).Error
	return notifs, total, err
}

// MarkRead marks one notification read, scoped to the owner.
func (s *NotificationService) MarkRead(userID, notificationID string) error {
	res := s.DB.Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Update("read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkAllRead marks every unread notification read and returns the count.
func (s *NotificationService) MarkAllRead(userID string) (int64, error) {
	res := s.DB.Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Update("read", true)
	return res.RowsAffected, res.Error
}

// StreamSSE streams new notifications for the authenticated user over
// Server-Sent Events, polling the table on a short ticker.
func (s *NotificationService) StreamSSE(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()

		var cursor time.Time

		var latest models.Notification
		if err := s.DB.
			Where("user_id = ?", userID).
			Order("created_at DESC").
			First(&latest).Error; err == nil {
			cursor = latest.CreatedAt
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Sugar.Errorw("sse init failed", "user_id", userID, "err", err)
		}

		// initial keepalive comment
		w.WriteString(":\n\n")
		w.Flush()

		for {
			select {
			case <-ticker.C:
				var fresh []models.Notification
				err := s.DB.
					Where("user_id = ? AND created_at > ?", userID, cursor).
					Order("created_at ASC").
					Find(&fresh).Error
				if err != nil {
					utils.Sugar.Errorw("sse query failed", "user_id", userID, "err", err)
					continue
				}
				if len(fresh) == 0 {
					continue
				}

				cursor = fresh[len(fresh)-1].CreatedAt
				for _, n := range fresh {
					payload, _ := json.Marshal(n)
					fmt.Fprintf(w, "event: notification\ndata: %s\n\n", payload)
				}
				if err := w.Flush(); err != nil {
					// client disconnected
					return
				}

			case <-c.Context().Done():
				return
			}
		}
	})

	return nil
}
