package services

import (
	"recycly-backend/models"
	"recycly-backend/utils"

	"gorm.io/gorm"
)

// PointsService centralizes every mutation of User.Points. The counter and
// level are updated in a single UPDATE with SQL expressions so concurrent
// mutations never lose increments, and level can never drift from
// points/100 + 1. An append-only PointTransaction row is written alongside
// each mutation.
type PointsService struct {
	DB *gorm.DB
}

func NewPointsService(db *gorm.DB) *PointsService {
	return &PointsService{DB: db}
}

// AddPointsTx atomically credits (or debits, with a negative amount) a user's
// balance inside the caller's transaction and appends the ledger entry.
// Level is recomputed from the pre-update balance in the same statement.
func (s *PointsService) AddPointsTx(tx *gorm.DB, userID string, amount int, txType models.TransactionType, description, reference string) error {
	res := tx.Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"points": gorm.Expr("points + ?", amount),
			"level":  gorm.Expr("(points + ?) / ? + 1", amount, PointsPerLevel),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}

	entry := models.PointTransaction{
		UserID:      userID,
		Type:        txType,
		Amount:      amount,
		Description: description,
		Reference:   reference,
	}
	return tx.Create(&entry).Error
}

// SpendPointsTx atomically deducts cost from a user's balance, guarded by a
// points >= cost condition so two concurrent redemptions cannot overspend.
func (s *PointsService) SpendPointsTx(tx *gorm.DB, userID string, cost int, description, reference string) error {
	res := tx.Model(&models.User{}).
		Where("id = ? AND points >= ?", userID, cost).
		Updates(map[string]interface{}{
			"points": gorm.Expr("points - ?", cost),
			"level":  gorm.Expr("(points - ?) / ? + 1", cost, PointsPerLevel),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := tx.Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrUserNotFound
		}
		return ErrInsufficientPoints
	}

	entry := models.PointTransaction{
		UserID:      userID,
		Type:        models.TransactionSpent,
		Amount:      -cost,
		Description: description,
		Reference:   reference,
	}
	return tx.Create(&entry).Error
}

// History returns a user's ledger, newest first.
func (s *PointsService) History(userID string, page, size int) ([]models.PointTransaction, int64, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}

	var total int64
	if err := s.DB.Model(&models.PointTransaction{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []models.PointTransaction
	err := s.DB.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(size).Offset((page - 1) * size).
		Find(&entries).Error
	return entries, total, err
}

// AuditLedgerDrift compares each user's counter against the sum of their
// ledger and logs discrepancies. The counter is authoritative; the audit
// only reports, it never mutates.
func (s *PointsService) AuditLedgerDrift() (int, error) {
	type row struct {
		ID        string
		Username  string
		Points    int
		LedgerSum int
	}
	var rows []row
	err := s.DB.Model(&models.User{}).
		Select("users.id, users.username, users.points, COALESCE(SUM(point_transactions.amount), 0) AS ledger_sum").
		Joins("LEFT JOIN point_transactions ON point_transactions.user_id = users.id").
		Where("users.deleted_at IS NULL").
		Group("users.id, users.username, users.points").
		Scan(&rows).Error
	if err != nil {
		return 0, err
	}

	drifted := 0
	for _, r := range rows {
		if r.Points != r.LedgerSum {
			drifted++
			utils.Sugar.Warnw("point ledger drift detected",
				"user_id", r.ID,
				"username", r.Username,
				"counter", r.Points,
				"ledger_sum", r.LedgerSum,
			)
		}
	}
	return drifted, nil
}
