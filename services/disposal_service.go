package services

import (
	"errors"
	"fmt"
	"time"

	"recycly-backend/models"
	"recycly-backend/utils"

	"gorm.io/gorm"
)

type DisposalService struct {
	DB *gorm.DB
}

func NewDisposalService(db *gorm.DB) *DisposalService {
	return &DisposalService{DB: db}
}

// SubmitDisposalInput is the payload for a new disposal submission.
type SubmitDisposalInput struct {
	CategoryID string
	Quantity   float64
	Notes      string
	PhotoURL   string
}

// SubmitDisposal creates a PENDING disposal for the user.
func (s *DisposalService) SubmitDisposal(userID string, in SubmitDisposalInput) (*models.WasteDisposal, error) {
	if in.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	var category models.WasteCategory
	if err := s.DB.First(&category, "id = ? AND active = ?", in.CategoryID, true).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}

	disposal := models.WasteDisposal{
		UserID:     userID,
		CategoryID: category.ID,
		Quantity:   in.Quantity,
		Status:     models.DisposalStatusPending,
		Notes:      utils.SanitizeText(in.Notes),
		PhotoURL:   in.PhotoURL,
	}
	if err := s.DB.Create(&disposal).Error; err != nil {
		return nil, err
	}
	disposal.Category = &category
	return &disposal, nil
}

// GetDisposal loads one disposal with its relations.
func (s *DisposalService) GetDisposal(id string) (*models.WasteDisposal, error) {
	var disposal models.WasteDisposal
	err := s.DB.Preload("Category").Preload("User").Preload("Manager").
		First(&disposal, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDisposalNotFound
	}
	if err != nil {
		return nil, err
	}
	return &disposal, nil
}

// ListUserDisposals returns a user's submissions, newest first.
func (s *DisposalService) ListUserDisposals(userID string, page, size int) ([]models.WasteDisposal, int64, error) {
	return s.listDisposals(s.DB.Where("user_id = ?", userID), page, size)
}

// ListDisposalsByStatus returns disposals in a given status for the manager queue.
func (s *DisposalService) ListDisposalsByStatus(status models.DisposalStatus, page, size int) ([]models.WasteDisposal, int64, error) {
	return s.listDisposals(s.DB.Where("status = ?", status), page, size)
}

// ListManagerDisposals returns disposals assigned to a manager.
func (s *DisposalService) ListManagerDisposals(managerID string, page, size int) ([]models.WasteDisposal, int64, error) {
	return s.listDisposals(s.DB.Where("manager_id = ?", managerID), page, size)
}

func (s *DisposalService) listDisposals(query *gorm.DB, page, size int) ([]models.WasteDisposal, int64, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}

	var total int64
	if err := query.Model(&models.WasteDisposal{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var disposals []models.WasteDisposal
	err := query.Preload("Category").
		Order("created_at DESC").
		Limit(size).Offset((page - 1) * size).
		Find(&disposals).Error
	return disposals, total, err
}

// TransitionInput carries a requested status change from a waste manager.
type TransitionInput struct {
	To     models.DisposalStatus
	Reason string // for rejections
}

// TransitionStatus validates and applies a status change through the
// transition table. Approving a PENDING disposal assigns the acting manager.
// Completing a disposal triggers the reward distribution pipeline.
func (s *DisposalService) TransitionStatus(disposalID, managerID string, in TransitionInput) (*models.WasteDisposal, error) {
	var disposal models.WasteDisposal
	if err := s.DB.First(&disposal, "id = ?", disposalID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDisposalNotFound
		}
		return nil, err
	}

	if !disposal.Status.CanTransition(in.To) {
		return nil, ErrInvalidTransition
	}

	// Once assigned, only the assigned manager may keep processing.
	if disposal.ManagerID != nil && *disposal.ManagerID != managerID {
		return nil, ErrNotAssignedManager
	}

	switch in.To {
	case models.DisposalStatusApproved:
		disposal.ManagerID = &managerID
	case models.DisposalStatusRejected:
		disposal.RejectionReason = utils.SanitizeText(in.Reason)
	case models.DisposalStatusCompleted:
		now := time.Now()
		disposal.CompletedAt = &now
	}
	disposal.Status = in.To

	if err := s.DB.Save(&disposal).Error; err != nil {
		return nil, err
	}

	if in.To == models.DisposalStatusCompleted {
		if err := s.DistributeWasteDisposalRewards(disposal.ID); err != nil {
			// Status is already COMPLETED; the one-shot guard stays unset so
			// an admin can re-trigger distribution.
			return nil, err
		}
	}

	if in.To == models.DisposalStatusRejected {
		s.notifyAsync(disposal.UserID, models.NotificationDisposal,
			"Disposal rejected",
			fmt.Sprintf("Your disposal was rejected: %s", disposal.RejectionReason))
	}

	return &disposal, nil
}

// CalculateUserRewards runs the pure calculator against a user's current
// points and level.
func (s *DisposalService) CalculateUserRewards(userID string, pointsPerUnit, quantity float64) (*RewardCalculation, error) {
	var user models.User
	if err := s.DB.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	calc := CalculateUserReward(pointsPerUnit, quantity, user.Points, user.Level)
	return &calc, nil
}

// CalculateManagerRewards runs the pure calculator with the manager share
// and bonus curve.
func (s *DisposalService) CalculateManagerRewards(managerID string, pointsPerUnit, quantity float64) (*RewardCalculation, error) {
	var manager models.User
	if err := s.DB.First(&manager, "id = ?", managerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	calc := CalculateManagerReward(pointsPerUnit, quantity, manager.Points, manager.Level)
	return &calc, nil
}

// DistributeWasteDisposalRewards credits a completed disposal to both the
// disposing user and the assigned manager.
//
// Preconditions are checked before any mutation; the point increments, level
// recomputation, ledger entries, one-shot distributed flag and achievement
// checks all commit in one transaction. Notification delivery happens after
// commit, best-effort.
func (s *DisposalService) DistributeWasteDisposalRewards(disposalID string) error {
	var disposal models.WasteDisposal
	if err := s.DB.Preload("Category").First(&disposal, "id = ?", disposalID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrDisposalNotFound
		}
		return err
	}

	if disposal.Status != models.DisposalStatusCompleted {
		return ErrDisposalNotCompleted
	}
	if disposal.ManagerID == nil {
		return ErrManagerNotAssigned
	}
	if disposal.RewardsDistributed {
		return ErrRewardsAlreadyDistributed
	}
	if disposal.Category == nil {
		return ErrCategoryNotFound
	}

	rate := disposal.Category.PointsPerUnit
	userCalc, err := s.CalculateUserRewards(disposal.UserID, rate, disposal.Quantity)
	if err != nil {
		return err
	}
	managerCalc, err := s.CalculateManagerRewards(*disposal.ManagerID, rate, disposal.Quantity)
	if err != nil {
		return err
	}

	points := NewPointsService(s.DB)
	achievements := NewAchievementService(s.DB)

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		// One-shot guard re-checked inside the transaction: a concurrent
		// distribution for the same disposal loses this conditional update.
		res := tx.Model(&models.WasteDisposal{}).
			Where("id = ? AND rewards_distributed = ?", disposal.ID, false).
			Updates(map[string]interface{}{
				"rewards_distributed":   true,
				"points_earned":         userCalc.TotalPoints,
				"manager_points_earned": managerCalc.TotalPoints,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRewardsAlreadyDistributed
		}

		userDesc := fmt.Sprintf("Recycled %.2f kg of %s", disposal.Quantity, disposal.Category.Name)
		if err := points.AddPointsTx(tx, disposal.UserID, userCalc.TotalPoints, models.TransactionEarned, userDesc, disposal.ID); err != nil {
			return err
		}

		managerDesc := fmt.Sprintf("Processed %.2f kg of %s", disposal.Quantity, disposal.Category.Name)
		if err := points.AddPointsTx(tx, *disposal.ManagerID, managerCalc.TotalPoints, models.TransactionEarned, managerDesc, disposal.ID); err != nil {
			return err
		}

		if err := achievements.CheckAndAwardTx(tx, disposal.UserID); err != nil {
			return err
		}
		return achievements.CheckAndAwardTx(tx, *disposal.ManagerID)
	})
	if err != nil {
		return err
	}

	utils.Sugar.Infow("disposal rewards distributed",
		"disposal_id", disposal.ID,
		"user_id", disposal.UserID,
		"user_points", userCalc.TotalPoints,
		"manager_id", *disposal.ManagerID,
		"manager_points", managerCalc.TotalPoints,
	)

	s.notifyAsync(disposal.UserID, models.NotificationReward,
		"Points earned!",
		rewardMessage(userCalc, disposal.Category.Name))
	s.notifyAsync(*disposal.ManagerID, models.NotificationReward,
		"Processing reward",
		rewardMessage(managerCalc, disposal.Category.Name))

	return nil
}

func rewardMessage(calc *RewardCalculation, categoryName string) string {
	msg := fmt.Sprintf("You earned %d points (%d base + %d bonus) for %s recycling",
		calc.TotalPoints, calc.BasePoints, calc.BonusPoints, categoryName)
	if calc.LevelUp {
		msg += fmt.Sprintf(". Level up! You are now level %d", calc.NewLevel)
	}
	return msg
}

// notifyAsync fires a notification without blocking or failing the caller.
// Delivery failures are logged and swallowed.
func (s *DisposalService) notifyAsync(userID string, typ models.NotificationType, title, message string) {
	go func() {
		notifications := NewNotificationService(s.DB)
		if err := notifications.Create(userID, typ, title, message); err != nil {
			utils.Sugar.Errorw("failed to create notification",
				"user_id", userID, "title", title, "err", err)
		}
	}()
}
