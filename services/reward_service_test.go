package services

import (
	"testing"
	"time"

	"recycly-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func createReward(t *testing.T, db *gorm.DB, title string, cost, stock int) *models.Reward {
	t.Helper()
	reward := &models.Reward{
		Title:      title,
		PointsCost: cost,
		Stock:      stock,
		Status:     models.RewardStatusPublished,
	}
	require.NoError(t, db.Create(reward).Error)
	return reward
}

func TestRedeemDeductsPointsAndStock(t *testing.T) {
	db := newTestDB(t)
	svc := NewRewardService(db)
	user := createUser(t, db, "alice", models.RoleUser, 100)
	reward := createReward(t, db, "Tote Bag", 60, 2)

	redemption, err := svc.Redeem(user.ID, reward.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RedemptionStatusPending, redemption.Status)
	assert.Equal(t, 60, redemption.PointsSpent)

	got := reloadUser(t, db, user.ID)
	assert.Equal(t, 40, got.Points)
	assert.Equal(t, 1, got.Level) // level recomputed downward with the spend

	var stocked models.Reward
	require.NoError(t, db.First(&stocked, "id = ?", reward.ID).Error)
	assert.Equal(t, 1, stocked.Stock)

	var entry models.PointTransaction
	require.NoError(t, db.Where("user_id = ? AND type = ?", user.ID, models.TransactionSpent).First(&entry).Error)
	assert.Equal(t, -60, entry.Amount)
}

func TestRedeemInsufficientPoints(t *testing.T) {
	db := newTestDB(t)
	svc := NewRewardService(db)
	user := createUser(t, db, "alice", models.RoleUser, 30)
	reward := createReward(t, db, "Tote Bag", 60, 2)

	_, err := svc.Redeem(user.ID, reward.ID)
	assert.ErrorIs(t, err, ErrInsufficientPoints)

	// Nothing changed: balance, stock, no redemption row.
	assert.Equal(t, 30, reloadUser(t, db, user.ID).Points)
	var stocked models.Reward
	require.NoError(t, db.First(&stocked, "id = ?", reward.ID).Error)
	assert.Equal(t, 2, stocked.Stock)
	var count int64
	db.Model(&models.UserReward{}).Count(&count)
	assert.Zero(t, count)
}

func TestRedeemUnavailableReward(t *testing.T) {
	db := newTestDB(t)
	svc := NewRewardService(db)
	user := createUser(t, db, "alice", models.RoleUser, 500)

	draft := createReward(t, db, "Draft Mug", 10, -1)
	require.NoError(t, db.Model(draft).Update("status", models.RewardStatusDraft).Error)
	_, err := svc.Redeem(user.ID, draft.ID)
	assert.ErrorIs(t, err, ErrRewardUnavailable)

	soldOut := createReward(t, db, "Sold Out", 10, 0)
	_, err = svc.Redeem(user.ID, soldOut.ID)
	assert.ErrorIs(t, err, ErrRewardUnavailable)

	expired := createReward(t, db, "Expired", 10, -1)
	past := time.Now().Add(-time.Hour)
	require.NoError(t, db.Model(expired).Update("expiry_date", past).Error)
	_, err = svc.Redeem(user.ID, expired.ID)
	assert.ErrorIs(t, err, ErrRewardUnavailable)

	_, err = svc.Redeem(user.ID, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, ErrRewardNotFound)
}

func TestRedeemUnlimitedStock(t *testing.T) {
	db := newTestDB(t)
	svc := NewRewardService(db)
	user := createUser(t, db, "alice", models.RoleUser, 100)
	reward := createReward(t, db, "Digital Badge", 10, -1)

	_, err := svc.Redeem(user.ID, reward.ID)
	require.NoError(t, err)

	var stocked models.Reward
	require.NoError(t, db.First(&stocked, "id = ?", reward.ID).Error)
	assert.Equal(t, -1, stocked.Stock)
}

func TestRejectionRefundsPoints(t *testing.T) {
	db := newTestDB(t)
	svc := NewRewardService(db)
	user := createUser(t, db, "alice", models.RoleUser, 100)
	reward := createReward(t, db, "Tote Bag", 60, 2)

	redemption, err := svc.Redeem(user.ID, reward.ID)
	require.NoError(t, err)
	require.Equal(t, 40, reloadUser(t, db, user.ID).Points)

	resolved, err := svc.ResolveRedemption(redemption.ID, models.RedemptionStatusRejected)
	require.NoError(t, err)
	assert.Equal(t, models.RedemptionStatusRejected, resolved.Status)
	assert.True(t, resolved.Refunded)

	got := reloadUser(t, db, user.ID)
	assert.Equal(t, 100, got.Points)
	assert.Equal(t, 2, got.Level)

	var stocked models.Reward
	require.NoError(t, db.First(&stocked, "id = ?", reward.ID).Error)
	assert.Equal(t, 2, stocked.Stock)
}

func TestRedemptionLifecycle(t *testing.T) {
	db := newTestDB(t)
	seedAchievements(t, db)
	svc := NewRewardService(db)
	user := createUser(t, db, "alice", models.RoleUser, 100)
	reward := createReward(t, db, "Tote Bag", 60, -1)

	redemption, err := svc.Redeem(user.ID, reward.ID)
	require.NoError(t, err)

	// PENDING cannot jump to COMPLETED.
	_, err = svc.ResolveRedemption(redemption.ID, models.RedemptionStatusCompleted)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	approved, err := svc.ResolveRedemption(redemption.ID, models.RedemptionStatusApproved)
	require.NoError(t, err)
	assert.Equal(t, models.RedemptionStatusApproved, approved.Status)

	completed, err := svc.ResolveRedemption(redemption.ID, models.RedemptionStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.RedemptionStatusCompleted, completed.Status)

	// Completing the redemption triggers the redeemed-count rule.
	unlocked, err := NewAchievementService(db).ListUserAchievements(user.ID)
	require.NoError(t, err)
	codes := make([]string, 0, len(unlocked))
	for _, ua := range unlocked {
		codes = append(codes, ua.Achievement.Code)
	}
	assert.Contains(t, codes, "REDEEM_1")

	// COMPLETED is terminal.
	_, err = svc.ResolveRedemption(redemption.ID, models.RedemptionStatusRejected)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.ResolveRedemption("00000000-0000-0000-0000-000000000000", models.RedemptionStatusApproved)
	assert.ErrorIs(t, err, ErrRedemptionNotFound)
}

func TestRejectionRefundIsOneShot(t *testing.T) {
	db := newTestDB(t)
	svc := NewRewardService(db)
	user := createUser(t, db, "alice", models.RoleUser, 100)
	reward := createReward(t, db, "Tote Bag", 60, -1)

	redemption, err := svc.Redeem(user.ID, reward.ID)
	require.NoError(t, err)

	_, err = svc.ResolveRedemption(redemption.ID, models.RedemptionStatusRejected)
	require.NoError(t, err)
	require.Equal(t, 100, reloadUser(t, db, user.ID).Points)

	// A repeated rejection is an illegal transition and cannot double-refund.
	_, err = svc.ResolveRedemption(redemption.ID, models.RedemptionStatusRejected)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, 100, reloadUser(t, db, user.ID).Points)
}
