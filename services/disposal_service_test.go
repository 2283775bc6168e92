package services

import (
	"testing"

	"recycly-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitDisposal(t *testing.T) {
	db := newTestDB(t)
	svc := NewDisposalService(db)
	user := createUser(t, db, "alice", models.RoleUser, 0)
	plastic := createCategory(t, db, "Plastic", 10)

	disposal, err := svc.SubmitDisposal(user.ID, SubmitDisposalInput{
		CategoryID: plastic.ID,
		Quantity:   2.5,
		Notes:      "two bags of bottles",
	})
	require.NoError(t, err)
	assert.Equal(t, models.DisposalStatusPending, disposal.Status)
	assert.Equal(t, 2.5, disposal.Quantity)
	assert.False(t, disposal.RewardsDistributed)
	assert.Nil(t, disposal.ManagerID)
}

func TestSubmitDisposalValidation(t *testing.T) {
	db := newTestDB(t)
	svc := NewDisposalService(db)
	user := createUser(t, db, "alice", models.RoleUser, 0)
	plastic := createCategory(t, db, "Plastic", 10)

	_, err := svc.SubmitDisposal(user.ID, SubmitDisposalInput{CategoryID: plastic.ID, Quantity: 0})
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.SubmitDisposal(user.ID, SubmitDisposalInput{CategoryID: plastic.ID, Quantity: -1})
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.SubmitDisposal(user.ID, SubmitDisposalInput{
		CategoryID: "00000000-0000-0000-0000-000000000000",
		Quantity:   1,
	})
	assert.ErrorIs(t, err, ErrCategoryNotFound)
}

func TestSubmitDisposalInactiveCategory(t *testing.T) {
	db := newTestDB(t)
	svc := NewDisposalService(db)
	user := createUser(t, db, "alice", models.RoleUser, 0)
	retired := createCategory(t, db, "Asbestos", 50)
	require.NoError(t, db.Model(retired).Update("active", false).Error)

	_, err := svc.SubmitDisposal(user.ID, SubmitDisposalInput{CategoryID: retired.ID, Quantity: 1})
	assert.ErrorIs(t, err, ErrCategoryNotFound)
}

func TestTransitionApprovalAssignsManager(t *testing.T) {
	db := newTestDB(t)
	svc := NewDisposalService(db)
	user := createUser(t, db, "alice", models.RoleUser, 0)
	manager := createUser(t, db, "mgr", models.RoleWasteManager, 0)
	plastic := createCategory(t, db, "Plastic", 10)

	disposal, err := svc.SubmitDisposal(user.ID, SubmitDisposalInput{CategoryID: plastic.ID, Quantity: 1})
	require.NoError(t, err)

	updated, err := svc.TransitionStatus(disposal.ID, manager.ID, TransitionInput{To: models.DisposalStatusApproved})
	require.NoError(t, err)
	assert.Equal(t, models.DisposalStatusApproved, updated.Status)
	require.NotNil(t, updated.ManagerID)
	assert.Equal(t, manager.ID, *updated.ManagerID)
}

func TestTransitionRejectsIllegalMoves(t *testing.T) {
	db := newTestDB(t)
	svc := NewDisposalService(db)
	user := createUser(t, db, "alice", models.RoleUser, 0)
	manager := createUser(t, db, "mgr", models.RoleWasteManager, 0)
	plastic := createCategory(t, db, "Plastic", 10)

	disposal, err := svc.SubmitDisposal(user.ID, SubmitDisposalInput{CategoryID: plastic.ID, Quantity: 1})
	require.NoError(t, err)

	// PENDING cannot jump straight to COMPLETED or IN_PROGRESS.
	_, err = svc.TransitionStatus(disposal.ID, manager.ID, TransitionInput{To: models.DisposalStatusCompleted})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = svc.TransitionStatus(disposal.ID, manager.ID, TransitionInput{To: models.DisposalStatusInProgress})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// REJECTED is terminal.
	_, err = svc.TransitionStatus(disposal.ID, manager.ID, TransitionInput{To: models.DisposalStatusRejected, Reason: "blurry photo"})
	require.NoError(t, err)
	_, err = svc.TransitionStatus(disposal.ID, manager.ID, TransitionInput{To: models.DisposalStatusApproved})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransitionOtherManagerForbidden(t *testing.T) {
	db := newTestDB(t)
	svc := NewDisposalService(db)
	user := createUser(t, db, "alice", models.RoleUser, 0)
	m1 := createUser(t, db, "mgr1", models.RoleWasteManager, 0)
	m2 := createUser(t, db, "mgr2", models.RoleWasteManager, 0)
	plastic := createCategory(t, db, "Plastic", 10)

	disposal, err := svc.SubmitDisposal(user.ID, SubmitDisposalInput{CategoryID: plastic.ID, Quantity: 1})
	require.NoError(t, err)

	_, err = svc.TransitionStatus(disposal.ID, m1.ID, TransitionInput{To: models.DisposalStatusApproved})
	require.NoError(t, err)

	_, err = svc.TransitionStatus(disposal.ID, m2.ID, TransitionInput{To: models.DisposalStatusInProgress})
	assert.ErrorIs(t, err, ErrNotAssignedManager)
}

func TestRejectionStoresReason(t *testing.T) {
	db := newTestDB(t)
	svc := NewDisposalService(db)
	user := createUser(t, db, "alice", models.RoleUser, 0)
	manager := createUser(t, db, "mgr", models.RoleWasteManager, 0)
	plastic := createCategory(t, db, "Plastic", 10)

	disposal, err := svc.SubmitDisposal(user.ID, SubmitDisposalInput{CategoryID: plastic.ID, Quantity: 1})
	require.NoError(t, err)

	updated, err := svc.TransitionStatus(disposal.ID, manager.ID, TransitionInput{
		To:     models.DisposalStatusRejected,
		Reason: "not recyclable material",
	})
	require.NoError(t, err)
	assert.Equal(t, models.DisposalStatusRejected, updated.Status)
	assert.Equal(t, "not recyclable material", updated.RejectionReason)

	// No points move on rejection.
	assert.Equal(t, 0, reloadUser(t, db, user.ID).Points)
}

func TestCompletedDisposalDistributesRewards(t *testing.T) {
	db := newTestDB(t)
	svc := NewDisposalService(db)
	// Level-3 user at 200 points, level-10 manager at 900.
	user := createUser(t, db, "alice", models.RoleUser, 200)
	manager := createUser(t, db, "mgr", models.RoleWasteManager, 900)
	plastic := createCategory(t, db, "Plastic", 10)

	disposal, err := svc.SubmitDisposal(user.ID, SubmitDisposalInput{CategoryID: plastic.ID, Quantity: 5})
	require.NoError(t, err)

	done := completeDisposal(t, svc, disposal.ID, manager.ID)
	assert.Equal(t, models.DisposalStatusCompleted, done.Status)
	assert.True(t, done.RewardsDistributed)
	assert.NotNil(t, done.CompletedAt)
	assert.Equal(t, 65, done.PointsEarned)       // 50 base + 15 bonus at level 3
	assert.Equal(t, 6, done.ManagerPointsEarned) // 5 base + 1 bonus, capped at 25%

	gotUser := reloadUser(t, db, user.ID)
	assert.Equal(t, 265, gotUser.Points)
	assert.Equal(t, 3, gotUser.Level)

	gotManager := reloadUser(t, db, manager.ID)
	assert.Equal(t, 906, gotManager.Points)
	assert.Equal(t, 10, gotManager.Level)

	var userEntry models.PointTransaction
	require.NoError(t, db.Where("user_id = ? AND reference = ?", user.ID, disposal.ID).First(&userEntry).Error)
	assert.Equal(t, models.TransactionEarned, userEntry.Type)
	assert.Equal(t, 65, userEntry.Amount)
}

func TestDistributeIsOneShot(t *testing.T) {
	db := newTestDB(t)
	svc := NewDisposalService(db)
	user := createUser(t, db, "alice", models.RoleUser, 0)
	manager := createUser(t, db, "mgr", models.RoleWasteManager, 0)
	plastic := createCategory(t, db, "Plastic", 10)

	disposal, err := svc.SubmitDisposal(user.ID, SubmitDisposalInput{CategoryID: plastic.ID, Quantity: 5})
	require.NoError(t, err)
	completeDisposal(t, svc, disposal.ID, manager.ID)

	before := reloadUser(t, db, user.ID).Points
	err = svc.DistributeWasteDisposalRewards(disposal.ID)
	assert.ErrorIs(t, err, ErrRewardsAlreadyDistributed)
	assert.Equal(t, before, reloadUser(t, db, user.ID).Points)
}

func TestDistributePreconditions(t *testing.T) {
	db := newTestDB(t)
	svc := NewDisposalService(db)
	user := createUser(t, db, "alice", models.RoleUser, 0)
	plastic := createCategory(t, db, "Plastic", 10)

	err := svc.DistributeWasteDisposalRewards("00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, ErrDisposalNotFound)

	disposal, err := svc.SubmitDisposal(user.ID, SubmitDisposalInput{CategoryID: plastic.ID, Quantity: 1})
	require.NoError(t, err)

	err = svc.DistributeWasteDisposalRewards(disposal.ID)
	assert.ErrorIs(t, err, ErrDisposalNotCompleted)

	// COMPLETED but no manager recorded: refuse rather than credit half.
	require.NoError(t, db.Model(&models.WasteDisposal{}).Where("id = ?", disposal.ID).
		Update("status", models.DisposalStatusCompleted).Error)
	err = svc.DistributeWasteDisposalRewards(disposal.ID)
	assert.ErrorIs(t, err, ErrManagerNotAssigned)
}

func TestDistributeRollsBackOnFailure(t *testing.T) {
	db := newTestDB(t)
	svc := NewDisposalService(db)
	user := createUser(t, db, "alice", models.RoleUser, 0)
	manager := createUser(t, db, "mgr", models.RoleWasteManager, 0)
	plastic := createCategory(t, db, "Plastic", 10)

	disposal, err := svc.SubmitDisposal(user.ID, SubmitDisposalInput{CategoryID: plastic.ID, Quantity: 5})
	require.NoError(t, err)
	now := disposal.CreatedAt
	require.NoError(t, db.Model(&models.WasteDisposal{}).Where("id = ?", disposal.ID).
		Updates(map[string]interface{}{
			"status":       models.DisposalStatusCompleted,
			"manager_id":   manager.ID,
			"completed_at": now,
		}).Error)

	// Force the ledger write to fail mid-transaction.
	require.NoError(t, db.Migrator().DropTable(&models.PointTransaction{}))

	err = svc.DistributeWasteDisposalRewards(disposal.ID)
	require.Error(t, err)

	// Everything rolled back: no points, and the one-shot guard is still
	// unset so the distribution can be retried.
	assert.Equal(t, 0, reloadUser(t, db, user.ID).Points)
	assert.Equal(t, 0, reloadUser(t, db, manager.ID).Points)

	var got models.WasteDisposal
	require.NoError(t, db.First(&got, "id = ?", disposal.ID).Error)
	assert.False(t, got.RewardsDistributed)
	assert.Equal(t, 0, got.PointsEarned)

	// Retry succeeds once the failure is repaired.
	require.NoError(t, db.AutoMigrate(&models.PointTransaction{}))
	require.NoError(t, svc.DistributeWasteDisposalRewards(disposal.ID))
	assert.Equal(t, 55, reloadUser(t, db, user.ID).Points) // 50 base + 10% level-1 bonus
}

func TestListDisposals(t *testing.T) {
	db := newTestDB(t)
	svc := NewDisposalService(db)
	user := createUser(t, db, "alice", models.RoleUser, 0)
	other := createUser(t, db, "bob", models.RoleUser, 0)
	plastic := createCategory(t, db, "Plastic", 10)

	for i := 0; i < 3; i++ {
		_, err := svc.SubmitDisposal(user.ID, SubmitDisposalInput{CategoryID: plastic.ID, Quantity: 1})
		require.NoError(t, err)
	}
	_, err := svc.SubmitDisposal(other.ID, SubmitDisposalInput{CategoryID: plastic.ID, Quantity: 1})
	require.NoError(t, err)

	mine, total, err := svc.ListUserDisposals(user.ID, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, mine, 3)

	pending, total, err := svc.ListDisposalsByStatus(models.DisposalStatusPending, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	assert.Len(t, pending, 4)
}
