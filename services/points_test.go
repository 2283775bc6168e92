package services

import (
	"testing"

	"recycly-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddPointsRecomputesLevel(t *testing.T) {
	db := newTestDB(t)
	svc := NewPointsService(db)
	user := createUser(t, db, "alice", models.RoleUser, 95)

	require.NoError(t, svc.AddPointsTx(db, user.ID, 10, models.TransactionEarned, "test credit", ""))

	got := reloadUser(t, db, user.ID)
	assert.Equal(t, 105, got.Points)
	assert.Equal(t, 2, got.Level)

	var entries []models.PointTransaction
	require.NoError(t, db.Where("user_id = ?", user.ID).Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.Equal(t, models.TransactionEarned, entries[0].Type)
	assert.Equal(t, 10, entries[0].Amount)
}

func TestAddPointsUnknownUser(t *testing.T) {
	db := newTestDB(t)
	svc := NewPointsService(db)

	err := svc.AddPointsTx(db, "00000000-0000-0000-0000-000000000000", 10, models.TransactionEarned, "test", "")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestSpendPointsRecomputesLevelDown(t *testing.T) {
	db := newTestDB(t)
	svc := NewPointsService(db)
	user := createUser(t, db, "bob", models.RoleUser, 150)
	require.Equal(t, 2, user.Level)

	require.NoError(t, svc.SpendPointsTx(db, user.ID, 60, "test redemption", ""))

	got := reloadUser(t, db, user.ID)
	assert.Equal(t, 90, got.Points)
	assert.Equal(t, 1, got.Level)

	var entry models.PointTransaction
	require.NoError(t, db.Where("user_id = ?", user.ID).First(&entry).Error)
	assert.Equal(t, models.TransactionSpent, entry.Type)
	assert.Equal(t, -60, entry.Amount)
}

func TestSpendPointsInsufficient(t *testing.T) {
	db := newTestDB(t)
	svc := NewPointsService(db)
	user := createUser(t, db, "carol", models.RoleUser, 30)

	err := svc.SpendPointsTx(db, user.ID, 60, "too expensive", "")
	assert.ErrorIs(t, err, ErrInsufficientPoints)

	// Balance untouched, no ledger entry written.
	got := reloadUser(t, db, user.ID)
	assert.Equal(t, 30, got.Points)

	var count int64
	db.Model(&models.PointTransaction{}).Where("user_id = ?", user.ID).Count(&count)
	assert.Zero(t, count)
}

func TestSpendPointsUnknownUser(t *testing.T) {
	db := newTestDB(t)
	svc := NewPointsService(db)

	err := svc.SpendPointsTx(db, "00000000-0000-0000-0000-000000000000", 10, "test", "")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestPointsHistoryPagination(t *testing.T) {
	db := newTestDB(t)
	svc := NewPointsService(db)
	user := createUser(t, db, "dave", models.RoleUser, 0)

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.AddPointsTx(db, user.ID, 10, models.TransactionEarned, "credit", ""))
	}

	entries, total, err := svc.History(user.ID, 1, 3)
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	assert.Len(t, entries, 3)

	entries, _, err = svc.History(user.ID, 2, 3)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestAuditLedgerDrift(t *testing.T) {
	db := newTestDB(t)
	svc := NewPointsService(db)

	clean := createUser(t, db, "clean", models.RoleUser, 0)
	require.NoError(t, svc.AddPointsTx(db, clean.ID, 50, models.TransactionEarned, "credit", ""))

	// A counter mutated outside the points service drifts from its ledger.
	drifter := createUser(t, db, "drifter", models.RoleUser, 0)
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", drifter.ID).
		Update("points", 999).Error)

	drifted, err := svc.AuditLedgerDrift()
	require.NoError(t, err)
	assert.Equal(t, 1, drifted)
}
