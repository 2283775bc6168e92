package services

import (
	"fmt"
	"testing"

	"recycly-backend/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.WasteCategory{},
		&models.WasteDisposal{},
		&models.Achievement{},
		&models.UserAchievement{},
		&models.Reward{},
		&models.UserReward{},
		&models.PointTransaction{},
		&models.Notification{},
	))
	return db
}

func createUser(t *testing.T, db *gorm.DB, username string, role models.Role, points int) *models.User {
	t.Helper()
	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Role:     role,
		Points:   points,
		Level:    LevelForPoints(points),
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createCategory(t *testing.T, db *gorm.DB, name string, rate float64) *models.WasteCategory {
	t.Helper()
	category := &models.WasteCategory{
		Name:          name,
		PointsPerUnit: rate,
		Active:        true,
	}
	require.NoError(t, db.Create(category).Error)
	return category
}

func reloadUser(t *testing.T, db *gorm.DB, id string) *models.User {
	t.Helper()
	var user models.User
	require.NoError(t, db.First(&user, "id = ?", id).Error)
	return &user
}

// completeDisposal walks a fresh submission through the full manager flow,
// which distributes rewards as its final step.
func completeDisposal(t *testing.T, svc *DisposalService, disposalID, managerID string) *models.WasteDisposal {
	t.Helper()
	for _, status := range []models.DisposalStatus{
		models.DisposalStatusApproved,
		models.DisposalStatusInProgress,
		models.DisposalStatusCompleted,
	} {
		_, err := svc.TransitionStatus(disposalID, managerID, TransitionInput{To: status})
		require.NoError(t, err)
	}
	disposal, err := svc.GetDisposal(disposalID)
	require.NoError(t, err)
	return disposal
}
