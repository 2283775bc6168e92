package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"recycly-backend/models"
	"recycly-backend/services"
	"recycly-backend/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret")

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

	app := fiber.New()
	SetupAuthRoutes(app, services.NewAuthService(db))
	SetupRewardRoutes(app, services.NewRewardService(db))
	SetupProgressRoutes(app, services.NewPointsService(db), services.NewAchievementService(db))
	return app, db
}

func jsonRequest(t *testing.T, method, path string, body interface{}, token string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestRegisterRequiresValidCode(t *testing.T) {
	app, _ := newTestApp(t)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/v1/auth/register", fiber.Map{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "hunter2hunter2",
		"code":     "000000",
	}, ""))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRegisterLoginAndMe(t *testing.T) {
	app, _ := newTestApp(t)

	utils.SaveCode("alice@example.com", "123456", time.Minute)
	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/v1/auth/register", fiber.Map{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "hunter2hunter2",
		"code":     "123456",
	}, ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var registered struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	decodeBody(t, resp, &registered)
	assert.NotEmpty(t, registered.Token)
	assert.Equal(t, models.RoleUser, registered.User.Role)
	assert.Equal(t, 1, registered.User.Level)

	// The consumed code cannot be replayed.
	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/api/v1/auth/register", fiber.Map{
		"username": "alice2",
		"email":    "alice@example.com",
		"password": "hunter2hunter2",
		"code":     "123456",
	}, ""))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/api/v1/auth/login", fiber.Map{
		"identity": "alice",
		"password": "hunter2hunter2",
	}, ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var logged struct {
		Token string `json:"token"`
	}
	decodeBody(t, resp, &logged)
	require.NotEmpty(t, logged.Token)

	resp, err = app.Test(jsonRequest(t, http.MethodGet, "/api/v1/auth/me", nil, logged.Token))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var me models.User
	decodeBody(t, resp, &me)
	assert.Equal(t, "alice", me.Username)
}

func TestLoginWrongPassword(t *testing.T) {
	app, db := newTestApp(t)
	seedAccount(t, db, "bob", models.RoleUser)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/v1/auth/login", fiber.Map{
		"identity": "bob",
		"password": "wrong-password",
	}, ""))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestProtectedRouteRequiresToken(t *testing.T) {
	app, _ := newTestApp(t)

	resp, err := app.Test(jsonRequest(t, http.MethodGet, "/api/v1/auth/me", nil, ""))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = app.Test(jsonRequest(t, http.MethodGet, "/api/v1/auth/me", nil, "not-a-jwt"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdminRoutesForbiddenForUsers(t *testing.T) {
	app, db := newTestApp(t)
	user := seedAccount(t, db, "carol", models.RoleUser)
	token, err := utils.GenerateToken(user, time.Hour)
	require.NoError(t, err)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/v1/admin/rewards", fiber.Map{
		"title":       "Mug",
		"points_cost": 50,
	}, token))
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestSuperAdminPassesAdminGuard(t *testing.T) {
	app, db := newTestApp(t)
	admin := seedAccount(t, db, "root", models.RoleSuperAdmin)
	token, err := utils.GenerateToken(admin, time.Hour)
	require.NoError(t, err)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/v1/admin/rewards", fiber.Map{
		"title":       "Mug",
		"points_cost": 50,
	}, token))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestLogoutRevokesToken(t *testing.T) {
	app, db := newTestApp(t)
	user := seedAccount(t, db, "dave", models.RoleUser)
	token, err := utils.GenerateToken(user, time.Hour)
	require.NoError(t, err)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/v1/auth/logout", nil, token))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(jsonRequest(t, http.MethodGet, "/api/v1/auth/me", nil, token))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLeaderboardIsPublicShape(t *testing.T) {
	app, db := newTestApp(t)
	viewer := seedAccount(t, db, "viewer", models.RoleUser)
	rich := seedAccount(t, db, "rich", models.RoleUser)
	require.NoError(t, db.Model(rich).Updates(map[string]interface{}{"points": 500, "level": 6}).Error)

	token, err := utils.GenerateToken(viewer, time.Hour)
	require.NoError(t, err)

	resp, err := app.Test(jsonRequest(t, http.MethodGet, "/api/v1/leaderboard", nil, token))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var board []map[string]interface{}
	decodeBody(t, resp, &board)
	require.NotEmpty(t, board)
	assert.Equal(t, "rich", board[0]["username"])
	// Private fields never leak through the public shape.
	_, hasEmail := board[0]["email"]
	assert.False(t, hasEmail)
}

func seedAccount(t *testing.T, db *gorm.DB, username string, role models.Role) *models.User {
	t.Helper()
	hash, err := utils.HashPassword("hunter2hunter2")
	require.NoError(t, err)
	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		Role:         role,
		Level:        1,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}
