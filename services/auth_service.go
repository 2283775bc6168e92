package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"recycly-backend/models"
	"recycly-backend/utils"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/oauth2"
	oauthgithub "golang.org/x/oauth2/github"
	oauthgoogle "golang.org/x/oauth2/google"
	"gorm.io/gorm"
)

const (
	tokenTTL        = 72 * time.Hour
	emailCodeTTL    = 10 * time.Minute
	emailCooldown   = 60 * time.Second
	oauthStateTTL   = 10 * time.Minute
	twoFactorPrefix = "2fa:login:"
)

type AuthService struct {
	DB *gorm.DB
}

func NewAuthService(db *gorm.DB) *AuthService {
	return &AuthService{DB: db}
}

// SendEmailCode mails a one-time verification code, rate limited per address.
func (s *AuthService) SendEmailCode(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.BodyParser(&req); err != nil || req.Email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Email is required"})
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if !utils.EmailCooldownTrySet(email, emailCooldown) {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "Please wait before requesting another code"})
	}

	code := utils.GenerateVerificationCode(6)
	utils.SaveCode(email, code, emailCodeTTL)

	body := fmt.Sprintf("Your Recycly verification code is %s. It expires in 10 minutes.", code)
	if err := utils.SendMail(email, "Recycly verification code", body); err != nil {
		utils.Sugar.Errorw("failed to send verification email", "email", email, "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to send verification email"})
	}
	return c.JSON(fiber.Map{"message": "Verification code sent"})
}

// Register creates an account after email code verification.
func (s *AuthService) Register(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Code     string `json:"code"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if req.Username == "" || req.Email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Username and email are required"})
	}
	if len(req.Password) < 8 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Password must be at least 8 characters"})
	}
	if !utils.VerifyAndConsumeCode(req.Email, req.Code) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid or expired verification code"})
	}

	var count int64
	s.DB.Model(&models.User{}).
		Where("username = ? OR email = ?", req.Username, req.Email).
		Count(&count)
	if count > 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Username or email already taken"})
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process password"})
	}

	user := models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         models.RoleUser,
		Level:        1,
	}
	if err := s.DB.Create(&user).Error; err != nil {
		utils.Sugar.Errorw("failed to create user", "username", req.Username, "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create account"})
	}

	token, err := utils.GenerateToken(&user, tokenTTL)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to issue token"})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"token": token, "user": user})
}

// Login authenticates with username/email + password. Accounts with 2FA
// enabled get a mailed code instead of a token; Verify2FA finishes the login.
func (s *AuthService) Login(c *fiber.Ctx) error {
	var req struct {
		Identity string `json:"identity"` // username or email
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	identity := strings.ToLower(strings.TrimSpace(req.Identity))

	var user models.User
	err := s.DB.Where("username = ? OR email = ?", req.Identity, identity).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !utils.CheckPassword(user.PasswordHash, req.Password)) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid credentials"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	if user.TwoFactorEnabled {
		code := utils.GenerateVerificationCode(6)
		utils.SaveCode(twoFactorPrefix+user.Email, code, emailCodeTTL)
		body := fmt.Sprintf("Your Recycly login code is %s. It expires in 10 minutes.", code)
		if err := utils.SendMail(user.Email, "Recycly login code", body); err != nil {
			utils.Sugar.Errorw("failed to send 2fa email", "user_id", user.ID, "err", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to send login code"})
		}
		return c.JSON(fiber.Map{"two_factor_required": true, "email": user.Email})
	}

	return s.issueSession(c, &user)
}

// Verify2FA completes a two-factor login with the mailed code.
func (s *AuthService) Verify2FA(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if !utils.VerifyAndConsumeCode(twoFactorPrefix+email, req.Code) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired code"})
	}

	var user models.User
	if err := s.DB.Where("email = ?", email).First(&user).Error; err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid credentials"})
	}
	return s.issueSession(c, &user)
}

func (s *AuthService) issueSession(c *fiber.Ctx, user *models.User) error {
	now := time.Now()
	user.LastLoginAt = &now
	if err := s.DB.Model(user).Update("last_login_at", now).Error; err != nil {
		utils.Sugar.Warnw("failed to record last login", "user_id", user.ID, "err", err)
	}

	token, err := utils.GenerateToken(user, tokenTTL)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to issue token"})
	}
	return c.JSON(fiber.Map{"token": token, "user": user})
}

// Logout blacklists the presented token until its natural expiry.
func (s *AuthService) Logout(c *fiber.Ctx) error {
	auth := c.Get("Authorization")
	token := strings.TrimPrefix(auth, "Bearer ")
	if token == "" || token == auth {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing bearer token"})
	}

	claims, err := utils.ParseToken(token)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	utils.BlacklistToken(token, claims.ExpiresAt.Time)
	return c.JSON(fiber.Map{"message": "Logged out"})
}

// Me returns the authenticated account.
func (s *AuthService) Me(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	var user models.User
	if err := s.DB.First(&user, "id = ?", userID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	}
	return c.JSON(user)
}

// UpdateProfile edits the mutable profile fields of the authenticated account.
func (s *AuthService) UpdateProfile(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		Phone     *string `json:"phone"`
		Address   *string `json:"address"`
		AvatarURL *string `json:"avatar_url"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	updates := map[string]interface{}{}
	if req.Phone != nil {
		updates["phone"] = utils.SanitizeText(*req.Phone)
	}
	if req.Address != nil {
		updates["address"] = utils.SanitizeText(*req.Address)
	}
	if req.AvatarURL != nil {
		updates["avatar_url"] = *req.AvatarURL
	}
	if len(updates) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Nothing to update"})
	}

	if err := s.DB.Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update profile"})
	}

	var user models.User
	if err := s.DB.First(&user, "id = ?", userID).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(user)
}

// RegisterDevice stores the FCM registration token for push delivery.
func (s *AuthService) RegisterDevice(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	var req struct {
		DeviceToken string `json:"device_token"`
	}
	if err := c.BodyParser(&req); err != nil || req.DeviceToken == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Device token is required"})
	}
	if err := s.DB.Model(&models.User{}).Where("id = ?", userID).
		Update("device_token", req.DeviceToken).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to register device"})
	}
	return c.JSON(fiber.Map{"message": "Device registered"})
}

// Enable2FA turns on the email second factor after verifying a fresh code.
func (s *AuthService) Enable2FA(c *fiber.Ctx) error {
	return s.setTwoFactor(c, true)
}

// Disable2FA turns the second factor off, also code-gated.
func (s *AuthService) Disable2FA(c *fiber.Ctx) error {
	return s.setTwoFactor(c, false)
}

func (s *AuthService) setTwoFactor(c *fiber.Ctx, enabled bool) error {
	userID := c.Locals("user_id").(string)
	var req struct {
		Code string `json:"code"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	var user models.User
	if err := s.DB.First(&user, "id = ?", userID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	}
	if !utils.VerifyAndConsumeCode(user.Email, req.Code) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid or expired verification code"})
	}

	if err := s.DB.Model(&user).Update("two_factor_enabled", enabled).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update 2FA setting"})
	}
	return c.JSON(fiber.Map{"two_factor_enabled": enabled})
}

// --- OAuth ---

func oauthConfig(provider string) (*oauth2.Config, error) {
	switch provider {
	case "google":
		return &oauth2.Config{
			ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
			ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
			RedirectURL:  os.Getenv("OAUTH_REDIRECT_BASE") + "/api/v1/auth/oauth/google/callback",
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     oauthgoogle.Endpoint,
		}, nil
	case "github":
		return &oauth2.Config{
			ClientID:     os.Getenv("GITHUB_CLIENT_ID"),
			ClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
			RedirectURL:  os.Getenv("OAUTH_REDIRECT_BASE") + "/api/v1/auth/oauth/github/callback",
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     oauthgithub.Endpoint,
		}, nil
	}
	return nil, fmt.Errorf("unsupported oauth provider %q", provider)
}

// OAuthRedirect starts the authorization-code flow for a provider.
func (s *AuthService) OAuthRedirect(c *fiber.Ctx) error {
	cfg, err := oauthConfig(c.Params("provider"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Unsupported provider"})
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create state"})
	}
	state := hex.EncodeToString(buf)
	utils.SaveState(state, oauthStateTTL)

	return c.Redirect(cfg.AuthCodeURL(state), fiber.StatusTemporaryRedirect)
}

// OAuthCallback exchanges the code, fetches the provider profile and signs
// the user in, creating the account on first login.
func (s *AuthService) OAuthCallback(c *fiber.Ctx) error {
	provider := c.Params("provider")
	cfg, err := oauthConfig(provider)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Unsupported provider"})
	}
	if !utils.ConsumeState(c.Query("state")) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid OAuth state"})
	}

	ctx, cancel := context.WithTimeout(c.Context(), 15*time.Second)
	defer cancel()

	token, err := cfg.Exchange(ctx, c.Query("code"))
	if err != nil {
		utils.Sugar.Errorw("oauth exchange failed", "provider", provider, "err", err)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "OAuth exchange failed"})
	}

	profile, err := fetchOAuthProfile(ctx, cfg, provider, token)
	if err != nil {
		utils.Sugar.Errorw("oauth profile fetch failed", "provider", provider, "err", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Failed to fetch provider profile"})
	}

	var user models.User
	err = s.DB.Where("provider = ? AND provider_id = ?", provider, profile.ID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) && profile.Email != "" {
		// link by verified email if an account already exists
		err = s.DB.Where("email = ?", profile.Email).First(&user).Error
		if err == nil {
			s.DB.Model(&user).Updates(map[string]interface{}{
				"provider":    provider,
				"provider_id": profile.ID,
			})
		}
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = models.User{
			Username:   uniqueUsername(s.DB, profile.Name),
			Email:      profile.Email,
			Provider:   provider,
			ProviderID: profile.ID,
			AvatarURL:  profile.AvatarURL,
			Role:       models.RoleUser,
			Level:      1,
		}
		if err := s.DB.Create(&user).Error; err != nil {
			utils.Sugar.Errorw("oauth user create failed", "provider", provider, "err", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create account"})
		}
	} else if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	return s.issueSession(c, &user)
}

type oauthProfile struct {
	ID        string
	Name      string
	Email     string
	AvatarURL string
}

func fetchOAuthProfile(ctx context.Context, cfg *oauth2.Config, provider string, token *oauth2.Token) (*oauthProfile, error) {
	client := cfg.Client(ctx, token)

	var url string
	switch provider {
	case "google":
		url = "https://www.googleapis.com/oauth2/v2/userinfo"
	case "github":
		url = "https://api.github.com/user"
	}

	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("userinfo status %d: %s", resp.StatusCode, body)
	}

	switch provider {
	case "google":
		var v struct {
			ID      string `json:"id"`
			Email   string `json:"email"`
			Name    string `json:"name"`
			Picture string `json:"picture"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
			return nil, err
		}
		return &oauthProfile{ID: v.ID, Name: v.Name, Email: strings.ToLower(v.Email), AvatarURL: v.Picture}, nil
	case "github":
		var v struct {
			ID        int64  `json:"id"`
			Login     string `json:"login"`
			Email     string `json:"email"`
			AvatarURL string `json:"avatar_url"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
			return nil, err
		}
		return &oauthProfile{
			ID:        fmt.Sprintf("%d", v.ID),
			Name:      v.Login,
			Email:     strings.ToLower(v.Email),
			AvatarURL: v.AvatarURL,
		}, nil
	}
	return nil, fmt.Errorf("unsupported oauth provider %q", provider)
}

func uniqueUsername(db *gorm.DB, base string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		base = "user"
	}
	base = strings.ReplaceAll(strings.ToLower(base), " ", "_")

	name := base
	for i := 0; ; i++ {
		if i > 0 {
			name = fmt.Sprintf("%s_%d", base, i)
		}
		var count int64
		if err := db.Model(&models.User{}).Where("username = ?", name).Count(&count).Error; err != nil || count == 0 {
			return name
		}
	}
}
