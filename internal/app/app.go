// Package app implements the core catalog service: account lifecycle,
// authentication, books, and the library containment hierarchy.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	netmail "net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/darthVad3r/StacksOfChaos-sub000/internal/oauth"
	"github.com/darthVad3r/StacksOfChaos-sub000/pkg/auth"
	"github.com/darthVad3r/StacksOfChaos-sub000/pkg/domain"
	"github.com/darthVad3r/StacksOfChaos-sub000/pkg/mail"
	"github.com/darthVad3r/StacksOfChaos-sub000/pkg/storage"
	"github.com/darthVad3r/StacksOfChaos-sub000/pkg/store"
)

const confirmEmailTemplate = "confirm-email"

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	BaseURL       string

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	JWTLeeway   time.Duration
	SessionTTL  time.Duration
	RefreshTTL  time.Duration
	ConfirmTTL  time.Duration

	Store         store.Store
	Sessions      store.SessionStore
	RefreshTokens store.RefreshTokenStore
	ConfirmTokens store.ConfirmTokenStore
	EmailQueue    mail.Queue
	Sender        mail.Sender
	Templates     mail.TemplateProvider
	Covers        storage.CoverStore
	Logger        *slog.Logger
}

// App is the core application service wiring together storage, auth, and
// delivery concerns.
type App struct {
	store         store.Store
	sessions      store.SessionStore
	refreshTokens store.RefreshTokenStore
	confirmTokens store.ConfirmTokenStore
	emailQueue    mail.Queue
	sender        mail.Sender
	templates     mail.TemplateProvider
	covers        storage.CoverStore
	logger        *slog.Logger

	baseURL    string
	refreshTTL time.Duration
	confirmTTL time.Duration
}

// New constructs the application with database storage and session management.
func New(cfg Config) (*App, error) {
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = time.Hour
	}
	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	if cfg.ConfirmTTL == 0 {
		cfg.ConfirmTTL = 48 * time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}

	sessionStore := cfg.Sessions
	if sessionStore == nil {
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return nil, fmt.Errorf("redisAddr is required for jwt+redis session strategy")
		}
		revoker := store.NewRedisTokenRevoker(cfg.RedisAddr, cfg.RedisPassword)
		jwtStore, err := store.NewJWTSessionStore(cfg.JWTSecret, revoker, store.JWTOptions{
			Issuer:   cfg.JWTIssuer,
			Audience: cfg.JWTAudience,
			TTL:      cfg.SessionTTL,
			Leeway:   cfg.JWTLeeway,
		})
		if err != nil {
			return nil, fmt.Errorf("init jwt session store: %w", err)
		}
		sessionStore = jwtStore
	}

	refreshStore := cfg.RefreshTokens
	if refreshStore == nil {
		gormStore, ok := dataStore.(*store.GormStore)
		if !ok {
			return nil, fmt.Errorf("refresh token store required for non-postgres data store")
		}
		refreshStore = store.NewGormRefreshTokenStore(gormStore)
	}

	confirmStore := cfg.ConfirmTokens
	if confirmStore == nil {
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return nil, fmt.Errorf("redisAddr is required for confirmation tokens")
		}
		confirmStore = store.NewRedisConfirmTokenStore(cfg.RedisAddr, cfg.RedisPassword)
	}

	return &App{
		store:         dataStore,
		sessions:      sessionStore,
		refreshTokens: refreshStore,
		confirmTokens: confirmStore,
		emailQueue:    cfg.EmailQueue,
		sender:        cfg.Sender,
		templates:     cfg.Templates,
		covers:        cfg.Covers,
		logger:        cfg.Logger,
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		refreshTTL:    cfg.RefreshTTL,
		confirmTTL:    cfg.ConfirmTTL,
	}, nil
}

// RegisterInput carries the registration request fields.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Register creates an unconfirmed account and enqueues the confirmation
// email. Queue failures are logged, never surfaced: the account exists
// whether or not the email goes out.
func (a *App) Register(ctx context.Context, in RegisterInput) (domain.User, error) {
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if email == "" || in.Password == "" {
		return domain.User{}, ErrEmailAndPasswordRequired
	}
	if !validEmail(email) {
		return domain.User{}, NewValidationError("email address is not valid")
	}
	if validation := auth.ValidatePassword(in.Password); !validation.Valid {
		return domain.User{}, NewValidationError(validation.Violations...)
	}
	exists, err := a.store.HasUserEmail(email)
	if err != nil {
		return domain.User{}, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return domain.User{}, ErrEmailAlreadyExists
	}
	passwordHash, err := auth.HashPassword(in.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return domain.User{}, NewValidationError(err.Error())
		}
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Role:         domain.RoleUser,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	a.enqueueConfirmationEmail(ctx, user)
	return user, nil
}

func (a *App) enqueueConfirmationEmail(ctx context.Context, user domain.User) {
	if a.emailQueue == nil || a.confirmTokens == nil {
		return
	}
	token, err := a.confirmTokens.Create(user.ID, a.confirmTTL)
	if err != nil {
		a.logger.Error("create confirmation token failed", "user_id", user.ID, "error", err)
		return
	}
	confirmURL := fmt.Sprintf("%s/api/account/confirm-email?userId=%s&token=%s",
		a.baseURL, url.QueryEscape(user.ID), url.QueryEscape(token))
	ev := mail.Event{
		To:       user.Email,
		ToName:   strings.TrimSpace(user.FirstName + " " + user.LastName),
		Subject:  "Confirm your email address",
		Template: confirmEmailTemplate,
		Data: map[string]string{
			"FirstName":  user.FirstName,
			"ConfirmURL": confirmURL,
		},
	}
	if err := a.emailQueue.Publish(ctx, ev); err != nil {
		a.logger.Error("enqueue confirmation email failed", "user_id", user.ID, "error", err)
	}
}

// ConfirmEmail marks the account confirmed. The token is single use.
func (a *App) ConfirmEmail(userID, token string) error {
	user, found, err := a.store.GetUserByID(userID)
	if err != nil {
		return fmt.Errorf("fetch user: %w", err)
	}
	if !found {
		return ErrNotFound
	}
	if err := a.confirmTokens.Consume(userID, token); err != nil {
		if errors.Is(err, store.ErrInvalidConfirmToken) {
			return ErrInvalidConfirmToken
		}
		return fmt.Errorf("consume confirmation token: %w", err)
	}
	if user.EmailConfirmed {
		return nil
	}
	user.EmailConfirmed = true
	user.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveUser(user); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// Login validates credentials and issues an access + refresh token pair.
func (a *App) Login(email, password string) (domain.User, string, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, "", "", fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, "", "", ErrInvalidCredentials
	}
	if !user.Active {
		return domain.User{}, "", "", ErrUserDisabled
	}
	if user.PasswordHash == "" || !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", "", ErrInvalidCredentials
	}
	return a.issueUserTokens(user)
}

func (a *App) issueUserTokens(user domain.User) (domain.User, string, string, error) {
	accessToken, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", "", fmt.Errorf("issue access token: %w", err)
	}
	refreshToken, err := a.refreshTokens.Issue(user.ID, a.refreshTTL)
	if err != nil {
		return domain.User{}, "", "", fmt.Errorf("issue refresh token: %w", err)
	}
	return user, accessToken, refreshToken, nil
}

// Refresh rotates the refresh token and issues a new token pair.
func (a *App) Refresh(refreshToken string) (domain.User, string, string, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return domain.User{}, "", "", ErrRefreshTokenRequired
	}
	userID, newRefreshToken, err := a.refreshTokens.Rotate(refreshToken, a.refreshTTL)
	if err != nil {
		if errors.Is(err, store.ErrInvalidRefreshToken) || errors.Is(err, store.ErrRefreshTokenReplay) {
			return domain.User{}, "", "", ErrInvalidRefreshToken
		}
		return domain.User{}, "", "", fmt.Errorf("rotate refresh token: %w", err)
	}
	user, found, err := a.store.GetUserByID(userID)
	if err != nil {
		return domain.User{}, "", "", fmt.Errorf("fetch user: %w", err)
	}
	if !found || !user.Active {
		_ = a.refreshTokens.Revoke(newRefreshToken, "user inactive")
		return domain.User{}, "", "", ErrInvalidRefreshToken
	}
	accessToken, err := a.sessions.NewSession(user.ID)
	if err != nil {
		_ = a.refreshTokens.Revoke(newRefreshToken, "access token issue failed")
		return domain.User{}, "", "", fmt.Errorf("issue access token: %w", err)
	}
	return user, accessToken, newRefreshToken, nil
}

// Logout invalidates the access token and optional refresh token.
func (a *App) Logout(accessToken, refreshToken string) error {
	if err := a.sessions.DeleteSession(accessToken); err != nil {
		return err
	}
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil
	}
	return a.refreshTokens.Revoke(refreshToken, "logout")
}

// GoogleSignIn upserts an account from verified Google claims and issues
// a token pair. Google already verified the address, so the account is
// created confirmed.
func (a *App) GoogleSignIn(profile *oauth.GoogleUser) (domain.User, string, string, error) {
	if profile == nil || strings.TrimSpace(profile.Email) == "" {
		return domain.User{}, "", "", NewValidationError("google profile missing email")
	}
	if !profile.EmailVerified {
		return domain.User{}, "", "", NewValidationError("google email not verified")
	}
	email := strings.TrimSpace(strings.ToLower(profile.Email))
	user, found, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, "", "", fmt.Errorf("fetch user: %w", err)
	}
	now := time.Now().UTC()
	if !found {
		user = domain.User{
			ID:        uuid.NewString(),
			Email:     email,
			FirstName: profile.GivenName,
			LastName:  profile.FamilyName,
			Role:      domain.RoleUser,
			Active:    true,
			CreatedAt: now,
		}
	}
	if !user.Active {
		return domain.User{}, "", "", ErrUserDisabled
	}
	user.EmailConfirmed = true
	if user.ProfilePictureURL == "" {
		user.ProfilePictureURL = profile.Picture
	}
	user.UpdatedAt = now
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, "", "", fmt.Errorf("save user: %w", err)
	}
	return a.issueUserTokens(user)
}

// UserFromToken resolves a user from a session token.
func (a *App) UserFromToken(token string) (domain.User, bool) {
	uid, err := a.sessions.UserIDFromToken(token)
	if err != nil {
		return domain.User{}, false
	}
	user, found, err := a.store.GetUserByID(uid)
	if err != nil || !found {
		return domain.User{}, false
	}
	if !user.Active {
		return domain.User{}, false
	}
	return user, true
}

// GetUser returns a user by ID.
func (a *App) GetUser(id string) (domain.User, error) {
	user, found, err := a.store.GetUserByID(id)
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch user: %w", err)
	}
	if !found {
		return domain.User{}, ErrNotFound
	}
	return user, nil
}

// ListUsers returns all users (admin use only).
func (a *App) ListUsers() ([]domain.User, error) {
	users, err := a.store.ListUsers()
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	if users == nil {
		users = []domain.User{}
	}
	return users, nil
}

// ProfileUpdate holds the user-editable profile fields. Nil means unchanged.
type ProfileUpdate struct {
	FirstName         *string
	LastName          *string
	Bio               *string
	ProfilePictureURL *string
}

// UpdateProfile applies a partial profile update.
func (a *App) UpdateProfile(userID string, update ProfileUpdate) (domain.User, error) {
	user, err := a.GetUser(userID)
	if err != nil {
		return domain.User{}, err
	}
	if update.FirstName != nil {
		user.FirstName = strings.TrimSpace(*update.FirstName)
	}
	if update.LastName != nil {
		user.LastName = strings.TrimSpace(*update.LastName)
	}
	if update.Bio != nil {
		user.Bio = *update.Bio
	}
	if update.ProfilePictureURL != nil {
		user.ProfilePictureURL = strings.TrimSpace(*update.ProfilePictureURL)
	}
	user.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

// DeactivateUser soft-deletes the account and revokes its refresh tokens.
func (a *App) DeactivateUser(userID string) error {
	user, err := a.GetUser(userID)
	if err != nil {
		return err
	}
	user.Active = false
	user.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveUser(user); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return a.refreshTokens.RevokeUser(userID, "account deactivated")
}

// ChangePassword verifies the current password, applies the policy to the
// new one, and revokes outstanding refresh tokens.
func (a *App) ChangePassword(userID, currentPassword, newPassword string) error {
	user, err := a.GetUser(userID)
	if err != nil {
		return err
	}
	if user.PasswordHash == "" || !auth.CheckPassword(currentPassword, user.PasswordHash) {
		return ErrInvalidCredentials
	}
	if validation := auth.ValidatePassword(newPassword); !validation.Valid {
		return NewValidationError(validation.Violations...)
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return NewValidationError(err.Error())
		}
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = hash
	user.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveUser(user); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return a.refreshTokens.RevokeUser(userID, "password changed")
}

// SendEmailInput carries one outbound message. HTMLBody is sent as-is;
// naming a Template instead renders it with Data first.
type SendEmailInput struct {
	To       string
	ToName   string
	Subject  string
	HTMLBody string
	Template string
	Data     map[string]string
}

// SendEmail delivers a message synchronously. Unlike the registration
// path, failures here propagate to the caller.
func (a *App) SendEmail(ctx context.Context, in SendEmailInput) error {
	to := strings.TrimSpace(in.To)
	if !validEmail(to) {
		return NewValidationError("a valid recipient address is required")
	}
	if strings.TrimSpace(in.Subject) == "" {
		return NewValidationError("subject is required")
	}
	html := in.HTMLBody
	if in.Template != "" {
		if a.templates == nil {
			return fmt.Errorf("email templates not configured")
		}
		rendered, err := a.templates.Render(in.Template, in.Data)
		if err != nil {
			return NewValidationError(fmt.Sprintf("unknown template %q", in.Template))
		}
		html = rendered
	}
	if strings.TrimSpace(html) == "" {
		return NewValidationError("a body or template is required")
	}
	if a.sender == nil {
		return fmt.Errorf("email sending not configured")
	}
	return a.sender.Send(ctx, mail.Message{
		To:       to,
		ToName:   in.ToName,
		Subject:  in.Subject,
		HTMLBody: html,
	})
}

// validEmail accepts a bare RFC 5322 address with no display name.
func validEmail(email string) bool {
	addr, err := netmail.ParseAddress(email)
	return err == nil && addr.Address == email
}
