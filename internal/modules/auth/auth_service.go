package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"poolcare-platform/internal/config"
	"poolcare-platform/internal/middleware"
	"poolcare-platform/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const tokenTTL = 24 * time.Hour

type ServiceInterface interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)
	Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error)
	// GoogleLoginURL returns the consent-screen redirect for the OAuth flow.
	GoogleLoginURL(state string) string
	// GoogleCallback exchanges the authorization code and signs in the
	// account whose email matches the Google profile.
	GoogleCallback(ctx context.Context, code string) (*models.AuthResponse, error)
}

type service struct {
	repo        RepositoryInterface
	jwtSecret   string
	oauthConfig *oauth2.Config
	now         func() time.Time
}

func NewService(repo RepositoryInterface, cfg *config.Config) ServiceInterface {
	return &service{
		repo:      repo,
		jwtSecret: cfg.JWTSecret,
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Scopes:       []string{"https://www.googleapis.com/auth/userinfo.email"},
			Endpoint:     google.Endpoint,
		},
		now: time.Now,
	}
}

func (s *service) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("service.Login: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return nil, models.ErrInvalidCredentials
	}
	return s.respond(user)
}

func (s *service) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("service.Register: %w", err)
	}

	user := &models.User{
		ID:           uuid.NewString(),
		OrgID:        req.OrgID,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         req.Role,
		Name:         req.Name,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("service.Register: %w", err)
	}
	return s.respond(user)
}

func (s *service) GoogleLoginURL(state string) string {
	return s.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

func (s *service) GoogleCallback(ctx context.Context, code string) (*models.AuthResponse, error) {
	token, err := s.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: oauth exchange failed", models.ErrInvalidCredentials)
	}

	email, err := s.googleEmail(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("service.GoogleCallback: %w", err)
	}

	// Only pre-provisioned accounts can sign in with Google; there is no
	// self-service org creation here.
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("service.GoogleCallback: %w", err)
	}
	return s.respond(user)
}

func (s *service) googleEmail(ctx context.Context, token *oauth2.Token) (string, error) {
	client := s.oauthConfig.Client(ctx, token)
	resp, err := client.Get("https://www.googleapis.com/oauth2/v2/userinfo")
	if err != nil {
		return "", fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch userinfo: status %d", resp.StatusCode)
	}

	var info struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("decode userinfo: %w", err)
	}
	if info.Email == "" {
		return "", errors.New("userinfo response missing email")
	}
	return info.Email, nil
}

func (s *service) respond(user *models.User) (*models.AuthResponse, error) {
	token, err := s.signToken(user)
	if err != nil {
		return nil, err
	}
	return &models.AuthResponse{Token: token, User: user}, nil
}

func (s *service) signToken(user *models.User) (string, error) {
	now := s.now()
	claims := middleware.Claims{
		UserID:   user.ID,
		OrgID:    user.OrgID,
		Role:     user.Role,
		CarerID:  user.CarerID,
		ClientID: user.ClientID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
