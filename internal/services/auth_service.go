package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/repositories"
	"github.com/anonto42/linkup/backend/pkg/apperror"
	"github.com/anonto42/linkup/backend/pkg/clock"
	"github.com/anonto42/linkup/backend/pkg/firebase"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

// TokenVerifier verifies third-party ID tokens. *firebase.App implements it.
type TokenVerifier interface {
	Verify(ctx context.Context, idToken string) (*firebase.Identity, error)
}

type AuthService interface {
	Signup(ctx context.Context, req *models.SignupRequest) (string, *models.User, error)
	Login(ctx context.Context, req *models.LoginRequest) (string, *models.User, error)
	FirebaseLogin(ctx context.Context, idToken string) (string, *models.User, error)
	// Authenticate resolves a bearer token (local JWT first, then Firebase) to a user.
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

type AuthConfig struct {
	JWTSecret string
	JWTExpiry time.Duration
}

type authService struct {
	users    repositories.UserRepository
	verifier TokenVerifier
	clock    clock.Clock
	cfg      AuthConfig
}

// NewAuthService creates the auth service. verifier may be nil when Firebase
// is not configured.
func NewAuthService(users repositories.UserRepository, verifier TokenVerifier, clk clock.Clock, cfg AuthConfig) AuthService {
	if cfg.JWTExpiry <= 0 {
		cfg.JWTExpiry = 72 * time.Hour
	}
	return &authService{users: users, verifier: verifier, clock: clk, cfg: cfg}
}

func (s *authService) Signup(ctx context.Context, req *models.SignupRequest) (string, *models.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return "", nil, apperror.Conflict("User with this email already registered")
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return "", nil, err
	}
	if _, err := s.users.GetUserByUsername(ctx, req.Username); err == nil {
		return "", nil, apperror.Conflict("Username already taken")
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return "", nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.clock.NowUtc()
	user := &models.User{
		Name:        strings.TrimSpace(req.Name),
		Username:    req.Username,
		Email:       email,
		Password:    string(hashedPassword),
		Skills:      []string{},
		Connections: []primitive.ObjectID{},
		LastActive:  now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return "", nil, err
	}

	token, err := s.issueToken(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func (s *authService) Login(ctx context.Context, req *models.LoginRequest) (string, *models.User, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return "", nil, apperror.Unauthorized("Invalid email or password")
		}
		return "", nil, err
	}
	if user.Password == "" {
		return "", nil, apperror.Unauthorized("This account signs in with Firebase")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return "", nil, apperror.Unauthorized("Invalid email or password")
	}

	token, err := s.issueToken(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// FirebaseLogin verifies a Firebase ID token, links or creates the matching
// user and issues a local JWT.
func (s *authService) FirebaseLogin(ctx context.Context, idToken string) (string, *models.User, error) {
	user, err := s.firebaseUser(ctx, idToken, true)
	if err != nil {
		return "", nil, err
	}
	token, err := s.issueToken(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func (s *authService) firebaseUser(ctx context.Context, idToken string, create bool) (*models.User, error) {
	if s.verifier == nil {
		return nil, apperror.Unauthorized("Firebase login is not enabled")
	}
	identity, err := s.verifier.Verify(ctx, idToken)
	if err != nil {
		return nil, apperror.Unauthorized("Invalid Firebase ID token")
	}

	user, err := s.users.GetUserByFirebaseUID(ctx, identity.UID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, err
	}
	if identity.Email == "" {
		return nil, apperror.Unauthorized("Firebase account has no email")
	}

	email := strings.ToLower(identity.Email)
	user, err = s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if err := s.users.LinkFirebaseUID(ctx, user.ID, identity.UID); err != nil {
			return nil, fmt.Errorf("link firebase uid: %w", err)
		}
		user.FirebaseUID = identity.UID
		return user, nil
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, err
	case !create:
		return nil, apperror.Unauthorized("User not registered")
	}

	now := s.clock.NowUtc()
	name := identity.Name
	if name == "" {
		name = strings.Split(email, "@")[0]
	}
	user = &models.User{
		Name:        name,
		Username:    generatedUsername(email),
		Email:       email,
		FirebaseUID: identity.UID,
		Skills:      []string{},
		Connections: []primitive.ObjectID{},
		LastActive:  now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// generatedUsername derives an alphanumeric username from the email local part.
func generatedUsername(email string) string {
	local := strings.Split(email, "@")[0]
	var b strings.Builder
	for _, r := range local {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return b.String() + suffix
}

func (s *authService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	claims := &models.JwtCustomClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err == nil && parsed.Valid {
		id, err := primitive.ObjectIDFromHex(claims.UserID)
		if err != nil {
			return nil, apperror.Unauthorized("Invalid token")
		}
		user, err := s.users.GetUserByID(ctx, id)
		if err != nil {
			if errors.Is(err, apperror.ErrNotFound) {
				return nil, apperror.Unauthorized("User not found")
			}
			return nil, err
		}
		return user, nil
	}

	// Not a local token; try it as a Firebase ID token.
	if s.verifier != nil {
		return s.firebaseUser(ctx, token, false)
	}
	return nil, apperror.Unauthorized("Invalid token")
}

func (s *authService) issueToken(user *models.User) (string, error) {
	now := s.clock.NowUtc()
	claims := &models.JwtCustomClaims{
		UserID: user.ID.Hex(),
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	t, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return t, nil
}
