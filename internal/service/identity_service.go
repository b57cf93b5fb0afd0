package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/studyhelper/studyhelper-api/internal/models"
	appErrors "github.com/studyhelper/studyhelper-api/pkg/errors"
	"github.com/studyhelper/studyhelper-api/pkg/kv"
)

// IdentityConfig defines the stand-in credential rules and token issuance
// parameters. The credential check models an external identity provider
// and is not hardened.
type IdentityConfig struct {
	FulfillerEmail        string
	FulfillerPasswordHash string
	FulfillerName         string
	MinPasswordLength     int
	TokenSecret           string
	TokenExpiry           time.Duration
	Issuer                string
	ActorKey              string
}

// IdentityService resolves the active actor and exposes it read-only to
// the rest of the core.
type IdentityService struct {
	kv        kv.Store
	validator *validator.Validate
	logger    *zap.Logger
	config    IdentityConfig
}

// NewIdentityService constructs an IdentityService instance.
func NewIdentityService(kvStore kv.Store, validate *validator.Validate, logger *zap.Logger, config IdentityConfig) *IdentityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.MinPasswordLength <= 0 {
		config.MinPasswordLength = 6
	}
	if config.TokenExpiry <= 0 {
		config.TokenExpiry = 24 * time.Hour
	}
	if config.ActorKey == "" {
		config.ActorKey = "studyhelper_auth"
	}
	return &IdentityService{kv: kvStore, validator: validate, logger: logger, config: config}
}

// Login resolves the actor for the supplied credentials and issues an
// access token. The configured fulfiller account is bcrypt-checked; any
// other email with a long enough password signs in as a requester.
func (s *IdentityService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	actor, err := s.resolveActor(req)
	if err != nil {
		return nil, err
	}

	token, err := s.generateAccessToken(actor)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	if err := s.persistActor(ctx, actor); err != nil {
		return nil, err
	}

	s.logger.Info("actor signed in", zap.String("actor_id", actor.ID), zap.String("role", string(actor.Role)))

	return &models.LoginResponse{
		AccessToken: token,
		ExpiresIn:   int64(s.config.TokenExpiry.Seconds()),
		Actor:       actor,
		IssuedAt:    time.Now().UTC(),
	}, nil
}

func (s *IdentityService) resolveActor(req models.LoginRequest) (models.Actor, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if email == strings.ToLower(s.config.FulfillerEmail) {
		if err := bcrypt.CompareHashAndPassword([]byte(s.config.FulfillerPasswordHash), []byte(req.Password)); err != nil {
			return models.Actor{}, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
		}
		return models.Actor{
			ID:          "fulfiller-1",
			Email:       email,
			DisplayName: s.config.FulfillerName,
			Role:        models.RoleFulfiller,
		}, nil
	}

	if len(req.Password) < s.config.MinPasswordLength {
		return models.Actor{}, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
	}

	return models.Actor{
		ID:          requesterID(email),
		Email:       email,
		DisplayName: displayNameFromEmail(email),
		Role:        models.RoleRequester,
	}, nil
}

// requesterID derives a stable actor id from the email so a requester sees
// the same requests across sessions.
func requesterID(email string) string {
	sum := sha256.Sum256([]byte(email))
	return "requester-" + hex.EncodeToString(sum[:4])
}

// CurrentActor returns the persisted actor snapshot, if any.
func (s *IdentityService) CurrentActor(ctx context.Context) (*models.Actor, error) {
	raw, err := s.kv.Get(ctx, s.config.ActorKey)
	if err != nil {
		if errors.Is(err, kv.ErrKeyNotFound) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "no active session")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to load actor snapshot")
	}
	var actor models.Actor
	if err := json.Unmarshal([]byte(raw), &actor); err != nil {
		// A corrupt snapshot is discarded rather than trusted.
		_ = s.kv.Delete(ctx, s.config.ActorKey)
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "stored session is invalid")
	}
	return &actor, nil
}

// Logout destroys the persisted actor snapshot.
func (s *IdentityService) Logout(ctx context.Context) error {
	if err := s.kv.Delete(ctx, s.config.ActorKey); err != nil {
		return appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to clear actor snapshot")
	}
	return nil
}

// ValidateToken parses and validates an access token, returning its claims.
func (s *IdentityService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	claims := &models.JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "unexpected signing method")
		}
		return []byte(s.config.TokenSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired token")
	}
	if !claims.Role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token carries an unknown role")
	}
	return claims, nil
}

func (s *IdentityService) generateAccessToken(actor models.Actor) (string, error) {
	now := time.Now().UTC()
	claims := models.JWTClaims{
		ActorID:     actor.ID,
		Role:        actor.Role,
		Email:       actor.Email,
		DisplayName: actor.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   actor.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TokenExpiry)),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.TokenSecret))
}

func (s *IdentityService) persistActor(ctx context.Context, actor models.Actor) error {
	data, err := json.Marshal(actor)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode actor snapshot")
	}
	if err := s.kv.Set(ctx, s.config.ActorKey, string(data)); err != nil {
		return appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to persist actor snapshot")
	}
	return nil
}

// displayNameFromEmail derives a presentable name from the email local
// part: non-letters become spaces and each word is capitalised.
func displayNameFromEmail(email string) string {
	local := email
	if at := strings.IndexByte(email, '@'); at >= 0 {
		local = email[:at]
	}
	var b strings.Builder
	upperNext := true
	for _, r := range local {
		switch {
		case r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z':
			if upperNext && r >= 'a' && r <= 'z' {
				r -= 'a' - 'A'
			}
			b.WriteRune(r)
			upperNext = false
		default:
			b.WriteByte(' ')
			upperNext = true
		}
	}
	return strings.TrimSpace(b.String())
}
