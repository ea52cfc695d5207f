// Package businessflow contains the core business logic for authentication workflows
package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/kitsune-chat/Kitsune/app/dto"
	"github.com/kitsune-chat/Kitsune/app/services"
	"github.com/kitsune-chat/Kitsune/models"
	"github.com/kitsune-chat/Kitsune/repository"
	"github.com/kitsune-chat/Kitsune/utils"
)

// LoginFlow handles creator authentication. Creators are provisioned out of
// band; there is no signup surface.
type LoginFlow interface {
	Login(ctx context.Context, request *dto.LoginRequest, metadata *ClientMetadata) (*dto.LoginResponse, error)
	Refresh(ctx context.Context, request *dto.RefreshTokenRequest, metadata *ClientMetadata) (*dto.LoginResponse, error)
}

// LoginFlowImpl implements the login business flow
type LoginFlowImpl struct {
	creatorRepo  repository.CreatorRepository
	auditRepo    repository.AuditLogRepository
	tokenService services.TokenService
	db           *gorm.DB
}

// NewLoginFlow creates a new login flow instance
func NewLoginFlow(
	creatorRepo repository.CreatorRepository,
	auditRepo repository.AuditLogRepository,
	tokenService services.TokenService,
	db *gorm.DB,
) LoginFlow {
	return &LoginFlowImpl{
		creatorRepo:  creatorRepo,
		auditRepo:    auditRepo,
		tokenService: tokenService,
		db:           db,
	}
}

// Login authenticates a creator with email and password
func (lf *LoginFlowImpl) Login(ctx context.Context, request *dto.LoginRequest, metadata *ClientMetadata) (*dto.LoginResponse, error) {
	if err := lf.validateLoginRequest(request); err != nil {
		return nil, NewBusinessError("LOGIN_VALIDATION_FAILED", "Login validation failed", err)
	}

	var creator *models.Creator

	resp, err := lf.WithLoginTransaction(ctx, func(ctx context.Context) (*dto.LoginResponse, error) {
		var err error
		creator, err = lf.creatorRepo.ByEmail(ctx, strings.TrimSpace(strings.ToLower(request.Email)))
		if err != nil {
			return nil, err
		}
		if creator == nil {
			return nil, ErrCreatorNotFound
		}

		if !utils.IsTrue(creator.IsActive) {
			return nil, ErrAccountInactive
		}

		if err := bcrypt.CompareHashAndPassword([]byte(creator.PasswordHash), []byte(request.Password)); err != nil {
			return nil, ErrIncorrectPassword
		}

		if err := lf.creatorRepo.UpdateLastLogin(ctx, creator.ID, utils.UTCNow()); err != nil {
			return nil, err
		}

		accessToken, refreshToken, err := lf.tokenService.GenerateTokens(creator.ID)
		if err != nil {
			return nil, err
		}

		return &dto.LoginResponse{
			Message:      "Login successful",
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			TokenType:    "Bearer",
			ExpiresIn:    int(utils.AccessTokenTTL.Seconds()),
			Creator:      dto.ToCreatorInfo(creator.ID, creator.UUID.String(), creator.Email, creator.DisplayName, creator.IsActive, creator.CreatedAt),
		}, nil
	})

	if err != nil {
		errMsg := fmt.Sprintf("Login failed: %s", err.Error())
		_ = lf.LogLoginAttempt(ctx, creator, models.AuditActionCreatorLoginFailed, false, &errMsg, metadata)

		return nil, NewBusinessError("LOGIN_FAILED", "Login failed", err)
	}

	_ = lf.LogLoginAttempt(ctx, creator, models.AuditActionCreatorLoginSuccess, true, nil, metadata)

	return resp, nil
}

// Refresh exchanges a valid refresh token for a new token pair
func (lf *LoginFlowImpl) Refresh(ctx context.Context, request *dto.RefreshTokenRequest, metadata *ClientMetadata) (*dto.LoginResponse, error) {
	claims, err := lf.tokenService.ValidateToken(request.RefreshToken)
	if err != nil {
		return nil, NewBusinessError("TOKEN_REFRESH_FAILED", "Token refresh failed", err)
	}

	creator, err := lf.creatorRepo.ByID(ctx, claims.CreatorID)
	if err != nil {
		return nil, NewBusinessError("TOKEN_REFRESH_FAILED", "Token refresh failed", err)
	}
	if creator == nil {
		return nil, NewBusinessError("CREATOR_NOT_FOUND", "Creator not found", ErrCreatorNotFound)
	}
	if !utils.IsTrue(creator.IsActive) {
		return nil, NewBusinessError("ACCOUNT_INACTIVE", "Account is inactive", ErrAccountInactive)
	}

	accessToken, refreshToken, err := lf.tokenService.RefreshToken(request.RefreshToken)
	if err != nil {
		return nil, NewBusinessError("TOKEN_REFRESH_FAILED", "Token refresh failed", err)
	}

	return &dto.LoginResponse{
		Message:      "Token refreshed",
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(utils.AccessTokenTTL.Seconds()),
		Creator:      dto.ToCreatorInfo(creator.ID, creator.UUID.String(), creator.Email, creator.DisplayName, creator.IsActive, creator.CreatedAt),
	}, nil
}

func (lf *LoginFlowImpl) LogLoginAttempt(ctx context.Context, creator *models.Creator, action string, success bool, errMsg *string, metadata *ClientMetadata) error {
	var creatorID uint
	var actorID *uint
	if creator != nil {
		creatorID = creator.ID
		actorID = &creator.ID
	}

	entry := &models.AuditLog{
		Action:     action,
		EntityType: models.EntityTypeCreator,
		EntityID:   creatorID,
		ActorType:  utils.ToPtr(models.ActorTypeCreator),
		ActorID:    actorID,
		Success:    utils.ToPtr(success),
		CreatedAt:  utils.UTCNow(),
	}
	if errMsg != nil {
		if raw, err := json.Marshal(map[string]any{"error": *errMsg}); err == nil {
			entry.Detail = raw
		}
	}
	if metadata != nil {
		entry.IPAddress = &metadata.IPAddress
		entry.UserAgent = &metadata.UserAgent
		if metadata.RequestID != "" {
			entry.RequestID = &metadata.RequestID
		}
	}

	return lf.auditRepo.Save(ctx, entry)
}

func (lf *LoginFlowImpl) WithLoginTransaction(ctx context.Context, fn func(context.Context) (*dto.LoginResponse, error)) (*dto.LoginResponse, error) {
	var result *dto.LoginResponse
	var fnErr error

	err := repository.WithTransaction(ctx, lf.db, func(ctx context.Context) error {
		result, fnErr = fn(ctx)
		return fnErr
	})

	if err != nil {
		return nil, err
	}
	return result, fnErr
}

func (lf *LoginFlowImpl) validateLoginRequest(request *dto.LoginRequest) error {
	if strings.TrimSpace(request.Email) == "" {
		return ErrCreatorNotFound
	}
	if request.Password == "" {
		return ErrIncorrectPassword
	}
	return nil
}
