package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/jewelry_pos/config"
	"github.com/mmdatafocus/jewelry_pos/utils"
	"gorm.io/gorm"
)

type User struct {
	ID         int       `gorm:"primary_key" json:"id"`
	BusinessId string    `gorm:"size:64;index;not null" json:"business_id"`
	Username   string    `gorm:"size:100;not null;unique" json:"username"`
	Name       string    `gorm:"size:100;not null" json:"name"`
	Password   string    `gorm:"size:255;not null" json:"-"`
	Role       UserRole  `gorm:"size:10;not null;default:'staff'" json:"role"`
	IsActive   *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	BusinessId string   `json:"business_id" binding:"required"`
	Username   string   `json:"username" binding:"required"`
	Name       string   `json:"name" binding:"required"`
	Password   string   `json:"password" binding:"required"`
	Role       UserRole `json:"role"`
}

type LoginInfo struct {
	Token      string    `json:"token"`
	Name       string    `json:"name"`
	Role       UserRole  `json:"role"`
	BusinessId string    `json:"business_id"`
	ExpiresAt  time.Time `json:"expires_at"`
}

/*
caches:
	Token:$token -> username
	User:$username
*/

var ErrInvalidCredentials = errors.New("invalid username or password")

func Login(ctx context.Context, username string, password string) (*LoginInfo, error) {
	if config.GetRedisDB() == nil {
		return nil, errors.New("session store is not ready")
	}
	db := config.GetDB()

	var user User
	err := db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := utils.ComparePassword(user.Password, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	if user.IsActive != nil && !*user.IsActive {
		return nil, errors.New("user is disabled")
	}

	lifespan := config.TokenLifespan()
	token := uuid.New().String()
	if err := config.SetRedisValue(ctx, "Token:"+token, user.Username, lifespan); err != nil {
		return nil, err
	}
	if err := config.SetRedisObject(ctx, "User:"+user.Username, &user, lifespan); err != nil {
		return nil, err
	}

	return &LoginInfo{
		Token:      token,
		Name:       user.Name,
		Role:       user.Role,
		BusinessId: user.BusinessId,
		ExpiresAt:  time.Now().Add(lifespan).UTC(),
	}, nil
}

func Logout(ctx context.Context) (bool, error) {
	token, ok := utils.GetTokenFromContext(ctx)
	if !ok || token == "" {
		return false, errors.New("token is required")
	}
	if err := config.RemoveRedisKey(ctx, "Token:"+token); err != nil {
		return false, err
	}
	return true, nil
}

// GetUserByUsername serves the session middleware; the cached copy has no
// password hash.
func GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	exists, err := config.GetRedisObject(ctx, "User:"+username, &user)
	if err != nil {
		return nil, err
	}
	if exists {
		return &user, nil
	}
	err = config.GetDB().WithContext(ctx).Where("username = ?", username).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ResolveSessionToken maps a login token to its user.
func ResolveSessionToken(ctx context.Context, token string) (*User, error) {
	username, exists, err := config.GetRedisValue(ctx, "Token:"+token)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.New("invalid token")
	}
	return GetUserByUsername(ctx, username)
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {
	if strings.TrimSpace(input.Username) == "" || input.Password == "" || input.BusinessId == "" {
		return nil, utils.NewValidationError("business id, username and password are required")
	}
	if input.Role == "" {
		input.Role = UserRoleStaff
	}
	if input.Role != UserRoleAdmin && input.Role != UserRoleStaff {
		return nil, utils.NewValidationError("invalid role")
	}
	if err := utils.ValidateUnique[User](ctx, "", "username", input.Username, 0); err != nil {
		return nil, utils.NewValidationError("%s", err.Error())
	}
	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	user := User{
		BusinessId: input.BusinessId,
		Username:   strings.TrimSpace(input.Username),
		Name:       input.Name,
		Password:   hashed,
		Role:       input.Role,
		IsActive:   utils.NewTrue(),
	}
	if err := config.GetDB().WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
