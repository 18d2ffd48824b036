package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/Hellares/back-consumo-combustible-sub001/internal/common/apperr"
	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Create(ctx context.Context, u *User) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *Repo) FindByUsername(ctx context.Context, username string) (*User, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var u User
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("user %s not found", username)
		}
		return nil, apperr.Infra(err, "failed to load user")
	}
	return &u, nil
}

func (r *Repo) FindByID(ctx context.Context, id uint) (*User, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var u User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("user %d not found", id)
		}
		return nil, apperr.Infra(err, "failed to load user")
	}
	return &u, nil
}

func (r *Repo) List(ctx context.Context, offset, limit int) ([]User, int64, error) {
	if r == nil || r.db == nil {
		return nil, 0, fmt.Errorf("repo db is nil")
	}
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	var total int64
	if err := r.db.WithContext(ctx).Model(&User{}).Count(&total).Error; err != nil {
		return nil, 0, apperr.Infra(err, "failed to count users")
	}
	var users []User
	if err := r.db.WithContext(ctx).Order("created_at desc").Offset(offset).Limit(limit).Find(&users).Error; err != nil {
		return nil, 0, apperr.Infra(err, "failed to list users")
	}
	return users, total, nil
}

// EnsureAdmin 确保存在一个初始管理员账号（幂等）。
func (r *Repo) EnsureAdmin(ctx context.Context, username, password string) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repo db is nil")
	}
	_, err := r.FindByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !apperr.IsNotFound(err) {
		return err
	}

	salt, err := GenerateSaltHex()
	if err != nil {
		return err
	}
	hash, err := HashPassword(password, salt)
	if err != nil {
		return err
	}
	admin := &User{
		Username:     username,
		PasswordHash: hash,
		PasswordSalt: salt,
		FullName:     "Administrador",
		Roles:        "admin",
		Active:       true,
	}
	return r.Create(ctx, admin)
}
