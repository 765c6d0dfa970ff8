package credential

import (
	"context"
	"errors"

	"github.com/suPer8Hu/localchat/internal/common"
	"github.com/suPer8Hu/localchat/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// Insert adds c unless the username is taken. It reports false, without
// touching the existing row, when the primary key already exists.
func (r *Repo) Insert(ctx context.Context, c *models.Credential) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(c)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *Repo) GetByUsername(ctx context.Context, username string) (*models.Credential, error) {
	var c models.Credential
	if err := r.db.WithContext(ctx).
		Where("username = ?", username).
		First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *Repo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Credential{}).Count(&n).Error
	return n, err
}
