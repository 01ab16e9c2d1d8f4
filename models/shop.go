package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/shopledger_backend/config"
	"bitbucket.org/mmdatafocus/shopledger_backend/utils"
	"gorm.io/gorm"
)

type Shop struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:100;not null;uniqueIndex" json:"name"`
	Location  string    `gorm:"size:100" json:"location"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewShop struct {
	Name     string `json:"name" validate:"required,max=100"`
	Location string `json:"location" validate:"max=100"`
}

func CreateShop(ctx context.Context, input *NewShop) (*Shop, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	shop := Shop{
		Name:     input.Name,
		Location: input.Location,
		IsActive: utils.NewTrue(),
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&shop).Error; err != nil {
		return nil, err
	}
	return &shop, nil
}

func GetShop(ctx context.Context, id int) (*Shop, error) {
	return utils.FetchModel[Shop](ctx, config.GetDB(), "shop", id)
}

// RequireShop validates shop existence inside tx.
func RequireShop(ctx context.Context, tx *gorm.DB, shopId int) error {
	return utils.ValidateResourceId[Shop](ctx, tx, "shop", shopId)
}
