package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/weatherpost/internal/model"
)

// PostgresFavoriteRepo はPostgreSQLを使用した収蔵都市リポジトリ。
type PostgresFavoriteRepo struct {
	db *sql.DB
}

// NewPostgresFavoriteRepo はPostgresFavoriteRepoを生成する。
func NewPostgresFavoriteRepo(db *sql.DB) *PostgresFavoriteRepo {
	return &PostgresFavoriteRepo{db: db}
}

// FindByUserAndCity はユーザーIDと都市名（任意で地域名）で収蔵を検索する。
// provinceが空の場合は都市名のみで照合する。見つからない場合はnilを返す。
func (r *PostgresFavoriteRepo) FindByUserAndCity(ctx context.Context, userID, cityName, province string) (*model.Favorite, error) {
	query := `SELECT id, user_id, city_id, city_name, province, created_at
	          FROM user_favorites
	          WHERE user_id = $1 AND city_name = $2`
	args := []interface{}{userID, cityName}

	if province != "" {
		query += ` AND province = $3`
		args = append(args, province)
	}

	favorite := &model.Favorite{}
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&favorite.ID, &favorite.UserID, &favorite.CityID,
		&favorite.CityName, &favorite.Province, &favorite.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("収蔵都市の検索に失敗しました: %w", err)
	}

	return favorite, nil
}

// compile-time interface check
var _ FavoriteRepository = (*PostgresFavoriteRepo)(nil)
