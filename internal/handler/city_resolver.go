// Package handler はHTTP APIのハンドラーとルーティングを提供する。
package handler

import (
	"context"

	"github.com/hitoshi/weatherpost/internal/model"
	"github.com/hitoshi/weatherpost/internal/repository"
	"github.com/hitoshi/weatherpost/internal/weather"
)

// CitySearcher は都市名からロケーションIDを検索するインターフェース。
// weather.Providerの部分集合として定義する。
type CitySearcher interface {
	SearchCity(ctx context.Context, name, adm string) ([]weather.City, error)
}

// CityResolver はリクエストパラメータを送信対象都市に解決する。
// 解決経路（ID直接指定 / 収蔵 / 名前のみ）をCityRefとして明示する。
type CityResolver struct {
	favorites repository.FavoriteRepository
	searcher  CitySearcher
}

// NewCityResolver はCityResolverを生成する。
func NewCityResolver(favorites repository.FavoriteRepository, searcher CitySearcher) *CityResolver {
	return &CityResolver{
		favorites: favorites,
		searcher:  searcher,
	}
}

// Resolve はリクエストの都市パラメータからCityRefを構築する。
// 優先順位: city_id直接指定 → 収蔵から名前解決 → （requireFavoriteがfalseなら）名前のみ。
// 収蔵必須で未収蔵の場合はCITY_NOT_RESOLVEDを返す。
func (cr *CityResolver) Resolve(ctx context.Context, userID, cityID, cityName, province string, requireFavorite bool) (*model.CityRef, error) {
	if cityID != "" {
		return &model.CityRef{
			Source:   model.CitySourceByID,
			CityID:   cityID,
			CityName: cityName,
			Province: province,
		}, nil
	}

	if cityName == "" {
		return nil, model.NewCityNotResolvedError()
	}

	fav, err := cr.favorites.FindByUserAndCity(ctx, userID, cityName, province)
	if err != nil {
		return nil, err
	}
	if fav != nil {
		return &model.CityRef{
			Source:   model.CitySourceFavorite,
			CityID:   fav.CityID,
			CityName: fav.CityName,
			Province: fav.Province,
		}, nil
	}

	if requireFavorite {
		return nil, model.NewCityNotResolvedError()
	}

	return &model.CityRef{
		Source:   model.CitySourceByName,
		CityName: cityName,
		Province: province,
	}, nil
}

// LocationID はCityRefから天気プロバイダのロケーションIDを確定する。
// ID確定済みならそのまま返し、名前のみの場合はGeo検索で
// 都市名（と省名）の完全一致を優先して解決する。
func (cr *CityResolver) LocationID(ctx context.Context, ref *model.CityRef) (string, error) {
	if ref.CityID != "" {
		return ref.CityID, nil
	}

	cities, err := cr.searcher.SearchCity(ctx, ref.CityName, ref.Province)
	if err != nil {
		return "", model.NewWeatherUnavailableError(err.Error())
	}
	if len(cities) == 0 {
		return "", model.NewCityNotFoundError(ref.CityName)
	}

	for _, c := range cities {
		if c.Name == ref.CityName && (ref.Province == "" || c.Adm1 == ref.Province) {
			return c.ID, nil
		}
	}
	return cities[0].ID, nil
}
