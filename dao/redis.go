package dao

import (
	"context"
	"time"

	"petro_trade/model"
	"petro_trade/utils"

	"github.com/go-redis/redis/v8"
)

// openListingBoardKey 公开报盘榜Key（ZSet，score=创建时间毫秒）
const openListingBoardKey = "petro:listings:open"

// boardTTL 报盘榜过期时间，DB是权威数据，榜丢了重建即可
const boardTTL = 24 * time.Hour

// AddListingToBoard 挂单上榜，每次写入顺带续期防止冷数据常驻
func AddListingToBoard(ctx context.Context, listing *model.TradeListing) error {
	if utils.RedisClient == nil {
		return nil
	}
	score := float64(listing.CreatedAt.UnixMilli())
	err := utils.RedisClient.ZAdd(ctx, openListingBoardKey, &redis.Z{
		Score:  score,
		Member: listing.ID,
	}).Err()
	if err != nil {
		return err
	}
	return utils.RedisClient.Expire(ctx, openListingBoardKey, boardTTL).Err()
}

// RemoveListingFromBoard 挂单下榜（撮合成功或撤下时调用）
func RemoveListingFromBoard(ctx context.Context, listingID string) error {
	if utils.RedisClient == nil {
		return nil
	}
	return utils.RedisClient.ZRem(ctx, openListingBoardKey, listingID).Err()
}

// GetBoardListingIDs 按时间倒序取榜上挂单ID（新报盘优先）
func GetBoardListingIDs(ctx context.Context, page, pageSize int) ([]string, error) {
	if utils.RedisClient == nil {
		return nil, redis.Nil
	}
	start := int64((page - 1) * pageSize)
	stop := start + int64(pageSize) - 1
	return utils.RedisClient.ZRevRange(ctx, openListingBoardKey, start, stop).Result()
}

// BoardSize 榜上挂单总数
func BoardSize(ctx context.Context) (int64, error) {
	if utils.RedisClient == nil {
		return 0, redis.Nil
	}
	return utils.RedisClient.ZCard(ctx, openListingBoardKey).Result()
}
