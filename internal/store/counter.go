package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "github.com/kiko9987/itglobal/internal/errors"
	"github.com/kiko9987/itglobal/internal/models"
)

// DBCounter keeps region counters in the region_counters table.
type DBCounter struct {
	db *gorm.DB
}

// NewDBCounter creates a DBCounter.
func NewDBCounter(db *gorm.DB) *DBCounter {
	return &DBCounter{db: db}
}

var _ Counter = (*DBCounter)(nil)

func (c *DBCounter) Get(ctx context.Context, region string) (int64, error) {
	var rc models.RegionCounter
	if err := c.db.WithContext(ctx).First(&rc, "region = ?", region).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, apperrors.ErrUnknownRegion
		}
		return 0, classify(err)
	}
	return rc.Value, nil
}

// Increment bumps the counter and reads it back inside one transaction; the
// row lock taken by the UPDATE keeps concurrent callers from seeing the same value.
func (c *DBCounter) Increment(ctx context.Context, region string) (int64, error) {
	var next int64
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.RegionCounter{}).
			Where("region = ?", region).
			Updates(map[string]any{"value": gorm.Expr("value + 1"), "updated_at": time.Now()})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperrors.ErrUnknownRegion
		}

		var rc models.RegionCounter
		if err := tx.First(&rc, "region = ?", region).Error; err != nil {
			return err
		}
		next = rc.Value
		return nil
	})
	if err != nil {
		return 0, classify(err)
	}
	return next, nil
}

// Seed creates a zero counter for every region that has none.
func (c *DBCounter) Seed(ctx context.Context, regions []string) error {
	for _, region := range regions {
		err := c.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.RegionCounter{Region: region}).Error
		if err != nil {
			return classify(err)
		}
	}
	return nil
}

// Raise lifts the counter to atLeast if it is lower.
func (c *DBCounter) Raise(ctx context.Context, region string, atLeast int64) error {
	err := c.db.WithContext(ctx).Model(&models.RegionCounter{}).
		Where("region = ? AND value < ?", region, atLeast).
		Updates(map[string]any{"value": atLeast, "updated_at": time.Now()}).Error
	return classify(err)
}

// RedisCounter keeps region counters in Redis, one key per region.
type RedisCounter struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisCounter creates a RedisCounter with keys under prefix.
func NewRedisCounter(rdb *redis.Client, prefix string) *RedisCounter {
	return &RedisCounter{rdb: rdb, prefix: prefix}
}

var _ Counter = (*RedisCounter)(nil)

// raiseScript sets the key to ARGV[1] only when that is larger.
var raiseScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local target = tonumber(ARGV[1])
if current < target then
  redis.call('SET', KEYS[1], ARGV[1])
  return target
end
return current
`)

func (c *RedisCounter) key(region string) string {
	return fmt.Sprintf("%s:counter:%s", c.prefix, region)
}

func (c *RedisCounter) Get(ctx context.Context, region string) (int64, error) {
	raw, err := c.rdb.Get(ctx, c.key(region)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, apperrors.ErrUnknownRegion
	}
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
	}
	return v, nil
}

func (c *RedisCounter) Increment(ctx context.Context, region string) (int64, error) {
	exists, err := c.rdb.Exists(ctx, c.key(region)).Result()
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
	}
	if exists == 0 {
		return 0, apperrors.ErrUnknownRegion
	}
	v, err := c.rdb.Incr(ctx, c.key(region)).Result()
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
	}
	return v, nil
}

func (c *RedisCounter) Seed(ctx context.Context, regions []string) error {
	for _, region := range regions {
		if err := c.rdb.SetNX(ctx, c.key(region), 0, 0).Err(); err != nil {
			return apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
		}
	}
	return nil
}

func (c *RedisCounter) Raise(ctx context.Context, region string, atLeast int64) error {
	if err := raiseScript.Run(ctx, c.rdb, []string{c.key(region)}, atLeast).Err(); err != nil {
		return apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
	}
	return nil
}
