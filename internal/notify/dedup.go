package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "github.com/kiko9987/itglobal/internal/errors"
	"github.com/kiko9987/itglobal/internal/models"
)

// Dedup remembers the last fingerprint claimed per owner per day. Claim is
// an atomic check-and-set: it reports false when (owner, day) already holds
// fp, so two concurrent runs cannot both send the same digest.
type Dedup interface {
	Claim(ctx context.Context, owner, day, fingerprint string) (bool, error)
	// Release undoes a claim whose delivery failed so the next run retries.
	// The claim it replaced becomes current again.
	Release(ctx context.Context, owner, day, fingerprint string) error
}

type dedupEntry struct {
	day         string
	fingerprint string
}

type dedupState struct {
	current dedupEntry
	prev    dedupEntry
}

// MemoryDedup keeps claims in process memory.
type MemoryDedup struct {
	mu      sync.Mutex
	entries map[string]dedupState
}

// NewMemoryDedup creates an empty MemoryDedup.
func NewMemoryDedup() *MemoryDedup {
	return &MemoryDedup{entries: map[string]dedupState{}}
}

var _ Dedup = (*MemoryDedup)(nil)

func (d *MemoryDedup) Claim(ctx context.Context, owner, day, fingerprint string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	want := dedupEntry{day: day, fingerprint: fingerprint}
	state := d.entries[owner]
	if state.current == want {
		return false, nil
	}
	d.entries[owner] = dedupState{current: want, prev: state.current}
	return true, nil
}

func (d *MemoryDedup) Release(ctx context.Context, owner, day, fingerprint string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	state, ok := d.entries[owner]
	if !ok || state.current != (dedupEntry{day: day, fingerprint: fingerprint}) {
		return nil
	}
	if state.prev == (dedupEntry{}) {
		delete(d.entries, owner)
		return nil
	}
	d.entries[owner] = dedupState{current: state.prev}
	return nil
}

// GormDedup keeps claims in the notification_states table.
type GormDedup struct {
	db *gorm.DB
}

// NewGormDedup creates a GormDedup.
func NewGormDedup(db *gorm.DB) *GormDedup {
	return &GormDedup{db: db}
}

var _ Dedup = (*GormDedup)(nil)

// Claim upserts the owner's row, updating it only when the day or fingerprint
// differs; zero affected rows means the claim is already held. The replaced
// claim moves to the prev_ columns.
func (d *GormDedup) Claim(ctx context.Context, owner, day, fingerprint string) (bool, error) {
	state := &models.NotificationState{Owner: owner, Day: day, Fingerprint: fingerprint, UpdatedAt: time.Now()}
	result := d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "owner"}},
		DoUpdates: clause.Set{
			{Column: clause.Column{Name: "prev_day"}, Value: gorm.Expr("notification_states.day")},
			{Column: clause.Column{Name: "prev_fingerprint"}, Value: gorm.Expr("notification_states.fingerprint")},
			{Column: clause.Column{Name: "day"}, Value: gorm.Expr("excluded.day")},
			{Column: clause.Column{Name: "fingerprint"}, Value: gorm.Expr("excluded.fingerprint")},
			{Column: clause.Column{Name: "updated_at"}, Value: gorm.Expr("excluded.updated_at")},
		},
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "notification_states.day <> excluded.day OR notification_states.fingerprint <> excluded.fingerprint"},
		}},
	}).Create(state)
	if result.Error != nil {
		return false, apperrors.Wrap(apperrors.ErrStoreUnavailable, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// Release swaps the prev_ columns back in. A row without a previous claim
// ends up with an empty day, which no run ever claims against.
func (d *GormDedup) Release(ctx context.Context, owner, day, fingerprint string) error {
	err := d.db.WithContext(ctx).Model(&models.NotificationState{}).
		Where("owner = ? AND day = ? AND fingerprint = ?", owner, day, fingerprint).
		Updates(map[string]any{
			"day":              gorm.Expr("prev_day"),
			"fingerprint":      gorm.Expr("prev_fingerprint"),
			"prev_day":         "",
			"prev_fingerprint": "",
			"updated_at":       time.Now(),
		}).Error
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
	}
	return nil
}

// RedisDedup keeps claims in Redis with a two-day expiry. Each owner has a
// hash holding the current claim and the one it replaced.
type RedisDedup struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisDedup creates a RedisDedup with keys under prefix.
func NewRedisDedup(rdb *redis.Client, prefix string) *RedisDedup {
	return &RedisDedup{rdb: rdb, prefix: prefix}
}

var _ Dedup = (*RedisDedup)(nil)

const dedupTTL = 48 * time.Hour

var claimScript = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'current')
if current == ARGV[1] then
  return 0
end
if current then
  redis.call('HSET', KEYS[1], 'prev', current)
else
  redis.call('HDEL', KEYS[1], 'prev')
end
redis.call('HSET', KEYS[1], 'current', ARGV[1])
redis.call('PEXPIRE', KEYS[1], ARGV[2])
return 1
`)

var releaseScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'current') ~= ARGV[1] then
  return 0
end
local prev = redis.call('HGET', KEYS[1], 'prev')
if prev then
  redis.call('HSET', KEYS[1], 'current', prev)
  redis.call('HDEL', KEYS[1], 'prev')
  return 1
end
return redis.call('DEL', KEYS[1])
`)

func (d *RedisDedup) key(owner string) string {
	return fmt.Sprintf("%s:dedup:%s", d.prefix, owner)
}

func (d *RedisDedup) Claim(ctx context.Context, owner, day, fingerprint string) (bool, error) {
	n, err := claimScript.Run(ctx, d.rdb, []string{d.key(owner)}, day+"|"+fingerprint, dedupTTL.Milliseconds()).Int()
	if err != nil {
		return false, apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
	}
	return n == 1, nil
}

func (d *RedisDedup) Release(ctx context.Context, owner, day, fingerprint string) error {
	if err := releaseScript.Run(ctx, d.rdb, []string{d.key(owner)}, day+"|"+fingerprint).Err(); err != nil {
		return apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
	}
	return nil
}
