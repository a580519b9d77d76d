package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiko9987/itglobal/internal/testutil"
)

func TestDedup(t *testing.T) {
	impls := map[string]func(t *testing.T) Dedup{
		"memory": func(t *testing.T) Dedup { return NewMemoryDedup() },
		"gorm":   func(t *testing.T) Dedup { return NewGormDedup(testutil.SetupTestDB(t)) },
	}

	for name, newDedup := range impls {
		name, newDedup := name, newDedup
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			t.Run("same_fingerprint_same_day_is_claimed_once", func(t *testing.T) {
				d := newDedup(t)
				ok, err := d.Claim(ctx, "kim", "2024-03-05", "fp1")
				require.NoError(t, err)
				assert.True(t, ok)

				ok, err = d.Claim(ctx, "kim", "2024-03-05", "fp1")
				require.NoError(t, err)
				assert.False(t, ok)
			})

			t.Run("changed_fingerprint_or_new_day_is_claimable", func(t *testing.T) {
				d := newDedup(t)
				_, _ = d.Claim(ctx, "kim", "2024-03-05", "fp1")

				ok, err := d.Claim(ctx, "kim", "2024-03-05", "fp2")
				require.NoError(t, err)
				assert.True(t, ok)

				ok, err = d.Claim(ctx, "kim", "2024-03-06", "fp2")
				require.NoError(t, err)
				assert.True(t, ok)

				ok, _ = d.Claim(ctx, "lee", "2024-03-06", "fp2")
				assert.True(t, ok, "owners are independent")
			})

			t.Run("release_allows_retry", func(t *testing.T) {
				d := newDedup(t)
				_, _ = d.Claim(ctx, "kim", "2024-03-05", "fp1")
				require.NoError(t, d.Release(ctx, "kim", "2024-03-05", "fp1"))

				ok, err := d.Claim(ctx, "kim", "2024-03-05", "fp1")
				require.NoError(t, err)
				assert.True(t, ok)
			})

			t.Run("release_restores_earlier_claim", func(t *testing.T) {
				d := newDedup(t)
				ok, _ := d.Claim(ctx, "kim", "2024-03-05", "fp1")
				require.True(t, ok)
				ok, _ = d.Claim(ctx, "kim", "2024-03-05", "fp2")
				require.True(t, ok)
				require.NoError(t, d.Release(ctx, "kim", "2024-03-05", "fp2"))

				ok, err := d.Claim(ctx, "kim", "2024-03-05", "fp1")
				require.NoError(t, err)
				assert.False(t, ok, "fp1 was delivered earlier that day")

				ok, err = d.Claim(ctx, "kim", "2024-03-05", "fp2")
				require.NoError(t, err)
				assert.True(t, ok, "the failed digest is retried")
			})

			t.Run("release_of_stale_claim_is_noop", func(t *testing.T) {
				d := newDedup(t)
				_, _ = d.Claim(ctx, "kim", "2024-03-05", "fp2")
				require.NoError(t, d.Release(ctx, "kim", "2024-03-05", "fp1"))

				ok, _ := d.Claim(ctx, "kim", "2024-03-05", "fp2")
				assert.False(t, ok)
			})

			t.Run("concurrent_claims_have_one_winner", func(t *testing.T) {
				d := newDedup(t)
				var wins atomic.Int32
				var wg sync.WaitGroup
				for i := 0; i < 10; i++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						if ok, err := d.Claim(ctx, "kim", "2024-03-05", "fp"); err == nil && ok {
							wins.Add(1)
						}
					}()
				}
				wg.Wait()
				assert.Equal(t, int32(1), wins.Load())
			})
		})
	}
}
