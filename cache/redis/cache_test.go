package redis_test

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/simd-personal/Inno-Supps/cache"
	"github.com/simd-personal/Inno-Supps/cache/cachetest"
	rediscache "github.com/simd-personal/Inno-Supps/cache/redis"
)

func TestCache(t *testing.T) {
	cachetest.Run(t, func(t *testing.T) (cache.Cache, func(time.Duration)) {
		mr := miniredis.RunT(t)
		client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		return rediscache.New(client), mr.FastForward
	})
}
