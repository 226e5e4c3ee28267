package cache_test

import (
	"testing"
	"time"

	"github.com/boddenberg/crm-farol-bfa/internal/domain"
	"github.com/boddenberg/crm-farol-bfa/internal/infra/cache"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func TestCache_SetAndGet(t *testing.T) {
	c := cache.New[string](5 * time.Minute)
	defer c.Close()

	c.Set("key1", "value1")
	val, ok := c.Get("key1")
	if !ok {
		t.Fatal("expected key to exist")
	}
	if val != "value1" {
		t.Errorf("expected 'value1', got '%s'", val)
	}
}

func TestCache_GetMiss(t *testing.T) {
	c := cache.New[string](5 * time.Minute)

	_, ok := c.Get("nonexistent")
	if ok {
		t.Fatal("expected cache miss for nonexistent key")
	}
}

func TestCache_Expiration(t *testing.T) {
	c := cache.New[string](50 * time.Millisecond)

	c.Set("key1", "value1")
	time.Sleep(100 * time.Millisecond)

	_, ok := c.Get("key1")
	if ok {
		t.Fatal("expected cache entry to be expired")
	}
}

func TestCache_Delete(t *testing.T) {
	c := cache.New[string](5 * time.Minute)

	c.Set("key1", "value1")
	c.Delete("key1")

	_, ok := c.Get("key1")
	if ok {
		t.Fatal("expected key to be deleted")
	}
}

func TestCache_ZeroTTLDisablesCaching(t *testing.T) {
	c := cache.New[*domain.Profile](0)

	c.Set("user-1", &domain.Profile{UserID: "user-1"})
	if _, ok := c.Get("user-1"); ok {
		t.Fatal("expected nothing cached with zero TTL")
	}
}

func TestRedis_UnreachableDegradesToMiss(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	defer client.Close()

	c := cache.NewRedis[*domain.Profile](client, "crm:profile:", time.Minute, zap.NewNop())

	c.Set("user-1", &domain.Profile{UserID: "user-1"})
	if _, ok := c.Get("user-1"); ok {
		t.Fatal("expected miss when redis is unreachable")
	}
	c.Delete("user-1")
}
