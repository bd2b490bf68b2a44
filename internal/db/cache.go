package eggs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
	model "github.com/tohatch/eggchain/internal/models"
)

type CacheService struct {
	client *redis.Client
}

func NewCacheService() (serv *CacheService, err error) {

	// config
	addr := os.Getenv("EGGCHAIN_CACHE_URL")
	if addr == "" {
		return nil, fmt.Errorf("env EGGCHAIN_CACHE_URL is not set")
	}
	user := os.Getenv("EGGCHAIN_CACHE_USER")
	pwd := os.Getenv("EGGCHAIN_CACHE_PWD")

	// redis
	db := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    pwd,
		Username:    user,
		DB:          0,
		MaxRetries:  5,
		DialTimeout: 10 * time.Second,
	})
	err = db.Ping(context.Background()).Err()
	if err != nil {
		return nil, err
	}

	return &CacheService{db}, nil
}

func statsKey(user int64) string {
	return "stats:" + strconv.FormatInt(user, 10)
}

func (c *CacheService) GetStats(ctx context.Context, user int64) (stats model.UserStats, err error) {
	val, err := c.client.Get(ctx, statsKey(user)).Result()
	if err == redis.Nil {
		return stats, fmt.Errorf("not found")
	} else if err != nil {
		return stats, err
	}

	err = json.Unmarshal([]byte(val), &stats)
	if err != nil {
		return stats, err
	}
	return stats, nil
}

func (c *CacheService) SetStats(ctx context.Context, user int64, stats model.UserStats) (err error) {
	val, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	err = c.client.Set(ctx, statsKey(user), val, 5*time.Minute).Err()
	if err != nil {
		return err
	}
	return nil
}

func (c *CacheService) InvalidateStats(ctx context.Context, user int64) error {
	err := c.client.Del(ctx, statsKey(user)).Err()
	if err != nil {
		return err
	}
	return nil
}
