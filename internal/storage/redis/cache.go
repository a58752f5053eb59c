package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"Intent-Chain/internal/ledger"
	loggerpkg "Intent-Chain/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
)

// Config 描述 Redis 缓存的连接参数。
type Config struct {
	Address  string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// MetadataCache 使用 Redis 缓存代币元数据，实现 asset.MetadataCache。
type MetadataCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewMetadataCache 创建 Redis 缓存实例。
func NewMetadataCache(cfg Config) (*MetadataCache, error) {
	if cfg.Address == "" {
		return nil, errors.New("Redis address 不能为空")
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "intentchain:token"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}
	return &MetadataCache{client: client, prefix: prefix, ttl: ttl}, nil
}

func (c *MetadataCache) key(token common.Address) string {
	return c.prefix + ":" + token.Hex()
}

// Get 读取缓存的元数据，未命中或读取失败都视为 miss。
func (c *MetadataCache) Get(ctx context.Context, token common.Address) (ledger.TokenMetadata, bool) {
	raw, err := c.client.Get(ctx, c.key(token)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			loggerpkg.L().Warn("读取元数据缓存失败", "token", token.Hex(), "error", err)
		}
		return ledger.TokenMetadata{}, false
	}
	var md ledger.TokenMetadata
	if err := json.Unmarshal(raw, &md); err != nil {
		return ledger.TokenMetadata{}, false
	}
	return md, true
}

// Set 写入元数据，失败只记录日志，不影响主流程。
func (c *MetadataCache) Set(ctx context.Context, token common.Address, md ledger.TokenMetadata) {
	raw, err := json.Marshal(md)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.key(token), raw, c.ttl).Err(); err != nil {
		loggerpkg.L().Warn("写入元数据缓存失败", "token", token.Hex(), "error", err)
	}
}

// Close 关闭底层 Redis 连接。
func (c *MetadataCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// MemoryMetadataCache 在本地进程内提供同样的缓存语义，方便测试与单机部署。
type MemoryMetadataCache struct {
	mu      sync.RWMutex
	entries map[common.Address]ledger.TokenMetadata
}

// NewMemoryMetadataCache 创建内存缓存。
func NewMemoryMetadataCache() *MemoryMetadataCache {
	return &MemoryMetadataCache{entries: make(map[common.Address]ledger.TokenMetadata)}
}

// Get 实现 asset.MetadataCache。
func (c *MemoryMetadataCache) Get(_ context.Context, token common.Address) (ledger.TokenMetadata, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	md, ok := c.entries[token]
	return md, ok
}

// Set 实现 asset.MetadataCache。
func (c *MemoryMetadataCache) Set(_ context.Context, token common.Address, md ledger.TokenMetadata) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[token] = md
}
