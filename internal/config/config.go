package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Config 描述了意图引擎在启动阶段需要加载的核心配置。
type Config struct {
	Server     ServerConfig     `json:"server"`
	Governance GovernanceConfig `json:"governance"`
	Ledger     LedgerConfig     `json:"ledger"`
	Storage    StorageConfig    `json:"storage"`
	Queue      QueueConfig      `json:"queue"`
	Logging    LoggingConfig    `json:"logging"`
	Runtime    RuntimeConfig    `json:"runtime"`
}

// ServerConfig 控制 API 服务的监听地址与治理接口令牌。
type ServerConfig struct {
	Address         string `json:"address"`
	GovernanceToken string `json:"governance_token"`
}

// GovernanceConfig 指定唯一的治理主体地址。
type GovernanceConfig struct {
	Principal string `json:"principal"`
}

// LedgerConfig 描述账本后端：内存模拟或真实 RPC 节点。
type LedgerConfig struct {
	Driver string `json:"driver"`
	RPCURL string `json:"rpc_url"`
	WETH   string `json:"weth"`
	Seeds  string `json:"seeds"`
}

// StorageConfig 统一描述 MySQL、Redis 等后端的连接信息。
type StorageConfig struct {
	Governance GovernanceStoreConfig `json:"governance_store"`
	Cache      CacheConfig           `json:"metadata_cache"`
}

// GovernanceStoreConfig 持久化治理别名与路由表。
type GovernanceStoreConfig struct {
	Driver string `json:"driver"`
	DSN    string `json:"dsn"`
}

// CacheConfig 描述代币元数据缓存。
type CacheConfig struct {
	Driver   string `json:"driver"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	TTLMin   int    `json:"ttl_minutes"`
}

// QueueConfig 描述治理事件通知队列。
type QueueConfig struct {
	Driver string `json:"driver"`
	URL    string `json:"url"`
	Queue  string `json:"queue"`
}

// LoggingConfig 控制结构化日志与审计日志输出。
type LoggingConfig struct {
	Level       string   `json:"level"`
	Format      string   `json:"format"`
	OutputPaths []string `json:"output_paths"`
	AuditPath   string   `json:"audit_path"`
}

// RuntimeConfig 用于放置运行时的通用参数。
type RuntimeConfig struct {
	DataDir string `json:"data_dir"`
}

// Load 负责解析指定路径的 JSON 配置文件。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开配置文件失败: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.applyDefaults(filepath.Dir(path))

	return &cfg, nil
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}

	if c.Ledger.Driver == "" {
		c.Ledger.Driver = "memory"
	}
	if c.Ledger.Seeds != "" && !filepath.IsAbs(c.Ledger.Seeds) {
		c.Ledger.Seeds = filepath.Join(baseDir, c.Ledger.Seeds)
	}

	if c.Storage.Governance.Driver == "" {
		c.Storage.Governance.Driver = "memory"
	}
	if c.Storage.Cache.Driver == "" {
		c.Storage.Cache.Driver = "memory"
	}

	if c.Queue.Driver == "" {
		c.Queue.Driver = "none"
	}
	if c.Queue.Queue == "" {
		c.Queue.Queue = "intentchain.governance"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if len(c.Logging.OutputPaths) == 0 {
		c.Logging.OutputPaths = []string{"stdout"}
	}

	if c.Runtime.DataDir == "" {
		c.Runtime.DataDir = filepath.Join(baseDir, "data")
	} else if !filepath.IsAbs(c.Runtime.DataDir) {
		c.Runtime.DataDir = filepath.Join(baseDir, c.Runtime.DataDir)
	}
}
