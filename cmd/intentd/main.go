package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"Intent-Chain/internal/amount"
	"Intent-Chain/internal/api"
	"Intent-Chain/internal/asset"
	"Intent-Chain/internal/config"
	"Intent-Chain/internal/engine"
	"Intent-Chain/internal/gov"
	"Intent-Chain/internal/ledger"
	"Intent-Chain/internal/naming"
	"Intent-Chain/internal/notify"
	"Intent-Chain/internal/router"
	mysqlstore "Intent-Chain/internal/storage/mysql"
	redisstore "Intent-Chain/internal/storage/redis"
	"Intent-Chain/internal/swap"
	loggerpkg "Intent-Chain/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
)

// main 是意图引擎守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("intentd 运行失败: %v", err)
	}
}

func run(ctx context.Context) error {
	configPath := os.Getenv("INTENTCHAIN_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("configs", "intentchain.json")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := loggerpkg.Init(loggerpkg.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: cfg.Logging.OutputPaths,
		Audit: loggerpkg.AuditConfig{
			Enabled: cfg.Logging.AuditPath != "",
			Path:    cfg.Logging.AuditPath,
		},
	}); err != nil {
		return err
	}
	defer loggerpkg.Sync()

	if err := os.MkdirAll(cfg.Runtime.DataDir, 0o755); err != nil {
		return err
	}

	var principal common.Address
	if cfg.Governance.Principal != "" {
		principal, err = amount.ParseAddress(cfg.Governance.Principal)
		if err != nil {
			return fmt.Errorf("解析治理主体地址失败: %w", err)
		}
	}
	guard := gov.NewGuard(principal)

	weth := asset.WETH
	if cfg.Ledger.WETH != "" {
		weth, err = amount.ParseAddress(cfg.Ledger.WETH)
		if err != nil {
			return fmt.Errorf("解析 WETH 地址失败: %w", err)
		}
	}

	// 执行始终运行在内存账本上；rpc 驱动只把只读查询指向真实节点。
	mem := ledger.NewMemory(weth)
	var reader ledger.Reader = mem
	switch cfg.Ledger.Driver {
	case "", "memory":
	case "rpc":
		evm, err := ledger.NewEVMReader(ctx, cfg.Ledger.RPCURL)
		if err != nil {
			return err
		}
		defer evm.Close()
		reader = evm
	default:
		return fmt.Errorf("未知的账本驱动: %s", cfg.Ledger.Driver)
	}

	var notifier notify.Notifier = notify.Nop{}
	switch cfg.Queue.Driver {
	case "", "none":
	case "memory":
		notifier = notify.NewMemory()
	case "rabbitmq":
		queue, err := notify.NewRabbitMQNotifier(notify.RabbitMQConfig{
			URL:     cfg.Queue.URL,
			Queue:   cfg.Queue.Queue,
			Durable: true,
		})
		if err != nil {
			return err
		}
		notifier = queue
	default:
		return fmt.Errorf("未知的队列驱动: %s", cfg.Queue.Driver)
	}
	defer func() {
		if err := notifier.Close(); err != nil {
			log.Printf("关闭通知通道失败: %v", err)
		}
	}()

	registryOpts := []asset.Option{asset.WithNotifier(notifier)}
	routerOpts := []router.Option{router.WithNotifier(notifier)}
	switch cfg.Storage.Governance.Driver {
	case "", "memory":
	case "mysql":
		store, err := mysqlstore.NewGovernanceStore(ctx, mysqlstore.Config{DSN: cfg.Storage.Governance.DSN})
		if err != nil {
			return err
		}
		defer store.Close()
		registryOpts = append(registryOpts, asset.WithAliasStore(store))
		routerOpts = append(routerOpts, router.WithRouteStore(store))
	default:
		return fmt.Errorf("未知的治理存储驱动: %s", cfg.Storage.Governance.Driver)
	}

	switch cfg.Storage.Cache.Driver {
	case "", "memory":
		registryOpts = append(registryOpts, asset.WithMetadataCache(redisstore.NewMemoryMetadataCache()))
	case "redis":
		cache, err := redisstore.NewMetadataCache(redisstore.Config{
			Address:  cfg.Storage.Cache.Address,
			Password: cfg.Storage.Cache.Password,
			DB:       cfg.Storage.Cache.DB,
			TTL:      time.Duration(cfg.Storage.Cache.TTLMin) * time.Minute,
		})
		if err != nil {
			return err
		}
		defer cache.Close()
		registryOpts = append(registryOpts, asset.WithMetadataCache(cache))
	default:
		return fmt.Errorf("未知的缓存驱动: %s", cfg.Storage.Cache.Driver)
	}

	registry := asset.NewRegistry(reader, guard, registryOpts...)
	if err := registry.Load(ctx); err != nil {
		return err
	}

	rt := router.New(reader, guard, routerOpts...)
	if err := rt.Load(ctx); err != nil {
		return err
	}

	settler := swap.NewSettler(mem, rt, weth)
	names := naming.NewDirectory()

	if err := applySeeds(ctx, cfg, mem, registry, rt, names, guard.Principal()); err != nil {
		return err
	}

	eng := engine.New(mem, registry, rt, settler, names, guard, engine.WithNotifier(notifier))

	server := api.NewServer(cfg.Server.Address, eng, cfg.Server.GovernanceToken)
	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// applySeeds 按配置装载启动期的别名、账户名与内存账本夹具。
func applySeeds(ctx context.Context, cfg *config.Config, mem *ledger.Memory, registry *asset.Registry, rt *router.Router, names *naming.Directory, principal common.Address) error {
	seeds, err := config.LoadSeeds(cfg.Ledger.Seeds)
	if err != nil {
		return err
	}

	resolve := func(name string) (common.Address, uint8, error) {
		info, err := registry.Resolve(ctx, name)
		if err != nil {
			return common.Address{}, 0, err
		}
		return info.Address, info.Decimals, nil
	}

	for _, token := range seeds.Tokens {
		addr, err := amount.ParseAddress(token.Address)
		if err != nil {
			return fmt.Errorf("解析种子代币地址失败: %w", err)
		}
		mem.SetTokenMetadata(addr, ledger.TokenMetadata{
			Name:     token.Name,
			Symbol:   token.Symbol,
			Decimals: token.Decimals,
		})
	}

	for name, hex := range seeds.Aliases {
		addr, err := amount.ParseAddress(hex)
		if err != nil {
			return fmt.Errorf("解析种子别名地址失败: %w", err)
		}
		if err := registry.Register(ctx, principal, name, addr); err != nil {
			return err
		}
	}

	for name, hex := range seeds.Names {
		addr, err := amount.ParseAddress(hex)
		if err != nil {
			return fmt.Errorf("解析种子账户地址失败: %w", err)
		}
		names.Register(name, addr)
	}

	for _, route := range seeds.Routes {
		assetA, _, err := resolve(route.AssetA)
		if err != nil {
			return err
		}
		assetB, _, err := resolve(route.AssetB)
		if err != nil {
			return err
		}
		pool, err := amount.ParseAddress(route.Pool)
		if err != nil {
			return fmt.Errorf("解析种子路由地址失败: %w", err)
		}
		if err := rt.Register(ctx, principal, assetA, assetB, pool, route.Fee); err != nil {
			return err
		}
	}

	for _, pool := range seeds.Pools {
		assetA, decimalsA, err := resolve(pool.AssetA)
		if err != nil {
			return err
		}
		assetB, decimalsB, err := resolve(pool.AssetB)
		if err != nil {
			return err
		}
		reserveA, err := amount.ParseUnits(pool.ReserveA, decimalsA)
		if err != nil {
			return err
		}
		reserveB, err := amount.ParseUnits(pool.ReserveB, decimalsB)
		if err != nil {
			return err
		}
		pair, aIsToken0 := router.Canonical(assetA, assetB)
		reserve0, reserve1 := reserveA, reserveB
		if !aIsToken0 {
			reserve0, reserve1 = reserveB, reserveA
		}
		venue := router.PoolFor(pair.Token0, pair.Token1, pool.Fee)
		mem.DeployPool(venue, pair.Token0, pair.Token1, pool.Fee, reserve0, reserve1)
	}

	for _, funding := range seeds.Funding {
		account, err := amount.ParseAddress(funding.Account)
		if err != nil {
			return fmt.Errorf("解析种子账户失败: %w", err)
		}
		addr, decimals, err := resolve(funding.Asset)
		if err != nil {
			return err
		}
		value, err := amount.ParseUnits(funding.Amount, decimals)
		if err != nil {
			return err
		}
		if addr == asset.Native {
			mem.MintNative(account, value)
		} else {
			mem.MintToken(addr, account, value)
		}
	}

	return nil
}
