package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"Intent-Chain/internal/router"

	"github.com/ethereum/go-ethereum/common"
)

// GovernanceStore persists the governance alias and route tables in MySQL.
// It satisfies both asset.AliasStore and router.RouteStore.
type GovernanceStore struct {
	db *sql.DB
}

// NewGovernanceStore creates the store using the provided connection settings
// and brings the schema up to date.
func NewGovernanceStore(ctx context.Context, cfg Config) (*GovernanceStore, error) {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &GovernanceStore{db: db}, nil
}

// Close releases the underlying database connection pool.
func (s *GovernanceStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveAlias upserts a single alias binding.
func (s *GovernanceStore) SaveAlias(ctx context.Context, name string, asset common.Address) error {
	const stmt = `INSERT INTO asset_aliases (name, asset, updated_at) VALUES (?, ?, ?)
        ON DUPLICATE KEY UPDATE asset = VALUES(asset), updated_at = VALUES(updated_at)`
	if _, err := s.db.ExecContext(ctx, stmt, strings.ToLower(name), asset.Hex(), time.Now().Unix()); err != nil {
		return fmt.Errorf("写入资产别名失败: %w", err)
	}
	return nil
}

// LoadAliases returns the full dynamic alias table.
func (s *GovernanceStore) LoadAliases(ctx context.Context) (map[string]common.Address, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, asset FROM asset_aliases`)
	if err != nil {
		return nil, fmt.Errorf("查询资产别名失败: %w", err)
	}
	defer rows.Close()

	aliases := make(map[string]common.Address)
	for rows.Next() {
		var name, hex string
		if err := rows.Scan(&name, &hex); err != nil {
			return nil, fmt.Errorf("解析资产别名失败: %w", err)
		}
		aliases[name] = common.HexToAddress(hex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历资产别名失败: %w", err)
	}
	return aliases, nil
}

// SaveRoute upserts a governance route for a canonical pair.
func (s *GovernanceStore) SaveRoute(ctx context.Context, pair router.Pair, pool common.Address, fee uint32) error {
	const stmt = `INSERT INTO pool_routes (token0, token1, pool, fee, updated_at) VALUES (?, ?, ?, ?, ?)
        ON DUPLICATE KEY UPDATE pool = VALUES(pool), fee = VALUES(fee), updated_at = VALUES(updated_at)`
	if _, err := s.db.ExecContext(ctx, stmt, pair.Token0.Hex(), pair.Token1.Hex(), pool.Hex(), fee, time.Now().Unix()); err != nil {
		return fmt.Errorf("写入池路由失败: %w", err)
	}
	return nil
}

// LoadRoutes returns the full governance route table keyed by canonical pair.
func (s *GovernanceStore) LoadRoutes(ctx context.Context) (map[router.Pair]router.StoredRoute, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT token0, token1, pool, fee FROM pool_routes`)
	if err != nil {
		return nil, fmt.Errorf("查询池路由失败: %w", err)
	}
	defer rows.Close()

	routes := make(map[router.Pair]router.StoredRoute)
	for rows.Next() {
		var token0, token1, pool string
		var fee uint32
		if err := rows.Scan(&token0, &token1, &pool, &fee); err != nil {
			return nil, fmt.Errorf("解析池路由失败: %w", err)
		}
		pair := router.Pair{Token0: common.HexToAddress(token0), Token1: common.HexToAddress(token1)}
		routes[pair] = router.StoredRoute{Pool: common.HexToAddress(pool), Fee: fee}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历池路由失败: %w", err)
	}
	return routes, nil
}
