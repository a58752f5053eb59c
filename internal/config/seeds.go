package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Seeds models the structure of configs/seeds.yaml: deployer-provisioned
// aliases, routes, account names and memory-ledger fixtures loaded once at
// startup.
type Seeds struct {
	Aliases map[string]string `yaml:"aliases"`
	Names   map[string]string `yaml:"names"`
	Routes  []RouteSeed       `yaml:"routes"`
	Tokens  []TokenSeed       `yaml:"tokens"`
	Pools   []PoolSeed        `yaml:"pools"`
	Funding []FundingSeed     `yaml:"funding"`
}

// RouteSeed pins a governance route for an asset pair.
type RouteSeed struct {
	AssetA string `yaml:"asset_a"`
	AssetB string `yaml:"asset_b"`
	Pool   string `yaml:"pool"`
	Fee    uint32 `yaml:"fee"`
}

// TokenSeed declares a token with metadata for the memory ledger.
type TokenSeed struct {
	Address  string `yaml:"address"`
	Name     string `yaml:"name"`
	Symbol   string `yaml:"symbol"`
	Decimals uint8  `yaml:"decimals"`
}

// PoolSeed deploys a constant-product pool in the memory ledger.
type PoolSeed struct {
	AssetA   string `yaml:"asset_a"`
	AssetB   string `yaml:"asset_b"`
	Fee      uint32 `yaml:"fee"`
	ReserveA string `yaml:"reserve_a"`
	ReserveB string `yaml:"reserve_b"`
}

// FundingSeed credits an account with a starting balance.
type FundingSeed struct {
	Account string `yaml:"account"`
	Asset   string `yaml:"asset"`
	Amount  string `yaml:"amount"`
}

// LoadSeeds parses the YAML file containing startup fixtures. An empty path
// yields empty seeds rather than an error.
func LoadSeeds(path string) (Seeds, error) {
	if strings.TrimSpace(path) == "" {
		return Seeds{}, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return Seeds{}, fmt.Errorf("读取种子配置失败: %w", err)
	}

	var seeds Seeds
	if err := yaml.Unmarshal(content, &seeds); err != nil {
		return Seeds{}, fmt.Errorf("解析种子配置失败: %w", err)
	}
	return seeds, nil
}
