package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

var (
	erc20Uint8Type, _  = abi.NewType("uint8", "", nil)
	erc20StringType, _ = abi.NewType("string", "", nil)
	erc20UintType, _   = abi.NewType("uint256", "", nil)
	erc20AddrType, _   = abi.NewType("address", "", nil)

	balanceOfArgs   = abi.Arguments{{Type: erc20AddrType}}
	uint256Return   = abi.Arguments{{Type: erc20UintType}}
	uint8Return     = abi.Arguments{{Type: erc20Uint8Type}}
	stringReturn    = abi.Arguments{{Type: erc20StringType}}

	balanceOfSelector   = []byte{0x70, 0xa0, 0x82, 0x31}
	totalSupplySelector = []byte{0x18, 0x16, 0x0d, 0xdd}
	nameSelector        = []byte{0x06, 0xfd, 0xde, 0x03}
	symbolSelector      = []byte{0x95, 0xd8, 0x9b, 0x41}
	decimalsSelector    = []byte{0x31, 0x3c, 0xe5, 0x67}
)

// EVMReader answers the read-only substrate surface against a live EVM node.
// It carries no execution surface: deployments using it still execute against
// the in-process substrate, but routing and alias resolution observe real
// chain state.
type EVMReader struct {
	rpcClient *gethrpc.Client
	eth       *ethclient.Client
}

// NewEVMReader dials the configured RPC endpoint and returns a ready reader.
func NewEVMReader(ctx context.Context, rpcURL string) (*EVMReader, error) {
	rpcURL = strings.TrimSpace(rpcURL)
	if rpcURL == "" {
		return nil, errors.New("未配置以太坊 RPC 地址")
	}
	rpcClient, err := gethrpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("连接以太坊节点失败: %w", err)
	}
	return &EVMReader{rpcClient: rpcClient, eth: ethclient.NewClient(rpcClient)}, nil
}

// Close releases the underlying RPC connection.
func (r *EVMReader) Close() {
	if r != nil && r.rpcClient != nil {
		r.rpcClient.Close()
	}
}

// CodeAt reports the deployed code of an account.
func (r *EVMReader) CodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	return r.eth.CodeAt(ctx, account, nil)
}

// NativeBalance reads the native balance of an account at the latest block.
func (r *EVMReader) NativeBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	return r.eth.BalanceAt(ctx, account, nil)
}

// TokenBalance reads an ERC-20 balance via eth_call.
func (r *EVMReader) TokenBalance(ctx context.Context, token, holder common.Address) (*big.Int, error) {
	input, err := balanceOfArgs.Pack(holder)
	if err != nil {
		return nil, fmt.Errorf("编码 balanceOf 参数失败: %w", err)
	}
	output, err := r.call(ctx, token, append(append([]byte(nil), balanceOfSelector...), input...))
	if err != nil {
		return nil, err
	}
	return r.unpackUint256(output)
}

// TokenMetadata reads the token's self-reported name, symbol and decimals.
func (r *EVMReader) TokenMetadata(ctx context.Context, token common.Address) (TokenMetadata, error) {
	name, err := r.callString(ctx, token, nameSelector)
	if err != nil {
		return TokenMetadata{}, err
	}
	symbol, err := r.callString(ctx, token, symbolSelector)
	if err != nil {
		return TokenMetadata{}, err
	}
	output, err := r.call(ctx, token, decimalsSelector)
	if err != nil {
		return TokenMetadata{}, err
	}
	fields, err := uint8Return.Unpack(output)
	if err != nil {
		return TokenMetadata{}, fmt.Errorf("解析 decimals 返回值失败: %w", err)
	}
	return TokenMetadata{Name: name, Symbol: symbol, Decimals: fields[0].(uint8)}, nil
}

// TokenTotalSupply reads an ERC-20 total supply via eth_call.
func (r *EVMReader) TokenTotalSupply(ctx context.Context, token common.Address) (*big.Int, error) {
	output, err := r.call(ctx, token, totalSupplySelector)
	if err != nil {
		return nil, err
	}
	return r.unpackUint256(output)
}

func (r *EVMReader) call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	output, err := r.eth.CallContract(ctx, gethcore.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("eth_call 失败: %w", err)
	}
	return output, nil
}

func (r *EVMReader) callString(ctx context.Context, to common.Address, selector []byte) (string, error) {
	output, err := r.call(ctx, to, selector)
	if err != nil {
		return "", err
	}
	fields, err := stringReturn.Unpack(output)
	if err != nil {
		return "", fmt.Errorf("解析字符串返回值失败: %w", err)
	}
	return fields[0].(string), nil
}

func (r *EVMReader) unpackUint256(output []byte) (*big.Int, error) {
	fields, err := uint256Return.Unpack(output)
	if err != nil {
		return nil, fmt.Errorf("解析 uint256 返回值失败: %w", err)
	}
	return fields[0].(*big.Int), nil
}
