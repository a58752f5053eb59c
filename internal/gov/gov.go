// Package gov 实现治理主体的授权检查：别名表、路由表以及命名服务引用的
// 所有变更都必须先通过这里的 Guard。
package gov

import (
	xerrors "Intent-Chain/internal/errors"

	"github.com/ethereum/go-ethereum/common"
)

// Guard 在任何状态变更之前执行单一职责的授权检查。
type Guard struct {
	principal common.Address
}

// NewGuard 创建一个以指定治理主体为唯一授权者的 Guard。
func NewGuard(principal common.Address) *Guard {
	return &Guard{principal: principal}
}

// Principal 返回治理主体的账户标识。
func (g *Guard) Principal() common.Address {
	if g == nil {
		return common.Address{}
	}
	return g.principal
}

// Authorize 校验调用者是否为治理主体。未配置主体时拒绝所有调用。
func (g *Guard) Authorize(caller common.Address) error {
	if g == nil || g.principal == (common.Address{}) {
		return xerrors.New(xerrors.CodeUnauthorized, "governance principal not configured")
	}
	if caller != g.principal {
		return xerrors.New(xerrors.CodeUnauthorized, "caller is not the governance principal",
			xerrors.WithMetadata("caller", caller.Hex()))
	}
	return nil
}
