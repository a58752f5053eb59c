// Package naming resolves human-readable account names to addresses.
//
// The engine consults a Resolver whenever a command's object is not a
// literal hex address. The default Directory is an in-process table fed
// by governance; deployments can swap in an external service through
// the engine's governance surface.
package naming

import (
	"context"
	"strings"
	"sync"

	xerrors "Intent-Chain/internal/errors"

	"github.com/ethereum/go-ethereum/common"
)

// Resolution carries the resolved account plus where the answer came from.
type Resolution struct {
	Account common.Address `json:"account"`
	Source  string         `json:"source"`
}

// Resolver maps a lowercased name to an account.
type Resolver interface {
	Resolve(ctx context.Context, name string) (Resolution, error)
}

// Directory is a governance-fed in-memory name table.
type Directory struct {
	mu      sync.RWMutex
	entries map[string]common.Address
}

// NewDirectory builds an empty directory.
func NewDirectory() *Directory {
	return &Directory{entries: make(map[string]common.Address)}
}

// Register binds a name to an account, overwriting any prior binding.
func (d *Directory) Register(name string, account common.Address) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[strings.ToLower(name)] = account
}

// Resolve looks the name up in the directory.
func (d *Directory) Resolve(_ context.Context, name string) (Resolution, error) {
	d.mu.RLock()
	account, ok := d.entries[strings.ToLower(name)]
	d.mu.RUnlock()
	if !ok {
		return Resolution{}, xerrors.New(xerrors.CodeNotFound, "unknown account name: "+name)
	}
	return Resolution{Account: account, Source: "directory"}, nil
}
