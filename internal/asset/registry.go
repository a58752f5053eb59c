package asset

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	xerrors "Intent-Chain/internal/errors"
	"Intent-Chain/internal/gov"
	"Intent-Chain/internal/ledger"
	"Intent-Chain/internal/notify"
	"Intent-Chain/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
)

// AliasStore persists the governance-maintained dynamic alias table.
type AliasStore interface {
	SaveAlias(ctx context.Context, name string, asset common.Address) error
	LoadAliases(ctx context.Context) (map[string]common.Address, error)
}

// MetadataCache fronts live token metadata queries. A miss is not an error;
// the registry falls through to the substrate.
type MetadataCache interface {
	Get(ctx context.Context, token common.Address) (ledger.TokenMetadata, bool)
	Set(ctx context.Context, token common.Address, md ledger.TokenMetadata)
}

// Registry is the alias resolution service. The compiled table is consulted
// first; the dynamic table is writable only by the governance principal, and
// every registration updates the forward and reverse mappings under one lock
// so readers never observe a half-written pair.
type Registry struct {
	mu      sync.RWMutex
	aliases map[string]common.Address
	names   map[common.Address]string

	reader   ledger.Reader
	guard    *gov.Guard
	store    AliasStore
	cache    MetadataCache
	notifier notify.Notifier
	audit    *slog.Logger
}

// Option configures optional registry collaborators.
type Option func(*Registry)

// WithAliasStore attaches persistent storage for the dynamic table.
func WithAliasStore(store AliasStore) Option {
	return func(r *Registry) { r.store = store }
}

// WithMetadataCache attaches a cache in front of live metadata queries.
func WithMetadataCache(cache MetadataCache) Option {
	return func(r *Registry) { r.cache = cache }
}

// WithNotifier attaches the governance event channel.
func WithNotifier(notifier notify.Notifier) Option {
	return func(r *Registry) { r.notifier = notifier }
}

// NewRegistry creates an alias registry backed by the given substrate reader.
func NewRegistry(reader ledger.Reader, guard *gov.Guard, opts ...Option) *Registry {
	r := &Registry{
		aliases:  make(map[string]common.Address),
		names:    make(map[common.Address]string),
		reader:   reader,
		guard:    guard,
		notifier: notify.Nop{},
		audit:    logger.Audit(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Load populates the dynamic table from the alias store.
func (r *Registry) Load(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	stored, err := r.store.LoadAliases(ctx)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "load alias table")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, addr := range stored {
		r.aliases[name] = addr
		r.names[addr] = name
	}
	return nil
}

// Resolve maps an asset name to its canonical identifier and decimal
// precision. An unresolvable name is an explicit UNKNOWN_ASSET failure rather
// than a zero-identifier sentinel. Decimal precision not known from either
// table is queried live from the asset itself.
func (r *Registry) Resolve(ctx context.Context, name string) (Info, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if info, ok := builtins[name]; ok {
		return info, nil
	}

	r.mu.RLock()
	addr, ok := r.aliases[name]
	r.mu.RUnlock()
	if !ok {
		return Info{}, xerrors.New(xerrors.CodeUnknownAsset, "",
			xerrors.WithMetadata("name", name))
	}

	md, err := r.metadata(ctx, addr)
	if err != nil {
		return Info{}, err
	}
	return Info{Address: addr, Decimals: md.Decimals, Symbol: name}, nil
}

// DisplayName resolves an asset identifier to its display alias: compiled
// table first, then the dynamic reverse table, then the token's live symbol.
func (r *Registry) DisplayName(ctx context.Context, asset common.Address) (string, error) {
	if asset == Native {
		return "eth", nil
	}
	if info, ok := builtinNames[asset]; ok {
		return info.Symbol, nil
	}

	r.mu.RLock()
	name, ok := r.names[asset]
	r.mu.RUnlock()
	if ok {
		return name, nil
	}

	md, err := r.metadata(ctx, asset)
	if err != nil {
		return "", err
	}
	return strings.ToLower(md.Symbol), nil
}

// Decimals returns the decimal precision of an asset identifier.
func (r *Registry) Decimals(ctx context.Context, asset common.Address) (uint8, error) {
	if asset == Native {
		return NativeDecimals, nil
	}
	if info, ok := builtinNames[asset]; ok {
		return info.Decimals, nil
	}
	md, err := r.metadata(ctx, asset)
	if err != nil {
		return 0, err
	}
	return md.Decimals, nil
}

// Register binds an alias to an asset identifier. Only the governance
// principal may register or overwrite an alias; the forward and reverse
// mappings update atomically and a notification event is emitted.
func (r *Registry) Register(ctx context.Context, caller common.Address, name string, asset common.Address) error {
	if err := r.guard.Authorize(caller); err != nil {
		return err
	}
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "alias name is empty")
	}
	if asset == (common.Address{}) {
		return xerrors.New(xerrors.CodeInvalidArgument, "alias target is the zero identifier")
	}

	if r.store != nil {
		if err := r.store.SaveAlias(ctx, name, asset); err != nil {
			return xerrors.Wrap(xerrors.CodeStorageFailure, err, "persist alias")
		}
	}

	r.mu.Lock()
	// An overwrite repoints the name; the previous target's reverse entry
	// must not keep advertising a name that now resolves elsewhere.
	if prev, ok := r.aliases[name]; ok && prev != asset && r.names[prev] == name {
		delete(r.names, prev)
	}
	r.aliases[name] = asset
	r.names[asset] = name
	r.mu.Unlock()

	r.audit.Info("alias_registered", "name", name, "asset", asset.Hex())
	if err := r.notifier.Publish(ctx, notify.Event{
		Kind:  notify.KindAliasRegistered,
		Key:   name,
		Value: asset.Hex(),
		At:    time.Now().Unix(),
	}); err != nil {
		return err
	}
	return nil
}

// RegisterFromToken registers both a full-name alias and a ticker alias
// derived from the token's self-reported metadata.
func (r *Registry) RegisterFromToken(ctx context.Context, caller, token common.Address) error {
	if err := r.guard.Authorize(caller); err != nil {
		return err
	}
	md, err := r.metadata(ctx, token)
	if err != nil {
		return err
	}
	if name := strings.ToLower(strings.TrimSpace(md.Name)); name != "" {
		if err := r.Register(ctx, caller, name, token); err != nil {
			return err
		}
	}
	if symbol := strings.ToLower(strings.TrimSpace(md.Symbol)); symbol != "" {
		if err := r.Register(ctx, caller, symbol, token); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) metadata(ctx context.Context, token common.Address) (ledger.TokenMetadata, error) {
	if r.cache != nil {
		if md, ok := r.cache.Get(ctx, token); ok {
			return md, nil
		}
	}
	md, err := r.reader.TokenMetadata(ctx, token)
	if err != nil {
		return ledger.TokenMetadata{}, xerrors.Wrap(xerrors.CodeUnknownAsset, err, "query token metadata",
			xerrors.WithMetadata("token", token.Hex()))
	}
	if r.cache != nil {
		r.cache.Set(ctx, token, md)
	}
	return md, nil
}
