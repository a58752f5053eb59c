// Package engine is the top-level command surface: it parses a restricted
// natural-language financial command, resolves every name in it, and either
// previews the resulting call payload or executes it against the ledger
// substrate. Every invocation is serialized and all-or-nothing; a failure
// mid-execution reverts to the snapshot taken at entry.
package engine

import (
	"context"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"Intent-Chain/internal/amount"
	"Intent-Chain/internal/asset"
	"Intent-Chain/internal/codec"
	xerrors "Intent-Chain/internal/errors"
	"Intent-Chain/internal/gov"
	"Intent-Chain/internal/intent"
	"Intent-Chain/internal/ledger"
	"Intent-Chain/internal/naming"
	"Intent-Chain/internal/notify"
	"Intent-Chain/internal/observability/metrics"
	"Intent-Chain/internal/router"
	"Intent-Chain/internal/swap"
	loggerpkg "Intent-Chain/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Preview is the dry-run view of a command: everything resolved, nothing
// executed.
type Preview struct {
	RequestID string
	Action    intent.Action
	Summary   string
	Payload   []byte

	// Send fields.
	To     common.Address
	Asset  common.Address
	Amount *big.Int

	// Swap fields.
	Route     *router.Route
	AssetIn   common.Address
	AssetOut  common.Address
	AmountIn  *big.Int
	MinAmount *big.Int
}

// Result reports one executed command.
type Result struct {
	RequestID string
	Action    intent.Action
	Payload   []byte

	// Send fields.
	To     common.Address
	Asset  common.Address
	Amount *big.Int

	// Swap fields.
	Receipt *swap.Receipt
}

// Balance is a raw plus decimal-adjusted balance read.
type Balance struct {
	Asset   common.Address
	Raw     *big.Int
	Display string
}

// Option configures optional engine collaborators.
type Option func(*Engine)

// WithNotifier attaches a governance event notifier.
func WithNotifier(notifier notify.Notifier) Option {
	return func(e *Engine) { e.notifier = notifier }
}

// Engine wires the parser, registry, router, settler and translator behind a
// single mutex. The substrate never observes parallel mutation of its state.
type Engine struct {
	mu sync.Mutex

	substrate  ledger.Substrate
	registry   *asset.Registry
	router     *router.Router
	settler    *swap.Settler
	translator *codec.Translator
	names      naming.Resolver
	guard      *gov.Guard
	notifier   notify.Notifier

	log   *slog.Logger
	audit *slog.Logger
}

// New assembles an engine over the given collaborators.
func New(substrate ledger.Substrate, registry *asset.Registry, rt *router.Router, settler *swap.Settler, names naming.Resolver, guard *gov.Guard, opts ...Option) *Engine {
	e := &Engine{
		substrate:  substrate,
		registry:   registry,
		router:     rt,
		settler:    settler,
		translator: codec.NewTranslator(registry, names),
		names:      names,
		guard:      guard,
		notifier:   notify.Nop{},
		log:        loggerpkg.Named("engine"),
		audit:      loggerpkg.Audit(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Preview parses and fully resolves a command without touching the ledger.
// The payload is rendered as requester would submit it.
func (e *Engine) Preview(ctx context.Context, requester common.Address, text string) (*Preview, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := uuid.NewString()
	cmd, err := intent.Parse(text)
	if err != nil {
		return nil, err
	}

	switch cmd.Action {
	case intent.ActionSend:
		to, info, value, err := e.resolveSend(ctx, cmd.Send)
		if err != nil {
			return nil, err
		}
		payload := codec.EncodeSend(to, value, info.Address)
		summary, err := e.translator.Decode(ctx, payload)
		if err != nil {
			return nil, err
		}
		return &Preview{
			RequestID: id,
			Action:    cmd.Action,
			Summary:   summary,
			Payload:   payload,
			To:        to,
			Asset:     info.Address,
			Amount:    value,
		}, nil

	case intent.ActionSwap:
		in, out, amountIn, minOut, err := e.resolveSwap(ctx, cmd.Swap)
		if err != nil {
			return nil, err
		}
		route, err := e.router.Route(ctx, e.wrapped(in.Address), e.wrapped(out.Address))
		if err != nil {
			return nil, err
		}
		return &Preview{
			RequestID: id,
			Action:    cmd.Action,
			Summary:   swapSummary(in, out, amountIn, minOut),
			Payload:   codec.EncodeSwap(route.Pool, requester, route.ZeroForOne, amountIn, swap.PriceLimit(route.ZeroForOne)),
			Route:     &route,
			AssetIn:   in.Address,
			AssetOut:  out.Address,
			AmountIn:  amountIn,
			MinAmount: minOut,
		}, nil
	}
	return nil, xerrors.New(xerrors.CodeInvalidSyntax, "unsupported action: "+cmd.Action.String())
}

// Execute runs a command on behalf of requester. Any failure discards every
// effect of the invocation, including partial swap settlement.
func (e *Engine) Execute(ctx context.Context, requester common.Address, text string) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := uuid.NewString()
	cmd, err := intent.Parse(text)
	if err != nil {
		return nil, err
	}

	snapshot := e.substrate.Snapshot()
	result, err := e.execute(ctx, id, requester, cmd)
	if err != nil {
		e.substrate.Revert(snapshot)
		metrics.ObserveCommand(cmd.Action.String(), string(xerrors.CodeOf(err)))
		e.log.Warn("command aborted", "request_id", id, "requester", requester.Hex(), "error", err)
		return nil, err
	}
	e.substrate.Discard(snapshot)
	metrics.ObserveCommand(cmd.Action.String(), "OK")

	e.audit.Info("command executed",
		"request_id", id,
		"requester", requester.Hex(),
		"action", cmd.Action.String(),
	)
	return result, nil
}

func (e *Engine) execute(ctx context.Context, id string, requester common.Address, cmd *intent.Command) (*Result, error) {
	switch cmd.Action {
	case intent.ActionSend:
		to, info, value, err := e.resolveSend(ctx, cmd.Send)
		if err != nil {
			return nil, err
		}
		if info.Native() {
			err = e.substrate.TransferNative(ctx, requester, to, value)
		} else {
			err = e.substrate.TransferToken(ctx, info.Address, requester, to, value)
		}
		if err != nil {
			return nil, err
		}
		return &Result{
			RequestID: id,
			Action:    cmd.Action,
			Payload:   codec.EncodeSend(to, value, info.Address),
			To:        to,
			Asset:     info.Address,
			Amount:    value,
		}, nil

	case intent.ActionSwap:
		in, out, amountIn, minOut, err := e.resolveSwap(ctx, cmd.Swap)
		if err != nil {
			return nil, err
		}
		receipt, err := e.settler.Swap(ctx, swap.Request{
			Requester:    requester,
			AssetIn:      in.Address,
			AssetOut:     out.Address,
			AmountIn:     amountIn,
			MinAmountOut: minOut,
		})
		if err != nil {
			return nil, err
		}
		return &Result{
			RequestID: id,
			Action:    cmd.Action,
			Payload:   codec.EncodeSwap(receipt.Pool, requester, receipt.ZeroForOne, receipt.AmountIn, swap.PriceLimit(receipt.ZeroForOne)),
			Receipt:   receipt,
		}, nil
	}
	return nil, xerrors.New(xerrors.CodeInvalidSyntax, "unsupported action: "+cmd.Action.String())
}

// resolvers returns the translator and name service as a consistent pair.
// Both references are replaceable through governance, so read handlers must
// never load them without the lock.
func (e *Engine) resolvers() (*codec.Translator, naming.Resolver) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.translator, e.names
}

// Describe reconstructs the command text equivalent to a transfer payload.
func (e *Engine) Describe(ctx context.Context, payload []byte) (string, error) {
	translator, _ := e.resolvers()
	return translator.Decode(ctx, payload)
}

// Verify checks a stated intent against an operation payload byte for byte.
func (e *Engine) Verify(ctx context.Context, intentText string, operation []byte) (bool, error) {
	translator, _ := e.resolvers()
	return translator.Verify(ctx, intentText, operation)
}

// RegisterAlias binds a name to an asset through governance.
func (e *Engine) RegisterAlias(ctx context.Context, caller common.Address, name string, token common.Address) error {
	return e.registry.Register(ctx, caller, name, token)
}

// RegisterAliasFromToken derives both a full-name and a ticker alias from the
// token's self-reported metadata.
func (e *Engine) RegisterAliasFromToken(ctx context.Context, caller, token common.Address) error {
	return e.registry.RegisterFromToken(ctx, caller, token)
}

// RegisterRoute pins a governance route for an asset pair.
func (e *Engine) RegisterRoute(ctx context.Context, caller, assetA, assetB, pool common.Address, fee uint32) error {
	return e.router.Register(ctx, caller, assetA, assetB, pool, fee)
}

// RegisterName binds an account name in the built-in directory. Deployments
// that replaced the resolver with an external service cannot use this path.
func (e *Engine) RegisterName(ctx context.Context, caller common.Address, name string, account common.Address) error {
	if err := e.guard.Authorize(caller); err != nil {
		return err
	}
	_, names := e.resolvers()
	directory, ok := names.(*naming.Directory)
	if !ok {
		return xerrors.New(xerrors.CodeInvalidArgument, "active name resolver does not accept direct registration")
	}
	directory.Register(name, account)
	e.audit.Info("name registered", "name", name, "account", account.Hex())
	return nil
}

// SetNameService replaces the name-resolution service reference.
func (e *Engine) SetNameService(ctx context.Context, caller common.Address, resolver naming.Resolver) error {
	if err := e.guard.Authorize(caller); err != nil {
		return err
	}
	e.mu.Lock()
	e.names = resolver
	e.translator = codec.NewTranslator(e.registry, resolver)
	e.mu.Unlock()

	e.audit.Info("name service replaced")
	if err := e.notifier.Publish(ctx, notify.Event{Kind: notify.KindNamingReplaced, Key: "resolver", At: time.Now().Unix()}); err != nil {
		e.log.Warn("governance event publish failed", "kind", notify.KindNamingReplaced, "error", err)
	}
	return nil
}

// ResolveName answers the read-only name query surface.
func (e *Engine) ResolveName(ctx context.Context, name string) (naming.Resolution, error) {
	_, names := e.resolvers()
	return names.Resolve(ctx, name)
}

// Balance reads an account's balance in a named asset, raw and
// decimal-adjusted.
func (e *Engine) Balance(ctx context.Context, account common.Address, assetName string) (*Balance, error) {
	info, err := e.registry.Resolve(ctx, assetName)
	if err != nil {
		return nil, err
	}
	var raw *big.Int
	if info.Native() {
		raw, err = e.substrate.NativeBalance(ctx, account)
	} else {
		raw, err = e.substrate.TokenBalance(ctx, info.Address, account)
	}
	if err != nil {
		return nil, err
	}
	return &Balance{
		Asset:   info.Address,
		Raw:     raw,
		Display: amount.FormatUnits(raw, info.Decimals),
	}, nil
}

// TotalSupply reads the circulating amount of a named asset.
func (e *Engine) TotalSupply(ctx context.Context, assetName string) (*Balance, error) {
	info, err := e.registry.Resolve(ctx, assetName)
	if err != nil {
		return nil, err
	}
	if info.Native() {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "native asset has no token supply")
	}
	raw, err := e.substrate.TokenTotalSupply(ctx, info.Address)
	if err != nil {
		return nil, err
	}
	return &Balance{
		Asset:   info.Address,
		Raw:     raw,
		Display: amount.FormatUnits(raw, info.Decimals),
	}, nil
}

func (e *Engine) resolveSend(ctx context.Context, send *intent.Send) (common.Address, asset.Info, *big.Int, error) {
	info, err := e.registry.Resolve(ctx, send.Asset)
	if err != nil {
		return common.Address{}, asset.Info{}, nil, err
	}
	value, err := amount.ParseUnits(send.Amount, info.Decimals)
	if err != nil {
		return common.Address{}, asset.Info{}, nil, err
	}
	to, err := e.translator.Account(ctx, send.To)
	if err != nil {
		return common.Address{}, asset.Info{}, nil, err
	}
	return to, info, value, nil
}

func (e *Engine) resolveSwap(ctx context.Context, sw *intent.Swap) (asset.Info, asset.Info, *big.Int, *big.Int, error) {
	in, err := e.registry.Resolve(ctx, sw.AssetIn)
	if err != nil {
		return asset.Info{}, asset.Info{}, nil, nil, err
	}
	out, err := e.registry.Resolve(ctx, sw.AssetOut)
	if err != nil {
		return asset.Info{}, asset.Info{}, nil, nil, err
	}
	amountIn, err := amount.ParseUnits(sw.AmountIn, in.Decimals)
	if err != nil {
		return asset.Info{}, asset.Info{}, nil, nil, err
	}
	// An omitted minimum reads as zero.
	minOut := new(big.Int)
	if sw.MinOut != "" {
		minOut, err = amount.ParseUnits(sw.MinOut, out.Decimals)
		if err != nil {
			return asset.Info{}, asset.Info{}, nil, nil, err
		}
	}
	return in, out, amountIn, minOut, nil
}

// swapSummary renders the canonical phrase for a resolved swap, mirroring how
// the decoder renders sends: normalized symbols and trimmed numerals.
func swapSummary(in, out asset.Info, amountIn, minOut *big.Int) string {
	summary := "swap " + amount.FormatUnits(amountIn, in.Decimals) + " " + in.Symbol + " to "
	if minOut != nil && minOut.Sign() > 0 {
		summary += amount.FormatUnits(minOut, out.Decimals) + " "
	}
	return summary + out.Symbol
}

func (e *Engine) wrapped(addr common.Address) common.Address {
	if addr == asset.Native {
		return e.settler.WETH()
	}
	return addr
}
