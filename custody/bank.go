// Package custody provides an in-memory implementation of the ledger's
// asset-transfer collaborator: per-asset external account balances plus
// a vault tracking what the ledger itself holds. Production deployments
// substitute their own asset store; this one backs tests, local runs,
// and solvency verification.
package custody

import (
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/cloudx-io/auctionledger/core"
)

var (
	// ErrInsufficientFunds means the debited side does not hold the
	// requested amount.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrNegativeAmount means a transfer or mint was asked to move a
	// negative quantity.
	ErrNegativeAmount = errors.New("amount must not be negative")
)

// Bank is an in-memory asset store implementing core.Custody.
type Bank struct {
	mu       sync.Mutex
	accounts map[core.AssetID]map[core.AccountID]decimal.Decimal
	vault    map[core.AssetID]decimal.Decimal
}

// NewBank creates an empty bank: no accounts, nothing in the vault.
func NewBank() *Bank {
	return &Bank{
		accounts: make(map[core.AssetID]map[core.AccountID]decimal.Decimal),
		vault:    make(map[core.AssetID]decimal.Decimal),
	}
}

// Mint credits an external account out of thin air. Test and tooling
// helper; the ledger itself never mints.
func (b *Bank) Mint(asset core.AssetID, account core.AccountID, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("mint %s %s to %s: %w", amount, asset, account, ErrNegativeAmount)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.credit(asset, account, amount)
	return nil
}

// TransferIn moves amount of asset from an external account into the
// vault. A zero amount succeeds without touching any balance.
func (b *Bank) TransferIn(asset core.AssetID, from core.AccountID, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("transfer in %s %s from %s: %w", amount, asset, from, ErrNegativeAmount)
	}
	if amount.IsZero() {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	held := b.accountBalance(asset, from)
	if held.LessThan(amount) {
		return fmt.Errorf("transfer in %s %s from %s (holds %s): %w", amount, asset, from, held, ErrInsufficientFunds)
	}

	b.accounts[asset][from] = held.Sub(amount)
	b.vault[asset] = b.vaultBalance(asset).Add(amount)
	return nil
}

// TransferOut moves amount of asset from the vault to an external
// account. A zero amount succeeds without touching any balance.
func (b *Bank) TransferOut(asset core.AssetID, to core.AccountID, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("transfer out %s %s to %s: %w", amount, asset, to, ErrNegativeAmount)
	}
	if amount.IsZero() {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	held := b.vaultBalance(asset)
	if held.LessThan(amount) {
		return fmt.Errorf("transfer out %s %s to %s (vault holds %s): %w", amount, asset, to, held, ErrInsufficientFunds)
	}

	b.vault[asset] = held.Sub(amount)
	b.credit(asset, to, amount)
	return nil
}

// Balance reports the vault's holding of asset.
func (b *Bank) Balance(asset core.AssetID) decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.vaultBalance(asset)
}

// AccountBalance reports an external account's holding of asset.
func (b *Bank) AccountBalance(asset core.AssetID, account core.AccountID) decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.accountBalance(asset, account)
}

// credit must be called with the mutex held.
func (b *Bank) credit(asset core.AssetID, account core.AccountID, amount decimal.Decimal) {
	holders, ok := b.accounts[asset]
	if !ok {
		holders = make(map[core.AccountID]decimal.Decimal)
		b.accounts[asset] = holders
	}
	holders[account] = holders[account].Add(amount)
}

// accountBalance must be called with the mutex held.
func (b *Bank) accountBalance(asset core.AssetID, account core.AccountID) decimal.Decimal {
	return b.accounts[asset][account]
}

// vaultBalance must be called with the mutex held.
func (b *Bank) vaultBalance(asset core.AssetID) decimal.Decimal {
	return b.vault[asset]
}
