package wallet

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/bridge-pay/bridge_pay/internal/ledger"
)

// Platform resolves the platform revenue wallet per currency. Wallets for the
// configured currencies are created once at startup; any other currency is
// ensured on first use through the same idempotent lookup-or-create.
type Platform struct {
	userID string
	store  ledger.Store

	mu      sync.RWMutex
	wallets map[string]ledger.Wallet
}

// BootstrapPlatform ensures the platform wallets exist for every currency.
func BootstrapPlatform(ctx context.Context, store ledger.Store, userID string, currencies []string) (*Platform, error) {
	if userID == "" {
		return nil, fmt.Errorf("platform user id is required")
	}
	p := &Platform{userID: userID, store: store, wallets: make(map[string]ledger.Wallet)}
	for _, currency := range currencies {
		if strings.TrimSpace(currency) == "" {
			continue
		}
		if _, err := p.Wallet(ctx, currency); err != nil {
			return nil, fmt.Errorf("bootstrap platform wallet %s: %w", currency, err)
		}
	}
	return p, nil
}

// Wallet returns the platform wallet for currency.
func (p *Platform) Wallet(ctx context.Context, currency string) (ledger.Wallet, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	p.mu.RLock()
	w, ok := p.wallets[currency]
	p.mu.RUnlock()
	if ok {
		return w, nil
	}

	w, err := p.store.EnsureWallet(ctx, p.userID, currency)
	if err != nil {
		return ledger.Wallet{}, err
	}
	p.mu.Lock()
	p.wallets[currency] = w
	p.mu.Unlock()
	return w, nil
}
