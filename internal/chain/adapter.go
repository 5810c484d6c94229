package chain

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/inscribe-bot/backend/internal/models"
)

// Chain names
const (
	ChainEVM = "eth"
	ChainTON = "ton"
)

// BroadcastRequest carries everything needed to sign and submit one transaction.
// PrivateKey is plaintext key material and must not outlive the call.
type BroadcastRequest struct {
	PrivateKey    []byte
	Payload       string
	Recipient     string // empty: the sender's own address
	FeePreference models.FeePreference
	Amount        *big.Int // smallest unit; nil means zero
}

type BroadcastResult struct {
	Hash      string
	Timestamp time.Time
}

// Adapter is the per-chain capability set used by the workflow. Adapters keep
// no per-user state: nonces and sequence numbers are read from chain state on
// every broadcast, and nothing is retried.
type Adapter interface {
	Name() string
	Symbol() string
	Decimals() int32

	GetBalance(ctx context.Context, address string) (*big.Int, error)
	// GetFeeRate returns the chain's congestion price in its smallest unit.
	GetFeeRate(ctx context.Context) (*big.Int, error)
	// EstimateCost is deterministic and monotonic in payloadSize and feeRate.
	EstimateCost(payloadSize int, feeRate *big.Int, priority models.FeePreference) *big.Int
	ValidateAddress(address string) bool
	BuildAndBroadcast(ctx context.Context, req BroadcastRequest) (*BroadcastResult, error)
	ExplorerURL(hash string) string
}

// ActivationChecker is implemented by chains with an uninitialized-account
// concept. Only the pre-submit check consults it.
type ActivationChecker interface {
	IsAddressActivated(ctx context.Context, address string) (bool, error)
}

// ProviderError is a failed read against a chain provider.
type ProviderError struct {
	Chain string
	Op    string
	Err   error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider %s failed: %v", e.Chain, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// BroadcastError is a failed sign or submit. Reason is the provider's message.
type BroadcastError struct {
	Chain  string
	Reason string
	Err    error
}

func (e *BroadcastError) Error() string {
	return fmt.Sprintf("%s broadcast failed: %s", e.Chain, e.Reason)
}

func (e *BroadcastError) Unwrap() error { return e.Err }

func newBroadcastError(chain string, err error) *BroadcastError {
	return &BroadcastError{Chain: chain, Reason: err.Error(), Err: err}
}

// priorityPercent is the surcharge applied on top of the fee rate.
func priorityPercent(p models.FeePreference) int64 {
	switch p {
	case models.FeeLow:
		return 90
	case models.FeeHigh:
		return 125
	default:
		return 100
	}
}

// linearCost = feeRate * (base + size*perByte) * priority% / 100
func linearCost(payloadSize int, feeRate *big.Int, base, perByte int64, priority models.FeePreference) *big.Int {
	if payloadSize < 0 {
		payloadSize = 0
	}
	rate := feeRate
	if rate == nil || rate.Sign() < 0 {
		rate = big.NewInt(0)
	}
	units := big.NewInt(perByte)
	units.Mul(units, big.NewInt(int64(payloadSize)))
	units.Add(units, big.NewInt(base))

	cost := new(big.Int).Mul(rate, units)
	cost.Mul(cost, big.NewInt(priorityPercent(priority)))
	return cost.Quo(cost, big.NewInt(100))
}

// Registry selects an adapter by chain name.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter)}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

func (r *Registry) Register(a Adapter) {
	r.adapters[strings.ToLower(a.Name())] = a
}

func (r *Registry) Get(name string) (Adapter, error) {
	a, ok := r.adapters[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unsupported chain %q", name)
	}
	return a, nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for n := range r.adapters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
