package chain

import (
	"context"
	"crypto/ed25519"
	"math/big"
	"strings"
	"testing"

	"github.com/inscribe-bot/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton"
	"go.uber.org/zap"
)

func TestTONEstimateCost(t *testing.T) {
	a := NewTONAdapter(nil, "testnet", zap.NewNop())

	rate, err := a.GetFeeRate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), rate.Int64())

	assert.Equal(t, int64(10_100_000), a.EstimateCost(100, rate, models.FeeAuto).Int64())
	assert.Equal(t, int64(9_090_000), a.EstimateCost(100, rate, models.FeeLow).Int64())
	assert.Equal(t, int64(12_625_000), a.EstimateCost(100, rate, models.FeeHigh).Int64())
	assert.Equal(t, int64(10_000_000), a.EstimateCost(0, rate, models.FeeAuto).Int64())
}

func TestTONValidateAddress(t *testing.T) {
	a := NewTONAdapter(nil, "testnet", zap.NewNop())

	friendly := address.NewAddress(0, 0, make([]byte, 32)).String()
	raw := "0:" + strings.Repeat("ab", 32)

	assert.True(t, a.ValidateAddress(friendly))
	assert.True(t, a.ValidateAddress(raw))
	assert.False(t, a.ValidateAddress("0x52908400098527886E0F7030069857D2E4169EE7"))
	assert.False(t, a.ValidateAddress("EQ-not-an-address"))
	assert.False(t, a.ValidateAddress(""))
}

func TestTONPrivateKey(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	seed[0] = 1

	k, err := tonPrivateKey(seed)
	require.NoError(t, err)
	assert.Equal(t, ed25519.NewKeyFromSeed(seed), k)

	k2, err := tonPrivateKey(ed25519.NewKeyFromSeed(seed))
	require.NoError(t, err)
	assert.Equal(t, k, k2)

	_, err = tonPrivateKey([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestTONExplorerURL(t *testing.T) {
	assert.Equal(t, "https://tonviewer.com/transaction/ff", NewTONAdapter(nil, "mainnet", zap.NewNop()).ExplorerURL("ff"))
	assert.Equal(t, "https://testnet.tonviewer.com/transaction/ff", NewTONAdapter(nil, "testnet", zap.NewNop()).ExplorerURL("ff"))
}

func TestRegistry(t *testing.T) {
	evm := newTestEVM(&fakeEthBackend{})
	tonA := NewTONAdapter(nil, "testnet", zap.NewNop())
	r := NewRegistry(evm, tonA)

	got, err := r.Get("TON")
	require.NoError(t, err)
	assert.Equal(t, ChainTON, got.Name())

	_, err = r.Get("btc")
	assert.Error(t, err)

	assert.Equal(t, []string{ChainEVM, ChainTON}, r.Names())

	var _ ActivationChecker = tonA
	_, isChecker := Adapter(evm).(ActivationChecker)
	assert.False(t, isChecker)
}

func TestLinearCostClampsNegative(t *testing.T) {
	assert.Equal(t, int64(0), linearCost(10, big.NewInt(-1), 100, 1, models.FeeAuto).Int64())
	assert.Equal(t, int64(100), linearCost(-5, big.NewInt(1), 100, 1, models.FeeAuto).Int64())
}

func TestTONSendable(t *testing.T) {
	withState := func(status tlb.AccountStatus, balance string) *tlb.Account {
		st := &tlb.AccountState{IsValid: true}
		st.Status = status
		st.Balance = tlb.MustFromTON(balance)
		return &tlb.Account{IsActive: true, State: st}
	}

	tests := []struct {
		name string
		acc  *tlb.Account
		want bool
	}{
		{"no account", nil, false},
		{"never deployed", &tlb.Account{IsActive: false}, false},
		{"active", withState(tlb.AccountStatusActive, "0.5"), true},
		{"active and empty", withState(tlb.AccountStatusActive, "0"), true},
		{"uninit with funds deploys on first send", withState(tlb.AccountStatusUninit, "0.05"), true},
		{"uninit and empty", withState(tlb.AccountStatusUninit, "0"), false},
		{"frozen", withState(tlb.AccountStatusFrozen, "1"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tonSendable(tt.acc))
		})
	}
}

func TestTONSendsBypassRetry(t *testing.T) {
	base := ton.NewAPIClient(nil)
	read, send := tonClients(base)

	assert.Same(t, base, send)
	assert.NotSame(t, base, read)

	a := NewTONAdapter(read, "testnet", zap.NewNop())
	a.send = send
	assert.Same(t, base, a.send)
}
