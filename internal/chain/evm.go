package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/params"
	"github.com/inscribe-bot/backend/internal/models"
	"go.uber.org/zap"
)

// Estimates price every byte as non-zero calldata at the EIP-7623 floor,
// which is what an ASCII inscription actually costs after Prague.
const (
	evmBaseGas    = int64(params.TxGas)
	evmGasPerByte = int64(params.TxCostFloorPerToken * params.TxTokenPerNonZeroByte)
)

// ethBackend is the subset of *ethclient.Client the adapter needs.
type ethBackend interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

type EVMConfig struct {
	Name        string
	Symbol      string
	RPCURL      string
	ChainID     int64
	ExplorerURL string // e.g. https://etherscan.io
}

type EVMAdapter struct {
	backend ethBackend
	cfg     EVMConfig
	log     *zap.Logger
	now     func() time.Time
}

// DialEVM connects to an EVM JSON-RPC endpoint.
func DialEVM(ctx context.Context, cfg EVMConfig, log *zap.Logger) (*EVMAdapter, error) {
	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial evm rpc: %w", err)
	}
	log.Info("evm rpc connected", zap.String("chain", cfg.Name), zap.Int64("chain_id", cfg.ChainID))
	return NewEVMAdapter(client, cfg, log), nil
}

func NewEVMAdapter(backend ethBackend, cfg EVMConfig, log *zap.Logger) *EVMAdapter {
	if cfg.Name == "" {
		cfg.Name = ChainEVM
	}
	if cfg.Symbol == "" {
		cfg.Symbol = "ETH"
	}
	if cfg.ExplorerURL == "" {
		cfg.ExplorerURL = "https://etherscan.io"
	}
	return &EVMAdapter{backend: backend, cfg: cfg, log: log, now: time.Now}
}

func (a *EVMAdapter) Name() string    { return a.cfg.Name }
func (a *EVMAdapter) Symbol() string  { return a.cfg.Symbol }
func (a *EVMAdapter) Decimals() int32 { return 18 }

func (a *EVMAdapter) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	if !a.ValidateAddress(address) {
		return nil, &ProviderError{Chain: a.cfg.Name, Op: "balance", Err: fmt.Errorf("invalid address %q", address)}
	}
	bal, err := a.backend.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return nil, &ProviderError{Chain: a.cfg.Name, Op: "balance", Err: err}
	}
	return bal, nil
}

// GetFeeRate returns the suggested gas price in wei.
func (a *EVMAdapter) GetFeeRate(ctx context.Context) (*big.Int, error) {
	price, err := a.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, &ProviderError{Chain: a.cfg.Name, Op: "gas price", Err: err}
	}
	return price, nil
}

func (a *EVMAdapter) EstimateCost(payloadSize int, feeRate *big.Int, priority models.FeePreference) *big.Int {
	return linearCost(payloadSize, feeRate, evmBaseGas, evmGasPerByte, priority)
}

func (a *EVMAdapter) ValidateAddress(address string) bool {
	return strings.HasPrefix(address, "0x") && common.IsHexAddress(address)
}

func (a *EVMAdapter) BuildAndBroadcast(ctx context.Context, req BroadcastRequest) (*BroadcastResult, error) {
	key, err := crypto.ToECDSA(req.PrivateKey)
	if err != nil {
		return nil, &BroadcastError{Chain: a.cfg.Name, Reason: "invalid private key", Err: err}
	}
	from := crypto.PubkeyToAddress(key.PublicKey)

	to := from
	if req.Recipient != "" {
		if !a.ValidateAddress(req.Recipient) {
			return nil, &BroadcastError{Chain: a.cfg.Name, Reason: fmt.Sprintf("invalid recipient %q", req.Recipient)}
		}
		to = common.HexToAddress(req.Recipient)
	}

	// Always read the nonce from chain state; the adapter is shared by all users.
	nonce, err := a.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, newBroadcastError(a.cfg.Name, fmt.Errorf("get nonce: %w", err))
	}

	gasPrice, err := a.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, newBroadcastError(a.cfg.Name, fmt.Errorf("get gas price: %w", err))
	}
	gasPrice = new(big.Int).Quo(new(big.Int).Mul(gasPrice, big.NewInt(priorityPercent(req.FeePreference))), big.NewInt(100))

	chainID := big.NewInt(a.cfg.ChainID)
	if a.cfg.ChainID == 0 {
		chainID, err = a.backend.ChainID(ctx)
		if err != nil {
			return nil, newBroadcastError(a.cfg.Name, fmt.Errorf("get chain id: %w", err))
		}
	}

	value := req.Amount
	if value == nil {
		value = big.NewInt(0)
	}
	data := []byte(req.Payload)
	gas, err := evmGasLimit(data)
	if err != nil {
		return nil, newBroadcastError(a.cfg.Name, fmt.Errorf("gas limit: %w", err))
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &to,
		Value:    value,
		Data:     data,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), key)
	if err != nil {
		return nil, newBroadcastError(a.cfg.Name, fmt.Errorf("sign: %w", err))
	}

	if err := a.backend.SendTransaction(ctx, signed); err != nil {
		return nil, newBroadcastError(a.cfg.Name, err)
	}

	a.log.Info("evm transaction sent",
		zap.String("hash", signed.Hash().Hex()),
		zap.String("from", from.Hex()),
		zap.Uint64("nonce", nonce),
	)

	return &BroadcastResult{Hash: signed.Hash().Hex(), Timestamp: a.now()}, nil
}

// evmGasLimit is the larger of the intrinsic gas and the EIP-7623 calldata
// floor; nodes reject anything below the floor.
func evmGasLimit(data []byte) (uint64, error) {
	intrinsic, err := core.IntrinsicGas(data, nil, nil, false, true, true, true)
	if err != nil {
		return 0, err
	}
	floor, err := core.FloorDataGas(data)
	if err != nil {
		return 0, err
	}
	return max(intrinsic, floor), nil
}

func (a *EVMAdapter) ExplorerURL(hash string) string {
	return strings.TrimRight(a.cfg.ExplorerURL, "/") + "/tx/" + hash
}
