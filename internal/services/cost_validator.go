package services

import (
	"context"
	"math/big"

	"github.com/inscribe-bot/backend/internal/chain"
	"github.com/inscribe-bot/backend/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Affordability is the outcome of a cost check. Insufficient funds is a
// normal result (HasEnough=false), not an error.
type Affordability struct {
	HasEnough bool
	Balance   *big.Int
	FeeRate   *big.Int
	Cost      *big.Int // network fee only
	Required  *big.Int // cost plus any value transferred
	CostUSD   *decimal.Decimal
}

type CostValidator struct {
	prices PriceSource
	log    *zap.Logger
}

func NewCostValidator(prices PriceSource, log *zap.Logger) *CostValidator {
	return &CostValidator{prices: prices, log: log}
}

// Check reads balance, fee rate and the reference price concurrently.
// extra is value sent on top of the fee (native sends), nil otherwise.
func (v *CostValidator) Check(ctx context.Context, adapter chain.Adapter, address, payload string, pref models.FeePreference, extra *big.Int) (*Affordability, error) {
	var (
		balance, feeRate *big.Int
		price            *decimal.Decimal
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		balance, err = adapter.GetBalance(gctx, address)
		return err
	})
	g.Go(func() error {
		var err error
		feeRate, err = adapter.GetFeeRate(gctx)
		return err
	})
	if v.prices != nil {
		g.Go(func() error {
			p, err := v.prices.GetReferencePrice(gctx, adapter.Symbol())
			if err != nil {
				// display only
				v.log.Debug("reference price unavailable", zap.String("symbol", adapter.Symbol()), zap.Error(err))
				return nil
			}
			price = &p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	cost := adapter.EstimateCost(len(payload), feeRate, pref)
	required := new(big.Int).Set(cost)
	if extra != nil {
		required.Add(required, extra)
	}

	a := &Affordability{
		HasEnough: balance.Cmp(required) >= 0,
		Balance:   balance,
		FeeRate:   feeRate,
		Cost:      cost,
		Required:  required,
	}
	if price != nil {
		usd := decimal.NewFromBigInt(cost, -adapter.Decimals()).Mul(*price).Round(2)
		a.CostUSD = &usd
	}
	return a, nil
}
