package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// coin ids on the price API
var priceIDs = map[string]string{
	"ETH": "ethereum",
	"TON": "the-open-network",
}

// PriceOracle reads USD reference prices from a CoinGecko-compatible
// /simple/price endpoint and caches them in redis.
type PriceOracle struct {
	endpoint   string
	rdb        *redis.Client // optional
	ttl        time.Duration
	httpClient *http.Client
	log        *zap.Logger
}

func NewPriceOracle(endpoint string, rdb *redis.Client, ttl time.Duration, log *zap.Logger) *PriceOracle {
	return &PriceOracle{
		endpoint:   endpoint,
		rdb:        rdb,
		ttl:        ttl,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		log:        log,
	}
}

func (o *PriceOracle) GetReferencePrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	symbol = strings.ToUpper(symbol)
	id, ok := priceIDs[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("no price id for %s", symbol)
	}

	cacheKey := "price:usd:" + symbol
	if o.rdb != nil {
		cached, err := o.rdb.Get(ctx, cacheKey).Result()
		if err == nil {
			if d, err := decimal.NewFromString(cached); err == nil {
				return d, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			o.log.Debug("price cache read failed", zap.Error(err))
		}
	}

	price, err := o.fetch(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}

	if o.rdb != nil {
		if err := o.rdb.Set(ctx, cacheKey, price.String(), o.ttl).Err(); err != nil {
			o.log.Debug("price cache write failed", zap.Error(err))
		}
	}
	return price, nil
}

func (o *PriceOracle) fetch(ctx context.Context, id string) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("ids", id)
	q.Set("vs_currencies", "usd")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return decimal.Zero, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("price api unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("price api returned %d", resp.StatusCode)
	}

	var body map[string]map[string]json.Number
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("decode price response: %w", err)
	}
	raw, ok := body[id]["usd"]
	if !ok {
		return decimal.Zero, fmt.Errorf("price for %s missing in response", id)
	}
	return decimal.NewFromString(raw.String())
}
