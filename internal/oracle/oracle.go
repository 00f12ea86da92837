/*

Cached, fault-tolerant USD pricing.

The oracle prefers availability over strict freshness: a fetch failure is
served from stale cache when possible, and a total outage of the stable
batch falls back to the assumed $1 peg so the guard/decision pipeline stays
alive. A reward token with no cache and no feed is a hard error instead,
because its price materially changes yield math and must never be assumed.

*/

package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/stablerotor/rotor/internal/config"
	"github.com/stablerotor/rotor/internal/logger"
	"github.com/stablerotor/rotor/internal/telemetry"
	"github.com/stablerotor/rotor/internal/types"
)

var (
	ErrInvalidPrice      = errors.New("invalid price value")
	ErrRateLimited       = errors.New("price feed rate limited")
	ErrRateLimitCooldown = errors.New("price feed in rate-limit cooldown")
	ErrNoPriceAvailable  = errors.New("no price available")
)

const (
	DEFAULT_TTL                 = 60 * time.Second
	DEFAULT_STALE_TTL           = 10 * time.Minute
	DEFAULT_REQUEST_TIMEOUT     = 8 * time.Second
	DEFAULT_RATE_LIMIT_COOLDOWN = 300 * time.Second
	DEFAULT_WARN_COOLDOWN       = 60 * time.Second
)

type cacheEntry struct {
	value     float64
	expiresAt time.Time
}

// Telemetry is a read-only snapshot of oracle counters, cumulative since
// process start.
type Telemetry struct {
	FreshHits         int64 `json:"fresh_hits"`
	StaleFallbackHits int64 `json:"stale_fallback_hits"`
	HardFallbacks     int64 `json:"stable_hard_fallbacks"`
	Fetches           int64 `json:"fetches"`
	FetchFailures     int64 `json:"fetch_failures"`
}

// Options configures an Oracle. Zero fields take the package defaults.
type Options struct {
	BaseURL           string
	HTTPClient        *http.Client
	TTL               time.Duration
	StaleTTL          time.Duration
	RequestTimeout    time.Duration
	RateLimitCooldown time.Duration
	WarnCooldown      time.Duration
	StableSymbols     []string
}

// Oracle fetches and caches USD prices for reward and stable tokens.
type Oracle struct {
	logger     zerolog.Logger
	baseURL    string
	httpClient *http.Client

	ttl               time.Duration
	staleTTL          time.Duration
	requestTimeout    time.Duration
	rateLimitCooldown time.Duration
	warnCooldown      time.Duration

	stableSymbols []types.TokenSymbol

	mu            sync.RWMutex
	cache         map[types.TokenSymbol]cacheEntry
	cooldownUntil time.Time
	lastWarn      map[string]time.Time

	freshHits     atomic.Int64
	staleHits     atomic.Int64
	hardFallbacks atomic.Int64
	fetches       atomic.Int64
	fetchFailures atomic.Int64
}

// New creates an Oracle with the given options.
func New(opts Options) *Oracle {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.coingecko.com/api/v3"
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.TTL <= 0 {
		opts.TTL = DEFAULT_TTL
	}
	if opts.StaleTTL <= 0 {
		opts.StaleTTL = DEFAULT_STALE_TTL
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DEFAULT_REQUEST_TIMEOUT
	}
	if opts.RateLimitCooldown <= 0 {
		opts.RateLimitCooldown = DEFAULT_RATE_LIMIT_COOLDOWN
	}
	if opts.WarnCooldown <= 0 {
		opts.WarnCooldown = DEFAULT_WARN_COOLDOWN
	}

	stables := make([]types.TokenSymbol, 0, len(opts.StableSymbols))
	for _, s := range opts.StableSymbols {
		stables = append(stables, types.NormalizeSymbol(s))
	}

	return &Oracle{
		logger:            logger.GetForComponent("price_oracle"),
		baseURL:           strings.TrimRight(opts.BaseURL, "/"),
		httpClient:        opts.HTTPClient,
		ttl:               opts.TTL,
		staleTTL:          opts.StaleTTL,
		requestTimeout:    opts.RequestTimeout,
		rateLimitCooldown: opts.RateLimitCooldown,
		warnCooldown:      opts.WarnCooldown,
		stableSymbols:     stables,
		cache:             make(map[types.TokenSymbol]cacheEntry),
		lastWarn:          make(map[string]time.Time),
	}
}

// GetPriceUsd returns the USD price for a single symbol. A fresh cache hit
// is served without any network call. On fetch failure an expired cache
// entry is served as stale fallback; with no fallback available the failure
// propagates, never a silent default.
func (o *Oracle) GetPriceUsd(ctx context.Context, symbol types.TokenSymbol) (float64, error) {
	symbol = types.NormalizeSymbol(string(symbol))

	if value, ok := o.freshValue(symbol); ok {
		o.freshHits.Add(1)
		telemetry.OracleFreshHits.Inc()
		return value, nil
	}

	prices, err := o.fetchBatch(ctx, []types.TokenSymbol{symbol})
	if err == nil {
		if value, ok := prices[symbol]; ok {
			return value, nil
		}
		err = fmt.Errorf("%w: feed returned no entry for %s", ErrNoPriceAvailable, symbol)
	}

	if stale, ok := o.staleFallback(symbol); ok {
		o.warnDeduped("stale_fallback:"+string(symbol), func(e *zerolog.Event) {
			e.Str("symbol", string(symbol)).Err(err).Msg("Serving stale price after fetch failure")
		})
		return stale, nil
	}

	return 0, fmt.Errorf("failed to price %s: %w", symbol, err)
}

// GetStablePricesUsd returns USD prices for all configured stable symbols.
// During a total feed outage with no cache at all, each symbol hard-falls
// back to 1.0 on the assumption that stable assets are pegged; this keeps
// the decision pipeline alive and is deliberately asymmetric from the
// single-symbol policy.
func (o *Oracle) GetStablePricesUsd(ctx context.Context) (map[types.TokenSymbol]float64, error) {
	result := make(map[types.TokenSymbol]float64, len(o.stableSymbols))
	var missing []types.TokenSymbol

	for _, symbol := range o.stableSymbols {
		if value, ok := o.freshValue(symbol); ok {
			o.freshHits.Add(1)
			telemetry.OracleFreshHits.Inc()
			result[symbol] = value
			continue
		}
		missing = append(missing, symbol)
	}

	if len(missing) == 0 {
		return result, nil
	}

	prices, err := o.fetchBatch(ctx, missing)
	for _, symbol := range missing {
		if err == nil {
			if value, ok := prices[symbol]; ok {
				result[symbol] = value
				continue
			}
		}

		if stale, ok := o.staleFallback(symbol); ok {
			o.warnDeduped("stale_fallback:"+string(symbol), func(e *zerolog.Event) {
				e.Str("symbol", string(symbol)).Err(err).Msg("Serving stale stable price after fetch failure")
			})
			result[symbol] = stale
			continue
		}

		// No cache at all: assume the peg rather than starve the guards.
		o.hardFallbacks.Add(1)
		telemetry.OracleHardFallbacks.Inc()
		o.warnDeduped("hard_fallback:"+string(symbol), func(e *zerolog.Event) {
			e.Str("symbol", string(symbol)).Err(err).Msg("No cached stable price, assuming $1 peg")
		})
		o.store(symbol, 1.0, o.staleTTL)
		result[symbol] = 1.0
	}

	return result, nil
}

// Telemetry returns the cumulative oracle counters.
func (o *Oracle) Telemetry() Telemetry {
	return Telemetry{
		FreshHits:         o.freshHits.Load(),
		StaleFallbackHits: o.staleHits.Load(),
		HardFallbacks:     o.hardFallbacks.Load(),
		Fetches:           o.fetches.Load(),
		FetchFailures:     o.fetchFailures.Load(),
	}
}

// freshValue returns an unexpired cached price.
func (o *Oracle) freshValue(symbol types.TokenSymbol) (float64, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	entry, ok := o.cache[symbol]
	if !ok || time.Now().After(entry.expiresAt) {
		return 0, false
	}
	return entry.value, true
}

// staleFallback returns any cached price, even expired, and re-arms the
// entry with the extended stale TTL so sustained outages do not re-attempt
// the network for the same symbol in a tight window.
func (o *Oracle) staleFallback(symbol types.TokenSymbol) (float64, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	entry, ok := o.cache[symbol]
	if !ok {
		return 0, false
	}
	entry.expiresAt = time.Now().Add(o.staleTTL)
	o.cache[symbol] = entry
	o.staleHits.Add(1)
	telemetry.OracleStaleHits.Inc()
	return entry.value, true
}

// store caches a validated price. Callers must validate first; store never
// accepts zero or non-finite values.
func (o *Oracle) store(symbol types.TokenSymbol, value float64, ttl time.Duration) {
	if value <= 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		return
	}
	o.mu.Lock()
	o.cache[symbol] = cacheEntry{value: value, expiresAt: time.Now().Add(ttl)}
	o.mu.Unlock()
}

// fetchBatch performs one batched upstream lookup for the given symbols.
// Validated prices are cached with the normal TTL before returning.
func (o *Oracle) fetchBatch(ctx context.Context, symbols []types.TokenSymbol) (map[types.TokenSymbol]float64, error) {
	o.mu.RLock()
	cooldownUntil := o.cooldownUntil
	o.mu.RUnlock()
	if now := time.Now(); now.Before(cooldownUntil) {
		o.fetchFailures.Add(1)
		telemetry.OracleFetchFailures.Inc()
		return nil, fmt.Errorf("%w: %s remaining", ErrRateLimitCooldown, cooldownUntil.Sub(now).Round(time.Second))
	}

	// Map symbols to feed ids; several symbols may share one id (e.g. a
	// wrapped token priced as its underlying).
	idToSymbols := make(map[string][]types.TokenSymbol, len(symbols))
	ids := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		id := config.FeedIDForSymbol(string(symbol))
		if _, seen := idToSymbols[id]; !seen {
			ids = append(ids, id)
		}
		idToSymbols[id] = append(idToSymbols[id], symbol)
	}

	reqURL := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd",
		o.baseURL, url.QueryEscape(strings.Join(ids, ",")))

	reqCtx, cancel := context.WithTimeout(ctx, o.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, reqURL, nil)
	if err != nil {
		o.fetchFailures.Add(1)
		telemetry.OracleFetchFailures.Inc()
		return nil, fmt.Errorf("failed to build price request: %w", err)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		o.fetchFailures.Add(1)
		telemetry.OracleFetchFailures.Inc()
		return nil, fmt.Errorf("price request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		o.mu.Lock()
		o.cooldownUntil = time.Now().Add(o.rateLimitCooldown)
		o.mu.Unlock()
		o.fetchFailures.Add(1)
		telemetry.OracleFetchFailures.Inc()
		o.warnDeduped("rate_limited", func(e *zerolog.Event) {
			e.Dur("cooldown", o.rateLimitCooldown).Msg("Price feed returned 429, entering rate-limit cooldown")
		})
		return nil, fmt.Errorf("%w: entering %s cooldown", ErrRateLimited, o.rateLimitCooldown)
	}
	if resp.StatusCode != http.StatusOK {
		o.fetchFailures.Add(1)
		telemetry.OracleFetchFailures.Inc()
		return nil, fmt.Errorf("price feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		o.fetchFailures.Add(1)
		telemetry.OracleFetchFailures.Inc()
		return nil, fmt.Errorf("failed to read price response: %w", err)
	}

	var payload map[string]struct {
		Usd float64 `json:"usd"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		o.fetchFailures.Add(1)
		telemetry.OracleFetchFailures.Inc()
		return nil, fmt.Errorf("failed to parse price response: %w", err)
	}

	result := make(map[types.TokenSymbol]float64, len(symbols))
	for id, entry := range payload {
		price := entry.Usd
		if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
			o.logger.Warn().Str("feedId", id).Float64("price", price).Msg("Rejecting invalid price value")
			continue
		}
		for _, symbol := range idToSymbols[id] {
			o.store(symbol, price, o.ttl)
			result[symbol] = price
		}
	}

	if len(result) == 0 {
		o.fetchFailures.Add(1)
		telemetry.OracleFetchFailures.Inc()
		return nil, fmt.Errorf("%w: feed returned no valid prices", ErrInvalidPrice)
	}

	o.fetches.Add(1)
	telemetry.OracleFetches.Inc()
	return result, nil
}

// warnDeduped logs a warning at most once per condition key within the warn
// cooldown window, to avoid log flooding on sustained outages.
func (o *Oracle) warnDeduped(key string, emit func(e *zerolog.Event)) {
	o.mu.Lock()
	last, seen := o.lastWarn[key]
	now := time.Now()
	if seen && now.Sub(last) < o.warnCooldown {
		o.mu.Unlock()
		return
	}
	o.lastWarn[key] = now
	o.mu.Unlock()

	emit(o.logger.Warn())
}
