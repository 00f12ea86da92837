/*

Mapping of token symbols to their price-feed ids.

If a symbol has no entry here the lower-cased symbol is used as the id.
Odds are it will work, but keep this up to date for any token whose feed id
differs from its ticker.

*/

package config

import "strings"

var (
	SymbolToFeedID = map[string]string{
		"USDC": "usd-coin",
		"USDT": "tether",
		"DAI":  "dai",
		"MON":  "monad",
		"WMON": "monad",
		"WETH": "ethereum",
		"WBTC": "wrapped-bitcoin",
	}
)

// FeedIDForSymbol resolves a normalized symbol to its upstream price-feed id.
func FeedIDForSymbol(symbol string) string {
	if id, ok := SymbolToFeedID[symbol]; ok {
		return id
	}
	// Fallback: most feed ids are just the lower-cased ticker.
	return strings.ToLower(symbol)
}
