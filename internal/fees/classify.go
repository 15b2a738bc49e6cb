// Package fees implements the per-jurisdiction brokerage fee model: a rule
// table keyed by (market, product, fee kind), hot-reloadable from a JSON
// document, and a pure computation over one rule snapshot.
package fees

import "strings"

// Market identifiers.
const (
	MarketSH = "SH"
	MarketSZ = "SZ"
	MarketBJ = "BJ"
)

// Product classes.
const (
	ProductStock = "STOCK"
	ProductETF   = "ETF"
	ProductBond  = "BOND"
)

// Classify maps an instrument code like "600519.SH" to its market and product
// class. Unknown suffixes default to SH and unknown prefixes to STOCK so the
// lookup below always has a rule path.
func Classify(code string) (market, product string) {
	code = strings.ToUpper(strings.TrimSpace(code))
	switch {
	case strings.HasSuffix(code, ".SH"):
		market = MarketSH
	case strings.HasSuffix(code, ".SZ"):
		market = MarketSZ
	case strings.HasSuffix(code, ".BJ"):
		market = MarketBJ
	default:
		market = MarketSH
	}

	number := code
	if idx := strings.IndexByte(code, '.'); idx >= 0 {
		number = code[:idx]
	}

	switch market {
	case MarketSH:
		// SH: 5xx funds/ETF, 10x/11x convertible bonds, everything else stock.
		switch {
		case strings.HasPrefix(number, "5"):
			product = ProductETF
		case strings.HasPrefix(number, "11"), strings.HasPrefix(number, "10"):
			product = ProductBond
		default:
			product = ProductStock
		}
	case MarketSZ:
		// SZ: 15x/16x ETF/LOF, 12x convertible bonds.
		switch {
		case strings.HasPrefix(number, "15"), strings.HasPrefix(number, "16"):
			product = ProductETF
		case strings.HasPrefix(number, "12"):
			product = ProductBond
		default:
			product = ProductStock
		}
	default:
		product = ProductStock
	}
	return market, product
}
