package watcher

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrFractionalSatoshi is returned when a decimal BTC string carries
// precision finer than one satoshi.
var ErrFractionalSatoshi = errors.New("watcher: amount has sub-satoshi precision")

const satsPerBTC = 100_000_000

// ToSats converts a decimal BTC amount string to an exact satoshi count,
// using integer arithmetic only (no floats) so rounding can never silently
// corrupt an amount. Strings with more than 8 fractional digits are
// rejected unless every digit past the 8th is '0'.
func ToSats(btc string) (uint64, error) {
	whole, frac, hasFrac := strings.Cut(btc, ".")
	if whole == "" {
		whole = "0"
	}

	wholeSats, err := strconv.ParseUint(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("watcher: invalid whole part %q: %w", whole, err)
	}

	var fracSats uint64
	if hasFrac {
		if len(frac) > 8 {
			for _, r := range frac[8:] {
				if r != '0' {
					return 0, ErrFractionalSatoshi
				}
			}
			frac = frac[:8]
		}
		padded := frac + strings.Repeat("0", 8-len(frac))
		fracSats, err = strconv.ParseUint(padded, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("watcher: invalid fractional part %q: %w", frac, err)
		}
	}

	return wholeSats*satsPerBTC + fracSats, nil
}
