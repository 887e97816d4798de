// Package health computes the weighted collateral value of a mango
// account. The program runs the same computation before and after any
// operation that can reduce collateral, flash loans included, and
// rejects the transaction when the result goes negative.
package health

import (
	"errors"
	"fmt"

	"github.com/rovshanmuradov/mango-go/internal/mango/state"
)

var (
	ErrMissingBank  = errors.New("no bank for token position")
	ErrMissingPrice = errors.New("no oracle price for token position")
)

// Prices maps token index to oracle price in quote units per native unit.
type Prices map[state.TokenIndex]state.I80F48

// Compute sums each active token position's native balance times price,
// scaled by the asset weight when positive and the liability weight when
// negative. Init weights are stricter than maint weights, so
// init health <= maint health for any account.
func Compute(account *state.MangoAccount, banks map[state.TokenIndex]*state.Bank, prices Prices, typ state.HealthType) (state.I80F48, error) {
	total := state.ZeroI80F48()

	for _, pos := range account.ActiveTokenPositions() {
		bank, ok := banks[pos.TokenIndex]
		if !ok {
			return state.I80F48{}, fmt.Errorf("%w: token index %d", ErrMissingBank, pos.TokenIndex)
		}
		price, ok := prices[pos.TokenIndex]
		if !ok {
			return state.I80F48{}, fmt.Errorf("%w: token index %d", ErrMissingPrice, pos.TokenIndex)
		}

		native := pos.Native(bank)
		value := native.Mul(price)

		var weight state.I80F48
		if native.IsNegative() {
			weight = bank.LiabWeight(typ)
		} else {
			weight = bank.AssetWeight(typ)
		}
		total = total.Add(value.Mul(weight))
	}

	return total, nil
}

// IsHealthy reports whether the account passes the given health check.
func IsHealthy(account *state.MangoAccount, banks map[state.TokenIndex]*state.Bank, prices Prices, typ state.HealthType) (bool, error) {
	h, err := Compute(account, banks, prices, typ)
	if err != nil {
		return false, err
	}
	return !h.IsNegative(), nil
}
