package main

import (
	"crypto/rand"
	"math/big"
)

const (
	PolicyCarry = "carry"
	PolicyReset = "reset"
)

// applyConversion computes the ticket payout for a star balance under the
// given policy. Carry converts every whole multiple of the threshold and
// keeps the remainder; reset pays out a single ticket and zeroes the stars
// once the threshold is met. Whole units only.
func applyConversion(policy string, threshold int64, stars int64) (payout int64, remaining int64) {
	if threshold <= 0 || stars < threshold {
		return 0, stars
	}

	switch policy {
	case PolicyReset:
		return 1, 0
	default:
		payout = stars / threshold
		return payout, stars - payout*threshold
	}
}

// rollWin draws the spin outcome server-side so clients cannot forge wins.
func rollWin(winPercent int) (bool, error) {
	if winPercent <= 0 {
		return false, nil
	}
	if winPercent >= 100 {
		return true, nil
	}

	n, err := rand.Int(rand.Reader, big.NewInt(100))
	if err != nil {
		return false, err
	}

	return n.Int64() < int64(winPercent), nil
}
