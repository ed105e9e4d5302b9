package random

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Shuffle performs a cryptographically secure shuffle of the slice.
func Shuffle[T any](slice []T) error {
	n := len(slice)
	for i := n - 1; i > 0; i-- {
		jBig, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return fmt.Errorf("failed to generate random number: %w", err)
		}
		j := int(jBig.Int64())
		slice[i], slice[j] = slice[j], slice[i]
	}
	return nil
}

// Sample draws min(k, len(items)) distinct elements uniformly at random
// without replacement. The input slice is left untouched.
func Sample[T any](items []T, k int) ([]T, error) {
	if k <= 0 || len(items) == 0 {
		return []T{}, nil
	}
	if k > len(items) {
		k = len(items)
	}
	pool := make([]T, len(items))
	copy(pool, items)
	if err := Shuffle(pool); err != nil {
		return nil, err
	}
	return pool[:k:k], nil
}
