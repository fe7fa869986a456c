package txbuilder

import (
	"sort"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/Fantasim/bsvbank/internal/bankerr"
)

// UTXO is a spendable output available for selection.
type UTXO struct {
	Txid   chainhash.Hash
	Index  uint32
	Value  int64
	Script []byte
}

// SelectionStrategy chooses which algorithm SelectUTXOs uses to pick inputs.
type SelectionStrategy int

const (
	// LargestFirst sorts descending by value and takes from the top, minimizing
	// input count at the cost of leaving large UTXOs fragmented.
	LargestFirst SelectionStrategy = iota
	// SmallestFirst sorts ascending by value, consolidating dust first.
	SmallestFirst
	// ExactMatch looks for a single UTXO equal to the target, then for a run of
	// the smallest UTXOs (taken in ascending order) that sums exactly to it,
	// falling back to LargestFirst if neither exists. Other combinations are
	// not searched.
	ExactMatch
)

// SelectUTXOs picks a subset of utxos whose total value is at least target,
// according to strategy. Returns InsufficientFunds if no subset suffices.
func SelectUTXOs(utxos []UTXO, target int64, strategy SelectionStrategy) ([]UTXO, error) {
	if target <= 0 {
		return nil, nil
	}

	switch strategy {
	case ExactMatch:
		if exact, ok := findExactMatch(utxos, target); ok {
			return exact, nil
		}
		return selectGreedy(utxos, target, true)
	case SmallestFirst:
		return selectGreedy(utxos, target, false)
	default:
		return selectGreedy(utxos, target, true)
	}
}

func findExactMatch(utxos []UTXO, target int64) ([]UTXO, bool) {
	for _, u := range utxos {
		if u.Value == target {
			return []UTXO{u}, true
		}
	}
	// Check whether a prefix of the ascending-sorted UTXOs sums exactly.
	sorted := append([]UTXO(nil), utxos...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Value < sorted[j].Value })

	var running int64
	var acc []UTXO
	for _, u := range sorted {
		acc = append(acc, u)
		running += u.Value
		if running == target {
			return acc, true
		}
		if running > target {
			return nil, false
		}
	}
	return nil, false
}

func selectGreedy(utxos []UTXO, target int64, descending bool) ([]UTXO, error) {
	sorted := append([]UTXO(nil), utxos...)
	sort.Slice(sorted, func(i, j int) bool {
		if descending {
			return sorted[i].Value > sorted[j].Value
		}
		return sorted[i].Value < sorted[j].Value
	})

	var total int64
	var selected []UTXO
	for _, u := range sorted {
		selected = append(selected, u)
		total += u.Value
		if total >= target {
			return selected, nil
		}
	}

	return nil, bankerr.InsufficientFunds(total, target)
}
