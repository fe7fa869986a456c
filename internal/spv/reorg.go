package spv

import (
	"context"
	"log/slog"

	"github.com/Fantasim/bsvbank/internal/bankerr"
)

// DetectReorg compares the locally known tip against the indexer's current
// tip. If their hashes differ, it walks the locally stored headers downward
// from the local tip (at most lookback heights), looking each local hash up
// at the indexer, until the indexer returns a header with that same hash —
// the common ancestor. Headers above that point are evicted from the local
// cache.
func (v *Verifier) DetectReorg(ctx context.Context, lookback int32) (*ReorgReport, error) {
	knownTip, err := v.store.GetTipHeader()
	if err != nil {
		return nil, bankerr.DatabaseConsistencyViolation("read tip header: " + err.Error())
	}
	if knownTip == nil {
		return &ReorgReport{Reorged: false}, nil
	}

	remoteTip, err := v.fetcher.ChainTip(ctx)
	if err != nil {
		return nil, err
	}

	if remoteTip.Hash == knownTip.Hash {
		return &ReorgReport{Reorged: false}, nil
	}

	slog.Warn("spv: tip mismatch detected, searching for common ancestor",
		"localHeight", knownTip.Height, "localHash", knownTip.Hash,
		"remoteHeight", remoteTip.Height, "remoteHash", remoteTip.Hash,
	)

	floor := knownTip.Height - lookback
	if floor < 0 {
		floor = 0
	}

	for height := knownTip.Height; height >= floor; height-- {
		localHeader, err := v.store.GetHeaderByHeight(height)
		if err != nil {
			return nil, bankerr.DatabaseConsistencyViolation("read header at height: " + err.Error())
		}
		if localHeader == nil {
			continue
		}

		remoteHeader, err := v.fetcher.FetchHeader(ctx, localHeader.Hash)
		if err != nil {
			if bankerr.IsKind(err, bankerr.KindExternal) {
				continue
			}
			return nil, err
		}
		if remoteHeader != nil && remoteHeader.Hash == localHeader.Hash {
			depth := knownTip.Height - height
			if depth == 0 {
				return &ReorgReport{Reorged: false}, nil
			}

			if err := v.store.DeleteHeadersFrom(height + 1); err != nil {
				return nil, bankerr.DatabaseConsistencyViolation("evict reorged headers: " + err.Error())
			}

			slog.Warn("spv: reorg resolved",
				"commonAncestor", height, "depth", depth,
				"affectedFrom", height+1, "affectedTo", knownTip.Height,
			)

			return &ReorgReport{
				Reorged:        true,
				CommonAncestor: height,
				Depth:          depth,
				AffectedFrom:   height + 1,
				AffectedTo:     knownTip.Height,
			}, nil
		}
	}

	return nil, bankerr.ChainDiscontinuity(floor, "no common ancestor found within lookback window")
}
