package indexer

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_ChainTip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/bsv/test/chain/info":
			json.NewEncoder(w).Encode(chainInfoResponse{Blocks: 200, BestBlockHash: "tiphash", Chain: "test"})
		case "/v1/bsv/test/block/tiphash/header":
			json.NewEncoder(w).Encode(headerResponse{
				Height: 200, Hash: "tiphash", Version: 1, MerkleRoot: "root",
				Time: 1600000000, Bits: "207fffff", Nonce: 1,
			})
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "test", srv.Client())
	tip, err := c.ChainTip(t.Context())
	if err != nil {
		t.Fatalf("ChainTip() error = %v", err)
	}
	if tip.Height != 200 || tip.Hash != "tiphash" {
		t.Errorf("ChainTip() = %+v, unexpected", tip)
	}
}

func TestClient_FetchProof_ResolvesContainingBlock(t *testing.T) {
	height := int32(150)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/bsv/test/tx/abcd/proof":
			json.NewEncoder(w).Encode(proofResponse{MerkleRoot: "root", Siblings: []string{"s0", "s1"}, Index: 3})
		case "/v1/bsv/test/tx/abcd":
			json.NewEncoder(w).Encode(TxInfo{Txid: "abcd", BlockHeight: &height, Vin: []any{}, Vout: []any{}})
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "test", srv.Client())
	proof, err := c.FetchProof(t.Context(), "abcd")
	if err != nil {
		t.Fatalf("FetchProof() error = %v", err)
	}
	if proof.BlockHeight == nil || *proof.BlockHeight != 150 {
		t.Errorf("FetchProof() BlockHeight = %v, want 150", proof.BlockHeight)
	}
	if len(proof.Siblings) != 2 {
		t.Errorf("FetchProof() siblings = %v, want 2 entries", proof.Siblings)
	}
}
