package chain

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

func testBlock(t *testing.T) (*btcutil.Block, string) {
	t.Helper()
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: chainhash.Hash{0x01}},
		Witness:          wire.TxWitness{{0x6e, 0x7e, 0x87}, {0xc0, 0x02}},
	})
	tx.AddTxOut(wire.NewTxOut(5_000, []byte{0x51}))

	msgBlock := &wire.MsgBlock{Header: wire.BlockHeader{Version: 1}}
	_ = msgBlock.AddTransaction(tx)

	var buf bytes.Buffer
	if err := msgBlock.Serialize(&buf); err != nil {
		t.Fatal(err)
	}
	return btcutil.NewBlock(msgBlock), hex.EncodeToString(buf.Bytes())
}

func TestClientRoundTrip(t *testing.T) {
	block, blockHex := testBlock(t)
	tx := block.Transactions()[0]
	var txBuf bytes.Buffer
	if err := tx.MsgTx().Serialize(&txBuf); err != nil {
		t.Fatal(err)
	}
	txHex := hex.EncodeToString(txBuf.Bytes())

	wantAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("user:hunter2"))
	node := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != wantAuth {
			t.Errorf("authorization header = %q", got)
		}
		var req RPCRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Error(err)
			return
		}
		if req.ID != rpcClientID {
			t.Errorf("client id = %q", req.ID)
		}

		var result any
		switch req.Method {
		case "getblockcount":
			result = 831_234
		case "getblockhash":
			result = block.Hash().String()
		case "getblock":
			if len(req.Params) != 2 || req.Params[1] != float64(0) {
				t.Errorf("getblock params = %v", req.Params)
			}
			result = blockHex
		case "getrawtransaction":
			result = txHex
		default:
			t.Errorf("unexpected method %q", req.Method)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"result": result, "error": nil, "id": req.ID})
	}))
	defer node.Close()

	client := NewClient(node.URL, "user", "hunter2")

	count, err := client.BlockCount()
	if err != nil {
		t.Fatal(err)
	}
	if count != 831_234 {
		t.Errorf("count = %d, want 831234", count)
	}

	hash, err := client.BlockHash(831_234)
	if err != nil {
		t.Fatal(err)
	}
	if !hash.IsEqual(block.Hash()) {
		t.Errorf("hash = %s, want %s", hash, block.Hash())
	}

	got, err := client.Block(hash)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Hash().IsEqual(block.Hash()) {
		t.Errorf("block hash = %s, want %s", got.Hash(), block.Hash())
	}
	if len(got.Transactions()) != 1 {
		t.Fatalf("block carries %d txs, want 1", len(got.Transactions()))
	}
	// witness data must survive the round trip
	if len(got.Transactions()[0].MsgTx().TxIn[0].Witness) != 2 {
		t.Error("witness stripped in transit")
	}

	gotTx, err := client.RawTransaction(tx.Hash())
	if err != nil {
		t.Fatal(err)
	}
	if !gotTx.Hash().IsEqual(tx.Hash()) {
		t.Errorf("txid = %s, want %s", gotTx.Hash(), tx.Hash())
	}
}

func TestClientSurfacesRPCError(t *testing.T) {
	node := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": nil,
			"error":  map[string]any{"code": -5, "message": "Block not found"},
			"id":     rpcClientID,
		})
	}))
	defer node.Close()

	client := NewClient(node.URL, "user", "hunter2")
	_, err := client.BlockCount()
	if err == nil {
		t.Fatal("rpc error not surfaced")
	}
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("err = %T, want *RPCError", err)
	}
	if rpcErr.Code != -5 {
		t.Errorf("code = %d, want -5", rpcErr.Code)
	}
}

func TestClientRejectsInvalidHex(t *testing.T) {
	node := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"result": "zz", "error": nil, "id": rpcClientID})
	}))
	defer node.Close()

	client := NewClient(node.URL, "user", "hunter2")
	if _, err := client.Block(&chainhash.Hash{}); err == nil {
		t.Error("invalid block hex accepted")
	}
	if _, err := client.RawTransaction(&chainhash.Hash{}); err == nil {
		t.Error("invalid tx hex accepted")
	}
}
