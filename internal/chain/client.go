// Package chain talks to a bitcoind style node over JSON-RPC. Only the
// read calls the indexer needs are implemented.
package chain

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/opcat-tools/catwatch/internal/logging"
)

const rpcClientID = "catwatch-v0"

// Source is the node access the indexer and the matcher need. *Client
// implements it against a live node, tests swap in fakes.
type Source interface {
	BlockCount() (uint64, error)
	BlockHash(height uint64) (*chainhash.Hash, error)
	Block(blockHash *chainhash.Hash) (*btcutil.Block, error)
	RawTransaction(txid *chainhash.Hash) (*btcutil.Tx, error)
}

// Client is a JSON-RPC client bound to a single node endpoint.
type Client struct {
	endpoint string
	user     string
	pass     string
	http     *http.Client
}

// pooling of api calls to potentially improve performance
func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,

			// Pooling / reuse
			MaxIdleConns:        200,
			MaxIdleConnsPerHost: 100,
			MaxConnsPerHost:     0,

			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   5 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

func NewClient(endpoint, user, pass string) *Client {
	return &Client{
		endpoint: endpoint,
		user:     user,
		pass:     pass,
		http:     newHTTPClient(),
	}
}

func (c *Client) makeRPCRequest(method string, params []any, result any) error {
	if params == nil {
		params = []any{}
	}
	payload, err := json.Marshal(RPCRequest{
		JSONRPC: "1.0",
		ID:      rpcClientID,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		logging.L.Err(err).Msg("error marshaling rpc data")
		return fmt.Errorf("error marshaling rpc data: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.endpoint, bytes.NewBuffer(payload))
	if err != nil {
		logging.L.Err(err).Msg("error creating request")
		return fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	auth := base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("%s:%s", c.user, c.pass)))
	req.Header.Add("Authorization", "Basic "+auth)

	resp, err := c.http.Do(req)
	if err != nil {
		logging.L.Err(err).Str("method", method).Msg("error performing request")
		return fmt.Errorf("error performing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		logging.L.Err(err).Str("status", resp.Status).Msg("error reading response body")
		return fmt.Errorf("error reading response body: %w", err)
	}

	var rpcResponse RPCResponse
	err = json.Unmarshal(body, &rpcResponse)
	if err != nil {
		logging.L.Err(err).Str("status", resp.Status).Msg("error unmarshaling response")
		return fmt.Errorf("error unmarshaling response: %w", err)
	}

	if rpcResponse.Error != nil {
		logging.L.Error().
			Str("method", method).
			Int("code", rpcResponse.Error.Code).
			Msg(rpcResponse.Error.Message)
		return fmt.Errorf("%s: %w", method, rpcResponse.Error)
	}

	err = json.Unmarshal(rpcResponse.Result, result)
	if err != nil {
		logging.L.Err(err).Str("method", method).Msg("error unmarshaling result")
		return fmt.Errorf("error unmarshaling result: %w", err)
	}

	return nil
}

// BlockCount returns the height of the node's best chain tip.
func (c *Client) BlockCount() (uint64, error) {
	var count uint64
	err := c.makeRPCRequest("getblockcount", nil, &count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// BlockHash resolves a height to the block hash on the active chain.
func (c *Client) BlockHash(height uint64) (*chainhash.Hash, error) {
	var hashStr string
	err := c.makeRPCRequest("getblockhash", []any{height}, &hashStr)
	if err != nil {
		return nil, err
	}
	return chainhash.NewHashFromStr(hashStr)
}

// Block fetches a block with verbosity 0 and parses the raw bytes. The
// indexer needs the full witness data, the verbose forms strip it into
// json we would have to reassemble.
func (c *Client) Block(blockHash *chainhash.Hash) (*btcutil.Block, error) {
	var blockHex string
	err := c.makeRPCRequest("getblock", []any{blockHash.String(), 0}, &blockHex)
	if err != nil {
		return nil, err
	}
	raw, err := hex.DecodeString(blockHex)
	if err != nil {
		logging.L.Err(err).Str("blockhash", blockHash.String()).Msg("node returned invalid block hex")
		return nil, err
	}
	block, err := btcutil.NewBlockFromBytes(raw)
	if err != nil {
		logging.L.Err(err).Str("blockhash", blockHash.String()).Msg("could not parse block")
		return nil, err
	}
	return block, nil
}

// RawTransaction fetches a confirmed transaction by txid. Prevout
// lookups outside the indexed blocks need -txindex on the node.
func (c *Client) RawTransaction(txid *chainhash.Hash) (*btcutil.Tx, error) {
	var txHex string
	err := c.makeRPCRequest("getrawtransaction", []any{txid.String()}, &txHex)
	if err != nil {
		return nil, err
	}
	raw, err := hex.DecodeString(txHex)
	if err != nil {
		logging.L.Err(err).Str("txid", txid.String()).Msg("node returned invalid tx hex")
		return nil, err
	}
	return btcutil.NewTxFromBytes(raw)
}
