package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/superchain-oracle/superchain-oracle/internal/service/oracle/evm"
)

// JSONRPCRequest represents a JSON-RPC request.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      json.RawMessage `json:"id"`
}

// StoredPrice is the fake contract storage of one asset.
type StoredPrice struct {
	Price     *big.Int
	Timestamp int64
	Source    string
	From      common.Address
}

type fakeReceipt struct {
	status   uint64
	block    int64
	withheld bool
}

// EthRPCServer is a minimal Ethereum node hosting a single price oracle contract.
// It understands exactly the calls issued by ethclient + bind for updatePrice and getPrice.
type EthRPCServer struct {
	*httptest.Server

	chainID  *big.Int
	contract common.Address
	abi      abi.ABI

	mu         sync.Mutex
	prices     map[string]StoredPrice
	receipts   map[common.Hash]*fakeReceipt
	nonces     map[common.Address]uint64
	block      int64
	authorized *common.Address
	sendErr    string
	withhold   bool
	calls      map[string]int
}

// StartEthRPC starts a fake node with chain id chainID and an oracle deployed at contract.
func StartEthRPC(t *testing.T, chainID int64, contract common.Address) *EthRPCServer {
	t.Helper()

	parsed, err := evm.ParsePriceOracleABI()
	if err != nil {
		t.Fatalf("load oracle ABI: %v", err)
	}

	s := &EthRPCServer{
		chainID:  big.NewInt(chainID),
		contract: contract,
		abi:      parsed,
		prices:   make(map[string]StoredPrice),
		receipts: make(map[common.Hash]*fakeReceipt),
		nonces:   make(map[common.Address]uint64),
		block:    100,
		calls:    make(map[string]int),
	}

	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)

	return s
}

// Authorize restricts updatePrice to one sender, other senders get reverted receipts.
func (s *EthRPCServer) Authorize(from common.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.authorized = &from
}

// FailSends makes eth_sendRawTransaction answer with a JSON-RPC error.
func (s *EthRPCServer) FailSends(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sendErr = message
}

// WithholdReceipts keeps accepted transactions pending forever.
func (s *EthRPCServer) WithholdReceipts(withhold bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.withhold = withhold
}

// Price returns the stored price of asset.
func (s *EthRPCServer) Price(asset string) (StoredPrice, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.prices[asset]
	return p, ok
}

// Calls returns how many times method was requested.
func (s *EthRPCServer) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls[method]
}

func (s *EthRPCServer) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	w.Header().Set("Content-Type", "application/json")

	var req JSONRPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		WriteRPCError(w, json.RawMessage(`1`), -32700, "parse error")
		return
	}

	var params []json.RawMessage
	_ = json.Unmarshal(req.Params, &params)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls[req.Method]++

	switch req.Method {
	case "eth_chainId":
		writeJSONResult(w, req.ID, hexutil.EncodeBig(s.chainID))

	case "eth_getCode":
		var addr common.Address
		if len(params) > 0 {
			_ = json.Unmarshal(params[0], &addr)
		}
		code := "0x"
		if addr == s.contract {
			code = "0x6080604052348015600f57600080fd5b50"
		}
		writeJSONResult(w, req.ID, code)

	case "eth_getBlockByNumber":
		writeJSONResult(w, req.ID, blockHeader(s.block))

	case "eth_blockNumber":
		writeJSONResult(w, req.ID, hexutil.EncodeUint64(uint64(s.block)))

	case "eth_gasPrice":
		writeJSONResult(w, req.ID, "0x3b9aca00")

	case "eth_estimateGas":
		writeJSONResult(w, req.ID, "0x186a0")

	case "eth_getTransactionCount":
		var addr common.Address
		if len(params) > 0 {
			_ = json.Unmarshal(params[0], &addr)
		}
		writeJSONResult(w, req.ID, hexutil.EncodeUint64(s.nonces[addr]))

	case "eth_sendRawTransaction":
		s.sendRawTransaction(w, req.ID, params)

	case "eth_getTransactionReceipt":
		var hash common.Hash
		if len(params) > 0 {
			_ = json.Unmarshal(params[0], &hash)
		}
		rcpt, ok := s.receipts[hash]
		if !ok || rcpt.withheld {
			WriteRPCResult(w, req.ID, json.RawMessage(`null`))
			return
		}
		writeJSONResult(w, req.ID, receiptJSON(hash, rcpt))

	case "eth_call":
		s.call(w, req.ID, params)

	default:
		WriteRPCError(w, req.ID, -32601, "method not found: "+req.Method)
	}
}

func (s *EthRPCServer) sendRawTransaction(w http.ResponseWriter, id json.RawMessage, params []json.RawMessage) {
	if s.sendErr != "" {
		WriteRPCError(w, id, -32000, s.sendErr)
		return
	}

	var raw hexutil.Bytes
	if len(params) == 0 || json.Unmarshal(params[0], &raw) != nil {
		WriteRPCError(w, id, -32602, "invalid params")
		return
	}

	tx := new(gethtypes.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		WriteRPCError(w, id, -32602, "rlp: "+err.Error())
		return
	}

	from, err := gethtypes.Sender(gethtypes.LatestSignerForChainID(s.chainID), tx)
	if err != nil {
		WriteRPCError(w, id, -32000, "invalid sender: "+err.Error())
		return
	}

	if tx.Nonce() != s.nonces[from] {
		WriteRPCError(w, id, -32000, fmt.Sprintf("nonce too low: have %d, want %d", tx.Nonce(), s.nonces[from]))
		return
	}
	s.nonces[from]++
	s.block++

	rcpt := &fakeReceipt{status: gethtypes.ReceiptStatusSuccessful, block: s.block, withheld: s.withhold}
	s.receipts[tx.Hash()] = rcpt

	if tx.To() == nil || *tx.To() != s.contract || len(tx.Data()) < 4 {
		rcpt.status = gethtypes.ReceiptStatusFailed
	} else if s.authorized != nil && *s.authorized != from {
		rcpt.status = gethtypes.ReceiptStatusFailed
	} else if args, err := s.unpackUpdate(tx.Data()); err != nil {
		rcpt.status = gethtypes.ReceiptStatusFailed
	} else {
		s.prices[args.asset] = StoredPrice{
			Price:     args.price,
			Timestamp: time.Now().Unix(),
			Source:    args.source,
			From:      from,
		}
	}

	writeJSONResult(w, id, tx.Hash().Hex())
}

type updateArgs struct {
	asset  string
	price  *big.Int
	source string
}

func (s *EthRPCServer) unpackUpdate(data []byte) (*updateArgs, error) {
	method, err := s.abi.MethodById(data[:4])
	if err != nil {
		return nil, err
	} else if method.Name != "updatePrice" {
		return nil, fmt.Errorf("unexpected method %s", method.Name)
	}

	values, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, err
	}

	return &updateArgs{
		asset:  values[0].(string),
		price:  values[1].(*big.Int),
		source: values[2].(string),
	}, nil
}

func (s *EthRPCServer) call(w http.ResponseWriter, id json.RawMessage, params []json.RawMessage) {
	var msg struct {
		To    *common.Address `json:"to"`
		Input hexutil.Bytes   `json:"input"`
		Data  hexutil.Bytes   `json:"data"`
	}
	if len(params) == 0 || json.Unmarshal(params[0], &msg) != nil {
		WriteRPCError(w, id, -32602, "invalid params")
		return
	}

	input := msg.Input
	if len(input) == 0 {
		input = msg.Data
	}

	if msg.To == nil || *msg.To != s.contract || len(input) < 4 {
		writeJSONResult(w, id, "0x")
		return
	}

	method, err := s.abi.MethodById(input[:4])
	if err != nil || method.Name != "getPrice" {
		WriteRPCError(w, id, 3, "execution reverted")
		return
	}

	values, err := method.Inputs.Unpack(input[4:])
	if err != nil {
		WriteRPCError(w, id, 3, "execution reverted")
		return
	}

	stored, ok := s.prices[values[0].(string)]
	if !ok {
		stored = StoredPrice{Price: new(big.Int)}
	}

	out, err := method.Outputs.Pack(stored.Price, big.NewInt(stored.Timestamp), stored.Source)
	if err != nil {
		WriteRPCError(w, id, -32603, err.Error())
		return
	}

	writeJSONResult(w, id, hexutil.Encode(out))
}

func blockHeader(number int64) map[string]string {
	return map[string]string{
		"hash":             fmt.Sprintf("0x%064x", number),
		"parentHash":       fmt.Sprintf("0x%064x", number-1),
		"sha3Uncles":       "0x1dcc4de8dec75d7aab85b567b6ccd41ad312451b948a7413f0a142fd40d49347",
		"miner":            "0x0000000000000000000000000000000000000000",
		"stateRoot":        "0x0000000000000000000000000000000000000000000000000000000000000000",
		"transactionsRoot": "0x56e81f171bcc55a6ff8345e692c0f86e5b48e01b996cadc001622fb5e363b421",
		"receiptsRoot":     "0x56e81f171bcc55a6ff8345e692c0f86e5b48e01b996cadc001622fb5e363b421",
		"logsBloom":        "0x" + strings.Repeat("0", 512),
		"difficulty":       "0x0",
		"number":           fmt.Sprintf("0x%x", number),
		"gasLimit":         "0x1c9c380",
		"gasUsed":          "0x0",
		"timestamp":        fmt.Sprintf("0x%x", 1700000000+number*12),
		"extraData":        "0x",
		"mixHash":          "0x0000000000000000000000000000000000000000000000000000000000000000",
		"nonce":            "0x0000000000000000",
	}
}

func receiptJSON(hash common.Hash, rcpt *fakeReceipt) map[string]interface{} {
	return map[string]interface{}{
		"type":              "0x0",
		"status":            hexutil.EncodeUint64(rcpt.status),
		"cumulativeGasUsed": "0x186a0",
		"gasUsed":           "0x186a0",
		"effectiveGasPrice": "0x3b9aca00",
		"logsBloom":         "0x" + strings.Repeat("0", 512),
		"logs":              []interface{}{},
		"transactionHash":   hash.Hex(),
		"transactionIndex":  "0x0",
		"blockHash":         fmt.Sprintf("0x%064x", rcpt.block),
		"blockNumber":       fmt.Sprintf("0x%x", rcpt.block),
	}
}

func writeJSONResult(w http.ResponseWriter, id json.RawMessage, result interface{}) {
	resultJSON, _ := json.Marshal(result)
	WriteRPCResult(w, id, resultJSON)
}

// WriteRPCResult writes a JSON-RPC success response.
func WriteRPCResult(w http.ResponseWriter, id, result json.RawMessage) {
	_ = json.NewEncoder(w).Encode(map[string]json.RawMessage{
		"jsonrpc": json.RawMessage(`"2.0"`),
		"id":      id,
		"result":  result,
	})
}

// WriteRPCError writes a JSON-RPC error response.
func WriteRPCError(w http.ResponseWriter, id json.RawMessage, code int, message string) {
	errJSON, _ := json.Marshal(map[string]interface{}{"code": code, "message": message})
	_ = json.NewEncoder(w).Encode(map[string]json.RawMessage{
		"jsonrpc": json.RawMessage(`"2.0"`),
		"id":      id,
		"error":   json.RawMessage(errJSON),
	})
}
