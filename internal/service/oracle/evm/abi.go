package evm

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const (
	methodUpdatePrice = "updatePrice"
	methodGetPrice    = "getPrice"
)

// PriceOracleABI is the subset of the oracle contract ABI used by the node.
const PriceOracleABI = `[
	{
		"inputs": [
			{"internalType": "string", "name": "asset", "type": "string"},
			{"internalType": "uint256", "name": "price", "type": "uint256"},
			{"internalType": "string", "name": "source", "type": "string"}
		],
		"name": "updatePrice",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "string", "name": "asset", "type": "string"}
		],
		"name": "getPrice",
		"outputs": [
			{"internalType": "uint256", "name": "", "type": "uint256"},
			{"internalType": "uint256", "name": "", "type": "uint256"},
			{"internalType": "string", "name": "", "type": "string"}
		],
		"stateMutability": "view",
		"type": "function"
	}
]`

// ParsePriceOracleABI parses PriceOracleABI.
func ParsePriceOracleABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(PriceOracleABI))
}
