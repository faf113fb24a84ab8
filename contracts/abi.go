// Package contracts holds the ABIs and typed bindings of the confidential token lottery
// contracts together with the artifact loading used to deploy them.
package contracts

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const (
	// TokenLotteryName is the contract name of the lottery.
	TokenLotteryName = "TokenLottery"

	// LotteryRewardEvent is the event emitted by a successful draw.
	LotteryRewardEvent = "LotteryReward"
)

// TokenNames are the confidential token contracts deployed before the lottery, in deployment
// order. The lottery is constructed with their addresses in this order.
var TokenNames = []string{
	"ERC7984USDT",
	"ERC7984USDC",
	"ERC7984DAI",
	"ERC7984WBTC",
	"ERC7984LINK",
}

// TokenTitles are the display titles of the confidential tokens, keyed by contract name.
var TokenTitles = map[string]string{
	"ERC7984USDT": "Tether USD",
	"ERC7984USDC": "USD Coin",
	"ERC7984DAI":  "Dai",
	"ERC7984WBTC": "Wrapped BTC",
	"ERC7984LINK": "Chainlink",
}

// TokenKey returns the short key of a token contract, e.g. USDT for ERC7984USDT.
func TokenKey(contractName string) string {
	return strings.TrimPrefix(contractName, "ERC7984")
}

// TokenLotteryABI is the interface of the TokenLottery contract.
const TokenLotteryABI = `[
	{
		"inputs": [{"internalType": "address[]", "name": "tokens", "type": "address[]"}],
		"stateMutability": "nonpayable",
		"type": "constructor"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "internalType": "address", "name": "player", "type": "address"},
			{"indexed": true, "internalType": "address", "name": "token", "type": "address"},
			{"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"}
		],
		"name": "LotteryReward",
		"type": "event"
	},
	{
		"inputs": [],
		"name": "draw",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "getSupportedTokens",
		"outputs": [{"internalType": "address[]", "name": "", "type": "address[]"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "getTokenCount",
		"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

// ERC7984ABI is the subset of the confidential token interface used by the lottery tooling.
// Encrypted balances are returned as 32 byte ciphertext handles.
const ERC7984ABI = `[
	{
		"inputs": [],
		"stateMutability": "nonpayable",
		"type": "constructor"
	},
	{
		"inputs": [],
		"name": "name",
		"outputs": [{"internalType": "string", "name": "", "type": "string"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "symbol",
		"outputs": [{"internalType": "string", "name": "", "type": "string"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "decimals",
		"outputs": [{"internalType": "uint8", "name": "", "type": "uint8"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [{"internalType": "address", "name": "account", "type": "address"}],
		"name": "confidentialBalanceOf",
		"outputs": [{"internalType": "euint64", "name": "", "type": "bytes32"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "to", "type": "address"},
			{"internalType": "uint64", "name": "amount", "type": "uint64"}
		],
		"name": "mint",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

var (
	// LotteryABI is the parsed TokenLotteryABI.
	LotteryABI = mustParseABI(TokenLotteryABI)
	// TokenABI is the parsed ERC7984ABI.
	TokenABI = mustParseABI(ERC7984ABI)
)

func mustParseABI(abiJSON string) *abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		panic("failed to parse ABI: " + err.Error())
	}

	return &parsed
}
