// Package contracts holds the ABI definitions of the token and NFT contracts
// the dApp talks to. Only the methods and events we use are declared.
package contracts

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Token contract methods and events
const (
	MethodName      = "name"
	MethodSymbol    = "symbol"
	MethodBalanceOf = "balanceOf"
	MethodAllowance = "allowance"
	MethodTransfer  = "transfer"
	MethodApprove   = "approve"

	EventTokensTransferred = "TokensTransferred"
)

// NFT contract methods and events
const (
	MethodMintFee  = "mintFee"
	MethodTokenURI = "tokenURI"
	MethodOwnerOf  = "ownerOf"
	MethodMint     = "mint"

	EventNFTMinted      = "NFTMinted"
	EventNFTTransferred = "NFTTransferred"
)

// tokenABIJSON covers the ERC-20 surface plus the TokensTransferred event.
// TokensTransferred(address indexed from, address indexed to, uint256 amount)
const tokenABIJSON = `[
	{"name":"name","type":"function","inputs":[],"outputs":[{"name":"","type":"string"}],"stateMutability":"view"},
	{"name":"symbol","type":"function","inputs":[],"outputs":[{"name":"","type":"string"}],"stateMutability":"view"},
	{"name":"balanceOf","type":"function","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
	{"name":"allowance","type":"function","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
	{"name":"transfer","type":"function","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable"},
	{"name":"approve","type":"function","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable"},
	{"name":"TokensTransferred","type":"event","anonymous":false,"inputs":[
		{"indexed":true,"name":"from","type":"address"},
		{"indexed":true,"name":"to","type":"address"},
		{"indexed":false,"name":"amount","type":"uint256"}
	]}
]`

// nftABIJSON covers the collection reads, mint() and the custom events.
// NFTMinted(address indexed owner, uint256 indexed tokenId)
// NFTTransferred(address indexed from, address indexed to, uint256 indexed tokenId)
const nftABIJSON = `[
	{"name":"name","type":"function","inputs":[],"outputs":[{"name":"","type":"string"}],"stateMutability":"view"},
	{"name":"symbol","type":"function","inputs":[],"outputs":[{"name":"","type":"string"}],"stateMutability":"view"},
	{"name":"mintFee","type":"function","inputs":[],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
	{"name":"tokenURI","type":"function","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"string"}],"stateMutability":"view"},
	{"name":"ownerOf","type":"function","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"address"}],"stateMutability":"view"},
	{"name":"mint","type":"function","inputs":[],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"nonpayable"},
	{"name":"NFTMinted","type":"event","anonymous":false,"inputs":[
		{"indexed":true,"name":"owner","type":"address"},
		{"indexed":true,"name":"tokenId","type":"uint256"}
	]},
	{"name":"NFTTransferred","type":"event","anonymous":false,"inputs":[
		{"indexed":true,"name":"from","type":"address"},
		{"indexed":true,"name":"to","type":"address"},
		{"indexed":true,"name":"tokenId","type":"uint256"}
	]}
]`

var (
	tokenOnce sync.Once
	tokenABI  abi.ABI
	tokenErr  error

	nftOnce sync.Once
	nftABI  abi.ABI
	nftErr  error
)

// TokenABI returns the parsed token ABI.
func TokenABI() (abi.ABI, error) {
	tokenOnce.Do(func() {
		tokenABI, tokenErr = abi.JSON(strings.NewReader(tokenABIJSON))
	})
	return tokenABI, tokenErr
}

// NFTABI returns the parsed NFT ABI.
func NFTABI() (abi.ABI, error) {
	nftOnce.Do(func() {
		nftABI, nftErr = abi.JSON(strings.NewReader(nftABIJSON))
	})
	return nftABI, nftErr
}

// MustTokenABI is TokenABI for callers that cannot handle a malformed
// embedded ABI.
func MustTokenABI() abi.ABI {
	a, err := TokenABI()
	if err != nil {
		panic(err)
	}
	return a
}

// MustNFTABI is NFTABI for callers that cannot handle a malformed embedded ABI.
func MustNFTABI() abi.ABI {
	a, err := NFTABI()
	if err != nil {
		panic(err)
	}
	return a
}
