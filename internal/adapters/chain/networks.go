package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/params"
)

// HardhatChainID is the chain id of a local hardhat node.
var HardhatChainID = big.NewInt(31337)

// NetworkName names well-known chains and returns "unknown" otherwise.
func NetworkName(chainID *big.Int) string {
	if chainID == nil {
		return "unknown"
	}
	switch {
	case chainID.Cmp(params.MainnetChainConfig.ChainID) == 0:
		return "mainnet"
	case chainID.Cmp(params.SepoliaChainConfig.ChainID) == 0:
		return "sepolia"
	case chainID.Cmp(params.HoleskyChainConfig.ChainID) == 0:
		return "holesky"
	case chainID.Cmp(HardhatChainID) == 0:
		return "hardhat"
	}
	return "unknown"
}
