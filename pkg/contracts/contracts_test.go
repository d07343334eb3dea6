package contracts

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
)

func TestTokenABI(t *testing.T) {
	parsed, err := TokenABI()
	if err != nil {
		t.Fatalf("failed to parse token ABI: %v", err)
	}

	for _, m := range []string{MethodName, MethodSymbol, MethodBalanceOf, MethodAllowance, MethodTransfer, MethodApprove} {
		if _, ok := parsed.Methods[m]; !ok {
			t.Errorf("token ABI missing method %s", m)
		}
	}

	ev, ok := parsed.Events[EventTokensTransferred]
	if !ok {
		t.Fatalf("token ABI missing event %s", EventTokensTransferred)
	}
	want := crypto.Keccak256Hash([]byte("TokensTransferred(address,address,uint256)"))
	if ev.ID != want {
		t.Errorf("TokensTransferred topic = %s, want %s", ev.ID.Hex(), want.Hex())
	}
}

func TestNFTABI(t *testing.T) {
	parsed, err := NFTABI()
	if err != nil {
		t.Fatalf("failed to parse NFT ABI: %v", err)
	}

	for _, m := range []string{MethodName, MethodSymbol, MethodMintFee, MethodTokenURI, MethodOwnerOf, MethodMint} {
		if _, ok := parsed.Methods[m]; !ok {
			t.Errorf("NFT ABI missing method %s", m)
		}
	}

	// mint() selector is the first 4 bytes of keccak256("mint()")
	selector := crypto.Keccak256([]byte("mint()"))[:4]
	if got := parsed.Methods[MethodMint].ID; string(got) != string(selector) {
		t.Errorf("mint selector = %x, want %x", got, selector)
	}

	for _, e := range []string{EventNFTMinted, EventNFTTransferred} {
		if _, ok := parsed.Events[e]; !ok {
			t.Errorf("NFT ABI missing event %s", e)
		}
	}
}
