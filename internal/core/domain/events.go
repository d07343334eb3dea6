package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventKind names a DomainEvent variant.
type EventKind string

const (
	KindTokenTransfer EventKind = "token_transfer"
	KindNFTMint       EventKind = "nft_mint"
	KindNFTTransfer   EventKind = "nft_transfer"
)

// Identity categories.
const (
	CategoryToken    = "token"
	CategoryMint     = "mint"
	CategoryTransfer = "transfer"
)

// DomainEvent is a normalized on-chain event. The set of implementations is
// closed: TokenTransfer, NFTMint and NFTTransfer.
type DomainEvent interface {
	Kind() EventKind
	ObservedAt() time.Time
	domainEvent()
}

// TokenTransfer is a normalized TokensTransferred event. Amount is a
// decimal string at 18-decimal scale.
type TokenTransfer struct {
	From      common.Address `json:"from"`
	To        common.Address `json:"to"`
	Amount    string         `json:"amount"`
	TxHash    string         `json:"tx_hash"`
	Timestamp time.Time      `json:"timestamp"`
}

// NFTMint is a normalized NFTMinted event.
type NFTMint struct {
	Owner     common.Address `json:"owner"`
	TokenID   string         `json:"token_id"`
	TokenURI  string         `json:"token_uri"`
	TxHash    string         `json:"tx_hash"`
	Timestamp time.Time      `json:"timestamp"`
}

// NFTTransfer is a normalized NFTTransferred event.
type NFTTransfer struct {
	From      common.Address `json:"from"`
	To        common.Address `json:"to"`
	TokenID   string         `json:"token_id"`
	TxHash    string         `json:"tx_hash"`
	Timestamp time.Time      `json:"timestamp"`
}

func (TokenTransfer) Kind() EventKind { return KindTokenTransfer }
func (NFTMint) Kind() EventKind       { return KindNFTMint }
func (NFTTransfer) Kind() EventKind   { return KindNFTTransfer }

func (e TokenTransfer) ObservedAt() time.Time { return e.Timestamp }
func (e NFTMint) ObservedAt() time.Time       { return e.Timestamp }
func (e NFTTransfer) ObservedAt() time.Time   { return e.Timestamp }

func (TokenTransfer) domainEvent() {}
func (NFTMint) domainEvent()       {}
func (NFTTransfer) domainEvent()   {}

// EventIdentity is the deduplication key of a raw notification.
type EventIdentity string

// NewEventIdentity builds {category}_{txHash}_{secondaryID}.
func NewEventIdentity(category, txHash, secondaryID string) EventIdentity {
	return EventIdentity(fmt.Sprintf("%s_%s_%s", category, txHash, secondaryID))
}

// EventRecord is a logged event together with its identity.
type EventRecord struct {
	ID    EventIdentity
	Event DomainEvent
}

// MarshalJSON renders the record as {"id", "type", "data"}.
func (r EventRecord) MarshalJSON() ([]byte, error) {
	if r.Event == nil {
		return nil, fmt.Errorf("event record %s has no event", r.ID)
	}
	return json.Marshal(struct {
		ID   EventIdentity `json:"id"`
		Type EventKind     `json:"type"`
		Data DomainEvent   `json:"data"`
	}{
		ID:   r.ID,
		Type: r.Event.Kind(),
		Data: r.Event,
	})
}
