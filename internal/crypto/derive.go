// Package crypto provides deterministic record-key derivation, resolver
// authority signing, and encrypted key storage.
package crypto

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Record tags. Each entity type derives its lookup address from its tag and
// owning key material, so external readers can locate any record from the
// logical key alone, without a discovery scan.
const (
	TagMarket          = "market"
	TagUserBet         = "user_bet"
	TagFeeConfig       = "fee_config"
	TagProposal        = "proposal"
	TagProposalCounter = "proposal_counter"
	TagProposalVote    = "proposal_vote"
)

// Derive computes the deterministic address for a record as
// keccak256(tag || part_1 || ... || part_n) truncated to a 20-byte
// hex address. The same inputs always produce the same address; distinct
// tags namespace entity types so a market and a proposal sharing key
// material never collide.
func Derive(tag string, parts ...[]byte) string {
	data := make([]byte, 0, len(tag)+len(parts)*32)
	data = append(data, []byte(tag)...)
	for _, p := range parts {
		data = append(data, p...)
	}
	return common.BytesToAddress(ethcrypto.Keccak256(data)).Hex()
}

// MarketAddress derives the record address of a market.
func MarketAddress(marketID string) string {
	return Derive(TagMarket, []byte(marketID))
}

// UserBetAddress derives the record address of a (user, market) bet.
func UserBetAddress(user, marketID string) string {
	return Derive(TagUserBet, []byte(user), []byte(marketID))
}

// FeeConfigAddress derives the record address of a fee tier.
func FeeConfigAddress(tier uint8) string {
	return Derive(TagFeeConfig, []byte{tier})
}

// ProposalAddress derives the record address of a proposal from its id.
func ProposalAddress(proposalID uint64) string {
	return Derive(TagProposal, uint64LE(proposalID))
}

// ProposalVoteAddress derives the record address of a (voter, proposal)
// vote.
func ProposalVoteAddress(voter string, proposalID uint64) string {
	return Derive(TagProposalVote, []byte(voter), uint64LE(proposalID))
}

func uint64LE(v uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	return buf
}
