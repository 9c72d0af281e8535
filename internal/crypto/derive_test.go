package crypto

import (
	"strings"
	"testing"
)

func TestDerive_Deterministic(t *testing.T) {
	a := MarketAddress("mk-1")
	b := MarketAddress("mk-1")
	if a != b {
		t.Fatalf("same inputs produced %s and %s", a, b)
	}
	if !strings.HasPrefix(a, "0x") || len(a) != 42 {
		t.Fatalf("address %q is not a 20-byte hex address", a)
	}
}

func TestDerive_TagsNamespace(t *testing.T) {
	if MarketAddress("mk-1") == Derive(TagProposal, []byte("mk-1")) {
		t.Fatalf("distinct tags collided for identical key material")
	}
	if MarketAddress("mk-1") == MarketAddress("mk-2") {
		t.Fatalf("distinct ids collided")
	}
}

func TestUserBetAddress_DependsOnBothKeys(t *testing.T) {
	base := UserBetAddress("0xaa", "mk-1")
	if base == UserBetAddress("0xab", "mk-1") {
		t.Fatalf("user ignored in derivation")
	}
	if base == UserBetAddress("0xaa", "mk-2") {
		t.Fatalf("market ignored in derivation")
	}
}

func TestProposalAddress_IdEncoding(t *testing.T) {
	if ProposalAddress(1) == ProposalAddress(256) {
		t.Fatalf("little-endian id encoding collided")
	}
	if ProposalVoteAddress("0xaa", 1) == ProposalAddress(1) {
		t.Fatalf("vote and proposal addresses collided")
	}
}
