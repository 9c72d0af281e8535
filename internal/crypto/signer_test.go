package crypto

import "testing"

// Well-known throwaway key for tests only.
const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestSignVerifyResolution(t *testing.T) {
	signer, err := NewSigner(testKeyHex)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}

	market := MarketAddress("mk-1")
	sig, err := signer.SignResolution(market, "yes")
	if err != nil {
		t.Fatalf("SignResolution: %v", err)
	}

	recovered, err := RecoverResolver(market, "yes", sig)
	if err != nil {
		t.Fatalf("RecoverResolver: %v", err)
	}
	if recovered != signer.Address() {
		t.Fatalf("recovered %s want %s", recovered.Hex(), signer.Address().Hex())
	}
}

func TestRecoverResolver_OutcomeBound(t *testing.T) {
	signer, err := NewSigner(testKeyHex)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}

	market := MarketAddress("mk-1")
	sig, err := signer.SignResolution(market, "yes")
	if err != nil {
		t.Fatalf("SignResolution: %v", err)
	}

	// A signature over YES must not authorize a NO resolution.
	recovered, err := RecoverResolver(market, "no", sig)
	if err == nil && recovered == signer.Address() {
		t.Fatalf("signature replayed across outcomes")
	}
}

func TestRecoverResolver_BadSignature(t *testing.T) {
	if _, err := RecoverResolver(MarketAddress("mk-1"), "yes", "0x1234"); err == nil {
		t.Fatalf("short signature accepted")
	}
	if _, err := RecoverResolver(MarketAddress("mk-1"), "yes", "zz"); err == nil {
		t.Fatalf("non-hex signature accepted")
	}
}

func TestValidIdentity(t *testing.T) {
	if !ValidIdentity("0x00000000000000000000000000000000000000c1") {
		t.Fatalf("valid identity rejected")
	}
	if ValidIdentity("not-an-address") {
		t.Fatalf("invalid identity accepted")
	}
}
