package auth

import "testing"

func TestHashSecretAndVerify(t *testing.T) {
	secret := "s3cr3t-key-material"

	hash, err := HashSecret(secret)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if hash == "" {
		t.Fatal("expected non-empty hash")
	}
	if hash == secret {
		t.Fatal("expected hash to differ from secret")
	}

	if !VerifySecret(hash, secret) {
		t.Fatal("expected secret to verify")
	}
	if VerifySecret(hash, "wrong") {
		t.Fatal("expected secret mismatch to fail")
	}
}

func TestVerifySecretWithInvalidHash(t *testing.T) {
	if VerifySecret("not-a-valid-hash", "secret") {
		t.Fatal("expected invalid hash to fail verification")
	}
}
