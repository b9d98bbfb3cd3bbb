package memvault

import (
	"testing"

	"xdao.co/txfin/vault"
	"xdao.co/txfin/vault/vaultkit"
)

func TestConformance(t *testing.T) {
	vaultkit.RunVaultConformance(t, func(t *testing.T) vault.Vault {
		return New()
	})
}

func TestClosedVaultRefuses(t *testing.T) {
	v := New()
	if err := v.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	f := vaultkit.Fixture(t, [16]byte{1}, 1, "one")
	if err := v.PutTransaction(f); err != vault.ErrClosed {
		t.Fatalf("PutTransaction after Close: got err=%v want ErrClosed", err)
	}
}
