package testutil

import (
	"crypto/sha256"

	"github.com/tolelom/qorachain/core"
	"github.com/tolelom/qorachain/crypto"
)

// T is the subset of testing.TB the fixtures need, also met by *rapid.T.
type T interface {
	Helper()
	Fatalf(format string, args ...any)
}

// Key returns a deterministic key pair derived from name.
func Key(t T, name string) (crypto.PrivateKey, crypto.PublicKey) {
	t.Helper()
	seed := sha256.Sum256([]byte(name))
	priv, err := crypto.KeyFromSeed(seed[:])
	if err != nil {
		t.Fatalf("key from seed: %v", err)
	}
	return priv, priv.Public()
}

// IssueAsset stores an asset row directly, bypassing transaction processing.
func IssueAsset(t T, repo core.Repository, id int64, name string, divisible bool) *core.AssetData {
	t.Helper()
	asset := &core.AssetData{
		AssetID:     id,
		Name:        name,
		Quantity:    core.MustAmount("10000000000"),
		IsDivisible: divisible,
	}
	if err := repo.AssetRepository().SaveAsset(asset); err != nil {
		t.Fatalf("save asset %d: %v", id, err)
	}
	return asset
}

// SetBalance overwrites the balance of address for assetID.
func SetBalance(t T, repo core.Repository, address string, assetID int64, amount string) {
	t.Helper()
	if err := repo.AccountRepository().SetBalance(address, assetID, core.MustAmount(amount)); err != nil {
		t.Fatalf("set balance: %v", err)
	}
}

// Balance reads the balance of address for assetID as a string.
func Balance(t T, repo core.Repository, address string, assetID int64) string {
	t.Helper()
	bal, err := repo.AccountRepository().GetBalance(address, assetID)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	return bal.String()
}

// Dump returns every persisted and buffered key/value pair of the repository
// under the storage layout, for whole-state equality assertions.
func Dump(t T, repo core.Repository) map[string]string {
	t.Helper()
	dumper, ok := repo.(interface {
		Dump() (map[string][]byte, error)
	})
	if !ok {
		t.Fatalf("repository %T cannot dump state", repo)
	}
	raw, err := dumper.Dump()
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[k] = string(v)
	}
	return out
}
