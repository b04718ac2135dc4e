package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tolelom/qorachain/core"
	"github.com/tolelom/qorachain/internal/testutil"
	"github.com/tolelom/qorachain/ledger"
)

func TestAccountCreditDebit(t *testing.T) {
	repo := testutil.NewRepository(t)
	_, pub := testutil.Key(t, "carol")
	acc := ledger.NewPublicKeyAccount(repo, pub)
	require.Equal(t, pub.Address(), acc.Address())

	bal, err := acc.ConfirmedBalance(core.NativeAssetID)
	require.NoError(t, err)
	require.True(t, bal.IsZero())

	require.NoError(t, acc.Credit(core.NativeAssetID, core.MustAmount("1.5")))
	require.NoError(t, acc.Debit(core.NativeAssetID, core.MustAmount("0.25")))
	bal, err = acc.ConfirmedBalance(core.NativeAssetID)
	require.NoError(t, err)
	require.Equal(t, "1.25", bal.String())

	// Debits are never clamped.
	require.NoError(t, acc.Debit(core.NativeAssetID, core.MustAmount("2")))
	bal, err = acc.ConfirmedBalance(core.NativeAssetID)
	require.NoError(t, err)
	require.Equal(t, "-0.75", bal.String())
}

func TestAccountReferenceAndPublicKey(t *testing.T) {
	repo := testutil.NewRepository(t)
	_, pub := testutil.Key(t, "dave")
	acc := ledger.NewPublicKeyAccount(repo, pub)
	before := testutil.Dump(t, repo)

	require.NoError(t, acc.SetLastReference([]byte("ref")))
	require.NoError(t, acc.SetPublicKey(pub))

	ref, err := acc.LastReference()
	require.NoError(t, err)
	require.Equal(t, []byte("ref"), ref)
	got, err := acc.PublicKey()
	require.NoError(t, err)
	require.Equal(t, []byte(pub), got)

	require.NoError(t, acc.SetPublicKey(nil))
	require.NoError(t, acc.SetLastReference(nil))
	require.Equal(t, before, testutil.Dump(t, repo))
}
