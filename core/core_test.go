package core_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tolelom/qorachain/core"
	"github.com/tolelom/qorachain/internal/testutil"
)

func TestParseAmount(t *testing.T) {
	d, err := core.ParseAmount("1.12345678")
	require.NoError(t, err)
	require.Equal(t, "1.12345678", d.String())

	_, err = core.ParseAmount("1.123456789")
	require.Error(t, err)
	_, err = core.ParseAmount("one")
	require.Error(t, err)

	require.Equal(t, "0.33333333", core.RoundDown(core.MustAmount("1").Div(core.MustAmount("3"))).String())
	require.True(t, core.HasFraction(core.MustAmount("2.5")))
	require.False(t, core.HasFraction(core.MustAmount("2")))
}

func TestTransactionSignature(t *testing.T) {
	priv, pub := testutil.Key(t, "alice")
	tx, err := core.NewTransaction(core.TxPayment, pub, 1000, []byte("ref"), core.MustAmount("1"),
		core.PaymentPayload{Recipient: "Qbob", Amount: core.MustAmount("3")})
	require.NoError(t, err)
	require.Error(t, tx.Verify())

	tx.Sign(priv)
	require.NoError(t, tx.Verify())
	require.Equal(t, pub.Address(), tx.CreatorAddress())
	require.Equal(t, int64(1000)+core.MaxTxLifetime, tx.Deadline())

	var payload core.PaymentPayload
	require.NoError(t, tx.DecodePayload(&payload))
	require.Equal(t, "3", payload.Amount.String())

	tx.Fee = core.MustAmount("2")
	require.Error(t, tx.Verify())
}

func TestWrapData(t *testing.T) {
	require.NoError(t, core.WrapData("get", nil))
	require.Equal(t, core.ErrNotFound, core.WrapData("get", core.ErrNotFound))

	boom := errors.New("disk on fire")
	err := core.WrapData("get", boom)
	var de *core.DataError
	require.ErrorAs(t, err, &de)
	require.Equal(t, "get", de.Op)
	require.ErrorIs(t, err, boom)
	require.Same(t, err, core.WrapData("again", err))
}
