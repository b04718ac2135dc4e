package consensus_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tolelom/qorachain/consensus"
	"github.com/tolelom/qorachain/core"
	"github.com/tolelom/qorachain/internal/testutil"
	"pgregory.net/rapid"
)

func retargetParams() consensus.Params {
	p := consensus.DefaultParams()
	p.MinBlockTime = 60_000
	p.MaxBlockTime = 300_000
	p.MinBalance = core.MustAmount("100")
	p.MaxBalance = core.MustAmount("1100")
	p.RetargetInterval = 10
	return p
}

func TestVersionAt(t *testing.T) {
	p := consensus.DefaultParams()
	require.Equal(t, 1, p.VersionAt(p.ATActivationTimestamp-1))
	require.Equal(t, 2, p.VersionAt(p.ATActivationTimestamp))
}

func TestMinTimestampStaysInWindow(t *testing.T) {
	p := consensus.DefaultParams()
	rapid.Check(t, func(rt *rapid.T) {
		parent := &core.BlockData{
			Height:             rapid.IntRange(1, 1_000_000).Draw(rt, "height"),
			Timestamp:          rapid.Int64Range(p.GenesisTimestamp, p.GenesisTimestamp+1e12).Draw(rt, "ts"),
			GeneratorSignature: rapid.SliceOfN(rapid.Byte(), 64, 64).Draw(rt, "gensig"),
		}
		key := rapid.SliceOfN(rapid.Byte(), 32, 32).Draw(rt, "key")

		ts := consensus.CalcMinTimestamp(p, parent, key)
		require.GreaterOrEqual(rt, ts, parent.Timestamp+p.MinBlockTime)
		require.Less(rt, ts, parent.Timestamp+p.MaxBlockTime)
		require.Equal(rt, ts, consensus.CalcMinTimestamp(p, parent, key))
	})
}

func TestKeyDistanceDependsOnParentAndKey(t *testing.T) {
	sig := []byte("parent")
	_, a := testutil.Key(t, "a")
	_, b := testutil.Key(t, "b")

	require.NotEqual(t, consensus.CalcKeyDistance(5, sig, a), consensus.CalcKeyDistance(5, sig, b))
	require.NotEqual(t, consensus.CalcKeyDistance(5, sig, a), consensus.CalcKeyDistance(6, sig, a))
	require.Equal(t, 0, consensus.CalcKeyDistance(5, sig, a).Cmp(consensus.CalcKeyDistance(5, sig, a)))
	require.GreaterOrEqual(t, consensus.CalcKeyDistance(5, sig, a).Sign(), 0)
}

func TestBlockTimeFor(t *testing.T) {
	p := retargetParams()
	require.Equal(t, "300000", consensus.BlockTimeFor(p, p.MinBalance).String())
	require.Equal(t, "60000", consensus.BlockTimeFor(p, p.MaxBalance).String())
	require.Equal(t, "180000", consensus.BlockTimeFor(p, core.MustAmount("600")).String())
}

func TestNextGeneratingBalance(t *testing.T) {
	p := retargetParams()

	got, err := consensus.NextGeneratingBalance(p, nil, nil)
	require.NoError(t, err)
	require.True(t, p.GenesisGeneratingBalance.Equal(got))

	tests := []struct {
		name    string
		spacing int64
		height  int
		want    string
	}{
		{"on schedule", 180_000, 9, "600"},
		{"too slow halves", 360_000, 9, "300"},
		{"too fast clamps to max", 18_000, 9, "1100"},
		{"far too slow clamps to min", 3_600_000, 9, "100"},
		{"off retarget height keeps parent", 18_000, 8, "600"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := testutil.NewRepository(t)
			blocks := repo.BlockRepository()
			var parent *core.BlockData
			for h := 1; h <= tt.height; h++ {
				parent = &core.BlockData{
					Height:             h,
					Timestamp:          p.GenesisTimestamp + int64(h-1)*tt.spacing,
					GeneratingBalance:  core.MustAmount("600"),
					GeneratorSignature: []byte(fmt.Sprintf("block-%d", h)),
				}
				require.NoError(t, blocks.Save(parent))
			}

			got, err := consensus.NextGeneratingBalance(p, blocks, parent)
			require.NoError(t, err)
			require.Equal(t, tt.want, got.String())
		})
	}
}
