package difficulty_test

import (
	"testing"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/ardanlabs/powledger/foundation/blockchain/difficulty"
	"github.com/ardanlabs/powledger/foundation/blockchain/genesis"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func chainAt(stamps ...float64) []database.Block {
	chain := make([]database.Block, len(stamps))
	for i, ts := range stamps {
		chain[i] = database.Block{Index: uint64(i), TimeStamp: ts}
	}
	return chain
}

func newController() difficulty.Controller {
	gen := genesis.Default()
	gen.AdjustmentInterval = 4
	gen.BlockGenerationInterval = 1

	return difficulty.New(gen)
}

func Test_Retarget(t *testing.T) {
	type table struct {
		name    string
		chain   []database.Block
		current uint
		exp     uint
	}

	tt := []table{
		{name: "faster", chain: chainAt(0, 0.5, 1, 1.5), current: 4, exp: 5},
		{name: "slower", chain: chainAt(0, 5, 10, 15), current: 4, exp: 3},
		{name: "equal", chain: chainAt(0, 1, 2, 4), current: 4, exp: 4},
		{name: "floor", chain: chainAt(0, 5, 10, 15), current: 1, exp: 1},
		{name: "off interval", chain: chainAt(0, 0.1, 0.2, 0.3, 0.4), current: 4, exp: 4},
		{name: "too short", chain: chainAt(0, 0.1), current: 4, exp: 4},
	}

	t.Log("Given the need to retarget the difficulty every interval.")
	{
		ctrl := newController()

		for testID, tst := range tt {
			f := func(t *testing.T) {
				got := ctrl.Retarget(tst.chain, tst.current)
				if got != tst.exp {
					t.Fatalf("\t%s\tTest %d:\tShould get difficulty %d, got %d.", failed, testID, tst.exp, got)
				}
				t.Logf("\t%s\tTest %d:\tShould get difficulty %d.", success, testID, tst.exp)
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_Replay(t *testing.T) {
	t.Log("Given the need to recompute the difficulty from a loaded chain.")
	{
		ctrl := newController()

		chain := chainAt(0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7)
		if got := ctrl.Replay(chain, 2); got != 4 {
			t.Fatalf("\t%s\tShould raise the difficulty at both intervals, got %d.", failed, got)
		}
		t.Logf("\t%s\tShould raise the difficulty at both intervals.", success)

		if got := ctrl.Replay(chainAt(0), 3); got != 3 {
			t.Fatalf("\t%s\tShould keep the initial difficulty for a genesis only chain, got %d.", failed, got)
		}
		t.Logf("\t%s\tShould keep the initial difficulty for a genesis only chain.", success)
	}
}
