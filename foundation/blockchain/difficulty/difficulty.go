// Package difficulty implements the retarget rule that keeps the time
// between blocks near the expected generation interval.
package difficulty

import (
	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/ardanlabs/powledger/foundation/blockchain/genesis"
)

// MinDifficulty is the floor the difficulty can never drop below.
const MinDifficulty = 1

// Controller decides the difficulty for the next block.
type Controller struct {
	interval   int     // Number of blocks between retargets.
	generation float64 // Expected seconds per block.
}

// New constructs a controller from the genesis parameters.
func New(gen genesis.Genesis) Controller {
	return Controller{
		interval:   gen.AdjustmentInterval,
		generation: gen.BlockGenerationInterval,
	}
}

// Retarget returns the difficulty to use after the chain has grown to its
// current length. The rule only fires when the chain length is a multiple
// of the interval. The window measured runs from chain[len-interval] to the
// last block.
func (c Controller) Retarget(chain []database.Block, current uint) uint {
	if c.interval < 1 || len(chain) < c.interval || len(chain)%c.interval != 0 {
		return current
	}

	start := chain[len(chain)-c.interval].TimeStamp
	end := chain[len(chain)-1].TimeStamp

	taken := end - start
	expected := c.generation * float64(c.interval)

	switch {
	case taken < expected:
		return current + 1

	case taken > expected:
		if current <= MinDifficulty {
			return MinDifficulty
		}
		return current - 1
	}

	return current
}

// Replay recomputes the difficulty for a chain by applying the retarget
// rule at every length the chain passed through, starting from the
// initial difficulty.
func (c Controller) Replay(chain []database.Block, initial uint) uint {
	difficulty := initial
	for n := 2; n <= len(chain); n++ {
		difficulty = c.Retarget(chain[:n], difficulty)
	}
	return difficulty
}
