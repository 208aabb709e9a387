// Package genesis maintains access to the genesis file.
package genesis

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"
)

// Genesis represents the genesis file.
type Genesis struct {
	Date                    time.Time `json:"date"`                      // Timestamp of the genesis block. Fixed so every node derives the same root.
	Difficulty              uint      `json:"difficulty"`                // Starting number of leading hex zeros.
	MiningReward            float64   `json:"mining_reward"`             // Reward credited to the miner of a block.
	AdjustmentInterval      int       `json:"adjustment_interval"`       // Number of blocks between difficulty retargets.
	BlockGenerationInterval float64   `json:"block_generation_interval"` // Expected seconds per block.
}

// Default returns the genesis values the network uses when no file exists.
func Default() Genesis {
	return Genesis{
		Date:                    time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		Difficulty:              4,
		MiningReward:            50,
		AdjustmentInterval:      10,
		BlockGenerationInterval: 1,
	}
}

// TimeStamp returns the genesis date as fractional unix seconds.
func (g Genesis) TimeStamp() float64 {
	return float64(g.Date.UnixNano()) / float64(time.Second)
}

// Validate checks the genesis values can drive a chain.
func (g Genesis) Validate() error {
	if g.Difficulty < 1 {
		return errors.New("difficulty must be at least 1")
	}
	if g.AdjustmentInterval < 1 {
		return errors.New("adjustment interval must be at least 1")
	}
	if g.BlockGenerationInterval <= 0 {
		return errors.New("block generation interval must be positive")
	}
	if g.MiningReward < 0 {
		return errors.New("mining reward can't be negative")
	}
	return nil
}

// =============================================================================

// Load opens and consumes the genesis file. If the file does not exist the
// default genesis is returned.
func Load(path string) (Genesis, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return Genesis{}, err
	}

	// Start from the defaults so a partial file only overrides what it names.
	genesis := Default()
	if err := json.Unmarshal(content, &genesis); err != nil {
		return Genesis{}, fmt.Errorf("decoding genesis %s: %w", path, err)
	}

	if err := genesis.Validate(); err != nil {
		return Genesis{}, fmt.Errorf("genesis %s: %w", path, err)
	}

	return genesis, nil
}
