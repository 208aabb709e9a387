package database

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ardanlabs/powledger/foundation/blockchain/genesis"
)

// GenesisPrevHash is the previous hash value stored in the genesis block.
const GenesisPrevHash = "0"

// Set of reasons a block can be rejected by ValidateBlock.
var (
	ErrPreviousHashMismatch = errors.New("previous hash does not match")
	ErrHashMismatch         = errors.New("hash does not match the calculated hash")
	ErrDifficultyNotMet     = errors.New("hash does not meet the difficulty target")
)

// =============================================================================

// Block represents a group of transactions bound together by a hash.
type Block struct {
	Index        uint64  `json:"index"`
	PrevHash     string  `json:"previous_hash"`
	TimeStamp    float64 `json:"timestamp"` // Unix time in fractional seconds.
	Transactions []Tx    `json:"transactions"`
	Difficulty   uint    `json:"difficulty"` // Number of leading hex 0's the hash needs.
	Nonce        uint64  `json:"nonce"`      // Value identified to solve the hash solution.
	Hash         string  `json:"hash"`
	MinerAddress string  `json:"miner_address"` // The account credited with the reward.
}

// NewGenesisBlock constructs the root block of the chain from the genesis
// information. The genesis block is not mined.
func NewGenesisBlock(gen genesis.Genesis) Block {
	b := Block{
		Index:        0,
		PrevHash:     GenesisPrevHash,
		TimeStamp:    gen.TimeStamp(),
		Transactions: []Tx{NewTx("None", "None", 0)},
		Difficulty:   gen.Difficulty,
	}
	b.Hash = b.CalculateHash()

	return b
}

// CalculateHash returns the SHA-256 hex digest for the fields of the block.
// The stored Hash field is not part of the input.
func (b Block) CalculateHash() string {
	var trans strings.Builder
	for _, tx := range b.Transactions {
		trans.WriteString(tx.String())
	}

	data := fmt.Sprintf("%d%s%s%s%d%d", b.Index, b.PrevHash, formatTimeStamp(b.TimeStamp), trans.String(), b.Difficulty, b.Nonce)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// IsSolved reports whether the stored hash satisfies the block difficulty.
func (b Block) IsSolved() bool {
	return isHashSolved(b.Difficulty, b.Hash)
}

// Copy returns a block that shares no memory with the original.
func (b Block) Copy() Block {
	b.Transactions = append([]Tx(nil), b.Transactions...)
	return b
}

// String implements the fmt.Stringer interface.
func (b Block) String() string {
	return fmt.Sprintf("blk[%d]:%s", b.Index, b.Hash)
}

// ValidateBlock takes a block and validates it against the block it is
// supposed to follow. The checks run in a fixed order and the first failure
// is the reason reported.
func (b Block) ValidateBlock(previousBlock Block, evHandler func(v string, args ...any)) error {
	evHandler("database: ValidateBlock: validate: blk[%d]: check: previous hash does match previous block", b.Index)

	if b.PrevHash != previousBlock.Hash {
		return fmt.Errorf("%w: got %s, exp %s", ErrPreviousHashMismatch, b.PrevHash, previousBlock.Hash)
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: hash does match calculated hash", b.Index)

	if hash := b.CalculateHash(); b.Hash != hash {
		return fmt.Errorf("%w: got %s, exp %s", ErrHashMismatch, b.Hash, hash)
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: block hash has been solved", b.Index)

	if !b.IsSolved() {
		return fmt.Errorf("%w: hash %s, difficulty %d", ErrDifficultyNotMet, b.Hash, b.Difficulty)
	}

	return nil
}

// =============================================================================

// POWArgs represents the set of arguments required to run POW.
type POWArgs struct {
	MinerAddress string
	Difficulty   uint
	MiningReward float64
	PrevBlock    Block
	Trans        []Tx
	Now          time.Time
	EvHandler    func(v string, args ...any)
}

// POW constructs a new Block and performs the work to find a nonce that
// solves the cryptographic POW puzzle. The reward transaction is added
// before the work starts so the hash commits to it.
func POW(ctx context.Context, args POWArgs) (Block, error) {
	ev := args.EvHandler
	if ev == nil {
		ev = func(string, ...any) {}
	}

	now := args.Now
	if now.IsZero() {
		now = time.Now()
	}

	trans := append([]Tx(nil), args.Trans...)
	if args.MinerAddress != "" && args.MiningReward > 0 {
		trans = append(trans, NewRewardTx(args.MinerAddress, args.MiningReward))
	}

	difficulty := args.Difficulty
	if difficulty < 1 {
		difficulty = 1
	}

	// Construct the block to be mined.
	nb := Block{
		Index:        args.PrevBlock.Index + 1,
		PrevHash:     args.PrevBlock.Hash,
		TimeStamp:    float64(now.UnixNano()) / float64(time.Second),
		Transactions: trans,
		Difficulty:   difficulty,
		Nonce:        0, // Will be identified by the POW algorithm.
		MinerAddress: args.MinerAddress,
	}

	// Perform the proof of work mining operation.
	if err := nb.performPOW(ctx, ev); err != nil {
		return Block{}, err
	}

	return nb, nil
}

// performPOW does the work of mining to find a valid hash for a specified
// block. Pointer semantics are being used since a nonce is being discovered.
func (b *Block) performPOW(ctx context.Context, ev func(v string, args ...any)) error {
	ev("database: PerformPOW: MINING: started: blk[%d]: difficulty[%d]", b.Index, b.Difficulty)
	defer ev("database: PerformPOW: MINING: completed")

	// Log the transactions that are a part of this potential block.
	for _, tx := range b.Transactions {
		ev("database: PerformPOW: MINING: tx[%s]", tx)
	}

	// Loop until we or another node finds a solution for the next block.
	var attempts uint64
	for {
		attempts++
		if attempts%1_000_000 == 0 {
			ev("database: PerformPOW: MINING: attempts[%d]", attempts)
		}

		// Did another node solve this height first.
		if ctx.Err() != nil {
			ev("database: PerformPOW: MINING: CANCELLED")
			return ctx.Err()
		}

		// Hash the block and check if we have solved the puzzle.
		hash := b.CalculateHash()
		if !isHashSolved(b.Difficulty, hash) {
			b.Nonce++
			continue
		}

		b.Hash = hash

		ev("database: PerformPOW: MINING: SOLVED: prevBlk[%s]: newBlk[%s]", b.PrevHash, hash)
		ev("database: PerformPOW: MINING: attempts[%d]", attempts)

		return nil
	}
}

// =============================================================================

// isHashSolved checks the hash to make sure it complies with
// the POW rules. We need to match a difficulty number of 0's.
func isHashSolved(difficulty uint, hash string) bool {
	if len(hash) != sha256.Size*2 || difficulty < 1 || int(difficulty) > len(hash) {
		return false
	}

	return strings.Count(hash[:difficulty], "0") == int(difficulty)
}

// formatTimeStamp writes the shortest form that round trips and always
// keeps a fraction, so whole seconds hash as "1700000000.0".
func formatTimeStamp(ts float64) string {
	s := strconv.FormatFloat(ts, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
