package database_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/ardanlabs/powledger/foundation/blockchain/database/storage"
	"github.com/ardanlabs/powledger/foundation/blockchain/genesis"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func noop(string, ...any) {}

func mineNext(t *testing.T, prev database.Block, difficulty uint, txs ...database.Tx) database.Block {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	block, err := database.POW(ctx, database.POWArgs{
		MinerAddress: "miner",
		Difficulty:   difficulty,
		MiningReward: 50,
		PrevBlock:    prev,
		Trans:        txs,
	})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to mine a block: %v", failed, err)
	}

	return block
}

// =============================================================================

func Test_Hash(t *testing.T) {
	t.Log("Given the need to hash blocks the same way on every node.")
	{
		b := database.Block{
			Index:        1,
			PrevHash:     "abc",
			TimeStamp:    1700000000.5,
			Transactions: []database.Tx{database.NewTx("alice", "bob", 10), database.NewTx("bob", "carol", 2.5)},
			Difficulty:   2,
			Nonce:        7,
		}

		const exp = "b86338b6de4039b546ce8b3418f88def054b3222766a99068461dc8196d581d0"
		if got := b.CalculateHash(); got != exp {
			t.Fatalf("\t%s\tShould get the known hash, got %s.", failed, got)
		}
		t.Logf("\t%s\tShould get the known hash.", success)

		if b.CalculateHash() != b.CalculateHash() {
			t.Fatalf("\t%s\tShould be reproducible.", failed)
		}
		t.Logf("\t%s\tShould be reproducible.", success)

		b.Hash = "ignored"
		if got := b.CalculateHash(); got != exp {
			t.Fatalf("\t%s\tShould not include the stored hash, got %s.", failed, got)
		}
		t.Logf("\t%s\tShould not include the stored hash.", success)
	}
}

func Test_Genesis(t *testing.T) {
	t.Log("Given the need for every node to derive the same genesis block.")
	{
		b := database.NewGenesisBlock(genesis.Default())

		if b.Index != 0 || b.PrevHash != database.GenesisPrevHash {
			t.Fatalf("\t%s\tShould have index 0 and previous hash \"0\": %s", failed, b)
		}
		t.Logf("\t%s\tShould have index 0 and previous hash \"0\".", success)

		if len(b.Transactions) != 1 || b.Transactions[0].String() != "None->None:0" {
			t.Fatalf("\t%s\tShould hold the placeholder transaction: %v", failed, b.Transactions)
		}
		t.Logf("\t%s\tShould hold the placeholder transaction.", success)

		const exp = "12cb23f4a7edd76454a25c767b2b627d0b08758824f871d0724eaaa7b372bee6"
		if b.Hash != exp || b.Hash != b.CalculateHash() {
			t.Fatalf("\t%s\tShould have the known hash, got %s.", failed, b.Hash)
		}
		t.Logf("\t%s\tShould have the known hash.", success)
	}
}

func Test_POW(t *testing.T) {
	t.Log("Given the need to mine blocks that meet the difficulty.")
	{
		gb := database.NewGenesisBlock(genesis.Default())

		for _, difficulty := range []uint{1, 2, 3} {
			b := mineNext(t, gb, difficulty, database.NewTx("alice", "bob", 1))

			if !strings.HasPrefix(b.Hash, strings.Repeat("0", int(difficulty))) || b.Hash != b.CalculateHash() {
				t.Fatalf("\t%s\tShould have %d leading zeros: %s", failed, difficulty, b.Hash)
			}
			t.Logf("\t%s\tShould have %d leading zeros.", success, difficulty)

			if err := b.ValidateBlock(gb, noop); err != nil {
				t.Fatalf("\t%s\tShould validate against the previous block: %v", failed, err)
			}
			t.Logf("\t%s\tShould validate against the previous block.", success)

			last := b.Transactions[len(b.Transactions)-1]
			if last.Sender != database.RewardSender || last.Recipient != "miner" {
				t.Fatalf("\t%s\tShould end with the reward transaction: %s", failed, last)
			}
			t.Logf("\t%s\tShould end with the reward transaction.", success)
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := database.POW(ctx, database.POWArgs{Difficulty: 64, PrevBlock: gb, Trans: []database.Tx{database.NewTx("a", "b", 1)}})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("\t%s\tShould stop when cancelled: %v", failed, err)
		}
		t.Logf("\t%s\tShould stop when cancelled.", success)
	}
}

func Test_ValidateBlock(t *testing.T) {
	gb := database.NewGenesisBlock(genesis.Default())
	good := mineNext(t, gb, 1, database.NewTx("alice", "bob", 10))

	// Every check fails here. The first in order is reported.
	allBad := good.Copy()
	allBad.PrevHash = "bad"
	allBad.Nonce++
	allBad.Difficulty = 64

	tampered := good.Copy()
	tampered.Transactions[0].Amount = 11

	unsolved := good.Copy()
	unsolved.Difficulty = 64
	unsolved.Hash = unsolved.CalculateHash()

	type table struct {
		name  string
		block database.Block
		exp   error
	}

	tt := []table{
		{name: "order", block: allBad, exp: database.ErrPreviousHashMismatch},
		{name: "tampered", block: tampered, exp: database.ErrHashMismatch},
		{name: "unsolved", block: unsolved, exp: database.ErrDifficultyNotMet},
		{name: "valid", block: good},
	}

	t.Log("Given the need to validate a block with a reason.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				err := tst.block.ValidateBlock(gb, noop)
				if tst.exp == nil && err != nil || !errors.Is(err, tst.exp) {
					t.Fatalf("\t%s\tTest %d:\tShould get %v, got %v.", failed, testID, tst.exp, err)
				}
				t.Logf("\t%s\tTest %d:\tShould get %v.", success, testID, tst.exp)
			}

			t.Run(tst.name, f)
		}
	}

	t.Log("Given the need to detect tampering anywhere in a chain.")
	{
		chain := []database.Block{gb, good, mineNext(t, good, 1, database.NewTx("bob", "carol", 1))}
		if err := database.ValidateChain(chain, noop); err != nil {
			t.Fatalf("\t%s\tShould accept the untouched chain: %v", failed, err)
		}
		t.Logf("\t%s\tShould accept the untouched chain.", success)

		chain[1] = tampered
		if err := database.ValidateChain(chain, noop); !errors.Is(err, database.ErrHashMismatch) {
			t.Fatalf("\t%s\tShould reject the tampered chain: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject the tampered chain.", success)
	}
}

// flakyStorage fails every write of a block at or above failFrom once
// armed.
type flakyStorage struct {
	*storage.Memory
	armed    bool
	failFrom uint64
}

func (fs *flakyStorage) Write(block database.Block) error {
	if fs.armed && block.Index >= fs.failFrom {
		fs.armed = false
		return errors.New("disk full")
	}
	return fs.Memory.Write(block)
}

func Test_Database(t *testing.T) {
	t.Log("Given the need to manage the chain in storage.")
	{
		gen := genesis.Default()

		db, err := database.New(gen, storage.NewMemory(), noop)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to open the database: %v", failed, err)
		}
		defer db.Close()

		if db.Len() != 1 || db.LatestBlock().Hash != database.NewGenesisBlock(gen).Hash {
			t.Fatalf("\t%s\tShould start with the genesis block.", failed)
		}
		t.Logf("\t%s\tShould start with the genesis block.", success)

		b1 := mineNext(t, db.LatestBlock(), 1, database.NewTx("a", "b", 1))
		if err := db.Append(b1); err != nil {
			t.Fatalf("\t%s\tShould append the next block: %v", failed, err)
		}
		if err := db.Append(b1); !errors.Is(err, database.ErrBlockOutOfOrder) {
			t.Fatalf("\t%s\tShould reject a block out of order: %v", failed, err)
		}
		t.Logf("\t%s\tShould append in order only.", success)

		got, err := db.GetBlock(1)
		if err != nil || got.Hash != b1.Hash {
			t.Fatalf("\t%s\tShould get the block by index: %v", failed, err)
		}
		if _, err := db.GetBlock(9); !errors.Is(err, database.ErrBlockNotFound) {
			t.Fatalf("\t%s\tShould report a missing block: %v", failed, err)
		}
		t.Logf("\t%s\tShould get blocks by index.", success)

		longer := []database.Block{db.GenesisBlock()}
		for i := 0; i < 3; i++ {
			longer = append(longer, mineNext(t, longer[len(longer)-1], 1, database.NewTx("x", "y", float64(i+1))))
		}

		if err := db.Replace(longer[:2], noop); !errors.Is(err, database.ErrChainNotStronger) {
			t.Fatalf("\t%s\tShould reject a chain that is not longer: %v", failed, err)
		}
		if err := db.Replace(longer, noop); err != nil {
			t.Fatalf("\t%s\tShould replace with a longer chain: %v", failed, err)
		}
		if db.Len() != 4 || db.LatestBlock().Hash != longer[3].Hash {
			t.Fatalf("\t%s\tShould hold the longer chain.", failed)
		}
		t.Logf("\t%s\tShould replace only with a longer valid chain.", success)

		other := genesis.Default()
		other.Date = other.Date.Add(time.Hour)
		foreign := []database.Block{database.NewGenesisBlock(other)}
		for i := 0; i < 5; i++ {
			foreign = append(foreign, mineNext(t, foreign[len(foreign)-1], 1, database.NewTx("x", "y", 1)))
		}
		if err := db.Replace(foreign, noop); !errors.Is(err, database.ErrGenesisMismatch) {
			t.Fatalf("\t%s\tShould reject a chain with another genesis: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject a chain with another genesis.", success)
	}
}

func Test_ReplaceWriteFailure(t *testing.T) {
	t.Log("Given the need to keep storage in step with the chain when a replace fails.")
	{
		gen := genesis.Default()
		strg := flakyStorage{Memory: storage.NewMemory()}

		db, err := database.New(gen, &strg, noop)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to open the database: %v", failed, err)
		}
		defer db.Close()

		b1 := mineNext(t, db.LatestBlock(), 1, database.NewTx("a", "b", 1))
		if err := db.Append(b1); err != nil {
			t.Fatalf("\t%s\tShould append the next block: %v", failed, err)
		}

		longer := []database.Block{db.GenesisBlock()}
		for i := 0; i < 3; i++ {
			longer = append(longer, mineNext(t, longer[len(longer)-1], 1, database.NewTx("x", "y", float64(i+1))))
		}

		strg.armed = true
		strg.failFrom = 2
		if err := db.Replace(longer, noop); err == nil {
			t.Fatalf("\t%s\tShould report the failed write.", failed)
		}
		t.Logf("\t%s\tShould report the failed write.", success)

		if db.Len() != 2 || db.LatestBlock().Hash != b1.Hash {
			t.Fatalf("\t%s\tShould keep the previous chain in memory.", failed)
		}
		t.Logf("\t%s\tShould keep the previous chain in memory.", success)

		reloaded, err := database.New(gen, strg.Memory, noop)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to reload from storage: %v", failed, err)
		}
		if reloaded.Len() != 2 || reloaded.LatestBlock().Hash != b1.Hash {
			t.Fatalf("\t%s\tShould reload the previous chain, got %d blocks.", failed, reloaded.Len())
		}
		t.Logf("\t%s\tShould reload the previous chain.", success)
	}
}
