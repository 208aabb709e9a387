package state_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/ardanlabs/powledger/foundation/blockchain/database/storage"
	"github.com/ardanlabs/powledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/powledger/foundation/blockchain/peer"
	"github.com/ardanlabs/powledger/foundation/blockchain/state"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const minerAddress = "0xFef311483Cc040e1A89fb9bb469eeB8A70935EF8"

func newState(t *testing.T) *state.State {
	t.Helper()

	gen := genesis.Default()
	gen.Difficulty = 1

	st, err := state.New(state.Config{
		MinerAddress: minerAddress,
		Self:         peer.New("127.0.0.1", 5000),
		Genesis:      gen,
		Storage:      storage.NewMemory(),
	})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the state: %v", failed, err)
	}

	return st
}

func mine(t *testing.T, st *state.State, txs ...database.Tx) database.Block {
	t.Helper()

	for _, tx := range txs {
		if err := st.AddTransaction(tx); err != nil {
			t.Fatalf("\t%s\tShould be able to add transaction %s: %v", failed, tx, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	block, err := st.MineNewBlock(ctx)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to mine a block: %v", failed, err)
	}

	return block
}

// =============================================================================

func Test_AddTransaction(t *testing.T) {
	type table struct {
		name  string
		tx    database.Tx
		valid bool
	}

	tt := []table{
		{name: "valid", tx: database.NewTx("alice", "bob", 10), valid: true},
		{name: "fraction", tx: database.NewTx("alice", "bob", 0.5), valid: true},
		{name: "no sender", tx: database.NewTx("", "bob", 10)},
		{name: "no recipient", tx: database.NewTx("alice", "", 10)},
		{name: "zero amount", tx: database.NewTx("alice", "bob", 0)},
		{name: "negative amount", tx: database.NewTx("alice", "bob", -1)},
	}

	t.Log("Given the need to only accept valid transactions.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				st := newState(t)

				err := st.AddTransaction(tst.tx)
				switch tst.valid {
				case true:
					if err != nil || st.QueryMempoolLength() != 1 {
						t.Fatalf("\t%s\tTest %d:\tShould accept the transaction: %v", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould accept the transaction.", success, testID)

				default:
					if !errors.Is(err, database.ErrInvalidTransaction) {
						t.Fatalf("\t%s\tTest %d:\tShould reject the transaction: %v", failed, testID, err)
					}
					if st.QueryMempoolLength() != 0 {
						t.Fatalf("\t%s\tTest %d:\tShould leave the mempool unchanged.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould reject the transaction without side effects.", success, testID)
				}
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_MineAndAppend(t *testing.T) {
	t.Log("Given the need to mine and append blocks.")
	{
		st := newState(t)
		genesisBlock := st.RetrieveLatestBlock()

		block := mine(t, st, database.NewTx("alice", "bob", 10), database.NewTx("bob", "carol", 5))

		if st.QueryChainLength() != 2 {
			t.Fatalf("\t%s\tShould have two blocks, got %d.", failed, st.QueryChainLength())
		}
		t.Logf("\t%s\tShould have two blocks.", success)

		if block.PrevHash != genesisBlock.Hash || !strings.HasPrefix(block.Hash, "0") {
			t.Fatalf("\t%s\tShould link to genesis with a solved hash: %s", failed, block)
		}
		t.Logf("\t%s\tShould link to genesis with a solved hash.", success)

		reward := block.Transactions[len(block.Transactions)-1]
		if reward.Sender != database.RewardSender || reward.Recipient != minerAddress || reward.Amount != 50 {
			t.Fatalf("\t%s\tShould credit the miner last: %s", failed, reward)
		}
		t.Logf("\t%s\tShould credit the miner last.", success)

		if st.QueryMempoolLength() != 0 {
			t.Fatalf("\t%s\tShould clear the mempool.", failed)
		}
		t.Logf("\t%s\tShould clear the mempool.", success)

		ctx := context.Background()
		if _, err := st.MineNewBlock(ctx); !errors.Is(err, state.ErrNoTransactions) {
			t.Fatalf("\t%s\tShould not mine with an empty mempool: %v", failed, err)
		}
		t.Logf("\t%s\tShould not mine with an empty mempool.", success)
	}
}

func Test_AppendRejects(t *testing.T) {
	src := newState(t)
	good := mine(t, src, database.NewTx("alice", "bob", 10))

	wrongPrev := good.Copy()
	wrongPrev.PrevHash = strings.Repeat("f", 64)

	tampered := good.Copy()
	tampered.Transactions[0].Amount = 1000

	unsolved := good.Copy()
	unsolved.Difficulty = 64
	unsolved.Hash = unsolved.CalculateHash()

	type table struct {
		name  string
		block database.Block
		exp   error
	}

	tt := []table{
		{name: "previous hash", block: wrongPrev, exp: database.ErrPreviousHashMismatch},
		{name: "tampered", block: tampered, exp: database.ErrHashMismatch},
		{name: "difficulty", block: unsolved, exp: database.ErrDifficultyNotMet},
	}

	t.Log("Given the need to reject invalid blocks with a reason.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				st := newState(t)
				st.AddTransaction(database.NewTx("carol", "dave", 1))

				err := st.AppendBlock(tst.block)
				if !errors.Is(err, tst.exp) {
					t.Fatalf("\t%s\tTest %d:\tShould reject with %v, got %v.", failed, testID, tst.exp, err)
				}
				t.Logf("\t%s\tTest %d:\tShould reject with %v.", success, testID, tst.exp)

				if st.QueryChainLength() != 1 || st.QueryMempoolLength() != 1 {
					t.Fatalf("\t%s\tTest %d:\tShould leave the chain and mempool unchanged.", failed, testID)
				}
				t.Logf("\t%s\tTest %d:\tShould leave the chain and mempool unchanged.", success, testID)
			}

			t.Run(tst.name, f)
		}
	}

	t.Log("Given the need to accept a block mined by another node.")
	{
		st := newState(t)
		if err := st.ProcessProposedBlock(good); err != nil {
			t.Fatalf("\t%s\tShould accept a valid block: %v", failed, err)
		}
		t.Logf("\t%s\tShould accept a valid block.", success)

		if err := st.ProcessProposedBlock(good); !errors.Is(err, state.ErrSeen) {
			t.Fatalf("\t%s\tShould ignore a block seen before: %v", failed, err)
		}
		t.Logf("\t%s\tShould ignore a block seen before.", success)

		if st.RetrieveLatestBlock().Hash != src.RetrieveLatestBlock().Hash {
			t.Fatalf("\t%s\tShould have the same chain head as the miner.", failed)
		}
		t.Logf("\t%s\tShould have the same chain head as the miner.", success)
	}
}

func Test_ForgedBlockFirst(t *testing.T) {
	t.Log("Given the need to accept a real block after a forged copy of it.")
	{
		src := newState(t)
		good := mine(t, src, database.NewTx("alice", "bob", 10))

		forged := good.Copy()
		forged.Transactions[0].Amount = 1000

		st := newState(t)
		if err := st.ProcessProposedBlock(forged); !errors.Is(err, database.ErrHashMismatch) {
			t.Fatalf("\t%s\tShould reject the forged block on its hash: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject the forged block on its hash.", success)

		if err := st.ProcessProposedBlock(good); err != nil {
			t.Fatalf("\t%s\tShould accept the real block that follows: %v", failed, err)
		}
		if st.QueryChainLength() != 2 || st.RetrieveLatestBlock().Hash != good.Hash {
			t.Fatalf("\t%s\tShould have the real block as the chain head.", failed)
		}
		t.Logf("\t%s\tShould accept the real block that follows.", success)
	}
}

func Test_AddWhileMining(t *testing.T) {
	t.Log("Given the need to keep transactions that arrive while a block is mined.")
	{
		early := database.NewTx("alice", "bob", 1)
		late := database.NewTx("carol", "dave", 2)

		gen := genesis.Default()
		gen.Difficulty = 1

		// The late transaction is added once the candidate block has been
		// built and the nonce search is running.
		var st *state.State
		var added bool
		var lateErr error
		ev := func(v string, args ...any) {
			if !added && strings.HasPrefix(v, "state: MineNewBlock: MINING: perform POW") {
				added = true
				lateErr = st.AddTransaction(late)
			}
		}

		var err error
		st, err = state.New(state.Config{
			MinerAddress: minerAddress,
			Genesis:      gen,
			Storage:      storage.NewMemory(),
			EvHandler:    ev,
		})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct the state: %v", failed, err)
		}

		block := mine(t, st, early)
		if lateErr != nil {
			t.Fatalf("\t%s\tShould add the transaction during mining: %v", failed, lateErr)
		}

		if len(block.Transactions) != 2 || block.Transactions[0] != early {
			t.Fatalf("\t%s\tShould mine only the snapshot taken before the search: %v", failed, block.Transactions)
		}
		t.Logf("\t%s\tShould mine only the snapshot taken before the search.", success)

		pending := st.RetrieveMempool()
		if len(pending) != 1 || pending[0] != late {
			t.Fatalf("\t%s\tShould keep the late transaction pending: %v", failed, pending)
		}
		t.Logf("\t%s\tShould keep the late transaction pending.", success)

		next := mine(t, st)
		if next.Transactions[0] != late || st.QueryMempoolLength() != 0 {
			t.Fatalf("\t%s\tShould mine the late transaction in the next block.", failed)
		}
		t.Logf("\t%s\tShould mine the late transaction in the next block.", success)
	}
}

func Test_ReplaceChain(t *testing.T) {
	t.Log("Given the need to adopt the longest valid chain.")
	{
		long := newState(t)
		mine(t, long, database.NewTx("a", "b", 1))
		mine(t, long, database.NewTx("b", "c", 2))
		mine(t, long, database.NewTx("c", "d", 3))

		short := newState(t)
		mine(t, short, database.NewTx("x", "y", 1))

		if short.ReplaceChain(short.RetrieveChain()) {
			t.Fatalf("\t%s\tShould reject a chain of equal length.", failed)
		}
		t.Logf("\t%s\tShould reject a chain of equal length.", success)

		invalid := long.RetrieveChain()
		invalid[2].Transactions[0].Amount = 99
		if short.ReplaceChain(invalid) {
			t.Fatalf("\t%s\tShould reject a longer chain that is invalid.", failed)
		}
		if short.IsChainValid(invalid) {
			t.Fatalf("\t%s\tShould report the tampered chain as invalid.", failed)
		}
		t.Logf("\t%s\tShould reject a longer chain that is invalid.", success)

		if !short.ReplaceChain(long.RetrieveChain()) {
			t.Fatalf("\t%s\tShould accept a longer valid chain.", failed)
		}
		t.Logf("\t%s\tShould accept a longer valid chain.", success)

		if short.QueryChainLength() != 4 || short.RetrieveLatestBlock().Hash != long.RetrieveLatestBlock().Hash {
			t.Fatalf("\t%s\tShould have the same chain as the longer node.", failed)
		}
		t.Logf("\t%s\tShould have the same chain as the longer node.", success)

		if long.ReplaceChain(short.RetrieveChain()[:2]) {
			t.Fatalf("\t%s\tShould reject a shorter chain.", failed)
		}
		t.Logf("\t%s\tShould reject a shorter chain.", success)
	}
}

func Test_Persistence(t *testing.T) {
	t.Log("Given the need to reload the chain from disk.")
	{
		gen := genesis.Default()
		gen.Difficulty = 1

		dir := t.TempDir()
		strg, err := storage.NewDisk(dir)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to open disk storage: %v", failed, err)
		}

		st, err := state.New(state.Config{Genesis: gen, Storage: strg})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct the state: %v", failed, err)
		}
		block := mine(t, st, database.NewTx("alice", "bob", 3))
		st.Shutdown()

		strg, err = storage.NewDisk(dir)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to reopen disk storage: %v", failed, err)
		}

		st, err = state.New(state.Config{Genesis: gen, Storage: strg})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to reload the state: %v", failed, err)
		}

		if st.QueryChainLength() != 2 || st.RetrieveLatestBlock().Hash != block.Hash {
			t.Fatalf("\t%s\tShould reload the mined block.", failed)
		}
		t.Logf("\t%s\tShould reload the mined block.", success)
	}
}
