package state

import (
	"github.com/ardanlabs/powledger/foundation/blockchain/database"
)

// AddTransaction validates the transaction and adds it to the mempool. An
// invalid transaction is rejected and nothing changes.
func (s *State) AddTransaction(tx database.Tx) error {
	if err := tx.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.mempool.Add(tx)
	s.evHandler("state: AddTransaction: tx[%s]: mempool[%d]", tx, n)

	return nil
}

// SubmitTransaction accepts a transaction from a wallet or a peer. A
// transaction seen before returns ErrSeen. An accepted transaction is shared
// with the known peers and may start a mining operation.
func (s *State) SubmitTransaction(tx database.Tx) error {
	if err := tx.Validate(); err != nil {
		return err
	}

	if !s.seen.markTx(tx) {
		return ErrSeen
	}

	if err := s.AddTransaction(tx); err != nil {
		return err
	}

	s.Worker.SignalShareTx(tx)
	s.Worker.SignalStartMining()

	return nil
}
