package public

import (
	"github.com/ardanlabs/powledger/foundation/blockchain/database"
)

type status struct {
	Host         string `json:"host"`
	MinerAddress string `json:"miner_address"`
	MinerName    string `json:"miner_name"`
	ChainLength  int    `json:"chain_length"`
	LatestBlock  string `json:"latest_block"`
	LatestIndex  uint64 `json:"latest_index"`
	Difficulty   uint   `json:"difficulty"`
	Mempool      int    `json:"mempool"`
	KnownPeers   int    `json:"known_peers"`
}

type newTx struct {
	Sender    string  `json:"sender" validate:"required"`
	Recipient string  `json:"recipient" validate:"required"`
	Amount    float64 `json:"amount" validate:"gt=0"`
}

func (n newTx) toTx() database.Tx {
	return database.NewTx(n.Sender, n.Recipient, n.Amount)
}

type tx struct {
	Sender        string  `json:"sender"`
	SenderName    string  `json:"sender_name"`
	Recipient     string  `json:"recipient"`
	RecipientName string  `json:"recipient_name"`
	Amount        float64 `json:"amount"`
}

type block struct {
	Index        uint64  `json:"index"`
	PrevHash     string  `json:"previous_hash"`
	Hash         string  `json:"hash"`
	TimeStamp    float64 `json:"timestamp"`
	Difficulty   uint    `json:"difficulty"`
	Nonce        uint64  `json:"nonce"`
	MinerAddress string  `json:"miner_address"`
	MinerName    string  `json:"miner_name"`
	Transactions []tx    `json:"transactions"`
}
