package database

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/ardanlabs/powledger/foundation/validate"
)

// RewardSender is the sentinel sender used for mining reward transactions.
const RewardSender = "System"

// ErrInvalidTransaction is returned when a transaction fails validation.
var ErrInvalidTransaction = errors.New("invalid transaction")

// =============================================================================

// Tx represents a value transfer between two parties. No signature or
// balance is attached to a transaction.
type Tx struct {
	Sender    string  `json:"sender" validate:"required"`
	Recipient string  `json:"recipient" validate:"required"`
	Amount    float64 `json:"amount" validate:"gt=0"`
}

// NewTx constructs a new transaction.
func NewTx(sender string, recipient string, amount float64) Tx {
	return Tx{
		Sender:    sender,
		Recipient: recipient,
		Amount:    amount,
	}
}

// NewRewardTx constructs the transaction that credits a miner.
func NewRewardTx(minerAddress string, reward float64) Tx {
	return NewTx(RewardSender, minerAddress, reward)
}

// Validate checks the sender and recipient are present and the amount
// is a finite positive number.
func (tx Tx) Validate() error {
	if err := validate.Check(tx); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidTransaction, err)
	}

	if math.IsInf(tx.Amount, 0) || math.IsNaN(tx.Amount) {
		return fmt.Errorf("%w: amount is not a finite number", ErrInvalidTransaction)
	}

	return nil
}

// IsValid is the boolean form of Validate.
func (tx Tx) IsValid() bool {
	return tx.Validate() == nil
}

// String implements the fmt.Stringer interface. This form is what gets
// hashed into a block.
func (tx Tx) String() string {
	return fmt.Sprintf("%s->%s:%s", tx.Sender, tx.Recipient, formatAmount(tx.Amount))
}

// =============================================================================

// formatAmount writes whole amounts without a fraction so 10 hashes as "10".
func formatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}
