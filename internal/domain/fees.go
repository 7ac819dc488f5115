package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// FeeSchedule computes the per-side commission charged on an execution.
// The same rate applies to buyer and seller; the default is 1% of the
// gross amount.
type FeeSchedule struct {
	rate decimal.Decimal
}

// DefaultFeeRate is the rate applied when none is configured.
const DefaultFeeRate = "0.01"

// NewFeeSchedule parses a decimal rate string such as "0.01".
// The rate must be in [0, 1).
func NewFeeSchedule(rate string) (FeeSchedule, error) {
	d, err := decimal.NewFromString(rate)
	if err != nil {
		return FeeSchedule{}, fmt.Errorf("invalid fee rate %q: %w", rate, err)
	}
	if d.IsNegative() || d.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return FeeSchedule{}, fmt.Errorf("fee rate %q must be in [0, 1)", rate)
	}
	return FeeSchedule{rate: d}, nil
}

// DefaultFeeSchedule returns the 1% schedule.
func DefaultFeeSchedule() FeeSchedule {
	fs, _ := NewFeeSchedule(DefaultFeeRate)
	return fs
}

// Fee returns the commission in cents on a gross amount in cents,
// rounded half-up to the nearest cent.
func (f FeeSchedule) Fee(grossCents int64) int64 {
	return decimal.NewFromInt(grossCents).Mul(f.rate).Round(0).IntPart()
}

// Rate returns the schedule's rate as a string, for logging.
func (f FeeSchedule) Rate() string {
	return f.rate.String()
}
