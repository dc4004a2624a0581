package domain

import "fmt"

// Cents is a monetary amount in integer cents. All ledger arithmetic happens in
// cents so sums are exact; formatting to a currency string is a display concern.
type Cents int64

func (c Cents) IsPositive() bool { return c > 0 }

func (c Cents) String() string {
	sign := ""
	v := int64(c)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// MonthlyShare splits an annual amount into a per-month amount, rounding half up
// to the cent. The remainder is not carried; twelve monthly shares may differ
// from the annual amount by at most 6 cents.
func MonthlyShare(annual Cents) Cents {
	if annual <= 0 {
		return 0
	}
	return Cents((int64(annual) + 6) / 12)
}
