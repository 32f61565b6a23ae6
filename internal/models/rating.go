package models

// Rate is the fixed scale a user may rate a book with.
type Rate string

const (
	RatePoor        Rate = "Poor"
	RateOkay        Rate = "Okay"
	RateGood        Rate = "Good"
	RateExcellent   Rate = "Excellent"
	RateOutstanding Rate = "Outstanding"
)

// Rates lists the scale from lowest to highest.
var Rates = []Rate{RatePoor, RateOkay, RateGood, RateExcellent, RateOutstanding}

// Valid reports whether r is one of the known rates.
func (r Rate) Valid() bool {
	for _, v := range Rates {
		if r == v {
			return true
		}
	}
	return false
}

// Rating is unique per (user, book); rating again replaces the value.
type Rating struct {
	ID       int64  `json:"id" db:"id"`
	UserID   int64  `json:"user_id" db:"user_id"`
	BookID   int64  `json:"book_id" db:"book_id"`
	Rate     Rate   `json:"rate" db:"rate"`
	Username string `json:"username,omitempty" db:"username"`
}
