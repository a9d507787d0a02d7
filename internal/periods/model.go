// Package periods manages accounting period windows and their open →
// closed → finalized lifecycle.
package periods

// Status enumerates valid period states. Transitions are monotone:
// open → closed → finalized.
type Status string

const (
	StatusOpen      Status = "open"
	StatusClosed    Status = "closed"
	StatusFinalized Status = "finalized"
)

// Period is a posting window. Month is empty for the annual row; a date
// belongs to the finest covering period, so closing a month blocks posting
// for any date inside it.
type Period struct {
	Year      string
	Month     string
	StartDate string
	EndDate   string
	Status    Status
}

// Annual reports whether this is the year-level row.
func (p Period) Annual() bool {
	return p.Month == ""
}
