package model

// Flight is one row of the flight catalog.  Ref is the unique flight
// reference used by agencies on the wire; Seats is the number of seats still
// available and never goes negative; Price is the per-seat price in whole
// currency units.
type Flight struct {
	Ref         int    // catalog column 1
	Destination string // catalog column 2, a single whitespace-free token
	Seats       int    // catalog column 3
	Price       int    // catalog column 4
}
