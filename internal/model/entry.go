package model

import "fmt"

// Operation is the kind of mutation recorded in the transaction log.
type Operation int

const (
	OpReserve Operation = iota + 1
	OpCancel
)

// Result is the recorded outcome of a logged transaction.
type Result int

const (
	Succeeded Result = iota + 1
	Failed
)

// Log tokens.  The legacy tokens are the ones written by the first version
// of the server and are still accepted when the log is replayed.
const (
	TokenReserve   = "reservation-request"
	TokenCancel    = "cancellation"
	TokenSucceeded = "succeeded"
	TokenFailed    = "impossible"

	legacyReserve   = "Demande"
	legacyCancel    = "Annulation"
	legacySucceeded = "succès"
)

func (o Operation) String() string {
	switch o {
	case OpReserve:
		return TokenReserve
	case OpCancel:
		return TokenCancel
	}
	return fmt.Sprintf("Operation(%d)", int(o))
}

func (r Result) String() string {
	switch r {
	case Succeeded:
		return TokenSucceeded
	case Failed:
		return TokenFailed
	}
	return fmt.Sprintf("Result(%d)", int(r))
}

// ParseOperation maps a log token to an Operation.
func ParseOperation(s string) (Operation, error) {
	switch s {
	case TokenReserve, legacyReserve:
		return OpReserve, nil
	case TokenCancel, legacyCancel:
		return OpCancel, nil
	}
	return 0, fmt.Errorf("unknown operation %q", s)
}

// ParseResult maps a log token to a Result.  Any word other than a success
// token is a failure, matching how the log has always been read.
func ParseResult(s string) Result {
	switch s {
	case TokenSucceeded, legacySucceeded:
		return Succeeded
	}
	return Failed
}

// Entry is one line of the transaction log: who asked for what on which
// flight, and whether it was granted.
type Entry struct {
	Ref    int
	Agency int
	Op     Operation
	Seats  int
	Result Result
}

// String renders the entry in the on-disk log format.
func (e Entry) String() string {
	return fmt.Sprintf("%d %d %s %d %s", e.Ref, e.Agency, e.Op, e.Seats, e.Result)
}
