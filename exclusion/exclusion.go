// Package exclusion holds the private-input evaluation and the public
// commitment types for geographic exclusion proofs.
//
// The boundary is strict: Request carries both the private inputs (the
// address and the exclusion ranges) and the public inputs (numeric country
// codes and a timestamp); only Commitment ever leaves the evaluation
// boundary, and it is derivable purely from the public inputs plus the
// single boolean produced by Evaluate.
package exclusion

// Range is an inclusive interval of 32-bit addresses.
//
// Start > End is permitted; such a range matches nothing. Callers must not
// rely on ranges being normalized, merged or ordered.
type Range struct {
	Start uint32
	End   uint32
}

// Contains reports whether ip falls within the range, inclusive on both
// bounds.
func (r Range) Contains(ip uint32) bool {
	return ip >= r.Start && ip <= r.End
}

// Request is one proving run's worth of inputs.
//
// The field order here mirrors the positional order in which the proving
// capability consumes them: IP, Ranges, Countries, Timestamp. That order is
// part of the wire contract with the backend and must not change.
type Request struct {
	// private inputs
	IP     uint32
	Ranges []Range

	// public inputs
	Countries []uint16 // ISO 3166-1 numeric, caller order preserved
	Timestamp uint32   // unix seconds
}

// Commitment returns the public values for the request, evaluating the
// private inputs.
func (req *Request) Commitment() Commitment {
	return Commitment{
		IsExcluded: Evaluate(req.IP, req.Ranges),
		Timestamp:  req.Timestamp,
		Countries:  req.Countries,
	}
}

// Evaluate reports whether ip is clear of every range: true means the
// address is in none of them, false means it is inside at least one.
//
// Every range is inspected even after a match; the loop must not leak which
// range matched through early termination, only the aggregate boolean.
// Inverted ranges (Start > End) never match. The function is a pure function
// of its arguments so that any party can re-derive the result from the same
// inputs.
func Evaluate(ip uint32, ranges []Range) bool {
	isClear := true
	for _, r := range ranges {
		if r.Contains(ip) {
			isClear = false
		}
	}
	return isClear
}
