// Package snark realizes the proving capability with gnark over BN254,
// selectable between the Groth16 and PLONK backends.
package snark

import (
	"math/big"

	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/math/cmp"
	"github.com/consensys/gnark/std/rangecheck"

	"github.com/zkgeo/zkgeo/exclusion"
)

// Circuit proves that a private address is clear of (or caught by) a private
// set of inclusive exclusion ranges, committing only the verdict, the
// timestamp and the country code list.
//
// Public variables are consumed positionally by verifiers, so their
// declaration order is part of the wire contract: IsExcluded, Timestamp,
// then Countries in caller order. The slice lengths fix the circuit shape at
// compile time.
type Circuit struct {
	// public inputs
	IsExcluded frontend.Variable   `gnark:",public"`
	Timestamp  frontend.Variable   `gnark:",public"`
	Countries  []frontend.Variable `gnark:",public"`

	// private inputs
	IP     frontend.Variable
	Starts []frontend.Variable
	Ends   []frontend.Variable
}

// Define declares the constraints. Every range is inspected and folded into
// the verdict; there is no data-dependent control flow, so nothing about
// which range matched can leak into the proof.
func (c *Circuit) Define(api frontend.API) error {
	rc := rangecheck.New(api)
	rc.Check(c.IP, 32)
	rc.Check(c.Timestamp, 32)
	for i := range c.Starts {
		rc.Check(c.Starts[i], 32)
		rc.Check(c.Ends[i], 32)
	}
	for i := range c.Countries {
		rc.Check(c.Countries[i], 16)
	}

	// all compared values fit 32 bits, so |a-b| <= 2^32-1
	bound := new(big.Int).SetUint64(1<<32 - 1)
	comparator := cmp.NewBoundedComparator(api, bound, false)

	isClear := frontend.Variable(1)
	for i := range c.Starts {
		afterStart := comparator.IsLessEq(c.Starts[i], c.IP)
		beforeEnd := comparator.IsLessEq(c.IP, c.Ends[i])
		// inverted ranges satisfy neither side at once and stay inert
		inRange := api.Mul(afterStart, beforeEnd)
		isClear = api.Mul(isClear, api.Sub(1, inRange))
	}

	api.AssertIsEqual(c.IsExcluded, isClear)
	return nil
}

// NewCircuit returns a circuit shell sized for the given input counts,
// suitable for compilation.
func NewCircuit(nbRanges, nbCountries int) *Circuit {
	return &Circuit{
		Countries: make([]frontend.Variable, nbCountries),
		Starts:    make([]frontend.Variable, nbRanges),
		Ends:      make([]frontend.Variable, nbRanges),
	}
}

// NewAssignment builds the witness for a request. The committed verdict is
// produced by the same Evaluate the orchestrator uses for its off-circuit
// recomputation, keeping the two derivations byte-identical.
func NewAssignment(req *exclusion.Request) *Circuit {
	a := NewCircuit(len(req.Ranges), len(req.Countries))
	a.IP = req.IP
	a.Timestamp = req.Timestamp
	for i, r := range req.Ranges {
		a.Starts[i] = r.Start
		a.Ends[i] = r.End
	}
	for i, code := range req.Countries {
		a.Countries[i] = code
	}
	if exclusion.Evaluate(req.IP, req.Ranges) {
		a.IsExcluded = 1
	} else {
		a.IsExcluded = 0
	}
	return a
}
