// Package prover defines the boundary to the proving capability.
//
// The orchestration pipeline only ever talks to a Capability; the concrete
// SNARK realization lives in prover/snark, and tests substitute a fake. The
// capability receives a read-only Request and hands back opaque results the
// caller validates but never mutates.
package prover

import (
	"fmt"
	"strings"

	"github.com/zkgeo/zkgeo/exclusion"
)

// System selects which proof system backs the capability. The committed
// public values and the orchestration logic are identical across systems;
// the choice only affects which backend is invoked.
type System uint8

const (
	Groth16 System = iota
	Plonk
)

func (s System) String() string {
	switch s {
	case Groth16:
		return "groth16"
	case Plonk:
		return "plonk"
	default:
		return "unknown"
	}
}

// ParseSystem parses a --system flag value.
func ParseSystem(s string) (System, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "groth16":
		return Groth16, nil
	case "plonk":
		return Plonk, nil
	default:
		return 0, fmt.Errorf("unknown proof system %q (want plonk or groth16)", s)
	}
}

// Report summarizes the resources an execution-only run consumed. For a
// SNARK backend the constraint count plays the role a cycle count plays for
// a zkVM.
type Report struct {
	NbConstraints int
	NbSecret      int
	NbPublic      int
}

// Execution is the outcome of an execution-only run: the public values the
// environment decoded, plus the resource report. No proof is produced.
type Execution struct {
	Commitment exclusion.Commitment
	Report     Report
}

// Proof is a generated proof together with its committed public values.
// Implementations keep whatever backend state Verify needs.
type Proof interface {
	// Commitment returns the public values decoded from the committed
	// bytes.
	Commitment() exclusion.Commitment
	// PublicValues returns the canonical encoding of the committed public
	// values.
	PublicValues() []byte
	// Bytes returns the serialized proof.
	Bytes() []byte
	// VerifyingKey returns the 0x-hex identifier of the verification key
	// the proof was generated against.
	VerifyingKey() string
}

// Capability is the external proving capability: execute a program on
// structured inputs, prove it, or verify a previously generated proof.
type Capability interface {
	Execute(req *exclusion.Request) (*Execution, error)
	Prove(req *exclusion.Request) (Proof, error)
	Verify(p Proof) error
}
