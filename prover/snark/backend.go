package snark

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/plonk"
	"github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/consensys/gnark/frontend/cs/scs"
	"github.com/consensys/gnark/test/unsafekzg"

	"github.com/zkgeo/zkgeo/exclusion"
	"github.com/zkgeo/zkgeo/logger"
	"github.com/zkgeo/zkgeo/prover"
)

// Backend is the gnark-backed proving capability. Each request compiles its
// own circuit, since the circuit shape follows the number of ranges and
// country codes.
type Backend struct {
	system prover.System
}

// NewBackend returns a capability backed by the given proof system.
func NewBackend(system prover.System) *Backend {
	return &Backend{system: system}
}

var _ prover.Capability = (*Backend)(nil)

func (b *Backend) compile(req *exclusion.Request) (constraint.ConstraintSystem, error) {
	var builder frontend.NewBuilder
	switch b.system {
	case prover.Groth16:
		builder = r1cs.NewBuilder
	case prover.Plonk:
		builder = scs.NewBuilder
	default:
		return nil, fmt.Errorf("unsupported proof system %q", b.system)
	}
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), builder, NewCircuit(len(req.Ranges), len(req.Countries)))
	if err != nil {
		return nil, fmt.Errorf("compiling circuit: %w", err)
	}
	return ccs, nil
}

func buildWitnesses(req *exclusion.Request) (full, public witness.Witness, err error) {
	full, err = frontend.NewWitness(NewAssignment(req), ecc.BN254.ScalarField())
	if err != nil {
		return nil, nil, fmt.Errorf("building witness: %w", err)
	}
	public, err = full.Public()
	if err != nil {
		return nil, nil, fmt.Errorf("extracting public witness: %w", err)
	}
	return full, public, nil
}

// Execute solves the circuit without generating a proof and returns the
// public values decoded from the solved witness, plus the constraint counts
// as the resource report.
func (b *Backend) Execute(req *exclusion.Request) (*prover.Execution, error) {
	ccs, err := b.compile(req)
	if err != nil {
		return nil, err
	}
	full, public, err := buildWitnesses(req)
	if err != nil {
		return nil, err
	}
	if err := ccs.IsSolved(full); err != nil {
		return nil, fmt.Errorf("solving circuit: %w", err)
	}
	commitment, err := decodePublicWitness(public, len(req.Countries))
	if err != nil {
		return nil, err
	}
	return &prover.Execution{
		Commitment: commitment,
		Report: prover.Report{
			NbConstraints: ccs.GetNbConstraints(),
			NbSecret:      ccs.GetNbSecretVariables(),
			NbPublic:      ccs.GetNbPublicVariables(),
		},
	}, nil
}

// Prove compiles, sets up and proves the request, returning the proof with
// its committed public values and verification-key identifier.
func (b *Backend) Prove(req *exclusion.Request) (prover.Proof, error) {
	log := logger.With("snark")

	ccs, err := b.compile(req)
	if err != nil {
		return nil, err
	}
	full, public, err := buildWitnesses(req)
	if err != nil {
		return nil, err
	}
	log.Info().
		Stringer("system", b.system).
		Int("constraints", ccs.GetNbConstraints()).
		Msg("generating proof")

	var (
		proofBytes []byte
		vkID       string
		verify     func() error
	)
	switch b.system {
	case prover.Groth16:
		pk, vk, err := groth16.Setup(ccs)
		if err != nil {
			return nil, fmt.Errorf("groth16 setup: %w", err)
		}
		proof, err := groth16.Prove(ccs, pk, full)
		if err != nil {
			return nil, fmt.Errorf("groth16 prove: %w", err)
		}
		if proofBytes, err = serialize(proof); err != nil {
			return nil, err
		}
		if vkID, err = keyID(vk); err != nil {
			return nil, err
		}
		verify = func() error { return groth16.Verify(proof, vk, public) }

	case prover.Plonk:
		srs, srsLagrange, err := unsafekzg.NewSRS(ccs)
		if err != nil {
			return nil, fmt.Errorf("building KZG SRS: %w", err)
		}
		pk, vk, err := plonk.Setup(ccs, srs, srsLagrange)
		if err != nil {
			return nil, fmt.Errorf("plonk setup: %w", err)
		}
		proof, err := plonk.Prove(ccs, pk, full)
		if err != nil {
			return nil, fmt.Errorf("plonk prove: %w", err)
		}
		if proofBytes, err = serialize(proof); err != nil {
			return nil, err
		}
		if vkID, err = keyID(vk); err != nil {
			return nil, err
		}
		verify = func() error { return plonk.Verify(proof, vk, public) }

	default:
		return nil, fmt.Errorf("unsupported proof system %q", b.system)
	}

	commitment, err := decodePublicWitness(public, len(req.Countries))
	if err != nil {
		return nil, err
	}
	publicValues, err := commitment.Encode()
	if err != nil {
		return nil, err
	}
	return &snarkProof{
		commitment:   commitment,
		publicValues: publicValues,
		proofBytes:   proofBytes,
		vkID:         vkID,
		verify:       verify,
	}, nil
}

// Verify checks a proof generated by this backend against its verification
// key.
func (b *Backend) Verify(p prover.Proof) error {
	sp, ok := p.(*snarkProof)
	if !ok {
		return fmt.Errorf("proof of type %T was not produced by this backend", p)
	}
	if err := sp.verify(); err != nil {
		return fmt.Errorf("proof verification: %w", err)
	}
	return nil
}

// VerifyingKeyID runs a setup for the given circuit shape and returns the
// resulting verification-key identifier.
func (b *Backend) VerifyingKeyID(nbRanges, nbCountries int) (string, error) {
	req := &exclusion.Request{
		Ranges:    make([]exclusion.Range, nbRanges),
		Countries: make([]uint16, nbCountries),
	}
	ccs, err := b.compile(req)
	if err != nil {
		return "", err
	}
	switch b.system {
	case prover.Groth16:
		_, vk, err := groth16.Setup(ccs)
		if err != nil {
			return "", fmt.Errorf("groth16 setup: %w", err)
		}
		return keyID(vk)
	case prover.Plonk:
		srs, srsLagrange, err := unsafekzg.NewSRS(ccs)
		if err != nil {
			return "", fmt.Errorf("building KZG SRS: %w", err)
		}
		_, vk, err := plonk.Setup(ccs, srs, srsLagrange)
		if err != nil {
			return "", fmt.Errorf("plonk setup: %w", err)
		}
		return keyID(vk)
	default:
		return "", fmt.Errorf("unsupported proof system %q", b.system)
	}
}

type snarkProof struct {
	commitment   exclusion.Commitment
	publicValues []byte
	proofBytes   []byte
	vkID         string
	verify       func() error
}

func (p *snarkProof) Commitment() exclusion.Commitment { return p.commitment }
func (p *snarkProof) PublicValues() []byte             { return p.publicValues }
func (p *snarkProof) Bytes() []byte                    { return p.proofBytes }
func (p *snarkProof) VerifyingKey() string             { return p.vkID }

// decodePublicWitness reads the public witness vector back into a
// Commitment. The vector layout follows the circuit's public variable
// declaration order: verdict, timestamp, then the country codes.
func decodePublicWitness(public witness.Witness, nbCountries int) (exclusion.Commitment, error) {
	vec, ok := public.Vector().(fr.Vector)
	if !ok {
		return exclusion.Commitment{}, fmt.Errorf("unexpected public witness vector type %T", public.Vector())
	}
	if len(vec) != 2+nbCountries {
		return exclusion.Commitment{}, fmt.Errorf("public witness has %d values, expected %d", len(vec), 2+nbCountries)
	}
	var v big.Int
	c := exclusion.Commitment{
		IsExcluded: vec[0].BigInt(&v).Sign() != 0,
		Countries:  make([]uint16, nbCountries),
	}
	c.Timestamp = uint32(vec[1].BigInt(&v).Uint64())
	for i := 0; i < nbCountries; i++ {
		c.Countries[i] = uint16(vec[2+i].BigInt(&v).Uint64())
	}
	return c, nil
}

func serialize(wt io.WriterTo) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("serializing proof: %w", err)
	}
	return buf.Bytes(), nil
}

// keyID is the stable identifier packaged with artifacts: the 0x-hex SHA-256
// of the serialized verification key.
func keyID(vk io.WriterTo) (string, error) {
	var buf bytes.Buffer
	if _, err := vk.WriteTo(&buf); err != nil {
		return "", fmt.Errorf("serializing verification key: %w", err)
	}
	sum := sha256.Sum256(buf.Bytes())
	return "0x" + hex.EncodeToString(sum[:]), nil
}
