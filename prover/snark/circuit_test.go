package snark

import (
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend"
	"github.com/consensys/gnark/test"
	"github.com/stretchr/testify/require"

	"github.com/zkgeo/zkgeo/exclusion"
	"github.com/zkgeo/zkgeo/prover"
)

var ovhRange = exclusion.Range{Start: 1534132224, End: 1534140415}

func request(ip uint32) *exclusion.Request {
	return &exclusion.Request{
		IP:        ip,
		Ranges:    []exclusion.Range{ovhRange},
		Countries: []uint16{250},
		Timestamp: 1700000000,
	}
}

func TestCircuitClearAddress(t *testing.T) {
	assert := test.NewAssert(t)
	assignment := NewAssignment(request(134744072)) // 8.8.8.8, outside the range
	require.Equal(t, 1, assignment.IsExcluded)

	assert.CheckCircuit(
		NewCircuit(1, 1),
		test.WithValidAssignment(assignment),
		test.WithCurves(ecc.BN254),
		test.WithBackends(backend.GROTH16, backend.PLONK),
	)
}

func TestCircuitExcludedAddress(t *testing.T) {
	assert := test.NewAssert(t)
	assignment := NewAssignment(request(1534132225)) // 91.121.0.1, inside
	require.Equal(t, 0, assignment.IsExcluded)

	assert.CheckCircuit(
		NewCircuit(1, 1),
		test.WithValidAssignment(assignment),
		test.WithCurves(ecc.BN254),
		test.WithBackends(backend.GROTH16, backend.PLONK),
	)
}

// A witness claiming the opposite verdict must not solve the circuit.
func TestCircuitRejectsFlippedVerdict(t *testing.T) {
	assert := test.NewAssert(t)

	lying := NewAssignment(request(1534132225))
	lying.IsExcluded = 1

	assert.CheckCircuit(
		NewCircuit(1, 1),
		test.WithInvalidAssignment(lying),
		test.WithCurves(ecc.BN254),
		test.WithBackends(backend.GROTH16, backend.PLONK),
	)
}

func TestCircuitBoundaryAddresses(t *testing.T) {
	assert := test.NewAssert(t)
	for _, ip := range []uint32{ovhRange.Start, ovhRange.End} {
		assignment := NewAssignment(request(ip))
		require.Equal(t, 0, assignment.IsExcluded)
		assert.CheckCircuit(
			NewCircuit(1, 1),
			test.WithValidAssignment(assignment),
			test.WithCurves(ecc.BN254),
			test.WithBackends(backend.GROTH16),
		)
	}
}

func TestCircuitInvertedRangeIsInert(t *testing.T) {
	assert := test.NewAssert(t)
	req := &exclusion.Request{
		IP:        500,
		Ranges:    []exclusion.Range{{Start: 1000, End: 10}},
		Countries: []uint16{250},
		Timestamp: 1,
	}
	assignment := NewAssignment(req)
	require.Equal(t, 1, assignment.IsExcluded)

	assert.CheckCircuit(
		NewCircuit(1, 1),
		test.WithValidAssignment(assignment),
		test.WithCurves(ecc.BN254),
		test.WithBackends(backend.GROTH16),
	)
}

func TestCircuitNoRanges(t *testing.T) {
	assert := test.NewAssert(t)
	req := &exclusion.Request{
		IP:        42,
		Countries: []uint16{250, 840},
		Timestamp: 7,
	}
	assignment := NewAssignment(req)
	require.Equal(t, 1, assignment.IsExcluded)

	assert.CheckCircuit(
		NewCircuit(0, 2),
		test.WithValidAssignment(assignment),
		test.WithCurves(ecc.BN254),
		test.WithBackends(backend.GROTH16),
	)
}

func TestBackendExecute(t *testing.T) {
	b := NewBackend(prover.Groth16)
	req := request(1534132225)

	exec, err := b.Execute(req)
	require.NoError(t, err)
	require.False(t, exec.Commitment.IsExcluded)
	require.Equal(t, uint32(1700000000), exec.Commitment.Timestamp)
	require.Equal(t, []uint16{250}, exec.Commitment.Countries)
	require.Greater(t, exec.Report.NbConstraints, 0)
}

func TestBackendProveAndVerifyGroth16(t *testing.T) {
	b := NewBackend(prover.Groth16)
	req := request(134744072)

	proof, err := b.Prove(req)
	require.NoError(t, err)
	require.NoError(t, b.Verify(proof))

	require.True(t, proof.Commitment().IsExcluded)
	require.NotEmpty(t, proof.Bytes())
	require.Regexp(t, "^0x[0-9a-f]{64}$", proof.VerifyingKey())

	// committed bytes must match an independent recomputation from public knowledge
	want, err := exclusion.Commitment{
		IsExcluded: true,
		Timestamp:  req.Timestamp,
		Countries:  req.Countries,
	}.Encode()
	require.NoError(t, err)
	require.Equal(t, want, proof.PublicValues())
}

func TestBackendProveAndVerifyPlonk(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping PLONK setup in short mode")
	}
	b := NewBackend(prover.Plonk)
	req := request(1534132225)

	proof, err := b.Prove(req)
	require.NoError(t, err)
	require.NoError(t, b.Verify(proof))
	require.False(t, proof.Commitment().IsExcluded)
}

func TestBackendVerifyRejectsForeignProof(t *testing.T) {
	b := NewBackend(prover.Groth16)
	require.Error(t, b.Verify(fakeProof{}))
}

type fakeProof struct{}

func (fakeProof) Commitment() exclusion.Commitment { return exclusion.Commitment{} }
func (fakeProof) PublicValues() []byte             { return nil }
func (fakeProof) Bytes() []byte                    { return nil }
func (fakeProof) VerifyingKey() string             { return "" }
