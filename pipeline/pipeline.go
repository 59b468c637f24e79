// Package pipeline drives a proving run end to end: input assembly,
// execution or proof generation through the proving capability, consistency
// validation and artifact packaging.
package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/zkgeo/zkgeo/countries"
	"github.com/zkgeo/zkgeo/exclusion"
	"github.com/zkgeo/zkgeo/geodb"
	"github.com/zkgeo/zkgeo/ipv4"
	"github.com/zkgeo/zkgeo/logger"
	"github.com/zkgeo/zkgeo/prover"
)

// ErrConsistency signals that the proving environment's decoded result
// disagrees with the orchestrator's own recomputation. That is an
// orchestration or environment bug, never a private-data problem, and the
// run must halt before any proof is produced or trusted.
var ErrConsistency = errors.New("proving environment result does not match local recomputation")

// Orchestrator owns the lifecycle of requests and artifacts for one run.
type Orchestrator struct {
	Countries  countries.Table
	Geo        *geodb.Source
	Capability prover.Capability
	System     prover.System
	FixtureDir string

	// Now is the timestamp source; defaults to time.Now.
	Now func() time.Time
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// BuildRequest assembles the private and public inputs for one run: the
// parsed address and its exclusion ranges on the private side, the resolved
// numeric country codes and the current timestamp on the public side. Inputs
// are later consumed positionally by the capability in the order ip, ranges,
// countries, timestamp.
func (o *Orchestrator) BuildRequest(ipText, excludeList string, refresh bool) (*exclusion.Request, error) {
	log := logger.With("pipeline")

	ip, err := ipv4.Parse(ipText)
	if err != nil {
		return nil, fmt.Errorf("input: %w", err)
	}

	alpha2, numeric, err := o.Countries.ResolveList(excludeList)
	if err != nil {
		return nil, fmt.Errorf("input: %w", err)
	}

	if err := o.Geo.EnsureFresh(refresh); err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}
	ranges, err := o.Geo.RangesFor(alpha2)
	if err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}

	req := &exclusion.Request{
		IP:        ip,
		Ranges:    ranges,
		Countries: numeric,
		Timestamp: uint32(o.now().Unix()),
	}
	log.Info().
		Str("ip", ipText).
		Strs("countries", alpha2).
		Int("ranges", len(ranges)).
		Uint32("timestamp", req.Timestamp).
		Msg("assembled proving request")
	return req, nil
}

// Execute runs the capability without proof generation, then recomputes the
// evaluation over the same private inputs and fails on any mismatch with the
// decoded public values.
func (o *Orchestrator) Execute(req *exclusion.Request) (*prover.Execution, error) {
	exec, err := o.Capability.Execute(req)
	if err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}

	if want := req.Commitment(); !exec.Commitment.Equal(want) {
		return nil, fmt.Errorf("%w: decoded %+v, recomputed %+v", ErrConsistency, exec.Commitment, want)
	}

	log := logger.With("pipeline")
	log.Info().
		Bool("is_excluded", exec.Commitment.IsExcluded).
		Int("constraints", exec.Report.NbConstraints).
		Msg("execution verified against local recomputation")
	return exec, nil
}

// ProveResult bundles the outcome of a proving run: the persisted artifact,
// where it was written, and the proof handle for optional verification.
type ProveResult struct {
	Artifact *prover.Artifact
	Path     string
	Proof    prover.Proof
}

// Prove generates a proof, decodes the committed public values through the
// commitment codec, validates them against the request's public inputs and
// packages everything into a persisted artifact. Cryptographic verification
// is not performed here; see Verify.
func (o *Orchestrator) Prove(req *exclusion.Request) (*ProveResult, error) {
	proof, err := o.Capability.Prove(req)
	if err != nil {
		return nil, fmt.Errorf("prove: %w", err)
	}

	decoded, err := exclusion.DecodeCommitment(proof.PublicValues())
	if err != nil {
		return nil, fmt.Errorf("prove: %w", err)
	}
	want := req.Commitment()
	if !decoded.Equal(want) {
		return nil, fmt.Errorf("%w: committed %+v, recomputed %+v", ErrConsistency, decoded, want)
	}

	// the artifact's public values must be the committed bytes themselves,
	// not a re-encoding
	wantBytes, err := want.Encode()
	if err != nil {
		return nil, fmt.Errorf("prove: %w", err)
	}
	if !bytes.Equal(wantBytes, proof.PublicValues()) {
		return nil, fmt.Errorf("%w: committed bytes differ from canonical encoding", ErrConsistency)
	}

	artifact := prover.NewArtifact(proof)
	path, err := artifact.Write(o.FixtureDir, o.System)
	if err != nil {
		return nil, fmt.Errorf("artifact: %w", err)
	}

	log := logger.With("pipeline")
	log.Info().
		Bool("is_excluded", artifact.IsExcluded).
		Str("vkey", artifact.Vkey).
		Str("fixture", path).
		Msg("proof generated and packaged")
	return &ProveResult{Artifact: artifact, Path: path, Proof: proof}, nil
}

// Verify asks the capability to check a proof's cryptographic validity. It
// is a separate call because verification is opt-in after a proving run.
func (o *Orchestrator) Verify(p prover.Proof) error {
	if err := o.Capability.Verify(p); err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	log := logger.With("pipeline")
	log.Info().Msg("proof verified")
	return nil
}
