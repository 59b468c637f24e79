package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zkgeo/zkgeo/countries"
	"github.com/zkgeo/zkgeo/exclusion"
	"github.com/zkgeo/zkgeo/geodb"
	"github.com/zkgeo/zkgeo/prover"
)

// fakeCapability mimics the proving environment: it derives the commitment
// from the request the same way the real backend would, with optional
// tampering to exercise the consistency checks.
type fakeCapability struct {
	flipVerdict  bool
	tamperBytes  bool
	verifyCalled int
	verifyErr    error
}

func (f *fakeCapability) commitment(req *exclusion.Request) exclusion.Commitment {
	c := req.Commitment()
	if f.flipVerdict {
		c.IsExcluded = !c.IsExcluded
	}
	return c
}

func (f *fakeCapability) Execute(req *exclusion.Request) (*prover.Execution, error) {
	return &prover.Execution{
		Commitment: f.commitment(req),
		Report:     prover.Report{NbConstraints: 1234, NbSecret: 3, NbPublic: 3},
	}, nil
}

func (f *fakeCapability) Prove(req *exclusion.Request) (prover.Proof, error) {
	c := f.commitment(req)
	b, err := c.Encode()
	if err != nil {
		return nil, err
	}
	if f.tamperBytes {
		b = append(b, 0)
	}
	return &fakeProof{commitment: c, publicValues: b}, nil
}

func (f *fakeCapability) Verify(p prover.Proof) error {
	f.verifyCalled++
	return f.verifyErr
}

type fakeProof struct {
	commitment   exclusion.Commitment
	publicValues []byte
}

func (p *fakeProof) Commitment() exclusion.Commitment { return p.commitment }
func (p *fakeProof) PublicValues() []byte             { return p.publicValues }
func (p *fakeProof) Bytes() []byte                    { return []byte{0xde, 0xad, 0xbe, 0xef} }
func (p *fakeProof) VerifyingKey() string             { return "0x" + strings.Repeat("ab", 32) }

const refTable = `name,alpha-2,alpha-3,country-code
France,FR,FRA,250
United States of America,US,USA,840
`

const dataset = "1534132224,1534140415,FR\n134744064,134744319,US\n"

func newOrchestrator(t *testing.T, capability prover.Capability) *Orchestrator {
	t.Helper()

	table, err := countries.Read(strings.NewReader(refTable))
	require.NoError(t, err)

	dir := t.TempDir()
	cachePath := filepath.Join(dir, "geoip.csv")
	require.NoError(t, os.WriteFile(cachePath, []byte(dataset), 0o644))

	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	return &Orchestrator{
		Countries: table,
		Geo: geodb.New(geodb.Config{
			CachePath: cachePath,
			URL:       "http://127.0.0.1:0/unreachable",
			Now:       func() time.Time { return now },
		}),
		Capability: capability,
		System:     prover.Groth16,
		FixtureDir: filepath.Join(dir, "fixtures"),
		Now:        func() time.Time { return now },
	}
}

func TestBuildRequest(t *testing.T) {
	o := newOrchestrator(t, &fakeCapability{})

	req, err := o.BuildRequest("91.121.0.1", "fr", false)
	require.NoError(t, err)
	require.Equal(t, uint32(1534132225), req.IP)
	require.Equal(t, []exclusion.Range{{Start: 1534132224, End: 1534140415}}, req.Ranges)
	require.Equal(t, []uint16{250}, req.Countries)
	require.Equal(t, uint32(o.Now().Unix()), req.Timestamp)
}

func TestBuildRequestInputErrors(t *testing.T) {
	o := newOrchestrator(t, &fakeCapability{})

	_, err := o.BuildRequest("not-an-ip", "FR", false)
	require.Error(t, err)

	_, err = o.BuildRequest("8.8.8.8", "ZZ", false)
	require.ErrorIs(t, err, countries.ErrUnknownCountry)

	_, err = o.BuildRequest("8.8.8.8", " , ", false)
	require.ErrorIs(t, err, countries.ErrEmptyCountrySet)
}

func TestExecuteConsistency(t *testing.T) {
	o := newOrchestrator(t, &fakeCapability{})

	req, err := o.BuildRequest("8.8.8.8", "FR", false)
	require.NoError(t, err)

	exec, err := o.Execute(req)
	require.NoError(t, err)
	require.True(t, exec.Commitment.IsExcluded) // 8.8.8.8 is clear of the FR range
}

func TestExecuteConsistencyMismatchIsFatal(t *testing.T) {
	o := newOrchestrator(t, &fakeCapability{flipVerdict: true})

	req, err := o.BuildRequest("8.8.8.8", "FR", false)
	require.NoError(t, err)

	_, err = o.Execute(req)
	require.ErrorIs(t, err, ErrConsistency)
}

func TestProvePackagesArtifact(t *testing.T) {
	o := newOrchestrator(t, &fakeCapability{})

	req, err := o.BuildRequest("91.121.0.1", "FR", false)
	require.NoError(t, err)

	res, err := o.Prove(req)
	require.NoError(t, err)
	require.False(t, res.Artifact.IsExcluded) // inside the FR range
	require.Equal(t, []uint16{250}, res.Artifact.ExcludedCountries)
	require.Equal(t, req.Timestamp, res.Artifact.Timestamp)
	require.True(t, strings.HasPrefix(res.Artifact.PublicValues, "0x"))
	require.True(t, strings.HasPrefix(res.Artifact.Proof, "0x"))
	require.Equal(t, filepath.Join(o.FixtureDir, "groth16-fixture.json"), res.Path)

	// the persisted fixture round-trips
	loaded, err := prover.ReadArtifact(res.Path)
	require.NoError(t, err)
	require.Equal(t, res.Artifact, loaded)
	require.True(t, loaded.Commitment().Equal(req.Commitment()))
}

func TestProveConsistencyMismatchIsFatal(t *testing.T) {
	o := newOrchestrator(t, &fakeCapability{flipVerdict: true})

	req, err := o.BuildRequest("8.8.8.8", "FR", false)
	require.NoError(t, err)

	_, err = o.Prove(req)
	require.ErrorIs(t, err, ErrConsistency)
}

func TestProveRejectsNonCanonicalBytes(t *testing.T) {
	o := newOrchestrator(t, &fakeCapability{tamperBytes: true})

	req, err := o.BuildRequest("8.8.8.8", "FR", false)
	require.NoError(t, err)

	_, err = o.Prove(req)
	require.Error(t, err)
}

func TestVerifyDelegatesToCapability(t *testing.T) {
	backend := &fakeCapability{}
	o := newOrchestrator(t, backend)

	req, err := o.BuildRequest("8.8.8.8", "FR", false)
	require.NoError(t, err)
	res, err := o.Prove(req)
	require.NoError(t, err)

	require.NoError(t, o.Verify(res.Proof))
	require.Equal(t, 1, backend.verifyCalled)
}
