package exclusion

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Commitment is the public output of a proving run. It is the only
// information released outside the private computation: the boolean verdict,
// the timestamp the run was anchored to, and the country codes the caller
// asked about, in caller order, duplicates preserved.
type Commitment struct {
	IsExcluded bool
	Timestamp  uint32
	Countries  []uint16
}

// commitmentArgs describes the canonical wire layout of a Commitment: the
// Solidity ABI tuple (bool, uint32, uint16[]). The proving environment and
// any external verifier (an on-chain contract included) must produce and
// consume these bytes identically, so the encoding is fixed here once and
// reused everywhere.
var commitmentArgs abi.Arguments

func init() {
	boolT, err := abi.NewType("bool", "", nil)
	if err != nil {
		panic(err)
	}
	uint32T, err := abi.NewType("uint32", "", nil)
	if err != nil {
		panic(err)
	}
	uint16SliceT, err := abi.NewType("uint16[]", "", nil)
	if err != nil {
		panic(err)
	}
	commitmentArgs = abi.Arguments{
		{Name: "isExcluded", Type: boolT},
		{Name: "timestamp", Type: uint32T},
		{Name: "excludedCountries", Type: uint16SliceT},
	}
}

// Encode serializes the commitment into its canonical ABI byte layout.
func (c Commitment) Encode() ([]byte, error) {
	countries := c.Countries
	if countries == nil {
		countries = []uint16{}
	}
	b, err := commitmentArgs.Pack(c.IsExcluded, c.Timestamp, countries)
	if err != nil {
		return nil, fmt.Errorf("encoding public values: %w", err)
	}
	return b, nil
}

// DecodeCommitment is the inverse of Encode.
func DecodeCommitment(b []byte) (Commitment, error) {
	vals, err := commitmentArgs.Unpack(b)
	if err != nil {
		return Commitment{}, fmt.Errorf("decoding public values: %w", err)
	}
	isExcluded, ok := vals[0].(bool)
	if !ok {
		return Commitment{}, fmt.Errorf("decoding public values: unexpected type %T for isExcluded", vals[0])
	}
	timestamp, ok := vals[1].(uint32)
	if !ok {
		return Commitment{}, fmt.Errorf("decoding public values: unexpected type %T for timestamp", vals[1])
	}
	countries, ok := vals[2].([]uint16)
	if !ok {
		return Commitment{}, fmt.Errorf("decoding public values: unexpected type %T for excludedCountries", vals[2])
	}
	return Commitment{
		IsExcluded: isExcluded,
		Timestamp:  timestamp,
		Countries:  countries,
	}, nil
}

// Equal reports whether two commitments carry the same public values. A nil
// and an empty country list compare equal, matching their identical wire
// form.
func (c Commitment) Equal(other Commitment) bool {
	if c.IsExcluded != other.IsExcluded || c.Timestamp != other.Timestamp {
		return false
	}
	if len(c.Countries) != len(other.Countries) {
		return false
	}
	for i := range c.Countries {
		if c.Countries[i] != other.Countries[i] {
			return false
		}
	}
	return true
}
