// Package countries resolves alpha-2 country codes to their ISO 3166-1
// numeric form using a bundled reference table.
package countries

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

var (
	// ErrUnknownCountry is returned when a code is absent from the table.
	ErrUnknownCountry = errors.New("unknown country code")
	// ErrEmptyCountrySet is returned when no valid codes remain after
	// trimming blanks.
	ErrEmptyCountrySet = errors.New("no valid country codes provided")
)

// Table maps uppercase alpha-2 codes to ISO 3166-1 numeric codes. It is
// loaded once per run and not mutated afterwards.
type Table map[string]uint16

// Load reads a comma-delimited reference table with a header row. Only the
// alpha-2 code (column 2) and the numeric code (column 4) are consumed;
// rows that are too short or carry a non-numeric code column are skipped,
// the table being trusted, bundled data rather than operator input.
func Load(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening country reference table: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read is Load for an already-open reader.
func Read(r io.Reader) (Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	table := make(Table)
	for i := 0; ; i++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading country reference table: %w", err)
		}
		if i == 0 {
			continue // header
		}
		if len(record) < 4 {
			continue
		}
		numeric, err := strconv.ParseUint(strings.TrimSpace(record[3]), 10, 16)
		if err != nil {
			continue
		}
		alpha2 := strings.ToUpper(strings.TrimSpace(record[1]))
		table[alpha2] = uint16(numeric)
	}
	if len(table) == 0 {
		return nil, errors.New("country reference table is empty")
	}
	return table, nil
}

// Resolve maps the given alpha-2 codes to numeric codes. Matching is
// case-insensitive; entries that are blank after trimming are skipped.
// Input order is preserved in both returned lists and duplicates are kept.
func (t Table) Resolve(codes []string) ([]string, []uint16, error) {
	alpha2 := make([]string, 0, len(codes))
	numeric := make([]uint16, 0, len(codes))
	for _, code := range codes {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" {
			continue
		}
		n, ok := t[code]
		if !ok {
			return nil, nil, fmt.Errorf("%w: %q", ErrUnknownCountry, code)
		}
		alpha2 = append(alpha2, code)
		numeric = append(numeric, n)
	}
	if len(numeric) == 0 {
		return nil, nil, ErrEmptyCountrySet
	}
	return alpha2, numeric, nil
}

// ResolveList splits a comma-separated flag value and resolves it.
func (t Table) ResolveList(list string) ([]string, []uint16, error) {
	return t.Resolve(strings.Split(list, ","))
}
