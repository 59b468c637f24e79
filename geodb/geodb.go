// Package geodb maintains the cached GeoIP range dataset and answers
// country-to-range lookups from it.
//
// The dataset is a comma-delimited file without a header, one row per
// address block: start and end as 32-bit integers, then the alpha-2 country
// code. Extra columns are ignored. The cache file is refreshed from a remote
// HTTP source when it is missing or older than the retention window.
package geodb

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/zkgeo/zkgeo/exclusion"
	"github.com/zkgeo/zkgeo/ipv4"
	"github.com/zkgeo/zkgeo/logger"
)

// DefaultURL serves the ip-location-db country dataset in the exact cache
// row shape (start_num, end_num, alpha-2).
const DefaultURL = "https://raw.githubusercontent.com/sapics/ip-location-db/main/geo-whois-asn-country/geo-whois-asn-country-ipv4-num.csv"

// DefaultTTL is the retention window after which the cache is considered
// stale.
const DefaultTTL = 30 * 24 * time.Hour

// Config parametrizes a Source. The zero value of every field has a usable
// default except CachePath, which is required.
type Config struct {
	CachePath string
	URL       string        // defaults to DefaultURL
	TTL       time.Duration // defaults to DefaultTTL
	Client    *http.Client  // defaults to http.DefaultClient
	Now       func() time.Time
}

// Source is the range dataset component. Its staleness policy is explicit
// and clock-injectable rather than ambient state, so it can be unit tested
// without touching the network or the real clock.
type Source struct {
	cachePath string
	url       string
	ttl       time.Duration
	client    *http.Client
	now       func() time.Time
}

// New builds a Source from cfg.
func New(cfg Config) *Source {
	s := &Source{
		cachePath: cfg.CachePath,
		url:       cfg.URL,
		ttl:       cfg.TTL,
		client:    cfg.Client,
		now:       cfg.Now,
	}
	if s.url == "" {
		s.url = DefaultURL
	}
	if s.ttl == 0 {
		s.ttl = DefaultTTL
	}
	if s.client == nil {
		s.client = http.DefaultClient
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// CachePath returns the dataset cache location.
func (s *Source) CachePath() string { return s.cachePath }

// Stale reports whether the cache must be refreshed before use: it does not
// exist, or its modification time is older than the retention window.
func (s *Source) Stale() bool {
	info, err := os.Stat(s.cachePath)
	if err != nil {
		return true
	}
	return s.now().Sub(info.ModTime()) > s.ttl
}

// EnsureFresh refreshes the cache from the remote source when it is stale,
// or unconditionally when force is set. A failed refetch is downgraded to a
// warning when a previous cache exists: proving over a stale exclusion set
// beats not proving at all for a single-operator tool. Without any cache the
// failure is fatal.
func (s *Source) EnsureFresh(force bool) error {
	log := logger.With("geodb")

	_, statErr := os.Stat(s.cachePath)
	cacheExists := statErr == nil

	if !force && cacheExists && !s.Stale() {
		log.Debug().Str("cache", s.cachePath).Msg("dataset cache is fresh")
		return nil
	}

	log.Info().Str("url", s.url).Bool("force", force).Msg("refreshing GeoIP dataset")
	if err := s.fetch(); err != nil {
		if cacheExists {
			log.Warn().Err(err).Str("cache", s.cachePath).Msg("refetch failed, continuing with stale dataset")
			return nil
		}
		return fmt.Errorf("fetching GeoIP dataset: %w", err)
	}
	log.Info().Str("cache", s.cachePath).Msg("dataset cache refreshed")
	return nil
}

func (s *Source) fetch() error {
	resp, err := s.client.Get(s.url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s from %s", resp.Status, s.url)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.cachePath), 0o755); err != nil {
		return err
	}
	// no locking against concurrent runs; last writer wins
	return os.WriteFile(s.cachePath, body, 0o644)
}

// RangesFor reads the cache and returns the address ranges of the requested
// alpha-2 codes, matched case-insensitively. Any malformed row fails the
// whole load: silently skipping rows would mean proving over an incomplete
// exclusion set.
func (s *Source) RangesFor(alpha2 []string) ([]exclusion.Range, error) {
	f, err := os.Open(s.cachePath)
	if err != nil {
		return nil, fmt.Errorf("opening GeoIP dataset: %w", err)
	}
	defer f.Close()

	wanted := make(map[string]struct{}, len(alpha2))
	for _, code := range alpha2 {
		wanted[strings.ToUpper(strings.TrimSpace(code))] = struct{}{}
	}

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1

	var ranges []exclusion.Range
	for line := 1; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading GeoIP dataset: %w", err)
		}
		r, country, err := parseRow(record)
		if err != nil {
			return nil, fmt.Errorf("GeoIP dataset line %d: %w", line, err)
		}
		if _, ok := wanted[country]; ok {
			ranges = append(ranges, r)
		}
	}

	log := logger.With("geodb")
	log.Debug().
		Int("ranges", len(ranges)).
		Strs("countries", alpha2).
		Msg("loaded exclusion ranges")
	return ranges, nil
}

func parseRow(record []string) (exclusion.Range, string, error) {
	if len(record) < 3 {
		return exclusion.Range{}, "", fmt.Errorf("expected at least 3 fields, got %d", len(record))
	}
	start, err := parseBound(record[0])
	if err != nil {
		return exclusion.Range{}, "", fmt.Errorf("bad range start %q", record[0])
	}
	end, err := parseBound(record[1])
	if err != nil {
		return exclusion.Range{}, "", fmt.Errorf("bad range end %q", record[1])
	}
	country := strings.ToUpper(strings.TrimSpace(record[2]))
	return exclusion.Range{Start: start, End: end}, country, nil
}

// parseBound accepts either integer or dotted-quad form, since published
// datasets come in both flavors.
func parseBound(field string) (uint32, error) {
	field = strings.TrimSpace(field)
	if strings.Contains(field, ".") {
		return ipv4.Parse(field)
	}
	v, err := strconv.ParseUint(field, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}
