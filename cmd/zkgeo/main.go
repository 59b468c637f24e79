// zkgeo proves, in zero knowledge, that an IPv4 address is or is not inside
// the address ranges of a set of countries, without revealing the address or
// the ranges.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/zkgeo/zkgeo/countries"
	"github.com/zkgeo/zkgeo/geodb"
	"github.com/zkgeo/zkgeo/logger"
	"github.com/zkgeo/zkgeo/pipeline"
	"github.com/zkgeo/zkgeo/prover"
	"github.com/zkgeo/zkgeo/prover/snark"
)

var (
	fIP         string
	fExclude    string
	fExecute    bool
	fProve      bool
	fVerify     bool
	fSystem     string
	fRefresh    bool
	fCountries  string
	fCache      string
	fFixtureDir string
)

var rootCmd = &cobra.Command{
	Use:           "zkgeo",
	Short:         "generate zero-knowledge geographic exclusion proofs for IPv4 addresses",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

var (
	fVkeyRanges int
	fVkeyCodes  int
)

var vkeyCmd = &cobra.Command{
	Use:   "vkey",
	Short: "print the verification-key identifier for the selected proof system",
	RunE:  runVkey,
}

func init() {
	rootCmd.Flags().StringVar(&fIP, "ip", "8.8.8.8", "IPv4 address to test, dotted-quad")
	rootCmd.Flags().StringVar(&fExclude, "exclude", "FR", "comma-separated alpha-2 country codes to exclude")
	rootCmd.Flags().BoolVar(&fExecute, "execute", false, "run the program without generating a proof")
	rootCmd.Flags().BoolVar(&fProve, "prove", false, "generate a proof and write a verifier fixture")
	rootCmd.Flags().BoolVar(&fVerify, "verify", false, "verify the generated proof (only with --prove)")
	rootCmd.Flags().StringVar(&fSystem, "system", "groth16", "proof system: plonk or groth16")
	rootCmd.Flags().BoolVar(&fRefresh, "refresh", false, "force a refetch of the GeoIP dataset")
	rootCmd.Flags().StringVar(&fCountries, "countries", filepath.Join("data", "countries.csv"), "country code reference table")
	rootCmd.Flags().StringVar(&fCache, "cache", defaultCachePath(), "GeoIP dataset cache file")
	rootCmd.Flags().StringVar(&fFixtureDir, "fixture-dir", "fixtures", "directory for proof fixtures")

	vkeyCmd.Flags().StringVar(&fSystem, "system", "groth16", "proof system: plonk or groth16")
	vkeyCmd.Flags().IntVar(&fVkeyRanges, "ranges", 1, "number of exclusion ranges the circuit is sized for")
	vkeyCmd.Flags().IntVar(&fVkeyCodes, "codes", 1, "number of country codes the circuit is sized for")
	rootCmd.AddCommand(vkeyCmd)
}

func defaultCachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "geoip-cache.csv"
	}
	return filepath.Join(dir, "zkgeo", "geoip.csv")
}

func run(cmd *cobra.Command, args []string) error {
	if fExecute == fProve {
		return fmt.Errorf("specify exactly one of --execute or --prove")
	}
	if fVerify && !fProve {
		return fmt.Errorf("--verify requires --prove")
	}
	system, err := prover.ParseSystem(fSystem)
	if err != nil {
		return err
	}

	table, err := countries.Load(fCountries)
	if err != nil {
		return err
	}

	o := &pipeline.Orchestrator{
		Countries:  table,
		Geo:        geodb.New(geodb.Config{CachePath: fCache}),
		Capability: snark.NewBackend(system),
		System:     system,
		FixtureDir: fFixtureDir,
	}

	req, err := o.BuildRequest(fIP, fExclude, fRefresh)
	if err != nil {
		return err
	}

	if fExecute {
		exec, err := o.Execute(req)
		if err != nil {
			return err
		}
		fmt.Printf("Result: is_excluded = %v\n", exec.Commitment.IsExcluded)
		fmt.Printf("Timestamp: %d\n", exec.Commitment.Timestamp)
		fmt.Printf("Checked countries: %v\n", exec.Commitment.Countries)
		fmt.Printf("Constraints: %d\n", exec.Report.NbConstraints)
		return nil
	}

	res, err := o.Prove(req)
	if err != nil {
		return err
	}
	fmt.Printf("Result: is_excluded = %v\n", res.Artifact.IsExcluded)
	fmt.Printf("Verification Key: %s\n", res.Artifact.Vkey)
	fmt.Printf("Public Values: %s\n", res.Artifact.PublicValues)
	fmt.Printf("Fixture: %s\n", res.Path)

	if fVerify {
		if err := o.Verify(res.Proof); err != nil {
			return err
		}
		fmt.Println("Proof verified.")
	}
	return nil
}

func runVkey(cmd *cobra.Command, args []string) error {
	system, err := prover.ParseSystem(fSystem)
	if err != nil {
		return err
	}
	id, err := snark.NewBackend(system).VerifyingKeyID(fVkeyRanges, fVkeyCodes)
	if err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}

func main() {
	// backend endpoint/credential configuration comes from the process
	// environment; a .env file is honored when present
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		log := logger.Logger()
		log.Error().Err(err).Msg("run failed")
		os.Exit(1)
	}
}
