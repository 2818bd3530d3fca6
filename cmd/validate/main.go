// Command validate checks the integrity of a forecast result CSV: every
// district is a known, unique reference district, provinces match the
// reference mapping, phases are empty or 1-5, and the JSON columns decode.
//
// Usage:
//
//	go run ./cmd/validate -results outputs/results_ipc_claude-sonnet-4-20250514_Nov-Mar,2024-2025.csv
package main

import (
	"flag"
	"fmt"
	"os"
	"slices"
	"strconv"

	"github.com/couchcryptid/ipc-forecast/internal/adapter/csvfile"
	"github.com/couchcryptid/ipc-forecast/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	resultsPath := flag.String("results", "", "path to the forecast result CSV")
	referencePath := flag.String("reference", "", "optional reference YAML overriding the embedded district list")
	flag.Parse()

	if *resultsPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*resultsPath, *referencePath); code != 0 {
		os.Exit(code)
	}
}

func run(resultsPath, referencePath string) int {
	ref := domain.DefaultReference()
	if referencePath != "" {
		data, err := os.ReadFile(referencePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: read reference: %v\n", err)
			return 1
		}
		if ref, err = domain.LoadReference(data); err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
			return 1
		}
	}

	fmt.Println("=== IPC Forecast Result Validation ===")
	fmt.Println()

	header, records, err := csvfile.ReadRecords(resultsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateHeader(header),
		validateDistricts(records, ref),
		validateProvinces(records, ref),
		validatePhases(records),
		validateJSONColumns(records),
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d rows, %d of %d reference districts\n", len(records), countKnown(records, ref), len(ref.Districts()))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func validateHeader(header []string) *phase {
	p := &phase{name: "Header columns"}
	for _, col := range csvfile.ResultColumns {
		if !slices.Contains(header, col) {
			p.errorf("missing column %q", col)
		}
	}
	return p
}

func validateDistricts(records []csvfile.Record, ref *domain.Reference) *phase {
	p := &phase{name: "Districts known and unique"}
	seen := make(map[string]int, len(records))
	for _, rec := range records {
		d := rec.Fields["district"]
		if ref.Index(d) < 0 {
			p.errorf("line %d: unknown district %q", rec.Line, d)
		}
		if first, dup := seen[d]; dup {
			p.errorf("line %d: district %q already on line %d", rec.Line, d, first)
			continue
		}
		seen[d] = rec.Line
	}
	return p
}

func validateProvinces(records []csvfile.Record, ref *domain.Reference) *phase {
	p := &phase{name: "Provinces match reference"}
	for _, rec := range records {
		want, ok := ref.Province(rec.Fields["district"])
		if !ok {
			continue
		}
		if got := rec.Fields["province"]; got != want {
			p.errorf("line %d: %s is in %s, got %q", rec.Line, rec.Fields["district"], want, got)
		}
	}
	return p
}

func validatePhases(records []csvfile.Record) *phase {
	p := &phase{name: "Phases empty or 1-5"}
	for _, rec := range records {
		s := rec.Fields["ipc_phase"]
		if s == "" {
			if rec.Fields["justification"] != "" {
				p.errorf("line %d: justification without a phase", rec.Line)
			}
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil || !domain.IPCPhase(n).Valid() {
			p.errorf("line %d: invalid phase %q", rec.Line, s)
		}
	}
	return p
}

func validateJSONColumns(records []csvfile.Record) *phase {
	p := &phase{name: "JSON columns decode"}
	for _, rec := range records {
		if _, err := csvfile.DecodeRecord(rec); err != nil {
			p.errorf("%v", err)
		}
	}
	return p
}

func countKnown(records []csvfile.Record, ref *domain.Reference) int {
	n := 0
	for _, rec := range records {
		if ref.Index(rec.Fields["district"]) >= 0 {
			n++
		}
	}
	return n
}
