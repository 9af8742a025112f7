package main

import (
	"encoding/csv"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/wakala/glrecon/internal/currency"
	"github.com/wakala/glrecon/internal/domain"
)

const (
	months         = 6
	matchShare     = 0.8
	primaryAccount = "all other loans"
)

var secondaryAccounts = []string{"deferred costs", "deferred origination fees", "principal"}

func main() {
	rng := rand.New(rand.NewSource(42))
	baseDir := findTestdataDir()

	records := generate(rng, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	path := filepath.Join(baseDir, "historical_data.csv")
	if err := writeCSV(path, records); err != nil {
		panic(err)
	}

	breaks := 0
	for _, r := range records {
		if r.MatchStatus == domain.MatchStatusBreak {
			breaks++
		}
	}
	fmt.Printf("Generated %d records (%d breaks) -> historical_data.csv\n", len(records), breaks)
}

// generate produces months of balance records. Each month picks 3-5
// accounts with 5-10 records each; an account keeps its unit code if it
// comes up again. The date cursor only advances, so (account, asofdt)
// never repeats.
func generate(rng *rand.Rand, start time.Time) []domain.Record {
	codes := currency.Codes()
	units := make(map[int64]int64)
	day := start

	var out []domain.Record
	for m := 0; m < months; m++ {
		used := make(map[string]bool)
		accounts := 3 + rng.Intn(3)
		for a := 0; a < accounts; a++ {
			account := int64(1000000 + rng.Intn(9000000))
			unit, ok := units[account]
			if !ok {
				unit = int64(1000 + rng.Intn(9000))
				units[account] = unit
			}

			n := 5 + rng.Intn(6)
			for i := 0; i < n; i++ {
				key := fmt.Sprintf("%d|%s", account, day.Format("2006-01-02"))
				for used[key] {
					day = day.AddDate(0, 0, 1)
					key = fmt.Sprintf("%d|%s", account, day.Format("2006-01-02"))
				}
				used[key] = true

				gl := float64(10000 + rng.Intn(20000))
				var sub float64
				if rng.Float64() < matchShare {
					sub = gl + float64(rng.Intn(3)-1)
				} else {
					sub = gl + float64(rng.Intn(10000)-5000)
				}
				diff := gl - sub

				status := domain.ClassifyMatch(diff)
				comment := ""
				if status == domain.MatchStatusMatch {
					comment = "Difference is within tolerance (less than 1 USD)"
				}

				out = append(out, domain.Record{
					AsOfDate:          day.Format("2006-01-02"),
					Company:           int64(rng.Intn(101)),
					Account:           account,
					UnitCode:          unit,
					Currency:          codes[rng.Intn(len(codes))],
					PrimaryAccount:    primaryAccount,
					SecondaryAccount:  secondaryAccounts[rng.Intn(len(secondaryAccounts))],
					GLBalance:         gl,
					SubLedgerBalance:  sub,
					BalanceDifference: math.Round(diff*100) / 100,
					MatchStatus:       status,
					Comment:           comment,
				})
			}
		}
		day = day.AddDate(0, 0, 30)
	}
	return out
}

func writeCSV(path string, records []domain.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Write([]string{
		"asofdt", "company", "account", "au", "currency",
		"primary account", "secondary account",
		"gl balance", "ihub balance", "balance difference",
		"match status", "comments",
	})
	for _, r := range records {
		w.Write([]string{
			r.AsOfDate,
			strconv.FormatInt(r.Company, 10),
			strconv.FormatInt(r.Account, 10),
			strconv.FormatInt(r.UnitCode, 10),
			r.Currency,
			r.PrimaryAccount,
			r.SecondaryAccount,
			strconv.FormatFloat(r.GLBalance, 'f', -1, 64),
			strconv.FormatFloat(r.SubLedgerBalance, 'f', -1, 64),
			strconv.FormatFloat(r.BalanceDifference, 'f', -1, 64),
			string(r.MatchStatus),
			r.Comment,
		})
	}
	w.Flush()
	return w.Error()
}

func findTestdataDir() string {
	candidates := []string{
		"testdata",
		"./testdata",
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.IsDir() {
			return c
		}
	}
	return "testdata"
}
