// Command genmock writes a deterministic synthetic article dataset for local
// end-to-end forecast runs. Articles are spread over a subset of reference
// districts and their provinces, dated inside the backdate window.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -out data/mock/articles.csv \
//	  -seed 7 -districts 12 -per-district 6
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/couchcryptid/ipc-forecast/internal/adapter/csvfile"
	"github.com/couchcryptid/ipc-forecast/internal/domain"
)

// headlines are paired with the feature tags they imply.
var headlines = []struct {
	title    string
	features []string
}{
	{"Flash floods damage standing crops in %s", []string{"floods", "farmland"}},
	{"Wheat flour prices climb again in %s", []string{"price rise", "rising food prices"}},
	{"Families displaced by heavy rains in %s", []string{"displaced", "floods"}},
	{"Lack of rains hits farmers in %s", []string{"drought", "lack of rains"}},
	{"Locust swarms reported near %s", []string{"locusts", "harvest decline"}},
	{"Health officials warn of cholera in %s", []string{"cholera outbreak", "malnourished"}},
	{"Local market reopens in %s after repairs", nil},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path for the article CSV")
	seed := flag.Uint64("seed", 1, "random seed")
	districts := flag.Int("districts", 10, "number of districts to cover")
	perDistrict := flag.Int("per-district", 5, "articles per district")
	perProvince := flag.Int("per-province", 3, "province-level articles per province")
	predictionDate := flag.String("prediction-date", "2024-11-01", "prediction start (YYYY-MM-DD)")
	backdate := flag.Int("backdate-months", 6, "months of evidence before the prediction start")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return errors.New("missing required flag: -out")
	}
	start, err := time.Parse(domain.DateLayout, *predictionDate)
	if err != nil {
		return fmt.Errorf("invalid -prediction-date: %w", err)
	}
	window := domain.Window{PredictionStart: start, BackdateMonths: *backdate}

	rng := rand.New(rand.NewPCG(*seed, 0))
	articles := generate(domain.DefaultReference(), window, rng, *districts, *perDistrict, *perProvince)

	if err := os.Remove(*out); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove previous output: %w", err)
	}
	app, err := csvfile.NewArticleAppender(*out)
	if err != nil {
		return err
	}
	for _, a := range articles {
		if err := app.Append(a); err != nil {
			app.Close()
			return err
		}
	}
	if err := app.Close(); err != nil {
		return err
	}

	log.Printf("wrote %d articles to %s", len(articles), *out)
	printStats(articles)
	return nil
}

// generate picks n districts in a seeded order and writes per-district and
// province-level articles dated uniformly inside the window.
func generate(ref *domain.Reference, window domain.Window, rng *rand.Rand, n, perDistrict, perProvince int) []domain.Article {
	all := ref.Districts()
	rng.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
	chosen := all[:min(n, len(all))]

	days := int(window.End().Sub(window.Start()).Hours() / 24)
	date := func() string {
		return window.Start().AddDate(0, 0, rng.IntN(max(days, 1))).Format(domain.DateLayout)
	}
	article := func(location string) domain.Article {
		h := headlines[rng.IntN(len(headlines))]
		title := fmt.Sprintf(h.title, location)
		return domain.Article{
			Location: location,
			Date:     date(),
			Title:    title,
			Content:  title + ". Local officials said conditions would be reviewed in the coming weeks.",
			Features: h.features,
		}
	}

	var articles []domain.Article
	provinces := map[string]bool{}
	for _, d := range chosen {
		for range perDistrict {
			articles = append(articles, article(d.Name))
		}
		provinces[d.Province] = true
	}
	for _, p := range ref.Provinces() {
		if !provinces[p] {
			continue
		}
		for range perProvince {
			articles = append(articles, article(p))
		}
	}

	// Titles repeat across draws; suffix them so title dedup keeps every row.
	for i := range articles {
		articles[i].Title = fmt.Sprintf("%s (%d)", articles[i].Title, i+1)
	}
	return articles
}

func printStats(articles []domain.Article) {
	byLocation := map[string]int{}
	for _, a := range articles {
		byLocation[a.Location]++
	}
	locations := make([]string, 0, len(byLocation))
	for l := range byLocation {
		locations = append(locations, l)
	}
	sort.Strings(locations)

	fmt.Println("\n=== Articles per location ===")
	for _, l := range locations {
		fmt.Printf("  %-28s %d\n", l, byLocation[l])
	}

	features := domain.FeatureCounts(articles)
	tags := make([]string, 0, len(features))
	for f := range features {
		tags = append(tags, f)
	}
	sort.Strings(tags)
	fmt.Println("\n=== Feature tags ===")
	fmt.Printf("  %s\n", strings.Join(tags, ", "))
}
