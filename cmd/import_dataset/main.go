package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"genre-classifier/config"
	"genre-classifier/dataset"
	"genre-classifier/utils"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

func main() {
	config.LoadDotEnv()

	outDir := flag.String("out", "genres", "Directory to write <genre>/<genre>.<index>.wav into")
	baseURL := flag.String("base-url", utils.GetEnv("HF_DATASETS_SERVER", dataset.DefaultBaseURL), "Datasets server base URL")
	name := flag.String("dataset", dataset.DefaultDataset, "Hosted dataset identifier")
	cfgName := flag.String("config", dataset.DefaultConfig, "Dataset config")
	split := flag.String("split", dataset.DefaultSplit, "Dataset split")
	labelColumn := flag.String("label-column", "genre", "Column holding the integer genre label")
	audioColumn := flag.String("audio-column", "audio", "Column holding the audio payload")
	limit := flag.Int("limit", 0, "Stop after this many samples (0 imports everything)")
	sampleRate := flag.Int("sr", utils.GetEnvInt("GENRE_SAMPLE_RATE", 22050), "Sample rate of the written files")
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime)
	log.Println("=== Dataset Import ===")
	log.Printf("Dataset: %s (%s/%s)\n", *name, *cfgName, *split)
	log.Printf("Output: %s\n", *outDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := dataset.NewClient(dataset.ClientOptions{
		BaseURL: *baseURL,
		Dataset: *name,
		Config:  *cfgName,
		Split:   *split,
		Token:   os.Getenv("HF_TOKEN"),
		Timeout: 2 * time.Minute,
	})

	p := mpb.New(mpb.WithWidth(64))
	bar := p.AddBar(0,
		mpb.PrependDecorators(
			decor.Name("Importing: "),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(
			decor.Percentage(),
			decor.AverageETA(decor.ET_STYLE_GO),
		),
	)

	importer := dataset.NewImporter(client, dataset.ImporterOptions{
		OutputDir:   *outDir,
		AudioColumn: *audioColumn,
		LabelColumn: *labelColumn,
		SampleRate:  *sampleRate,
		Limit:       *limit,
		Progress: func(path string, index, total int) {
			if total > 0 {
				bar.SetTotal(int64(total), false)
			}
			bar.Increment()
		},
	})

	report, err := importer.Run(ctx)
	if err != nil {
		bar.Abort(false)
		p.Wait()
		log.Fatalf("ERROR: import failed: %v", err)
	}
	bar.SetTotal(-1, true)
	p.Wait()

	log.Printf("Saved %d samples across %d genres in %s\n", report.Saved, len(report.Classes), report.Elapsed.Round(time.Second))
	genres := make([]string, 0, len(report.PerGenre))
	for g := range report.PerGenre {
		genres = append(genres, g)
	}
	sort.Strings(genres)
	for _, g := range genres {
		log.Printf("  %-12s %d\n", g, report.PerGenre[g])
	}
}
