package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"genre-classifier/config"
	"genre-classifier/db"
	"genre-classifier/featuretable"
	"genre-classifier/genre"
	"genre-classifier/utils"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

func main() {
	config.LoadDotEnv()

	rootDir := flag.String("dir", "genres_original", "Root directory containing one subdirectory per genre")
	outputFile := flag.String("out", "features.csv", "Output feature table (CSV)")
	sqlitePath := flag.String("sqlite", "", "Also store the table in this SQLite database")
	scalerPath := flag.String("scaler", "", "Also write a z-score scaler fitted on the table (JSON)")
	extensions := flag.String("ext", ".wav", "Comma-separated audio extensions to include")
	numMFCC := flag.Int("n-mfcc", utils.GetEnvInt("GENRE_N_MFCC", genre.FeatureCount), "MFCC coefficients per clip")
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	extractor, err := genre.NewExtractor(genre.LoadOptions{
		SampleRate:  utils.GetEnvInt("GENRE_SAMPLE_RATE", genre.DefaultSampleRate),
		MaxDuration: utils.GetEnvDuration("GENRE_MAX_DURATION", genre.DefaultMaxDuration),
		FFmpegPath:  utils.GetEnv("FFMPEG_PATH", "ffmpeg"),
	}, *numMFCC)
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}

	opts := extractor.Options()
	log.Printf("Extracting %d MFCC means at %d Hz from the first %s of each clip\n", *numMFCC, opts.SampleRate, opts.MaxDuration)

	exts := strings.Split(*extensions, ",")
	files, err := genre.ScanCorpus(*rootDir, exts)
	if err != nil {
		log.Fatalf("failed to read directory: %v", err)
	}
	if len(files) == 0 {
		log.Fatalf("no audio files found under %s", *rootDir)
	}
	log.Printf("Found %d files under %s\n", len(files), *rootDir)

	p := mpb.New(mpb.WithWidth(64))
	bar := p.AddBar(int64(len(files)),
		mpb.PrependDecorators(
			decor.Name("Extracting: "),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(
			decor.Percentage(),
			decor.EwmaETA(decor.ET_STYLE_GO, 60),
		),
	)

	started := time.Now()
	last := started
	report, err := genre.ExtractCorpus(ctx, files, genre.CorpusOptions{
		Extract: extractor.ExtractFile,
		Logger:  utils.NewLogger(utils.GetEnv("LOG_LEVEL", "info"), utils.GetEnv("LOG_FORMAT", "text")),
		Progress: func(string, string, error) {
			bar.EwmaIncrement(time.Since(last))
			last = time.Now()
		},
	})
	if err != nil {
		bar.Abort(false)
		p.Wait()
		log.Fatalf("ERROR: build interrupted: %v", err)
	}
	p.Wait()

	for _, skipped := range report.Skipped {
		log.Printf("Error processing %s: %s\n", skipped.Path, skipped.Error)
	}

	if err := featuretable.WriteFile(*outputFile, report.Samples); err != nil {
		log.Fatalf("ERROR: failed to write %s: %v", *outputFile, err)
	}
	log.Printf("Wrote %d rows to %s\n", len(report.Samples), *outputFile)
	if len(report.Samples) == 0 {
		log.Printf("WARNING: no clip could be processed; %s holds only the header\n", *outputFile)
		return
	}

	if *sqlitePath != "" {
		client, err := db.NewSQLiteClient(*sqlitePath)
		if err != nil {
			log.Fatalf("ERROR: open sqlite: %v", err)
		}
		defer client.Close()
		if err := client.StoreSamples(ctx, report.Samples); err != nil {
			log.Fatalf("ERROR: store samples: %v", err)
		}
		counts, err := client.CountByGenre(ctx)
		if err != nil {
			log.Fatalf("ERROR: count rows: %v", err)
		}
		total := 0
		for _, n := range counts {
			total += n
		}
		log.Printf("Stored %d rows in %s (%d genres, %d rows total)\n", len(report.Samples), *sqlitePath, len(counts), total)
	}

	if *scalerPath != "" {
		if err := writeScaler(*scalerPath, report.Samples); err != nil {
			log.Fatalf("ERROR: fit scaler: %v", err)
		}
		log.Printf("Wrote scaler to %s\n", *scalerPath)
	}

	log.Println()
	log.Printf("Processed %d files, skipped %d, in %.1fs\n",
		report.Processed, len(report.Skipped), time.Since(started).Seconds())
	genres := make([]string, 0, len(report.PerGenre))
	for g := range report.PerGenre {
		genres = append(genres, g)
	}
	sort.Strings(genres)
	for _, g := range genres {
		log.Printf("  %-12s %d clips\n", g, report.PerGenre[g])
	}
}

func writeScaler(path string, samples []genre.LabeledSample) error {
	vectors := make([]genre.FeatureVector, len(samples))
	for i, s := range samples {
		vectors[i] = s.Features
	}
	scaler, err := genre.NewFeatureScalerFromSamples(vectors)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(scaler, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
