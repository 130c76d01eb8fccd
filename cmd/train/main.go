package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Kartikesh07/RailSetuBackend/internal/approx"
	"github.com/Kartikesh07/RailSetuBackend/internal/config"
	"github.com/Kartikesh07/RailSetuBackend/internal/db"
	"github.com/Kartikesh07/RailSetuBackend/internal/engine"
	"github.com/Kartikesh07/RailSetuBackend/internal/scenario"
)

func main() {
	config.LoadEnvFiles(".")
	cfg := config.Load()

	dbPath := flag.String("db", cfg.DatabasePath, "Path to SQLite database")
	seed := flag.Int64("seed", cfg.TrainSeed, "Scenario generator seed")
	trainCount := flag.Int("trains", cfg.ScenarioTrains, "Trains per scenario")
	trees := flag.Int("trees", cfg.ForestTrees, "Random forest size")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	database, err := db.Connect(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	if err := database.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to ensure database schema: %v", err)
	}

	sec := scenario.SolapurWadiSection()
	gen := scenario.NewGenerator(sec, time.Now(), *seed)
	curriculum := scenario.DefaultCurriculum()
	log.Printf("Labelling %d scenarios of %d trains on %s (seed %d)", curriculum.Total(), *trainCount, sec.Name(), *seed)

	start := time.Now()
	var samples []engine.Sample
	err = curriculum.Run(ctx, gen, *trainCount, func(seq int, kind scenario.Kind, snap engine.Snapshot) error {
		labelled, err := engine.Label(ctx, sec, snap)
		if err != nil {
			return err
		}
		samples = append(samples, labelled...)
		if seq%50 == 0 {
			log.Printf("  %d/%d scenarios (%s), %d samples", seq, curriculum.Total(), kind, len(samples))
		}
		return nil
	})
	if err != nil {
		log.Fatalf("Failed to build training set: %v", err)
	}
	log.Printf("Labelled %d samples in %v", len(samples), time.Since(start).Round(time.Millisecond))

	model := approx.NewForest(*trees)
	if err := model.Fit(samples); err != nil {
		log.Fatalf("Failed to fit model: %v", err)
	}

	params, err := approx.Marshal(model)
	if err != nil {
		log.Fatalf("Failed to encode model: %v", err)
	}

	id, err := database.SaveModel(ctx, len(samples), params)
	if err != nil {
		log.Fatalf("Failed to save model: %v", err)
	}
	log.Printf("Saved model %s (%d trees, %d samples)", id, model.Trees(), model.Size())
	log.Println("Set DECISION_MODE=model to serve it")
}
