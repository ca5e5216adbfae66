package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/wellsight/plunger-monitor/internal/engine"
	"github.com/wellsight/plunger-monitor/internal/loader"
	"github.com/wellsight/plunger-monitor/internal/queue"
	"github.com/wellsight/plunger-monitor/internal/store"
	"github.com/wellsight/plunger-monitor/pkg/config"
)

func main() {
	well := flag.String("well", "La Vista 1H", "well directory name under the data dir")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	fmt.Println("Starting Cycle Processor...")

	// Connect to the event store
	eventStore, err := store.Open(cfg.Store.Driver, cfg.Store.DSN())
	if err != nil {
		log.Fatalf("Failed to connect to event store: %v", err)
	}
	defer eventStore.Close()

	if err := eventStore.CreateTables(); err != nil {
		log.Fatalf("Failed to create event tables: %v", err)
	}
	fmt.Printf("Connected to event store (%s)\n", cfg.Store.Driver)

	// Create anomaly notification producer
	producer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicAlarms)
	defer producer.Close()
	fmt.Println("Anomaly notification producer initialized")

	// Load channel data
	channels, err := loader.New(cfg.DataDir).LoadWell(*well)
	if err != nil {
		log.Fatalf("Failed to load channel data for %q: %v", *well, err)
	}
	fmt.Printf("Loaded %d channels for %s\n", len(channels), *well)

	// Run the derivation engine
	e := engine.New(eventStore, producer, cfg.Engine, *well)
	summary, err := e.Run(context.Background(), channels)
	if err != nil {
		log.Fatalf("Run failed: %v", err)
	}

	fmt.Printf("\n✓ Run %s complete: %d cycles, %d events persisted\n",
		summary.RunID, summary.Cycles, summary.Events)
}
