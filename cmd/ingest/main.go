package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/leasingborsen/listing-reconciler/internal/app"
	types "github.com/leasingborsen/listing-reconciler/internal/domain"
	"github.com/leasingborsen/listing-reconciler/internal/ingestion/leaseprice"
	"github.com/leasingborsen/listing-reconciler/internal/platform/shutdown"
)

type fileList []string

func (l *fileList) String() string { return strings.Join(*l, ",") }
func (l *fileList) Set(v string) error {
	v = strings.TrimSpace(v)
	if v != "" {
		*l = append(*l, v)
	}
	return nil
}

func main() {
	var files fileList
	var seller, source string
	var dryRun bool
	flag.Var(&files, "file", "extractor JSON document (repeatable, staged into one session)")
	flag.StringVar(&seller, "seller", "", "seller_id the price list belongs to")
	flag.StringVar(&source, "source", "", "source label stored on the session (defaults to the first file name)")
	flag.BoolVar(&dryRun, "dry-run", false, "parse and print the vehicles without creating a session")
	flag.Parse()

	if len(files) == 0 {
		fmt.Println("at least one -file is required")
		os.Exit(2)
	}

	var vehicles []types.ExtractedVehicle
	for _, path := range files {
		batch, err := readFile(path)
		if err != nil {
			fmt.Printf("%s: %v\n", path, err)
			os.Exit(1)
		}
		vehicles = append(vehicles, batch...)
	}
	if dryRun {
		printJSON(vehicles)
		return
	}

	sellerID, err := uuid.Parse(strings.TrimSpace(seller))
	if err != nil || sellerID == uuid.Nil {
		fmt.Println("-seller must be a valid seller_id")
		os.Exit(2)
	}
	if source == "" {
		source = files[0]
	}

	ctx, stop := shutdown.NotifyContext(context.Background())
	defer stop()

	application, err := app.New(ctx)
	if err != nil {
		fmt.Printf("init app: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	extraction := application.Services.Extraction
	session, err := extraction.CreateSession(ctx, sellerID, source)
	if err != nil {
		fmt.Printf("create session: %v\n", err)
		os.Exit(1)
	}
	staged, err := extraction.StageRecords(ctx, session.ID, vehicles)
	if err != nil {
		fmt.Printf("stage records: %v\n", err)
		os.Exit(1)
	}
	summary, err := extraction.Classify(ctx, session.ID)
	if err != nil {
		fmt.Printf("classify: %v\n", err)
		os.Exit(1)
	}
	application.Log.Info("ingest finished", "session_id", session.ID, "staged", staged, "outcome", summary.Outcome)
	printJSON(map[string]any{"session_id": session.ID, "staged": staged, "summary": summary})
}

func readFile(path string) ([]types.ExtractedVehicle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	doc, err := leaseprice.Parse(f)
	if err != nil {
		return nil, err
	}
	return leaseprice.Flatten(doc), nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
