// cmd/menu/main.go
package main

import (
	"bufio"
	"context"
	"flag"
	"io"
	"log"
	"log/slog"
	"os"

	"shelfsort/internal/blob"
	"shelfsort/internal/catalog"
	"shelfsort/internal/clients"
)

func main() {
	remote := flag.String("remote", "", "base URL of an inventory server; empty runs in process")
	token := flag.String("token", os.Getenv("ADMIN_TOKEN"), "admin token sent to the remote server")
	size := flag.Int("size", 10000, "number of generated books")
	seed := flag.Int64("seed", 0, "generator seed, 0 for time based")
	probes := flag.Int("probes", 100, "random ids looked up per search")
	dir := flag.String("dir", ".", "directory LibraryData.csv is saved to")
	verbose := flag.Bool("v", false, "log run details to stderr")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	var svc catalog.Service
	if *remote != "" {
		svc = clients.NewInventoryClient(*remote, *token, nil)
	} else {
		local, err := catalog.NewService(catalog.Options{Size: *size, Seed: *seed, Logger: logger})
		if err != nil {
			log.Fatalf("Failed to create catalog: %v", err)
		}
		svc = local
	}

	sink, err := blob.NewFileSink(*dir)
	if err != nil {
		log.Fatalf("Failed to open output directory: %v", err)
	}

	m := &menu{
		svc:    svc,
		sink:   sink,
		probes: *probes,
		in:     bufio.NewScanner(os.Stdin),
		out:    os.Stdout,
	}
	if err := m.run(context.Background()); err != nil && err != io.EOF {
		log.Fatalf("Menu failed: %v", err)
	}
}
