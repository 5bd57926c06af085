package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"stagecrawl/internal/approval"
	"stagecrawl/internal/extractor"
	"stagecrawl/internal/fetcher"
	"stagecrawl/internal/ioformats"
	"stagecrawl/internal/pipeline"
	"stagecrawl/internal/sitedetect"
)

// The CLI runs the import pipeline without a database: fetch, extract and
// normalize a batch of ticket-page URLs and emit one NDJSON record each.
func main() {
	in := flag.String("input", "", "input file (csv with 'url' column, ndjson, or one url per line)")
	out := flag.String("output", "", "output NDJSON file (default stdout)")
	concurrency := flag.Int("concurrency", 5, "worker concurrency")
	timeout := flag.Duration("timeout", 10*time.Second, "per-url fetch timeout")
	flag.Parse()

	urls := flag.Args()
	if *in != "" {
		fileURLs, err := ioformats.ReadURLs(*in)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read input:", err)
			os.Exit(1)
		}
		urls = append(urls, fileURLs...)
	}
	if len(urls) == 0 {
		fmt.Fprintln(os.Stderr, "usage: stagecrawl-cli [--input urls.csv] [url ...]")
		os.Exit(2)
	}

	det := sitedetect.New()
	pipe := pipeline.New(
		fetcher.New(fetcher.Options{Timeout: *timeout}),
		det,
		extractor.DefaultRegistry(det),
		approval.NewEngine(nil),
		nil,
		zap.NewNop(),
	)

	results := make([]pipeline.Result, len(urls))

	var wg sync.WaitGroup
	sem := make(chan struct{}, *concurrency)
	for i, u := range urls {
		i, u := i, u
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = pipe.ImportURL(context.Background(), u)
		}()
	}
	wg.Wait()

	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			fmt.Fprintln(os.Stderr, "create output:", err)
			os.Exit(1)
		}
		defer f.Close()
		w = f
	}
	enc := ioformats.NewNDJSONWriter(w)
	failures := 0
	for i, r := range results {
		rec := struct {
			URL string `json:"url"`
			pipeline.Result
		}{URL: urls[i], Result: r}
		if !r.Success {
			failures++
		}
		if err := enc.Write(rec); err != nil {
			fmt.Fprintln(os.Stderr, "write output:", err)
			os.Exit(1)
		}
	}
	if failures == len(results) {
		os.Exit(1)
	}
}
