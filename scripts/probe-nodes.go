//go:build ignore

// probe-nodes.go checks a list of IRI-compatible nodes for reachability and
// sync state, to pick a node.url for iamd's node backend.
//
// Run with: go run scripts/probe-nodes.go [node-url ...]
package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/qubiclite/iam/internal/tangle"
	"go.uber.org/zap"
)

// Nodes probed when no URLs are given.
var defaultNodes = []string{
	"http://localhost:14265",
	"http://127.0.0.1:14265",
}

type result struct {
	url     string
	err     error
	latency time.Duration
}

func probe(ctx context.Context, url string) result {
	c := tangle.NewNodeClient(tangle.NodeConfig{URL: url, HTTPTimeout: 8 * time.Second}, zap.NewNop())
	start := time.Now()
	err := c.Ping(ctx)
	return result{url: url, err: err, latency: time.Since(start)}
}

func main() {
	nodes := os.Args[1:]
	if len(nodes) == 0 {
		nodes = defaultNodes
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	jobs := make(chan string, len(nodes))
	results := make(chan result, len(nodes))

	// Worker pool: 8 concurrent probes
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for url := range jobs {
				results <- probe(ctx, url)
			}
		}()
	}
	for _, n := range nodes {
		jobs <- n
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	var all []result
	for r := range results {
		all = append(all, r)
	}

	// Healthy nodes first, fastest first.
	sort.Slice(all, func(i, j int) bool {
		if (all[i].err == nil) != (all[j].err == nil) {
			return all[i].err == nil
		}
		return all[i].latency < all[j].latency
	})

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NODE\tSTATUS\tLATENCY\tERROR")
	healthy := 0
	for _, r := range all {
		if r.err != nil {
			fmt.Fprintf(w, "%s\tdown\t%s\t%v\n", r.url, r.latency.Round(time.Millisecond), r.err)
			continue
		}
		healthy++
		fmt.Fprintf(w, "%s\tsynced\t%s\t\n", r.url, r.latency.Round(time.Millisecond))
	}
	w.Flush()

	fmt.Printf("\n%d of %d nodes synced\n", healthy, len(all))
	if healthy == 0 {
		os.Exit(1)
	}
}
