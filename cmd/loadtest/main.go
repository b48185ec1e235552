package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// route is one kind of request the workers rotate through.
type route struct {
	name  string
	build func(base string, i int) string
}

type routeStats struct {
	requests  atomic.Int64
	errors    atomic.Int64
	empty     atomic.Int64
	mu        sync.Mutex
	latencies []time.Duration
}

func (s *routeStats) record(d time.Duration, status int, emptyBody bool, err error) {
	s.requests.Add(1)
	if err != nil || status != http.StatusOK {
		s.errors.Add(1)
		return
	}
	if emptyBody {
		s.empty.Add(1)
	}
	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.mu.Unlock()
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the search service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	tagList := flag.String("tags", "laravel,php,redis,go", "comma separated tag slugs to query")
	flag.Parse()

	queries := []string{
		"laravel caching",
		"redis sorted sets",
		"queue workers",
		"eloquent relationships",
		"docker compose",
		"testing with pest",
		"api authentication",
		"database indexes",
		"livewire components",
		"deployment pipeline",
	}
	prefixes := []string{"la", "red", "que", "doc", "tes", "api", "dat"}
	tags := strings.Split(*tagList, ",")

	routes := []route{
		{"search", func(base string, i int) string {
			return fmt.Sprintf("%s/api/v1/search?q=%s&limit=10", base, url.QueryEscape(queries[i%len(queries)]))
		}},
		{"search+tag", func(base string, i int) string {
			return fmt.Sprintf("%s/api/v1/search?q=%s&tags=%s", base,
				url.QueryEscape(queries[i%len(queries)]), url.QueryEscape(tags[i%len(tags)]))
		}},
		{"recent", func(base string, _ int) string {
			return base + "/api/v1/search?limit=20"
		}},
		{"tag", func(base string, i int) string {
			return fmt.Sprintf("%s/api/v1/search/tags/%s", base, url.PathEscape(tags[i%len(tags)]))
		}},
		{"suggest", func(base string, i int) string {
			return fmt.Sprintf("%s/api/v1/search/suggestions?q=%s", base, url.QueryEscape(prefixes[i%len(prefixes)]))
		}},
	}

	fmt.Println("=== Article Search Load Test ===")
	fmt.Printf("Target:      %s\n", *baseURL)
	fmt.Printf("Concurrency: %d\n", *concurrency)
	fmt.Printf("Duration:    %s\n", *duration)
	fmt.Printf("Routes:      %d\n", len(routes))
	fmt.Println()

	stats := run(*baseURL, routes, *concurrency, *duration)
	if !printReport(routes, stats, *duration) {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the service running?")
		os.Exit(1)
	}
}

func run(base string, routes []route, concurrency int, duration time.Duration) []*routeStats {
	stats := make([]*routeStats, len(routes))
	for i := range stats {
		stats[i] = &routeStats{}
	}
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        concurrency * 2,
			MaxIdleConnsPerHost: concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	var wg sync.WaitGroup
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for ctx.Err() == nil {
				r := i % len(routes)
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, routes[r].build(base, i), nil)
				if err != nil {
					panic(fmt.Sprintf("creating request: %v", err))
				}
				i++

				start := time.Now()
				resp, err := client.Do(req)
				elapsed := time.Since(start)
				if err != nil {
					if ctx.Err() == nil {
						stats[r].record(elapsed, 0, false, err)
					}
					continue
				}
				body, _ := io.ReadAll(resp.Body)
				resp.Body.Close()
				stats[r].record(elapsed, resp.StatusCode, isEmptyResult(body), nil)
			}
		}(w)
	}
	wg.Wait()
	return stats
}

func isEmptyResult(body []byte) bool {
	s := string(body)
	return strings.Contains(s, `"count":0`) || strings.Contains(s, `"suggestions":[]`)
}

func printReport(routes []route, stats []*routeStats, duration time.Duration) bool {
	var total int64
	fmt.Printf("%-12s %8s %7s %7s %10s %10s %10s %10s\n", "route", "requests", "errors", "empty", "p50", "p90", "p99", "stddev")
	for i, r := range routes {
		s := stats[i]
		n := s.requests.Load()
		total += n

		s.mu.Lock()
		latencies := append([]time.Duration(nil), s.latencies...)
		s.mu.Unlock()
		sort.Slice(latencies, func(a, b int) bool { return latencies[a] < latencies[b] })

		fmt.Printf("%-12s %8d %7d %7d %10s %10s %10s %10s\n", r.name, n, s.errors.Load(), s.empty.Load(),
			percentile(latencies, 50), percentile(latencies, 90), percentile(latencies, 99), stddev(latencies))
	}
	fmt.Println()
	fmt.Printf("Total: %d requests, %.2f req/s\n", total, float64(total)/duration.Seconds())
	return total > 0
}

func stddev(latencies []time.Duration) time.Duration {
	if len(latencies) == 0 {
		return 0
	}
	var sum float64
	for _, l := range latencies {
		sum += float64(l)
	}
	mean := sum / float64(len(latencies))
	var sq float64
	for _, l := range latencies {
		d := float64(l) - mean
		sq += d * d
	}
	return time.Duration(math.Sqrt(sq / float64(len(latencies))))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
