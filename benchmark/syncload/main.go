// formsync snapshot load benchmark
//
// This benchmark is designed to answer the questions we actually care about
// in production:
// - What is the p50/p95/p99 snapshot roundtrip latency under concurrent load?
// - How fast do diff broadcasts fan out to watch connections?
// - How much allocation + GC work does that load generate?
//
// It runs the real formsync HTTP server and drives N concurrent clients that
// POST real snapshots and wait for the diff response. Each client mutates one
// token field per request, so steady state measures:
// client marshal → POST → server decode → reconcile/diff → persist → response
// decode, with watch websockets draining the broadcast stream on the side.
//
// Run:
//   cd benchmark/syncload
//   go run . -clients=200 -duration=30s -rps=5 -fields=50
package main

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math"
	"net"
	"net/http"
	"runtime"
	"runtime/debug"
	"runtime/metrics"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/formsync-dev/formsync/pkg/formdata"
	"github.com/formsync-dev/formsync/pkg/server"
)

func main() {
	var (
		clients    = flag.Int("clients", 100, "number of concurrent snapshot clients")
		duration   = flag.Duration("duration", 15*time.Second, "how long to run the load test")
		rps        = flag.Float64("rps", 2, "target snapshots/sec per client (best-effort, response-gated)")
		fields     = flag.Int("fields", 50, "stable leaf fields per snapshot (affects diff walk cost)")
		tokenBytes = flag.Int("token-bytes", 24, "bytes of token payload per snapshot (the one changing field)")
		forms      = flag.Int("forms", 0, "spread clients across this many shared forms (0 = one form per client)")
		watchers   = flag.Int("watchers", 1, "watch websockets per form draining broadcasts")
	)
	flag.Parse()

	if *clients <= 0 {
		log.Fatal("-clients must be > 0")
	}
	if *duration <= 0 {
		log.Fatal("-duration must be > 0")
	}
	if *rps <= 0 {
		log.Fatal("-rps must be > 0")
	}
	if *fields < 0 {
		log.Fatal("-fields must be >= 0")
	}
	if *tokenBytes < 0 {
		log.Fatal("-token-bytes must be >= 0")
	}
	if *forms < 0 || *forms > *clients {
		log.Fatal("-forms must be between 0 and -clients")
	}
	if *watchers < 0 {
		log.Fatal("-watchers must be >= 0")
	}

	formCount := *forms
	if formCount == 0 {
		formCount = *clients
	}

	// Reduce incidental variability a bit.
	debug.SetGCPercent(100)

	srv, err := server.New(server.Config{
		Addr:        "127.0.0.1:0",
		CheckOrigin: server.AllowAllOrigins,
		// Benchmark log noise would dominate the measurement.
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		log.Fatalf("server: %v", err)
	}

	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		log.Fatalf("listen: %v", err)
	}

	httpServer := &http.Server{Handler: srv.Handler()}
	go func() {
		_ = httpServer.Serve(ln)
	}()
	defer func() {
		_ = httpServer.Shutdown(context.Background())
	}()

	baseURL := "http://" + ln.Addr().String()
	wsBase := "ws://" + ln.Addr().String()

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	samplesCh := make(chan time.Duration, 1024)
	var samples []time.Duration
	var samplesMu sync.Mutex
	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		for rtt := range samplesCh {
			samplesMu.Lock()
			samples = append(samples, rtt)
			samplesMu.Unlock()
		}
	}()

	var (
		totalSnapshots  atomic.Uint64
		totalErrors     atomic.Uint64
		totalBroadcasts atomic.Uint64
	)

	// Watchers dial before the client load starts so every broadcast counts.
	var watcherWG sync.WaitGroup
	for f := 0; f < formCount; f++ {
		wsURL := fmt.Sprintf("%s/v1/forms/load-%d/watch", wsBase, f)
		for w := 0; w < *watchers; w++ {
			watcherWG.Add(1)
			go func() {
				defer watcherWG.Done()
				if err := runWatcher(ctx, wsURL, &totalBroadcasts); err != nil {
					totalErrors.Add(1)
				}
			}()
		}
	}

	// One shared transport sized for the client count, so connection churn
	// does not show up as latency.
	httpc := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        *clients * 2,
			MaxIdleConnsPerHost: *clients * 2,
		},
	}

	var before runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)
	beforeMetrics := readRuntimeMetrics()

	var wg sync.WaitGroup
	wg.Add(*clients)
	for i := 0; i < *clients; i++ {
		clientID := i
		go func() {
			defer wg.Done()
			formID := fmt.Sprintf("load-%d", clientID%formCount)
			if err := runClient(ctx, httpc, baseURL, formID, clientID, *rps, *fields, *tokenBytes, samplesCh, &totalSnapshots); err != nil {
				totalErrors.Add(1)
			}
		}()
	}

	wg.Wait()
	cancel()
	watcherWG.Wait()
	close(samplesCh)
	<-collectorDone

	var after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&after)
	afterMetrics := readRuntimeMetrics()

	samplesMu.Lock()
	latencies := append([]time.Duration(nil), samples...)
	samplesMu.Unlock()
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	total := totalSnapshots.Load()
	errs := totalErrors.Load()
	runSeconds := math.Max(0.001, (*duration).Seconds())

	fmt.Println("=== formsync snapshot load benchmark ===")
	fmt.Printf("Clients: %d\n", *clients)
	fmt.Printf("Forms: %d\n", formCount)
	fmt.Printf("Watchers per form: %d\n", *watchers)
	fmt.Printf("Duration: %s\n", (*duration).String())
	fmt.Printf("Target per-client rate: %.2f snapshots/s\n", *rps)
	fmt.Printf("Stable fields: %d\n", *fields)
	fmt.Printf("Token bytes: %d\n", *tokenBytes)
	fmt.Printf("Total snapshots: %d\n", total)
	fmt.Printf("Errors: %d\n", errs)
	fmt.Printf("Throughput: %.1f snapshots/s\n", float64(total)/runSeconds)
	fmt.Printf("Broadcasts received: %d (%.1f/s)\n", totalBroadcasts.Load(), float64(totalBroadcasts.Load())/runSeconds)
	fmt.Println()

	if len(latencies) == 0 {
		fmt.Println("No latency samples recorded.")
	} else {
		fmt.Println("RTT (client POST → diff response decoded):")
		fmt.Printf("  min: %s\n", latencies[0])
		fmt.Printf("  p50: %s\n", percentile(latencies, 0.50))
		fmt.Printf("  p95: %s\n", percentile(latencies, 0.95))
		fmt.Printf("  p99: %s\n", percentile(latencies, 0.99))
		fmt.Printf("  max: %s\n", latencies[len(latencies)-1])
	}
	fmt.Println()

	gcCount := after.NumGC - before.NumGC
	var avgPause time.Duration
	if gcCount > 0 {
		avgPause = time.Duration((after.PauseTotalNs - before.PauseTotalNs) / uint64(gcCount))
	}

	fmt.Println("Go runtime / GC (process-wide):")
	fmt.Printf("  alloc:     %.2f MB\n", float64(after.TotalAlloc-before.TotalAlloc)/(1024*1024))
	fmt.Printf("  heap_live: %.2f MB\n", float64(after.HeapAlloc)/(1024*1024))
	fmt.Printf("  num_gc:    %d\n", gcCount)
	fmt.Printf("  gc_pause:  %s (total)\n", time.Duration(after.PauseTotalNs-before.PauseTotalNs))
	fmt.Printf("  gc_pause:  %s (avg)\n", avgPause)
	fmt.Printf("  gc_cpu:    %.2f%%\n", 100*cpuFraction(afterMetrics, beforeMetrics))
	fmt.Printf("  allocs:    %.2f M objects\n", float64(afterMetrics.heapAllocsObjects-beforeMetrics.heapAllocsObjects)/1_000_000)
}

func runClient(
	ctx context.Context,
	httpc *http.Client,
	baseURL string,
	formID string,
	clientID int,
	rps float64,
	fields int,
	tokenBytes int,
	samples chan<- time.Duration,
	totalSnapshots *atomic.Uint64,
) error {
	endpoint := fmt.Sprintf("%s/v1/forms/%s/snapshot", baseURL, formID)
	clientKey := fmt.Sprintf("c%d", clientID)
	tokenPath := "tokens/" + clientKey

	// The stable fields never change between snapshots; only the client's
	// token does. Steady state therefore diffs exactly one path while still
	// walking every field.
	snap := make(map[string]any, fields+1)
	for i := 0; i < fields; i++ {
		snap[fmt.Sprintf("field%03d", i)] = fmt.Sprintf("value %d", i)
	}
	tokens := map[string]any{}
	snap["tokens"] = tokens

	period := time.Duration(float64(time.Second) / rps)
	var seq uint64

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		seq++
		token := makeToken(clientID, seq, tokenBytes)
		tokens[clientKey] = token

		body, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("marshal snapshot: %w", err)
		}

		start := time.Now()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := httpc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("POST snapshot: %w", err)
		}

		var diff formdata.DiffResult
		decodeErr := json.NewDecoder(resp.Body).Decode(&diff)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("POST snapshot: status %d", resp.StatusCode)
		}
		if decodeErr != nil {
			return fmt.Errorf("decode diff: %w", decodeErr)
		}

		// The response must acknowledge this client's token; anything else
		// means the server lost or reordered the write.
		change, ok := diff.Diffs[tokenPath]
		if !ok {
			return fmt.Errorf("token path %s not in diff (paths=%v)", tokenPath, diff.Paths())
		}
		if change.New == nil || change.New.Scalar != token {
			return fmt.Errorf("token mismatch at %s", tokenPath)
		}

		rtt := time.Since(start)
		totalSnapshots.Add(1)
		samples <- rtt

		// Best-effort pacing. We intentionally gate on the response to
		// measure real queueing/tail behavior.
		elapsed := time.Since(start)
		if sleep := period - elapsed; sleep > 0 {
			timer := time.NewTimer(sleep)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
		}
	}
}

// runWatcher drains one watch connection, counting diff broadcasts until the
// context ends.
func runWatcher(ctx context.Context, wsURL string, totalBroadcasts *atomic.Uint64) error {
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial watch: %w", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("watch read: %w", err)
		}
		totalBroadcasts.Add(1)
	}
}

func makeToken(clientID int, seq uint64, tokenBytes int) string {
	// Always include client+seq for debugging, then pad with random bytes.
	prefix := fmt.Sprintf("c%d:%d:", clientID, seq)
	if tokenBytes <= len(prefix) {
		return prefix[:tokenBytes]
	}

	raw := make([]byte, (tokenBytes-len(prefix)+1)/2)
	_, _ = rand.Read(raw)
	suffix := hex.EncodeToString(raw)
	if len(suffix) > tokenBytes-len(prefix) {
		suffix = suffix[:tokenBytes-len(prefix)]
	}
	return prefix + suffix
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := int(math.Ceil(float64(len(sorted))*p)) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

type runtimeMetricsSnapshot struct {
	cpuTotalSeconds   float64
	cpuGCSeconds      float64
	heapAllocsObjects uint64
}

func readRuntimeMetrics() runtimeMetricsSnapshot {
	samples := []metrics.Sample{
		{Name: "/cpu/classes/total:cpu-seconds"},
		{Name: "/cpu/classes/gc/total:cpu-seconds"},
		{Name: "/gc/heap/allocs:objects"},
	}
	metrics.Read(samples)

	var out runtimeMetricsSnapshot
	for _, s := range samples {
		switch s.Name {
		case "/cpu/classes/total:cpu-seconds":
			out.cpuTotalSeconds = s.Value.Float64()
		case "/cpu/classes/gc/total:cpu-seconds":
			out.cpuGCSeconds = s.Value.Float64()
		case "/gc/heap/allocs:objects":
			out.heapAllocsObjects = s.Value.Uint64()
		}
	}
	return out
}

func cpuFraction(after, before runtimeMetricsSnapshot) float64 {
	total := after.cpuTotalSeconds - before.cpuTotalSeconds
	if total <= 0 {
		return 0
	}
	gc := after.cpuGCSeconds - before.cpuGCSeconds
	if gc < 0 {
		return 0
	}
	return gc / total
}
