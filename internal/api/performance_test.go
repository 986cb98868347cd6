package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// TestConcurrentScanLoad tests handling of 1000 concurrent scanners
func TestConcurrentScanLoad(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping load test in short mode")
	}

	ls := createLiveServer(t, 0, 0)
	token := ls.signup(t, "load@example.com")
	created := ls.createQR(t, token, "fiat", coffee)

	concurrentScanners := 1000
	scansPerScanner := 5

	var wg sync.WaitGroup
	var successCount int64
	var errorCount int64
	var totalDuration int64 // in nanoseconds

	startTime := time.Now()

	for i := 0; i < concurrentScanners; i++ {
		wg.Add(1)
		go func(scanner int) {
			defer wg.Done()

			for j := 0; j < scansPerScanner; j++ {
				req := httptest.NewRequest("GET", "/q/"+created.QR.Slug, nil)
				req.RemoteAddr = fmt.Sprintf("10.%d.%d.1:4000", scanner/256, scanner%256)
				w := httptest.NewRecorder()

				reqStart := time.Now()
				ls.Handler().ServeHTTP(w, req)
				atomic.AddInt64(&totalDuration, int64(time.Since(reqStart)))

				if w.Code == http.StatusFound {
					atomic.AddInt64(&successCount, 1)
				} else {
					atomic.AddInt64(&errorCount, 1)
				}
			}
		}(i)
	}

	wg.Wait()
	totalTime := time.Since(startTime)

	totalRequests := int64(concurrentScanners * scansPerScanner)
	avgDuration := time.Duration(totalDuration / totalRequests)

	t.Logf("Load test results:")
	t.Logf("  Concurrent scanners: %d", concurrentScanners)
	t.Logf("  Total scans: %d", totalRequests)
	t.Logf("  Redirected: %d", successCount)
	t.Logf("  Errors: %d", errorCount)
	t.Logf("  Total time: %v", totalTime)
	t.Logf("  Average response time: %v", avgDuration)
	t.Logf("  Throughput: %.2f req/s", float64(totalRequests)/totalTime.Seconds())

	if errorCount > 0 {
		t.Errorf("%d scans failed", errorCount)
	}

	record, err := ls.records.GetBySlug(t.Context(), created.QR.Slug)
	if err != nil {
		t.Fatalf("GetBySlug: %v", err)
	}
	if record.ScanCount != totalRequests {
		t.Errorf("scan count = %d, want %d", record.ScanCount, totalRequests)
	}

	if avgDuration > 500*time.Millisecond {
		t.Errorf("Average response time %v exceeds 500ms threshold", avgDuration)
	}
}

// BenchmarkHealthEndpoint benchmarks the health endpoint
func BenchmarkHealthEndpoint(b *testing.B) {
	server := createTestServer()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest("GET", "/health", nil)
		w := httptest.NewRecorder()
		server.Handler().ServeHTTP(w, req)
	}
}

// BenchmarkResolveQR benchmarks public resolution over the in-memory store
func BenchmarkResolveQR(b *testing.B) {
	ls := createLiveServer(b, 0, 0)
	token := ls.signup(b, "bench@example.com")
	created := ls.createQR(b, token, "fiat", coffee)
	path := "/api/qr/" + created.QR.Slug

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest("GET", path, nil)
		w := httptest.NewRecorder()
		ls.Handler().ServeHTTP(w, req)
	}
}

// BenchmarkConcurrentScans benchmarks concurrent scan handling
func BenchmarkConcurrentScans(b *testing.B) {
	ls := createLiveServer(b, 0, 0)
	token := ls.signup(b, "bench@example.com")
	created := ls.createQR(b, token, "fiat", coffee)
	path := "/q/" + created.QR.Slug

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			req := httptest.NewRequest("GET", path, nil)
			w := httptest.NewRecorder()
			ls.Handler().ServeHTTP(w, req)
		}
	})
}
