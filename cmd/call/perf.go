package call

import (
	"context"
	"encoding/csv"
	"fmt"
	"github.com/ValentinKolb/dMux/cmd/util"
	libUtil "github.com/ValentinKolb/dMux/lib/util"
	"github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"log"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for dMux servers",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfSkip             = make([]string, 0)
)

func init() {
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. echo,delay)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of goroutines per cpu issuing calls concurrently"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the value for the echo-large test should be (in KB)"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfNumThreads = viper.GetInt("threads")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

// perfResult is the outcome of one benchmark
type perfResult struct {
	name      string
	bench     testing.BenchmarkResult
	latency   metrics.Timer
	errors    int64
	perWorker libUtil.DistributionStats
}

func runPerf(_ *cobra.Command, _ []string) error {

	fmt.Println("Performance testing tool for dMux servers")

	config, err := util.GetClientConfig()
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(config.String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	fmt.Println("starting tests...")

	small := []byte("test")
	large := make([]byte, perfLargeValueSizeKB*1024)

	benchmarks := []struct {
		name  string
		call  func(context.Context, []byte) ([]byte, error)
		value []byte
	}{
		{name: "echo", call: rpcClient.Echo, value: small},
		{name: "echo-large", call: rpcClient.Echo, value: large},
		{name: "delay", call: rpcClient.Delay, value: small},
	}

	var results []perfResult
	for _, bm := range benchmarks {
		if shouldSkip(bm.name) {
			printSkipped(bm.name)
			continue
		}
		result := benchmarkCall(bm.name, bm.call, bm.value)
		results = append(results, result)
		printResult(result)
	}

	if csvPath := viper.GetString("csv"); csvPath != "" {
		if err := writeResultsToCSV(csvPath, results); err != nil {
			return err
		}
		fmt.Printf("results written to %s\n", csvPath)
	}

	return nil
}

// benchmarkCall runs call in parallel on the shared connection and records
// the latency of every call and the number of calls issued per goroutine
func benchmarkCall(name string, call func(context.Context, []byte) ([]byte, error), value []byte) perfResult {
	result := perfResult{name: name}

	var mu sync.Mutex
	var errCount atomic.Int64
	var perWorker []float64

	result.bench = testing.Benchmark(func(b *testing.B) {
		// testing.Benchmark runs the function several times, keep only the last run
		timer := metrics.NewTimer()
		errCount.Store(0)
		mu.Lock()
		perWorker = perWorker[:0]
		mu.Unlock()

		b.SetParallelism(perfNumThreads)
		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			calls := 0
			for pb.Next() {
				start := time.Now()
				if _, err := call(context.Background(), value); err != nil {
					if errCount.Add(1) == 1 {
						log.Printf("(%s) - call failed: %v\n", name, err)
					}
				}
				timer.UpdateSince(start)
				calls++
			}
			mu.Lock()
			perWorker = append(perWorker, float64(calls))
			mu.Unlock()
		})

		result.latency = timer
	})

	result.errors = errCount.Load()
	result.perWorker = libUtil.NewDistributionStats(perWorker)
	return result
}

func shouldSkip(test string) bool {
	return slices.Contains(perfSkip, test)
}

func printSkipped(test string) {
	fmt.Printf("%-14sskipped\n", test)
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(r perfResult) {
	nsPerOp := math.Max(float64(r.bench.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	fmt.Printf("%-14s%s/op\t%.0f ops/sec\t%d errors\n", r.name, libUtil.FormatDuration(time.Duration(nsPerOp)), opsPerSec, r.errors)

	if r.latency == nil || r.latency.Count() == 0 {
		return
	}
	snap := r.latency.Snapshot()
	ps := snap.Percentiles([]float64{0.5, 0.9, 0.99})
	fmt.Printf("%-14slatency p50 %s  p90 %s  p99 %s  max %s\n", "",
		libUtil.FormatDuration(time.Duration(ps[0])),
		libUtil.FormatDuration(time.Duration(ps[1])),
		libUtil.FormatDuration(time.Duration(ps[2])),
		libUtil.FormatDuration(time.Duration(snap.Max())))
	fmt.Printf("%-14sworkers %d  calls/worker %.0f ± %.0f  fairness %.2f\n", "",
		r.perWorker.Count, r.perWorker.Mean, r.perWorker.StdDeviation, r.perWorker.DistributionQuality)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results []perfResult) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Test", "NsPerOp", "OpsPerSec", "Errors",
		"P50Ns", "P90Ns", "P99Ns", "MaxNs",
		"Workers", "Fairness",
		"Endpoint", "Mode", "Serializer", "Transport",
		"Threads", "LargeValueSizeKB",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for _, r := range results {
		nsPerOp := math.Max(float64(r.bench.NsPerOp()), 1)

		var ps []float64
		var maxNs int64
		if r.latency != nil {
			snap := r.latency.Snapshot()
			ps = snap.Percentiles([]float64{0.5, 0.9, 0.99})
			maxNs = snap.Max()
		} else {
			ps = []float64{0, 0, 0}
		}

		row := []string{
			r.name,
			fmt.Sprintf("%.0f", nsPerOp),
			fmt.Sprintf("%.0f", 1.0/(nsPerOp/1e9)),
			strconv.FormatInt(r.errors, 10),
			fmt.Sprintf("%.0f", ps[0]),
			fmt.Sprintf("%.0f", ps[1]),
			fmt.Sprintf("%.0f", ps[2]),
			strconv.FormatInt(maxNs, 10),
			strconv.Itoa(r.perWorker.Count),
			fmt.Sprintf("%.2f", r.perWorker.DistributionQuality),
			viper.GetString("endpoint"),
			viper.GetString("mode"),
			viper.GetString("serializer"),
			viper.GetString("transport"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", r.name, err)
		}
	}

	return nil
}
