// Package main provides boxcache-bench, a workload driver that times
// the cache flavors against each other.
//
// Each policy runs four single-threaded phases per entry bound: fill
// (populate to the bound), churn (inserts over twice the key space, so
// most inserts evict), read (gets with a ~50% hit rate) and mixed
// (reads and writes interleaved per --read-pct). Results land in a
// markdown report.
//
// Configuration comes from flags, optionally overlaid on a JSONC file:
//
//	boxcache-bench --entries=4096 --ops=2000000
//	boxcache-bench --config=bench.json --policies=lru,lfu
package main

import (
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
	"golang.org/x/sys/unix"

	"github.com/calvinalkan/boxcache"
)

// benchCache is the slice of the cache surface the workloads touch.
type benchCache interface {
	Insert(key, value string) (string, bool, error)
	Get(key string) (string, bool, error)
	Len() int
	MarshalBinary() ([]byte, error)
}

// foreverVTTL pins variable-TTL inserts to "never expires" so the
// workload matches the other flavors.
type foreverVTTL struct {
	*boxcache.VTTLCache[string, string]
}

func (w foreverVTTL) Insert(key, value string) (string, bool, error) {
	return w.VTTLCache.Insert(key, value, 0)
}

func buildCache(policy string, maxsize uint64) (benchCache, error) {
	opts := boxcache.Options{Capacity: maxsize}

	switch policy {
	case "none":
		return boxcache.New[string, string](maxsize, opts)
	case "rr":
		return boxcache.NewRR[string, string](maxsize, opts)
	case "fifo":
		return boxcache.NewFIFO[string, string](maxsize, opts)
	case "lru":
		return boxcache.NewLRU[string, string](maxsize, opts)
	case "lfu":
		return boxcache.NewLFU[string, string](maxsize, opts)
	case "ttl":
		return boxcache.NewTTL[string, string](maxsize, time.Hour, opts)
	case "vttl":
		c, err := boxcache.NewVTTL[string, string](maxsize, opts)
		if err != nil {
			return nil, err
		}

		return foreverVTTL{c}, nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownPolicy, policy)
	}
}

// result holds one policy's numbers for one entry bound, in ops/sec.
type result struct {
	policy    string
	fill      float64
	churn     float64
	read      float64
	mixed     float64
	hitRate   float64
	snapBytes int
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		policiesCSV string
		entriesCSV  string
		ops         int
		valueSize   int
		readPct     int
		seed        uint64
		outDir      string
	)

	flag.StringVarP(&configPath, "config", "c", "", "JSONC config file to overlay on the defaults")
	flag.StringVar(&policiesCSV, "policies", "", "comma-separated policies to bench (default: all)")
	flag.StringVar(&entriesCSV, "entries", "", "comma-separated entry bounds to bench")
	flag.IntVarP(&ops, "ops", "n", 0, "operations per phase")
	flag.IntVar(&valueSize, "value-size", 0, "value payload size in bytes")
	flag.IntVar(&readPct, "read-pct", 0, "reads per 100 operations in the mixed phase")
	flag.Uint64Var(&seed, "seed", 0, "workload seed")
	flag.StringVarP(&outDir, "out", "o", "", "output directory for reports")

	flag.Usage = func() {
		fmt.Fprint(os.Stderr, "Usage: boxcache-bench [flags]\n\n")
		fmt.Fprint(os.Stderr, "Times the boxcache flavors under fill, churn, read and mixed workloads.\n\n")
		fmt.Fprint(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	cfg := DefaultConfig()

	if configPath != "" {
		var err error

		cfg, err = LoadConfigFile(configPath, cfg)
		if err != nil {
			return err
		}
	}

	// Flags win over the config file.
	if policiesCSV != "" {
		cfg.Policies = splitCSV(policiesCSV)
	}

	if entriesCSV != "" {
		entries, err := parseCounts(entriesCSV)
		if err != nil {
			return err
		}

		cfg.Entries = entries
	}

	if ops > 0 {
		cfg.Ops = ops
	}

	if valueSize > 0 {
		cfg.ValueSize = valueSize
	}

	if flag.CommandLine.Changed("read-pct") {
		cfg.ReadPct = readPct
	}

	if seed > 0 {
		cfg.Seed = seed
	}

	if outDir != "" {
		cfg.OutDir = outDir
	}

	if err := validateConfig(cfg); err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.OutDir, 0o750); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	var report strings.Builder

	report.WriteString(systemInfo())

	for _, entries := range cfg.Entries {
		report.WriteString(fmt.Sprintf("### %d entries, %d ops per phase\n\n", entries, cfg.Ops))
		report.WriteString("| policy | fill ops/s | churn ops/s | read ops/s | mixed ops/s | hit rate | snapshot |\n")
		report.WriteString("|--------|-----------:|------------:|-----------:|------------:|---------:|---------:|\n")

		for _, policy := range cfg.Policies {
			fmt.Fprintf(os.Stderr, "benchmarking %s @ %d entries...\n", policy, entries)

			res, err := runWorkload(policy, entries, cfg)
			if err != nil {
				return fmt.Errorf("%s @ %d entries: %w", policy, entries, err)
			}

			report.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %.1f%% | %s |\n",
				res.policy,
				formatRate(res.fill), formatRate(res.churn), formatRate(res.read), formatRate(res.mixed),
				res.hitRate*100, formatBytes(res.snapBytes)))
		}

		report.WriteString("\n")
	}

	report.WriteString(processStats())

	timestamp := time.Now().UTC().Format("20060102-150405")
	outFile := filepath.Join(cfg.OutDir, fmt.Sprintf("boxcache_%s.md", timestamp))

	if err := os.WriteFile(outFile, []byte(report.String()), 0o600); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	fmt.Print(report.String())
	fmt.Fprintf(os.Stderr, "report written to %s\n", outFile)

	return nil
}

func splitCSV(s string) []string {
	var out []string

	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}

	return out
}

func parseCounts(s string) ([]int, error) {
	var out []int

	for _, part := range splitCSV(s) {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("%w: entry count %q", errConfigInvalid, part)
		}

		out = append(out, n)
	}

	return out, nil
}

func systemInfo() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("## Run %s\n\n", time.Now().UTC().Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("- %s\n", runtime.Version()))
	sb.WriteString(fmt.Sprintf("- %s/%s, %d cpus\n", runtime.GOOS, runtime.GOARCH, runtime.NumCPU()))
	sb.WriteString("- single goroutine per workload\n\n")

	return sb.String()
}

// processStats reports process-wide resource usage after all
// workloads ran.
func processStats() string {
	var ru unix.Rusage

	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return ""
	}

	var sb strings.Builder

	sb.WriteString("### Process\n\n")
	sb.WriteString(fmt.Sprintf("- user CPU: %s\n", timevalDuration(ru.Utime)))
	sb.WriteString(fmt.Sprintf("- system CPU: %s\n", timevalDuration(ru.Stime)))
	// Maxrss is KiB on Linux.
	sb.WriteString(fmt.Sprintf("- peak RSS: %.1f MiB\n", float64(ru.Maxrss)/1024))

	return sb.String()
}

func timevalDuration(tv unix.Timeval) time.Duration {
	return time.Duration(tv.Sec)*time.Second + time.Duration(tv.Usec)*time.Microsecond
}

func runWorkload(policy string, entries int, cfg Config) (result, error) {
	c, err := buildCache(policy, uint64(entries))
	if err != nil {
		return result{}, err
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, 0x9E3779B97F4A7C15))
	value := strings.Repeat("x", cfg.ValueSize)

	// Keys span twice the bound, so churn-phase inserts mostly evict
	// and read-phase gets hit roughly half the time.
	keys := make([]string, entries*2)
	for i := range keys {
		keys[i] = "key-" + strconv.Itoa(i)
	}

	res := result{policy: policy}

	// Fill: populate to the bound.
	start := time.Now()

	for i := range entries {
		if _, _, err := c.Insert(keys[i], value); err != nil {
			return result{}, fmt.Errorf("fill: %w", err)
		}
	}

	res.fill = rate(entries, time.Since(start))

	// Churn: random inserts across the whole key space. The policy-free
	// flavor cannot evict, so it stays within the bound (pure updates).
	churnSpan := len(keys)
	if policy == "none" {
		churnSpan = entries
	}

	start = time.Now()

	for range cfg.Ops {
		if _, _, err := c.Insert(keys[rng.IntN(churnSpan)], value); err != nil {
			return result{}, fmt.Errorf("churn: %w", err)
		}
	}

	res.churn = rate(cfg.Ops, time.Since(start))

	// Read: random gets across the whole key space.
	hits := 0
	start = time.Now()

	for range cfg.Ops {
		_, ok, err := c.Get(keys[rng.IntN(len(keys))])
		if err != nil {
			return result{}, fmt.Errorf("read: %w", err)
		}

		if ok {
			hits++
		}
	}

	res.read = rate(cfg.Ops, time.Since(start))
	res.hitRate = float64(hits) / float64(cfg.Ops)

	// Mixed: reads and writes interleaved.
	start = time.Now()

	for range cfg.Ops {
		if rng.IntN(100) < cfg.ReadPct {
			if _, _, err := c.Get(keys[rng.IntN(len(keys))]); err != nil {
				return result{}, fmt.Errorf("mixed read: %w", err)
			}

			continue
		}

		if _, _, err := c.Insert(keys[rng.IntN(churnSpan)], value); err != nil {
			return result{}, fmt.Errorf("mixed write: %w", err)
		}
	}

	res.mixed = rate(cfg.Ops, time.Since(start))

	snap, err := c.MarshalBinary()
	if err != nil {
		return result{}, fmt.Errorf("snapshot: %w", err)
	}

	res.snapBytes = len(snap)

	return res, nil
}

func rate(ops int, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}

	return float64(ops) / elapsed.Seconds()
}

func formatRate(opsPerSec float64) string {
	switch {
	case opsPerSec >= 1e6:
		return fmt.Sprintf("%.2fM", opsPerSec/1e6)
	case opsPerSec >= 1e3:
		return fmt.Sprintf("%.0fk", opsPerSec/1e3)
	default:
		return fmt.Sprintf("%.0f", opsPerSec)
	}
}

func formatBytes(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
