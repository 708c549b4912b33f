// boxy is an interactive shell for poking at boxcache flavors.
//
// Usage:
//
//	boxy [flags]
//
// Flags:
//
//	-p, --policy    Eviction policy: none, rr, fifo, lru, lfu, ttl, vttl (default: lru)
//	-m, --maxsize   Entry bound, 0 = unbounded (default: 1024)
//	-t, --ttl       Entry lifetime for the ttl policy (default: 60s)
//	-l, --load      Snapshot file to load at startup
//
// Commands (in REPL):
//
//	put <key> <value> [ttl]   Insert or update an entry
//	get <key>                 Look up a key (counts as an access)
//	peek <key>                Look up a key without promoting it
//	has <key>                 Check for presence
//	del <key>                 Remove an entry
//	pop                       Remove the entry first in policy order
//	drain <n>                 Remove up to n entries in policy order
//	scan [limit]              Walk entries in policy order
//	len                       Count entries
//	info                      Show cache configuration and usage
//	victim                    Show the next eviction candidate
//	recent                    Show the newest entry (fifo/lru)
//	index <n>                 Show the entry at policy position n (fifo/lfu)
//	expire                    Drop elapsed entries (ttl/vttl)
//	save <file>               Write a snapshot
//	load <file>               Replace contents from a snapshot
//	clear [keep]              Drop everything ('keep' retains storage)
//	shrink                    Release spare capacity
//	bulk <count> [prefix]     Insert N random entries
//	seq <count> [start]       Insert N sequential entries
//	bench <count>             Time put+get over random keys
//	help                      Show this help
//	exit / quit / q           Exit
package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/boxcache"
)

// replCache is the surface shared by every flavor once the
// variable-TTL insert has a fixed-lifetime wrapper.
type replCache interface {
	Insert(key, value string) (string, bool, error)
	Get(key string) (string, bool, error)
	Peek(key string) (string, bool, error)
	Contains(key string) (bool, error)
	Remove(key string) (string, bool, error)
	PopItem() (string, string, error)
	Drain(n int) []boxcache.Item[string, string]
	Clear(reuse bool)
	ShrinkToFit()
	Len() int
	MaxSize() uint64
	Capacity() uint64
	IsEmpty() bool
	IsFull() bool
	Items() *boxcache.Iter[boxcache.Item[string, string]]
	SaveFile(path string) error
	LoadFile(path string) error
}

// freeformVTTL pins plain puts to "never expires"; the put command
// forwards an explicit lifetime through session.putTTL instead.
type freeformVTTL struct {
	*boxcache.VTTLCache[string, string]
}

func (w freeformVTTL) Insert(key, value string) (string, bool, error) {
	return w.VTTLCache.Insert(key, value, 0)
}

// session is one open cache plus the capabilities its policy supports.
// Optional funcs are nil where the policy has no such notion.
type session struct {
	policy string
	ttl    time.Duration
	cache  replCache

	putTTL  func(key, value string, ttl time.Duration) (string, bool, error)
	getx    func(key string) (string, time.Time, bool, error)
	expire  func() int
	victim  func() (string, bool)
	recent  func() (string, bool)
	atIndex func(n int) (string, string, error)
}

func buildSession(policy string, maxsize uint64, ttl time.Duration) (*session, error) {
	s := &session{policy: policy}

	switch policy {
	case "none":
		c, err := boxcache.New[string, string](maxsize, boxcache.Options{})
		if err != nil {
			return nil, err
		}

		s.cache = c

	case "rr":
		c, err := boxcache.NewRR[string, string](maxsize, boxcache.Options{})
		if err != nil {
			return nil, err
		}

		s.cache = c

	case "fifo":
		c, err := boxcache.NewFIFO[string, string](maxsize, boxcache.Options{})
		if err != nil {
			return nil, err
		}

		s.cache = c
		s.victim = c.First
		s.recent = c.Last
		s.atIndex = c.GetIndex

	case "lru":
		c, err := boxcache.NewLRU[string, string](maxsize, boxcache.Options{})
		if err != nil {
			return nil, err
		}

		s.cache = c
		s.victim = c.LeastRecentlyUsed
		s.recent = c.MostRecentlyUsed

	case "lfu":
		c, err := boxcache.NewLFU[string, string](maxsize, boxcache.Options{})
		if err != nil {
			return nil, err
		}

		s.cache = c
		s.victim = func() (string, bool) { return c.LeastFrequentlyUsed(0) }
		s.atIndex = c.GetIndex

	case "ttl":
		c, err := boxcache.NewTTL[string, string](maxsize, ttl, boxcache.Options{})
		if err != nil {
			return nil, err
		}

		s.cache = c
		s.ttl = ttl
		s.getx = c.GetWithExpiry
		s.expire = c.Expire

	case "vttl":
		c, err := boxcache.NewVTTL[string, string](maxsize, boxcache.Options{})
		if err != nil {
			return nil, err
		}

		s.cache = freeformVTTL{c}
		s.putTTL = c.Insert
		s.getx = c.GetWithExpiry
		s.expire = c.Expire

	default:
		return nil, fmt.Errorf("unknown policy %q (want none, rr, fifo, lru, lfu, ttl or vttl)", policy)
	}

	return s, nil
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
		policy   string
		maxsize  uint64
		ttl      time.Duration
		loadPath string
	)

	flag.StringVarP(&policy, "policy", "p", "lru", "eviction policy: none, rr, fifo, lru, lfu, ttl, vttl")
	flag.Uint64VarP(&maxsize, "maxsize", "m", 1024, "entry bound, 0 = unbounded")
	flag.DurationVarP(&ttl, "ttl", "t", 60*time.Second, "entry lifetime for the ttl policy")
	flag.StringVarP(&loadPath, "load", "l", "", "snapshot file to load at startup")

	flag.Usage = func() {
		fmt.Fprint(os.Stderr, "Usage: boxy [flags]\n\n")
		fmt.Fprint(os.Stderr, "Interactive shell over an in-memory boxcache.\n\n")
		fmt.Fprint(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	s, err := buildSession(policy, maxsize, ttl)
	if err != nil {
		return err
	}

	if loadPath != "" {
		if err := s.cache.LoadFile(loadPath); err != nil {
			return fmt.Errorf("loading %s: %w", loadPath, err)
		}

		fmt.Printf("Loaded %d entries from %s.\n", s.cache.Len(), loadPath)
	}

	repl := &REPL{session: s}

	return repl.Run()
}

// REPL is the interactive command loop.
type REPL struct {
	session *session
	liner   *liner.State
}

// historyFile returns the path to the history file.
func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".boxy_history")
}

// Run starts the REPL loop.
func (r *REPL) Run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(r.completer)

	if f, err := os.Open(historyFile()); err == nil {
		r.liner.ReadHistory(f)
		f.Close()
	}

	s := r.session
	fmt.Printf("boxy - boxcache shell (policy=%s, maxsize=%s)\n", s.policy, formatBound(s.cache.MaxSize()))
	fmt.Println("Type 'help' for available commands.")
	fmt.Println()

	for {
		line, err := r.liner.Prompt("boxy> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Println("\nBye!")

				break
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		r.liner.AppendHistory(line)

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "exit", "quit", "q":
			fmt.Println("Bye!")

			r.saveHistory()

			return nil

		case "help", "?":
			r.printHelp()

		case "put":
			r.cmdPut(args)

		case "get":
			r.cmdGet(args)

		case "peek":
			r.cmdPeek(args)

		case "has", "contains":
			r.cmdHas(args)

		case "del", "delete":
			r.cmdDelete(args)

		case "pop":
			r.cmdPop()

		case "drain":
			r.cmdDrain(args)

		case "scan", "ls", "list":
			r.cmdScan(args)

		case "len", "count":
			fmt.Printf("Entries: %d\n", s.cache.Len())

		case "info":
			r.cmdInfo()

		case "victim":
			r.cmdVictim()

		case "recent":
			r.cmdRecent()

		case "index":
			r.cmdIndex(args)

		case "expire":
			r.cmdExpire()

		case "save":
			r.cmdSave(args)

		case "load":
			r.cmdLoad(args)

		case "clear", "cls":
			r.cmdClear(args)

		case "shrink":
			s.cache.ShrinkToFit()
			fmt.Printf("OK: capacity now %d\n", s.cache.Capacity())

		case "bulk":
			r.cmdBulk(args)

		case "seq":
			r.cmdSeq(args)

		case "bench":
			r.cmdBench(args)

		default:
			fmt.Printf("Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}

	r.saveHistory()

	return nil
}

// saveHistory persists command history to disk.
func (r *REPL) saveHistory() {
	if path := historyFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			r.liner.WriteHistory(f)
			f.Close()
		}
	}
}

// completer provides tab completion for commands.
func (r *REPL) completer(line string) []string {
	commands := []string{
		"put", "get", "peek", "has", "contains",
		"del", "delete", "pop", "drain",
		"scan", "ls", "list", "len", "count",
		"info", "victim", "recent", "index", "expire",
		"save", "load", "clear", "shrink",
		"bulk", "seq", "bench",
		"help", "exit", "quit", "q",
	}

	var completions []string

	lower := strings.ToLower(line)
	for _, cmd := range commands {
		if strings.HasPrefix(cmd, lower) {
			completions = append(completions, cmd)
		}
	}

	return completions
}

func (r *REPL) printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  put <key> <value> [ttl]   Insert or update an entry")
	fmt.Println("  get <key>                 Look up a key (counts as an access)")
	fmt.Println("  peek <key>                Look up a key without promoting it")
	fmt.Println("  has <key>                 Check for presence")
	fmt.Println("  del <key>                 Remove an entry")
	fmt.Println("  pop                       Remove the entry first in policy order")
	fmt.Println("  drain <n>                 Remove up to n entries in policy order")
	fmt.Println("  scan [limit]              Walk entries in policy order")
	fmt.Println("  len                       Count entries")
	fmt.Println("  info                      Show cache configuration and usage")
	fmt.Println("  victim                    Show the next eviction candidate")
	fmt.Println("  recent                    Show the newest entry (fifo/lru)")
	fmt.Println("  index <n>                 Show the entry at policy position n (fifo/lfu)")
	fmt.Println("  expire                    Drop elapsed entries (ttl/vttl)")
	fmt.Println("  save <file>               Write a snapshot")
	fmt.Println("  load <file>               Replace contents from a snapshot")
	fmt.Println("  clear [keep]              Drop everything ('keep' retains storage)")
	fmt.Println("  shrink                    Release spare capacity")
	fmt.Println("  bulk <count> [prefix]     Insert N random entries")
	fmt.Println("  seq <count> [start]       Insert N sequential entries")
	fmt.Println("  bench <count>             Time put+get over random keys")
	fmt.Println("  help                      Show this help")
	fmt.Println("  exit / quit / q           Exit")

	if r.session.putTTL != nil {
		fmt.Println()
		fmt.Println("TTLs: Go durations (e.g., '30s', '5m'); omit or use '0' for no expiry.")
	}
}

func (r *REPL) cmdPut(args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: put <key> <value> [ttl]")

		return
	}

	key, value := args[0], args[1]

	if len(args) >= 3 {
		if r.session.putTTL == nil {
			fmt.Printf("Warning: policy %s has no per-entry lifetimes, ignoring %q\n", r.session.policy, args[2])
		} else {
			ttl, err := time.ParseDuration(args[2])
			if err != nil {
				fmt.Printf("Error parsing ttl: %v\n", err)

				return
			}

			prev, replaced, err := r.session.putTTL(key, value, ttl)
			if err != nil {
				fmt.Printf("Error: %v\n", err)

				return
			}

			reportPut(key, prev, replaced)

			return
		}
	}

	prev, replaced, err := r.session.cache.Insert(key, value)
	if err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	reportPut(key, prev, replaced)
}

func reportPut(key, prev string, replaced bool) {
	if replaced {
		fmt.Printf("OK: updated %q (was %q)\n", key, prev)

		return
	}

	fmt.Printf("OK: put %q\n", key)
}

func (r *REPL) cmdGet(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: get <key>")

		return
	}

	key := args[0]

	if r.session.getx != nil {
		value, expiry, found, err := r.session.getx(key)
		if err != nil {
			fmt.Printf("Error: %v\n", err)

			return
		}

		if !found {
			fmt.Println("(not found)")

			return
		}

		fmt.Printf("Value:  %q\n", value)

		if expiry.IsZero() {
			fmt.Println("Expiry: never")
		} else {
			fmt.Printf("Expiry: %s (in %s)\n", expiry.Format(time.RFC3339), time.Until(expiry).Round(time.Millisecond))
		}

		return
	}

	value, found, err := r.session.cache.Get(key)
	if err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	if !found {
		fmt.Println("(not found)")

		return
	}

	fmt.Printf("Value: %q\n", value)
}

func (r *REPL) cmdPeek(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: peek <key>")

		return
	}

	value, found, err := r.session.cache.Peek(args[0])
	if err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	if !found {
		fmt.Println("(not found)")

		return
	}

	fmt.Printf("Value: %q\n", value)
}

func (r *REPL) cmdHas(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: has <key>")

		return
	}

	found, err := r.session.cache.Contains(args[0])
	if err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	fmt.Printf("%v\n", found)
}

func (r *REPL) cmdDelete(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: del <key>")

		return
	}

	key := args[0]

	value, existed, err := r.session.cache.Remove(key)
	if err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	if existed {
		fmt.Printf("OK: deleted %q (was %q)\n", key, value)
	} else {
		fmt.Printf("OK: %q did not exist\n", key)
	}
}

func (r *REPL) cmdPop() {
	key, value, err := r.session.cache.PopItem()
	if err != nil {
		if errors.Is(err, boxcache.ErrKeyNotFound) {
			fmt.Println("(empty)")

			return
		}

		fmt.Printf("Error: %v\n", err)

		return
	}

	fmt.Printf("OK: popped %q = %q\n", key, value)
}

func (r *REPL) cmdDrain(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: drain <n>")

		return
	}

	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		fmt.Println("Error: n must be a positive integer")

		return
	}

	items := r.session.cache.Drain(n)
	if len(items) == 0 {
		fmt.Println("(empty)")

		return
	}

	for i, item := range items {
		fmt.Printf("%3d. %q = %q\n", i+1, item.Key, item.Value)
	}
}

func (r *REPL) cmdScan(args []string) {
	limit := 20

	if len(args) >= 1 {
		var err error

		limit, err = strconv.Atoi(args[0])
		if err != nil || limit < 1 {
			fmt.Println("Error: limit must be a positive integer")

			return
		}
	}

	shown := 0

	it := r.session.cache.Items()
	for shown < limit && it.Next() {
		item := it.Value()
		shown++
		fmt.Printf("%3d. %q = %q\n", shown, item.Key, item.Value)
	}

	if err := it.Err(); err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	if shown == 0 {
		fmt.Println("(empty)")

		return
	}

	if shown == limit && r.session.cache.Len() > limit {
		fmt.Printf("... (showing first %d of %d, use 'scan <limit>' for more)\n", limit, r.session.cache.Len())
	}
}

func formatBound(maxsize uint64) string {
	if maxsize == 0 {
		return "unbounded"
	}

	return strconv.FormatUint(maxsize, 10)
}

func (r *REPL) cmdInfo() {
	s := r.session
	c := s.cache

	fmt.Printf("Cache Info:\n")
	fmt.Printf("  Policy:    %s\n", s.policy)
	fmt.Printf("  Max size:  %s\n", formatBound(c.MaxSize()))
	fmt.Printf("  Capacity:  %d slots\n", c.Capacity())
	fmt.Printf("  Entries:   %d\n", c.Len())
	fmt.Printf("  Empty:     %v\n", c.IsEmpty())
	fmt.Printf("  Full:      %v\n", c.IsFull())

	if s.policy == "ttl" {
		fmt.Printf("  TTL:       %s\n", s.ttl)
	}
}

func (r *REPL) cmdVictim() {
	if r.session.victim == nil {
		fmt.Printf("Policy %s has no inspectable eviction order.\n", r.session.policy)

		return
	}

	key, ok := r.session.victim()
	if !ok {
		fmt.Println("(empty)")

		return
	}

	fmt.Printf("Next eviction: %q\n", key)
}

func (r *REPL) cmdRecent() {
	if r.session.recent == nil {
		fmt.Printf("Policy %s has no inspectable recency.\n", r.session.policy)

		return
	}

	key, ok := r.session.recent()
	if !ok {
		fmt.Println("(empty)")

		return
	}

	fmt.Printf("Most recent: %q\n", key)
}

func (r *REPL) cmdIndex(args []string) {
	if r.session.atIndex == nil {
		fmt.Printf("Policy %s has no positional lookup.\n", r.session.policy)

		return
	}

	if len(args) < 1 {
		fmt.Println("Usage: index <n>")

		return
	}

	n, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Printf("Error parsing index: %v\n", err)

		return
	}

	key, value, err := r.session.atIndex(n)
	if err != nil {
		if errors.Is(err, boxcache.ErrKeyNotFound) {
			fmt.Printf("(no entry at position %d)\n", n)

			return
		}

		fmt.Printf("Error: %v\n", err)

		return
	}

	fmt.Printf("%q = %q\n", key, value)
}

func (r *REPL) cmdExpire() {
	if r.session.expire == nil {
		fmt.Printf("Policy %s has no expiring entries.\n", r.session.policy)

		return
	}

	n := r.session.expire()
	fmt.Printf("OK: dropped %d elapsed entries\n", n)
}

func (r *REPL) cmdSave(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: save <file>")

		return
	}

	if err := r.session.cache.SaveFile(args[0]); err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	fmt.Printf("OK: saved %d entries to %s\n", r.session.cache.Len(), args[0])
}

func (r *REPL) cmdLoad(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: load <file>")

		return
	}

	if err := r.session.cache.LoadFile(args[0]); err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	fmt.Printf("OK: loaded %d entries from %s\n", r.session.cache.Len(), args[0])
}

func (r *REPL) cmdClear(args []string) {
	keep := len(args) >= 1 && strings.EqualFold(args[0], "keep")

	r.session.cache.Clear(keep)

	if keep {
		fmt.Printf("OK: cleared (capacity %d retained)\n", r.session.cache.Capacity())
	} else {
		fmt.Println("OK: cleared")
	}
}

func randomKey(prefix string) string {
	var raw [8]byte

	rand.Read(raw[:])

	return prefix + hex.EncodeToString(raw[:])
}

func (r *REPL) cmdBulk(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: bulk <count> [prefix]")

		return
	}

	count, err := strconv.Atoi(args[0])
	if err != nil || count < 1 {
		fmt.Println("Error: count must be a positive integer")

		return
	}

	prefix := ""
	if len(args) >= 2 {
		prefix = args[1]
	}

	start := time.Now()

	for i := range count {
		value := strconv.FormatInt(time.Now().UnixNano(), 10)

		if _, _, err := r.session.cache.Insert(randomKey(prefix), value); err != nil {
			fmt.Printf("Error at entry %d: %v\n", i+1, err)

			return
		}
	}

	elapsed := time.Since(start)
	rate := float64(count) / elapsed.Seconds()
	fmt.Printf("OK: inserted %d entries in %v (%.0f ops/sec)\n", count, elapsed.Round(time.Millisecond), rate)
}

func (r *REPL) cmdSeq(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: seq <count> [start]")

		return
	}

	count, err := strconv.Atoi(args[0])
	if err != nil || count < 1 {
		fmt.Println("Error: count must be a positive integer")

		return
	}

	startNum := uint64(1)
	if len(args) >= 2 {
		startNum, err = strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			fmt.Printf("Error parsing start: %v\n", err)

			return
		}
	}

	start := time.Now()

	for i := range count {
		seqNum := startNum + uint64(i)
		key := fmt.Sprintf("k%08d", seqNum)

		if _, _, err := r.session.cache.Insert(key, strconv.FormatUint(seqNum, 10)); err != nil {
			fmt.Printf("Error at entry %d: %v\n", i+1, err)

			return
		}
	}

	elapsed := time.Since(start)
	rate := float64(count) / elapsed.Seconds()
	fmt.Printf("OK: inserted %d sequential entries in %v (%.0f ops/sec)\n", count, elapsed.Round(time.Millisecond), rate)
}

func (r *REPL) cmdBench(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: bench <count>")

		return
	}

	count, err := strconv.Atoi(args[0])
	if err != nil || count < 1 {
		fmt.Println("Error: count must be a positive integer")

		return
	}

	keys := make([]string, count)
	for i := range keys {
		keys[i] = randomKey("bench-")
	}

	fmt.Printf("Benchmarking %d operations...\n", count)

	putStart := time.Now()

	for i, key := range keys {
		if _, _, err := r.session.cache.Insert(key, strconv.Itoa(i)); err != nil {
			fmt.Printf("Error at put %d: %v\n", i+1, err)

			return
		}
	}

	putElapsed := time.Since(putStart)

	getStart := time.Now()
	hits := 0

	for _, key := range keys {
		_, found, err := r.session.cache.Get(key)
		if err != nil {
			fmt.Printf("Error on get: %v\n", err)

			return
		}

		if found {
			hits++
		}
	}

	getElapsed := time.Since(getStart)

	fmt.Printf("\nResults:\n")
	fmt.Printf("  Puts:  %d ops in %v (%.0f ops/sec)\n",
		count, putElapsed.Round(time.Millisecond), float64(count)/putElapsed.Seconds())
	fmt.Printf("  Gets:  %d ops in %v (%.0f ops/sec), %d hits\n",
		count, getElapsed.Round(time.Millisecond), float64(count)/getElapsed.Seconds(), hits)
}
