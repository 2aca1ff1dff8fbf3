package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/Quantum1000/the-factory-must-grow/internal/eventbus"
)

const (
	defaultNATSURL = "nats://127.0.0.1:4222"
	timeFormat     = "2006-01-02T15:04:05Z"
)

func main() {
	var (
		natsURL    = flag.String("nats", defaultNATSURL, "NATS server URL")
		stream     = flag.String("stream", "FACTORY_EVENTS", "JetStream stream name")
		command    = flag.String("cmd", "tail", "Command: tail, stats, types")
		eventTypes = flag.String("types", "", "Event types filter (comma-separated)")
		worldID    = flag.String("world", "", "World ID filter")
		since      = flag.String("since", "1h", "Time duration since now (e.g., 1h, 30m)")
		limit      = flag.Int("limit", 100, "Maximum number of events")
		follow     = flag.Bool("follow", false, "Follow new events (like tail -f)")
		idle       = flag.Duration("idle", 2*time.Second, "Stop reading after this long without events")
	)
	flag.Parse()

	startTime, err := parseSinceTime(*since, time.Now())
	if err != nil {
		log.Fatalf("❌ Invalid since time: %v", err)
	}

	bus, err := eventbus.NewJetStreamBus(*natsURL, *stream, 0)
	if err != nil {
		log.Fatalf("❌ Failed to connect to NATS: %v", err)
	}
	defer bus.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := &readOptions{
		Filter:  eventbus.Filter{Types: parseStringList(*eventTypes)},
		WorldID: *worldID,
		Since:   startTime,
		Idle:    *idle,
	}

	switch *command {
	case "tail":
		opts.Limit = *limit
		opts.Follow = *follow
		err = tailEvents(ctx, bus, opts)
	case "stats":
		err = showStats(ctx, bus, opts)
	case "types":
		err = showTypes(ctx, bus, opts)
	default:
		fmt.Printf("❌ Unknown command: %s\n", *command)
		fmt.Println("Available commands: tail, stats, types")
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("❌ %s failed: %v", *command, err)
	}
}

type readOptions struct {
	Filter  eventbus.Filter
	WorldID string
	Since   time.Time
	Limit   int
	Follow  bool
	Idle    time.Duration
}

// readEvents подписывается на стрим и вызывает fn для каждого подходящего события.
// Чтение останавливается, когда fn возвращает false, при отмене ctx или,
// если follow не задан, после opts.Idle без новых событий.
func readEvents(ctx context.Context, bus eventbus.EventBus, opts *readOptions, fn func(ev *eventbus.Envelope, te eventbus.TileEvent) bool) error {
	events := make(chan *eventbus.Envelope, 256)
	sub, err := bus.Subscribe(ctx, opts.Filter, func(_ context.Context, ev *eventbus.Envelope) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	timer := time.NewTimer(opts.Idle)
	defer timer.Stop()

	for {
		var idleCh <-chan time.Time
		if !opts.Follow {
			idleCh = timer.C
		}
		select {
		case <-ctx.Done():
			return nil
		case <-idleCh:
			return nil
		case ev := <-events:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(opts.Idle)

			if ev.Timestamp.Before(opts.Since) {
				continue
			}
			te, err := eventbus.DecodeTileEvent(ev)
			if err != nil {
				continue
			}
			if opts.WorldID != "" && te.WorldID != opts.WorldID {
				continue
			}
			if !fn(ev, te) {
				return nil
			}
		}
	}
}

// tailEvents выводит события по мере поступления
func tailEvents(ctx context.Context, bus eventbus.EventBus, opts *readOptions) error {
	fmt.Printf("🎬 Tailing events (limit: %d, follow: %v)\n", opts.Limit, opts.Follow)

	eventCount := 0
	err := readEvents(ctx, bus, opts, func(ev *eventbus.Envelope, te eventbus.TileEvent) bool {
		printEvent(ev, te)
		eventCount++
		return opts.Follow || eventCount < opts.Limit
	})
	if err != nil {
		return err
	}

	fmt.Printf("\n📊 Total events: %d\n", eventCount)
	return nil
}

// showStats выводит количество событий по типам
func showStats(ctx context.Context, bus eventbus.EventBus, opts *readOptions) error {
	fmt.Println("📊 Event statistics")

	byType := make(map[string]int)
	byKind := make(map[string]int)
	total := 0
	err := readEvents(ctx, bus, opts, func(ev *eventbus.Envelope, te eventbus.TileEvent) bool {
		byType[ev.EventType]++
		byKind[te.Type.Kind.String()]++
		total++
		return true
	})
	if err != nil {
		return err
	}

	fmt.Printf("Since: %s\n", opts.Since.UTC().Format(timeFormat))
	fmt.Printf("Total events: %d\n", total)
	fmt.Println("\nBy event type:")
	printCounts(byType)
	fmt.Println("\nBy tile kind:")
	printCounts(byKind)
	return nil
}

type typeInfo struct {
	count     int
	worlds    map[string]struct{}
	firstSeen time.Time
	lastSeen  time.Time
}

// showTypes выводит встреченные типы событий
func showTypes(ctx context.Context, bus eventbus.EventBus, opts *readOptions) error {
	fmt.Println("📋 Seen event types")

	types := make(map[string]*typeInfo)
	err := readEvents(ctx, bus, opts, func(ev *eventbus.Envelope, te eventbus.TileEvent) bool {
		info, ok := types[ev.EventType]
		if !ok {
			info = &typeInfo{worlds: make(map[string]struct{}), firstSeen: ev.Timestamp}
			types[ev.EventType] = info
		}
		info.count++
		info.worlds[te.WorldID] = struct{}{}
		info.lastSeen = ev.Timestamp
		return true
	})
	if err != nil {
		return err
	}

	for _, name := range sortedKeys(types) {
		info := types[name]
		worlds := make([]string, 0, len(info.worlds))
		for w := range info.worlds {
			worlds = append(worlds, w)
		}
		sort.Strings(worlds)

		fmt.Printf("Type: %s\n", name)
		fmt.Printf("  Count: %d\n", info.count)
		fmt.Printf("  Worlds: %v\n", worlds)
		fmt.Printf("  First seen: %s\n", info.firstSeen.UTC().Format(timeFormat))
		fmt.Printf("  Last seen: %s\n", info.lastSeen.UTC().Format(timeFormat))
		fmt.Println()
	}
	return nil
}

// printEvent выводит событие в читаемом формате
func printEvent(ev *eventbus.Envelope, te eventbus.TileEvent) {
	fmt.Printf("[%s] %s/%s [%s] %s\n",
		ev.Timestamp.Format("15:04:05"),
		te.WorldID,
		ev.Source,
		ev.EventType,
		ev.ID)
	fmt.Printf("  Tile: %s index=%s type=%s rotation=%d occupied=%d\n",
		te.Position, te.Index, te.Type, te.Rotation, te.Occupied)
}

func printCounts(counts map[string]int) {
	for _, k := range sortedKeys(counts) {
		fmt.Printf("  %s: %d events\n", k, counts[k])
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// parseStringList парсит строку с разделителями-запятыми
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// parseSinceTime парсит относительное время типа "1h", "30m"
func parseSinceTime(since string, from time.Time) (time.Time, error) {
	if since == "" {
		return time.Time{}, nil
	}

	duration, err := time.ParseDuration(since)
	if err != nil {
		// Пробуем парсить как абсолютное время
		return time.Parse(timeFormat, since)
	}

	return from.Add(-duration), nil
}
