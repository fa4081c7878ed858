// Command presence-sweep prunes stale voter heartbeats from the presence
// sorted sets. Keys carry a TTL, but a room that receives heartbeats steadily
// keeps its key alive while long-gone voters accumulate below the active
// window. Run this periodically (e.g. from cron) on busy deployments.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	scanCount    = 100
	activeWindow = 15 * time.Minute
)

func main() {
	var (
		redisURL = flag.String("redis", os.Getenv("REDIS_URL"), "Redis URL (or set REDIS_URL env)")
		dryRun   = flag.Bool("dry-run", false, "Dry run mode (don't write to Redis)")
		verbose  = flag.Bool("verbose", false, "Verbose logging")
	)
	flag.Parse()

	if *redisURL == "" {
		log.Fatal("Redis URL required (--redis or REDIS_URL env)")
	}

	// Configure logging
	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))

	// Connect to Redis
	opts, err := goredis.ParseURL(*redisURL)
	if err != nil {
		log.Fatalf("Failed to parse Redis URL: %v", err)
	}
	rdb := goredis.NewClient(opts)
	defer rdb.Close()

	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	slog.Info("Connected to Redis", "url", sanitizeURL(*redisURL))

	if err := sweepPresence(ctx, rdb, *dryRun); err != nil {
		log.Fatalf("Sweep failed: %v", err)
	}

	slog.Info("Sweep complete")
}

func sweepPresence(ctx context.Context, rdb *goredis.Client, dryRun bool) error {
	start := time.Now()
	cutoff := start.Add(-activeWindow).UnixMilli()
	var cursor uint64
	var scanned, pruned, emptied int

	slog.Info("Starting sweep", "dry_run", dryRun, "cutoff", time.UnixMilli(cutoff).Format(time.RFC3339))

	for {
		keys, nextCursor, err := rdb.Scan(ctx, cursor, "presence:*", scanCount).Result()
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}

		for _, key := range keys {
			scanned++

			if dryRun {
				stale, err := rdb.ZCount(ctx, key, "0", strconv.FormatInt(cutoff, 10)).Result()
				if err != nil {
					return fmt.Errorf("zcount failed for %s: %w", key, err)
				}
				slog.Debug("Would prune", "key", key, "stale", stale)
				pruned += int(stale)
				continue
			}

			removed, err := rdb.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(cutoff, 10)).Result()
			if err != nil {
				return fmt.Errorf("zremrangebyscore failed for %s: %w", key, err)
			}
			pruned += int(removed)

			remaining, err := rdb.ZCard(ctx, key).Result()
			if err != nil {
				return fmt.Errorf("zcard failed for %s: %w", key, err)
			}
			if remaining == 0 {
				if err := rdb.Del(ctx, key).Err(); err != nil {
					return fmt.Errorf("del failed for %s: %w", key, err)
				}
				emptied++
				slog.Debug("Removed empty room key", "key", key)
			}
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	duration := time.Since(start)
	slog.Info("Sweep summary",
		"rooms_scanned", scanned,
		"voters_pruned", pruned,
		"rooms_emptied", emptied,
		"duration_ms", duration.Milliseconds())

	return nil
}

func sanitizeURL(url string) string {
	// Hide password in Redis URL for logging
	if strings.Contains(url, "@") {
		parts := strings.Split(url, "@")
		if len(parts) == 2 {
			credParts := strings.Split(parts[0], ":")
			if len(credParts) >= 2 {
				return credParts[0] + ":***@" + parts[1]
			}
		}
	}
	return url
}
