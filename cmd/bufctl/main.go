package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mnohosten/bufferpool/pkg/storage"
)

// Config mirrors the flag-driven shape of the teacher's cmd/server
// configuration: flags parsed once in main, copied into a plain struct.
type Config struct {
	DataDir          string
	NumShards        int
	PoolSizePerShard int
	UseMmap          bool
	Verbose          bool
}

func DefaultConfig() *Config {
	return &Config{
		DataDir:          "./data",
		NumShards:        4,
		PoolSizePerShard: 64,
		UseMmap:          false,
	}
}

func main() {
	dataDir := flag.String("data-dir", "./data", "Data directory for shard files")
	numShards := flag.Int("num-shards", 4, "Number of buffer pool shards")
	poolSize := flag.Int("pool-size", 64, "Frames per shard (1 frame = 4KB)")
	useMmap := flag.Bool("mmap", false, "Use the memory-mapped disk manager instead of pread/pwrite")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	cfg := DefaultConfig()
	cfg.DataDir = *dataDir
	cfg.NumShards = *numShards
	cfg.PoolSizePerShard = *poolSize
	cfg.UseMmap = *useMmap
	cfg.Verbose = *verbose

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "bufctl: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *Config) error {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	pool, err := openPool(cfg)
	if err != nil {
		return fmt.Errorf("open pool: %w", err)
	}

	slog.Info("bufctl: pool ready", "num_shards", pool.NumShards(), "pool_size", pool.PoolSize())

	page, pageID, ok := pool.New()
	if !ok {
		return fmt.Errorf("allocate a page: pool exhausted")
	}
	copy(page.Data(), []byte("bufctl smoke write"))
	pool.Unpin(pageID, true)

	if !pool.Flush(pageID) {
		return fmt.Errorf("flush page %d: not resident", pageID)
	}

	pool.FlushAll()
	stats := pool.Stats()
	fmt.Fprintf(os.Stdout, "allocated page %d; pool stats: hits=%d misses=%d evictions=%d size=%d capacity=%d\n",
		pageID, stats["hits"], stats["misses"], stats["evictions"], stats["size"], stats["capacity"])
	return nil
}

// openPool wires one DiskManager per shard, rooted at cfg.DataDir, using
// either the plain pread/pwrite backend or the mmap'd one per cfg.UseMmap.
func openPool(cfg *Config) (*storage.ShardedPool, error) {
	var openErr error
	newDisk := func(shardIndex int) storage.DiskManager {
		if openErr != nil {
			return nil
		}
		path := filepath.Join(cfg.DataDir, fmt.Sprintf("shard-%d.db", shardIndex))
		if cfg.UseMmap {
			dm, err := storage.NewMmapDiskManager(path, nil)
			if err != nil {
				openErr = fmt.Errorf("shard %d: %w", shardIndex, err)
				return nil
			}
			return dm
		}
		dm, err := storage.NewFileDiskManager(path)
		if err != nil {
			openErr = fmt.Errorf("shard %d: %w", shardIndex, err)
			return nil
		}
		return dm
	}

	newLog := func(shardIndex int) storage.LogManager {
		if openErr != nil {
			return nil
		}
		path := filepath.Join(cfg.DataDir, fmt.Sprintf("shard-%d.wal", shardIndex))
		lm, err := storage.NewFileLogManager(path)
		if err != nil {
			openErr = fmt.Errorf("shard %d log: %w", shardIndex, err)
			return nil
		}
		return lm
	}

	pool := storage.NewShardedPool(cfg.NumShards, cfg.PoolSizePerShard, newDisk, newLog)
	if openErr != nil {
		return nil, openErr
	}
	return pool, nil
}
