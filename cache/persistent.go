package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"lyrics-sync-go/logcolors"
	"lyrics-sync-go/utils"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

const bucketName = "cache"

// PersistentCache is the KV substrate behind every Store: BoltDB on disk with
// an in-memory mirror for fast reads.
type PersistentCache struct {
	db                 *bolt.DB
	memCache           sync.Map
	mu                 sync.Mutex // serializes Backup against writers
	dbPath             string
	backupPath         string
	compressionEnabled bool
}

// rawEntry is the on-disk wrapper; Value may be gzip+base64 encoded.
type rawEntry struct {
	Value string `json:"value"`
}

// NewPersistentCache opens (or creates) the database at dbPath.
func NewPersistentCache(dbPath string, backupPath string, compressionEnabled bool) (*PersistentCache, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	if backupPath != "" {
		if err := os.MkdirAll(backupPath, 0755); err != nil {
			return nil, fmt.Errorf("failed to create backup directory: %w", err)
		}
	}

	db, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}

	pc := &PersistentCache{
		db:                 db,
		dbPath:             dbPath,
		backupPath:         backupPath,
		compressionEnabled: compressionEnabled,
	}

	if err := pc.loadToMemory(); err != nil {
		log.Warnf("%s Failed to preload cache to memory: %v", logcolors.LogCache, err)
	}

	log.Infof("%s Persistent cache initialized at %s (compression: %v)", logcolors.LogCacheInit, dbPath, compressionEnabled)
	return pc, nil
}

func openDB(dbPath string) (*bolt.DB, error) {
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache bucket: %w", err)
	}
	return db, nil
}

func (pc *PersistentCache) loadToMemory() error {
	count := 0
	err := pc.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return nil
		}

		return b.ForEach(func(k, v []byte) error {
			var entry rawEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				log.Warnf("%s Skipping unreadable entry %s: %v", logcolors.LogCache, string(k), err)
				return nil
			}
			pc.memCache.Store(string(k), entry)
			count++
			return nil
		})
	})
	if err != nil {
		return err
	}

	log.Debugf("%s Loaded %d entries from disk to memory", logcolors.LogCache, count)
	return nil
}

// decode accepts both compressed and plain entries regardless of the current
// compression setting.
func (pc *PersistentCache) decode(key string, entry rawEntry) (string, error) {
	value, err := utils.Decompress(entry.Value)
	if err != nil {
		return "", fmt.Errorf("decompress %s: %w", key, err)
	}
	return value, nil
}

// Get returns the stored value. A missing key reports found=false with a nil error; decoding
// and storage failures are returned as errors.
func (pc *PersistentCache) Get(key string) (string, bool, error) {
	if v, ok := pc.memCache.Load(key); ok {
		value, err := pc.decode(key, v.(rawEntry))
		if err != nil {
			return "", false, err
		}
		return value, true, nil
	}

	var (
		entry rawEntry
		found bool
	)
	err := pc.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		data := b.Get([]byte(key))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &entry)
	})
	if err != nil {
		return "", false, err
	}
	if !found {
		return "", false, nil
	}

	pc.memCache.Store(key, entry)
	value, err := pc.decode(key, entry)
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set stores a value in memory and on disk.
func (pc *PersistentCache) Set(key, value string) error {
	finalValue := value
	if pc.compressionEnabled {
		compressed, err := utils.Compress(value)
		if err != nil {
			return fmt.Errorf("compress %s: %w", key, err)
		}
		finalValue = compressed
	}

	entry := rawEntry{Value: finalValue}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	pc.mu.Lock()
	defer pc.mu.Unlock()

	err = pc.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		return b.Put([]byte(key), data)
	})
	if err != nil {
		return err
	}
	pc.memCache.Store(key, entry)
	return nil
}

// Delete removes a key from cache
func (pc *PersistentCache) Delete(key string) error {
	pc.memCache.Delete(key)

	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		return b.Delete([]byte(key))
	})
}

// ClearPrefix removes every key starting with prefix and reports how many were removed.
// An empty prefix clears the whole cache.
func (pc *PersistentCache) ClearPrefix(prefix string) (int, error) {
	var keys []string
	pc.memCache.Range(func(k, _ interface{}) bool {
		if strings.HasPrefix(k.(string), prefix) {
			keys = append(keys, k.(string))
		}
		return true
	})

	pc.mu.Lock()
	defer pc.mu.Unlock()
	err := pc.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		for _, k := range keys {
			if err := b.Delete([]byte(k)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, k := range keys {
		pc.memCache.Delete(k)
	}
	return len(keys), nil
}

// Stats returns the number of keys and the approximate size of the stored values,
// grouped by the namespace part of the key.
func (pc *PersistentCache) Stats() (numKeys int, sizeInKB int, perNamespace map[string]int) {
	perNamespace = make(map[string]int)
	size := 0
	pc.memCache.Range(func(k, v interface{}) bool {
		key := k.(string)
		numKeys++
		size += len(key) + len(v.(rawEntry).Value)
		if i := strings.Index(key, ":"); i > 0 {
			perNamespace[key[:i]]++
		}
		return true
	})
	sizeInKB = size / 1024
	return
}

// Backup copies a consistent snapshot of the database into the backup directory
// and returns the backup file path.
func (pc *PersistentCache) Backup() (string, error) {
	if pc.backupPath == "" {
		return "", fmt.Errorf("no backup path configured")
	}
	name := fmt.Sprintf("cache_backup_%s.db", time.Now().Format("2006-01-02_15-04-05"))
	target := filepath.Join(pc.backupPath, name)

	f, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("failed to create backup file: %w", err)
	}
	defer f.Close()

	pc.mu.Lock()
	defer pc.mu.Unlock()
	err = pc.db.View(func(tx *bolt.Tx) error {
		_, err := tx.WriteTo(f)
		return err
	})
	if err != nil {
		os.Remove(target)
		return "", fmt.Errorf("failed to write backup: %w", err)
	}
	if err := f.Sync(); err != nil {
		return "", err
	}

	log.Infof("%s Backup created: %s", logcolors.LogCacheBackup, target)
	return target, nil
}

// Close closes the database connection
func (pc *PersistentCache) Close() error {
	if pc.db != nil {
		return pc.db.Close()
	}
	return nil
}
