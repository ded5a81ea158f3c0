// internal/storage/leveldb/client.go
package leveldb

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/fawad-mazhar/runweave/internal/config"
	"github.com/fawad-mazhar/runweave/internal/models"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const (
	taskRunPrefix     = "taskrun:"
	workflowRunPrefix = "wfrun:"
	latestRunPrefix   = "latest:"
)

// Client is the local run-record store. Finished task and workflow runs are
// kept for a retention window and expired by a background cleanup routine.
type Client struct {
	db              *leveldb.DB
	retention       time.Duration
	cleanupInterval time.Duration
	mutex           sync.RWMutex
	stopCleanup     chan struct{}
}

type storedEntry struct {
	Value     []byte    `json:"value"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// NewClient opens the store at the configured path. Records older than
// retention are removed by periodic cleanup.
func NewClient(cfg config.LevelDBConfig, retention time.Duration) (*Client, error) {
	opts := &opt.Options{
		CompactionTableSize: 2 * 1024 * 1024, // 2MB
		WriteBuffer:         1 * 1024 * 1024, // 1MB
	}

	db, err := leveldb.OpenFile(cfg.Path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb: %w", err)
	}

	client := &Client{
		db:              db,
		retention:       retention,
		cleanupInterval: 6 * time.Hour,
		stopCleanup:     make(chan struct{}),
	}

	go client.startCleanupRoutine()

	return client, nil
}

func (c *Client) Close() error {
	close(c.stopCleanup)
	return c.db.Close()
}

// RecordTaskRun persists a finished task run record.
func (c *Client) RecordTaskRun(_ context.Context, run *models.TaskRun) error {
	data, err := run.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal task run: %w", err)
	}
	return c.put(taskRunPrefix+run.ID, data)
}

// RecordWorkflowRun persists a finished workflow run record and updates the
// latest-run pointer for its definition.
func (c *Client) RecordWorkflowRun(_ context.Context, run *models.WorkflowRun) error {
	data, err := run.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal workflow run: %w", err)
	}
	if err := c.put(workflowRunPrefix+run.ID, data); err != nil {
		return err
	}
	return c.put(latestRunPrefix+run.DefinitionID, data)
}

// GetTaskRun returns a stored task run, or nil when not found.
func (c *Client) GetTaskRun(id string) (*models.TaskRun, error) {
	data, err := c.get(taskRunPrefix + id)
	if err != nil || data == nil {
		return nil, err
	}
	var run models.TaskRun
	if err := run.FromJSON(data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task run: %w", err)
	}
	return &run, nil
}

// GetWorkflowRun returns a stored workflow run, or nil when not found.
func (c *Client) GetWorkflowRun(id string) (*models.WorkflowRun, error) {
	data, err := c.get(workflowRunPrefix + id)
	if err != nil || data == nil {
		return nil, err
	}
	var run models.WorkflowRun
	if err := run.FromJSON(data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow run: %w", err)
	}
	return &run, nil
}

// GetLatestWorkflowRun returns the most recently recorded run for a
// workflow definition, or nil when the definition has never run.
func (c *Client) GetLatestWorkflowRun(definitionID string) (*models.WorkflowRun, error) {
	data, err := c.get(latestRunPrefix + definitionID)
	if err != nil || data == nil {
		return nil, err
	}
	var run models.WorkflowRun
	if err := run.FromJSON(data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow run: %w", err)
	}
	return &run, nil
}

// ListWorkflowRuns returns every non-expired workflow run record.
func (c *Client) ListWorkflowRuns() ([]*models.WorkflowRun, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	iter := c.db.NewIterator(util.BytesPrefix([]byte(workflowRunPrefix)), nil)
	defer iter.Release()

	var runs []*models.WorkflowRun
	now := time.Now()
	for iter.Next() {
		var entry storedEntry
		if err := json.Unmarshal(iter.Value(), &entry); err != nil {
			continue
		}
		if now.After(entry.ExpiresAt) {
			continue
		}
		var run models.WorkflowRun
		if err := run.FromJSON(entry.Value); err != nil {
			continue
		}
		runs = append(runs, &run)
	}
	return runs, iter.Error()
}

func (c *Client) put(key string, value []byte) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry := storedEntry{
		Value:     value,
		ExpiresAt: time.Now().Add(c.retention),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	return c.db.Put([]byte(key), data, nil)
}

func (c *Client) get(key string) ([]byte, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	data, err := c.db.Get([]byte(key), nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}

	var entry storedEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entry: %w", err)
	}

	if time.Now().After(entry.ExpiresAt) {
		return nil, nil
	}

	return entry.Value, nil
}

func (c *Client) startCleanupRoutine() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stopCleanup:
			return
		}
	}
}

func (c *Client) cleanup() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	iter := c.db.NewIterator(util.BytesPrefix([]byte{}), nil)
	defer iter.Release()

	var keysToDelete [][]byte

	for iter.Next() {
		var entry storedEntry
		if err := json.Unmarshal(iter.Value(), &entry); err != nil {
			continue
		}

		if time.Now().After(entry.ExpiresAt) {
			key := append([]byte(nil), iter.Key()...)
			keysToDelete = append(keysToDelete, key)
		}
	}

	for _, key := range keysToDelete {
		c.db.Delete(key, nil)
	}
}
