// Package database provides the rqlite-backed key/value store used to
// persist the live-fetched extra rows between runs.
package database

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/davecgh/go-spew/spew"
	rqlitehttp "github.com/rqlite/rqlite-go-http"
	"github.com/rs/zerolog"

	"goldboard/store"
)

const (
	// SQL statements.
	createKVTableSQL = "CREATE TABLE IF NOT EXISTS kv (key TEXT PRIMARY KEY, value TEXT, updatedon INTEGER)"
	upsertKVSQL      = "INSERT INTO kv(key, value, updatedon) VALUES(?,?,?) ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedon = excluded.updatedon"
	findKVSQL        = "SELECT value FROM kv WHERE key = ?"
)

// KVConfig is the configuration for the key/value store.
type KVConfig struct {
	// Endpoint represents the database connection endpoint.
	Endpoint string
	// User is the database user.
	User string
	// Pass is the database user pass.
	Pass string
	// Logger is the database logger.
	Logger *zerolog.Logger
}

// KV represents the key/value store connection.
type KV struct {
	cfg    *KVConfig
	client *rqlitehttp.Client
}

// Ensure the key/value store implements the KVStorer interface.
var _ store.KVStorer = (*KV)(nil)

// NewKV initializes a new key/value store connection.
func NewKV(ctx context.Context, cfg *KVConfig) (*KV, error) {
	httpc := &http.Client{Timeout: time.Second * 5}
	client, err := rqlitehttp.NewClient(cfg.Endpoint, httpc)
	if err != nil {
		return nil, fmt.Errorf("creating database client: %w", err)
	}

	if cfg.User != "" {
		client.SetBasicAuth(cfg.User, cfg.Pass)
	}

	kv := &KV{
		cfg:    cfg,
		client: client,
	}

	err = kv.bootstrap(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrapping database: %w", err)
	}

	return kv, nil
}

// bootstrap initializes the database.
func (kv *KV) bootstrap(ctx context.Context) error {
	_, err := kv.client.Execute(ctx, rqlitehttp.SQLStatements{
		{SQL: createKVTableSQL},
	}, &rqlitehttp.ExecuteOptions{
		Transaction: true,
		Timings:     true,
	})
	if err != nil {
		return err
	}

	return nil
}

// Save persists the provided value under key.
func (kv *KV) Save(ctx context.Context, key string, value []byte) error {
	resp, err := kv.client.Execute(ctx, rqlitehttp.SQLStatements{
		{
			SQL:              upsertKVSQL,
			PositionalParams: []any{key, string(value), time.Now().Unix()},
		},
	}, &rqlitehttp.ExecuteOptions{Transaction: true, Timings: true})
	if err != nil {
		return err
	}

	has, idx, errStr := resp.HasError()
	if has {
		return fmt.Errorf("saving key %s: %d -> %s", key, idx, errStr)
	}

	return nil
}

// NoopKV is the key/value store used when no database is configured. Saves
// are discarded and loads always miss; the service runs memory-only.
type NoopKV struct{}

// Ensure the no-op store implements the KVStorer interface.
var _ store.KVStorer = (*NoopKV)(nil)

// Save discards the provided value.
func (kv *NoopKV) Save(ctx context.Context, key string, value []byte) error {
	return nil
}

// Load always reports an absent key.
func (kv *NoopKV) Load(ctx context.Context, key string) ([]byte, error) {
	return nil, nil
}

// Load returns the value stored under key, or nil when absent.
func (kv *KV) Load(ctx context.Context, key string) ([]byte, error) {
	resp, err := kv.client.QuerySingle(ctx, findKVSQL, key)
	if err != nil {
		return nil, err
	}

	results := resp.GetQueryResultsAssoc()
	if len(results) == 0 || len(results[0].Rows) == 0 {
		return nil, nil
	}

	row := results[0].Rows[0]
	value, ok := row["value"].(string)
	if !ok {
		kv.cfg.Logger.Error().Msgf("unexpected value shape for key %s: %s", key, spew.Sdump(row))
		return nil, fmt.Errorf("unexpected value shape for key %s", key)
	}

	return []byte(value), nil
}
