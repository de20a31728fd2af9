package vigil

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/viant/afs/url"

	"github.com/viant/vigil/service/approval"
	"github.com/viant/vigil/service/dao"
	"github.com/viant/vigil/service/dao/fs"
	"github.com/viant/vigil/service/dao/redisdb"
	"github.com/viant/vigil/service/dao/sqldb"
	"github.com/viant/vigil/service/dao/store"
	"github.com/viant/vigil/service/strategy"
	"github.com/viant/vigil/service/tracker"
)

// Stores holds one snapshot store per collection.
type Stores struct {
	Requests   dao.Snapshot[string, approval.Request]
	Strategies dao.Snapshot[string, strategy.Strategy]
	Histories  dao.Snapshot[string, tracker.History]
	close      func() error
}

// Close releases backend connections.
func (s *Stores) Close() error {
	if s == nil || s.close == nil {
		return nil
	}
	return s.close()
}

// OpenStores creates the stores selected by config.
func OpenStores(ctx context.Context, config *StoreConfig) (*Stores, error) {
	switch config.Kind {
	case StoreMemory:
		return &Stores{
			Requests:   store.NewMemoryStore[string, approval.Request](),
			Strategies: store.NewMemoryStore[string, strategy.Strategy](),
			Histories:  store.NewMemoryStore[string, tracker.History](),
		}, nil
	case StoreFS:
		return openFS(config.BaseURL)
	case StoreSQLite, StorePostgres:
		dialect := sqldb.Dialect(config.Kind)
		db, err := sqldb.Open(dialect, config.DSN)
		if err != nil {
			return nil, err
		}
		ret, err := openSQL(ctx, db, dialect, config.Prefix)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		return ret, nil
	case StoreRedis:
		client := redis.NewClient(&redis.Options{Addr: config.Addr, Password: config.Password, DB: config.DB})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to redis %s: %w", config.Addr, err)
		}
		ret, err := openRedis(client, config.Prefix)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		return ret, nil
	}
	return nil, fmt.Errorf("unsupported store kind: %q", config.Kind)
}

func openFS(baseURL string) (*Stores, error) {
	requests, err := fs.New[string, approval.Request](url.Join(baseURL, "approvals.json"), approval.Key)
	if err != nil {
		return nil, err
	}
	strategies, err := fs.New[string, strategy.Strategy](url.Join(baseURL, "strategies.json"), strategy.Key)
	if err != nil {
		return nil, err
	}
	histories, err := fs.New[string, tracker.History](url.Join(baseURL, "executions.json"), tracker.HistoryKey)
	if err != nil {
		return nil, err
	}
	return &Stores{Requests: requests, Strategies: strategies, Histories: histories}, nil
}

func openSQL(ctx context.Context, db *sql.DB, dialect sqldb.Dialect, prefix string) (*Stores, error) {
	requests, err := sqldb.New[string, approval.Request](ctx, db, dialect, prefix+"approvals", approval.Key)
	if err != nil {
		return nil, err
	}
	strategies, err := sqldb.New[string, strategy.Strategy](ctx, db, dialect, prefix+"strategies", strategy.Key)
	if err != nil {
		return nil, err
	}
	histories, err := sqldb.New[string, tracker.History](ctx, db, dialect, prefix+"executions", tracker.HistoryKey)
	if err != nil {
		return nil, err
	}
	return &Stores{Requests: requests, Strategies: strategies, Histories: histories, close: db.Close}, nil
}

func openRedis(client redis.UniversalClient, prefix string) (*Stores, error) {
	requests, err := redisdb.New[string, approval.Request](client, prefix+"approvals", approval.Key)
	if err != nil {
		return nil, err
	}
	strategies, err := redisdb.New[string, strategy.Strategy](client, prefix+"strategies", strategy.Key)
	if err != nil {
		return nil, err
	}
	histories, err := redisdb.New[string, tracker.History](client, prefix+"executions", tracker.HistoryKey)
	if err != nil {
		return nil, err
	}
	return &Stores{Requests: requests, Strategies: strategies, Histories: histories, close: client.Close}, nil
}
