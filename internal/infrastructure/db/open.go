// Package db opens the key/value backends behind local and session storage.
package db

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/rechart/rechart/internal/core/domain"
	"github.com/rechart/rechart/internal/core/ports"
	"github.com/rechart/rechart/internal/infrastructure/db/memory"
	"github.com/rechart/rechart/internal/infrastructure/db/mongo"
	"github.com/rechart/rechart/internal/infrastructure/db/redis"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
	BackendNone   = "none"
)

var (
	_ ports.KeyValueStore = (*memory.Store)(nil)
	_ ports.KeyValueStore = (*redis.Store)(nil)
	_ ports.KeyValueStore = (*mongo.Store)(nil)
	_ ports.KeyValueStore = Unavailable{}
)

// Options carries connection settings for the networked backends.
type Options struct {
	Redis redis.Config
	Mongo mongo.Config
}

// Opened is a store plus whatever must be closed when the process exits.
type Opened struct {
	Store  ports.KeyValueStore
	closer io.Closer
}

// Close releases the backend connection, if any.
func (o *Opened) Close() error {
	if o.closer == nil {
		return nil
	}
	return o.closer.Close()
}

// Open returns a working store for the requested backend, or the Unavailable
// null object when the backend is disabled or cannot be reached. It never
// returns an error; an unreachable backend degrades to no-op storage.
func Open(ctx context.Context, ns domain.Namespace, backend string, opts Options, log zerolog.Logger) *Opened {
	log = log.With().Str("namespace", string(ns)).Str("backend", backend).Logger()

	switch backend {
	case BackendMemory, "":
		return &Opened{Store: memory.NewStore()}

	case BackendRedis:
		client, err := redis.Connect(ctx, opts.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("storage unavailable, falling back to no-op store")
			return &Opened{Store: Unavailable{}}
		}
		return &Opened{Store: redis.NewStore(client, "rechart:"+string(ns)), closer: client}

	case BackendMongo:
		client, database, err := mongo.Connect(ctx, opts.Mongo)
		if err != nil {
			log.Warn().Err(err).Msg("storage unavailable, falling back to no-op store")
			return &Opened{Store: Unavailable{}}
		}
		return &Opened{Store: mongo.NewStore(database, string(ns)), closer: disconnector{client: client}}

	case BackendNone:
		return &Opened{Store: Unavailable{}}

	default:
		log.Warn().Msg("unknown storage backend, falling back to no-op store")
		return &Opened{Store: Unavailable{}}
	}
}

// Unavailable is the null-object store used when no backend can be reached.
// Every operation fails with domain.ErrStorageUnavailable.
type Unavailable struct{}

func (Unavailable) Get(context.Context, string) (string, bool, error) {
	return "", false, domain.ErrStorageUnavailable
}

func (Unavailable) Set(context.Context, string, string) error {
	return domain.ErrStorageUnavailable
}

func (Unavailable) Remove(context.Context, string) error {
	return domain.ErrStorageUnavailable
}

type disconnector struct {
	client interface {
		Disconnect(context.Context) error
	}
}

func (d disconnector) Close() error {
	if err := d.client.Disconnect(context.Background()); err != nil {
		return fmt.Errorf("mongo disconnect: %w", err)
	}
	return nil
}
