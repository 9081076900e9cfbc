// Package mongodriver implements the driver boundary of [domain] on top of
// the official MongoDB driver.
package mongodriver

import (
	"context"
	"fmt"

	"github.com/vinicius-lino-figueiredo/gedm/domain"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.uber.org/zap"
)

// Client owns a connection pool to a MongoDB deployment.
type Client struct {
	client   *mongo.Client
	database string
	logger   *zap.Logger
}

// Option configures [Connect].
type Option func(*Client)

// WithLogger sets the logger used for connection and session events.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// Connect connects to the deployment described by cfg and pings it.
func Connect(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{database: cfg.Database}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}

	clientOpts, err := cfg.clientOptions()
	if err != nil {
		return nil, err
	}
	client, err := mongo.Connect(clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongodriver: connecting: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.timeout())
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("mongodriver: ping: %w", err)
	}

	c.client = client
	c.logger.Info("connected", zap.String("database", cfg.Database), zap.String("appName", cfg.AppName))
	return c, nil
}

// Database returns the configured database.
func (c *Client) Database() *Database {
	return c.DatabaseNamed(c.database)
}

// DatabaseNamed returns the named database of the deployment.
func (c *Client) DatabaseNamed(name string) *Database {
	return NewDatabase(c.client.Database(name), WithDatabaseLogger(c.logger))
}

// Disconnect closes the connection pool.
func (c *Client) Disconnect(ctx context.Context) error {
	c.logger.Info("disconnecting")
	return c.client.Disconnect(ctx)
}

// Database implements [domain.Database].
type Database struct {
	db     *mongo.Database
	logger *zap.Logger
}

// DatabaseOption configures [NewDatabase].
type DatabaseOption func(*Database)

// WithDatabaseLogger sets the logger of a [Database].
func WithDatabaseLogger(l *zap.Logger) DatabaseOption {
	return func(d *Database) {
		d.logger = l
	}
}

// NewDatabase wraps an existing driver database.
func NewDatabase(db *mongo.Database, opts ...DatabaseOption) *Database {
	d := &Database{db: db}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	return d
}

// Name implements [domain.Database].
func (d *Database) Name() string {
	return d.db.Name()
}

// Collection implements [domain.Database].
func (d *Database) Collection(name string) domain.Collection {
	return &Collection{coll: d.db.Collection(name)}
}

// StartSession implements [domain.Database].
func (d *Database) StartSession(ctx context.Context, opts domain.SessionOptions) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sess, err := d.db.Client().StartSession(sessionOptions(opts))
	if err != nil {
		return nil, err
	}
	d.logger.Debug("session started", zap.String("database", d.db.Name()))
	return &Session{sess: sess, defaults: opts.DefaultTransaction}, nil
}

// Unwrap returns the driver database.
func (d *Database) Unwrap() *mongo.Database {
	return d.db
}
