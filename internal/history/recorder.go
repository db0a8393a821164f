package history

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/homematrix/panel-core/internal/infrastructure/config"
	"github.com/homematrix/panel-core/internal/infrastructure/logging"
)

const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 10 // seconds

	// millisecondsPerSecond converts the configured flush interval to the
	// milliseconds the InfluxDB options expect.
	millisecondsPerSecond = 1000
)

// Recorder wraps the InfluxDB v2 client for state history writes.
//
// All methods are safe for concurrent use. Points are batched and written
// asynchronously by the underlying client.
type Recorder struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	cfg      config.HistoryConfig
	log      *logging.Logger

	connected bool
	mu        sync.RWMutex
}

// Connect creates the InfluxDB client, verifies the server with a ping,
// and starts the batched write pipeline. Async write errors are drained
// into the logger for the recorder's lifetime.
func Connect(cfg config.HistoryConfig, log *logging.Logger) (*Recorder, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = defaultFlushInterval
	}

	// #nosec G115 -- values validated above to be positive
	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(uint(batchSize)).
			SetFlushInterval(uint(flushInterval)*millisecondsPerSecond),
	)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	r := &Recorder{
		client:    client,
		writeAPI:  client.WriteAPI(cfg.Org, cfg.Bucket),
		cfg:       cfg,
		log:       log,
		connected: true,
	}

	go r.drainWriteErrors(r.writeAPI.Errors())

	return r, nil
}

// drainWriteErrors logs async write failures until the client closes the
// channel.
func (r *Recorder) drainWriteErrors(errorsCh <-chan error) {
	for err := range errorsCh {
		r.log.Warn("history write failed", "error", err)
	}
}

// writePoint enqueues one point on the batched pipeline. No-op when
// disconnected.
func (r *Recorder) writePoint(measurement string, tags map[string]string, fields map[string]any, ts time.Time) {
	if !r.IsConnected() {
		return
	}
	r.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, ts))
}

// Flush blocks until all buffered points are written. Safe after Close.
func (r *Recorder) Flush() {
	if r.writeAPI == nil || !r.IsConnected() {
		return
	}
	r.writeAPI.Flush()
}

// Close flushes pending writes and shuts the client down.
func (r *Recorder) Close() error {
	if r.client == nil {
		return nil
	}

	r.mu.Lock()
	r.connected = false
	r.mu.Unlock()

	r.writeAPI.Flush()
	r.client.Close()

	return nil
}

// HealthCheck pings the InfluxDB server.
func (r *Recorder) HealthCheck(ctx context.Context) error {
	if !r.IsConnected() {
		return ErrNotConnected
	}

	checkCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	healthy, err := r.client.Ping(checkCtx)
	if err != nil {
		return fmt.Errorf("history health check: %w", err)
	}
	if !healthy {
		return fmt.Errorf("history health check: server not healthy")
	}
	return nil
}

// IsConnected returns the last known connection state.
func (r *Recorder) IsConnected() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connected
}
