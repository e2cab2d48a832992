// Package telemetry records show events (mode changes, cluster advances,
// momentary triggers) as InfluxDB points.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"lightrig/internal/config"
	"lightrig/internal/logger"
)

const (
	measurement    = "show_events"
	connectTimeout = 5 * time.Second
	batchSize      = 50
	flushMS        = 1000
)

var (
	// ErrDisabled is returned by Connect when telemetry is switched off.
	ErrDisabled = errors.New("telemetry: disabled in configuration")
	// ErrConnectionFailed is returned by Connect when the server does not answer.
	ErrConnectionFailed = errors.New("telemetry: connection failed")
)

// Recorder receives show events. Implementations must not block.
type Recorder interface {
	Record(event string, tags map[string]string, fields map[string]any)
}

// Nop drops every event.
type Nop struct{}

// Record implements Recorder.
func (Nop) Record(string, map[string]string, map[string]any) {}

// Influx writes events through the non-blocking batch write API.
type Influx struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	log      *logger.Log
}

// Connect pings the server and returns a recorder writing to cfg.Bucket.
func Connect(log logger.Logger, cfg config.InfluxDBConf) (*Influx, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(batchSize).
			SetFlushInterval(flushMS))

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

	i := &Influx{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
		log:      log.Module("telemetry"),
	}
	go i.handleWriteErrors(i.writeAPI.Errors())
	return i, nil
}

func (i *Influx) handleWriteErrors(errs <-chan error) {
	for err := range errs {
		i.log.Debugf("write failed: %v", err)
	}
}

// Record implements Recorder.
func (i *Influx) Record(event string, tags map[string]string, fields map[string]any) {
	i.writeAPI.WritePoint(EventPoint(event, tags, fields, time.Now()))
}

// Close flushes pending points and closes the client.
func (i *Influx) Close() {
	i.writeAPI.Flush()
	i.client.Close()
}

// EventPoint builds the point for one event. The event name is a tag; an
// event without fields gets count=1 so the point is writable.
func EventPoint(event string, tags map[string]string, fields map[string]any, ts time.Time) *write.Point {
	t := make(map[string]string, len(tags)+1)
	for k, v := range tags {
		t[k] = v
	}
	t["event"] = event
	if len(fields) == 0 {
		fields = map[string]any{"count": 1}
	}
	return write.NewPoint(measurement, t, fields, ts)
}
