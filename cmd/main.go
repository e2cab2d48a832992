package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"lightrig/internal/api"
	"lightrig/internal/artnet"
	"lightrig/internal/catalog"
	"lightrig/internal/clientmqtt"
	"lightrig/internal/config"
	"lightrig/internal/engine"
	"lightrig/internal/logger"
	"lightrig/internal/midi"
	"lightrig/internal/momentary"
	"lightrig/internal/preset"
	"lightrig/internal/rig"
	"lightrig/internal/show"
	"lightrig/internal/state"
	"lightrig/internal/store"
	"lightrig/internal/telemetry"
	"lightrig/internal/wled"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var configFile string

func init() {
	flag.StringVar(&configFile, "config", "configs/conf.toml", "Path to configuration file")
}

func main() {
	flag.Parse()
	cfg, err := config.NewConfig(configFile)
	if err != nil {
		fmt.Printf("configuration file read error: %v", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		fmt.Printf("failed to create a logger: %v", err)
		os.Exit(1)
	}
	log.With(logger.Fields{"module": "logger"}).Debug("newLogger created ok")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	db, err := store.OpenSQLite(cfg.Storage.Path)
	if err != nil {
		log.With(logger.Fields{"module": "store"}).Errorf("failed to open the store. %v", err)
		os.Exit(1)
	}
	defer db.Close()
	log.With(logger.Fields{"module": "store"}).Infof("state stored in %s", db.Path())

	cat, err := catalog.Load(catalog.Paths{
		Fixtures:     cfg.Catalog.Fixtures,
		AIClusters:   cfg.Catalog.AIClusters,
		BandClusters: cfg.Catalog.BandClusters,
		Colors:       cfg.Catalog.Colors,
		WLEDEffects:  cfg.Catalog.WLEDEffects,
		Presets:      cfg.Catalog.Presets,
	})
	if err != nil {
		log.With(logger.Fields{"module": "catalog"}).Errorf("failed to load the catalog. %v", err)
		os.Exit(1)
	}
	for _, path := range cat.Missing {
		log.With(logger.Fields{"module": "catalog"}).Warnf("%s not found, section left empty", path)
	}
	log.With(logger.Fields{"module": "catalog"}).Infof("%d fixtures loaded", len(cat.FixtureNames()))

	holder := state.NewHolder(log, db)
	if err := holder.Load(ctx); err != nil {
		log.With(logger.Fields{"module": "state"}).Warnf("state not restored, using defaults. %v", err)
	}

	var client *clientmqtt.ClientMQTT
	if cfg.MQTT.Enabled {
		client = clientmqtt.NewClient(log, ConvertConfigClientMQTT(cfg.MQTT))
		log.With(logger.Fields{"module": "mqtt"}).Debug("NewClient created ok")
	}

	var transport rig.Transport = rig.Discard{}
	var a *artnet.ArtNet
	if cfg.DMX.Enabled {
		var nodes artnet.NodePublisher
		if client != nil {
			nodes = client
		}
		a, err = artnet.NewController(log, cfg.DMX, nodes)
		if err != nil {
			log.With(logger.Fields{"module": "art-net"}).Errorf("error while creating a new controller art-net. %v", err)
			os.Exit(1)
		}
		if err = a.Start(ctx); err != nil {
			log.Error("failed to start art-net service:", err.Error())
			os.Exit(1)
		}
		transport = a
		log.With(logger.Fields{"module": "art-net"}).Debug("NewController created ok")
	}
	r := rig.New(log, cat, transport)

	var rec telemetry.Recorder = telemetry.Nop{}
	influx, err := telemetry.Connect(log, cfg.InfluxDB)
	switch {
	case err == nil:
		rec = influx
		defer influx.Close()
	case errors.Is(err, telemetry.ErrDisabled):
	default:
		log.With(logger.Fields{"module": "telemetry"}).Warnf("telemetry off. %v", err)
	}

	wledClient := wled.NewClient(log, cfg.WLED.Timeout.Duration)
	defer wledClient.Close()
	strips := wled.NewController(log, wledClient, cfg.WLED.Endpoints, cat.WLEDEffects)

	presets := preset.New(log, r, db)
	if err := presets.Load(ctx); err != nil {
		log.With(logger.Fields{"module": "preset"}).Warnf("presets not restored. %v", err)
	}

	moments := momentary.New(log)
	defer moments.Stop()

	eng := engine.New(log, cat, holder, r, strips, engine.Options{
		Tick:     cfg.Engine.Tick.Duration,
		Backoff:  cfg.Engine.Backoff.Duration,
		Recorder: rec,
	})

	sh := show.New(log, holder, r, presets, moments, show.Options{
		BlinderHold:  cfg.Momentary.Blinder.Duration,
		StrobeHold:   cfg.Momentary.Strobe.Duration,
		Force:        cfg.Force,
		SafeShutdown: cfg.Scripts.SafeShutdown,
		Recorder:     rec,
	})

	srv, err := api.New(api.Deps{
		Config:  cfg.HTTP,
		Logger:  log,
		Show:    sh,
		State:   holder,
		Health:  db,
		Version: version,
	})
	if err != nil {
		log.With(logger.Fields{"module": "api"}).Errorf("failed to create the API server. %v", err)
		os.Exit(1)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		eng.Run(ctx)
	}()

	if err = srv.Start(ctx); err != nil {
		log.Error("failed to start API service:", err.Error())
		cancel()
	}

	if client != nil {
		holder.OnChange(client.PublishState)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := client.Start(ctx, sh); err != nil {
				if ctx.Err() == nil {
					log.Error("failed to start MQTT service:", err.Error())
				}
				return
			}
			client.PublishState(holder.Snapshot())
		}()
	}

	var bridge *midi.Bridge
	if cfg.MIDI.Enabled {
		bridge, err = midi.NewBridge(log, cfg.MIDI, sh)
		if err != nil {
			log.With(logger.Fields{"module": "midi"}).Errorf("failed to create the MIDI bridge. %v", err)
		} else if err = bridge.Start(ctx); err != nil {
			log.Error("failed to start MIDI service:", err.Error())
			bridge = nil
		} else {
			holder.OnChange(bridge.ShowState)
			bridge.ShowState(holder.Snapshot())
		}
	}

	<-ctx.Done()

	if err := srv.Close(); err != nil {
		log.Error("failed to stop API service:", err.Error())
	}

	if bridge != nil {
		bridge.Stop()
	}

	wg.Wait()

	if client != nil {
		if err := client.Stop(); err != nil {
			log.Error("failed to stop MQTT service:", err.Error())
		}
	}

	if a != nil {
		a.Stop()
	}

	log.Info("shutdown complete")
}

// ConvertConfigClientMQTT преобразует структуры.
func ConvertConfigClientMQTT(cfg config.MQTTConf) clientmqtt.MQTTConf {
	return clientmqtt.MQTTConf{
		ClientID: cfg.ClientID,
		Schema:   "tcp",
		Host:     cfg.Host,
		Port:     cfg.Port,
		User:     cfg.User,
		Password: cfg.Password,
		Qos:      cfg.Qos,
		Prefix:   cfg.Prefix,
	}
}
