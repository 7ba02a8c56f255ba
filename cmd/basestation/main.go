package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/basestation/internal/api"
	"github.com/banshee-data/basestation/internal/ble"
	"github.com/banshee-data/basestation/internal/config"
	"github.com/banshee-data/basestation/internal/geo"
	"github.com/banshee-data/basestation/internal/network"
	"github.com/banshee-data/basestation/internal/serialmux"
	"github.com/banshee-data/basestation/internal/sim"
	"github.com/banshee-data/basestation/internal/station"
	"github.com/banshee-data/basestation/internal/timeutil"
	"github.com/banshee-data/basestation/internal/version"
)

var (
	configPath  = flag.String("config", "", "Path to a .json or .yaml config file")
	source      = flag.String("source", "", "Frame source: serial, udp, pcap, ble, dev or none")
	listen      = flag.String("listen", "", "HTTP listen address (default :8080)")
	layout      = flag.String("layout", "", "Frame layout: v1 or v2")
	units       = flag.String("units", "", "Speed units for the API: mps, mph, kmph or kph")
	port        = flag.String("port", "", "Serial port for the telemetry radio")
	udpAddr     = flag.String("udp", "", "UDP listen address (default :14560)")
	pcapFile    = flag.String("pcap", "", "Capture file to replay")
	observer    = flag.String("observer", "", "Observer position as lat,lon")
	devRate     = flag.Float64("dev-rate", 10, "Simulated frame rate in dev mode (Hz)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// parseCoordinate parses "lat,lon" in decimal degrees.
func parseCoordinate(s string) (geo.Coordinate, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return geo.Coordinate{}, fmt.Errorf("invalid coordinate %q: expected lat,lon", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("invalid latitude %q: %w", parts[0], err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("invalid longitude %q: %w", parts[1], err)
	}
	return geo.Coordinate{Latitude: lat, Longitude: lon}, nil
}

// applyFlags overrides cfg with every flag that was set on the command line
// and re-validates the result.
func applyFlags(fs *flag.FlagSet, cfg *config.Config) error {
	var err error
	fs.Visit(func(f *flag.Flag) {
		if err != nil {
			return
		}
		v := f.Value.String()
		switch f.Name {
		case "source":
			cfg.Source = &v
		case "listen":
			cfg.Listen = &v
		case "layout":
			cfg.Layout = &v
		case "units":
			cfg.Units = &v
		case "port":
			if cfg.Serial == nil {
				cfg.Serial = &config.SerialConfig{}
			}
			cfg.Serial.Port = &v
		case "udp":
			if cfg.UDP == nil {
				cfg.UDP = &config.UDPConfig{}
			}
			cfg.UDP.Address = &v
		case "pcap":
			if cfg.PCAP == nil {
				cfg.PCAP = &config.PCAPConfig{}
			}
			cfg.PCAP.Path = &v
		case "observer":
			var c geo.Coordinate
			if c, err = parseCoordinate(v); err == nil {
				cfg.Observer = &c
			}
		}
	})
	if err != nil {
		return err
	}
	return cfg.Validate()
}

func loadConfig() (*config.Config, error) {
	cfg := config.Empty()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return nil, err
		}
	}
	if err := applyFlags(flag.CommandLine, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newSerialSource returns the line-oriented source for cfg: the radio, the
// simulator in dev mode, or a disabled mux for every other source.
func newSerialSource(cfg *config.Config, rate float64) (serialmux.SerialMuxInterface, error) {
	switch cfg.GetSource() {
	case config.SourceSerial:
		return serialmux.NewRealSerialMux(cfg.GetSerialPort(), cfg.GetSerialOptions())
	case config.SourceDev:
		if rate <= 0 {
			return nil, fmt.Errorf("dev-rate must be positive, got %f", rate)
		}
		gen := sim.NewGenerator(sim.Vehicle{Home: cfg.GetObserver()}, cfg.GetLayout(), nil)
		interval := time.Duration(float64(time.Second) / rate)
		return serialmux.NewMockSerialMux(gen.Next, interval, nil), nil
	default:
		return serialmux.NewDisabledSerialMux(), nil
	}
}

// forwardFrames hands every frame from m to st until ctx is done.
func forwardFrames(ctx context.Context, m serialmux.SerialMuxInterface, st *station.Station) {
	id, c := m.Subscribe()
	defer m.Unsubscribe(id)
	for {
		select {
		case data, ok := <-c:
			if !ok {
				return
			}
			// Rejections are counted and logged by the station.
			_ = st.HandleFrame(data)
		case <-ctx.Done():
			return
		}
	}
}

// Main
func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Get())
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	st, err := station.New(cfg.StationConfig(timeutil.RealClock{}))
	if err != nil {
		log.Fatalf("failed to create station: %v", err)
	}

	m, err := newSerialSource(cfg, *devRate)
	if err != nil {
		log.Fatalf("failed to open frame source: %v", err)
	}
	defer m.Close()

	log.Printf("%s: source=%s layout=%s listen=%s", version.Get(), cfg.GetSource(), cfg.GetLayout(), cfg.GetListen())

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the monitor routine to manage IO on the serial port
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := m.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("failed to monitor serial port: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		forwardFrames(ctx, m, st)
		log.Print("subscribe routine terminated")
	}()

	switch cfg.GetSource() {
	case config.SourceUDP:
		listener := network.NewUDPListener(network.UDPListenerConfig{
			Address:     cfg.GetUDPAddress(),
			RcvBuf:      cfg.GetUDPRcvBuf(),
			LogInterval: cfg.GetUDPLogInterval(),
			Handler:     st,
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := listener.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("UDP listener error: %v", err)
			}
			log.Print("UDP listener terminated")
		}()

	case config.SourcePCAP:
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := network.ReadPCAPFile(ctx, cfg.GetPCAPPath(), cfg.GetReplayConfig(timeutil.RealClock{}), st)
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("pcap replay error: %v", err)
			}
			log.Printf("pcap replay finished: %d packets, %d frames, %d rejected", res.Packets, res.Frames, res.Rejected)
		}()

	case config.SourceBLE:
		link := ble.NewLink(st)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := link.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("BLE link error: %v", err)
			}
			log.Print("BLE link terminated")
		}()
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()

		apiServer := api.NewServer(st, cfg.GetUnits())
		apiServer.StreamInterval = cfg.GetStreamInterval()

		// mount the admin debugging routes (accessible only locally or over Tailscale)
		m.AttachAdminRoutes(mux)
		apiServer.AttachAdminRoutes(mux)
		mux.Handle("/api/", apiServer.ServeMux())

		server := &http.Server{
			Addr:    cfg.GetListen(),
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
	}()

	wg.Wait()
	stats := st.Stats()
	log.Printf("graceful shutdown complete: %d frames accepted, %d rejected, %d sessions", stats.Accepted, stats.Rejected, stats.Sessions)
}
