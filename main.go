// Command junctiond runs the adaptive traffic-signal controller for one
// four-approach intersection: it owns the detector link, drives the phase
// state machine, records history, and serves the HTTP API.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/greenwave-data/junction.control/internal/api"
	"github.com/greenwave-data/junction.control/internal/detector"
	"github.com/greenwave-data/junction.control/internal/history"
	"github.com/greenwave-data/junction.control/internal/monitoring"
	"github.com/greenwave-data/junction.control/internal/phase"
	"github.com/greenwave-data/junction.control/internal/timeutil"
	"github.com/greenwave-data/junction.control/internal/timing"
	"github.com/greenwave-data/junction.control/internal/version"
)

var (
	devMode         = flag.Bool("dev", false, "Run with a mock detector that synthesizes counts and snapshot answers")
	disableDetector = flag.Bool("disable-detector", false, "Run without any detector; greens are sized from the timing policy alone")
	listen          = flag.String("listen", ":8080", "HTTP listen address")
	serialPort      = flag.String("serial-port", "/dev/ttySC0", "Detector serial port (ignored in dev mode)")
	baudRate        = flag.Int("baud-rate", 115200, "Detector serial baud rate")
	dbPath          = flag.String("db-path", "junction.db", "History database path (empty disables persistence)")
	timingConfig    = flag.String("timing-config", "", "Path to a timing configuration JSON file")
	udpListen       = flag.String("udp-listen", "", "Optional UDP address for datagram detector payloads (e.g. :9100)")
	debug           = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	flag.Parse()
	monitoring.SetDebug(*debug)

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	log.Printf("junctiond %s starting", version.String())

	var histDB *history.DB
	if *dbPath != "" {
		var err error
		histDB, err = history.Open(*dbPath)
		if err != nil {
			log.Fatalf("failed to open history database: %v", err)
		}
		defer histDB.Close()
	}

	// Timing precedence: explicit file, then the config last applied over
	// the API, then defaults.
	var cfg *timing.Config
	if *timingConfig != "" {
		var err error
		cfg, err = timing.Load(*timingConfig)
		if err != nil {
			log.Fatalf("failed to load timing config: %v", err)
		}
		log.Printf("loaded timing config from %s", *timingConfig)
	} else if histDB != nil {
		if cfg = api.LoadPersistedTimingConfig(histDB); cfg != nil {
			log.Printf("restored timing config from history")
		}
	}
	if cfg == nil {
		cfg = timing.EmptyConfig()
	}

	var link detector.Link
	switch {
	case *disableDetector:
		link = detector.NewDisabledLink()
		log.Printf("detector disabled; greens sized from the timing policy")
	case *devMode:
		link = detector.NewMockMux()
		log.Printf("using mock detector")
	default:
		opts, err := detector.PortOptions{BaudRate: *baudRate}.Normalize()
		if err != nil {
			log.Fatalf("invalid serial options: %v", err)
		}
		realLink, err := detector.NewRealMux(*serialPort, opts)
		if err != nil {
			log.Fatalf("failed to open detector port %s: %v", *serialPort, err)
		}
		link = realLink
	}
	defer link.Close()

	if err := link.Initialize(); err != nil {
		log.Fatalf("failed to initialize detector link: %v", err)
	}

	var rec phase.Recorder
	if histDB != nil {
		rec = histDB
	}
	ctrl := phase.NewController(timeutil.RealClock{}, cfg, detector.NewRequester(link), rec)

	// Create a wait group for the HTTP server, detector monitor, event
	// pump, and controller routines
	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the monitor routine to manage IO on the detector port
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := link.Monitor(ctx); err != nil && err != context.Canceled {
			monitoring.Logf("detector monitor failed: %v", err)
			ctrl.SetDetectorStatus(false, err.Error())
		}
		monitoring.Logf("monitor routine terminated")
	}()

	// subscribe to detector lines and pump them into the controller
	wg.Add(1)
	go func() {
		defer wg.Done()
		id, c := link.Subscribe()
		defer link.Unsubscribe(id)
		for {
			select {
			case line, ok := <-c:
				if !ok {
					monitoring.Logf("event pump terminated, channel closed")
					return
				}
				if err := detector.HandleEvent(ctrl, line); err != nil {
					monitoring.Logf("error handling detector event: %v", err)
				}
			case <-ctx.Done():
				monitoring.Logf("event pump terminated")
				return
			}
		}
	}()

	// tick loop
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := ctrl.Run(ctx); err != nil && err != context.Canceled {
			monitoring.Logf("controller stopped: %v", err)
		}
		monitoring.Logf("controller routine terminated")
	}()

	// optional UDP ingest for detectors that publish datagrams
	if *udpListen != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := detector.ListenUDP(ctx, *udpListen, ctrl); err != nil && err != context.Canceled {
				monitoring.Logf("UDP listener failed: %v", err)
			}
		}()
	}

	if histDB != nil {
		rollup := history.NewRollupWorker(histDB)
		rollup.Start()
		defer rollup.Stop()
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := api.NewServer(ctrl, histDB).ServeMux()
		link.AttachAdminRoutes(mux)
		if histDB != nil {
			if err := histDB.AttachAdminRoutes(mux); err != nil {
				log.Fatalf("failed to attach history admin routes: %v", err)
			}
		}

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			monitoring.Logf("HTTP server listening on %s", *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			monitoring.Logf("HTTP server shutdown error: %v", err)
		}
		monitoring.Logf("HTTP server terminated")
	}()

	wg.Wait()
	log.Printf("junctiond stopped")
}
