// TCP Server for TOPIN-family 2G GPS Trackers
//
// Listens for tracker connections, decodes the binary frame protocol,
// resolves Wi-Fi/LBS scans through the Google Geolocation API and appends
// every frame and position to TSV log files.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/fcode09/topin-tracker/internal/engine"
	"github.com/fcode09/topin-tracker/internal/geolocate"
	"github.com/fcode09/topin-tracker/internal/logsink"
	"github.com/fcode09/topin-tracker/internal/metrics"
	"github.com/fcode09/topin-tracker/internal/server"
)

// Configuration flags
var (
	port        = flag.Int("port", 5023, "TCP server port")
	logDir      = flag.String("logdir", "logs", "Directory for the traffic and location logs")
	timeout     = flag.Duration("timeout", 5*time.Minute, "Connection read timeout")
	geoTimeout  = flag.Duration("geo-timeout", 15*time.Second, "Geolocation lookup timeout")
	strictMode  = flag.Bool("strict", false, "Drop connections on unframeable input")
	metricsAddr = flag.String("metrics-addr", "", "Address for the Prometheus endpoint (empty disables it)")
)

// apiKeyEnv names the environment variable carrying the Google Geolocation
// API key. Loaded from the environment or a .env file; without it Wi-Fi/LBS
// frames get empty stage-2 replies.
const apiKeyEnv = "GMAPS_API_KEY"

func main() {
	flag.Parse()
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Error loading .env file: %v", err)
	}

	var locator geolocate.Locator = geolocate.Disabled{}
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey != "" {
		locator = geolocate.NewGoogleClient(apiKey)
	}

	printBanner(apiKey != "")

	sink, err := logsink.NewFileSink(*logDir)
	if err != nil {
		log.Fatalf("Error opening log files: %v", err)
	}
	defer sink.Close()

	eng := engine.New(locator, sink, log.Default(),
		engine.WithGeolocationTimeout(*geoTimeout))

	srv := server.New(fmt.Sprintf(":%d", *port), eng, log.Default(),
		server.WithReadTimeout(*timeout),
		server.WithStrictFraming(*strictMode))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.ListenAndServe(ctx)
	})

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		msrv := &http.Server{Addr: *metricsAddr, Handler: mux}

		g.Go(func() error {
			log.Printf("metrics on %s/metrics", *metricsAddr)
			if err := msrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return msrv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server stopped")
}

func printBanner(geoEnabled bool) {
	log.Println(strings.Repeat("=", 60))
	log.Println("TOPIN 2G GPS Tracker Server")
	log.Println(strings.Repeat("=", 60))
	log.Printf("Port:            %d", *port)
	log.Printf("Log Directory:   %s", *logDir)
	log.Printf("Read Timeout:    %v", *timeout)
	log.Printf("Strict Mode:     %v", *strictMode)
	log.Printf("Geolocation:     %v", geoEnabled)
	if *metricsAddr != "" {
		log.Printf("Metrics:         %s", *metricsAddr)
	}
	log.Println(strings.Repeat("=", 60))
}
