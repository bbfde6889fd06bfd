package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vigil/internal/alerts"
	"vigil/internal/analyzer"
	"vigil/internal/auth"
	"vigil/internal/backend"
	"vigil/internal/capture"
	"vigil/internal/config"
	"vigil/internal/database"
	"vigil/internal/encode"
	"vigil/internal/monitor"
	"vigil/internal/server"
	"vigil/internal/settings"
	"vigil/internal/throttle"
)

func main() {
	var (
		httpPortF  = flag.String("http-port", "", "HTTP port (overrides VIGIL_HTTP_PORT)")
		deviceF    = flag.String("device", "", "Camera device or stream URL (overrides VIGIL_CAMERA_DEVICE)")
		autoStartF = flag.Bool("autostart", false, "Start a monitoring session immediately")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[vigil] ", log.Ltime)

	cfg := config.Load()
	if *httpPortF != "" {
		cfg.HTTPPort = *httpPortF
	}
	if *deviceF != "" {
		cfg.CameraDevice = *deviceF
	}

	db, err := database.New(cfg.DBPath)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		logger.Fatalf("migrate database: %v", err)
	}

	store, err := settings.NewStore(db)
	if err != nil {
		logger.Fatalf("settings store: %v", err)
	}

	// Session/report backend is optional; without it sessions are local.
	var api backend.SessionAPI = backend.Local{}
	var poster alerts.AlertPoster
	if cfg.BackendURL != "" {
		client := backend.NewClient(cfg.BackendURL, 10*time.Second)
		api = client
		poster = client
	}

	hub := alerts.NewHub()
	sink := alerts.Multi{
		alerts.LogSink{},
		hub,
		&alerts.JournalSink{Recorder: db},
	}
	if poster != nil {
		sink = append(sink, &alerts.APISink{Poster: poster})
	}

	var channel analyzer.Channel
	if cfg.AnalyzerMode == config.ModeWS {
		channel = analyzer.NewWSChannel(cfg.AnalyzerURL, cfg.AnalyzerTimeout)
	} else {
		channel = analyzer.NewHTTPChannel(cfg.AnalyzerURL, cfg.AnalyzerTimeout)
	}

	source := capture.NewWebcam(cfg.CameraDevice, cfg.CameraWidth, cfg.CameraHeight, cfg.CameraFPS)

	controller := monitor.New(monitor.Config{
		Source:      source,
		Encoder:     &encode.Encoder{MaxWidth: cfg.EncoderMaxWidth},
		Channel:     channel,
		API:         api,
		Sink:        sink,
		Settings:    store,
		Throttle:    throttle.New(store.Current().Cooldown),
		SendTimeout: cfg.AnalyzerTimeout,
		OnSessionStart: func(res *backend.StartResult) {
			if res.Settings == nil {
				return
			}
			if err := store.ApplyRemote(res.Settings); err != nil {
				logger.Printf("apply remote settings: %v", err)
			}
		},
	})

	authenticator := auth.New(auth.Config{
		Enabled:   cfg.AuthEnabled,
		Username:  cfg.AuthUsername,
		Password:  cfg.AuthPassword,
		JWTSecret: cfg.JWTSecret,
	})

	srv := &http.Server{
		Addr:    net.JoinHostPort("", cfg.HTTPPort),
		Handler: server.New(controller, hub, authenticator, db).Routes(),
	}

	// Channel used by both the signal handler and the server goroutine to
	// notify the main goroutine when to stop.
	errc := make(chan error)

	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()

	go func() {
		logger.Printf("control surface listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	if *autoStartF {
		if _, err := controller.Start(context.Background()); err != nil {
			logger.Printf("autostart failed: %v", err)
		}
	}

	logger.Printf("exiting (%v)", <-errc)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Stop the session first so the camera is released on every exit path.
	if err := controller.Stop(ctx); err != nil {
		logger.Printf("stop controller: %v", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		logger.Printf("shutdown server: %v", err)
	}
	logger.Println("exited")
}
