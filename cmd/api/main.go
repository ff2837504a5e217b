package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"autoscapeAi/internal/catalog"
	"autoscapeAi/internal/config"
	"autoscapeAi/internal/credits"
	"autoscapeAi/internal/designs"
	"autoscapeAi/internal/events"
	"autoscapeAi/internal/gateway"
	"autoscapeAi/internal/media"
	"autoscapeAi/internal/pipeline"
	"autoscapeAi/internal/server"
	"autoscapeAi/internal/storage"
	"autoscapeAi/internal/video"
)

func main() {
	cfg := config.FromEnv()

	ctx := context.Background()
	store, err := storage.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to init store: %v", err)
	}
	defer store.Close()

	var uploader media.Uploader
	if cfg.Media.Bucket != "" && cfg.Media.Region != "" {
		uploader, err = media.NewUploader(ctx, media.Config{
			Bucket:          cfg.Media.Bucket,
			Region:          cfg.Media.Region,
			Endpoint:        cfg.Media.Endpoint,
			PublicURL:       cfg.Media.PublicURL,
			KeyPrefix:       cfg.Media.KeyPrefix,
			AccessKeyID:     cfg.Media.AccessKeyID,
			SecretAccessKey: cfg.Media.SecretAccessKey,
			ForcePathStyle:  cfg.Media.ForcePathStyle,
		})
		if err != nil {
			log.Fatalf("failed to init media uploader: %v", err)
		}
	} else {
		uploader, err = media.NewLocalUploader("")
		if err != nil {
			log.Fatalf("failed to init local media storage: %v", err)
		}
		log.Println("media uploader: using local temp storage (S3 config missing)")
	}

	gatewayCfg := gateway.GeminiConfig{
		APIKey:          cfg.Gemini.APIKey,
		Endpoint:        cfg.Gemini.Endpoint,
		ReasoningModel:  cfg.Gemini.ReasoningModel,
		GenerationModel: cfg.Gemini.GenerationModel,
		Timeout:         cfg.Gemini.Timeout,
	}
	var gw gateway.Client
	if cfg.Gemini.UseSDK {
		gw = gateway.NewSDKGateway(gatewayCfg)
		log.Println("model gateway ready: genai SDK")
	} else {
		gw = gateway.NewGeminiGateway(gatewayCfg)
		log.Println("model gateway ready: REST")
	}

	var enhancer catalog.Enhancer
	if cfg.Catalog.BaseURL != "" {
		enhancer = catalog.New(catalog.Config{
			BaseURL:  cfg.Catalog.BaseURL,
			Timeout:  cfg.Catalog.Timeout,
			CacheTTL: cfg.Catalog.CacheTTL,
		})
		log.Println("catalog enrichment ready:", cfg.Catalog.BaseURL)
	}

	pipe := pipeline.New(gw, enhancer, pipeline.Options{
		EmitManifest:   cfg.Pipeline.EmitManifest,
		RetryTransient: cfg.Pipeline.RetryTransient,
		EnforceBudget:  cfg.Pipeline.EnforceBudget,
		MaxAttempts:    cfg.Pipeline.MaxAttempts,
		Backoff:        cfg.Pipeline.Backoff,
		PhaseTimeout:   cfg.Pipeline.PhaseTimeout,
		OverallTimeout: cfg.Pipeline.OverallTimeout,
	})

	editor := gateway.NewVertexImagen(gateway.VertexImagenConfig{
		ProjectID:      cfg.Imagen.ProjectID,
		Location:       cfg.Imagen.Location,
		Model:          cfg.Imagen.Model,
		ServiceAccount: cfg.Imagen.CredentialsFile,
	})
	if editor.Configured() {
		pipe.Render.Editor = editor
		log.Println("render backend: Vertex Imagen")
	}

	var videoGen video.Generator
	if cfg.Video.BaseURL != "" {
		videoGen = video.NewClient(video.Config{
			BaseURL: cfg.Video.BaseURL,
			Timeout: cfg.Video.Timeout,
		})
		log.Println("video service ready:", cfg.Video.BaseURL)
	}

	designHandler := designs.Handler{
		Store:    store,
		Ledger:   credits.NewLedger(store),
		Pipeline: pipe,
		Broker:   events.NewBroker(),
		Uploader: uploader,
		Video:    videoGen,
		Catalog:  enhancer,
		RunTimeout: func(ctx context.Context) (context.Context, context.CancelFunc) {
			return context.WithTimeout(ctx, cfg.Pipeline.OverallTimeout)
		},
	}

	srv := server.New(cfg.Port, designHandler)

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-shutdownChan
		log.Println("shutting down server...")
		if err := srv.Close(); err != nil {
			log.Printf("server close error: %v", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server failed: %v", err)
	}
}
