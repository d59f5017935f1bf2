package main

import (
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"

	"github.com/anyconvert/anyconvert_server/internal"
	"github.com/anyconvert/anyconvert_server/internal/cloudconvert"
	"github.com/anyconvert/anyconvert_server/internal/convert"
	"github.com/anyconvert/anyconvert_server/internal/health"
	"github.com/anyconvert/anyconvert_server/internal/ilovepdf"
	"github.com/anyconvert/anyconvert_server/internal/ratelimit"
	"github.com/anyconvert/anyconvert_server/internal/scrape"
	"github.com/anyconvert/anyconvert_server/internal/storage"
	"github.com/anyconvert/anyconvert_server/internal/tempfile"
	"github.com/anyconvert/anyconvert_server/internal/youtube"
)

const version = "1.0.0"

func main() {
	config, err := internal.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
		return
	}

	tempfiles, err := tempfile.NewManager(os.TempDir())
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing temp file manager")
		return
	}
	backend, err := storage.NewBackend(&storage.BackendConfig{
		Type:        storage.BackendType(config.StorageBackend),
		LocalPath:   config.LocalStorage.BasePath,
		ExternalURL: config.LocalStorage.ExternalURL,
		R2Endpoint:  config.R2.Endpoint,
		R2Bucket:    config.R2.Bucket,
		R2AccessKey: config.R2.AccessKey,
		R2SecretKey: config.R2.SecretKey,
		URLExpiry:   time.Duration(config.FileExpireHours) * time.Hour,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing storage backend")
		return
	}
	log.Info().Str("backend", config.StorageBackend).Msg("Storage backend initialized")

	sweeper := tempfile.NewSweeper(tempfiles, time.Duration(config.FileExpireHours)*time.Hour)
	if config.StorageBackend == "local" {
		// Local results have no presigned-URL expiry, so the sweeper is what
		// enforces the retention window on them.
		sweeper.AlsoSweep(config.LocalStorage.BasePath)
	}
	sweeper.Start()
	defer sweeper.Stop()

	var counterStore ratelimit.CounterStore
	if config.RedisAddr != "" {
		redisStore, err := ratelimit.NewRedisStore(config.RedisAddr)
		if err != nil {
			log.Fatal().Err(err).Str("addr", config.RedisAddr).Msg("Error connecting to redis")
			return
		}
		counterStore = redisStore
		log.Info().Str("addr", config.RedisAddr).Msg("Using redis rate limit store")
	} else {
		counterStore = ratelimit.NewMemoryStore()
		log.Warn().Msg("REDIS_ADDR not set, rate limit counters are per-instance only")
	}
	limiter := ratelimit.NewLimiter(counterStore, config.MaxConvertsPerDay, config.MaxConvertsPerHour)

	scraper := scrape.NewScraper(&http.Client{Timeout: 30 * time.Second})
	documents := cloudconvert.NewClient(config.CloudConvertAPIKey)
	pdfFallback := ilovepdf.NewClient(config.ILovePDFPublicKey, config.ILovePDFSecretKey)
	downloader := youtube.NewDownloader(config.FFmpegPath)

	if !documents.Configured() {
		log.Warn().Msg("CLOUDCONVERT_API_KEY not set, document conversion degraded")
	}

	service := convert.NewService(tempfiles, backend, scraper, documents, pdfFallback, downloader)
	convertEndpoints := convert.NewEndpoints(service, limiter, config.MaxFileSizeBytes())
	healthEndpoints := health.NewEndpoints(version)
	storageEndpoints := storage.NewEndpoints(backend)

	requestHandler := internal.NewRequestHandler(config, convertEndpoints, healthEndpoints, storageEndpoints)

	server := &fasthttp.Server{
		Handler: requestHandler,
		// Multipart bodies can carry the full upload cap plus form overhead.
		MaxRequestBodySize: int(config.MaxFileSizeBytes()) + 10*1024*1024,
	}

	log.Info().Str("port", config.Port).Msg("Starting server")
	if err := server.ListenAndServe(":" + config.Port); err != nil {
		log.Fatal().Err(err).Msg("Error starting server")
	}
}
