package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"WaveFM/cache"
	"WaveFM/config"
	"WaveFM/core/audio"
	"WaveFM/core/auth"
	"WaveFM/core/upload"
	"WaveFM/db"
	"WaveFM/logger"
	"WaveFM/model"
	"WaveFM/repository"
	"WaveFM/storage"
)

const sweepInterval = time.Minute

// Start boots every subsystem, wires the upload core and serves HTTP
// until SIGINT/SIGTERM.
func Start() {
	cfg := config.Load()

	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogOutputPath,
		MaxSize:    100,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	})

	if err := db.ConnectDB(cfg); err != nil {
		logger.Fatal("failed to connect to database", logger.ErrorField(err))
	}
	defer db.CloseDB()

	// Schema migration runs through GORM; everything else uses the plain
	// sql.DB handle.
	if err := db.ConnectGormDB(cfg); err != nil {
		logger.Fatal("failed to connect GORM", logger.ErrorField(err))
	}
	if err := db.AutoMigrateAll(); err != nil {
		logger.Fatal("failed to migrate schema", logger.ErrorField(err))
	}
	if err := db.CloseGormDB(); err != nil {
		logger.Warn("failed to close GORM connection", logger.ErrorField(err))
	}

	if err := cache.ConnectRedis(cfg); err != nil {
		logger.Fatal("failed to connect to Redis", logger.ErrorField(err))
	}
	defer cache.CloseRedis()

	if err := storage.InitMinio(cfg); err != nil {
		logger.Fatal("failed to initialize MinIO", logger.ErrorField(err))
	}

	stopWatch, err := config.Watch(func(next *config.Config) {
		logger.SetLevel(logger.LogLevel(next.LogLevel))
		logger.Info("log level reloaded", logger.String("level", next.LogLevel))
	})
	if err != nil {
		logger.Warn("config watcher unavailable", logger.ErrorField(err))
	} else {
		defer stopWatch()
	}

	trackRepo := repository.NewMySQLTrackRepository(db.DB)
	uploadRepo := repository.NewMySQLUploadRepository(db.DB)
	userRepo := repository.NewMySQLUserRepository(db.DB)
	playlistRepo := repository.NewMySQLPlaylistRepository(db.DB)
	historyRepo := repository.NewMySQLHistoryRepository(db.DB)
	favoriteRepo := repository.NewMySQLFavoriteRepository(db.DB)

	chunkStore := storage.NewMinioChunkStore(storage.GetMinioClient(), cfg.MinioBucket)
	decoder := audio.NewFFprobeDecoder(cfg.FFmpegPath)

	publish := func(ctx context.Context, trackID string, received, total, watermark int, status string) {
		err := cache.PublishProgress(ctx, cache.ProgressEvent{
			TrackID:        trackID,
			ReceivedChunks: received,
			TotalChunks:    total,
			Watermark:      watermark,
			Status:         status,
		})
		if err != nil {
			logger.Debug("progress publish failed",
				logger.String("trackId", trackID),
				logger.ErrorField(err))
		}
	}

	onComplete := func(ctx context.Context, track *model.Track) {
		if err := cache.CacheTrack(ctx, track); err != nil {
			logger.Warn("failed to cache completed track",
				logger.String("trackId", track.ID),
				logger.ErrorField(err))
		}
	}

	finalizer := upload.NewFinalizer(trackRepo, uploadRepo, chunkStore, decoder, onComplete, publish)
	tracker := upload.NewTracker(trackRepo, uploadRepo, chunkStore, finalizer, publish)
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTLifetime)

	handler := NewAPIHandler(trackRepo, userRepo, playlistRepo, historyRepo, favoriteRepo, tracker, tokens, cfg)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go runSweeper(sweepCtx, finalizer, cfg.StuckFinalizeCutoff)

	router := newRouter(handler)
	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      corsMiddleware(router),
		ReadTimeout:  5 * time.Minute, // chunk uploads can be slow on bad links
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		logger.Info("server listening", logger.String("addr", cfg.ServerAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", logger.ErrorField(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", logger.ErrorField(err))
	}
}

// runSweeper periodically recovers uploads whose finalization was lost to
// a crash.
func runSweeper(ctx context.Context, finalizer *upload.Finalizer, cutoff time.Duration) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := finalizer.Sweep(ctx, cutoff)
			if err != nil {
				logger.Error("finalization sweep failed", logger.ErrorField(err))
				continue
			}
			if n > 0 {
				logger.Info("finalization sweep recovered uploads", logger.Int("count", n))
			}
		}
	}
}

// newRouter registers all HTTP routes.
func newRouter(h *APIHandler) *mux.Router {
	router := mux.NewRouter()

	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/auth/register", h.RegisterHandler).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", h.LoginHandler).Methods(http.MethodPost)

	api.HandleFunc("/upload", h.AuthMiddleware(h.InitiateUploadHandler)).Methods(http.MethodPost)
	api.HandleFunc("/upload/chunk", h.AuthMiddleware(h.UploadChunkHandler)).Methods(http.MethodPost)
	api.HandleFunc("/upload/resume", h.AuthMiddleware(h.ResumeUploadsHandler)).Methods(http.MethodGet)
	api.HandleFunc("/upload/metadata", h.AuthMiddleware(h.UpdateMetadataHandler)).Methods(http.MethodPost)

	api.HandleFunc("/tracks/random", h.AuthMiddleware(h.GetRandomTracksHandler)).Methods(http.MethodGet)
	api.HandleFunc("/tracks/{track_id}", h.AuthMiddleware(h.GetTrackHandler)).Methods(http.MethodGet)

	api.HandleFunc("/history", h.AuthMiddleware(h.ListHistoryHandler)).Methods(http.MethodGet)
	api.HandleFunc("/history", h.AuthMiddleware(h.RecordPlayHandler)).Methods(http.MethodPost)

	api.HandleFunc("/favorites", h.AuthMiddleware(h.ListFavoritesHandler)).Methods(http.MethodGet)
	api.HandleFunc("/favorites", h.AuthMiddleware(h.AddFavoriteHandler)).Methods(http.MethodPost)
	api.HandleFunc("/favorites/{track_id}", h.AuthMiddleware(h.RemoveFavoriteHandler)).Methods(http.MethodDelete)

	api.HandleFunc("/playlists", h.AuthMiddleware(h.ListPlaylistsHandler)).Methods(http.MethodGet)
	api.HandleFunc("/playlists", h.AuthMiddleware(h.CreatePlaylistHandler)).Methods(http.MethodPost)
	api.HandleFunc("/playlists/{playlist_id}/tracks", h.AuthMiddleware(h.GetPlaylistTracksHandler)).Methods(http.MethodGet)
	api.HandleFunc("/playlists/{playlist_id}/tracks", h.AuthMiddleware(h.AddPlaylistTrackHandler)).Methods(http.MethodPost)

	router.HandleFunc("/ws/upload/{track_id}/progress", h.AuthMiddleware(h.UploadProgressHandler)).Methods(http.MethodGet)

	return router
}

// corsMiddleware adds CORS headers for browser clients.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
