package cmd

import (
	"context"
	"fmt"
	"log"

	"WaveFM/cache"
	"WaveFM/config"
	"WaveFM/core/audio"
	"WaveFM/core/upload"
	"WaveFM/db"
	"WaveFM/logger"
	"WaveFM/repository"
	"WaveFM/storage"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Recover uploads stuck before finalization",
	Long: `Finalize uploads whose chunk set is complete but whose track never
reached 'complete', typically after a crash. Safe to run while servers
are up: the finalizing claim keeps each track single-winner.`,
	Run: func(cmd *cobra.Command, args []string) {
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
			log.Fatalf("failed to connect to database: %v", err)
		}
		defer db.CloseDB()

		if err := cache.ConnectRedis(cfg); err != nil {
			log.Fatalf("failed to connect to Redis: %v", err)
		}
		defer cache.CloseRedis()

		if err := storage.InitMinio(cfg); err != nil {
			log.Fatalf("failed to initialize MinIO: %v", err)
		}

		trackRepo := repository.NewMySQLTrackRepository(db.DB)
		uploadRepo := repository.NewMySQLUploadRepository(db.DB)
		chunkStore := storage.NewMinioChunkStore(storage.GetMinioClient(), cfg.MinioBucket)
		decoder := audio.NewFFprobeDecoder(cfg.FFmpegPath)

		finalizer := upload.NewFinalizer(trackRepo, uploadRepo, chunkStore, decoder, nil, nil)

		n, err := finalizer.Sweep(context.Background(), cfg.StuckFinalizeCutoff)
		if err != nil {
			log.Fatalf("sweep failed: %v", err)
		}

		fmt.Printf("Sweep complete, finalized %d upload(s).\n", n)
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
