package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"

	app "vibemint/src/app"
	cfg "vibemint/src/configuration"
	db "vibemint/src/repository"
)

func RunServer(config *cfg.Properties) {
	// Create Gin router
	router := gin.Default()
	//
	router.Use(cors.New(cors.Config{
		AllowMethods:              []string{"GET", "HEAD", "POST", "OPTIONS"},
		AllowHeaders:              []string{"Authorization", "X-Client-Info", "Apikey", "Content-Type", "Content-Length", "Origin", "Accept-Encoding", "Cache-Control"},
		ExposeHeaders:             []string{"Content-Length"},
		AllowOriginFunc:           func(origin string) bool { return true },
		OptionsResponseStatusCode: http.StatusOK,
		MaxAge:                    12 * time.Hour,
	}))
	pprof.Register(router)
	//
	pinner := app.NewPinClient(config.Pin.Endpoint, config.Pin.Key, config.Pin.ReadTimeout)

	var archive Archiver
	if config.ArchiveEnabled() {
		archiveClient, err := app.NewArchiveClient(
			config.S3.Host,
			config.S3.AccessKey,
			config.S3.SecretKey,
			config.S3.Bucket,
			config.S3.UseSSL)
		if err != nil {
			log.Printf("Error: could not connect to archive storage %v", err)
		} else {
			archive = archiveClient
		}
	}

	ledger, err := db.NewPinLedger(config)
	if err != nil {
		log.Fatalf("ledger not available %v", err)
	}
	if !ledger.Connect() {
		log.Fatalf("can not connect to ledger")
	}

	handler := NewUploadHandler(config, pinner, archive, ledger)

	upload := []gin.HandlerFunc{handler.PostUpload}
	archived := []gin.HandlerFunc{handler.GetArchive}
	if config.Auth.Issuer != "" {
		authHandler, err := NewAuthHandler(context.Background(), config)
		if err != nil {
			log.Fatalf("auth configured but not reachable %v", err)
		}
		upload = []gin.HandlerFunc{authHandler.Require, handler.PostUpload}
		archived = []gin.HandlerFunc{authHandler.Require, handler.GetArchive}
	}

	// Register Routes
	router.GET("/health", handler.GetHealth)
	router.POST("/upload", upload...)
	router.GET("/uploads", handler.GetUploads)
	router.GET("/archive", archived...)

	router.NoRoute(func(ctx *gin.Context) { ctx.JSON(http.StatusNotFound, gin.H{}) })
	// Start the server
	router.Run(fmt.Sprintf(":%s", config.Server.Port))
}
