package main

import (
	"log"
	"os"

	"slidesense/internal/api"
	"slidesense/internal/auth"
	"slidesense/internal/backend"
	"slidesense/internal/config"
	"slidesense/internal/objectstore"
	"slidesense/internal/rasterizer"
	"slidesense/internal/redis"
	"slidesense/internal/session"
	"slidesense/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfgPath := os.Getenv("SLIDESENSE_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	dbType := os.Getenv("SLIDESENSE_DB")
	if dbType == "" {
		dbType = "sqlite3"
	}
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	if err := storage.Migrate(db, dbType); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	rdb, err := redis.NewRedisClient(cfg)
	if err != nil {
		log.Fatalf("create redis client: %v", err)
	}
	defer rdb.Close()

	transcripts, err := storage.NewService(db)
	if err != nil {
		log.Fatalf("init transcript service: %v", err)
	}
	authService := auth.NewService(cfg, rdb)
	backendClient := backend.NewClient(cfg, authService)
	store := objectstore.NewStore(cfg, authService)
	images := rasterizer.NewCache(rdb)

	deckSession := session.New(backendClient, backendClient, store, transcripts, images)
	handlers := api.NewHandler(deckSession, authService, transcripts, cfg.BasicConfig.MaxUploadMB)

	router := gin.Default()
	handlers.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8090"
	}

	if err := router.Run(addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
