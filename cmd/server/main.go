package main // Entry point package

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/davidromero/mercadillo/internal/config"
	"github.com/davidromero/mercadillo/internal/database"
	"github.com/davidromero/mercadillo/internal/queue"
	"github.com/davidromero/mercadillo/internal/router"
)

func main() {
	// A .env file is a development convenience; in production the
	// variables come from the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	if cfg.RunMigrations {
		if err := database.RunMigrations(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName); err != nil {
			log.Fatalf("migrations: %v", err)
		}
	}

	// Redis is optional; without it the API runs uncached and unthrottled.
	rdb := config.NewRedisClient()

	// The notification consumer lives for the whole process; it keeps its
	// own reconnect loop and only needs a broker URL.
	if cfg.AMQPURL != "" {
		go func() {
			if err := queue.StartPurchaseConsumer(cfg.AMQPURL); err != nil {
				log.Printf("purchase consumer stopped: %v", err)
			}
		}()
	}

	e := echo.New()
	e.HideBanner = true
	router.Register(e, db, rdb, cfg)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
