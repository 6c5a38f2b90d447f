package main // Entry point package

import (
	"context"   // Shutdown deadline and consumer lifetime
	"errors"    // http.ErrServerClosed check
	"log"       // Logging library
	"net/http"  // Server closed sentinel
	"os"        // Signal handling
	"os/signal" // Graceful shutdown on SIGINT/SIGTERM
	"syscall"
	"time"

	"github.com/joho/godotenv"                      // .env loader for local development
	"github.com/labstack/echo/v4"                   // Echo web framework
	echomw "github.com/labstack/echo/v4/middleware" // Request logging and panic recovery

	"github.com/iliyamo/haggle-room/internal/config"     // Internal config loader
	"github.com/iliyamo/haggle-room/internal/database"   // MySQL connection and schema
	"github.com/iliyamo/haggle-room/internal/handler"    // HTTP handlers
	"github.com/iliyamo/haggle-room/internal/middleware" // Session and cache middleware
	"github.com/iliyamo/haggle-room/internal/queue"      // RabbitMQ event publisher/consumer
	"github.com/iliyamo/haggle-room/internal/repository" // MySQL repositories
	"github.com/iliyamo/haggle-room/internal/router"     // Internal router setup
	"github.com/iliyamo/haggle-room/internal/secondme"   // SecondMe OAuth + chat client
	"github.com/iliyamo/haggle-room/internal/service"    // Negotiation use cases
	"github.com/iliyamo/haggle-room/internal/utils"      // Token sealing
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("env: %v", err)
	}
	cfg := config.Load() // Load environment config

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()
	if err := database.Migrate(context.Background(), db); err != nil {
		log.Fatalf("db: %v", err)
	}

	sealer, err := utils.NewSealer(cfg.TokenSecret)
	if err != nil {
		log.Fatalf("sealer: %v", err)
	}
	roomRepo := repository.NewRoomRepo(db)
	msgRepo := repository.NewMessageRepo(db)
	userRepo := repository.NewUserRepo(db, sealer)

	sm := secondme.NewClient(secondme.Config{
		ClientID:     cfg.SecondMeClientID,
		ClientSecret: cfg.SecondMeClientSecret,
		APIBase:      cfg.SecondMeAPIBase,
		AuthorizeURL: cfg.SecondMeAuthorizeURL,
	}, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	turnOpts := []service.TurnOption{service.WithChatTimeout(cfg.ChatTimeout)}
	if cfg.EventsEnabled {
		amqpURL := queue.URLFromEnv()
		turnOpts = append(turnOpts, service.WithEvents(queue.NewPublisher(amqpURL)))
		go func() {
			if err := queue.NewConsumer(amqpURL).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("negotiation-consumer: stopped: %v", err)
			}
		}()
	}

	rooms := service.NewRoomService(roomRepo, msgRepo, userRepo)
	tokens := service.NewTokenService(userRepo, sm)
	turns := service.NewTurnScheduler(roomRepo, msgRepo, userRepo, tokens, sm, turnOpts...)
	auth := service.NewAuthService(service.AuthConfig{
		JWTSecret:   cfg.JWTSecret,
		SessionTTL:  cfg.SessionTTL(),
		RedirectURI: cfg.RedirectURI(),
	}, sm, userRepo)

	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb == nil {
		log.Printf("redis: unavailable, result cache disabled")
	} else {
		defer rdb.Close()
	}

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())

	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, handler.NewAuthHandler(auth, cfg.SecureCookies()), cfg.JWTSecret)
	router.RegisterRooms(e, handler.NewRoomHandler(rooms, turns), cfg.JWTSecret,
		middleware.NewRedisCache(config.LoadCacheConfig(), rdb))

	addr := ":" + cfg.Port                                // Address string with port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env) // Print startup info

	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) { // Start HTTP server
			log.Fatal(err) // Log and exit if server fails
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
