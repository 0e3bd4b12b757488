package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/soft-connect/server/internal/config"
	"github.com/soft-connect/server/internal/es"
	"github.com/soft-connect/server/internal/handlers"
	"github.com/soft-connect/server/internal/logging"
	mwauth "github.com/soft-connect/server/internal/middleware/auth"
	loggingmw "github.com/soft-connect/server/internal/middleware/logging"
	"github.com/soft-connect/server/internal/mykafka"
	"github.com/soft-connect/server/internal/repo"
	"github.com/soft-connect/server/internal/service"
	"github.com/soft-connect/server/internal/service/search"
	httpserver "github.com/soft-connect/server/internal/transport/http"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LOG_LEVEL)
	slog.SetDefault(logger)

	db, err := config.InitDB(configuration)
	if err != nil {
		log.Fatalf("database init error: %v", err)
	}
	if err := config.SeedAdmin(db, configuration); err != nil {
		log.Fatalf("admin seed error: %v", err)
	}

	secret := []byte(configuration.JWT_SECRET)

	var prod *mykafka.Producer
	if configuration.KAFKA_ADDRESS != "" {
		prod = mykafka.NewProducer(strings.Split(configuration.KAFKA_ADDRESS, ","))
	}

	var searchSvc *search.Service
	if configuration.ES_URL != "" {
		esClient, err := es.NewClient(es.Config{
			URL:      configuration.ES_URL,
			Username: configuration.ES_USER,
			Password: configuration.ES_PASSWORD,
		})
		if err != nil {
			log.Fatalf("elasticsearch init error: %v", err)
		}
		searchSvc = &search.Service{ES: esClient, Index: "posts"}
	}

	authSvc := &service.AuthService{
		Repo:   &repo.GormRepo{DB: db},
		Secret: secret,
	}

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID(), loggingmw.RequestLogger(logger))

	deps := httpserver.Deps{
		DB:            db,
		AuthHandler:   &handlers.AuthHandler{DB: db, Service: authSvc, Producer: prod},
		PostHandler:   &handlers.PostHandler{DB: db, Producer: prod, Search: searchSvc},
		AnswerHandler: &handlers.AnswerHandler{DB: db, Producer: prod},
		UserHandler:   &handlers.UserHandler{DB: db},
		SearchHandler: &handlers.SearchHandler{Search: searchSvc},
		Gate:          &mwauth.Gate{DB: db, Secret: secret},
	}
	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         ":" + configuration.PORT,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	} else {
		log.Printf("db() error: %v", err)
	}

	if err := prod.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}

	log.Println("shutdown complete")
}
