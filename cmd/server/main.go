package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/avdonin/reviewbase/internal/config"
	"github.com/avdonin/reviewbase/internal/es"
	"github.com/avdonin/reviewbase/internal/handlers"
	"github.com/avdonin/reviewbase/internal/logging"
	"github.com/avdonin/reviewbase/internal/mail"
	authmw "github.com/avdonin/reviewbase/internal/middleware/auth"
	loggingmw "github.com/avdonin/reviewbase/internal/middleware/logging"
	"github.com/avdonin/reviewbase/internal/mykafka"
	httpserver "github.com/avdonin/reviewbase/internal/transport/http"
)

const titlesIndex = "titles"

func main() {
	db, err := config.InitDB()
	if err != nil {
		log.Fatalf("database init error: %v", err)
	}

	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LOG_LEVEL)

	jwtSecret := []byte(configuration.JWT_SECRET)
	refreshSecret := []byte(configuration.REFRESH_SECRET)
	confirmSecret := []byte(configuration.CONFIRMATION_SECRET)

	prod := mykafka.NewProducer([]string{configuration.KAFKA_ADDRESS})

	esClient, err := es.NewClient(configuration)
	if err != nil {
		log.Fatal(err)
	}

	mailer := mail.NewSMTPMailer(
		configuration.SMTP_HOST,
		configuration.SMTP_PORT,
		configuration.SMTP_USER,
		configuration.SMTP_PASSWORD,
		configuration.ADMIN_EMAIL,
	)

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID(), loggingmw.RequestLogger(logger))

	deps := httpserver.Deps{
		DB:           db,
		TokenService: &authmw.TokenService{DB: db, JWTSecret: jwtSecret},
		AuthHandler: &handlers.AuthHandler{
			DB:            db,
			Mailer:        mailer,
			JWTSecret:     jwtSecret,
			RefreshSecret: refreshSecret,
			ConfirmSecret: confirmSecret,
			Producer:      prod,
		},
		UserHandler:     &handlers.UserHandler{DB: db},
		TitleHandler:    &handlers.TitleHandler{DB: db, ES: esClient, ESIndex: titlesIndex, Producer: prod},
		GenreHandler:    &handlers.GenreHandler{DB: db},
		CategoryHandler: &handlers.CategoryHandler{DB: db},
		ReviewHandler:   &handlers.ReviewHandler{DB: db, Producer: prod},
		CommentHandler:  &handlers.CommentHandler{DB: db},
		SearchHandler:   &handlers.SearchHandler{ES: esClient, Index: titlesIndex},
	}

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         ":8080",
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
