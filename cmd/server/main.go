package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m2b-ebook/api/internal/auth"
	"github.com/m2b-ebook/api/internal/config"
	"github.com/m2b-ebook/api/internal/events"
	mw "github.com/m2b-ebook/api/internal/middleware"
	"github.com/m2b-ebook/api/internal/notify"
	"github.com/m2b-ebook/api/internal/router"
	"github.com/m2b-ebook/api/internal/service"
	"github.com/m2b-ebook/api/internal/storage"
	"github.com/m2b-ebook/api/internal/ws"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := storage.Open(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to open order store: %v", err)
	}
	defer closeStore()

	creds, err := auth.NewCredentials(cfg.AdminUsername, cfg.AdminPassword, cfg.AdminPasswordHash)
	if err != nil {
		log.Fatalf("Failed to set up admin credentials: %v", err)
	}

	var (
		revoker auth.Revoker = auth.NewMemoryRevoker()
		limiter mw.Limiter
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Printf("WARN: redis %s not reachable at start-up: %v", cfg.RedisAddr, err)
		}
		revoker = auth.NewRedisRevoker(rdb)
		limiter = mw.NewRedisLimiter(rdb, cfg.IntakeRateLimit, cfg.IntakeRateWindow)
		log.Printf("Redis enabled at %s (session revocation, intake rate limit)", cfg.RedisAddr)
	} else {
		log.Println("REDIS_ADDR not set: sessions revoke in memory, intake is not rate limited")
	}
	sessions := auth.NewSessions(cfg.JWTSecret, cfg.SessionTTL, revoker)

	hub := ws.NewHub()
	publishers := events.Fanout{hub}
	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		publishers = append(publishers, kp)
		log.Printf("Publishing order events to kafka topic %s", cfg.KafkaTopic)
	}

	links := notify.WhatsApp{AdminNumber: cfg.AdminWhatsApp, ProductName: cfg.ProductName}
	mailer := notify.NewMailer(notify.SMTPConfig{
		Host:      cfg.SMTPHost,
		Port:      cfg.SMTPPort,
		Username:  cfg.SMTPUsername,
		Password:  cfg.SMTPPassword,
		FromEmail: cfg.FromEmail,
		FromName:  cfg.FromName,
		ReplyTo:   cfg.SupportEmail,
	})
	if cfg.SMTPHost == "" {
		log.Println("SMTP_HOST not set: emails are disabled, use the WhatsApp links")
	}
	notifier, err := notify.NewEmailNotifier(mailer, notify.Options{
		ProductName:  cfg.ProductName,
		SupportEmail: cfg.SupportEmail,
		EbookURL:     cfg.EbookURL,
		WhatsApp:     links,
	})
	if err != nil {
		log.Fatalf("Failed to parse email templates: %v", err)
	}

	intake := service.NewIntakeService(store, notifier, publishers, service.IntakeConfig{
		Price:         cfg.EbookPrice,
		Links:         links,
		Location:      cfg.Location,
		NotifyTimeout: cfg.NotifyTimeout,
	})
	lifecycle := service.NewLifecycleService(store, notifier, publishers, service.LifecycleConfig{
		EbookURL:      cfg.EbookURL,
		Links:         links,
		Location:      cfg.Location,
		NotifyTimeout: cfg.NotifyTimeout,
	})

	r := router.New(cfg, router.Deps{
		Credentials:   creds,
		Sessions:      sessions,
		Intake:        intake,
		Query:         service.NewQueryService(store),
		Lifecycle:     lifecycle,
		Hub:           hub,
		IntakeLimiter: limiter,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		log.Printf("Starting server on :%s (store: %s)", cfg.Port, cfg.DBDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Printf("ERROR: server: %v", err)
	}
	intake.Wait()
	log.Println("Server stopped")
}
