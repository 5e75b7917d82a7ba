package main

import (
	"context"
	"embed"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DrorShokoPeer/ttydx/internal/audit"
	"github.com/DrorShokoPeer/ttydx/internal/auth"
	"github.com/DrorShokoPeer/ttydx/internal/config"
	"github.com/DrorShokoPeer/ttydx/internal/database"
	"github.com/DrorShokoPeer/ttydx/internal/handlers"
	"github.com/DrorShokoPeer/ttydx/internal/logging"
	"github.com/DrorShokoPeer/ttydx/internal/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/robfig/cron/v3"
)

//go:embed web
var webFS embed.FS

func main() {
	// Handle CLI commands before starting the server
	if len(os.Args) > 1 && os.Args[1] == "--hash-password" {
		runHashPassword()
		return
	}

	config.Load()
	logging.Init()
	defer logging.Close()

	if err := database.Init(); err != nil {
		log.Fatalf("Database init: %v", err)
	}
	defer database.Close()

	auditor := audit.NewAuditor(database.DB, audit.NewStreamLogger(logging.Writer()),
		config.Cfg.AuditRetentionDays, config.Cfg.AuditQueueSize)
	defer auditor.Close()

	creds, err := auth.LoadCredentialStore(config.Cfg.PrincipalsFile)
	if err != nil {
		log.Fatalf("Principals: %v", err)
	}
	if config.Cfg.PrincipalsFile == "" {
		log.Printf("WARNING: no principals file configured, using the built-in development accounts")
	}
	log.Printf("Loaded %d principals", creds.Len())

	throttle := auth.NewLoginThrottle(config.Cfg.LoginWindow, config.Cfg.LoginMaxAttempts)
	sessions := auth.NewSessionStore(config.Cfg.SessionTTL)
	authority, err := auth.NewAuthority(creds, throttle, sessions, auditor, config.Cfg.BcryptCost)
	if err != nil {
		log.Fatalf("Session authority: %v", err)
	}
	handlers.Authority = authority

	pages, _ := fs.Sub(webFS, "web")
	handlers.Pages = pages
	staticFS, _ := fs.Sub(webFS, "web/static")

	// Periodic cleanup
	sched := cron.New()
	sched.AddFunc("@every 10m", func() {
		sessions.Cleanup()
		throttle.Cleanup()
	})
	sched.AddFunc("@daily", func() {
		if _, err := auditor.PurgeOlderThan(0); err != nil {
			log.Printf("Audit purge: %v", err)
		}
	})
	sched.Start()

	trusted, err := middleware.ParseTrustedProxies(config.Cfg.TrustedProxies)
	if err != nil {
		log.Fatalf("Trusted proxies: %v", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.TrustedRealIP(trusted))
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecurityHeaders)

	// Health (no auth)
	r.Get("/health", handlers.HealthCheck)

	r.Get("/", handlers.Index)
	r.Handle("/static/*", middleware.NewStaticHandler(staticFS, "/static"))

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", handlers.Login)
		r.Post("/logout", handlers.Logout)
		r.Get("/status", handlers.AuthStatus)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(authority))

			r.Get("/verify", handlers.Verify)
			r.With(middleware.RequireAdmin).Get("/admin/ping", handlers.AdminPing)
		})
	})

	r.With(middleware.RequirePage(authority, "/")).Get("/terminal", handlers.Terminal)

	// Graceful shutdown
	srv := &http.Server{
		Addr:              config.Cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("Server starting on %s", config.Cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-sigCtx.Done()
	log.Println("Shutting down...")

	<-sched.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	log.Println("Server stopped")
}

func runHashPassword() {
	fs := flag.NewFlagSet("hash-password", flag.ExitOnError)
	password := fs.String("password", "", "Password to hash")
	cost := fs.Int("cost", 0, "bcrypt cost (default TTYDX_BCRYPT_COST)")
	fs.Parse(os.Args[2:])

	if *password == "" {
		fmt.Fprintln(os.Stderr, "Usage: ttydx --hash-password --password <pass> [--cost N]")
		os.Exit(1)
	}

	config.Load()
	if *cost == 0 {
		*cost = config.Cfg.BcryptCost
	}

	hash, err := auth.HashPassword(*password, *cost)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}
	fmt.Println(hash)
}
