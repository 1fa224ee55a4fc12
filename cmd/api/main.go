package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/cvlift/cvlift-api/internal/config"
	"github.com/cvlift/cvlift-api/internal/domain/billing"
	"github.com/cvlift/cvlift-api/internal/domain/coupon"
	"github.com/cvlift/cvlift-api/internal/domain/credit"
	"github.com/cvlift/cvlift-api/internal/domain/cvfile"
	"github.com/cvlift/cvlift-api/internal/domain/evaluation"
	"github.com/cvlift/cvlift-api/internal/domain/user"
	"github.com/cvlift/cvlift-api/internal/middleware"
	"github.com/cvlift/cvlift-api/internal/pkg/anthropic"
	"github.com/cvlift/cvlift-api/internal/pkg/database"
	"github.com/cvlift/cvlift-api/internal/pkg/imaging"
	"github.com/cvlift/cvlift-api/internal/pkg/jwt"
	"github.com/cvlift/cvlift-api/internal/pkg/logger"
	"github.com/cvlift/cvlift-api/internal/pkg/mercadopago"
	"github.com/cvlift/cvlift-api/internal/pkg/response"
	"github.com/cvlift/cvlift-api/internal/pkg/storage"
)

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env})

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting CVLift API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	redis, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redis)

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)

	store, err := storage.NewS3Storage(storage.Config{
		Endpoint:  cfg.S3Endpoint,
		Region:    cfg.S3Region,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3Bucket,
		PublicURL: cfg.S3PublicURL,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create S3 storage")
	}

	mpClient := mercadopago.NewClient(mercadopago.Config{
		BaseURL:     cfg.MercadoPagoBaseURL,
		AccessToken: cfg.MercadoPagoAccessToken,
	})

	llmClient := anthropic.NewClient(anthropic.Config{
		BaseURL: cfg.AnthropicBaseURL,
		APIKey:  cfg.AnthropicAPIKey,
		Model:   cfg.AnthropicModel,
	})

	processor := imaging.NewProcessor(imaging.DefaultConfig())

	// ---------- Repositories ----------
	userRepo := user.NewRepository(db)
	creditRepo := credit.NewRepository(db)
	billingRepo := billing.NewRepository(db)
	couponRepo := coupon.NewRepository(db)
	fileRepo := cvfile.NewRepository(db)
	evalRepo := evaluation.NewRepository(db)

	// ---------- WebSocket hub ----------
	hub := evaluation.NewHub(originChecker(cfg.AllowedOrigins))

	// ---------- Services ----------
	creditService := credit.NewService(creditRepo)
	billingService := billing.NewService(billingRepo, creditService, mpClient, billing.Config{
		PricePerCredit: cfg.PricePerCredit,
		Currency:       cfg.Currency,
		FrontendURL:    cfg.FrontendURL,
		BackendURL:     cfg.BackendURL,
	})
	// Redemption writes the transaction and the ledger entry in one database
	// transaction, so it takes the repositories rather than the services.
	couponService := coupon.NewService(couponRepo, billingRepo, creditRepo, cfg.Currency)
	fileService := cvfile.NewService(fileRepo, store, processor)
	evalService := evaluation.NewService(evalRepo, fileService, creditService, llmClient, redis, hub, cfg.CreditsPerEval)

	// ---------- Handlers ----------
	userHandler := user.NewHandler(userRepo, creditService)
	creditHandler := credit.NewHandler(creditService)
	billingHandler := billing.NewHandler(billingService)
	couponHandler := coupon.NewHandler(couponService)
	fileHandler := cvfile.NewHandler(fileService)
	evalHandler := evaluation.NewHandler(evalService)

	authMiddleware := middleware.Auth(jwtService, &userProvisioner{repo: userRepo})

	// ---------- Router ----------
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))

	// WebSocket endpoint for evaluation progress. Browsers cannot set headers
	// on WebSocket requests, so the token arrives as a query parameter.
	r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token != "" {
			r.Header.Set("Authorization", "Bearer "+token)
		}
		authMiddleware(http.HandlerFunc(hub.ServeWS)).ServeHTTP(w, r)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})

	// Payment provider notifications are authenticated by resource lookup,
	// not by user token, and must stay outside the versioned API.
	r.Post("/api/payments", billingHandler.Webhook)

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/users", userHandler.Routes(authMiddleware))
		r.Mount("/credits", creditHandler.Routes(authMiddleware))
		r.Mount("/billing", billingHandler.Routes(authMiddleware))
		r.Mount("/coupons", couponHandler.Routes(authMiddleware))
		r.Mount("/files", fileHandler.Routes(authMiddleware))
		r.Mount("/evaluations", evalHandler.Routes(authMiddleware))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}

// userProvisioner adapts the user repository to middleware.Provisioner.
// Identities come from the OAuth provider, so the first authenticated
// request is the moment the local row gets created.
type userProvisioner struct {
	repo user.Repository
}

func (p *userProvisioner) EnsureUser(ctx context.Context, id, email string) error {
	return p.repo.Ensure(ctx, &user.User{ID: id, Email: email})
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}
