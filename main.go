package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"exportdesk/api"
	"exportdesk/handlers"
	"exportdesk/internal/auth"
	"exportdesk/internal/config"
	"exportdesk/internal/database"
	"exportdesk/internal/logging"
	"exportdesk/services/accounts"
	"exportdesk/services/directory"
	"exportdesk/services/mailer"
	"exportdesk/services/materials"
	"exportdesk/services/platform"
	"exportdesk/services/shipments"
	"exportdesk/services/signatures"
	"exportdesk/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log := logging.Setup(cfg.LogPath)
	utils.SetAllowedOrigins(cfg.FrontendBaseURL)

	db, err := database.NewDB(database.Config{DatabasePath: cfg.DatabasePath})
	if err != nil {
		log.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	conn := db.Connection()
	orgRepo := database.NewOrganizationRepository(conn)
	userRepo := database.NewUserRepository(conn)
	relationRepo := database.NewRelationRepository(conn)
	shipmentRepo := database.NewShipmentRepository(conn)
	linkRepo := database.NewMagicLinkRepository(conn)
	signatureRepo := database.NewSignatureRepository(conn)
	tokenRepo := database.NewTokenRepository(conn)
	configRepo := database.NewSysConfigRepository(conn)

	issuer := auth.NewIssuer(cfg.SigningSecret)

	mailerSvc := mailer.NewService(mailer.SMTPConfig(cfg.SMTP), cfg.FrontendBaseURL, log)
	defer mailerSvc.Close()

	directorySvc := directory.NewService(orgRepo, userRepo, relationRepo, shipmentRepo, log)
	accountsSvc := accounts.NewService(userRepo, orgRepo, tokenRepo, issuer,
		cfg.AccessTokenTTL, cfg.RefreshTokenTTL, log)
	shipmentsSvc := shipments.NewService(shipmentRepo, orgRepo, relationRepo, linkRepo,
		directorySvc, mailerSvc, cfg.MagicLinkTTL, log)
	signaturesSvc := signatures.NewService(linkRepo, signatureRepo, shipmentRepo, userRepo,
		shipmentsSvc, issuer, log)
	platformSvc := platform.NewService(orgRepo, userRepo, shipmentRepo, configRepo, issuer, log)
	materialsSvc, err := materials.NewService(cfg.MaterialsPath, log)
	if err != nil {
		log.Error("failed to load material catalog", "error", err)
		os.Exit(1)
	}

	authHandler := handlers.NewAuthHandler(accountsSvc)
	claimHandler := handlers.NewClaimHandler(accountsSvc)
	clientsHandler := handlers.NewClientsHandler(directorySvc)
	shipmentsHandler := handlers.NewShipmentsHandler(shipmentsSvc)
	signHandler := handlers.NewSignHandler(signaturesSvc)
	materialsHandler := handlers.NewMaterialsHandler(materialsSvc)
	platformHandler := handlers.NewPlatformHandler(platformSvc)

	router := utils.NewRouter()

	// Credential endpoints get a tight per-IP rate limit.
	loginLimiter := api.NewIPRateLimiter(rate.Every(12*time.Second), 5)
	signLimiter := api.NewIPRateLimiter(rate.Every(2*time.Second), 10)

	// Public: authentication and claim
	router.HandleFunc("/auth/login",
		api.RateLimitHandlerFunc(loginLimiter, authHandler.Login)).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/auth/refresh", authHandler.Refresh).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/auth/logout", authHandler.Logout).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/claim/verify/{token}",
		api.RateLimitHandlerFunc(loginLimiter, claimHandler.Verify)).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/claim/{token}",
		api.RateLimitHandlerFunc(loginLimiter, claimHandler.Claim)).Methods(http.MethodPost, http.MethodOptions)

	// Public: magic-link signing, the token in the URL is the credential
	router.HandleFunc("/sign/{shipmentID}/{token}",
		api.RateLimitHandlerFunc(signLimiter, signHandler.View)).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/sign/{shipmentID}/{token}/submit",
		api.RateLimitHandlerFunc(signLimiter, signHandler.Submit)).Methods(http.MethodPost, http.MethodOptions)

	// Public: platform admin login
	router.HandleFunc("/platform/login",
		api.RateLimitHandlerFunc(loginLimiter, platformHandler.Login)).Methods(http.MethodPost, http.MethodOptions)

	// Tenant routes behind session auth
	session := router.NewRoute().Subrouter()
	session.Use(api.SessionAuthMiddleware(issuer, userRepo))
	session.HandleFunc("/auth/me", authHandler.Me).Methods(http.MethodGet, http.MethodOptions)
	session.HandleFunc("/clients", clientsHandler.List).Methods(http.MethodGet, http.MethodOptions)
	session.HandleFunc("/clients", clientsHandler.Add).Methods(http.MethodPost)
	session.HandleFunc("/clients/{id}", clientsHandler.Get).Methods(http.MethodGet, http.MethodOptions)
	session.HandleFunc("/clients/{id}/emails", clientsHandler.Emails).Methods(http.MethodGet, http.MethodOptions)
	session.HandleFunc("/shipments", shipmentsHandler.List).Methods(http.MethodGet, http.MethodOptions)
	session.HandleFunc("/shipments", shipmentsHandler.Create).Methods(http.MethodPost)
	session.HandleFunc("/shipments/{id}", shipmentsHandler.Get).Methods(http.MethodGet, http.MethodOptions)
	session.HandleFunc("/shipments/{id}/sales-confirmation", shipmentsHandler.Confirmation).Methods(http.MethodGet, http.MethodOptions)
	session.HandleFunc("/shipments/{id}/send-sc", shipmentsHandler.SendForSignature).Methods(http.MethodPost, http.MethodOptions)
	session.HandleFunc("/shipments/{id}/logistics", shipmentsHandler.UpdateLogistics).Methods(http.MethodPut, http.MethodOptions)
	session.HandleFunc("/shipments/{id}/advance", shipmentsHandler.Advance).Methods(http.MethodPost, http.MethodOptions)
	session.HandleFunc("/shipments/{id}/items", shipmentsHandler.AddItem).Methods(http.MethodPost, http.MethodOptions)
	session.HandleFunc("/shipments/{id}/items/{itemID}", shipmentsHandler.UpdateItem).Methods(http.MethodPut, http.MethodOptions)
	session.HandleFunc("/shipments/{id}/items/{itemID}", shipmentsHandler.DeleteItem).Methods(http.MethodDelete)
	session.HandleFunc("/materials", materialsHandler.List).Methods(http.MethodGet, http.MethodOptions)

	// Back office behind platform auth
	admin := router.PathPrefix("/platform").Subrouter()
	admin.Use(api.PlatformAuthMiddleware(issuer, userRepo))
	admin.HandleFunc("/stats", platformHandler.Stats).Methods(http.MethodGet, http.MethodOptions)
	admin.HandleFunc("/organizations", platformHandler.ListOrganizations).Methods(http.MethodGet, http.MethodOptions)
	admin.HandleFunc("/organizations", platformHandler.CreateOrganization).Methods(http.MethodPost)
	admin.HandleFunc("/organizations/{id}", platformHandler.UpdateOrganization).Methods(http.MethodPut, http.MethodOptions)
	admin.HandleFunc("/organizations/{id}", platformHandler.DeleteOrganization).Methods(http.MethodDelete)
	admin.HandleFunc("/users", platformHandler.ListUsers).Methods(http.MethodGet, http.MethodOptions)
	admin.HandleFunc("/users", platformHandler.CreateUser).Methods(http.MethodPost)
	admin.HandleFunc("/users/{id}", platformHandler.UpdateUser).Methods(http.MethodPut, http.MethodOptions)
	admin.HandleFunc("/users/{id}", platformHandler.DeleteUser).Methods(http.MethodDelete)
	admin.HandleFunc("/config", platformHandler.GetConfig).Methods(http.MethodGet, http.MethodOptions)
	admin.HandleFunc("/config", platformHandler.SetConfig).Methods(http.MethodPut)

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server listening", "addr", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Evict consumed refresh tokens once their natural expiry has passed.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			if n, err := tokenRepo.PurgeExpired(); err != nil {
				log.Warn("token purge failed", "error", err)
			} else if n > 0 {
				log.Info("purged expired revoked tokens", "count", n)
			}
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
