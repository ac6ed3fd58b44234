package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/caresync/caresync/internal/billing"
	"github.com/caresync/caresync/internal/config"
	"github.com/caresync/caresync/internal/handlers"
	"github.com/caresync/caresync/internal/middleware"
	"github.com/caresync/caresync/internal/notifier"
	"github.com/caresync/caresync/internal/repository"
	"github.com/caresync/caresync/internal/service"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	dynamoClient, err := initDynamoDB(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize DynamoDB")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Endpoint,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Repositories
	userRepo := repository.NewUserRepository(dynamoClient, cfg.DynamoDB.TableName, logger)
	otpStore := repository.NewOTPStore(redisClient, logger)
	paymentRepo := repository.NewPaymentRepository(dynamoClient, cfg.DynamoDB.TableName, logger)

	// External collaborators
	gateway := billing.NewStripeGateway(cfg.Stripe.SecretKey, logger)
	mailer := notifier.NewMailer(&cfg.SMTP, logger)

	// Services
	tokenService, err := service.NewTokenService(&cfg.JWT, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize token service")
	}

	otpService := service.NewOTPService(userRepo, otpStore, mailer, &cfg.OTP, logger)
	authService := service.NewAuthService(userRepo, otpService, tokenService, gateway, logger)
	paymentService := service.NewPaymentService(userRepo, paymentRepo, gateway, &cfg.Payment, logger)

	authHandlers := handlers.NewAuthHandlers(authService, tokenService.RefreshExpiry(), logger)
	paymentHandlers := handlers.NewPaymentHandlers(paymentService, logger)
	authMiddleware := middleware.NewAuthMiddleware(tokenService, logger)

	router := setupRouter(authHandlers, paymentHandlers, authMiddleware, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Fatal("Server forced to shutdown")
	}

	logger.Info("Server exited")
}

func initDynamoDB(cfg *config.Config, logger *logrus.Logger) (*dynamodb.Client, error) {
	var awsCfg aws.Config
	var err error

	if cfg.DynamoDB.Endpoint != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(context.TODO(),
			awsconfig.WithRegion(cfg.DynamoDB.Region),
			awsconfig.WithEndpointResolverWithOptions(aws.EndpointResolverWithOptionsFunc(
				func(service, region string, options ...interface{}) (aws.Endpoint, error) {
					return aws.Endpoint{
						URL:           cfg.DynamoDB.Endpoint,
						SigningRegion: cfg.DynamoDB.Region,
					}, nil
				})),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(context.TODO())
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg)
	logger.Info("DynamoDB client initialized")
	return client, nil
}

func setupRouter(
	authHandlers *handlers.AuthHandlers,
	paymentHandlers *handlers.PaymentHandlers,
	authMiddleware *middleware.AuthMiddleware,
	logger *logrus.Logger,
) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.CORSMiddleware)
	router.Use(middleware.LoggingMiddleware(logger))

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET", "OPTIONS")

	api := router.PathPrefix("/api/v1").Subrouter()

	auth := api.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/signup", authHandlers.Signup).Methods("POST", "OPTIONS")
	auth.HandleFunc("/signin", authHandlers.Signin).Methods("POST", "OPTIONS")
	auth.HandleFunc("/signout", authHandlers.Signout).Methods("POST", "OPTIONS")
	auth.HandleFunc("/send-otp", authHandlers.SendOTP).Methods("POST", "OPTIONS")
	auth.HandleFunc("/verify-otp", authHandlers.VerifyOTP).Methods("POST", "OPTIONS")
	auth.HandleFunc("/forgot-password", authHandlers.ForgotPassword).Methods("POST", "OPTIONS")
	auth.HandleFunc("/reset-password", authHandlers.ResetPassword).Methods("PATCH", "OPTIONS")
	auth.HandleFunc("/refresh", authHandlers.Refresh).Methods("POST", "OPTIONS")

	authProtected := api.PathPrefix("/auth").Subrouter()
	authProtected.Use(authMiddleware.RequireAuth)
	authProtected.HandleFunc("/change-password", authHandlers.ChangePassword).Methods("PATCH")
	authProtected.HandleFunc("/profile", authHandlers.Profile).Methods("GET")

	payment := api.PathPrefix("/payment").Subrouter()
	payment.Use(authMiddleware.RequireAuth)
	payment.HandleFunc("", paymentHandlers.ProcessPayment).Methods("POST")
	payment.HandleFunc("", paymentHandlers.GetAllPayments).Methods("GET")
	payment.HandleFunc("/saved-cards", paymentHandlers.GetSavedCards).Methods("GET")
	payment.HandleFunc("/{paymentId}", paymentHandlers.GetPaymentByID).Methods("GET")
	payment.HandleFunc("/{paymentMethodId}", paymentHandlers.DeletePaymentMethod).Methods("DELETE")

	return router
}
