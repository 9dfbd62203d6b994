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

	"github.com/gorilla/mux"

	"rentahome/config"
	"rentahome/controllers"
	"rentahome/database"
	"rentahome/middleware"
	"rentahome/realtime"
	"rentahome/services"
	"rentahome/storage"
	"rentahome/utils"
)

// dependencies собирает все, что нужно маршрутам
type dependencies struct {
	cfg      *config.Config
	store    services.Store
	hub      *realtime.Hub
	events   realtime.Publisher
	mailer   services.Mailer
	uploader storage.ProofUploader
}

func newRouter(deps dependencies) http.Handler {
	users := services.NewUserService(deps.store)
	properties := services.NewPropertyService(deps.store)
	reservations := services.NewReservationService(deps.store, deps.mailer, deps.events)
	payments := services.NewPaymentService(deps.store, deps.uploader, deps.mailer, deps.events, deps.cfg.Payments.WindowDays)

	// Инициализируем контроллеры
	authController := controllers.NewAuthController(users, deps.cfg)
	propertyController := controllers.NewPropertyController(properties)
	reservationController := controllers.NewReservationController(reservations)
	paymentController := controllers.NewPaymentController(payments)
	eventsController := controllers.NewEventsController(deps.hub, reservations)

	router := mux.NewRouter()

	// Публичные маршруты
	router.HandleFunc("/api/health", controllers.Health).Methods("GET")
	router.HandleFunc("/api/auth/signUp", authController.SignUp).Methods("POST")
	router.HandleFunc("/api/auth/signIn", authController.SignIn).Methods("POST")

	// Защищенные маршруты
	protected := router.PathPrefix("/api").Subrouter()
	protected.Use(middleware.AuthMiddleware([]byte(authController.GetJWTKey())))
	protected.Use(middleware.LoggingMiddleware)
	protected.Use(middleware.RateLimit(utils.NewRateLimiter(deps.cfg.Server.RateLimit, time.Minute)))
	protected.Use(middleware.RequestTimeout(deps.cfg.Server.RequestTimeout))

	protected.HandleFunc("/me", authController.Me).Methods("GET")
	protected.HandleFunc("/metrics", controllers.Metrics).Methods("GET")
	protected.HandleFunc("/events", eventsController.Stream).Methods("GET")

	// Маршруты для работы с объектами
	protected.HandleFunc("/properties", propertyController.Search).Methods("GET")
	protected.HandleFunc("/properties", propertyController.Create).Methods("POST")
	protected.HandleFunc("/properties/mine", propertyController.Mine).Methods("GET")
	protected.HandleFunc("/properties/{id:[0-9]+}", propertyController.Get).Methods("GET")

	// Маршруты для работы с заявками
	protected.HandleFunc("/reservations", reservationController.Create).Methods("POST")
	protected.HandleFunc("/reservations/mine", reservationController.Mine).Methods("GET")
	protected.HandleFunc("/reservations/owner", reservationController.ForOwner).Methods("GET")
	protected.HandleFunc("/reservations/terminal", reservationController.ClearTerminal).Methods("DELETE")
	protected.HandleFunc("/reservations/{id:[0-9]+}", reservationController.Get).Methods("GET")
	protected.HandleFunc("/reservations/{id:[0-9]+}/status", reservationController.UpdateStatus).Methods("PATCH")
	protected.HandleFunc("/reservations/{id:[0-9]+}/cancel", reservationController.Cancel).Methods("POST")

	// Маршруты для работы с платежами
	protected.HandleFunc("/reservations/{id:[0-9]+}/payments", paymentController.Schedule).Methods("GET")
	protected.HandleFunc("/reservations/{id:[0-9]+}/payments", paymentController.Submit).Methods("POST")
	protected.HandleFunc("/reservations/{id:[0-9]+}/payments/proof", paymentController.UploadProof).Methods("POST")
	protected.HandleFunc("/payments/{id:[0-9]+}/verify", paymentController.Verify).Methods("POST")

	return middleware.Recovery(middleware.CORSMiddleware(router))
}

// openStore выбирает хранилище по DB_DRIVER
func openStore(cfg *config.Config) (services.Store, func() error, error) {
	if cfg.DB.Driver == "memory" {
		log.Println("Используется хранилище в памяти, данные не сохраняются между запусками")
		return database.NewMemoryStore(), func() error { return nil }, nil
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, err
	}
	return database.NewStore(db.DB), db.Close, nil
}

// newUploader возвращает загрузчик Cloudinary или заглушку, если учетные данные не заданы
func newUploader(cfg *config.Config) storage.ProofUploader {
	if !cfg.CloudinaryEnabled() {
		log.Println("Cloudinary не настроен, загрузка чеков отключена")
		return storage.DisabledUploader{}
	}
	uploader, err := storage.NewCloudinaryUploader(cfg.Cloudinary.CloudName, cfg.Cloudinary.APIKey, cfg.Cloudinary.APISecret, cfg.Cloudinary.Folder)
	if err != nil {
		log.Fatalf("Ошибка инициализации Cloudinary: %v", err)
	}
	return uploader
}

func main() {
	// Инициализируем конфигурацию
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	if cfg.LogDir != "" {
		if err := utils.InitLogFiles(cfg.LogDir); err != nil {
			log.Fatalf("Ошибка инициализации логов: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Инициализируем хранилище
	store, closeStore, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Ошибка подключения к базе данных: %v", err)
	}
	defer closeStore()

	// Лента изменений: локально или через Redis между экземплярами
	hub := realtime.NewHub()
	var events realtime.Publisher = hub
	if cfg.Redis.Addr != "" {
		bridge, err := realtime.NewRedisBridge(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Channel, hub)
		if err != nil {
			log.Fatalf("Ошибка подключения к Redis: %v", err)
		}
		defer bridge.Close()
		go func() {
			if err := bridge.Run(ctx); err != nil && ctx.Err() == nil {
				utils.LogError("Ошибка чтения событий из Redis: %v", err)
			}
		}()
		events = bridge
	}

	// Инициализируем сервис email
	emailService := services.NewEmailService(cfg)

	// Запускаем планировщик напоминаний о просроченных платежах
	services.NewPaymentSchedulerService(store, emailService, events, cfg.Payments.ReminderInterval).Start(ctx)
	log.Println("Планировщик напоминаний запущен")

	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: newRouter(dependencies{
			cfg:      cfg,
			store:    store,
			hub:      hub,
			events:   events,
			mailer:   emailService,
			uploader: newUploader(cfg),
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			utils.LogError("Ошибка остановки сервера: %v", err)
		}
	}()

	// Запускаем сервер
	log.Printf("Сервер запущен на порту %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Ошибка запуска сервера: %v", err)
	}
}
