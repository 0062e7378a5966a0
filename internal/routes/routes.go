package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nairalink/nairalink/internal/config"
	"github.com/nairalink/nairalink/internal/directory"
	"github.com/nairalink/nairalink/internal/events"
	"github.com/nairalink/nairalink/internal/ledger"
	"github.com/nairalink/nairalink/internal/middleware"
	"github.com/nairalink/nairalink/internal/notification"
	"github.com/nairalink/nairalink/internal/rewards"
	"github.com/nairalink/nairalink/internal/savings"
	"github.com/nairalink/nairalink/internal/scheduler"
	"github.com/nairalink/nairalink/internal/split"
	"github.com/nairalink/nairalink/internal/transfer"
	"github.com/nairalink/nairalink/internal/wallet"
)

// Deps aggregates the shared dependencies routes are wired from. DB and
// Cache may be nil outside production, in which case in-memory stores and
// in-process event dispatch are used.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup wires middlewares, stores, services and routes. The returned
// scheduler drives recurring transfers and is started by the caller.
func Setup(app *fiber.App, d Deps) (*scheduler.Scheduler, error) {
	if !isDev(d.Cfg.AppEnv) {
		if d.DB == nil {
			return nil, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return nil, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	RegisterHealthRoutes(app, d)

	// Stores
	var store ledger.Store
	var users directory.Directory
	var schedules transfer.ScheduleRepository
	var circles savings.Repository
	var pools split.Repository
	var points rewards.Repository
	if d.DB != nil {
		store = ledger.NewPostgresStore(d.DB)
		users = directory.NewPostgresRepository(d.DB)
		schedules = transfer.NewPostgresScheduleRepository(d.DB)
		circles = savings.NewPostgresRepository(d.DB)
		pools = split.NewPostgresRepository(d.DB)
		points = rewards.NewPostgresRepository(d.DB)
	} else {
		store = ledger.NewInMemory()
		users = directory.NewMemoryRepository()
		schedules = transfer.NewMemoryScheduleRepository()
		circles = savings.NewMemoryRepository()
		pools = split.NewMemoryRepository()
		points = rewards.NewMemoryRepository()
	}

	// Outbound collaborators: notifications and the completed-transaction
	// event stream feeding rewards accrual (and Redis, when available).
	notifier := notification.NewLoggerNotifier(d.Logger)
	rewardsSvc := rewards.NewService(points)
	dispatcher := events.NewDispatcher(d.Logger, rewardsSvc)
	if d.Cache != nil {
		dispatcher.Register(events.NewRedisPublisher(d.Cache, ""))
	}

	// Engines
	limits := transfer.Limits{
		MinAmount: d.Cfg.TransferMinAmount,
		MaxAmount: d.Cfg.TransferMaxAmount,
		DailyCap:  d.Cfg.TransferDailyCap,
	}
	walletSvc := wallet.NewService(store, dispatcher, notifier)
	transferSvc := transfer.NewService(store, users, schedules, dispatcher, notifier, limits)
	savingsSvc := savings.NewService(circles, store, dispatcher, notifier)
	splitSvc := split.NewService(pools, store, users, dispatcher, notifier)
	sched := scheduler.New(transferSvc, schedules, notifier, d.Logger)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterUserRoutes(api, users, walletSvc, d.Logger)
	RegisterWalletRoutes(api, wallet.NewHandler(walletSvc))
	RegisterTransferRoutes(api, transfer.NewHandler(transferSvc))
	RegisterSavingsRoutes(api, savings.NewHandler(savingsSvc))
	RegisterSplitRoutes(api, split.NewHandler(splitSvc))
	RegisterRewardsRoutes(api, rewards.NewHandler(rewardsSvc))
	RegisterSchedulerRoutes(api, scheduler.NewHandler(sched))

	return sched, nil
}

// RegisterUserRoutes wires user registration with an auto-provisioned
// wallet. Authentication lives outside this service; callers identify
// themselves with the X-User-ID header.
func RegisterUserRoutes(r fiber.Router, users directory.Directory, wallets *wallet.Service, logger *slog.Logger) {
	r.Post("/users", func(c *fiber.Ctx) error {
		var req struct {
			Email string `json:"email"`
			Name  string `json:"name"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		if req.Email == "" {
			return fiber.NewError(http.StatusBadRequest, "email is required")
		}
		user := directory.User{
			ID:        uuid.NewString(),
			Email:     req.Email,
			Name:      req.Name,
			CreatedAt: time.Now().UTC(),
		}
		if err := users.Create(c.UserContext(), user); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		w, err := wallets.Create(c.UserContext(), wallet.CreateInput{UserID: user.ID})
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
		if logger != nil {
			logger.Info("user registered",
				slog.String("user_id", user.ID),
				slog.String("wallet_id", w.ID),
			)
		}
		return c.Status(http.StatusCreated).JSON(fiber.Map{
			"user_id":   user.ID,
			"email":     user.Email,
			"name":      user.Name,
			"wallet_id": w.ID,
		})
	})
}

func isDev(env string) bool {
	switch strings.ToLower(env) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}
