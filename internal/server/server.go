package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/mhollis/chorecoin/internal/deduction"
	"github.com/mhollis/chorecoin/internal/handler"
	"github.com/mhollis/chorecoin/internal/ledger"
	"github.com/mhollis/chorecoin/internal/market"
	"github.com/mhollis/chorecoin/internal/middleware"
	"github.com/mhollis/chorecoin/internal/notify"
	"github.com/mhollis/chorecoin/internal/store"
	ws "github.com/mhollis/chorecoin/internal/websocket"
)

// Config carries the server's tunables from main.
type Config struct {
	Push          notify.Config
	SweepInterval time.Duration
}

type Server struct {
	db             *sql.DB
	hub            *ws.Hub
	taskH          *handler.TaskHandler
	completionH    *handler.CompletionHandler
	rewardH        *handler.RewardHandler
	requestH       *handler.RequestHandler
	memberH        *handler.MemberHandler
	settingsH      *handler.SettingsHandler
	pushH          *handler.PushHandler
	authH          *handler.AuthHandler
	deductionH     *handler.DeductionHandler
	sessionStore   *store.SessionStore
	householdStore *store.HouseholdStore
	sweeper        *deduction.Scheduler
	logger         *slog.Logger
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	taskStore := store.NewTaskStore(db)
	completionStore := store.NewCompletionStore(db)
	rewardStore := store.NewRewardStore(db)
	requestStore := store.NewRequestStore(db)
	userStore := store.NewUserStore(db)
	householdStore := store.NewHouseholdStore(db)
	sessionStore := store.NewSessionStore(db)
	pushStore := store.NewPushStore(db)

	pushSvc := notify.NewService(cfg.Push, pushStore, logger.With("component", "push"))
	ledgerSvc := ledger.NewService(taskStore, completionStore, logger.With("component", "ledger"))
	marketSvc := market.NewService(rewardStore, requestStore, userStore, logger.With("component", "market"))

	engine := deduction.NewEngine(householdStore, taskStore, userStore, logger.With("component", "deduction"))
	sweeper := deduction.NewScheduler(engine, householdStore, cfg.SweepInterval, logger.With("component", "deduction"))

	return &Server{
		db:             db,
		hub:            hub,
		taskH:          handler.NewTaskHandler(taskStore, ledgerSvc, hub, logger.With("component", "task")),
		completionH:    handler.NewCompletionHandler(ledgerSvc, completionStore, pushSvc, hub, logger.With("component", "completion")),
		rewardH:        handler.NewRewardHandler(marketSvc, rewardStore, pushSvc, hub, logger.With("component", "reward")),
		requestH:       handler.NewRequestHandler(marketSvc, requestStore, pushSvc, hub, logger.With("component", "request")),
		memberH:        handler.NewMemberHandler(userStore, householdStore, logger.With("component", "member")),
		settingsH:      handler.NewSettingsHandler(householdStore, logger.With("component", "settings")),
		pushH:          handler.NewPushHandler(pushStore, pushSvc, logger.With("component", "push_handler")),
		authH:          handler.NewAuthHandler(userStore, householdStore, sessionStore, logger.With("component", "auth")),
		deductionH:     handler.NewDeductionHandler(engine, logger.With("component", "deduction")),
		sessionStore:   sessionStore,
		householdStore: householdStore,
		sweeper:        sweeper,
		logger:         logger,
	}
}

// Sweeper returns the deduction scheduler so main can manage its lifecycle.
func (s *Server) Sweeper() *deduction.Scheduler {
	return s.sweeper
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("POST /api/auth/register", s.authH.Register)
	outerMux.HandleFunc("POST /api/auth/login", s.authH.Login)
	outerMux.HandleFunc("POST /api/auth/join", s.authH.Join)
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes behind RequireAuth
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore, s.householdStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogging(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	admin := func(h http.HandlerFunc) http.Handler {
		return middleware.RequireAdmin(h)
	}

	mux.HandleFunc("POST /api/auth/logout", s.authH.Logout)
	mux.Handle("POST /api/invites", admin(s.authH.CreateInvite))

	// Task routes
	mux.HandleFunc("POST /api/tasks", s.taskH.Create)
	mux.HandleFunc("GET /api/tasks", s.taskH.List)
	mux.HandleFunc("GET /api/tasks/due", s.taskH.DueOn)
	mux.HandleFunc("GET /api/tasks/{id}", s.taskH.Get)
	mux.HandleFunc("PUT /api/tasks/{id}", s.taskH.Update)
	mux.HandleFunc("DELETE /api/tasks/{id}", s.taskH.Delete)

	// Completion routes
	mux.HandleFunc("POST /api/tasks/{id}/complete", s.completionH.Submit)
	mux.HandleFunc("GET /api/completions", s.completionH.ListMine)
	mux.Handle("GET /api/completions/pending", admin(s.completionH.ListPending))
	mux.Handle("POST /api/completions/{id}/approve", admin(s.completionH.Approve))
	mux.Handle("POST /api/completions/{id}/reject", admin(s.completionH.Reject))

	// Reward routes
	mux.Handle("POST /api/rewards", admin(s.rewardH.Create))
	mux.HandleFunc("GET /api/rewards", s.rewardH.List)
	mux.Handle("PUT /api/rewards/{id}", admin(s.rewardH.Update))
	mux.Handle("DELETE /api/rewards/{id}", admin(s.rewardH.Delete))
	mux.HandleFunc("POST /api/rewards/{id}/request", s.rewardH.Request)

	// Reward request routes
	mux.HandleFunc("GET /api/requests", s.requestH.ListMine)
	mux.Handle("GET /api/requests/pending", admin(s.requestH.ListPending))
	mux.Handle("POST /api/requests/{id}/approve", admin(s.requestH.Approve))
	mux.Handle("POST /api/requests/{id}/deny", admin(s.requestH.Deny))
	mux.Handle("POST /api/requests/{id}/fulfill", admin(s.requestH.Fulfill))

	// Member routes
	mux.HandleFunc("GET /api/members", s.memberH.List)
	mux.HandleFunc("GET /api/members/me", s.memberH.Me)
	mux.HandleFunc("GET /api/members/me/balance", s.memberH.Balance)
	mux.HandleFunc("POST /api/members/me/pin", s.memberH.SetPIN)
	mux.HandleFunc("POST /api/members/{id}/pin/verify", s.memberH.VerifyPIN)

	// Household settings
	mux.HandleFunc("GET /api/household", s.settingsH.Get)
	mux.Handle("PUT /api/household/policy", admin(s.settingsH.SetPolicy))

	// Manual deduction sweep
	mux.Handle("POST /api/deductions/run", admin(s.deductionH.Run))

	// Push notification routes
	mux.HandleFunc("GET /api/push/vapid-key", s.pushH.VAPIDKey)
	mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
	mux.HandleFunc("POST /api/push/unsubscribe", s.pushH.Unsubscribe)

	// WebSocket for realtime sync
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))
}
