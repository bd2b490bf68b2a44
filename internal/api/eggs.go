package eggs

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	interf "github.com/tohatch/eggchain/internal/interfaces"
	model "github.com/tohatch/eggchain/internal/models"
	service "github.com/tohatch/eggchain/internal/services"
	"go.uber.org/zap"
)

// Читающий API для mini app и explorer.
// Единственная пишущая операция - начисление бонуса за подписку
type StatsHandler struct {
	router  *mux.Router
	ledger  *service.LedgerService
	archive interf.ArchiveStorage
	logger  *zap.Logger
}

func NewHandler(ledger *service.LedgerService, archive interf.ArchiveStorage, logger *zap.Logger) *StatsHandler {
	router := mux.NewRouter()
	handler := &StatsHandler{router, ledger, archive, logger}
	router.Use(MiddlewareCORS(), MiddlewareLog())
	router.HandleFunc("/api/stats", handler.StatsHandler).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/api/stats/check_subscription", handler.CheckSubscriptionHandler).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/api/egg/{key}", handler.EggHandler).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/api/user/{user_id}/eggs", handler.UserEggsHandler).Methods(http.MethodGet, http.MethodOptions)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return handler
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	h.router.ServeHTTP(w, req)
}

func (h *StatsHandler) Log(msg string, service string, err error) {
	h.logger.Error(msg,
		zap.String("service", service),
		zap.Error(err),
	)
}

func (h *StatsHandler) writeJSON(w http.ResponseWriter, service string, v any) {
	j, err := json.Marshal(v)
	if err != nil {
		h.Log("Marshal", service, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(j)
}

func writeError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// Статистика пользователя
func (h *StatsHandler) StatsHandler(w http.ResponseWriter, req *http.Request) {
	user, ok := parseUser(w, req.URL.Query().Get("user_id"))
	if !ok {
		return
	}
	stats := h.ledger.Stats(req.Context(), user)
	h.writeJSON(w, "StatsHandler", stats)
}

type checkSubscriptionRequest struct {
	UserID     int64 `json:"user_id"`
	Subscribed bool  `json:"subscribed"`
}

type checkSubscriptionResponse struct {
	Subscribed bool `json:"subscribed"`
	Awarded    bool `json:"awarded"`
}

// Начисление бонуса за подписку. Сам факт подписки проверяет транспорт,
// сюда приходит уже проверенный флаг
func (h *StatsHandler) CheckSubscriptionHandler(w http.ResponseWriter, req *http.Request) {
	body := &checkSubscriptionRequest{}
	err := json.NewDecoder(req.Body).Decode(body)
	defer req.Body.Close()
	if err != nil || body.UserID <= 0 {
		writeError(w, "user_id required", http.StatusBadRequest)
		return
	}

	awarded := h.ledger.ConfirmSubscription(req.Context(), body.UserID, body.Subscribed)
	stats := h.ledger.Stats(req.Context(), body.UserID)
	h.writeJSON(w, "CheckSubscriptionHandler", checkSubscriptionResponse{
		Subscribed: stats.Tasks[service.TaskSubscribe],
		Awarded:    awarded,
	})
}

// Яйцо по ключу. Ключ - строка транспорта в любом из форматов
func (h *StatsHandler) EggHandler(w http.ResponseWriter, req *http.Request) {
	vars := mux.Vars(req)
	sender, eggID, err := h.ledger.DecodeWire(vars["key"])
	if err != nil {
		writeError(w, "invalid egg key", http.StatusBadRequest)
		return
	}

	if h.archive != nil {
		rec, err := h.archive.GetEgg(req.Context(), sender, eggID)
		if err == nil {
			h.writeJSON(w, "EggHandler", rec)
			return
		}
		if !errors.Is(err, model.ErrNotFound) {
			h.Log("Archive get", "EggHandler", err)
		}
	}

	egg, err := h.ledger.EggInfo(sender, eggID)
	if err != nil {
		writeError(w, "egg not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, "EggHandler", eggToRecord(egg))
}

// Яйца, отправленные пользователем (только из архива)
func (h *StatsHandler) UserEggsHandler(w http.ResponseWriter, req *http.Request) {
	vars := mux.Vars(req)
	user, ok := parseUser(w, vars["user_id"])
	if !ok {
		return
	}
	if h.archive == nil {
		writeError(w, "egg archive is not configured", http.StatusNotFound)
		return
	}

	recs, err := h.archive.GetUserEggs(req.Context(), user)
	if err != nil {
		h.Log("Archive get", "UserEggsHandler", err)
		writeError(w, "failed to load eggs", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, "UserEggsHandler", map[string][]model.EggRecord{"eggs": recs})
}

func parseUser(w http.ResponseWriter, raw string) (int64, bool) {
	if raw == "" {
		writeError(w, "user_id required", http.StatusBadRequest)
		return 0, false
	}
	user, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || user <= 0 {
		writeError(w, "invalid user_id", http.StatusBadRequest)
		return 0, false
	}
	return user, true
}

func eggToRecord(egg model.Egg) model.EggRecord {
	rec := model.EggRecord{
		EggID:  egg.ID,
		Sender: egg.Sender,
		Status: "pending",
	}
	if egg.Status == model.HATCHED {
		rec.HatchedBy = egg.HatchedBy
		rec.Status = "hatched"
	}
	return rec
}
