package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"testament/internal/platform/middleware"
	"testament/internal/testament/models"
	id "testament/pkg/domain"
	dErrors "testament/pkg/domain-errors"
	"testament/pkg/platform/httputil"
	"testament/pkg/requestcontext"
)

// Service defines the testament operations exposed over HTTP.
type Service interface {
	Deploy(ctx context.Context, deployer, owner, doctor id.AccountID) (*models.Testament, error)
	ChangeDoctor(ctx context.Context, testamentID id.TestamentID, caller, newDoctor id.AccountID) error
	DeclareDeath(ctx context.Context, testamentID id.TestamentID, caller id.AccountID) error
	Bequeath(ctx context.Context, testamentID id.TestamentID, caller, beneficiary id.AccountID, amount id.Amount) error
	Withdraw(ctx context.Context, testamentID id.TestamentID, caller id.AccountID) (id.Amount, error)
	Get(ctx context.Context, testamentID id.TestamentID) (*models.Snapshot, error)
	BenefactorOf(ctx context.Context, testamentID id.TestamentID, account id.AccountID) (id.Amount, error)
	Bequests(ctx context.Context, testamentID id.TestamentID) ([]models.Bequest, error)
	Events(ctx context.Context, testamentID id.TestamentID) ([]models.Event, error)
}

// Handler serves the testament endpoints.
type Handler struct {
	logger       *slog.Logger
	service      Service
	jwtValidator middleware.JWTValidator
}

func New(service Service, logger *slog.Logger, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		service:      service,
		jwtValidator: jwtValidator,
	}
}

// Register mounts the routes. Queries are public; every mutation requires a
// caller token.
func (h *Handler) Register(r chi.Router) {
	r.Route("/testaments", func(r chi.Router) {
		r.Get("/{id}", h.handleGet)
		r.Get("/{id}/bequests", h.handleListBequests)
		r.Get("/{id}/bequests/{account}", h.handleBenefactorOf)
		r.Get("/{id}/events", h.handleEvents)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
			r.Post("/", h.handleDeploy)
			r.Put("/{id}/doctor", h.handleChangeDoctor)
			r.Post("/{id}/death", h.handleDeclareDeath)
			r.Post("/{id}/bequests", h.handleBequeath)
			r.Post("/{id}/withdrawal", h.handleWithdraw)
		})
	})
}

func (h *Handler) handleDeploy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req DeployRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	owner := req.Owner
	if owner.IsNil() {
		owner = caller
	}

	t, err := h.service.Deploy(ctx, caller, owner, req.Doctor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	snap := t.Snapshot()
	w.Header().Set("Location", "/testaments/"+t.ID.String())
	httputil.WriteJSON(w, http.StatusCreated, toTestamentResponse(&snap))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	testamentID, ok := h.testamentID(w, r)
	if !ok {
		return
	}
	snap, err := h.service.Get(r.Context(), testamentID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toTestamentResponse(snap))
}

func (h *Handler) handleBenefactorOf(w http.ResponseWriter, r *http.Request) {
	testamentID, ok := h.testamentID(w, r)
	if !ok {
		return
	}
	account, err := id.ParseAccountID(chi.URLParam(r, "account"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	amount, err := h.service.BenefactorOf(r.Context(), testamentID, account)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, BalanceResponse{Account: account.String(), Amount: amount.Int64()})
}

func (h *Handler) handleListBequests(w http.ResponseWriter, r *http.Request) {
	testamentID, ok := h.testamentID(w, r)
	if !ok {
		return
	}
	entries, err := h.service.Bequests(r.Context(), testamentID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := BequestsResponse{Bequests: make([]BalanceResponse, 0, len(entries))}
	for _, e := range entries {
		resp.Bequests = append(resp.Bequests, BalanceResponse{Account: e.Beneficiary.String(), Amount: e.Amount.Int64()})
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	testamentID, ok := h.testamentID(w, r)
	if !ok {
		return
	}
	events, err := h.service.Events(r.Context(), testamentID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := EventsResponse{Events: make([]EventResponse, 0, len(events))}
	for _, ev := range events {
		resp.Events = append(resp.Events, toEventResponse(ev))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleChangeDoctor(w http.ResponseWriter, r *http.Request) {
	testamentID, ok := h.testamentID(w, r)
	if !ok {
		return
	}
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req ChangeDoctorRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.service.ChangeDoctor(r.Context(), testamentID, caller, req.Doctor); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDeclareDeath(w http.ResponseWriter, r *http.Request) {
	testamentID, ok := h.testamentID(w, r)
	if !ok {
		return
	}
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	if err := h.service.DeclareDeath(r.Context(), testamentID, caller); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleBequeath(w http.ResponseWriter, r *http.Request) {
	testamentID, ok := h.testamentID(w, r)
	if !ok {
		return
	}
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req BequeathRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.service.Bequeath(r.Context(), testamentID, caller, req.Beneficiary, req.Amount); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	testamentID, ok := h.testamentID(w, r)
	if !ok {
		return
	}
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	amount, err := h.service.Withdraw(r.Context(), testamentID, caller)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, WithdrawalResponse{Amount: amount.Int64()})
}

func (h *Handler) testamentID(w http.ResponseWriter, r *http.Request) (id.TestamentID, bool) {
	testamentID, err := id.ParseTestamentID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return id.TestamentID{}, false
	}
	return testamentID, true
}

func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (id.AccountID, bool) {
	caller := requestcontext.Caller(r.Context())
	if caller.IsNil() {
		// RequireAuth guarantees a caller on these routes.
		h.logger.ErrorContext(r.Context(), "caller missing from context despite auth middleware",
			"request_id", requestcontext.RequestID(r.Context()),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.AccountID{}, false
	}
	return caller, true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if de, ok := dErrors.As(err); !ok || de.Code == dErrors.CodeInternal || de.Code == dErrors.CodeTimeout {
		h.logger.ErrorContext(r.Context(), "request failed",
			"path", r.URL.Path,
			"request_id", requestcontext.RequestID(r.Context()),
			"error", err.Error(),
		)
	}
	httputil.WriteError(w, err)
}
