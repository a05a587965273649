package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/educhainverify/credential-service/api"
	"github.com/educhainverify/credential-service/credentials"
	"github.com/educhainverify/credential-service/interfaces"
	"github.com/go-chi/chi/v5"
)

// maxBodySize is the maximum allowed request body size (1MB).
const maxBodySize = 1024 * 1024

// Handler serves the credential API.
type Handler struct {
	svc          *credentials.Service
	log          *slog.Logger
	maxClockSkew time.Duration
	now          func() time.Time
}

// NewHandler creates a handler. A zero maxClockSkew selects DefaultMaxClockSkew.
func NewHandler(svc *credentials.Service, maxClockSkew time.Duration, log *slog.Logger) *Handler {
	if maxClockSkew <= 0 {
		maxClockSkew = DefaultMaxClockSkew
	}
	return &Handler{
		svc:          svc,
		log:          log,
		maxClockSkew: maxClockSkew,
		now:          time.Now,
	}
}

// RegisterRoutes mounts the API on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.WalletAuth)

			r.Post("/accounts", h.HandleRegisterAccount)
			r.Get("/accounts/me", h.HandleGetAccount)

			r.Post("/credentials", h.HandleIssue)
			r.Get("/credentials", h.HandleSearch)
			r.Get("/credentials/mine", h.HandleListMine)
			r.Post("/credentials/{id}/revoke", h.HandleRevoke)

			r.Get("/stats", h.HandleStats)
		})

		r.Get("/public/credentials/{id}", h.HandleShow)
		r.Get("/public/credentials/{id}/verify", h.HandleVerify)
		r.Get("/public/anchors", h.HandleAnchors)
	})
}

// HandleRegisterAccount binds the signing wallet to a role.
//
// URL format: POST /api/accounts
// Request body: interfaces.RegisterAccountRequest
func (h *Handler) HandleRegisterAccount(w http.ResponseWriter, r *http.Request) {
	wallet := h.mustWallet(r)

	var req interfaces.RegisterAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	account, err := h.svc.RegisterAccount(r.Context(), wallet, &req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, account)
}

// HandleGetAccount returns the signing wallet's account.
func (h *Handler) HandleGetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.svc.Account(r.Context(), h.mustWallet(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, account)
}

// HandleIssue issues a credential on behalf of the signing institute.
//
// URL format: POST /api/credentials
// Request body: interfaces.IssueRequest
// Response: the active credential with its anchor proof
func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	var req interfaces.IssueRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	cred, err := h.svc.Issue(r.Context(), h.mustWallet(r), &req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, cred)
}

// HandleRevoke revokes a credential issued by the signing institute.
//
// URL format: POST /api/credentials/{id}/revoke
// Request body: interfaces.RevokeRequest
func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	id, err := credentialIDParam(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req interfaces.RevokeRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	cred, err := h.svc.Revoke(r.Context(), h.mustWallet(r), id, &req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, cred)
}

// HandleSearch finds the signing institute's credentials by id or student email.
//
// URL format: GET /api/credentials?q={credential id or email}
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	found, err := h.svc.Search(r.Context(), h.mustWallet(r), r.URL.Query().Get("q"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, api.CredentialListResponse{Credentials: found})
}

// HandleListMine lists credentials issued to a student wallet, or by an institute wallet.
func (h *Handler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListMine(r.Context(), h.mustWallet(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, api.CredentialListResponse{Credentials: list})
}

// HandleStats returns the signing institute's total, active and revoked counts.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context(), h.mustWallet(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// HandleShow displays a credential without the student email.
//
// URL format: GET /api/public/credentials/{id}
func (h *Handler) HandleShow(w http.ResponseWriter, r *http.Request) {
	id, err := credentialIDParam(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	cred, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, cred.Public())
}

// HandleVerify checks a credential's anchor proof.
//
// URL format: GET /api/public/credentials/{id}/verify
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	id, err := credentialIDParam(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	result, err := h.svc.Verify(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	result.Credential = result.Credential.Public()
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) HandleAnchors(w http.ResponseWriter, r *http.Request) {
	types, def := h.svc.AnchorTypes()
	h.writeJSON(w, http.StatusOK, api.AnchorsResponse{Types: types, Default: def})
}

// mustWallet returns the wallet set by WalletAuth; routes using it are always behind it.
func (h *Handler) mustWallet(r *http.Request) interfaces.WalletAddress {
	wallet, ok := WalletFromContext(r.Context())
	if !ok {
		panic("wallet route served without WalletAuth")
	}
	return wallet
}

func credentialIDParam(r *http.Request) (interfaces.CredentialID, error) {
	id, err := interfaces.ParseCredentialID(chi.URLParam(r, "id"))
	if err != nil {
		return 0, &RequestError{StatusCode: http.StatusBadRequest, Err: err}
	}
	return id, nil
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return &RequestError{StatusCode: http.StatusRequestEntityTooLarge, Err: err}
		}
		return badRequest(err)
	}
	return nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to encode response", "err", err)
	}
}
