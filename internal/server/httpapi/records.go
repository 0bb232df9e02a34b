package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/carevault/carevault/internal/common"
	"github.com/carevault/carevault/internal/cryptox"
	"github.com/carevault/carevault/internal/server/services"
)

// RecordsHandler serves the encrypted weekly-priority record CRUD plus the
// admin recovery listing.
type RecordsHandler struct {
	records *services.RecordService
}

func NewRecordsHandler(records *services.RecordService) *RecordsHandler {
	return &RecordsHandler{records: records}
}

type recordBody struct {
	Period  string `json:"period"`
	Subkey  string `json:"subkey,omitempty"`
	Payload []byte `json:"payload"`
}

type recordResponse struct {
	ID        string    `json:"id"`
	Period    string    `json:"period"`
	Subkey    string    `json:"subkey,omitempty"`
	Payload   []byte    `json:"payload"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Save upserts the caller's record for one period. Payloads are ciphertext
// produced client-side; the server never inspects them.
func (h *RecordsHandler) Save(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "authorization required", http.StatusUnauthorized)
		return
	}

	var req recordBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	rec, err := h.records.Save(r.Context(), claims.UserID, req.Period, req.Subkey, req.Payload)
	if err != nil {
		http.Error(w, "invalid record", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(recordResponse{
		ID: rec.ID, Period: rec.Period, Subkey: rec.Subkey,
		Payload: rec.EncryptedPayload, Version: rec.Version, UpdatedAt: rec.UpdatedAt,
	})
}

// Get returns one of the caller's records by period, with an optional subkey
// query parameter for manually entered entries.
func (h *RecordsHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "authorization required", http.StatusUnauthorized)
		return
	}

	period := chi.URLParam(r, "period")
	subkey := r.URL.Query().Get("subkey")

	rec, err := h.records.Get(r.Context(), claims.UserID, period, subkey)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			http.Error(w, "record not found", http.StatusNotFound)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(recordResponse{
		ID: rec.ID, Period: rec.Period, Subkey: rec.Subkey,
		Payload: rec.EncryptedPayload, Version: rec.Version, UpdatedAt: rec.UpdatedAt,
	})
}

// List returns all of the caller's records.
func (h *RecordsHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "authorization required", http.StatusUnauthorized)
		return
	}

	recs, err := h.records.List(r.Context(), claims.UserID)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	out := make([]recordResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, recordResponse{
			ID: rec.ID, Period: rec.Period, Subkey: rec.Subkey,
			Payload: rec.EncryptedPayload, Version: rec.Version, UpdatedAt: rec.UpdatedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

// Delete removes one of the caller's records.
func (h *RecordsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "authorization required", http.StatusUnauthorized)
		return
	}

	period := chi.URLParam(r, "period")
	subkey := r.URL.Query().Get("subkey")

	if err := h.records.Delete(r.Context(), claims.UserID, period, subkey); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			http.Error(w, "record not found", http.StatusNotFound)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type adminBundleResponse struct {
	UserID       string              `json:"user_id"`
	Username     string              `json:"username"`
	AdminWrapped *cryptox.WrappedKey `json:"admin_wrapped"`
	Profile      []byte              `json:"profile,omitempty"`
	Records      []recordResponse    `json:"records"`
}

// AdminList returns every user's admin-wrapped DEK with their encrypted
// records for offline recovery. Reachable only through the admin gate.
func (h *RecordsHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	bundles, err := h.records.AdminList(r.Context())
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	out := make([]adminBundleResponse, 0, len(bundles))
	for _, b := range bundles {
		recs := make([]recordResponse, 0, len(b.Records))
		for _, rec := range b.Records {
			recs = append(recs, recordResponse{
				ID: rec.ID, Period: rec.Period, Subkey: rec.Subkey,
				Payload: rec.EncryptedPayload, Version: rec.Version, UpdatedAt: rec.UpdatedAt,
			})
		}
		out = append(out, adminBundleResponse{
			UserID: b.UserID, Username: b.Username, AdminWrapped: b.AdminWrapped,
			Profile: b.Profile, Records: recs,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}
