package handler

import (
	"encoding/json"
	"net/http"

	"github.com/cpetrula/tonris-sub001/internal/domain"
	"github.com/cpetrula/tonris-sub001/internal/repository"
	"github.com/gorilla/mux"
)

// TenantHandler handles HTTP requests for voice tenants
type TenantHandler struct {
	tenantRepo repository.VoiceTenantRepository
}

// NewTenantHandler creates a new tenant handler
func NewTenantHandler(tenantRepo repository.VoiceTenantRepository) *TenantHandler {
	return &TenantHandler{
		tenantRepo: tenantRepo,
	}
}

// CreateTenant creates a new voice tenant
func (h *TenantHandler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateVoiceTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	tenant, err := h.tenantRepo.Create(r.Context(), &req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(tenant)
}

// GetTenant retrieves a voice tenant by its unique identifier
func (h *TenantHandler) GetTenant(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]

	tenant, err := h.tenantRepo.GetByID(r.Context(), id)
	if err != nil {
		if err.Error() == "voice tenant not found: "+id {
			http.Error(w, "Tenant not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tenant)
}

// GetTenantByTenantID retrieves a voice tenant by its tenant_id field
func (h *TenantHandler) GetTenantByTenantID(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	tenantID := vars["tenant_id"]

	tenant, err := h.tenantRepo.GetByTenantID(r.Context(), tenantID)
	if err != nil {
		if err.Error() == "voice tenant not found with tenant ID: "+tenantID {
			http.Error(w, "Tenant not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tenant)
}

// GetTenants lists voice tenants, optionally including disabled ones
func (h *TenantHandler) GetTenants(w http.ResponseWriter, r *http.Request) {
	includeDisabled := r.URL.Query().Get("include_disabled") == "true"

	tenants, err := h.tenantRepo.GetAll(r.Context(), includeDisabled)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tenants)
}

// UpdateTenant updates an existing voice tenant's configuration
func (h *TenantHandler) UpdateTenant(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]

	var req domain.UpdateVoiceTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	tenant, err := h.tenantRepo.Update(r.Context(), id, &req)
	if err != nil {
		if err.Error() == "voice tenant not found: "+id {
			http.Error(w, "Tenant not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tenant)
}

// DeleteTenant soft-deletes a voice tenant by its ID
func (h *TenantHandler) DeleteTenant(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]

	err := h.tenantRepo.Delete(r.Context(), id)
	if err != nil {
		if err.Error() == "voice tenant not found: "+id {
			http.Error(w, "Tenant not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CheckTenantExists reports whether a tenant with the given tenant_id exists
func (h *TenantHandler) CheckTenantExists(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	tenantID := vars["tenant_id"]

	exists, err := h.tenantRepo.ExistsByTenantID(r.Context(), tenantID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"exists": exists})
}

// SetupTenantRoutes sets up all tenant-related routes
func (h *TenantHandler) SetupTenantRoutes(router *mux.Router) {
	router.HandleFunc("/tenants", h.CreateTenant).Methods("POST")
	router.HandleFunc("/tenants", h.GetTenants).Methods("GET")
	router.HandleFunc("/tenants/{id}", h.GetTenant).Methods("GET")
	router.HandleFunc("/tenants/{id}", h.UpdateTenant).Methods("PUT")
	router.HandleFunc("/tenants/{id}", h.DeleteTenant).Methods("DELETE")
	router.HandleFunc("/tenants/by-tenant-id/{tenant_id}", h.GetTenantByTenantID).Methods("GET")
	router.HandleFunc("/tenants/{tenant_id}/exists", h.CheckTenantExists).Methods("GET")
}
