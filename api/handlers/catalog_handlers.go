package handlers

import (
	"encoding/json"
	"net/http"

	"kestrel-sir/core/store"
	"kestrel-sir/core/utils"
)

// CatalogHandler manages the dimension tables incidents reference.
type CatalogHandler struct {
	facilities store.FacilitiesStore
	categories store.CategoriesStore
	analysts   store.AnalystsStore
	logger     *utils.Logger
}

func NewCatalogHandler(facilities store.FacilitiesStore, categories store.CategoriesStore, analysts store.AnalystsStore, logger *utils.Logger) *CatalogHandler {
	return &CatalogHandler{facilities: facilities, categories: categories, analysts: analysts, logger: logger}
}

func activeOnly(r *http.Request) bool {
	v := r.URL.Query().Get("active")
	return v == "1" || v == "true"
}

func (h *CatalogHandler) ListFacilities(w http.ResponseWriter, r *http.Request) {
	items, err := h.facilities.ListFacilities(r.Context(), activeOnly(r))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if items == nil {
		items = []store.Facility{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *CatalogHandler) CreateFacility(w http.ResponseWriter, r *http.Request) {
	var f store.Facility
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if _, err := h.facilities.CreateFacility(r.Context(), &f); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	items, err := h.categories.ListCategories(r.Context(), activeOnly(r))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if items == nil {
		items = []store.Category{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *CatalogHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var c store.Category
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if _, err := h.categories.CreateCategory(r.Context(), &c); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *CatalogHandler) ListAnalysts(w http.ResponseWriter, r *http.Request) {
	items, err := h.analysts.ListAnalysts(r.Context(), activeOnly(r))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if items == nil {
		items = []store.Analyst{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *CatalogHandler) CreateAnalyst(w http.ResponseWriter, r *http.Request) {
	var a store.Analyst
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if _, err := h.analysts.CreateAnalyst(r.Context(), &a); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}
