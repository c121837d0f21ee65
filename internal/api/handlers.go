package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"inmo-search/internal/auth"
	"inmo-search/internal/db"
	"inmo-search/internal/geo"
	"inmo-search/internal/models"
	"inmo-search/internal/search"
)

// Handlers contains HTTP handlers and their dependencies
type Handlers struct {
	db       *db.DB
	synonyms *search.Synonyms
	geocoder *geo.Geocoder
	limiter  *auth.LoginLimiter
}

// NewHandlers creates a new Handlers instance
func NewHandlers(database *db.DB, synonyms *search.Synonyms) *Handlers {
	return &Handlers{
		db:       database,
		synonyms: synonyms,
		geocoder: geo.NewGeocoder(),
		limiter:  auth.NewDefaultLoginLimiter(),
	}
}

// AppliedFilter is one removable filter chip shown over the results.
type AppliedFilter struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Value string `json:"value"`
}

// parseFilter reads the structured filter params. Malformed numbers are
// ignored: the corresponding filter is simply not applied.
func parseFilter(q url.Values) db.ListingFilter {
	f := db.ListingFilter{
		Operacion: strings.TrimSpace(q.Get("operacion")),
		Tipo:      strings.TrimSpace(q.Get("tipo")),
		Localidad: strings.TrimSpace(q.Get("localidad")),
		Mascotas:  strings.TrimSpace(q.Get("mascotas")) != "",
	}

	if v := strings.TrimSpace(q.Get("max")); v != "" {
		if mx, err := strconv.ParseFloat(v, 64); err == nil {
			f.MaxPrecio = &mx
		}
	}
	if v := strings.TrimSpace(q.Get("habitaciones")); v != "" {
		if hab, err := strconv.Atoi(v); err == nil {
			f.MinHabitaciones = &hab
		}
	}

	return f
}

func parsePage(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// ListListings handles GET /api/propiedades: structured filters only.
func (h *Handlers) ListListings(w http.ResponseWriter, r *http.Request) {
	filter := parseFilter(r.URL.Query())

	page, err := h.db.SearchListings(filter, parsePage(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"propiedades": summaries(page.Items),
		"page":        page.Number,
		"total_pages": page.TotalPages,
		"total":       page.TotalCount,
	})
}

// SearchListings handles GET /api/buscar: free text plus structured filters.
func (h *Handlers) SearchListings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rawQuery := strings.TrimSpace(q.Get("q"))

	filter := parseFilter(q)
	filter.SearchGroups = h.synonyms.ExpandQuery(rawQuery)

	// Localities still reachable with every filter except localidad itself,
	// to populate the locality selector.
	localities, err := h.db.DistinctLocalities(filter)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	page, err := h.db.SearchListings(filter, parsePage(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"propiedades":     summaries(page.Items),
		"page":            page.Number,
		"total_pages":     page.TotalPages,
		"total":           page.TotalCount,
		"q":               rawQuery,
		"applied_filters": appliedFilters(rawQuery, filter),
		"localidades":     localities,
	})
}

// Nearby handles GET /api/cercanas: listings within r km of a point, nearest
// first. Without usable coordinates it degrades to the unconstrained active
// set in recency order.
func (h *Handlers) Nearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	lat, latErr := strconv.ParseFloat(q.Get("lat"), 64)
	lng, lngErr := strconv.ParseFloat(q.Get("lng"), 64)

	radius := geo.DefaultRadiusKm
	if v, err := strconv.ParseFloat(q.Get("r"), 64); err == nil && v > 0 {
		radius = v
	}

	if latErr != nil || lngErr != nil {
		page, err := h.db.SearchListings(db.ListingFilter{}, parsePage(r))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"propiedades": summaries(page.Items),
			"radio_km":    radius,
		})
		return
	}

	minLat, maxLat, minLng, maxLng := geo.BoundingBox(lat, lng, radius)
	candidates, err := h.db.NearbyCandidates(minLat, maxLat, minLng, maxLng)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	type scored struct {
		listing models.Listing
		km      float64
	}
	matches := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		d := geo.Distance(lat, lng, c.Latitude.Float64, c.Longitude.Float64)
		if d <= radius {
			matches = append(matches, scored{listing: c, km: d})
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].km < matches[j].km })

	results := make([]models.ListingSummary, 0, len(matches))
	for _, m := range matches {
		s := summarize(m.listing)
		km := m.km
		s.DistanceKm = &km
		results = append(results, s)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"propiedades": results,
		"radio_km":    radius,
	})
}

// GetListing handles GET /api/propiedades/{codigo}. Only active listings are
// visible publicly.
func (h *Handlers) GetListing(w http.ResponseWriter, r *http.Request) {
	codigo := chi.URLParam(r, "codigo")

	listing, err := h.db.GetListing(codigo, true)
	if err != nil {
		http.Error(w, "propiedad no encontrada", http.StatusNotFound)
		return
	}

	respondJSON(w, http.StatusOK, listingDetail(listing))
}

// Featured handles GET /api/destacadas: up to 10 featured listings for the
// home page.
func (h *Handlers) Featured(w http.ResponseWriter, r *http.Request) {
	items, err := h.db.FeaturedListings()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"propiedades": summaries(items),
	})
}

// GetFilterOptions handles GET /api/filtros/opciones
func (h *Handlers) GetFilterOptions(w http.ResponseWriter, r *http.Request) {
	options, err := h.db.GetFilterOptions()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, options)
}

func appliedFilters(rawQuery string, f db.ListingFilter) []AppliedFilter {
	chips := []AppliedFilter{}
	if rawQuery != "" {
		chips = append(chips, AppliedFilter{Key: "q", Label: "Búsqueda", Value: rawQuery})
	}
	if f.Operacion != "" {
		v := f.Operacion
		if label, ok := models.OperacionLabels[v]; ok {
			v = label
		}
		chips = append(chips, AppliedFilter{Key: "operacion", Label: "Operación", Value: v})
	}
	if f.Tipo != "" {
		v := f.Tipo
		if label, ok := models.TipoLabels[v]; ok {
			v = label
		}
		chips = append(chips, AppliedFilter{Key: "tipo", Label: "Tipo", Value: v})
	}
	if f.MinHabitaciones != nil {
		chips = append(chips, AppliedFilter{
			Key: "habitaciones", Label: "Habitaciones",
			Value: "≥ " + strconv.Itoa(*f.MinHabitaciones),
		})
	}
	if f.MaxPrecio != nil {
		chips = append(chips, AppliedFilter{
			Key: "max", Label: "Precio máx.",
			Value: strconv.FormatFloat(*f.MaxPrecio, 'f', -1, 64),
		})
	}
	if f.Mascotas {
		chips = append(chips, AppliedFilter{Key: "mascotas", Label: "Acepta mascotas", Value: ""})
	}
	if f.Localidad != "" {
		chips = append(chips, AppliedFilter{Key: "localidad", Label: "Localidad", Value: f.Localidad})
	}
	return chips
}

func summaries(items []models.Listing) []models.ListingSummary {
	out := make([]models.ListingSummary, 0, len(items))
	for _, l := range items {
		out = append(out, summarize(l))
	}
	return out
}

func summarize(l models.Listing) models.ListingSummary {
	s := models.ListingSummary{
		Codigo:         l.Codigo,
		Titulo:         l.Titulo,
		Tipo:           l.Tipo,
		TipoOperacion:  l.TipoOperacion,
		PrecioDisplay:  l.PrecioDisplay(),
		Habitaciones:   l.Habitaciones,
		AceptaMascotas: l.AceptaMascotas,
		Localidad:      l.Localidad,
		Provincia:      l.Provincia,
		Destacada:      l.Destacada,
	}
	if imgs := decodeImages(l.Imagenes); len(imgs) > 0 {
		s.Imagen = imgs[0]
	}
	return s
}

// listingDetailResponse is the full listing shape plus derived presentation
// fields.
type listingDetailResponse struct {
	*models.Listing
	PrecioDisplay string   `json:"precio_display"`
	Imagenes      []string `json:"imagenes"`
}

func listingDetail(l *models.Listing) listingDetailResponse {
	return listingDetailResponse{
		Listing:       l,
		PrecioDisplay: l.PrecioDisplay(),
		Imagenes:      decodeImages(l.Imagenes),
	}
}

func decodeImages(raw string) []string {
	var imgs []string
	if raw != "" {
		json.Unmarshal([]byte(raw), &imgs)
	}
	return imgs
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
