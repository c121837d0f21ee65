package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"inmo-search/internal/auth"
	"inmo-search/internal/db"
	"inmo-search/internal/models"
)

// sessionTTL is how long a panel login stays valid.
const sessionTTL = 12 * time.Hour

type ctxKey int

const userKey ctxKey = 0

type loginRequest struct {
	UsuarioODNI string `json:"usuario_o_dni"`
	Password    string `json:"password"`
}

// Login handles POST /api/panel/login. Staff sign in with username or DNI;
// attempts are limited to 5 per 15 minutes per IP+identifier and the counter
// clears on success.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ident := strings.TrimSpace(req.UsuarioODNI)
	if ident == "" || req.Password == "" {
		http.Error(w, "credenciales inválidas", http.StatusBadRequest)
		return
	}

	key := "login_attempts:" + ClientIP(r) + ":" + ident
	if !h.limiter.Allow(key) {
		http.Error(w, "demasiados intentos, probá en 15 minutos", http.StatusTooManyRequests)
		return
	}

	user, err := h.db.GetUserByIdentifier(ident)
	if err != nil || !user.IsStaff || !auth.CheckPassword(user.PasswordHash, req.Password) {
		http.Error(w, "credenciales inválidas", http.StatusUnauthorized)
		return
	}

	token, err := auth.NewToken()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	session := &models.Session{
		Token:     token,
		UserID:    user.ID,
		ExpiresAt: time.Now().UTC().Add(sessionTTL),
	}
	if err := h.db.CreateSession(session); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.limiter.Reset(key)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"token":      token,
		"username":   user.Username,
		"expires_at": session.ExpiresAt,
	})
}

// Logout handles POST /api/panel/logout.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if token := bearerToken(r); token != "" {
		if err := h.db.DeleteSession(token); err != nil {
			log.Printf("logout: %v", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// RequireStaff resolves the bearer token to an active staff user and rejects
// the request otherwise.
func (h *Handlers) RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		user, err := h.db.GetSessionUser(token)
		if err != nil || !user.IsStaff {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(header[len("Bearer "):])
	}
	return ""
}

// PanelListListings handles GET /api/panel/propiedades: all statuses, free
// substring search over the presentation fields, 20 per page.
func (h *Handlers) PanelListListings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := db.AdminFilter{
		Q:         strings.TrimSpace(q.Get("q")),
		Estado:    strings.TrimSpace(q.Get("estado")),
		Localidad: strings.TrimSpace(q.Get("localidad")),
	}

	page, err := h.db.AdminListListings(filter, parsePage(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"propiedades": page.Items,
		"page":        page.Number,
		"total_pages": page.TotalPages,
		"total":       page.TotalCount,
	})
}

// listingInput is the create/update payload for the panel.
type listingInput struct {
	Titulo             string   `json:"titulo"`
	Descripcion        string   `json:"descripcion"`
	PrecioUSD          *float64 `json:"precio_usd"`
	PrecioPesos        *float64 `json:"precio_pesos"`
	Tipo               string   `json:"tipo"`
	TipoOperacion      string   `json:"tipo_operacion"`
	Habitaciones       int      `json:"habitaciones"`
	Banos              int      `json:"banos"`
	Cochera            bool     `json:"cochera"`
	AceptaMascotas     bool     `json:"acepta_mascotas"`
	SuperficieTotal    *int64   `json:"superficie_total"`
	SuperficieCubierta *int64   `json:"superficie_cubierta"`
	Direccion          string   `json:"direccion"`
	Localidad          string   `json:"localidad"`
	Provincia          string   `json:"provincia"`
	Pais               string   `json:"pais"`
	Destacada          bool     `json:"destacada"`
	Latitude           *float64 `json:"latitude"`
	Longitude          *float64 `json:"longitude"`
	Imagenes           []string `json:"imagenes"`
}

func (in *listingInput) validate() string {
	if strings.TrimSpace(in.Titulo) == "" {
		return "titulo is required"
	}
	if _, ok := models.TipoLabels[in.Tipo]; !ok {
		return "invalid tipo"
	}
	if _, ok := models.OperacionLabels[in.TipoOperacion]; !ok {
		return "invalid tipo_operacion"
	}
	if len(in.Imagenes) > models.MaxImages {
		return "at most 10 images per listing"
	}
	return ""
}

// apply copies the payload onto a listing. Used for both create and update:
// the panel form always posts the full record.
func (in *listingInput) apply(l *models.Listing) error {
	l.Titulo = in.Titulo
	l.Descripcion = in.Descripcion
	l.PrecioUSD = nullFloat(in.PrecioUSD)
	l.PrecioPesos = nullFloat(in.PrecioPesos)
	l.Tipo = in.Tipo
	l.TipoOperacion = in.TipoOperacion
	l.Habitaciones = in.Habitaciones
	l.Banos = in.Banos
	l.Cochera = in.Cochera
	l.AceptaMascotas = in.AceptaMascotas
	l.SuperficieTotal = nullInt(in.SuperficieTotal)
	l.SuperficieCubierta = nullInt(in.SuperficieCubierta)
	l.Direccion = in.Direccion
	l.Localidad = in.Localidad
	l.Provincia = in.Provincia
	l.Pais = in.Pais
	l.Destacada = in.Destacada
	if in.Latitude != nil && in.Longitude != nil {
		l.Latitude = nullFloat(in.Latitude)
		l.Longitude = nullFloat(in.Longitude)
	}

	imgs := in.Imagenes
	if imgs == nil {
		imgs = []string{}
	}
	encoded, err := json.Marshal(imgs)
	if err != nil {
		return err
	}
	l.Imagenes = string(encoded)
	return nil
}

// PanelCreateListing handles POST /api/panel/propiedades.
func (h *Handlers) PanelCreateListing(w http.ResponseWriter, r *http.Request) {
	var in listingInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if msg := in.validate(); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	var l models.Listing
	if err := in.apply(&l); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := l.Prepare(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.geocodeIfMissing(r.Context(), &l)

	if err := h.db.InsertListing(&l); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusCreated, listingDetail(&l))
}

// PanelUpdateListing handles PUT /api/panel/propiedades/{codigo}.
func (h *Handlers) PanelUpdateListing(w http.ResponseWriter, r *http.Request) {
	codigo := chi.URLParam(r, "codigo")

	listing, err := h.db.GetListing(codigo, false)
	if err != nil {
		http.Error(w, "propiedad no encontrada", http.StatusNotFound)
		return
	}

	var in listingInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if msg := in.validate(); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	if err := in.apply(listing); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := listing.Prepare(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.geocodeIfMissing(r.Context(), listing)

	if err := h.db.UpdateListing(listing); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "propiedad no encontrada", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, listingDetail(listing))
}

type estadoRequest struct {
	Estado string `json:"estado"`
}

// PanelSetEstado handles POST /api/panel/propiedades/{codigo}/estado.
func (h *Handlers) PanelSetEstado(w http.ResponseWriter, r *http.Request) {
	codigo := chi.URLParam(r, "codigo")

	var req estadoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	valid := false
	for _, e := range models.EstadoValues {
		if req.Estado == e {
			valid = true
			break
		}
	}
	if !valid {
		http.Error(w, "invalid estado", http.StatusBadRequest)
		return
	}

	if err := h.db.SetListingEstado(codigo, req.Estado); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "propiedad no encontrada", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"codigo": codigo, "estado": req.Estado})
}

// geocodeIfMissing fills coordinates from the address when absent. Failure is
// non-fatal: the listing saves without coordinates and the geocode tool can
// backfill later.
func (h *Handlers) geocodeIfMissing(ctx context.Context, l *models.Listing) {
	if l.Latitude.Valid && l.Longitude.Valid {
		return
	}
	if strings.TrimSpace(l.Direccion) == "" {
		return
	}
	address := strings.Join([]string{l.Direccion, l.Localidad, l.Provincia, l.Pais}, ", ")
	lat, lng, err := h.geocoder.Geocode(ctx, address)
	if err != nil {
		log.Printf("geocode %s: %v", l.Codigo, err)
		return
	}
	l.Latitude = sql.NullFloat64{Float64: lat, Valid: true}
	l.Longitude = sql.NullFloat64{Float64: lng, Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
