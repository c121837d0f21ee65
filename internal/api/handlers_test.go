package api

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inmo-search/internal/auth"
	"inmo-search/internal/db"
	"inmo-search/internal/models"
	"inmo-search/internal/search"
)

func testServer(t *testing.T) (*httptest.Server, *db.DB) {
	t.Helper()
	database, err := db.NewMemory()
	require.NoError(t, err)

	synonyms := search.NewSynonyms(search.DefaultSynonyms)
	srv := httptest.NewServer(NewRouter(database, synonyms))
	t.Cleanup(func() {
		srv.Close()
		database.Close()
	})
	return srv, database
}

func mustInsert(t *testing.T, database *db.DB, l models.Listing) models.Listing {
	t.Helper()
	if l.Imagenes == "" {
		l.Imagenes = "[]"
	}
	require.NoError(t, l.Prepare())
	require.NoError(t, database.InsertListing(&l))
	return l
}

func baseListing(titulo, tipo, operacion string) models.Listing {
	return models.Listing{
		Titulo:        titulo,
		Tipo:          tipo,
		TipoOperacion: operacion,
		Estado:        models.EstadoActiva,
		Direccion:     "Mitre 100",
		Localidad:     "Quilmes",
		Provincia:     "Buenos Aires",
		Pais:          "Argentina",
	}
}

func getJSON(t *testing.T, url string, out interface{}) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

type searchResponse struct {
	Propiedades []models.ListingSummary `json:"propiedades"`
	Page        int                     `json:"page"`
	TotalPages  int                     `json:"total_pages"`
	Total       int                     `json:"total"`
	Q           string                  `json:"q"`
	Applied     []AppliedFilter         `json:"applied_filters"`
	Localidades []string                `json:"localidades"`
	RadioKm     float64                 `json:"radio_km"`
}

func TestSearchEndpointSynonyms(t *testing.T) {
	srv, database := testServer(t)

	mustInsert(t, database, baseListing("Depto céntrico", models.TipoDepartamento, models.OperacionVenta))
	mustInsert(t, database, baseListing("Casa con jardín", models.TipoCasa, models.OperacionVenta))

	var got searchResponse
	resp := getJSON(t, srv.URL+"/api/buscar?q=departamento", &got)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.Len(t, got.Propiedades, 1)
	assert.Equal(t, "Depto céntrico", got.Propiedades[0].Titulo)
	assert.Equal(t, "departamento", got.Propiedades[0].Tipo)

	require.NotEmpty(t, got.Applied)
	assert.Equal(t, "q", got.Applied[0].Key)
	assert.Equal(t, "departamento", got.Q)
	assert.Equal(t, []string{"Quilmes"}, got.Localidades)
}

func TestSearchEndpointStructuredFilters(t *testing.T) {
	srv, database := testServer(t)

	cheap := baseListing("Depto económico", models.TipoDepartamento, models.OperacionAlquiler)
	cheap.PrecioPesos = sql.NullFloat64{Float64: 200000, Valid: true}
	mustInsert(t, database, cheap)

	dear := baseListing("Depto premium", models.TipoDepartamento, models.OperacionAlquiler)
	dear.PrecioPesos = sql.NullFloat64{Float64: 900000, Valid: true}
	mustInsert(t, database, dear)

	var got searchResponse
	getJSON(t, srv.URL+"/api/buscar?max=500000&operacion=alquiler", &got)
	require.Len(t, got.Propiedades, 1)
	assert.Equal(t, "Depto económico", got.Propiedades[0].Titulo)

	// Malformed numeric input: the filter is skipped, not an error.
	resp := getJSON(t, srv.URL+"/api/buscar?max=abc", &got)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, got.Propiedades, 2)
}

func TestNearbyEndpoint(t *testing.T) {
	srv, database := testServer(t)

	at := baseListing("En el punto", models.TipoCasa, models.OperacionVenta)
	at.Latitude = sql.NullFloat64{Float64: -34.72, Valid: true}
	at.Longitude = sql.NullFloat64{Float64: -58.25, Valid: true}
	mustInsert(t, database, at)

	// ~0.45 degrees of latitude north: about 50 km away.
	away := baseListing("A 50 km", models.TipoCasa, models.OperacionVenta)
	away.Latitude = sql.NullFloat64{Float64: -34.27, Valid: true}
	away.Longitude = sql.NullFloat64{Float64: -58.25, Valid: true}
	mustInsert(t, database, away)

	var got searchResponse
	getJSON(t, srv.URL+"/api/cercanas?lat=-34.72&lng=-58.25&r=20", &got)
	require.Len(t, got.Propiedades, 1)
	assert.Equal(t, "En el punto", got.Propiedades[0].Titulo)

	getJSON(t, srv.URL+"/api/cercanas?lat=-34.72&lng=-58.25&r=60", &got)
	require.Len(t, got.Propiedades, 2)
	assert.Equal(t, "En el punto", got.Propiedades[0].Titulo)
	assert.Equal(t, "A 50 km", got.Propiedades[1].Titulo)
	require.NotNil(t, got.Propiedades[1].DistanceKm)
	assert.InDelta(t, 50, *got.Propiedades[1].DistanceKm, 2)
}

func TestNearbyEndpointDegenerateInput(t *testing.T) {
	srv, database := testServer(t)
	mustInsert(t, database, baseListing("Sin geo", models.TipoCasa, models.OperacionVenta))

	var got searchResponse
	resp := getJSON(t, srv.URL+"/api/cercanas?lat=abc", &got)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, got.Propiedades, 1)
	assert.Equal(t, 20.0, got.RadioKm)
}

func TestListingDetailActiveOnly(t *testing.T) {
	srv, database := testServer(t)

	active := mustInsert(t, database, baseListing("Visible", models.TipoCasa, models.OperacionVenta))

	paused := baseListing("Oculta", models.TipoCasa, models.OperacionVenta)
	paused.Estado = models.EstadoPausada
	hidden := mustInsert(t, database, paused)

	resp := getJSON(t, srv.URL+"/api/propiedades/"+active.Codigo, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = getJSON(t, srv.URL+"/api/propiedades/"+hidden.Codigo, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func createStaffUser(t *testing.T, database *db.DB, username, password string) {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	require.NoError(t, database.CreateUser(&models.User{
		Username:     username,
		DNI:          "20333444",
		PasswordHash: hash,
		IsStaff:      true,
		IsActive:     true,
	}))
}

func login(t *testing.T, srv *httptest.Server, ident, password string) (*http.Response, string) {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"usuario_o_dni": ident, "password": password})
	resp, err := http.Post(srv.URL+"/api/panel/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return resp, ""
	}
	var out struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out.Token
}

func TestPanelLoginAndRateLimit(t *testing.T) {
	srv, database := testServer(t)
	createStaffUser(t, database, "admin", "clave-segura")

	resp, _ := login(t, srv, "admin", "wrong")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Attempts 2-5 fail normally, the 6th is throttled.
	for i := 0; i < 4; i++ {
		resp, _ = login(t, srv, "admin", "wrong")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
	resp, _ = login(t, srv, "admin", "clave-segura")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestPanelLoginByDNI(t *testing.T) {
	srv, database := testServer(t)
	createStaffUser(t, database, "admin", "clave-segura")

	resp, token := login(t, srv, "20333444", "clave-segura")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, token)
}

func panelRequest(t *testing.T, method, url, token string, payload interface{}) *http.Response {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestPanelCRUDFlow(t *testing.T) {
	srv, database := testServer(t)
	createStaffUser(t, database, "admin", "clave-segura")

	resp, token := login(t, srv, "admin", "clave-segura")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Unauthorized without a token.
	resp = panelRequest(t, "GET", srv.URL+"/api/panel/propiedades", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// Create. Coordinates provided, so no geocoding round trip happens.
	lat, lng := -34.72, -58.25
	input := map[string]interface{}{
		"titulo":         "PH reciclado",
		"descripcion":    "Patio propio",
		"tipo":           models.TipoPH,
		"tipo_operacion": models.OperacionVenta,
		"precio_usd":     95000,
		"habitaciones":   3,
		"direccion":      "Alsina 1200",
		"localidad":      "Quilmes",
		"provincia":      "Buenos Aires",
		"pais":           "Argentina",
		"latitude":       lat,
		"longitude":      lng,
		"imagenes":       []string{"https://example.com/1.webp"},
	}
	resp = panelRequest(t, "POST", srv.URL+"/api/panel/propiedades", token, input)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		Codigo   string   `json:"codigo"`
		Imagenes []string `json:"imagenes"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()
	require.NotEmpty(t, created.Codigo)
	assert.Equal(t, []string{"https://example.com/1.webp"}, created.Imagenes)

	// The new listing is publicly searchable via a synonym.
	var got searchResponse
	getJSON(t, srv.URL+"/api/buscar?q=propiedad+horizontal", &got)
	require.Len(t, got.Propiedades, 1)
	assert.Equal(t, created.Codigo, got.Propiedades[0].Codigo)

	// Update.
	input["titulo"] = "PH reciclado con terraza"
	resp = panelRequest(t, "PUT", srv.URL+"/api/panel/propiedades/"+created.Codigo, token, input)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Pause it: it disappears from public search.
	resp = panelRequest(t, "POST", srv.URL+"/api/panel/propiedades/"+created.Codigo+"/estado",
		token, map[string]string{"estado": models.EstadoPausada})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	getJSON(t, srv.URL+"/api/buscar?q=ph", &got)
	assert.Empty(t, got.Propiedades)

	// Still visible in the panel list.
	resp = panelRequest(t, "GET", srv.URL+"/api/panel/propiedades?estado="+models.EstadoPausada, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var panelList struct {
		Propiedades []models.Listing `json:"propiedades"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&panelList))
	resp.Body.Close()
	require.Len(t, panelList.Propiedades, 1)
	assert.Equal(t, "PH reciclado con terraza", panelList.Propiedades[0].Titulo)
}

func TestPanelCreateValidation(t *testing.T) {
	srv, database := testServer(t)
	createStaffUser(t, database, "admin", "clave-segura")
	_, token := login(t, srv, "admin", "clave-segura")

	tooManyImages := make([]string, models.MaxImages+1)
	for i := range tooManyImages {
		tooManyImages[i] = fmt.Sprintf("https://example.com/%d.webp", i)
	}

	cases := []map[string]interface{}{
		{"titulo": "", "tipo": models.TipoCasa, "tipo_operacion": models.OperacionVenta,
			"localidad": "Quilmes", "provincia": "Buenos Aires", "pais": "Argentina"},
		{"titulo": "X", "tipo": "castillo", "tipo_operacion": models.OperacionVenta,
			"localidad": "Quilmes", "provincia": "Buenos Aires", "pais": "Argentina"},
		{"titulo": "X", "tipo": models.TipoCasa, "tipo_operacion": "permuta",
			"localidad": "Quilmes", "provincia": "Buenos Aires", "pais": "Argentina"},
		{"titulo": "X", "tipo": models.TipoCasa, "tipo_operacion": models.OperacionVenta,
			"localidad": "", "provincia": "Buenos Aires", "pais": "Argentina"},
		{"titulo": "X", "tipo": models.TipoCasa, "tipo_operacion": models.OperacionVenta,
			"localidad": "Quilmes", "provincia": "Buenos Aires", "pais": "Argentina",
			"imagenes": tooManyImages},
	}
	for i, input := range cases {
		resp := panelRequest(t, "POST", srv.URL+"/api/panel/propiedades", token, input)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "case %d", i)
		resp.Body.Close()
	}
}

func TestPaginationClampEndpoint(t *testing.T) {
	srv, database := testServer(t)
	for i := 0; i < db.PageSize*3-2; i++ {
		mustInsert(t, database, baseListing(fmt.Sprintf("Casa %d", i), models.TipoCasa, models.OperacionVenta))
	}

	var got searchResponse
	resp := getJSON(t, srv.URL+"/api/propiedades?page=9999", &got)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, got.Page)
	assert.Equal(t, 3, got.TotalPages)
	assert.NotEmpty(t, got.Propiedades)
}
