package models

import (
	"database/sql"
	"errors"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"inmo-search/internal/search"
)

// Property types
const (
	TipoCasa         = "casa"
	TipoDepartamento = "departamento"
	TipoPH           = "ph"
	TipoLocal        = "local"
	TipoTerreno      = "terreno"
	TipoOtro         = "otro"
)

// Operation types
const (
	OperacionVenta      = "venta"
	OperacionAlquiler   = "alquiler"
	OperacionTemporario = "temporario"
)

// Publication states
const (
	EstadoActiva     = "activa"
	EstadoPausada    = "pausada"
	EstadoFinalizada = "finalizada"
)

// TipoLabels maps property type values to their display labels.
var TipoLabels = map[string]string{
	TipoCasa:         "Casa",
	TipoDepartamento: "Departamento",
	TipoPH:           "PH",
	TipoLocal:        "Local",
	TipoTerreno:      "Terreno",
	TipoOtro:         "Otro",
}

// OperacionLabels maps operation values to their display labels.
var OperacionLabels = map[string]string{
	OperacionVenta:      "Venta",
	OperacionAlquiler:   "Alquiler",
	OperacionTemporario: "Temporario",
}

// EstadoValues lists the valid publication states.
var EstadoValues = []string{EstadoActiva, EstadoPausada, EstadoFinalizada}

// MaxImages caps the gallery size per listing.
const MaxImages = 10

// ErrMissingLocation is returned by Prepare when the required location
// fields are incomplete.
var ErrMissingLocation = errors.New("localidad, provincia y pais are required")

// Listing is a property listing record.
type Listing struct {
	ID                 int64           `db:"id" json:"id"`
	Codigo             string          `db:"codigo" json:"codigo"`
	Titulo             string          `db:"titulo" json:"titulo"`
	Descripcion        string          `db:"descripcion" json:"descripcion"`
	PrecioUSD          sql.NullFloat64 `db:"precio_usd" json:"precio_usd"`
	PrecioPesos        sql.NullFloat64 `db:"precio_pesos" json:"precio_pesos"`
	Tipo               string          `db:"tipo" json:"tipo"`
	TipoOperacion      string          `db:"tipo_operacion" json:"tipo_operacion"`
	Habitaciones       int             `db:"habitaciones" json:"habitaciones"`
	Banos              int             `db:"banos" json:"banos"`
	Cochera            bool            `db:"cochera" json:"cochera"`
	AceptaMascotas     bool            `db:"acepta_mascotas" json:"acepta_mascotas"`
	SuperficieTotal    sql.NullInt64   `db:"superficie_total" json:"superficie_total"`
	SuperficieCubierta sql.NullInt64   `db:"superficie_cubierta" json:"superficie_cubierta"`
	Estado             string          `db:"estado" json:"estado"`
	Direccion          string          `db:"direccion" json:"direccion"`
	Localidad          string          `db:"localidad" json:"localidad"`
	Provincia          string          `db:"provincia" json:"provincia"`
	Pais               string          `db:"pais" json:"pais"`
	LocalidadNorm      string          `db:"localidad_norm" json:"-"`
	ProvinciaNorm      string          `db:"provincia_norm" json:"-"`
	PaisNorm           string          `db:"pais_norm" json:"-"`
	Destacada          bool            `db:"destacada" json:"destacada"`
	Latitude           sql.NullFloat64 `db:"latitude" json:"latitude"`
	Longitude          sql.NullFloat64 `db:"longitude" json:"longitude"`
	Imagenes           string          `db:"imagenes" json:"-"` // JSON array of URLs
	SearchIndex        string          `db:"search_index" json:"-"`
	Creado             time.Time       `db:"creado" json:"creado"`
	Actualizado        time.Time       `db:"actualizado" json:"actualizado"`
}

// Prepare runs the save pipeline: validates required location fields,
// generates a codigo when absent, title-cases the location fields, recomputes
// their normalized shadows and rebuilds the search blob. Must run before
// every insert or update.
func (l *Listing) Prepare() error {
	if strings.TrimSpace(l.Localidad) == "" ||
		strings.TrimSpace(l.Provincia) == "" ||
		strings.TrimSpace(l.Pais) == "" {
		return ErrMissingLocation
	}

	if l.Codigo == "" {
		l.Codigo = NewCodigo()
	}
	if l.Estado == "" {
		l.Estado = EstadoActiva
	}

	l.Localidad = titleCase(l.Localidad)
	l.Provincia = titleCase(l.Provincia)
	l.Pais = titleCase(l.Pais)

	l.LocalidadNorm = search.Normalize(l.Localidad)
	l.ProvinciaNorm = search.Normalize(l.Provincia)
	l.PaisNorm = search.Normalize(l.Pais)

	l.SearchIndex = l.buildSearchIndex()
	return nil
}

// buildSearchIndex joins every searchable field, including the phrases
// derived from the boolean amenities, into one normalized blob.
func (l *Listing) buildSearchIndex() string {
	parts := []string{
		l.Titulo, l.Descripcion, l.Direccion,
		l.Localidad, l.Provincia, l.Pais,
		l.Tipo, l.TipoOperacion,
	}
	if l.Cochera {
		parts = append(parts, "cochera")
	} else {
		parts = append(parts, "no cochera")
	}
	if l.AceptaMascotas {
		parts = append(parts, "acepta mascotas")
	} else {
		parts = append(parts, "no mascotas")
	}

	nonEmpty := parts[:0]
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return search.Normalize(strings.Join(nonEmpty, " "))
}

// PrecioDisplay renders the price for listing cards: USD when set, pesos
// otherwise, "Consultar" when neither is set.
func (l *Listing) PrecioDisplay() string {
	if l.PrecioUSD.Valid {
		return "US$ " + formatAmount(l.PrecioUSD.Float64)
	}
	if l.PrecioPesos.Valid {
		return "$ " + formatAmount(l.PrecioPesos.Float64)
	}
	return "Consultar"
}

const (
	codigoLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	codigoDigits  = "0123456789"
)

// NewCodigo generates an 8-character listing code: four uppercase letters
// followed by four digits. Uniqueness is enforced by the store, which retries
// on collision.
func NewCodigo() string {
	var b strings.Builder
	b.Grow(8)
	for i := 0; i < 4; i++ {
		b.WriteByte(codigoLetters[rand.Intn(len(codigoLetters))])
	}
	for i := 0; i < 4; i++ {
		b.WriteByte(codigoDigits[rand.Intn(len(codigoDigits))])
	}
	return b.String()
}

func titleCase(s string) string {
	words := strings.Fields(strings.TrimSpace(s))
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		if len(r) > 0 {
			r[0] = []rune(strings.ToUpper(string(r[0])))[0]
		}
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// formatAmount renders a price with thousands separators, e.g. 420000 ->
// "420.000".
func formatAmount(v float64) string {
	digits := strconv.FormatInt(int64(v+0.5), 10)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(d)
	}
	return b.String()
}
