package models

import (
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validListing() Listing {
	return Listing{
		Titulo:        "Depto céntrico",
		Descripcion:   "Dos ambientes con balcón",
		Tipo:          TipoDepartamento,
		TipoOperacion: OperacionAlquiler,
		Direccion:     "Av. Siempre Viva 742",
		Localidad:     "quilmes",
		Provincia:     "buenos aires",
		Pais:          "argentina",
	}
}

func TestPrepareRequiresLocation(t *testing.T) {
	l := validListing()
	l.Localidad = "  "
	assert.ErrorIs(t, l.Prepare(), ErrMissingLocation)

	l = validListing()
	l.Provincia = ""
	assert.ErrorIs(t, l.Prepare(), ErrMissingLocation)
}

func TestPrepareGeneratesCodigo(t *testing.T) {
	l := validListing()
	require.NoError(t, l.Prepare())
	assert.Len(t, l.Codigo, 8)

	// A preset codigo is kept.
	l2 := validListing()
	l2.Codigo = "ABCD1234"
	require.NoError(t, l2.Prepare())
	assert.Equal(t, "ABCD1234", l2.Codigo)
}

func TestPrepareTitleCasesLocation(t *testing.T) {
	l := validListing()
	require.NoError(t, l.Prepare())

	assert.Equal(t, "Quilmes", l.Localidad)
	assert.Equal(t, "Buenos Aires", l.Provincia)
	assert.Equal(t, "Argentina", l.Pais)

	assert.Equal(t, "quilmes", l.LocalidadNorm)
	assert.Equal(t, "buenos aires", l.ProvinciaNorm)
	assert.Equal(t, "argentina", l.PaisNorm)
}

func TestPrepareBuildsSearchIndex(t *testing.T) {
	l := validListing()
	require.NoError(t, l.Prepare())

	// Normalized blob: lowercased, accents stripped.
	assert.Contains(t, l.SearchIndex, "depto centrico")
	assert.Contains(t, l.SearchIndex, "balcon")
	assert.Contains(t, l.SearchIndex, "quilmes")
	assert.Contains(t, l.SearchIndex, "departamento")
	assert.Contains(t, l.SearchIndex, "alquiler")

	// Boolean-derived phrases.
	assert.Contains(t, l.SearchIndex, "no cochera")
	assert.Contains(t, l.SearchIndex, "no mascotas")

	l.Cochera = true
	l.AceptaMascotas = true
	require.NoError(t, l.Prepare())
	assert.Contains(t, l.SearchIndex, "acepta mascotas")
	assert.NotContains(t, l.SearchIndex, "no cochera")
}

func TestPrepareDefaultsEstado(t *testing.T) {
	l := validListing()
	require.NoError(t, l.Prepare())
	assert.Equal(t, EstadoActiva, l.Estado)

	l2 := validListing()
	l2.Estado = EstadoPausada
	require.NoError(t, l2.Prepare())
	assert.Equal(t, EstadoPausada, l2.Estado)
}

func TestNewCodigoShape(t *testing.T) {
	for i := 0; i < 50; i++ {
		c := NewCodigo()
		require.Len(t, c, 8)
		for _, r := range c[:4] {
			assert.True(t, r >= 'A' && r <= 'Z', "expected letter, got %q in %s", r, c)
		}
		for _, r := range c[4:] {
			assert.True(t, r >= '0' && r <= '9', "expected digit, got %q in %s", r, c)
		}
	}
}

func TestPrecioDisplay(t *testing.T) {
	l := Listing{}
	assert.Equal(t, "Consultar", l.PrecioDisplay())

	l.PrecioPesos = sql.NullFloat64{Float64: 250000, Valid: true}
	assert.Equal(t, "$ 250.000", l.PrecioDisplay())

	// USD wins when both are set.
	l.PrecioUSD = sql.NullFloat64{Float64: 120000, Valid: true}
	assert.Equal(t, "US$ 120.000", l.PrecioDisplay())

	l.PrecioUSD = sql.NullFloat64{Float64: 950, Valid: true}
	assert.Equal(t, "US$ 950", l.PrecioDisplay())
}

func TestSearchIndexNeverEmptyForValidListing(t *testing.T) {
	l := validListing()
	require.NoError(t, l.Prepare())
	assert.NotEmpty(t, strings.TrimSpace(l.SearchIndex))
}
