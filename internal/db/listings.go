package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"inmo-search/internal/models"
	"inmo-search/internal/search"
)

// PageSize is the public listing/search page size.
const PageSize = 18

// AdminPageSize is the staff panel page size.
const AdminPageSize = 20

// ListingFilter carries the structured filters for public listing queries.
// Nil/zero fields apply no constraint. Estado is forced to 'activa' by the
// public handlers; the panel queries use AdminFilter instead.
type ListingFilter struct {
	Operacion       string
	Tipo            string
	MaxPrecio       *float64
	MinHabitaciones *int
	Mascotas        bool
	Localidad       string
	SearchGroups    []search.TermSet
}

// Page is one page of listing results.
type Page struct {
	Items      []models.Listing
	Number     int
	TotalPages int
	TotalCount int
}

// buildListingWhere assembles the WHERE clause for a public query. skipLocalidad
// leaves the localidad constraint out, which the search view uses to compute
// the localities still reachable under the other filters.
func buildListingWhere(f ListingFilter, skipLocalidad bool) (string, []interface{}) {
	where := []string{"estado = ?"}
	args := []interface{}{models.EstadoActiva}

	// Text match: AND across term sets, OR within each set.
	for _, group := range f.SearchGroups {
		terms := group.Terms()
		ors := make([]string, len(terms))
		for i, t := range terms {
			ors[i] = "search_index LIKE ?"
			args = append(args, "%"+t+"%")
		}
		where = append(where, "("+strings.Join(ors, " OR ")+")")
	}

	if f.Operacion != "" {
		where = append(where, "tipo_operacion = ?")
		args = append(args, f.Operacion)
	}
	if f.Tipo != "" {
		where = append(where, "tipo = ?")
		args = append(args, f.Tipo)
	}
	if f.MaxPrecio != nil {
		// Both currency columns are compared against the same raw number,
		// matching the site's historical behavior.
		where = append(where, "(precio_usd <= ? OR precio_pesos <= ?)")
		args = append(args, *f.MaxPrecio, *f.MaxPrecio)
	}
	if f.MinHabitaciones != nil {
		where = append(where, "habitaciones >= ?")
		args = append(args, *f.MinHabitaciones)
	}
	if f.Mascotas {
		where = append(where, "acepta_mascotas = 1")
	}
	if f.Localidad != "" && !skipLocalidad {
		where = append(where, "localidad = ?")
		args = append(args, f.Localidad)
	}

	return strings.Join(where, " AND "), args
}

// SearchListings returns one page of active listings matching the filter,
// most recent first. The requested page is clamped to the valid range, so an
// out-of-range page yields the nearest existing one.
func (db *DB) SearchListings(f ListingFilter, page int) (*Page, error) {
	where, args := buildListingWhere(f, false)

	var total int
	if err := db.Get(&total, "SELECT COUNT(*) FROM listings WHERE "+where, args...); err != nil {
		return nil, fmt.Errorf("failed to count listings: %w", err)
	}

	totalPages := (total + PageSize - 1) / PageSize
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	query := fmt.Sprintf(
		"SELECT * FROM listings WHERE %s ORDER BY creado DESC, id DESC LIMIT %d OFFSET %d",
		where, PageSize, (page-1)*PageSize,
	)

	items := []models.Listing{}
	if err := db.Select(&items, query, args...); err != nil {
		return nil, fmt.Errorf("failed to search listings: %w", err)
	}

	return &Page{Items: items, Number: page, TotalPages: totalPages, TotalCount: total}, nil
}

// DistinctLocalities returns the localities reachable under the filter with
// the localidad constraint itself excluded, ascending. Populates the locality
// selector next to the search results.
func (db *DB) DistinctLocalities(f ListingFilter) ([]string, error) {
	where, args := buildListingWhere(f, true)

	var localities []string
	query := "SELECT DISTINCT localidad FROM listings WHERE " + where + " ORDER BY localidad"
	if err := db.Select(&localities, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list localities: %w", err)
	}
	return localities, nil
}

// NearbyCandidates returns active listings with both coordinates set that
// fall inside the bounding box. The exact distance cut happens in the caller.
func (db *DB) NearbyCandidates(minLat, maxLat, minLng, maxLng float64) ([]models.Listing, error) {
	query := `
		SELECT * FROM listings
		WHERE estado = ?
		  AND latitude IS NOT NULL AND longitude IS NOT NULL
		  AND latitude BETWEEN ? AND ?
		  AND longitude BETWEEN ? AND ?
	`
	items := []models.Listing{}
	err := db.Select(&items, query, models.EstadoActiva, minLat, maxLat, minLng, maxLng)
	if err != nil {
		return nil, fmt.Errorf("failed to query nearby candidates: %w", err)
	}
	return items, nil
}

// GetListing returns a listing by codigo. With activeOnly set, paused and
// finished listings are treated as not found.
func (db *DB) GetListing(codigo string, activeOnly bool) (*models.Listing, error) {
	query := "SELECT * FROM listings WHERE codigo = ?"
	args := []interface{}{codigo}
	if activeOnly {
		query += " AND estado = ?"
		args = append(args, models.EstadoActiva)
	}

	var l models.Listing
	if err := db.Get(&l, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get listing %s: %w", codigo, err)
	}
	return &l, nil
}

// FeaturedListings returns up to 10 featured active listings for the home
// page, most recent first.
func (db *DB) FeaturedListings() ([]models.Listing, error) {
	items := []models.Listing{}
	query := `
		SELECT * FROM listings
		WHERE destacada = 1 AND estado = ?
		ORDER BY creado DESC, id DESC
		LIMIT 10
	`
	if err := db.Select(&items, query, models.EstadoActiva); err != nil {
		return nil, fmt.Errorf("failed to list featured listings: %w", err)
	}
	return items, nil
}

// InsertListing persists a prepared listing. On a codigo collision a fresh
// code is generated and the insert retried, mirroring the save loop the
// admin panel always had.
func (db *DB) InsertListing(l *models.Listing) error {
	query := `
		INSERT INTO listings (
			codigo, titulo, descripcion, precio_usd, precio_pesos,
			tipo, tipo_operacion, habitaciones, banos, cochera, acepta_mascotas,
			superficie_total, superficie_cubierta, estado,
			direccion, localidad, provincia, pais,
			localidad_norm, provincia_norm, pais_norm,
			destacada, latitude, longitude, imagenes, search_index,
			creado, actualizado
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	l.Creado = now
	l.Actualizado = now

	for attempt := 0; attempt < 5; attempt++ {
		res, err := db.Exec(query,
			l.Codigo, l.Titulo, l.Descripcion, l.PrecioUSD, l.PrecioPesos,
			l.Tipo, l.TipoOperacion, l.Habitaciones, l.Banos, l.Cochera, l.AceptaMascotas,
			l.SuperficieTotal, l.SuperficieCubierta, l.Estado,
			l.Direccion, l.Localidad, l.Provincia, l.Pais,
			l.LocalidadNorm, l.ProvinciaNorm, l.PaisNorm,
			l.Destacada, l.Latitude, l.Longitude, l.Imagenes, l.SearchIndex,
			l.Creado, l.Actualizado,
		)
		if err != nil {
			if isUniqueViolation(err) {
				l.Codigo = models.NewCodigo()
				continue
			}
			return fmt.Errorf("failed to insert listing: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read inserted id: %w", err)
		}
		l.ID = id
		return nil
	}
	return errors.New("failed to insert listing: codigo collisions exhausted retries")
}

// UpdateListing persists changes to a prepared listing, keyed by codigo.
func (db *DB) UpdateListing(l *models.Listing) error {
	query := `
		UPDATE listings SET
			titulo = ?, descripcion = ?, precio_usd = ?, precio_pesos = ?,
			tipo = ?, tipo_operacion = ?, habitaciones = ?, banos = ?,
			cochera = ?, acepta_mascotas = ?,
			superficie_total = ?, superficie_cubierta = ?, estado = ?,
			direccion = ?, localidad = ?, provincia = ?, pais = ?,
			localidad_norm = ?, provincia_norm = ?, pais_norm = ?,
			destacada = ?, latitude = ?, longitude = ?, imagenes = ?,
			search_index = ?, actualizado = ?
		WHERE codigo = ?
	`

	l.Actualizado = time.Now().UTC()
	res, err := db.Exec(query,
		l.Titulo, l.Descripcion, l.PrecioUSD, l.PrecioPesos,
		l.Tipo, l.TipoOperacion, l.Habitaciones, l.Banos,
		l.Cochera, l.AceptaMascotas,
		l.SuperficieTotal, l.SuperficieCubierta, l.Estado,
		l.Direccion, l.Localidad, l.Provincia, l.Pais,
		l.LocalidadNorm, l.ProvinciaNorm, l.PaisNorm,
		l.Destacada, l.Latitude, l.Longitude, l.Imagenes,
		l.SearchIndex, l.Actualizado,
		l.Codigo,
	)
	if err != nil {
		return fmt.Errorf("failed to update listing %s: %w", l.Codigo, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetListingEstado changes a listing's publication state.
func (db *DB) SetListingEstado(codigo, estado string) error {
	res, err := db.Exec(
		"UPDATE listings SET estado = ?, actualizado = ? WHERE codigo = ?",
		estado, time.Now().UTC(), codigo,
	)
	if err != nil {
		return fmt.Errorf("failed to set estado for %s: %w", codigo, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check estado result: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AdminFilter carries the staff panel list filters. Unlike the public
// filters, q matches as a substring over several presentation fields and all
// publication states are visible.
type AdminFilter struct {
	Q         string
	Estado    string
	Localidad string
}

// AdminListListings returns one page of listings for the panel, newest first,
// all statuses included.
func (db *DB) AdminListListings(f AdminFilter, page int) (*Page, error) {
	where := []string{"1=1"}
	args := []interface{}{}

	if f.Q != "" {
		needle := "%" + strings.ToLower(f.Q) + "%"
		fields := []string{"titulo", "descripcion", "direccion", "localidad", "provincia", "pais", "codigo"}
		ors := make([]string, len(fields))
		for i, field := range fields {
			ors[i] = "LOWER(" + field + ") LIKE ?"
			args = append(args, needle)
		}
		where = append(where, "("+strings.Join(ors, " OR ")+")")
	}
	if f.Estado != "" {
		where = append(where, "estado = ?")
		args = append(args, f.Estado)
	}
	if f.Localidad != "" {
		where = append(where, "LOWER(localidad) LIKE ?")
		args = append(args, "%"+strings.ToLower(f.Localidad)+"%")
	}

	whereSQL := strings.Join(where, " AND ")

	var total int
	if err := db.Get(&total, "SELECT COUNT(*) FROM listings WHERE "+whereSQL, args...); err != nil {
		return nil, fmt.Errorf("failed to count panel listings: %w", err)
	}

	totalPages := (total + AdminPageSize - 1) / AdminPageSize
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	query := fmt.Sprintf(
		"SELECT * FROM listings WHERE %s ORDER BY creado DESC, id DESC LIMIT %d OFFSET %d",
		whereSQL, AdminPageSize, (page-1)*AdminPageSize,
	)

	items := []models.Listing{}
	if err := db.Select(&items, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list panel listings: %w", err)
	}

	return &Page{Items: items, Number: page, TotalPages: totalPages, TotalCount: total}, nil
}

// AllListings returns every listing ordered by id, for the reindex and
// geocode tools.
func (db *DB) AllListings() ([]models.Listing, error) {
	items := []models.Listing{}
	if err := db.Select(&items, "SELECT * FROM listings ORDER BY id"); err != nil {
		return nil, fmt.Errorf("failed to list all listings: %w", err)
	}
	return items, nil
}

// SaveCoordinates stores geocoded coordinates for a listing.
func (db *DB) SaveCoordinates(id int64, lat, lng float64) error {
	_, err := db.Exec(
		"UPDATE listings SET latitude = ?, longitude = ?, actualizado = ? WHERE id = ?",
		lat, lng, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to save coordinates for listing %d: %w", id, err)
	}
	return nil
}

// SaveSearchFields stores the recomputed normalized fields and search blob
// for a listing. Used by the reindex tool.
func (db *DB) SaveSearchFields(l *models.Listing) error {
	_, err := db.Exec(
		`UPDATE listings SET
			localidad = ?, provincia = ?, pais = ?,
			localidad_norm = ?, provincia_norm = ?, pais_norm = ?,
			search_index = ?, actualizado = ?
		WHERE id = ?`,
		l.Localidad, l.Provincia, l.Pais,
		l.LocalidadNorm, l.ProvinciaNorm, l.PaisNorm,
		l.SearchIndex, time.Now().UTC(), l.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to save search fields for listing %d: %w", l.ID, err)
	}
	return nil
}

// GetFilterOptions returns the values available for the search form
// controls: the fixed choice lists plus data-driven locality and price
// ranges over the active listings.
func (db *DB) GetFilterOptions() (map[string]interface{}, error) {
	options := map[string]interface{}{
		"tipos":       models.TipoLabels,
		"operaciones": models.OperacionLabels,
	}

	localities, err := db.DistinctLocalities(ListingFilter{})
	if err != nil {
		return nil, err
	}
	options["localidades"] = localities

	var usdRange struct {
		Min *float64 `db:"min_precio"`
		Max *float64 `db:"max_precio"`
	}
	err = db.Get(&usdRange,
		"SELECT MIN(precio_usd) as min_precio, MAX(precio_usd) as max_precio FROM listings WHERE estado = ?",
		models.EstadoActiva)
	if err != nil {
		return nil, fmt.Errorf("failed to get USD price range: %w", err)
	}
	options["precio_usd_min"] = usdRange.Min
	options["precio_usd_max"] = usdRange.Max

	var pesosRange struct {
		Min *float64 `db:"min_precio"`
		Max *float64 `db:"max_precio"`
	}
	err = db.Get(&pesosRange,
		"SELECT MIN(precio_pesos) as min_precio, MAX(precio_pesos) as max_precio FROM listings WHERE estado = ?",
		models.EstadoActiva)
	if err != nil {
		return nil, fmt.Errorf("failed to get peso price range: %w", err)
	}
	options["precio_pesos_min"] = pesosRange.Min
	options["precio_pesos_max"] = pesosRange.Max

	return options, nil
}

// GetListingCount returns total number of listings
func (db *DB) GetListingCount() (int, error) {
	var count int
	err := db.Get(&count, "SELECT COUNT(*) FROM listings")
	return count, err
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}
