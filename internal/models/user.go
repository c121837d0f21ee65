package models

import "time"

// User is a staff account for the administration panel. Staff log in with
// either their username or DNI.
type User struct {
	ID           int64     `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	DNI          string    `db:"dni" json:"dni"`
	PasswordHash string    `db:"password_hash" json:"-"`
	IsStaff      bool      `db:"is_staff" json:"is_staff"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	Creado       time.Time `db:"creado" json:"creado"`
}

// Session is a panel login session. Tokens are opaque random strings handed
// to the client as a bearer credential.
type Session struct {
	Token     string    `db:"token" json:"token"`
	UserID    int64     `db:"user_id" json:"user_id"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	Creado    time.Time `db:"creado" json:"creado"`
}

// ListingSummary is the lightweight shape returned by list and search
// endpoints.
type ListingSummary struct {
	Codigo         string   `json:"codigo"`
	Titulo         string   `json:"titulo"`
	Tipo           string   `json:"tipo"`
	TipoOperacion  string   `json:"tipo_operacion"`
	PrecioDisplay  string   `json:"precio_display"`
	Habitaciones   int      `json:"habitaciones"`
	AceptaMascotas bool     `json:"acepta_mascotas"`
	Localidad      string   `json:"localidad"`
	Provincia      string   `json:"provincia"`
	Destacada      bool     `json:"destacada"`
	Imagen         string   `json:"imagen,omitempty"`
	DistanceKm     *float64 `json:"distance_km,omitempty"`
}
