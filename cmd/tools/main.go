package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strings"
	"time"

	"inmo-search/internal/auth"
	"inmo-search/internal/db"
	"inmo-search/internal/geo"
	"inmo-search/internal/models"
)

func main() {
	// Sub-commands
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	os.Args = os.Args[1:] // Shift args for flag parsing

	switch cmd {
	case "seed":
		seedDemoListings()
	case "reindex":
		reindexListings()
	case "geocode":
		geocodeListings()
	case "adduser":
		addUser()
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: tools <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  seed      Seed database with demo listings")
	fmt.Println("  reindex   Rebuild search blobs and normalized fields for every listing")
	fmt.Println("  geocode   Fill missing coordinates from listing addresses")
	fmt.Println("  adduser   Create a staff account for the panel")
}

var demoLocalidades = [][2]string{
	{"Quilmes", "Buenos Aires"},
	{"Berazategui", "Buenos Aires"},
	{"Avellaneda", "Buenos Aires"},
	{"Lanús", "Buenos Aires"},
	{"Lomas de Zamora", "Buenos Aires"},
	{"La Plata", "Buenos Aires"},
	{"Florencio Varela", "Buenos Aires"},
	{"Almirante Brown", "Buenos Aires"},
	{"San Isidro", "Buenos Aires"},
	{"Vicente López", "Buenos Aires"},
}

var demoCalles = []string{
	"San Martín", "Belgrano", "Rivadavia", "Mitre", "Sarmiento",
	"Alsina", "Lavalle", "Moreno", "Independencia", "9 de Julio",
	"25 de Mayo", "Dorrego", "Brown", "Alem", "Yrigoyen",
}

var demoDescripciones = []string{
	"Propiedad luminosa en excelente ubicación. Cercanía a comercios y transporte.",
	"Amplios ambientes y buena ventilación. Oportunidad.",
	"Ideal familia. Buen estado general y posibilidad de ampliación.",
	"Listo para habitar. Zona tranquila con acceso rápido a avenidas.",
	"Excelente relación precio/calidad. Opción de cochera.",
}

var demoTipos = []string{
	models.TipoCasa, models.TipoDepartamento, models.TipoPH,
	models.TipoLocal, models.TipoTerreno, models.TipoOtro,
}

var demoOperaciones = []string{
	models.OperacionVenta, models.OperacionAlquiler, models.OperacionTemporario,
}

// demoPrecio picks USD for sales and ARS for rentals, matching real market
// conventions.
func demoPrecio(operacion string) (usd, pesos sql.NullFloat64) {
	switch operacion {
	case models.OperacionVenta:
		usd = sql.NullFloat64{Float64: float64(50000 + rand.Intn(370001)), Valid: true}
	case models.OperacionTemporario:
		pesos = sql.NullFloat64{Float64: float64(150000 + rand.Intn(1050001)), Valid: true}
	default: // alquiler
		pesos = sql.NullFloat64{Float64: float64(200000 + rand.Intn(1800001)), Valid: true}
	}
	return usd, pesos
}

// demoLatLng jitters around Quilmes; ±0.05° is about 5.5 km, enough spread to
// exercise the nearby query.
func demoLatLng() (float64, float64) {
	baseLat, baseLng := -34.72, -58.25
	lat := baseLat + (rand.Float64()-0.5)*0.1
	lng := baseLng + (rand.Float64()-0.5)*0.1
	return lat, lng
}

func seedDemoListings() {
	dbPath := flag.String("db", "data/inmo-search.db", "Database path")
	count := flag.Int("n", 60, "Number of demo listings")
	flag.Parse()

	database, err := db.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	for i := 0; i < *count; i++ {
		tipo := demoTipos[rand.Intn(len(demoTipos))]
		operacion := demoOperaciones[rand.Intn(len(demoOperaciones))]
		loc := demoLocalidades[rand.Intn(len(demoLocalidades))]
		calle := demoCalles[rand.Intn(len(demoCalles))]
		usd, pesos := demoPrecio(operacion)
		lat, lng := demoLatLng()
		supTotal := int64(30 + rand.Intn(371))
		supCubierta := int64(25) + rand.Int63n(supTotal-24)

		label := models.TipoLabels[tipo]
		l := models.Listing{
			Titulo:             fmt.Sprintf("%s en %s - %s", label, loc[0], models.OperacionLabels[operacion]),
			Descripcion:        demoDescripciones[rand.Intn(len(demoDescripciones))],
			PrecioUSD:          usd,
			PrecioPesos:        pesos,
			Tipo:               tipo,
			TipoOperacion:      operacion,
			Habitaciones:       rand.Intn(6),
			Banos:              1 + rand.Intn(3),
			Cochera:            rand.Intn(2) == 0,
			AceptaMascotas:     rand.Intn(2) == 0,
			SuperficieTotal:    sql.NullInt64{Int64: supTotal, Valid: true},
			SuperficieCubierta: sql.NullInt64{Int64: supCubierta, Valid: true},
			Direccion:          fmt.Sprintf("%s %d", calle, 100+rand.Intn(4900)),
			Localidad:          loc[0],
			Provincia:          loc[1],
			Pais:               "Argentina",
			Destacada:          i < 10,
			Latitude:           sql.NullFloat64{Float64: lat, Valid: true},
			Longitude:          sql.NullFloat64{Float64: lng, Valid: true},
			Imagenes:           "[]",
		}
		if err := l.Prepare(); err != nil {
			log.Fatalf("Failed to prepare demo listing: %v", err)
		}
		if err := database.InsertListing(&l); err != nil {
			log.Fatalf("Failed to insert demo listing: %v", err)
		}
	}

	total, _ := database.GetListingCount()
	log.Printf("Database seeded successfully! Total listings: %d", total)
}

func reindexListings() {
	dbPath := flag.String("db", "data/inmo-search.db", "Database path")
	flag.Parse()

	database, err := db.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	listings, err := database.AllListings()
	if err != nil {
		log.Fatalf("Failed to list listings: %v", err)
	}

	done := 0
	for i := range listings {
		l := &listings[i]
		if err := l.Prepare(); err != nil {
			log.Printf("Skipping %s: %v", l.Codigo, err)
			continue
		}
		if err := database.SaveSearchFields(l); err != nil {
			log.Printf("Failed to reindex %s: %v", l.Codigo, err)
			continue
		}
		done++
	}
	log.Printf("Reindexed %d of %d listings", done, len(listings))
}

func geocodeListings() {
	dbPath := flag.String("db", "data/inmo-search.db", "Database path")
	force := flag.Bool("force", false, "Geocode even when coordinates are already set")
	flag.Parse()

	database, err := db.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	listings, err := database.AllListings()
	if err != nil {
		log.Fatalf("Failed to list listings: %v", err)
	}

	geocoder := geo.NewGeocoder()
	ctx := context.Background()

	done := 0
	for _, l := range listings {
		if !*force && l.Latitude.Valid && l.Longitude.Valid {
			continue
		}
		if strings.TrimSpace(l.Direccion) == "" {
			continue
		}

		address := strings.Join([]string{l.Direccion, l.Localidad, l.Provincia, l.Pais}, ", ")
		lat, lng, err := geocoder.Geocode(ctx, address)
		if err != nil {
			log.Printf("Failed to geocode %s: %v", l.Codigo, err)
			continue
		}
		if err := database.SaveCoordinates(l.ID, lat, lng); err != nil {
			log.Printf("Failed to save coordinates for %s: %v", l.Codigo, err)
			continue
		}
		log.Printf("OK %s: %f, %f", l.Codigo, lat, lng)
		done++

		// Nominatim usage policy: one request per second
		time.Sleep(time.Second)
	}
	log.Printf("Geocoded %d listings", done)
}

func addUser() {
	dbPath := flag.String("db", "data/inmo-search.db", "Database path")
	username := flag.String("username", "", "Username")
	dni := flag.String("dni", "", "DNI")
	password := flag.String("password", "", "Password")
	flag.Parse()

	if *username == "" || *dni == "" || *password == "" {
		log.Fatal("adduser requires -username, -dni and -password")
	}

	database, err := db.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	hash, err := auth.HashPassword(*password)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	user := &models.User{
		Username:     *username,
		DNI:          *dni,
		PasswordHash: hash,
		IsStaff:      true,
		IsActive:     true,
	}
	if err := database.CreateUser(user); err != nil {
		log.Fatalf("Failed to create user: %v", err)
	}
	log.Printf("Created staff user %s (id %d)", user.Username, user.ID)
}
