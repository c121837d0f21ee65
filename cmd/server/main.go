package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"

	"inmo-search/internal/api"
	"inmo-search/internal/db"
	"inmo-search/internal/search"
)

func main() {
	// Parse command line flags
	port := flag.Int("port", 8080, "Port to listen on")
	dbPath := flag.String("db", "data/inmo-search.db", "Path to SQLite database")
	flag.Parse()

	log.Printf("Database path: %s", *dbPath)

	// Initialize database
	database, err := db.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	// Synonym table: built once, read-only for the life of the process
	synonyms := search.NewSynonyms(search.DefaultSynonyms)

	// Create router
	router := api.NewRouter(database, synonyms)

	// Start server
	addr := fmt.Sprintf(":%d", *port)
	log.Printf("Starting server on http://localhost%s", addr)

	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
