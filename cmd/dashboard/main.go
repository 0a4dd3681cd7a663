// Command dashboard serves a small web UI over the analytics API showing
// MSE trends per model and evaluator.
package main

import (
	"bytes"
	"embed"
	"flag"
	"io/fs"
	"log"
	"net/http"
	"os"
)

//go:embed static
var staticFS embed.FS

func main() {
	addr := flag.String("addr", ":8081", "Listen address for the dashboard")
	apiBase := flag.String("api", "", "Analytics API base URL (default DASHBOARD_API env or http://localhost:8080)")
	flag.Parse()

	api := *apiBase
	if api == "" {
		api = os.Getenv("DASHBOARD_API")
	}
	if api == "" {
		api = "http://localhost:8080"
	}

	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		log.Fatalf("dashboard: %v", err)
	}
	index, err := fs.ReadFile(static, "index.html")
	if err != nil {
		log.Fatalf("dashboard: %v", err)
	}
	// The page is static except for the API base, injected at startup.
	index = bytes.ReplaceAll(index, []byte("__API_BASE__"), []byte(api))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(index)
	})
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	log.Printf("dashboard listening on %s (api=%s)", *addr, api)
	log.Fatal(http.ListenAndServe(*addr, mux))
}
