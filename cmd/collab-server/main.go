package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"collabdoc/config"
	"collabdoc/internal/api"
	"collabdoc/internal/comments"
	"collabdoc/internal/session"
	"collabdoc/internal/transport"
)

func main() {
	cfg := config.Load()
	var (
		port = flag.String("port", cfg.Port, "Port to listen on")
		env  = flag.String("env", cfg.Env, "Environment (dev, staging, prod)")
	)
	flag.Parse()

	// The session store is the single authority; the comment store follows
	// applied operations to keep anchors aligned.
	sessions := session.NewStore()
	commentStore := comments.NewStore(sessions)
	sessions.Subscribe(commentStore)

	ws := transport.NewServer(sessions)
	ws.Start()

	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	}).Methods(http.MethodGet)
	router.HandleFunc("/ws/{docID}", ws.HandleWebSocket)
	api.NewHandler(sessions, commentStore).Register(router)

	server := &http.Server{
		Addr:    ":" + *port,
		Handler: router,
	}

	go logMetrics(ws)

	// Graceful shutdown.
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		ws.Shutdown()
		server.Close()
	}()

	log.Printf("collab-server starting on port %s (env: %s)", *port, *env)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed to start: %v", err)
	}
}

func logMetrics(ws *transport.Server) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		active, received, sent := ws.Metrics().Snapshot()
		log.Printf("Metrics: connections=%d received=%d sent=%d", active, received, sent)
	}
}
