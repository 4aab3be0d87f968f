package main

import (
	"context"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/Lllllllleong/bonafideflow/internal/services"
)

var (
	viewerInstance *services.ViewerFunction
	once           sync.Once
	initErr        error
)

func init() {
	functions.HTTP("HandleRequests", handleRequests)
}

// main is required by the Go Functions Framework.
func main() {}

// handleRequests routes the read endpoints:
//
//	GET /incoming            requests waiting for the caller's review
//	GET /mine?status=...     the calling student's requests
//	GET /requests/{id}       one request
//	GET /metrics             Prometheus metrics
func handleRequests(w http.ResponseWriter, r *http.Request) {
	if services.ServeMetrics(w, r) {
		return
	}
	once.Do(func() {
		viewerInstance, initErr = services.NewViewer(context.Background())
	})
	if initErr != nil {
		log.Printf("CRITICAL: Viewer initialization failed: %v", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	f := viewerInstance
	userID := r.Header.Get(services.UserIDHeader)
	path := strings.Trim(r.URL.Path, "/")

	var (
		res any
		err error
	)
	switch {
	case path == "incoming":
		res, err = f.ListIncoming(r.Context(), userID)
	case path == "mine":
		res, err = f.ListStudentRequests(r.Context(), userID, r.URL.Query().Get("status"))
	case strings.HasPrefix(path, "requests/"):
		res, err = f.GetRequest(r.Context(), userID, strings.TrimPrefix(path, "requests/"))
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		services.WriteError(w, f.Logger, err)
		return
	}
	services.WriteJSON(w, f.Logger, http.StatusOK, res)
}
