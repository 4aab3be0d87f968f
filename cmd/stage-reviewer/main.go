package main

import (
	"context"
	"log"
	"net/http"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/Lllllllleong/bonafideflow/internal/models"
	"github.com/Lllllllleong/bonafideflow/internal/services"
)

var (
	reviewerInstance *services.ReviewerFunction
	once             sync.Once
	initErr          error
)

func init() {
	functions.HTTP("HandleActOnStage", handleActOnStage)
}

// main is required by the Go Functions Framework.
func main() {}

// handleActOnStage applies one approve or reject decision.
func handleActOnStage(w http.ResponseWriter, r *http.Request) {
	if services.ServeMetrics(w, r) {
		return
	}
	once.Do(func() {
		reviewerInstance, initErr = services.NewReviewer(context.Background())
	})
	if initErr != nil {
		log.Printf("CRITICAL: Reviewer initialization failed: %v", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.ActOnStageRequest
	if err := services.DecodeJSON(w, r, &req); err != nil {
		services.WriteError(w, reviewerInstance.Logger, err)
		return
	}
	res, err := reviewerInstance.Process(r.Context(), r.Header.Get(services.UserIDHeader), &req)
	if err != nil {
		services.WriteError(w, reviewerInstance.Logger, err)
		return
	}
	services.WriteJSON(w, reviewerInstance.Logger, http.StatusOK, res)
}
