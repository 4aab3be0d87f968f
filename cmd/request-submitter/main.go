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
	submitterInstance *services.SubmitterFunction
	once              sync.Once
	initErr           error
)

func init() {
	functions.HTTP("HandleSubmitRequest", handleSubmitRequest)
	functions.HTTP("HandleCheckDocument", handleCheckDocument)
}

// main is required by the Go Functions Framework.
func main() {}

func submitter() (*services.SubmitterFunction, error) {
	once.Do(func() {
		submitterInstance, initErr = services.NewSubmitter(context.Background())
	})
	return submitterInstance, initErr
}

func handleSubmitRequest(w http.ResponseWriter, r *http.Request) {
	if services.ServeMetrics(w, r) {
		return
	}
	f, err := submitter()
	if err != nil {
		log.Printf("CRITICAL: Submitter initialization failed: %v", err)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.SubmitRequest
	if err := services.DecodeJSON(w, r, &req); err != nil {
		services.WriteError(w, f.Logger, err)
		return
	}
	res, err := f.Process(r.Context(), r.Header.Get(services.UserIDHeader), &req)
	if err != nil {
		services.WriteError(w, f.Logger, err)
		return
	}
	services.WriteJSON(w, f.Logger, http.StatusCreated, res)
}

func handleCheckDocument(w http.ResponseWriter, r *http.Request) {
	if services.ServeMetrics(w, r) {
		return
	}
	f, err := submitter()
	if err != nil {
		log.Printf("CRITICAL: Submitter initialization failed: %v", err)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.CheckDocumentRequest
	if err := services.DecodeJSON(w, r, &req); err != nil {
		services.WriteError(w, f.Logger, err)
		return
	}
	res, err := f.CheckDocument(r.Context(), r.Header.Get(services.UserIDHeader), &req)
	if err != nil {
		services.WriteError(w, f.Logger, err)
		return
	}
	services.WriteJSON(w, f.Logger, http.StatusOK, res)
}
