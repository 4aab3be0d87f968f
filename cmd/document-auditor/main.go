package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	"go.uber.org/zap"

	"github.com/Lllllllleong/bonafideflow/internal/models"
	"github.com/Lllllllleong/bonafideflow/internal/services"
)

var (
	auditorInstance *services.AuditorFunction
	once            sync.Once
	initErr         error
)

func init() {
	// Triggered by object finalize events on the documents bucket.
	functions.CloudEvent("AuditUploadedDocument", auditUploadedDocument)
}

// main is required by the Go Functions Framework.
func main() {}

func auditUploadedDocument(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		auditorInstance, initErr = services.NewAuditor(context.Background())
	})
	if initErr != nil {
		log.Printf("CRITICAL: Auditor initialization failed: %v", initErr)
		return initErr
	}

	var event models.AuditEvent
	if err := json.Unmarshal(e.Data(), &event); err != nil {
		auditorInstance.Logger.Error("Failed to unmarshal event data", zap.Error(err), zap.String("eventId", e.ID()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}
	return auditorInstance.Process(ctx, event)
}
