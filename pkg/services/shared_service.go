package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/codeready-toolchain/recall/pkg/config"
	"github.com/codeready-toolchain/recall/pkg/models"
	"github.com/codeready-toolchain/recall/pkg/store"
)

// importedPlanName is the plan collecting threads created by package import.
const importedPlanName = "imported"

// importableTypes are the only memory types accepted from an external
// package.
var importableTypes = map[string]bool{
	string(models.MemoryTypeDecision):   true,
	string(models.MemoryTypeConstraint): true,
	string(models.MemoryTypeMistake):    true,
}

// ExportResult is the shared.export response.
type ExportResult struct {
	PackageID string         `json:"package_id"`
	Payload   models.JSONMap `json:"payload"`
	Signature string         `json:"signature"`
}

// ImportedItem identifies one item created by an import.
type ImportedItem struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

// ImportResult is the shared.import response.
type ImportResult struct {
	ImportedCount   int            `json:"imported_count"`
	ThreadIDCreated string         `json:"thread_id_created"`
	Items           []ImportedItem `json:"items"`
}

// SharedService signs memory exports and verifies imports with the shared
// HMAC secret.
type SharedService struct {
	store *store.Store
	cfg   config.SharedConfig
}

// NewSharedService creates a new SharedService.
func NewSharedService(st *store.Store, cfg config.SharedConfig) *SharedService {
	if st == nil {
		panic("NewSharedService: store must not be nil")
	}
	return &SharedService{store: st, cfg: cfg}
}

// Export bundles the thread's active items of the allowed types into a
// signed, expiring package. Mistakes travel only when explicitly requested.
func (s *SharedService) Export(ctx context.Context, threadID string, types []models.MemoryType, includeMistakes bool, expiresInMinutes int) (*ExportResult, error) {
	if s.cfg.HMACSecret == "" {
		return nil, NewValidationError("shared_hmac_secret", "SHARED_HMAC_SECRET is not configured")
	}
	allowTypes := make([]models.MemoryType, 0, len(types)+1)
	seen := map[models.MemoryType]bool{}
	for _, t := range types {
		if !t.IsValid() {
			return nil, NewValidationError("types", fmt.Sprintf("unknown memory type '%s'", t))
		}
		if !seen[t] {
			seen[t] = true
			allowTypes = append(allowTypes, t)
		}
	}
	if includeMistakes && !seen[models.MemoryTypeMistake] {
		allowTypes = append(allowTypes, models.MemoryTypeMistake)
	}

	items, err := s.store.ListMemoryByTypes(ctx, threadID, allowTypes)
	if err != nil {
		return nil, err
	}

	exported := make([]any, 0, len(items))
	for _, item := range items {
		exported = append(exported, map[string]any{
			"type":              string(item.Type),
			"title":             item.Title,
			"statement":         item.Statement,
			"importance":        item.Importance,
			"confidence":        item.Confidence,
			"severity":          item.Severity,
			"tags":              []string(item.Tags),
			"affects":           []string(item.Affects),
			"code_refs":         []string(item.CodeRefs),
			"evidence_turn_ids": []string(item.EvidenceTurnIDs),
		})
	}

	now := time.Now().UTC()
	expiresAt := now.Add(time.Duration(expiresInMinutes) * time.Minute)
	payload := models.JSONMap{
		"thread_id":  threadID,
		"items":      exported,
		"created_at": now.Format(time.RFC3339),
		"expires_at": expiresAt.Format(time.RFC3339),
	}

	signature, err := signPayload(s.cfg.HMACSecret, payload)
	if err != nil {
		return nil, err
	}
	pkg := &models.SharedPackage{
		ID:        uuid.New().String(),
		CreatedAt: now,
		ExpiresAt: expiresAt,
		Payload:   payload,
		Signature: signature,
	}
	if err := s.store.InsertSharedPackage(ctx, pkg); err != nil {
		return nil, err
	}

	return &ExportResult{PackageID: pkg.ID, Payload: payload, Signature: signature}, nil
}

// sharedItem is one item of an import payload. Absent scores fall back to
// the defaults set before decoding.
type sharedItem struct {
	Type            string   `json:"type"`
	Title           string   `json:"title"`
	Statement       string   `json:"statement"`
	Importance      float64  `json:"importance"`
	Confidence      float64  `json:"confidence"`
	Severity        float64  `json:"severity"`
	Tags            []string `json:"tags"`
	Affects         []string `json:"affects"`
	CodeRefs        []string `json:"code_refs"`
	EvidenceTurnIDs []string `json:"evidence_turn_ids"`
}

// Import verifies a package and loads its importable items into a fresh
// thread under the "imported" plan. Items of non-importable types are
// silently skipped; imported items are tagged with source=external metadata.
func (s *SharedService) Import(ctx context.Context, payload models.JSONMap, signature string) (*ImportResult, error) {
	if s.cfg.HMACSecret == "" {
		return nil, NewValidationError("shared_hmac_secret", "SHARED_HMAC_SECRET is not configured")
	}
	valid, err := verifySignature(s.cfg.HMACSecret, payload, signature)
	if err != nil {
		return nil, err
	}
	if !valid {
		return nil, ErrSignatureInvalid
	}

	rawExpires, _ := payload["expires_at"].(string)
	expiresAt, err := time.Parse(time.RFC3339, rawExpires)
	if err != nil {
		return nil, NewValidationError("expires_at", "malformed expiry timestamp")
	}
	if time.Now().UTC().After(expiresAt) {
		return nil, ErrPackageExpired
	}

	plan, err := s.importPlan(ctx)
	if err != nil {
		return nil, err
	}
	thread, err := s.store.CreateThread(ctx, plan.ID, models.JSONMap{"source": "external"})
	if err != nil {
		return nil, err
	}

	rawItems, _ := payload["items"].([]any)
	result := &ImportResult{ThreadIDCreated: thread.ID, Items: []ImportedItem{}}
	for _, raw := range rawItems {
		encoded, err := json.Marshal(raw)
		if err != nil {
			continue
		}
		item := sharedItem{Importance: 0.5, Confidence: 0.5}
		if err := json.Unmarshal(encoded, &item); err != nil {
			continue
		}
		if !importableTypes[item.Type] {
			continue
		}
		now := time.Now().UTC()
		memoryItem := &models.MemoryItem{
			ID:              uuid.New().String(),
			ThreadID:        thread.ID,
			Type:            models.MemoryType(item.Type),
			Status:          models.MemoryStatusActive,
			Title:           item.Title,
			Statement:       item.Statement,
			Importance:      item.Importance,
			Confidence:      item.Confidence,
			Severity:        item.Severity,
			Tags:            pq.StringArray(item.Tags),
			Affects:         pq.StringArray(item.Affects),
			CodeRefs:        pq.StringArray(item.CodeRefs),
			EvidenceTurnIDs: pq.StringArray(item.EvidenceTurnIDs),
			CreatedAt:       now,
			UpdatedAt:       now,
			Meta:            models.JSONMap{"source": "external"},
		}
		if err := s.store.InsertMemoryItem(ctx, memoryItem); err != nil {
			return nil, err
		}
		result.ImportedCount++
		result.Items = append(result.Items, ImportedItem{
			ID:    memoryItem.ID,
			Title: memoryItem.Title,
			Type:  string(memoryItem.Type),
		})
	}
	return result, nil
}

// importPlan returns the plan collecting imported threads, creating it on
// first use.
func (s *SharedService) importPlan(ctx context.Context) (*models.Plan, error) {
	plan, err := s.store.GetPlanByName(ctx, importedPlanName)
	if err == nil {
		return plan, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	return s.store.CreatePlan(ctx, importedPlanName, models.JSONMap{})
}
