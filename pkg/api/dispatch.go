package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/recall/pkg/models"
	"github.com/codeready-toolchain/recall/pkg/services"
)

// toolRequest is the dispatch envelope.
type toolRequest struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
}

// errUnknownTool marks dispatch misses so the handler can answer 404.
type errUnknownTool struct{ tool string }

func (e errUnknownTool) Error() string {
	return fmt.Sprintf("Unknown tool %s", e.tool)
}

// handleToolCall decodes the envelope, dispatches, and maps the outcome.
// The call counter and latency histogram are observed for every call,
// failures included.
func (s *Server) handleToolCall(c *gin.Context) {
	var req toolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}

	start := time.Now()
	s.metrics.ToolCalls.WithLabelValues(req.Tool).Inc()
	defer func() {
		s.metrics.ToolLatency.WithLabelValues(req.Tool).Observe(time.Since(start).Seconds())
	}()

	result, err := s.dispatch(c.Request.Context(), req.Tool, req.Arguments)
	if err != nil {
		var unknown errUnknownTool
		if errors.As(err, &unknown) {
			c.JSON(http.StatusNotFound, gin.H{"error": unknown.Error()})
			return
		}
		status, message := mapServiceError(err)
		c.JSON(status, gin.H{"error": message})
		return
	}
	c.JSON(http.StatusOK, result)
}

// dispatch routes one tool call to its service. Request structs are
// pre-filled with the documented defaults before decoding.
func (s *Server) dispatch(ctx context.Context, tool string, arguments map[string]any) (any, error) {
	switch tool {
	case "thread.create":
		req := threadCreateRequest{}
		if err := decodeArguments(arguments, &req); err != nil {
			return nil, services.NewValidationError("arguments", err.Error())
		}
		thread, err := s.services.Turns.CreateThread(ctx, req.PlanID, req.Meta)
		if err != nil {
			return nil, err
		}
		return gin.H{"thread_id": thread.ID}, nil

	case "turn.ingest":
		req := turnIngestRequest{}
		if err := decodeArguments(arguments, &req); err != nil {
			return nil, services.NewValidationError("arguments", err.Error())
		}
		turn, err := s.services.Turns.IngestTurn(ctx, services.IngestTurnInput{
			ThreadID:       req.ThreadID,
			Role:           req.Role,
			Text:           req.Text,
			TS:             req.TS,
			Meta:           req.Meta,
			BranchID:       req.BranchID,
			ExternalTurnID: req.ExternalTurnID,
			EmbedNow:       req.EmbedNow,
		})
		if err != nil {
			return nil, err
		}
		return gin.H{"turn_id": turn.ID}, nil

	case "plan.create":
		req := planCreateRequest{}
		if err := decodeArguments(arguments, &req); err != nil {
			return nil, services.NewValidationError("arguments", err.Error())
		}
		plan, err := s.services.Plans.CreatePlan(ctx, req.Name, req.Meta)
		if err != nil {
			return nil, err
		}
		return gin.H{"plan_id": plan.ID}, nil

	case "plan.list":
		req := planListRequest{}
		if err := decodeArguments(arguments, &req); err != nil {
			return nil, services.NewValidationError("arguments", err.Error())
		}
		plans, err := s.services.Plans.ListPlans(ctx, req.IncludeArchived)
		if err != nil {
			return nil, err
		}
		listed := make([]gin.H, 0, len(plans))
		for _, plan := range plans {
			listed = append(listed, gin.H{
				"id":         plan.ID,
				"name":       plan.Name,
				"status":     plan.Status,
				"updated_at": plan.UpdatedAt,
			})
		}
		return gin.H{"plans": listed}, nil

	case "plan.get":
		req := planGetRequest{}
		if err := decodeArguments(arguments, &req); err != nil {
			return nil, services.NewValidationError("arguments", err.Error())
		}
		plan, err := s.services.Plans.GetPlan(ctx, req.PlanID)
		if err != nil {
			return nil, err
		}
		return gin.H{
			"id":         plan.ID,
			"name":       plan.Name,
			"status":     plan.Status,
			"updated_at": plan.UpdatedAt,
			"meta":       plan.Meta,
		}, nil

	case "plan.rename":
		req := planRenameRequest{}
		if err := decodeArguments(arguments, &req); err != nil {
			return nil, services.NewValidationError("arguments", err.Error())
		}
		plan, err := s.services.Plans.RenamePlan(ctx, req.PlanID, req.Name)
		if err != nil {
			return nil, err
		}
		return gin.H{"id": plan.ID, "name": plan.Name}, nil

	case "plan.archive":
		req := planArchiveRequest{Archived: true}
		if err := decodeArguments(arguments, &req); err != nil {
			return nil, services.NewValidationError("arguments", err.Error())
		}
		plan, err := s.services.Plans.ArchivePlan(ctx, req.PlanID, req.Archived)
		if err != nil {
			return nil, err
		}
		return gin.H{"id": plan.ID, "status": plan.Status}, nil

	case "plan.touch":
		req := planTouchRequest{}
		if err := decodeArguments(arguments, &req); err != nil {
			return nil, services.NewValidationError("arguments", err.Error())
		}
		plan, err := s.services.Plans.TouchPlan(ctx, req.PlanID)
		if err != nil {
			return nil, err
		}
		return gin.H{"id": plan.ID, "updated_at": plan.UpdatedAt}, nil

	case "distill.extract":
		req := distillExtractRequest{IncludeRecentTurns: 4, WriteToMemory: true}
		if err := decodeArguments(arguments, &req); err != nil {
			return nil, services.NewValidationError("arguments", err.Error())
		}
		return s.services.Distill.Distill(ctx, req.ThreadID, req.TurnID, req.IncludeRecentTurns, req.WriteToMemory)

	case "retrieve.decision_state":
		req := decisionStateRequest{}
		if err := decodeArguments(arguments, &req); err != nil {
			return nil, services.NewValidationError("arguments", err.Error())
		}
		return s.services.Retrieval.DecisionState(ctx, req.ThreadID)

	case "retrieve.context":
		req := retrieveContextRequest{
			Mode:        models.RetrievalModeFast,
			Scope:       models.RetrievalScopeDistilledOnly,
			TopK:        8,
			TokenBudget: 800,
			RecencyBias: 0.1,
		}
		if err := decodeArguments(arguments, &req); err != nil {
			return nil, services.NewValidationError("arguments", err.Error())
		}
		return s.services.Retrieval.RetrieveContext(ctx, models.RetrieveParams{
			ThreadID:    req.ThreadID,
			Query:       req.Query,
			Mode:        req.Mode,
			Scope:       req.Scope,
			TopK:        req.TopK,
			TokenBudget: req.TokenBudget,
			RecencyBias: req.RecencyBias,
			Explain:     req.Explain,
		})

	case "audit.check_consistency":
		req := auditCheckRequest{}
		if err := decodeArguments(arguments, &req); err != nil {
			return nil, services.NewValidationError("arguments", err.Error())
		}
		return s.services.Audit.CheckConsistency(ctx, req.ThreadID, req.ProposedPlanText, req.Deep)

	case "memory.deprecate":
		req := memoryDeprecateRequest{}
		if err := decodeArguments(arguments, &req); err != nil {
			return nil, services.NewValidationError("arguments", err.Error())
		}
		item, err := s.services.Memory.Deprecate(ctx, req.ItemID, req.Reason)
		if err != nil {
			return nil, err
		}
		return gin.H{"item_id": item.ID, "status": item.Status}, nil

	case "memory.supersede":
		req := memorySupersedeRequest{}
		if err := decodeArguments(arguments, &req); err != nil {
			return nil, services.NewValidationError("arguments", err.Error())
		}
		item, err := s.services.Memory.Supersede(ctx, req.OldItemID, models.MemoryPayload{
			Title:      req.NewItem.Title,
			Statement:  req.NewItem.Statement,
			Importance: req.NewItem.Importance,
			Confidence: req.NewItem.Confidence,
			Severity:   req.NewItem.Severity,
			Tags:       req.NewItem.Tags,
			Affects:    req.NewItem.Affects,
			CodeRefs:   req.NewItem.CodeRefs,
		}, req.Reason)
		if err != nil {
			return nil, err
		}
		return gin.H{"item_id": item.ID, "status": item.Status}, nil

	case "score.override":
		req := scoreOverrideRequest{}
		if err := decodeArguments(arguments, &req); err != nil {
			return nil, services.NewValidationError("arguments", err.Error())
		}
		item, err := s.services.Memory.OverrideScores(ctx, req.ItemID, req.Importance, req.Confidence, req.Severity, req.Reason)
		if err != nil {
			return nil, err
		}
		return gin.H{"item_id": item.ID, "status": item.Status}, nil

	case "shared.export":
		req := sharedExportRequest{
			Types:            []models.MemoryType{models.MemoryTypeDecision, models.MemoryTypeConstraint},
			ExpiresInMinutes: 60,
		}
		if err := decodeArguments(arguments, &req); err != nil {
			return nil, services.NewValidationError("arguments", err.Error())
		}
		return s.services.Shared.Export(ctx, req.ThreadID, req.Types, req.IncludeMistakes, req.ExpiresInMinutes)

	case "shared.import":
		req := sharedImportRequest{}
		if err := decodeArguments(arguments, &req); err != nil {
			return nil, services.NewValidationError("arguments", err.Error())
		}
		return s.services.Shared.Import(ctx, req.Payload, req.Signature)
	}

	return nil, errUnknownTool{tool: tool}
}
