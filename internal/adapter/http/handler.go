package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/oumiche/impact-auto-plus-sub006/internal/app"
	"github.com/oumiche/impact-auto-plus-sub006/internal/domain"
)

const timeFormat = "2006-01-02T15:04:05Z"

// InterventionResponse is the API representation of an intervention.
type InterventionResponse struct {
	ID                string  `json:"id" doc:"Unique identifier"`
	TenantID          string  `json:"tenant_id" doc:"Owning tenant"`
	VehicleID         string  `json:"vehicle_id" doc:"Vehicle under repair"`
	Title             string  `json:"title" doc:"Short description"`
	Priority          string  `json:"priority" doc:"Urgency classification"`
	Status            string  `json:"status" doc:"Current workflow status"`
	Stage             string  `json:"stage" doc:"Reporting stage of the current status"`
	Progress          int     `json:"progress" doc:"Completion percentage"`
	Version           int64   `json:"version" doc:"Optimistic lock version"`
	AssignedTo        string  `json:"assigned_to,omitempty" doc:"Assigned actor"`
	Code              string  `json:"code" doc:"Intervention reference code"`
	QuoteCode         string  `json:"quote_code,omitempty" doc:"Issued quote number"`
	AuthorizationCode string  `json:"authorization_code,omitempty" doc:"Issued work authorization number"`
	InvoiceCode       string  `json:"invoice_code,omitempty" doc:"Issued invoice number"`
	ReportedDate      string  `json:"reported_date" doc:"When the case was reported (ISO 8601)"`
	StartedDate       *string `json:"started_date,omitempty" doc:"When repair work started"`
	CompletedDate     *string `json:"completed_date,omitempty" doc:"When repair work completed"`
	ClosedDate        *string `json:"closed_date,omitempty" doc:"When the case was closed"`
	InvoicedAt        *string `json:"invoiced_at,omitempty" doc:"When the case was invoiced"`
	CreatedAt         string  `json:"created_at" doc:"Creation timestamp (ISO 8601)"`
	UpdatedAt         string  `json:"updated_at" doc:"Last update timestamp (ISO 8601)"`
}

func toInterventionResponse(iv domain.Intervention) InterventionResponse {
	resp := InterventionResponse{
		ID:                iv.ID,
		TenantID:          iv.TenantID,
		VehicleID:         iv.VehicleID,
		Title:             iv.Title,
		Priority:          string(iv.Priority),
		Status:            string(iv.Status),
		Stage:             string(domain.StageOf(iv.Status)),
		Progress:          iv.Progress(),
		Version:           iv.Version,
		AssignedTo:        iv.AssignedTo,
		Code:              iv.Code,
		QuoteCode:         iv.QuoteCode,
		AuthorizationCode: iv.AuthorizationCode,
		InvoiceCode:       iv.InvoiceCode,
		ReportedDate:      iv.ReportedDate.Format(timeFormat),
		CreatedAt:         iv.CreatedAt.Format(timeFormat),
		UpdatedAt:         iv.UpdatedAt.Format(timeFormat),
	}
	if iv.StartedDate != nil {
		s := iv.StartedDate.Format(timeFormat)
		resp.StartedDate = &s
	}
	if iv.CompletedDate != nil {
		s := iv.CompletedDate.Format(timeFormat)
		resp.CompletedDate = &s
	}
	if iv.ClosedDate != nil {
		s := iv.ClosedDate.Format(timeFormat)
		resp.ClosedDate = &s
	}
	if iv.InvoicedAt != nil {
		s := iv.InvoicedAt.Format(timeFormat)
		resp.InvoicedAt = &s
	}
	return resp
}

// TransitionRecordResponse is one audit history entry.
type TransitionRecordResponse struct {
	From      string `json:"from" doc:"Status before the transition"`
	To        string `json:"to" doc:"Status after the transition"`
	Actor     string `json:"actor,omitempty" doc:"Who applied it"`
	Comment   string `json:"comment,omitempty" doc:"Audit comment"`
	Forced    bool   `json:"forced" doc:"Whether the transition bypassed the table"`
	CreatedAt string `json:"created_at" doc:"When it happened (ISO 8601)"`
}

// CodeFormatResponse is the API representation of a code format.
type CodeFormatResponse struct {
	ID         string `json:"id" doc:"Unique identifier"`
	TenantID   string `json:"tenant_id,omitempty" doc:"Owning tenant, empty for global"`
	EntityType string `json:"entity_type" doc:"Document kind this format applies to"`
	Template   string `json:"template" doc:"Template with {YEAR}/{MONTH}/{SEQUENCE:N} placeholders"`
	Active     bool   `json:"active" doc:"Whether the format is used for new codes"`
	CreatedAt  string `json:"created_at" doc:"Creation timestamp (ISO 8601)"`
}

func toCodeFormatResponse(f domain.CodeFormat) CodeFormatResponse {
	return CodeFormatResponse{
		ID:         f.ID,
		TenantID:   f.TenantID,
		EntityType: string(f.EntityType),
		Template:   f.Template,
		Active:     f.Active,
		CreatedAt:  f.CreatedAt.Format(timeFormat),
	}
}

// --- Create intervention ---

type CreateInterventionInput struct {
	Body struct {
		TenantID   string `json:"tenant_id" minLength:"1" maxLength:"100" doc:"Owning tenant"`
		VehicleID  string `json:"vehicle_id" minLength:"1" maxLength:"100" doc:"Vehicle under repair"`
		Title      string `json:"title" minLength:"1" maxLength:"255" doc:"Short description"`
		Priority   string `json:"priority,omitempty" default:"medium" enum:"low,medium,high,critical" doc:"Urgency classification"`
		AssignedTo string `json:"assigned_to,omitempty" doc:"Assigned actor"`
	}
}

type CreateInterventionOutput struct {
	Body InterventionResponse
}

// --- Get / list interventions ---

type GetInterventionInput struct {
	ID string `path:"id" doc:"Intervention ID"`
}

type GetInterventionOutput struct {
	Body InterventionResponse
}

type ListInterventionsInput struct {
	TenantID string `query:"tenant_id" required:"false" doc:"Filter by tenant"`
	Status   string `query:"status" required:"false" doc:"Filter by status"`
	Limit    int    `query:"limit" required:"false" default:"50" doc:"Max results"`
	Offset   int    `query:"offset" required:"false" default:"0" doc:"Pagination offset"`
}

type ListInterventionsOutput struct {
	Body []InterventionResponse
}

// --- Transition ---

type TransitionInput struct {
	ID   string `path:"id" doc:"Intervention ID"`
	Body struct {
		Target  string `json:"target" doc:"Target status" enum:"reported,in_prediagnostic,prediagnostic_completed,in_quote,quote_received,in_approval,approved,in_repair,repair_completed,in_reception,vehicle_received,cancelled"`
		Actor   string `json:"actor,omitempty" doc:"Who applies the transition (audit trail)"`
		Comment string `json:"comment,omitempty" doc:"Audit comment, required when forcing"`
		Force   bool   `json:"force,omitempty" doc:"Apply even if the transition table forbids it"`
	}
}

type TransitionOutput struct {
	Body InterventionResponse
}

// --- History ---

type HistoryInput struct {
	ID string `path:"id" doc:"Intervention ID"`
}

type HistoryOutput struct {
	Body []TransitionRecordResponse
}

// --- Invoice ---

type InvoiceInput struct {
	ID   string `path:"id" doc:"Intervention ID"`
	Body struct {
		Actor string `json:"actor,omitempty" doc:"Who invoices (audit trail)"`
	}
}

type InvoiceOutput struct {
	Body InterventionResponse
}

// --- Workflow introspection ---

type DescribeWorkflowInput struct {
	From string `query:"from" required:"false" doc:"Only show transitions from this status"`
}

type WorkflowStatusInfo struct {
	Status   string   `json:"status" doc:"Status name"`
	Stage    string   `json:"stage" doc:"Reporting stage"`
	Progress int      `json:"progress" doc:"Completion percentage"`
	Terminal bool     `json:"terminal" doc:"Whether the status has no outgoing transitions"`
	Next     []string `json:"next" doc:"Legal target statuses"`
}

type DescribeWorkflowOutput struct {
	Body struct {
		Statuses []WorkflowStatusInfo `json:"statuses" doc:"Every status in workflow order"`
		Terminal []string             `json:"terminal" doc:"Statuses with no outgoing transitions"`
	}
}

// --- Code generation ---

type GenerateCodeInput struct {
	Body struct {
		TenantID   string `json:"tenant_id" minLength:"1" maxLength:"100" doc:"Tenant to scope the sequence to"`
		EntityType string `json:"entity_type" enum:"quote,invoice,authorization,intervention" doc:"Document kind"`
	}
}

type GenerateCodeOutput struct {
	Body struct {
		Code string `json:"code" doc:"Freshly minted code"`
	}
}

// --- Code format admin ---

type CreateCodeFormatInput struct {
	Body struct {
		TenantID   string `json:"tenant_id,omitempty" doc:"Owning tenant, empty for a global format"`
		EntityType string `json:"entity_type" enum:"quote,invoice,authorization,intervention" doc:"Document kind"`
		Template   string `json:"template" minLength:"1" maxLength:"255" doc:"Template with {YEAR}/{MONTH}/{SEQUENCE:N} placeholders"`
	}
}

type CreateCodeFormatOutput struct {
	Body CodeFormatResponse
}

type ListCodeFormatsInput struct {
	TenantID string `query:"tenant_id" required:"false" doc:"Tenant to list formats for, empty for global"`
}

type ListCodeFormatsOutput struct {
	Body []CodeFormatResponse
}

type DeactivateCodeFormatInput struct {
	ID string `path:"id" doc:"Code format ID"`
}

type DeactivateCodeFormatOutput struct{}

// Register adds all API routes to the Huma API.
func Register(api huma.API, workflows *app.WorkflowService, codes *app.CodeService) {
	huma.Register(api, huma.Operation{
		OperationID: "create-intervention",
		Method:      http.MethodPost,
		Path:        "/api/v1/interventions",
		Summary:     "Create a new intervention",
		Tags:        []string{"Interventions"},
	}, func(ctx context.Context, input *CreateInterventionInput) (*CreateInterventionOutput, error) {
		priority, err := domain.ParsePriority(input.Body.Priority)
		if err != nil {
			return nil, toHumaError(err)
		}
		iv, err := workflows.Create(ctx, input.Body.TenantID, input.Body.VehicleID, input.Body.Title, priority, input.Body.AssignedTo)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &CreateInterventionOutput{Body: toInterventionResponse(iv)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-intervention",
		Method:      http.MethodGet,
		Path:        "/api/v1/interventions/{id}",
		Summary:     "Get an intervention by ID",
		Tags:        []string{"Interventions"},
	}, func(ctx context.Context, input *GetInterventionInput) (*GetInterventionOutput, error) {
		iv, err := workflows.GetByID(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &GetInterventionOutput{Body: toInterventionResponse(iv)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-interventions",
		Method:      http.MethodGet,
		Path:        "/api/v1/interventions",
		Summary:     "List interventions",
		Tags:        []string{"Interventions"},
	}, func(ctx context.Context, input *ListInterventionsInput) (*ListInterventionsOutput, error) {
		filter := domain.ListFilter{
			TenantID: input.TenantID,
			Limit:    input.Limit,
			Offset:   input.Offset,
		}
		if input.Status != "" {
			s, err := domain.ParseStatus(input.Status)
			if err != nil {
				return nil, toHumaError(err)
			}
			filter.Status = &s
		}

		interventions, err := workflows.List(ctx, filter)
		if err != nil {
			return nil, toHumaError(err)
		}

		resp := make([]InterventionResponse, len(interventions))
		for i, iv := range interventions {
			resp[i] = toInterventionResponse(iv)
		}
		return &ListInterventionsOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "transition-intervention",
		Method:      http.MethodPost,
		Path:        "/api/v1/interventions/{id}/transitions",
		Summary:     "Apply a workflow transition",
		Tags:        []string{"Interventions"},
	}, func(ctx context.Context, input *TransitionInput) (*TransitionOutput, error) {
		target, err := domain.ParseStatus(input.Body.Target)
		if err != nil {
			return nil, toHumaError(err)
		}
		iv, err := workflows.Transition(ctx, input.ID, target, input.Body.Actor, input.Body.Comment, input.Body.Force)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &TransitionOutput{Body: toInterventionResponse(iv)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "intervention-history",
		Method:      http.MethodGet,
		Path:        "/api/v1/interventions/{id}/history",
		Summary:     "Get the transition audit trail",
		Tags:        []string{"Interventions"},
	}, func(ctx context.Context, input *HistoryInput) (*HistoryOutput, error) {
		if _, err := workflows.GetByID(ctx, input.ID); err != nil {
			return nil, toHumaError(err)
		}
		records, err := workflows.History(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		resp := make([]TransitionRecordResponse, len(records))
		for i, rec := range records {
			resp[i] = TransitionRecordResponse{
				From:      string(rec.From),
				To:        string(rec.To),
				Actor:     rec.Actor,
				Comment:   rec.Comment,
				Forced:    rec.Forced,
				CreatedAt: rec.CreatedAt.Format(timeFormat),
			}
		}
		return &HistoryOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "invoice-intervention",
		Method:      http.MethodPost,
		Path:        "/api/v1/interventions/{id}/invoice",
		Summary:     "Mark a completed intervention as invoiced",
		Tags:        []string{"Interventions"},
	}, func(ctx context.Context, input *InvoiceInput) (*InvoiceOutput, error) {
		iv, err := workflows.MarkInvoiced(ctx, input.ID, input.Body.Actor)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &InvoiceOutput{Body: toInterventionResponse(iv)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "describe-workflow",
		Method:      http.MethodGet,
		Path:        "/api/v1/workflow",
		Summary:     "Describe the workflow transition table",
		Tags:        []string{"Workflow"},
	}, func(ctx context.Context, input *DescribeWorkflowInput) (*DescribeWorkflowOutput, error) {
		var from *domain.Status
		if input.From != "" {
			s, err := domain.ParseStatus(input.From)
			if err != nil {
				return nil, toHumaError(err)
			}
			from = &s
		}

		desc := domain.DescribeWorkflow()
		out := &DescribeWorkflowOutput{}
		for _, s := range desc.Statuses {
			if from != nil && s != *from {
				continue
			}
			next := make([]string, len(desc.Transitions[s]))
			for i, n := range desc.Transitions[s] {
				next[i] = string(n)
			}
			out.Body.Statuses = append(out.Body.Statuses, WorkflowStatusInfo{
				Status:   string(s),
				Stage:    string(domain.StageOf(s)),
				Progress: domain.ProgressPercent(s),
				Terminal: domain.IsTerminal(s),
				Next:     next,
			})
		}
		for _, s := range desc.Terminal {
			out.Body.Terminal = append(out.Body.Terminal, string(s))
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "generate-code",
		Method:      http.MethodPost,
		Path:        "/api/v1/codes",
		Summary:     "Generate the next document code for a tenant",
		Tags:        []string{"Codes"},
	}, func(ctx context.Context, input *GenerateCodeInput) (*GenerateCodeOutput, error) {
		et, err := domain.ParseEntityType(input.Body.EntityType)
		if err != nil {
			return nil, toHumaError(err)
		}
		code, err := codes.Generate(ctx, input.Body.TenantID, et)
		if err != nil {
			return nil, toHumaError(err)
		}
		out := &GenerateCodeOutput{}
		out.Body.Code = code
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "create-code-format",
		Method:      http.MethodPost,
		Path:        "/api/v1/code-formats",
		Summary:     "Register a code format",
		Tags:        []string{"Codes"},
	}, func(ctx context.Context, input *CreateCodeFormatInput) (*CreateCodeFormatOutput, error) {
		et, err := domain.ParseEntityType(input.Body.EntityType)
		if err != nil {
			return nil, toHumaError(err)
		}
		format, err := codes.CreateFormat(ctx, input.Body.TenantID, et, input.Body.Template)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &CreateCodeFormatOutput{Body: toCodeFormatResponse(format)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-code-formats",
		Method:      http.MethodGet,
		Path:        "/api/v1/code-formats",
		Summary:     "List code formats for a tenant",
		Tags:        []string{"Codes"},
	}, func(ctx context.Context, input *ListCodeFormatsInput) (*ListCodeFormatsOutput, error) {
		formats, err := codes.ListFormats(ctx, input.TenantID)
		if err != nil {
			return nil, toHumaError(err)
		}
		resp := make([]CodeFormatResponse, len(formats))
		for i, f := range formats {
			resp[i] = toCodeFormatResponse(f)
		}
		return &ListCodeFormatsOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "deactivate-code-format",
		Method:        http.MethodDelete,
		Path:          "/api/v1/code-formats/{id}",
		Summary:       "Deactivate a code format",
		Tags:          []string{"Codes"},
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *DeactivateCodeFormatInput) (*DeactivateCodeFormatOutput, error) {
		if err := codes.DeactivateFormat(ctx, input.ID); err != nil {
			return nil, toHumaError(err)
		}
		return &DeactivateCodeFormatOutput{}, nil
	})
}

// toHumaError translates domain errors to Huma HTTP errors.
func toHumaError(err error) error {
	switch {
	case errors.Is(err, domain.ErrInterventionNotFound),
		errors.Is(err, domain.ErrFormatNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, domain.ErrVersionConflict):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, domain.ErrCommentRequired),
		errors.Is(err, domain.ErrNotInvoiceable),
		errors.Is(err, domain.ErrAlreadyInvoiced),
		errors.Is(err, domain.ErrInvalidTemplate),
		errors.Is(err, domain.ErrUnknownEntityType):
		return huma.Error400BadRequest(err.Error())
	}

	var transitionErr *domain.InvalidTransitionError
	if errors.As(err, &transitionErr) {
		return huma.Error422UnprocessableEntity(transitionErr.Error())
	}

	var statusErr *domain.UnknownStatusError
	if errors.As(err, &statusErr) {
		return huma.Error400BadRequest(statusErr.Error())
	}

	var priorityErr *domain.UnknownPriorityError
	if errors.As(err, &priorityErr) {
		return huma.Error400BadRequest(priorityErr.Error())
	}

	var seqErr *domain.SequenceAllocationError
	if errors.As(err, &seqErr) {
		return huma.Error503ServiceUnavailable(fmt.Sprintf("code generation unavailable: %v", seqErr))
	}

	return huma.Error500InternalServerError("internal server error")
}
