// Package server exposes the progression facade over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"github.com/IntricEight/MentalHealthDungeon/internal/app"
	"github.com/IntricEight/MentalHealthDungeon/internal/catalog"
	"github.com/IntricEight/MentalHealthDungeon/internal/clock"
	"github.com/IntricEight/MentalHealthDungeon/internal/domain"
	"github.com/IntricEight/MentalHealthDungeon/internal/progression"
	"github.com/IntricEight/MentalHealthDungeon/internal/store"
)

const taskElapsedMessage = "Time's up!"

// Config for the HTTP API handler.
type Config struct {
	Service  *app.Service
	BasePath string
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_enough_points"`
	Message string         `json:"message" example:"not enough inspiration points"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the progression API.
func New(cfg Config) (http.Handler, error) {
	if cfg.Service == nil {
		return nil, fmt.Errorf("server: nil service")
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	hcfg := huma.DefaultConfig("MentalHealthDungeon API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerAccounts(group, cfg.Service)
	registerTasks(group, cfg.Service)
	registerAdventure(group, cfg.Service)
	registerCatalog(group, cfg.Service)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, progression.ErrTaskNotFound),
		errors.Is(err, catalog.ErrDefinitionNotFound):
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, store.ErrExists):
		return newAPIError(http.StatusConflict, "already_exists", err.Error(), nil)
	case errors.Is(err, progression.ErrAdventureActive):
		return newAPIError(http.StatusConflict, "adventure_active", err.Error(), nil)
	case errors.Is(err, progression.ErrNotEnoughIP):
		return newAPIError(http.StatusConflict, "not_enough_points", err.Error(), nil)
	case errors.Is(err, progression.ErrNoAdventure):
		return newAPIError(http.StatusConflict, "no_adventure", err.Error(), nil)
	case errors.Is(err, progression.ErrNotResolvable):
		return newAPIError(http.StatusConflict, "not_resolvable", err.Error(), nil)
	case isValidationError(err):
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
	}
}

func isValidationError(err error) bool {
	for _, sentinel := range []error{
		domain.ErrZeroPoints, domain.ErrNegativePoints, domain.ErrTooManyPoints,
		domain.ErrInvalidExpiration, domain.ErrTooManyHours,
		domain.ErrEmptyName, domain.ErrNameTooLong, domain.ErrDetailsTooLong,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

type AccountPath struct {
	AccountID string `path:"account_id"`
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerAccounts(api huma.API, svc *app.Service) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-account",
		Method:        http.MethodPost,
		Path:          "/accounts",
		Summary:       "Create account",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		Body CreateAccountRequest
	}) (*struct {
		Body AccountResponse `json:"body"`
	}, error) {
		if strings.TrimSpace(input.Body.ID) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "account id is required", nil)
		}
		doc, err := svc.CreateAccount(ctx, input.Body.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AccountResponse `json:"body"`
		}{Body: accountResponse(input.Body.ID, doc)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-account",
		Method:      http.MethodGet,
		Path:        "/accounts/{account_id}",
		Summary:     "Account snapshot",
	}, func(ctx context.Context, input *AccountPath) (*struct {
		Body AccountResponse `json:"body"`
	}, error) {
		doc, err := svc.Account(ctx, input.AccountID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AccountResponse `json:"body"`
		}{Body: accountResponse(input.AccountID, doc)}, nil
	})
}

func registerTasks(api huma.API, svc *app.Service) {
	type taskBody struct {
		Body TaskResponse `json:"body"`
	}
	now := func() time.Time {
		if svc.Now != nil {
			return svc.Now()
		}
		return time.Now()
	}

	huma.Register(api, huma.Operation{
		OperationID:   "add-task",
		Method:        http.MethodPost,
		Path:          "/accounts/{account_id}/tasks",
		Summary:       "Add a custom task",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		AccountPath
		Body CreateTaskRequest
	}) (*taskBody, error) {
		task, err := svc.AddTask(ctx, input.AccountID, input.Body.Name, input.Body.Details, input.Body.Points, input.Body.Hours)
		if err != nil {
			return nil, handleError(err)
		}
		return &taskBody{Body: taskResponse(task, now())}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-preset-task",
		Method:        http.MethodPost,
		Path:          "/accounts/{account_id}/tasks/preset",
		Summary:       "Add a task from the preset catalog",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		AccountPath
		Body PresetTaskRequest
	}) (*taskBody, error) {
		task, err := svc.AddPresetTask(ctx, input.AccountID, input.Body.Name)
		if err != nil {
			return nil, handleError(err)
		}
		return &taskBody{Body: taskResponse(task, now())}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/accounts/{account_id}/tasks",
		Summary:     "List active tasks",
	}, func(ctx context.Context, input *AccountPath) (*struct {
		Body []TaskResponse `json:"body"`
	}, error) {
		tasks, err := svc.ListTasks(ctx, input.AccountID)
		if err != nil {
			return nil, handleError(err)
		}
		resp := make([]TaskResponse, 0, len(tasks))
		at := now()
		for _, t := range tasks {
			resp = append(resp, taskResponse(t, at))
		}
		return &struct {
			Body []TaskResponse `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-task",
		Method:      http.MethodPost,
		Path:        "/accounts/{account_id}/tasks/{task_id}/complete",
		Summary:     "Complete a task",
		Description: "Removes the task. Points are credited only when the deadline has not passed.",
	}, func(ctx context.Context, input *struct {
		AccountPath
		TaskID string `path:"task_id"`
	}) (*struct {
		Body CompleteTaskResponse `json:"body"`
	}, error) {
		credited, err := svc.CompleteTask(ctx, input.AccountID, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CompleteTaskResponse `json:"body"`
		}{Body: CompleteTaskResponse{ID: input.TaskID, Credited: credited}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "remove-task",
		Method:      http.MethodDelete,
		Path:        "/accounts/{account_id}/tasks/{task_id}",
		Summary:     "Remove a task",
		Description: "Drops the task. Pass completed=true to credit its points regardless of the deadline.",
	}, func(ctx context.Context, input *struct {
		AccountPath
		TaskID    string `path:"task_id"`
		Completed bool   `query:"completed"`
	}) (*struct{}, error) {
		if err := svc.RemoveTask(ctx, input.AccountID, input.TaskID, input.Completed); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerAdventure(api huma.API, svc *app.Service) {
	huma.Register(api, huma.Operation{
		OperationID:   "begin-adventure",
		Method:        http.MethodPost,
		Path:          "/accounts/{account_id}/adventure",
		Summary:       "Begin a dungeon adventure",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		AccountPath
		Body BeginAdventureRequest
	}) (*struct {
		Body AdventureStatusResponse `json:"body"`
	}, error) {
		adv, err := svc.BeginAdventure(ctx, input.AccountID, input.Body.Dungeon)
		if err != nil {
			return nil, handleError(err)
		}
		end := adv.EndsAt
		return &struct {
			Body AdventureStatusResponse `json:"body"`
		}{Body: AdventureStatusResponse{
			State:   string(progression.StateActive),
			Dungeon: adv.DungeonName,
			EndsAt:  &end,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "adventure-status",
		Method:      http.MethodGet,
		Path:        "/accounts/{account_id}/adventure",
		Summary:     "Adventure status with countdown",
	}, func(ctx context.Context, input *AccountPath) (*struct {
		Body AdventureStatusResponse `json:"body"`
	}, error) {
		status, err := svc.AdventureStatus(ctx, input.AccountID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AdventureStatusResponse `json:"body"`
		}{Body: AdventureStatusResponse{
			State:     string(status.State),
			Dungeon:   status.DungeonName,
			EndsAt:    status.EndsAt,
			Remaining: status.Remaining,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-adventure",
		Method:      http.MethodDelete,
		Path:        "/accounts/{account_id}/adventure",
		Summary:     "Complete a resolvable adventure",
	}, func(ctx context.Context, input *AccountPath) (*struct {
		Body AccountResponse `json:"body"`
	}, error) {
		doc, err := svc.CompleteAdventure(ctx, input.AccountID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AccountResponse `json:"body"`
		}{Body: accountResponse(input.AccountID, doc)}, nil
	})
}

func registerCatalog(api huma.API, svc *app.Service) {
	huma.Register(api, huma.Operation{
		OperationID: "list-dungeons",
		Method:      http.MethodGet,
		Path:        "/dungeons",
		Summary:     "List dungeon definitions",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []DungeonResponse `json:"body"`
	}, error) {
		dungeons := svc.Catalog.Dungeons()
		resp := make([]DungeonResponse, 0, len(dungeons))
		for _, d := range dungeons {
			resp = append(resp, dungeonResponse(d))
		}
		return &struct {
			Body []DungeonResponse `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-presets",
		Method:      http.MethodGet,
		Path:        "/presets",
		Summary:     "List preset task definitions",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []PresetResponse `json:"body"`
	}, error) {
		presets := svc.Catalog.Presets()
		resp := make([]PresetResponse, 0, len(presets))
		for _, p := range presets {
			resp = append(resp, PresetResponse{
				ID: p.ID, Name: p.Name, Details: p.Details, Points: p.Points, Hours: p.Hours,
			})
		}
		return &struct {
			Body []PresetResponse `json:"body"`
		}{Body: resp}, nil
	})
}

func taskResponse(t domain.Task, now time.Time) TaskResponse {
	return TaskResponse{
		ID:             t.ID,
		Name:           t.Name,
		Details:        t.Details,
		Points:         t.Points,
		CreationTime:   t.CreationTime,
		ExpirationTime: t.ExpirationTime,
		Remaining:      clock.Remaining(now, t.ExpirationTime, taskElapsedMessage),
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>MentalHealthDungeon API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
  </body>
</html>`, specURL)
}
