package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/donaldgifford/ebay-connector/internal/engine"
	domain "github.com/donaldgifford/ebay-connector/pkg/types"
)

// JobsProvider defines the store methods required by the jobs handler.
type JobsProvider interface {
	ListLatestJobRuns(ctx context.Context) ([]domain.JobRun, error)
	ListJobRuns(ctx context.Context, jobName string, limit int) ([]domain.JobRun, error)
}

// Trigger runs a sync job outside its schedule.
type Trigger interface {
	Trigger(ctx context.Context, job string) error
}

// JobsHandler handles sync job history and manual trigger requests.
type JobsHandler struct {
	store   JobsProvider
	trigger Trigger
}

// NewJobsHandler creates a new JobsHandler.
func NewJobsHandler(s JobsProvider, t Trigger) *JobsHandler {
	return &JobsHandler{store: s, trigger: t}
}

// ListJobsOutput is the response body for listing the latest job runs.
type ListJobsOutput struct {
	Body []domain.JobRun
}

// GetJobHistoryInput is the request path for job history.
type GetJobHistoryInput struct {
	JobName string `path:"job_name" doc:"Sync job name (e.g. orders, categories)"`
}

// GetJobHistoryOutput is the response body for a single job's history.
type GetJobHistoryOutput struct {
	Body []domain.JobRun
}

// TriggerSyncInput names the sync domain to run.
type TriggerSyncInput struct {
	Domain string `path:"domain" doc:"Sync domain" enum:"products,orders,returns,categories,shipping"`
}

// TriggerSyncOutput is the response body of a manual sync.
type TriggerSyncOutput struct {
	Body struct {
		Status string `json:"status" example:"orders sync completed" doc:"Sync status"`
	}
}

const defaultJobHistoryLimit = 20

// ListJobs returns the most recent run for each distinct sync job.
func (h *JobsHandler) ListJobs(
	ctx context.Context,
	_ *struct{},
) (*ListJobsOutput, error) {
	runs, err := h.store.ListLatestJobRuns(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("listing jobs failed: " + err.Error())
	}

	if runs == nil {
		runs = []domain.JobRun{}
	}

	return &ListJobsOutput{Body: runs}, nil
}

// GetJobHistory returns the run history for a specific sync job.
func (h *JobsHandler) GetJobHistory(
	ctx context.Context,
	input *GetJobHistoryInput,
) (*GetJobHistoryOutput, error) {
	runs, err := h.store.ListJobRuns(ctx, input.JobName, defaultJobHistoryLimit)
	if err != nil {
		return nil, huma.Error500InternalServerError("fetching job history failed: " + err.Error())
	}

	if runs == nil {
		runs = []domain.JobRun{}
	}

	return &GetJobHistoryOutput{Body: runs}, nil
}

// TriggerSync runs a sync domain for every account now and waits for it.
func (h *JobsHandler) TriggerSync(
	ctx context.Context,
	input *TriggerSyncInput,
) (*TriggerSyncOutput, error) {
	if err := h.trigger.Trigger(ctx, input.Domain); err != nil {
		if errors.Is(err, engine.ErrUnknownJob) {
			return nil, huma.Error404NotFound(err.Error())
		}
		return nil, huma.Error500InternalServerError(input.Domain + " sync failed: " + err.Error())
	}

	resp := &TriggerSyncOutput{}
	resp.Body.Status = input.Domain + " sync completed"
	return resp, nil
}

// RegisterJobRoutes registers sync job endpoints with the Huma API.
func RegisterJobRoutes(api huma.API, h *JobsHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "list-jobs",
		Method:      http.MethodGet,
		Path:        "/api/v1/jobs",
		Summary:     "List latest sync job runs",
		Description: "Returns the most recent run record for each distinct sync job.",
		Tags:        []string{"sync"},
		Errors:      []int{http.StatusInternalServerError},
	}, h.ListJobs)

	huma.Register(api, huma.Operation{
		OperationID: "get-job-history",
		Method:      http.MethodGet,
		Path:        "/api/v1/jobs/{job_name}",
		Summary:     "Get sync job history",
		Description: "Returns the run history for a specific sync job (newest first).",
		Tags:        []string{"sync"},
		Errors:      []int{http.StatusInternalServerError},
	}, h.GetJobHistory)

	huma.Register(api, huma.Operation{
		OperationID: "trigger-sync",
		Method:      http.MethodPost,
		Path:        "/api/v1/sync/{domain}",
		Summary:     "Run a sync domain now",
		Description: "Runs one sync domain for every account outside its schedule. " +
			"The run is skipped when another replica holds the job.",
		Tags:   []string{"sync"},
		Errors: []int{http.StatusNotFound, http.StatusInternalServerError},
	}, h.TriggerSync)
}
