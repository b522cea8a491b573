package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/distributor"
	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/metrics"
	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/orchestrator"
	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/registry"
	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/scrape"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	dateLayout       = "2006-01-02"
	lookupTimeout    = 30 * time.Second
)

type batchJob struct {
	CredentialRef string   `json:"credentialRef"`
	Secret        string   `json:"secret"`
	Targets       []string `json:"targets"`
}

// jobOptions is the request form of scrape.Options. An absent minutePacing
// means pacing on.
type jobOptions struct {
	Mode         scrape.Mode `json:"mode"`
	Headless     bool        `json:"headless"`
	WriteJSON    bool        `json:"writeJson"`
	MinutePacing *bool       `json:"minutePacing"`
}

func (o jobOptions) options() scrape.Options {
	return scrape.Options{
		Mode:         o.Mode,
		Headless:     o.Headless,
		WriteJSON:    o.WriteJSON,
		MinutePacing: o.MinutePacing == nil || *o.MinutePacing,
	}
}

type batchRequest struct {
	Jobs    []batchJob `json:"jobs"`
	Options jobOptions `json:"options"`
}

type targetFilter struct {
	DateFrom string   `json:"dateFrom"`
	DateTo   string   `json:"dateTo"`
	Tags     []string `json:"tags"`
}

type multiRequest struct {
	Credentials []string     `json:"credentials"`
	Filter      targetFilter `json:"filter"`
	Shuffle     *bool        `json:"shuffle"`
	Options     jobOptions   `json:"options"`
}

type listResponse struct {
	Jobs  []scrape.Job `json:"jobs"`
	Count int          `json:"count"`
}

func (s *Server) submitBatch(w http.ResponseWriter, r *http.Request) {
	var body batchRequest
	if err := decodeJSON(w, r, &body); err != nil {
		metrics.ObserveSubmission("batch", "rejected", 0)
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	var problems []string
	if len(body.Jobs) == 0 {
		problems = append(problems, "at least one job entry is required")
	}
	req := orchestrator.Request{Options: body.Options.options()}
	for i, job := range body.Jobs {
		ref := strings.TrimSpace(job.CredentialRef)
		label := fmt.Sprintf("job %d", i)
		if ref != "" {
			label = fmt.Sprintf("job %d (%s)", i, scrape.MaskIdentifier(ref))
		}
		if len(distributor.Dedupe(toItems(job.Targets))) == 0 {
			problems = append(problems, label+": targets are empty")
		}
		req.Credentials = append(req.Credentials, scrape.Credential{Identifier: ref, Secret: job.Secret})
		req.Targets = append(req.Targets, toItems(job.Targets)...)
	}
	if len(problems) > 0 {
		metrics.ObserveSubmission("batch", "rejected", 0)
		writeProblems(w, problems)
		return
	}
	s.submit(w, r, "batch", req)
}

func (s *Server) submitMulti(w http.ResponseWriter, r *http.Request) {
	var body multiRequest
	if err := decodeJSON(w, r, &body); err != nil {
		metrics.ObserveSubmission("multi", "rejected", 0)
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if s.deps.Credentials == nil || s.deps.Targets == nil {
		writeError(w, http.StatusServiceUnavailable, "stored credentials are not configured")
		return
	}

	filter, problems := parseFilter(body.Filter)
	if len(body.Credentials) == 0 {
		problems = append(problems, "at least one credential is required")
	}
	if len(problems) > 0 {
		metrics.ObserveSubmission("multi", "rejected", 0)
		writeProblems(w, problems)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), lookupTimeout)
	defer cancel()

	req := orchestrator.Request{Options: body.Options.options()}
	for _, raw := range body.Credentials {
		id := strings.TrimSpace(raw)
		secret, err := s.deps.Credentials.FetchCredentialSecret(ctx, id)
		if err != nil {
			s.logger.Warn("credential lookup failed",
				zap.String("credential", scrape.MaskIdentifier(id)), zap.Error(err))
			problems = append(problems, fmt.Sprintf("credential %s: secret not available", scrape.MaskIdentifier(id)))
			continue
		}
		req.Credentials = append(req.Credentials, scrape.Credential{Identifier: id, Secret: secret})
	}
	if len(problems) > 0 {
		metrics.ObserveSubmission("multi", "rejected", 0)
		writeProblems(w, problems)
		return
	}

	targets, err := s.deps.Targets.FetchCandidateTargets(ctx, filter)
	if err != nil {
		s.logger.Error("target lookup failed", zap.Error(err))
		metrics.ObserveSubmission("multi", "rejected", 0)
		writeProblems(w, []string{"candidate targets could not be loaded"})
		return
	}
	if len(targets) == 0 {
		metrics.ObserveSubmission("multi", "rejected", 0)
		writeProblems(w, []string{"no candidate targets match the filter"})
		return
	}
	if body.Shuffle == nil || *body.Shuffle {
		targets = s.shuffle(targets)
	}
	req.Targets = targets
	s.submit(w, r, "multi", req)
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request, endpoint string, req orchestrator.Request) {
	receipt, err := s.deps.Submitter.Submit(r.Context(), req)
	if err != nil {
		var verr *scrape.ValidationError
		if errors.As(err, &verr) {
			metrics.ObserveSubmission(endpoint, "rejected", 0)
			writeProblems(w, verr.Problems)
			return
		}
		metrics.ObserveSubmission(endpoint, "failed", 0)
		s.logger.Error("submit job failed", zap.String("endpoint", endpoint), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to submit job")
		return
	}
	metrics.ObserveSubmission(endpoint, "accepted", receipt.TotalAssigned)
	writeJSON(w, http.StatusAccepted, receipt)
}

func (s *Server) shuffle(items []scrape.WorkItem) []scrape.WorkItem {
	if s.deps.Shuffle != nil {
		return s.deps.Shuffle(items)
	}
	return distributor.Shuffle(items, nil)
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := registry.Filter{Limit: defaultListLimit}
	if raw := q.Get("status"); raw != "" {
		status, ok := scrape.ParseJobStatus(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", raw))
			return
		}
		filter.Status = &status
	}
	var err error
	if filter.Limit, err = intParam(q.Get("limit"), defaultListLimit); err != nil || filter.Limit <= 0 {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	filter.Limit = min(filter.Limit, maxListLimit)
	if filter.Offset, err = intParam(q.Get("offset"), 0); err != nil || filter.Offset < 0 {
		writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}

	jobs := s.deps.Jobs.List(filter)
	writeJSON(w, http.StatusOK, listResponse{Jobs: jobs, Count: len(jobs)})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.deps.Jobs.Get(jobID)
	if err != nil {
		if errors.Is(err, scrape.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// parseFilter turns the inclusive day range into UTC instants. DateTo covers
// the whole named day.
func parseFilter(in targetFilter) (scrape.TargetFilter, []string) {
	var (
		out      scrape.TargetFilter
		problems []string
	)
	if in.DateFrom != "" {
		from, err := time.ParseInLocation(dateLayout, in.DateFrom, time.UTC)
		if err != nil {
			problems = append(problems, fmt.Sprintf("dateFrom %q must be YYYY-MM-DD", in.DateFrom))
		} else {
			out.From = from
		}
	}
	if in.DateTo != "" {
		to, err := time.ParseInLocation(dateLayout, in.DateTo, time.UTC)
		if err != nil {
			problems = append(problems, fmt.Sprintf("dateTo %q must be YYYY-MM-DD", in.DateTo))
		} else {
			out.To = to.Add(24*time.Hour - time.Nanosecond)
		}
	}
	if !out.From.IsZero() && !out.To.IsZero() && out.To.Before(out.From) {
		problems = append(problems, "dateTo must not be before dateFrom")
	}
	for _, tag := range in.Tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			out.Tags = append(out.Tags, tag)
		}
	}
	return out, problems
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", raw, err)
	}
	return n, nil
}

func toItems(targets []string) []scrape.WorkItem {
	out := make([]scrape.WorkItem, len(targets))
	for i, t := range targets {
		out[i] = scrape.WorkItem(t)
	}
	return out
}
