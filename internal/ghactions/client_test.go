package ghactions

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bianoble/conda-publish/internal/ghactions/ghactionstest"
)

func TestDispatchListAndGet(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	srv := ghactionstest.NewServer(t, func() time.Time { return now })
	srv.Script(ghactionstest.InProgress, ghactionstest.Success)

	client, err := NewClient(Config{BaseURL: srv.URL(), Token: "ghp_test"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	ctx := context.Background()

	err = client.DispatchWorkflow(ctx, "ecmwf/reusable-workflows", "conda-index-lock.yml", DispatchRequest{
		Ref:    "main",
		Inputs: map[string]string{"caller_repo": "ecmwf/eccodes"},
	})
	if err != nil {
		t.Fatalf("DispatchWorkflow: %v", err)
	}

	d := srv.Dispatches()
	if len(d) != 1 {
		t.Fatalf("dispatches = %d, want 1", len(d))
	}
	if d[0].Owner != "ecmwf" || d[0].Repo != "reusable-workflows" || d[0].Workflow != "conda-index-lock.yml" || d[0].Ref != "main" {
		t.Errorf("dispatch = %+v", d[0])
	}
	if d[0].Auth != "Bearer ghp_test" {
		t.Errorf("Authorization = %q", d[0].Auth)
	}
	if d[0].Inputs["caller_repo"] != "ecmwf/eccodes" {
		t.Errorf("inputs = %v", d[0].Inputs)
	}

	runs, err := client.ListWorkflowRuns(ctx, "ecmwf/reusable-workflows", "conda-index-lock.yml", 5)
	if err != nil {
		t.Fatalf("ListWorkflowRuns: %v", err)
	}
	if len(runs) != 1 || !runs[0].CreatedAt.Equal(now) {
		t.Fatalf("runs = %+v", runs)
	}

	run, err := client.GetWorkflowRun(ctx, "ecmwf/reusable-workflows", runs[0].ID)
	if err != nil {
		t.Fatalf("GetWorkflowRun: %v", err)
	}
	if run.Completed() {
		t.Errorf("first observation should be in progress: %+v", run)
	}
	run, _ = client.GetWorkflowRun(ctx, "ecmwf/reusable-workflows", runs[0].ID)
	if !run.Completed() || run.Conclusion != ConclusionSuccess {
		t.Errorf("second observation = %+v, want completed/success", run)
	}
}

func TestAPIError(t *testing.T) {
	srv := ghactionstest.NewServer(t, time.Now)
	srv.FailDispatch(http.StatusUnprocessableEntity)
	client, _ := NewClient(Config{BaseURL: srv.URL(), Token: "x"})

	err := client.DispatchWorkflow(context.Background(), "o/r", "wf.yml", DispatchRequest{Ref: "main"})
	if err == nil {
		t.Fatal("expected error")
	}
	_, err = client.GetWorkflowRun(context.Background(), "o/r", 424242)
	if !IsNotFound(err) {
		t.Errorf("err = %v, want not found", err)
	}
}

func TestRequestHeaders(t *testing.T) {
	var got http.Header
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		_, _ = w.Write([]byte(`{"workflow_runs":[]}`))
	}))
	defer ts.Close()

	client, _ := NewClient(Config{BaseURL: ts.URL + "/", Token: "tok"})
	if _, err := client.ListWorkflowRuns(context.Background(), "o/r", "wf.yml", 5); err != nil {
		t.Fatalf("ListWorkflowRuns: %v", err)
	}
	if got.Get("Accept") != "application/vnd.github+json" {
		t.Errorf("Accept = %q", got.Get("Accept"))
	}
	if got.Get("X-GitHub-Api-Version") != "2022-11-28" {
		t.Errorf("X-GitHub-Api-Version = %q", got.Get("X-GitHub-Api-Version"))
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Error("expected error without token")
	}
	if _, err := NewClient(Config{Token: "x", BaseURL: "ftp://example"}); err == nil {
		t.Error("expected error for non-http base URL")
	}
	for _, repo := range []string{"", "noslash", "/r", "o/", "a/b/c"} {
		if _, _, err := SplitRepo(repo); err == nil {
			t.Errorf("SplitRepo(%q) succeeded", repo)
		}
	}
}
