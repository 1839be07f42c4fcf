package lock

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Receipt is the on-disk record of a lock attempt, kept for traceability
// of which remote run a publish waited on.
type Receipt struct {
	Version      int       `yaml:"version"`
	Repo         string    `yaml:"repo"`
	Workflow     string    `yaml:"workflow"`
	RunID        int64     `yaml:"run_id,omitempty"`
	RunURL       string    `yaml:"run_url,omitempty"`
	State        State     `yaml:"state"`
	Conclusion   string    `yaml:"conclusion,omitempty"`
	Artifact     string    `yaml:"artifact,omitempty"`
	CallerRepo   string    `yaml:"caller_repo,omitempty"`
	CallerRunID  string    `yaml:"caller_run_id,omitempty"`
	DispatchedAt time.Time `yaml:"dispatched_at"`
	FinishedAt   time.Time `yaml:"finished_at,omitempty"`
	Waited       string    `yaml:"waited,omitempty"`
}

// NewReceipt records tok for the given request. The resource credential is
// never written.
func NewReceipt(tok *Token, d Descriptor, repo, workflow string) *Receipt {
	r := &Receipt{
		Version:     1,
		Repo:        repo,
		Workflow:    workflow,
		Artifact:    d.ArtifactName,
		CallerRepo:  d.CallerRepo,
		CallerRunID: d.CallerRunID,
	}
	if tok != nil {
		r.RunID = tok.RunID
		r.RunURL = tok.RunURL
		r.State = tok.State
		r.Conclusion = tok.Conclusion
		r.DispatchedAt = tok.DispatchedAt.UTC()
		if !tok.FinishedAt.IsZero() {
			r.FinishedAt = tok.FinishedAt.UTC()
		}
		if tok.Waited > 0 {
			r.Waited = tok.Waited.String()
		}
	}
	return r
}

// LoadReceipt reads and validates a receipt file.
func LoadReceipt(path string) (*Receipt, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading lock receipt %s: %w", path, err)
	}

	var r Receipt
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing lock receipt %s: %w", path, err)
	}

	if errs := ValidateReceipt(&r); len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	return &r, nil
}

// SaveReceipt writes a receipt atomically using a temp file and rename.
func SaveReceipt(path string, r *Receipt) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshaling lock receipt: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing temp lock receipt %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("renaming temp lock receipt to %s: %w", path, err)
	}

	return nil
}

// ValidationError holds multiple validation failures.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("lock receipt validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// ValidateReceipt checks a Receipt for semantic correctness.
// Returns a list of validation error messages (empty if valid).
func ValidateReceipt(r *Receipt) []string {
	var errs []string

	if r.Version != 1 {
		errs = append(errs, fmt.Sprintf("unsupported version %d, only version 1 is supported", r.Version))
	}
	if r.Repo == "" {
		errs = append(errs, "'repo' is required")
	}
	if r.Workflow == "" {
		errs = append(errs, "'workflow' is required")
	}
	if !r.State.valid() {
		errs = append(errs, fmt.Sprintf("unknown state '%s'", r.State))
	}
	if r.DispatchedAt.IsZero() {
		errs = append(errs, "'dispatched_at' is required")
	}
	// Every state past dispatch has a run behind it.
	if r.State != StateDispatched && r.State.valid() && r.RunID == 0 {
		errs = append(errs, fmt.Sprintf("state '%s' requires 'run_id'", r.State))
	}
	if r.State.Terminal() && r.FinishedAt.IsZero() {
		errs = append(errs, fmt.Sprintf("terminal state '%s' requires 'finished_at'", r.State))
	}

	return errs
}
