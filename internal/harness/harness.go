package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/marksync/internal/engine"
	"github.com/roach88/marksync/internal/ir"
	"github.com/roach88/marksync/internal/source"
	"github.com/roach88/marksync/internal/store"
	"github.com/roach88/marksync/internal/testutil"
)

// Harness executes scenario steps against one engine and store.
type Harness struct {
	store   *store.Store
	engine  *engine.Engine
	logger  *slog.Logger
	baseDir string
	seq     int64

	// batches holds staged batch ids in scenario order; "$N" is batches[N-1].
	batches []string
	// changes maps batch id to staging seq to change id.
	changes map[string]map[int64]string
	// failures counts installed fail_history triggers.
	failures int
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database with sequential ids and
// a clock that advances one second per call, so repeated runs produce the
// same trace and the same store contents.
//
// An error is returned when the scenario cannot be executed at all: the
// store cannot be opened, a step has malformed args, or a setup step fails.
// Mismatched expectations and failed assertions are reported in the Result.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests

	opts := []engine.EngineOption{
		engine.WithIDGenerator(testutil.NewSequentialIDs("id")),
		engine.WithClock(testutil.NewStepClock(testutil.Epoch, time.Second)),
		engine.WithLogger(logger),
	}
	if scenario.DeletePolicy != "" {
		policy, err := engine.ParseDeletePolicy(scenario.DeletePolicy)
		if err != nil {
			return nil, err
		}
		opts = append(opts, engine.WithDeletePolicy(policy))
	}

	h := &Harness{
		store:   st,
		engine:  engine.New(st, opts...),
		logger:  logger,
		baseDir: scenario.BaseDir,
		changes: make(map[string]map[int64]string),
	}

	result := NewResult()
	if err := h.executeSetup(ctx, scenario.Setup, result); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}
	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	actx := &AssertionContext{Store: st, Ctx: ctx}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

func (h *Harness) next() int64 {
	h.seq++
	return h.seq
}

// executeSetup runs all setup steps. Any outcome other than Success aborts
// the scenario.
func (h *Harness) executeSetup(ctx context.Context, setup []ActionStep, result *Result) error {
	for i, step := range setup {
		result.AddInvocationTrace(step.Action, step.Args, h.next())

		outputCase, res, err := h.execute(ctx, step.Action, step.Args)
		if err != nil {
			return fmt.Errorf("setup step %d (%s): %w", i, step.Action, err)
		}
		result.AddCompletionTrace(outputCase, res, h.next())

		if outputCase != CaseSuccess {
			return fmt.Errorf("setup step %d (%s): completed with %s", i, step.Action, outputCase)
		}
		h.logger.Info("setup step completed", "step", i, "action", step.Action)
	}
	return nil
}

// executeFlow runs all flow steps and checks their expect clauses.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) error {
	for i, step := range flow {
		result.AddInvocationTrace(step.Invoke, step.Args, h.next())

		outputCase, res, err := h.execute(ctx, step.Invoke, step.Args)
		if err != nil {
			return fmt.Errorf("flow step %d (%s): %w", i, step.Invoke, err)
		}
		result.AddCompletionTrace(outputCase, res, h.next())

		expectedCase := CaseSuccess
		var expectedResult map[string]any
		if step.Expect != nil {
			expectedCase = step.Expect.Case
			expectedResult = step.Expect.Result
		}

		if outputCase != expectedCase {
			result.AddError(fmt.Sprintf("flow[%d] %s: expected case %s, got %s",
				i, step.Invoke, expectedCase, outputCase))
			continue
		}
		if !matchArgs(res, expectedResult) {
			result.AddError(fmt.Sprintf("flow[%d] %s: expected result %v, got %v",
				i, step.Invoke, expectedResult, res))
		}

		h.logger.Info("flow step completed", "step", i, "action", step.Invoke, "output_case", outputCase)
	}
	return nil
}

// execute runs one action. An engine error becomes the output case; any
// other error means the step itself is malformed.
func (h *Harness) execute(ctx context.Context, action string, args map[string]any) (string, map[string]any, error) {
	var (
		res map[string]any
		err error
	)
	switch action {
	case ActionReconcile:
		res, err = h.reconcile(ctx, args)
	case ActionCommit:
		res, err = h.commit(ctx, args)
	case ActionReject:
		res, err = h.reject(ctx, args)
	case ActionRevert:
		res, err = h.revert(ctx, args)
	case ActionFailHistory:
		res, err = h.failHistory(ctx, args)
	default:
		return "", nil, fmt.Errorf("unknown action %q", action)
	}

	if err != nil {
		var engineErr *engine.Error
		if errors.As(err, &engineErr) {
			return string(engineErr.Code), nil, nil
		}
		return "", nil, err
	}
	return CaseSuccess, res, nil
}

func (h *Harness) reconcile(ctx context.Context, args map[string]any) (map[string]any, error) {
	family := ir.SourceFamily(optionalString(args, "family"))
	label := optionalString(args, "source")
	profile := optionalString(args, "profile")

	var (
		res engine.ReconcileResult
		err error
	)
	if path := optionalString(args, "path"); path != "" {
		if !filepath.IsAbs(path) {
			path = filepath.Join(h.baseDir, path)
		}
		reader, rerr := source.New(family, path)
		if rerr != nil {
			return nil, engine.SourceReadError(path, rerr)
		}
		res, err = h.engine.Sync(ctx, engine.SyncRequest{Reader: reader, Source: label, Profile: profile})
	} else {
		var records []ir.NormalizedRecord
		if err := decodeArg(args, "records", &records); err != nil {
			return nil, err
		}
		var meta *ir.SourceMetadata
		if _, ok := args["metadata"]; ok {
			meta = &ir.SourceMetadata{}
			if err := decodeArg(args, "metadata", meta); err != nil {
				return nil, err
			}
		}
		res, err = h.engine.Reconcile(ctx, engine.ReconcileRequest{
			Family:   family,
			Source:   label,
			Profile:  profile,
			Records:  records,
			Metadata: meta,
		})
	}
	if err != nil {
		return nil, err
	}

	view, err := h.engine.GetBatch(ctx, res.Batch.ID)
	if err != nil {
		return nil, err
	}
	h.batches = append(h.batches, res.Batch.ID)
	seqs := make(map[int64]string, len(view.Changes))
	changes := make([]any, 0, len(view.Changes))
	for _, c := range view.Changes {
		seqs[c.Seq] = c.ID
		changes = append(changes, describeChange(c))
	}
	h.changes[res.Batch.ID] = seqs

	return map[string]any{
		"batch":        fmt.Sprintf("$%d", len(h.batches)),
		"new":          res.Counts.New,
		"update":       res.Counts.Update,
		"mark_deleted": res.Counts.MarkDeleted,
		"duplicates":   res.Duplicates,
		"warnings":     len(res.Warnings),
		"changes":      changes,
	}, nil
}

func (h *Harness) commit(ctx context.Context, args map[string]any) (map[string]any, error) {
	batchID, err := h.batchArg(args)
	if err != nil {
		return nil, err
	}

	var ids []string
	if raw, ok := args["changes"]; ok {
		seqs, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("changes: want a list of staging seqs, got %T", raw)
		}
		ids = make([]string, 0, len(seqs))
		for _, v := range seqs {
			seq, err := toInt64(v)
			if err != nil {
				return nil, fmt.Errorf("changes: %w", err)
			}
			id, ok := h.changes[batchID][seq]
			if !ok {
				id = fmt.Sprintf("unstaged-%d", seq)
			}
			ids = append(ids, id)
		}
	}

	res, err := h.engine.Commit(ctx, batchID, ids)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"applied":   res.Applied,
		"skipped":   res.Skipped,
		"remaining": res.Remaining,
		"status":    string(res.Status),
	}, nil
}

func (h *Harness) reject(ctx context.Context, args map[string]any) (map[string]any, error) {
	batchID, err := h.batchArg(args)
	if err != nil {
		return nil, err
	}
	batch, err := h.engine.Reject(ctx, batchID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"status": string(batch.Status)}, nil
}

// revert selects the bookmark by family and url, and the snapshot by
// version among the history of history_url's bookmark (default: url).
func (h *Harness) revert(ctx context.Context, args map[string]any) (map[string]any, error) {
	family := ir.SourceFamily(optionalString(args, "family"))
	url := optionalString(args, "url")
	if url == "" {
		return nil, fmt.Errorf("url is required")
	}
	raw, ok := args["version"]
	if !ok {
		return nil, fmt.Errorf("version is required")
	}
	version, err := toInt64(raw)
	if err != nil {
		return nil, fmt.Errorf("version: %w", err)
	}
	historyURL := optionalString(args, "history_url")
	if historyURL == "" {
		historyURL = url
	}

	bookmarkID, err := h.bookmarkID(ctx, family, url)
	if err != nil {
		return nil, err
	}
	ownerID, err := h.bookmarkID(ctx, family, historyURL)
	if err != nil {
		return nil, err
	}
	snapshots, err := h.store.ListHistory(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	historyID := "missing-history"
	for _, s := range snapshots {
		if s.Version == version {
			historyID = s.ID
			break
		}
	}

	b, err := h.engine.Revert(ctx, bookmarkID, historyID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"url":     b.URL,
		"title":   b.Title,
		"folder":  b.FolderPath,
		"version": int(b.Version),
		"status":  string(b.Status),
	}, nil
}

// bookmarkID resolves a canonical bookmark by url. An unknown url resolves
// to an id no bookmark has, so the engine reports NOT_FOUND.
func (h *Harness) bookmarkID(ctx context.Context, family ir.SourceFamily, url string) (string, error) {
	b, err := h.store.FindBookmarkByURL(ctx, family, url)
	switch {
	case err == nil:
		return b.ID, nil
	case errors.Is(err, store.ErrNotFound):
		return "missing-bookmark", nil
	default:
		return "", err
	}
}

// failHistory installs a trigger that aborts every later history insert
// for url, so a commit or revert touching that bookmark fails midway.
func (h *Harness) failHistory(ctx context.Context, args map[string]any) (map[string]any, error) {
	url := optionalString(args, "url")
	if url == "" {
		return nil, fmt.Errorf("url is required")
	}
	h.failures++
	stmt := fmt.Sprintf(`CREATE TRIGGER fail_history_%d BEFORE INSERT ON bookmark_history
		WHEN NEW.url = '%s'
		BEGIN SELECT RAISE(ABORT, 'history write rejected'); END`,
		h.failures, strings.ReplaceAll(url, "'", "''"))
	if _, err := h.store.DB().ExecContext(ctx, stmt); err != nil {
		return nil, fmt.Errorf("install history trigger: %w", err)
	}
	return map[string]any{}, nil
}

// batchArg resolves the batch argument: "$last", "$N", or a literal id.
func (h *Harness) batchArg(args map[string]any) (string, error) {
	ref := optionalString(args, "batch")
	switch {
	case ref == "":
		return "", fmt.Errorf("batch is required")
	case ref == "$last":
		if len(h.batches) == 0 {
			return "", fmt.Errorf("batch $last: no batch staged yet")
		}
		return h.batches[len(h.batches)-1], nil
	case strings.HasPrefix(ref, "$"):
		n, err := strconv.Atoi(ref[1:])
		if err != nil || n < 1 || n > len(h.batches) {
			return "", fmt.Errorf("batch %s: %d batches staged", ref, len(h.batches))
		}
		return h.batches[n-1], nil
	default:
		return ref, nil
	}
}

// describeChange renders a staged change for step results,
// e.g. "update https://a.com".
func describeChange(c ir.Change) string {
	switch p := c.Payload.(type) {
	case ir.NewPayload:
		return fmt.Sprintf("%s %s", ir.ChangeNew, p.Record.URL)
	case ir.UpdatePayload:
		return fmt.Sprintf("%s %s", ir.ChangeUpdate, p.New.URL)
	case ir.MarkDeletedPayload:
		return fmt.Sprintf("%s %s", ir.ChangeMarkDeleted, p.URL)
	default:
		return string(c.Type())
	}
}

func optionalString(args map[string]any, key string) string {
	if v, ok := args[key]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

// decodeArg re-decodes a YAML-parsed arg into a typed value.
func decodeArg(args map[string]any, key string, out any) error {
	v, ok := args[key]
	if !ok || v == nil {
		return nil
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case uint64:
		return int64(n), nil
	case float64:
		if n == float64(int64(n)) {
			return int64(n), nil
		}
	}
	return 0, fmt.Errorf("want an integer, got %v", v)
}
