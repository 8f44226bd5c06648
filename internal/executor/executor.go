// Package executor drives a plan from creation to completion or a stable
// stuck state. It is the only writer of task status during execution: every
// transition funnels through the plan store, which is the sole
// synchronization point between concurrent executor invocations.
package executor

import (
	"context"
	"sync"
	"time"

	"github.com/sotaru/tasuke/internal/config"
	"github.com/sotaru/tasuke/internal/graph"
	"github.com/sotaru/tasuke/internal/journal"
	"github.com/sotaru/tasuke/internal/planner"
	"github.com/sotaru/tasuke/internal/store"
	"github.com/sotaru/tasuke/internal/worker"
	"github.com/sotaru/tasuke/pkg/models"
)

// replanTag marks tasks appended by dynamic replanning. Their completion
// does not trigger another replanning round.
const replanTag = "replan"

// Options configures an Orchestrator beyond its two required collaborators.
type Options struct {
	// Replanner, when set together with Config-enabled replanning, is asked
	// for follow-up tasks after each completed task.
	Replanner planner.Replanner
	// Journal receives an audit record per status transition. Optional.
	Journal *journal.Journal
	// Logger receives debug traces. Nil means no logging.
	Logger *DebugLogger
	// Config holds loop tuning. Unset values fall back to config.Default(),
	// except MaxRetries: zero means no automatic retries and is honored,
	// only a negative value falls back.
	Config config.ExecutorConfig
	// Replanning toggles follow-up generation.
	Replanning bool
}

// Orchestrator coordinates the resolver, the worker registry, and the plan
// store for one or more sessions. It holds no per-session mutable state;
// ExecuteAll may be invoked concurrently for the same session without
// double-dispatching any task.
type Orchestrator struct {
	store      store.PlanStore
	registry   *worker.Registry
	replanner  planner.Replanner
	journal    *journal.Journal
	logger     *DebugLogger
	cfg        config.ExecutorConfig
	replanning bool
}

// New creates an orchestrator over the given store and registry.
func New(st store.PlanStore, reg *worker.Registry, opts Options) *Orchestrator {
	cfg := opts.Config
	def := config.Default().Executor
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = def.MaxWorkers
	}
	if cfg.WorkerTimeout <= 0 {
		cfg.WorkerTimeout = def.WorkerTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.RetryBackoff < 0 {
		cfg.RetryBackoff = 0
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	return &Orchestrator{
		store:      st,
		registry:   reg,
		replanner:  opts.Replanner,
		journal:    opts.Journal,
		logger:     opts.Logger,
		cfg:        cfg,
		replanning: opts.Replanning && opts.Replanner != nil,
	}
}

// PlanState classifies a plan once no task is pending, ready, or running.
type PlanState string

const (
	// PlanCompleted means every live task completed.
	PlanCompleted PlanState = "completed"
	// PlanStuck means at least one task is failed or blocked and nothing
	// can make progress without manual intervention.
	PlanStuck PlanState = "stuck"
)

// Outcome summarizes a finished ExecuteAll invocation.
type Outcome struct {
	State  PlanState
	Counts map[models.TaskStatus]int
}

// completion is the message a dispatch goroutine sends back to the loop.
type completion struct {
	taskID   string
	attempts int
	result   string
	err      error
}

// ExecuteAll runs the session's plan until no task is pending, ready, or
// running, then reports whether the plan completed or got stuck. The loop
// is re-entrant: overlapping invocations for one session are safe because
// the ready-to-running transition is a store-level compare-and-swap.
func (o *Orchestrator) ExecuteAll(ctx context.Context, sessionID string) (*Outcome, error) {
	inflight := make(map[string]bool)
	var inflightMu sync.Mutex

	completionCh := make(chan completion, o.cfg.MaxWorkers)
	replanned := make(map[string]bool)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case c := <-completionCh:
			inflightMu.Lock()
			delete(inflight, c.taskID)
			inflightMu.Unlock()
			o.handleCompletion(ctx, sessionID, c, replanned)

		default:
			plan, err := o.store.GetPlan(sessionID)
			if err != nil {
				return nil, err
			}

			res := graph.Resolve(plan.Tasks)
			o.persistResolution(sessionID, plan, res)

			inflightMu.Lock()
			inflightCount := len(inflight)
			candidates := make([]*models.Task, 0, len(res.Ready))
			for _, id := range res.Ready {
				if !inflight[id] {
					candidates = append(candidates, plan.Task(id))
				}
			}
			inflightMu.Unlock()

			o.logger.Log("[executeAll] %s: %d ready, %d inflight", sessionID, len(candidates), inflightCount)

			// Terminal only when the plan itself has nothing pending, ready,
			// or running. Tasks another executor dispatched count as active
			// even though they are not in this invocation's inflight set.
			if inflightCount == 0 && activeCount(plan, res) == 0 {
				return o.summarize(sessionID)
			}

			if len(candidates) == 0 || inflightCount >= o.cfg.MaxWorkers {
				// Nothing to dispatch; wait for a completion.
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case c := <-completionCh:
					go func() { completionCh <- c }()
				case <-time.After(o.cfg.PollInterval):
				}
				continue
			}

			o.dispatch(ctx, sessionID, plan, candidates, inflight, &inflightMu, completionCh)
		}
	}
}

// persistResolution writes the resolver's newly-ready and newly-blocked
// transitions back to the store. Transition failures are logged, not fatal:
// a concurrent executor may have already applied the same transition.
func (o *Orchestrator) persistResolution(sessionID string, plan *models.Plan, res graph.Resolution) {
	for _, id := range res.Blocked {
		task := plan.Task(id)
		if task == nil || task.Status == models.TaskStatusBlocked {
			continue
		}
		o.transition(sessionID, id, task.Status, models.TaskStatusBlocked, "dependency failed")
	}
	for _, id := range res.Unblocked {
		o.transition(sessionID, id, models.TaskStatusBlocked, models.TaskStatusPending, "dependency retried")
	}
	for _, id := range res.Ready {
		task := plan.Task(id)
		if task == nil || task.Status != models.TaskStatusPending {
			continue
		}
		o.transition(sessionID, id, models.TaskStatusPending, models.TaskStatusReady, "dependencies satisfied")
	}
}

// dispatch claims ready tasks in tie-break order up to the worker cap and
// runs each on its own goroutine. A lost claim means a concurrent executor
// took the task; it is skipped without error.
func (o *Orchestrator) dispatch(ctx context.Context, sessionID string, plan *models.Plan, candidates []*models.Task, inflight map[string]bool, inflightMu *sync.Mutex, completionCh chan completion) {
	for _, task := range candidates {
		inflightMu.Lock()
		room := len(inflight) < o.cfg.MaxWorkers
		inflightMu.Unlock()
		if !room {
			return
		}

		claimed, err := o.store.ClaimTask(sessionID, task.ID)
		if err != nil {
			o.logger.Log("[dispatch] claim %s: %v", task.ID, err)
			continue
		}
		if !claimed {
			o.logger.Log("[dispatch] lost claim for %s", task.ID)
			continue
		}
		o.record(sessionID, task.ID, models.TaskStatusReady, models.TaskStatusRunning, "dispatched")

		attempts := task.Attempts + 1
		input := worker.Input{
			TaskID:      task.ID,
			Description: task.Description,
			Context:     referenceContext(plan, task),
		}

		inflightMu.Lock()
		inflight[task.ID] = true
		inflightMu.Unlock()

		go func(t *models.Task, input worker.Input, attempts int) {
			w, err := o.registry.Get(t.AgentType)
			if err != nil {
				completionCh <- completion{taskID: t.ID, attempts: attempts, err: err}
				return
			}
			result, err := worker.Dispatch(ctx, w, input, o.cfg.WorkerTimeout)
			completionCh <- completion{taskID: t.ID, attempts: attempts, result: result, err: err}
		}(task, input, attempts)
	}
}

// handleCompletion writes a dispatch result back to the store: completed
// with its result, or failed with its error and an automatic retry while
// attempts remain.
func (o *Orchestrator) handleCompletion(ctx context.Context, sessionID string, c completion, replanned map[string]bool) {
	if c.err == nil {
		status := models.TaskStatusCompleted
		if _, err := o.store.UpdateTask(sessionID, c.taskID, store.TaskPatch{Status: &status, Result: &c.result}); err != nil {
			o.logger.Log("[complete] %s: %v", c.taskID, err)
			return
		}
		o.record(sessionID, c.taskID, models.TaskStatusRunning, models.TaskStatusCompleted, "")
		o.maybeReplan(ctx, sessionID, c.taskID, replanned)
		return
	}

	errText := c.err.Error()
	status := models.TaskStatusFailed
	if _, err := o.store.UpdateTask(sessionID, c.taskID, store.TaskPatch{Status: &status, Error: &errText}); err != nil {
		o.logger.Log("[fail] %s: %v", c.taskID, err)
		return
	}
	o.record(sessionID, c.taskID, models.TaskStatusRunning, models.TaskStatusFailed, errText)

	if c.attempts > o.cfg.MaxRetries {
		o.logger.Log("[fail] %s: retries exhausted after %d attempts", c.taskID, c.attempts)
		return
	}

	if o.cfg.RetryBackoff > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(o.cfg.RetryBackoff):
		}
	}

	pending := models.TaskStatusPending
	noError := ""
	if _, err := o.store.UpdateTask(sessionID, c.taskID, store.TaskPatch{Status: &pending, Error: &noError}); err != nil {
		o.logger.Log("[retry] %s: %v", c.taskID, err)
		return
	}
	o.record(sessionID, c.taskID, models.TaskStatusFailed, models.TaskStatusPending, "automatic retry")
}

// maybeReplan asks the replanner whether the completed task's result calls
// for follow-up tasks and appends them to the plan. Generation failures are
// logged and skipped; the loop continues with the current plan. Tasks that
// replanning itself produced are exempt, which bounds the recursion.
func (o *Orchestrator) maybeReplan(ctx context.Context, sessionID, taskID string, replanned map[string]bool) {
	if !o.replanning || replanned[taskID] {
		return
	}
	replanned[taskID] = true

	plan, err := o.store.GetPlan(sessionID)
	if err != nil {
		return
	}
	task := plan.Task(taskID)
	if task == nil || hasTag(task, replanTag) {
		return
	}

	drafts, err := o.replanner.Replan(ctx, task.Description, task.Result)
	if err != nil {
		o.logger.Log("[replan] %s: %v", taskID, err)
		return
	}
	if len(drafts) == 0 {
		return
	}

	newTasks, err := planner.ResolveDrafts(drafts)
	if err != nil {
		o.logger.Log("[replan] %s: %v", taskID, err)
		return
	}
	for _, t := range newTasks {
		t.Tags = append(t.Tags, replanTag)
	}
	if _, err := o.store.AppendTasks(sessionID, newTasks); err != nil {
		o.logger.Log("[replan] %s: append: %v", taskID, err)
		return
	}
	o.logger.Log("[replan] %s: appended %d follow-up tasks", taskID, len(newTasks))
}

// summarize classifies the plan's terminal state.
func (o *Orchestrator) summarize(sessionID string) (*Outcome, error) {
	plan, err := o.store.GetPlan(sessionID)
	if err != nil {
		return nil, err
	}

	out := &Outcome{State: PlanCompleted, Counts: make(map[models.TaskStatus]int)}
	for _, t := range plan.Tasks {
		if t.Obsolete {
			continue
		}
		out.Counts[t.Status]++
		if t.Status == models.TaskStatusFailed || t.Status == models.TaskStatusBlocked {
			out.State = PlanStuck
		}
	}
	o.logger.Log("[executeAll] %s finished: %s", sessionID, out.State)
	return out, nil
}

// transition applies a status change and journals it. Used for resolver
// transitions where losing a race to a concurrent executor is benign.
func (o *Orchestrator) transition(sessionID, taskID string, from, to models.TaskStatus, note string) {
	if _, err := o.store.UpdateTask(sessionID, taskID, store.TaskPatch{Status: &to}); err != nil {
		o.logger.Log("[transition] %s %s->%s: %v", taskID, from, to, err)
		return
	}
	o.record(sessionID, taskID, from, to, note)
}

// record writes an audit entry. Journal failures are logged, never fatal.
func (o *Orchestrator) record(sessionID, taskID string, from, to models.TaskStatus, note string) {
	if o.journal == nil {
		return
	}
	if err := o.journal.Record(sessionID, taskID, from, to, note); err != nil {
		o.logger.Log("[journal] %s: %v", taskID, err)
	}
}

// activeCount counts tasks that can still make progress: pending, ready,
// or running, excluding tasks the current resolver pass marked blocked.
func activeCount(plan *models.Plan, res graph.Resolution) int {
	blocked := make(map[string]bool, len(res.Blocked))
	for _, id := range res.Blocked {
		blocked[id] = true
	}

	active := len(res.Unblocked)
	for _, t := range plan.Tasks {
		if t.Obsolete || blocked[t.ID] {
			continue
		}
		switch t.Status {
		case models.TaskStatusPending, models.TaskStatusReady, models.TaskStatusRunning:
			active++
		}
	}
	return active
}

// referenceContext collects the results of the task's completed
// reference-category dependencies, keyed by task id, for injection into
// the worker's input.
func referenceContext(plan *models.Plan, task *models.Task) map[string]string {
	var ctx map[string]string
	for _, depID := range task.DependsOn {
		dep := plan.Task(depID)
		if dep == nil || dep.Category != models.CategoryReference || dep.Status != models.TaskStatusCompleted {
			continue
		}
		if ctx == nil {
			ctx = make(map[string]string)
		}
		ctx[depID] = dep.Result
	}
	return ctx
}

func hasTag(t *models.Task, tag string) bool {
	for _, have := range t.Tags {
		if have == tag {
			return true
		}
	}
	return false
}
