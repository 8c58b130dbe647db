package allocator

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
	allocerrors "github.com/kestrelframe/framealloc/internal/errors"
	"github.com/kestrelframe/framealloc/internal/flog"
)

// Diagnostics is the façade's observability surface: it owns the process
// logger, exposes the behavior filter, and (in strict mode) converts any
// Error-severity finding into a panic carrying the diagnostic code and
// message, mirroring the source material's abort-the-process requirement
// translated onto Go's panic/recover idiom.
type Diagnostics struct {
	facade  *Facade
	logger  *flog.Logger
	strict  bool
	watcher *fsnotify.Watcher
}

func newDiagnostics(f *Facade, cfg *Config) *Diagnostics {
	d := &Diagnostics{
		facade: f,
		logger: flog.New(cfg.LogLevel, "framealloc"),
		strict: cfg.StrictMode,
	}

	if f.budgets != nil {
		f.budgets.SetEventCallback(d.handleBudgetEvent)
	}

	f.streaming.SetEvictionCallback(d.logEviction)
	f.deferredController.SetEventCallback(d.handleDeferredEvent)
	f.promotion.SetFailureCallback(d.handlePromotionFailure)

	if cfg.BehaviorThresholdsPath != "" {
		d.watchThresholds(cfg.BehaviorThresholdsPath)
	}

	return d
}

// watchThresholds starts an fsnotify watch on path, reloading the behavior
// filter's thresholds from its JSON contents every time it changes. A
// watcher that fails to start (missing directory, platform limit reached)
// only logs a warning: live-reload is a convenience, not a requirement for
// the facade to function.
func (d *Diagnostics) watchThresholds(path string) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		d.logger.Warnf("behavior-threshold watcher unavailable: %v", err)
		return
	}

	if err := watcher.Add(path); err != nil {
		d.logger.Warnf("cannot watch behavior-threshold file %q: %v", path, err)
		watcher.Close()

		return
	}

	d.watcher = watcher
	d.reloadThresholds(path)

	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}

				if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					d.reloadThresholds(path)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}

				d.logger.Warnf("behavior-threshold watcher error: %v", err)
			}
		}
	}()
}

func (d *Diagnostics) reloadThresholds(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		d.logger.Warnf("cannot read behavior-threshold file %q: %v", path, err)
		return
	}

	var thresholds BehaviorThresholds
	if err := json.Unmarshal(data, &thresholds); err != nil {
		d.logger.Warnf("cannot parse behavior-threshold file %q: %v", path, err)
		return
	}

	d.facade.behavior.SetThresholds(thresholds)
	d.logger.Infof("reloaded behavior thresholds from %q", path)
}

// Close stops the behavior-threshold file watcher, if one was started.
// Safe to call when no watcher was configured.
func (d *Diagnostics) Close() error {
	if d.watcher == nil {
		return nil
	}

	return d.watcher.Close()
}

// Logger returns the façade's internal logger, for callers wiring in
// their own diagnostic output path alongside the built-in ones.
func (d *Diagnostics) Logger() *flog.Logger { return d.logger }

// IsStrict reports whether Error-severity diagnostics panic instead of
// merely logging.
func (d *Diagnostics) IsStrict() bool { return d.strict }

// Analyze runs the behavior filter's analysis, logging every finding and,
// in strict mode, panicking on the first Error-severity one.
func (d *Diagnostics) Analyze() BehaviorReport {
	report := d.facade.behavior.Analyze()

	for _, issue := range report.Issues {
		d.logBehaviorIssue(issue)
	}

	return report
}

func (d *Diagnostics) logBehaviorIssue(issue BehaviorIssue) {
	switch issue.Severity {
	case SeverityError:
		d.logger.Errorf("%s [tag=%s] %s", issue.Code, issue.Tag, issue.Message)
		d.escalate(issue.Code, issue.Message)
	case SeverityWarning:
		d.logger.Warnf("%s [tag=%s] %s", issue.Code, issue.Tag, issue.Message)
	case SeverityInfo:
		d.logger.Infof("%s [tag=%s] %s", issue.Code, issue.Tag, issue.Message)
	}
}

func (d *Diagnostics) handleBudgetEvent(ev BudgetEvent) {
	switch ev.Kind {
	case EventHardLimitExceeded, EventGlobalLimitExceeded:
		d.logger.Errorf("budget exceeded: tag=%q current=%d limit=%d", ev.Tag, ev.Current, ev.Limit)
		d.escalate(string(allocerrors.KindBudgetExceeded),
			fmt.Sprintf("tag %q exceeded its budget (current=%d limit=%d)", ev.Tag, ev.Current, ev.Limit))
	case EventSoftLimitExceeded:
		d.logger.Warnf("budget soft limit crossed: tag=%q current=%d limit=%d", ev.Tag, ev.Current, ev.Limit)
	case EventNewPeak:
		d.logger.Debugf("new peak usage for tag=%q: %d bytes", ev.Tag, ev.Current)
	}
}

func (d *Diagnostics) logEviction(id StreamID) {
	d.logger.Infof("streaming reservation %d evicted", id.Raw())
}

func (d *Diagnostics) handleDeferredEvent(ev DeferredEvent) {
	switch ev.Kind {
	case DeferredQueueFull:
		d.logger.Warnf("deferred-free queue reached capacity %d, overflow handled via %s", ev.Capacity, ev.OverflowPolicy)
	case DeferredQueueNearFull:
		d.logger.Warnf("deferred-free queue at %d/%d entries", ev.Depth, ev.Capacity)
	case DeferredBatchDrained:
		d.logger.Debugf("drained %d deferred frees", ev.Depth)
	}
}

func (d *Diagnostics) handlePromotionFailure(tag, reason string) {
	d.logger.Warnf("promotion failed for tag=%q: %s", tag, reason)
}

// escalate panics with code and message when strict mode is enabled;
// otherwise it is a no-op (the event has already been logged by the
// caller).
func (d *Diagnostics) escalate(code, message string) {
	if !d.strict {
		return
	}

	panic(fmt.Sprintf("framealloc: strict mode escalation [%s] %s", code, message))
}

// Diagnostics returns the façade's diagnostics manager.
func (f *Facade) Diagnostics() *Diagnostics { return f.diagnostics }
