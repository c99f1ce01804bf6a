// Package health probes the components the assistant depends on.
package health

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/flemzord/policychat/internal/retrieval"
	"github.com/flemzord/policychat/internal/store"
	"github.com/flemzord/policychat/internal/telemetry"
)

// Status is the state of a component or of the whole service.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

// Probe reports an error when a component is unhealthy.
type Probe func(ctx context.Context) error

// ComponentStatus is the result of one probe.
type ComponentStatus struct {
	Name     string        `json:"name"`
	Status   Status        `json:"status"`
	Critical bool          `json:"critical"`
	Error    string        `json:"error,omitempty"`
	Latency  time.Duration `json:"latency_ns"`
}

// Report is the result of a full check.
type Report struct {
	Status     Status            `json:"status"`
	Components []ComponentStatus `json:"components"`
	CheckedAt  time.Time         `json:"checked_at"`
}

type component struct {
	name     string
	critical bool
	probe    Probe
}

const defaultTimeout = 5 * time.Second

// Checker runs registered probes concurrently. A failing critical probe
// marks the service down; any other failure marks it degraded.
type Checker struct {
	mu         sync.RWMutex
	components []component
	timeout    time.Duration
	metrics    *telemetry.Metrics

	last Report
}

// NewChecker creates a Checker. Each probe gets timeout, default 5s.
func NewChecker(timeout time.Duration, metrics *telemetry.Metrics) *Checker {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Checker{timeout: timeout, metrics: metrics}
}

// Add registers a probe.
func (c *Checker) Add(name string, critical bool, p Probe) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.components = append(c.components, component{name: name, critical: critical, probe: p})
}

// Check runs every probe and returns the aggregate report.
func (c *Checker) Check(ctx context.Context) Report {
	c.mu.RLock()
	components := append([]component(nil), c.components...)
	c.mu.RUnlock()

	results := make([]ComponentStatus, len(components))
	var wg sync.WaitGroup
	for i, comp := range components {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = c.run(ctx, comp)
		}()
	}
	wg.Wait()

	report := Report{Status: StatusOK, Components: results, CheckedAt: time.Now().UTC()}
	for _, r := range results {
		c.metrics.SetComponentUp(r.Name, r.Status == StatusOK)
		if r.Status == StatusOK {
			continue
		}
		if r.Critical {
			report.Status = StatusDown
		} else if report.Status == StatusOK {
			report.Status = StatusDegraded
		}
	}

	c.mu.Lock()
	c.last = report
	c.mu.Unlock()
	return report
}

// Last returns the most recent report, or a zero Report before the first
// check.
func (c *Checker) Last() Report {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

func (c *Checker) run(ctx context.Context, comp component) ComponentStatus {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := comp.probe(ctx)
	res := ComponentStatus{
		Name:     comp.name,
		Status:   StatusOK,
		Critical: comp.critical,
		Latency:  time.Since(start),
	}
	if err != nil {
		res.Status = StatusDown
		res.Error = err.Error()
	}
	return res
}

// StoreProbe pings the session store.
func StoreProbe(s store.Store) Probe {
	return s.Ping
}

// RetrieverProbe checks the retriever. Indexers must hold at least one
// passage; other retrievers must answer a one-result search.
func RetrieverProbe(r retrieval.Retriever) Probe {
	return func(ctx context.Context) error {
		if idx, ok := r.(retrieval.Indexer); ok {
			n, err := idx.Count(ctx)
			if err != nil {
				return err
			}
			if n == 0 {
				return errEmptyIndex
			}
			return nil
		}
		_, err := r.Search(ctx, "privacy", 1)
		return err
	}
}

var errEmptyIndex = errors.New("health: retriever index is empty")
