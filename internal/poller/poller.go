package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mikey/mail-triage/internal/core"
	"github.com/mikey/mail-triage/internal/prefilter"
	"go.uber.org/zap"
)

// Poller pulls batches from a mail source at a fixed interval and feeds
// them into the triage service. On connect it performs a one-time backfill
// of the most recent messages before steady-state polling starts. Fetch
// and per-message errors are logged and the loop continues at the next
// tick; there is no backoff.
type Poller struct {
	source   core.MailSource
	service  *core.TriageService
	filter   *prefilter.Filter
	interval time.Duration
	batch    int
	query    string
	logger   *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewPoller creates a poll loop over the given source.
func NewPoller(
	source core.MailSource,
	service *core.TriageService,
	filter *prefilter.Filter,
	interval time.Duration,
	batch int,
	query string,
	logger *zap.Logger,
) *Poller {
	if interval <= 0 {
		interval = time.Minute
	}
	if batch <= 0 {
		batch = 10
	}
	return &Poller{
		source:   source,
		service:  service,
		filter:   filter,
		interval: interval,
		batch:    batch,
		query:    query,
		logger:   logger,
	}
}

// Start connects the source, runs the backfill, and launches the poll
// loop. It returns the number of messages backfilled. The loop runs until
// Stop is called or ctx is cancelled.
func (p *Poller) Start(ctx context.Context, credentials map[string]string) (int, error) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return 0, fmt.Errorf("poller already running")
	}
	p.running = true
	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.mu.Unlock()

	if err := p.source.Connect(ctx, credentials); err != nil {
		cancel()
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
		return 0, fmt.Errorf("failed to connect mail source: %w", err)
	}

	backfilled := p.pullBatch(ctx)
	p.logger.Info("Backfill complete",
		zap.Int("ingested", backfilled),
		zap.Int("batch_size", p.batch))

	go p.loop(loopCtx)

	return backfilled, nil
}

// loop is the steady-state polling cycle.
func (p *Poller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("Poll loop started", zap.Duration("interval", p.interval))

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Poll loop stopped")
			return
		case <-ticker.C:
			p.pullBatch(ctx)
		}
	}
}

// pullBatch fetches up to one batch and runs each message through the
// pre-filter and the triage service. Per-message failures never abort the
// batch. Returns the number of messages handed to ingestion.
func (p *Poller) pullBatch(ctx context.Context) int {
	messages, err := p.source.FetchMessages(ctx, p.batch, p.query)
	if err != nil {
		p.logger.Error("Fetch failed, retrying next cycle", zap.Error(err))
		return 0
	}

	ingested := 0
	for i := range messages {
		msg := messages[i]
		if p.filter != nil && !p.filter.ShouldProcess(msg.Sender, msg.Subject) {
			p.logger.Debug("Message filtered out",
				zap.String("external_id", msg.ExternalID),
				zap.String("sender", msg.Sender))
			continue
		}

		outcome, err := p.service.Receive(ctx, &msg)
		if err != nil {
			p.logger.Warn("Message rejected at ingestion",
				zap.String("external_id", msg.ExternalID),
				zap.Error(err))
			continue
		}
		if outcome.Status == core.TriageSkipped {
			p.logger.Debug("Message skipped",
				zap.String("external_id", msg.ExternalID),
				zap.String("reason", outcome.Reason))
			continue
		}
		ingested++
	}

	return ingested
}

// Stop cancels the poll loop and waits for the current cycle to finish.
func (p *Poller) Stop() {
	p.stopLocked()
}

func (p *Poller) stopLocked() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	p.cancel()
	if p.done != nil {
		<-p.done
	}
	p.running = false
}

// Running reports whether the poll loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}
