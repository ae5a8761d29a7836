// Package dashboard renders a live terminal view of a running benchmark.
package dashboard

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/torosent/mqbench/internal/metrics"
)

const historyLen = 100

// RunConfig holds run parameters for display.
type RunConfig struct {
	Backend     string        // backend kind
	Target      string        // queue name, address or URL
	Producers   int           // producer workers
	Consumers   int           // consumer workers
	MessageSize int           // bytes per message
	MaxInFlight int           // in-flight bound
	Duration    time.Duration // run length
	Rate        int           // messages per second (0 = unlimited)
	NonBlocking bool          // zero-timeout backend calls
	ConfigFile  string        // path to config file if used
}

// Dashboard renders a live terminal UI over the run counters.
type Dashboard struct {
	stats        *metrics.Stats
	recorder     *metrics.LatencyRecorder
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownFunc func()
	wg           sync.WaitGroup
	mu           sync.Mutex

	// Widgets
	grid         *ui.Grid
	rateSparkle  *widgets.SparklineGroup
	recvGauge    *widgets.Gauge
	summaryPara  *widgets.Paragraph
	countersPara *widgets.Paragraph
	blockList    *widgets.List

	rateHistory []float64
	peakRate    float64
	last        metrics.Snapshot
	lastUpdate  time.Time
	startTime   time.Time
	runConfig   RunConfig
}

// New creates a new Dashboard. shutdownFunc is called when the user presses
// q or Ctrl-C.
func New(stats *metrics.Stats, recorder *metrics.LatencyRecorder, cfg RunConfig, shutdownFunc func()) (*Dashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize termui: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()
	d := &Dashboard{
		stats:        stats,
		recorder:     recorder,
		ctx:          ctx,
		cancel:       cancel,
		shutdownFunc: shutdownFunc,
		rateHistory:  make([]float64, 0, historyLen),
		startTime:    now,
		lastUpdate:   now,
		runConfig:    cfg,
	}

	d.initWidgets()
	d.setupGrid()

	return d, nil
}

func (d *Dashboard) initWidgets() {
	sparkline := widgets.NewSparkline()
	sparkline.Title = "Received msg/s"
	sparkline.LineColor = ui.ColorGreen
	sparkline.Data = []float64{0}

	d.rateSparkle = widgets.NewSparklineGroup(sparkline)
	d.rateSparkle.Title = "Throughput"
	d.rateSparkle.BorderStyle.Fg = ui.ColorCyan

	d.recvGauge = widgets.NewGauge()
	d.recvGauge.Title = "Receive Rate (of peak)"
	d.recvGauge.Percent = 0
	d.recvGauge.BarColor = ui.ColorBlue
	d.recvGauge.BorderStyle.Fg = ui.ColorCyan
	d.recvGauge.LabelStyle = ui.NewStyle(ui.ColorWhite)

	d.summaryPara = widgets.NewParagraph()
	d.summaryPara.Title = "Run Summary"
	d.summaryPara.Text = "Initializing..."
	d.summaryPara.BorderStyle.Fg = ui.ColorCyan

	d.countersPara = widgets.NewParagraph()
	d.countersPara.Title = "Counters"
	d.countersPara.Text = "Waiting for data..."
	d.countersPara.BorderStyle.Fg = ui.ColorCyan

	d.blockList = widgets.NewList()
	d.blockList.Title = "Backpressure"
	d.blockList.Rows = []string{"No errors"}
	d.blockList.TextStyle = ui.NewStyle(ui.ColorYellow)
	d.blockList.BorderStyle.Fg = ui.ColorCyan
}

func (d *Dashboard) setupGrid() {
	termWidth, termHeight := ui.TerminalDimensions()

	d.grid = ui.NewGrid()
	d.grid.SetRect(0, 0, termWidth, termHeight)

	d.grid.Set(
		ui.NewRow(0.18,
			ui.NewCol(1.0, d.summaryPara),
		),
		ui.NewRow(0.18,
			ui.NewCol(1.0, d.recvGauge),
		),
		ui.NewRow(0.34,
			ui.NewCol(0.6, d.rateSparkle),
			ui.NewCol(0.4, d.countersPara),
		),
		ui.NewRow(0.30,
			ui.NewCol(1.0, d.blockList),
		),
	)
}

// Start begins the dashboard update loop.
func (d *Dashboard) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop stops the dashboard and restores the terminal.
func (d *Dashboard) Stop() {
	d.cancel()
	d.wg.Wait()
	ui.Close()
	// Give terminal time to restore
	time.Sleep(100 * time.Millisecond)
}

func (d *Dashboard) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	uiEvents := ui.PollEvents()

	d.render()

	for {
		select {
		case <-d.ctx.Done():
			for len(uiEvents) > 0 {
				<-uiEvents
			}
			return
		case e := <-uiEvents:
			select {
			case <-d.ctx.Done():
				return
			default:
			}

			switch e.ID {
			case "q", "<C-c>":
				if d.shutdownFunc != nil {
					d.shutdownFunc()
				}
				// Stop cancels the context once the run has drained.
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				ui.Clear()
				d.render()
			}
		case now := <-ticker.C:
			d.update(d.stats.Snapshot(), now)
			d.render()
		}
	}
}

// update refreshes all widget data from snap taken at now.
func (d *Dashboard) update(snap metrics.Snapshot, now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	window := now.Sub(d.lastUpdate).Seconds()
	rate := 0.0
	if window > 0 {
		rate = float64(snap.RecvMessages-d.last.RecvMessages) / window
	}
	d.last = snap
	d.lastUpdate = now

	d.rateHistory = append(d.rateHistory, rate)
	if len(d.rateHistory) > historyLen {
		d.rateHistory = d.rateHistory[1:]
	}
	d.rateSparkle.Sparklines[0].Data = d.rateHistory
	if rate > d.peakRate {
		d.peakRate = rate
	}
	d.rateSparkle.Title = fmt.Sprintf("Throughput | Current: %.0f msg/s | Peak: %.0f msg/s", rate, d.peakRate)

	percent := 0
	if d.peakRate > 0 {
		percent = min(int(rate/d.peakRate*100), 100)
	}
	d.recvGauge.Percent = percent
	d.recvGauge.Label = fmt.Sprintf("%.1f msg/s", rate)

	elapsed := now.Sub(d.startTime)
	d.summaryPara.Text = fmt.Sprintf(
		"Backend: %s (%s)\n%s\nElapsed: %s | Sent: %d | Received: %d",
		d.runConfig.Backend,
		d.runConfig.Target,
		d.formatRunParams(),
		elapsed.Round(time.Second),
		snap.SentMessages,
		snap.RecvMessages,
	)

	var seen uint64
	if d.recorder != nil {
		seen = d.recorder.Seen()
	}
	d.countersPara.Text = formatCounters(snap, seen)
	d.blockList.Rows = formatBackpressureRows(snap)
}

func (d *Dashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()

	ui.Render(d.grid)
}

func formatCounters(s metrics.Snapshot, latencySeen uint64) string {
	lines := []string{
		fmt.Sprintf("Sent:            %d", s.SentMessages),
		fmt.Sprintf("Received:        %d", s.RecvMessages),
		fmt.Sprintf("Sent MiB:        %.2f", float64(s.SentBytes)/(1024*1024)),
		fmt.Sprintf("Received MiB:    %.2f", float64(s.RecvBytes)/(1024*1024)),
		fmt.Sprintf("In flight (est): %d", inFlight(s)),
		fmt.Sprintf("Latency samples: %d", latencySeen),
	}
	return strings.Join(lines, "\n")
}

// inFlight estimates queued messages. Counters are read independently, so
// the difference can briefly go negative; it is clamped to zero.
func inFlight(s metrics.Snapshot) uint64 {
	if s.RecvMessages >= s.SentMessages {
		return 0
	}
	return s.SentMessages - s.RecvMessages
}

func formatBackpressureRows(s metrics.Snapshot) []string {
	rows := []string{
		fmt.Sprintf("Send would-block:  %d", s.SendWouldBlock),
		fmt.Sprintf("Recv would-block:  %d", s.RecvWouldBlock),
	}
	if s.SendErrors == 0 && s.RecvErrors == 0 {
		return append(rows, "[No errors](fg:green)")
	}
	return append(rows,
		fmt.Sprintf("[Send errors:       %d](fg:red)", s.SendErrors),
		fmt.Sprintf("[Recv errors:       %d](fg:red)", s.RecvErrors),
	)
}

// formatRunParams formats the run configuration for display.
func (d *Dashboard) formatRunParams() string {
	var parts []string
	cfg := d.runConfig

	if cfg.Producers > 0 || cfg.Consumers > 0 {
		parts = append(parts, fmt.Sprintf("Producers: %d | Consumers: %d", cfg.Producers, cfg.Consumers))
	}
	if cfg.MessageSize > 0 {
		parts = append(parts, fmt.Sprintf("Size: %dB", cfg.MessageSize))
	}
	if cfg.MaxInFlight > 0 {
		parts = append(parts, fmt.Sprintf("In-flight: %d", cfg.MaxInFlight))
	}
	if cfg.Rate > 0 {
		parts = append(parts, fmt.Sprintf("Rate: %d/s", cfg.Rate))
	} else {
		parts = append(parts, "Rate: unlimited")
	}
	if cfg.Duration > 0 {
		parts = append(parts, fmt.Sprintf("Duration: %s", cfg.Duration))
	}
	if cfg.NonBlocking {
		parts = append(parts, "Non-blocking")
	}
	if cfg.ConfigFile != "" {
		parts = append(parts, fmt.Sprintf("Config: %s", cfg.ConfigFile))
	}

	return strings.Join(parts, " | ")
}
