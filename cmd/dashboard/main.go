package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/afroash/corrosion-monitor/internal/client"
	"github.com/afroash/corrosion-monitor/internal/config"
	"github.com/afroash/corrosion-monitor/internal/history"
	"github.com/afroash/corrosion-monitor/internal/logging"
	"github.com/afroash/corrosion-monitor/internal/models"
	"github.com/afroash/corrosion-monitor/internal/refresh"
)

const clearScreen = "\033[H\033[2J"

func main() {
	configPath := flag.String("config", "configs/dashboard.yaml", "path to config file")
	deviceFlag := flag.Int("device", 0, "device to show (overrides config)")
	pageFlag := flag.Int("page", 1, "history page to open")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *deviceFlag != 0 {
		cfg.Dashboard.DeviceID = *deviceFlag
	}

	// stdout belongs to the screen
	logger, logCloser, err := logging.New(cfg.Logging, os.Stderr)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *pageFlag, os.Stdin, os.Stdout, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("Dashboard failed")
	}
}

// latestEvent is one refresh result, whichever source produced it
type latestEvent struct {
	DeviceID int
	Reading  *models.Reading
	Err      error
	At       time.Time
}

// latestSource keeps the latest reading of the selected device coming
type latestSource interface {
	SetDevice(deviceID int)
	Stop()
}

type pollSource struct {
	scheduler   *refresh.Scheduler
	unsubscribe func()
}

func newPollSource(ctx context.Context, fetcher refresh.Fetcher, interval time.Duration, events chan<- latestEvent, logger zerolog.Logger) *pollSource {
	scheduler := refresh.NewScheduler(fetcher, interval, logger)
	updates, unsubscribe := scheduler.Subscribe()
	go func() {
		for u := range updates {
			select {
			case events <- latestEvent{DeviceID: u.DeviceID, Reading: u.Reading, Err: u.Err, At: u.At}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return &pollSource{scheduler: scheduler, unsubscribe: unsubscribe}
}

func (p *pollSource) SetDevice(deviceID int) { p.scheduler.SetDevice(deviceID) }

func (p *pollSource) Stop() {
	p.scheduler.Stop()
	p.unsubscribe()
}

type streamSource struct {
	client *client.StreamClient
	cancel context.CancelFunc
	logger zerolog.Logger
}

func newStreamSource(ctx context.Context, cfg *config.Config, deviceID int, events chan<- latestEvent, logger zerolog.Logger) (*streamSource, error) {
	url, err := client.StreamURL(cfg.API.BaseURL)
	if err != nil {
		return nil, err
	}
	sc := client.NewStreamClient(client.StreamConfig{
		URL:                  url,
		ReconnectInterval:    cfg.API.ReconnectInterval,
		MaxReconnectInterval: cfg.API.MaxReconnectInterval,
		PongTimeout:          cfg.API.PongTimeout,
	}, deviceID, logger)

	ctx, cancel := context.WithCancel(ctx)
	go sc.Run(ctx)
	go func() {
		for {
			select {
			case ev := <-sc.Events():
				select {
				case events <- latestEvent{DeviceID: ev.DeviceID, Reading: ev.Reading, Err: ev.Err, At: ev.At}:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return &streamSource{client: sc, cancel: cancel, logger: logger}, nil
}

func (s *streamSource) SetDevice(deviceID int) {
	if err := s.client.SetDevice(deviceID); err != nil {
		s.logger.Warn().Err(err).Int("device_id", deviceID).Msg("Failed to retarget refresh channel")
	}
}

func (s *streamSource) Stop() {
	s.cancel()
	s.client.Close()
}

// dashboard ties the data sources to the screen
type dashboard struct {
	cfg    *config.Config
	api    *client.APIClient
	pager  *history.Paginator
	latest latestSource
	view   view
	out    io.Writer
	logger zerolog.Logger
}

func run(ctx context.Context, cfg *config.Config, startPage int, in io.Reader, out io.Writer, logger zerolog.Logger) error {
	api, err := client.NewAPIClient(client.APIConfig{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.RequestTimeout,
	}, logger)
	if err != nil {
		return err
	}

	metric, err := models.ParseMetric(cfg.Dashboard.ChartMetric)
	if err != nil {
		return err
	}

	d := &dashboard{
		cfg:    cfg,
		api:    api,
		pager:  history.NewPaginator(api, cfg.Dashboard.PageSize, logger),
		out:    out,
		logger: logger,
		view:   view{mode: cfg.Dashboard.RefreshMode, metric: metric},
	}

	d.loadDevices(ctx)
	deviceID := cfg.Dashboard.DeviceID
	if deviceID == 0 && len(d.view.devices) > 0 {
		deviceID = d.view.devices[0]
	}

	events := make(chan latestEvent, 1)
	if cfg.Dashboard.RefreshMode == config.RefreshModeStream {
		src, err := newStreamSource(ctx, cfg, deviceID, events, logger)
		if err != nil {
			return err
		}
		d.latest = src
	} else {
		d.latest = newPollSource(ctx, api, cfg.Dashboard.RefreshInterval, events, logger)
	}
	defer d.latest.Stop()

	if deviceID != 0 {
		d.selectDevice(ctx, deviceID)
	} else {
		logger.Warn().Msg("No devices reported by the query service")
	}
	if startPage > 1 && !d.pager.GoTo(ctx, startPage) {
		logger.Warn().Int("page", startPage).Msg("Requested page out of range")
	}
	d.syncHistory()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		d.redraw()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-events:
			d.applyLatest(ctx, ev)
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := d.handleCommand(ctx, line); quit {
				return nil
			}
		}
	}
}

func (d *dashboard) redraw() {
	fmt.Fprint(d.out, clearScreen)
	d.view.render(d.out)
}

func (d *dashboard) loadDevices(ctx context.Context) {
	list, err := d.api.ListDevices(ctx)
	if err != nil {
		d.logger.Warn().Err(err).Msg("Failed to list devices")
		return
	}
	d.view.devices = list.Devices
}

// selectDevice resets everything shown for the previous device
func (d *dashboard) selectDevice(ctx context.Context, deviceID int) {
	d.view.deviceID = deviceID
	d.view.latest = nil
	d.view.latestErr = nil
	d.view.latestLoading = true
	d.view.latestAt = time.Time{}

	d.latest.SetDevice(deviceID)
	d.pager.SetDevice(ctx, deviceID)
	d.syncHistory()
	d.loadRecent(ctx)
}

func (d *dashboard) applyLatest(ctx context.Context, ev latestEvent) {
	if ev.DeviceID != d.view.deviceID {
		return
	}
	d.view.latestLoading = false
	d.view.latestAt = ev.At
	if ev.Err != nil {
		d.view.latestErr = ev.Err
		return
	}
	d.view.latestErr = nil
	d.view.latest = ev.Reading
	d.loadRecent(ctx)
}

func (d *dashboard) loadRecent(ctx context.Context) {
	values, err := d.api.GetRecent(ctx, d.view.deviceID, d.view.metric)
	d.view.recent = values
	d.view.recentErr = err
}

func (d *dashboard) syncHistory() {
	d.view.history = d.pager.State()
	d.view.window = d.pager.Window()
}

// handleCommand applies one stdin line and reports whether to quit
func (d *dashboard) handleCommand(ctx context.Context, line string) bool {
	cmd, err := parseCommand(line)
	if err != nil {
		d.logger.Debug().Err(err).Str("input", line).Msg("Ignoring command")
		return false
	}

	switch cmd.kind {
	case cmdQuit:
		return true
	case cmdNext:
		d.pager.Next(ctx)
	case cmdPrev:
		d.pager.Prev(ctx)
	case cmdPage:
		d.pager.GoTo(ctx, cmd.arg)
	case cmdDevice:
		d.loadDevices(ctx)
		d.selectDevice(ctx, cmd.arg)
	case cmdMetric:
		d.view.metric = cmd.metric
		d.loadRecent(ctx)
	case cmdNone:
	}
	d.syncHistory()
	return false
}

type commandKind int

const (
	cmdNone commandKind = iota
	cmdQuit
	cmdNext
	cmdPrev
	cmdPage
	cmdDevice
	cmdMetric
)

type command struct {
	kind   commandKind
	arg    int
	metric models.Metric
}

func parseCommand(line string) (command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return command{kind: cmdNone}, nil
	}

	switch strings.ToLower(fields[0]) {
	case "q", "quit":
		return command{kind: cmdQuit}, nil
	case "n", "next":
		return command{kind: cmdNext}, nil
	case "p", "prev":
		return command{kind: cmdPrev}, nil
	case "d", "device":
		if len(fields) != 2 {
			return command{}, fmt.Errorf("usage: d <device id>")
		}
		id, err := strconv.Atoi(fields[1])
		if err != nil {
			return command{}, fmt.Errorf("invalid device id %q", fields[1])
		}
		return command{kind: cmdDevice, arg: id}, nil
	case "m", "metric":
		if len(fields) != 2 {
			return command{}, fmt.Errorf("usage: m <temperature|humidity|resistor>")
		}
		metric, err := models.ParseMetric(strings.ToLower(fields[1]))
		if err != nil {
			return command{}, err
		}
		return command{kind: cmdMetric, metric: metric}, nil
	}

	page, err := strconv.Atoi(fields[0])
	if err != nil {
		return command{}, fmt.Errorf("unknown command %q", fields[0])
	}
	return command{kind: cmdPage, arg: page}, nil
}
