package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/probeworks/apiprobe/internal/domain/vars"
)

const (
	// requestTimeout bounds each virtual-user request.
	requestTimeout = 15 * time.Second
	// drainTimeout bounds how long finishing virtual users may run after
	// the duration expires or a stop signal arrives.
	drainTimeout = 15 * time.Second

	defaultWaitMin = 0.05
	defaultWaitMax = 0.3

	statusInterval = 500 * time.Millisecond
)

// Worker runs the virtual-user fan-out inside the child process. Each
// virtual user iterates the API list with its own cookie jar, recording
// per-endpoint counters under a shared lock.
type Worker struct {
	cfg        WorkerConfig
	statusPath string
	resultPath string
	logger     *slog.Logger

	started time.Time

	mu     sync.Mutex
	stats  map[string]*endpointAccum
	order  []string
	active int
	wg     sync.WaitGroup
}

type endpointAccum struct {
	name     string
	method   string
	requests int64
	failures int64
	// times holds successful response times in ms; failures count but do
	// not contribute a sample.
	times []float64
}

// NewWorker loads the task config and prepares a Worker writing to the
// given status and result paths.
func NewWorker(configPath, statusPath, resultPath string, logger *slog.Logger) (*Worker, error) {
	var cfg WorkerConfig
	if err := readJSONFile(configPath, &cfg); err != nil {
		return nil, err
	}
	if cfg.Users <= 0 {
		cfg.Users = 1
	}
	if cfg.SpawnRate <= 0 {
		cfg.SpawnRate = 1
	}
	if cfg.WaitMin <= 0 && cfg.WaitMax <= 0 {
		cfg.WaitMin, cfg.WaitMax = defaultWaitMin, defaultWaitMax
	}
	if cfg.WaitMax < cfg.WaitMin {
		cfg.WaitMax = cfg.WaitMin
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		cfg:        cfg,
		statusPath: statusPath,
		resultPath: resultPath,
		logger:     logger,
		stats:      map[string]*endpointAccum{},
	}, nil
}

// Run ramps up the virtual users, refreshes the status file every half
// second until the duration expires or ctx is cancelled, then drains and
// writes the result file. Cancellation stops users between requests,
// never mid-request.
func (w *Worker) Run(ctx context.Context) error {
	w.started = time.Now()
	end := w.started.Add(time.Duration(w.cfg.Duration) * time.Second)
	w.writeStatus(StatusStarting)

	interval := time.Duration(float64(time.Second) / float64(w.cfg.SpawnRate))
	for i := 0; i < w.cfg.Users; i++ {
		if ctx.Err() != nil {
			break
		}
		w.wg.Add(1)
		go w.virtualUser(ctx, end)
		w.setActive(i + 1)
		w.writeStatus(StatusRamping)
		sleepCtx(ctx, interval)
	}

	w.writeStatus(StatusRunning)
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()
loop:
	for time.Now().Before(end) {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			w.writeStatus(StatusRunning)
		}
	}

	drained := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(drainTimeout):
		w.logger.Warn("virtual users still draining at shutdown")
	}

	if err := w.writeResults(); err != nil {
		return err
	}
	w.writeStatus(StatusCompleted)
	return nil
}

func (w *Worker) virtualUser(ctx context.Context, end time.Time) {
	defer w.wg.Done()
	defer w.decActive()

	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	client := &http.Client{Jar: jar, Timeout: requestTimeout}

	for time.Now().Before(end) && ctx.Err() == nil {
		for _, api := range w.cfg.APIs {
			if !time.Now().Before(end) || ctx.Err() != nil {
				break
			}
			w.step(client, api)
		}
		wait := w.cfg.WaitMin + rand.Float64()*(w.cfg.WaitMax-w.cfg.WaitMin)
		sleepCtx(ctx, time.Duration(wait*float64(time.Second)))
	}
}

func (w *Worker) step(client *http.Client, api APIPayload) {
	start := time.Now()
	status, err := w.issue(client, api)
	elapsedMs := float64(time.Since(start)) / float64(time.Millisecond)
	failed := err != nil || status >= 400
	w.record(api, elapsedMs, failed)
}

func (w *Worker) issue(client *http.Client, api APIPayload) (int, error) {
	method := strings.ToUpper(api.Method)
	targetURL := api.URL
	var body io.Reader
	contentType := ""

	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		bodyVal := api.Body
		if bodyVal == nil {
			bodyVal = map[string]any{}
		}
		if api.BodyType == "form" {
			contentType = "application/x-www-form-urlencoded"
			if m, ok := bodyVal.(map[string]any); ok {
				form := url.Values{}
				for k, v := range m {
					form.Set(k, vars.Stringify(v))
				}
				body = strings.NewReader(form.Encode())
			} else {
				body = strings.NewReader(vars.Stringify(bodyVal))
			}
		} else {
			raw, err := json.Marshal(bodyVal)
			if err != nil {
				return 0, err
			}
			contentType = "application/json"
			body = bytes.NewReader(raw)
		}
	default:
		u, err := url.Parse(api.URL)
		if err != nil {
			return 0, err
		}
		q := u.Query()
		for k, v := range api.Params {
			q.Set(k, vars.Stringify(v))
		}
		u.RawQuery = q.Encode()
		targetURL = u.String()
	}

	req, err := http.NewRequest(method, targetURL, body)
	if err != nil {
		return 0, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range api.Headers {
		req.Header.Set(k, vars.Stringify(v))
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func (w *Worker) record(api APIPayload, elapsedMs float64, failed bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	acc, ok := w.stats[api.Name]
	if !ok {
		acc = &endpointAccum{name: api.Name}
		w.stats[api.Name] = acc
		w.order = append(w.order, api.Name)
	}
	acc.method = strings.ToUpper(api.Method)
	acc.requests++
	if failed {
		acc.failures++
	} else {
		acc.times = append(acc.times, round2(elapsedMs))
	}
}

func (w *Worker) setActive(n int) {
	w.mu.Lock()
	w.active = n
	w.mu.Unlock()
}

func (w *Worker) decActive() {
	w.mu.Lock()
	if w.active > 0 {
		w.active--
	}
	w.mu.Unlock()
}

// writeStatus is best effort; a torn or failed write only delays the
// next refresh.
func (w *Worker) writeStatus(status string) {
	w.mu.Lock()
	var requests, failures int64
	for _, acc := range w.stats {
		requests += acc.requests
		failures += acc.failures
	}
	st := WorkerStatus{
		Status:        status,
		Elapsed:       round1(time.Since(w.started).Seconds()),
		ActiveUsers:   w.active,
		TotalRequests: requests,
		TotalFailures: failures,
	}
	w.mu.Unlock()

	if err := writeJSONFile(w.statusPath, st); err != nil {
		w.logger.Debug("status write failed", slog.Any("error", err))
	}
}

func (w *Worker) writeResults() error {
	elapsed := time.Since(w.started).Seconds()
	if elapsed < 0.001 {
		elapsed = 0.001
	}

	w.mu.Lock()
	rows := make([]EndpointStats, 0, len(w.order)+1)
	var allTimes []float64
	var totalRequests, totalFailures int64
	for _, name := range w.order {
		acc := w.stats[name]
		totalRequests += acc.requests
		totalFailures += acc.failures
		allTimes = append(allTimes, acc.times...)
		rows = append(rows, endpointRow(acc.name, acc.method, acc.requests, acc.failures, acc.times, elapsed))
	}
	w.mu.Unlock()

	rows = append(rows, endpointRow(AggregatedName, "", totalRequests, totalFailures, allTimes, elapsed))
	return writeJSONFile(w.resultPath, rows)
}

func endpointRow(name, method string, requests, failures int64, times []float64, elapsedSecs float64) EndpointStats {
	row := EndpointStats{
		Name:          name,
		Method:        method,
		NumRequests:   requests,
		NumFailures:   failures,
		ResponseTimes: map[string]float64{},
		TotalRPS:      round2(float64(requests) / elapsedSecs),
	}

	sorted := append([]float64(nil), times...)
	sort.Float64s(sorted)
	if len(sorted) > 0 {
		var sum float64
		for _, t := range sorted {
			sum += t
		}
		row.AvgResponseTime = round2(sum / float64(len(sorted)))
		row.MinResponseTime = round2(sorted[0])
		row.MaxResponseTime = round2(sorted[len(sorted)-1])
	}
	for _, p := range []int{50, 75, 90, 95, 99} {
		row.ResponseTimes[strconv.Itoa(p)] = percentile(sorted, p)
	}
	return row
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
