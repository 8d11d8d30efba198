package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	apiPrefix          = "/api/v1"
	codeInsufficient   = "insufficient_stock"
	defaultPrice       = "10.00"
	defaultSeedStock   = int64(200)
	defaultOrderQty    = int64(1)
	defaultPayMethod   = "Card"
	defaultMaxBodySize = 1 << 20
)

type loadMode string

const (
	modeCreate       loadMode = "create"
	modeCreatePay    loadMode = "create-pay"
	modeCreateCancel loadMode = "create-cancel"
)

type config struct {
	baseURL     string
	total       int
	totalSet    bool
	duration    time.Duration
	concurrency int
	timeout     time.Duration
	mode        loadMode
	cancelRate  int
	price       string
	stock       int64
	quantity    int64
	method      string
	outputPath  string
}

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type methodReport struct {
	Calls     int64            `json:"calls"`
	Success   int64            `json:"success"`
	Failed    int64            `json:"failed"`
	ErrorRate float64          `json:"error_rate"`
	Codes     map[string]int64 `json:"codes"`
	LatencyMs latencySummary   `json:"latency_ms"`
}

// stockReport сверяет итоговый остаток товара с числом живых заказов.
type stockReport struct {
	ProductID  int64 `json:"product_id"`
	Initial    int64 `json:"initial"`
	Final      int64 `json:"final"`
	Expected   int64 `json:"expected"`
	Placed     int64 `json:"placed"`
	Cancelled  int64 `json:"cancelled"`
	Rejected   int64 `json:"rejected"`
	Consistent bool  `json:"consistent"`
}

type report struct {
	StartedAt         time.Time               `json:"started_at"`
	DurationSeconds   float64                 `json:"duration_seconds"`
	TotalScenarios    int64                   `json:"total_scenarios"`
	SuccessScenarios  int64                   `json:"success_scenarios"`
	FailedScenarios   int64                   `json:"failed_scenarios"`
	ErrorRate         float64                 `json:"error_rate"`
	RPS               float64                 `json:"rps"`
	ScenarioLatencyMs latencySummary          `json:"scenario_latency_ms"`
	Methods           map[string]methodReport `json:"methods"`
	Stock             *stockReport            `json:"stock,omitempty"`
}

type methodStats struct {
	calls     int64
	success   int64
	failed    int64
	codes     map[string]int64
	latencies []float64
}

type collector struct {
	mu      sync.Mutex
	methods map[string]*methodStats
}

func newCollector() *collector {
	return &collector{
		methods: make(map[string]*methodStats),
	}
}

func (c *collector) record(method string, latency time.Duration, code string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, exists := c.methods[method]
	if !exists {
		stats = &methodStats{
			codes: make(map[string]int64),
		}
		c.methods[method] = stats
	}

	stats.calls++
	if ok {
		stats.success++
	} else {
		stats.failed++
	}
	stats.codes[code]++
	stats.latencies = append(stats.latencies, float64(latency.Microseconds())/1000.0)
}

func (c *collector) snapshot(name string) (methodReport, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.methods[name]
	if !ok {
		return methodReport{}, false
	}
	return stats.report(), true
}

func (s *methodStats) report() methodReport {
	codesCopy := make(map[string]int64, len(s.codes))
	for code, count := range s.codes {
		codesCopy[code] = count
	}
	return methodReport{
		Calls:     s.calls,
		Success:   s.success,
		Failed:    s.failed,
		ErrorRate: ratio(s.failed, s.calls),
		Codes:     codesCopy,
		LatencyMs: buildLatencySummary(s.latencies),
	}
}

func (c *collector) buildReport(startedAt time.Time, duration time.Duration) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: duration.Seconds(),
		Methods:         make(map[string]methodReport, len(c.methods)),
	}

	if scenarioStats := c.methods["scenario"]; scenarioStats != nil {
		result.TotalScenarios = scenarioStats.calls
		result.SuccessScenarios = scenarioStats.success
		result.FailedScenarios = scenarioStats.failed
		result.ErrorRate = ratio(scenarioStats.failed, scenarioStats.calls)
		result.ScenarioLatencyMs = buildLatencySummary(scenarioStats.latencies)
	}
	if duration > 0 {
		result.RPS = float64(result.TotalScenarios) / duration.Seconds()
	}

	for name, stats := range c.methods {
		result.Methods[name] = stats.report()
	}
	return result
}

func parseConfig(args []string) (config, error) {
	var cfg config
	var modeValue string
	var timeoutValue string
	var durationValue string

	fs := flag.NewFlagSet("loadtest", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.baseURL, "addr", "http://localhost:8080", "base URL of the retail HTTP server")
	fs.IntVar(&cfg.total, "total", 400, "total scenarios to execute in count mode; in duration mode only used when explicitly set")
	fs.StringVar(&durationValue, "duration", "0s", "optional time-based run duration (e.g. 10m, 15m)")
	fs.IntVar(&cfg.concurrency, "concurrency", 40, "number of concurrent workers")
	fs.StringVar(&timeoutValue, "timeout", "5s", "per-request timeout")
	fs.StringVar(&modeValue, "mode", string(modeCreate), "load mode: create | create-pay | create-cancel")
	fs.IntVar(&cfg.cancelRate, "cancel-rate", 0, "cancel probability in percent for create-pay mode (0..100)")
	fs.StringVar(&cfg.price, "price", defaultPrice, "seeded product price")
	fs.Int64Var(&cfg.stock, "stock", defaultSeedStock, "seeded product stock; orders beyond it must be rejected")
	fs.Int64Var(&cfg.quantity, "qty", defaultOrderQty, "quantity per order")
	fs.StringVar(&cfg.method, "method", defaultPayMethod, "payment method for create-pay mode")
	fs.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	timeout, err := time.ParseDuration(strings.TrimSpace(timeoutValue))
	if err != nil {
		return cfg, fmt.Errorf("parse timeout: %w", err)
	}
	cfg.timeout = timeout

	duration, err := time.ParseDuration(strings.TrimSpace(durationValue))
	if err != nil {
		return cfg, fmt.Errorf("parse duration: %w", err)
	}
	cfg.duration = duration

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "total" {
			cfg.totalSet = true
		}
	})

	mode, err := parseMode(modeValue)
	if err != nil {
		return cfg, err
	}
	cfg.mode = mode
	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")

	switch {
	case cfg.baseURL == "":
		return cfg, errors.New("addr is required")
	case cfg.duration < 0:
		return cfg, errors.New("duration must be >= 0")
	case cfg.duration == 0 && cfg.total <= 0:
		return cfg, errors.New("total must be > 0 when duration is not set")
	case cfg.duration > 0 && cfg.totalSet && cfg.total <= 0:
		return cfg, errors.New("total must be > 0 when explicitly set with duration")
	case cfg.concurrency <= 0:
		return cfg, errors.New("concurrency must be > 0")
	case cfg.timeout <= 0:
		return cfg, errors.New("timeout must be > 0")
	case cfg.stock < 0:
		return cfg, errors.New("stock must be >= 0")
	case cfg.quantity <= 0:
		return cfg, errors.New("qty must be > 0")
	case cfg.cancelRate < 0 || cfg.cancelRate > 100:
		return cfg, errors.New("cancel-rate must be between 0 and 100")
	case strings.TrimSpace(cfg.price) == "":
		return cfg, errors.New("price is required")
	case strings.TrimSpace(cfg.method) == "":
		return cfg, errors.New("method is required")
	}

	return cfg, nil
}

func parseMode(value string) (loadMode, error) {
	switch loadMode(strings.TrimSpace(value)) {
	case modeCreate:
		return modeCreate, nil
	case modeCreatePay:
		return modeCreatePay, nil
	case modeCreateCancel:
		return modeCreateCancel, nil
	default:
		return "", fmt.Errorf("unsupported mode: %s", value)
	}
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := parseConfig(args)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "invalid config: %v\n", err)
		return 1
	}

	api := newAPIClient(cfg.baseURL, &http.Client{Timeout: cfg.timeout})
	startedAt := time.Now()
	runID := strconv.FormatInt(startedAt.UnixNano(), 36)

	seedCtx, cancel := context.WithTimeout(context.Background(), cfg.timeout)
	target, err := seed(seedCtx, api, cfg, runID)
	cancel()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "failed to seed catalog: %v\n", err)
		return 1
	}

	col := newCollector()
	led := &ledger{}
	jobs := make(chan int, cfg.concurrency*2)
	var wg sync.WaitGroup

	for workerID := 0; workerID < cfg.concurrency; workerID++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				_ = runScenario(api, cfg, target, id, col, led)
			}
		}()
	}

	dispatchJobs(jobs, cfg)
	wg.Wait()

	duration := time.Since(startedAt)
	result := col.buildReport(startedAt, duration)

	checkCtx, cancel := context.WithTimeout(context.Background(), cfg.timeout)
	stock, err := verifyStock(checkCtx, api, target, cfg, led)
	cancel()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "failed to verify stock: %v\n", err)
		return 1
	}
	result.Stock = &stock

	printReport(stdout, result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(stderr, "failed to write report: %v\n", err)
			return 1
		}
	}

	if result.FailedScenarios > 0 || !stock.Consistent {
		return 1
	}
	return 0
}

func dispatchJobs(jobs chan<- int, cfg config) {
	defer close(jobs)

	if cfg.duration <= 0 {
		for i := 0; i < cfg.total; i++ {
			jobs <- i
		}
		return
	}

	timer := time.NewTimer(cfg.duration)
	defer timer.Stop()

	for i := 0; ; i++ {
		if cfg.totalSet && i >= cfg.total {
			return
		}

		select {
		case <-timer.C:
			return
		case jobs <- i:
		}
	}
}

// seedTarget — товар и покупатель, на которых крутится нагрузка.
type seedTarget struct {
	productID  int64
	customerID int64
}

func seed(ctx context.Context, api *apiClient, cfg config, runID string) (seedTarget, error) {
	var product struct {
		ID int64 `json:"id"`
	}
	productReq := map[string]any{
		"name":     "Load " + runID,
		"sku":      "LOAD-" + strings.ToUpper(runID),
		"price":    cfg.price,
		"stock":    cfg.stock,
		"category": "loadtest",
	}
	if _, err := api.do(ctx, http.MethodPost, "/products", productReq, &product); err != nil {
		return seedTarget{}, fmt.Errorf("create product: %w", err)
	}

	var customer struct {
		ID int64 `json:"id"`
	}
	customerReq := map[string]any{
		"name":  "Load " + runID,
		"email": "load-" + runID + "@example.com",
		"phone": "+100000" + runID,
	}
	if _, err := api.do(ctx, http.MethodPost, "/customers", customerReq, &customer); err != nil {
		return seedTarget{}, fmt.Errorf("create customer: %w", err)
	}

	return seedTarget{productID: product.ID, customerID: customer.ID}, nil
}

// ledger считает заказы, которые держат остаток.
type ledger struct {
	placed    atomic.Int64
	cancelled atomic.Int64
	rejected  atomic.Int64
}

func runScenario(api *apiClient, cfg config, target seedTarget, index int, col *collector, led *ledger) error {
	scenarioStart := time.Now()
	scenarioCode := "ok"
	scenarioOK := true
	defer func() {
		col.record("scenario", time.Since(scenarioStart), scenarioCode, scenarioOK)
	}()

	orderID, err := callCreateOrder(api, cfg, target, col)
	if err != nil {
		if isInsufficientStock(err) {
			// Отказ при исчерпанном остатке штатный, это не сбой.
			led.rejected.Add(1)
			scenarioCode = codeInsufficient
			return nil
		}
		scenarioCode, scenarioOK = errorCode(err), false
		return err
	}
	led.placed.Add(1)

	switch {
	case cfg.mode == modeCreate:
		return nil
	case cfg.mode == modeCreateCancel || shouldCancelScenario(index, cfg.cancelRate):
		err = callOrderAction(api, cfg.timeout, "CancelOrder", orderID, "cancel", nil, col)
		if err == nil {
			led.cancelled.Add(1)
		}
	default:
		err = callOrderAction(api, cfg.timeout, "PayOrder", orderID, "pay", map[string]string{"method": cfg.method}, col)
	}
	if err != nil {
		scenarioCode, scenarioOK = errorCode(err), false
		return err
	}
	return nil
}

func callCreateOrder(api *apiClient, cfg config, target seedTarget, col *collector) (int64, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.timeout)
	defer cancel()

	req := map[string]any{
		"customer_id": target.customerID,
		"items": []map[string]int64{
			{"product_id": target.productID, "quantity": cfg.quantity},
		},
	}
	var resp struct {
		ID int64 `json:"id"`
	}
	status, err := api.do(ctx, http.MethodPost, "/orders", req, &resp)
	col.record("CreateOrder", time.Since(start), strconv.Itoa(status), err == nil || isInsufficientStock(err))
	if err != nil {
		return 0, err
	}
	if resp.ID == 0 {
		return 0, errors.New("create response returned empty order id")
	}
	return resp.ID, nil
}

func callOrderAction(api *apiClient, timeout time.Duration, method string, orderID int64, action string, body any, col *collector) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	path := "/orders/" + strconv.FormatInt(orderID, 10) + "/" + action
	status, err := api.do(ctx, http.MethodPost, path, body, nil)
	col.record(method, time.Since(start), strconv.Itoa(status), err == nil)
	return err
}

// verifyStock проверяет, что остаток ровно на величину живых заказов меньше исходного.
func verifyStock(ctx context.Context, api *apiClient, target seedTarget, cfg config, led *ledger) (stockReport, error) {
	var product struct {
		Stock int64 `json:"stock"`
	}
	if _, err := api.do(ctx, http.MethodGet, "/products/"+strconv.FormatInt(target.productID, 10), nil, &product); err != nil {
		return stockReport{}, err
	}

	placed, cancelled := led.placed.Load(), led.cancelled.Load()
	expected := cfg.stock - (placed-cancelled)*cfg.quantity
	return stockReport{
		ProductID:  target.productID,
		Initial:    cfg.stock,
		Final:      product.Stock,
		Expected:   expected,
		Placed:     placed,
		Cancelled:  cancelled,
		Rejected:   led.rejected.Load(),
		Consistent: product.Stock >= 0 && product.Stock == expected,
	}, nil
}

func shouldCancelScenario(index, cancelRate int) bool {
	if cancelRate <= 0 {
		return false
	}
	if cancelRate >= 100 {
		return true
	}
	return index%100 < cancelRate
}

// apiError — ответ сервера с кодом ошибки из тела.
type apiError struct {
	Status  int
	Code    string
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("http %d %s: %s", e.Status, e.Code, e.Message)
}

func isInsufficientStock(err error) bool {
	var apiErr *apiError
	return errors.As(err, &apiErr) && apiErr.Code == codeInsufficient
}

func errorCode(err error) string {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "transport_error"
}

type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string, client *http.Client) *apiClient {
	return &apiClient{baseURL: strings.TrimRight(baseURL, "/"), http: client}
}

// do отправляет JSON-запрос к /api/v1 и возвращает HTTP-статус (0 при сетевой ошибке).
func (c *apiClient) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, defaultMaxBodySize))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var payload struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.Unmarshal(raw, &payload)
		return resp.StatusCode, &apiError{Status: resp.StatusCode, Code: payload.Error.Code, Message: payload.Error.Message}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func writeJSONReport(path string, result report) error {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == string(filepath.Separator) {
		return errors.New("output path must point to a file")
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output path must be inside current directory: %s", path)
	}

	// #nosec G304 -- path is an explicit CLI output parameter for local load-test reports.
	file, err := os.Create(cleanPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func printReport(w io.Writer, result report, cfg config) {
	_, _ = fmt.Fprintln(w, "Load test summary")
	_, _ = fmt.Fprintf(w, "mode=%s run=%s total=%d success=%d failed=%d error_rate=%.4f\n",
		cfg.mode,
		runTarget(cfg),
		result.TotalScenarios,
		result.SuccessScenarios,
		result.FailedScenarios,
		result.ErrorRate,
	)
	_, _ = fmt.Fprintf(w, "duration=%.2fs rps=%.2f\n", result.DurationSeconds, result.RPS)
	_, _ = fmt.Fprintf(w, "scenario latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		result.ScenarioLatencyMs.Min,
		result.ScenarioLatencyMs.Avg,
		result.ScenarioLatencyMs.P50,
		result.ScenarioLatencyMs.P95,
		result.ScenarioLatencyMs.P99,
		result.ScenarioLatencyMs.Max,
	)

	methodNames := make([]string, 0, len(result.Methods))
	for name := range result.Methods {
		if name == "scenario" {
			continue
		}
		methodNames = append(methodNames, name)
	}
	sort.Strings(methodNames)
	for _, name := range methodNames {
		stats := result.Methods[name]
		_, _ = fmt.Fprintf(w,
			"%s: calls=%d success=%d failed=%d error_rate=%.4f p95=%.2fms\n",
			name,
			stats.Calls,
			stats.Success,
			stats.Failed,
			stats.ErrorRate,
			stats.LatencyMs.P95,
		)
	}

	if s := result.Stock; s != nil {
		_, _ = fmt.Fprintf(w, "stock: initial=%d final=%d expected=%d placed=%d cancelled=%d rejected=%d consistent=%t\n",
			s.Initial, s.Final, s.Expected, s.Placed, s.Cancelled, s.Rejected, s.Consistent)
	}
}

func runTarget(cfg config) string {
	if cfg.duration <= 0 {
		return fmt.Sprintf("count:%d", cfg.total)
	}
	if cfg.totalSet {
		return fmt.Sprintf("duration:%s,max-total:%d", cfg.duration, cfg.total)
	}
	return fmt.Sprintf("duration:%s", cfg.duration)
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, value := range sorted {
		sum += value
	}

	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}

	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}

func ratio(failed, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(failed) / float64(total)
}
