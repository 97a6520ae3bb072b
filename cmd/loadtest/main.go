package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	grpcsvc "github.com/vladislavdragonenkov/eshop/internal/service/grpc"
)

type loadMode string

const (
	modeReserve       loadMode = "reserve"
	modeReservePlace  loadMode = "reserve-place"
	modeReserveCancel loadMode = "reserve-cancel"
)

// storeClient — вызовы StoreService, которые использует нагрузочный прогон.
type storeClient interface {
	CreateGood(ctx context.Context, req grpcsvc.GoodInput, opts ...grpc.CallOption) (grpcsvc.Good, error)
	GetGood(ctx context.Context, req grpcsvc.GoodRef, opts ...grpc.CallOption) (grpcsvc.Good, error)
	AddGood(ctx context.Context, req grpcsvc.GoodSelection, opts ...grpc.CallOption) (grpcsvc.Cart, error)
	PlaceOrder(ctx context.Context, opts ...grpc.CallOption) (grpcsvc.Order, error)
	CancelOrder(ctx context.Context, req grpcsvc.OrderRef, opts ...grpc.CallOption) (grpcsvc.CancelResult, error)
}

type config struct {
	addr        string
	total       int
	concurrency int
	connections int
	timeout     time.Duration
	mode        loadMode
	admin       string
	buyers      []string
	title       string
	price       string
	stock       int64
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
	Codes     map[string]int64 `json:"codes"`
	LatencyMs latencySummary   `json:"latency_ms"`
}

// stockReport сравнивает итоговый остаток товара с числом удачных резервов.
type stockReport struct {
	GoodID    int64 `json:"good_id"`
	Initial   int64 `json:"initial"`
	Reserved  int64 `json:"reserved"`
	Restored  int64 `json:"restored"`
	Remaining int64 `json:"remaining"`
	Oversold  bool  `json:"oversold"`
	Mismatch  bool  `json:"mismatch"`
}

type report struct {
	StartedAt       time.Time               `json:"started_at"`
	DurationSeconds float64                 `json:"duration_seconds"`
	Scenarios       int64                   `json:"scenarios"`
	Failed          int64                   `json:"failed"`
	RPS             float64                 `json:"rps"`
	Stock           stockReport             `json:"stock"`
	Methods         map[string]methodReport `json:"methods"`
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
	return &collector{methods: make(map[string]*methodStats)}
}

// record учитывает вызов. Отказы бизнес-правил (FailedPrecondition)
// считаются ожидаемым исходом, а не ошибкой.
func (c *collector) record(method string, latency time.Duration, code codes.Code) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.methods[method]
	if !ok {
		stats = &methodStats{codes: make(map[string]int64)}
		c.methods[method] = stats
	}

	stats.calls++
	switch code {
	case codes.OK:
		stats.success++
	case codes.FailedPrecondition:
	default:
		stats.failed++
	}
	stats.codes[code.String()]++
	stats.latencies = append(stats.latencies, float64(latency.Microseconds())/1000.0)
}

func (c *collector) methodReports() map[string]methodReport {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]methodReport, len(c.methods))
	for name, stats := range c.methods {
		codesCopy := make(map[string]int64, len(stats.codes))
		for code, count := range stats.codes {
			codesCopy[code] = count
		}
		out[name] = methodReport{
			Calls:     stats.calls,
			Success:   stats.success,
			Failed:    stats.failed,
			Codes:     codesCopy,
			LatencyMs: buildLatencySummary(stats.latencies),
		}
	}
	return out
}

func parseConfig(args []string) (config, error) {
	var (
		cfg          config
		modeValue    string
		timeoutValue string
		buyersValue  string
	)

	fs := flag.NewFlagSet("loadtest", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.addr, "addr", "localhost:50051", "gRPC target address")
	fs.IntVar(&cfg.total, "total", 400, "number of scenarios")
	fs.IntVar(&cfg.concurrency, "concurrency", 40, "number of concurrent workers")
	fs.IntVar(&cfg.connections, "connections", 8, "number of gRPC client connections")
	fs.StringVar(&timeoutValue, "timeout", "5s", "per-RPC timeout")
	fs.StringVar(&modeValue, "mode", string(modeReserve), "load mode: reserve | reserve-place | reserve-cancel")
	fs.StringVar(&cfg.admin, "admin", "admin@eshop.local", "admin login used to create the contested good")
	fs.StringVar(&buyersValue, "buyers", "buyer1@eshop.local,buyer2@eshop.local", "comma separated buyer logins")
	fs.StringVar(&cfg.title, "title", "", "title of the contested good (default: generated)")
	fs.StringVar(&cfg.price, "price", "9.99", "price of the contested good")
	fs.Int64Var(&cfg.stock, "stock", 100, "initial stock of the contested good")
	fs.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	timeout, err := time.ParseDuration(strings.TrimSpace(timeoutValue))
	if err != nil {
		return cfg, fmt.Errorf("parse timeout: %w", err)
	}
	cfg.timeout = timeout

	mode, err := parseMode(modeValue)
	if err != nil {
		return cfg, err
	}
	cfg.mode = mode

	for _, buyer := range strings.Split(buyersValue, ",") {
		if buyer = strings.TrimSpace(buyer); buyer != "" {
			cfg.buyers = append(cfg.buyers, buyer)
		}
	}

	switch {
	case cfg.total <= 0:
		return cfg, errors.New("total must be > 0")
	case cfg.concurrency <= 0:
		return cfg, errors.New("concurrency must be > 0")
	case cfg.connections <= 0:
		return cfg, errors.New("connections must be > 0")
	case cfg.timeout <= 0:
		return cfg, errors.New("timeout must be > 0")
	case cfg.stock < 0:
		return cfg, errors.New("stock must be >= 0")
	case strings.TrimSpace(cfg.admin) == "":
		return cfg, errors.New("admin is required")
	case len(cfg.buyers) == 0:
		return cfg, errors.New("at least one buyer is required")
	}

	return cfg, nil
}

func parseMode(value string) (loadMode, error) {
	switch loadMode(strings.TrimSpace(value)) {
	case modeReserve:
		return modeReserve, nil
	case modeReservePlace:
		return modeReservePlace, nil
	case modeReserveCancel:
		return modeReserveCancel, nil
	default:
		return "", fmt.Errorf("unsupported mode: %s", value)
	}
}

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	conns := make([]*grpc.ClientConn, 0, cfg.connections)
	clients := make([]storeClient, 0, cfg.connections)
	for i := 0; i < cfg.connections; i++ {
		conn, dialErr := grpc.NewClient(cfg.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if dialErr != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to create grpc client connection: %v\n", dialErr)
			os.Exit(1)
		}
		conns = append(conns, conn)
		clients = append(clients, grpcsvc.NewClient(conn))
	}
	defer func() {
		for _, conn := range conns {
			_ = conn.Close()
		}
	}()

	result, err := runLoad(clients, cfg)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "load test failed: %v\n", err)
		os.Exit(1)
	}

	printReport(os.Stdout, result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}

	if result.Failed > 0 || result.Stock.Oversold || result.Stock.Mismatch {
		os.Exit(1)
	}
}

// runLoad создаёт товар с остатком cfg.stock и конкурентно резервирует его
// от имени покупателей, затем сверяет остаток с числом удачных резервов.
func runLoad(clients []storeClient, cfg config) (report, error) {
	if len(clients) == 0 {
		return report{}, errors.New("no clients")
	}

	startedAt := time.Now()
	title := cfg.title
	if title == "" {
		title = fmt.Sprintf("load-%d", startedAt.UnixNano())
	}

	setupCtx, cancel := context.WithTimeout(grpcsvc.WithLogin(context.Background(), cfg.admin), cfg.timeout)
	good, err := clients[0].CreateGood(setupCtx, grpcsvc.GoodInput{Title: title, Price: cfg.price, Quantity: cfg.stock})
	cancel()
	if err != nil {
		return report{}, fmt.Errorf("create contested good: %w", err)
	}

	col := newCollector()
	var (
		reserved atomic.Int64
		restored atomic.Int64
		failed   atomic.Int64
		wg       sync.WaitGroup
	)
	jobs := make(chan int, cfg.concurrency*2)

	for workerID := 0; workerID < cfg.concurrency; workerID++ {
		wg.Add(1)
		go func(client storeClient) {
			defer wg.Done()
			for index := range jobs {
				outcome, err := runScenario(client, cfg, index, good, col)
				if err != nil {
					failed.Add(1)
				}
				reserved.Add(outcome.reserved)
				restored.Add(outcome.restored)
			}
		}(clients[workerID%len(clients)])
	}

	for i := 0; i < cfg.total; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	duration := time.Since(startedAt)

	checkCtx, cancel := context.WithTimeout(grpcsvc.WithLogin(context.Background(), cfg.admin), cfg.timeout)
	final, err := clients[0].GetGood(checkCtx, grpcsvc.GoodRef{ID: good.ID})
	cancel()
	if err != nil {
		return report{}, fmt.Errorf("read contested good: %w", err)
	}

	stock := stockReport{
		GoodID:    good.ID,
		Initial:   cfg.stock,
		Reserved:  reserved.Load(),
		Restored:  restored.Load(),
		Remaining: final.Quantity,
	}
	stock.Oversold = stock.Remaining < 0 || stock.Reserved-stock.Restored > stock.Initial
	stock.Mismatch = stock.Remaining != stock.Initial-stock.Reserved+stock.Restored

	result := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: duration.Seconds(),
		Scenarios:       int64(cfg.total),
		Failed:          failed.Load(),
		Stock:           stock,
		Methods:         col.methodReports(),
	}
	if duration > 0 {
		result.RPS = float64(cfg.total) / duration.Seconds()
	}
	return result, nil
}

type scenarioOutcome struct {
	reserved int64
	restored int64
}

func runScenario(client storeClient, cfg config, index int, good grpcsvc.Good, col *collector) (scenarioOutcome, error) {
	var outcome scenarioOutcome
	buyer := cfg.buyers[index%len(cfg.buyers)]

	err := call(col, "AddGood", cfg.timeout, buyer, func(ctx context.Context) error {
		_, err := client.AddGood(ctx, grpcsvc.GoodSelection{Title: good.Title, Price: good.Price})
		return err
	})
	if err != nil {
		if status.Code(err) == codes.FailedPrecondition {
			return outcome, nil
		}
		return outcome, err
	}
	outcome.reserved = 1

	switch cfg.mode {
	case modeReservePlace:
		err = call(col, "PlaceOrder", cfg.timeout, buyer, func(ctx context.Context) error {
			_, err := client.PlaceOrder(ctx)
			return err
		})
	case modeReserveCancel:
		var result grpcsvc.CancelResult
		err = call(col, "CancelOrder", cfg.timeout, buyer, func(ctx context.Context) error {
			var err error
			result, err = client.CancelOrder(ctx, grpcsvc.OrderRef{})
			return err
		})
		for _, line := range result.Restored {
			if line.GoodID == good.ID {
				outcome.restored += line.Quantity
			}
		}
	}
	if err != nil && status.Code(err) != codes.FailedPrecondition {
		return outcome, err
	}
	return outcome, nil
}

// call выполняет RPC от имени login и записывает его длительность и код.
func call(col *collector, method string, timeout time.Duration, login string, fn func(ctx context.Context) error) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(grpcsvc.WithLogin(context.Background(), login), timeout)
	defer cancel()

	err := fn(ctx)
	col.record(method, time.Since(start), status.Code(err))
	return err
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
	_, _ = fmt.Fprintf(w, "mode=%s scenarios=%d failed=%d duration=%.2fs rps=%.2f\n",
		cfg.mode, result.Scenarios, result.Failed, result.DurationSeconds, result.RPS)
	_, _ = fmt.Fprintf(w, "stock: initial=%d reserved=%d restored=%d remaining=%d oversold=%t mismatch=%t\n",
		result.Stock.Initial, result.Stock.Reserved, result.Stock.Restored, result.Stock.Remaining,
		result.Stock.Oversold, result.Stock.Mismatch)

	names := make([]string, 0, len(result.Methods))
	for name := range result.Methods {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		stats := result.Methods[name]
		_, _ = fmt.Fprintf(w, "%s: calls=%d success=%d failed=%d p95=%.2fms\n",
			name, stats.Calls, stats.Success, stats.Failed, stats.LatencyMs.P95)
	}
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
