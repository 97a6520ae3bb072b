// Package health отдаёт состояние зависимостей магазина для /healthz и /readyz.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Status — состояние компонента или сервиса в целом.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

const defaultCheckTimeout = 2 * time.Second

// Check — результат одной проверки.
type Check struct {
	Name       string `json:"name"`
	Status     Status `json:"status"`
	Message    string `json:"message,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Response — тело ответа /healthz.
type Response struct {
	Status        Status           `json:"status"`
	Timestamp     time.Time        `json:"timestamp"`
	Checks        map[string]Check `json:"checks,omitempty"`
	Version       string           `json:"version,omitempty"`
	UptimeSeconds int64            `json:"uptime_seconds"`
}

// Checker проверяет один компонент. Реализация должна уважать отмену ctx.
type Checker interface {
	Check(ctx context.Context) Check
}

// CheckFunc — проверка в виде функции; nil-ошибка означает исправность.
type CheckFunc func(ctx context.Context) error

// FuncChecker адаптирует CheckFunc к Checker.
type FuncChecker struct {
	name     string
	fn       CheckFunc
	optional bool
}

// CheckerOption настраивает FuncChecker.
type CheckerOption func(*FuncChecker)

// Optional понижает отказ компонента до StatusDegraded: сервис остаётся готов
// принимать запросы, например пока Kafka недоступна, а события копятся в outbox.
func Optional() CheckerOption {
	return func(c *FuncChecker) { c.optional = true }
}

// NewChecker создаёт проверку name поверх fn.
func NewChecker(name string, fn CheckFunc, options ...CheckerOption) *FuncChecker {
	c := &FuncChecker{name: name, fn: fn}
	for _, option := range options {
		option(c)
	}
	return c
}

func (c *FuncChecker) Check(ctx context.Context) Check {
	started := time.Now()
	err := c.fn(ctx)
	check := Check{
		Name:       c.name,
		Status:     StatusHealthy,
		DurationMs: time.Since(started).Milliseconds(),
	}
	if err != nil {
		check.Status = StatusUnhealthy
		if c.optional {
			check.Status = StatusDegraded
		}
		check.Message = err.Error()
	}
	return check
}

// Handler собирает проверки и отдаёт их по HTTP.
type Handler struct {
	mu           sync.RWMutex
	checkers     map[string]Checker
	version      string
	startedAt    time.Time
	checkTimeout time.Duration
}

// HandlerOption настраивает Handler.
type HandlerOption func(*Handler)

// WithCheckTimeout ограничивает время одной проверки.
func WithCheckTimeout(timeout time.Duration) HandlerOption {
	return func(h *Handler) {
		if timeout > 0 {
			h.checkTimeout = timeout
		}
	}
}

func NewHandler(version string, options ...HandlerOption) *Handler {
	h := &Handler{
		checkers:     make(map[string]Checker),
		version:      version,
		startedAt:    time.Now(),
		checkTimeout: defaultCheckTimeout,
	}
	for _, option := range options {
		option(h)
	}
	return h
}

// RegisterChecker добавляет проверку; повторная регистрация name её заменяет.
func (h *Handler) RegisterChecker(name string, checker Checker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers[name] = checker
}

// Names возвращает имена зарегистрированных проверок по алфавиту.
func (h *Handler) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.checkers))
	for name := range h.checkers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Evaluate запускает все проверки параллельно, каждую со своим таймаутом.
// Проверка, не уложившаяся в таймаут, считается неисправной.
func (h *Handler) Evaluate(ctx context.Context) Response {
	h.mu.RLock()
	checkers := make(map[string]Checker, len(h.checkers))
	for name, checker := range h.checkers {
		checkers[name] = checker
	}
	h.mu.RUnlock()

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		checks = make(map[string]Check, len(checkers))
	)
	for name, checker := range checkers {
		wg.Add(1)
		go func(name string, checker Checker) {
			defer wg.Done()
			check := h.runCheck(ctx, name, checker)
			mu.Lock()
			checks[name] = check
			mu.Unlock()
		}(name, checker)
	}
	wg.Wait()

	overall := StatusHealthy
	for _, check := range checks {
		switch {
		case check.Status == StatusUnhealthy:
			overall = StatusUnhealthy
		case check.Status == StatusDegraded && overall == StatusHealthy:
			overall = StatusDegraded
		}
	}

	return Response{
		Status:        overall,
		Timestamp:     time.Now().UTC(),
		Checks:        checks,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
	}
}

func (h *Handler) runCheck(ctx context.Context, name string, checker Checker) Check {
	checkCtx, cancel := context.WithTimeout(ctx, h.checkTimeout)
	defer cancel()

	done := make(chan Check, 1)
	go func() { done <- checker.Check(checkCtx) }()

	select {
	case check := <-done:
		if check.Name == "" {
			check.Name = name
		}
		return check
	case <-checkCtx.Done():
		return Check{
			Name:       name,
			Status:     StatusUnhealthy,
			Message:    "check timed out",
			DurationMs: h.checkTimeout.Milliseconds(),
		}
	}
}

// ServeHTTP отдаёт полный отчёт; 503, если хотя бы одна обязательная проверка упала.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	response := h.Evaluate(r.Context())

	statusCode := http.StatusOK
	if response.Status == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

// ReadinessHandler отвечает "ready", пока нет неисправных обязательных компонентов.
func (h *Handler) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	if h.Evaluate(r.Context()).Status == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// LivenessHandler всегда отвечает 200: процесс жив, пока обслуживает HTTP.
func LivenessHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
