// Package reservation резервирует единицы товара в корзинах покупателей,
// синхронно уменьшая и возвращая остатки каталога.
package reservation

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/eshop/internal/domain"
	"github.com/vladislavdragonenkov/eshop/internal/metrics"
)

// Options задаёт зависимости движка резервирования.
type Options struct {
	Logger  *log.Entry
	Metrics *metrics.StoreMetrics
	Now     func() time.Time
}

// Option настраивает Engine.
type Option func(*Options)

// WithLogger задаёт logger движка.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithMetrics подключает метрики резервирования.
func WithMetrics(m *metrics.StoreMetrics) Option {
	return func(opts *Options) {
		opts.Metrics = m
	}
}

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(opts *Options) {
		opts.Now = now
	}
}

// cart — корзина одного покупателя со своей блокировкой. Опустевшая корзина
// удаляется из движка и помечается evicted; такую корзину больше не наполняют.
type cart struct {
	mu      sync.Mutex
	lines   []domain.CartLine
	evicted bool
}

// Engine держит корзины покупателей и согласует их с остатками каталога.
//
// Порядок блокировок всегда один: сначала товары (по возрастанию id), затем корзина.
// Любая операция либо выполняется целиком, либо не меняет ни остатки, ни корзину.
type Engine struct {
	goods   domain.GoodRepository
	locks   *keyedMutex
	metrics *metrics.StoreMetrics
	logger  *log.Entry
	now     func() time.Time

	mu    sync.Mutex
	carts map[string]*cart
}

// NewEngine создаёт движок резервирования поверх каталога goods.
func NewEngine(goods domain.GoodRepository, options ...Option) *Engine {
	opts := Options{}
	for _, option := range options {
		option(&opts)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "reservation-engine")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Engine{
		goods:   goods,
		locks:   newKeyedMutex(),
		metrics: opts.Metrics,
		logger:  logger,
		now:     now,
		carts:   make(map[string]*cart),
	}
}

// AddOne резервирует одну единицу товара (title, price) в корзине покупателя buyer.
// price — свободный текст из витрины, сравнивается с каталогом как десятичное число.
func (e *Engine) AddOne(buyer, title, price string) (domain.CartLine, error) {
	defer e.observe("add_one", e.now())

	good, err := e.resolve(buyer, title, price)
	if err != nil {
		e.metrics.RecordReservation(reservationResult(err))
		return domain.CartLine{}, err
	}

	id := good.ID
	unlock := e.locks.Lock(id)
	defer unlock()

	// Остаток перечитывается под блокировкой товара.
	good, err = e.goods.Get(id)
	if err != nil {
		if domain.IsNotFound(err) {
			e.metrics.RecordReservation(metrics.ReservationNotFound)
			return domain.CartLine{}, fmt.Errorf("%w: %s", domain.ErrProductNotFound, title)
		}
		return domain.CartLine{}, fmt.Errorf("get good %d: %w", id, err)
	}
	if !good.InStock() {
		e.metrics.RecordReservation(metrics.ReservationOutOfStock)
		e.logger.WithFields(log.Fields{"buyer": buyer, "good_id": good.ID}).Warn("reservation rejected: out of stock")
		return domain.CartLine{}, outOfStock(good)
	}

	if _, err := e.goods.AdjustQuantity(good.ID, -1); err != nil {
		if errors.Is(err, domain.ErrOutOfStock) {
			e.metrics.RecordReservation(metrics.ReservationOutOfStock)
			return domain.CartLine{}, outOfStock(good)
		}
		return domain.CartLine{}, fmt.Errorf("reserve good %d: %w", good.ID, err)
	}

	line := domain.NewCartLine(good, 1)
	c := e.lockCart(buyer, true)
	c.lines = append(c.lines, line)
	c.mu.Unlock()

	e.metrics.RecordReservation(metrics.ReservationReserved)
	e.logger.WithFields(log.Fields{
		"buyer":     buyer,
		"good_id":   good.ID,
		"remaining": good.Quantity - 1,
	}).Info("good reserved")

	return line, nil
}

// RemoveOne возвращает на склад одну единицу товара (title, price) из корзины buyer.
func (e *Engine) RemoveOne(buyer, title, price string) error {
	defer e.observe("remove_one", e.now())

	good, err := e.resolve(buyer, title, price)
	if err != nil {
		return err
	}

	unlock := e.locks.Lock(good.ID)
	defer unlock()

	notInCart := fmt.Errorf("%w: %s %s $", domain.ErrProductNotInCart, title, domain.FormatPrice(good.Price))
	c := e.lockCart(buyer, false)
	if c == nil {
		return notInCart
	}
	defer c.mu.Unlock()

	idx := slices.IndexFunc(c.lines, func(l domain.CartLine) bool {
		return l.GoodID == good.ID && l.Matches(good.Title, good.Price)
	})
	if idx < 0 {
		return notInCart
	}
	line := c.lines[idx]

	if _, err := e.goods.AdjustQuantity(good.ID, line.Quantity); err != nil {
		return fmt.Errorf("release good %d: %w", good.ID, err)
	}
	c.lines = removeFirstEqual(c.lines, line)
	e.evictIfEmpty(buyer, c)

	e.metrics.RecordRelease(line.Quantity)
	e.logger.WithFields(log.Fields{"buyer": buyer, "good_id": good.ID}).Info("good released from cart")

	return nil
}

// CurrentCart возвращает согласованный снимок корзины покупателя.
func (e *Engine) CurrentCart(buyer string) []domain.CartLine {
	c := e.existingCart(buyer)
	if c == nil {
		return []domain.CartLine{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.CartLine{}, c.lines...)
}

// Checkout передаёт снимок корзины в place и очищает корзину, только если place
// завершился без ошибки. Пока place выполняется, корзину никто не меняет.
// place не должен обращаться к движку.
func (e *Engine) Checkout(buyer string, place func(lines []domain.CartLine) error) error {
	defer e.observe("checkout", e.now())

	c := e.existingCart(buyer)
	if c == nil {
		return domain.ErrOrderNotPlaced
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.lines) == 0 {
		return domain.ErrOrderNotPlaced
	}

	lines := append([]domain.CartLine(nil), c.lines...)
	if err := place(lines); err != nil {
		return err
	}

	var units int64
	for _, line := range lines {
		units += line.Quantity
	}
	c.lines = nil
	e.evictIfEmpty(buyer, c)
	e.metrics.RecordCheckout(units)

	return nil
}

// Restore возвращает на склад все строки корзины buyer и очищает её.
// Остаток товара, который успел закончиться, перезаписывается зарезервированным
// количеством; иначе количество прибавляется. Строки товаров, удалённых из каталога,
// отбрасываются. Возвращает строки, которые были в корзине.
func (e *Engine) Restore(buyer string) ([]domain.CartLine, error) {
	defer e.observe("restore", e.now())

	c := e.existingCart(buyer)
	if c == nil {
		return []domain.CartLine{}, nil
	}

	unlock := e.lockCartGoods(c)
	defer unlock()

	restored := make([]domain.CartLine, 0, len(c.lines))
	for len(c.lines) > 0 {
		line := c.lines[0]
		if err := e.restoreLine(buyer, line); err != nil {
			return restored, err
		}
		c.lines = c.lines[1:]
		restored = append(restored, line)
		e.metrics.RecordRelease(line.Quantity)
	}
	c.lines = nil
	e.evictIfEmpty(buyer, c)

	return restored, nil
}

func (e *Engine) restoreLine(buyer string, line domain.CartLine) error {
	good, err := e.goods.Get(line.GoodID)
	if err != nil {
		if domain.IsNotFound(err) {
			e.logger.WithFields(log.Fields{"buyer": buyer, "good_id": line.GoodID}).Warn("restore skipped: good no longer in catalog")
			return nil
		}
		return fmt.Errorf("get good %d: %w", line.GoodID, err)
	}

	qty := domain.RestoredQuantity(good.Quantity, line.Quantity)
	if _, err := e.goods.SetQuantity(good.ID, qty); err != nil {
		return fmt.Errorf("restore good %d: %w", good.ID, err)
	}

	e.logger.WithFields(log.Fields{
		"buyer":    buyer,
		"good_id":  good.ID,
		"quantity": qty,
	}).Info("good returned to stock")
	return nil
}

// Clear очищает корзину buyer без возврата остатков и возвращает снятые строки.
func (e *Engine) Clear(buyer string) []domain.CartLine {
	c := e.existingCart(buyer)
	if c == nil {
		return []domain.CartLine{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	dropped := c.lines
	c.lines = nil
	e.evictIfEmpty(buyer, c)

	var units int64
	for _, line := range dropped {
		units += line.Quantity
	}
	e.metrics.RecordCheckout(units)

	if dropped == nil {
		return []domain.CartLine{}
	}
	return dropped
}

// PurgeDepleted удаляет из каталога товары с нулевым остатком и возвращает их id.
// Корзина finalizing очищается тем же шагом и не учитывается; товары, которые
// лежат в корзинах других покупателей, остаются в каталоге.
func (e *Engine) PurgeDepleted(finalizing string) ([]int64, error) {
	defer e.observe("purge", e.now())

	goods, err := e.goods.List()
	if err != nil {
		return nil, fmt.Errorf("list goods: %w", err)
	}

	purged := make([]int64, 0)
	var held int64
	for _, candidate := range goods {
		if candidate.InStock() {
			continue
		}
		ok, reserved, err := e.purgeOne(candidate.ID, finalizing)
		if err != nil {
			return purged, err
		}
		if ok {
			purged = append(purged, candidate.ID)
		}
		held += reserved
	}

	e.metrics.RecordGoodsPurged(len(purged))
	if len(purged) > 0 {
		e.logger.WithField("good_ids", purged).Info("sold-out goods purged")
	}
	if held > 0 {
		e.logger.WithField("reserved_units", held).Info("sold-out goods kept: reserved in other carts")
	}
	return purged, nil
}

// purgeOne удаляет распроданный товар id, если он не зарезервирован вне корзины finalizing.
// Возвращает, удалён ли товар, и сколько единиц помешало удалению.
func (e *Engine) purgeOne(id int64, finalizing string) (bool, int64, error) {
	unlock := e.locks.Lock(id)
	defer unlock()

	good, err := e.goods.Get(id)
	if err != nil {
		if domain.IsNotFound(err) {
			return false, 0, nil
		}
		return false, 0, fmt.Errorf("get good %d: %w", id, err)
	}
	// Товар могли вернуть на склад, пока мы ждали блокировку.
	if good.InStock() {
		return false, 0, nil
	}
	if reserved := e.reservedUnits(id, finalizing); reserved > 0 {
		return false, reserved, nil
	}
	if err := e.goods.Delete(id); err != nil && !domain.IsNotFound(err) {
		return false, 0, fmt.Errorf("delete good %d: %w", id, err)
	}
	return true, 0, nil
}

// DeleteUnreserved удаляет товар через del, только если его нет ни в одной корзине.
// Пока del выполняется, товар нельзя зарезервировать.
func (e *Engine) DeleteUnreserved(id int64, del func(id int64) error) error {
	unlock := e.locks.Lock(id)
	defer unlock()

	if reserved := e.reservedUnits(id, ""); reserved > 0 {
		e.logger.WithFields(log.Fields{"good_id": id, "reserved_units": reserved}).Warn("delete rejected: good is reserved")
		return fmt.Errorf("%w: good %d has %d units in carts", domain.ErrGoodReserved, id, reserved)
	}
	return del(id)
}

// ReservedUnits считает единицы товара goodID во всех корзинах.
func (e *Engine) ReservedUnits(goodID int64) int64 {
	return e.reservedUnits(goodID, "")
}

func (e *Engine) reservedUnits(goodID int64, except string) int64 {
	e.mu.Lock()
	carts := make([]*cart, 0, len(e.carts))
	for buyer, c := range e.carts {
		if buyer != except {
			carts = append(carts, c)
		}
	}
	e.mu.Unlock()

	var total int64
	for _, c := range carts {
		c.mu.Lock()
		total += domain.ReservedUnits(c.lines, goodID)
		c.mu.Unlock()
	}
	return total
}

// resolve проверяет ввод и находит товар по паре (title, price).
func (e *Engine) resolve(buyer, title, price string) (domain.Good, error) {
	if strings.TrimSpace(title) == "" {
		return domain.Good{}, domain.ErrProductSelectionEmpty
	}
	if strings.TrimSpace(buyer) == "" {
		return domain.Good{}, domain.ErrLoginRequired
	}

	parsed, err := domain.ParsePrice(price)
	if err != nil {
		return domain.Good{}, fmt.Errorf("%w: %w", domain.ErrProductNotFound, err)
	}

	good, err := e.goods.FindByTitleAndPrice(title, parsed)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			return domain.Good{}, fmt.Errorf("%w: %s %s $", domain.ErrProductNotFound, title, domain.FormatPrice(parsed))
		}
		return domain.Good{}, fmt.Errorf("find good: %w", err)
	}
	return good, nil
}

// lockCartGoods блокирует все товары корзины и саму корзину. Если пока брались
// блокировки товаров в корзину попали новые товары, попытка повторяется.
func (e *Engine) lockCartGoods(c *cart) func() {
	for {
		c.mu.Lock()
		ids := goodIDs(c.lines)
		c.mu.Unlock()

		unlockGoods := e.locks.LockAll(ids)
		c.mu.Lock()
		if containsAll(ids, goodIDs(c.lines)) {
			return func() {
				c.mu.Unlock()
				unlockGoods()
			}
		}
		c.mu.Unlock()
		unlockGoods()
	}
}

// lockCart возвращает заблокированную живую корзину buyer. При create = false
// отсутствующая корзина даёт nil, иначе создаётся новая.
func (e *Engine) lockCart(buyer string, create bool) *cart {
	for {
		e.mu.Lock()
		c, ok := e.carts[buyer]
		if !ok {
			if !create {
				e.mu.Unlock()
				return nil
			}
			c = &cart{}
			e.carts[buyer] = c
		}
		e.mu.Unlock()

		c.mu.Lock()
		if !c.evicted {
			return c
		}
		c.mu.Unlock()
	}
}

// evictIfEmpty убирает пустую корзину из движка. Вызывается под c.mu.
func (e *Engine) evictIfEmpty(buyer string, c *cart) {
	if len(c.lines) > 0 || c.evicted {
		return
	}
	e.mu.Lock()
	if e.carts[buyer] == c {
		delete(e.carts, buyer)
	}
	e.mu.Unlock()
	c.evicted = true
}

// CartCount возвращает число покупателей с непустой корзиной.
func (e *Engine) CartCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.carts)
}

func (e *Engine) existingCart(buyer string) *cart {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.carts[buyer]
}

func (e *Engine) observe(operation string, started time.Time) {
	e.metrics.RecordOperationDuration(operation, e.now().Sub(started))
}

func outOfStock(good domain.Good) error {
	return fmt.Errorf("%w: product with title %s and price %s $", domain.ErrOutOfStock, good.Title, domain.FormatPrice(good.Price))
}

func reservationResult(err error) string {
	if errors.Is(err, domain.ErrProductNotFound) {
		return metrics.ReservationNotFound
	}
	return metrics.ReservationRejected
}

// removeFirstEqual удаляет первую строку, полностью совпадающую со снимком line.
func removeFirstEqual(lines []domain.CartLine, line domain.CartLine) []domain.CartLine {
	idx := slices.IndexFunc(lines, line.Equal)
	if idx < 0 {
		return lines
	}
	return slices.Delete(lines, idx, idx+1)
}

func goodIDs(lines []domain.CartLine) []int64 {
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.GoodID)
	}
	return ids
}

func containsAll(locked, current []int64) bool {
	for _, id := range current {
		if !slices.Contains(locked, id) {
			return false
		}
	}
	return true
}
