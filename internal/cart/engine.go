package cart

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/construmax/storefront-backend/internal/catalog"
)

// Mirror persists the current lines after each successful mutation. It is
// fire-and-forget from the engine's point of view: implementations log their
// own failures and never block a mutation.
type Mirror func(lines []Line)

// Engine owns the set of cart lines and is the only write path to them.
// Mutations are synchronous; the injected Mirror is invoked after every
// mutation that changed state, never on no-ops.
type Engine struct {
	mu     sync.Mutex
	lines  []Line
	mirror Mirror
}

func NewEngine(mirror Mirror) *Engine {
	return &Engine{mirror: mirror}
}

// Restore builds an engine over previously persisted lines without invoking
// the mirror.
func Restore(lines []Line, mirror Mirror) *Engine {
	e := NewEngine(mirror)
	e.lines = append(e.lines, lines...)
	return e
}

// Add inserts a new line with quantity 1, or increments the quantity of the
// existing line for the same product id. Options on an existing line are left
// unchanged: the discount context recorded is whichever was present first.
func (e *Engine) Add(p catalog.Product, opts AddOptions) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.lines {
		if e.lines[i].Product.ID == p.ID {
			e.lines[i].Quantity++
			e.mirrorLocked()
			return
		}
	}

	e.lines = append(e.lines, Line{
		Product:         p,
		Quantity:        1,
		DiscountPercent: opts.DiscountPercent,
	})
	e.mirrorLocked()
}

// Remove deletes the line for the given product id; absent is a no-op.
func (e *Engine) Remove(productID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.removeLocked(productID)
}

// SetQuantity replaces the line's quantity. A quantity <= 0 behaves exactly
// as Remove. Setting a quantity on an absent line is a no-op. Stock clamping
// is a presentation concern applied before this call, not an engine invariant.
func (e *Engine) SetQuantity(productID string, quantity int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if quantity <= 0 {
		e.removeLocked(productID)
		return
	}

	for i := range e.lines {
		if e.lines[i].Product.ID == productID {
			e.lines[i].Quantity = quantity
			e.mirrorLocked()
			return
		}
	}
}

// Clear empties all lines unconditionally.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lines = nil
	e.mirrorLocked()
}

// TotalItems is the sum of all line quantities.
func (e *Engine) TotalItems() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	total := 0
	for _, l := range e.lines {
		total += l.Quantity
	}
	return total
}

// TotalPrice sums price*quantity over all lines using the snapshot unit
// price. DiscountPercent is display metadata and is not reapplied here.
func (e *Engine) TotalPrice() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	total := decimal.Zero
	for _, l := range e.lines {
		total = total.Add(decimal.NewFromFloat(l.Product.Price).Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total.InexactFloat64()
}

// Lines returns a copy in insertion order.
func (e *Engine) Lines() []Line {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Line, len(e.lines))
	copy(out, e.lines)
	return out
}

func (e *Engine) removeLocked(productID string) {
	for i := range e.lines {
		if e.lines[i].Product.ID == productID {
			e.lines = append(e.lines[:i], e.lines[i+1:]...)
			e.mirrorLocked()
			return
		}
	}
}

func (e *Engine) mirrorLocked() {
	if e.mirror == nil {
		return
	}
	snapshot := make([]Line, len(e.lines))
	copy(snapshot, e.lines)
	e.mirror(snapshot)
}
