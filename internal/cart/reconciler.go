// Package cart keeps the client-side cart in step with the server. Local state only changes
// after the server confirms a request, and each line has at most one update in flight.
package cart

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/failure"
	"storefront/internal/notify"
	"storefront/internal/session"
)

// API is the part of the commerce API the reconciler drives.
type API interface {
	GetCart(ctx context.Context, token string) ([]domain.CartLine, error)
	AddCartItem(ctx context.Context, token string, productID domain.ID, quantity int) error
	UpdateCartItem(ctx context.Context, token string, lineID domain.ID, quantity int) error
	CreateOrder(ctx context.Context, token string) (domain.Order, error)
	ListOrders(ctx context.Context, token string) ([]domain.Order, error)
}

// Session is implemented by *session.Manager.
type Session interface {
	Token() (string, bool)
	HandleFailure(ctx context.Context, token string, err error) bool
	OnLogout(fn func(session.Cause))
}

type Reconciler struct {
	api    API
	sess   Session
	sink   notify.Sink
	logger *zap.Logger

	mu         sync.Mutex
	state      State
	lines      []domain.CartLine
	message    string
	generation uint64
	inflight   map[domain.ID]chan struct{}
}

// New creates a reconciler and subscribes it to the session's logout cascade.
func New(api API, sess Session, sink notify.Sink, logger *zap.Logger) *Reconciler {
	if sink == nil {
		sink = notify.Discard
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Reconciler{
		api:      api,
		sess:     sess,
		sink:     sink,
		logger:   logger,
		state:    StateUnauthenticated,
		inflight: make(map[domain.ID]chan struct{}),
	}
	sess.OnLogout(func(session.Cause) { r.Reset() })
	return r
}

// View returns the current snapshot.
func (r *Reconciler) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.viewLocked()
}

func (r *Reconciler) viewLocked() View {
	v := RecomputeTotals(r.lines)
	v.State = r.state
	v.Message = r.message
	if len(r.inflight) > 0 {
		v.Pending = make([]domain.ID, 0, len(r.inflight))
		for id := range r.inflight {
			v.Pending = append(v.Pending, id)
		}
		slices.Sort(v.Pending)
	}
	return v
}

// Reset discards all local cart state. It is the target of the logout cascade.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	r.generation++
	r.state = StateUnauthenticated
	r.lines = nil
	r.message = ""
	r.mu.Unlock()
}

// LoadCart replaces local state with the server's cart. Unauthenticated callers get the
// Unauthenticated view and no request is sent.
func (r *Reconciler) LoadCart(ctx context.Context) (View, error) {
	token, ok := r.sess.Token()
	if !ok {
		r.Reset()
		return r.View(), nil
	}

	r.mu.Lock()
	r.generation++
	gen := r.generation
	r.state = StateLoading
	r.message = ""
	r.mu.Unlock()

	lines, err := r.api.GetCart(ctx, token)
	if err != nil {
		if rerr := r.rejected(ctx, token, "load cart", err); rerr != nil {
			return r.View(), rerr
		}
		r.logger.Warn("load cart", zap.Error(err))
		r.mu.Lock()
		defer r.mu.Unlock()
		if gen != r.generation {
			return r.viewLocked(), domain.ErrStaleResult
		}
		r.state = StateError
		r.lines = nil
		r.message = failure.Message(err, "Could not load the cart.")
		return r.viewLocked(), fmt.Errorf("load cart: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sess.Token(); !ok || gen != r.generation {
		return r.viewLocked(), domain.ErrStaleResult
	}
	r.lines = lines
	r.state = StateEmpty
	if len(lines) > 0 {
		r.state = StatePopulated
	}
	return r.viewLocked(), nil
}

// AddItem asks the server to add quantity units of a product. Quantities below one are
// sent as one. Local lines are not touched: the next load shows the result.
func (r *Reconciler) AddItem(ctx context.Context, productID domain.ID, quantity int) error {
	token, err := r.requireToken()
	if err != nil {
		return err
	}
	if quantity < 1 {
		quantity = 1
	}
	if err := r.api.AddCartItem(ctx, token, productID, quantity); err != nil {
		if rerr := r.rejected(ctx, token, "add item", err); rerr != nil {
			return rerr
		}
		r.sink.Notify(failure.Message(err, "Could not add the item."), notify.SeverityError)
		return fmt.Errorf("add item: %w", err)
	}
	r.sink.Notify("Added to cart", notify.SeveritySuccess)
	return nil
}

// UpdateQuantity sets a line to an absolute quantity. A quantity of zero or less removes
// the line once the server confirms.
func (r *Reconciler) UpdateQuantity(ctx context.Context, lineID domain.ID, quantity int) (View, error) {
	return r.mutate(ctx, lineID, func(int) int { return quantity })
}

// Adjust changes a line by delta relative to its confirmed quantity at the time the
// request is sent, so rapid repeated clicks apply one after another.
func (r *Reconciler) Adjust(ctx context.Context, lineID domain.ID, delta int) (View, error) {
	return r.mutate(ctx, lineID, func(confirmed int) int { return confirmed + delta })
}

func (r *Reconciler) mutate(ctx context.Context, lineID domain.ID, target func(confirmed int) int) (View, error) {
	if _, err := r.requireToken(); err != nil {
		return r.View(), err
	}
	release, err := r.acquire(ctx, lineID)
	if err != nil {
		return r.View(), err
	}
	err = r.send(ctx, lineID, target)
	release()
	return r.View(), err
}

// send issues the update for a claimed line and applies the confirmed result.
func (r *Reconciler) send(ctx context.Context, lineID domain.ID, target func(confirmed int) int) error {
	token, err := r.requireToken()
	if err != nil {
		return err
	}
	r.mu.Lock()
	i := r.indexLocked(lineID)
	if i < 0 {
		r.mu.Unlock()
		return domain.ErrLineNotFound
	}
	quantity := target(r.lines[i].Quantity)
	r.mu.Unlock()

	if err := r.api.UpdateCartItem(ctx, token, lineID, quantity); err != nil {
		if rerr := r.rejected(ctx, token, "update line "+lineID.String(), err); rerr != nil {
			return rerr
		}
		r.sink.Notify(failure.Message(err, "Could not update the cart."), notify.SeverityError)
		return fmt.Errorf("update line %s: %w", lineID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sess.Token(); !ok {
		return domain.ErrStaleResult
	}
	i = r.indexLocked(lineID)
	if i < 0 {
		return domain.ErrStaleResult
	}
	if quantity <= 0 {
		r.lines = slices.Delete(slices.Clone(r.lines), i, i+1)
	} else {
		r.lines = slices.Clone(r.lines)
		r.lines[i].Quantity = quantity
	}
	r.message = ""
	r.state = StateEmpty
	if len(r.lines) > 0 {
		r.state = StatePopulated
	}
	return nil
}

// Checkout places an order for the server-side cart and reloads it on success.
func (r *Reconciler) Checkout(ctx context.Context) (domain.Order, error) {
	token, err := r.requireToken()
	if err != nil {
		return domain.Order{}, err
	}
	r.mu.Lock()
	pending := len(r.inflight) > 0
	total := RecomputeTotals(r.lines).TotalPrice
	r.mu.Unlock()
	if pending {
		r.sink.Notify("Wait for the cart to finish updating.", notify.SeverityWarning)
		return domain.Order{}, domain.ErrMutationPending
	}
	if !total.IsPositive() {
		r.sink.Notify("Your cart is empty.", notify.SeverityWarning)
		return domain.Order{}, domain.ErrEmptyCart
	}

	order, err := r.api.CreateOrder(ctx, token)
	if err != nil {
		if rerr := r.rejected(ctx, token, "checkout", err); rerr != nil {
			return domain.Order{}, rerr
		}
		r.sink.Notify(failure.Message(err, "Checkout failed."), notify.SeverityError)
		return domain.Order{}, fmt.Errorf("checkout: %w", err)
	}
	r.logger.Info("order placed", zap.String("order_id", order.ID.String()))
	r.sink.Notify("Order placed", notify.SeveritySuccess)
	if _, err := r.LoadCart(ctx); err != nil {
		r.logger.Warn("reload cart after checkout", zap.Error(err))
	}
	return order, nil
}

// Orders returns the order history. Nothing is cached.
func (r *Reconciler) Orders(ctx context.Context) ([]domain.Order, error) {
	token, err := r.requireToken()
	if err != nil {
		return nil, err
	}
	orders, err := r.api.ListOrders(ctx, token)
	if err != nil {
		if rerr := r.rejected(ctx, token, "list orders", err); rerr != nil {
			return nil, rerr
		}
		r.sink.Notify(failure.Message(err, "Could not load orders."), notify.SeverityError)
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// rejected hands err to the session. It returns nil when err is not an auth rejection.
// When token was already superseded by a newer session the result is only stale.
func (r *Reconciler) rejected(ctx context.Context, token, op string, err error) error {
	if !r.sess.HandleFailure(ctx, token, err) {
		return nil
	}
	if current, ok := r.sess.Token(); ok && current != token {
		return fmt.Errorf("%s: %w", op, domain.ErrStaleResult)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrUnauthorized, err)
}

func (r *Reconciler) requireToken() (string, error) {
	token, ok := r.sess.Token()
	if !ok {
		r.sink.Notify(failure.MsgSignIn, notify.SeverityWarning)
		return "", domain.ErrAuthRequired
	}
	return token, nil
}

// acquire waits until no other update is in flight for id and claims it.
func (r *Reconciler) acquire(ctx context.Context, id domain.ID) (func(), error) {
	for {
		r.mu.Lock()
		busy, ok := r.inflight[id]
		if !ok {
			done := make(chan struct{})
			r.inflight[id] = done
			r.mu.Unlock()
			return func() {
				r.mu.Lock()
				delete(r.inflight, id)
				r.mu.Unlock()
				close(done)
			}, nil
		}
		r.mu.Unlock()
		select {
		case <-busy:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (r *Reconciler) indexLocked(id domain.ID) int {
	return slices.IndexFunc(r.lines, func(l domain.CartLine) bool { return l.ID == id })
}
