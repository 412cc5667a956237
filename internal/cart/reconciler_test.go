package cart

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/credential"
	"storefront/internal/domain"
	"storefront/internal/failure"
	"storefront/internal/notify"
	"storefront/internal/session"
)

// stubAuth issues a fresh token on every login.
type stubAuth struct {
	logins atomic.Int64
}

func (s *stubAuth) Login(context.Context, string, string) (string, error) {
	return fmt.Sprintf("tok-%d", s.logins.Add(1)), nil
}

func (*stubAuth) Register(context.Context, string, string, string) error { return nil }

// fakeAPI is an in-memory cart server. UpdateCartItem records whether two updates for the
// same line ever overlapped.
type fakeAPI struct {
	mu      sync.Mutex
	lines   []domain.CartLine
	calls   int
	updates []int
	added   []int
	active  map[domain.ID]int
	overlap bool

	getErr, addErr, updateErr, orderErr error

	gate    chan struct{}
	entered chan domain.ID
}

func newFakeAPI(lines ...domain.CartLine) *fakeAPI {
	return &fakeAPI{lines: lines, active: make(map[domain.ID]int)}
}

func (f *fakeAPI) GetCart(context.Context, string) ([]domain.CartLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	return append([]domain.CartLine(nil), f.lines...), nil
}

func (f *fakeAPI) AddCartItem(_ context.Context, _ string, _ domain.ID, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.added = append(f.added, quantity)
	return f.addErr
}

func (f *fakeAPI) UpdateCartItem(_ context.Context, _ string, lineID domain.ID, quantity int) error {
	f.mu.Lock()
	f.calls++
	f.active[lineID]++
	if f.active[lineID] > 1 {
		f.overlap = true
	}
	f.updates = append(f.updates, quantity)
	entered, gate := f.entered, f.gate
	f.mu.Unlock()

	if entered != nil {
		entered <- lineID
	}
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.active[lineID]--
	if f.updateErr != nil {
		return f.updateErr
	}
	for i, l := range f.lines {
		if l.ID != lineID {
			continue
		}
		if quantity <= 0 {
			f.lines = append(f.lines[:i], f.lines[i+1:]...)
		} else {
			f.lines[i].Quantity = quantity
		}
		break
	}
	return nil
}

func (f *fakeAPI) CreateOrder(context.Context, string) (domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.orderErr != nil {
		return domain.Order{}, f.orderErr
	}
	total := RecomputeTotals(f.lines).TotalPrice
	f.lines = nil
	return domain.Order{ID: "1", Status: "created", TotalPrice: total}, nil
}

func (f *fakeAPI) ListOrders(context.Context, string) ([]domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return []domain.Order{{ID: "1", Status: "paid"}}, nil
}

func (f *fakeAPI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func price(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func line(id string, qty int, unit string) domain.CartLine {
	l := domain.CartLine{ID: domain.ID(id), ProductID: domain.ID("p" + id), Name: "item " + id, Quantity: qty}
	if unit != "" {
		l.UnitPrice = price(unit)
	}
	return l
}

func newTestReconciler(t *testing.T, api *fakeAPI, signedIn bool) (*Reconciler, *session.Manager, *notify.Feed) {
	t.Helper()
	feed := notify.NewFeed(50)
	mgr := session.NewManager(&stubAuth{}, credential.NewMemory(), feed, nil)
	r := New(api, mgr, feed, nil)
	if signedIn {
		_, err := mgr.Login(context.Background(), "ann@example.com", "Secret123")
		require.NoError(t, err)
		feed.Drain()
	}
	return r, mgr, feed
}

func loaded(t *testing.T, api *fakeAPI) (*Reconciler, *session.Manager, *notify.Feed) {
	t.Helper()
	r, mgr, feed := newTestReconciler(t, api, true)
	_, err := r.LoadCart(context.Background())
	require.NoError(t, err)
	return r, mgr, feed
}

func unauthorized(op string) error {
	return failure.Status(op, http.StatusUnauthorized, "Token expired")
}

func TestRecomputeTotals(t *testing.T) {
	v := RecomputeTotals([]domain.CartLine{line("1", 2, "10.50"), line("2", 3, ""), line("3", 1, "0.25")})
	assert.Equal(t, 6, v.TotalItems)
	assert.True(t, v.TotalPrice.Equal(decimal.RequireFromString("21.25")), v.TotalPrice.String())
	assert.Equal(t, StatePopulated, v.State)

	empty := RecomputeTotals(nil)
	assert.Equal(t, 0, empty.TotalItems)
	assert.True(t, empty.TotalPrice.IsZero())
	assert.Equal(t, StateEmpty, empty.State)
}

func TestLoadCart(t *testing.T) {
	api := newFakeAPI(line("1", 2, "5"), line("2", 1, "3"))
	r, _, _ := newTestReconciler(t, api, true)

	v, err := r.LoadCart(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatePopulated, v.State)
	assert.Len(t, v.Lines, 2)
	assert.Equal(t, 3, v.TotalItems)
	assert.True(t, v.TotalPrice.Equal(decimal.NewFromInt(13)))
}

func TestLoadCart_EmptyIsAState(t *testing.T) {
	r, _, _ := newTestReconciler(t, newFakeAPI(), true)

	v, err := r.LoadCart(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateEmpty, v.State)
}

func TestLoadCart_FailureDropsLines(t *testing.T) {
	api := newFakeAPI(line("1", 1, "5"))
	r, mgr, _ := loaded(t, api)

	api.getErr = failure.Status("GET /cart/", http.StatusInternalServerError, "")
	v, err := r.LoadCart(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateError, v.State)
	assert.Equal(t, failure.MsgUnavailable, v.Message)
	assert.Empty(t, v.Lines)
	assert.True(t, mgr.IsAuthenticated())
}

func TestUpdateQuantity_SetsAndRecomputes(t *testing.T) {
	api := newFakeAPI(line("1", 1, "2.50"), line("2", 1, "1"))
	r, _, _ := loaded(t, api)

	v, err := r.UpdateQuantity(context.Background(), "1", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, v.Lines[0].Quantity)
	assert.Equal(t, 5, v.TotalItems)
	assert.True(t, v.TotalPrice.Equal(decimal.NewFromInt(11)))
}

func TestUpdateQuantity_ZeroRemovesLine(t *testing.T) {
	api := newFakeAPI(line("1", 1, "2.50"))
	r, _, _ := loaded(t, api)

	v, err := r.Adjust(context.Background(), "1", -1)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, api.updates)
	assert.Equal(t, StateEmpty, v.State)
	assert.Empty(t, v.Lines)
	assert.Equal(t, 0, v.TotalItems)
	assert.True(t, v.TotalPrice.IsZero())
}

func TestUpdateQuantity_SendsNegativeAsRequested(t *testing.T) {
	api := newFakeAPI(line("1", 3, "2"), line("2", 1, "4"))
	r, _, _ := loaded(t, api)

	v, err := r.UpdateQuantity(context.Background(), "1", -2)
	require.NoError(t, err)
	assert.Equal(t, []int{-2}, api.updates)
	require.Len(t, v.Lines, 1)
	assert.Equal(t, domain.ID("2"), v.Lines[0].ID)
	assert.Equal(t, StatePopulated, v.State)
}

func TestUpdateQuantity_FailureIsNoOp(t *testing.T) {
	api := newFakeAPI(line("1", 2, "3"))
	r, _, feed := loaded(t, api)
	before := r.View()

	api.updateErr = failure.Status("PUT /cart/items/1", http.StatusConflict, "Not enough stock")
	v, err := r.Adjust(context.Background(), "1", 1)
	require.Error(t, err)
	assert.Equal(t, before, v)

	var msgs []string
	for _, n := range feed.Drain() {
		msgs = append(msgs, n.Message)
	}
	assert.Equal(t, []string{"Not enough stock"}, msgs)
}

func TestUpdateQuantity_UnknownLine(t *testing.T) {
	api := newFakeAPI(line("1", 2, "3"))
	r, _, _ := loaded(t, api)
	calls := api.callCount()

	_, err := r.UpdateQuantity(context.Background(), "nope", 3)
	assert.ErrorIs(t, err, domain.ErrLineNotFound)
	assert.Equal(t, calls, api.callCount())
}

func TestUnauthorizedCascade(t *testing.T) {
	ops := map[string]func(r *Reconciler, api *fakeAPI) error{
		"load": func(r *Reconciler, api *fakeAPI) error {
			api.getErr = unauthorized("GET /cart/")
			_, err := r.LoadCart(context.Background())
			return err
		},
		"add": func(r *Reconciler, api *fakeAPI) error {
			api.addErr = unauthorized("POST /cart/items")
			return r.AddItem(context.Background(), "p9", 1)
		},
		"update": func(r *Reconciler, api *fakeAPI) error {
			api.updateErr = failure.Status("PUT /cart/items/1", http.StatusForbidden, "Invalid token type")
			_, err := r.UpdateQuantity(context.Background(), "1", 3)
			return err
		},
		"checkout": func(r *Reconciler, api *fakeAPI) error {
			api.orderErr = unauthorized("POST /orders/")
			_, err := r.Checkout(context.Background())
			return err
		},
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			api := newFakeAPI(line("1", 2, "3"))
			r, mgr, feed := loaded(t, api)

			err := op(r, api)
			assert.ErrorIs(t, err, domain.ErrUnauthorized)
			assert.False(t, mgr.IsAuthenticated())

			v := r.View()
			assert.Equal(t, StateUnauthenticated, v.State)
			assert.Empty(t, v.Lines)
			assert.Equal(t, 0, v.TotalItems)

			notes := feed.Drain()
			require.Len(t, notes, 1)
			assert.Equal(t, failure.MsgSessionExpired, notes[0].Message)
		})
	}
}

func TestUnauthenticatedGuard_SendsNothing(t *testing.T) {
	api := newFakeAPI(line("1", 2, "3"))
	r, _, _ := newTestReconciler(t, api, false)
	ctx := context.Background()

	v, err := r.LoadCart(ctx)
	assert.NoError(t, err)
	assert.Equal(t, StateUnauthenticated, v.State)

	assert.ErrorIs(t, r.AddItem(ctx, "p1", 1), domain.ErrAuthRequired)
	_, err = r.UpdateQuantity(ctx, "1", 3)
	assert.ErrorIs(t, err, domain.ErrAuthRequired)
	_, err = r.Adjust(ctx, "1", 1)
	assert.ErrorIs(t, err, domain.ErrAuthRequired)
	_, err = r.Checkout(ctx)
	assert.ErrorIs(t, err, domain.ErrAuthRequired)
	_, err = r.Orders(ctx)
	assert.ErrorIs(t, err, domain.ErrAuthRequired)

	assert.Equal(t, 0, api.callCount())
}

func TestAdjust_SerializesSameLine(t *testing.T) {
	api := newFakeAPI(line("1", 1, "2"))
	r, _, _ := loaded(t, api)
	api.gate = make(chan struct{})
	api.entered = make(chan domain.ID, 4)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = r.Adjust(context.Background(), "1", 1)
		}(i)
	}

	<-api.entered
	select {
	case <-api.entered:
		t.Fatalf("second update for the same line started before the first resolved")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, []domain.ID{"1"}, r.View().Pending)

	close(api.gate)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.False(t, api.overlap)
	assert.Equal(t, []int{2, 3}, api.updates)
	v := r.View()
	assert.Equal(t, 3, v.Lines[0].Quantity)
	assert.Empty(t, v.Pending)
}

func TestAdjust_DifferentLinesRunConcurrently(t *testing.T) {
	api := newFakeAPI(line("1", 1, "2"), line("2", 1, "2"))
	r, _, _ := loaded(t, api)
	api.gate = make(chan struct{})
	api.entered = make(chan domain.ID, 4)

	var wg sync.WaitGroup
	for _, id := range []domain.ID{"1", "2"} {
		wg.Add(1)
		go func(id domain.ID) {
			defer wg.Done()
			_, err := r.Adjust(context.Background(), id, 1)
			assert.NoError(t, err)
		}(id)
	}

	for i := 0; i < 2; i++ {
		select {
		case <-api.entered:
		case <-time.After(time.Second):
			t.Fatalf("updates for different lines did not run concurrently")
		}
	}
	close(api.gate)
	wg.Wait()

	v := r.View()
	assert.Equal(t, 4, v.TotalItems)
}

func TestAdjust_WaitRespectsContext(t *testing.T) {
	api := newFakeAPI(line("1", 1, "2"))
	r, _, _ := loaded(t, api)
	api.gate = make(chan struct{})
	api.entered = make(chan domain.ID, 4)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = r.Adjust(context.Background(), "1", 1)
	}()
	<-api.entered

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Adjust(ctx, "1", 1)
	assert.ErrorIs(t, err, context.Canceled)

	close(api.gate)
	<-done
	assert.Equal(t, []int{2}, api.updates)
}

func TestUpdate_DiscardedAfterLogout(t *testing.T) {
	api := newFakeAPI(line("1", 1, "2"))
	r, mgr, _ := loaded(t, api)
	api.gate = make(chan struct{})
	api.entered = make(chan domain.ID, 1)

	errc := make(chan error, 1)
	go func() {
		_, err := r.UpdateQuantity(context.Background(), "1", 5)
		errc <- err
	}()
	<-api.entered
	mgr.Logout(context.Background())
	close(api.gate)

	assert.ErrorIs(t, <-errc, domain.ErrStaleResult)
	v := r.View()
	assert.Equal(t, StateUnauthenticated, v.State)
	assert.Empty(t, v.Lines)
}

func TestUpdate_RejectedOldTokenKeepsNewSession(t *testing.T) {
	api := newFakeAPI(line("1", 1, "2"))
	r, mgr, feed := loaded(t, api)
	api.gate = make(chan struct{})
	api.entered = make(chan domain.ID, 1)

	errc := make(chan error, 1)
	go func() {
		_, err := r.Adjust(context.Background(), "1", 1)
		errc <- err
	}()
	<-api.entered
	mgr.Logout(context.Background())
	_, err := mgr.Login(context.Background(), "ann@example.com", "Secret123")
	require.NoError(t, err)
	feed.Drain()

	api.mu.Lock()
	api.updateErr = unauthorized("PUT /cart/items/1")
	api.mu.Unlock()
	close(api.gate)

	assert.ErrorIs(t, <-errc, domain.ErrStaleResult)
	assert.True(t, mgr.IsAuthenticated())
	tok, _ := mgr.Token()
	assert.Equal(t, "tok-2", tok)
	assert.Empty(t, feed.Drain())

	api.mu.Lock()
	api.gate, api.entered, api.updateErr = nil, nil, nil
	api.mu.Unlock()
	v, err := r.LoadCart(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatePopulated, v.State)
}

func TestUpdate_DiscardedWhenReloadDropsLine(t *testing.T) {
	api := newFakeAPI(line("1", 1, "2"))
	r, _, _ := loaded(t, api)
	api.gate = make(chan struct{})
	api.entered = make(chan domain.ID, 1)

	errc := make(chan error, 1)
	go func() {
		_, err := r.UpdateQuantity(context.Background(), "1", 5)
		errc <- err
	}()
	<-api.entered

	api.mu.Lock()
	api.lines = nil
	api.mu.Unlock()
	v, err := r.LoadCart(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateEmpty, v.State)

	close(api.gate)
	assert.ErrorIs(t, <-errc, domain.ErrStaleResult)
	assert.Equal(t, StateEmpty, r.View().State)
}

func TestCheckout_ThenCartIsEmpty(t *testing.T) {
	api := newFakeAPI(line("1", 2, "4.50"))
	r, _, feed := loaded(t, api)

	order, err := r.Checkout(context.Background())
	require.NoError(t, err)
	assert.True(t, order.TotalPrice.Equal(decimal.NewFromInt(9)))

	v := r.View()
	assert.Equal(t, StateEmpty, v.State)
	assert.Equal(t, 0, v.TotalItems)
	assert.Equal(t, "Order placed", feed.Drain()[0].Message)
}

func TestCheckout_RefusesZeroTotal(t *testing.T) {
	api := newFakeAPI(line("1", 2, ""))
	r, _, _ := loaded(t, api)
	calls := api.callCount()

	_, err := r.Checkout(context.Background())
	assert.ErrorIs(t, err, domain.ErrEmptyCart)
	assert.Equal(t, calls, api.callCount())
}

func TestCheckout_RefusesWhileLinePending(t *testing.T) {
	api := newFakeAPI(line("1", 1, "2"))
	r, _, _ := loaded(t, api)
	api.gate = make(chan struct{})
	api.entered = make(chan domain.ID, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = r.Adjust(context.Background(), "1", 1)
	}()
	<-api.entered

	_, err := r.Checkout(context.Background())
	assert.ErrorIs(t, err, domain.ErrMutationPending)

	close(api.gate)
	<-done
}

func TestCheckout_FailureLeavesCart(t *testing.T) {
	api := newFakeAPI(line("1", 1, "2"))
	r, _, _ := loaded(t, api)
	before := r.View()

	api.orderErr = failure.Status("POST /orders/", http.StatusConflict, "Not enough stock for Mug")
	_, err := r.Checkout(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrUnauthorized))
	assert.Equal(t, before, r.View())
}

func TestAddItem_DefaultsQuantityAndDoesNotSplice(t *testing.T) {
	api := newFakeAPI()
	r, _, feed := loaded(t, api)

	require.NoError(t, r.AddItem(context.Background(), "p1", 0))
	assert.Equal(t, []int{1}, api.added)
	assert.Empty(t, r.View().Lines)
	assert.Equal(t, "Added to cart", feed.Drain()[0].Message)
}

func TestOrders(t *testing.T) {
	api := newFakeAPI()
	r, _, _ := loaded(t, api)

	orders, err := r.Orders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "paid", orders[0].Status)
}
