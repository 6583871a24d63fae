package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "travel-concierge/internal/common/errors"
	"travel-concierge/internal/common/logger"
	"travel-concierge/internal/models"
	"travel-concierge/internal/store"
)

type testLogger struct {
	t *testing.T
}

func (tl *testLogger) Debug(msg string, fields map[string]interface{}) {
	tl.t.Logf("DEBUG: %s %v", msg, fields)
}

func (tl *testLogger) Info(msg string, fields map[string]interface{}) {
	tl.t.Logf("INFO: %s %v", msg, fields)
}

func (tl *testLogger) Warn(msg string, fields map[string]interface{}) {
	tl.t.Logf("WARN: %s %v", msg, fields)
}

func (tl *testLogger) Error(msg string, fields map[string]interface{}) {
	tl.t.Logf("ERROR: %s %v", msg, fields)
}

func (tl *testLogger) WithFields(fields map[string]interface{}) logger.Logger {
	return tl
}

func (tl *testLogger) WithError(err error) logger.Logger {
	return tl
}

func (tl *testLogger) With(fields map[string]interface{}) logger.Logger {
	return tl
}

type memoryOrders struct {
	mu      sync.Mutex
	byID    map[string]*models.Order
	byKey   map[string]string
	failNow error
	inserts int
}

func newMemoryOrders() *memoryOrders {
	return &memoryOrders{byID: map[string]*models.Order{}, byKey: map[string]string{}}
}

func (m *memoryOrders) InsertOrder(ctx context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	if m.failNow != nil {
		err := m.failNow
		m.failNow = nil
		return err
	}
	if _, ok := m.byKey[order.IdempotencyKey]; ok {
		return fmt.Errorf("%w: %s", store.ErrDuplicateKey, order.IdempotencyKey)
	}
	m.byID[order.ID] = order
	m.byKey[order.IdempotencyKey] = order.ID
	return nil
}

func (m *memoryOrders) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.byID[id]; ok {
		return o, nil
	}
	return nil, store.ErrNotFound
}

func (m *memoryOrders) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	m.mu.Lock()
	id, ok := m.byKey[key]
	m.mu.Unlock()
	if !ok {
		return nil, store.ErrNotFound
	}
	return m.GetOrder(ctx, id)
}

type memoryKeys struct {
	mu       sync.Mutex
	keys     map[string]string
	released []string
}

func newMemoryKeys() *memoryKeys {
	return &memoryKeys{keys: map[string]string{}}
}

func (k *memoryKeys) Reserve(ctx context.Context, key string) (string, bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if v, ok := k.keys[key]; ok {
		return v, false, nil
	}
	k.keys[key] = ""
	return "", true, nil
}

func (k *memoryKeys) Bind(ctx context.Context, key, orderID string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys[key] = orderID
	return nil
}

func (k *memoryKeys) Release(ctx context.Context, key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.keys, key)
	k.released = append(k.released, key)
	return nil
}

type fakePayments struct {
	err error
}

func (p *fakePayments) CreateIntent(ctx context.Context, order *models.Order) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	return "pi_" + order.IdempotencyKey, nil
}

type recordingEffect struct {
	name string
	err  error
	mu   sync.Mutex
	seen []string
}

func (e *recordingEffect) Name() string { return e.name }

func (e *recordingEffect) Apply(ctx context.Context, order *models.Order) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seen = append(e.seen, order.ID)
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("effect context has no deadline")
	}
	return e.err
}

func (e *recordingEffect) calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.seen...)
}

type fixture struct {
	submitter *Submitter
	orders    *memoryOrders
	keys      *memoryKeys
	payments  *fakePayments
	notify    *recordingEffect
	index     *recordingEffect
}

func newFixture(t *testing.T, withPayments bool) *fixture {
	f := &fixture{
		orders: newMemoryOrders(),
		keys:   newMemoryKeys(),
		notify: &recordingEffect{name: "notification", err: errors.New("ses throttled")},
		index:  &recordingEffect{name: "search_index"},
	}
	deps := SubmitterDeps{
		Validator: newTestValidator(),
		Orders:    f.orders,
		Keys:      f.keys,
		Effects:   []Effect{f.notify, f.index},
		Clock:     clockwork.NewFakeClockAt(testNow),
	}
	if withPayments {
		f.payments = &fakePayments{}
		deps.Payments = f.payments
	}
	f.submitter = NewSubmitter(SubmitterConfig{Currency: "usd"}, deps, &testLogger{t: t})
	return f
}

func reviewSession(t *testing.T, sessionID string) (*FormState, *Sequencer) {
	t.Helper()
	v := newTestValidator()
	form := NewFormState(sessionID, "", nil)
	completeDraft(t, form)
	require.NoError(t, form.SetAddOnQuantity("rush-processing", 2))

	seq := NewSequencer(StandardFlow(), true)
	for seq.Current().ID != StepReview {
		require.NoError(t, seq.Next(&form.Draft, v))
	}
	return form, seq
}

func TestSubmitter_Submit_Success(t *testing.T) {
	f := newFixture(t, true)
	form, seq := reviewSession(t, "sess-1")

	result, err := f.submitter.Submit(context.Background(), form, seq, "key-1")
	require.NoError(t, err)
	require.NotNil(t, result.Order)
	assert.False(t, result.Replayed)

	order := result.Order
	assert.Equal(t, int64(19800), order.AddonsTotal)
	assert.Equal(t, int64(69700), order.TotalAmount)
	assert.Equal(t, "usd", order.Currency)
	assert.Equal(t, "pi_sess-1:key-1", order.PaymentRef)
	assert.Equal(t, models.OrderStatusSubmitted, order.Status)
	assert.Equal(t, testNow, order.CreatedAt)
	assert.True(t, seq.IsTerminal())

	f.submitter.Wait()
	assert.Equal(t, []string{order.ID}, f.notify.calls(), "failing effect still ran once")
	assert.Equal(t, []string{order.ID}, f.index.calls())

	stored, err := f.orders.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, stored.ID)
	assert.Equal(t, order.ID, f.keys.keys["sess-1:key-1"])
}

func TestSubmitter_Submit_InvalidDraft(t *testing.T) {
	f := newFixture(t, false)
	form, seq := reviewSession(t, "sess-1")
	form.SetContact(models.Contact{Name: "A"})

	result, err := f.submitter.Submit(context.Background(), form, seq, "key-1")
	assert.Nil(t, result)

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Contains(t, stepErr.Fields, FieldEmail)
	assert.Equal(t, 0, f.orders.inserts)
	assert.Equal(t, StepReview, seq.Current().ID)
}

func TestSubmitter_Submit_NotOnReview(t *testing.T) {
	f := newFixture(t, false)
	form := NewFormState("sess-1", "", nil)
	seq := NewSequencer(StandardFlow(), false)

	_, err := f.submitter.Submit(context.Background(), form, seq, "key-1")
	assert.ErrorIs(t, err, ErrNotOnReview)
}

func TestSubmitter_Submit_CompletedDuplicateReturnsOriginal(t *testing.T) {
	f := newFixture(t, false)

	formA, seqA := reviewSession(t, "sess-a")
	first, err := f.submitter.Submit(context.Background(), formA, seqA, "shared-key")
	require.NoError(t, err)

	// the same wizard retries after losing the response
	retryForm, retrySeq := reviewSession(t, "sess-a")
	second, err := f.submitter.Submit(context.Background(), retryForm, retrySeq, "shared-key")
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, first.Order.ID, second.Order.ID)
	assert.True(t, retrySeq.IsTerminal())
	assert.Equal(t, 1, f.orders.inserts)

	f.submitter.Wait()
	assert.Len(t, f.index.calls(), 1, "effects run once per order")
}

func TestSubmitter_Submit_KeyIsScopedToSession(t *testing.T) {
	f := newFixture(t, false)

	formA, seqA := reviewSession(t, "sess-a")
	first, err := f.submitter.Submit(context.Background(), formA, seqA, "shared-key")
	require.NoError(t, err)

	formB, seqB := reviewSession(t, "sess-b")
	formB.SetContact(models.Contact{Name: "Grace Hopper", Email: "grace@example.com", Phone: "+1 555 0199"})
	second, err := f.submitter.Submit(context.Background(), formB, seqB, "shared-key")
	require.NoError(t, err)

	assert.False(t, second.Replayed)
	assert.NotEqual(t, first.Order.ID, second.Order.ID)
	assert.Equal(t, "sess-b", second.Order.SessionID)
	assert.Equal(t, "grace@example.com", second.Order.Contact.Email)
	assert.Equal(t, 2, f.orders.inserts)
	f.submitter.Wait()
}

func TestSubmitter_Submit_ForeignOrderNotReplayed(t *testing.T) {
	tests := []struct {
		name            string
		reservation     bool
		expectedInserts int
		expectedRelease []string
	}{
		{name: "bound reservation", reservation: true},
		{name: "unique constraint", expectedInserts: 1, expectedRelease: []string{"sess-b:k"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, false)
			foreign := &models.Order{ID: "order-a", IdempotencyKey: "sess-b:k", SessionID: "sess-a"}
			f.orders.byID[foreign.ID] = foreign
			f.orders.byKey[foreign.IdempotencyKey] = foreign.ID
			if tt.reservation {
				f.keys.keys["sess-b:k"] = foreign.ID
			}

			form, seq := reviewSession(t, "sess-b")
			result, err := f.submitter.Submit(context.Background(), form, seq, "k")

			assert.Nil(t, result)
			require.Error(t, err)
			assert.Equal(t, apperrors.ErrCodeIdempotencyKeyReused, apperrors.Normalize(err).Code)
			assert.Equal(t, StepReview, seq.Current().ID)
			assert.Equal(t, tt.expectedInserts, f.orders.inserts)
			assert.Equal(t, tt.expectedRelease, f.keys.released)
		})
	}
}

func TestSubmitter_Submit_ConcurrentDuplicateRejected(t *testing.T) {
	f := newFixture(t, false)
	f.keys.keys["sess-1:busy-key"] = ""

	form, seq := reviewSession(t, "sess-1")
	_, err := f.submitter.Submit(context.Background(), form, seq, "busy-key")
	require.Error(t, err)

	stdErr := apperrors.Normalize(err)
	assert.Equal(t, apperrors.ErrCodeSubmissionInFlight, stdErr.Code)
	assert.Equal(t, 0, f.orders.inserts)
}

func TestSubmitter_Submit_BoundOrderMissing(t *testing.T) {
	f := newFixture(t, false)
	f.keys.keys["sess-1:old-key"] = "order-gone"

	form, seq := reviewSession(t, "sess-1")
	_, err := f.submitter.Submit(context.Background(), form, seq, "old-key")
	require.Error(t, err)

	stdErr := apperrors.Normalize(err)
	assert.Equal(t, apperrors.ErrCodeOrderNotFound, stdErr.Code)
	assert.Equal(t, 0, f.orders.inserts)
}

func TestSubmitter_Submit_InsertFailureReleasesKey(t *testing.T) {
	f := newFixture(t, false)
	f.orders.failNow = errors.New("connection reset by peer")

	form, seq := reviewSession(t, "sess-1")
	_, err := f.submitter.Submit(context.Background(), form, seq, "key-1")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeOrderInsertFailed, apperrors.Normalize(err).Code)
	assert.Equal(t, []string{"sess-1:key-1"}, f.keys.released)
	assert.Equal(t, StepReview, seq.Current().ID, "user may retry")

	f.submitter.Wait()
	assert.Empty(t, f.notify.calls())

	result, err := f.submitter.Submit(context.Background(), form, seq, "key-1")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Order.ID)
}

func TestSubmitter_Submit_PaymentFailure(t *testing.T) {
	f := newFixture(t, true)
	f.payments.err = errors.New("card_declined")

	form, seq := reviewSession(t, "sess-1")
	_, err := f.submitter.Submit(context.Background(), form, seq, "key-1")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodePaymentFailed, apperrors.Normalize(err).Code)
	assert.Equal(t, 0, f.orders.inserts)
	assert.Equal(t, []string{"sess-1:key-1"}, f.keys.released)
}

func TestSubmitter_Submit_UniqueConstraintWithoutReservations(t *testing.T) {
	f := newFixture(t, false)
	f.submitter.deps.Keys = nil

	formA, seqA := reviewSession(t, "sess-a")
	first, err := f.submitter.Submit(context.Background(), formA, seqA, "key-1")
	require.NoError(t, err)

	retryForm, retrySeq := reviewSession(t, "sess-a")
	second, err := f.submitter.Submit(context.Background(), retryForm, retrySeq, "key-1")
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Order.ID, second.Order.ID)
	f.submitter.Wait()
}
