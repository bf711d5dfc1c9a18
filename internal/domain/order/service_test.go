package order

import (
	"context"
	"sort"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/messaging"
)

// --- Mock implementations ---

type mockOrderRepo struct {
	orders    map[string]*Order
	updateErr error
}

func newMockOrderRepo(orders ...*Order) *mockOrderRepo {
	m := &mockOrderRepo{orders: make(map[string]*Order)}
	for _, o := range orders {
		m.orders[o.ID] = o
	}
	return m
}

func (m *mockOrderRepo) Create(_ context.Context, o *Order) error {
	m.orders[o.ID] = o
	return nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id string) (*Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockOrderRepo) ListByUser(_ context.Context, userID string) ([]Order, error) {
	var out []Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockOrderRepo) List(_ context.Context, f Filter) ([]Order, error) {
	var out []Order
	for _, o := range m.orders {
		if f.Status == "" || o.Status == f.Status {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *mockOrderRepo) UpdateStatus(_ context.Context, id string, status Status) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.orders[id].Status = status
	return nil
}

func (m *mockOrderRepo) UpdateTracking(_ context.Context, id, number, link string) error {
	o, ok := m.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.TrackingNumber, o.TrackingLink = number, link
	return nil
}

type recordingPublisher struct {
	events []messaging.Event
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, events ...messaging.Event) error {
	r.events = append(r.events, events...)
	return r.err
}

// --- Tests ---

func TestService_Advance(t *testing.T) {
	ctx := context.Background()
	repo := newMockOrderRepo(&Order{ID: "o1", UserID: "u1", Status: StatusPending})
	pub := &recordingPublisher{}
	s := NewService(repo, pub)

	want := []Status{StatusConfirmed, StatusPacked, StatusDispatched, StatusOutForDelivery, StatusDelivered}
	for _, st := range want {
		o, err := s.Advance(ctx, "o1")
		require.NoError(t, err)
		assert.Equal(t, st, o.Status)
	}

	_, err := s.Advance(ctx, "o1")
	assert.ErrorIs(t, err, ErrTerminal)

	require.Len(t, pub.events, len(want))
	last := pub.events[len(pub.events)-1].(messaging.OrderStatusChanged)
	assert.Equal(t, "out_for_delivery", last.From)
	assert.Equal(t, "delivered", last.To)
}

func TestService_Cancel(t *testing.T) {
	ctx := context.Background()
	repo := newMockOrderRepo(
		&Order{ID: "open", Status: StatusPacked},
		&Order{ID: "done", Status: StatusDelivered},
		&Order{ID: "gone", Status: StatusCancelled},
	)
	s := NewService(repo, &recordingPublisher{})

	o, err := s.Cancel(ctx, "open")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, o.Status)
	assert.Equal(t, StatusCancelled, repo.orders["open"].Status)

	_, err = s.Cancel(ctx, "done")
	assert.ErrorIs(t, err, ErrTerminal)
	_, err = s.Cancel(ctx, "gone")
	assert.ErrorIs(t, err, ErrTerminal)

	_, err = s.Cancel(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_SetStatus(t *testing.T) {
	ctx := context.Background()
	repo := newMockOrderRepo(&Order{ID: "o1", Status: StatusDelivered})
	pub := &recordingPublisher{}
	s := NewService(repo, pub)

	// Any enumerated status is accepted, even backwards.
	o, err := s.SetStatus(ctx, "o1", StatusPending)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, o.Status)

	// Same status is a no-op.
	_, err = s.SetStatus(ctx, "o1", StatusPending)
	require.NoError(t, err)
	assert.Len(t, pub.events, 1)

	_, err = s.SetStatus(ctx, "o1", "returned")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestService_PublishFailureIsIgnored(t *testing.T) {
	ctx := context.Background()
	repo := newMockOrderRepo(&Order{ID: "o1", Status: StatusPending})
	s := NewService(repo, &recordingPublisher{err: errors.New("broker down")})

	o, err := s.Advance(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, o.Status)
}

func TestService_UpdateFailure(t *testing.T) {
	ctx := context.Background()
	repo := newMockOrderRepo(&Order{ID: "o1", Status: StatusPending})
	repo.updateErr = errors.New("connection reset")
	pub := &recordingPublisher{}
	s := NewService(repo, pub)

	_, err := s.Advance(ctx, "o1")
	require.Error(t, err)
	assert.Empty(t, pub.events)
}

func TestService_GetForUser(t *testing.T) {
	ctx := context.Background()
	repo := newMockOrderRepo(&Order{ID: "o1", UserID: "alice"})
	s := NewService(repo, &recordingPublisher{})

	o, err := s.GetForUser(ctx, "alice", "o1")
	require.NoError(t, err)
	assert.Equal(t, "o1", o.ID)

	_, err = s.GetForUser(ctx, "bob", "o1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_UpdateTracking(t *testing.T) {
	ctx := context.Background()
	repo := newMockOrderRepo(&Order{ID: "o1", Status: StatusDispatched})
	s := NewService(repo, &recordingPublisher{})

	o, err := s.UpdateTracking(ctx, "o1", "AWB123", "https://track.example/AWB123")
	require.NoError(t, err)
	assert.Equal(t, "AWB123", o.TrackingNumber)
	assert.Equal(t, "https://track.example/AWB123", o.TrackingLink)
}

func TestService_ListFilter(t *testing.T) {
	ctx := context.Background()
	s := NewService(newMockOrderRepo(
		&Order{ID: "a", Status: StatusPending},
		&Order{ID: "b", Status: StatusConfirmed},
	), &recordingPublisher{})

	got, err := s.List(ctx, Filter{Status: StatusPending})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)

	_, err = s.List(ctx, Filter{Status: "bogus"})
	assert.ErrorIs(t, err, ErrInvalidStatus)
}
