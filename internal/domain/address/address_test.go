package address

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validAddress() *Address {
	return &Address{
		UserID:   "u1",
		FullName: "Asha Rao",
		Phone:    "9876543210",
		Pincode:  "560001",
		City:     "Bengaluru",
		State:    "Karnataka",
		Locality: "MG Road",
		Line:     "12 Residency Lane",
	}
}

func TestAddress_Format(t *testing.T) {
	a := validAddress()
	assert.Equal(t, "Asha Rao, 12 Residency Lane, MG Road, Bengaluru, Karnataka - 560001", a.Format())

	a.Locality = ""
	assert.Equal(t, "Asha Rao, 12 Residency Lane, Bengaluru, Karnataka - 560001", a.Format())
}

func TestAddress_Validate(t *testing.T) {
	a := validAddress()
	require.NoError(t, a.Validate())
	assert.Equal(t, TypeHome, a.Type)

	tests := []struct {
		name  string
		mut   func(a *Address)
		field string
	}{
		{name: "missing name", mut: func(a *Address) { a.FullName = " " }, field: "full_name"},
		{name: "missing line", mut: func(a *Address) { a.Line = "" }, field: "address"},
		{name: "short pincode", mut: func(a *Address) { a.Pincode = "5600" }, field: "pincode"},
		{name: "letters in pincode", mut: func(a *Address) { a.Pincode = "56000A" }, field: "pincode"},
		{name: "bad type", mut: func(a *Address) { a.Type = "villa" }, field: "address_type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := validAddress()
			tt.mut(a)

			var vErr *ValidationError
			require.True(t, errors.As(a.Validate(), &vErr))
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

type mockAddressRepo struct {
	addrs []Address
}

func (m *mockAddressRepo) ListByUser(_ context.Context, userID string) ([]Address, error) {
	var out []Address
	for _, a := range m.addrs {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockAddressRepo) Get(_ context.Context, userID, id string) (*Address, error) {
	for _, a := range m.addrs {
		if a.ID == id && a.UserID == userID {
			return &a, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockAddressRepo) Create(_ context.Context, a *Address) error {
	if a.IsDefault {
		for i := range m.addrs {
			if m.addrs[i].UserID == a.UserID {
				m.addrs[i].IsDefault = false
			}
		}
	}
	m.addrs = append(m.addrs, *a)
	return nil
}

func (m *mockAddressRepo) Update(_ context.Context, a *Address) error {
	for i := range m.addrs {
		if m.addrs[i].ID == a.ID {
			m.addrs[i] = *a
			return nil
		}
	}
	return ErrNotFound
}

func (m *mockAddressRepo) Delete(_ context.Context, _, _ string) error { return nil }

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	repo := &mockAddressRepo{}
	s := NewService(repo)

	first := validAddress()
	require.NoError(t, s.Create(ctx, first))
	assert.NotEmpty(t, first.ID)
	assert.True(t, first.IsDefault, "first address becomes default")

	second := validAddress()
	require.NoError(t, s.Create(ctx, second))
	assert.False(t, second.IsDefault)

	third := validAddress()
	third.IsDefault = true
	require.NoError(t, s.Create(ctx, third))

	addrs, err := s.List(ctx, "u1")
	require.NoError(t, err)
	defaults := 0
	for _, a := range addrs {
		if a.IsDefault {
			defaults++
			assert.Equal(t, third.ID, a.ID)
		}
	}
	assert.Equal(t, 1, defaults)
}

func TestDefault(t *testing.T) {
	_, err := Default(nil)
	assert.ErrorIs(t, err, ErrNotFound)

	a, err := Default([]Address{{ID: "a"}, {ID: "b", IsDefault: true}})
	require.NoError(t, err)
	assert.Equal(t, "b", a.ID)

	a, err = Default([]Address{{ID: "a"}, {ID: "b"}})
	require.NoError(t, err)
	assert.Equal(t, "a", a.ID)
}
