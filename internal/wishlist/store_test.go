package wishlist

import (
	"testing"

	"github.com/fjod/jewel_cart/internal/cart"
	"github.com/fjod/jewel_cart/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var necklace = domain.Product{ID: "N7", Name: "Temple Necklace"}

func TestAdd_DuplicateIsRejected(t *testing.T) {
	s := NewStore()
	v := &domain.Variant{Weight: "20g", Carat: "22K"}

	_, err := s.Add(necklace, v)
	require.NoError(t, err)
	_, err = s.Add(necklace, &domain.Variant{Weight: "20g", Carat: "22K", Purity: "916"})
	assert.ErrorIs(t, err, ErrAlreadyInWishlist)

	assert.Equal(t, 1, s.Len())
}

func TestAdd_VariantsAreSeparateEntries(t *testing.T) {
	s := NewStore()

	_, err := s.Add(necklace, &domain.Variant{Weight: "20g"})
	require.NoError(t, err)
	_, err = s.Add(necklace, &domain.Variant{Weight: "25g"})
	require.NoError(t, err)
	_, err = s.Add(necklace, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, s.Len())
	assert.True(t, s.Contains(domain.ResolveKey(necklace.ID, &domain.Variant{})))
}

func TestRemoveAndClear(t *testing.T) {
	s := NewStore()
	item, err := s.Add(necklace, nil)
	require.NoError(t, err)

	s.Remove(item.Key)
	s.Remove(item.Key)
	assert.False(t, s.Contains(item.Key))

	_, err = s.Add(necklace, nil)
	require.NoError(t, err)
	s.Clear()
	assert.Equal(t, 0, s.Len())
}

func TestRestore_DropsDuplicates(t *testing.T) {
	s := NewStore()
	s.Restore([]domain.WishlistItem{
		{ProductID: "A"},
		{ProductID: "A"},
		{ProductID: "B", Variant: &domain.Variant{Carat: "18K"}},
	})

	items := s.Items()
	require.Len(t, items, 2)
	assert.Equal(t, domain.ResolveKey("A", nil), items[0].Key)
}

func TestMoveToCart(t *testing.T) {
	s := NewStore()
	c := cart.NewStore()
	item, err := s.Add(necklace, &domain.Variant{Weight: "20g", Price: decimal.NewFromInt(54000)})
	require.NoError(t, err)

	line, err := s.MoveToCart(item.Key, c)
	require.NoError(t, err)

	assert.Equal(t, item.Key, line.Key)
	assert.Equal(t, 1, line.Quantity)
	assert.True(t, decimal.NewFromInt(54000).Equal(line.UnitPrice))
	assert.False(t, s.Contains(item.Key))
	assert.Equal(t, 1, c.Len())

	_, err = s.MoveToCart(item.Key, c)
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestSubscribe(t *testing.T) {
	s := NewStore()
	var events []Event
	s.Subscribe(func(e Event) { events = append(events, e) })

	item, err := s.Add(necklace, nil)
	require.NoError(t, err)
	_, _ = s.Add(necklace, nil)
	s.Remove(item.Key)
	s.Remove(item.Key)

	require.Len(t, events, 2)
	assert.Equal(t, EventAdded, events[0].Kind)
	assert.Equal(t, EventRemoved, events[1].Kind)
}
