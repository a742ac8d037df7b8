package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estimatesync/internal"
)

type fakeSource struct {
	mu      sync.Mutex
	records []Record
	err     error
	calls   int
}

func (f *fakeSource) FetchAll(context.Context) ([]Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]Record(nil), f.records...), nil
}

func (f *fakeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeCreator struct {
	next int
	err  error
}

func (f *fakeCreator) Create(_ context.Context, rec Record) (Record, error) {
	if f.err != nil {
		return Record{}, f.err
	}
	f.next++
	rec.ID = "new-" + string(rune('0'+f.next))
	return rec, nil
}

type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *clock {
	return &clock{t: time.Date(2025, 5, 15, 9, 0, 0, 0, time.UTC)}
}

func TestCacheResolveRequiresRefresh(t *testing.T) {
	src := &fakeSource{records: []Record{{ID: "1", Name: "Kitchen Demo"}}}
	c := NewCache(ItemsCache, src)

	_, ok := c.ResolveByName("Kitchen Demo")
	assert.False(t, ok)
	assert.Equal(t, 0, src.Calls(), "lookups must not refresh")

	require.NoError(t, c.Refresh(context.Background()))
	rec, ok := c.ResolveByName("kitchen  demo")
	require.True(t, ok)
	assert.Equal(t, "1", rec.ID)
}

func TestCacheResolveIsIdempotent(t *testing.T) {
	src := &fakeSource{records: []Record{{ID: "1", Name: "Cabinets"}, {ID: "2", Name: "Countertops"}}}
	c := NewCache(ItemsCache, src)
	require.NoError(t, c.Refresh(context.Background()))

	first, ok1 := c.ResolveByName("countertops")
	second, ok2 := c.ResolveByName("countertops")
	assert.Equal(t, ok1, ok2)
	assert.Equal(t, first, second)
}

func TestCachePartialMatchUsesInsertionOrder(t *testing.T) {
	src := &fakeSource{records: []Record{
		{ID: "a", Name: "kitchen tile"},
		{ID: "b", Name: "kitchen tile backsplash"},
	}}
	c := NewCache(ItemsCache, src)
	require.NoError(t, c.Refresh(context.Background()))

	rec, ok := c.ResolveByName("tile")
	require.True(t, ok)
	assert.Equal(t, "kitchen tile", rec.Name)

	rec, ok = c.ResolveByName("Kitchen tile backsplash install")
	require.True(t, ok)
	assert.Equal(t, "a", rec.ID, "containment in either direction, first name wins")
}

func TestCacheGoesStale(t *testing.T) {
	clk := newClock()
	src := &fakeSource{records: []Record{{ID: "1", Name: "Paint"}}}
	c := NewCache(ItemsCache, src, WithClock(clk.Now), WithStaleAfter(time.Hour))
	require.NoError(t, c.Refresh(context.Background()))

	clk.Advance(59 * time.Minute)
	assert.True(t, c.Usable())

	clk.Advance(time.Minute)
	assert.False(t, c.Usable())
	_, ok := c.ResolveByName("Paint")
	assert.False(t, ok)
	assert.Equal(t, 1, src.Calls())
}

func TestCacheCreateAndCache(t *testing.T) {
	clk := newClock()
	src := &fakeSource{records: []Record{{ID: "1", Name: "Paint"}}}
	rate := decimal.RequireFromString("450.00")
	c := NewCache(ItemsCache, src, WithClock(clk.Now), WithCreator(&fakeCreator{}))
	require.NoError(t, c.Refresh(context.Background()))
	refreshed := c.LastRefreshed()

	id, err := c.CreateAndCache(context.Background(), Record{Name: "Drywall Patch", Rate: &rate})
	require.NoError(t, err)
	assert.Equal(t, "new-1", id)

	rec, ok := c.ResolveByName("drywall patch")
	require.True(t, ok)
	assert.Equal(t, id, rec.ID)
	assert.True(t, rec.Rate.Equal(rate))

	byID, ok := c.ByID(id)
	require.True(t, ok)
	assert.Equal(t, "Drywall Patch", byID.Name)

	assert.Equal(t, refreshed, c.LastRefreshed())
	assert.True(t, c.Usable())
	assert.Equal(t, 2, c.Len())
}

func TestCacheCreateFailureLeavesIndex(t *testing.T) {
	src := &fakeSource{records: []Record{{ID: "1", Name: "Paint"}}}
	c := NewCache(ItemsCache, src, WithCreator(&fakeCreator{err: errors.New("status 400")}))
	require.NoError(t, c.Refresh(context.Background()))

	_, err := c.CreateAndCache(context.Background(), Record{Name: "Trim"})
	require.ErrorContains(t, err, "status 400")
	assert.Equal(t, 1, c.Len())
}

func TestCacheCreateWithoutCreator(t *testing.T) {
	c := NewCache(ItemsCache, &fakeSource{})
	_, err := c.CreateAndCache(context.Background(), Record{Name: "Trim"})
	require.Error(t, err)
}

func TestCacheRefreshFailureKeepsSnapshot(t *testing.T) {
	src := &fakeSource{records: []Record{{ID: "1", Name: "Paint"}}}
	c := NewCache(ItemsCache, src)
	require.NoError(t, c.Refresh(context.Background()))

	src.err = errors.New("timeout")
	require.Error(t, c.Refresh(context.Background()))
	_, ok := c.ResolveByName("paint")
	assert.True(t, ok)
}

func TestDirectoryRefreshesOnceWhenStale(t *testing.T) {
	clk := newClock()
	src := &fakeSource{records: []Record{{ID: "c-1", Name: "Mary Sue Mugge"}}}
	d := NewCustomerDirectory(src, "", WithClock(clk.Now))

	for range 3 {
		rec, ok, err := d.ResolveByName(context.Background(), "mary sue mugge")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "c-1", rec.ID)
	}
	assert.Equal(t, 1, src.Calls())

	clk.Advance(2 * time.Hour)
	_, _, err := d.ResolveByName(context.Background(), "Mary Sue Mugge")
	require.NoError(t, err)
	assert.Equal(t, 2, src.Calls())
}

func TestDirectoryConcurrentStaleResolveRefreshesOnce(t *testing.T) {
	src := &fakeSource{records: []Record{{ID: "c-1", Name: "Jordan Blake"}}}
	d := NewCustomerDirectory(src, "")

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = d.ResolveByName(context.Background(), "Jordan Blake")
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, src.Calls())
}

func TestDirectoryResolveCustomerID(t *testing.T) {
	src := &fakeSource{records: []Record{{ID: "c-1", Name: "Jordan Blake"}}}

	t.Run("match", func(t *testing.T) {
		d := NewCustomerDirectory(src, "c-default")
		id, err := d.ResolveCustomerID(context.Background(), "Jordan Blake")
		require.NoError(t, err)
		assert.Equal(t, "c-1", id)
	})

	t.Run("default", func(t *testing.T) {
		d := NewCustomerDirectory(src, "c-default")
		id, err := d.ResolveCustomerID(context.Background(), "Unknown Person")
		require.NoError(t, err)
		assert.Equal(t, "c-default", id)
	})

	t.Run("unresolvable", func(t *testing.T) {
		d := NewCustomerDirectory(src, "")
		_, err := d.ResolveCustomerID(context.Background(), "Unknown Person")
		require.ErrorIs(t, err, internal.ErrUnresolvableCustomer)
	})

	t.Run("refresh failure without default", func(t *testing.T) {
		d := NewCustomerDirectory(&fakeSource{err: errors.New("401")}, "")
		_, err := d.ResolveCustomerID(context.Background(), "Jordan Blake")
		require.ErrorIs(t, err, internal.ErrUnresolvableCustomer)
		assert.ErrorContains(t, err, "401")
	})
}

type memMetadata struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memMetadata) SetMetadata(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func TestWarm(t *testing.T) {
	items := NewItemCatalog(&fakeSource{records: []Record{{ID: "i-1", Name: "Paint"}}})
	customers := NewCustomerDirectory(&fakeSource{records: []Record{{ID: "c-1", Name: "Jordan Blake"}}}, "")
	meta := &memMetadata{data: map[string]string{}}

	require.NoError(t, Warm(context.Background(), meta, items, customers))
	assert.True(t, items.Usable())
	assert.True(t, customers.Usable())
	assert.Contains(t, meta.data, "cache.items.last_refresh")
	assert.Contains(t, meta.data, "cache.customers.last_refresh")
}

func TestWarmReportsFailure(t *testing.T) {
	items := NewItemCatalog(&fakeSource{err: errors.New("boom")})
	err := Warm(context.Background(), nil, items)
	require.ErrorContains(t, err, "refresh items cache")
}
