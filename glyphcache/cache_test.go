package glyphcache

import "testing"

func newTestCache() *Cache {
	// 8x16 cells, four tiles per row, tile 0 reserved for the cursor.
	return New(Config{CellWidth: 8, CellHeight: 16, LimitX: 32})
}

// TestGetOrReserve verifies first-sight reservation and subsequent hits.
func TestGetOrReserve(t *testing.T) {
	c := newTestCache()

	key := Key{Chars: "A", CellCount: 1}
	v1, pending := c.GetOrReserve(key)
	if !pending {
		t.Fatal("first GetOrReserve: pending = false, want true")
	}
	if len(v1.Coords) != 1 {
		t.Fatalf("got %d coords, want 1", len(v1.Coords))
	}
	// Tile 0 is reserved; the first glyph lands one cell in.
	if v1.Coords[0] != (Coord{X: 8, Y: 0}) {
		t.Errorf("first tile = %+v, want {8 0}", v1.Coords[0])
	}

	v2, pending := c.GetOrReserve(key)
	if pending {
		t.Error("second GetOrReserve: pending = true, want false")
	}
	if v1 != v2 {
		t.Error("second GetOrReserve returned a different value")
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.TilesReserved != 1 {
		t.Errorf("stats = %+v, want 1 hit, 1 miss, 1 tile", stats)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}

// TestKeyIdentity verifies keys compare structurally including the style
// bits and cell span.
func TestKeyIdentity(t *testing.T) {
	c := newTestCache()

	v1, _ := c.GetOrReserve(Key{Chars: "A", CellCount: 1})
	v2, pending := c.GetOrReserve(Key{Chars: "A", CellCount: 1, Bold: true})
	if !pending {
		t.Error("bold variant shared the regular placement")
	}
	if v1 == v2 {
		t.Error("distinct keys returned the same value")
	}
}

// TestRowWrap verifies tile allocation wraps to the next row at the atlas
// width limit and publishes the new fill position.
func TestRowWrap(t *testing.T) {
	c := newTestCache()

	// Row 0 holds four tiles; tile 0 is reserved.
	a, _ := c.GetOrReserve(Key{Chars: "A", CellCount: 1})
	b, _ := c.GetOrReserve(Key{Chars: "BB", CellCount: 2})
	if a.Coords[0] != (Coord{X: 8, Y: 0}) {
		t.Errorf("A at %+v, want {8 0}", a.Coords[0])
	}
	if b.Coords[0] != (Coord{X: 16, Y: 0}) || b.Coords[1] != (Coord{X: 24, Y: 0}) {
		t.Errorf("BB at %+v, want {16 0} {24 0}", b.Coords)
	}

	// The row is full; the next tile starts row 1.
	d, _ := c.GetOrReserve(Key{Chars: "C", CellCount: 1})
	if d.Coords[0] != (Coord{X: 0, Y: 16}) {
		t.Errorf("C at %+v, want {0 16}", d.Coords[0])
	}

	x, y := c.FillCursor()
	if x != 8 || y != 16 {
		t.Errorf("fill cursor = %d,%d, want 8,16", x, y)
	}
}

// TestZeroCellCount verifies a zero span still reserves one tile.
func TestZeroCellCount(t *testing.T) {
	c := newTestCache()

	v, pending := c.GetOrReserve(Key{Chars: "A"})
	if !pending || len(v.Coords) != 1 {
		t.Errorf("zero span: pending=%v coords=%d, want one reserved tile", pending, len(v.Coords))
	}
}

// TestReset verifies Reset forgets placements and rewinds the fill cursor
// past the reserved tiles.
func TestReset(t *testing.T) {
	c := newTestCache()

	c.GetOrReserve(Key{Chars: "A", CellCount: 1})
	c.GetOrReserve(Key{Chars: "B", CellCount: 1})
	c.Reset()

	if c.Len() != 0 {
		t.Errorf("Len after Reset = %d, want 0", c.Len())
	}
	x, y := c.FillCursor()
	if x != 8 || y != 0 {
		t.Errorf("fill cursor after Reset = %d,%d, want 8,0", x, y)
	}

	v, pending := c.GetOrReserve(Key{Chars: "A", CellCount: 1})
	if !pending {
		t.Error("placement survived Reset")
	}
	if v.Coords[0] != (Coord{X: 8, Y: 0}) {
		t.Errorf("first tile after Reset = %+v, want {8 0}", v.Coords[0])
	}
}

// TestReserveTiles verifies additional reserved tiles shift the first
// allocation.
func TestReserveTiles(t *testing.T) {
	c := New(Config{CellWidth: 8, CellHeight: 16, LimitX: 64, ReserveTiles: 3})

	v, _ := c.GetOrReserve(Key{Chars: "A", CellCount: 1})
	if v.Coords[0] != (Coord{X: 24, Y: 0}) {
		t.Errorf("first tile = %+v, want {24 0}", v.Coords[0])
	}
}
