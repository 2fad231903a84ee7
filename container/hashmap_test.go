package container

import (
	"math/rand/v2"
	"testing"

	"github.com/pkg/errors"
)

func TestStringHasher(t *testing.T) {
	if got := StringHasher(""); got != 0x811c9dc5 {
		t.Fatalf("hash(\"\")=%#x", got)
	}
	if got := StringHasher("a"); got != 0xe40c292c {
		t.Fatalf("hash(\"a\")=%#x", got)
	}
}

func TestHashMap_PutGetErase(t *testing.T) {
	m := NewHashMap[int, int](IntegerHasher[int])
	const n = 1000
	for i := 0; i < n; i++ {
		m.Put(i, i)
	}
	for i := 0; i < n; i++ {
		m.Put(i, i*2)
	}
	if m.Len() != n {
		t.Fatalf("Len=%d", m.Len())
	}
	r := rand.New(rand.NewPCG(3, 4))
	erased := map[int]bool{}
	for _, k := range r.Perm(n)[:600] {
		if err := m.Erase(k); err != nil {
			t.Fatalf("erase %d: %v", k, err)
		}
		erased[k] = true
	}
	for i := 0; i < n; i++ {
		v, err := m.Get(i)
		if erased[i] {
			if !errors.Is(err, ErrNoSuchItem) {
				t.Fatalf("erased key %d still present", i)
			}
			continue
		}
		if err != nil || v != i*2 {
			t.Fatalf("Get(%d)=%d,%v", i, v, err)
		}
	}
	if err := m.Erase(-1); !errors.Is(err, ErrNoSuchItem) {
		t.Fatalf("erase missing: %v", err)
	}
}

func TestHashMap_ResizeBounds(t *testing.T) {
	m := NewStringHashMap[int]()
	m.Put("x", 1)
	if m.Buckets() != 16 {
		t.Fatalf("initial buckets=%d", m.Buckets())
	}
	keys := make([]string, 0, 100)
	for i := 0; i < 100; i++ {
		k := string(rune('A'+i%26)) + string(rune('a'+i/26))
		keys = append(keys, k)
		m.Put(k, i)
		if 2*m.Len() >= m.Buckets() {
			t.Fatalf("load too high: %d/%d", m.Len(), m.Buckets())
		}
	}
	for _, k := range keys {
		_ = m.Erase(k)
	}
	_ = m.Erase("x")
	if m.Len() != 0 || m.Buckets() != 16 {
		t.Fatalf("after erase all: len=%d buckets=%d", m.Len(), m.Buckets())
	}
}

// Every key lands in the last bucket so probe chains wrap around.
func TestHashMap_BackShiftWraps(t *testing.T) {
	m := NewHashMap[int, string](func(int) uint32 { return 0xFFFFFFFF })
	for i := 0; i < 6; i++ {
		m.Put(i, string(rune('a'+i)))
	}
	for _, k := range []int{0, 3} {
		if err := m.Erase(k); err != nil {
			t.Fatal(err)
		}
	}
	for _, k := range []int{1, 2, 4, 5} {
		if v, ok := m.Lookup(k); !ok || v != string(rune('a'+k)) {
			t.Fatalf("Lookup(%d)=%q,%v", k, v, ok)
		}
	}
}

func TestHashMap_RefEqualClone(t *testing.T) {
	m := NewStringHashMap[int]()
	*m.Ref("hits")++
	*m.Ref("hits")++
	if v, _ := m.Get("hits"); v != 2 {
		t.Fatalf("hits=%d", v)
	}
	eq := func(a, b int) bool { return a == b }
	c := m.Clone()
	if !m.Equal(c, eq) {
		t.Fatal("clone not equal")
	}
	c.Put("hits", 3)
	if m.Equal(c, eq) {
		t.Fatal("maps with different values reported equal")
	}
	if !c.HasValue(3, eq) || c.HasValue(2, eq) {
		t.Fatal("HasValue mismatch")
	}
	c.Clear()
	if c.Len() != 0 || c.HasKey("hits") {
		t.Fatal("clear left entries")
	}
}

func TestMap_Ordered(t *testing.T) {
	m := NewMap[string, string]()
	m.Put("b", "1")
	m.Put("a", "2")
	m.Put("b", "3")
	var keys []string
	for k := range m.All() {
		keys = append(keys, k)
	}
	if len(keys) != 2 || keys[0] != "b" || keys[1] != "a" {
		t.Fatalf("keys=%v", keys)
	}
	if v, _ := m.Get("b"); v != "3" {
		t.Fatalf("b=%q", v)
	}
	*m.Ref("c") = "4"
	if err := m.Erase("a"); err != nil {
		t.Fatal(err)
	}
	if err := m.Erase("a"); !errors.Is(err, ErrNoSuchItem) {
		t.Fatalf("erase twice: %v", err)
	}
	eq := func(a, b string) bool { return a == b }
	other := NewMap[string, string]()
	other.Put("c", "4")
	other.Put("b", "3")
	if !m.Equal(other, eq) {
		t.Fatal("order must not matter for Equal")
	}
}
