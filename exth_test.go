package mobi

import (
	"encoding/binary"
	"errors"
	"reflect"
	"testing"
)

// exthBlock builds a raw EXTH block from tag/value pairs.
func exthBlock(entries ...any) []byte {
	var body []byte
	n := 0
	for i := 0; i+1 < len(entries); i += 2 {
		var value []byte
		switch v := entries[i+1].(type) {
		case string:
			value = []byte(v)
		case []byte:
			value = v
		}
		body = binary.BigEndian.AppendUint32(body, uint32(entries[i].(int)))
		body = binary.BigEndian.AppendUint32(body, uint32(len(value)+8))
		body = append(body, value...)
		n++
	}
	out := []byte("EXTH")
	out = binary.BigEndian.AppendUint32(out, uint32(len(body)+12))
	out = binary.BigEndian.AppendUint32(out, uint32(n))
	return append(out, body...)
}

func TestParseEXTH_Normal(t *testing.T) {
	b := exthBlock(
		100, "First Author",
		100, "Second Author",
		503, "Updated Title",
		201, []byte{0, 0, 0, 3},
		201, []byte{0, 0, 0, 9}, // repeated numeric tag keeps the first
		999, "unknown tag",
		524, "en-GB",
	)

	m, found, err := parseEXTH(b, decodeUTF8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found {
		t.Fatal("found = false, want true")
	}
	if m.rawCount != 7 {
		t.Errorf("rawCount = %d, want 7", m.rawCount)
	}

	if got, _ := m.first(ExthAuthor); got != "First Author" {
		t.Errorf("first(ExthAuthor) = %q, want %q", got, "First Author")
	}
	if got := m.all(ExthAuthor); !reflect.DeepEqual(got, []string{"First Author", "Second Author"}) {
		t.Errorf("all(ExthAuthor) = %v", got)
	}
	if got, _ := m.first(ExthUpdatedTitle); got != "Updated Title" {
		t.Errorf("first(ExthUpdatedTitle) = %q", got)
	}
	if got, ok := m.number(ExthCoverOffset); !ok || got != 3 {
		t.Errorf("number(ExthCoverOffset) = %d, %v; want 3, true", got, ok)
	}
	if _, ok := m.first(ExthPublisher); ok {
		t.Error("first(ExthPublisher) reported present")
	}
}

func TestParseEXTH_AllReturnsCopy(t *testing.T) {
	m, _, err := parseEXTH(exthBlock(105, "Rust"), decodeUTF8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := m.all(ExthSubject)
	got[0] = "mutated"
	if v, _ := m.first(ExthSubject); v != "Rust" {
		t.Errorf("all() returned an alias; first = %q", v)
	}
}

func TestParseEXTH_CP1252(t *testing.T) {
	m, _, err := parseEXTH(exthBlock(100, []byte("Caf\xe9")), decodeCP1252)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, _ := m.first(ExthAuthor); got != "Café" {
		t.Errorf("author = %q, want %q", got, "Café")
	}
}

func TestParseEXTH_NoMagic(t *testing.T) {
	m, found, err := parseEXTH([]byte("not an exth block"), decodeUTF8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Error("found = true without magic")
	}
	if m == nil {
		t.Fatal("map is nil")
	}
}

func TestParseEXTH_Errors(t *testing.T) {
	tests := []struct {
		name string
		data func() []byte
	}{
		{
			name: "entry header truncated",
			data: func() []byte {
				b := exthBlock(100, "abc")
				binary.BigEndian.PutUint32(b[8:], 2)
				return b
			},
		},
		{
			name: "entry length below prefix",
			data: func() []byte {
				b := exthBlock(100, "abc")
				binary.BigEndian.PutUint32(b[16:], 7)
				return b
			},
		},
		{
			name: "entry length past block",
			data: func() []byte {
				b := exthBlock(100, "abc")
				binary.BigEndian.PutUint32(b[16:], 1000)
				return b
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := parseEXTH(tt.data(), decodeUTF8)
			if !errors.Is(err, ErrMalformedHeader) {
				t.Fatalf("error = %v, want ErrMalformedHeader", err)
			}
		})
	}
}

func TestDecodeEXTHNumber(t *testing.T) {
	tests := []struct {
		in   []byte
		want uint32
	}{
		{[]byte{0x01}, 1},
		{[]byte{0x01, 0x02}, 0x0102},
		{[]byte{0, 0, 0, 7}, 7},
		{[]byte{0xAA, 0, 0, 1, 0}, 0x100},
	}
	for _, tt := range tests {
		if got := decodeEXTHNumber(tt.in); got != tt.want {
			t.Errorf("decodeEXTHNumber(%x) = %#x, want %#x", tt.in, got, tt.want)
		}
	}
}
