package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/tabmesh-go/internal/core/domain"
)

func TestDecodeCSVInfersTypes(t *testing.T) {
	doc := strings.Join([]string{
		"city,pop,score,active,seen",
		"oslo,700000,7.5,true,2026-01-02T15:04:05Z",
		"bergen,,3.25,false,2026-02-03T08:00:00Z",
		"tromso,77000,,true,",
	}, "\n")

	snap, err := DecodeCSV([]byte(doc))
	if err != nil {
		t.Fatalf("DecodeCSV: %v", err)
	}
	if snap.Rows() != 3 {
		t.Fatalf("rows = %d, want 3", snap.Rows())
	}

	wantKinds := map[string]domain.Kind{
		"city":   domain.KindString,
		"pop":    domain.KindInt,
		"score":  domain.KindFloat,
		"active": domain.KindBool,
		"seen":   domain.KindTime,
	}
	for i, col := range snap.Schema() {
		if want := wantKinds[col.Name]; col.Type != want {
			t.Errorf("column %d (%s) kind = %s, want %s", i, col.Name, col.Type, want)
		}
	}

	if got := snap.Cell(0, 1).IntVal(); got != 700000 {
		t.Fatalf("pop[0] = %d, want 700000", got)
	}
	if got := snap.Cell(1, 2).FloatVal(); got != 3.25 {
		t.Fatalf("score[1] = %v, want 3.25", got)
	}
	missing := snap.MissingCounts()
	for col, want := range map[string]int{"pop": 1, "score": 1, "seen": 1} {
		if missing[col] != want {
			t.Errorf("%s missing = %d, want %d", col, missing[col], want)
		}
	}
}

func TestDecodeCSVNumericStaysNumeric(t *testing.T) {
	// "1"/"0" also parse as bool; the narrower numeric kinds win.
	doc := "flag,ratio\n1,1\n0,0.5\n"
	snap, err := DecodeCSV([]byte(doc))
	if err != nil {
		t.Fatalf("DecodeCSV: %v", err)
	}
	if got := snap.Schema()[0].Type; got != domain.KindInt {
		t.Fatalf("flag kind = %s, want int", got)
	}
	if got := snap.Schema()[1].Type; got != domain.KindFloat {
		t.Fatalf("ratio kind = %s, want float", got)
	}
}

func TestDecodeCSVEmptyColumnDefaultsToString(t *testing.T) {
	snap, err := DecodeCSV([]byte("name,notes\nada,\nbob,\n"))
	if err != nil {
		t.Fatalf("DecodeCSV: %v", err)
	}
	if got := snap.Schema()[1].Type; got != domain.KindString {
		t.Fatalf("notes kind = %s, want string", got)
	}
	if got := snap.MissingCounts()["notes"]; got != 2 {
		t.Fatalf("notes missing = %d, want 2", got)
	}
}

func TestDecodeCSVHeaderOnly(t *testing.T) {
	snap, err := DecodeCSV([]byte("a,b\n"))
	if err != nil {
		t.Fatalf("DecodeCSV: %v", err)
	}
	if snap.Rows() != 0 || len(snap.Schema()) != 2 {
		t.Fatalf("rows = %d schema = %d, want 0 and 2", snap.Rows(), len(snap.Schema()))
	}
}

func TestDecodeCSVRejectsMalformed(t *testing.T) {
	for _, doc := range []string{
		"",                // no header
		"a,b\n1,2,3\n",    // ragged row
		"a,b\n\"oops,1\n", // unterminated quote
	} {
		if _, err := DecodeCSV([]byte(doc)); err == nil {
			t.Errorf("DecodeCSV(%q) succeeded, want error", doc)
		}
	}
}

func TestHTTPLoaderLoadCSV(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Write([]byte("name,score\nada,90\nbob,40\n"))
	}))
	defer srv.Close()

	l := NewHTTPLoader(srv.URL, 5*time.Second)
	snap, err := l.Load(context.Background(), "sess-1", "current")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if snap.Rows() != 2 {
		t.Fatalf("rows = %d, want 2", snap.Rows())
	}
	if got := snap.Schema()[1].Type; got != domain.KindInt {
		t.Fatalf("score kind = %s, want int", got)
	}
	if got := snap.Cell(0, 1).IntVal(); got != 90 {
		t.Fatalf("score[0] = %d, want 90", got)
	}
}
