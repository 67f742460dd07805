package pricecheck_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hyperengineering/pricecheck"
)

func TestEntityName_IsValid(t *testing.T) {
	for _, e := range pricecheck.ValidEntityNames() {
		if !e.IsValid() {
			t.Errorf("EntityName(%q).IsValid() = false, want true", e)
		}
	}
	if pricecheck.EntityName("Shelves").IsValid() {
		t.Error("EntityName(Shelves).IsValid() = true, want false")
	}
	if n := len(pricecheck.DownloadSets()); n != 9 {
		t.Errorf("len(DownloadSets()) = %d, want 9", n)
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in      string
		valid   bool
		fixed   string
		wantErr bool
	}{
		{"1.5", true, "1.50", false},
		{"2,49", true, "2.49", false},
		{" 3 ", true, "3.00", false},
		{"", false, "0.00", false},
		{"abc", false, "", true},
	}
	for _, tt := range tests {
		p, err := pricecheck.ParsePrice(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePrice(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err != nil {
			continue
		}
		if p.Valid != tt.valid {
			t.Errorf("ParsePrice(%q).Valid = %v, want %v", tt.in, p.Valid, tt.valid)
		}
		if p.Fixed2() != tt.fixed {
			t.Errorf("ParsePrice(%q).Fixed2() = %q, want %q", tt.in, p.Fixed2(), tt.fixed)
		}
	}
}

func TestPrice_JSONLenient(t *testing.T) {
	var v struct {
		A pricecheck.Price
		B pricecheck.Price
		C pricecheck.Price
		D pricecheck.Price
	}
	if err := json.Unmarshal([]byte(`{"A": 1.25, "B": "2.50", "C": null, "D": ""}`), &v); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if v.A.Fixed2() != "1.25" || v.B.Fixed2() != "2.50" {
		t.Errorf("A, B = %q, %q", v.A.Fixed2(), v.B.Fixed2())
	}
	if v.C.Valid || v.D.Valid {
		t.Error("null and empty prices should be unset")
	}

	out, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"A":1.25,"B":2.5,"C":null,"D":null}`
	if string(out) != want {
		t.Errorf("Marshal = %s, want %s", out, want)
	}
}

func TestParseDateTime(t *testing.T) {
	want := time.Date(2026, 5, 1, 10, 30, 0, 0, time.UTC)
	tests := []string{
		"2026-05-01T10:30:00Z",
		"2026-05-01T10:30:00.000Z",
		"2026-05-01T10:30:00",
		"/Date(1777631400000)/",
	}
	for _, in := range tests {
		got, ok := pricecheck.ParseDateTime(in)
		if !ok {
			t.Errorf("ParseDateTime(%q) failed", in)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("ParseDateTime(%q) = %v, want %v", in, got, want)
		}
	}
	if _, ok := pricecheck.ParseDateTime("yesterday"); ok {
		t.Error("ParseDateTime(yesterday) succeeded")
	}
}

func TestDateTime_JSON(t *testing.T) {
	d := pricecheck.At(time.Date(2026, 5, 1, 10, 30, 0, 0, time.UTC))
	out, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(out) != `"2026-05-01T10:30:00.000Z"` {
		t.Errorf("Marshal = %s", out)
	}

	var zero pricecheck.DateTime
	out, _ = json.Marshal(zero)
	if string(out) != "null" {
		t.Errorf("Marshal(zero) = %s, want null", out)
	}

	var back pricecheck.DateTime
	if err := json.Unmarshal([]byte(`"not a date"`), &back); err != nil {
		t.Fatalf("Unmarshal should be lenient: %v", err)
	}
	if !back.IsZero() {
		t.Error("unparseable date should decode as unset")
	}
}

func TestDecodeProduct_PreservesUnknownFields(t *testing.T) {
	doc := pricecheck.Document{
		"_id":                 "Products_AS_C_A_D_F_C_G_1",
		"_rev":                "1-abc",
		"entityName":          "Products",
		"SyncKey":             "Products_AS_C_A_D_F_C_G_1",
		"MaterialDescription": "Milk",
		"NormalPrice":         json.Number("0.99"),
		"Plant":               "P001",
	}

	p, err := pricecheck.DecodeProduct(doc)
	if err != nil {
		t.Fatalf("DecodeProduct: %v", err)
	}
	if p.MaterialDescription != "Milk" || p.NormalPrice.Fixed2() != "0.99" || p.Rev != "1-abc" {
		t.Errorf("decoded = %+v", p)
	}

	p.Brand = "Acme"
	out, err := p.Document()
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	if out.String("Plant") != "P001" {
		t.Errorf("Plant = %q, want carried over", out.String("Plant"))
	}
	if out.String("Brand") != "Acme" {
		t.Errorf("Brand = %q, want Acme", out.String("Brand"))
	}
	if out.Rev() != "1-abc" {
		t.Errorf("Rev = %q, want 1-abc", out.Rev())
	}

	p.Rev = ""
	out, _ = p.Document()
	if _, ok := out["_rev"]; ok {
		t.Error("_rev should be dropped when the product has no revision")
	}
}

func TestDecodeProduct_NumericTextFields(t *testing.T) {
	doc := pricecheck.Document{
		"_id":               "Products_1",
		"entityName":        "Products",
		"SyncKey":           "Products_1",
		"Product":           json.Number("1001"),
		"LiquidContent":     1.5,
		"LiquidContentUnit": "L",
		"EAN":               json.Number("4006381333931"),
		"Brand":             true,
	}

	p, err := pricecheck.DecodeProduct(doc)
	if err != nil {
		t.Fatalf("DecodeProduct: %v", err)
	}
	if p.LiquidContent != "1.5" || p.Code != "1001" || p.EAN != "4006381333931" || p.Brand != "true" {
		t.Errorf("decoded = %+v", p)
	}
	if _, ok := doc["LiquidContent"].(float64); !ok {
		t.Error("source document was modified")
	}
}

func TestDecodeProduct_WrongEntity(t *testing.T) {
	if _, err := pricecheck.DecodeProduct(pricecheck.Document{"_id": "a", "entityName": "Areas"}); err == nil {
		t.Error("DecodeProduct(Areas) error = nil, want error")
	}
}

func TestProduct_PendingClassification(t *testing.T) {
	p := &pricecheck.Product{Area: "A01", Division: "UNKNOWN_DIVISION"}
	if !p.PendingClassification() {
		t.Error("PendingClassification() = false with a placeholder level")
	}
	p.SetPath(pricecheck.NewPath("A", "B", "C", "D", "E"))
	if p.PendingClassification() {
		t.Error("PendingClassification() = true for a classified product")
	}
}

func TestErrors(t *testing.T) {
	terr := &pricecheck.TransportError{Operation: "upload", StatusCode: 503, Err: errors.New("unavailable")}
	if terr.Error() != "transport: upload failed (status 503): unavailable" {
		t.Errorf("Error() = %q", terr.Error())
	}
	if !errors.Is(terr, terr.Err) {
		t.Error("TransportError should unwrap")
	}

	ve := &pricecheck.ValidationError{Field: "NormalPrice", Message: "must be greater than zero"}
	if ve.Error() != "validation: NormalPrice: must be greater than zero" {
		t.Errorf("Error() = %q", ve.Error())
	}
	if !pricecheck.IsConflict(errors.Join(errors.New("x"), pricecheck.ErrConflict)) {
		t.Error("IsConflict should see a joined conflict")
	}
}
