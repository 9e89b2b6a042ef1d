package patients

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDate_JSON(t *testing.T) {
	var d Date
	if err := json.Unmarshal([]byte(`"2026-02-10"`), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.Year() != 2026 || d.Month() != time.February || d.Day() != 10 {
		t.Fatalf("parsed = %v", d.Time)
	}

	out, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `"2026-02-10"` {
		t.Fatalf("marshaled = %s", out)
	}
}

func TestDate_JSONTimestampTolerated(t *testing.T) {
	var d Date
	if err := json.Unmarshal([]byte(`"2026-02-10T14:30:00Z"`), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.Format("2006-01-02") != "2026-02-10" {
		t.Fatalf("parsed = %v", d.Time)
	}
}

func TestDate_JSONInvalid(t *testing.T) {
	var d Date
	if err := json.Unmarshal([]byte(`"10/02/2026"`), &d); err == nil {
		t.Fatal("expected error for non-ISO date")
	}
}

func TestDate_NullAndZero(t *testing.T) {
	var d Date
	if err := json.Unmarshal([]byte(`null`), &d); err != nil {
		t.Fatalf("unmarshal null: %v", err)
	}
	if !d.IsZero() {
		t.Fatal("null should parse to the zero date")
	}

	out, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != "null" {
		t.Fatalf("zero date marshaled = %s, want null", out)
	}
}

func TestDate_ScanAndValue(t *testing.T) {
	var d Date
	if err := d.Scan(time.Date(2026, time.March, 4, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if d.Format("2006-01-02") != "2026-03-04" {
		t.Fatalf("scanned = %v", d.Time)
	}

	v, err := d.Value()
	if err != nil {
		t.Fatalf("value: %v", err)
	}
	if _, ok := v.(time.Time); !ok {
		t.Fatalf("value type = %T, want time.Time", v)
	}

	var zero Date
	v, err = zero.Value()
	if err != nil {
		t.Fatalf("zero value: %v", err)
	}
	if v != nil {
		t.Fatalf("zero date value = %v, want nil", v)
	}
}
