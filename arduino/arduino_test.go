package arduino

import "testing"

func TestParseReading(t *testing.T) {
	line := "1012.3 45.6 0 0 1 2 24.50\r\n"
	r, err := ParseReading(line)
	if err != nil {
		t.Fatal(err)
	}
	if r.AirTemp != 24.50 {
		t.Errorf("got air temp %v, want 24.50", r.AirTemp)
	}
	if len(r.Fields) != 7 {
		t.Errorf("got %d fields, want 7", len(r.Fields))
	}
}

func TestParseReadingUnwrapsNegative(t *testing.T) {
	// -3252.30 is a wrapped 24.50 from the board's int16 register
	r, err := ParseReading("0 0 0 0 0 0 -3252.30")
	if err != nil {
		t.Fatal(err)
	}
	if diff := r.AirTemp - 24.50; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("got air temp %v, want 24.50", r.AirTemp)
	}
}

func TestParseReadingRejectsShortLine(t *testing.T) {
	_, err := ParseReading("1 2 3")
	if err == nil {
		t.Error("expected an error for a 3 field sample")
	}
}

func TestParseReadingRejectsGarbage(t *testing.T) {
	_, err := ParseReading("a b c d e f g")
	if err == nil {
		t.Error("expected an error for a non-numeric sample")
	}
}
