package pilas

import "testing"

func TestParseTriggerSource(t *testing.T) {
	cases := []struct {
		in   string
		want TriggerSource
	}{
		{"internal", TriggerInternal},
		{"Internal", TriggerInternal},
		{"external", TriggerExternalAdjustable},
		{"external-adjustable", TriggerExternalAdjustable},
		{"TTL", TriggerTTL},
	}
	for _, c := range cases {
		got, err := ParseTriggerSource(c.in)
		if err != nil {
			t.Errorf("%q: %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("%q: got %v, want %v", c.in, got, c.want)
		}
	}
}

func TestParseTriggerSourceRejectsUnknown(t *testing.T) {
	if _, err := ParseTriggerSource("laser-pointer"); err == nil {
		t.Error("expected an error for an unknown source")
	}
}
