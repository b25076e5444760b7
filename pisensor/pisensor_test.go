package pisensor

import "testing"

func TestParseReply(t *testing.T) {
	f, err := ParseReply("2026-08-30T12:00:00 23.75\n")
	if err != nil {
		t.Fatal(err)
	}
	if f != 23.75 {
		t.Errorf("got %v, want 23.75", f)
	}
}

func TestParseReplyRejectsWrongFieldCount(t *testing.T) {
	for _, reply := range []string{"", "23.75", "a b c"} {
		if _, err := ParseReply(reply); err == nil {
			t.Errorf("expected an error for %q", reply)
		}
	}
}
