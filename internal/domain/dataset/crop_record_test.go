package dataset

import "testing"

func TestExtras(t *testing.T) {
	var r CropRecord
	got, err := r.Extras()
	if err != nil || len(got) != 0 {
		t.Fatalf("empty Extra: got=%v err=%v", got, err)
	}

	r.SetExtras(map[string]string{"farm": "A-1"})
	got, err = r.Extras()
	if err != nil || got["farm"] != "A-1" {
		t.Fatalf("round trip: got=%v err=%v", got, err)
	}

	r.ID = 7
	r.Extra = []byte(`{"farm": 3}`)
	if _, err := r.Extras(); err == nil {
		t.Fatalf("want error for non-string extra values")
	}
}
