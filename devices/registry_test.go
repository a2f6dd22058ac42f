package devices

import (
	"testing"

	"github.com/CiRIP/ez-reset/errkind"
)

func TestByModelResolvesCatalogEntry(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	d, err := r.ByModel("XP-900")
	if err != nil {
		t.Fatalf("ByModel: %v", err)
	}

	wantModel := []byte{0x00, 0x00, 0x0b}
	if string(d.Model) != string(wantModel) {
		t.Fatalf("Model = % x, want % x", d.Model, wantModel)
	}
	if len(d.Counters) != 2 {
		t.Fatalf("len(Counters) = %d, want 2", len(d.Counters))
	}
	if d.Counters[0].Addresses[0] != 0x1a || d.Counters[0].Addresses[1] != 0x1b {
		t.Fatalf("Counters[0].Addresses = %v", d.Counters[0].Addresses)
	}
	if d.Counters[0].Max != 46080 {
		t.Fatalf("Counters[0].Max = %d, want 46080", d.Counters[0].Max)
	}
	if len(d.Reset) != 5 {
		t.Fatalf("len(Reset) = %d, want 5", len(d.Reset))
	}
	if v, ok := d.Reset[0x49]; !ok || v != 0x0f {
		t.Fatalf("Reset[0x49] = %d, %v", v, ok)
	}
}

func TestByModelUnknownModel(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	_, err = r.ByModel("NO-SUCH-PRINTER")
	if err == nil {
		t.Fatal("expected an error for an unknown model")
	}
	if got := errkind.OfCode(err); got != errkind.UnknownModel {
		t.Fatalf("OfCode(err) = %q, want %q", got, errkind.UnknownModel)
	}
}

func TestModelsListsCatalog(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	models := r.Models()
	if len(models) != 4 {
		t.Fatalf("len(Models()) = %d, want 4", len(models))
	}
}
