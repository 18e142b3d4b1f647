package preprocessing

import (
	"testing"

	"github.com/YuminosukeSato/binclass/pkg/errors"
)

func TestLabelEncoder_SortedCodes(t *testing.T) {
	le := NewLabelEncoder()
	codes, err := le.FitTransform([]string{"p", "e", "e", "p", "e"})
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}

	want := []int{1, 0, 0, 1, 0}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("codes[%d] = %d, want %d", i, codes[i], want[i])
		}
	}

	classes := le.Classes()
	if len(classes) != 2 || classes[0] != "e" || classes[1] != "p" {
		t.Errorf("Classes() = %v, want [e p]", classes)
	}
	if code, ok := le.Code("p"); !ok || code != 1 {
		t.Errorf("Code(p) = %d, %v", code, ok)
	}
}

func TestLabelEncoder_IndependentOfRowOrder(t *testing.T) {
	a := NewLabelEncoder()
	b := NewLabelEncoder()
	if err := a.Fit([]string{"x", "b", "s", "f"}); err != nil {
		t.Fatal(err)
	}
	if err := b.Fit([]string{"f", "s", "x", "b", "b"}); err != nil {
		t.Fatal(err)
	}
	for _, v := range []string{"b", "f", "s", "x"} {
		ca, _ := a.Code(v)
		cb, _ := b.Code(v)
		if ca != cb {
			t.Errorf("code of %q differs: %d vs %d", v, ca, cb)
		}
	}
}

func TestLabelEncoder_RoundTrip(t *testing.T) {
	values := []string{"n", "y", "t", "n", "y"}
	le := NewLabelEncoder()
	codes, err := le.FitTransform(values)
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range codes {
		if c < 0 || c >= le.NClasses() {
			t.Errorf("code %d outside [0, %d)", c, le.NClasses())
		}
	}
	back, err := le.InverseTransform(codes)
	if err != nil {
		t.Fatal(err)
	}
	for i := range values {
		if back[i] != values[i] {
			t.Errorf("InverseTransform[%d] = %q, want %q", i, back[i], values[i])
		}
	}
}

func TestLabelEncoder_Errors(t *testing.T) {
	le := NewLabelEncoder()

	if _, err := le.Transform([]string{"a"}); err == nil {
		t.Error("expected NotFittedError before Fit")
	} else {
		var nf *errors.NotFittedError
		if !errors.As(err, &nf) {
			t.Errorf("expected NotFittedError, got %T", err)
		}
	}

	if err := le.Fit(nil); !errors.Is(err, errors.ErrEmptyData) {
		t.Errorf("Fit(nil) error = %v, want ErrEmptyData", err)
	}

	if err := le.Fit([]string{"a", "b"}); err != nil {
		t.Fatal(err)
	}
	if _, err := le.Transform([]string{"c"}); err == nil {
		t.Error("expected error for unseen label")
	}
	if _, err := le.InverseTransform([]int{2}); err == nil {
		t.Error("expected error for out-of-range code")
	}
}
