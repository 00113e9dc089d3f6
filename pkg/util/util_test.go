package util

import (
	"errors"
	"testing"
)

func TestCleanCell(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "removes HTML tags", input: "<td class=\"x\">종로구</td>", want: "종로구"},
		{name: "decodes entities", input: "A &amp; B", want: "A & B"},
		{name: "drops BOM", input: "\ufeff자치구", want: "자치구"},
		{name: "collapses whitespace", input: "  9,765\n 623  ", want: "9,765 623"},
		{name: "non-breaking space", input: "1\u00a0000", want: "1 000"},
		{name: "handles empty string", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CleanCell(tt.input)
			if got != tt.want {
				t.Errorf("CleanCell(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestIsBlankRow(t *testing.T) {
	if !IsBlankRow([]string{"", "  ", "\t"}) {
		t.Errorf("expected blank row")
	}
	if IsBlankRow([]string{"", "x"}) {
		t.Errorf("expected non-blank row")
	}
	if !IsBlankRow(nil) {
		t.Errorf("expected nil row to be blank")
	}
}

func TestParseSeparatedFigure(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    float64
		wantErr bool
	}{
		{name: "comma thousands", input: "1,000", want: 1000},
		{name: "spaces", input: " 9 765 623 ", want: 9765623},
		{name: "underscore", input: "1_500", want: 1500},
		{name: "plain", input: "500", want: 500},
		{name: "decimal", input: "1,234.5", want: 1234.5},
		{name: "letter inside", input: "1,2x0", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "only separators", input: ", ,", wantErr: true},
		{name: "hex float", input: "0x1p3", wantErr: true},
		{name: "exponent", input: "1e3", wantErr: true},
		{name: "leading plus", input: "+5", wantErr: true},
		{name: "negative", input: "-5", wantErr: true},
		{name: "infinity", input: "Inf", wantErr: true},
		{name: "bare fraction", input: ".5", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSeparatedFigure(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseSeparatedFigure(%q) = %v, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSeparatedFigure(%q): %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseSeparatedFigure(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParsePlainFigure(t *testing.T) {
	got, err := ParsePlainFigure(" 23.91 ")
	if err != nil {
		t.Fatalf("ParsePlainFigure: %v", err)
	}
	if got != 23.91 {
		t.Errorf("ParsePlainFigure = %v, want 23.91", got)
	}
	if _, err := ParsePlainFigure("1,000"); err == nil {
		t.Errorf("expected plain parse to reject separators")
	}
	for _, in := range []string{"2.1e1", "0x15", "NaN"} {
		if _, err := ParsePlainFigure(in); !errors.Is(err, ErrInvalidFigure) {
			t.Errorf("ParsePlainFigure(%q) = %v, want ErrInvalidFigure", in, err)
		}
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint([]byte("ab"), []byte("c"))
	b := Fingerprint([]byte("a"), []byte("bc"))
	if a == b {
		t.Errorf("fingerprints collide across part boundaries: %s", a)
	}
	if a != Fingerprint([]byte("ab"), []byte("c")) {
		t.Errorf("fingerprint not stable")
	}
	if len(a) != 32 {
		t.Errorf("fingerprint length = %d, want 32", len(a))
	}
	if HashString("x") == HashString("y") {
		t.Errorf("HashString collision")
	}
}
