package validation

import (
	"errors"
	"strings"
	"testing"
)

// --- ValidateUTF8 / ValidateNoNullBytes Tests ---

func TestValidateUTF8(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"ascii", "Ana Cruz", false},
		{"empty", "", false},
		{"accented", "José Núñez", false},
		{"invalid bytes", string([]byte{0xff, 0xfe}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUTF8("name", tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateUTF8(%q) = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
			if err != nil && err.Field != "name" {
				t.Errorf("error.Field = %q, want %q", err.Field, "name")
			}
		})
	}
}

func TestValidateNoNullBytes_WithNull(t *testing.T) {
	if err := ValidateNoNullBytes("notes", "pago\x00efectivo"); err == nil {
		t.Error("ValidateNoNullBytes(with null) = nil, want error")
	}
	if err := ValidateNoNullBytes("notes", "pago efectivo"); err != nil {
		t.Errorf("ValidateNoNullBytes(clean) = %v, want nil", err)
	}
}

// --- ValidateMaxLength Tests ---

func TestValidateMaxLength_AtLimit(t *testing.T) {
	if err := ValidateMaxLength("name", strings.Repeat("a", 120), 120); err != nil {
		t.Errorf("ValidateMaxLength(at limit) = %v, want nil", err)
	}
}

func TestValidateMaxLength_MultibyteRunes(t *testing.T) {
	// 120 runes, 240 bytes
	if err := ValidateMaxLength("name", strings.Repeat("ñ", 120), 120); err != nil {
		t.Errorf("ValidateMaxLength(120 runes) = %v, want nil", err)
	}
	err := ValidateMaxLength("name", strings.Repeat("ñ", 121), 120)
	if err == nil || !strings.Contains(err.Message, "120") {
		t.Errorf("ValidateMaxLength(121 runes) = %v, want length error", err)
	}
}

// --- ValidatePhone Tests ---

func TestValidatePhone(t *testing.T) {
	tests := []struct {
		value   string
		wantErr bool
	}{
		{"", false},
		{"5512345678", false},
		{"+52 55 1234-5678", false},
		{"123456", true},
		{"1234567890123456", true},
		{"55-CALL-NOW", true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			err := ValidatePhone("phone", tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePhone(%q) = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
		})
	}
}

func TestNormalizePhone(t *testing.T) {
	if got := NormalizePhone("+52 (55) 1234-5678"); got != "525512345678" {
		t.Errorf("NormalizePhone = %q", got)
	}
}

// --- ValidateRequired / ValidateEnum / ValidateRange Tests ---

func TestValidateRequired_WhitespaceOnly(t *testing.T) {
	for _, v := range []string{"", "   ", "\t\n"} {
		err := ValidateRequired("name", v)
		if err == nil || err.Message != "is required" {
			t.Errorf("ValidateRequired(%q) = %v, want required error", v, err)
		}
	}
}

func TestValidateEnum_CaseSensitive(t *testing.T) {
	allowed := []string{"Mensual", "Quincenal", "Día"}
	if err := ValidateEnum("plan", "Mensual", allowed); err != nil {
		t.Errorf("ValidateEnum(valid) = %v, want nil", err)
	}
	err := ValidateEnum("plan", "mensual", allowed)
	if err == nil {
		t.Fatal("ValidateEnum(lowercase) = nil, want error")
	}
	if !strings.Contains(err.Message, "Mensual, Quincenal, Día") {
		t.Errorf("message = %q, want allowed values listed", err.Message)
	}
}

func TestValidateRange(t *testing.T) {
	tests := []struct {
		value   float64
		wantErr bool
	}{
		{0, false},
		{500, false},
		{100000, false},
		{-1, true},
		{100000.5, true},
	}
	for _, tt := range tests {
		err := ValidateRange("price", tt.value, 0, 100000)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateRange(%v) = %v, wantErr %v", tt.value, err, tt.wantErr)
		}
	}
}

// --- Collector Tests ---

func TestCollector_IgnoresNil(t *testing.T) {
	c := &Collector{}
	c.Add(nil)
	c.Add(&ValidationError{Field: "field", Message: "error"})
	c.Add(nil)

	if len(c.Errors()) != 1 {
		t.Errorf("len(Errors()) = %d, want 1 (nil should be ignored)", len(c.Errors()))
	}
}

func TestCollector_ErrNilWhenClean(t *testing.T) {
	c := &Collector{}
	if c.HasErrors() {
		t.Error("HasErrors() = true, want false for empty collector")
	}
	if err := c.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
}

func TestCollector_ErrReportsEveryField(t *testing.T) {
	c := &Collector{}
	c.Add(ValidateRequired("name", ""))
	c.Add(ValidatePhone("phone", "12"))

	err := c.Err()
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("Err() = %v, want ErrInvalid", err)
	}
	var verr *Error
	if !errors.As(err, &verr) || len(verr.Fields) != 2 {
		t.Fatalf("Err() = %v, want 2 field errors", err)
	}
	if !strings.Contains(err.Error(), "name is required") || !strings.Contains(err.Error(), "phone must be") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestValidateText_StopsAtInvalidUTF8(t *testing.T) {
	c := &Collector{}
	ValidateText(c, "notes", string([]byte{0xff}), 10)
	if len(c.Errors()) != 1 {
		t.Errorf("errors = %v, want only the UTF-8 error", c.Errors())
	}

	c = &Collector{}
	ValidateText(c, "notes", "a\x00"+strings.Repeat("b", 20), 10)
	if len(c.Errors()) != 2 {
		t.Errorf("errors = %v, want null byte and length errors", c.Errors())
	}
}
