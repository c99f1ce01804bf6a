package security

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateBody(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		body     string
		maxBytes int
		want     error
	}{
		{"small object", `{"message":"hi"}`, 1024, nil},
		{"at limit", strings.Repeat("1", 16), 16, nil},
		{"over limit", strings.Repeat("1", 17), 16, ErrMessageTooLarge},
		{"default limit", `{"message":"hi"}`, 0, nil},
		{"malformed", `{"message":`, 1024, ErrInvalidJSON},
		{"empty", ``, 1024, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := ValidateBody([]byte(tt.body), tt.maxBytes, 0); !errors.Is(err, tt.want) {
				t.Errorf("ValidateBody(%q) = %v, want %v", tt.body, err, tt.want)
			}
		})
	}
}

func TestValidateJSONDepth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		json string
		max  int
		want error
	}{
		{"flat object", `{"key": "value"}`, 1, nil},
		{"nested within limit", `{"a": {"b": {"c": 1}}}`, 3, nil},
		{"nested over limit", `{"a": {"b": {"c": {"d": 1}}}}`, 3, ErrJSONTooDeep},
		{"array over limit", `[[[[1]]]]`, 3, ErrJSONTooDeep},
		{"scalar", `"hello"`, 1, nil},
		{"default limit", `{"a":{"b":1}}`, 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := ValidateJSONDepth([]byte(tt.json), tt.max); !errors.Is(err, tt.want) {
				t.Errorf("ValidateJSONDepth(%q, %d) = %v, want %v", tt.json, tt.max, err, tt.want)
			}
		})
	}
}

func TestValidateJSONDepth_DefaultRejectsDeepNesting(t *testing.T) {
	t.Parallel()

	body := strings.Repeat(`{"a":`, 20) + "1" + strings.Repeat("}", 20)
	if err := ValidateJSONDepth([]byte(body), 0); !errors.Is(err, ErrJSONTooDeep) {
		t.Errorf("got %v, want ErrJSONTooDeep", err)
	}
}

func TestValidateUtterance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		max  int
		want error
	}{
		{"plain", "What data do you collect?", 0, nil},
		{"multibyte at limit", "données", 7, nil},
		{"too long", "données!", 7, ErrMessageTooLarge},
		{"invalid utf8", "bad \xff byte", 0, ErrInvalidText},
		{"empty", "", 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := ValidateUtterance(tt.text, tt.max); !errors.Is(err, tt.want) {
				t.Errorf("ValidateUtterance(%q) = %v, want %v", tt.text, err, tt.want)
			}
		})
	}
}

func BenchmarkValidateBody(b *testing.B) {
	data := []byte(`{"message": "How long do you keep my location history?"}`)
	for range b.N {
		_ = ValidateBody(data, 0, 0)
	}
}
