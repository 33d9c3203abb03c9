package sanitizer

import (
	"reflect"
	"testing"
)

func TestNormalizeClocks(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{
			name:  "trim whitespace",
			input: []string{" 09:00 ", "10:00  "},
			want:  []string{"09:00", "10:00"},
		},
		{
			name:  "remove duplicates keeping order",
			input: []string{"10:00", "09:00", "10:00", " 09:00"},
			want:  []string{"10:00", "09:00"},
		},
		{
			name:  "filter empty strings",
			input: []string{"09:00", "", "  ", "11:30"},
			want:  []string{"09:00", "11:30"},
		},
		{
			name:  "empty input",
			input: []string{},
			want:  []string{},
		},
		{
			name:  "nil input",
			input: nil,
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeClocks(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NormalizeClocks(%v) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeStringSlice_CustomNormalizer(t *testing.T) {
	got := NormalizeStringSlice([]string{"Cardiology", " cardiology", "Dermatology"}, func(s string) string {
		return lower(TrimAndNormalize(s))
	})
	want := []string{"cardiology", "dermatology"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}
