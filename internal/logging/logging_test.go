package logging

import "testing"

func TestNew(t *testing.T) {
	tests := []struct {
		level   string
		wantErr bool
	}{
		{"debug", false},
		{"info", false},
		{"warn", false},
		{"error", false},
		{"INFO", false},
		{"verbose", true},
		{"trace", true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger, err := New(tt.level)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("New(%q) expected error, got nil", tt.level)
				}
				return
			}
			if err != nil {
				t.Fatalf("New(%q) returned error: %v", tt.level, err)
			}
			if logger == nil {
				t.Fatalf("New(%q) returned nil logger", tt.level)
			}
			_ = logger.Sync()
		})
	}
}
