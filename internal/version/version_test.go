package version

import (
	"testing"
)

func TestParseGDB(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected uint32
		wantErr  bool
	}{
		{name: "major minor patch", input: "7.11.1", expected: 7011001},
		{name: "major minor", input: "7.12", expected: 7012000},
		{name: "date instead of patch", input: "7.12.20161027", expected: 7012000},
		{name: "patch and date", input: "8.0.1.20180101", expected: 8000001},
		{name: "surrounding space", input: " 7.4 ", expected: 7004000},
		{name: "two digit major", input: "10.1", wantErr: true},
		{name: "missing minor", input: "7", wantErr: true},
		{name: "empty minor", input: "7.", wantErr: true},
		{name: "non numeric minor", input: "7.x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseGDB(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %q, got %d", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestGDBToInt_PanicsOnMalformed(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for malformed version")
		}
	}()
	GDBToInt("12.1")
}

func TestExtractGDB(t *testing.T) {
	tests := []struct {
		line     string
		expected uint32
		ok       bool
	}{
		{"GNU gdb (GDB) 7.12.1", 7012001, true},
		{"GNU gdb 6.8.50.20080730", 6008050, true},
		{"GNU gdb (GDB; openSUSE 13.2) 7.8", 7008000, true},
		{"GNU gdb (GDB) Fedora 7.12.1-48.fc25", 7012001, true},
		{"GNU gdb (GDB) 8.0.50.20170725-git", 8000050, true},
		{"GNU gdb (Ubuntu 12.1-0ubuntu1) 12.1", 0, false},
		{"no version here", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, ok := ExtractGDB(tt.line)
			if ok != tt.ok || got != tt.expected {
				t.Errorf("ExtractGDB(%q) = %d, %v; want %d, %v", tt.line, got, ok, tt.expected, tt.ok)
			}
		})
	}
}

func TestExtractLLDB(t *testing.T) {
	tests := []struct {
		line string
		vers string
		rust bool
		ok   bool
	}{
		{"LLDB-179.5", "179", false, true},
		{"lldb-300.2.51", "300", false, true},
		{"lldb version 6.0.1", "600", false, true},
		{"lldb version 6.0.1 rust-enabled", "600", true, true},
		{"", "", false, false},
		{"something else", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			vers, rust, ok := ExtractLLDB(tt.line)
			if vers != tt.vers || rust != tt.rust || ok != tt.ok {
				t.Errorf("ExtractLLDB(%q) = %q, %v, %v", tt.line, vers, rust, ok)
			}
		})
	}
}

func TestCompareLLVM(t *testing.T) {
	tests := []struct {
		a, b     string
		expected int
	}{
		{"4.0.1", "3.9", 1},
		{"3.9", "3.9", 0},
		{"3.8.1-rust", "3.9", -1},
		{"11.0", "4.0", 1},
	}
	for _, tt := range tests {
		got, err := CompareLLVM(tt.a, tt.b)
		if err != nil {
			t.Fatalf("CompareLLVM(%q, %q): %v", tt.a, tt.b, err)
		}
		if got != tt.expected {
			t.Errorf("CompareLLVM(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.expected)
		}
	}

	if _, err := CompareLLVM("banana", "3.9"); err == nil {
		t.Error("expected error for malformed version")
	}
}
