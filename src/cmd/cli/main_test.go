package main

import (
	"reflect"
	"strings"
	"testing"
)

func TestPNGValidation(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr bool
	}{
		{"valid magic", []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0x00}, false},
		{"jpeg magic", []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F'}, true},
		{"truncated", []byte{0x89, 'P', 'N'}, true},
		{"empty", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePNG(tt.data)
			if (err != nil) != tt.wantErr {
				t.Errorf("validatePNG() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeLegacyArgs(t *testing.T) {
	in := []string{"im2any-cli", "-file", "x.png", "-action=img2text", "-json", "--verbose", "positional"}
	want := []string{"im2any-cli", "--file", "x.png", "--action=img2text", "--json", "--verbose", "positional"}
	if got := normalizeLegacyArgs(in); !reflect.DeepEqual(got, want) {
		t.Errorf("normalizeLegacyArgs() = %v, want %v", got, want)
	}
}

func TestRootCmdRequiresFile(t *testing.T) {
	opts := &cliOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs([]string{})
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "file") {
		t.Errorf("Execute without --file: err = %v, want required-flag error", err)
	}
}
