package shared

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestLogger(t *testing.T) {
	t.Run("ComponentLogger", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&buf)
		ComponentLogger(logger, "ranking").Info("ranked", "count", 3)

		out := buf.String()
		if !strings.Contains(out, "component=ranking") {
			t.Errorf("expected component key in output, got %q", out)
		}
		if !strings.Contains(out, "count=3") {
			t.Errorf("expected count key in output, got %q", out)
		}
	})

	t.Run("SetLogLevel", func(t *testing.T) {
		tc := []struct {
			name  string
			level string
			want  log.Level
		}{
			{name: "debug", level: "debug", want: log.DebugLevel},
			{name: "mixed case", level: " WARN ", want: log.WarnLevel},
			{name: "unknown keeps current", level: "verbose", want: log.InfoLevel},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				logger := NewLogger(&bytes.Buffer{})
				logger.SetLevel(log.InfoLevel)
				SetLogLevel(logger, tt.level)
				if got := logger.GetLevel(); got != tt.want {
					t.Errorf("SetLogLevel(%q) level = %v, want %v", tt.level, got, tt.want)
				}
			})
		}
	})

	t.Run("WithLogger nil parent", func(t *testing.T) {
		if WithLogger(nil, "k", "v") == nil {
			t.Fatal("expected a discard logger for nil parent")
		}
	})
}

func TestGenerateID(t *testing.T) {
	a, b := GenerateID(), GenerateID()
	if a == b {
		t.Fatalf("expected unique ids, got %s twice", a)
	}
	if len(a) != 36 {
		t.Errorf("expected uuid string of length 36, got %d", len(a))
	}
}

func TestAssemblyError(t *testing.T) {
	cause := fmt.Errorf("status 502")
	err := fmt.Errorf("assemble: %w", StepFailed("Appending", cause))

	if !errors.Is(err, ErrAssemblyStepFailed) {
		t.Error("expected error to match ErrAssemblyStepFailed")
	}
	if !errors.Is(err, cause) {
		t.Error("expected error to match underlying cause")
	}

	step, ok := FailedStep(err)
	if !ok || step != "Appending" {
		t.Errorf("expected step Appending, got %q (ok=%v)", step, ok)
	}

	if _, ok := FailedStep(cause); ok {
		t.Error("plain errors should not carry a step")
	}
}

func TestBrowserCommand(t *testing.T) {
	tc := []struct {
		goos    string
		want    string
		wantErr bool
	}{
		{goos: "darwin", want: "open"},
		{goos: "linux", want: "xdg-open"},
		{goos: "windows", want: "rundll32"},
		{goos: "plan9", wantErr: true},
	}

	for _, tt := range tc {
		t.Run(tt.goos, func(t *testing.T) {
			cmd, err := browserCommand(tt.goos, "https://accounts.spotify.com/authorize")
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error for unsupported platform")
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !strings.HasSuffix(cmd.Path, tt.want) && cmd.Args[0] != tt.want {
				t.Errorf("expected command %s, got %v", tt.want, cmd.Args)
			}
		})
	}
}
