package config

import (
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "", want: 0},
		{in: "30", want: 30 * time.Second},
		{in: "1.5", want: 1500 * time.Millisecond},
		{in: "90s", want: 90 * time.Second},
		{in: "5m", want: 5 * time.Minute},
		{in: " 2h ", want: 2 * time.Hour},
		{in: "-5", wantErr: true},
		{in: "-1m", wantErr: true},
		{in: "soon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseDuration(%q) = %v; want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDuration(%q) error: %v", tt.in, err)
			}
			if got.Std() != tt.want {
				t.Errorf("ParseDuration(%q) = %v; want %v", tt.in, got.Std(), tt.want)
			}
		})
	}
}

func TestDuration_YAML(t *testing.T) {
	var v struct {
		A Duration `yaml:"a"`
		B Duration `yaml:"b"`
	}
	if err := yaml.Unmarshal([]byte("a: 45\nb: 2m\n"), &v); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if v.A.Std() != 45*time.Second || v.B.Std() != 2*time.Minute {
		t.Errorf("got a=%v b=%v", v.A.Std(), v.B.Std())
	}

	if err := yaml.Unmarshal([]byte("a: [1, 2]\n"), &v); err == nil {
		t.Error("expected error for non-scalar duration")
	}

	out, err := yaml.Marshal(struct {
		A Duration `yaml:"a"`
	}{A: Duration(90 * time.Second)})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(out) != "a: 1m30s\n" {
		t.Errorf("Marshal = %q", out)
	}
}

func TestConfig_Interval(t *testing.T) {
	c := &Config{}
	if c.Interval().Std() != DefaultPollInterval {
		t.Errorf("Interval() = %v; want default", c.Interval().Std())
	}

	c.PollInterval = Duration(10 * time.Second)
	if c.Interval().Std() != 10*time.Second {
		t.Errorf("Interval() = %v; want 10s", c.Interval().Std())
	}
}
