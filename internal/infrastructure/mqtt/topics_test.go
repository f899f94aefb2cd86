package mqtt

import (
	"reflect"
	"testing"
)

func TestParseTopics(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "empty", input: "", want: nil},
		{name: "single", input: "home/alarm", want: []string{"home/alarm"}},
		{name: "two topics", input: "a,b", want: []string{"a", "b"}},
		{name: "whitespace trimmed", input: " a , b ", want: []string{"a", "b"}},
		{name: "empty segments skipped", input: "a,,b,", want: []string{"a", "b"}},
		{name: "only separators", input: ",,", want: []string{}},
		{name: "wildcards kept", input: "home/+/state,home/#", want: []string{"home/+/state", "home/#"}},
		{name: "order preserved", input: "z,a,m", want: []string{"z", "a", "m"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseTopics(tt.input)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseTopics(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestBrokerURL(t *testing.T) {
	tests := []struct {
		host   string
		port   int
		secure bool
		want   string
	}{
		{host: "localhost", port: 1883, secure: false, want: "tcp://localhost:1883"},
		{host: "broker.local", port: 8883, secure: true, want: "ssl://broker.local:8883"},
		{host: "::1", port: 1883, secure: false, want: "tcp://[::1]:1883"},
	}

	for _, tt := range tests {
		if got := BrokerURL(tt.host, tt.port, tt.secure); got != tt.want {
			t.Errorf("BrokerURL(%q, %d, %v) = %q, want %q", tt.host, tt.port, tt.secure, got, tt.want)
		}
	}
}
