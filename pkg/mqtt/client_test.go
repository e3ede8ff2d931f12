package mqtt

import "testing"

func TestTopicsMatch(t *testing.T) {
	tests := []struct {
		filter string
		topic  string
		want   bool
	}{
		{"iot/v1/update/command/AA:BB:CC:DD:EE:FF", "iot/v1/update/command/AA:BB:CC:DD:EE:FF", true},
		{"iot/v1/update/command/+", "iot/v1/update/command/AA:BB:CC:DD:EE:FF", true},
		{"iot/v1/update/command/+", "iot/v1/update/status/AA:BB:CC:DD:EE:FF", false},
		{"iot/v1/#", "iot/v1/update/command/x", true},
		{"iot/v1/+", "iot/v1/update/command/x", false},
		{"iot/v1/+/command/+", "iot/v1/update/command/x", true},
		{"a/b", "a/b/c", false},
		{"a/b/c", "a/b", false},
	}

	for _, tt := range tests {
		if got := topicsMatch(tt.filter, tt.topic); got != tt.want {
			t.Errorf("topicsMatch(%q, %q) = %v, want %v", tt.filter, tt.topic, got, tt.want)
		}
	}
}

func TestTopicFilter(t *testing.T) {
	if got := topicFilter("$share/workers/iot/v1/update/command/+"); got != "iot/v1/update/command/+" {
		t.Errorf("topicFilter stripped to %q", got)
	}
	if got := topicFilter("iot/v1/online/x"); got != "iot/v1/online/x" {
		t.Errorf("non-shared filter changed to %q", got)
	}
}

func TestClientConfigValidate(t *testing.T) {
	if err := (&ClientConfig{}).Validate(); err == nil {
		t.Error("expected error for empty broker url")
	}
	if err := (&ClientConfig{BrokerURL: "ssl://broker.local:8883"}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
