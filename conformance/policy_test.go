// policy_test.go - Tests fuer die Auswahl-Policy
// Testet aktive und zurueckgehaltene Muster sowie die
// Vorschlagslogik bei unbekannten Gruppennamen.
package conformance

import (
	"strings"
	"testing"
)

func TestPolicyActive(t *testing.T) {
	policy := DefaultPolicy()

	cases := []struct {
		name   string
		active bool
	}{
		{"test_relu_default", true},
		{"test_conv_with_strides_padding", true},
		{"test_leakyrelu_example", true},
		{"test_reduce_mean_default_axes_keepdims_example", true},
		{"test_reduce_log_sum_exp_default_axes_keepdims_example", true},
		// ReduceSum ist absichtlich nicht enthalten.
		{"test_reduce_sum_default", false},
		// LSTM wird von keinem Include-Muster erfasst.
		{"test_lstm_defaults", false},
		{"test_sigmoid_example", false},
		{"", false},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			if got := policy.Active(tt.name); got != tt.active {
				t.Errorf("Active(%q) = %v, erwartet %v", tt.name, got, tt.active)
			}
		})
	}
}

func TestPolicySubset(t *testing.T) {
	policy, err := NewPolicy("relu", "abs")
	if err != nil {
		t.Fatalf("NewPolicy: %v", err)
	}
	if !policy.Active("test_relu_default") {
		t.Error("relu-Faelle muessen aktiv sein")
	}
	if policy.Active("test_conv_basic") {
		t.Error("conv ist in dieser Policy nicht enthalten")
	}
}

func TestPolicyUnknownGroup(t *testing.T) {
	_, err := NewPolicy("reduce_meen")
	if err == nil {
		t.Fatal("NewPolicy akzeptierte unbekannte Gruppe")
	}
	if !strings.Contains(err.Error(), "reduce_mean") {
		t.Errorf("Fehlermeldung ohne Vorschlag: %v", err)
	}
}

func TestGroupsSorted(t *testing.T) {
	groups := Groups()
	if len(groups) != len(includeGroups) {
		t.Fatalf("Groups lieferte %d Namen, erwartet %d", len(groups), len(includeGroups))
	}
	for i := 1; i < len(groups); i++ {
		if groups[i-1] >= groups[i] {
			t.Fatalf("Groups nicht sortiert: %q vor %q", groups[i-1], groups[i])
		}
	}
	for _, withheld := range groups {
		if withheld == "reduce_sum" {
			t.Error("reduce_sum darf nicht als Gruppe angeboten werden")
		}
	}
}
