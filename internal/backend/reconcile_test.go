package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReconcile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		exists     bool
		wantCreate bool
	}{
		{name: "existing backend is left alone", exists: true, wantCreate: false},
		{name: "absent backend gets created", exists: false, wantCreate: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			plan := Reconcile(State{Exists: tt.exists})
			assert.Equal(t, tt.wantCreate, plan.CreateBackend)
		})
	}
}

// Reconcile must be pure: the same state always yields the same plan.
func TestReconcile_Deterministic(t *testing.T) {
	t.Parallel()

	state := State{Exists: true, Bucket: "b", Table: "t"}
	for i := 0; i < 10; i++ {
		assert.Equal(t, Reconcile(state), Reconcile(state))
	}
}
