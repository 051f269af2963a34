package featureflags

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnabled_BooleanValues(t *testing.T) {
	m := NewManager("a=on,b=off,c=true,d=false,e=1,f=0")

	for _, name := range []string{"a", "c", "e"} {
		assert.True(t, m.Enabled(name, 1), name)
	}
	for _, name := range []string{"b", "d", "f", "missing"} {
		assert.False(t, m.Enabled(name, 1), name)
	}
}

func TestEnabled_PercentageValues(t *testing.T) {
	m := NewManager("always=100%,never=0%,canary=25%,broken=x%")

	assert.True(t, m.Enabled("always", 1))
	assert.False(t, m.Enabled("never", 1))
	assert.False(t, m.Enabled("broken", 1))

	first := m.Enabled("canary", 42)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, m.Enabled("canary", 42), "rollout must be deterministic per user")
	}
	assert.False(t, m.Enabled("canary", 0), "percentage rollout requires a user")
}

func TestEnabled_StatusEmailsIgnoresCase(t *testing.T) {
	m := NewManager("STATUS_EMAILS = On")
	assert.True(t, m.Enabled(FlagStatusEmails, 0))
}

func TestNilManager(t *testing.T) {
	var m *Manager
	assert.False(t, m.Enabled(FlagStatusEmails, 1))
	assert.Empty(t, m.Raw())
	assert.Empty(t, m.Snapshot(1))
}

func TestParseAndSnapshot(t *testing.T) {
	m := NewManager(" bad ,x=on, y = 20% ,z=off ")

	assert.Equal(t, map[string]string{"x": "on", "y": "20%", "z": "off"}, m.Raw())

	snap := m.Snapshot(123)
	assert.Len(t, snap, 3)
	assert.True(t, snap["x"])
	assert.False(t, snap["z"])
}

func TestEnabled_PercentagesAreClamped(t *testing.T) {
	m := NewManager("over=150%,under=-5%,bare=40")

	assert.True(t, m.Enabled("over", 7))
	assert.False(t, m.Enabled("under", 7))
	assert.False(t, m.Enabled("bare", 7), "a percentage needs the % suffix")
	assert.Equal(t, "150%", m.Raw()["over"])
}
