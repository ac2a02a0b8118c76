package progress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	r.DeclareCounter("[collect] All orders", 10)
	r.DeclareCounter("[collect] Year 2023 orders", 3)

	r.Increment("[collect] All orders", 1)
	r.Increment("[collect] All orders", 2)
	r.Increment("[collect] Year 2023 orders", 1)
	r.Increment("unknown", 5)

	assert.Equal(t, 3, r.Count("[collect] All orders"))
	assert.Equal(t, 1, r.Count("[collect] Year 2023 orders"))
	assert.Equal(t, 0, r.Count("unknown"))
	assert.Equal(t, 10, r.Total("[collect] All orders"))
	assert.Equal(t, []string{"[collect] All orders", "[collect] Year 2023 orders"}, r.Labels())

	// Redeclaring resets the count
	r.DeclareCounter("[collect] All orders", 12)
	assert.Equal(t, 0, r.Count("[collect] All orders"))
	assert.Len(t, r.Labels(), 2)

	r.Close()
	assert.True(t, r.Closed())
}

func TestBarReporter(t *testing.T) {
	var buf bytes.Buffer
	r := NewBarReporter(&buf, true)

	r.DeclareCounter("[collect] Count of year", 2)
	r.Increment("[collect] Count of year", 1)
	r.Increment("[collect] Count of year", 1)
	r.Increment("missing", 1)
	r.Close()

	assert.Equal(t, 2, r.Count("[collect] Count of year"))
	assert.Equal(t, 0, r.Count("missing"))
	assert.Contains(t, buf.String(), "[collect] Count of year")
}

func TestBarReporter_Hidden(t *testing.T) {
	var buf bytes.Buffer
	r := NewBarReporter(&buf, false)

	r.DeclareCounter("[collect] All orders", 5)
	r.Increment("[collect] All orders", 4)
	r.Close()

	assert.Equal(t, 4, r.Count("[collect] All orders"))
	assert.Empty(t, buf.String())
}
