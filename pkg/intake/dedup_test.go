package intake

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeduperNilClientNeverDrops(t *testing.T) {
	d := NewDeduper(nil, time.Minute)
	assert.False(t, d.Seen(context.Background(), "servicenow", "case-1"))
	assert.False(t, d.Seen(context.Background(), "servicenow", "case-1"))
}

func TestDeduperNilReceiverNeverDrops(t *testing.T) {
	var d *Deduper
	assert.False(t, d.Seen(context.Background(), "servicenow", "case-1"))
}
