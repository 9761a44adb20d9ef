package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"riskcast/internal/audit"
)

func rec(seq int64) audit.Record {
	return audit.Record{SequenceNumber: seq, EventType: audit.EventDecisionGenerated}
}

func sequences(records []audit.Record) []int64 {
	out := make([]int64, len(records))
	for i, r := range records {
		out[i] = r.SequenceNumber
	}
	return out
}

func TestRingBuffer(t *testing.T) {
	t.Run("dequeues in insertion order", func(t *testing.T) {
		b := NewRingBuffer(4)
		for i := range int64(3) {
			assert.False(t, b.Enqueue(rec(i)))
		}
		assert.Equal(t, []int64{0, 1}, sequences(b.DequeueBatch(2)))
		assert.Equal(t, []int64{2}, sequences(b.DequeueBatch(10)))
		assert.Nil(t, b.DequeueBatch(1))
	})

	t.Run("drops oldest when full", func(t *testing.T) {
		b := NewRingBuffer(3)
		for i := range int64(5) {
			b.Enqueue(rec(i))
		}
		assert.Equal(t, 3, b.Len())
		assert.Equal(t, int64(2), b.Dropped())
		assert.Equal(t, []int64{2, 3, 4}, sequences(b.DequeueBatch(3)))
	})

	t.Run("wraps around", func(t *testing.T) {
		b := NewRingBuffer(2)
		b.Enqueue(rec(0))
		b.Enqueue(rec(1))
		b.DequeueBatch(1)
		b.Enqueue(rec(2))
		assert.Equal(t, []int64{1, 2}, sequences(b.DequeueBatch(2)))
		assert.Zero(t, b.Dropped())
	})

	t.Run("non-positive capacity uses default", func(t *testing.T) {
		assert.Equal(t, defaultCapacity, NewRingBuffer(0).capacity)
	})
}
