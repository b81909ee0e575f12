package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestOrderBeforeCreate_DeadlineIsExactly48Hours(t *testing.T) {
	created := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)
	order := &Order{}
	order.CreatedAt = created

	require.NoError(t, order.BeforeCreate(nil))

	assert.Equal(t, created.Add(48*time.Hour), order.AcceptanceDeadline)
	assert.NotEqual(t, "", order.ID.String())
}

func TestOrderBeforeCreate_KeepsExplicitDeadline(t *testing.T) {
	deadline := time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC)
	order := &Order{AcceptanceDeadline: deadline}
	order.CreatedAt = time.Now()

	require.NoError(t, order.BeforeCreate(nil))

	assert.Equal(t, deadline, order.AcceptanceDeadline)
}

func TestOrderDeadlinePassed(t *testing.T) {
	deadline := time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC)
	order := &Order{AcceptanceDeadline: deadline}

	assert.False(t, order.DeadlinePassed(deadline.Add(-time.Second)))
	assert.False(t, order.DeadlinePassed(deadline))
	assert.True(t, order.DeadlinePassed(deadline.Add(time.Second)))
}

func TestProgressComplete(t *testing.T) {
	order := &Order{Progress: datatypes.JSONMap{}}
	assert.False(t, order.ProgressComplete())

	for _, m := range ProgressMilestones {
		order.Progress[m] = true
	}
	assert.True(t, order.ProgressComplete())

	order.Progress["quality_check"] = false
	assert.False(t, order.ProgressComplete())
}

func TestProgressComplete_NilMap(t *testing.T) {
	order := &Order{}
	assert.False(t, order.ProgressComplete())
}
