package perizia_test

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/periziapp/perizia"
	"github.com/periziapp/perizia/stores/memory"
)

func TestGeneratePeriziaCodeFormat(t *testing.T) {
	store := memory.NewPeriziaStore()
	year := time.Now().Format("06")
	pattern := regexp.MustCompile(fmt.Sprintf(`^P%s\d{3}$`, year))

	for i := 0; i < 20; i++ {
		code, err := perizia.GeneratePeriziaCode(context.Background(), store)
		require.NoError(t, err)
		assert.Regexp(t, pattern, code)
	}
}

func TestGeneratePeriziaCodeSkipsTakenCodes(t *testing.T) {
	store := memory.NewPeriziaStore()

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code, err := perizia.GeneratePeriziaCode(context.Background(), store)
		require.NoError(t, err)
		assert.False(t, seen[code], "generated a code already in the store")
		seen[code] = true

		require.NoError(t, store.Create(context.Background(), &perizia.Perizia{
			ID:         fmt.Sprintf("perizia-%d", i),
			Code:       code,
			OperatorID: "user-alice",
			Status:     perizia.StatusInProgress,
		}))
	}
}

func TestPeriziaStatusValid(t *testing.T) {
	assert.True(t, perizia.StatusInProgress.Valid())
	assert.True(t, perizia.StatusCompleted.Valid())
	assert.True(t, perizia.StatusCancelled.Valid())
	assert.False(t, perizia.PeriziaStatus("done").Valid())
	assert.False(t, perizia.PeriziaStatus("").Valid())
}
