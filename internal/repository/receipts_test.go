package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatherspace/realtime-service/internal/models"
)

func TestBuildReceipts_OnePerMemberSenderRead(t *testing.T) {
	msg := &models.Message{
		ID:        "m1",
		SenderID:  "alice",
		CreatedAt: time.Now().UTC(),
	}
	receipts := BuildReceipts(msg, []string{"alice", "bob", "carol"})
	require.Len(t, receipts, 3)

	byUser := make(map[string]models.MessageReceipt)
	for _, r := range receipts {
		assert.Equal(t, "m1", r.MessageID)
		byUser[r.UserID] = r
	}
	require.Len(t, byUser, 3)
	assert.Equal(t, models.StatusRead, byUser["alice"].Status)
	assert.Equal(t, models.StatusDelivered, byUser["bob"].Status)
	assert.Equal(t, models.StatusDelivered, byUser["carol"].Status)
}

func TestBuildReceipts_NoMembers(t *testing.T) {
	receipts := BuildReceipts(&models.Message{ID: "m1", SenderID: "a"}, nil)
	assert.Empty(t, receipts)
}
