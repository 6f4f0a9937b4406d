package repository

import "github.com/gatherspace/realtime-service/internal/models"

// BuildReceipts produces one receipt per member for a freshly created
// message: the sender's starts read, everyone else's delivered.
func BuildReceipts(m *models.Message, memberIDs []string) []models.MessageReceipt {
	out := make([]models.MessageReceipt, 0, len(memberIDs))
	for _, uid := range memberIDs {
		status := models.StatusDelivered
		if uid == m.SenderID {
			status = models.StatusRead
		}
		out = append(out, models.MessageReceipt{
			MessageID: m.ID,
			UserID:    uid,
			Status:    status,
			UpdatedAt: m.CreatedAt,
		})
	}
	return out
}
