package rooms

import (
	"context"
	"fmt"

	"github.com/npezzotti/go-anonchat/internal/database"
)

type Occupancy struct {
	db database.AnonChatRepository
}

func NewOccupancy(db database.AnonChatRepository) *Occupancy {
	return &Occupancy{db: db}
}

// ParticipantCount reports how many users hold a nickname in the room. A
// room that does not exist has no participants.
func (o *Occupancy) ParticipantCount(ctx context.Context, roomId string) (int, error) {
	count, err := o.db.CountParticipants(ctx, roomId)
	if err != nil {
		return 0, fmt.Errorf("count participants: %w", err)
	}
	return count, nil
}
