package realtime

import (
	"github.com/google/uuid"

	"waste_portal_backend/internal/common"
)

func commonActor(id uuid.UUID, role string) common.Actor {
	return common.Actor{ID: id, Role: role}
}
