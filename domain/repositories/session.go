package repositories

import (
	"context"

	"github.com/fablebox/server/domain/entities"
)

// SessionRepository defines data access methods for reading sessions
type SessionRepository interface {
	Create(ctx context.Context, session *entities.Session) error
	GetByID(ctx context.Context, id string) (*entities.Session, error)
	GetLastByDeviceID(ctx context.Context, deviceID string) (*entities.Session, error)
	ListByDeviceID(ctx context.Context, deviceID string, limit int) ([]*entities.Session, error)
	Update(ctx context.Context, session *entities.Session) error
	ExpireSessions(ctx context.Context) error
}
