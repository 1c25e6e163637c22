package repositories

import (
	"context"

	"github.com/fablebox/server/domain/entities"
)

// DeviceRepository defines data access methods for reader devices
type DeviceRepository interface {
	Create(ctx context.Context, device *entities.Device) error
	GetByID(ctx context.Context, id string) (*entities.Device, error)
	GetBySerialNumber(ctx context.Context, serialNumber string) (*entities.Device, error)
	ValidateDevice(ctx context.Context, serialNumber, secretKey string) (*entities.Device, error)
	Update(ctx context.Context, device *entities.Device) error
	Delete(ctx context.Context, id string) error
}
