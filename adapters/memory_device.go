package adapters

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fablebox/server/domain/entities"
)

var (
	ErrDeviceNotFound     = errors.New("device not found")
	ErrDeviceExists       = errors.New("device with this serial number already exists")
	ErrInvalidCredentials = errors.New("invalid device credentials")
)

// MemoryDeviceRepository is an in-memory implementation of DeviceRepository,
// suitable as a simple storage backend for small installs.
type MemoryDeviceRepository struct {
	mu      sync.RWMutex
	devices map[string]*entities.Device // id -> device
	serials map[string]*entities.Device // serial_number -> device
}

// NewMemoryDeviceRepository creates a new in-memory device repository
func NewMemoryDeviceRepository() *MemoryDeviceRepository {
	return &MemoryDeviceRepository{
		devices: make(map[string]*entities.Device),
		serials: make(map[string]*entities.Device),
	}
}

// NewMemoryDeviceRepositoryWithTestDevices creates a repository with
// pre-registered devices for development
func NewMemoryDeviceRepositoryWithTestDevices() *MemoryDeviceRepository {
	repo := NewMemoryDeviceRepository()
	seed := []struct {
		serial, secret, model string
	}{
		{"FABLEBOX001", "secret123", "reader-v1"},
		{"FABLEBOX002", "secret456", "reader-v1"},
		{"FABLEBOX003", "secret789", "reader-v2"},
	}
	for _, s := range seed {
		_ = repo.Create(context.Background(), &entities.Device{
			SerialNumber: s.serial,
			SecretKey:    s.secret,
			Model:        s.model,
		})
	}
	return repo
}

// Create implements repositories.DeviceRepository
func (r *MemoryDeviceRepository) Create(ctx context.Context, device *entities.Device) error {
	if err := device.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.serials[device.SerialNumber]; exists {
		return ErrDeviceExists
	}

	if device.ID == "" {
		device.ID = uuid.New().String()
	}
	now := time.Now()
	device.CreatedAt = now
	device.UpdatedAt = now

	r.devices[device.ID] = device
	r.serials[device.SerialNumber] = device
	return nil
}

// GetByID implements repositories.DeviceRepository
func (r *MemoryDeviceRepository) GetByID(ctx context.Context, id string) (*entities.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	device, ok := r.devices[id]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	return device, nil
}

// GetBySerialNumber implements repositories.DeviceRepository
func (r *MemoryDeviceRepository) GetBySerialNumber(ctx context.Context, serialNumber string) (*entities.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	device, ok := r.serials[serialNumber]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	return device, nil
}

// ValidateDevice checks a serial number / secret key pair
func (r *MemoryDeviceRepository) ValidateDevice(ctx context.Context, serialNumber, secretKey string) (*entities.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	device, ok := r.serials[serialNumber]
	if !ok || device.SecretKey != secretKey {
		return nil, ErrInvalidCredentials
	}
	return device, nil
}

// Update implements repositories.DeviceRepository
func (r *MemoryDeviceRepository) Update(ctx context.Context, device *entities.Device) error {
	if err := device.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.devices[device.ID]
	if !ok {
		return ErrDeviceNotFound
	}

	delete(r.serials, existing.SerialNumber)
	device.UpdatedAt = time.Now()
	r.devices[device.ID] = device
	r.serials[device.SerialNumber] = device
	return nil
}

// Delete implements repositories.DeviceRepository
func (r *MemoryDeviceRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, ok := r.devices[id]
	if !ok {
		return ErrDeviceNotFound
	}

	delete(r.serials, device.SerialNumber)
	delete(r.devices, id)
	return nil
}
