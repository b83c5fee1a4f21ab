package hass

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/berfenger/meshcard/internal/core/domain"

	"go.uber.org/zap"
)

// Session is the part of Client used by the hass actor.
type Session interface {
	Call(ctx context.Context, cmdType string, extra map[string]any, out any) error
	Subscribe(ctx context.Context, eventType string, handler func(Event)) error
	Done() <-chan struct{}
	Err() error
	Close() error
}

type Dialer func(ctx context.Context, baseURL, token string, logger *zap.Logger) (Session, error)

func DialSession(ctx context.Context, baseURL, token string, logger *zap.Logger) (Session, error) {
	c, err := Dial(ctx, baseURL, token, logger)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// LoadCatalog reads both registries and every state. Entities keep registry
// order.
func LoadCatalog(ctx context.Context, s Session) (*domain.Catalog, error) {
	var entities []EntityRegistryEntry
	if err := s.Call(ctx, CMD_ENTITY_REGISTRY_LIST, nil, &entities); err != nil {
		return nil, err
	}
	var devices []DeviceRegistryEntry
	if err := s.Call(ctx, CMD_DEVICE_REGISTRY_LIST, nil, &devices); err != nil {
		return nil, err
	}
	var states []State
	if err := s.Call(ctx, CMD_GET_STATES, nil, &states); err != nil {
		return nil, err
	}

	catalog := domain.NewCatalog()
	for _, e := range entities {
		catalog.Entities = append(catalog.Entities, domain.EntityMeta{
			EntityId: e.EntityId,
			DeviceId: e.DeviceId,
			Platform: e.Platform,
		})
	}
	for _, d := range devices {
		catalog.Devices[d.Id] = domain.DeviceInfo{
			Id:           d.Id,
			Name:         d.DisplayName(),
			Model:        d.Model,
			SwVersion:    d.SwVersion,
			Manufacturer: d.Manufacturer,
		}
	}
	for i := range states {
		catalog.States[states[i].EntityId] = *ToEntityState(&states[i])
	}
	return catalog, nil
}

func ToEntityState(s *State) *domain.EntityState {
	if s == nil {
		return nil
	}
	return &domain.EntityState{
		EntityId:   s.EntityId,
		State:      s.State,
		Attributes: s.Attributes,
	}
}

// DecodeStateChanged converts a state_changed event. A removed entity yields a
// nil State.
func DecodeStateChanged(ev Event) (domain.StateChangedEvent, error) {
	var data StateChangedData
	if err := json.Unmarshal(ev.Data, &data); err != nil {
		return domain.StateChangedEvent{}, fmt.Errorf("decode %s: %w", ev.EventType, err)
	}
	return domain.StateChangedEvent{
		EntityId: data.EntityId,
		State:    ToEntityState(data.NewState),
	}, nil
}
