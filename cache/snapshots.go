package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/kasuganosora/npcsensor/game/sensor"
)

// SensorsKey is the set of sensor IDs with a stored snapshot.
const SensorsKey = "sensors"

func SnapshotKey(sensorID uuid.UUID) string {
	return fmt.Sprintf("sensor:%s:snapshot", sensorID)
}

// SnapshotStore keeps the latest snapshot of each sensor in the cache so
// inspectors outside the process can read it.
type SnapshotStore struct {
	kv  Cache
	ttl time.Duration
}

// NewSnapshotStore stores snapshots with the given TTL; 0 keeps them forever.
func NewSnapshotStore(kv Cache, ttl time.Duration) *SnapshotStore {
	return &SnapshotStore{kv: kv, ttl: ttl}
}

func (s *SnapshotStore) Put(ctx context.Context, snap *sensor.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.kv.Set(ctx, SnapshotKey(snap.Sensor), string(data), s.ttl); err != nil {
		return err
	}
	return s.kv.SAdd(ctx, SensorsKey, snap.Sensor.String())
}

// Get returns the stored snapshot JSON. Missing snapshots report an error
// for which IsNotFound is true.
func (s *SnapshotStore) Get(ctx context.Context, sensorID uuid.UUID) (json.RawMessage, error) {
	v, err := s.kv.Get(ctx, SnapshotKey(sensorID))
	if err != nil {
		return nil, err
	}
	return json.RawMessage(v), nil
}

// Delete removes everything the cache holds for the sensor: its snapshot,
// its recent events and its index entry.
func (s *SnapshotStore) Delete(ctx context.Context, sensorID uuid.UUID) error {
	if err := s.kv.Del(ctx, SnapshotKey(sensorID), RecentEventsKey(sensorID)); err != nil {
		return err
	}
	return s.kv.SRem(ctx, SensorsKey, sensorID.String())
}

// IDs lists sensors with a live snapshot. IDs whose snapshot expired are
// pruned from the index.
func (s *SnapshotStore) IDs(ctx context.Context) ([]uuid.UUID, error) {
	members, err := s.kv.SMembers(ctx, SensorsKey)
	if err != nil {
		return nil, err
	}
	var out []uuid.UUID
	var stale []string
	for _, m := range members {
		id, err := uuid.Parse(m)
		if err != nil {
			stale = append(stale, m)
			continue
		}
		ok, err := s.kv.Exists(ctx, SnapshotKey(id))
		if err != nil {
			return nil, err
		}
		if !ok {
			stale = append(stale, m)
			continue
		}
		out = append(out, id)
	}
	if len(stale) > 0 {
		if err := s.kv.SRem(ctx, SensorsKey, stale...); err != nil {
			return nil, err
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}
