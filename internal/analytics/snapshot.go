package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const snapshotDateFormat = "2006-01-02"

// DailySnapshot is the persisted form of one device's day so far: the date
// it belongs to and the accumulated day state.
type DailySnapshot struct {
	DeviceID string    `json:"device_id"`
	Date     string    `json:"date"` // 2006-01-02, local to the session
	SavedAt  time.Time `json:"saved_at"`
	Day      DayState  `json:"day"`
}

// SnapshotStore persists daily snapshots in Redis so a restarted session
// can resume today's accumulation and keep yesterday's baseline.
type SnapshotStore struct {
	redis *redis.Client
}

// NewSnapshotStore creates a snapshot store
func NewSnapshotStore(redisClient *redis.Client) *SnapshotStore {
	return &SnapshotStore{redis: redisClient}
}

func snapshotKey(deviceID string) string {
	return fmt.Sprintf("daily_snapshot:%s", deviceID)
}

// Load retrieves the last saved snapshot for a device. A missing snapshot
// returns (nil, nil).
func (s *SnapshotStore) Load(ctx context.Context, deviceID string) (*DailySnapshot, error) {
	data, err := s.redis.Get(ctx, snapshotKey(deviceID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot from Redis: %w", err)
	}

	var snap DailySnapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	return &snap, nil
}

// Save persists the day state under the device's key. Snapshots expire
// after 7 days to auto-cleanup abandoned devices.
func (s *SnapshotStore) Save(ctx context.Context, deviceID string, day *DayState, now time.Time) error {
	snap := DailySnapshot{
		DeviceID: deviceID,
		Date:     now.Format(snapshotDateFormat),
		SavedAt:  now,
		Day:      *day,
	}

	data, err := json.Marshal(&snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := s.redis.Set(ctx, snapshotKey(deviceID), data, 7*24*time.Hour).Err(); err != nil {
		return fmt.Errorf("failed to set snapshot in Redis: %w", err)
	}

	return nil
}

// Delete removes a device's snapshot.
func (s *SnapshotStore) Delete(ctx context.Context, deviceID string) error {
	return s.redis.Del(ctx, snapshotKey(deviceID)).Err()
}

// ResolveRollover decides, once per session start, what a loaded snapshot
// means for today's accumulation:
//   - dated today: resume into it;
//   - dated yesterday: it becomes the comparison baseline, today starts fresh;
//   - older or missing: fresh start, no baseline.
func ResolveRollover(snap *DailySnapshot, now time.Time) (today *DayState, yesterday *DayState) {
	if snap == nil {
		return NewDayState(), nil
	}

	switch snap.Date {
	case now.Format(snapshotDateFormat):
		day := snap.Day
		return &day, nil
	case now.AddDate(0, 0, -1).Format(snapshotDateFormat):
		baseline := snap.Day
		return NewDayState(), &baseline
	default:
		return NewDayState(), nil
	}
}
