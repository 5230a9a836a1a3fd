package progress

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/dukerupert/questwalk/internal/model"
)

// Cache keys. The layout is flat so any key/value backend can hold it.
const (
	KeyLastCheckInDate     = "lastCheckInDate"
	KeyCompletedTaskIDs    = "completedTaskIds"
	KeyActiveMissionID     = "activeMissionId"
	KeyMissionLocked       = "missionLocked"
	KeyAchievementCounters = "achievementCounters"
	KeyTotalPoints         = "totalPoints"
	KeySchemaVersion       = "schemaVersion"
)

// Keys written by earlier releases of the web client.
const (
	legacyKeyCompletedTasks  = "completedTasks"
	legacyKeyLastCheckinDate = "lastCheckinDate"
	legacyKeyAchievements    = "achievements"

	// legacyDateLayout matches JavaScript's Date.prototype.toDateString.
	legacyDateLayout = "Mon Jan 02 2006"
)

const schemaVersion = "1"

// DateLayout is the ISO calendar date format stored under KeyLastCheckInDate.
const DateLayout = time.DateOnly

// ErrMalformed marks a cache value that could not be decoded. Such values
// are skipped rather than failing the load.
var ErrMalformed = errors.New("malformed cache entry")

// Load reads the progress entry from s. Malformed values are logged and
// replaced with their zero value. Entries written by the legacy web client
// are imported and rewritten in the current layout.
func Load(s Store, logger *slog.Logger) (Entry, error) {
	e := NewEntry()

	version, _, err := s.Get(KeySchemaVersion)
	if err != nil {
		return e, fmt.Errorf("get %s: %w", KeySchemaVersion, err)
	}
	if version != schemaVersion {
		migrated, err := importLegacy(s, &e, logger)
		if err != nil {
			return e, err
		}
		if migrated {
			return e, nil
		}
	}

	if v, ok, err := s.Get(KeyLastCheckInDate); err != nil {
		return e, fmt.Errorf("get %s: %w", KeyLastCheckInDate, err)
	} else if ok {
		if _, perr := time.Parse(DateLayout, v); perr != nil {
			warnMalformed(logger, KeyLastCheckInDate, v, perr)
		} else {
			e.LastCheckInDate = v
		}
	}

	if v, ok, err := s.Get(KeyCompletedTaskIDs); err != nil {
		return e, fmt.Errorf("get %s: %w", KeyCompletedTaskIDs, err)
	} else if ok {
		if perr := decodeIDs(v, &e); perr != nil {
			warnMalformed(logger, KeyCompletedTaskIDs, v, perr)
		}
	}

	if v, ok, err := s.Get(KeyActiveMissionID); err != nil {
		return e, fmt.Errorf("get %s: %w", KeyActiveMissionID, err)
	} else if ok {
		e.ActiveMissionID = v
	}

	if v, ok, err := s.Get(KeyMissionLocked); err != nil {
		return e, fmt.Errorf("get %s: %w", KeyMissionLocked, err)
	} else if ok {
		switch v {
		case "1":
			e.MissionLocked = true
		case "0", "":
		default:
			warnMalformed(logger, KeyMissionLocked, v, fmt.Errorf("want 0 or 1"))
		}
	}

	if v, ok, err := s.Get(KeyAchievementCounters); err != nil {
		return e, fmt.Errorf("get %s: %w", KeyAchievementCounters, err)
	} else if ok {
		decodeCounters(v, &e, logger)
	}

	if v, ok, err := s.Get(KeyTotalPoints); err != nil {
		return e, fmt.Errorf("get %s: %w", KeyTotalPoints, err)
	} else if ok {
		n, perr := strconv.Atoi(v)
		if perr != nil || n < 0 {
			warnMalformed(logger, KeyTotalPoints, v, perr)
		} else {
			e.TotalPoints = n
		}
	}

	return e, nil
}

// Save writes every field of e to s in one atomic Set.
func Save(s Store, e Entry) error {
	ids, err := json.Marshal(e.CompletedIDs())
	if err != nil {
		return fmt.Errorf("marshal completed ids: %w", err)
	}
	counters := make(map[string]int, len(e.AchievementCounters))
	for c, n := range e.AchievementCounters {
		counters[string(c)] = n
	}
	cnt, err := json.Marshal(counters)
	if err != nil {
		return fmt.Errorf("marshal counters: %w", err)
	}

	locked := "0"
	if e.MissionLocked {
		locked = "1"
	}

	values := map[string]string{
		KeySchemaVersion:       schemaVersion,
		KeyLastCheckInDate:     e.LastCheckInDate,
		KeyCompletedTaskIDs:    string(ids),
		KeyActiveMissionID:     e.ActiveMissionID,
		KeyMissionLocked:       locked,
		KeyAchievementCounters: string(cnt),
		KeyTotalPoints:         strconv.Itoa(e.TotalPoints),
	}
	if err := s.Set(values); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

func decodeIDs(raw string, e *Entry) error {
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return err
	}
	for _, id := range ids {
		if id != "" {
			e.MarkCompleted(id)
		}
	}
	return nil
}

func decodeCounters(raw string, e *Entry, logger *slog.Logger) {
	var counters map[string]int
	if err := json.Unmarshal([]byte(raw), &counters); err != nil {
		warnMalformed(logger, KeyAchievementCounters, raw, err)
		return
	}
	for name, n := range counters {
		c := model.Category(name)
		if !c.Valid() || n < 0 {
			warnMalformed(logger, KeyAchievementCounters, name, fmt.Errorf("category %q count %d", name, n))
			continue
		}
		e.AchievementCounters[c] = n
	}
}

// importLegacy converts keys written by the legacy web client. It reports
// whether any legacy key was present.
func importLegacy(s Store, e *Entry, logger *slog.Logger) (bool, error) {
	found := false

	if v, ok, err := s.Get(legacyKeyCompletedTasks); err != nil {
		return false, fmt.Errorf("get %s: %w", legacyKeyCompletedTasks, err)
	} else if ok {
		found = true
		if perr := decodeIDs(v, e); perr != nil {
			warnMalformed(logger, legacyKeyCompletedTasks, v, perr)
		}
	}

	if v, ok, err := s.Get(legacyKeyLastCheckinDate); err != nil {
		return false, fmt.Errorf("get %s: %w", legacyKeyLastCheckinDate, err)
	} else if ok {
		found = true
		d, perr := time.Parse(legacyDateLayout, v)
		if perr != nil {
			warnMalformed(logger, legacyKeyLastCheckinDate, v, perr)
		} else {
			e.LastCheckInDate = d.Format(DateLayout)
		}
	}

	if v, ok, err := s.Get(legacyKeyAchievements); err != nil {
		return false, fmt.Errorf("get %s: %w", legacyKeyAchievements, err)
	} else if ok {
		found = true
		decodeCounters(v, e, logger)
	}

	// The legacy client also wrote these two keys with the same encoding.
	if v, ok, err := s.Get(KeyActiveMissionID); err != nil {
		return false, fmt.Errorf("get %s: %w", KeyActiveMissionID, err)
	} else if ok {
		e.ActiveMissionID = v
	}
	if v, ok, err := s.Get(KeyMissionLocked); err != nil {
		return false, fmt.Errorf("get %s: %w", KeyMissionLocked, err)
	} else if ok {
		e.MissionLocked = v == "1"
	}

	if !found {
		return false, nil
	}

	logger.Info("importing legacy progress cache",
		"completed", len(e.CompletedTaskIDs), "last_check_in", e.LastCheckInDate)

	if err := Save(s, *e); err != nil {
		return true, err
	}
	if err := s.Clear(legacyKeyCompletedTasks, legacyKeyLastCheckinDate, legacyKeyAchievements); err != nil {
		return true, fmt.Errorf("clear legacy keys: %w", err)
	}
	return true, nil
}

func warnMalformed(logger *slog.Logger, key, value string, err error) {
	logger.Warn("skipping cache value",
		"key", key, "value", value, "error", fmt.Errorf("%w: %v", ErrMalformed, err))
}
