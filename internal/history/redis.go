package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/povarna/generative-ai-agents/governed-runtime/internal/models"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "governed"

// appendScript stores the run and indexes it under its prompt hash in one
// step. KEYS: run key, prompt key. ARGV: record JSON, run id.
var appendScript = redis.NewScript(`
if redis.call('SETNX', KEYS[1], ARGV[1]) == 0 then
  return 0
end
redis.call('RPUSH', KEYS[2], ARGV[2])
return 1
`)

// RedisStore keeps one JSON value per run, a list of run ids per prompt
// hash and a separate telemetry value per run.
type RedisStore struct {
	client redis.Cmdable
	prefix string
}

func NewRedisStore(client redis.Cmdable, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) runKey(id string) string       { return s.prefix + ":run:" + id }
func (s *RedisStore) telemetryKey(id string) string { return s.prefix + ":telemetry:" + id }
func (s *RedisStore) promptKey(hash string) string  { return s.prefix + ":prompt:" + hash }

func (s *RedisStore) Append(ctx context.Context, record *models.RunRecord) error {
	data, err := json.Marshal(stripTelemetry(record))
	if err != nil {
		return fmt.Errorf("failed to marshal run %s: %w", record.RunID, err)
	}

	keys := []string{s.runKey(record.RunID), s.promptKey(record.PromptHash)}
	stored, err := appendScript.Run(ctx, s.client, keys, data, record.RunID).Int()
	if err != nil {
		return fmt.Errorf("failed to store run %s: %w", record.RunID, err)
	}
	if stored == 0 {
		return ErrDuplicateRun
	}
	return nil
}

func (s *RedisStore) Annotate(ctx context.Context, runID string, telemetry models.Telemetry) error {
	n, err := s.client.Exists(ctx, s.runKey(runID)).Result()
	if err != nil {
		return fmt.Errorf("failed to look up run %s: %w", runID, err)
	}
	if n == 0 {
		return ErrNotFound
	}

	data, err := json.Marshal(telemetry)
	if err != nil {
		return fmt.Errorf("failed to marshal telemetry for %s: %w", runID, err)
	}
	if err := s.client.Set(ctx, s.telemetryKey(runID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store telemetry for %s: %w", runID, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, runID string) (*models.RunRecord, error) {
	data, err := s.client.Get(ctx, s.runKey(runID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run %s: %w", runID, err)
	}

	var record models.RunRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode run %s: %w", runID, err)
	}

	tdata, err := s.client.Get(ctx, s.telemetryKey(runID)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return nil, fmt.Errorf("failed to read telemetry for %s: %w", runID, err)
	default:
		if err := attachTelemetry(&record, tdata); err != nil {
			return nil, err
		}
	}
	return &record, nil
}

func (s *RedisStore) ListByPrompt(ctx context.Context, promptHash string) ([]*models.RunRecord, error) {
	ids, err := s.client.LRange(ctx, s.promptKey(promptHash), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list runs for %s: %w", promptHash, err)
	}
	if len(ids) == 0 {
		return []*models.RunRecord{}, nil
	}

	runKeys := make([]string, len(ids))
	telemetryKeys := make([]string, len(ids))
	for i, id := range ids {
		runKeys[i] = s.runKey(id)
		telemetryKeys[i] = s.telemetryKey(id)
	}

	runs, err := s.client.MGet(ctx, runKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read runs for %s: %w", promptHash, err)
	}
	telemetry, err := s.client.MGet(ctx, telemetryKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read telemetry for %s: %w", promptHash, err)
	}

	out := make([]*models.RunRecord, 0, len(ids))
	for i, raw := range runs {
		data, ok := raw.(string)
		if !ok {
			continue
		}
		var record models.RunRecord
		if err := json.Unmarshal([]byte(data), &record); err != nil {
			return nil, fmt.Errorf("failed to decode run %s: %w", ids[i], err)
		}
		if tdata, ok := telemetry[i].(string); ok {
			if err := attachTelemetry(&record, []byte(tdata)); err != nil {
				return nil, err
			}
		}
		out = append(out, &record)
	}
	return out, nil
}

func attachTelemetry(record *models.RunRecord, data []byte) error {
	var t models.Telemetry
	if err := json.Unmarshal(data, &t); err != nil {
		return fmt.Errorf("failed to decode telemetry for %s: %w", record.RunID, err)
	}
	record.Telemetry = &t
	return nil
}
