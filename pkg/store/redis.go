package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/eventlens/pkg/job"
)

// RedisStore keeps the latest report of each job under
// eventlens:report:<job>:latest and its history in the list
// eventlens:report:<job>:runs, newest first.
type RedisStore struct {
	client  *redis.Client
	history int
	ttl     time.Duration
}

// NewRedisStore connects to a redis:// or rediss:// URL
func NewRedisStore(ctx context.Context, url string, opts Options) (*RedisStore, error) {
	redisOpts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	redisOpts.DialTimeout = 5 * time.Second
	redisOpts.ReadTimeout = 3 * time.Second
	redisOpts.WriteTimeout = 3 * time.Second
	redisOpts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(redisOpts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{
		client:  client,
		history: opts.history(),
		ttl:     opts.TTL,
	}, nil
}

func latestKey(jobName string) string {
	return fmt.Sprintf("eventlens:report:%s:latest", jobKey(jobName))
}

func runsKey(jobName string) string {
	return fmt.Sprintf("eventlens:report:%s:runs", jobKey(jobName))
}

// Save sets the latest report and pushes it onto the trimmed history
func (s *RedisStore) Save(ctx context.Context, report *job.Report) error {
	if err := checkReport(report); err != nil {
		return err
	}
	data, err := encodeReport(report)
	if err != nil {
		return err
	}

	runs := runsKey(report.Job)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, latestKey(report.Job), data, s.ttl)
		pipe.LPush(ctx, runs, data)
		pipe.LTrim(ctx, runs, 0, int64(s.history-1))
		if s.ttl > 0 {
			pipe.Expire(ctx, runs, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save failed: %w", err)
	}
	return nil
}

// Latest returns the latest report of the job
func (s *RedisStore) Latest(ctx context.Context, jobName string) (*job.Report, error) {
	data, err := s.client.Get(ctx, latestKey(jobName)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	report, err := decodeReport(data)
	if err != nil {
		// drop corrupt data so the next save replaces it
		s.client.Del(ctx, latestKey(jobName))
		return nil, err
	}
	return report, nil
}

// List returns the newest reports of the job
func (s *RedisStore) List(ctx context.Context, jobName string, limit int) ([]*job.Report, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	items, err := s.client.LRange(ctx, runsKey(jobName), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange failed: %w", err)
	}

	reports := make([]*job.Report, 0, len(items))
	for _, item := range items {
		report, err := decodeReport([]byte(item))
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// Close closes the client
func (s *RedisStore) Close() error {
	return s.client.Close()
}
