package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"go-filters/pkg/common"
)

const (
	DefaultPrefix = "flt"

	workersGroup    = "workers"
	assemblersGroup = "assemblers"
)

// Options configures a RedisClient.
type Options struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces every stream and key. Defaults to DefaultPrefix.
	Prefix string
	// InfoTTL bounds how long image records live. Defaults to 24h.
	InfoTTL time.Duration
}

// RedisClient moves tile jobs and results through Redis streams with
// consumer groups, and keeps per-image metadata in plain keys.
type RedisClient struct {
	client  *redis.Client
	prefix  string
	infoTTL time.Duration
}

// Message pairs a stream entry ID with its decoded job.
type Message struct {
	ID  string
	Job *common.JobMessage
}

func NewRedisClient(ctx context.Context, opts Options) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return Wrap(client, opts), nil
}

// Wrap uses an existing go-redis client.
func Wrap(client *redis.Client, opts Options) *RedisClient {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	ttl := opts.InfoTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisClient{client: client, prefix: prefix, infoTTL: ttl}
}

func (r *RedisClient) Close() error {
	return r.client.Close()
}

func (r *RedisClient) jobsStream() string {
	return r.prefix + ":jobs"
}

func (r *RedisClient) resultsStream() string {
	return r.prefix + ":results"
}

func (r *RedisClient) imageInfoKey(imageID int) string {
	return fmt.Sprintf("%s:image:%d:info", r.prefix, imageID)
}

func (r *RedisClient) imageStatusKey(imageID int) string {
	return fmt.Sprintf("%s:image:%d:status", r.prefix, imageID)
}

// EnsureGroups creates both consumer groups and their streams. Groups start
// at the beginning of the stream so jobs queued before a worker joined are
// still delivered. Calling it again is harmless.
func (r *RedisClient) EnsureGroups(ctx context.Context) error {
	for stream, group := range map[string]string{
		r.jobsStream():    workersGroup,
		r.resultsStream(): assemblersGroup,
	} {
		err := r.client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
		if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
			return fmt.Errorf("failed to create group %s on %s: %w", group, stream, err)
		}
	}
	return nil
}

func (r *RedisClient) AddJob(ctx context.Context, job *common.JobMessage) (string, error) {
	return r.add(ctx, r.jobsStream(), job)
}

func (r *RedisClient) AddResult(ctx context.Context, res *common.ResultMessage) (string, error) {
	return r.add(ctx, r.resultsStream(), res)
}

func (r *RedisClient) add(ctx context.Context, stream string, v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{"data": b},
	}).Result()
}

// ReadJob blocks up to block for the next job. It returns an empty ID and a
// nil job when nothing arrived in time. An entry that cannot be decoded comes
// back as its ID with a nil job and an error so the caller can ack it.
func (r *RedisClient) ReadJob(ctx context.Context, consumer string, block time.Duration) (string, *common.JobMessage, error) {
	var job common.JobMessage
	id, ok, err := r.read(ctx, r.jobsStream(), workersGroup, consumer, block, &job)
	if !ok {
		return id, nil, err
	}
	return id, &job, err
}

func (r *RedisClient) AckJob(ctx context.Context, id string) error {
	return r.client.XAck(ctx, r.jobsStream(), workersGroup, id).Err()
}

// ReadResult blocks up to block for the next processed tile.
func (r *RedisClient) ReadResult(ctx context.Context, consumer string, block time.Duration) (string, *common.ResultMessage, error) {
	var res common.ResultMessage
	id, ok, err := r.read(ctx, r.resultsStream(), assemblersGroup, consumer, block, &res)
	if !ok {
		return id, nil, err
	}
	return id, &res, err
}

func (r *RedisClient) AckResult(ctx context.Context, id string) error {
	return r.client.XAck(ctx, r.resultsStream(), assemblersGroup, id).Err()
}

func (r *RedisClient) read(ctx context.Context, stream, group, consumer string, block time.Duration, v any) (string, bool, error) {
	// go-redis sends BLOCK 0, which waits forever, for a zero duration
	if block <= 0 {
		block = -1
	}
	result, err := r.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, ">"},
		Count:    1,
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if len(result) == 0 || len(result[0].Messages) == 0 {
		return "", false, nil
	}

	msg := result[0].Messages[0]
	if err := json.Unmarshal(bytesFromInterface(msg.Values["data"]), v); err != nil {
		return msg.ID, false, fmt.Errorf("failed to decode message %s: %w", msg.ID, err)
	}
	return msg.ID, true, nil
}

func (r *RedisClient) StoreImageInfo(ctx context.Context, info *common.ImageInfo) error {
	b, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.imageInfoKey(info.ID), b, r.infoTTL).Err()
}

func (r *RedisClient) GetImageInfo(ctx context.Context, imageID int) (*common.ImageInfo, error) {
	data, err := r.client.Get(ctx, r.imageInfoKey(imageID)).Bytes()
	if err != nil {
		return nil, err
	}

	var info common.ImageInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (r *RedisClient) MarkImageCompleted(ctx context.Context, imageID int) error {
	return r.client.Set(ctx, r.imageStatusKey(imageID), "completed", r.infoTTL).Err()
}

func (r *RedisClient) IsImageCompleted(ctx context.Context, imageID int) (bool, error) {
	result, err := r.client.Get(ctx, r.imageStatusKey(imageID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return result == "completed", nil
}

// ClaimStaleJobs takes over jobs another consumer read but did not ack
// within minIdle, so they can be processed again. Entries that fail to
// decode are acked and dropped.
func (r *RedisClient) ClaimStaleJobs(ctx context.Context, consumer string, minIdle time.Duration, count int) ([]Message, error) {
	pending, err := r.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: r.jobsStream(),
		Group:  workersGroup,
		Idle:   minIdle,
		Count:  int64(count),
		Start:  "-",
		End:    "+",
	}).Result()
	if err != nil || len(pending) == 0 {
		return nil, err
	}

	ids := make([]string, 0, len(pending))
	for _, p := range pending {
		ids = append(ids, p.ID)
	}

	claimed, err := r.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   r.jobsStream(),
		Group:    workersGroup,
		Consumer: consumer,
		MinIdle:  minIdle,
		Messages: ids,
	}).Result()
	if err != nil {
		return nil, err
	}

	msgs := make([]Message, 0, len(claimed))
	for _, c := range claimed {
		var job common.JobMessage
		if err := json.Unmarshal(bytesFromInterface(c.Values["data"]), &job); err != nil {
			_ = r.AckJob(ctx, c.ID)
			continue
		}
		msgs = append(msgs, Message{ID: c.ID, Job: &job})
	}
	return msgs, nil
}

// PendingJobs reports how many jobs were delivered but not yet acked.
func (r *RedisClient) PendingJobs(ctx context.Context) (int64, error) {
	summary, err := r.client.XPending(ctx, r.jobsStream(), workersGroup).Result()
	if err != nil {
		return 0, err
	}
	return summary.Count, nil
}

func bytesFromInterface(v interface{}) []byte {
	switch t := v.(type) {
	case string:
		return []byte(t)
	case []byte:
		return t
	default:
		b, _ := json.Marshal(t)
		return b
	}
}
