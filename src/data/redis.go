package data

import (
	"context"
	"log"

	"github.com/redis/go-redis/v9"
)

const streamVotes = "votingtool.votes"

func MustRedis(url string) *redis.Client {
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	return redis.NewClient(opt)
}

// PublishVoteExecuted announces a reconciled on-chain vote to downstream
// consumers (notification bots). A nil client disables publishing.
func PublishVoteExecuted(ctx context.Context, rdb *redis.Client, payload map[string]interface{}) error {
	if rdb == nil {
		return nil
	}
	_, err := rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: streamVotes,
		Values: payload,
	}).Result()
	return err
}
