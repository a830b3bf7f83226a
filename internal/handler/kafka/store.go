package kafka

import (
	"context"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"

	"github.com/finflow/payment-stream-engine/config"
)

// GroupStore persists checkpoints as consumer-group offset commits, so a
// restarted reader resumes exactly where the coordinator left off and
// never rewinds past a commit.
type GroupStore struct {
	client *kgo.Client
	topic  string
}

func NewGroupStore(client *kgo.Client, cfg *config.Config) *GroupStore {
	return &GroupStore{client: client, topic: cfg.Consumer.Topic}
}

// Commit records offset+1, the next record to read, per Kafka
// convention. Events at or after the commit may be redelivered after a
// crash; events before it never are.
func (s *GroupStore) Commit(ctx context.Context, partition int32, offset int64) error {
	offsets := map[string]map[int32]kgo.EpochOffset{
		s.topic: {partition: {Epoch: -1, Offset: offset + 1}},
	}

	var commitErr error
	s.client.CommitOffsetsSync(ctx, offsets,
		func(_ *kgo.Client, _ *kmsg.OffsetCommitRequest, _ *kmsg.OffsetCommitResponse, err error) {
			commitErr = err
		},
	)
	return commitErr
}
