package notification

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/segmentio/kafka-go"
	"github.com/sharath018/community-events-backend/config"
	"github.com/sharath018/community-events-backend/utils"
	"go.uber.org/zap"
)

// consumerGroupID is overridden by ConfigureConsumer.
var consumerGroupID = "community-events-backend"

// ConfigureConsumer sets the Kafka consumer group used by StartConsumer.
func ConfigureConsumer(cfg *config.Config) {
	if cfg.KafkaGroupID != "" {
		consumerGroupID = cfg.KafkaGroupID
	}
}

// StartConsumer delivers queued fan-out jobs until ctx is cancelled. It
// returns immediately when Kafka is not configured.
func (s *service) StartConsumer(ctx context.Context) {
	if !utils.KafkaEnabled() {
		return
	}
	reader := utils.NewKafkaReader(consumerGroupID)
	defer func() {
		if err := reader.Close(); err != nil {
			utils.Log.Warn("kafka reader close failed", zap.Error(err))
		}
	}()

	utils.Log.Info("notification consumer started", zap.String("group", consumerGroupID))
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				utils.Log.Info("notification consumer stopped")
				return
			}
			utils.Log.Error("kafka read failed", zap.Error(err))
			continue
		}
		s.handleMessage(ctx, msg)
	}
}

func (s *service) handleMessage(ctx context.Context, msg kafka.Message) {
	var job fanoutJob
	if err := json.Unmarshal(msg.Value, &job); err != nil {
		utils.Log.Warn("dropping malformed fan-out job",
			zap.Int64("offset", msg.Offset), zap.ByteString("key", msg.Key), zap.Error(err))
		return
	}
	if err := s.deliver(ctx, job); err != nil {
		utils.Log.Error("fan-out delivery failed", zap.Uint("group_id", job.GroupID), zap.Error(err))
	}
}
