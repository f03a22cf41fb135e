package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/realmforge/token-service/internal/events"
)

func newMockedProducer(t *testing.T) (*Producer, *mocks.SyncProducer) {
	t.Helper()
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	mock := mocks.NewSyncProducer(t, config)
	return &Producer{
		producer: mock,
		topic:    "token-service.events",
		source:   "/token-service",
		logger:   zap.NewNop(),
	}, mock
}

func TestPublishWrapsEventInCloudEvent(t *testing.T) {
	producer, mock := newMockedProducer(t)
	userID := uuid.New()
	eventTime := time.Now().UTC().Truncate(time.Second)

	mock.ExpectSendMessageWithCheckerFunctionAndSucceed(func(value []byte) error {
		var envelope CloudEvent
		if err := json.Unmarshal(value, &envelope); err != nil {
			return err
		}
		assert.Equal(t, "1.0", envelope.SpecVersion)
		assert.Equal(t, "token.replay_detected", envelope.Type)
		assert.Equal(t, "/token-service", envelope.Source)
		assert.Equal(t, userID.String(), envelope.Subject)
		assert.Equal(t, "application/json", envelope.DataContentType)
		assert.NotEmpty(t, envelope.ID)
		assert.True(t, envelope.Time.Equal(eventTime))
		return nil
	})

	err := producer.Publish(context.Background(), events.Event{
		Type:    events.TypeReplayDetected,
		Subject: userID.String(),
		Time:    eventTime,
		Data: events.ReplayDetectedPayload{
			UserID:          userID,
			TokenFamily:     uuid.New(),
			OriginalTokenID: uuid.New(),
			FamilyRevoked:   true,
		},
	})
	require.NoError(t, err)
	require.NoError(t, producer.Close())
}

func TestPublishPropagatesBrokerErrors(t *testing.T) {
	producer, mock := newMockedProducer(t)
	mock.ExpectSendMessageAndFail(errors.New("broker unreachable"))

	err := producer.Publish(context.Background(), events.Event{
		Type:    events.TypeTokenPairIssued,
		Subject: uuid.NewString(),
		Time:    time.Now(),
	})
	assert.Error(t, err)
	require.NoError(t, producer.Close())
}
