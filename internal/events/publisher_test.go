package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jia-app/billingservice/internal/log"
)

func TestMain(m *testing.M) {
	log.InitNop()
	m.Run()
}

func TestNewEvent(t *testing.T) {
	event := NewEvent(TypeSubscriptionUpdated, "sub_1", map[string]any{"status": "active"})

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, TypeSubscriptionUpdated, event.Type)
	assert.Equal(t, "sub_1", event.Aggregate)
	assert.Equal(t, "active", event.Data["status"])
	assert.NotZero(t, event.Timestamp)
	assert.Equal(t, 1, event.Version)
}

func TestKafkaPublisherPublish(t *testing.T) {
	producer := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	p := &KafkaPublisher{producer: producer, topic: "billing.events"}

	event := NewEvent(TypeCatalogChanged, "prod_1", map[string]any{"resource": "product"})
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		key, err := msg.Key.Encode()
		require.NoError(t, err)
		assert.Equal(t, "prod_1", string(key))

		value, err := msg.Value.Encode()
		require.NoError(t, err)
		var decoded Event
		require.NoError(t, json.Unmarshal(value, &decoded))
		assert.Equal(t, event.ID, decoded.ID)
		assert.Equal(t, TypeCatalogChanged, decoded.Type)
		return nil
	})

	require.NoError(t, p.Publish(context.Background(), event))
	require.NoError(t, p.Close())
}

func TestKafkaPublisherPublishFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	p := &KafkaPublisher{producer: producer, topic: "billing.events"}

	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	err := p.Publish(context.Background(), NewEvent(TypeSubscriptionCanceled, "sub_1", nil))
	assert.Error(t, err)
	require.NoError(t, p.Close())
}

func TestNewKafkaPublisherValidation(t *testing.T) {
	_, err := NewKafkaPublisher(nil, "billing.events")
	assert.Error(t, err)

	_, err = NewKafkaPublisher([]string{"localhost:9092"}, "")
	assert.Error(t, err)
}
