package queue

import (
	"context"
	"testing"
	"time"

	errprocess "media_transcode_service/pkg/err"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
)

// 測試等待 publisher confirm 的各種結果
func TestAwaitConfirm(t *testing.T) {
	ctx := context.Background()

	t.Run("broker回報ack視為成功", func(t *testing.T) {
		confirms := make(chan amqp.Confirmation, 1)
		confirms <- amqp.Confirmation{DeliveryTag: 1, Ack: true}

		assert.NoError(t, awaitConfirm(ctx, confirms))
	})

	t.Run("broker回報nack視為不可用", func(t *testing.T) {
		confirms := make(chan amqp.Confirmation, 1)
		confirms <- amqp.Confirmation{DeliveryTag: 1, Ack: false}

		err := awaitConfirm(ctx, confirms)
		assert.ErrorIs(t, err, errprocess.ErrUnavailable)
	})

	t.Run("confirm channel關閉視為不可用", func(t *testing.T) {
		confirms := make(chan amqp.Confirmation)
		close(confirms)

		err := awaitConfirm(ctx, confirms)
		assert.ErrorIs(t, err, errprocess.ErrUnavailable)
	})

	t.Run("等不到confirm視為不可用", func(t *testing.T) {
		confirms := make(chan amqp.Confirmation)

		tctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()

		err := awaitConfirm(tctx, confirms)
		assert.ErrorIs(t, err, errprocess.ErrUnavailable)
	})
}
