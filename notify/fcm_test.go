package notify_test

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/nasermirzaei89/reelthread/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubMessagingClient struct {
	sent []*messaging.Message
	err  error
}

func (c *stubMessagingClient) Send(_ context.Context, message *messaging.Message) (string, error) {
	c.sent = append(c.sent, message)

	if c.err != nil {
		return "", c.err
	}

	return "projects/p/messages/1", nil
}

func TestFCMDispatcher_Send(t *testing.T) {
	t.Parallel()

	client := &stubMessagingClient{}
	dispatcher := notify.NewFCMDispatcher(client)

	receipt, err := dispatcher.Send(context.Background(), notify.Message{
		To:    "fcm-token",
		Title: "title",
		Body:  "body",
		Data:  map[string]string{"videoId": "v1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "projects/p/messages/1", receipt.ID)
	assert.Equal(t, notify.ProviderFCM, receipt.Provider)

	require.Len(t, client.sent, 1)
	assert.Equal(t, "fcm-token", client.sent[0].Token)
	assert.Equal(t, "title", client.sent[0].Notification.Title)
	assert.Equal(t, "v1", client.sent[0].Data["videoId"])

	client.err = errors.New("unavailable")

	_, err = dispatcher.Send(context.Background(), notify.Message{To: "fcm-token"})
	require.Error(t, err)

	_, err = dispatcher.Send(context.Background(), notify.Message{})
	require.ErrorIs(t, err, notify.ErrNoRecipient)
}
