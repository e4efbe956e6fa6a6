package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"friendchat/internal/domain"
)

type fakeRelay struct {
	forwarded []string
}

func (f *fakeRelay) Forward(userID, event string, payload any) {
	f.forwarded = append(f.forwarded, userID+":"+event)
}

func TestRouterDeliver(t *testing.T) {
	reg := NewRegistry(nil)
	router := NewRouter(reg, nil)

	b := &fakeConn{}
	reg.Register("b", b)

	msg := &domain.Message{ID: "m1", SenderID: "a", ReceiverID: "b", Text: "hi"}
	router.Deliver("b", domain.EventNewMessage, msg)

	got := b.events(domain.EventNewMessage)
	require.Len(t, got, 1)
	assert.Same(t, msg, got[0].payload)
}

func TestRouterDeliverOfflineIsNoop(t *testing.T) {
	reg := NewRegistry(nil)
	router := NewRouter(reg, nil)

	assert.NotPanics(t, func() {
		router.Deliver("ghost", domain.EventNewMessage, &domain.Message{})
	})
	assert.False(t, router.DeliverLocal("ghost", domain.EventNewMessage, nil))
}

func TestRouterDeliverSendErrorSwallowed(t *testing.T) {
	reg := NewRegistry(nil)
	router := NewRouter(reg, nil)
	reg.Register("b", &fakeConn{fail: true})

	assert.NotPanics(t, func() {
		router.Deliver("b", domain.EventNewMessage, nil)
	})
}

func TestRouterRelay(t *testing.T) {
	reg := NewRegistry(nil)
	relay := &fakeRelay{}
	router := NewRouter(reg, nil, WithRelay(relay))

	reg.Register("here", &fakeConn{})
	router.Deliver("here", domain.EventNewMessage, nil)
	router.Deliver("elsewhere", domain.EventReceiveFriendRequest, nil)

	assert.Equal(t, []string{"elsewhere:" + domain.EventReceiveFriendRequest}, relay.forwarded)
}
