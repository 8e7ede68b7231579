package broadcast

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"absensi/internal/logging"
)

func TestServeWS_StreamsEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub(8, nil)
	r := gin.New()
	r.GET("/ws", ServeWS(hub, logging.Discard()))
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 10*time.Millisecond)

	hub.Publish(RegistrationPrompt("04A1B2"))
	hub.Publish(ModeStatus(true))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var first, second Event
	require.NoError(t, conn.ReadJSON(&first))
	require.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, TypeRegistrationPrompt, first.Type)
	assert.Equal(t, "04A1B2", first.UID)
	assert.Equal(t, TypeModeStatus, second.Type)
	require.NotNil(t, second.IsRegistrationMode)
	assert.True(t, *second.IsRegistrationMode)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServeWS_HubCloseHangsUp(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub(8, nil)
	r := gin.New()
	r.GET("/ws", ServeWS(hub, logging.Discard()))
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 10*time.Millisecond)

	hub.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}
