package feed

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/gorilla/websocket"
)

type ChannelTransportSettings struct {
	WsHandshakeTimeout time.Duration
	PingTimeout        time.Duration
	WriteTimeout       time.Duration
	ReadTimeout        time.Duration
	ReconnectTimeout   time.Duration
	// consecutive failed connections before the transport gives up
	// and stays disconnected
	ReconnectCount int
}

func DefaultChannelTransportSettings() *ChannelTransportSettings {
	return &ChannelTransportSettings{
		WsHandshakeTimeout: 5 * time.Second,
		PingTimeout:        15 * time.Second,
		WriteTimeout:       5 * time.Second,
		ReadTimeout:        60 * time.Second,
		ReconnectTimeout:   3 * time.Second,
		ReconnectCount:     5,
	}
}

// (connected)
type ConnectivityFunction func(connected bool)

// ChannelTransport owns the single websocket connection to the realtime
// channel. It reads JSON text frames and hands each one to the merger, in
// arrival order. On close it reconnects a bounded number of times with a
// fixed delay; once the budget is exhausted it surfaces a persistent
// disconnected state instead of crashing the session. Receiving a frame
// refills the budget.
type ChannelTransport struct {
	ctx    context.Context
	cancel context.CancelFunc

	channelUrl string
	merger     *Merger

	settings *ChannelTransportSettings

	stateLock sync.Mutex
	connected bool

	connectivityCallbacks *CallbackList[ConnectivityFunction]
}

func NewChannelTransportWithDefaults(
	ctx context.Context,
	channelUrl string,
	merger *Merger,
) *ChannelTransport {
	return NewChannelTransport(ctx, channelUrl, merger, DefaultChannelTransportSettings())
}

func NewChannelTransport(
	ctx context.Context,
	channelUrl string,
	merger *Merger,
	settings *ChannelTransportSettings,
) *ChannelTransport {
	cancelCtx, cancel := context.WithCancel(ctx)
	transport := &ChannelTransport{
		ctx:                   cancelCtx,
		cancel:                cancel,
		channelUrl:            channelUrl,
		merger:                merger,
		settings:              settings,
		connectivityCallbacks: NewCallbackList[ConnectivityFunction](),
	}
	go transport.run()
	return transport
}

func (self *ChannelTransport) IsConnected() bool {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.connected
}

func (self *ChannelTransport) AddConnectivityCallback(connectivityCallback ConnectivityFunction) func() {
	return self.connectivityCallbacks.Add(connectivityCallback)
}

func (self *ChannelTransport) setConnected(connected bool) {
	self.stateLock.Lock()
	changed := self.connected != connected
	self.connected = connected
	self.stateLock.Unlock()

	if changed {
		for _, connectivityCallback := range self.connectivityCallbacks.Get() {
			HandleError(func() {
				connectivityCallback(connected)
			})
		}
	}
}

func (self *ChannelTransport) run() {
	defer func() {
		self.cancel()
		self.setConnected(false)
	}()

	dialer := &websocket.Dialer{
		HandshakeTimeout: self.settings.WsHandshakeTimeout,
	}

	failedConnectCount := 0
	for {
		select {
		case <-self.ctx.Done():
			return
		default:
		}

		ws, _, err := dialer.DialContext(self.ctx, self.channelUrl, nil)
		if err != nil {
			glog.Infof("[ch]connect error = %s\n", err)
			failedConnectCount += 1
		} else {
			self.setConnected(true)
			frameCount := self.handle(ws)
			self.setConnected(false)
			if 0 < frameCount {
				// the connection did real work. Refill the budget
				failedConnectCount = 0
			} else {
				failedConnectCount += 1
			}
		}

		if self.settings.ReconnectCount <= failedConnectCount {
			glog.Infof("[ch]giving up after %d failed connects\n", failedConnectCount)
			return
		}

		reconnect := NewReconnect(self.settings.ReconnectTimeout)
		select {
		case <-self.ctx.Done():
			return
		case <-reconnect.After():
		}
	}
}

// reads frames until the connection is closed.
// returns the number of frames handed to the merger.
func (self *ChannelTransport) handle(ws *websocket.Conn) (frameCount int) {
	defer ws.Close()

	handleCtx, handleCancel := context.WithCancel(self.ctx)
	defer handleCancel()

	ws.SetReadDeadline(time.Now().Add(self.settings.ReadTimeout))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(self.settings.ReadTimeout))
		return nil
	})

	go func() {
		defer handleCancel()

		for {
			select {
			case <-handleCtx.Done():
				return
			case <-time.After(self.settings.PingTimeout):
				deadline := time.Now().Add(self.settings.WriteTimeout)
				if err := ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					// note that for websocket a deadline timeout cannot be recovered
					glog.V(2).Infof("[ch]ping error = %s\n", err)
					return
				}
			}
		}
	}()

	for {
		select {
		case <-handleCtx.Done():
			return
		default:
		}

		messageType, frame, err := ws.ReadMessage()
		if err != nil {
			glog.Infof("[ch]<- error = %s\n", err)
			return
		}
		ws.SetReadDeadline(time.Now().Add(self.settings.ReadTimeout))

		switch messageType {
		case websocket.TextMessage:
			self.merger.Apply(frame)
			frameCount += 1
			glog.V(2).Infof("[ch]<-\n")
		default:
			glog.V(2).Infof("[ch]other=%d <-\n", messageType)
		}
	}
}

func (self *ChannelTransport) Close() {
	self.cancel()
}
