package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
	log "github.com/sirupsen/logrus"
)

// ErrPeerFailed is reported when ICE or DTLS gives up on the connection.
var ErrPeerFailed = errors.New("peer connection failed")

// WHEP receives the live audio over WebRTC using the WHEP signaling
// protocol: one POST of the offer, the answer in the response.
type WHEP struct {
	url        string
	client     *http.Client
	bitrate    int
	iceServers []webrtc.ICEServer
	api        *webrtc.API
}

// NewWHEP creates a peer transport that signals against endpoint.
func NewWHEP(endpoint string, client *http.Client, bitrate int, stunURLs ...string) (*WHEP, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, err
	}
	interceptorRegistry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, interceptorRegistry); err != nil {
		return nil, err
	}

	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	var ice []webrtc.ICEServer
	if len(stunURLs) > 0 {
		ice = []webrtc.ICEServer{{URLs: stunURLs}}
	}

	return &WHEP{
		url:        endpoint,
		client:     client,
		bitrate:    bitrate,
		iceServers: ice,
		api: webrtc.NewAPI(
			webrtc.WithMediaEngine(mediaEngine),
			webrtc.WithInterceptorRegistry(interceptorRegistry),
		),
	}, nil
}

// Start performs the handshake. Any error closes the peer connection before
// returning, so nothing is left half-initialized.
func (w *WHEP) Start(ctx context.Context, sink Sink, r Reporter) (Conn, error) {
	pc, err := w.api.NewPeerConnection(webrtc.Configuration{ICEServers: w.iceServers})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}
	c := &whepConn{pc: pc, client: w.client}
	fail := func(err error) (Conn, error) {
		_ = c.Close()
		return nil, err
	}

	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		return fail(fmt.Errorf("add audio transceiver: %w", err))
	}

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if track.Kind() != webrtc.RTPCodecTypeAudio {
			return
		}
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.readTrack(track, sink, r)
		}()
	})
	pc.OnConnectionStateChange(func(st webrtc.PeerConnectionState) {
		log.WithField("state", st.String()).Debug("peer connection state")
		if st == webrtc.PeerConnectionStateFailed {
			r.Failed(ErrPeerFailed)
		}
	})

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return fail(fmt.Errorf("create offer: %w", err))
	}
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		return fail(fmt.Errorf("set local description: %w", err))
	}
	select {
	case <-gathered:
	case <-ctx.Done():
		return fail(ctx.Err())
	}

	local, err := RewriteOpus(pc.LocalDescription().SDP, w.bitrate)
	if err != nil {
		return fail(err)
	}

	answer, location, err := w.exchange(ctx, local)
	if err != nil {
		return fail(err)
	}
	c.resource = location

	if err := pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  answer,
	}); err != nil {
		return fail(fmt.Errorf("set remote description: %w", err))
	}
	return c, nil
}

// exchange posts the offer and returns the answer and the session resource
// URL, if the server named one.
func (w *WHEP) exchange(ctx context.Context, offer string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, strings.NewReader(offer))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", "application/sdp")
	req.Header.Set("Accept", "application/sdp")

	resp, err := w.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("whep offer: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.WithError(err).Debug("failed to close whep response body")
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", "", fmt.Errorf("whep answer: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", "", fmt.Errorf("whep offer: status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return "", "", errors.New("whep answer is empty")
	}

	var location string
	if loc := resp.Header.Get("Location"); loc != "" {
		if location, err = resolveRef(w.url, loc); err != nil {
			log.WithError(err).Warn("ignoring malformed whep resource location")
			location = ""
		}
	}
	return string(body), location, nil
}

type whepConn struct {
	pc       *webrtc.PeerConnection
	client   *http.Client
	resource string
	wg       sync.WaitGroup
	once     sync.Once
	err      error
}

// Close closes the peer connection, waits for the track readers and deletes
// the session resource on the server.
func (c *whepConn) Close() error {
	c.once.Do(func() {
		c.err = c.pc.Close()
		c.wg.Wait()
		if c.resource != "" {
			c.deleteResource()
		}
	})
	return c.err
}

func (c *whepConn) deleteResource() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.resource, nil)
	if err != nil {
		return
	}
	resp, err := c.client.Do(req)
	if err != nil {
		log.WithError(err).Debug("failed to delete whep session")
		return
	}
	_ = resp.Body.Close()
}

// readTrack writes the Opus packets of track into sink as an Ogg stream.
func (c *whepConn) readTrack(track *webrtc.TrackRemote, sink Sink, r Reporter) {
	codec := track.Codec()
	if !strings.EqualFold(codec.MimeType, webrtc.MimeTypeOpus) {
		r.Failed(fmt.Errorf("unsupported audio codec %s", codec.MimeType))
		return
	}

	channels := codec.Channels
	if channels == 0 {
		channels = 2
	}
	// oggwriter closes writers that are io.Closers; the sink outlives us.
	ogg, err := oggwriter.NewWith(struct{ io.Writer }{sink}, codec.ClockRate, channels)
	if err != nil {
		r.Failed(fmt.Errorf("open ogg stream: %w", err))
		return
	}
	defer func() { _ = ogg.Close() }()

	attached := false
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			return
		}
		if err := writePacket(ogg, pkt); err != nil {
			r.Failed(fmt.Errorf("write audio: %w", err))
			return
		}
		if !attached {
			attached = true
			r.Attached()
		}
	}
}

func writePacket(ogg *oggwriter.OggWriter, pkt *rtp.Packet) error {
	if len(pkt.Payload) == 0 {
		return nil
	}
	return ogg.WriteRTP(pkt)
}
