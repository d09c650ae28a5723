package web

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visioncraft/internal/poster"
	"visioncraft/internal/session"
	"visioncraft/internal/studio"
)

type stubGateway struct {
	poster *poster.Image
}

func (g *stubGateway) Describe(context.Context, poster.Image) string { return "a ceramic mug" }

func (g *stubGateway) RemoveBackground(_ context.Context, img poster.Image) (*poster.Image, error) {
	out := img
	out.Data = append([]byte("cut"), img.Data...)
	return &out, nil
}

func (g *stubGateway) GeneratePoster(context.Context, poster.Image, string, poster.Settings) (*poster.Image, error) {
	return g.poster, nil
}

func (g *stubGateway) Advice(context.Context, string, string) ([]string, error) {
	return []string{"a", "b", "c", "d"}, nil
}

type slowDescribeGateway struct {
	stubGateway
	release chan struct{}
}

func (g *slowDescribeGateway) Describe(ctx context.Context, _ poster.Image) string {
	select {
	case <-g.release:
	case <-ctx.Done():
	}
	return "a ceramic mug"
}

type testEnv struct {
	srv    *httptest.Server
	client *http.Client
	store  *session.Store
}

func newTestEnv(t *testing.T, gw studio.Gateway) *testEnv {
	t.Helper()
	store := session.NewStore(session.Options{
		TTL:       time.Hour,
		NewStudio: func() *studio.Controller { return studio.New(studio.Options{Gateway: gw}) },
	})
	t.Cleanup(store.Close)

	s := New(Options{Store: store, SessionSecret: "test-secret", RequestTimeout: 5 * time.Second})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &testEnv{srv: srv, client: &http.Client{Jar: jar}, store: store}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.send(t, req)
}

func (e *testEnv) send(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := e.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func (e *testEnv) upload(t *testing.T, data []byte, contentType string) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="image"; filename="product.png"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, e.srv.URL+"/api/image", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return e.send(t, req)
}

// waitIdle drains the background work of the only session.
func (e *testEnv) waitIdle(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		_, body := e.do(t, http.MethodGet, "/api/state", nil)
		var s stateView
		if err := json.Unmarshal(body, &s); err != nil {
			return false
		}
		return !s.Busy.Any()
	}, 2*time.Second, 10*time.Millisecond)
}

func decodeState(t *testing.T, body []byte) stateView {
	t.Helper()
	var s stateView
	require.NoError(t, json.Unmarshal(body, &s), string(body))
	return s
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 12, 8))))
	return buf.Bytes()
}

func TestStateCreatesSession(t *testing.T) {
	env := newTestEnv(t, &stubGateway{})

	resp, body := env.do(t, http.MethodGet, "/api/state", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	s := decodeState(t, body)
	assert.Equal(t, poster.DefaultSettings(), s.Settings)
	assert.Equal(t, studio.ViewGenerated, s.View)
	assert.Equal(t, "Canvas", s.Canvas.Label)
	assert.Len(t, s.Advice, 4)

	env.do(t, http.MethodGet, "/api/state", nil)
	assert.Equal(t, 1, env.store.Len())
}

func TestSessionCookieIsRefreshed(t *testing.T) {
	env := newTestEnv(t, &stubGateway{})

	for i := 0; i < 2; i++ {
		resp, _ := env.do(t, http.MethodGet, "/api/state", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var found *http.Cookie
		for _, ck := range resp.Cookies() {
			if ck.Name == cookieName {
				found = ck
			}
		}
		require.NotNil(t, found, "request %d did not refresh the cookie", i)
		assert.Equal(t, int(time.Hour.Seconds()), found.MaxAge)
	}
	assert.Equal(t, 1, env.store.Len())
}

func TestGenerateBeforeDescriptionConflicts(t *testing.T) {
	gw := &slowDescribeGateway{stubGateway: stubGateway{poster: &poster.Image{Data: pngBytes(t), MimeType: "image/png"}}, release: make(chan struct{})}
	env := newTestEnv(t, gw)

	resp, _ := env.upload(t, pngBytes(t), "image/png")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := env.do(t, http.MethodPost, "/api/generate", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, string(body), studio.ErrNotReady.Error())

	close(gw.release)
	env.waitIdle(t)
	resp, body = env.do(t, http.MethodPost, "/api/generate", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotNil(t, decodeState(t, body).Generated)
}

func TestCatalog(t *testing.T) {
	env := newTestEnv(t, &stubGateway{})

	resp, body := env.do(t, http.MethodGet, "/api/catalog", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got catalogResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Len(t, got.AspectRatios, 5)
	assert.Len(t, got.Themes, 3)
	assert.Equal(t, []string{"image/jpeg", "image/png", "image/webp"}, got.Accepted)
}

func TestUploadGenerateDownload(t *testing.T) {
	posterPNG := pngBytes(t)
	env := newTestEnv(t, &stubGateway{poster: &poster.Image{Data: posterPNG, MimeType: "image/png", Width: 12, Height: 8}})

	resp, body := env.do(t, http.MethodPost, "/api/generate", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, string(body), "no product image")

	resp, body = env.upload(t, pngBytes(t), "image/png")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	s := decodeState(t, body)
	require.NotNil(t, s.Product)
	assert.Equal(t, poster.PlaceholderDescription, s.Product.Description)
	env.waitIdle(t)

	resp, body = env.do(t, http.MethodPost, "/api/generate", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	s = decodeState(t, body)
	require.NotNil(t, s.Generated)
	assert.Equal(t, "AI Generated Poster", s.Canvas.Label)
	assert.Equal(t, s.Generated.URL, s.Canvas.ImageURL)
	assert.True(t, s.Canvas.CanToggle)

	resp, body = env.do(t, http.MethodGet, "/api/image/poster", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, posterPNG, body)

	resp, body = env.do(t, http.MethodGet, "/api/poster/download", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `attachment; filename="visioncraft-poster.png"`, resp.Header.Get("Content-Disposition"))
	assert.Equal(t, posterPNG, body)

	resp, body = env.do(t, http.MethodGet, "/api/poster/pdf", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF")))

	resp, body = env.do(t, http.MethodPut, "/api/canvas/view", jsonBody{"view": "original"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	s = decodeState(t, body)
	assert.Equal(t, "Original Product", s.Canvas.Label)
	assert.NotNil(t, s.Generated)

	resp, body = env.do(t, http.MethodPost, "/api/advice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	s = decodeState(t, body)
	require.Len(t, s.Advice, 4)
	assert.Equal(t, "a", s.Advice[0].Text)
}

func TestGenerateWithoutImageFromModel(t *testing.T) {
	env := newTestEnv(t, &stubGateway{})
	resp, _ := env.upload(t, pngBytes(t), "image/png")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	env.waitIdle(t)

	resp, body := env.do(t, http.MethodPost, "/api/generate", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	s := decodeState(t, body)
	assert.Equal(t, studio.MsgNoImage, s.Error)
	assert.Nil(t, s.Generated)

	resp, _ = env.do(t, http.MethodPost, "/api/advice", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/poster/download", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestBackgroundRemovalToggle(t *testing.T) {
	env := newTestEnv(t, &stubGateway{})
	env.upload(t, pngBytes(t), "image/png")
	env.waitIdle(t)

	resp, _ := env.do(t, http.MethodPut, "/api/background-removal", jsonBody{"enabled": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	env.waitIdle(t)

	_, body := env.do(t, http.MethodGet, "/api/state", nil)
	s := decodeState(t, body)
	require.NotNil(t, s.Cutout)
	assert.True(t, strings.HasPrefix(s.Active.URL, "/api/image/active?v="))

	resp, body = env.do(t, http.MethodGet, "/api/image/cutout", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, bytes.HasPrefix(body, []byte("cut")))

	resp, body = env.do(t, http.MethodPut, "/api/background-removal", jsonBody{"enabled": false})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, decodeState(t, body).Cutout)

	resp, _ = env.do(t, http.MethodGet, "/api/image/cutout", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPut, "/api/background-removal", jsonBody{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUploadRejectsBadInput(t *testing.T) {
	env := newTestEnv(t, &stubGateway{})

	resp, body := env.upload(t, []byte("GIF89a not really"), "image/gif")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "unsupported image type")

	resp, _ = env.do(t, http.MethodPost, "/api/image", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/image", jsonBody{"image": "data:image/png;base64,%%%"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUploadDataURL(t *testing.T) {
	env := newTestEnv(t, &stubGateway{})

	img := poster.Image{Data: pngBytes(t), MimeType: "image/png"}
	resp, body := env.do(t, http.MethodPost, "/api/image", jsonBody{"image": img.DataURL()})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	st := decodeState(t, body)
	require.NotNil(t, st.Product)
	assert.Equal(t, "image/png", st.Product.MimeType)
	env.waitIdle(t)
}

func TestSettingsThemeAndView(t *testing.T) {
	env := newTestEnv(t, &stubGateway{})

	resp, body := env.do(t, http.MethodPatch, "/api/settings", jsonBody{"aspect_ratio": "16:9", "creativity": 0.5})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	s := decodeState(t, body)
	assert.Equal(t, poster.AspectRatioWide, s.Settings.AspectRatio)
	assert.Equal(t, 0.5, s.Settings.Creativity)

	resp, body = env.do(t, http.MethodPatch, "/api/settings", jsonBody{"aspect_ratio": "2:1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "unsupported aspect ratio")

	resp, body = env.do(t, http.MethodPut, "/api/theme", jsonBody{"theme": "mariana"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, poster.ThemeMariana, decodeState(t, body).Theme)

	resp, _ = env.do(t, http.MethodPut, "/api/theme", jsonBody{"theme": "neon"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPut, "/api/canvas/view", jsonBody{"view": "sideways"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/image/thumbnail", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStaticUIAndUnknownAPI(t *testing.T) {
	env := newTestEnv(t, &stubGateway{})

	resp, body := env.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "VisionCraft AI")

	resp, body = env.do(t, http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"error":"not found"}`, string(body))
}

func TestWebsocketPushesState(t *testing.T) {
	env := newTestEnv(t, &stubGateway{})
	env.do(t, http.MethodGet, "/api/state", nil)

	header := http.Header{}
	for _, c := range env.client.Jar.Cookies(mustURL(t, env.srv.URL)) {
		header.Add("Cookie", c.Name+"="+c.Value)
	}
	wsURL := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	defer conn.Close()

	var first stateView
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, poster.ThemeDefault, first.Theme)

	resp, _ := env.do(t, http.MethodPut, "/api/theme", jsonBody{"theme": "dark"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var pushed stateView
	require.NoError(t, conn.ReadJSON(&pushed))
	assert.Equal(t, poster.ThemeDark, pushed.Theme)
}

type jsonBody = map[string]any

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}
