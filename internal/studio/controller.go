package studio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"visioncraft/internal/poster"
)

const (
	MsgNoImage                = "The AI model did not return an image. Please try adjusting your prompt."
	MsgGenerateFailed         = "Failed to generate poster. Please check your API key and network connection."
	MsgRemoveBackgroundFailed = "Failed to remove background. Please try again."
)

var (
	ErrNoProductImage  = errors.New("no product image")
	ErrNoPoster        = errors.New("no generated poster")
	ErrBusy            = errors.New("operation already in progress")
	ErrNotReady        = errors.New("product image is still being processed")
	ErrInvalidSettings = errors.New("invalid settings")
	ErrUnknownTheme    = errors.New("unknown theme")
	ErrUnknownView     = errors.New("unknown canvas view")
)

type Defaults struct {
	Settings poster.Settings
	Theme    poster.Theme
	Advice   []string
}

func DefaultDefaults() Defaults {
	return Defaults{
		Settings: poster.DefaultSettings(),
		Theme:    poster.ThemeDefault,
		Advice:   poster.PlaceholderAdvice(),
	}
}

type Options struct {
	Gateway  Gateway
	Logger   *slog.Logger
	Defaults *Defaults
	// CallTimeout bounds each gateway call; zero means no extra deadline.
	CallTimeout time.Duration
}

// Controller owns one session's state and sequences the gateway calls. It is
// safe for concurrent use; gateway calls run without the lock held.
type Controller struct {
	gateway     Gateway
	logger      *slog.Logger
	defaults    Defaults
	callTimeout time.Duration

	mu    sync.Mutex
	state State

	baseCtx    context.Context
	cancelBase context.CancelFunc

	imageCtx    context.Context
	cancelImage context.CancelFunc

	removalToken  uuid.UUID
	cancelRemoval context.CancelFunc

	nextAdviceID int64

	subs    map[int]chan State
	nextSub int

	tasks errgroup.Group
}

func New(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	defaults := DefaultDefaults()
	if opts.Defaults != nil {
		defaults = *opts.Defaults
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		gateway:     opts.Gateway,
		logger:      logger,
		defaults:    defaults,
		callTimeout: opts.CallTimeout,
		baseCtx:     baseCtx,
		cancelBase:  cancel,
		subs:        make(map[int]chan State),
	}
	c.state = c.initialStateLocked()
	return c
}

func (c *Controller) initialStateLocked() State {
	advice := make([]Advice, 0, len(c.defaults.Advice))
	for i, text := range c.defaults.Advice {
		advice = append(advice, Advice{ID: int64(i), Text: text})
	}
	c.nextAdviceID = int64(len(advice))

	theme := c.defaults.Theme
	if theme == "" {
		theme = poster.ThemeDefault
	}

	return State{
		Settings: c.defaults.Settings,
		Theme:    theme,
		Advice:   advice,
		View:     ViewGenerated,
	}
}

func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Subscribe delivers the latest snapshot after every change. Slow readers
// only ever see the newest state.
func (c *Controller) Subscribe() (<-chan State, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	ch := make(chan State, 1)
	c.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.subs, id)
		})
	}
}

func (c *Controller) notifyLocked() {
	if len(c.subs) == 0 {
		return
	}
	snap := c.state.clone()
	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

// Upload replaces the product image. The description is resolved in the
// background and, when background removal is on, chained into one removal.
func (c *Controller) Upload(img poster.Image) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.resetImageLocked()

	product := &ProductImage{
		ID:          uuid.New(),
		Image:       img,
		Description: poster.PlaceholderDescription,
	}
	c.state.Product = product
	c.state.Busy.Describing = true

	ctx := c.imageCtx
	id := product.ID
	c.tasks.Go(func() error {
		c.describe(ctx, id, img)
		return nil
	})

	c.logger.Info("product image uploaded", "image_id", id, "mime", img.MimeType, "bytes", len(img.Data))
	c.notifyLocked()
	return c.state.clone()
}

func (c *Controller) ClearImage() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.resetImageLocked()
	c.state.Product = nil
	c.state.Busy.Describing = false
	c.notifyLocked()
	return c.state.clone()
}

// Reset returns the session to its defaults, cancelling any background work.
// Generate and GetAdvice calls still in flight keep their busy flags until
// they return.
func (c *Controller) Reset() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.resetImageLocked()
	busy := c.state.Busy
	c.state = c.initialStateLocked()
	c.state.Busy.Generating = busy.Generating
	c.state.Busy.FetchingAdvice = busy.FetchingAdvice
	c.notifyLocked()
	return c.state.clone()
}

// resetImageLocked drops everything derived from the current product image
// and cancels the tasks working on it.
func (c *Controller) resetImageLocked() {
	if c.cancelImage != nil {
		c.cancelImage()
	}
	c.imageCtx, c.cancelImage = context.WithCancel(c.baseCtx)
	c.stopRemovalLocked()

	c.state.Generated = nil
	c.state.Cutout = nil
	c.state.Error = ""
}

func (c *Controller) stopRemovalLocked() {
	if c.cancelRemoval != nil {
		c.cancelRemoval()
		c.cancelRemoval = nil
	}
	c.removalToken = uuid.Nil
	c.state.Busy.RemovingBackground = false
}

func (c *Controller) isCurrentLocked(id uuid.UUID) bool {
	return c.state.Product != nil && c.state.Product.ID == id
}

func (c *Controller) describe(ctx context.Context, id uuid.UUID, img poster.Image) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	description := c.gateway.Describe(callCtx, img)

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isCurrentLocked(id) {
		c.logger.Debug("discarding stale description", "image_id", id)
		return
	}

	c.state.Product.Description = description
	c.state.Busy.Describing = false
	c.logger.Info("product described", "image_id", id, "description", description)

	if c.state.RemoveBackground && c.state.Cutout == nil {
		c.startRemovalLocked()
	}
	c.notifyLocked()
}

// SetRemoveBackground toggles background removal. Turning it on starts a
// removal for a described image without a cutout; turning it off discards the
// cutout so that the next enable fetches again.
func (c *Controller) SetRemoveBackground(on bool) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.RemoveBackground = on
	if !on {
		c.state.Cutout = nil
		c.stopRemovalLocked()
	} else if c.state.Cutout == nil && !c.state.Busy.RemovingBackground {
		c.startRemovalLocked()
	}

	c.notifyLocked()
	return c.state.clone()
}

func (c *Controller) startRemovalLocked() {
	product := c.state.Product
	if product == nil || c.state.Busy.Describing {
		return
	}

	if c.cancelRemoval != nil {
		c.cancelRemoval()
	}
	ctx, cancel := context.WithCancel(c.imageCtx)
	token := uuid.New()
	c.removalToken = token
	c.cancelRemoval = cancel
	c.state.Busy.RemovingBackground = true

	id, img := product.ID, product.Image
	c.tasks.Go(func() error {
		defer cancel()
		c.removeBackground(ctx, token, id, img)
		return nil
	})
}

func (c *Controller) removeBackground(ctx context.Context, token, id uuid.UUID, img poster.Image) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	out, err := c.gateway.RemoveBackground(callCtx, img)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.removalToken != token || !c.isCurrentLocked(id) {
		c.logger.Debug("discarding stale background removal", "image_id", id)
		return
	}
	c.removalToken = uuid.Nil
	c.cancelRemoval = nil
	c.state.Busy.RemovingBackground = false

	switch {
	case err != nil:
		c.logger.Error("background removal failed", "image_id", id, "err", err)
		c.state.Error = MsgRemoveBackgroundFailed
	case out == nil:
		c.logger.Warn("background removal returned no image", "image_id", id)
	default:
		c.state.Cutout = &ProductImage{
			ID:          id,
			Image:       *out,
			Description: c.state.Product.Description,
		}
		c.logger.Info("background removed", "image_id", id)
	}
	c.notifyLocked()
}

// Generate makes a poster from the active image. Without an active image it
// does nothing and returns ErrNoProductImage. While the image is still being
// described or cut out it returns ErrNotReady. Model failures are reported in
// the state's Error, not as a returned error.
func (c *Controller) Generate(ctx context.Context) (State, error) {
	c.mu.Lock()
	active := c.state.ActiveImage()
	if active == nil {
		defer c.mu.Unlock()
		return c.state.clone(), ErrNoProductImage
	}
	if c.state.Busy.Generating {
		defer c.mu.Unlock()
		return c.state.clone(), ErrBusy
	}
	if c.state.Busy.Describing || c.state.Busy.RemovingBackground {
		defer c.mu.Unlock()
		return c.state.clone(), ErrNotReady
	}

	settings := c.state.Settings
	c.state.Error = ""
	c.state.Generated = nil

	if settings.PromptMode == poster.PromptModeJSON {
		if _, err := settings.CompactJSONPrompt(); err != nil {
			defer c.mu.Unlock()
			c.state.Error = jsonPromptMessage(err)
			c.notifyLocked()
			return c.state.clone(), nil
		}
	}

	c.state.Busy.Generating = true
	id, img, description := active.ID, active.Image, active.Description
	prompt := settings.EffectivePrompt()
	imageCtx := c.imageCtx
	c.notifyLocked()
	c.mu.Unlock()

	callCtx, cancel := c.callContext(ctx)
	defer cancel()
	stop := context.AfterFunc(imageCtx, cancel)
	defer stop()

	start := time.Now()
	out, err := c.gateway.GeneratePoster(callCtx, img, description, settings)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.Busy.Generating = false
	defer c.notifyLocked()

	if !c.isCurrentLocked(id) {
		c.logger.Info("discarding poster for replaced image", "image_id", id)
		return c.state.clone(), nil
	}

	switch {
	case errors.Is(err, poster.ErrInvalidJSONPrompt):
		c.state.Error = jsonPromptMessage(err)
	case err != nil:
		c.logger.Error("poster generation failed", "image_id", id, "err", err)
		c.state.Error = MsgGenerateFailed
	case out == nil:
		c.logger.Warn("poster generation returned no image", "image_id", id)
		c.state.Error = MsgNoImage
	default:
		c.state.Generated = &GeneratedImage{
			ID:        uuid.New(),
			Image:     *out,
			Prompt:    prompt,
			ProductID: id,
		}
		c.logger.Info("poster generated", "image_id", id, "dur_ms", time.Since(start).Milliseconds())
	}
	return c.state.clone(), nil
}

// GetAdvice refreshes the advice list for the current poster. It needs both a
// poster and an active image, otherwise it returns ErrNoPoster and does
// nothing. Failures keep the old list and are only logged.
func (c *Controller) GetAdvice(ctx context.Context) (State, error) {
	c.mu.Lock()
	generated := c.state.Generated
	active := c.state.ActiveImage()
	if generated == nil || active == nil {
		defer c.mu.Unlock()
		return c.state.clone(), ErrNoPoster
	}
	if c.state.Busy.FetchingAdvice {
		defer c.mu.Unlock()
		return c.state.clone(), ErrBusy
	}

	c.state.Busy.FetchingAdvice = true
	prompt, description := generated.Prompt, active.Description
	c.notifyLocked()
	c.mu.Unlock()

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	list, err := c.gateway.Advice(callCtx, prompt, description)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.Busy.FetchingAdvice = false
	defer c.notifyLocked()

	if err != nil {
		c.logger.Error("failed to get new advice", "err", err)
		return c.state.clone(), nil
	}
	if c.state.Generated != generated {
		c.logger.Debug("discarding advice for replaced poster")
		return c.state.clone(), nil
	}

	advice := make([]Advice, 0, len(list))
	for _, text := range list {
		advice = append(advice, Advice{ID: c.nextAdviceID, Text: text})
		c.nextAdviceID++
	}
	c.state.Advice = advice
	return c.state.clone(), nil
}

func (c *Controller) UpdateSettings(patch poster.SettingsPatch) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.state.Settings.Apply(patch)
	if err := next.Validate(); err != nil {
		return c.state.clone(), fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	c.state.Settings = next
	c.notifyLocked()
	return c.state.clone(), nil
}

func (c *Controller) SetTheme(id string) (State, error) {
	theme, ok := poster.ParseTheme(id)
	if !ok {
		return c.Snapshot(), fmt.Errorf("%w: %q", ErrUnknownTheme, id)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Theme = theme
	c.notifyLocked()
	return c.state.clone(), nil
}

// SetCanvasView only changes which image the canvas shows.
func (c *Controller) SetCanvasView(view View) (State, error) {
	if view != ViewGenerated && view != ViewOriginal {
		return c.Snapshot(), fmt.Errorf("%w: %q", ErrUnknownView, view)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.View = view
	c.notifyLocked()
	return c.state.clone(), nil
}

// Wait blocks until background tasks started so far have finished.
func (c *Controller) Wait() error {
	return c.tasks.Wait()
}

// Close cancels all outstanding work. The controller must not be used after.
func (c *Controller) Close() {
	c.cancelBase()

	c.mu.Lock()
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
	c.mu.Unlock()
}

func (c *Controller) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout > 0 {
		return context.WithTimeout(ctx, c.callTimeout)
	}
	return context.WithCancel(ctx)
}

func jsonPromptMessage(err error) string {
	detail := strings.TrimPrefix(err.Error(), poster.ErrInvalidJSONPrompt.Error()+": ")
	return "Structured prompt is not valid JSON: " + detail
}
