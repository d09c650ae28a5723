package handlers

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"visioncraft/internal/imagefile"
	"visioncraft/internal/mediagroup"
	"visioncraft/internal/poster"
	"visioncraft/internal/session"
	"visioncraft/internal/studio"
	"visioncraft/internal/telegram"
)

// Messenger is the slice of the Telegram client the handlers use.
type Messenger interface {
	SendText(chatID int64, text string) error
	SendTextWithKeyboard(chatID int64, text string, kb tgbotapi.InlineKeyboardMarkup) (int, error)
	EditTextWithKeyboard(chatID int64, messageID int, text string, kb tgbotapi.InlineKeyboardMarkup) error
	AnswerCallback(callbackID, text string, alert bool) error
	SendPhoto(chatID int64, img poster.Image, caption string) error
	SendDocument(chatID int64, name string, data []byte, caption string) error
	SendTyping(chatID int64)
	SendUploading(chatID int64)
	DownloadFile(ctx context.Context, fileID string) ([]byte, string, error)
}

type Options struct {
	Telegram Messenger
	Sessions *session.Store
	Logger   *slog.Logger
}

type Handler struct {
	tg         Messenger
	sessions   *session.Store
	logger     *slog.Logger
	panels     *panelStore
	aggregator *mediagroup.Aggregator
}

func New(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Handler{
		tg:       opts.Telegram,
		sessions: opts.Sessions,
		logger:   logger,
		panels:   newPanelStore(),
	}
}

func (h *Handler) SetMediaGroupAggregator(ag *mediagroup.Aggregator) {
	h.aggregator = ag
}

// Each chat gets its own studio; everyone in a group chat shares it.
func sessionKey(chatID int64) string {
	return fmt.Sprintf("tg:%d", chatID)
}

func (h *Handler) studio(chatID int64) *studio.Controller {
	return h.sessions.GetOrCreate(sessionKey(chatID)).Studio
}

func (h *Handler) HandleUpdate(ctx context.Context, update telegram.Update) error {
	if update.CallbackQuery != nil {
		return h.handleCallback(ctx, update.CallbackQuery)
	}
	if update.Message == nil {
		return nil
	}

	msg := update.Message
	chatID := msg.Chat.ID

	switch {
	case msg.IsCommand():
		return h.handleCommand(ctx, chatID, msg)
	case len(msg.Photo) > 0:
		return h.handlePhoto(ctx, chatID, msg)
	case isImageDocument(msg.Document):
		return h.processPhotos(ctx, chatID, []string{msg.Document.FileID})
	case msg.Text != "":
		return h.handleText(chatID, msg.Text)
	}
	return nil
}

// HandleMediaGroup takes the first usable photo of an album as the product.
func (h *Handler) HandleMediaGroup(ctx context.Context, group mediagroup.Group) {
	if len(group.FileIDs) > 1 {
		_ = h.tg.SendText(group.ChatID, fmt.Sprintf("📷 Got %d photos, using the first one as the product.", len(group.FileIDs)))
	}
	if err := h.processPhotos(ctx, group.ChatID, group.FileIDs); err != nil {
		h.logger.Error("media group processing failed", "chat_id", group.ChatID, "err", err)
	}
}

func (h *Handler) handlePhoto(ctx context.Context, chatID int64, msg *tgbotapi.Message) error {
	// The last size is the largest.
	fileID := msg.Photo[len(msg.Photo)-1].FileID

	if msg.MediaGroupID != "" && h.aggregator != nil {
		h.aggregator.Add(mediagroup.Item{
			ChatID:       chatID,
			UserID:       userID(msg),
			MediaGroupID: msg.MediaGroupID,
			Caption:      msg.Caption,
			FileID:       fileID,
		})
		return nil
	}

	return h.processPhotos(ctx, chatID, []string{fileID})
}

// processPhotos downloads the files concurrently and uploads the first one
// that decodes as a supported image.
func (h *Handler) processPhotos(ctx context.Context, chatID int64, fileIDs []string) error {
	if len(fileIDs) == 0 {
		return nil
	}
	h.tg.SendTyping(chatID)

	type downloaded struct {
		Data []byte
		Mime string
	}

	downloads := make([]downloaded, len(fileIDs))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, fileID := range fileIDs {
		i := i
		fileID := fileID
		eg.Go(func() error {
			data, mimeType, err := h.tg.DownloadFile(egCtx, fileID)
			if err != nil {
				return err
			}
			downloads[i] = downloaded{Data: data, Mime: mimeType}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		h.logger.Error("photo download failed", "chat_id", chatID, "err", err)
		return h.tg.SendText(chatID, "❌ Could not download the photo. Please send it again.")
	}

	var (
		img    poster.Image
		found  bool
		reason error
	)
	for _, d := range downloads {
		decoded, err := imagefile.Decode(d.Data, d.Mime)
		if err != nil {
			reason = err
			continue
		}
		img, found = decoded, true
		break
	}
	if !found {
		h.logger.Warn("unsupported photo", "chat_id", chatID, "err", reason)
		return h.tg.SendText(chatID, "❌ Unsupported image. Send a JPEG, PNG or WEBP photo.")
	}

	ctrl := h.studio(chatID)
	ctrl.Upload(img)
	if err := h.renderPanel(chatID, false); err != nil {
		return err
	}

	waitIdle(ctx, ctrl)
	return h.renderPanel(chatID, true)
}

func userID(msg *tgbotapi.Message) int64 {
	if msg.From == nil {
		return 0
	}
	return msg.From.ID
}
