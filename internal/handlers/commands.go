package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"visioncraft/internal/poster"
	"visioncraft/internal/studio"
)

const (
	msgSendPhoto = "📷 Send a product photo first."
	msgNoPoster  = "Generate a poster first."
	msgNotReady  = "⏳ Still analyzing the photo, try again in a moment."
)

const helpText = "🎨 VisionCraft AI\n\n" +
	"Send a product photo and I will turn it into a poster.\n\n" +
	"Commands:\n" +
	"/start - Show the control panel\n" +
	"/help - This help\n" +
	"/prompt <text> - Set the plain text prompt\n" +
	"/json <json> - Set the structured prompt\n" +
	"/creativity <0..1> - Set creativity (70% also works)\n" +
	"/generate - Generate a poster\n" +
	"/advice - Suggestions for the current poster\n" +
	"/reset - Start over\n\n" +
	"Any other text replaces the prompt of the current mode."

func (h *Handler) handleCommand(ctx context.Context, chatID int64, msg *tgbotapi.Message) error {
	args := strings.TrimSpace(msg.CommandArguments())
	ctrl := h.studio(chatID)

	switch msg.Command() {
	case "start", "panel":
		h.panels.Update(chatID, func(p *panel) { p.MessageID = 0; p.Menu = menuMain })
		return h.renderPanel(chatID, false)

	case "help":
		return h.tg.SendText(chatID, helpText)

	case "reset":
		h.sessions.Reset(sessionKey(chatID))
		h.panels.Delete(chatID)
		_ = h.tg.SendText(chatID, "✅ Studio reset.")
		return h.renderPanel(chatID, false)

	case "prompt":
		if args == "" {
			return h.tg.SendText(chatID, "Usage: /prompt <text>\nExample: /prompt The product floating over a calm lake at dawn")
		}
		mode := poster.PromptModeText
		if _, err := ctrl.UpdateSettings(poster.SettingsPatch{Prompt: &args, PromptMode: &mode}); err != nil {
			return h.replySettingsError(chatID, err)
		}
		_ = h.tg.SendText(chatID, "✅ Prompt updated.")
		return h.renderPanel(chatID, true)

	case "json":
		if args == "" {
			return h.tg.SendText(chatID, "Usage: /json {\"concept\": \"...\"}")
		}
		mode := poster.PromptModeJSON
		if _, err := ctrl.UpdateSettings(poster.SettingsPatch{JSONPrompt: &args, PromptMode: &mode}); err != nil {
			return h.replySettingsError(chatID, err)
		}
		_ = h.tg.SendText(chatID, "✅ Structured prompt updated.")
		return h.renderPanel(chatID, true)

	case "creativity":
		value, err := parseCreativity(args)
		if err != nil {
			return h.tg.SendText(chatID, "❌ "+err.Error()+"\nUsage: /creativity 0.7")
		}
		if _, err := ctrl.UpdateSettings(poster.SettingsPatch{Creativity: &value}); err != nil {
			return h.replySettingsError(chatID, err)
		}
		_ = h.tg.SendText(chatID, fmt.Sprintf("✅ Creativity set to %s%%.", poster.CreativityPercent(value)))
		return h.renderPanel(chatID, true)

	case "generate":
		if err := h.generate(ctx, chatID); err != nil {
			return err
		}
		return h.renderPanel(chatID, true)

	case "advice":
		if err := h.advice(ctx, chatID); err != nil {
			return err
		}
		return h.renderPanel(chatID, true)

	default:
		return h.tg.SendText(chatID, "❌ Unknown command. Use /help.")
	}
}

// handleText treats free text as the prompt for whichever mode is active.
func (h *Handler) handleText(chatID int64, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	ctrl := h.studio(chatID)
	patch := poster.SettingsPatch{Prompt: &text}
	reply := "✅ Prompt updated."
	if ctrl.Snapshot().Settings.PromptMode == poster.PromptModeJSON {
		patch = poster.SettingsPatch{JSONPrompt: &text}
		reply = "✅ Structured prompt updated."
	}

	if _, err := ctrl.UpdateSettings(patch); err != nil {
		return h.replySettingsError(chatID, err)
	}
	_ = h.tg.SendText(chatID, reply)
	return h.renderPanel(chatID, true)
}

func (h *Handler) replySettingsError(chatID int64, err error) error {
	if errors.Is(err, studio.ErrInvalidSettings) {
		return h.tg.SendText(chatID, "❌ "+err.Error())
	}
	return err
}

// parseCreativity accepts a fraction ("0.7") or a percentage ("70", "70%").
func parseCreativity(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, errors.New("creativity is required")
	}

	percent := strings.HasSuffix(value, "%")
	value = strings.TrimSpace(strings.TrimSuffix(value, "%"))
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid creativity %q", value)
	}
	if percent || v > 1 {
		v /= 100
	}
	if v < 0 || v > 1 {
		return 0, errors.New("creativity must be between 0 and 1")
	}
	return v, nil
}

func isImageDocument(doc *tgbotapi.Document) bool {
	if doc == nil {
		return false
	}
	return strings.HasPrefix(strings.ToLower(doc.MimeType), "image/")
}
